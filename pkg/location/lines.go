/*
Copyright 2025 Argos Authors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package location

import (
	"regexp"
	"sort"
	"strings"
)

// LineMapper converts between character offsets and 1-based line/column
// positions of a document, and slices the document by line for snippet
// rendering.
type LineMapper struct {
	content    string
	lines      []string
	lineToChar []int
}

// NewLineMapper creates a new line mapper for the given content.
func NewLineMapper(content []byte) *LineMapper {
	return NewLineMapperFromString(string(content))
}

// NewLineMapperFromString creates a new line mapper from string content.
func NewLineMapperFromString(content string) *LineMapper {
	lm := &LineMapper{content: content}
	lm.lines = strings.Split(content, "\n")
	lm.lineToChar = make([]int, len(lm.lines)+1)
	for i, line := range lm.lines {
		lm.lineToChar[i+1] = lm.lineToChar[i] + len(line) + 1 // +1 for newline
	}
	return lm
}

// CharToLine converts a character position to a line number (1-based).
// Invalid positions return 0.
func (lm *LineMapper) CharToLine(charPos int) int {
	if charPos < 0 || charPos >= len(lm.content) {
		return 0
	}
	return sort.Search(len(lm.lineToChar), func(i int) bool {
		return lm.lineToChar[i] > charPos
	})
}

// CharToPosition converts a character position to a 1-based line and column
// pair. Invalid positions return (0, 0).
func (lm *LineMapper) CharToPosition(charPos int) (line, column int) {
	line = lm.CharToLine(charPos)
	if line == 0 {
		return 0, 0
	}
	return line, charPos - lm.lineToChar[line-1] + 1
}

// LineToChar converts a line number to its starting character position, or
// -1 for a line outside the document.
func (lm *LineMapper) LineToChar(lineNum int) int {
	if lineNum < 1 || lineNum > len(lm.lines) {
		return -1
	}
	return lm.lineToChar[lineNum-1]
}

// PositionToChar converts a 1-based line and column pair to a character
// position, or -1 when the position lies outside the document.
func (lm *LineMapper) PositionToChar(line, column int) int {
	start := lm.LineToChar(line)
	if start < 0 || column < 1 {
		return -1
	}
	pos := start + column - 1
	if pos > len(lm.content) {
		return -1
	}
	return pos
}

// GetLine returns the content of a specific line (1-based).
func (lm *LineMapper) GetLine(lineNum int) string {
	if lineNum < 1 || lineNum > len(lm.lines) {
		return ""
	}
	return lm.lines[lineNum-1]
}

// GetLines returns a range of lines (1-based, inclusive). Out-of-range
// bounds are clamped to the document.
func (lm *LineMapper) GetLines(startLine, endLine int) []string {
	if startLine < 1 {
		startLine = 1
	}
	if endLine > len(lm.lines) {
		endLine = len(lm.lines)
	}
	if startLine > endLine {
		return []string{}
	}
	result := make([]string, 0, endLine-startLine+1)
	for i := startLine; i <= endLine; i++ {
		result = append(result, lm.lines[i-1])
	}
	return result
}

// TotalLines returns the total number of lines in the content.
func (lm *LineMapper) TotalLines() int {
	return len(lm.lines)
}

// PatternMatch is one regex match located within the document.
type PatternMatch struct {
	LineNumber  int    // 1-based line of the match start
	ColumnStart int    // 1-based starting column
	ColumnEnd   int    // 1-based column one past the match on its first line
	StartOffset int    // character offset of the match start
	EndOffset   int    // character offset one past the match
	LineContent string // full content of the first matched line
	MatchedText string // the exact text that was matched
}

// FindPattern locates every match of the regex in the document.
func (lm *LineMapper) FindPattern(regex *regexp.Regexp) []PatternMatch {
	var results []PatternMatch
	for _, match := range regex.FindAllStringIndex(lm.content, -1) {
		startPos, endPos := match[0], match[1]
		lineNum := lm.CharToLine(startPos)
		if lineNum == 0 {
			continue
		}
		lineStart := lm.lineToChar[lineNum-1]
		results = append(results, PatternMatch{
			LineNumber:  lineNum,
			ColumnStart: startPos - lineStart + 1,
			ColumnEnd:   endPos - lineStart + 1,
			StartOffset: startPos,
			EndOffset:   endPos,
			LineContent: lm.GetLine(lineNum),
			MatchedText: lm.content[startPos:endPos],
		})
	}
	return results
}
