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

package location_test

import (
	"regexp"
	"testing"

	"github.com/argos-audit/argos/pkg/location"
)

func TestLineMapperGetLine(t *testing.T) {
	lm := location.NewLineMapperFromString("first line\nsecond line\nthird line")

	tests := []struct {
		lineNum  int
		expected string
	}{
		{1, "first line"},
		{2, "second line"},
		{3, "third line"},
		{0, ""},  // Invalid line number
		{4, ""},  // Beyond content
		{-1, ""}, // Negative line number
	}

	for _, test := range tests {
		result := lm.GetLine(test.lineNum)
		if result != test.expected {
			t.Errorf("GetLine(%d) = %q, want %q", test.lineNum, result, test.expected)
		}
	}
}

func TestLineMapperCharToLine(t *testing.T) {
	lm := location.NewLineMapperFromString("abcd\nefg\nhij")

	tests := []struct {
		charPos  int
		expected int
	}{
		{0, 1},   // First character of line 1
		{3, 1},   // Last character of line 1
		{4, 1},   // Newline terminating line 1
		{5, 2},   // First character of line 2
		{9, 3},   // First character of line 3
		{11, 3},  // Last character of line 3
		{-1, 0},  // Invalid position
		{100, 0}, // Beyond content
	}

	for _, test := range tests {
		result := lm.CharToLine(test.charPos)
		if result != test.expected {
			t.Errorf("CharToLine(%d) = %d, want %d", test.charPos, result, test.expected)
		}
	}
}

func TestLineMapperRoundTrip(t *testing.T) {
	content := "jobs:\n  build:\n    runs-on: ubuntu-latest\n"
	lm := location.NewLineMapperFromString(content)

	for offset := 0; offset < len(content); offset++ {
		line, column := lm.CharToPosition(offset)
		if line == 0 {
			t.Fatalf("CharToPosition(%d) returned line 0", offset)
		}
		if back := lm.PositionToChar(line, column); back != offset {
			t.Errorf("PositionToChar(%d, %d) = %d, want %d", line, column, back, offset)
		}
	}
}

func TestLineMapperGetLines(t *testing.T) {
	lm := location.NewLineMapperFromString("line 1\nline 2\nline 3\nline 4\nline 5")

	tests := []struct {
		startLine int
		endLine   int
		expected  int
	}{
		{1, 3, 3},
		{2, 4, 3},
		{1, 1, 1},
		{0, 2, 2},  // Auto-correct start
		{3, 10, 3}, // Auto-correct end
		{4, 2, 0},  // Invalid range
	}

	for _, test := range tests {
		result := lm.GetLines(test.startLine, test.endLine)
		if len(result) != test.expected {
			t.Errorf("GetLines(%d, %d) returned %d lines, want %d", test.startLine, test.endLine, len(result), test.expected)
		}
	}
}

func TestLineMapperFindPattern(t *testing.T) {
	content := "env:\n  TOKEN: ghp_abcdefghijklmnop\n  OTHER: value\n"
	lm := location.NewLineMapperFromString(content)

	matches := lm.FindPattern(regexp.MustCompile(`ghp_[A-Za-z0-9]+`))
	if len(matches) != 1 {
		t.Fatalf("FindPattern returned %d matches, want 1", len(matches))
	}
	match := matches[0]
	if match.LineNumber != 2 {
		t.Errorf("match line = %d, want 2", match.LineNumber)
	}
	if match.MatchedText != "ghp_abcdefghijklmnop" {
		t.Errorf("matched text = %q", match.MatchedText)
	}
	if got := content[match.StartOffset:match.EndOffset]; got != match.MatchedText {
		t.Errorf("offsets select %q, want %q", got, match.MatchedText)
	}
}
