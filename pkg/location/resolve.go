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
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"

	argoserrors "github.com/argos-audit/argos/pkg/errors"
)

// Point is a 1-based line and column position.
type Point struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

// Span is the extent of a feature in its document. End is exclusive: its
// column points one past the last character of the feature.
type Span struct {
	Start       Point `json:"start"`
	End         Point `json:"end"`
	StartOffset int   `json:"start-offset"`
	EndOffset   int   `json:"end-offset"`
}

// ConcreteLocation is a resolved symbolic location: the feature's extent,
// its raw source text, the extent of its enclosing feature, and every
// comment on the feature's lines.
type ConcreteLocation struct {
	Span     Span      `json:"span"`
	Feature  string    `json:"feature"`
	Parent   *Span     `json:"parent,omitempty"`
	Comments []Comment `json:"comments,omitempty"`
}

// Document is a parsed YAML document that can resolve symbolic locations
// against its source text.
type Document struct {
	key      InputKey
	raw      []byte
	root     *yaml.Node
	lines    *LineMapper
	offsets  []int
	comments []lineComment
}

type lineComment struct {
	line int
	text Comment
}

// NewDocument parses raw as YAML and prepares it for location resolution.
func NewDocument(key InputKey, raw []byte) (*Document, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, argoserrors.NewWorkflowError("Failed to parse YAML document", err, key.String())
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return nil, argoserrors.NewWorkflowError("Document is empty", nil, key.String())
	}

	d := &Document{
		key:      key,
		raw:      raw,
		root:     doc.Content[0],
		lines:    NewLineMapper(raw),
		comments: scanComments(raw),
	}
	collectOffsets(d.root, d.lines, &d.offsets)
	sort.Ints(d.offsets)
	return d, nil
}

// Key returns the document's input key.
func (d *Document) Key() InputKey { return d.key }

// Raw returns the document's source bytes.
func (d *Document) Raw() []byte { return d.raw }

// Lines returns the document's line mapper.
func (d *Document) Lines() *LineMapper { return d.lines }

// Root returns the document's root node.
func (d *Document) Root() *yaml.Node { return d.root }

// Resolve turns a symbolic location into a concrete one. It fails when the
// location's route does not address a feature of this document.
func (d *Document) Resolve(sym SymbolicLocation) (ConcreteLocation, error) {
	span, err := d.resolveRoute(sym.Route, sym.Kind)
	if err != nil {
		return ConcreteLocation{}, err
	}

	loc := ConcreteLocation{
		Span:     span,
		Feature:  string(d.raw[span.StartOffset:span.EndOffset]),
		Comments: d.commentsInRange(span.Start.Line, span.End.Line),
	}
	if parent, ok := sym.Route.Parent(); ok {
		if parentSpan, err := d.resolveRoute(parent, FeatureSpan); err == nil {
			loc.Parent = &parentSpan
		}
	}
	return loc, nil
}

// ResolveSpan builds a concrete location directly from a byte range of the
// raw document. Audits that find features inside scalar text, where no
// route can address them, use this in place of route resolution. The range
// is clamped to the document.
func (d *Document) ResolveSpan(start, end int) ConcreteLocation {
	if start < 0 {
		start = 0
	}
	if end > len(d.raw) {
		end = len(d.raw)
	}
	if end < start {
		end = start
	}
	span := d.makeSpan(start, end)
	return ConcreteLocation{
		Span:     span,
		Feature:  string(d.raw[start:end]),
		Comments: d.commentsInRange(span.Start.Line, span.End.Line),
	}
}

func (d *Document) resolveRoute(route Route, kind FeatureKind) (Span, error) {
	node := d.root
	var keyNode *yaml.Node

	for _, component := range route.Components() {
		for node.Kind == yaml.AliasNode && node.Alias != nil {
			node = node.Alias
		}
		if component.isKey {
			if node.Kind != yaml.MappingNode {
				return Span{}, d.routeError(route, "key %q selected on a non-mapping node", component.key)
			}
			found := false
			for i := 0; i+1 < len(node.Content); i += 2 {
				if node.Content[i].Value == component.key {
					keyNode = node.Content[i]
					node = node.Content[i+1]
					found = true
					break
				}
			}
			if !found {
				return Span{}, d.routeError(route, "key %q not present", component.key)
			}
		} else {
			if node.Kind != yaml.SequenceNode {
				return Span{}, d.routeError(route, "index %d selected on a non-sequence node", component.index)
			}
			if component.index < 0 || component.index >= len(node.Content) {
				return Span{}, d.routeError(route, "index %d out of range", component.index)
			}
			node = node.Content[component.index]
			keyNode = nil
		}
	}

	return d.span(keyNode, node, kind), nil
}

func (d *Document) routeError(route Route, format string, args ...interface{}) error {
	return argoserrors.NewResolutionError(
		fmt.Sprintf("Route does not resolve: %s", fmt.Sprintf(format, args...)),
		route.String(),
		d.key.String(),
	)
}

// span computes a feature's extent. A mapping entry spans from its key
// token through the end of its value subtree; everything else spans the
// value subtree alone. The end is the start of the next node in document
// order, trimmed back over whitespace, trailing comment-only lines, and a
// dangling sequence indicator belonging to the next item.
func (d *Document) span(keyNode, valueNode *yaml.Node, kind FeatureKind) Span {
	start := d.nodeOffset(valueNode)
	if keyNode != nil {
		start = d.nodeOffset(keyNode)
		if kind == FeatureKeyOnly {
			return d.makeSpan(start, start+len(keyNode.Value))
		}
		// An implicit null value carries the position of the token after
		// it, so the entry's extent is just "key:".
		if isNullScalar(valueNode) {
			end := start + len(keyNode.Value)
			if end < len(d.raw) && d.raw[end] == ':' {
				end++
			}
			return d.makeSpan(start, end)
		}
	}

	maxStart := subtreeMaxOffset(valueNode, d.lines)
	if maxStart < start {
		maxStart = start
	}
	end := len(d.raw)
	if next := sort.SearchInts(d.offsets, maxStart+1); next < len(d.offsets) {
		end = d.offsets[next]
	}
	end = d.trimSpanEnd(start, end)
	if end <= start {
		end = maxStart
		if end <= start {
			end = start + 1
			if end > len(d.raw) {
				end = len(d.raw)
			}
		}
	}
	return d.makeSpan(start, end)
}

func (d *Document) makeSpan(start, end int) Span {
	span := Span{StartOffset: start, EndOffset: end}
	span.Start.Line, span.Start.Column = d.lines.CharToPosition(start)
	if end > start {
		span.End.Line, span.End.Column = d.lines.CharToPosition(end - 1)
		span.End.Column++
	} else {
		span.End = span.Start
	}
	return span
}

func (d *Document) trimSpanEnd(start, end int) int {
	raw := d.raw
	for end > start {
		trimmed := end
		for trimmed > start && isYAMLSpace(raw[trimmed-1]) {
			trimmed--
		}
		// A lone '-' at the head of the trailing line is the sequence
		// indicator of the item that follows the feature.
		if trimmed > start && raw[trimmed-1] == '-' && lineIsIndentThenDash(raw, trimmed-1) {
			trimmed--
			end = trimmed
			continue
		}
		// A trailing comment-only line belongs to whatever comes next.
		if lineStart := startOfLine(raw, trimmed); lineStart > start {
			i := lineStart
			for i < trimmed && (raw[i] == ' ' || raw[i] == '\t') {
				i++
			}
			if i < trimmed && raw[i] == '#' {
				end = lineStart
				continue
			}
		}
		end = trimmed
		break
	}
	return end
}

func (d *Document) nodeOffset(n *yaml.Node) int {
	if offset := d.lines.PositionToChar(n.Line, n.Column); offset >= 0 {
		return offset
	}
	return 0
}

func (d *Document) commentsInRange(startLine, endLine int) []Comment {
	var out []Comment
	for _, c := range d.comments {
		if c.line >= startLine && c.line <= endLine {
			out = append(out, c.text)
		}
	}
	return out
}

func isNullScalar(n *yaml.Node) bool {
	return n != nil && n.Kind == yaml.ScalarNode && n.Tag == "!!null" && n.Value == ""
}

// Implicit null scalars are skipped throughout: their reported position is
// that of the following token, outside their own extent.
func collectOffsets(n *yaml.Node, lines *LineMapper, out *[]int) {
	if n == nil {
		return
	}
	if !isNullScalar(n) {
		if offset := lines.PositionToChar(n.Line, n.Column); offset >= 0 {
			*out = append(*out, offset)
		}
	}
	for _, child := range n.Content {
		collectOffsets(child, lines, out)
	}
}

func subtreeMaxOffset(n *yaml.Node, lines *LineMapper) int {
	max := -1
	if !isNullScalar(n) {
		max = lines.PositionToChar(n.Line, n.Column)
	}
	for _, child := range n.Content {
		if childMax := subtreeMaxOffset(child, lines); childMax > max {
			max = childMax
		}
	}
	return max
}

func isYAMLSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\r' || b == '\n'
}

func startOfLine(raw []byte, pos int) int {
	for pos > 0 && raw[pos-1] != '\n' {
		pos--
	}
	return pos
}

func lineIsIndentThenDash(raw []byte, dashPos int) bool {
	for i := dashPos - 1; i >= 0 && raw[i] != '\n'; i-- {
		if raw[i] != ' ' && raw[i] != '\t' {
			return false
		}
	}
	return true
}

// scanComments finds every comment line in the raw document. The scan is
// quote-aware within a line: a '#' inside a single- or double-quoted flow
// scalar does not open a comment, and a comment only opens at the start of
// a line or after whitespace.
func scanComments(raw []byte) []lineComment {
	var out []lineComment
	line := 1
	lineStart := 0
	for i := 0; i <= len(raw); i++ {
		if i == len(raw) || raw[i] == '\n' {
			if comment, ok := commentOnLine(raw[lineStart:i]); ok {
				out = append(out, lineComment{line: line, text: comment})
			}
			line++
			lineStart = i + 1
		}
	}
	return out
}

func commentOnLine(lineText []byte) (Comment, bool) {
	const (
		plain = iota
		single
		double
	)
	state := plain
	for i := 0; i < len(lineText); i++ {
		switch state {
		case plain:
			switch lineText[i] {
			case '\'':
				state = single
			case '"':
				state = double
			case '#':
				if i == 0 || lineText[i-1] == ' ' || lineText[i-1] == '\t' {
					return Comment(lineText[i:]), true
				}
			}
		case single:
			if lineText[i] == '\'' {
				state = plain
			}
		case double:
			if lineText[i] == '\\' {
				i++
			} else if lineText[i] == '"' {
				state = plain
			}
		}
	}
	return "", false
}
