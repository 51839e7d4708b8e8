package expr

import "strings"

// Template is one `${{ ... }}` marker found in a scalar value.
type Template struct {
	// Raw is the expression text between the markers, with surrounding
	// whitespace trimmed.
	Raw string
	// Start and End are the byte offsets of the whole marker within the
	// scanned string, including the delimiters.
	Start int
	End   int
}

const (
	templateOpen  = "${{"
	templateClose = "}}"
)

// ExtractTemplates scans s for `${{ ... }}` markers and returns them in
// order of appearance. Markers do not nest; each one ends at the first
// closing delimiter after its opener. An unterminated marker is ignored.
func ExtractTemplates(s string) []Template {
	var out []Template
	for pos := 0; pos < len(s); {
		open := strings.Index(s[pos:], templateOpen)
		if open < 0 {
			break
		}
		open += pos
		rel := strings.Index(s[open+len(templateOpen):], templateClose)
		if rel < 0 {
			break
		}
		end := open + len(templateOpen) + rel + len(templateClose)
		inner := s[open+len(templateOpen) : end-len(templateClose)]
		out = append(out, Template{
			Raw:   strings.TrimSpace(inner),
			Start: open,
			End:   end,
		})
		pos = end
	}
	return out
}

// ContainsTemplate reports whether s has at least one complete template
// marker.
func ContainsTemplate(s string) bool {
	open := strings.Index(s, templateOpen)
	return open >= 0 && strings.Contains(s[open+len(templateOpen):], templateClose)
}

// ParseCondition parses the value of an `if:` key. GitHub Actions evaluates
// a condition as an expression whether or not it is wrapped in a template
// marker, so a value that consists of exactly one marker is unwrapped before
// parsing and anything else is parsed as bare expression text.
func ParseCondition(cond string) (Expr, error) {
	trimmed := strings.TrimSpace(cond)
	if templates := ExtractTemplates(trimmed); len(templates) == 1 {
		t := templates[0]
		if t.Start == 0 && t.End == len(trimmed) {
			return Parse(t.Raw)
		}
	}
	return Parse(trimmed)
}
