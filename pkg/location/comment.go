package location

import (
	"regexp"
	"strings"
)

// A Comment is one YAML comment line, including its leading '#'.
type Comment string

// ignorePattern matches suppression comments. The shape is rigid: exactly
// one space after the '#' and one after the colon, with optional trailing
// whitespace.
var ignorePattern = regexp.MustCompile(`^# argos: ignore\[(.+)\]\s*$`)

// Ignores reports whether the comment suppresses findings of the given
// rule. A single comment can name several rules, comma-separated; empty
// list entries are skipped.
func (c Comment) Ignores(rule string) bool {
	match := ignorePattern.FindStringSubmatch(string(c))
	if match == nil {
		return false
	}
	for _, entry := range strings.Split(match[1], ",") {
		if strings.TrimSpace(entry) == rule {
			return true
		}
	}
	return false
}
