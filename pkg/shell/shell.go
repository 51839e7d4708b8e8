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

// Package shell inspects the `run:` scripts of workflow steps. Scripts
// for POSIX-ish shells are parsed into a real syntax tree; other shells
// get a line-oriented textual scan.
package shell

import (
	"regexp"
	"strings"

	"mvdan.cc/sh/v3/syntax"
)

// Parse parses a shell script and returns its syntax tree.
func Parse(script string) (*syntax.File, error) {
	parser := syntax.NewParser()
	file, err := parser.Parse(strings.NewReader(script), "")
	if err != nil {
		return nil, err
	}
	return file, nil
}

// EnvFileWrites reports which of the named runner environment files the
// script writes to, in the order the names are given. bash and sh
// scripts are parsed and inspected for output redirections and tee
// targets; every other shell falls back to a textual scan, as does a
// script the parser rejects.
func EnvFileWrites(script, shellName string, names ...string) []string {
	switch strings.ToLower(shellName) {
	case "bash", "sh", "":
		writes, err := posixEnvFileWrites(script, names)
		if err != nil {
			return textualEnvFileWrites(script, names)
		}
		return writes
	default:
		return textualEnvFileWrites(script, names)
	}
}

func posixEnvFileWrites(script string, names []string) ([]string, error) {
	file, err := Parse(script)
	if err != nil {
		return nil, err
	}

	hits := make(map[string]bool)
	syntax.Walk(file, func(node syntax.Node) bool {
		switch n := node.(type) {
		case *syntax.Redirect:
			switch n.Op {
			case syntax.RdrOut, syntax.AppOut, syntax.RdrAll, syntax.AppAll:
				markRefs(wordText(script, n.Word), names, hits)
			}
		case *syntax.CallExpr:
			if len(n.Args) < 2 {
				break
			}
			name := n.Args[0].Lit()
			if name != "tee" && !strings.HasSuffix(name, "/tee") {
				break
			}
			for _, arg := range n.Args[1:] {
				markRefs(wordText(script, arg), names, hits)
			}
		}
		return true
	})

	return ordered(names, hits), nil
}

// textualEnvFileWrites scans line by line for an output-writing
// construct next to a reference to one of the named files. This covers
// pwsh and cmd steps, where Out-File and Add-Content take the place of
// redirections.
func textualEnvFileWrites(script string, names []string) []string {
	hits := make(map[string]bool)
	for _, line := range strings.Split(script, "\n") {
		if !writesOutput(line) {
			continue
		}
		markRefs(line, names, hits)
	}
	return ordered(names, hits)
}

func writesOutput(line string) bool {
	if strings.Contains(line, ">") {
		return true
	}
	lower := strings.ToLower(line)
	for _, cmd := range []string{"out-file", "add-content", "set-content", "tee"} {
		if strings.Contains(lower, cmd) {
			return true
		}
	}
	return false
}

func markRefs(text string, names []string, hits map[string]bool) {
	for _, name := range names {
		if refersTo(text, name) {
			hits[name] = true
		}
	}
}

// refersTo reports whether text expands the named variable in any of
// the $NAME, ${NAME}, or $env:NAME spellings.
func refersTo(text, name string) bool {
	pattern := regexp.MustCompile(`\$(\{|env:)?` + regexp.QuoteMeta(name) + `\b`)
	return pattern.MatchString(text)
}

func ordered(names []string, hits map[string]bool) []string {
	var out []string
	for _, name := range names {
		if hits[name] {
			out = append(out, name)
		}
	}
	return out
}

// wordText returns the source text of a word, quotes included.
func wordText(script string, w *syntax.Word) string {
	if w == nil {
		return ""
	}
	return script[w.Pos().Offset():w.End().Offset()]
}
