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

// Package report renders the outcome of an audit run. Four formats are
// supported: a colorized terminal report, a JSON dump of the findings,
// SARIF 2.1.0 for code scanning upload, and GitHub workflow commands
// that surface findings as pull request annotations.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/argos-audit/argos/pkg/errors"
	"github.com/argos-audit/argos/pkg/finding"
	"github.com/argos-audit/argos/pkg/location"
)

// Format selects the output rendering of a run's results.
type Format int

const (
	FormatPlain Format = iota
	FormatJSON
	FormatSARIF
	FormatGitHub
)

var formatNames = map[Format]string{
	FormatPlain:  "plain",
	FormatJSON:   "json",
	FormatSARIF:  "sarif",
	FormatGitHub: "github",
}

func (f Format) String() string {
	if name, ok := formatNames[f]; ok {
		return name
	}
	return fmt.Sprintf("format(%d)", int(f))
}

// SupportedFormats lists the accepted output format names.
func SupportedFormats() []string {
	return []string{"plain", "json", "sarif", "github"}
}

// ParseFormat parses a format name, case-insensitively. The empty string
// selects the plain terminal format.
func ParseFormat(text string) (Format, error) {
	if text == "" {
		return FormatPlain, nil
	}
	for value, name := range formatNames {
		if strings.EqualFold(text, name) {
			return value, nil
		}
	}
	return FormatPlain, errors.ErrInvalidOutputFormat(text, SupportedFormats())
}

// Results carries everything a run produced that a renderer may present.
// Findings holds the reported bucket only; findings hidden by ignore
// rules or by the run's persona surface as counts.
type Results struct {
	Findings   []*finding.Finding
	Ignored    int
	Suppressed int
	Errors     int
	Inputs     int
	Audits     int
	Start      time.Time
	Duration   time.Duration

	// Docs maps input keys to their parsed documents so renderers can
	// excerpt source lines. Renderers tolerate missing entries.
	Docs map[location.InputKey]*location.Document
}

func (r *Results) doc(key location.InputKey) *location.Document {
	if r.Docs == nil {
		return nil
	}
	return r.Docs[key]
}

func (r *Results) counts() map[finding.Severity]int {
	counts := make(map[finding.Severity]int)
	for _, f := range r.Findings {
		counts[f.Severity]++
	}
	return counts
}

// severityOrder lists severities from worst to mildest, the order the
// renderers group findings by.
var severityOrder = []finding.Severity{
	finding.SeverityHigh,
	finding.SeverityMedium,
	finding.SeverityLow,
	finding.SeverityInformational,
	finding.SeverityUnknown,
}

// Generator renders results in a single format to a writer.
type Generator struct {
	out    io.Writer
	format Format
}

// NewGenerator creates a report generator for the given format.
func NewGenerator(out io.Writer, format Format) *Generator {
	return &Generator{out: out, format: format}
}

// Generate renders the results in the generator's format.
func (g *Generator) Generate(results *Results) error {
	switch g.format {
	case FormatJSON:
		return g.generateJSONReport(results)
	case FormatSARIF:
		return g.generateSARIFReport(results)
	case FormatGitHub:
		return g.generateGitHubReport(results)
	default:
		return g.generatePlainReport(results)
	}
}

// generateJSONReport dumps the reported findings as an indented JSON
// array. The shape is part of the tool's interface; scripts parse it.
func (g *Generator) generateJSONReport(r *Results) error {
	findings := r.Findings
	if findings == nil {
		findings = []*finding.Finding{}
	}

	data, err := json.MarshalIndent(findings, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal findings: %w", err)
	}
	data = append(data, '\n')

	_, err = g.out.Write(data)
	return err
}
