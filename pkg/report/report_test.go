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

package report

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/argos-audit/argos/pkg/finding"
	"github.com/argos-audit/argos/pkg/location"
	"github.com/argos-audit/argos/pkg/parser"
	"github.com/fatih/color"
)

const reportWorkflow = `name: CI
on: push

jobs:
  build:
    runs-on: ubuntu-latest
    steps:
      - uses: actions/checkout@v4
      - name: Greet
        run: echo "Hello ${{ github.event.issue.title }}"
`

func reportInput(t *testing.T) *parser.Workflow {
	t.Helper()
	wf, err := parser.LoadWorkflowBytes(location.LocalKey(".github/workflows/ci.yml"), []byte(reportWorkflow))
	if err != nil {
		t.Fatalf("LoadWorkflowBytes() error = %v", err)
	}
	return wf
}

func reportFinding(t *testing.T, wf *parser.Workflow, ident string, sev finding.Severity, conf finding.Confidence) *finding.Finding {
	t.Helper()
	site := wf.Location().
		WithKeys(location.Key("jobs"), location.Key("build"), location.Key("steps"), location.Index(1), location.Key("run")).
		Annotated("this expression expands untrusted input").
		AsPrimary()
	f, err := finding.NewFinding(ident, "code injection via template expansion", "https://example.com/audits#"+ident).
		Severity(sev).
		Confidence(conf).
		AddLocation(site).
		Build(wf.Doc())
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	return f
}

func disableColor(t *testing.T) {
	t.Helper()
	old := color.NoColor
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = old })
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"plain", FormatPlain, false},
		{"json", FormatJSON, false},
		{"sarif", FormatSARIF, false},
		{"github", FormatGitHub, false},
		{"SARIF", FormatSARIF, false},
		{"", FormatPlain, false},
		{"yaml", FormatPlain, true},
	}

	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseFormat(%q) expected an error", tt.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseFormat(%q) error = %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseFormat(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestGeneratePlainReport(t *testing.T) {
	disableColor(t)
	wf := reportInput(t)
	high := reportFinding(t, wf, "template-injection", finding.SeverityHigh, finding.ConfidenceHigh)
	low := reportFinding(t, wf, "unpinned-uses", finding.SeverityLow, finding.ConfidenceMedium)

	results := &Results{
		Findings:   []*finding.Finding{high, low},
		Ignored:    2,
		Suppressed: 1,
		Inputs:     1,
		Audits:     20,
		Duration:   250 * time.Millisecond,
		Docs:       map[location.InputKey]*location.Document{wf.Key(): wf.Doc()},
	}

	var buf bytes.Buffer
	if err := NewGenerator(&buf, FormatPlain).Generate(results); err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	out := buf.String()
	for _, want := range []string{
		"ARGOS AUDIT RESULTS",
		"► SUMMARY",
		"■ HIGH SEVERITY FINDINGS",
		"■ LOW SEVERITY FINDINGS",
		"template-injection: code injection via template expansion",
		".github/workflows/ci.yml:10:9",
		"10 | ",
		"this expression expands untrusted input",
		"https://example.com/audits#template-injection",
		"Not shown: 2 ignored, 1 hidden by persona.",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("plain report missing %q\noutput:\n%s", want, out)
		}
	}
	if !strings.Contains(out, "^") {
		t.Errorf("plain report has no caret marker\noutput:\n%s", out)
	}
}

func TestGeneratePlainReportZeroState(t *testing.T) {
	disableColor(t)

	var buf bytes.Buffer
	results := &Results{Ignored: 3, Inputs: 2, Audits: 20}
	if err := NewGenerator(&buf, FormatPlain).Generate(results); err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "NO ISSUES FOUND") {
		t.Errorf("zero state missing success message\noutput:\n%s", out)
	}
	if !strings.Contains(out, "Not shown: 3 ignored.") {
		t.Errorf("zero state missing hidden counts\noutput:\n%s", out)
	}
	if strings.Contains(out, "■") {
		t.Errorf("zero state should not list findings\noutput:\n%s", out)
	}
}

func TestGenerateJSONReport(t *testing.T) {
	wf := reportInput(t)
	f := reportFinding(t, wf, "template-injection", finding.SeverityHigh, finding.ConfidenceHigh)

	var buf bytes.Buffer
	if err := NewGenerator(&buf, FormatJSON).Generate(&Results{Findings: []*finding.Finding{f}}); err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	var decoded []map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if len(decoded) != 1 {
		t.Fatalf("got %d findings, want 1", len(decoded))
	}

	got := decoded[0]
	if got["ident"] != "template-injection" {
		t.Errorf("ident = %v", got["ident"])
	}
	if got["severity"] != "high" {
		t.Errorf("severity = %v, want high", got["severity"])
	}
	locations, ok := got["locations"].([]interface{})
	if !ok || len(locations) == 0 {
		t.Errorf("locations missing from JSON output: %v", got["locations"])
	}
}

func TestGenerateJSONReportEmpty(t *testing.T) {
	var buf bytes.Buffer
	if err := NewGenerator(&buf, FormatJSON).Generate(&Results{}); err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if got := strings.TrimSpace(buf.String()); got != "[]" {
		t.Errorf("empty run rendered %q, want []", got)
	}
}

func TestGenerateGitHubReport(t *testing.T) {
	wf := reportInput(t)
	f := reportFinding(t, wf, "template-injection", finding.SeverityHigh, finding.ConfidenceHigh)

	var buf bytes.Buffer
	if err := NewGenerator(&buf, FormatGitHub).Generate(&Results{Findings: []*finding.Finding{f}}); err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	line := strings.TrimSpace(buf.String())
	if !strings.HasPrefix(line, "::error file=.github/workflows/ci.yml,line=10,") {
		t.Errorf("unexpected annotation: %s", line)
	}
	if !strings.Contains(line, "title=template-injection") {
		t.Errorf("annotation is missing its title: %s", line)
	}
	if !strings.Contains(line, "::code injection via template expansion (") {
		t.Errorf("annotation is missing its message: %s", line)
	}
}

func TestAnnotationEscaping(t *testing.T) {
	f := &finding.Finding{
		Ident:    "demo-rule",
		Desc:     "first line\nsecond, 50%",
		Severity: finding.SeverityMedium,
		Locations: []finding.Location{{
			Symbolic: location.SymbolicLocation{Key: location.LocalKey("ci.yml"), Primary: true},
			Concrete: location.ConcreteLocation{Span: location.Span{
				Start: location.Point{Line: 3, Column: 1},
				End:   location.Point{Line: 3, Column: 10},
			}},
		}},
	}

	got := annotationFor(f)
	if strings.ContainsAny(got, "\n\r") {
		t.Errorf("annotation contains raw line breaks: %q", got)
	}
	for _, want := range []string{"::warning ", "%0A", "%25"} {
		if !strings.Contains(got, want) {
			t.Errorf("annotation missing %q: %q", want, got)
		}
	}
}

func TestAnnotationSpanEndingAtLineBreak(t *testing.T) {
	f := &finding.Finding{
		Ident:    "demo-rule",
		Desc:     "spans several lines",
		Severity: finding.SeverityHigh,
		Locations: []finding.Location{{
			Symbolic: location.SymbolicLocation{Key: location.LocalKey("ci.yml"), Primary: true},
			Concrete: location.ConcreteLocation{Span: location.Span{
				Start: location.Point{Line: 4, Column: 3},
				End:   location.Point{Line: 6, Column: 1},
			}},
		}},
	}

	got := annotationFor(f)
	if !strings.Contains(got, "line=4") || !strings.Contains(got, "endLine=5") {
		t.Errorf("span ending at a line break rendered wrong lines: %q", got)
	}
	if strings.Contains(got, "col=") {
		t.Errorf("multi-line annotation should not carry columns: %q", got)
	}
}

func TestAnnotationLevels(t *testing.T) {
	tests := []struct {
		severity finding.Severity
		want     string
	}{
		{finding.SeverityHigh, "error"},
		{finding.SeverityMedium, "warning"},
		{finding.SeverityLow, "warning"},
		{finding.SeverityInformational, "notice"},
		{finding.SeverityUnknown, "notice"},
	}
	for _, tt := range tests {
		if got := annotationLevel(tt.severity); got != tt.want {
			t.Errorf("annotationLevel(%s) = %s, want %s", tt.severity, got, tt.want)
		}
	}
}

func TestSeverityBar(t *testing.T) {
	if got := severityBar(0, 0, 10); got != strings.Repeat("░", 10) {
		t.Errorf("empty bar = %q", got)
	}
	if got := severityBar(2, 4, 10); !strings.HasPrefix(got, "█████░") {
		t.Errorf("half bar = %q", got)
	}
	// A non-zero count always shows at least one cell.
	if got := severityBar(1, 1000, 10); !strings.HasPrefix(got, "█") {
		t.Errorf("minimal bar = %q", got)
	}
	for _, got := range []string{severityBar(0, 0, 10), severityBar(2, 4, 10), severityBar(1, 1000, 10)} {
		if n := len([]rune(got)); n != 10 {
			t.Errorf("bar width = %d, want 10 (%q)", n, got)
		}
	}
}
