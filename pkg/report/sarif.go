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
	"encoding/json"
	"fmt"
	"time"

	"github.com/argos-audit/argos/pkg/finding"
)

const (
	sarifSchemaURI = "https://raw.githubusercontent.com/oasis-tcs/sarif-spec/master/Schemata/sarif-schema-2.1.0.json"
	toolName       = "argos"
	toolFullName   = "argos - GitHub Actions workflow auditor"
	toolVersion    = "0.1.0"
	toolInfoURI    = "https://github.com/argos-audit/argos"
)

// SARIF is the top level of a Static Analysis Results Interchange Format
// report, per the SARIF v2.1.0 specification.
type SARIF struct {
	Version string     `json:"version"`
	Schema  string     `json:"$schema"`
	Runs    []SARIFRun `json:"runs"`
}

// SARIFRun represents a single analysis run.
type SARIFRun struct {
	Tool        SARIFTool              `json:"tool"`
	Invocations []SARIFInvocation      `json:"invocations,omitempty"`
	Results     []SARIFResult          `json:"results"`
	Artifacts   []SARIFArtifact        `json:"artifacts,omitempty"`
	ColumnKind  string                 `json:"columnKind,omitempty"`
	Properties  map[string]interface{} `json:"properties,omitempty"`
}

// SARIFTool identifies the tool that produced the run.
type SARIFTool struct {
	Driver SARIFDriver `json:"driver"`
}

// SARIFDriver describes the tool driver and the rules it ran.
type SARIFDriver struct {
	Name            string      `json:"name"`
	FullName        string      `json:"fullName,omitempty"`
	Version         string      `json:"version,omitempty"`
	SemanticVersion string      `json:"semanticVersion,omitempty"`
	InformationURI  string      `json:"informationUri,omitempty"`
	Rules           []SARIFRule `json:"rules,omitempty"`
}

// SARIFRule is the reporting descriptor for one audit.
type SARIFRule struct {
	ID                   string                 `json:"id"`
	Name                 string                 `json:"name,omitempty"`
	ShortDescription     SARIFMessage           `json:"shortDescription"`
	HelpURI              string                 `json:"helpUri,omitempty"`
	DefaultConfiguration SARIFRuleConfiguration `json:"defaultConfiguration"`
	Properties           map[string]interface{} `json:"properties,omitempty"`
}

// SARIFRuleConfiguration carries the default reporting level of a rule.
type SARIFRuleConfiguration struct {
	Level string `json:"level"`
}

// SARIFInvocation records when the run happened and whether it succeeded.
type SARIFInvocation struct {
	StartTimeUTC        time.Time `json:"startTimeUtc"`
	EndTimeUTC          time.Time `json:"endTimeUtc"`
	ExecutionSuccessful bool      `json:"executionSuccessful"`
}

// SARIFResult is a single reported finding.
type SARIFResult struct {
	RuleID              string                 `json:"ruleId"`
	RuleIndex           int                    `json:"ruleIndex"`
	Level               string                 `json:"level"`
	Message             SARIFMessage           `json:"message"`
	Locations           []SARIFLocation        `json:"locations"`
	PartialFingerprints map[string]string      `json:"partialFingerprints,omitempty"`
	Properties          map[string]interface{} `json:"properties,omitempty"`
}

// SARIFMessage is a plain-text message.
type SARIFMessage struct {
	Text string `json:"text"`
}

// SARIFLocation ties a result to a place in an artifact.
type SARIFLocation struct {
	PhysicalLocation SARIFPhysicalLocation  `json:"physicalLocation"`
	LogicalLocations []SARIFLogicalLocation `json:"logicalLocations,omitempty"`
	Message          *SARIFMessage          `json:"message,omitempty"`
}

// SARIFPhysicalLocation is a region within an artifact.
type SARIFPhysicalLocation struct {
	ArtifactLocation SARIFArtifactLocation `json:"artifactLocation"`
	Region           *SARIFRegion          `json:"region,omitempty"`
}

// SARIFLogicalLocation names the document element a location points at.
type SARIFLogicalLocation struct {
	Name               string `json:"name,omitempty"`
	FullyQualifiedName string `json:"fullyQualifiedName,omitempty"`
	Kind               string `json:"kind,omitempty"`
}

// SARIFArtifactLocation references an artifact by URI.
type SARIFArtifactLocation struct {
	URI string `json:"uri"`
}

// SARIFRegion is a contiguous extent of an artifact. End columns are
// exclusive, matching the spans findings carry.
type SARIFRegion struct {
	StartLine   int                   `json:"startLine,omitempty"`
	StartColumn int                   `json:"startColumn,omitempty"`
	EndLine     int                   `json:"endLine,omitempty"`
	EndColumn   int                   `json:"endColumn,omitempty"`
	Snippet     *SARIFArtifactContent `json:"snippet,omitempty"`
}

// SARIFArtifactContent holds excerpted artifact text.
type SARIFArtifactContent struct {
	Text string `json:"text,omitempty"`
}

// SARIFArtifact describes one analyzed file.
type SARIFArtifact struct {
	Location       SARIFArtifactLocation `json:"location"`
	Length         int64                 `json:"length,omitempty"`
	MimeType       string                `json:"mimeType,omitempty"`
	SourceLanguage string                `json:"sourceLanguage,omitempty"`
}

// generateSARIFReport renders the findings as a SARIF 2.1.0 run suitable
// for code scanning upload.
func (g *Generator) generateSARIFReport(r *Results) error {
	doc := buildSARIF(r)

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal SARIF: %w", err)
	}
	data = append(data, '\n')

	_, err = g.out.Write(data)
	return err
}

func buildSARIF(r *Results) SARIF {
	var rules []SARIFRule
	ruleIndex := make(map[string]int)
	for _, f := range r.Findings {
		if _, seen := ruleIndex[f.Ident]; seen {
			continue
		}
		ruleIndex[f.Ident] = len(rules)
		rules = append(rules, sarifRule(f))
	}

	results := make([]SARIFResult, 0, len(r.Findings))
	for _, f := range r.Findings {
		results = append(results, sarifResult(f, ruleIndex[f.Ident]))
	}

	run := SARIFRun{
		Tool: SARIFTool{Driver: SARIFDriver{
			Name:            toolName,
			FullName:        toolFullName,
			Version:         toolVersion,
			SemanticVersion: toolVersion,
			InformationURI:  toolInfoURI,
			Rules:           rules,
		}},
		Invocations: []SARIFInvocation{{
			StartTimeUTC:        r.Start.UTC(),
			EndTimeUTC:          r.Start.Add(r.Duration).UTC(),
			ExecutionSuccessful: r.Errors == 0,
		}},
		Results:    results,
		Artifacts:  sarifArtifacts(r),
		ColumnKind: "utf16CodeUnits",
		Properties: map[string]interface{}{
			"inputs":     r.Inputs,
			"audits":     r.Audits,
			"ignored":    r.Ignored,
			"suppressed": r.Suppressed,
		},
	}

	return SARIF{
		Version: "2.1.0",
		Schema:  sarifSchemaURI,
		Runs:    []SARIFRun{run},
	}
}

// sarifRule builds the reporting descriptor for a finding's audit. The
// first finding of each audit supplies the description.
func sarifRule(f *finding.Finding) SARIFRule {
	return SARIFRule{
		ID:               f.Ident,
		Name:             f.Ident,
		ShortDescription: SARIFMessage{Text: f.Desc},
		HelpURI:          f.URL,
		DefaultConfiguration: SARIFRuleConfiguration{
			Level: sarifLevel(f.Severity),
		},
		Properties: map[string]interface{}{
			"security-severity": securitySeverityScore(f.Severity),
			"tags":              []string{"security", "github-actions"},
		},
	}
}

func sarifResult(f *finding.Finding, ruleIndex int) SARIFResult {
	// Primary location first, the order code scanning displays them in.
	locations := make([]SARIFLocation, 0, len(f.Locations))
	primary := f.PrimaryLocation()
	if primary != nil {
		locations = append(locations, sarifLocation(primary))
	}
	for i := range f.Locations {
		loc := &f.Locations[i]
		if loc.Symbolic.Primary {
			continue
		}
		locations = append(locations, sarifLocation(loc))
	}

	var fingerprint string
	if primary != nil {
		fingerprint = fmt.Sprintf("%s:%s:%d",
			f.Ident, primary.Symbolic.Key.Path, primary.Concrete.Span.Start.Line)
	}

	return SARIFResult{
		RuleID:    f.Ident,
		RuleIndex: ruleIndex,
		Level:     sarifLevel(f.Severity),
		Message:   SARIFMessage{Text: f.Desc},
		Locations: locations,
		PartialFingerprints: map[string]string{
			"argos/v1": fingerprint,
		},
		Properties: map[string]interface{}{
			"confidence": f.Confidence.String(),
			"persona":    f.Persona.String(),
		},
	}
}

func sarifLocation(loc *finding.Location) SARIFLocation {
	span := loc.Concrete.Span
	physical := SARIFPhysicalLocation{
		ArtifactLocation: SARIFArtifactLocation{URI: loc.Symbolic.Key.Path},
	}
	if span.Start.Line > 0 {
		physical.Region = &SARIFRegion{
			StartLine:   span.Start.Line,
			StartColumn: span.Start.Column,
			EndLine:     span.End.Line,
			EndColumn:   span.End.Column,
			Snippet:     &SARIFArtifactContent{Text: loc.Concrete.Feature},
		}
	}

	out := SARIFLocation{PhysicalLocation: physical}
	if note := loc.Symbolic.Annotation; note != "" {
		out.Message = &SARIFMessage{Text: note}
	}
	if route := loc.Symbolic.Route; route.Len() > 0 {
		components := route.Components()
		out.LogicalLocations = []SARIFLogicalLocation{{
			Name:               components[len(components)-1].String(),
			FullyQualifiedName: route.String(),
			Kind:               "property",
		}}
	}
	return out
}

// sarifArtifacts lists each document a reported finding points into.
func sarifArtifacts(r *Results) []SARIFArtifact {
	seen := make(map[string]bool)
	var artifacts []SARIFArtifact
	for _, f := range r.Findings {
		for i := range f.Locations {
			key := f.Locations[i].Symbolic.Key
			if seen[key.Path] {
				continue
			}
			seen[key.Path] = true

			artifact := SARIFArtifact{
				Location:       SARIFArtifactLocation{URI: key.Path},
				MimeType:       "text/yaml",
				SourceLanguage: "yaml",
			}
			if doc := r.doc(key); doc != nil {
				artifact.Length = int64(len(doc.Raw()))
			}
			artifacts = append(artifacts, artifact)
		}
	}
	return artifacts
}

// sarifLevel maps a severity to its SARIF reporting level.
func sarifLevel(s finding.Severity) string {
	switch s {
	case finding.SeverityHigh:
		return "error"
	case finding.SeverityMedium:
		return "warning"
	case finding.SeverityLow, finding.SeverityInformational:
		return "note"
	default:
		return "none"
	}
}

// securitySeverityScore maps a severity onto the 0-10 scale GitHub code
// scanning uses to bucket alerts.
func securitySeverityScore(s finding.Severity) string {
	switch s {
	case finding.SeverityHigh:
		return "8.0"
	case finding.SeverityMedium:
		return "5.0"
	case finding.SeverityLow:
		return "3.0"
	default:
		return "0.0"
	}
}
