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

package audit

import (
	"context"

	"github.com/argos-audit/argos/pkg/errors"
	"github.com/argos-audit/argos/pkg/finding"
	"github.com/argos-audit/argos/pkg/location"
	"github.com/argos-audit/argos/pkg/parser"
	"github.com/argos-audit/argos/pkg/vulndb"
)

// knownVulnerableActions checks each pinned action against the OSV
// advisory database and reports any published vulnerabilities for the
// used version.
type knownVulnerableActions struct {
	meta
	db *vulndb.Client
}

func NewKnownVulnerableActions(c *Context) (Audit, error) {
	const id = "known-vulnerable-actions"
	if c.Offline {
		return nil, errors.NewSkipError("offline mode is enabled", id)
	}
	if c.VulnDB == nil {
		return nil, errors.NewSkipError("no vulnerability database client is available", id)
	}
	return &knownVulnerableActions{
		meta: newMeta(id, "action has a known vulnerability"),
		db:   c.VulnDB,
	}, nil
}

func (a *knownVulnerableActions) AuditWorkflow(ctx context.Context, workflow *parser.Workflow) ([]*finding.Finding, error) {
	var findings []*finding.Finding

	for _, job := range workflow.Jobs {
		for _, step := range job.Steps {
			if !step.IsUses() {
				continue
			}
			fs, err := a.processUses(ctx, step.Uses, step.LocationWithKeys(location.Key("uses")), workflow.Doc())
			if err != nil {
				return nil, err
			}
			findings = append(findings, fs...)
		}
	}

	return findings, nil
}

func (a *knownVulnerableActions) AuditAction(ctx context.Context, action *parser.Action) ([]*finding.Finding, error) {
	var findings []*finding.Finding

	for _, step := range action.Runs.Steps {
		if !step.IsUses() {
			continue
		}
		fs, err := a.processUses(ctx, step.Uses, step.LocationWithKeys(location.Key("uses")), action.Doc())
		if err != nil {
			return nil, err
		}
		findings = append(findings, fs...)
	}

	return findings, nil
}

func (a *knownVulnerableActions) processUses(ctx context.Context, raw string, loc location.SymbolicLocation, doc *location.Document) ([]*finding.Finding, error) {
	uses, err := parser.ParseUses(raw)
	if err != nil {
		return nil, nil
	}
	if uses.Kind != parser.UsesRepo || uses.Ref == "" {
		return nil, nil
	}

	advisories, err := a.db.Advisories(ctx, uses.Slug(), uses.Ref)
	if err != nil {
		return nil, err
	}

	var findings []*finding.Finding
	for _, adv := range advisories {
		f, err := a.finding().
			Severity(advisorySeverity(adv.Severity)).
			Confidence(finding.ConfidenceHigh).
			AddLocation(loc.AsPrimary().
				Annotated(adv.ID).
				WithURL("https://osv.dev/vulnerability/" + adv.ID)).
			Build(doc)
		if err != nil {
			return nil, err
		}
		findings = append(findings, f)
	}
	return findings, nil
}

func advisorySeverity(severity string) finding.Severity {
	switch severity {
	case "low":
		return finding.SeverityLow
	case "medium":
		return finding.SeverityMedium
	case "high", "critical":
		return finding.SeverityHigh
	default:
		return finding.SeverityUnknown
	}
}
