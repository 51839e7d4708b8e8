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

	"github.com/argos-audit/argos/pkg/finding"
	"github.com/argos-audit/argos/pkg/location"
	"github.com/argos-audit/argos/pkg/parser"
)

// unpinnedUses flags action references that float on a mutable ref. A
// completely unpinned reference tracks the default branch; a tag or
// branch pin still moves when the target repository rewrites it. Only a
// commit SHA (or docker digest) is immutable.
type unpinnedUses struct {
	meta
}

func NewUnpinnedUses(*Context) (Audit, error) {
	return &unpinnedUses{
		meta: newMeta("unpinned-uses", "unpinned action reference"),
	}, nil
}

func (a *unpinnedUses) AuditWorkflow(ctx context.Context, workflow *parser.Workflow) ([]*finding.Finding, error) {
	var findings []*finding.Finding

	for _, job := range workflow.Jobs {
		for _, step := range job.Steps {
			if !step.IsUses() {
				continue
			}
			f, err := a.evaluatePinning(step.Uses, step.LocationWithKeys(location.Key("uses")), workflow.Doc())
			if err != nil {
				return nil, err
			}
			if f != nil {
				findings = append(findings, f)
			}
		}
	}

	return findings, nil
}

func (a *unpinnedUses) AuditAction(ctx context.Context, action *parser.Action) ([]*finding.Finding, error) {
	var findings []*finding.Finding

	for _, step := range action.Runs.Steps {
		if !step.IsUses() {
			continue
		}
		f, err := a.evaluatePinning(step.Uses, step.LocationWithKeys(location.Key("uses")), action.Doc())
		if err != nil {
			return nil, err
		}
		if f != nil {
			findings = append(findings, f)
		}
	}

	return findings, nil
}

func (a *unpinnedUses) evaluatePinning(raw string, loc location.SymbolicLocation, doc *location.Document) (*finding.Finding, error) {
	uses, err := parser.ParseUses(raw)
	if err != nil {
		return nil, nil
	}
	// Unpinned local references are fully controlled by the repository
	// itself, so there is nothing to pin against.
	if uses.Kind == parser.UsesLocal {
		return nil, nil
	}

	var (
		annotation string
		severity   finding.Severity
		persona    finding.Persona
	)
	switch {
	case uses.Unpinned():
		annotation = "action is not pinned to a tag, branch, or hash ref"
		severity = finding.SeverityMedium
		persona = finding.PersonaRegular
	case uses.Unhashed():
		annotation = "action is not pinned to a hash ref"
		severity = finding.SeverityLow
		persona = finding.PersonaPedantic
	default:
		return nil, nil
	}

	return a.finding().
		Severity(severity).
		Confidence(finding.ConfidenceHigh).
		Persona(persona).
		AddLocation(loc.AsPrimary().Annotated(annotation)).
		Build(doc)
}
