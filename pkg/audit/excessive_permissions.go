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
	"fmt"
	"sort"

	"github.com/argos-audit/argos/pkg/finding"
	"github.com/argos-audit/argos/pkg/location"
	"github.com/argos-audit/argos/pkg/parser"
)

// excessivePermissions flags permission grants broader than a workflow
// plausibly needs: blanket read-all or write-all blocks, workflow-level
// write scopes, and workflows that run on the repository's default
// token permissions without narrowing them.
type excessivePermissions struct {
	meta
	noActionAudit
}

func NewExcessivePermissions(*Context) (Audit, error) {
	return &excessivePermissions{
		meta: newMeta("excessive-permissions", "overly broad workflow or job-level permissions"),
	}, nil
}

func (a *excessivePermissions) AuditWorkflow(ctx context.Context, workflow *parser.Workflow) ([]*finding.Finding, error) {
	var findings []*finding.Finding

	emit := func(severity finding.Severity, confidence finding.Confidence, loc location.SymbolicLocation) error {
		f, err := a.finding().
			Severity(severity).
			Confidence(confidence).
			AddLocation(loc.AsPrimary()).
			Build(workflow.Doc())
		if err != nil {
			return err
		}
		findings = append(findings, f)
		return nil
	}

	// Workflow level.
	perms := &workflow.Permissions
	switch {
	case !perms.Present:
		// No explicit block at all: the workflow runs on the repository's
		// default token permissions. There is no permissions key to point
		// at, so the finding covers the workflow itself.
		if err := emit(finding.SeverityMedium, finding.ConfidenceLow,
			workflow.Location().
				Annotated("workflow uses default permissions, which may be excessive")); err != nil {
			return nil, err
		}
	case perms.Base == "read-all":
		if err := emit(finding.SeverityMedium, finding.ConfidenceHigh,
			workflow.Location().WithKeys(location.Key("permissions")).
				Annotated("uses read-all permissions, which may grant read access to more resources than necessary")); err != nil {
			return nil, err
		}
	case perms.Base == "write-all":
		if err := emit(finding.SeverityHigh, finding.ConfidenceHigh,
			workflow.Location().WithKeys(location.Key("permissions")).
				Annotated("uses write-all permissions, which grants destructive access to repository resources")); err != nil {
			return nil, err
		}
	default:
		// An explicit scope mapping. Write grants at the workflow level
		// apply to every job, which is almost never what the author needs.
		scopes := perms.WriteScopes()
		sort.Strings(scopes)
		for _, scope := range scopes {
			if err := emit(finding.SeverityHigh, finding.ConfidenceHigh,
				workflow.Location().WithKeys(location.Key("permissions"), location.Key(scope)).
					Annotated(fmt.Sprintf("%s: write is almost always unnecessary", scope))); err != nil {
				return nil, err
			}
		}
	}

	// Job level. A job without its own block inherits the workflow's, and
	// an explicit job-level mapping is assumed to be deliberately scoped;
	// only blanket grants are worth reporting here.
	for _, job := range workflow.Jobs {
		if job.IsReusable() {
			continue
		}
		switch job.Permissions.Base {
		case "read-all":
			if err := emit(finding.SeverityMedium, finding.ConfidenceHigh,
				job.Location().WithKeys(location.Key("permissions")).
					Annotated("uses read-all permissions, which may grant read access to more resources than necessary")); err != nil {
				return nil, err
			}
		case "write-all":
			if err := emit(finding.SeverityHigh, finding.ConfidenceHigh,
				job.Location().WithKeys(location.Key("permissions")).
					Annotated("uses write-all permissions, which grants destructive access to repository resources")); err != nil {
				return nil, err
			}
		}
	}

	return findings, nil
}
