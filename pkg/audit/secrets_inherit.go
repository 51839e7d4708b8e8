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

// secretsInherit flags reusable-workflow calls that pass `secrets:
// inherit`, which hands every secret the caller can reach to the called
// workflow instead of the subset it needs.
type secretsInherit struct {
	meta
	noActionAudit
}

func NewSecretsInherit(*Context) (Audit, error) {
	return &secretsInherit{
		meta: newMeta("secrets-inherit", "secrets unconditionally inherited by called workflow"),
	}, nil
}

func (a *secretsInherit) AuditWorkflow(ctx context.Context, workflow *parser.Workflow) ([]*finding.Finding, error) {
	var findings []*finding.Finding

	for _, job := range workflow.Jobs {
		if !job.IsReusable() || !job.Secrets.Inherit {
			continue
		}
		f, err := a.finding().
			Severity(finding.SeverityMedium).
			Confidence(finding.ConfidenceHigh).
			AddLocation(job.Location().
				WithKeys(location.Key("uses")).
				AsPrimary().
				Annotated("this reusable workflow")).
			AddLocation(job.Location().
				WithKeys(location.Key("secrets")).
				Annotated("inherits all parent secrets")).
			Build(workflow.Doc())
		if err != nil {
			return nil, err
		}
		findings = append(findings, f)
	}

	return findings, nil
}
