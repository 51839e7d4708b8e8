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
	"strings"

	"github.com/argos-audit/argos/pkg/expr"
	"github.com/argos-audit/argos/pkg/finding"
	"github.com/argos-audit/argos/pkg/parser"
)

// artipacked flags workflows that check out the repository with
// persisted credentials and then upload artifacts that can contain
// them. actions/checkout persists the job's token into the local git
// config by default, and artifact uploads rooted at the workspace
// carry that config out of the runner.
type artipacked struct {
	meta
	noActionAudit
}

func NewArtipacked(*Context) (Audit, error) {
	return &artipacked{
		meta: newMeta("artipacked", "credential persistence through GitHub Actions artifacts"),
	}, nil
}

func (a *artipacked) AuditWorkflow(ctx context.Context, workflow *parser.Workflow) ([]*finding.Finding, error) {
	var findings []*finding.Finding

	for _, job := range workflow.Jobs {
		if job.IsReusable() {
			continue
		}

		type checkout struct {
			step    *parser.Step
			persona finding.Persona
		}
		var checkouts []checkout
		var uploads []*parser.Step

		for _, step := range job.Steps {
			if !step.IsUses() {
				continue
			}
			uses, err := parser.ParseUses(step.Uses)
			if err != nil {
				continue
			}

			switch {
			case uses.MatchesSlug("actions/checkout"):
				persona := finding.PersonaRegular
				switch step.With["persist-credentials"] {
				case "false":
					continue
				case "true":
					// An explicit opt-in is presumably deliberate, so only
					// the auditor persona hears about it.
					persona = finding.PersonaAuditor
				}
				checkouts = append(checkouts, checkout{step: step, persona: persona})
			case uses.MatchesSlug("actions/upload-artifact"):
				if dangerousArtifactPath(step.With["path"]) {
					uploads = append(uploads, step)
				}
			}
		}

		if len(uploads) == 0 {
			for _, co := range checkouts {
				f, err := a.finding().
					Severity(finding.SeverityMedium).
					Confidence(finding.ConfidenceLow).
					Persona(co.persona).
					AddLocation(co.step.Location().AsPrimary().
						Annotated("does not set persist-credentials: false")).
					Build(workflow.Doc())
				if err != nil {
					return nil, err
				}
				findings = append(findings, f)
			}
			continue
		}

		for _, co := range checkouts {
			for _, upload := range uploads {
				if co.step.Index >= upload.Index {
					continue
				}
				f, err := a.finding().
					Severity(finding.SeverityHigh).
					Confidence(finding.ConfidenceHigh).
					Persona(co.persona).
					AddLocation(co.step.Location().AsPrimary().
						Annotated("does not set persist-credentials: false")).
					AddLocation(upload.Location().
						Annotated("may leak the credentials persisted above")).
					Build(workflow.Doc())
				if err != nil {
					return nil, err
				}
				findings = append(findings, f)
			}
		}
	}

	return findings, nil
}

// dangerousArtifactPath reports whether an upload path can reach the
// checked-out repository root, where the persisted credentials live.
func dangerousArtifactPath(path string) bool {
	for _, pattern := range strings.Split(path, "\n") {
		pattern = strings.TrimSpace(pattern)
		switch pattern {
		case ".", "./", "..", "../":
			return true
		}
		for _, tpl := range expr.ExtractTemplates(pattern) {
			if strings.Contains(strings.ToLower(tpl.Raw), "github.workspace") {
				return true
			}
		}
	}
	return false
}
