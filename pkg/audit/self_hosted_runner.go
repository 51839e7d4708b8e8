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

	"github.com/argos-audit/argos/pkg/finding"
	"github.com/argos-audit/argos/pkg/location"
	"github.com/argos-audit/argos/pkg/parser"
)

// selfHostedRunner surfaces jobs that run on self-hosted runners. Using
// one is not a vulnerability in itself, so every finding here carries
// the auditor persona and an unknown severity: the operator has to
// judge how well the runner is isolated.
type selfHostedRunner struct {
	meta
	noActionAudit
}

func NewSelfHostedRunner(*Context) (Audit, error) {
	return &selfHostedRunner{
		meta: newMeta("self-hosted-runner", "runs on a self-hosted runner"),
	}, nil
}

func (a *selfHostedRunner) AuditWorkflow(ctx context.Context, workflow *parser.Workflow) ([]*finding.Finding, error) {
	var findings []*finding.Finding

	emit := func(job *parser.Job, confidence finding.Confidence, annotation string) error {
		f, err := a.finding().
			Severity(finding.SeverityUnknown).
			Confidence(confidence).
			Persona(finding.PersonaAuditor).
			AddLocation(job.Location().
				WithKeys(location.Key("runs-on")).
				AsPrimary().
				Annotated(annotation)).
			Build(workflow.Doc())
		if err != nil {
			return err
		}
		findings = append(findings, f)
		return nil
	}

	for _, job := range workflow.Jobs {
		if job.IsReusable() {
			continue
		}

		if labels := job.RunsOn.Labels; len(labels) > 0 {
			switch {
			case labels[0] == "self-hosted":
				// All self-hosted runners carry `self-hosted` as their
				// first label.
				if err := emit(job, finding.ConfidenceHigh, "self-hosted runner used here"); err != nil {
					return nil, err
				}
			case expandsIntoRunner(labels):
				if err := emit(job, finding.ConfidenceLow, "expression may expand into a self-hosted runner"); err != nil {
					return nil, err
				}
			}
		} else if job.RunsOn.Group != "" {
			// Runner groups are only available for self-hosted runners
			// and GitHub's larger runners. We can't tell which from the
			// workflow alone.
			if err := emit(job, finding.ConfidenceLow, "runner group implies self-hosted runner"); err != nil {
				return nil, err
			}
		}
	}

	return findings, nil
}

func expandsIntoRunner(labels []string) bool {
	for _, label := range labels {
		if strings.Contains(label, "${{") {
			return true
		}
	}
	return false
}
