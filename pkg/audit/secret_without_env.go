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
	"sort"
	"strings"

	"github.com/argos-audit/argos/pkg/finding"
	"github.com/argos-audit/argos/pkg/parser"
)

// secretWithoutEnv flags steps that consume secrets in jobs with no
// deployment environment. An environment lets the repository attach
// reviewers and branch rules to the secret's use; without one, any ref
// that reaches the job reads the secret.
type secretWithoutEnv struct {
	meta
	noActionAudit
}

func NewSecretWithoutEnv(*Context) (Audit, error) {
	return &secretWithoutEnv{
		meta: newMeta("secret-without-env", "secret used without an environment to gate it"),
	}, nil
}

func (a *secretWithoutEnv) AuditWorkflow(ctx context.Context, workflow *parser.Workflow) ([]*finding.Finding, error) {
	var findings []*finding.Finding

	for _, job := range workflow.Jobs {
		if job.Environment != nil {
			continue
		}

		for _, step := range job.Steps {
			for _, value := range secretBearingValues(step) {
				if !strings.Contains(value, "secrets") {
					continue
				}
				f, err := a.finding().
					Severity(finding.SeverityHigh).
					Confidence(finding.ConfidenceHigh).
					Persona(finding.PersonaPedantic).
					AddLocation(step.Location().AsPrimary()).
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

// secretBearingValues returns the step's inputs that could carry a
// secret: with: values for an action step, environment values for a run
// step. A fully computed env block is returned as its raw expression.
func secretBearingValues(step *parser.Step) []string {
	if step.IsUses() {
		return sortedValues(step.With)
	}
	if step.Env.IsExpression() {
		return []string{step.Env.Raw}
	}
	return sortedValues(step.Env.Vars)
}

func sortedValues(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	values := make([]string, 0, len(keys))
	for _, k := range keys {
		values = append(values, m[k])
	}
	return values
}
