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

	"github.com/argos-audit/argos/pkg/finding"
	"github.com/argos-audit/argos/pkg/location"
	"github.com/argos-audit/argos/pkg/parser"
	"github.com/argos-audit/argos/pkg/shell"
)

// githubEnv flags run steps that write to GITHUB_ENV or GITHUB_PATH in
// workflows with attacker-triggerable events. Writes to either file
// shape the environment of every later step, so attacker-influenced
// content reaching them converts into code execution (LD_PRELOAD,
// BASH_ENV, PATH shadowing).
type githubEnv struct {
	meta
	noActionAudit
}

func NewGitHubEnv(*Context) (Audit, error) {
	return &githubEnv{
		meta: newMeta("github-env", "dangerous use of environment file"),
	}, nil
}

func (a *githubEnv) AuditWorkflow(ctx context.Context, workflow *parser.Workflow) ([]*finding.Finding, error) {
	// Without a dangerous trigger, the job environment only sees content
	// the repository already controls.
	if !workflow.On.Has("pull_request_target") && !workflow.On.Has("workflow_run") {
		return nil, nil
	}

	var findings []*finding.Finding
	for _, job := range workflow.Jobs {
		for _, step := range job.Steps {
			if !step.IsRun() {
				continue
			}
			for _, file := range shell.EnvFileWrites(step.Run, step.ShellOrDefault(), "GITHUB_ENV", "GITHUB_PATH") {
				f, err := a.finding().
					Severity(finding.SeverityHigh).
					Confidence(finding.ConfidenceHigh).
					AddLocation(step.LocationWithKeys(location.Key("run")).
						AsPrimary().
						Annotated(fmt.Sprintf("write to %s may allow code execution", file))).
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
