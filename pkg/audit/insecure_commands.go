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

// allowUnsecureCommands re-enables the deprecated set-env and add-path
// workflow commands, which let any step output rewrite the environment
// of later steps. Setting it to any value enables them, even "false".
const allowUnsecureCommands = "ACTIONS_ALLOW_UNSECURE_COMMANDS"

// insecureCommands flags environments that enable the deprecated
// workflow commands at the workflow, job, or step level.
type insecureCommands struct {
	meta
}

func NewInsecureCommands(*Context) (Audit, error) {
	return &insecureCommands{
		meta: newMeta("insecure-commands", "execution of insecure workflow commands is enabled"),
	}, nil
}

func (a *insecureCommands) AuditWorkflow(ctx context.Context, workflow *parser.Workflow) ([]*finding.Finding, error) {
	var findings []*finding.Finding

	collect := func(f *finding.Finding, err error) error {
		if err != nil {
			return err
		}
		findings = append(findings, f)
		return nil
	}

	if commandsEnabled(&workflow.Env) {
		if err := collect(a.enabled(workflow.Location(), workflow.Doc())); err != nil {
			return nil, err
		}
	}

	for _, job := range workflow.Jobs {
		if job.IsReusable() {
			continue
		}

		switch {
		case job.Env.IsExpression():
			if err := collect(a.maybeEnabled(job.Location(), workflow.Doc())); err != nil {
				return nil, err
			}
		case commandsEnabled(&job.Env):
			if err := collect(a.enabled(job.Location(), workflow.Doc())); err != nil {
				return nil, err
			}
		}

		for _, step := range job.Steps {
			if !step.IsRun() {
				continue
			}
			switch {
			case step.Env.IsExpression():
				if err := collect(a.maybeEnabled(step.Location(), workflow.Doc())); err != nil {
					return nil, err
				}
			case commandsEnabled(&step.Env):
				if err := collect(a.enabled(step.Location(), workflow.Doc())); err != nil {
					return nil, err
				}
			}
		}
	}

	return findings, nil
}

func (a *insecureCommands) AuditAction(ctx context.Context, action *parser.Action) ([]*finding.Finding, error) {
	var findings []*finding.Finding

	for _, step := range action.Runs.Steps {
		if !step.IsRun() {
			continue
		}
		switch {
		case step.Env.IsExpression():
			f, err := a.maybeEnabled(step.Location(), action.Doc())
			if err != nil {
				return nil, err
			}
			findings = append(findings, f)
		case commandsEnabled(&step.Env):
			f, err := a.enabled(step.Location(), action.Doc())
			if err != nil {
				return nil, err
			}
			findings = append(findings, f)
		}
	}

	return findings, nil
}

func (a *insecureCommands) enabled(loc location.SymbolicLocation, doc *location.Document) (*finding.Finding, error) {
	return a.finding().
		Severity(finding.SeverityHigh).
		Confidence(finding.ConfidenceHigh).
		AddLocation(loc.WithKeys(location.Key("env")).
			AsPrimary().
			Annotated("insecure commands enabled here")).
		Build(doc)
}

func (a *insecureCommands) maybeEnabled(loc location.SymbolicLocation, doc *location.Document) (*finding.Finding, error) {
	return a.finding().
		Severity(finding.SeverityHigh).
		Confidence(finding.ConfidenceLow).
		Persona(finding.PersonaAuditor).
		AddLocation(loc.WithKeys(location.Key("env")).
			AsPrimary().
			Annotated("non-static environment may contain "+allowUnsecureCommands)).
		Build(doc)
}

func commandsEnabled(env *parser.Env) bool {
	value, ok := env.Lookup(allowUnsecureCommands)
	return ok && value != ""
}
