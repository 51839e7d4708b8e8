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
	"strings"

	"github.com/hashicorp/go-hclog"

	"github.com/argos-audit/argos/pkg/expr"
	"github.com/argos-audit/argos/pkg/finding"
	"github.com/argos-audit/argos/pkg/location"
	"github.com/argos-audit/argos/pkg/parser"
)

// safeContexts are expansions that never contain attacker-controlled
// text: numeric identifiers, fixed-format values, and values the
// platform itself fixes. Keys are lower case; the expression language
// is case-insensitive.
var safeContexts = map[string]bool{
	"github.event_name":                 true,
	"github.event.issue.number":         true,
	"github.event.merge_group.base_sha": true,
	"github.event.number":               true,
	"github.event.pull_request.number":  true,
	"github.event.workflow_run.id":      true,
	"github.repository":                 true,
	"github.repository_id":              true,
	"github.repositoryurl":              true,
	"github.repository_owner":           true,
	"github.repository_owner_id":        true,
	"github.run_attempt":                true,
	"github.run_id":                     true,
	"github.run_number":                 true,
	"github.sha":                        true,
	"github.token":                      true,
	"github.workspace":                  true,
	"runner.arch":                       true,
	"runner.debug":                      true,
	"runner.os":                         true,
}

// templateInjection flags template expansions inside executable script
// text. Expansion happens before the shell ever runs, so any expanded
// context that an attacker influences becomes code execution in the
// runner.
type templateInjection struct {
	meta
	logger hclog.Logger
}

func NewTemplateInjection(ctx *Context) (Audit, error) {
	logger := ctx.Logger
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &templateInjection{
		meta:   newMeta("template-injection", "code injection via template expansion"),
		logger: logger,
	}, nil
}

// injection is one reportable expansion inside a script.
type injection struct {
	text       string
	severity   finding.Severity
	confidence finding.Confidence
	persona    finding.Persona
}

func (a *templateInjection) AuditWorkflow(ctx context.Context, workflow *parser.Workflow) ([]*finding.Finding, error) {
	var findings []*finding.Finding

	for _, job := range workflow.Jobs {
		if job.IsReusable() {
			continue
		}
		for _, step := range job.Steps {
			script, scriptKeys, ok := stepScript(step.Run, step.Uses, step.With)
			if !ok {
				continue
			}
			for _, inj := range a.injectableExpressions(script, job.Strategy) {
				f, err := a.finding().
					Severity(inj.severity).
					Confidence(inj.confidence).
					Persona(inj.persona).
					AddLocation(step.LocationWithName()).
					AddLocation(step.LocationWithKeys(scriptKeys...).AsPrimary().
						Annotated(fmt.Sprintf("%s may expand into attacker-controllable code", inj.text))).
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

func (a *templateInjection) AuditAction(ctx context.Context, action *parser.Action) ([]*finding.Finding, error) {
	if !action.IsComposite() {
		return nil, nil
	}

	var findings []*finding.Finding
	for _, step := range action.Runs.Steps {
		script, scriptKeys, ok := stepScript(step.Run, step.Uses, step.With)
		if !ok {
			continue
		}
		// Composite actions have no matrix, so matrix contexts are
		// vacuously static here.
		for _, inj := range a.injectableExpressions(script, nil) {
			f, err := a.finding().
				Severity(inj.severity).
				Confidence(inj.confidence).
				Persona(inj.persona).
				AddLocation(step.LocationWithName()).
				AddLocation(step.LocationWithKeys(scriptKeys...).AsPrimary().
					Annotated(fmt.Sprintf("%s may expand into attacker-controllable code", inj.text))).
				Build(action.Doc())
			if err != nil {
				return nil, err
			}
			findings = append(findings, f)
		}
	}

	return findings, nil
}

// stepScript returns the step's executable script text and the route of
// the key holding it. Both shell steps and actions/github-script steps
// carry scripts.
func stepScript(run, uses string, with parser.With) (string, []location.RouteComponent, bool) {
	if run != "" {
		return run, []location.RouteComponent{location.Key("run")}, true
	}
	if uses != "" {
		if parsed, err := parser.ParseUses(uses); err == nil && parsed.MatchesSlug("actions/github-script") {
			if script, ok := with["script"]; ok {
				return script, []location.RouteComponent{location.Key("with"), location.Key("script")}, true
			}
		}
	}
	return "", nil, false
}

// injectableExpressions grades every template expansion in script.
func (a *templateInjection) injectableExpressions(script string, strategy *parser.Strategy) []injection {
	var out []injection

	for _, tpl := range expr.ExtractTemplates(script) {
		parsed, err := expr.Parse(tpl.Raw)
		if err != nil {
			a.logger.Warn("couldn't parse expression", "expression", tpl.Raw, "error", err)
			continue
		}

		if expr.IsSafe(parsed) {
			// Literal-only expansion. Nothing can go wrong today, but
			// pedantic runs hear about scripts built by expansion anyway.
			out = append(out, injection{
				text:       script[tpl.Start:tpl.End],
				severity:   finding.SeverityUnknown,
				confidence: finding.ConfidenceUnknown,
				persona:    finding.PersonaPedantic,
			})
			continue
		}

		for _, contextExpr := range expr.Contexts(parsed) {
			raw := strings.ToLower(contextExpr.Raw)
			switch {
			case strings.HasPrefix(raw, "secrets."):
				// Expanded secrets are the secret audits' concern, and
				// they aren't attacker-controllable.
				continue
			case safeContexts[raw]:
				continue
			case strings.HasPrefix(raw, "inputs."):
				out = append(out, injection{contextExpr.Raw, finding.SeverityHigh, finding.ConfidenceLow, finding.PersonaRegular})
			case strings.HasPrefix(raw, "env."):
				// Environment variables are *usually* static, and even
				// computed ones are visible nearby in the same document.
				out = append(out, injection{contextExpr.Raw, finding.SeverityLow, finding.ConfidenceHigh, finding.PersonaRegular})
			case strings.HasPrefix(raw, "github.event.") || raw == "github.ref_name":
				out = append(out, injection{contextExpr.Raw, finding.SeverityHigh, finding.ConfidenceHigh, finding.PersonaRegular})
			case raw == "matrix" || strings.HasPrefix(raw, "matrix."):
				if !strategy.MatrixValueIsStatic(contextExpr.Raw) {
					out = append(out, injection{contextExpr.Raw, finding.SeverityMedium, finding.ConfidenceMedium, finding.PersonaRegular})
				}
			default:
				out = append(out, injection{contextExpr.Raw, finding.SeverityInformational, finding.ConfidenceLow, finding.PersonaRegular})
			}
		}
	}

	return out
}
