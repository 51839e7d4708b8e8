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

	"github.com/hashicorp/go-hclog"

	"github.com/argos-audit/argos/pkg/expr"
	"github.com/argos-audit/argos/pkg/finding"
	"github.com/argos-audit/argos/pkg/location"
	"github.com/argos-audit/argos/pkg/parser"
)

// bypassableContainsConditions flags conditions of the shape
// `contains('main develop', github.ref)`. The context is the needle,
// not the haystack, so the check passes for any ref whose name is a
// substring of the literal, e.g. a branch named `velop`.
type bypassableContainsConditions struct {
	meta
	noActionAudit
	logger hclog.Logger
}

func NewBypassableContainsConditions(c *Context) (Audit, error) {
	logger := c.Logger
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &bypassableContainsConditions{
		meta:   newMeta("bypassable-contains-conditions", "bypassable contains conditions checks"),
		logger: logger,
	}, nil
}

func (a *bypassableContainsConditions) AuditWorkflow(ctx context.Context, workflow *parser.Workflow) ([]*finding.Finding, error) {
	var findings []*finding.Finding

	check := func(cond string, loc location.SymbolicLocation) error {
		for _, hit := range a.insecureContains(cond) {
			severity := finding.SeverityInformational
			if expr.UserControllable(hit) {
				severity = finding.SeverityHigh
			}
			f, err := a.finding().
				Severity(severity).
				Confidence(finding.ConfidenceHigh).
				AddLocation(loc.WithKeys(location.Key("if")).
					AsPrimary().
					Annotated(fmt.Sprintf("contains(..) condition can be bypassed if attacker can control '%s'", hit.Raw))).
				Build(workflow.Doc())
			if err != nil {
				return err
			}
			findings = append(findings, f)
		}
		return nil
	}

	for _, job := range workflow.Jobs {
		if job.IsReusable() {
			continue
		}
		if job.If != "" {
			if err := check(job.If, job.Location()); err != nil {
				return nil, err
			}
		}
		for _, step := range job.Steps {
			if step.If != "" {
				if err := check(step.If, step.Location()); err != nil {
					return nil, err
				}
			}
		}
	}

	return findings, nil
}

func (a *bypassableContainsConditions) insecureContains(cond string) []*expr.ContextExpr {
	parsed, err := expr.ParseCondition(cond)
	if err != nil {
		a.logger.Warn("couldn't parse expression", "expression", cond, "error", err)
		return nil
	}
	return expr.BypassableContains(parsed)
}
