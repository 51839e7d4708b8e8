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
	"github.com/argos-audit/argos/pkg/location"
	"github.com/argos-audit/argos/pkg/parser"
)

// spoofableActorContexts are actor names an attacker can impersonate by
// naming their account accordingly: `github.actor == 'dependabot[bot]'`
// checks the display login, not the account's identity.
var spoofableActorContexts = map[string]bool{
	"github.actor":                           true,
	"github.triggering_actor":                true,
	"github.event.pull_request.sender.login": true,
}

// botConditions flags `if:` conditions that gate on an actor name
// ending in [bot].
type botConditions struct {
	meta
	noActionAudit
}

func NewBotConditions(*Context) (Audit, error) {
	return &botConditions{
		meta: newMeta("bot-conditions", "spoofable bot actor check"),
	}, nil
}

func (a *botConditions) AuditWorkflow(ctx context.Context, workflow *parser.Workflow) ([]*finding.Finding, error) {
	var findings []*finding.Finding

	emit := func(loc location.SymbolicLocation) error {
		f, err := a.finding().
			Severity(finding.SeverityHigh).
			Confidence(finding.ConfidenceHigh).
			AddLocation(loc.AsPrimary().Annotated("actor context may be spoofable")).
			Build(workflow.Doc())
		if err != nil {
			return err
		}
		findings = append(findings, f)
		return nil
	}

	for _, job := range workflow.Jobs {
		if spoofableBotCondition(job.If) {
			if err := emit(job.Location().WithKeys(location.Key("if"))); err != nil {
				return nil, err
			}
		}
		for _, step := range job.Steps {
			if spoofableBotCondition(step.If) {
				if err := emit(step.LocationWithKeys(location.Key("if"))); err != nil {
					return nil, err
				}
			}
		}
	}

	return findings, nil
}

// spoofableBotCondition reports whether cond compares a spoofable actor
// context against a [bot] literal.
func spoofableBotCondition(cond string) bool {
	if cond == "" {
		return false
	}
	parsed, err := expr.ParseCondition(cond)
	if err != nil {
		return false
	}

	found := false
	expr.Walk(parsed, func(n expr.Expr) bool {
		bin, ok := n.(*expr.BinaryExpr)
		if !ok || bin.Op != expr.OpEq {
			return true
		}
		if botComparison(bin.Left, bin.Right) || botComparison(bin.Right, bin.Left) {
			found = true
			return false
		}
		return true
	})
	return found
}

func botComparison(lhs, rhs expr.Expr) bool {
	ctx, ok := lhs.(*expr.ContextExpr)
	if !ok || !spoofableActorContexts[strings.ToLower(ctx.Raw)] {
		return false
	}
	lit, ok := rhs.(*expr.StringLit)
	return ok && strings.HasSuffix(lit.Value, "[bot]")
}
