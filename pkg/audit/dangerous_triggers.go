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
)

// dangerousTriggers flags triggers that run workflows in a privileged
// context on attacker-influenced events. pull_request_target and
// workflow_run both execute with repository secrets available while
// reacting to fork activity, which makes them very hard to use safely.
type dangerousTriggers struct {
	meta
	noActionAudit
}

func NewDangerousTriggers(*Context) (Audit, error) {
	return &dangerousTriggers{
		meta: newMeta("dangerous-triggers", "use of fundamentally insecure workflow trigger"),
	}, nil
}

func (a *dangerousTriggers) AuditWorkflow(ctx context.Context, workflow *parser.Workflow) ([]*finding.Finding, error) {
	var findings []*finding.Finding

	for _, trigger := range []string{"pull_request_target", "workflow_run"} {
		if !workflow.On.Has(trigger) {
			continue
		}
		f, err := a.finding().
			Severity(finding.SeverityHigh).
			Confidence(finding.ConfidenceMedium).
			AddLocation(workflow.Location().WithKeys(location.Key("on")).AsPrimary().
				Annotated(fmt.Sprintf("%s is almost always used insecurely", trigger))).
			Build(workflow.Doc())
		if err != nil {
			return nil, err
		}
		findings = append(findings, f)
	}

	return findings, nil
}
