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

	"github.com/hashicorp/go-hclog"

	"github.com/argos-audit/argos/pkg/expr"
	"github.com/argos-audit/argos/pkg/finding"
	"github.com/argos-audit/argos/pkg/location"
	"github.com/argos-audit/argos/pkg/parser"
)

// overprovisionedSecrets flags expressions that serialize the entire
// secrets context, e.g. `toJSON(secrets)`. A step that expands one of
// these receives every secret the workflow can reach.
type overprovisionedSecrets struct {
	meta
	logger hclog.Logger
}

func NewOverprovisionedSecrets(c *Context) (Audit, error) {
	logger := c.Logger
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &overprovisionedSecrets{
		meta:   newMeta("overprovisioned-secrets", "excessively provisioned secrets"),
		logger: logger,
	}, nil
}

func (a *overprovisionedSecrets) AuditWorkflow(ctx context.Context, workflow *parser.Workflow) ([]*finding.Finding, error) {
	return a.auditRaw(workflow.Doc())
}

func (a *overprovisionedSecrets) AuditAction(ctx context.Context, action *parser.Action) ([]*finding.Finding, error) {
	return a.auditRaw(action.Doc())
}

func (a *overprovisionedSecrets) auditRaw(doc *location.Document) ([]*finding.Finding, error) {
	return rawSecretExpansions(a.meta, a.logger, doc,
		"injects the entire secrets context into the runner",
		func(e expr.Expr) int { return len(expr.ToJSONSecrets(e)) })
}

// rawSecretExpansions scans the raw document text for template
// expressions and emits one finding per hit that counter reports,
// anchored at the template's own byte span. Expressions can appear in
// scalars that no route addresses, so the scan works on the source text
// rather than the YAML structure.
func rawSecretExpansions(m meta, logger hclog.Logger, doc *location.Document, annotation string, counter func(expr.Expr) int) ([]*finding.Finding, error) {
	var findings []*finding.Finding

	for _, tpl := range expr.ExtractTemplates(string(doc.Raw())) {
		parsed, err := expr.Parse(tpl.Raw)
		if err != nil {
			logger.Warn("couldn't parse expression", "expression", tpl.Raw, "error", err)
			continue
		}

		for i := 0; i < counter(parsed); i++ {
			f, err := finding.NewFinding(m.id, m.desc, m.url).
				Severity(finding.SeverityMedium).
				Confidence(finding.ConfidenceHigh).
				AddResolvedLocation(
					location.NewSymbolicLocation(doc.Key()).
						AsPrimary().
						Annotated(annotation),
					doc.ResolveSpan(tpl.Start, tpl.End)).
				Build(doc)
			if err != nil {
				return nil, err
			}
			findings = append(findings, f)
		}
	}

	return findings, nil
}
