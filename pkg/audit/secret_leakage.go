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

// secretLeakage flags expressions that transform secret values, e.g.
// `fromJSON(secrets.config)`. The runner redacts secrets by matching
// their exact value in logs; a decoded copy no longer matches and
// prints in the clear.
type secretLeakage struct {
	meta
	logger hclog.Logger
}

func NewSecretLeakage(c *Context) (Audit, error) {
	logger := c.Logger
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &secretLeakage{
		meta:   newMeta("secret-leakage", "leaked secret values"),
		logger: logger,
	}, nil
}

func (a *secretLeakage) AuditWorkflow(ctx context.Context, workflow *parser.Workflow) ([]*finding.Finding, error) {
	return a.auditRaw(workflow.Doc())
}

func (a *secretLeakage) AuditAction(ctx context.Context, action *parser.Action) ([]*finding.Finding, error) {
	return a.auditRaw(action.Doc())
}

func (a *secretLeakage) auditRaw(doc *location.Document) ([]*finding.Finding, error) {
	return rawSecretExpansions(a.meta, a.logger, doc,
		"bypasses secret redaction",
		func(e expr.Expr) int { return len(expr.FromJSONSecrets(e)) })
}
