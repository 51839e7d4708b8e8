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

// Package engine runs every registered audit against every collected
// input and triages the results.
package engine

import (
	"context"
	"fmt"

	"github.com/hashicorp/go-hclog"

	"github.com/argos-audit/argos/pkg/audit"
	"github.com/argos-audit/argos/pkg/concurrent"
	"github.com/argos-audit/argos/pkg/errors"
	"github.com/argos-audit/argos/pkg/finding"
	"github.com/argos-audit/argos/pkg/location"
)

// Options configures an Engine.
type Options struct {
	Inputs *InputRegistry
	Audits *AuditRegistry
	// Pool bounds audit parallelism; nil uses a default-sized pool.
	Pool   *concurrent.Pool
	Logger hclog.Logger
}

// Engine fans the audit matrix out over a worker pool. Results are
// normalized to input order first and audit registration order second,
// so identical runs produce identical output.
type Engine struct {
	inputs *InputRegistry
	audits *AuditRegistry
	pool   *concurrent.Pool
	logger hclog.Logger
}

func New(opts Options) *Engine {
	logger := opts.Logger
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	pool := opts.Pool
	if pool == nil {
		pool = concurrent.NewPool(0)
	}
	return &Engine{
		inputs: opts.Inputs,
		audits: opts.Audits,
		pool:   pool,
		logger: logger.Named("engine"),
	}
}

// PairError records one audit failing against one input. Pair failures
// never abort the rest of the run.
type PairError struct {
	AuditID string
	Input   location.InputKey
	Err     error
}

func (e PairError) Error() string {
	return fmt.Sprintf("%s failed on %s: %v", e.AuditID, e.Input.String(), e.Err)
}

func (e PairError) Unwrap() error { return e.Err }

type pair struct {
	input Input
	audit audit.Audit
}

func (p pair) run(ctx context.Context) ([]*finding.Finding, error) {
	if p.input.Workflow != nil {
		return p.audit.AuditWorkflow(ctx, p.input.Workflow)
	}
	return p.audit.AuditAction(ctx, p.input.Action)
}

type outcome struct {
	pair     pair
	findings []*finding.Finding
	err      error
}

// Run audits every input with every audit and feeds the results through
// the finding registry. The returned pair errors are the audit failures
// the run survived; the error return is reserved for the run itself
// being cut short, e.g. by context cancellation.
func (e *Engine) Run(ctx context.Context, registry *FindingRegistry) ([]PairError, error) {
	var tasks []pair
	for _, in := range e.inputs.Inputs() {
		for _, a := range e.audits.Audits() {
			tasks = append(tasks, pair{input: in, audit: a})
		}
	}

	e.logger.Debug("dispatching audit matrix",
		"inputs", e.inputs.Len(), "audits", e.audits.Len(), "workers", e.pool.Workers())

	outcomes, err := concurrent.Map(ctx, e.pool, tasks, func(ctx context.Context, p pair) outcome {
		findings, err := p.run(ctx)
		if err != nil {
			err = errors.NewExecutionError(
				fmt.Sprintf("audit %s failed on %s", p.audit.ID(), p.input.Key().String()),
				err, p.audit.ID())
		}
		return outcome{pair: p, findings: findings, err: err}
	})
	if err != nil {
		return nil, err
	}

	var pairErrors []PairError
	for _, o := range outcomes {
		if o.err != nil {
			pe := PairError{AuditID: o.pair.audit.ID(), Input: o.pair.input.Key(), Err: o.err}
			e.logger.Error("audit failed", "audit", pe.AuditID, "input", pe.Input.String(), "error", o.err)
			pairErrors = append(pairErrors, pe)
			continue
		}
		registry.Extend(ctx, o.findings)
	}
	return pairErrors, nil
}
