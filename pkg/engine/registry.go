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

package engine

import (
	"context"

	"github.com/hashicorp/go-hclog"

	"github.com/argos-audit/argos/pkg/audit"
	"github.com/argos-audit/argos/pkg/errors"
	"github.com/argos-audit/argos/pkg/finding"
	"github.com/argos-audit/argos/pkg/location"
	"github.com/argos-audit/argos/pkg/parser"
)

// Input is one auditable document. Exactly one of Workflow and Action is
// set.
type Input struct {
	Workflow *parser.Workflow
	Action   *parser.Action
}

// Key identifies the input's origin.
func (in Input) Key() location.InputKey {
	if in.Workflow != nil {
		return in.Workflow.Key()
	}
	return in.Action.Key()
}

// Doc returns the input's source document.
func (in Input) Doc() *location.Document {
	if in.Workflow != nil {
		return in.Workflow.Doc()
	}
	return in.Action.Doc()
}

// InputRegistry holds the documents a run audits, deduplicated by origin
// and kept in registration order. Results later come out in this order.
type InputRegistry struct {
	inputs []Input
	seen   map[location.InputKey]struct{}
}

func NewInputRegistry() *InputRegistry {
	return &InputRegistry{seen: make(map[location.InputKey]struct{})}
}

// AddWorkflow registers a workflow, ignoring duplicates of an already
// registered origin.
func (r *InputRegistry) AddWorkflow(wf *parser.Workflow) {
	r.add(Input{Workflow: wf})
}

// AddAction registers an action definition, ignoring duplicates.
func (r *InputRegistry) AddAction(action *parser.Action) {
	r.add(Input{Action: action})
}

func (r *InputRegistry) add(in Input) {
	key := in.Key()
	if _, ok := r.seen[key]; ok {
		return
	}
	r.seen[key] = struct{}{}
	r.inputs = append(r.inputs, in)
}

// Inputs returns the registered inputs in registration order.
func (r *InputRegistry) Inputs() []Input { return r.inputs }

func (r *InputRegistry) Len() int { return len(r.inputs) }

// AuditRegistry holds the constructed audits in registration order.
type AuditRegistry struct {
	audits   []audit.Audit
	disabled map[string]struct{}
	logger   hclog.Logger
}

func NewAuditRegistry(logger hclog.Logger) *AuditRegistry {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &AuditRegistry{
		disabled: make(map[string]struct{}),
		logger:   logger.Named("audits"),
	}
}

// Disable drops the named audits from later registrations. Unknown names
// are accepted; they simply never match anything.
func (r *AuditRegistry) Disable(ids ...string) {
	for _, id := range ids {
		r.disabled[id] = struct{}{}
	}
}

// Register constructs one audit. A constructor that declines to run, for
// example because it needs network access the run doesn't have, is logged
// and skipped; any other constructor failure aborts registration.
func (r *AuditRegistry) Register(ctor audit.Constructor, actx *audit.Context) error {
	a, err := ctor(actx)
	if err != nil {
		if errors.IsSkip(err) {
			r.logger.Warn("skipping audit", "reason", err.Error())
			return nil
		}
		return err
	}
	if _, off := r.disabled[a.ID()]; off {
		r.logger.Debug("audit disabled by configuration", "audit", a.ID())
		return nil
	}
	r.audits = append(r.audits, a)
	return nil
}

// RegisterBuiltin constructs every builtin audit.
func (r *AuditRegistry) RegisterBuiltin(actx *audit.Context) error {
	for _, ctor := range audit.Builtin() {
		if err := r.Register(ctor, actx); err != nil {
			return err
		}
	}
	return nil
}

// Audits returns the constructed audits in registration order.
func (r *AuditRegistry) Audits() []audit.Audit { return r.audits }

func (r *AuditRegistry) Len() int { return len(r.audits) }

// Ignorer decides whether configuration or policy ignores a finding.
type Ignorer interface {
	Ignores(ctx context.Context, f *finding.Finding) (bool, error)
}

// IgnorerFunc adapts a function to the Ignorer interface.
type IgnorerFunc func(ctx context.Context, f *finding.Finding) (bool, error)

func (fn IgnorerFunc) Ignores(ctx context.Context, f *finding.Finding) (bool, error) {
	return fn(ctx, f)
}

// Ignorers composes ignorers; the first one to ignore a finding wins.
func Ignorers(ignorers ...Ignorer) Ignorer {
	return IgnorerFunc(func(ctx context.Context, f *finding.Finding) (bool, error) {
		for _, ig := range ignorers {
			if ig == nil {
				continue
			}
			ignored, err := ig.Ignores(ctx, f)
			if err != nil {
				return false, err
			}
			if ignored {
				return true, nil
			}
		}
		return false, nil
	})
}

// RegistryOptions configures finding triage.
type RegistryOptions struct {
	// Persona is the run's audience; findings demanding a stricter
	// persona are suppressed.
	Persona finding.Persona
	// MinSeverity drops findings graded below it into the ignored
	// bucket. The zero value keeps everything.
	MinSeverity finding.Severity
	// MinConfidence works like MinSeverity for confidence grades.
	MinConfidence finding.Confidence
	// Ignorer applies configuration and policy ignore rules; nil
	// ignores nothing.
	Ignorer Ignorer
	Logger  hclog.Logger
}

// FindingRegistry triages every finding a run produces into exactly one
// of three buckets: suppressed by persona, ignored, or reported. Only
// reported findings drive the exit code.
type FindingRegistry struct {
	opts RegistryOptions

	reported   []*finding.Finding
	suppressed []*finding.Finding
	ignored    []*finding.Finding
	worst      finding.Severity
}

func NewFindingRegistry(opts RegistryOptions) *FindingRegistry {
	if opts.Logger == nil {
		opts.Logger = hclog.NewNullLogger()
	}
	return &FindingRegistry{opts: opts}
}

// Extend triages a batch of findings. Persona suppression is checked
// first; a finding the run's persona never shows is suppressed even if
// an ignore rule also matches it.
func (r *FindingRegistry) Extend(ctx context.Context, findings []*finding.Finding) {
	for _, f := range findings {
		r.add(ctx, f)
	}
}

func (r *FindingRegistry) add(ctx context.Context, f *finding.Finding) {
	switch {
	case !f.VisibleTo(r.opts.Persona):
		r.suppressed = append(r.suppressed, f)
	case f.Ignored,
		f.Severity < r.opts.MinSeverity,
		f.Confidence < r.opts.MinConfidence,
		r.ignores(ctx, f):
		r.ignored = append(r.ignored, f)
	default:
		r.reported = append(r.reported, f)
		if f.Severity > r.worst {
			r.worst = f.Severity
		}
	}
}

// ignores applies the configured ignore rules. An ignore rule that fails
// to evaluate keeps the finding reported; hiding results on a broken
// rule is the wrong failure direction for an auditing tool.
func (r *FindingRegistry) ignores(ctx context.Context, f *finding.Finding) bool {
	if r.opts.Ignorer == nil {
		return false
	}
	ignored, err := r.opts.Ignorer.Ignores(ctx, f)
	if err != nil {
		r.opts.Logger.Warn("ignore rule failed, keeping finding",
			"rule", f.Ident, "error", err)
		return false
	}
	return ignored
}

// Reported returns the findings the run surfaces, in triage order.
func (r *FindingRegistry) Reported() []*finding.Finding { return r.reported }

// Suppressed returns the findings hidden by the run's persona.
func (r *FindingRegistry) Suppressed() []*finding.Finding { return r.suppressed }

// Ignored returns the findings dropped by inline comments, grade
// minimums, or ignore rules.
func (r *FindingRegistry) Ignored() []*finding.Finding { return r.ignored }

// Empty reports whether the run produced no findings in any bucket.
func (r *FindingRegistry) Empty() bool {
	return len(r.reported) == 0 && len(r.suppressed) == 0 && len(r.ignored) == 0
}

// WorstSeverity returns the highest severity among reported findings.
// It is meaningless when nothing was reported.
func (r *FindingRegistry) WorstSeverity() finding.Severity { return r.worst }

// ExitCode maps the run's outcome to a process exit code: 0 when nothing
// was reported, otherwise a code derived from the worst reported
// severity.
func (r *FindingRegistry) ExitCode() int {
	if len(r.reported) == 0 {
		return 0
	}
	return r.worst.ExitCode()
}
