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

package engine_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/argos-audit/argos/pkg/audit"
	"github.com/argos-audit/argos/pkg/engine"
	"github.com/argos-audit/argos/pkg/errors"
	"github.com/argos-audit/argos/pkg/finding"
	"github.com/argos-audit/argos/pkg/location"
	"github.com/argos-audit/argos/pkg/parser"
)

const stubWorkflow = `name: Test
on: push
jobs:
  build:
    runs-on: ubuntu-latest # argos: ignore[commented-rule]
    steps:
      - run: make
`

func loadStubWorkflow(t *testing.T, path string) *parser.Workflow {
	t.Helper()
	wf, err := parser.LoadWorkflowBytes(location.LocalKey(path), []byte(stubWorkflow))
	if err != nil {
		t.Fatalf("LoadWorkflowBytes(%s) = %v", path, err)
	}
	return wf
}

// stubAudit yields one finding per workflow, or fails every time.
type stubAudit struct {
	id   string
	fail bool
}

func (s *stubAudit) ID() string          { return s.id }
func (s *stubAudit) Description() string { return "stub audit" }
func (s *stubAudit) URL() string         { return "" }

func (s *stubAudit) AuditWorkflow(ctx context.Context, wf *parser.Workflow) ([]*finding.Finding, error) {
	if s.fail {
		return nil, fmt.Errorf("stub failure")
	}
	f, err := finding.NewFinding(s.id, "stub finding", "").
		Severity(finding.SeverityMedium).
		Confidence(finding.ConfidenceHigh).
		AddLocation(wf.Location().WithKeys(location.Key("on")).AsPrimary()).
		Build(wf.Doc())
	if err != nil {
		return nil, err
	}
	return []*finding.Finding{f}, nil
}

func (s *stubAudit) AuditAction(ctx context.Context, action *parser.Action) ([]*finding.Finding, error) {
	return nil, nil
}

func constant(a audit.Audit) audit.Constructor {
	return func(*audit.Context) (audit.Audit, error) { return a, nil }
}

func buildFinding(t *testing.T, wf *parser.Workflow, ident string,
	shape func(*finding.Builder) *finding.Builder) *finding.Finding {
	t.Helper()
	b := finding.NewFinding(ident, "test finding", "").
		AddLocation(wf.Location().WithKeys(location.Key("on")).AsPrimary())
	if shape != nil {
		b = shape(b)
	}
	f, err := b.Build(wf.Doc())
	if err != nil {
		t.Fatalf("Build(%s) = %v", ident, err)
	}
	return f
}

func TestInputRegistryDeduplicates(t *testing.T) {
	first := loadStubWorkflow(t, "ci.yml")
	duplicate := loadStubWorkflow(t, "ci.yml")
	second := loadStubWorkflow(t, "release.yml")

	reg := engine.NewInputRegistry()
	reg.AddWorkflow(first)
	reg.AddWorkflow(duplicate)
	reg.AddWorkflow(second)

	if reg.Len() != 2 {
		t.Fatalf("registry holds %d inputs, want 2", reg.Len())
	}
	inputs := reg.Inputs()
	if inputs[0].Key().Path != "ci.yml" || inputs[1].Key().Path != "release.yml" {
		t.Errorf("inputs out of registration order: %v, %v", inputs[0].Key(), inputs[1].Key())
	}
}

func TestAuditRegistrySkipsDeclinedConstructors(t *testing.T) {
	reg := engine.NewAuditRegistry(nil)

	err := reg.Register(func(*audit.Context) (audit.Audit, error) {
		return nil, errors.NewSkipError("requires network access", "stub")
	}, &audit.Context{})
	if err != nil {
		t.Fatalf("Register(skip) = %v, want nil", err)
	}
	if reg.Len() != 0 {
		t.Errorf("skipped constructor still registered an audit")
	}

	err = reg.Register(func(*audit.Context) (audit.Audit, error) {
		return nil, fmt.Errorf("bad configuration")
	}, &audit.Context{})
	if err == nil {
		t.Errorf("Register swallowed a non-skip constructor failure")
	}
}

func TestAuditRegistryDisable(t *testing.T) {
	reg := engine.NewAuditRegistry(nil)
	reg.Disable("noisy-rule")

	if err := reg.Register(constant(&stubAudit{id: "noisy-rule"}), &audit.Context{}); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if err := reg.Register(constant(&stubAudit{id: "kept-rule"}), &audit.Context{}); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	if reg.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", reg.Len())
	}
	if got := reg.Audits()[0].ID(); got != "kept-rule" {
		t.Errorf("remaining audit = %s, want kept-rule", got)
	}
}

func TestFindingRegistryBuckets(t *testing.T) {
	wf := loadStubWorkflow(t, "ci.yml")

	reported := buildFinding(t, wf, "reported-rule", func(b *finding.Builder) *finding.Builder {
		return b.Severity(finding.SeverityHigh).Confidence(finding.ConfidenceHigh)
	})
	auditorOnly := buildFinding(t, wf, "auditor-rule", func(b *finding.Builder) *finding.Builder {
		return b.Persona(finding.PersonaAuditor)
	})
	lowSeverity := buildFinding(t, wf, "low-severity-rule", func(b *finding.Builder) *finding.Builder {
		return b.Severity(finding.SeverityLow).Confidence(finding.ConfidenceHigh)
	})
	lowConfidence := buildFinding(t, wf, "low-confidence-rule", func(b *finding.Builder) *finding.Builder {
		return b.Severity(finding.SeverityHigh).Confidence(finding.ConfidenceLow)
	})
	ruleIgnored := buildFinding(t, wf, "ignored-rule", func(b *finding.Builder) *finding.Builder {
		return b.Severity(finding.SeverityHigh).Confidence(finding.ConfidenceHigh)
	})

	commented, err := finding.NewFinding("commented-rule", "test finding", "").
		Severity(finding.SeverityHigh).
		AddLocation(location.NewSymbolicLocation(wf.Key()).
			WithKeys(location.Key("jobs"), location.Key("build"), location.Key("runs-on")).
			AsPrimary()).
		Build(wf.Doc())
	if err != nil {
		t.Fatalf("Build(commented-rule) = %v", err)
	}
	if !commented.Ignored {
		t.Fatalf("inline comment did not mark the finding ignored")
	}

	registry := engine.NewFindingRegistry(engine.RegistryOptions{
		Persona:       finding.PersonaRegular,
		MinSeverity:   finding.SeverityMedium,
		MinConfidence: finding.ConfidenceMedium,
		Ignorer: engine.IgnorerFunc(func(_ context.Context, f *finding.Finding) (bool, error) {
			return f.Ident == "ignored-rule", nil
		}),
	})

	registry.Extend(context.Background(), []*finding.Finding{
		reported, auditorOnly, lowSeverity, lowConfidence, ruleIgnored, commented,
	})

	if got := len(registry.Reported()); got != 1 {
		t.Fatalf("reported %d findings, want 1", got)
	}
	if registry.Reported()[0].Ident != "reported-rule" {
		t.Errorf("reported %q, want reported-rule", registry.Reported()[0].Ident)
	}
	if got := len(registry.Suppressed()); got != 1 {
		t.Errorf("suppressed %d findings, want 1", got)
	}
	if got := len(registry.Ignored()); got != 4 {
		t.Errorf("ignored %d findings, want 4", got)
	}
	if registry.WorstSeverity() != finding.SeverityHigh {
		t.Errorf("worst severity = %v, want high", registry.WorstSeverity())
	}
	if registry.ExitCode() != 14 {
		t.Errorf("exit code = %d, want 14", registry.ExitCode())
	}
}

func TestFindingRegistryPersonaWinsOverIgnoreRules(t *testing.T) {
	wf := loadStubWorkflow(t, "ci.yml")
	f := buildFinding(t, wf, "auditor-rule", func(b *finding.Builder) *finding.Builder {
		return b.Persona(finding.PersonaAuditor)
	})

	registry := engine.NewFindingRegistry(engine.RegistryOptions{
		Persona: finding.PersonaRegular,
		Ignorer: engine.IgnorerFunc(func(context.Context, *finding.Finding) (bool, error) {
			return true, nil
		}),
	})
	registry.Extend(context.Background(), []*finding.Finding{f})

	if len(registry.Suppressed()) != 1 || len(registry.Ignored()) != 0 {
		t.Errorf("persona suppression lost to an ignore rule: %d suppressed, %d ignored",
			len(registry.Suppressed()), len(registry.Ignored()))
	}
}

func TestFindingRegistryBrokenIgnorerKeepsFinding(t *testing.T) {
	wf := loadStubWorkflow(t, "ci.yml")
	f := buildFinding(t, wf, "reported-rule", nil)

	registry := engine.NewFindingRegistry(engine.RegistryOptions{
		Ignorer: engine.IgnorerFunc(func(context.Context, *finding.Finding) (bool, error) {
			return false, fmt.Errorf("policy engine unavailable")
		}),
	})
	registry.Extend(context.Background(), []*finding.Finding{f})

	if len(registry.Reported()) != 1 {
		t.Errorf("a failing ignore rule dropped the finding")
	}
}

func TestFindingRegistryExitCodes(t *testing.T) {
	empty := engine.NewFindingRegistry(engine.RegistryOptions{})
	if empty.ExitCode() != 0 {
		t.Errorf("empty registry exit code = %d, want 0", empty.ExitCode())
	}

	wf := loadStubWorkflow(t, "ci.yml")
	unknown := buildFinding(t, wf, "ungraded-rule", nil)

	registry := engine.NewFindingRegistry(engine.RegistryOptions{})
	registry.Extend(context.Background(), []*finding.Finding{unknown})
	if registry.ExitCode() != 10 {
		t.Errorf("exit code = %d, want 10 for an ungraded reported finding", registry.ExitCode())
	}
}

func TestIgnorersComposition(t *testing.T) {
	never := engine.IgnorerFunc(func(context.Context, *finding.Finding) (bool, error) {
		return false, nil
	})
	always := engine.IgnorerFunc(func(context.Context, *finding.Finding) (bool, error) {
		return true, nil
	})

	wf := loadStubWorkflow(t, "ci.yml")
	f := buildFinding(t, wf, "any-rule", nil)

	composed := engine.Ignorers(nil, never, always)
	ignored, err := composed.Ignores(context.Background(), f)
	if err != nil || !ignored {
		t.Errorf("Ignorers(nil, never, always) = %v, %v; want true, nil", ignored, err)
	}

	ignored, err = engine.Ignorers(never).Ignores(context.Background(), f)
	if err != nil || ignored {
		t.Errorf("Ignorers(never) = %v, %v; want false, nil", ignored, err)
	}
}

func TestEngineRunNormalizesResultOrder(t *testing.T) {
	inputs := engine.NewInputRegistry()
	inputs.AddWorkflow(loadStubWorkflow(t, "a.yml"))
	inputs.AddWorkflow(loadStubWorkflow(t, "b.yml"))

	audits := engine.NewAuditRegistry(nil)
	if err := audits.Register(constant(&stubAudit{id: "finds-things"}), &audit.Context{}); err != nil {
		t.Fatalf("Register = %v", err)
	}
	if err := audits.Register(constant(&stubAudit{id: "always-fails", fail: true}), &audit.Context{}); err != nil {
		t.Fatalf("Register = %v", err)
	}

	registry := engine.NewFindingRegistry(engine.RegistryOptions{})
	eng := engine.New(engine.Options{Inputs: inputs, Audits: audits})

	pairErrors, err := eng.Run(context.Background(), registry)
	if err != nil {
		t.Fatalf("Run() = %v", err)
	}

	if len(pairErrors) != 2 {
		t.Fatalf("got %d pair errors, want 2", len(pairErrors))
	}
	for i, wantPath := range []string{"a.yml", "b.yml"} {
		if pairErrors[i].AuditID != "always-fails" || pairErrors[i].Input.Path != wantPath {
			t.Errorf("pair error[%d] = %s on %s, want always-fails on %s",
				i, pairErrors[i].AuditID, pairErrors[i].Input.Path, wantPath)
		}
	}

	reported := registry.Reported()
	if len(reported) != 2 {
		t.Fatalf("reported %d findings, want 2", len(reported))
	}
	for i, wantPath := range []string{"a.yml", "b.yml"} {
		if got := reported[i].PrimaryLocation().Symbolic.Key.Path; got != wantPath {
			t.Errorf("finding[%d] comes from %s, want %s", i, got, wantPath)
		}
	}
}

func TestEngineRunCancelledContext(t *testing.T) {
	inputs := engine.NewInputRegistry()
	inputs.AddWorkflow(loadStubWorkflow(t, "a.yml"))

	audits := engine.NewAuditRegistry(nil)
	if err := audits.Register(constant(&stubAudit{id: "finds-things"}), &audit.Context{}); err != nil {
		t.Fatalf("Register = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	eng := engine.New(engine.Options{Inputs: inputs, Audits: audits})
	if _, err := eng.Run(ctx, engine.NewFindingRegistry(engine.RegistryOptions{})); err == nil {
		t.Errorf("Run() on a cancelled context succeeded, want error")
	}
}

func TestEngineRunWithNothingToDo(t *testing.T) {
	eng := engine.New(engine.Options{
		Inputs: engine.NewInputRegistry(),
		Audits: engine.NewAuditRegistry(nil),
	})
	registry := engine.NewFindingRegistry(engine.RegistryOptions{})

	pairErrors, err := eng.Run(context.Background(), registry)
	if err != nil || len(pairErrors) != 0 {
		t.Fatalf("Run() = %v, %v; want empty, nil", pairErrors, err)
	}
	if !registry.Empty() || registry.ExitCode() != 0 {
		t.Errorf("empty run produced findings or a nonzero exit code")
	}
}
