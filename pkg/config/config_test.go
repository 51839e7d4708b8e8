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

package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/argos-audit/argos/pkg/config"
	"github.com/argos-audit/argos/pkg/finding"
	"github.com/argos-audit/argos/pkg/location"
)

func TestParseIgnoreRule(t *testing.T) {
	tests := []struct {
		raw     string
		want    config.IgnoreRule
		wantErr bool
	}{
		{raw: "ci.yml", want: config.IgnoreRule{Pattern: "ci.yml"}},
		{raw: "ci.yml:23", want: config.IgnoreRule{Pattern: "ci.yml", Line: 23}},
		{raw: "ci.yml:23:7", want: config.IgnoreRule{Pattern: "ci.yml", Line: 23, Column: 7}},
		{raw: "releases/**/*.yml", want: config.IgnoreRule{Pattern: "releases/**/*.yml"}},
		{raw: "odd:name.yml", want: config.IgnoreRule{Pattern: "odd:name.yml"}},
		{raw: ":12", wantErr: true},
		{raw: "ci.yml:0", wantErr: true},
		{raw: "", wantErr: true},
	}

	for _, tt := range tests {
		got, err := config.ParseIgnoreRule(tt.raw)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseIgnoreRule(%q) succeeded, want error", tt.raw)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseIgnoreRule(%q) = %v", tt.raw, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseIgnoreRule(%q) = %+v, want %+v", tt.raw, got, tt.want)
		}
		if got.String() != tt.raw {
			t.Errorf("ParseIgnoreRule(%q).String() = %q", tt.raw, got.String())
		}
	}
}

func TestIgnoreRuleMatches(t *testing.T) {
	at := func(line, column int) location.Span {
		return location.Span{Start: location.Point{Line: line, Column: column}}
	}

	tests := []struct {
		name string
		rule config.IgnoreRule
		path string
		span location.Span
		want bool
	}{
		{
			name: "BareFilenameMatchesAnywhere",
			rule: config.IgnoreRule{Pattern: "ci.yml"},
			path: ".github/workflows/ci.yml",
			span: at(3, 1),
			want: true,
		},
		{
			name: "BareFilenameRejectsOtherFiles",
			rule: config.IgnoreRule{Pattern: "ci.yml"},
			path: ".github/workflows/release.yml",
			span: at(3, 1),
			want: false,
		},
		{
			name: "LineNarrowsTheMatch",
			rule: config.IgnoreRule{Pattern: "ci.yml", Line: 5},
			path: "ci.yml",
			span: at(5, 9),
			want: true,
		},
		{
			name: "WrongLineRejects",
			rule: config.IgnoreRule{Pattern: "ci.yml", Line: 5},
			path: "ci.yml",
			span: at(6, 9),
			want: false,
		},
		{
			name: "ColumnNarrowsTheMatch",
			rule: config.IgnoreRule{Pattern: "ci.yml", Line: 5, Column: 9},
			path: "ci.yml",
			span: at(5, 3),
			want: false,
		},
		{
			name: "DoublestarGlob",
			rule: config.IgnoreRule{Pattern: "releases/**/*.yml"},
			path: "releases/v2/deploy.yml",
			span: at(1, 1),
			want: true,
		},
		{
			name: "GlobRejectsOutsideTree",
			rule: config.IgnoreRule{Pattern: "releases/**/*.yml"},
			path: ".github/workflows/ci.yml",
			span: at(1, 1),
			want: false,
		},
		{
			name: "AnchoredPatternStaysAnchored",
			rule: config.IgnoreRule{Pattern: "./ci.yml"},
			path: ".github/workflows/ci.yml",
			span: at(1, 1),
			want: false,
		},
		{
			name: "AnchoredPatternMatchesRoot",
			rule: config.IgnoreRule{Pattern: "./ci.yml"},
			path: "ci.yml",
			span: at(1, 1),
			want: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.rule.Matches(tt.path, tt.span); got != tt.want {
				t.Errorf("Matches(%q) = %v, want %v", tt.path, got, tt.want)
			}
		})
	}
}

const sampleConfig = `persona: pedantic
min-severity: low
min-confidence: medium
policies:
  - policies/releases.rego
rules:
  template-injection:
    ignore:
      - ci.yml:14
      - "docs/**/*.yml"
  self-hosted-runner:
    disable: true
  unpinned-uses:
    disable: true
`

func loadSampleConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, ".argos.yml")
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load() = %v", err)
	}
	return cfg
}

func TestLoadConfig(t *testing.T) {
	cfg := loadSampleConfig(t)

	if cfg.Persona == nil || *cfg.Persona != finding.PersonaPedantic {
		t.Errorf("persona = %v, want pedantic", cfg.Persona)
	}
	if cfg.MinSeverity == nil || *cfg.MinSeverity != finding.SeverityLow {
		t.Errorf("min-severity = %v, want low", cfg.MinSeverity)
	}
	if cfg.MinConfidence == nil || *cfg.MinConfidence != finding.ConfidenceMedium {
		t.Errorf("min-confidence = %v, want medium", cfg.MinConfidence)
	}

	disabled := cfg.Disabled()
	if len(disabled) != 2 || disabled[0] != "self-hosted-runner" || disabled[1] != "unpinned-uses" {
		t.Errorf("Disabled() = %v", disabled)
	}

	policies := cfg.PolicyPaths()
	if len(policies) != 1 || !strings.HasSuffix(policies[0], filepath.Join("policies", "releases.rego")) {
		t.Errorf("PolicyPaths() = %v", policies)
	}
	if !filepath.IsAbs(policies[0]) {
		t.Errorf("policy path %q is not resolved against the config directory", policies[0])
	}
}

func TestConfigIgnores(t *testing.T) {
	cfg := loadSampleConfig(t)

	findingAt := func(ident, path string, line int) *finding.Finding {
		return &finding.Finding{
			Ident: ident,
			Locations: []finding.Location{{
				Symbolic: location.SymbolicLocation{Key: location.LocalKey(path)},
				Concrete: location.ConcreteLocation{
					Span: location.Span{Start: location.Point{Line: line, Column: 1}},
				},
			}},
		}
	}

	tests := []struct {
		name string
		f    *finding.Finding
		want bool
	}{
		{
			name: "MatchingFileAndLine",
			f:    findingAt("template-injection", ".github/workflows/ci.yml", 14),
			want: true,
		},
		{
			name: "WrongLine",
			f:    findingAt("template-injection", ".github/workflows/ci.yml", 15),
			want: false,
		},
		{
			name: "GlobPattern",
			f:    findingAt("template-injection", "docs/build/site.yml", 3),
			want: true,
		},
		{
			name: "OtherRuleUnaffected",
			f:    findingAt("hardcoded-secrets", ".github/workflows/ci.yml", 14),
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := cfg.Ignores(tt.f); got != tt.want {
				t.Errorf("Ignores() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLoadExplicitConfigMustExist(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "missing.yml"))
	if err == nil {
		t.Fatalf("Load() succeeded for a missing explicit config")
	}
	if !strings.Contains(err.Error(), "not found") {
		t.Errorf("unexpected error text: %v", err)
	}
}

func TestLoadWithoutConfigFile(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("Load() = %v", err)
	}
	if cfg.Persona != nil || len(cfg.Rules) != 0 {
		t.Errorf("expected the zero configuration, got %+v", cfg)
	}
}

func TestLoadSearchesStandardLocations(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, ".github"), 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	content := "rules:\n  artipacked:\n    disable: true\n"
	if err := os.WriteFile(filepath.Join(dir, ".github", "argos.yml"), []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	t.Chdir(dir)

	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("Load() = %v", err)
	}
	if disabled := cfg.Disabled(); len(disabled) != 1 || disabled[0] != "artipacked" {
		t.Errorf("Disabled() = %v, want [artipacked]", disabled)
	}
}
