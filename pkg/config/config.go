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

// Package config loads the on-disk run configuration: default grading
// floors, per-rule ignore patterns, disabled rules, and policy files.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v3"

	argoserrors "github.com/argos-audit/argos/pkg/errors"
	"github.com/argos-audit/argos/pkg/finding"
	"github.com/argos-audit/argos/pkg/location"
)

// Config is a run configuration, usually loaded from .argos.yml. Command
// line flags override it; it overrides the built-in defaults.
type Config struct {
	Persona       *finding.Persona      `yaml:"persona,omitempty"`
	MinSeverity   *finding.Severity     `yaml:"min-severity,omitempty"`
	MinConfidence *finding.Confidence   `yaml:"min-confidence,omitempty"`
	Policies      []string              `yaml:"policies,omitempty"`
	Rules         map[string]RuleConfig `yaml:"rules,omitempty"`

	// dir is where the file was loaded from; relative policy paths
	// resolve against it.
	dir string
}

// RuleConfig is the per-rule section of the configuration.
type RuleConfig struct {
	Disable bool         `yaml:"disable,omitempty"`
	Ignore  []IgnoreRule `yaml:"ignore,omitempty"`
}

// IgnoreRule ignores one rule's findings by location. The pattern is a
// doublestar glob matched against the finding's input path; a bare
// filename matches anywhere in the tree. Line and column narrow the rule
// to findings starting at that spot; zero means any.
type IgnoreRule struct {
	Pattern string
	Line    int
	Column  int
}

// ParseIgnoreRule parses "<pattern>[:<line>[:<column>]]".
func ParseIgnoreRule(raw string) (IgnoreRule, error) {
	pattern := raw
	var nums []int
	for len(nums) < 2 {
		idx := strings.LastIndexByte(pattern, ':')
		if idx < 0 {
			break
		}
		n, err := strconv.Atoi(pattern[idx+1:])
		if err != nil {
			break
		}
		if n <= 0 {
			return IgnoreRule{}, argoserrors.NewConfigError(
				fmt.Sprintf("ignore rule %q: line and column are 1-based", raw), nil)
		}
		nums = append(nums, n)
		pattern = pattern[:idx]
	}
	if pattern == "" {
		return IgnoreRule{}, argoserrors.NewConfigError(
			fmt.Sprintf("ignore rule %q has no file pattern", raw), nil)
	}

	rule := IgnoreRule{Pattern: pattern}
	switch len(nums) {
	case 1:
		rule.Line = nums[0]
	case 2:
		// Suffixes came off right to left.
		rule.Line, rule.Column = nums[1], nums[0]
	}
	return rule, nil
}

func (r *IgnoreRule) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return argoserrors.NewConfigError("ignore rules must be strings", nil)
	}
	parsed, err := ParseIgnoreRule(value.Value)
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

func (r IgnoreRule) String() string {
	out := r.Pattern
	if r.Line > 0 {
		out += ":" + strconv.Itoa(r.Line)
	}
	if r.Column > 0 {
		out += ":" + strconv.Itoa(r.Column)
	}
	return out
}

// Matches reports whether the rule covers a finding location with the
// given input path and resolved extent.
func (r IgnoreRule) Matches(path string, span location.Span) bool {
	if !matchPattern(r.Pattern, path) {
		return false
	}
	if r.Line != 0 && r.Line != span.Start.Line {
		return false
	}
	if r.Column != 0 && r.Column != span.Start.Column {
		return false
	}
	return true
}

// matchPattern glob-matches a path. Patterns that aren't anchored also
// get tried with a **/ prefix, so "ci.yml" matches the workflow wherever
// its repository lives on disk.
func matchPattern(pattern, path string) bool {
	if pattern == "" {
		return false
	}

	normalized := filepath.ToSlash(pattern)
	candidates := []string{normalized}
	if !strings.HasPrefix(normalized, "**/") &&
		!strings.HasPrefix(normalized, "./") &&
		!strings.HasPrefix(normalized, "/") {
		candidates = append(candidates, "**/"+normalized)
	}

	target := strings.TrimPrefix(filepath.ToSlash(path), "./")
	for _, candidate := range candidates {
		if matched, err := doublestar.Match(strings.TrimPrefix(candidate, "./"), target); err == nil && matched {
			return true
		}
	}
	return false
}

// Ignores reports whether the configuration ignores the finding: any
// ignore rule registered for its ident matching any of its locations.
func (c *Config) Ignores(f *finding.Finding) bool {
	rc, ok := c.Rules[f.Ident]
	if !ok {
		return false
	}
	for _, rule := range rc.Ignore {
		for _, loc := range f.Locations {
			if rule.Matches(loc.Symbolic.Key.Path, loc.Concrete.Span) {
				return true
			}
		}
	}
	return false
}

// Disabled returns the rule IDs the configuration turns off, sorted.
func (c *Config) Disabled() []string {
	var ids []string
	for id, rc := range c.Rules {
		if rc.Disable {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// PolicyPaths returns the configured policy files, resolved relative to
// the configuration file's directory.
func (c *Config) PolicyPaths() []string {
	var paths []string
	for _, p := range c.Policies {
		if !filepath.IsAbs(p) && c.dir != "" {
			p = filepath.Join(c.dir, p)
		}
		paths = append(paths, p)
	}
	return paths
}

// configNames are the file names Load searches, most specific first.
var configNames = []string{
	".argos.yml",
	".argos.yaml",
	filepath.Join(".github", "argos.yml"),
	filepath.Join(".github", "argos.yaml"),
}

// Load reads configuration from the given path, or searches the standard
// locations when the path is empty. An explicitly named file must exist;
// an unsuccessful search just yields the zero configuration.
func Load(configPath string) (*Config, error) {
	explicit := configPath != ""
	if !explicit {
		configPath = findConfigFile()
		if configPath == "" {
			return &Config{}, nil
		}
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			if explicit {
				return nil, argoserrors.ErrConfigNotFound(configPath)
			}
			return &Config{}, nil
		}
		return nil, argoserrors.NewConfigError(
			fmt.Sprintf("failed to read configuration file %s", configPath), err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, argoserrors.NewConfigError(
			fmt.Sprintf("failed to parse configuration file %s", configPath), err,
			"Check the file against the configuration reference")
	}
	cfg.dir = filepath.Dir(configPath)
	return cfg, nil
}

func findConfigFile() string {
	for _, candidate := range configNames {
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate
		}
	}
	return ""
}
