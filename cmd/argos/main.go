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

// Command argos audits GitHub Actions workflows and composite actions
// for security issues. Inputs are workflow files, directories, GitLab
// project URLs, or owner/repo[@ref] slugs for GitHub repositories.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/urfave/cli/v2"

	"github.com/argos-audit/argos/pkg/audit"
	"github.com/argos-audit/argos/pkg/collect"
	"github.com/argos-audit/argos/pkg/concurrent"
	"github.com/argos-audit/argos/pkg/config"
	"github.com/argos-audit/argos/pkg/engine"
	argoserrors "github.com/argos-audit/argos/pkg/errors"
	"github.com/argos-audit/argos/pkg/finding"
	"github.com/argos-audit/argos/pkg/github"
	"github.com/argos-audit/argos/pkg/location"
	"github.com/argos-audit/argos/pkg/policies"
	"github.com/argos-audit/argos/pkg/report"
	"github.com/argos-audit/argos/pkg/vulndb"
)

var version = "0.1.0"

func main() {
	app := &cli.App{
		Name:      "argos",
		Version:   version,
		Usage:     "Finds security issues in GitHub Actions setups",
		ArgsUsage: "input [input ...]",
		Authors: []*cli.Author{
			{
				Name: "Argos Authors",
			},
		},
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "persona",
				Usage: "Audit persona (regular, pedantic, auditor)",
			},
			&cli.BoolFlag{
				Name:  "pedantic",
				Usage: "Emit pedantic findings (alias for --persona=pedantic)",
			},
			&cli.StringFlag{
				Name:  "min-severity",
				Usage: "Filter findings below this severity (unknown, informational, low, medium, high)",
			},
			&cli.StringFlag{
				Name:  "min-confidence",
				Usage: "Filter findings below this confidence (unknown, low, medium, high)",
			},
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"o", "output"},
				Usage:   "Output format (plain, json, sarif, github)",
			},
			&cli.StringFlag{
				Name:    "output-file",
				Aliases: []string{"f"},
				Usage:   "Output file path (if not specified, prints to stdout)",
			},
			&cli.BoolFlag{
				Name:    "offline",
				EnvVars: []string{"ARGOS_OFFLINE"},
				Usage:   "Perform only offline operations: no online audits, no remote inputs",
			},
			&cli.StringFlag{
				Name:    "gh-token",
				EnvVars: []string{"GH_TOKEN", "GITHUB_TOKEN"},
				Usage:   "GitHub API token for remote inputs and online audits",
			},
			&cli.StringFlag{
				Name:    "gitlab-token",
				EnvVars: []string{"GITLAB_TOKEN"},
				Usage:   "GitLab API token for mirrored project inputs",
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Configuration file path (.argos.yml)",
			},
			&cli.BoolFlag{
				Name:  "no-config",
				Usage: "Disable configuration loading entirely",
			},
			&cli.StringSliceFlag{
				Name:    "policy",
				Aliases: []string{"p"},
				Usage:   "Rego policy file deciding which findings to ignore (repeatable)",
			},
			&cli.StringFlag{
				Name:  "collect",
				Usage: "Input collection mode (default, all, workflows-only, actions-only)",
			},
			&cli.BoolFlag{
				Name:  "no-exit-codes",
				Usage: "Disable all exit codes besides success and tool failure",
			},
			&cli.IntFlag{
				Name:  "workers",
				Usage: "Number of concurrent audit workers (0 uses the CPU count)",
			},
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "Enable debug logging",
			},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		var ae *argoserrors.ArgosError
		if errors.As(err, &ae) {
			fmt.Fprintln(os.Stderr, ae.UserFriendlyMessage())
		} else {
			fmt.Fprintln(os.Stderr, "❌ "+err.Error())
		}
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	start := time.Now()

	level := hclog.Warn
	if c.Bool("verbose") {
		level = hclog.Debug
	}
	logger := hclog.New(&hclog.LoggerOptions{
		Name:   "argos",
		Output: os.Stderr,
		Level:  level,
	})

	format, err := report.ParseFormat(c.String("format"))
	if err != nil {
		return err
	}

	mode, err := collect.ParseMode(c.String("collect"))
	if err != nil {
		return err
	}

	cfg := &config.Config{}
	if !c.Bool("no-config") {
		cfg, err = config.Load(c.String("config"))
		if err != nil {
			return err
		}
	}

	persona, err := runPersona(c, cfg)
	if err != nil {
		return err
	}
	minSeverity, minConfidence, err := runMinimums(c, cfg)
	if err != nil {
		return err
	}

	inputArgs := c.Args().Slice()
	if len(inputArgs) == 0 {
		return argoserrors.ErrNoInputSpecified()
	}

	offline := c.Bool("offline")
	var gh *github.Client
	if !offline {
		gh = github.NewClient(c.Context, c.String("gh-token"))
	}

	collector := collect.New(collect.Options{
		Mode:         mode,
		Logger:       logger,
		Offline:      offline,
		GitHub:       gh,
		GitLabToken:  c.String("gitlab-token"),
		FetchWorkers: c.Int("workers"),
	})

	inputs := engine.NewInputRegistry()
	for _, arg := range inputArgs {
		collected, err := collector.Collect(c.Context, arg)
		if err != nil {
			return err
		}
		if collected.Empty() {
			return argoserrors.NewCollectionError(
				fmt.Sprintf("no auditable documents found in %s", arg), nil, arg,
				"Point argos at a workflow file, a repository root, or an owner/repo slug")
		}
		for _, wf := range collected.Workflows {
			inputs.AddWorkflow(wf)
		}
		for _, action := range collected.Actions {
			inputs.AddAction(action)
		}
	}
	logger.Debug("collected inputs", "count", inputs.Len())

	audits := engine.NewAuditRegistry(logger)
	audits.Disable(cfg.Disabled()...)
	if err := audits.RegisterBuiltin(&audit.Context{
		Offline: offline,
		GitHub:  gh,
		VulnDB:  vulndb.NewClient(),
		Logger:  logger,
	}); err != nil {
		return err
	}

	policyPaths := append(cfg.PolicyPaths(), c.StringSlice("policy")...)
	policyEngine, err := policies.Load(policyPaths)
	if err != nil {
		return err
	}

	registry := engine.NewFindingRegistry(engine.RegistryOptions{
		Persona:       persona,
		MinSeverity:   minSeverity,
		MinConfidence: minConfidence,
		Ignorer: engine.Ignorers(
			engine.IgnorerFunc(func(ctx context.Context, f *finding.Finding) (bool, error) {
				return cfg.Ignores(f), nil
			}),
			policyEngine,
		),
		Logger: logger,
	})

	eng := engine.New(engine.Options{
		Inputs: inputs,
		Audits: audits,
		Pool:   concurrent.NewPool(c.Int("workers")),
		Logger: logger,
	})
	pairErrors, err := eng.Run(c.Context, registry)
	if err != nil {
		return err
	}

	docs := make(map[location.InputKey]*location.Document, inputs.Len())
	for _, in := range inputs.Inputs() {
		docs[in.Key()] = in.Doc()
	}
	results := &report.Results{
		Findings:   registry.Reported(),
		Ignored:    len(registry.Ignored()),
		Suppressed: len(registry.Suppressed()),
		Errors:     len(pairErrors),
		Inputs:     inputs.Len(),
		Audits:     audits.Len(),
		Start:      start,
		Duration:   time.Since(start),
		Docs:       docs,
	}

	out := os.Stdout
	if path := c.String("output-file"); path != "" {
		out, err = os.Create(path)
		if err != nil {
			return argoserrors.NewReportError(
				fmt.Sprintf("failed to create output file %s", path), err, path)
		}
		defer out.Close()
	}
	if err := report.NewGenerator(out, format).Generate(results); err != nil {
		return err
	}

	// SARIF consumers upload the report as a build artifact; failing
	// the run would block the upload step.
	if c.Bool("no-exit-codes") || format == report.FormatSARIF {
		return nil
	}
	if code := registry.ExitCode(); code != 0 {
		return cli.Exit("", code)
	}
	return nil
}

// runPersona resolves the run's persona: the --pedantic shorthand and
// the --persona flag override the configuration, which overrides the
// regular default.
func runPersona(c *cli.Context, cfg *config.Config) (finding.Persona, error) {
	if c.Bool("pedantic") {
		return finding.PersonaPedantic, nil
	}
	if raw := c.String("persona"); raw != "" {
		return finding.ParsePersona(raw)
	}
	if cfg.Persona != nil {
		return *cfg.Persona, nil
	}
	return finding.PersonaRegular, nil
}

// runMinimums resolves the severity and confidence floors, flags over
// configuration. The zero values keep every finding.
func runMinimums(c *cli.Context, cfg *config.Config) (finding.Severity, finding.Confidence, error) {
	var minSeverity finding.Severity
	var minConfidence finding.Confidence

	if cfg.MinSeverity != nil {
		minSeverity = *cfg.MinSeverity
	}
	if cfg.MinConfidence != nil {
		minConfidence = *cfg.MinConfidence
	}

	if raw := c.String("min-severity"); raw != "" {
		parsed, err := finding.ParseSeverity(raw)
		if err != nil {
			return 0, 0, err
		}
		minSeverity = parsed
	}
	if raw := c.String("min-confidence"); raw != "" {
		parsed, err := finding.ParseConfidence(raw)
		if err != nil {
			return 0, 0, err
		}
		minConfidence = parsed
	}
	return minSeverity, minConfidence, nil
}
