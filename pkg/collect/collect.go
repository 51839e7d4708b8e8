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

// Package collect gathers the documents a run audits: workflow files and
// action definitions, from local paths or remote repositories.
package collect

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-git/go-git/v5/plumbing/format/gitignore"
	"github.com/hashicorp/go-hclog"
	"golang.org/x/sync/errgroup"

	"github.com/argos-audit/argos/pkg/errors"
	"github.com/argos-audit/argos/pkg/github"
	"github.com/argos-audit/argos/pkg/gitlab"
	"github.com/argos-audit/argos/pkg/location"
	"github.com/argos-audit/argos/pkg/parser"
)

// Mode selects which document kinds a collection gathers.
type Mode int

const (
	// ModeDefault collects workflows and action definitions, honoring
	// the repository's .gitignore during directory walks.
	ModeDefault Mode = iota
	// ModeAll collects the same set but walks ignored paths too.
	ModeAll
	ModeWorkflowsOnly
	ModeActionsOnly
)

// ParseMode parses a --collect flag value.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "", "default":
		return ModeDefault, nil
	case "all":
		return ModeAll, nil
	case "workflows-only":
		return ModeWorkflowsOnly, nil
	case "actions-only":
		return ModeActionsOnly, nil
	default:
		return ModeDefault, errors.NewConfigError(
			fmt.Sprintf("unknown collection mode %q", s), nil,
			"Use one of: default, all, workflows-only, actions-only")
	}
}

func (m Mode) workflows() bool { return m != ModeActionsOnly }
func (m Mode) actions() bool   { return m != ModeWorkflowsOnly }

// Inputs is one collection's yield, in deterministic order.
type Inputs struct {
	Workflows []*parser.Workflow
	Actions   []*parser.Action
}

// Empty reports whether nothing was collected.
func (in *Inputs) Empty() bool {
	return len(in.Workflows) == 0 && len(in.Actions) == 0
}

// Options configures a Collector.
type Options struct {
	Mode   Mode
	Logger hclog.Logger
	// Offline restricts the run to local paths; every remote input is
	// refused.
	Offline bool
	// GitHub serves owner/repo inputs; nil restricts the run to local
	// paths and GitLab URLs.
	GitHub *github.Client
	// GitLabToken authenticates per-instance GitLab clients built for
	// project URL inputs.
	GitLabToken string
	// FetchWorkers bounds parallel remote downloads.
	FetchWorkers int
}

// Collector resolves run inputs into parsed documents.
type Collector struct {
	mode        Mode
	logger      hclog.Logger
	offline     bool
	github      *github.Client
	gitlabToken string
	workers     int
}

func New(opts Options) *Collector {
	logger := opts.Logger
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	workers := opts.FetchWorkers
	if workers <= 0 {
		workers = 4
	}
	return &Collector{
		mode:        opts.Mode,
		logger:      logger.Named("collect"),
		offline:     opts.Offline,
		github:      opts.GitHub,
		gitlabToken: opts.GitLabToken,
		workers:     workers,
	}
}

// Collect resolves one run input: a local file, a local directory, a
// GitLab project URL, or a GitHub owner/repo[@ref] slug, in that order
// of interpretation.
func (c *Collector) Collect(ctx context.Context, input string) (*Inputs, error) {
	if info, err := os.Stat(input); err == nil {
		if info.IsDir() {
			return c.collectDir(input)
		}
		return c.collectFile(input)
	}

	if c.offline && (gitlab.IsProjectURL(input) || isSlug(input)) {
		return nil, errors.NewCollectionError(
			fmt.Sprintf("cannot collect %s: remote collection is unavailable in offline mode", input),
			nil, input,
			"Fetch the repository yourself and point argos at the checkout")
	}

	if gitlab.IsProjectURL(input) {
		return c.collectGitLab(ctx, input)
	}

	if owner, repo, ref, err := github.ParseSlug(input); err == nil {
		return c.collectGitHub(ctx, owner, repo, ref)
	}

	return nil, errors.NewCollectionError(
		fmt.Sprintf("cannot collect %q: not a local path, owner/repo slug, or GitLab project URL", input),
		nil, input)
}

// collectFile loads one explicitly named document. Bad YAML here is a
// hard error: the user pointed straight at the file.
func (c *Collector) collectFile(filePath string) (*Inputs, error) {
	inputs := &Inputs{}

	if isActionFile(filepath.Base(filePath)) {
		if !c.mode.actions() {
			return inputs, nil
		}
		action, err := parser.LoadAction(filePath)
		if err != nil {
			return nil, err
		}
		inputs.Actions = append(inputs.Actions, action)
		return inputs, nil
	}

	if !c.mode.workflows() {
		return inputs, nil
	}
	wf, err := parser.LoadWorkflow(filePath)
	if err != nil {
		return nil, err
	}
	inputs.Workflows = append(inputs.Workflows, wf)
	return inputs, nil
}

// collectDir walks a repository checkout: .github/workflows for
// workflows, the whole tree for action definitions. Unparseable files
// are logged and skipped so one broken document doesn't hide the rest.
func (c *Collector) collectDir(root string) (*Inputs, error) {
	inputs := &Inputs{}

	if c.mode.workflows() {
		workflowsDir := filepath.Join(root, ".github", "workflows")
		entries, err := os.ReadDir(workflowsDir)
		if err != nil && !os.IsNotExist(err) {
			return nil, errors.NewCollectionError(
				fmt.Sprintf("failed to read %s", workflowsDir), err, root)
		}
		for _, entry := range entries {
			if entry.IsDir() || !hasYAMLExt(entry.Name()) {
				continue
			}
			filePath := filepath.Join(workflowsDir, entry.Name())
			wf, err := parser.LoadWorkflow(filePath)
			if err != nil {
				c.logger.Warn("skipping unparseable workflow", "path", filePath, "error", err)
				continue
			}
			inputs.Workflows = append(inputs.Workflows, wf)
		}
	}

	if c.mode.actions() {
		matcher := c.ignoreMatcher(root)
		err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			rel, relErr := filepath.Rel(root, p)
			if relErr != nil || rel == "." {
				return nil
			}
			parts := strings.Split(filepath.ToSlash(rel), "/")
			if d.IsDir() {
				if d.Name() == ".git" {
					return filepath.SkipDir
				}
				if matcher != nil && matcher.Match(parts, true) {
					return filepath.SkipDir
				}
				return nil
			}
			if !isActionFile(d.Name()) {
				return nil
			}
			if matcher != nil && matcher.Match(parts, false) {
				return nil
			}
			action, err := parser.LoadAction(p)
			if err != nil {
				c.logger.Warn("skipping unparseable action definition", "path", p, "error", err)
				return nil
			}
			inputs.Actions = append(inputs.Actions, action)
			return nil
		})
		if err != nil {
			return nil, errors.NewCollectionError(
				fmt.Sprintf("failed to walk %s", root), err, root)
		}
	}

	return inputs, nil
}

// ignoreMatcher reads the checkout's root .gitignore. ModeAll walks
// ignored paths too, so it gets no matcher.
func (c *Collector) ignoreMatcher(root string) gitignore.Matcher {
	if c.mode == ModeAll {
		return nil
	}
	data, err := os.ReadFile(filepath.Join(root, ".gitignore"))
	if err != nil {
		return nil
	}

	var patterns []gitignore.Pattern
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		patterns = append(patterns, gitignore.ParsePattern(line, nil))
	}
	if len(patterns) == 0 {
		return nil
	}
	return gitignore.NewMatcher(patterns)
}

func (c *Collector) collectGitHub(ctx context.Context, owner, repo, ref string) (*Inputs, error) {
	if c.github == nil {
		return nil, errors.NewCollectionError(
			fmt.Sprintf("cannot collect %s/%s: no GitHub API client is available", owner, repo),
			nil, owner+"/"+repo,
			"Provide a token via --gh-token or GITHUB_TOKEN",
			"Remote collection is unavailable in offline mode")
	}

	if ref == "" {
		defaultBranch, err := c.github.DefaultBranch(ctx, owner, repo)
		if err != nil {
			return nil, err
		}
		ref = defaultBranch
	}

	paths, err := c.github.Tree(ctx, owner, repo, ref)
	if err != nil {
		return nil, err
	}

	slug := owner + "/" + repo
	fetch := func(ctx context.Context, filePath string) ([]byte, error) {
		return c.github.FileContents(ctx, owner, repo, ref, filePath)
	}
	return c.fetchRemote(ctx, slug, ref, paths, fetch)
}

func (c *Collector) collectGitLab(ctx context.Context, projectURL string) (*Inputs, error) {
	instance, project, ref, err := gitlab.ParseProjectURL(projectURL)
	if err != nil {
		return nil, err
	}

	client, err := gitlab.NewClient(c.gitlabToken, instance)
	if err != nil {
		return nil, err
	}

	if ref == "" {
		defaultBranch, err := client.DefaultBranch(ctx, project)
		if err != nil {
			return nil, err
		}
		ref = defaultBranch
	}

	paths, err := client.Tree(ctx, project, ref)
	if err != nil {
		return nil, err
	}

	fetch := func(ctx context.Context, filePath string) ([]byte, error) {
		return client.FileContents(ctx, project, ref, filePath)
	}
	return c.fetchRemote(ctx, project, ref, paths, fetch)
}

// fetchRemote downloads and parses the collectible subset of a remote
// tree listing. Downloads run in parallel; results keep tree order.
func (c *Collector) fetchRemote(ctx context.Context, slug, ref string, paths []string,
	fetch func(context.Context, string) ([]byte, error)) (*Inputs, error) {

	var workflowPaths, actionPaths []string
	for _, p := range paths {
		switch {
		case c.mode.workflows() && isWorkflowPath(p):
			workflowPaths = append(workflowPaths, p)
		case c.mode.actions() && isActionFile(path.Base(p)):
			actionPaths = append(actionPaths, p)
		}
	}
	sort.Strings(workflowPaths)
	sort.Strings(actionPaths)

	all := append(append([]string{}, workflowPaths...), actionPaths...)
	contents := make([][]byte, len(all))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.workers)
	for i, p := range all {
		g.Go(func() error {
			data, err := fetch(gctx, p)
			if err != nil {
				return err
			}
			contents[i] = data
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	inputs := &Inputs{}
	for i, p := range all {
		key := location.RemoteKey(slug, ref, p)
		if i < len(workflowPaths) {
			wf, err := parser.LoadWorkflowBytes(key, contents[i])
			if err != nil {
				c.logger.Warn("skipping unparseable workflow", "path", key.String(), "error", err)
				continue
			}
			inputs.Workflows = append(inputs.Workflows, wf)
			continue
		}
		action, err := parser.LoadActionBytes(key, contents[i])
		if err != nil {
			c.logger.Warn("skipping unparseable action definition", "path", key.String(), "error", err)
			continue
		}
		inputs.Actions = append(inputs.Actions, action)
	}
	return inputs, nil
}

func isSlug(input string) bool {
	_, _, _, err := github.ParseSlug(input)
	return err == nil
}

func hasYAMLExt(name string) bool {
	return strings.HasSuffix(name, ".yml") || strings.HasSuffix(name, ".yaml")
}

func isActionFile(name string) bool {
	return name == "action.yml" || name == "action.yaml"
}

func isWorkflowPath(p string) bool {
	return path.Dir(p) == ".github/workflows" && hasYAMLExt(path.Base(p))
}
