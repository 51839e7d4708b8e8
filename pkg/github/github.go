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

// Package github wraps the GitHub REST API with the small surface that
// online audits and remote input collection need.
package github

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/google/go-github/v53/github"
	"golang.org/x/oauth2"

	"github.com/argos-audit/argos/pkg/errors"
)

// Client is a GitHub API client. Branch and tag listings are memoized
// per repository, since audits interrogate the same action repositories
// once per use of the action.
type Client struct {
	rest *github.Client

	mu       sync.Mutex
	branches map[string][]RefTip
	tags     map[string][]RefTip
}

// RefTip is a named ref and the commit it points at.
type RefTip struct {
	Name string
	SHA  string
}

// Comparison describes how one commit relates to another in a
// repository's history.
type Comparison int

const (
	// ComparisonUnrelated means the two commits share no history. The
	// API reports this as a 404 on the compare endpoint.
	ComparisonUnrelated Comparison = iota
	ComparisonIdentical
	ComparisonAhead
	ComparisonBehind
	ComparisonDiverged
)

// Contains reports whether the base side of the comparison already
// holds the head commit.
func (c Comparison) Contains() bool {
	return c == ComparisonIdentical || c == ComparisonBehind
}

// NewClient returns a client that authenticates with token when one is
// supplied and falls back to anonymous, rate-limited access otherwise.
func NewClient(ctx context.Context, token string) *Client {
	var hc *http.Client
	if token != "" {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
		hc = oauth2.NewClient(ctx, ts)
	}

	return &Client{
		rest:     github.NewClient(hc),
		branches: make(map[string][]RefTip),
		tags:     make(map[string][]RefTip),
	}
}

// Branches lists every branch in owner/repo with its tip commit.
func (c *Client) Branches(ctx context.Context, owner, repo string) ([]RefTip, error) {
	key := owner + "/" + repo

	c.mu.Lock()
	cached, ok := c.branches[key]
	c.mu.Unlock()
	if ok {
		return cached, nil
	}

	var tips []RefTip
	opts := &github.BranchListOptions{
		ListOptions: github.ListOptions{PerPage: 100},
	}
	for {
		page, resp, err := c.rest.Repositories.ListBranches(ctx, owner, repo, opts)
		if err != nil {
			return nil, errors.NewCollectionError(
				fmt.Sprintf("failed to list branches for %s", key), err, key)
		}
		for _, branch := range page {
			tips = append(tips, RefTip{
				Name: branch.GetName(),
				SHA:  branch.GetCommit().GetSHA(),
			})
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	c.mu.Lock()
	c.branches[key] = tips
	c.mu.Unlock()

	return tips, nil
}

// Tags lists every tag in owner/repo with its tip commit.
func (c *Client) Tags(ctx context.Context, owner, repo string) ([]RefTip, error) {
	key := owner + "/" + repo

	c.mu.Lock()
	cached, ok := c.tags[key]
	c.mu.Unlock()
	if ok {
		return cached, nil
	}

	var tips []RefTip
	opts := &github.ListOptions{PerPage: 100}
	for {
		page, resp, err := c.rest.Repositories.ListTags(ctx, owner, repo, opts)
		if err != nil {
			return nil, errors.NewCollectionError(
				fmt.Sprintf("failed to list tags for %s", key), err, key)
		}
		for _, tag := range page {
			tips = append(tips, RefTip{
				Name: tag.GetName(),
				SHA:  tag.GetCommit().GetSHA(),
			})
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	c.mu.Lock()
	c.tags[key] = tips
	c.mu.Unlock()

	return tips, nil
}

// CompareCommits relates base to head in owner/repo. A 404 from the
// compare endpoint means the commits share no history and is reported
// as ComparisonUnrelated, not as an error.
func (c *Client) CompareCommits(ctx context.Context, owner, repo, base, head string) (Comparison, error) {
	cmp, resp, err := c.rest.Repositories.CompareCommits(ctx, owner, repo, base, head, nil)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusNotFound {
			return ComparisonUnrelated, nil
		}
		return ComparisonUnrelated, errors.NewCollectionError(
			fmt.Sprintf("failed to compare %s...%s in %s/%s", base, head, owner, repo), err, owner+"/"+repo)
	}

	switch cmp.GetStatus() {
	case "identical":
		return ComparisonIdentical, nil
	case "ahead":
		return ComparisonAhead, nil
	case "behind":
		return ComparisonBehind, nil
	case "diverged":
		return ComparisonDiverged, nil
	default:
		return ComparisonUnrelated, errors.NewCollectionError(
			fmt.Sprintf("unexpected comparison status %q", cmp.GetStatus()), nil, owner+"/"+repo)
	}
}

// DefaultBranch returns the repository's default branch name.
func (c *Client) DefaultBranch(ctx context.Context, owner, repo string) (string, error) {
	repository, _, err := c.rest.Repositories.Get(ctx, owner, repo)
	if err != nil {
		return "", errors.NewCollectionError(
			fmt.Sprintf("failed to fetch repository %s/%s", owner, repo), err, owner+"/"+repo)
	}
	return repository.GetDefaultBranch(), nil
}

// Tree lists every blob path in owner/repo at ref. GitHub truncates
// trees past a size limit; truncated listings are returned as-is.
func (c *Client) Tree(ctx context.Context, owner, repo, ref string) ([]string, error) {
	tree, _, err := c.rest.Git.GetTree(ctx, owner, repo, ref, true)
	if err != nil {
		return nil, errors.NewCollectionError(
			fmt.Sprintf("failed to list tree for %s/%s@%s", owner, repo, ref), err, owner+"/"+repo)
	}

	var paths []string
	for _, entry := range tree.Entries {
		if entry.GetType() == "blob" {
			paths = append(paths, entry.GetPath())
		}
	}
	return paths, nil
}

// FileContents fetches the raw contents of path in owner/repo at ref.
func (c *Client) FileContents(ctx context.Context, owner, repo, ref, path string) ([]byte, error) {
	rc, _, err := c.rest.Repositories.DownloadContents(ctx, owner, repo, path, &github.RepositoryContentGetOptions{Ref: ref})
	if err != nil {
		return nil, errors.NewCollectionError(
			fmt.Sprintf("failed to fetch %s from %s/%s@%s", path, owner, repo, ref), err, owner+"/"+repo)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, errors.NewCollectionError(
			fmt.Sprintf("failed to read %s from %s/%s@%s", path, owner, repo, ref), err, owner+"/"+repo)
	}
	return data, nil
}

// ParseSlug splits an "owner/repo" or "owner/repo@ref" input into its
// parts. The ref is empty when the input does not carry one.
func ParseSlug(slug string) (owner, repo, ref string, err error) {
	rest := slug
	if at := strings.IndexByte(rest, '@'); at >= 0 {
		ref = rest[at+1:]
		rest = rest[:at]
		if ref == "" {
			return "", "", "", fmt.Errorf("invalid repository slug %q: empty ref", slug)
		}
	}

	parts := strings.Split(rest, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", "", fmt.Errorf("invalid repository slug %q: expected owner/repo", slug)
	}

	return parts[0], parts[1], ref, nil
}
