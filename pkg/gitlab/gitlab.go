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

// Package gitlab wraps the GitLab API with the surface remote collection
// needs for repositories mirrored on a GitLab instance. Only
// GitHub-Actions-style files are collected from mirrors; GitLab CI
// pipelines themselves are out of scope.
package gitlab

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	gitlab "github.com/xanzy/go-gitlab"

	"github.com/argos-audit/argos/pkg/errors"
)

// Client is a GitLab API client scoped to one instance.
type Client struct {
	api *gitlab.Client
}

// NewClient returns a client for the given instance. An empty instance
// URL targets gitlab.com; an empty token gives anonymous access to
// public projects.
func NewClient(token, instanceURL string) (*Client, error) {
	if instanceURL == "" {
		instanceURL = "https://gitlab.com"
	}
	if !strings.HasPrefix(instanceURL, "http://") && !strings.HasPrefix(instanceURL, "https://") {
		instanceURL = "https://" + instanceURL
	}

	api, err := gitlab.NewClient(token, gitlab.WithBaseURL(instanceURL))
	if err != nil {
		return nil, errors.NewCollectionError(
			fmt.Sprintf("failed to create GitLab client for %s", instanceURL), err, instanceURL)
	}
	return &Client{api: api}, nil
}

// DefaultBranch returns the project's default branch name. The project
// is the full "namespace/name" path, subgroups included.
func (c *Client) DefaultBranch(ctx context.Context, project string) (string, error) {
	p, _, err := c.api.Projects.GetProject(project, &gitlab.GetProjectOptions{}, gitlab.WithContext(ctx))
	if err != nil {
		return "", errors.NewCollectionError(
			fmt.Sprintf("failed to fetch project %s", project), err, project)
	}
	return p.DefaultBranch, nil
}

// Tree lists every blob path in the project at ref.
func (c *Client) Tree(ctx context.Context, project, ref string) ([]string, error) {
	opts := &gitlab.ListTreeOptions{
		ListOptions: gitlab.ListOptions{PerPage: 100},
		Recursive:   gitlab.Ptr(true),
	}
	if ref != "" {
		opts.Ref = gitlab.Ptr(ref)
	}

	var paths []string
	for {
		nodes, resp, err := c.api.Repositories.ListTree(project, opts, gitlab.WithContext(ctx))
		if err != nil {
			return nil, errors.NewCollectionError(
				fmt.Sprintf("failed to list tree for %s@%s", project, ref), err, project)
		}
		for _, node := range nodes {
			if node.Type == "blob" {
				paths = append(paths, node.Path)
			}
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return paths, nil
}

// FileContents fetches the raw contents of path in the project at ref.
func (c *Client) FileContents(ctx context.Context, project, ref, path string) ([]byte, error) {
	opts := &gitlab.GetRawFileOptions{}
	if ref != "" {
		opts.Ref = gitlab.Ptr(ref)
	}

	data, _, err := c.api.RepositoryFiles.GetRawFile(project, path, opts, gitlab.WithContext(ctx))
	if err != nil {
		return nil, errors.NewCollectionError(
			fmt.Sprintf("failed to fetch %s from %s@%s", path, project, ref), err, project)
	}
	return data, nil
}

// IsProjectURL reports whether input looks like a GitLab project URL
// rather than a local path or a GitHub owner/repo slug.
func IsProjectURL(input string) bool {
	if !strings.HasPrefix(input, "http://") && !strings.HasPrefix(input, "https://") {
		return false
	}
	u, err := url.Parse(input)
	if err != nil {
		return false
	}
	return strings.Contains(u.Host, "gitlab")
}

// ParseProjectURL splits a GitLab project URL into the instance URL and
// the full project path. Subgroup nesting is preserved:
// https://gitlab.com/group/sub/proj yields project "group/sub/proj".
// A trailing "@ref" on the path selects a ref.
func ParseProjectURL(projectURL string) (instanceURL, project, ref string, err error) {
	raw := strings.TrimSuffix(projectURL, ".git")

	u, err := url.Parse(raw)
	if err != nil {
		return "", "", "", errors.NewCollectionError(
			fmt.Sprintf("invalid GitLab project URL %q", projectURL), err, projectURL)
	}
	if u.Host == "" {
		return "", "", "", errors.NewCollectionError(
			fmt.Sprintf("invalid GitLab project URL %q", projectURL), nil, projectURL)
	}

	projectPath := strings.Trim(u.Path, "/")
	if at := strings.LastIndex(projectPath, "@"); at >= 0 {
		ref = projectPath[at+1:]
		projectPath = projectPath[:at]
	}
	if strings.Count(projectPath, "/") < 1 {
		return "", "", "", errors.NewCollectionError(
			fmt.Sprintf("invalid GitLab project URL %q: expected at least namespace/project", projectURL), nil, projectURL)
	}

	return u.Scheme + "://" + u.Host, projectPath, ref, nil
}
