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

package parser

import (
	"fmt"
	"strings"
)

// UsesKind discriminates the three shapes a `uses:` clause can take.
type UsesKind int

const (
	// UsesRepo is an action or reusable workflow in a GitHub repository,
	// e.g. actions/checkout@v4 or octo/repo/.github/workflows/ci.yml@main.
	UsesRepo UsesKind = iota
	// UsesLocal is an action in the current repository, e.g. ./.github/actions/setup.
	UsesLocal
	// UsesDocker is a container image, e.g. docker://alpine:3.20.
	UsesDocker
)

func (k UsesKind) String() string {
	switch k {
	case UsesRepo:
		return "repository"
	case UsesLocal:
		return "local"
	case UsesDocker:
		return "docker"
	}
	return "unknown"
}

// Uses is a parsed `uses:` clause.
type Uses struct {
	Kind UsesKind

	// Owner, Repo, Subpath, and Ref are set for UsesRepo. Subpath and Ref
	// may be empty.
	Owner   string
	Repo    string
	Subpath string
	Ref     string

	// Image is set for UsesDocker, without the docker:// prefix.
	Image string

	// Path is set for UsesLocal, including the leading ./.
	Path string

	Raw string
}

// ParseUses parses a step's `uses:` clause.
func ParseUses(raw string) (Uses, error) {
	u := Uses{Raw: raw}
	switch {
	case strings.HasPrefix(raw, "./"):
		u.Kind = UsesLocal
		u.Path = raw
		return u, nil
	case strings.HasPrefix(raw, "docker://"):
		u.Kind = UsesDocker
		u.Image = strings.TrimPrefix(raw, "docker://")
		if u.Image == "" {
			return Uses{}, fmt.Errorf("malformed uses clause %q: missing image", raw)
		}
		return u, nil
	}

	u.Kind = UsesRepo
	path := raw
	if at := strings.LastIndex(raw, "@"); at >= 0 {
		path, u.Ref = raw[:at], raw[at+1:]
		if u.Ref == "" {
			return Uses{}, fmt.Errorf("malformed uses clause %q: empty ref", raw)
		}
	}
	parts := strings.SplitN(path, "/", 3)
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return Uses{}, fmt.Errorf("malformed uses clause %q: expected owner/repo", raw)
	}
	u.Owner, u.Repo = parts[0], parts[1]
	if len(parts) == 3 {
		u.Subpath = parts[2]
	}
	return u, nil
}

// ParseWorkflowUses parses a reusable workflow call target. Remote targets
// must carry a ref, and docker targets are invalid.
func ParseWorkflowUses(raw string) (Uses, error) {
	u, err := ParseUses(raw)
	if err != nil {
		return Uses{}, err
	}
	switch u.Kind {
	case UsesDocker:
		return Uses{}, fmt.Errorf("malformed uses clause %q: docker targets cannot be called as workflows", raw)
	case UsesRepo:
		if u.Ref == "" {
			return Uses{}, fmt.Errorf("malformed uses clause %q: reusable workflow calls must name a ref", raw)
		}
	}
	return u, nil
}

// Pinned reports whether the clause names any ref at all.
func (u Uses) Pinned() bool { return u.Ref != "" }

// Unpinned reports whether the clause floats with no ref at all: a bare
// repository reference, or a docker image with neither tag nor digest.
func (u Uses) Unpinned() bool {
	switch u.Kind {
	case UsesRepo:
		return u.Ref == ""
	case UsesDocker:
		return u.imageDigest() == "" && u.imageTag() == ""
	}
	return false
}

// Unhashed reports whether the clause is pinned to anything weaker than
// an immutable ref: a branch or tag instead of a commit SHA, or a docker
// tag instead of a digest.
func (u Uses) Unhashed() bool {
	switch u.Kind {
	case UsesRepo:
		return !u.IsCommitRef()
	case UsesDocker:
		return u.imageDigest() == ""
	}
	return false
}

// imageDigest returns the digest portion of a docker image, e.g. the
// sha256:... suffix of alpine@sha256:..., or "" when absent.
func (u Uses) imageDigest() string {
	if at := strings.LastIndex(u.Image, "@"); at >= 0 {
		return u.Image[at+1:]
	}
	return ""
}

// imageTag returns the tag portion of a docker image, or "" when absent.
// The tag colon follows the last path segment, which keeps registry ports
// like localhost:5000/img from reading as tags.
func (u Uses) imageTag() string {
	name := u.Image
	if at := strings.LastIndex(name, "@"); at >= 0 {
		name = name[:at]
	}
	last := name[strings.LastIndex(name, "/")+1:]
	if colon := strings.Index(last, ":"); colon >= 0 {
		return last[colon+1:]
	}
	return ""
}

// IsCommitRef reports whether the ref is a full 40-character commit SHA.
func (u Uses) IsCommitRef() bool {
	if len(u.Ref) != 40 {
		return false
	}
	for i := 0; i < len(u.Ref); i++ {
		c := u.Ref[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') && (c < 'A' || c > 'F') {
			return false
		}
	}
	return true
}

// Slug returns owner/repo for repository clauses.
func (u Uses) Slug() string {
	if u.Kind != UsesRepo {
		return ""
	}
	return u.Owner + "/" + u.Repo
}

// MatchesSlug reports whether the clause targets the given owner/repo,
// compared case-insensitively the way GitHub treats repository names.
func (u Uses) MatchesSlug(slug string) bool {
	return u.Kind == UsesRepo && strings.EqualFold(u.Slug(), slug)
}

func (u Uses) String() string { return u.Raw }
