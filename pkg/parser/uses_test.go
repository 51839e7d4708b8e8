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

package parser_test

import (
	"testing"

	"github.com/argos-audit/argos/pkg/parser"
)

func TestParseUses(t *testing.T) {
	tests := []struct {
		raw  string
		want parser.Uses
	}{
		{"actions/checkout@v4", parser.Uses{
			Kind: parser.UsesRepo, Owner: "actions", Repo: "checkout", Ref: "v4"}},
		{"actions/checkout", parser.Uses{
			Kind: parser.UsesRepo, Owner: "actions", Repo: "checkout"}},
		{"github/codeql-action/init@v3", parser.Uses{
			Kind: parser.UsesRepo, Owner: "github", Repo: "codeql-action", Subpath: "init", Ref: "v3"}},
		{"octo-org/deploy/.github/workflows/deploy.yml@main", parser.Uses{
			Kind: parser.UsesRepo, Owner: "octo-org", Repo: "deploy",
			Subpath: ".github/workflows/deploy.yml", Ref: "main"}},
		{"./.github/actions/setup", parser.Uses{
			Kind: parser.UsesLocal, Path: "./.github/actions/setup"}},
		{"docker://alpine:3.20", parser.Uses{
			Kind: parser.UsesDocker, Image: "alpine:3.20"}},
		{"docker://ghcr.io/owner/img@sha256:24dc", parser.Uses{
			Kind: parser.UsesDocker, Image: "ghcr.io/owner/img@sha256:24dc"}},
	}

	for _, test := range tests {
		got, err := parser.ParseUses(test.raw)
		if err != nil {
			t.Errorf("ParseUses(%q) = %v", test.raw, err)
			continue
		}
		test.want.Raw = test.raw
		if got != test.want {
			t.Errorf("ParseUses(%q) = %+v, want %+v", test.raw, got, test.want)
		}
	}
}

func TestParseUsesErrors(t *testing.T) {
	tests := []string{
		"",
		"checkout",          // no owner
		"/checkout@v4",      // empty owner
		"actions/@v4",       // empty repo
		"actions/checkout@", // empty ref
		"docker://",
	}

	for _, raw := range tests {
		if _, err := parser.ParseUses(raw); err == nil {
			t.Errorf("ParseUses(%q) succeeded, want error", raw)
		}
	}
}

func TestParseWorkflowUses(t *testing.T) {
	if _, err := parser.ParseWorkflowUses("octo-org/deploy/.github/workflows/d.yml@v2"); err != nil {
		t.Errorf("remote call with ref rejected: %v", err)
	}
	if _, err := parser.ParseWorkflowUses("./.github/workflows/local.yml"); err != nil {
		t.Errorf("local call rejected: %v", err)
	}
	if _, err := parser.ParseWorkflowUses("octo-org/deploy/.github/workflows/d.yml"); err == nil {
		t.Errorf("remote call without ref accepted")
	}
	if _, err := parser.ParseWorkflowUses("docker://alpine"); err == nil {
		t.Errorf("docker target accepted as workflow call")
	}
}

func TestUsesRefKinds(t *testing.T) {
	tests := []struct {
		raw       string
		pinned    bool
		commitRef bool
	}{
		{"actions/checkout@v4", true, false},
		{"actions/checkout@main", true, false},
		{"actions/checkout", false, false},
		{"actions/checkout@8f4b7f84864484a7bf31766abe9204da3cbe65b3", true, true},
		{"actions/checkout@8F4B7F84864484A7BF31766ABE9204DA3CBE65B3", true, true},
		{"actions/checkout@8f4b7f8", true, false}, // abbreviated hashes are not commit refs
		{"actions/checkout@deadbeefdeadbeefdeadbeefdeadbeefdeadbeeg", true, false},
	}

	for _, test := range tests {
		u, err := parser.ParseUses(test.raw)
		if err != nil {
			t.Fatalf("ParseUses(%q) = %v", test.raw, err)
		}
		if u.Pinned() != test.pinned {
			t.Errorf("ParseUses(%q).Pinned() = %v, want %v", test.raw, u.Pinned(), test.pinned)
		}
		if u.IsCommitRef() != test.commitRef {
			t.Errorf("ParseUses(%q).IsCommitRef() = %v, want %v", test.raw, u.IsCommitRef(), test.commitRef)
		}
	}
}

func TestUsesPinningStrength(t *testing.T) {
	tests := []struct {
		raw      string
		unpinned bool
		unhashed bool
	}{
		{"actions/checkout", true, true},
		{"actions/checkout@v4", false, true},
		{"actions/checkout@8f4b7f84864484a7bf31766abe9204da3cbe65b3", false, false},
		{"docker://ubuntu", true, true},
		{"docker://ubuntu:24.04", false, true},
		{"docker://alpine@sha256:beefdead", false, false},
		{"docker://ghcr.io/owner/tool:v1", false, true},
		{"docker://localhost:5000/img", true, true}, // registry port is not a tag
		{"./.github/actions/setup", false, false},
	}

	for _, test := range tests {
		u, err := parser.ParseUses(test.raw)
		if err != nil {
			t.Fatalf("ParseUses(%q) = %v", test.raw, err)
		}
		if u.Unpinned() != test.unpinned {
			t.Errorf("ParseUses(%q).Unpinned() = %v, want %v", test.raw, u.Unpinned(), test.unpinned)
		}
		if u.Unhashed() != test.unhashed {
			t.Errorf("ParseUses(%q).Unhashed() = %v, want %v", test.raw, u.Unhashed(), test.unhashed)
		}
	}
}

func TestUsesSlug(t *testing.T) {
	u, err := parser.ParseUses("Actions/CheckOut@v4")
	if err != nil {
		t.Fatalf("ParseUses() = %v", err)
	}
	if u.Slug() != "Actions/CheckOut" {
		t.Errorf("Slug() = %q", u.Slug())
	}
	if !u.MatchesSlug("actions/checkout") {
		t.Errorf("MatchesSlug should compare case-insensitively")
	}
	if u.MatchesSlug("actions/cache") {
		t.Errorf("MatchesSlug matched the wrong repository")
	}

	local, _ := parser.ParseUses("./setup")
	if local.Slug() != "" || local.MatchesSlug("actions/checkout") {
		t.Errorf("local uses should have no slug")
	}
}
