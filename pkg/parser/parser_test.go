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
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/argos-audit/argos/pkg/location"
	"github.com/argos-audit/argos/pkg/parser"
)

const sampleCI = `name: CI

on:
  push:
    branches: [main]
  workflow_dispatch:

permissions:
  contents: read

env:
  CARGO_TERM_COLOR: always

jobs:
  build:
    runs-on: ubuntu-latest
    permissions: {}
    steps:
      - uses: actions/checkout@v4
        with:
          persist-credentials: false
      - name: Build
        run: make all
        env:
          VERBOSE: "1"

  deploy:
    needs: build
    uses: octo-org/deploy/.github/workflows/deploy.yml@v2
    secrets: inherit
`

func mustWorkflow(t *testing.T, content string) *parser.Workflow {
	t.Helper()
	wf, err := parser.LoadWorkflowBytes(location.LocalKey("ci.yml"), []byte(content))
	if err != nil {
		t.Fatalf("LoadWorkflowBytes() = %v", err)
	}
	return wf
}

func TestLoadWorkflowBytes(t *testing.T) {
	wf := mustWorkflow(t, sampleCI)

	if wf.Name != "CI" {
		t.Errorf("Name = %q, want %q", wf.Name, "CI")
	}
	if want := []string{"push", "workflow_dispatch"}; len(wf.On.Names) != len(want) {
		t.Fatalf("On.Names = %v, want %v", wf.On.Names, want)
	}
	if !wf.On.Has("push") || !wf.On.Has("Push") {
		t.Errorf("On.Has(push) should match case-insensitively")
	}
	if wf.On.Has("pull_request") {
		t.Errorf("On.Has(pull_request) = true, want false")
	}
	if wf.On.Node("push") == nil {
		t.Errorf("On.Node(push) = nil, want configuration node")
	}
	if !wf.Permissions.Present || wf.Permissions.Scopes["contents"] != "read" {
		t.Errorf("Permissions = %+v, want contents: read", wf.Permissions)
	}
	if v, ok := wf.Env.Lookup("CARGO_TERM_COLOR"); !ok || v != "always" {
		t.Errorf("Env.Lookup(CARGO_TERM_COLOR) = %q, %v", v, ok)
	}

	if len(wf.Jobs) != 2 {
		t.Fatalf("len(Jobs) = %d, want 2", len(wf.Jobs))
	}
	build, deploy := wf.Jobs[0], wf.Jobs[1]
	if build.ID != "build" || build.Index != 0 {
		t.Errorf("Jobs[0] = %q (index %d), want build (index 0)", build.ID, build.Index)
	}
	if deploy.ID != "deploy" || deploy.Index != 1 {
		t.Errorf("Jobs[1] = %q (index %d), want deploy (index 1)", deploy.ID, deploy.Index)
	}
	if wf.Job("build") != build || wf.Job("missing") != nil {
		t.Errorf("Job() lookup mismatch")
	}

	if got := build.RunsOn.Labels; len(got) != 1 || got[0] != "ubuntu-latest" {
		t.Errorf("build.RunsOn.Labels = %v", got)
	}
	if !build.Permissions.Present || len(build.Permissions.Scopes) != 0 {
		t.Errorf("build.Permissions = %+v, want explicit empty block", build.Permissions)
	}
	if len(build.Steps) != 2 {
		t.Fatalf("len(build.Steps) = %d, want 2", len(build.Steps))
	}

	checkout := build.Steps[0]
	if !checkout.IsUses() || checkout.Uses != "actions/checkout@v4" {
		t.Errorf("step 0 Uses = %q", checkout.Uses)
	}
	if checkout.With["persist-credentials"] != "false" {
		t.Errorf("step 0 With = %v", checkout.With)
	}
	if checkout.Job() != build || checkout.Workflow() != wf || checkout.Index != 0 {
		t.Errorf("step 0 parent wiring is wrong")
	}

	buildStep := build.Steps[1]
	if !buildStep.IsRun() || buildStep.Run != "make all" {
		t.Errorf("step 1 Run = %q", buildStep.Run)
	}
	if v, _ := buildStep.Env.Lookup("VERBOSE"); v != "1" {
		t.Errorf("step 1 Env VERBOSE = %q, want 1", v)
	}
	if buildStep.ShellOrDefault() != "bash" {
		t.Errorf("step 1 shell = %q, want bash", buildStep.ShellOrDefault())
	}

	if !deploy.IsReusable() || deploy.Uses == "" {
		t.Errorf("deploy should be a reusable workflow call")
	}
	if !deploy.Secrets.Present || !deploy.Secrets.Inherit {
		t.Errorf("deploy.Secrets = %+v, want inherit", deploy.Secrets)
	}
	if got := deploy.Needs; len(got) != 1 || got[0] != "build" {
		t.Errorf("deploy.Needs = %v", got)
	}
}

func TestWorkflowLocations(t *testing.T) {
	wf := mustWorkflow(t, sampleCI)
	build := wf.Jobs[0]

	step := build.Steps[0]
	sym := step.Location()
	if got := sym.Route.String(); got != "jobs/build/steps/0" {
		t.Errorf("step route = %q, want jobs/build/steps/0", got)
	}
	conc, err := wf.Doc().Resolve(sym)
	if err != nil {
		t.Fatalf("Resolve(step) = %v", err)
	}
	if conc.Span.Start.Line != 19 || conc.Span.End.Line != 21 {
		t.Errorf("step span lines = %d..%d, want 19..21", conc.Span.Start.Line, conc.Span.End.Line)
	}
	if !strings.Contains(conc.Feature, "actions/checkout@v4") ||
		!strings.Contains(conc.Feature, "persist-credentials: false") {
		t.Errorf("step feature = %q", conc.Feature)
	}
	if strings.Contains(conc.Feature, "Build") {
		t.Errorf("step feature bleeds into the next step: %q", conc.Feature)
	}

	runSym := build.Steps[1].LocationWithKeys(location.Key("run"))
	runConc, err := wf.Doc().Resolve(runSym)
	if err != nil {
		t.Fatalf("Resolve(run) = %v", err)
	}
	if runConc.Feature != "run: make all" {
		t.Errorf("run feature = %q", runConc.Feature)
	}

	deployKey, err := wf.Doc().Resolve(wf.Jobs[1].KeyLocation())
	if err != nil {
		t.Fatalf("Resolve(deploy key) = %v", err)
	}
	if deployKey.Feature != "deploy" || deployKey.Span.Start.Line != 27 {
		t.Errorf("deploy key = %q at line %d, want deploy at 27", deployKey.Feature, deployKey.Span.Start.Line)
	}
}

func TestTriggerShapes(t *testing.T) {
	tests := []struct {
		yaml  string
		names []string
	}{
		{"on: push\njobs: {}\n", []string{"push"}},
		{"on: [push, pull_request]\njobs: {}\n", []string{"push", "pull_request"}},
		{"on:\n  schedule:\n    - cron: '0 0 * * *'\n  pull_request_target:\njobs: {}\n",
			[]string{"schedule", "pull_request_target"}},
	}

	for _, test := range tests {
		wf := mustWorkflow(t, test.yaml)
		if len(wf.On.Names) != len(test.names) {
			t.Errorf("On.Names = %v, want %v", wf.On.Names, test.names)
			continue
		}
		for i, name := range test.names {
			if wf.On.Names[i] != name {
				t.Errorf("On.Names[%d] = %q, want %q", i, wf.On.Names[i], name)
			}
		}
	}
}

func TestPermissionShapes(t *testing.T) {
	wf := mustWorkflow(t, "on: push\npermissions: write-all\njobs: {}\n")
	if !wf.Permissions.Present || wf.Permissions.Base != "write-all" {
		t.Errorf("blanket permissions = %+v", wf.Permissions)
	}

	wf = mustWorkflow(t, "on: push\njobs: {}\n")
	if wf.Permissions.Present {
		t.Errorf("absent permissions should not be marked present")
	}

	wf = mustWorkflow(t, "on: push\npermissions:\n  id-token: write\n  contents: read\njobs: {}\n")
	scopes := wf.Permissions.WriteScopes()
	if len(scopes) != 1 || scopes[0] != "id-token" {
		t.Errorf("WriteScopes() = %v, want [id-token]", scopes)
	}
}

func TestRunsOnShapes(t *testing.T) {
	tests := []struct {
		yaml   string
		labels []string
		group  string
	}{
		{"runs-on: ubuntu-latest", []string{"ubuntu-latest"}, ""},
		{"runs-on: [self-hosted, linux]", []string{"self-hosted", "linux"}, ""},
		{"runs-on:\n      group: larger-runners\n      labels: [xl]", []string{"xl"}, "larger-runners"},
	}

	for _, test := range tests {
		wf := mustWorkflow(t, "on: push\njobs:\n  j:\n    "+test.yaml+"\n    steps: []\n")
		job := wf.Jobs[0]
		if len(job.RunsOn.Labels) != len(test.labels) {
			t.Errorf("RunsOn.Labels = %v, want %v", job.RunsOn.Labels, test.labels)
		}
		if job.RunsOn.Group != test.group {
			t.Errorf("RunsOn.Group = %q, want %q", job.RunsOn.Group, test.group)
		}
	}
}

func TestEnvExpression(t *testing.T) {
	wf := mustWorkflow(t, "on: push\nenv: ${{ fromJSON(inputs.env) }}\njobs: {}\n")
	if !wf.Env.IsExpression() {
		t.Errorf("whole-block env expression not detected")
	}
	if _, ok := wf.Env.Lookup("anything"); ok {
		t.Errorf("expression env should have no literal vars")
	}
}

func TestStrategyMatrixStatic(t *testing.T) {
	static := mustWorkflow(t, `on: push
jobs:
  j:
    runs-on: ubuntu-latest
    strategy:
      matrix:
        os: [ubuntu-latest, macos-latest]
    steps: []
`)
	if !static.Jobs[0].Strategy.MatrixIsStatic() {
		t.Errorf("literal matrix reported as dynamic")
	}

	dynamic := mustWorkflow(t, `on: push
jobs:
  j:
    runs-on: ubuntu-latest
    strategy:
      matrix: ${{ fromJSON(needs.prep.outputs.matrix) }}
    steps: []
`)
	if dynamic.Jobs[0].Strategy.MatrixIsStatic() {
		t.Errorf("expression matrix reported as static")
	}

	var noStrategy *parser.Strategy
	if !noStrategy.MatrixIsStatic() {
		t.Errorf("absent strategy should count as static")
	}
}

func TestLoadActionBytes(t *testing.T) {
	content := `name: Setup
description: Sets up the build environment.
inputs:
  version:
    description: Version to install.
    default: latest
runs:
  using: composite
  steps:
    - uses: actions/cache@v4
      with:
        path: ~/.cargo
        key: cargo-${{ runner.os }}
    - run: ./install.sh "${{ inputs.version }}"
      shell: bash
`
	action, err := parser.LoadActionBytes(location.LocalKey("action.yml"), []byte(content))
	if err != nil {
		t.Fatalf("LoadActionBytes() = %v", err)
	}
	if !action.IsComposite() || action.IsDocker() || action.IsJavaScript() {
		t.Errorf("runs.using = %q misclassified", action.Runs.Using)
	}
	if action.Inputs["version"].Default != "latest" {
		t.Errorf("Inputs[version].Default = %q", action.Inputs["version"].Default)
	}
	if len(action.Runs.Steps) != 2 {
		t.Fatalf("len(Runs.Steps) = %d, want 2", len(action.Runs.Steps))
	}

	install := action.Runs.Steps[1]
	if !install.IsRun() || install.Shell != "bash" || install.Action() != action {
		t.Errorf("composite step wiring is wrong: %+v", install)
	}
	sym := install.Location()
	if got := sym.Route.String(); got != "runs/steps/1" {
		t.Errorf("step route = %q, want runs/steps/1", got)
	}
	conc, err := action.Doc().Resolve(sym)
	if err != nil {
		t.Fatalf("Resolve(step) = %v", err)
	}
	if conc.Span.Start.Line != 14 {
		t.Errorf("step starts at line %d, want 14", conc.Span.Start.Line)
	}

	docker, err := parser.LoadActionBytes(location.LocalKey("action.yml"),
		[]byte("name: Lint\nruns:\n  using: docker\n  image: Dockerfile\n"))
	if err != nil {
		t.Fatalf("LoadActionBytes(docker) = %v", err)
	}
	if !docker.IsDocker() || docker.Runs.Image != "Dockerfile" {
		t.Errorf("docker action misparsed: %+v", docker.Runs)
	}
}

func TestLoadWorkflowRejectsInvalidYAML(t *testing.T) {
	invalid := `name: Invalid
on: [push]
jobs:
  build:
    runs-on: ubuntu-latest
    steps:
    - uses: actions/checkout@v4
  - name: Missing indentation
      run: echo "broken"
`
	if _, err := parser.LoadWorkflowBytes(location.LocalKey("bad.yml"), []byte(invalid)); err == nil {
		t.Errorf("expected error parsing invalid workflow, got nil")
	}

	dir := t.TempDir()
	path := filepath.Join(dir, "workflow.txt")
	if err := os.WriteFile(path, []byte(sampleCI), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := parser.LoadWorkflow(path); err == nil {
		t.Errorf("expected error for non-YAML extension, got nil")
	}
}
