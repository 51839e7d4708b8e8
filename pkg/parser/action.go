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
	"strings"

	"github.com/argos-audit/argos/pkg/location"
)

// Action is a parsed action definition (action.yml or action.yaml).
type Action struct {
	Name        string                 `yaml:"name"`
	Description string                 `yaml:"description"`
	Inputs      map[string]ActionInput `yaml:"inputs"`
	Runs        ActionRuns             `yaml:"runs"`

	doc *location.Document
}

// ActionInput is one declared input of an action.
type ActionInput struct {
	Description string `yaml:"description"`
	Required    string `yaml:"required"`
	Default     string `yaml:"default"`
}

// ActionRuns is an action's `runs:` block.
type ActionRuns struct {
	Using string        `yaml:"using"`
	Main  string        `yaml:"main"`
	Image string        `yaml:"image"`
	Steps []*ActionStep `yaml:"steps"`
}

// ActionStep is a single step of a composite action.
type ActionStep struct {
	Index int `yaml:"-"`

	ID               string `yaml:"id"`
	Name             string `yaml:"name"`
	If               string `yaml:"if"`
	Uses             string `yaml:"uses"`
	Run              string `yaml:"run"`
	Shell            string `yaml:"shell"`
	WorkingDirectory string `yaml:"working-directory"`
	Env              Env    `yaml:"env"`
	With             With   `yaml:"with"`

	action *Action
}

func (a *Action) bind(doc *location.Document) {
	a.doc = doc
	for idx, step := range a.Runs.Steps {
		step.Index = idx
		step.action = a
	}
}

// Doc returns the source document the action was parsed from.
func (a *Action) Doc() *location.Document { return a.doc }

// Key returns the input key of the source document.
func (a *Action) Key() location.InputKey { return a.doc.Key() }

// IsComposite reports whether the action runs composite steps.
func (a *Action) IsComposite() bool { return a.Runs.Using == "composite" }

// IsDocker reports whether the action runs a container image.
func (a *Action) IsDocker() bool { return a.Runs.Using == "docker" }

// IsJavaScript reports whether the action runs on a Node runtime.
func (a *Action) IsJavaScript() bool { return strings.HasPrefix(a.Runs.Using, "node") }

// Location returns a symbolic location covering the entire action.
func (a *Action) Location() location.SymbolicLocation {
	return location.NewSymbolicLocation(a.doc.Key())
}

// Action returns the action the step belongs to.
func (s *ActionStep) Action() *Action { return s.action }

// IsRun reports whether the step executes an inline script.
func (s *ActionStep) IsRun() bool { return s.Run != "" }

// IsUses reports whether the step invokes another action.
func (s *ActionStep) IsUses() bool { return s.Uses != "" }

// ShellOrDefault returns the step's shell, falling back to bash. Composite
// steps are required to declare a shell, so the fallback only shows up on
// malformed inputs.
func (s *ActionStep) ShellOrDefault() string {
	if s.Shell != "" {
		return s.Shell
	}
	return "bash"
}

// Location returns a symbolic location covering the entire step.
func (s *ActionStep) Location() location.SymbolicLocation {
	return s.action.Location().WithKeys(
		location.Key("runs"), location.Key("steps"), location.Index(s.Index))
}

// LocationWithKeys extends the step's route deeper into its own mapping.
func (s *ActionStep) LocationWithKeys(components ...location.RouteComponent) location.SymbolicLocation {
	return s.Location().WithKeys(components...)
}

// LocationWithName returns the step's `name:` entry when it has one, and
// the whole step otherwise.
func (s *ActionStep) LocationWithName() location.SymbolicLocation {
	if s.Name != "" {
		return s.LocationWithKeys(location.Key("name"))
	}
	return s.Location()
}
