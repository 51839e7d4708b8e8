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

// Package finding defines the result model shared by every audit: findings,
// their locations, and the severity/confidence/persona grading attached to
// them.
package finding

import "github.com/argos-audit/argos/pkg/location"

// Location pairs the symbolic description of a finding site with its
// resolved extent in the source document.
type Location struct {
	Symbolic location.SymbolicLocation `json:"symbolic"`
	Concrete location.ConcreteLocation `json:"concrete"`
}

// Finding is one result produced by an audit against one input document.
type Finding struct {
	Ident      string     `json:"ident"`
	Desc       string     `json:"desc"`
	URL        string     `json:"url,omitempty"`
	Severity   Severity   `json:"severity"`
	Confidence Confidence `json:"confidence"`
	Persona    Persona    `json:"persona"`
	Locations  []Location `json:"locations"`
	Ignored    bool       `json:"ignored"`
}

// PrimaryLocation returns the finding's primary location. Built findings
// always have one.
func (f *Finding) PrimaryLocation() *Location {
	for i := range f.Locations {
		if f.Locations[i].Symbolic.Primary {
			return &f.Locations[i]
		}
	}
	return nil
}

// Suppressed reports whether any of the finding's locations carries a
// comment suppressing its rule.
func (f *Finding) Suppressed() bool {
	for _, loc := range f.Locations {
		for _, comment := range loc.Concrete.Comments {
			if comment.Ignores(f.Ident) {
				return true
			}
		}
	}
	return false
}

// VisibleTo reports whether the finding is shown under the given persona.
func (f *Finding) VisibleTo(persona Persona) bool {
	return f.Persona <= persona
}
