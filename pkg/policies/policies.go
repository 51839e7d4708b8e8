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

// Package policies evaluates user-supplied Rego policies against
// findings. Policies decide which findings a run ignores, so teams can
// encode exceptions too nuanced for the static ignore patterns in the
// configuration file.
//
// Policies share the argos package and contribute clauses to a single
// boolean rule:
//
//	package argos
//
//	ignore if {
//	    input.ident == "unpinned-uses"
//	    startswith(input.locations[_].symbolic.key.path, "third_party/")
//	}
//
// Each finding is presented as input in its JSON shape. A finding is
// ignored when data.argos.ignore evaluates to true for it.
package policies

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/open-policy-agent/opa/v1/rego"

	argoserrors "github.com/argos-audit/argos/pkg/errors"
	"github.com/argos-audit/argos/pkg/finding"
)

const ignoreQuery = "data.argos.ignore"

// Engine holds a compiled set of policies. The zero Engine ignores
// nothing.
type Engine struct {
	query    rego.PreparedEvalQuery
	prepared bool
}

// Load reads and compiles the given policy files into one evaluable
// set. Loading no files yields an engine that ignores nothing.
func Load(paths []string) (*Engine, error) {
	if len(paths) == 0 {
		return &Engine{}, nil
	}

	opts := []func(*rego.Rego){rego.Query(ignoreQuery)}
	for _, path := range paths {
		content, err := os.ReadFile(path)
		if err != nil {
			return nil, argoserrors.NewPolicyError("failed to read policy file", err, path)
		}
		opts = append(opts, rego.Module(path, string(content)))
	}

	query, err := rego.New(opts...).PrepareForEval(context.Background())
	if err != nil {
		return nil, argoserrors.NewPolicyError(
			fmt.Sprintf("failed to compile %d policy file(s)", len(paths)), err, paths[0],
			"Policies must be valid Rego and share the argos package")
	}
	return &Engine{query: query, prepared: true}, nil
}

// Ignores evaluates the policy set against one finding.
func (e *Engine) Ignores(ctx context.Context, f *finding.Finding) (bool, error) {
	if !e.prepared {
		return false, nil
	}

	input, err := findingInput(f)
	if err != nil {
		return false, argoserrors.NewPolicyError("failed to encode finding for policy evaluation", err, "")
	}

	results, err := e.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return false, argoserrors.NewPolicyError(
			fmt.Sprintf("policy evaluation failed for rule %s", f.Ident), err, "")
	}

	for _, result := range results {
		for _, expr := range result.Expressions {
			if ignored, ok := expr.Value.(bool); ok && ignored {
				return true, nil
			}
		}
	}
	return false, nil
}

// findingInput converts a finding to the generic JSON shape policies
// evaluate against, so Rego sees the same field names as JSON reports.
func findingInput(f *finding.Finding) (interface{}, error) {
	data, err := json.Marshal(f)
	if err != nil {
		return nil, err
	}
	var input interface{}
	if err := json.Unmarshal(data, &input); err != nil {
		return nil, err
	}
	return input, nil
}
