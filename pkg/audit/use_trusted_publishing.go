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

package audit

import (
	"context"

	"github.com/argos-audit/argos/pkg/finding"
	"github.com/argos-audit/argos/pkg/location"
	"github.com/argos-audit/argos/pkg/parser"
)

const manualCredentialAnnotation = "uses a manually-configured credential instead of Trusted Publishing"

// useTrustedPublishing nudges publishing steps towards OIDC-based
// trusted publishing where the target registry supports it. A
// long-lived registry token in the repository's secrets is a standing
// liability that trusted publishing removes outright.
type useTrustedPublishing struct {
	meta
}

func NewUseTrustedPublishing(*Context) (Audit, error) {
	return &useTrustedPublishing{
		meta: newMeta("use-trusted-publishing", "prefer trusted publishing for authentication"),
	}, nil
}

func (a *useTrustedPublishing) AuditWorkflow(ctx context.Context, workflow *parser.Workflow) ([]*finding.Finding, error) {
	var findings []*finding.Finding

	for _, job := range workflow.Jobs {
		for _, step := range job.Steps {
			if !step.IsUses() {
				continue
			}
			uses, err := parser.ParseUses(step.Uses)
			if err != nil {
				continue
			}
			credential, manual := manualCredential(uses, step.With)
			if !manual {
				continue
			}

			second := step.Location().Annotated(manualCredentialAnnotation)
			if len(credential) > 0 {
				second = step.LocationWithKeys(credential...).Annotated(manualCredentialAnnotation)
			}

			f, err := a.finding().
				Severity(finding.SeverityInformational).
				Confidence(finding.ConfidenceHigh).
				AddLocation(step.LocationWithKeys(location.Key("uses")).AsPrimary().
					Annotated("this step")).
				AddLocation(second).
				Build(workflow.Doc())
			if err != nil {
				return nil, err
			}
			findings = append(findings, f)
		}
	}

	return findings, nil
}

func (a *useTrustedPublishing) AuditAction(ctx context.Context, action *parser.Action) ([]*finding.Finding, error) {
	if !action.IsComposite() {
		return nil, nil
	}

	var findings []*finding.Finding
	for _, step := range action.Runs.Steps {
		if !step.IsUses() {
			continue
		}
		uses, err := parser.ParseUses(step.Uses)
		if err != nil {
			continue
		}
		credential, manual := manualCredential(uses, step.With)
		if !manual {
			continue
		}

		second := step.Location().Annotated(manualCredentialAnnotation)
		if len(credential) > 0 {
			second = step.LocationWithKeys(credential...).Annotated(manualCredentialAnnotation)
		}

		f, err := a.finding().
			Severity(finding.SeverityInformational).
			Confidence(finding.ConfidenceHigh).
			AddLocation(step.LocationWithKeys(location.Key("uses")).AsPrimary().
				Annotated("this step")).
			AddLocation(second).
			Build(action.Doc())
		if err != nil {
			return nil, err
		}
		findings = append(findings, f)
	}
	return findings, nil
}

// manualCredential reports whether the step authenticates to a
// registry with a manual credential, and the with-block route of that
// credential when one key in particular holds it.
func manualCredential(uses parser.Uses, with parser.With) ([]location.RouteComponent, bool) {
	switch {
	case uses.MatchesSlug("pypa/gh-action-pypi-publish"):
		if _, ok := with["password"]; !ok {
			return nil, false
		}
		repoURL, ok := with["repository-url"]
		if !ok {
			repoURL, ok = with["repository_url"]
		}
		if ok && repoURL != "https://upload.pypi.org/legacy/" && repoURL != "https://test.pypi.org/legacy/" {
			// Publishing to a third-party index, which may not support
			// trusted publishing at all.
			return nil, false
		}
		return []location.RouteComponent{location.Key("with"), location.Key("password")}, true

	case uses.MatchesSlug("rubygems/release-gem"):
		if v, ok := with["setup-trusted-publisher"]; ok && v != "true" {
			return nil, true
		}
		return nil, false

	case uses.MatchesSlug("rubygems/configure-rubygems-credential"):
		if _, ok := with["api-token"]; ok {
			return nil, true
		}
		return nil, false
	}

	return nil, false
}
