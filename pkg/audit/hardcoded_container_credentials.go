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
	"sort"
	"strings"

	"github.com/argos-audit/argos/pkg/finding"
	"github.com/argos-audit/argos/pkg/location"
	"github.com/argos-audit/argos/pkg/parser"
)

// hardcodedContainerCredentials flags container registry passwords that
// are written directly into the workflow instead of being pulled from
// the secrets context.
type hardcodedContainerCredentials struct {
	meta
	noActionAudit
}

func NewHardcodedContainerCredentials(*Context) (Audit, error) {
	return &hardcodedContainerCredentials{
		meta: newMeta("hardcoded-container-credentials", "hardcoded credential in GitHub Actions container configurations"),
	}, nil
}

func (a *hardcodedContainerCredentials) AuditWorkflow(ctx context.Context, workflow *parser.Workflow) ([]*finding.Finding, error) {
	var findings []*finding.Finding

	for _, job := range workflow.Jobs {
		if job.IsReusable() {
			continue
		}

		if hardcodedPassword(job.Container) {
			f, err := a.finding().
				Severity(finding.SeverityHigh).
				Confidence(finding.ConfidenceHigh).
				AddLocation(job.Location().
					WithKeys(location.Key("container"), location.Key("credentials")).
					AsPrimary().
					Annotated("container registry password is hardcoded")).
				Build(workflow.Doc())
			if err != nil {
				return nil, err
			}
			findings = append(findings, f)
		}

		names := make([]string, 0, len(job.Services))
		for name := range job.Services {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			if !hardcodedPassword(job.Services[name]) {
				continue
			}
			f, err := a.finding().
				Severity(finding.SeverityHigh).
				Confidence(finding.ConfidenceHigh).
				AddLocation(job.Location().
					WithKeys(location.Key("services"), location.Key(name), location.Key("credentials")).
					AsPrimary().
					Annotated("container registry password is hardcoded")).
				Build(workflow.Doc())
			if err != nil {
				return nil, err
			}
			findings = append(findings, f)
		}
	}

	return findings, nil
}

// hardcodedPassword reports whether a container's registry password is a
// non-empty literal rather than an expression.
func hardcodedPassword(container *parser.Container) bool {
	if container == nil || container.Credentials == nil {
		return false
	}
	password := container.Credentials.Password
	return password != "" && !strings.Contains(password, "${{")
}
