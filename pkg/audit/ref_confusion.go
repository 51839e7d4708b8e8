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
	"github.com/argos-audit/argos/pkg/github"
	"github.com/argos-audit/argos/pkg/location"
	"github.com/argos-audit/argos/pkg/parser"
)

const confusableAnnotation = "uses a ref that's provided by both the branch and tag namespaces"

// refConfusion flags symbolic refs that exist as both a branch and a
// tag in the target repository. Which one GitHub picks is an
// implementation detail, so an attacker who can create the other
// namespace's entry controls what the pin resolves to.
type refConfusion struct {
	meta
	client *github.Client
}

func NewRefConfusion(ctx *Context) (Audit, error) {
	if err := ctx.requireOnline("ref-confusion"); err != nil {
		return nil, err
	}
	return &refConfusion{
		meta:   newMeta("ref-confusion", "git ref for action with ambiguous ref type"),
		client: ctx.GitHub,
	}, nil
}

func (a *refConfusion) AuditWorkflow(ctx context.Context, workflow *parser.Workflow) ([]*finding.Finding, error) {
	var findings []*finding.Finding

	for _, job := range workflow.Jobs {
		if job.IsReusable() {
			uses, err := parser.ParseWorkflowUses(job.Uses)
			if err != nil {
				continue
			}
			confusable, err := a.confusable(ctx, uses)
			if err != nil {
				return nil, err
			}
			if !confusable {
				continue
			}
			f, err := a.finding().
				Severity(finding.SeverityMedium).
				Confidence(finding.ConfidenceHigh).
				AddLocation(job.Location().AsPrimary().Annotated(confusableAnnotation)).
				Build(workflow.Doc())
			if err != nil {
				return nil, err
			}
			findings = append(findings, f)
			continue
		}

		for _, step := range job.Steps {
			if !step.IsUses() {
				continue
			}
			uses, err := parser.ParseUses(step.Uses)
			if err != nil {
				continue
			}
			confusable, err := a.confusable(ctx, uses)
			if err != nil {
				return nil, err
			}
			if !confusable {
				continue
			}
			f, err := a.finding().
				Severity(finding.SeverityMedium).
				Confidence(finding.ConfidenceHigh).
				AddLocation(step.LocationWithKeys(location.Key("uses")).AsPrimary().
					Annotated(confusableAnnotation)).
				Build(workflow.Doc())
			if err != nil {
				return nil, err
			}
			findings = append(findings, f)
		}
	}

	return findings, nil
}

func (a *refConfusion) AuditAction(ctx context.Context, action *parser.Action) ([]*finding.Finding, error) {
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
		confusable, err := a.confusable(ctx, uses)
		if err != nil {
			return nil, err
		}
		if !confusable {
			continue
		}
		f, err := a.finding().
			Severity(finding.SeverityMedium).
			Confidence(finding.ConfidenceHigh).
			AddLocation(step.LocationWithKeys(location.Key("uses")).AsPrimary().
				Annotated(confusableAnnotation)).
			Build(action.Doc())
		if err != nil {
			return nil, err
		}
		findings = append(findings, f)
	}
	return findings, nil
}

// confusable reports whether the clause's ref names both a branch and
// a tag in the target repository. Commit pins and unpinned clauses are
// never confusable.
func (a *refConfusion) confusable(ctx context.Context, uses parser.Uses) (bool, error) {
	if uses.Kind != parser.UsesRepo || uses.Ref == "" || uses.IsCommitRef() {
		return false, nil
	}

	branches, err := a.client.Branches(ctx, uses.Owner, uses.Repo)
	if err != nil {
		return false, err
	}
	isBranch := false
	for _, branch := range branches {
		if branch.Name == uses.Ref {
			isBranch = true
			break
		}
	}
	if !isBranch {
		return false, nil
	}

	tags, err := a.client.Tags(ctx, uses.Owner, uses.Repo)
	if err != nil {
		return false, err
	}
	for _, tag := range tags {
		if tag.Name == uses.Ref {
			return true, nil
		}
	}
	return false, nil
}
