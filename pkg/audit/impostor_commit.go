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
	"strings"

	"github.com/argos-audit/argos/pkg/finding"
	"github.com/argos-audit/argos/pkg/github"
	"github.com/argos-audit/argos/pkg/parser"
)

const impostorAnnotation = "uses a commit that doesn't belong to the specified org/repo"

// impostorCommit flags commit-pinned uses clauses whose commit is not
// reachable from any branch or tag of the named repository. GitHub
// resolves such commits anyway when they exist in a fork's network,
// so a pin can silently execute code the named repository never
// carried.
type impostorCommit struct {
	meta
	client *github.Client
}

func NewImpostorCommit(ctx *Context) (Audit, error) {
	if err := ctx.requireOnline("impostor-commit"); err != nil {
		return nil, err
	}
	return &impostorCommit{
		meta:   newMeta("impostor-commit", "commit with no history in referenced repository"),
		client: ctx.GitHub,
	}, nil
}

func (a *impostorCommit) AuditWorkflow(ctx context.Context, workflow *parser.Workflow) ([]*finding.Finding, error) {
	var findings []*finding.Finding

	for _, job := range workflow.Jobs {
		if job.IsReusable() {
			uses, err := parser.ParseWorkflowUses(job.Uses)
			if err != nil {
				continue
			}
			bad, err := a.impostor(ctx, uses)
			if err != nil {
				return nil, err
			}
			if !bad {
				continue
			}
			f, err := a.finding().
				Severity(finding.SeverityHigh).
				Confidence(finding.ConfidenceHigh).
				AddLocation(job.Location().AsPrimary().Annotated(impostorAnnotation)).
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
			bad, err := a.impostor(ctx, uses)
			if err != nil {
				return nil, err
			}
			if !bad {
				continue
			}
			f, err := a.finding().
				Severity(finding.SeverityHigh).
				Confidence(finding.ConfidenceHigh).
				AddLocation(step.Location().AsPrimary().Annotated(impostorAnnotation)).
				Build(workflow.Doc())
			if err != nil {
				return nil, err
			}
			findings = append(findings, f)
		}
	}

	return findings, nil
}

func (a *impostorCommit) AuditAction(ctx context.Context, action *parser.Action) ([]*finding.Finding, error) {
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
		bad, err := a.impostor(ctx, uses)
		if err != nil {
			return nil, err
		}
		if !bad {
			continue
		}
		f, err := a.finding().
			Severity(finding.SeverityHigh).
			Confidence(finding.ConfidenceHigh).
			AddLocation(step.Location().AsPrimary().Annotated(impostorAnnotation)).
			Build(action.Doc())
		if err != nil {
			return nil, err
		}
		findings = append(findings, f)
	}
	return findings, nil
}

// impostor reports whether the clause pins a commit that no branch or
// tag of the target repository contains.
func (a *impostorCommit) impostor(ctx context.Context, uses parser.Uses) (bool, error) {
	if uses.Kind != parser.UsesRepo || !uses.IsCommitRef() {
		return false, nil
	}

	branches, err := a.client.Branches(ctx, uses.Owner, uses.Repo)
	if err != nil {
		return false, err
	}
	// Fast path: the commit is the tip of a branch or tag.
	for _, branch := range branches {
		if strings.EqualFold(branch.SHA, uses.Ref) {
			return false, nil
		}
	}
	tags, err := a.client.Tags(ctx, uses.Owner, uses.Repo)
	if err != nil {
		return false, err
	}
	for _, tag := range tags {
		if strings.EqualFold(tag.SHA, uses.Ref) {
			return false, nil
		}
	}

	for _, branch := range branches {
		contained, err := a.refContains(ctx, uses, "refs/heads/"+branch.Name)
		if err != nil {
			return false, err
		}
		if contained {
			return false, nil
		}
	}
	for _, tag := range tags {
		contained, err := a.refContains(ctx, uses, "refs/tags/"+tag.Name)
		if err != nil {
			return false, err
		}
		if contained {
			return false, nil
		}
	}

	return true, nil
}

func (a *impostorCommit) refContains(ctx context.Context, uses parser.Uses, base string) (bool, error) {
	cmp, err := a.client.CompareCommits(ctx, uses.Owner, uses.Repo, base, uses.Ref)
	if err != nil {
		return false, err
	}
	return cmp.Contains(), nil
}
