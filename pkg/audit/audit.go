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

// Package audit implements the built-in audits: the individual checks
// that inspect parsed workflows and action definitions and produce
// findings.
package audit

import (
	"context"

	"github.com/hashicorp/go-hclog"

	"github.com/argos-audit/argos/pkg/errors"
	"github.com/argos-audit/argos/pkg/finding"
	"github.com/argos-audit/argos/pkg/github"
	"github.com/argos-audit/argos/pkg/parser"
	"github.com/argos-audit/argos/pkg/vulndb"
)

// Audit is a single check over one input document. Each audit sees every
// collected workflow through AuditWorkflow and every collected action
// definition through AuditAction; audits that apply to only one input
// kind embed noActionAudit or noWorkflowAudit for the other.
type Audit interface {
	// ID is the audit's stable identifier, e.g. "template-injection".
	// Suppression comments and configuration refer to audits by ID.
	ID() string
	// Description is a one-line summary shared by all of the audit's
	// findings.
	Description() string
	// URL points at the audit's documentation.
	URL() string

	AuditWorkflow(ctx context.Context, workflow *parser.Workflow) ([]*finding.Finding, error)
	AuditAction(ctx context.Context, action *parser.Action) ([]*finding.Finding, error)
}

// Context carries the run-wide dependencies audits draw on.
type Context struct {
	// Offline is set when the run must not touch the network.
	Offline bool
	// GitHub is the API client, or nil when the run has none.
	GitHub *github.Client
	// VulnDB is the advisory lookup used by vulnerability audits.
	VulnDB *vulndb.Client
	Logger hclog.Logger
}

// requireOnline returns a skip error when the run cannot reach the
// GitHub API.
func (c *Context) requireOnline(auditID string) error {
	if c.Offline {
		return errors.NewSkipError("offline mode is enabled", auditID)
	}
	if c.GitHub == nil {
		return errors.NewSkipError("no GitHub API client is available", auditID)
	}
	return nil
}

// Constructor builds an audit against the run's context. Constructors
// return a skip error when their audit cannot run at all, which the
// engine logs and moves past.
type Constructor func(*Context) (Audit, error)

// Builtin returns the constructors of every built-in audit, in
// reporting order.
func Builtin() []Constructor {
	return []Constructor{
		NewArtipacked,
		NewExcessivePermissions,
		NewDangerousTriggers,
		NewImpostorCommit,
		NewRefConfusion,
		NewUseTrustedPublishing,
		NewTemplateInjection,
		NewHardcodedContainerCredentials,
		NewSelfHostedRunner,
		NewKnownVulnerableActions,
		NewUnpinnedUses,
		NewInsecureCommands,
		NewGitHubEnv,
		NewSecretsInherit,
		NewBotConditions,
		NewOverprovisionedSecrets,
		NewSecretLeakage,
		NewHardcodedSecrets,
		NewBypassableContainsConditions,
		NewSecretWithoutEnv,
	}
}

// meta carries the identity an audit stamps on its findings.
type meta struct {
	id   string
	desc string
	url  string
}

func newMeta(id, desc string) meta {
	return meta{id: id, desc: desc, url: docsURL(id)}
}

func docsURL(id string) string {
	return "https://argos-audit.github.io/audits/#" + id
}

func (m meta) ID() string          { return m.id }
func (m meta) Description() string { return m.desc }
func (m meta) URL() string         { return m.url }

// finding starts a builder stamped with the audit's identity.
func (m meta) finding() *finding.Builder {
	return finding.NewFinding(m.id, m.desc, m.url)
}

// noActionAudit is embedded by audits that only inspect workflows.
type noActionAudit struct{}

func (noActionAudit) AuditAction(ctx context.Context, action *parser.Action) ([]*finding.Finding, error) {
	return nil, nil
}

// noWorkflowAudit is embedded by audits that only inspect actions.
type noWorkflowAudit struct{}

func (noWorkflowAudit) AuditWorkflow(ctx context.Context, workflow *parser.Workflow) ([]*finding.Finding, error) {
	return nil, nil
}
