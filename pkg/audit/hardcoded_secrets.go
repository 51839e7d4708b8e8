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
	"math"
	"regexp"
	"strings"

	"github.com/argos-audit/argos/pkg/finding"
	"github.com/argos-audit/argos/pkg/location"
	"github.com/argos-audit/argos/pkg/parser"
)

// secretPattern pairs a detection regex with the capture group holding
// the secret value and the grade its matches receive.
type secretPattern struct {
	re         *regexp.Regexp
	group      int
	severity   finding.Severity
	confidence finding.Confidence
	// entropy gates generic matches on Shannon entropy, since a
	// key-value shape alone says nothing about the value.
	entropy bool
}

var secretPatterns = []secretPattern{
	// GitHub token prefixes (personal, OAuth, user-to-server,
	// server-to-server, refresh).
	{
		re:         regexp.MustCompile(`\b(?:ghp|gho|ghu|ghs|ghr)_[A-Za-z0-9_]{36}\b`),
		severity:   finding.SeverityHigh,
		confidence: finding.ConfidenceHigh,
	},
	// AWS access key IDs.
	{
		re:         regexp.MustCompile(`\bAKIA[0-9A-Z]{16}\b`),
		severity:   finding.SeverityHigh,
		confidence: finding.ConfidenceHigh,
	},
	// Private key material pasted inline.
	{
		re:         regexp.MustCompile(`-----BEGIN\s+(?:RSA\s+|EC\s+|OPENSSH\s+)?PRIVATE\s+KEY-----`),
		severity:   finding.SeverityHigh,
		confidence: finding.ConfidenceHigh,
	},
	// Connection URLs with embedded credentials.
	{
		re:         regexp.MustCompile(`(?i)\b(?:postgres|postgresql|mysql|mongodb(?:\+srv)?|redis|amqp)://[^\s'"]+:([^\s'"@]+)@`),
		severity:   finding.SeverityHigh,
		confidence: finding.ConfidenceHigh,
	},
	// Slack incoming webhooks.
	{
		re:         regexp.MustCompile(`https://hooks\.slack\.com/services/[A-Za-z0-9/_-]{20,}`),
		severity:   finding.SeverityMedium,
		confidence: finding.ConfidenceHigh,
	},
	// JWTs: two dot-separated base64url segments starting with an
	// encoded JSON header.
	{
		re:         regexp.MustCompile(`\beyJ[A-Za-z0-9_-]{10,}\.[A-Za-z0-9_-]{10,}\.[A-Za-z0-9_-]+\b`),
		severity:   finding.SeverityHigh,
		confidence: finding.ConfidenceMedium,
	},
	// Generic assignments of a secret-ish name to a quoted literal.
	{
		re:         regexp.MustCompile(`(?i)(api[_-]?key|apikey|secret|token|password|pwd|credential|auth[_-]?key)s?\s*[:=]\s*['"]([^'"{}\s]{8,})['"]`),
		group:      2,
		severity:   finding.SeverityMedium,
		confidence: finding.ConfidenceLow,
		entropy:    true,
	},
}

// hardcodedSecrets scans the raw document text for secret material
// committed directly into the workflow. The scan is textual: secrets
// hide in scalars, comments do not count, and an expression that merely
// references the secrets context is fine.
type hardcodedSecrets struct {
	meta
}

func NewHardcodedSecrets(*Context) (Audit, error) {
	return &hardcodedSecrets{
		meta: newMeta("hardcoded-secrets", "hardcoded secret material"),
	}, nil
}

func (a *hardcodedSecrets) AuditWorkflow(ctx context.Context, workflow *parser.Workflow) ([]*finding.Finding, error) {
	return a.auditRaw(workflow.Doc())
}

func (a *hardcodedSecrets) AuditAction(ctx context.Context, action *parser.Action) ([]*finding.Finding, error) {
	return a.auditRaw(action.Doc())
}

func (a *hardcodedSecrets) auditRaw(doc *location.Document) ([]*finding.Finding, error) {
	var findings []*finding.Finding
	seen := make(map[string]bool)

	raw := string(doc.Raw())
	offset := 0
	for _, line := range strings.SplitAfter(raw, "\n") {
		text := stripLineComment(line)

		for _, pat := range secretPatterns {
			for _, idx := range pat.re.FindAllStringSubmatchIndex(text, -1) {
				start, end := idx[2*pat.group], idx[2*pat.group+1]
				if start < 0 {
					continue
				}
				secret := text[start:end]
				if seen[secret] || skipSecret(text, secret) {
					continue
				}
				if pat.entropy && shannonEntropy(secret) < 3.5 {
					continue
				}
				seen[secret] = true

				f, err := a.finding().
					Severity(pat.severity).
					Confidence(pat.confidence).
					AddResolvedLocation(
						location.NewSymbolicLocation(doc.Key()).
							AsPrimary().
							Annotated("hardcoded secret: "+maskSecret(secret)),
						doc.ResolveSpan(offset+start, offset+end)).
					Build(doc)
				if err != nil {
					return nil, err
				}
				findings = append(findings, f)
			}
		}

		offset += len(line)
	}

	return findings, nil
}

// stripLineComment drops a trailing YAML comment. Only a `#` at the
// start of the line or after whitespace opens a comment; one inside a
// quoted scalar does not.
func stripLineComment(line string) string {
	for i := 0; i < len(line); i++ {
		if line[i] != '#' {
			continue
		}
		if i == 0 || line[i-1] == ' ' || line[i-1] == '\t' {
			return line[:i]
		}
	}
	return line
}

var placeholderValues = []string{
	"example", "placeholder", "your_secret_here", "your-secret-here",
	"changeme", "change-me", "dummy", "sample", "xxxxxx", "000000",
}

// skipSecret filters matches that are clearly not live credentials.
func skipSecret(line, secret string) bool {
	// Expressions and command substitutions resolve at run time.
	if strings.Contains(secret, "${{") || strings.Contains(secret, "$(") {
		return true
	}

	lower := strings.ToLower(secret)
	for _, placeholder := range placeholderValues {
		if strings.Contains(lower, placeholder) {
			return true
		}
	}

	if repeatedChar(secret) {
		return true
	}

	// A 40-hex value on a uses: line is an action pin, not a secret.
	if len(secret) == 40 && isHex(secret) && strings.Contains(line, "uses:") {
		return true
	}

	return false
}

func repeatedChar(s string) bool {
	if s == "" {
		return false
	}
	for i := 1; i < len(s); i++ {
		if s[i] != s[0] {
			return false
		}
	}
	return true
}

func isHex(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') && (c < 'A' || c > 'F') {
			return false
		}
	}
	return true
}

// shannonEntropy measures the bits of information per character.
// Random tokens land well above 4; words and word-like passwords land
// below 3.5.
func shannonEntropy(s string) float64 {
	if s == "" {
		return 0
	}
	freq := make(map[rune]int)
	for _, r := range s {
		freq[r]++
	}
	entropy := 0.0
	length := float64(len([]rune(s)))
	for _, count := range freq {
		p := float64(count) / length
		entropy -= p * math.Log2(p)
	}
	return entropy
}

// maskSecret keeps just enough of the value to recognize it in the
// report.
func maskSecret(secret string) string {
	if len(secret) <= 8 {
		return strings.Repeat("*", len(secret))
	}
	return secret[:4] + strings.Repeat("*", len(secret)-8) + secret[len(secret)-4:]
}
