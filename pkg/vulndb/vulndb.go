// Package vulndb looks up published advisories for GitHub Actions in
// the OSV database.
package vulndb

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"
)

const (
	defaultBaseURL = "https://api.osv.dev"
	userAgent      = "argos-audit/1.0"
)

// Client queries OSV for advisories in the "GitHub Actions" ecosystem.
// Responses are memoized per action and version for the lifetime of
// the client.
type Client struct {
	http    *http.Client
	baseURL string

	mu   sync.Mutex
	memo map[string][]Advisory
}

// Advisory is a published vulnerability affecting an action.
type Advisory struct {
	ID      string
	Summary string
	// Severity is the advisory's qualitative severity in lower case:
	// low, medium, high, or critical. Empty when the advisory does not
	// carry one.
	Severity string
}

// NewClient returns a client against the public OSV API.
func NewClient() *Client {
	return &Client{
		http:    &http.Client{Timeout: 30 * time.Second},
		baseURL: defaultBaseURL,
		memo:    make(map[string][]Advisory),
	}
}

type osvQuery struct {
	Package osvPackage `json:"package"`
	Version string     `json:"version,omitempty"`
}

type osvPackage struct {
	Ecosystem string `json:"ecosystem"`
	Name      string `json:"name"`
}

type osvResponse struct {
	Vulns []osvVulnerability `json:"vulns"`
}

type osvVulnerability struct {
	ID               string `json:"id"`
	Summary          string `json:"summary"`
	DatabaseSpecific struct {
		Severity string `json:"severity"`
	} `json:"database_specific"`
}

// Advisories returns the advisories affecting the action at slug
// ("owner/repo") when used at version. The version is whatever ref the
// workflow pins, typically a tag name.
func (c *Client) Advisories(ctx context.Context, slug, version string) ([]Advisory, error) {
	key := slug + "@" + version

	c.mu.Lock()
	cached, ok := c.memo[key]
	c.mu.Unlock()
	if ok {
		return cached, nil
	}

	query := osvQuery{
		Package: osvPackage{
			Ecosystem: "GitHub Actions",
			Name:      slug,
		},
		Version: version,
	}

	body, err := json.Marshal(query)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/query", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to query OSV for %s: %w", key, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("OSV query for %s returned status %d", key, resp.StatusCode)
	}

	var decoded osvResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("failed to decode OSV response for %s: %w", key, err)
	}

	advisories := make([]Advisory, 0, len(decoded.Vulns))
	for _, vuln := range decoded.Vulns {
		advisories = append(advisories, Advisory{
			ID:       vuln.ID,
			Summary:  vuln.Summary,
			Severity: normalizeSeverity(vuln.DatabaseSpecific.Severity),
		})
	}

	c.mu.Lock()
	c.memo[key] = advisories
	c.mu.Unlock()

	return advisories, nil
}

// normalizeSeverity lowers OSV's severity labels and folds the GitHub
// advisory database's "moderate" into "medium".
func normalizeSeverity(raw string) string {
	severity := strings.ToLower(raw)
	if severity == "moderate" {
		severity = "medium"
	}
	return severity
}
