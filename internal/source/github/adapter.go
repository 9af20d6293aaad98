package github

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/studvik/companion/internal/model"
	"github.com/studvik/companion/internal/source"
)

// Adapter implements source.Source for GitHub. Assigned open issues
// with a milestone due date become deadlines; issues without one have
// nothing to reconcile against and are skipped by the bridge.
type Adapter struct {
	client *Client
	token  string
}

// NewAdapter creates a new GitHub source adapter. An empty baseURL
// selects the public API endpoint.
func NewAdapter(baseURL, token string) *Adapter {
	return &Adapter{
		client: NewClient(baseURL, token),
		token:  token,
	}
}

// Integration returns the integration tag for GitHub.
func (a *Adapter) Integration() model.Integration {
	return model.IntegrationGitHub
}

// Configured reports whether an access token is present.
func (a *Adapter) Configured() bool {
	return a.token != ""
}

// ValidateConnection verifies the token by calling GET /user. Returns
// the account login on success.
func (a *Adapter) ValidateConnection(ctx context.Context) (string, error) {
	var me User
	if err := a.client.Get(ctx, "/user", &me); err != nil {
		return "", fmt.Errorf("validating GitHub connection: %w", err)
	}
	return me.Login, nil
}

// Fetch retrieves the user's assigned open issues. Pull requests show
// up in the same listing and are filtered out.
func (a *Adapter) Fetch(ctx context.Context) (*source.Snapshot, error) {
	issues, err := a.client.GetAssignedIssues(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetching GitHub issues: %w", err)
	}

	snap := &source.Snapshot{}
	for _, issue := range issues {
		if issue.PullRequest != nil {
			continue
		}
		snap.Assignments = append(snap.Assignments, issueToRemote(issue))
	}

	return snap, nil
}

// issueToRemote converts a GitHub issue to a normalized
// RemoteAssignment for the deadline bridge. Issues carry no grading
// signal, so they are always medium priority.
func issueToRemote(issue Issue) source.RemoteAssignment {
	repo := ""
	if issue.Repository != nil {
		repo = issue.Repository.FullName
	}

	var dueAt *time.Time
	if issue.Milestone != nil {
		dueAt = parseGitHubTime(issue.Milestone.DueOn)
	}

	return source.RemoteAssignment{
		ID:       strconv.FormatInt(issue.ID, 10),
		Course:   repo,
		Title:    issue.Title,
		DueAt:    dueAt,
		Priority: model.PriorityMedium,
		URL:      issue.HTMLURL,
	}
}

// parseGitHubTime parses a GitHub timestamp (RFC 3339 in UTC). Returns
// nil for absent or unparseable values so the bridge skips the issue.
func parseGitHubTime(s string) *time.Time {
	if s == "" {
		return nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return &t
	}
	return nil
}
