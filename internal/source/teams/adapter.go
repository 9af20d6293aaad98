package teams

import (
	"context"
	"fmt"
	"time"

	"github.com/studvik/companion/internal/model"
	"github.com/studvik/companion/internal/source"
)

// Adapter implements source.Source for Microsoft Teams assignments via
// the Graph education API.
type Adapter struct {
	client *Client
	token  string
}

// NewAdapter creates a new Teams source adapter. An empty baseURL
// selects the public Graph v1.0 endpoint.
func NewAdapter(baseURL, token string) *Adapter {
	return &Adapter{
		client: NewClient(baseURL, token),
		token:  token,
	}
}

// Integration returns the integration tag for Teams.
func (a *Adapter) Integration() model.Integration {
	return model.IntegrationTeams
}

// Configured reports whether an access token is present.
func (a *Adapter) Configured() bool {
	return a.token != ""
}

// ValidateConnection verifies the token by calling GET /me. Returns the
// account's display name on success.
func (a *Adapter) ValidateConnection(ctx context.Context) (string, error) {
	var me User
	if err := a.client.Get(ctx, "/me", &me); err != nil {
		return "", fmt.Errorf("validating Teams connection: %w", err)
	}
	return me.DisplayName, nil
}

// Fetch retrieves education classes and their assignments. Draft
// assignments are not yet visible to students and are skipped.
func (a *Adapter) Fetch(ctx context.Context) (*source.Snapshot, error) {
	classes, err := a.client.GetClasses(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetching Teams classes: %w", err)
	}

	snap := &source.Snapshot{}
	for _, class := range classes {
		snap.Courses = append(snap.Courses, source.CourseRef{
			ID:   class.ID,
			Code: class.ClassCode,
			Name: class.DisplayName,
		})

		assignments, err := a.client.GetClassAssignments(ctx, class.ID)
		if err != nil {
			return nil, fmt.Errorf(
				"fetching Teams assignments for class %s: %w", class.ID, err,
			)
		}

		for _, assignment := range assignments {
			if assignment.Status == "draft" {
				continue
			}
			snap.Assignments = append(snap.Assignments, assignmentToRemote(class, assignment))
		}
	}

	return snap, nil
}

// assignmentToRemote converts a Graph education assignment to a
// normalized RemoteAssignment for the deadline bridge.
func assignmentToRemote(class Class, a Assignment) source.RemoteAssignment {
	label := class.ClassCode
	if label == "" {
		label = class.DisplayName
	}

	priority := model.PriorityMedium
	if a.Grading != nil && a.Grading.MaxPoints != nil {
		priority = source.PriorityFromPoints(*a.Grading.MaxPoints)
	}

	return source.RemoteAssignment{
		ID:       a.ID,
		Course:   label,
		Title:    a.DisplayName,
		DueAt:    parseGraphTime(a.DueDateTime),
		Priority: priority,
		URL:      a.WebURL,
	}
}

// parseGraphTime parses a Graph timestamp (RFC 3339, sometimes with
// seven-digit fractional seconds). Returns nil for absent or
// unparseable values so the bridge skips the assignment.
func parseGraphTime(s string) *time.Time {
	if s == "" {
		return nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return &t
	}
	return nil
}
