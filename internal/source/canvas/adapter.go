package canvas

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/studvik/companion/internal/model"
	"github.com/studvik/companion/internal/source"
)

// Adapter implements source.Source for the Canvas LMS.
type Adapter struct {
	client  *Client
	baseURL string
	token   string
}

// NewAdapter creates a new Canvas source adapter.
func NewAdapter(baseURL, token string) *Adapter {
	return &Adapter{
		client:  NewClient(baseURL, token),
		baseURL: baseURL,
		token:   token,
	}
}

// Integration returns the integration tag for Canvas.
func (a *Adapter) Integration() model.Integration {
	return model.IntegrationCanvas
}

// Configured reports whether a base URL and token are present.
func (a *Adapter) Configured() bool {
	return a.baseURL != "" && a.token != ""
}

// ValidateConnection verifies credentials by calling GET /api/v1/users/self.
// Returns the user's display name on success.
func (a *Adapter) ValidateConnection(ctx context.Context) (string, error) {
	var me User
	if err := a.client.Get(ctx, "/api/v1/users/self", &me); err != nil {
		return "", fmt.Errorf("validating Canvas connection: %w", err)
	}
	return me.Name, nil
}

// Fetch retrieves active courses and their assignments.
func (a *Adapter) Fetch(ctx context.Context) (*source.Snapshot, error) {
	courses, err := a.client.GetActiveCourses(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetching Canvas courses: %w", err)
	}

	snap := &source.Snapshot{}
	for _, course := range courses {
		snap.Courses = append(snap.Courses, source.CourseRef{
			ID:   strconv.FormatInt(course.ID, 10),
			Code: course.CourseCode,
			Name: course.Name,
		})

		assignments, err := a.client.GetCourseAssignments(ctx, course.ID)
		if err != nil {
			return nil, fmt.Errorf(
				"fetching Canvas assignments for course %d: %w", course.ID, err,
			)
		}

		for _, assignment := range assignments {
			if !assignment.Published {
				continue
			}
			snap.Assignments = append(snap.Assignments, assignmentToRemote(course, assignment))
		}
	}

	return snap, nil
}

// assignmentToRemote converts a Canvas assignment to a normalized
// RemoteAssignment for the deadline bridge.
func assignmentToRemote(course Course, a Assignment) source.RemoteAssignment {
	label := course.CourseCode
	if label == "" {
		label = course.Name
	}

	priority := model.PriorityMedium
	if a.PointsPossible != nil {
		priority = source.PriorityFromPoints(*a.PointsPossible)
	}

	return source.RemoteAssignment{
		ID:       strconv.FormatInt(a.ID, 10),
		Course:   label,
		Title:    a.Name,
		DueAt:    parseCanvasTime(a.DueAt),
		Priority: priority,
		URL:      a.HTMLURL,
	}
}

// parseCanvasTime parses a Canvas timestamp. Canvas uses RFC 3339 in UTC
// (e.g., "2026-03-01T22:59:00Z"). Returns nil for absent or unparseable
// values so the bridge skips the item.
func parseCanvasTime(s string) *time.Time {
	if s == "" {
		return nil
	}

	layouts := []string{
		time.RFC3339,
		"2006-01-02T15:04:05.000Z07:00",
	}

	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}

	return nil
}
