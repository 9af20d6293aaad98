package blackboard

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/studvik/companion/internal/model"
	"github.com/studvik/companion/internal/source"
)

// Adapter implements source.Source for Blackboard Learn.
type Adapter struct {
	client  *Client
	baseURL string
	token   string
}

// NewAdapter creates a new Blackboard source adapter.
func NewAdapter(baseURL, token string) *Adapter {
	return &Adapter{
		client:  NewClient(baseURL, token),
		baseURL: baseURL,
		token:   token,
	}
}

// Integration returns the integration tag for Blackboard.
func (a *Adapter) Integration() model.Integration {
	return model.IntegrationBlackboard
}

// Configured reports whether a base URL and token are present.
func (a *Adapter) Configured() bool {
	return a.baseURL != "" && a.token != ""
}

// ValidateConnection verifies credentials by calling GET
// /learn/api/public/v1/users/me. Returns the user's name on success.
func (a *Adapter) ValidateConnection(ctx context.Context) (string, error) {
	var me User
	if err := a.client.Get(ctx, "/learn/api/public/v1/users/me", &me); err != nil {
		return "", fmt.Errorf("validating Blackboard connection: %w", err)
	}
	name := strings.TrimSpace(me.Name.Given + " " + me.Name.Family)
	if name == "" {
		name = me.UserName
	}
	return name, nil
}

// Fetch retrieves available courses and their gradebook columns.
func (a *Adapter) Fetch(ctx context.Context) (*source.Snapshot, error) {
	courses, err := a.client.GetCourses(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetching Blackboard courses: %w", err)
	}

	snap := &source.Snapshot{}
	for _, course := range courses {
		// "No" hides the course from students entirely.
		if course.Availability.Available == "No" {
			continue
		}

		snap.Courses = append(snap.Courses, source.CourseRef{
			ID:   course.ID,
			Code: course.CourseID,
			Name: course.Name,
		})

		columns, err := a.client.GetGradebookColumns(ctx, course.ID)
		if err != nil {
			return nil, fmt.Errorf(
				"fetching Blackboard gradebook for course %s: %w", course.ID, err,
			)
		}

		for _, column := range columns {
			snap.Assignments = append(snap.Assignments, columnToRemote(course, column))
		}
	}

	return snap, nil
}

// columnToRemote converts a gradebook column to a normalized
// RemoteAssignment for the deadline bridge.
func columnToRemote(course Course, column GradebookColumn) source.RemoteAssignment {
	label := course.CourseID
	if label == "" {
		label = course.Name
	}

	priority := model.PriorityMedium
	if column.Score.Possible != nil {
		priority = source.PriorityFromPoints(*column.Score.Possible)
	}

	return source.RemoteAssignment{
		ID:       column.ID,
		Course:   label,
		Title:    column.Name,
		DueAt:    parseBlackboardTime(column.Grading.Due),
		Priority: priority,
	}
}

// parseBlackboardTime parses a Learn timestamp. Learn reports UTC with
// millisecond precision (e.g., "2026-03-01T22:59:00.000Z"). Returns nil
// for absent or unparseable values so the bridge skips the column.
func parseBlackboardTime(s string) *time.Time {
	if s == "" {
		return nil
	}

	layouts := []string{
		"2006-01-02T15:04:05.000Z",
		time.RFC3339,
	}

	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}

	return nil
}
