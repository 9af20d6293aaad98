// Package source defines the contract integrations implement and the
// normalized remote types the bridges reconcile against.
package source

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/studvik/companion/internal/model"
)

// AuthError indicates that authentication has failed or expired for an
// integration. It is returned by clients when a 401 response is received.
type AuthError struct {
	Integration model.Integration
	Message     string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("auth error (%s): %s", e.Integration, e.Message)
}

// IsAuthError reports whether err (or any error in its chain) is an AuthError.
func IsAuthError(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr)
}

// CourseRef identifies a course known to an integration.
type CourseRef struct {
	// ID is the course identifier within the integration.
	ID string

	// Code is the short course code (e.g., "TDT4120"), when available.
	Code string

	// Name is the full course name.
	Name string
}

// RemoteAssignment is an assignment-like item as reported by an
// integration, normalized for the deadline bridge.
type RemoteAssignment struct {
	// ID is the item's identifier within the integration. Items without
	// an ID cannot be reconciled and are skipped.
	ID string

	// Course is the display label of the owning course.
	Course string

	// Title is what is due.
	Title string

	// DueAt is the due date. Items without one are skipped.
	DueAt *time.Time

	// Priority is the inferred urgency (use model.Priority* constants).
	Priority model.Priority

	// URL is the direct link back to the item, if any.
	URL string
}

// RemoteEvent is a timetable entry as reported by an integration,
// normalized for the schedule bridge.
type RemoteEvent struct {
	// Title is the event's display title.
	Title string

	// Start is when the event begins.
	Start time.Time

	// End is when the event ends. Nil when the feed omits it; the bridge
	// falls back to a per-integration default duration.
	End *time.Time

	// Location is the room or venue, when provided.
	Location string
}

// Snapshot is the full remote state one fetch produces. Integrations fill
// the slices that apply to them and leave the rest nil.
type Snapshot struct {
	Courses     []CourseRef
	Assignments []RemoteAssignment
	Events      []RemoteEvent
}

// Source defines the contract that every integration must implement.
type Source interface {
	// Integration returns the integration tag.
	Integration() model.Integration

	// Configured reports whether the integration has the settings and
	// credentials it needs to fetch.
	Configured() bool

	// ValidateConnection verifies credentials and connectivity.
	// Returns a human-readable status message on success.
	ValidateConnection(ctx context.Context) (string, error)

	// Fetch retrieves the current remote snapshot for reconciliation.
	Fetch(ctx context.Context) (*Snapshot, error)
}

// PriorityFromPoints maps a grading weight to a priority. Callers with no
// weight signal at all should use model.PriorityMedium instead.
func PriorityFromPoints(points float64) model.Priority {
	switch {
	case points >= 100:
		return model.PriorityHigh
	case points >= 50:
		return model.PriorityMedium
	default:
		return model.PriorityLow
	}
}
