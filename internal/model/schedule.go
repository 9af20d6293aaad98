package model

import "time"

// Workload is the estimated effort class of a schedule event.
type Workload string

const (
	WorkloadLow    Workload = "low"
	WorkloadMedium Workload = "medium"
	WorkloadHigh   Workload = "high"
)

// MinEventDurationMinutes is the floor applied to imported event durations.
// Feeds occasionally carry zero-length or negative intervals; anything
// shorter than this is clamped up.
const MinEventDurationMinutes = 15

// ScheduleEvent is a calendar entry, either created by the user or imported
// from a timetable integration.
type ScheduleEvent struct {
	// ID is the internal unique identifier for this event.
	ID string `db:"id" json:"id"`

	// UserID identifies the owning user account.
	UserID string `db:"user_id" json:"user_id"`

	// Title is the display title of the event.
	Title string `db:"title" json:"title"`

	// StartTime is when the event begins.
	StartTime time.Time `db:"start_time" json:"start_time"`

	// DurationMinutes is the event length in minutes, never below
	// MinEventDurationMinutes for imported events.
	DurationMinutes int `db:"duration_minutes" json:"duration_minutes"`

	// Workload is the estimated effort class (use Workload* constants).
	Workload Workload `db:"workload" json:"workload"`

	// Location is the room or venue, when the feed provides one.
	Location string `db:"location" json:"location,omitempty"`

	// RecurrenceParentID groups recurring events. Imported events carry a
	// fixed per-integration marker here (e.g., "timeedit-import") so
	// reconciliation can tell them apart from user-created events.
	RecurrenceParentID string `db:"recurrence_parent_id" json:"recurrence_parent_id,omitempty"`

	// CreatedAt is when this record was first stored.
	CreatedAt time.Time `db:"created_at" json:"created_at"`

	// UpdatedAt is when this record was last modified.
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// EndTime returns the event's end computed from start and duration.
func (e *ScheduleEvent) EndTime() time.Time {
	return e.StartTime.Add(time.Duration(e.DurationMinutes) * time.Minute)
}
