package store

import (
	"context"
	"errors"
	"time"

	"github.com/studvik/companion/internal/model"
)

// ErrNotFound reports that the requested row does not exist.
var ErrNotFound = errors.New("not found")

// DeadlineFilter controls filtering, sorting, and pagination for deadline
// queries.
type DeadlineFilter struct {
	UserID    *string
	Source    *string // integration tag, or "" for manual deadlines
	Course    *string
	Completed *bool
	DueAfter  *time.Time
	DueBefore *time.Time
	Query     *string // search course + task
	SortBy    string  // "due_date", "course", "priority", "created_at", "updated_at"
	SortDesc  bool
	Limit     int
	Offset    int
}

// ScheduleFilter controls filtering for schedule event queries.
type ScheduleFilter struct {
	UserID             *string
	From               *time.Time
	To                 *time.Time
	RecurrenceParentID *string
	Limit              int
	Offset             int
}

// NotificationFilter controls filtering for delivered notifications.
type NotificationFilter struct {
	UserID *string
	Unread *bool
	Limit  int
	Offset int
}

// SyncAttemptFilter controls filtering for health-log queries.
type SyncAttemptFilter struct {
	UserID      *string
	Integration *string
	Success     *bool
	Since       *time.Time
	Limit       int
}

// Store defines the persistence interface for deadlines, schedule events,
// notifications, and the integration health log.
type Store interface {
	// === Deadlines ===

	CreateDeadline(ctx context.Context, d *model.Deadline) error
	UpdateDeadline(ctx context.Context, d *model.Deadline) error
	DeleteDeadline(ctx context.Context, id string) error
	GetDeadlineByID(ctx context.Context, id string) (*model.Deadline, error)
	GetDeadlines(ctx context.Context, filter DeadlineFilter) ([]model.Deadline, error)

	// ApplyDeadlineChanges applies a reconciliation change set in one
	// transaction: creates, full-record updates, and deletions by id.
	ApplyDeadlineChanges(ctx context.Context, create, update []model.Deadline, deleteIDs []string) error

	// === Schedule events ===

	CreateScheduleEvent(ctx context.Context, e *model.ScheduleEvent) error
	DeleteScheduleEvent(ctx context.Context, id string) error
	GetScheduleEvents(ctx context.Context, filter ScheduleFilter) ([]model.ScheduleEvent, error)

	// UpsertScheduleEvents applies a reconciliation change set in one
	// transaction, mirroring ApplyDeadlineChanges.
	UpsertScheduleEvents(ctx context.Context, create, update []model.ScheduleEvent, deleteIDs []string) error

	// === Scheduled notifications (delivery queue) ===

	CreateScheduledNotification(ctx context.Context, n *model.ScheduledNotification) error
	ListDueScheduledNotifications(ctx context.Context, due time.Time) ([]model.ScheduledNotification, error)
	DeleteScheduledNotifications(ctx context.Context, ids []string) error

	// === Notifications (delivered) ===

	CreateNotification(ctx context.Context, n *model.Notification) error
	GetNotifications(ctx context.Context, filter NotificationFilter) ([]model.Notification, error)
	MarkNotificationRead(ctx context.Context, id string) error

	// === Integration health log ===

	RecordSyncAttempt(ctx context.Context, a *model.SyncAttempt) error
	GetSyncAttempts(ctx context.Context, filter SyncAttemptFilter) ([]model.SyncAttempt, error)
	GetSyncSummary(ctx context.Context, userID string, since time.Time) ([]model.SyncSummary, error)
	PruneSyncAttempts(ctx context.Context, olderThan time.Time) (int64, error)

	Close() error
}
