package model

import "time"

// NotificationSourceOrchestrator marks notifications generated by the system
// itself (digests, recovery prompts) rather than by an integration.
const NotificationSourceOrchestrator = "orchestrator"

// NotificationAction is a labeled link attached to a notification.
type NotificationAction struct {
	// Label is the short action text shown to the user (e.g., "view").
	Label string `json:"label"`

	// URL is the in-app destination the action navigates to.
	URL string `json:"url"`
}

// Notification is an update delivered to the user.
type Notification struct {
	// ID is the unique identifier for this notification.
	ID string `db:"id" json:"id"`

	// UserID identifies the receiving user account.
	UserID string `db:"user_id" json:"user_id"`

	// Title is the short headline text.
	Title string `db:"title" json:"title"`

	// Message is the human-readable notification body.
	Message string `db:"message" json:"message"`

	// Priority is the urgency level (use Priority* constants).
	Priority Priority `db:"priority" json:"priority"`

	// Source names what produced this notification: an integration tag or
	// NotificationSourceOrchestrator.
	Source string `db:"source" json:"source"`

	// URL is the in-app destination this notification links to, if any.
	URL string `db:"url" json:"url,omitempty"`

	// Actions are the labeled links attached to this notification.
	Actions []NotificationAction `db:"-" json:"actions,omitempty"`

	// Read indicates whether the user has seen this notification.
	Read bool `db:"read" json:"read"`

	// CreatedAt is when this notification was delivered.
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// ScheduledNotification is a notification waiting in the delivery queue.
// Low and medium priority entries are batched into digests; high and
// critical entries are delivered as soon as they come due.
type ScheduledNotification struct {
	// ID is the unique identifier for this queue entry.
	ID string `db:"id" json:"id"`

	// UserID identifies the receiving user account.
	UserID string `db:"user_id" json:"user_id"`

	// Title is the short headline text.
	Title string `db:"title" json:"title"`

	// Message is the human-readable notification body.
	Message string `db:"message" json:"message"`

	// Priority is the urgency level (use Priority* constants).
	Priority Priority `db:"priority" json:"priority"`

	// Source names the integration or subsystem that queued this entry.
	Source string `db:"source" json:"source"`

	// URL is the in-app destination, if any.
	URL string `db:"url" json:"url,omitempty"`

	// Actions are the labeled links to attach on delivery.
	Actions []NotificationAction `db:"-" json:"actions,omitempty"`

	// SendAt is when this entry becomes due for delivery.
	SendAt time.Time `db:"send_at" json:"send_at"`

	// CreatedAt is when this entry was queued.
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
