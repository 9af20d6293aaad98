package model

import "time"

// Integration identifies the external system a record was imported from.
type Integration string

const (
	IntegrationCanvas     Integration = "canvas"
	IntegrationBlackboard Integration = "blackboard"
	IntegrationTeams      Integration = "teams"
	IntegrationGitHub     Integration = "github"
	IntegrationTP         Integration = "tp"
	IntegrationTimeEdit   Integration = "timeedit"
)

// Priority is the normalized priority level for deadlines and notifications.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// Deadline is a dated obligation, either entered manually by the user or
// imported from an integration.
type Deadline struct {
	// ID is the internal unique identifier for this deadline.
	ID string `db:"id" json:"id"`

	// UserID identifies the owning user account.
	UserID string `db:"user_id" json:"user_id"`

	// Course is the course or project the deadline belongs to.
	Course string `db:"course" json:"course"`

	// Task is the human-readable summary of what is due.
	Task string `db:"task" json:"task"`

	// DueDate is the effective due date shown to the user. It may have been
	// adjusted by the user after import.
	DueDate time.Time `db:"due_date" json:"due_date"`

	// SourceDueDate is the due date as last reported by the integration.
	// Nil for manually created deadlines.
	SourceDueDate *time.Time `db:"source_due_date" json:"source_due_date,omitempty"`

	// Priority is the normalized priority (use Priority* constants).
	Priority Priority `db:"priority" json:"priority"`

	// Completed indicates the user has marked this deadline done.
	Completed bool `db:"completed" json:"completed"`

	// CompletedAt is when the user marked the deadline done, if ever.
	CompletedAt *time.Time `db:"completed_at" json:"completed_at,omitempty"`

	// Source identifies which integration produced this deadline.
	// Empty for manually created deadlines.
	Source Integration `db:"source" json:"source,omitempty"`

	// SourceItemID is the record's identifier within its integration
	// (e.g., Canvas assignment ID). Empty for manual deadlines.
	SourceItemID string `db:"source_item_id" json:"source_item_id,omitempty"`

	// URL is the direct link back to the item in its integration, if any.
	URL string `db:"url" json:"url,omitempty"`

	// CreatedAt is when this record was first stored.
	CreatedAt time.Time `db:"created_at" json:"created_at"`

	// UpdatedAt is when this record was last modified.
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Imported reports whether this deadline is owned by an integration rather
// than the user. Imported deadlines are subject to reconciliation and may be
// removed when they disappear from the remote system.
func (d *Deadline) Imported() bool {
	return d.Source != "" && d.SourceItemID != ""
}

// UserAdjustedDue reports whether the user moved the due date away from the
// value last reported by the integration. Reconciliation must not overwrite
// an adjusted due date.
func (d *Deadline) UserAdjustedDue() bool {
	if d.SourceDueDate == nil {
		return false
	}
	return !d.DueDate.Equal(*d.SourceDueDate)
}
