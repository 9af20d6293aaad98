package model

import "time"

// SyncAttempt is one entry in the append-only integration health log.
type SyncAttempt struct {
	// ID is the unique identifier for this log entry.
	ID string `db:"id" json:"id"`

	// UserID identifies the user the sync ran for.
	UserID string `db:"user_id" json:"user_id"`

	// Integration names the integration that was synced.
	Integration Integration `db:"integration" json:"integration"`

	// Success indicates whether the sync completed without error.
	Success bool `db:"success" json:"success"`

	// DurationMs is how long the attempt took, in milliseconds.
	DurationMs int64 `db:"duration_ms" json:"duration_ms"`

	// Error holds the failure message for unsuccessful attempts.
	Error string `db:"error" json:"error,omitempty"`

	// RootCause is the classified failure bucket (auth, rate_limit,
	// network, validation, provider, unknown). Empty on success.
	RootCause string `db:"root_cause" json:"root_cause,omitempty"`

	// AttemptedAt is when the attempt started.
	AttemptedAt time.Time `db:"attempted_at" json:"attempted_at"`
}

// SyncSummary aggregates recent health-log entries for one integration.
type SyncSummary struct {
	Integration   Integration `db:"integration" json:"integration"`
	Attempts      int         `db:"attempts" json:"attempts"`
	Successes     int         `db:"successes" json:"successes"`
	Failures      int         `db:"failures" json:"failures"`
	LastSuccessAt *time.Time  `db:"last_success_at" json:"last_success_at,omitempty"`
	LastError     string      `db:"last_error" json:"last_error,omitempty"`
	AvgDurationMs int64       `db:"avg_duration_ms" json:"avg_duration_ms"`
}
