package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/studvik/companion/internal/model"
)

// RecordSyncAttempt appends one entry to the integration health log.
// Generates a UUID if ID is empty.
func (s *SQLiteStore) RecordSyncAttempt(ctx context.Context, a *model.SyncAttempt) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	if a.AttemptedAt.IsZero() {
		a.AttemptedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sync_attempts (
			id, user_id, integration, success, duration_ms, error, root_cause, attempted_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.UserID, string(a.Integration), boolToInt(a.Success),
		a.DurationMs, a.Error, a.RootCause, a.AttemptedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("recording sync attempt: %w", err)
	}
	return nil
}

// GetSyncAttempts retrieves health-log entries matching the filter, newest
// first.
func (s *SQLiteStore) GetSyncAttempts(ctx context.Context, filter SyncAttemptFilter) ([]model.SyncAttempt, error) {
	var conditions []string
	var args []interface{}

	if filter.UserID != nil {
		conditions = append(conditions, "user_id = ?")
		args = append(args, *filter.UserID)
	}
	if filter.Integration != nil {
		conditions = append(conditions, "integration = ?")
		args = append(args, *filter.Integration)
	}
	if filter.Success != nil {
		conditions = append(conditions, "success = ?")
		args = append(args, boolToInt(*filter.Success))
	}
	if filter.Since != nil {
		conditions = append(conditions, "attempted_at >= ?")
		args = append(args, filter.Since.UTC())
	}

	query := "SELECT * FROM sync_attempts"
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY attempted_at DESC"

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	rows, err := s.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying sync attempts: %w", err)
	}
	defer rows.Close()

	var attempts []model.SyncAttempt
	for rows.Next() {
		a, err := scanSyncAttempt(rows)
		if err != nil {
			return nil, err
		}
		attempts = append(attempts, a)
	}

	return attempts, rows.Err()
}

// GetSyncSummary aggregates health-log entries per integration since the
// given time. The fold happens in Go: SQLite drops the DATETIME decltype
// on aggregate expressions, so timestamps cannot be scanned from them.
func (s *SQLiteStore) GetSyncSummary(ctx context.Context, userID string, since time.Time) ([]model.SyncSummary, error) {
	attempts, err := s.GetSyncAttempts(ctx, SyncAttemptFilter{
		UserID: &userID,
		Since:  &since,
	})
	if err != nil {
		return nil, fmt.Errorf("querying sync summary: %w", err)
	}

	byIntegration := make(map[model.Integration]*model.SyncSummary)
	totalDuration := make(map[model.Integration]int64)

	// Attempts arrive newest first, so the first success and first
	// failure seen per integration are the most recent ones.
	for _, a := range attempts {
		sum := byIntegration[a.Integration]
		if sum == nil {
			sum = &model.SyncSummary{Integration: a.Integration}
			byIntegration[a.Integration] = sum
		}
		sum.Attempts++
		totalDuration[a.Integration] += a.DurationMs
		if a.Success {
			sum.Successes++
			if sum.LastSuccessAt == nil {
				at := a.AttemptedAt
				sum.LastSuccessAt = &at
			}
		} else {
			sum.Failures++
			if sum.Failures == 1 {
				sum.LastError = a.Error
			}
		}
	}

	summaries := make([]model.SyncSummary, 0, len(byIntegration))
	for tag, sum := range byIntegration {
		sum.AvgDurationMs = totalDuration[tag] / int64(sum.Attempts)
		summaries = append(summaries, *sum)
	}
	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].Integration < summaries[j].Integration
	})
	return summaries, nil
}

// PruneSyncAttempts deletes health-log entries older than the given time
// and returns how many were removed.
func (s *SQLiteStore) PruneSyncAttempts(ctx context.Context, olderThan time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		"DELETE FROM sync_attempts WHERE attempted_at < ?", olderThan.UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("pruning sync attempts: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("counting pruned sync attempts: %w", err)
	}
	return rows, nil
}

// scanSyncAttempt scans a health-log row from a sqlx.Rows result set.
func scanSyncAttempt(rows *sqlx.Rows) (model.SyncAttempt, error) {
	var (
		a           model.SyncAttempt
		integration string
		successInt  int
	)

	err := rows.Scan(
		&a.ID, &a.UserID, &integration, &successInt,
		&a.DurationMs, &a.Error, &a.RootCause, &a.AttemptedAt,
	)
	if err != nil {
		return model.SyncAttempt{}, fmt.Errorf("scanning sync attempt row: %w", err)
	}

	a.Integration = model.Integration(integration)
	a.Success = successInt != 0

	return a, nil
}
