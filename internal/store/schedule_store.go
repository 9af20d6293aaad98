package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/studvik/companion/internal/model"
)

// CreateScheduleEvent inserts a new schedule event. Generates a UUID if ID
// is empty.
func (s *SQLiteStore) CreateScheduleEvent(ctx context.Context, e *model.ScheduleEvent) error {
	if strings.TrimSpace(e.Title) == "" {
		return fmt.Errorf("schedule event title must not be empty")
	}
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	e.CreatedAt = now
	e.UpdatedAt = now
	if e.Workload == "" {
		e.Workload = model.WorkloadMedium
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO schedule_events (
			id, user_id, title, start_time, duration_minutes,
			workload, location, recurrence_parent_id, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.UserID, e.Title, e.StartTime.UTC(), e.DurationMinutes,
		string(e.Workload), e.Location, e.RecurrenceParentID, e.CreatedAt, e.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("creating schedule event: %w", err)
	}
	return nil
}

// DeleteScheduleEvent removes a schedule event by ID.
func (s *SQLiteStore) DeleteScheduleEvent(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM schedule_events WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting schedule event %s: %w", id, err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("schedule event %s: %w", id, ErrNotFound)
	}
	return nil
}

// GetScheduleEvents retrieves schedule events matching the filter, ordered
// by start time.
func (s *SQLiteStore) GetScheduleEvents(ctx context.Context, filter ScheduleFilter) ([]model.ScheduleEvent, error) {
	var conditions []string
	var args []interface{}

	if filter.UserID != nil {
		conditions = append(conditions, "user_id = ?")
		args = append(args, *filter.UserID)
	}
	if filter.From != nil {
		conditions = append(conditions, "start_time >= ?")
		args = append(args, filter.From.UTC())
	}
	if filter.To != nil {
		conditions = append(conditions, "start_time < ?")
		args = append(args, filter.To.UTC())
	}
	if filter.RecurrenceParentID != nil {
		conditions = append(conditions, "recurrence_parent_id = ?")
		args = append(args, *filter.RecurrenceParentID)
	}

	query := "SELECT * FROM schedule_events"
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY start_time ASC"

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET %d", filter.Offset)
	}

	rows, err := s.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying schedule events: %w", err)
	}
	defer rows.Close()

	var events []model.ScheduleEvent
	for rows.Next() {
		e, err := scanScheduleEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}

	return events, rows.Err()
}

// UpsertScheduleEvents applies a reconciliation change set in a single
// transaction.
func (s *SQLiteStore) UpsertScheduleEvents(ctx context.Context, create, update []model.ScheduleEvent, deleteIDs []string) error {
	if len(create) == 0 && len(update) == 0 && len(deleteIDs) == 0 {
		return nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()

	if len(create) > 0 {
		const insertQuery = `
			INSERT INTO schedule_events (
				id, user_id, title, start_time, duration_minutes,
				workload, location, recurrence_parent_id, created_at, updated_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

		stmt, err := tx.PreparexContext(ctx, insertQuery)
		if err != nil {
			return fmt.Errorf("preparing schedule insert: %w", err)
		}
		defer stmt.Close()

		for _, e := range create {
			if e.ID == "" {
				e.ID = uuid.New().String()
			}
			_, err = stmt.ExecContext(ctx,
				e.ID, e.UserID, e.Title, e.StartTime.UTC(), e.DurationMinutes,
				string(e.Workload), e.Location, e.RecurrenceParentID, now, now,
			)
			if err != nil {
				return fmt.Errorf("inserting schedule event %q: %w", e.Title, err)
			}
		}
	}

	for _, e := range update {
		_, err = tx.ExecContext(ctx, `
			UPDATE schedule_events SET
				title = ?, start_time = ?, duration_minutes = ?,
				workload = ?, location = ?, updated_at = ?
			WHERE id = ?`,
			e.Title, e.StartTime.UTC(), e.DurationMinutes,
			string(e.Workload), e.Location, now, e.ID,
		)
		if err != nil {
			return fmt.Errorf("updating schedule event %s: %w", e.ID, err)
		}
	}

	for _, id := range deleteIDs {
		if _, err = tx.ExecContext(ctx, "DELETE FROM schedule_events WHERE id = ?", id); err != nil {
			return fmt.Errorf("deleting schedule event %s: %w", id, err)
		}
	}

	return tx.Commit()
}

// scanScheduleEvent scans a schedule event row from a sqlx.Rows result set.
func scanScheduleEvent(rows *sqlx.Rows) (model.ScheduleEvent, error) {
	var (
		e        model.ScheduleEvent
		workload string
	)

	err := rows.Scan(
		&e.ID, &e.UserID, &e.Title, &e.StartTime, &e.DurationMinutes,
		&workload, &e.Location, &e.RecurrenceParentID, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		return model.ScheduleEvent{}, fmt.Errorf("scanning schedule event row: %w", err)
	}

	e.Workload = model.Workload(workload)

	return e, nil
}
