package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/studvik/companion/internal/model"
)

// SQLiteStore implements the Store interface using a local SQLite database.
type SQLiteStore struct {
	db *sqlx.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath,
// enables WAL mode, and runs any pending schema migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	// Enable foreign keys.
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// runMigrations checks the current schema version and applies any
// outstanding migrations in order.
func (s *SQLiteStore) runMigrations() error {
	currentVersion := 0

	// Check if schema_version table exists.
	var tableCount int
	err := s.db.Get(
		&tableCount,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	)
	if err != nil {
		return fmt.Errorf("checking schema_version table: %w", err)
	}

	if tableCount > 0 {
		err = s.db.Get(&currentVersion, "SELECT COALESCE(MAX(version), 0) FROM schema_version")
		if err != nil {
			return fmt.Errorf("reading schema version: %w", err)
		}
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}
		if _, err := s.db.Exec(m.sql); err != nil {
			return fmt.Errorf("applying migration v%d: %w", m.version, err)
		}
	}

	return nil
}

// CreateDeadline inserts a new deadline. Generates a UUID if ID is empty.
func (s *SQLiteStore) CreateDeadline(ctx context.Context, d *model.Deadline) error {
	if strings.TrimSpace(d.Task) == "" {
		return fmt.Errorf("deadline task must not be empty")
	}
	if d.ID == "" {
		d.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	d.CreatedAt = now
	d.UpdatedAt = now
	if d.Priority == "" {
		d.Priority = model.PriorityMedium
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO deadlines (
			id, user_id, course, task, due_date, source_due_date,
			priority, completed, completed_at, source, source_item_id,
			url, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.UserID, d.Course, d.Task, d.DueDate.UTC(), utcPtr(d.SourceDueDate),
		string(d.Priority), boolToInt(d.Completed), utcPtr(d.CompletedAt),
		string(d.Source), d.SourceItemID,
		d.URL, d.CreatedAt, d.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("creating deadline: %w", err)
	}
	return nil
}

// UpdateDeadline updates an existing deadline by ID.
func (s *SQLiteStore) UpdateDeadline(ctx context.Context, d *model.Deadline) error {
	if strings.TrimSpace(d.Task) == "" {
		return fmt.Errorf("deadline task must not be empty")
	}

	now := time.Now().UTC()
	d.UpdatedAt = now

	// Auto-manage completed_at based on the completed flag.
	if d.Completed && d.CompletedAt == nil {
		d.CompletedAt = &now
	} else if !d.Completed {
		d.CompletedAt = nil
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE deadlines SET
			course = ?, task = ?, due_date = ?, source_due_date = ?,
			priority = ?, completed = ?, completed_at = ?,
			source = ?, source_item_id = ?, url = ?, updated_at = ?
		WHERE id = ?`,
		d.Course, d.Task, d.DueDate.UTC(), utcPtr(d.SourceDueDate),
		string(d.Priority), boolToInt(d.Completed), utcPtr(d.CompletedAt),
		string(d.Source), d.SourceItemID, d.URL, d.UpdatedAt,
		d.ID,
	)
	if err != nil {
		return fmt.Errorf("updating deadline %s: %w", d.ID, err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("deadline %s: %w", d.ID, ErrNotFound)
	}
	return nil
}

// DeleteDeadline removes a deadline by ID.
func (s *SQLiteStore) DeleteDeadline(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM deadlines WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting deadline %s: %w", id, err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("deadline %s: %w", id, ErrNotFound)
	}
	return nil
}

// GetDeadlineByID retrieves a single deadline by its ID.
func (s *SQLiteStore) GetDeadlineByID(ctx context.Context, id string) (*model.Deadline, error) {
	row := s.db.QueryRowxContext(ctx, "SELECT * FROM deadlines WHERE id = ?", id)

	d, err := scanDeadlineRow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("deadline %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("getting deadline %s: %w", id, err)
	}

	return &d, nil
}

// GetDeadlines retrieves deadlines matching the provided filter options.
func (s *SQLiteStore) GetDeadlines(ctx context.Context, filter DeadlineFilter) ([]model.Deadline, error) {
	var conditions []string
	var args []interface{}

	if filter.UserID != nil {
		conditions = append(conditions, "user_id = ?")
		args = append(args, *filter.UserID)
	}
	if filter.Source != nil {
		conditions = append(conditions, "source = ?")
		args = append(args, *filter.Source)
	}
	if filter.Course != nil {
		conditions = append(conditions, "course = ?")
		args = append(args, *filter.Course)
	}
	if filter.Completed != nil {
		conditions = append(conditions, "completed = ?")
		args = append(args, boolToInt(*filter.Completed))
	}
	if filter.DueAfter != nil {
		conditions = append(conditions, "due_date >= ?")
		args = append(args, filter.DueAfter.UTC())
	}
	if filter.DueBefore != nil {
		conditions = append(conditions, "due_date < ?")
		args = append(args, filter.DueBefore.UTC())
	}
	if filter.Query != nil && *filter.Query != "" {
		conditions = append(conditions, "(course LIKE ? OR task LIKE ?)")
		q := "%" + *filter.Query + "%"
		args = append(args, q, q)
	}

	query := "SELECT * FROM deadlines"
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}

	// Determine sort column.
	sortBy := "due_date"
	if filter.SortBy != "" {
		allowedSorts := map[string]bool{
			"due_date":   true,
			"course":     true,
			"priority":   true,
			"created_at": true,
			"updated_at": true,
		}
		if allowedSorts[filter.SortBy] {
			sortBy = filter.SortBy
		}
	}

	direction := "ASC"
	if filter.SortDesc {
		direction = "DESC"
	}
	query += fmt.Sprintf(" ORDER BY %s %s", sortBy, direction)

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET %d", filter.Offset)
	}

	rows, err := s.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying deadlines: %w", err)
	}
	defer rows.Close()

	var deadlines []model.Deadline
	for rows.Next() {
		d, err := scanDeadline(rows)
		if err != nil {
			return nil, err
		}
		deadlines = append(deadlines, d)
	}

	return deadlines, rows.Err()
}

// ApplyDeadlineChanges applies a reconciliation change set in a single
// transaction so a failed sync never leaves the store half-updated.
func (s *SQLiteStore) ApplyDeadlineChanges(ctx context.Context, create, update []model.Deadline, deleteIDs []string) error {
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
			INSERT INTO deadlines (
				id, user_id, course, task, due_date, source_due_date,
				priority, completed, completed_at, source, source_item_id,
				url, created_at, updated_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

		stmt, err := tx.PreparexContext(ctx, insertQuery)
		if err != nil {
			return fmt.Errorf("preparing deadline insert: %w", err)
		}
		defer stmt.Close()

		for _, d := range create {
			if d.ID == "" {
				d.ID = uuid.New().String()
			}
			_, err = stmt.ExecContext(ctx,
				d.ID, d.UserID, d.Course, d.Task, d.DueDate.UTC(), utcPtr(d.SourceDueDate),
				string(d.Priority), boolToInt(d.Completed), utcPtr(d.CompletedAt),
				string(d.Source), d.SourceItemID, d.URL, now, now,
			)
			if err != nil {
				return fmt.Errorf("inserting deadline %s: %w", d.SourceItemID, err)
			}
		}
	}

	for _, d := range update {
		_, err = tx.ExecContext(ctx, `
			UPDATE deadlines SET
				course = ?, task = ?, due_date = ?, source_due_date = ?,
				priority = ?, url = ?, updated_at = ?
			WHERE id = ?`,
			d.Course, d.Task, d.DueDate.UTC(), utcPtr(d.SourceDueDate),
			string(d.Priority), d.URL, now, d.ID,
		)
		if err != nil {
			return fmt.Errorf("updating deadline %s: %w", d.ID, err)
		}
	}

	for _, id := range deleteIDs {
		if _, err = tx.ExecContext(ctx, "DELETE FROM deadlines WHERE id = ?", id); err != nil {
			return fmt.Errorf("deleting deadline %s: %w", id, err)
		}
	}

	return tx.Commit()
}

// scanDeadline scans a deadline row from a sqlx.Rows result set.
func scanDeadline(rows *sqlx.Rows) (model.Deadline, error) {
	var (
		d             model.Deadline
		priority      string
		source        string
		completedInt  int
		sourceDueDate *time.Time
		completedAt   *time.Time
	)

	err := rows.Scan(
		&d.ID, &d.UserID, &d.Course, &d.Task, &d.DueDate, &sourceDueDate,
		&priority, &completedInt, &completedAt, &source, &d.SourceItemID,
		&d.URL, &d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		return model.Deadline{}, fmt.Errorf("scanning deadline row: %w", err)
	}

	d.Priority = model.Priority(priority)
	d.Source = model.Integration(source)
	d.Completed = completedInt != 0
	d.SourceDueDate = sourceDueDate
	d.CompletedAt = completedAt

	return d, nil
}

// scanDeadlineRow scans a single deadline row from a sqlx.Row.
func scanDeadlineRow(row *sqlx.Row) (model.Deadline, error) {
	var (
		d             model.Deadline
		priority      string
		source        string
		completedInt  int
		sourceDueDate *time.Time
		completedAt   *time.Time
	)

	err := row.Scan(
		&d.ID, &d.UserID, &d.Course, &d.Task, &d.DueDate, &sourceDueDate,
		&priority, &completedInt, &completedAt, &source, &d.SourceItemID,
		&d.URL, &d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		return model.Deadline{}, fmt.Errorf("scanning deadline row: %w", err)
	}

	d.Priority = model.Priority(priority)
	d.Source = model.Integration(source)
	d.Completed = completedInt != 0
	d.SourceDueDate = sourceDueDate
	d.CompletedAt = completedAt

	return d, nil
}

// boolToInt converts a boolean to 0 or 1 for SQLite storage.
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// utcPtr normalizes an optional timestamp to UTC for storage.
func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
