package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/studvik/companion/internal/model"
)

// CreateScheduledNotification queues a notification for later delivery.
// Generates a UUID if ID is empty.
func (s *SQLiteStore) CreateScheduledNotification(ctx context.Context, n *model.ScheduledNotification) error {
	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	if n.Priority == "" {
		n.Priority = model.PriorityMedium
	}

	actions, err := json.Marshal(n.Actions)
	if err != nil {
		return fmt.Errorf("marshaling notification actions: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO scheduled_notifications (
			id, user_id, title, message, priority, source, url, actions, send_at, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		n.ID, n.UserID, n.Title, n.Message, string(n.Priority), n.Source,
		n.URL, string(actions), n.SendAt.UTC(), n.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("creating scheduled notification: %w", err)
	}
	return nil
}

// ListDueScheduledNotifications returns queue entries whose send time has
// arrived, oldest first.
func (s *SQLiteStore) ListDueScheduledNotifications(ctx context.Context, due time.Time) ([]model.ScheduledNotification, error) {
	rows, err := s.db.QueryxContext(ctx,
		"SELECT * FROM scheduled_notifications WHERE send_at <= ? ORDER BY send_at ASC",
		due.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("querying due notifications: %w", err)
	}
	defer rows.Close()

	var entries []model.ScheduledNotification
	for rows.Next() {
		n, err := scanScheduledNotification(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, n)
	}

	return entries, rows.Err()
}

// DeleteScheduledNotifications removes the given queue entries.
func (s *SQLiteStore) DeleteScheduledNotifications(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]

	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	_, err := s.db.ExecContext(ctx,
		"DELETE FROM scheduled_notifications WHERE id IN ("+placeholders+")",
		args...,
	)
	if err != nil {
		return fmt.Errorf("deleting scheduled notifications: %w", err)
	}
	return nil
}

// CreateNotification inserts a delivered notification record.
func (s *SQLiteStore) CreateNotification(ctx context.Context, n *model.Notification) error {
	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	if n.Priority == "" {
		n.Priority = model.PriorityMedium
	}

	actions, err := json.Marshal(n.Actions)
	if err != nil {
		return fmt.Errorf("marshaling notification actions: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO notifications (
			id, user_id, title, message, priority, source, url, actions, read, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		n.ID, n.UserID, n.Title, n.Message, string(n.Priority), n.Source,
		n.URL, string(actions), boolToInt(n.Read), n.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("creating notification: %w", err)
	}
	return nil
}

// GetNotifications retrieves delivered notifications matching the filter,
// newest first.
func (s *SQLiteStore) GetNotifications(ctx context.Context, filter NotificationFilter) ([]model.Notification, error) {
	var conditions []string
	var args []interface{}

	if filter.UserID != nil {
		conditions = append(conditions, "user_id = ?")
		args = append(args, *filter.UserID)
	}
	if filter.Unread != nil && *filter.Unread {
		conditions = append(conditions, "read = 0")
	}

	query := "SELECT * FROM notifications"
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY created_at DESC"

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET %d", filter.Offset)
	}

	rows, err := s.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying notifications: %w", err)
	}
	defer rows.Close()

	var notifications []model.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		notifications = append(notifications, n)
	}

	return notifications, rows.Err()
}

// MarkNotificationRead marks a single notification as read.
func (s *SQLiteStore) MarkNotificationRead(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx,
		"UPDATE notifications SET read = 1 WHERE id = ?", id,
	)
	if err != nil {
		return fmt.Errorf("marking notification %s as read: %w", id, err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("notification %s: %w", id, ErrNotFound)
	}
	return nil
}

// scanScheduledNotification scans a queue row from a sqlx.Rows result set.
func scanScheduledNotification(rows *sqlx.Rows) (model.ScheduledNotification, error) {
	var (
		n        model.ScheduledNotification
		priority string
		actions  string
	)

	err := rows.Scan(
		&n.ID, &n.UserID, &n.Title, &n.Message, &priority, &n.Source,
		&n.URL, &actions, &n.SendAt, &n.CreatedAt,
	)
	if err != nil {
		return model.ScheduledNotification{}, fmt.Errorf("scanning scheduled notification row: %w", err)
	}

	n.Priority = model.Priority(priority)

	if actions != "" && actions != "[]" {
		if err := json.Unmarshal([]byte(actions), &n.Actions); err != nil {
			return model.ScheduledNotification{}, fmt.Errorf("unmarshaling notification actions: %w", err)
		}
	}

	return n, nil
}

// scanNotification scans a notification row from a sqlx.Rows result set.
func scanNotification(rows *sqlx.Rows) (model.Notification, error) {
	var (
		n        model.Notification
		priority string
		actions  string
		readInt  int
	)

	err := rows.Scan(
		&n.ID, &n.UserID, &n.Title, &n.Message, &priority, &n.Source,
		&n.URL, &actions, &readInt, &n.CreatedAt,
	)
	if err != nil {
		return model.Notification{}, fmt.Errorf("scanning notification row: %w", err)
	}

	n.Priority = model.Priority(priority)
	n.Read = readInt != 0

	if actions != "" && actions != "[]" {
		if err := json.Unmarshal([]byte(actions), &n.Actions); err != nil {
			return model.Notification{}, fmt.Errorf("unmarshaling notification actions: %w", err)
		}
	}

	return n, nil
}
