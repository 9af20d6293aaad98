package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studvik/companion/internal/model"
	"github.com/studvik/companion/internal/store"
	"github.com/studvik/companion/tests/testutil"
)

func TestScheduledNotificationQueue(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	now := time.Date(2026, 2, 17, 8, 0, 0, 0, time.UTC)
	past := &model.ScheduledNotification{
		UserID: "u1", Message: "assignment graded",
		Priority: model.PriorityLow, Source: "canvas",
		SendAt: now.Add(-time.Minute),
	}
	future := &model.ScheduledNotification{
		UserID: "u1", Message: "exam next week",
		Priority: model.PriorityHigh, Source: "tp",
		SendAt: now.Add(time.Hour),
	}
	require.NoError(t, s.CreateScheduledNotification(ctx, past))
	require.NoError(t, s.CreateScheduledNotification(ctx, future))

	due, err := s.ListDueScheduledNotifications(ctx, now)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, "assignment graded", due[0].Message)

	require.NoError(t, s.DeleteScheduledNotifications(ctx, []string{past.ID}))

	due, err = s.ListDueScheduledNotifications(ctx, now.Add(2*time.Hour))
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, "exam next week", due[0].Message)
}

func TestDeleteScheduledNotificationsEmpty(t *testing.T) {
	s := testutil.NewTestStore(t)

	assert.NoError(t, s.DeleteScheduledNotifications(context.Background(), nil))
}

func TestNotificationsRoundTrip(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	n := &model.Notification{
		UserID:   "u1",
		Title:    "Morning digest",
		Message:  "3 non-urgent updates from canvas, github",
		Priority: model.PriorityMedium,
		Source:   model.NotificationSourceOrchestrator,
		URL:      "/notifications",
		Actions: []model.NotificationAction{
			{Label: "view", URL: "/notifications"},
		},
	}
	require.NoError(t, s.CreateNotification(ctx, n))
	assert.NotEmpty(t, n.ID)

	unread, err := s.GetNotifications(ctx, store.NotificationFilter{
		UserID: strPtr("u1"),
		Unread: boolPtr(true),
	})
	require.NoError(t, err)
	require.Len(t, unread, 1)
	assert.Equal(t, "Morning digest", unread[0].Title)
	require.Len(t, unread[0].Actions, 1)
	assert.Equal(t, "view", unread[0].Actions[0].Label)

	require.NoError(t, s.MarkNotificationRead(ctx, n.ID))

	unread, err = s.GetNotifications(ctx, store.NotificationFilter{
		UserID: strPtr("u1"),
		Unread: boolPtr(true),
	})
	require.NoError(t, err)
	assert.Empty(t, unread)

	all, err := s.GetNotifications(ctx, store.NotificationFilter{UserID: strPtr("u1")})
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestMarkNotificationReadNotFound(t *testing.T) {
	s := testutil.NewTestStore(t)

	err := s.MarkNotificationRead(context.Background(), "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}
