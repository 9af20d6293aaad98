package digest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/studvik/companion/internal/model"
)

type fakeQueue struct {
	entries []model.ScheduledNotification
	deleted []string
}

func (q *fakeQueue) ListDueScheduledNotifications(_ context.Context, due time.Time) ([]model.ScheduledNotification, error) {
	var out []model.ScheduledNotification
	for _, e := range q.entries {
		if !e.SendAt.After(due) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (q *fakeQueue) DeleteScheduledNotifications(_ context.Context, ids []string) error {
	drop := make(map[string]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
		q.deleted = append(q.deleted, id)
	}
	var kept []model.ScheduledNotification
	for _, e := range q.entries {
		if !drop[e.ID] {
			kept = append(kept, e)
		}
	}
	q.entries = kept
	return nil
}

type fakeDeliverer struct {
	delivered []*model.Notification
	failFor   map[string]bool
}

func (d *fakeDeliverer) Deliver(_ context.Context, n *model.Notification) error {
	if d.failFor[n.Message] {
		return assert.AnError
	}
	d.delivered = append(d.delivered, n)
	return nil
}

func newTestDispatcher(q *fakeQueue, del *fakeDeliverer, now time.Time) *Dispatcher {
	d := NewDispatcher(q, del, 8, 18, zap.NewNop())
	d.now = func() time.Time { return now }
	return d
}

func TestTickBatchesCandidatesAndPassesUrgent(t *testing.T) {
	now := time.Date(2026, 2, 17, 8, 0, 0, 0, time.UTC)
	q := &fakeQueue{entries: []model.ScheduledNotification{
		{ID: "a", UserID: "u1", Message: "assignment graded", Priority: model.PriorityLow, Source: "canvas", SendAt: now},
		{ID: "b", UserID: "u1", Message: "new issue assigned", Priority: model.PriorityMedium, Source: "github", SendAt: now},
		{ID: "c", UserID: "u1", Message: "room changed", Priority: model.PriorityLow, Source: "timeedit", SendAt: now},
		{ID: "d", UserID: "u1", Title: "Exam tomorrow", Message: "exam in 24 hours", Priority: model.PriorityCritical, Source: "tp", SendAt: now},
	}}
	del := &fakeDeliverer{}

	err := newTestDispatcher(q, del, now).Tick(context.Background())
	require.NoError(t, err)

	// One urgent delivery plus exactly one digest.
	require.Len(t, del.delivered, 2)
	urgent := del.delivered[0]
	assert.Equal(t, "exam in 24 hours", urgent.Message)
	assert.Equal(t, model.PriorityCritical, urgent.Priority)

	dig := del.delivered[1]
	assert.Equal(t, "3 non-urgent updates from canvas, github, timeedit", dig.Message)
	assert.Equal(t, model.NotificationSourceOrchestrator, dig.Source)

	// Everything processed leaves the queue.
	assert.ElementsMatch(t, []string{"a", "b", "c", "d"}, q.deleted)
	assert.Empty(t, q.entries)
}

func TestTickLeavesFutureEntries(t *testing.T) {
	now := time.Date(2026, 2, 17, 8, 0, 0, 0, time.UTC)
	q := &fakeQueue{entries: []model.ScheduledNotification{
		{ID: "later", UserID: "u1", Message: "x", Priority: model.PriorityLow, Source: "canvas", SendAt: now.Add(time.Hour)},
	}}
	del := &fakeDeliverer{}

	err := newTestDispatcher(q, del, now).Tick(context.Background())
	require.NoError(t, err)

	assert.Empty(t, del.delivered)
	require.Len(t, q.entries, 1)
}

func TestTickKeepsEntriesWhenDeliveryFails(t *testing.T) {
	now := time.Date(2026, 2, 17, 8, 0, 0, 0, time.UTC)
	q := &fakeQueue{entries: []model.ScheduledNotification{
		{ID: "u", UserID: "u1", Message: "urgent thing", Priority: model.PriorityHigh, Source: "tp", SendAt: now},
	}}
	del := &fakeDeliverer{failFor: map[string]bool{"urgent thing": true}}

	err := newTestDispatcher(q, del, now).Tick(context.Background())
	require.NoError(t, err)

	assert.Empty(t, del.delivered)
	require.Len(t, q.entries, 1, "failed delivery stays queued for retry")
}

func TestTickDigestsPerUser(t *testing.T) {
	now := time.Date(2026, 2, 17, 18, 0, 0, 0, time.UTC)
	q := &fakeQueue{entries: []model.ScheduledNotification{
		{ID: "1", UserID: "u1", Message: "a", Priority: model.PriorityLow, Source: "canvas", SendAt: now},
		{ID: "2", UserID: "u2", Message: "b", Priority: model.PriorityLow, Source: "github", SendAt: now},
	}}
	del := &fakeDeliverer{}

	err := newTestDispatcher(q, del, now).Tick(context.Background())
	require.NoError(t, err)

	require.Len(t, del.delivered, 2)
	assert.Equal(t, "u1", del.delivered[0].UserID)
	assert.Equal(t, "1 non-urgent update from canvas", del.delivered[0].Message)
	assert.Equal(t, "u2", del.delivered[1].UserID)
	assert.Equal(t, "1 non-urgent update from github", del.delivered[1].Message)
}
