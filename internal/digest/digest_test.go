package digest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studvik/companion/internal/model"
)

func TestIsDigestCandidate(t *testing.T) {
	assert.True(t, IsDigestCandidate(model.PriorityLow))
	assert.True(t, IsDigestCandidate(model.PriorityMedium))
	assert.False(t, IsDigestCandidate(model.PriorityHigh))
	assert.False(t, IsDigestCandidate(model.PriorityCritical))
}

func TestNextWindow(t *testing.T) {
	day := func(h, min int) time.Time {
		return time.Date(2026, 2, 17, h, min, 0, 0, time.UTC)
	}
	cases := []struct {
		now  time.Time
		want time.Time
	}{
		{day(6, 15), day(8, 0)},
		{day(12, 15), day(18, 0)},
		{day(20, 15), time.Date(2026, 2, 18, 8, 0, 0, 0, time.UTC)},
		{day(8, 0), day(18, 0)},
		{day(18, 0), time.Date(2026, 2, 18, 8, 0, 0, 0, time.UTC)},
	}
	for _, tc := range cases {
		got := NextWindow(tc.now, 8, 18)
		assert.Equal(t, tc.want, got, "now %s", tc.now)
	}
}

func TestScheduleAt(t *testing.T) {
	now := time.Date(2026, 2, 17, 12, 15, 0, 0, time.UTC)
	window := time.Date(2026, 2, 17, 18, 0, 0, 0, time.UTC)

	assert.Equal(t, window, ScheduleAt(model.PriorityLow, now, 8, 18))
	assert.Equal(t, window, ScheduleAt(model.PriorityMedium, now, 8, 18))
	assert.Equal(t, now, ScheduleAt(model.PriorityHigh, now, 8, 18))
	assert.Equal(t, now, ScheduleAt(model.PriorityCritical, now, 8, 18))
}

func TestBuildDigestEmpty(t *testing.T) {
	now := time.Date(2026, 2, 17, 8, 0, 0, 0, time.UTC)
	assert.Nil(t, BuildDigest(nil, now, 8, 18))
}

func TestBuildDigestSummarizesSources(t *testing.T) {
	now := time.Date(2026, 2, 17, 8, 0, 0, 0, time.UTC)
	due := []model.ScheduledNotification{
		{ID: "1", UserID: "u1", Priority: model.PriorityLow, Source: "canvas"},
		{ID: "2", UserID: "u1", Priority: model.PriorityMedium, Source: "canvas"},
		{ID: "3", UserID: "u1", Priority: model.PriorityLow, Source: "github"},
	}

	d := BuildDigest(due, now, 8, 18)
	require.NotNil(t, d)
	assert.Equal(t, "u1", d.UserID)
	assert.Equal(t, "Morning digest", d.Title)
	assert.Equal(t, "3 non-urgent updates from canvas, github", d.Message)
	assert.Equal(t, model.PriorityMedium, d.Priority)
	assert.Equal(t, model.NotificationSourceOrchestrator, d.Source)
	assert.Equal(t, DigestURL, d.URL)
	require.Len(t, d.Actions, 1)
	assert.Equal(t, "view", d.Actions[0].Label)
	assert.Equal(t, DigestURL, d.Actions[0].URL)
}

func TestBuildDigestSingular(t *testing.T) {
	now := time.Date(2026, 2, 17, 18, 0, 0, 0, time.UTC)
	due := []model.ScheduledNotification{
		{ID: "1", UserID: "u1", Priority: model.PriorityLow, Source: "tp"},
	}

	d := BuildDigest(due, now, 8, 18)
	require.NotNil(t, d)
	assert.Equal(t, "Evening digest", d.Title)
	assert.Equal(t, "1 non-urgent update from tp", d.Message)
}
