package bridge_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/studvik/companion/internal/bridge"
	"github.com/studvik/companion/internal/model"
	"github.com/studvik/companion/internal/source"
	"github.com/studvik/companion/internal/store"
	"github.com/studvik/companion/tests/testutil"
)

func newTimeEditBridge(s store.Store) *bridge.ScheduleBridge {
	return bridge.NewScheduleBridge(s, zap.NewNop(), testUser, model.IntegrationTimeEdit, 0)
}

func remoteEvent(title string, start time.Time, minutes int) source.RemoteEvent {
	end := start.Add(time.Duration(minutes) * time.Minute)
	return source.RemoteEvent{
		Title: title,
		Start: start,
		End:   &end,
	}
}

func listEvents(t *testing.T, s store.Store) []model.ScheduleEvent {
	t.Helper()
	userID := testUser
	events, err := s.GetScheduleEvents(context.Background(), store.ScheduleFilter{UserID: &userID})
	require.NoError(t, err)
	return events
}

func TestInferWorkload(t *testing.T) {
	cases := []struct {
		title string
		want  model.Workload
	}{
		{"Eksamen TDT4120", model.WorkloadHigh},
		{"Final exam review", model.WorkloadHigh},
		{"Forelesning TDT4120", model.WorkloadMedium},
		{"Lab session", model.WorkloadMedium},
		{"TDT4120 Øving", model.WorkloadMedium},
		{"Veiledning", model.WorkloadLow},
		{"Office hours", model.WorkloadLow},
		{"Workshop on something", model.WorkloadMedium},
		{"", model.WorkloadMedium},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, bridge.InferWorkload(tc.title), "title %q", tc.title)
	}
}

func TestConvert(t *testing.T) {
	b := newTimeEditBridge(testutil.NewTestStore(t))
	start := time.Date(2026, 1, 12, 10, 15, 0, 0, time.UTC)

	event := b.Convert(source.RemoteEvent{
		Title:    "Forelesning TDT4120",
		Start:    start,
		End:      timePtr(start.Add(105 * time.Minute)),
		Location: "EL5",
	})

	assert.Equal(t, testUser, event.UserID)
	assert.Equal(t, "Forelesning TDT4120", event.Title)
	assert.Equal(t, 105, event.DurationMinutes)
	assert.Equal(t, model.WorkloadMedium, event.Workload)
	assert.Equal(t, "EL5", event.Location)
	assert.Equal(t, "timeedit-import", event.RecurrenceParentID)
}

func TestConvertDurationFallbackAndClamp(t *testing.T) {
	s := testutil.NewTestStore(t)
	start := time.Date(2026, 1, 12, 10, 15, 0, 0, time.UTC)

	b := bridge.NewScheduleBridge(s, zap.NewNop(), testUser, model.IntegrationTP, 45)

	// No end time: per-source fallback.
	event := b.Convert(source.RemoteEvent{Title: "Forelesning", Start: start})
	assert.Equal(t, 45, event.DurationMinutes)

	// Zero-length interval: clamped to the minimum.
	event = b.Convert(source.RemoteEvent{Title: "Forelesning", Start: start, End: &start})
	assert.Equal(t, model.MinEventDurationMinutes, event.DurationMinutes)

	// Negative interval: clamped as well.
	before := start.Add(-30 * time.Minute)
	event = b.Convert(source.RemoteEvent{Title: "Forelesning", Start: start, End: &before})
	assert.Equal(t, model.MinEventDurationMinutes, event.DurationMinutes)
}

func TestSyncEventsCreatesAndRemoves(t *testing.T) {
	s := testutil.NewTestStore(t)
	b := newTimeEditBridge(s)
	monday := time.Date(2026, 1, 12, 10, 15, 0, 0, time.UTC)
	tuesday := monday.Add(24 * time.Hour)

	res, err := b.SyncEvents(context.Background(), []source.RemoteEvent{
		remoteEvent("Forelesning TDT4120", monday, 90),
		remoteEvent("Forelesning TDT4120", tuesday, 90),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Created)

	// The next feed drops Tuesday and adds Wednesday.
	wednesday := tuesday.Add(24 * time.Hour)
	res, err = b.SyncEvents(context.Background(), []source.RemoteEvent{
		remoteEvent("Forelesning TDT4120", monday, 90),
		remoteEvent("Forelesning TDT4120", wednesday, 90),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Created)
	assert.Equal(t, 1, res.Removed)
	assert.Equal(t, 0, res.Updated)

	events := listEvents(t, s)
	require.Len(t, events, 2)
}

func TestSyncEventsUpdatesInPlace(t *testing.T) {
	s := testutil.NewTestStore(t)
	b := newTimeEditBridge(s)
	start := time.Date(2026, 1, 12, 10, 15, 0, 0, time.UTC)

	_, err := b.SyncEvents(context.Background(), []source.RemoteEvent{
		remoteEvent("Forelesning TDT4120", start, 90),
	})
	require.NoError(t, err)
	before := listEvents(t, s)[0]

	// Same title and start, new room: an in-place update.
	moved := remoteEvent("Forelesning TDT4120", start, 90)
	moved.Location = "R2"
	res, err := b.SyncEvents(context.Background(), []source.RemoteEvent{moved})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Updated)
	assert.Equal(t, 0, res.Created)
	assert.Equal(t, 0, res.Removed)

	after := listEvents(t, s)[0]
	assert.Equal(t, before.ID, after.ID)
	assert.Equal(t, "R2", after.Location)
}

func TestSyncEventsTreatsTitleChangeAsReplace(t *testing.T) {
	s := testutil.NewTestStore(t)
	b := newTimeEditBridge(s)
	start := time.Date(2026, 1, 12, 10, 15, 0, 0, time.UTC)

	_, err := b.SyncEvents(context.Background(), []source.RemoteEvent{
		remoteEvent("Forelesning TDT4120", start, 90),
	})
	require.NoError(t, err)

	res, err := b.SyncEvents(context.Background(), []source.RemoteEvent{
		remoteEvent("Forelesning TDT4121", start, 90),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Created)
	assert.Equal(t, 1, res.Removed)
}

func TestSyncEventsLeavesUserEventsAlone(t *testing.T) {
	s := testutil.NewTestStore(t)
	b := newTimeEditBridge(s)

	userEvent := &model.ScheduleEvent{
		UserID:          testUser,
		Title:           "Dentist",
		StartTime:       time.Date(2026, 1, 14, 9, 0, 0, 0, time.UTC),
		DurationMinutes: 30,
		Workload:        model.WorkloadLow,
	}
	require.NoError(t, s.CreateScheduleEvent(context.Background(), userEvent))

	res, err := b.SyncEvents(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Removed)

	events := listEvents(t, s)
	require.Len(t, events, 1)
	assert.Equal(t, "Dentist", events[0].Title)
}

func TestSyncEventsIdempotent(t *testing.T) {
	s := testutil.NewTestStore(t)
	b := newTimeEditBridge(s)
	start := time.Date(2026, 1, 12, 10, 15, 0, 0, time.UTC)

	feed := []source.RemoteEvent{
		remoteEvent("Forelesning TDT4120", start, 90),
		remoteEvent("Øving TDT4120", start.Add(26*time.Hour), 120),
	}

	_, err := b.SyncEvents(context.Background(), feed)
	require.NoError(t, err)

	res, err := b.SyncEvents(context.Background(), feed)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Created)
	assert.Equal(t, 0, res.Updated)
	assert.Equal(t, 0, res.Removed)
}

func timePtr(t time.Time) *time.Time {
	return &t
}
