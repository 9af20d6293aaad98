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

func seedAttempts(t *testing.T, s *store.SQLiteStore, base time.Time) {
	t.Helper()
	ctx := context.Background()

	attempts := []*model.SyncAttempt{
		{UserID: "u1", Integration: model.IntegrationCanvas, Success: true,
			DurationMs: 200, AttemptedAt: base},
		{UserID: "u1", Integration: model.IntegrationCanvas, Success: true,
			DurationMs: 400, AttemptedAt: base.Add(10 * time.Minute)},
		{UserID: "u1", Integration: model.IntegrationCanvas, Success: false,
			DurationMs: 1200, Error: "canvas: unexpected status 401: unauthorized",
			RootCause: "auth", AttemptedAt: base.Add(20 * time.Minute)},
		{UserID: "u1", Integration: model.IntegrationGitHub, Success: true,
			DurationMs: 300, AttemptedAt: base.Add(5 * time.Minute)},
	}
	for _, a := range attempts {
		require.NoError(t, s.RecordSyncAttempt(ctx, a))
	}
}

func TestGetSyncAttemptsFilters(t *testing.T) {
	s := testutil.NewTestStore(t)
	base := time.Date(2026, 2, 17, 10, 0, 0, 0, time.UTC)
	seedAttempts(t, s, base)
	ctx := context.Background()

	// Newest first for one integration.
	canvas, err := s.GetSyncAttempts(ctx, store.SyncAttemptFilter{
		UserID:      strPtr("u1"),
		Integration: strPtr(string(model.IntegrationCanvas)),
	})
	require.NoError(t, err)
	require.Len(t, canvas, 3)
	assert.False(t, canvas[0].Success)
	assert.Equal(t, "auth", canvas[0].RootCause)

	// Failures only.
	failures, err := s.GetSyncAttempts(ctx, store.SyncAttemptFilter{
		UserID:  strPtr("u1"),
		Success: boolPtr(false),
	})
	require.NoError(t, err)
	require.Len(t, failures, 1)
	assert.Contains(t, failures[0].Error, "status 401")

	// Since cutoff.
	recent, err := s.GetSyncAttempts(ctx, store.SyncAttemptFilter{
		UserID: strPtr("u1"),
		Since:  timePtr(base.Add(15 * time.Minute)),
	})
	require.NoError(t, err)
	assert.Len(t, recent, 1)

	// Limit.
	limited, err := s.GetSyncAttempts(ctx, store.SyncAttemptFilter{
		UserID: strPtr("u1"),
		Limit:  2,
	})
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestGetSyncSummary(t *testing.T) {
	s := testutil.NewTestStore(t)
	base := time.Date(2026, 2, 17, 10, 0, 0, 0, time.UTC)
	seedAttempts(t, s, base)

	summaries, err := s.GetSyncSummary(context.Background(), "u1", base.Add(-time.Hour))
	require.NoError(t, err)
	require.Len(t, summaries, 2)

	canvas := summaries[0]
	assert.Equal(t, model.IntegrationCanvas, canvas.Integration)
	assert.Equal(t, 3, canvas.Attempts)
	assert.Equal(t, 2, canvas.Successes)
	assert.Equal(t, 1, canvas.Failures)
	assert.Contains(t, canvas.LastError, "status 401")
	require.NotNil(t, canvas.LastSuccessAt)
	assert.True(t, canvas.LastSuccessAt.Equal(base.Add(10*time.Minute)))
	assert.Equal(t, int64(600), canvas.AvgDurationMs)

	github := summaries[1]
	assert.Equal(t, model.IntegrationGitHub, github.Integration)
	assert.Equal(t, 1, github.Attempts)
	assert.Equal(t, 0, github.Failures)
	assert.Empty(t, github.LastError)
}

func TestPruneSyncAttempts(t *testing.T) {
	s := testutil.NewTestStore(t)
	base := time.Date(2026, 2, 17, 10, 0, 0, 0, time.UTC)
	seedAttempts(t, s, base)
	ctx := context.Background()

	pruned, err := s.PruneSyncAttempts(ctx, base.Add(15*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(3), pruned)

	left, err := s.GetSyncAttempts(ctx, store.SyncAttemptFilter{UserID: strPtr("u1")})
	require.NoError(t, err)
	require.Len(t, left, 1)
	assert.Equal(t, model.IntegrationCanvas, left[0].Integration)
	assert.False(t, left[0].Success)
}
