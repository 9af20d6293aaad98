package sync_test

import (
	"context"
	"errors"
	gosync "sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studvik/companion/internal/digest"
	"github.com/studvik/companion/internal/healing"
	"github.com/studvik/companion/internal/model"
	"github.com/studvik/companion/internal/source"
	"github.com/studvik/companion/internal/store"
	"github.com/studvik/companion/internal/sync"
	"github.com/studvik/companion/tests/testutil"
)

const testUser = "user-1"

// fakeSource returns a canned snapshot or error and counts fetches.
type fakeSource struct {
	mu          gosync.Mutex
	integration model.Integration
	snapshot    *source.Snapshot
	err         error
	fetches     int

	// entered and release turn Fetch into a barrier for concurrency tests.
	entered chan struct{}
	release chan struct{}
}

func (f *fakeSource) Integration() model.Integration { return f.integration }
func (f *fakeSource) Configured() bool               { return true }

func (f *fakeSource) ValidateConnection(context.Context) (string, error) {
	return "ok", nil
}

func (f *fakeSource) Fetch(context.Context) (*source.Snapshot, error) {
	f.mu.Lock()
	f.fetches++
	f.mu.Unlock()

	if f.entered != nil {
		f.entered <- struct{}{}
		<-f.release
	}
	if f.err != nil {
		return nil, f.err
	}
	if f.snapshot != nil {
		return f.snapshot, nil
	}
	return &source.Snapshot{}, nil
}

func (f *fakeSource) fetchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetches
}

// fakeDeliverer records notifications handed to it.
type fakeDeliverer struct {
	mu        gosync.Mutex
	delivered []*model.Notification
}

func (d *fakeDeliverer) Deliver(_ context.Context, n *model.Notification) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.delivered = append(d.delivered, n)
	return nil
}

func (d *fakeDeliverer) all() []*model.Notification {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]*model.Notification(nil), d.delivered...)
}

func newTestService(t *testing.T, src *fakeSource, del digest.Deliverer, policy healing.PolicyConfig, tracker *healing.Tracker) (*sync.Service, *store.SQLiteStore) {
	t.Helper()

	s := testutil.NewTestStore(t)
	svc := sync.NewService(sync.ServiceConfig{
		UserID:               testUser,
		Source:               src,
		Store:                s,
		Policy:               policy,
		Tracker:              tracker,
		Deliverer:            del,
		MorningHour:          8,
		EveningHour:          16,
		FallbackEventMinutes: 60,
	})
	return svc, s
}

func defaultPolicy() healing.PolicyConfig {
	return healing.PolicyConfig{
		BackoffBase:      time.Hour,
		BackoffMax:       4 * time.Hour,
		CircuitThreshold: 5,
		CircuitOpenFor:   time.Hour,
	}
}

// openPolicy never gates: zero backoff keeps the next attempt in the past.
func openPolicy() healing.PolicyConfig {
	return healing.PolicyConfig{
		BackoffBase:      0,
		BackoffMax:       0,
		CircuitThreshold: 100,
		CircuitOpenFor:   time.Hour,
	}
}

func timePtr(t time.Time) *time.Time { return &t }

func TestSyncAppliesSnapshot(t *testing.T) {
	due := time.Date(2026, 3, 10, 23, 59, 0, 0, time.UTC)
	start := time.Date(2026, 3, 2, 10, 15, 0, 0, time.UTC)
	end := start.Add(90 * time.Minute)

	src := &fakeSource{
		integration: model.IntegrationCanvas,
		snapshot: &source.Snapshot{
			Courses: []source.CourseRef{{ID: "101", Code: "TDT4120", Name: "Algorithms"}},
			Assignments: []source.RemoteAssignment{
				{ID: "a-1", Course: "TDT4120", Title: "Exercise 4", DueAt: &due, Priority: model.PriorityMedium},
			},
			Events: []source.RemoteEvent{
				{Title: "Lecture", Start: start, End: &end, Location: "EL5"},
			},
		},
	}
	svc, s := newTestService(t, src, nil, defaultPolicy(), nil)

	res, err := svc.Sync(context.Background())
	require.NoError(t, err)
	require.False(t, res.Skipped)
	assert.Equal(t, model.IntegrationCanvas, res.Integration)
	require.NotNil(t, res.Deadlines)
	assert.Equal(t, 1, res.Deadlines.Created)
	require.NotNil(t, res.Schedule)
	assert.Equal(t, 1, res.Schedule.Created)

	deadlines, err := s.GetDeadlines(context.Background(), store.DeadlineFilter{UserID: strPtr(testUser)})
	require.NoError(t, err)
	require.Len(t, deadlines, 1)
	assert.Equal(t, "Exercise 4", deadlines[0].Task)

	attempts, err := s.GetSyncAttempts(context.Background(), store.SyncAttemptFilter{UserID: strPtr(testUser)})
	require.NoError(t, err)
	require.Len(t, attempts, 1)
	assert.True(t, attempts[0].Success)
	assert.Empty(t, attempts[0].RootCause)
}

func TestSyncQueuesNotificationsForNewDeadlines(t *testing.T) {
	now := time.Now()
	soon := now.Add(24 * time.Hour)

	src := &fakeSource{
		integration: model.IntegrationCanvas,
		snapshot: &source.Snapshot{
			Assignments: []source.RemoteAssignment{
				{ID: "a-1", Course: "TDT4120", Title: "Exercise 4", DueAt: timePtr(soon), Priority: model.PriorityMedium},
				{ID: "a-2", Course: "TDT4120", Title: "Final exam", DueAt: timePtr(soon), Priority: model.PriorityHigh},
			},
		},
	}
	svc, s := newTestService(t, src, nil, defaultPolicy(), nil)

	_, err := svc.Sync(context.Background())
	require.NoError(t, err)

	queued, err := s.ListDueScheduledNotifications(context.Background(), now.Add(48*time.Hour))
	require.NoError(t, err)
	require.Len(t, queued, 2)

	byTitle := make(map[string]model.ScheduledNotification, len(queued))
	for _, n := range queued {
		byTitle[n.Title] = n
	}

	urgent, ok := byTitle["New deadline: Final exam"]
	require.True(t, ok)
	assert.WithinDuration(t, now, urgent.SendAt, 5*time.Second)

	batched, ok := byTitle["New deadline: Exercise 4"]
	require.True(t, ok)
	assert.WithinDuration(t, digest.NextWindow(now, 8, 16), batched.SendAt, time.Second)
	assert.Contains(t, batched.Message, "Exercise 4 is due")
}

func TestSyncSecondPassQueuesNothing(t *testing.T) {
	due := time.Date(2026, 3, 10, 23, 59, 0, 0, time.UTC)
	src := &fakeSource{
		integration: model.IntegrationCanvas,
		snapshot: &source.Snapshot{
			Assignments: []source.RemoteAssignment{
				{ID: "a-1", Course: "TDT4120", Title: "Exercise 4", DueAt: &due, Priority: model.PriorityMedium},
			},
		},
	}
	svc, s := newTestService(t, src, nil, defaultPolicy(), nil)

	_, err := svc.Sync(context.Background())
	require.NoError(t, err)
	_, err = svc.Sync(context.Background())
	require.NoError(t, err)

	queued, err := s.ListDueScheduledNotifications(context.Background(), time.Now().Add(72*time.Hour))
	require.NoError(t, err)
	assert.Len(t, queued, 1)
}

func TestSyncFailureClassifiesRootCause(t *testing.T) {
	src := &fakeSource{
		integration: model.IntegrationCanvas,
		err:         errors.New("unexpected status 401 on GET https://canvas.example.com/api/v1/courses: unauthorized"),
	}
	svc, s := newTestService(t, src, nil, defaultPolicy(), nil)

	_, err := svc.Sync(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fetching canvas snapshot")

	attempts, err := s.GetSyncAttempts(context.Background(), store.SyncAttemptFilter{UserID: strPtr(testUser)})
	require.NoError(t, err)
	require.Len(t, attempts, 1)
	assert.False(t, attempts[0].Success)
	assert.Equal(t, healing.CauseAuth, attempts[0].RootCause)
	assert.Contains(t, attempts[0].Error, "status 401")
}

func TestSyncGatedAfterFailure(t *testing.T) {
	src := &fakeSource{
		integration: model.IntegrationCanvas,
		err:         errors.New("connection refused"),
	}
	svc, s := newTestService(t, src, nil, defaultPolicy(), nil)

	_, err := svc.Sync(context.Background())
	require.Error(t, err)

	res, err := svc.Sync(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Skipped)
	assert.Equal(t, healing.SkipReasonBackoff, res.SkipReason)
	assert.Equal(t, 1, src.fetchCount())

	// Gated passes leave no trace in the health log.
	attempts, err := s.GetSyncAttempts(context.Background(), store.SyncAttemptFilter{UserID: strPtr(testUser)})
	require.NoError(t, err)
	assert.Len(t, attempts, 1)

	status := svc.AutoHealingStatus()
	assert.Equal(t, healing.StateOpenBackoff, status.State)
	assert.Equal(t, 1, status.Skips)
}

func TestSyncRecoveryPromptAtThreshold(t *testing.T) {
	src := &fakeSource{
		integration: model.IntegrationGitHub,
		err:         errors.New("unexpected status 502 on GET https://api.github.com/issues: bad gateway"),
	}
	del := &fakeDeliverer{}
	tracker := healing.NewTracker(healing.TrackerConfig{
		PromptThreshold: 2,
		PromptCooldown:  time.Hour,
	}, nil)
	svc, _ := newTestService(t, src, del, openPolicy(), tracker)

	_, err := svc.Sync(context.Background())
	require.Error(t, err)
	assert.Empty(t, del.all())

	_, err = svc.Sync(context.Background())
	require.Error(t, err)

	delivered := del.all()
	require.Len(t, delivered, 1)
	assert.Equal(t, "Sync needs attention", delivered[0].Title)
	assert.Equal(t, model.PriorityHigh, delivered[0].Priority)
	assert.Equal(t, model.NotificationSourceOrchestrator, delivered[0].Source)
	assert.Contains(t, delivered[0].Message, "GitHub")

	// The cooldown suppresses a second prompt for the same streak.
	_, err = svc.Sync(context.Background())
	require.Error(t, err)
	assert.Len(t, del.all(), 1)
}

func TestSyncSuccessResetsFailureState(t *testing.T) {
	src := &fakeSource{
		integration: model.IntegrationCanvas,
		err:         errors.New("i/o timeout"),
	}
	tracker := healing.NewTracker(healing.TrackerConfig{PromptThreshold: 5, PromptCooldown: time.Hour}, nil)
	svc, s := newTestService(t, src, nil, openPolicy(), tracker)

	_, err := svc.Sync(context.Background())
	require.Error(t, err)

	src.mu.Lock()
	src.err = nil
	src.mu.Unlock()

	res, err := svc.Sync(context.Background())
	require.NoError(t, err)
	assert.False(t, res.Skipped)

	status := svc.AutoHealingStatus()
	assert.Equal(t, healing.StateClosed, status.State)
	assert.Zero(t, status.ConsecutiveFailures)

	snap := tracker.Snapshot()
	require.Len(t, snap, 1)
	assert.Zero(t, snap[0].ConsecutiveFailures)

	attempts, err := s.GetSyncAttempts(context.Background(), store.SyncAttemptFilter{UserID: strPtr(testUser)})
	require.NoError(t, err)
	assert.Len(t, attempts, 2)
}

func TestTriggerSyncDeduplicatesConcurrentCallers(t *testing.T) {
	src := &fakeSource{
		integration: model.IntegrationCanvas,
		entered:     make(chan struct{}, 1),
		release:     make(chan struct{}),
	}
	svc, _ := newTestService(t, src, nil, defaultPolicy(), nil)

	type outcome struct {
		res *sync.SyncResult
		err error
	}
	results := make(chan outcome, 2)
	run := func() {
		res, err := svc.TriggerSync(context.Background())
		results <- outcome{res, err}
	}

	go run()
	<-src.entered
	go run()
	// Give the second trigger time to join the in-flight call.
	time.Sleep(50 * time.Millisecond)
	close(src.release)

	first := <-results
	second := <-results
	require.NoError(t, first.err)
	require.NoError(t, second.err)
	assert.Same(t, first.res, second.res)
	assert.Equal(t, 1, src.fetchCount())
}

func TestRegistryBuildsBundlesLazily(t *testing.T) {
	builds := 0
	reg := sync.NewRegistry(func(userID string) (*sync.Bundle, error) {
		builds++
		b := sync.NewBundle(healing.NewTracker(healing.TrackerConfig{PromptThreshold: 3, PromptCooldown: time.Hour}, nil))
		b.Add(sync.NewService(sync.ServiceConfig{
			UserID: userID,
			Source: &fakeSource{integration: model.IntegrationCanvas},
			Store:  testutil.NewTestStore(t),
			Policy: defaultPolicy(),
		}))
		return b, nil
	}, nil)
	defer reg.Shutdown()

	b1, err := reg.Bundle("alice")
	require.NoError(t, err)
	b2, err := reg.Bundle("alice")
	require.NoError(t, err)
	assert.Same(t, b1, b2)
	assert.Equal(t, 1, builds)

	_, err = reg.Bundle("bob")
	require.NoError(t, err)
	assert.Equal(t, 2, builds)

	reg.Remove("alice")
	b3, err := reg.Bundle("alice")
	require.NoError(t, err)
	assert.NotSame(t, b1, b3)
	assert.Equal(t, 3, builds)
}

func TestRegistryPropagatesFactoryErrors(t *testing.T) {
	reg := sync.NewRegistry(func(string) (*sync.Bundle, error) {
		return nil, errors.New("no credentials")
	}, nil)

	_, err := reg.Bundle("alice")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "building sync bundle for user alice")
}

func TestBundleServiceLookup(t *testing.T) {
	b := sync.NewBundle(healing.NewTracker(healing.TrackerConfig{PromptThreshold: 3, PromptCooldown: time.Hour}, nil))
	s := testutil.NewTestStore(t)

	for _, tag := range []model.Integration{model.IntegrationTimeEdit, model.IntegrationCanvas} {
		b.Add(sync.NewService(sync.ServiceConfig{
			UserID: testUser,
			Source: &fakeSource{integration: tag},
			Store:  s,
			Policy: defaultPolicy(),
		}))
	}

	svc, ok := b.Service(model.IntegrationCanvas)
	require.True(t, ok)
	assert.Equal(t, model.IntegrationCanvas, svc.Integration())

	_, ok = b.Service(model.IntegrationGitHub)
	assert.False(t, ok)

	services := b.Services()
	require.Len(t, services, 2)
	assert.Equal(t, model.IntegrationCanvas, services[0].Integration())
	assert.Equal(t, model.IntegrationTimeEdit, services[1].Integration())
}

func strPtr(s string) *string { return &s }
