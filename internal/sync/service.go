// Package sync owns the reconciliation loop of each integration:
// periodic fetching, bridging into the store, health logging, and
// failure recovery.
package sync

import (
	"context"
	"fmt"
	gosync "sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/studvik/companion/internal/bridge"
	"github.com/studvik/companion/internal/digest"
	"github.com/studvik/companion/internal/healing"
	"github.com/studvik/companion/internal/model"
	"github.com/studvik/companion/internal/source"
	"github.com/studvik/companion/internal/store"
)

// fetchTimeout is the maximum time allowed for a single scheduled sync
// pass, including paginated remote fetches.
const fetchTimeout = 2 * time.Minute

// SyncResult is the outcome of one sync pass.
type SyncResult struct {
	Integration model.Integration      `json:"integration"`
	Skipped     bool                   `json:"skipped"`
	SkipReason  string                 `json:"skip_reason,omitempty"`
	Deadlines   *bridge.Result         `json:"deadlines,omitempty"`
	Schedule    *bridge.ScheduleResult `json:"schedule,omitempty"`
	DurationMs  int64                  `json:"duration_ms"`
}

// ServiceConfig wires one integration's sync service.
type ServiceConfig struct {
	UserID  string
	Source  source.Source
	Store   store.Store
	Log     *zap.Logger
	Policy  healing.PolicyConfig
	Tracker *healing.Tracker

	// Deliverer receives recovery prompts for immediate delivery.
	Deliverer digest.Deliverer

	// MorningHour and EveningHour position the digest windows that
	// new-deadline notifications are scheduled into.
	MorningHour int
	EveningHour int

	// FallbackEventMinutes is the assumed duration for timetable
	// entries without an end time.
	FallbackEventMinutes int
}

// Service runs the sync loop for one integration of one user. Scheduled
// ticks and manual triggers funnel through the same single-flight group,
// so only one sync per integration is ever in flight.
type Service struct {
	cfg      ServiceConfig
	src      source.Source
	store    store.Store
	log      *zap.Logger
	policy   *healing.Policy
	tracker  *healing.Tracker
	deadline *bridge.DeadlineBridge
	schedule *bridge.ScheduleBridge

	group singleflight.Group

	mu         gosync.Mutex
	running    bool
	interval   time.Duration
	cancel     context.CancelFunc
	retryTimer *time.Timer
}

// NewService creates a sync service for one integration.
func NewService(cfg ServiceConfig) *Service {
	if cfg.Log == nil {
		cfg.Log = zap.NewNop()
	}
	integration := cfg.Source.Integration()
	return &Service{
		cfg:      cfg,
		src:      cfg.Source,
		store:    cfg.Store,
		log:      cfg.Log.With(zap.String("integration", string(integration))),
		policy:   healing.NewPolicy(cfg.Policy, cfg.Log),
		tracker:  cfg.Tracker,
		deadline: bridge.NewDeadlineBridge(cfg.Store, cfg.Log, cfg.UserID, integration),
		schedule: bridge.NewScheduleBridge(cfg.Store, cfg.Log, cfg.UserID, integration, cfg.FallbackEventMinutes),
	}
}

// Integration returns the integration this service syncs.
func (s *Service) Integration() model.Integration {
	return s.src.Integration()
}

// AutoHealingStatus returns a snapshot of the service's healing gate.
func (s *Service) AutoHealingStatus() healing.Status {
	return s.policy.Status()
}

// Start launches the periodic sync loop. The first pass runs
// immediately; subsequent passes follow the interval. Starting a
// running service is a no-op.
func (s *Service) Start(interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.running = true
	s.interval = interval
	s.cancel = cancel
	s.mu.Unlock()

	go s.loop(ctx, interval)
}

// Stop halts the loop and any pending one-shot retry. An in-flight sync
// is not aborted; its result is still applied on completion.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}
	s.running = false
	s.cancel()
	s.cancel = nil
	if s.retryTimer != nil {
		s.retryTimer.Stop()
		s.retryTimer = nil
	}
}

func (s *Service) loop(ctx context.Context, interval time.Duration) {
	s.scheduledSync()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.scheduledSync()
		}
	}
}

func (s *Service) scheduledSync() {
	ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
	defer cancel()

	if _, err := s.TriggerSync(ctx); err != nil {
		s.log.Warn("scheduled sync failed", zap.Error(err))
	}
}

// TriggerSync runs a sync now, deduplicating concurrent callers: a
// trigger that arrives while a sync is in flight shares its outcome
// instead of racing a duplicate fetch against the remote API.
func (s *Service) TriggerSync(ctx context.Context) (*SyncResult, error) {
	v, err, _ := s.group.Do("sync", func() (interface{}, error) {
		return s.Sync(ctx)
	})
	if err != nil {
		return nil, err
	}
	return v.(*SyncResult), nil
}

// Sync performs one gated sync pass: consult the healing policy, fetch
// the remote snapshot, run both bridges, and record the outcome in the
// health log. Gated passes return a result with Skipped set and touch
// neither the store nor the remote API.
func (s *Service) Sync(ctx context.Context) (*SyncResult, error) {
	integration := s.src.Integration()

	if allowed, reason := s.policy.CanAttempt(); !allowed {
		s.policy.RecordSkip(reason)
		s.log.Debug("sync gated", zap.String("reason", reason))
		return &SyncResult{
			Integration: integration,
			Skipped:     true,
			SkipReason:  reason,
		}, nil
	}

	start := time.Now()

	snap, err := s.src.Fetch(ctx)
	if err != nil {
		s.recordFailure(ctx, start, err)
		return nil, fmt.Errorf("fetching %s snapshot: %w", integration, err)
	}

	deadlines, err := s.deadline.SyncAssignments(ctx, snap.Courses, snap.Assignments)
	if err != nil {
		s.recordFailure(ctx, start, err)
		return nil, err
	}

	schedule, err := s.schedule.SyncEvents(ctx, snap.Events)
	if err != nil {
		s.recordFailure(ctx, start, err)
		return nil, err
	}

	s.recordSuccess(ctx, start)
	s.queueDeadlineNotifications(ctx, deadlines.CreatedDeadlines)

	return &SyncResult{
		Integration: integration,
		Deadlines:   deadlines,
		Schedule:    schedule,
		DurationMs:  time.Since(start).Milliseconds(),
	}, nil
}

func (s *Service) recordSuccess(ctx context.Context, start time.Time) {
	s.policy.RecordSuccess()
	if s.tracker != nil {
		s.tracker.RecordSuccess(s.src.Integration())
	}

	attempt := &model.SyncAttempt{
		UserID:      s.cfg.UserID,
		Integration: s.src.Integration(),
		Success:     true,
		DurationMs:  time.Since(start).Milliseconds(),
		AttemptedAt: start,
	}
	if err := s.store.RecordSyncAttempt(ctx, attempt); err != nil {
		s.log.Error("recording sync attempt", zap.Error(err))
	}
}

func (s *Service) recordFailure(ctx context.Context, start time.Time, syncErr error) {
	integration := s.src.Integration()

	cause := healing.ClassifyRootCause(syncErr.Error())
	var prompt *healing.Prompt
	if s.tracker != nil {
		cause, prompt = s.tracker.RecordFailure(integration, syncErr.Error())
	}
	s.policy.RecordFailure(syncErr.Error())

	attempt := &model.SyncAttempt{
		UserID:      s.cfg.UserID,
		Integration: integration,
		Success:     false,
		DurationMs:  time.Since(start).Milliseconds(),
		Error:       syncErr.Error(),
		RootCause:   cause,
		AttemptedAt: start,
	}
	if err := s.store.RecordSyncAttempt(ctx, attempt); err != nil {
		s.log.Error("recording sync attempt", zap.Error(err))
	}

	if prompt != nil {
		s.deliverPrompt(ctx, prompt)
	}

	s.armRetry()
}

// deliverPrompt pushes a recovery prompt straight to the delivery
// channels. Prompts never enter the digest queue: batching would reduce
// them to a count and lose the guidance text.
func (s *Service) deliverPrompt(ctx context.Context, prompt *healing.Prompt) {
	if s.cfg.Deliverer == nil {
		return
	}

	n := &model.Notification{
		UserID:   s.cfg.UserID,
		Title:    "Sync needs attention",
		Message:  prompt.Message,
		Priority: prompt.Severity,
		Source:   model.NotificationSourceOrchestrator,
		URL:      "/settings/integrations",
	}
	if err := s.cfg.Deliverer.Deliver(ctx, n); err != nil {
		s.log.Error("delivering recovery prompt", zap.Error(err))
	}
}

// queueDeadlineNotifications schedules one notification per newly
// created deadline. Digest candidates wait for the next window; high
// and critical deadlines go out on the next dispatcher tick.
func (s *Service) queueDeadlineNotifications(ctx context.Context, created []model.Deadline) {
	if len(created) == 0 {
		return
	}

	now := time.Now()
	for _, d := range created {
		n := &model.ScheduledNotification{
			UserID:   d.UserID,
			Title:    "New deadline: " + d.Task,
			Message:  fmt.Sprintf("%s: %s is due %s", d.Course, d.Task, d.DueDate.Format("Mon 2 Jan 15:04")),
			Priority: d.Priority,
			Source:   string(s.src.Integration()),
			URL:      d.URL,
			SendAt:   digest.ScheduleAt(d.Priority, now, s.cfg.MorningHour, s.cfg.EveningHour),
		}
		if err := s.store.CreateScheduledNotification(ctx, n); err != nil {
			s.log.Error("queueing deadline notification", zap.Error(err))
		}
	}

	s.log.Info("new deadlines found", zap.Int("count", len(created)))
}

// armRetry schedules a one-shot sync at the policy's next attempt time
// when the backoff is shorter than the poll interval, so recovery does
// not have to wait for the next periodic tick. A pending timer is never
// re-armed on top of itself.
func (s *Service) armRetry() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running || s.retryTimer != nil {
		return
	}

	status := s.policy.Status()
	if status.NextAttemptAt == nil {
		return
	}
	wait := time.Until(*status.NextAttemptAt)
	if wait <= 0 || wait >= s.interval {
		return
	}

	s.retryTimer = time.AfterFunc(wait, func() {
		s.mu.Lock()
		s.retryTimer = nil
		s.mu.Unlock()
		s.scheduledSync()
	})
}
