package digest

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/studvik/companion/internal/model"
)

// Queue is the slice of the store the dispatcher drains.
type Queue interface {
	ListDueScheduledNotifications(ctx context.Context, due time.Time) ([]model.ScheduledNotification, error)
	DeleteScheduledNotifications(ctx context.Context, ids []string) error
}

// Deliverer hands a finished notification to the delivery channels.
type Deliverer interface {
	Deliver(ctx context.Context, n *model.Notification) error
}

// Dispatcher periodically drains the scheduled-notification queue:
// urgent entries are delivered one by one, digest candidates are folded
// into a single summary per user.
type Dispatcher struct {
	queue       Queue
	deliverer   Deliverer
	log         *zap.Logger
	morningHour int
	eveningHour int
	now         func() time.Time
}

// NewDispatcher wires a dispatcher over the given queue and delivery sink.
func NewDispatcher(queue Queue, deliverer Deliverer, morningHour, eveningHour int, log *zap.Logger) *Dispatcher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Dispatcher{
		queue:       queue,
		deliverer:   deliverer,
		log:         log,
		morningHour: morningHour,
		eveningHour: eveningHour,
		now:         time.Now,
	}
}

// Run ticks the dispatcher at the given interval until the context ends.
func (d *Dispatcher) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := d.Tick(ctx); err != nil {
				d.log.Error("digest tick failed", zap.Error(err))
			}
		}
	}
}

// Tick processes everything currently due. Entries that fail to deliver
// stay queued and are retried on the next tick.
func (d *Dispatcher) Tick(ctx context.Context) error {
	now := d.now()
	due, err := d.queue.ListDueScheduledNotifications(ctx, now)
	if err != nil {
		return fmt.Errorf("listing due notifications: %w", err)
	}
	if len(due) == 0 {
		return nil
	}

	byUser := make(map[string][]model.ScheduledNotification)
	for _, n := range due {
		byUser[n.UserID] = append(byUser[n.UserID], n)
	}
	users := make([]string, 0, len(byUser))
	for u := range byUser {
		users = append(users, u)
	}
	sort.Strings(users)

	var processed []string
	for _, user := range users {
		processed = append(processed, d.dispatchUser(ctx, byUser[user], now)...)
	}

	if len(processed) > 0 {
		if err := d.queue.DeleteScheduledNotifications(ctx, processed); err != nil {
			return fmt.Errorf("removing processed notifications: %w", err)
		}
	}
	return nil
}

// dispatchUser delivers one user's due entries and returns the ids that
// were handled.
func (d *Dispatcher) dispatchUser(ctx context.Context, due []model.ScheduledNotification, now time.Time) []string {
	var processed []string
	var candidates []model.ScheduledNotification

	for _, sn := range due {
		if IsDigestCandidate(sn.Priority) {
			candidates = append(candidates, sn)
			continue
		}
		n := &model.Notification{
			UserID:    sn.UserID,
			Title:     sn.Title,
			Message:   sn.Message,
			Priority:  sn.Priority,
			Source:    sn.Source,
			URL:       sn.URL,
			Actions:   sn.Actions,
			CreatedAt: now,
		}
		if err := d.deliverer.Deliver(ctx, n); err != nil {
			d.log.Error("delivering notification",
				zap.String("id", sn.ID), zap.Error(err))
			continue
		}
		processed = append(processed, sn.ID)
	}

	if summary := BuildDigest(candidates, now, d.morningHour, d.eveningHour); summary != nil {
		if err := d.deliverer.Deliver(ctx, summary); err != nil {
			d.log.Error("delivering digest",
				zap.String("user_id", summary.UserID), zap.Error(err))
		} else {
			for _, sn := range candidates {
				processed = append(processed, sn.ID)
			}
			d.log.Info("digest delivered",
				zap.String("user_id", summary.UserID),
				zap.Int("batched", len(candidates)))
		}
	}

	return processed
}
