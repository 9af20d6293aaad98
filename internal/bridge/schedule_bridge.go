package bridge

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/studvik/companion/internal/diff"
	"github.com/studvik/companion/internal/model"
	"github.com/studvik/companion/internal/source"
	"github.com/studvik/companion/internal/store"
)

// DefaultFallbackMinutes is the event duration assumed when a feed omits
// the end time.
const DefaultFallbackMinutes = 60

// ImportSentinel returns the recurrence-parent marker that tags events
// imported from the given integration (e.g., "timeedit-import"). Only
// events carrying the marker are eligible for that integration's
// reconciliation pass.
func ImportSentinel(integration model.Integration) string {
	return string(integration) + "-import"
}

// ScheduleBridge reconciles a remote timetable against the schedule
// events one integration imported for one user.
type ScheduleBridge struct {
	store           store.Store
	log             *zap.Logger
	userID          string
	integration     model.Integration
	sentinel        string
	fallbackMinutes int
}

// NewScheduleBridge creates a schedule bridge for one user and one
// integration. fallbackMinutes is the assumed duration for events whose
// feed omits an end time; values <= 0 select DefaultFallbackMinutes.
func NewScheduleBridge(s store.Store, log *zap.Logger, userID string, integration model.Integration, fallbackMinutes int) *ScheduleBridge {
	if fallbackMinutes <= 0 {
		fallbackMinutes = DefaultFallbackMinutes
	}
	return &ScheduleBridge{
		store:           s,
		log:             log,
		userID:          userID,
		integration:     integration,
		sentinel:        ImportSentinel(integration),
		fallbackMinutes: fallbackMinutes,
	}
}

// ScheduleResult reports what one reconciliation pass changed.
type ScheduleResult struct {
	Created int `json:"created"`
	Updated int `json:"updated"`
	Removed int `json:"removed"`
	Skipped int `json:"skipped"`
}

// SyncEvents converts the remote timetable snapshot and diffs it against
// the events this integration previously imported, applying the changes
// in one store transaction. Events the user created carry no import
// sentinel and are never touched.
//
// Identity is (sentinel, normalized title, start time) since calendar
// feeds rarely carry stable per-occurrence ids. A remote title or
// start-time change therefore shows up as a delete plus a create.
func (b *ScheduleBridge) SyncEvents(ctx context.Context, events []source.RemoteEvent) (*ScheduleResult, error) {
	existing, err := b.store.GetScheduleEvents(ctx, store.ScheduleFilter{
		UserID:             &b.userID,
		RecurrenceParentID: &b.sentinel,
	})
	if err != nil {
		return nil, fmt.Errorf("loading %s schedule events: %w", b.integration, err)
	}

	incoming := make([]model.ScheduleEvent, 0, len(events))
	for _, r := range events {
		incoming = append(incoming, b.Convert(r))
	}

	res := diff.Compute(existing, incoming, diff.Options[model.ScheduleEvent, model.ScheduleEvent]{
		Owned: func(e model.ScheduleEvent) bool {
			return e.RecurrenceParentID == b.sentinel
		},
		ExistingKey: b.eventKey,
		IncomingKey: func(e model.ScheduleEvent) (string, bool) {
			if e.Title == "" {
				return "", false
			}
			return b.eventKey(e), true
		},
		Equal: func(cur, in model.ScheduleEvent) bool {
			return cur.DurationMinutes == in.DurationMinutes &&
				cur.Workload == in.Workload &&
				cur.Location == in.Location
		},
	})

	creates := res.ToCreate
	for i := range creates {
		creates[i].ID = uuid.New().String()
	}

	updates := make([]model.ScheduleEvent, 0, len(res.ToUpdate))
	for _, u := range res.ToUpdate {
		event := u.Existing
		event.DurationMinutes = u.Incoming.DurationMinutes
		event.Workload = u.Incoming.Workload
		event.Location = u.Incoming.Location
		updates = append(updates, event)
	}

	deleteIDs := make([]string, 0, len(res.ToDelete))
	for _, e := range res.ToDelete {
		deleteIDs = append(deleteIDs, e.ID)
	}

	if err := b.store.UpsertScheduleEvents(ctx, creates, updates, deleteIDs); err != nil {
		return nil, fmt.Errorf("applying %s schedule changes: %w", b.integration, err)
	}

	b.log.Debug("schedule reconciled",
		zap.String("integration", string(b.integration)),
		zap.Int("created", len(creates)),
		zap.Int("updated", len(updates)),
		zap.Int("removed", len(deleteIDs)),
		zap.Int("skipped", res.Skipped),
	)

	return &ScheduleResult{
		Created: len(creates),
		Updated: len(updates),
		Removed: len(deleteIDs),
		Skipped: res.Skipped,
	}, nil
}

// Convert maps a remote event to its stored form: workload inferred from
// the title, duration computed from the end time when present, and the
// import sentinel applied.
func (b *ScheduleBridge) Convert(r source.RemoteEvent) model.ScheduleEvent {
	return model.ScheduleEvent{
		UserID:             b.userID,
		Title:              r.Title,
		StartTime:          r.Start,
		DurationMinutes:    b.durationMinutes(r),
		Workload:           InferWorkload(r.Title),
		Location:           r.Location,
		RecurrenceParentID: b.sentinel,
	}
}

func (b *ScheduleBridge) durationMinutes(r source.RemoteEvent) int {
	if r.End == nil {
		return b.fallbackMinutes
	}
	minutes := int(r.End.Sub(r.Start).Minutes())
	if minutes < model.MinEventDurationMinutes {
		return model.MinEventDurationMinutes
	}
	return minutes
}

func (b *ScheduleBridge) eventKey(e model.ScheduleEvent) string {
	return fmt.Sprintf("%s|%s|%d", b.sentinel, normalizeTitle(e.Title), e.StartTime.Unix())
}

// normalizeTitle lowercases and collapses whitespace so cosmetic feed
// changes do not churn the identity key.
func normalizeTitle(title string) string {
	return strings.ToLower(strings.Join(strings.Fields(title), " "))
}

// workloadKeywords maps title keyword families to effort classes.
// Families are checked in order; the first hit wins. Norwegian terms
// cover TP and TimeEdit feeds.
var workloadKeywords = []struct {
	workload model.Workload
	terms    []string
}{
	{model.WorkloadHigh, []string{
		"exam", "eksamen", "final", "midterm", "vurdering", "prøve",
	}},
	{model.WorkloadMedium, []string{
		"lecture", "forelesning", "lab", "laboratorie", "seminar",
		"øving", "exercise",
	}},
	{model.WorkloadLow, []string{
		"guidance", "veiledning", "office hours", "drop-in", "q&a",
	}},
}

// InferWorkload estimates the effort class of an event from its title.
// Unrecognized titles default to medium.
func InferWorkload(title string) model.Workload {
	lowered := strings.ToLower(title)
	for _, family := range workloadKeywords {
		for _, term := range family.terms {
			if strings.Contains(lowered, term) {
				return family.workload
			}
		}
	}
	return model.WorkloadMedium
}
