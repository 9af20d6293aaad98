// Package bridge reconciles remote integration snapshots against locally
// stored deadlines and schedule events without clobbering user edits.
package bridge

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/studvik/companion/internal/diff"
	"github.com/studvik/companion/internal/model"
	"github.com/studvik/companion/internal/source"
	"github.com/studvik/companion/internal/store"
)

// DeadlineBridge reconciles remote assignments against the deadlines one
// integration owns for one user.
type DeadlineBridge struct {
	store       store.Store
	log         *zap.Logger
	userID      string
	integration model.Integration
}

// NewDeadlineBridge creates a deadline bridge for one user and one
// integration.
func NewDeadlineBridge(s store.Store, log *zap.Logger, userID string, integration model.Integration) *DeadlineBridge {
	return &DeadlineBridge{
		store:       s,
		log:         log,
		userID:      userID,
		integration: integration,
	}
}

// Result reports what one reconciliation pass changed. Skipped counts
// remote items dropped for missing an id or due date.
type Result struct {
	Created int `json:"created"`
	Updated int `json:"updated"`
	Removed int `json:"removed"`
	Skipped int `json:"skipped"`

	// CreatedDeadlines are the newly stored deadlines, returned so
	// callers can fan them out to notification delivery without
	// re-querying the store.
	CreatedDeadlines []model.Deadline `json:"created_deadlines,omitempty"`
}

// SyncAssignments diffs a remote assignment snapshot against the
// deadlines this integration owns and applies the changes in one store
// transaction. Manual deadlines and deadlines owned by other
// integrations are never touched.
func (b *DeadlineBridge) SyncAssignments(ctx context.Context, courses []source.CourseRef, assignments []source.RemoteAssignment) (*Result, error) {
	src := string(b.integration)
	existing, err := b.store.GetDeadlines(ctx, store.DeadlineFilter{
		UserID: &b.userID,
		Source: &src,
	})
	if err != nil {
		return nil, fmt.Errorf("loading %s deadlines: %w", b.integration, err)
	}

	labels := courseLabels(courses)

	res := diff.Compute(existing, assignments, diff.Options[model.Deadline, source.RemoteAssignment]{
		Owned: func(d model.Deadline) bool {
			return d.Imported() && d.Source == b.integration
		},
		ExistingKey: func(d model.Deadline) string {
			return d.SourceItemID
		},
		IncomingKey: func(r source.RemoteAssignment) (string, bool) {
			if r.ID == "" || r.DueAt == nil {
				return "", false
			}
			return r.ID, true
		},
		Equal: func(d model.Deadline, r source.RemoteAssignment) bool {
			return upToDate(d, r, labels)
		},
	})

	creates := make([]model.Deadline, 0, len(res.ToCreate))
	for _, r := range res.ToCreate {
		creates = append(creates, b.newDeadline(r, labels))
	}

	updates := make([]model.Deadline, 0, len(res.ToUpdate))
	for _, u := range res.ToUpdate {
		updates = append(updates, applyRemote(u.Existing, u.Incoming, labels))
	}

	deleteIDs := make([]string, 0, len(res.ToDelete))
	for _, d := range res.ToDelete {
		deleteIDs = append(deleteIDs, d.ID)
	}

	if err := b.store.ApplyDeadlineChanges(ctx, creates, updates, deleteIDs); err != nil {
		return nil, fmt.Errorf("applying %s deadline changes: %w", b.integration, err)
	}

	b.log.Debug("deadlines reconciled",
		zap.String("integration", src),
		zap.Int("created", len(creates)),
		zap.Int("updated", len(updates)),
		zap.Int("removed", len(deleteIDs)),
		zap.Int("skipped", res.Skipped),
	)

	return &Result{
		Created:          len(creates),
		Updated:          len(updates),
		Removed:          len(deleteIDs),
		Skipped:          res.Skipped,
		CreatedDeadlines: creates,
	}, nil
}

// newDeadline builds the stored form of a remote assignment seen for the
// first time. DueDate and SourceDueDate start out identical; they only
// diverge if the user later moves the due date.
func (b *DeadlineBridge) newDeadline(r source.RemoteAssignment, labels map[string]string) model.Deadline {
	due := *r.DueAt
	return model.Deadline{
		ID:            uuid.New().String(),
		UserID:        b.userID,
		Course:        resolveCourse(r, labels),
		Task:          r.Title,
		DueDate:       due,
		SourceDueDate: &due,
		Priority:      r.Priority,
		Source:        b.integration,
		SourceItemID:  r.ID,
		URL:           r.URL,
	}
}

// upToDate reports whether the stored deadline already reflects the
// remote item. The due comparison is against SourceDueDate, not DueDate:
// a user-adjusted DueDate must not cause spurious updates on every sync.
func upToDate(d model.Deadline, r source.RemoteAssignment, labels map[string]string) bool {
	if d.SourceDueDate == nil || !d.SourceDueDate.Equal(*r.DueAt) {
		return false
	}
	return d.Course == resolveCourse(r, labels) &&
		d.Task == r.Title &&
		d.Priority == r.Priority &&
		d.URL == r.URL
}

// applyRemote folds the remote item into the stored deadline.
// SourceDueDate always tracks the remote value; DueDate follows it only
// while the user has not moved it away.
func applyRemote(d model.Deadline, r source.RemoteAssignment, labels map[string]string) model.Deadline {
	remoteDue := *r.DueAt

	dueChanged := d.SourceDueDate == nil || !d.SourceDueDate.Equal(remoteDue)
	if dueChanged && !d.UserAdjustedDue() {
		d.DueDate = remoteDue
	}
	d.SourceDueDate = &remoteDue

	d.Course = resolveCourse(r, labels)
	d.Task = r.Title
	d.Priority = r.Priority
	d.URL = r.URL
	return d
}

// courseLabels indexes display labels by remote course id, for
// assignments that arrive carrying an unresolved course reference.
func courseLabels(courses []source.CourseRef) map[string]string {
	labels := make(map[string]string, len(courses))
	for _, c := range courses {
		label := c.Code
		if label == "" {
			label = c.Name
		}
		if c.ID != "" && label != "" {
			labels[c.ID] = label
		}
	}
	return labels
}

func resolveCourse(r source.RemoteAssignment, labels map[string]string) string {
	if label, ok := labels[r.Course]; ok {
		return label
	}
	return r.Course
}
