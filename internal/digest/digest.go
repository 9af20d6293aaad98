// Package digest batches non-urgent notifications into twice-daily
// summaries while letting urgent ones through immediately.
package digest

import (
	"fmt"
	"strings"
	"time"

	"github.com/studvik/companion/internal/model"
)

// DigestURL is the in-app destination digests link to.
const DigestURL = "/notifications"

// IsDigestCandidate reports whether a notification of the given priority
// is held for the next digest window. High and critical priorities bypass
// batching entirely.
func IsDigestCandidate(p model.Priority) bool {
	return p == model.PriorityLow || p == model.PriorityMedium
}

// NextWindow returns the next digest delivery time strictly after now:
// today's morning window, today's evening window, or tomorrow morning.
func NextWindow(now time.Time, morningHour, eveningHour int) time.Time {
	y, m, d := now.Date()
	morning := time.Date(y, m, d, morningHour, 0, 0, 0, now.Location())
	if now.Before(morning) {
		return morning
	}
	evening := time.Date(y, m, d, eveningHour, 0, 0, 0, now.Location())
	if now.Before(evening) {
		return evening
	}
	return morning.AddDate(0, 0, 1)
}

// ScheduleAt returns when a notification of the given priority should be
// delivered: digest candidates wait for the next window, everything else
// goes out now.
func ScheduleAt(p model.Priority, now time.Time, morningHour, eveningHour int) time.Time {
	if IsDigestCandidate(p) {
		return NextWindow(now, morningHour, eveningHour)
	}
	return now
}

// BuildDigest collapses the due digest candidates into a single summary
// notification. Returns nil when there is nothing to summarize.
func BuildDigest(due []model.ScheduledNotification, now time.Time, morningHour, eveningHour int) *model.Notification {
	if len(due) == 0 {
		return nil
	}

	var sources []string
	seen := make(map[string]bool)
	for _, n := range due {
		if n.Source == "" || seen[n.Source] {
			continue
		}
		seen[n.Source] = true
		sources = append(sources, n.Source)
	}

	unit := "updates"
	if len(due) == 1 {
		unit = "update"
	}
	msg := fmt.Sprintf("%d non-urgent %s", len(due), unit)
	if len(sources) > 0 {
		msg += " from " + strings.Join(sources, ", ")
	}

	return &model.Notification{
		UserID:   due[0].UserID,
		Title:    windowTitle(now, morningHour, eveningHour),
		Message:  msg,
		Priority: model.PriorityMedium,
		Source:   model.NotificationSourceOrchestrator,
		URL:      DigestURL,
		Actions: []model.NotificationAction{
			{Label: "view", URL: DigestURL},
		},
		CreatedAt: now,
	}
}

// windowTitle names the digest after whichever window is closer to now.
// Equidistant times resolve to the morning title.
func windowTitle(now time.Time, morningHour, eveningHour int) string {
	y, m, d := now.Date()
	morning := time.Date(y, m, d, morningHour, 0, 0, 0, now.Location())
	evening := time.Date(y, m, d, eveningHour, 0, 0, 0, now.Location())

	dMorning := now.Sub(morning).Abs()
	dEvening := now.Sub(evening).Abs()
	if dMorning <= dEvening {
		return "Morning digest"
	}
	return "Evening digest"
}
