// Package tp implements a source for the TP timetable service used by
// Norwegian universities. Timetable entries feed the schedule bridge;
// exam dates feed the deadline bridge.
package tp

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/studvik/companion/internal/model"
	"github.com/studvik/companion/internal/source"
)

// Adapter implements source.Source for TP.
type Adapter struct {
	client  *Client
	baseURL string
	courses []string
	loc     *time.Location
	now     func() time.Time
}

// NewAdapter creates a new TP source adapter for the given course
// codes (e.g., "TDT4120").
func NewAdapter(baseURL string, courses []string) *Adapter {
	return &Adapter{
		client:  NewClient(baseURL),
		baseURL: baseURL,
		courses: courses,
		loc:     tpLocation(),
		now:     time.Now,
	}
}

// Integration returns the integration tag for TP.
func (a *Adapter) Integration() model.Integration {
	return model.IntegrationTP
}

// Configured reports whether a base URL and at least one course code
// are present.
func (a *Adapter) Configured() bool {
	return a.baseURL != "" && len(a.courses) > 0
}

// ValidateConnection fetches the timetable for the first configured
// course. Returns the resolved course name on success.
func (a *Adapter) ValidateConnection(ctx context.Context) (string, error) {
	tt, err := a.client.GetCourseTimetable(ctx, a.courses[0], semesterCode(a.now()))
	if err != nil {
		return "", fmt.Errorf("validating TP connection: %w", err)
	}
	name := tt.Course.Name
	if name == "" {
		name = a.courses[0]
	}
	return name, nil
}

// Fetch retrieves the current semester's timetable and this year's exam
// dates for every configured course.
func (a *Adapter) Fetch(ctx context.Context) (*source.Snapshot, error) {
	now := a.now()
	sem := semesterCode(now)

	snap := &source.Snapshot{}
	for _, code := range a.courses {
		tt, err := a.client.GetCourseTimetable(ctx, code, sem)
		if err != nil {
			return nil, fmt.Errorf("fetching TP timetable for %s: %w", code, err)
		}

		name := tt.Course.Name
		if name == "" {
			name = code
		}
		snap.Courses = append(snap.Courses, source.CourseRef{
			ID:   code,
			Code: code,
			Name: name,
		})

		for _, entry := range tt.Data {
			if event, ok := a.entryToRemote(code, entry); ok {
				snap.Events = append(snap.Events, event)
			}
		}

		exams, err := a.client.GetCourseExams(ctx, code, now.Year())
		if err != nil {
			return nil, fmt.Errorf("fetching TP exams for %s: %w", code, err)
		}

		for _, exam := range exams.Data {
			if assignment, ok := a.examToRemote(code, exam); ok {
				snap.Assignments = append(snap.Assignments, assignment)
			}
		}
	}

	return snap, nil
}

// entryToRemote converts a timetable entry to a schedule event. The
// course code is prefixed so simultaneous activities in different
// courses stay distinguishable.
func (a *Adapter) entryToRemote(code string, entry TimetableEntry) (source.RemoteEvent, bool) {
	title := strings.TrimSpace(entry.Title)
	if title == "" {
		title = strings.TrimSpace(entry.TeachingMethodName)
	}
	if title == "" {
		return source.RemoteEvent{}, false
	}

	start, err := time.ParseInLocation("2006-01-02T15:04:05", entry.DtStart, a.loc)
	if err != nil {
		return source.RemoteEvent{}, false
	}

	event := source.RemoteEvent{
		Title:    code + " " + title,
		Start:    start,
		Location: roomNames(entry.Rooms),
	}

	if end, err := time.ParseInLocation("2006-01-02T15:04:05", entry.DtEnd, a.loc); err == nil {
		event.End = &end
	}

	return event, true
}

// examToRemote converts an exam date to a deadline. Exams are always
// high priority.
func (a *Adapter) examToRemote(code string, exam Exam) (source.RemoteAssignment, bool) {
	if exam.Date == "" {
		return source.RemoteAssignment{}, false
	}

	day, err := time.ParseInLocation("2006-01-02", exam.Date, a.loc)
	if err != nil {
		return source.RemoteAssignment{}, false
	}

	// Exams without a published start time default to 09:00.
	due := day.Add(9 * time.Hour)
	if clock, err := time.ParseInLocation("15:04", exam.Time, a.loc); err == nil {
		due = day.Add(time.Duration(clock.Hour())*time.Hour +
			time.Duration(clock.Minute())*time.Minute)
	}

	return source.RemoteAssignment{
		ID:       fmt.Sprintf("%s-exam-%s", code, exam.Date),
		Course:   code,
		Title:    "Exam " + code,
		DueAt:    &due,
		Priority: model.PriorityHigh,
	}, true
}

func roomNames(rooms []Room) string {
	names := make([]string, 0, len(rooms))
	for _, room := range rooms {
		if room.Name != "" {
			names = append(names, room.Name)
		}
	}
	return strings.Join(names, ", ")
}

// semesterCode derives TP's semester identifier from a date: two-digit
// year plus "v" for spring (January through June) or "h" for autumn.
func semesterCode(t time.Time) string {
	suffix := "h"
	if t.Month() <= time.June {
		suffix = "v"
	}
	return fmt.Sprintf("%02d%s", t.Year()%100, suffix)
}

// tpLocation resolves the zone TP timestamps are expressed in. Falls
// back to the system zone when tzdata is unavailable.
func tpLocation() *time.Location {
	loc, err := time.LoadLocation("Europe/Oslo")
	if err != nil {
		return time.Local
	}
	return loc
}
