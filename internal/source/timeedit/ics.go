package timeedit

import (
	"fmt"
	"io"
	"strings"
	"time"

	ics "github.com/arran4/golang-ical"

	"github.com/studvik/companion/internal/source"
)

// parseFeed parses an iCalendar document into remote events. Entries
// without a summary or a parseable start time are dropped.
func parseFeed(r io.Reader) ([]source.RemoteEvent, error) {
	cal, err := ics.ParseCalendar(r)
	if err != nil {
		return nil, fmt.Errorf("parsing iCal feed: %w", err)
	}

	var events []source.RemoteEvent
	for _, evt := range cal.Events() {
		remote, ok := eventFromVEvent(evt)
		if !ok {
			continue
		}
		events = append(events, remote)
	}
	return events, nil
}

func eventFromVEvent(evt *ics.VEvent) (source.RemoteEvent, bool) {
	summary := evt.GetProperty(ics.ComponentPropertySummary)
	if summary == nil || strings.TrimSpace(summary.Value) == "" {
		return source.RemoteEvent{}, false
	}

	start, err := parseICSTime(evt, ics.ComponentPropertyDtStart)
	if err != nil {
		return source.RemoteEvent{}, false
	}

	remote := source.RemoteEvent{
		Title: strings.TrimSpace(summary.Value),
		Start: start,
	}

	// DTEND may be absent; the schedule bridge falls back to a default
	// duration in that case.
	if end, err := parseICSTime(evt, ics.ComponentPropertyDtEnd); err == nil {
		remote.End = &end
	}

	if loc := evt.GetProperty(ics.ComponentPropertyLocation); loc != nil {
		remote.Location = strings.TrimSpace(loc.Value)
	}

	return remote, true
}

// parseICSTime parses a date-time property. TimeEdit feeds carry UTC
// timestamps (20060102T150405Z); floating times honor a TZID parameter
// when one is set.
func parseICSTime(evt *ics.VEvent, name ics.ComponentProperty) (time.Time, error) {
	prop := evt.GetProperty(name)
	if prop == nil {
		return time.Time{}, fmt.Errorf("missing property %s", name)
	}

	tzid := ""
	for key, values := range prop.ICalParameters {
		if strings.ToUpper(key) == "TZID" && len(values) > 0 {
			tzid = values[0]
		}
	}

	layouts := []string{
		"20060102T150405Z",
		"20060102T150405",
		"20060102",
	}

	for _, layout := range layouts {
		t, err := time.Parse(layout, prop.Value)
		if err != nil {
			continue
		}
		if strings.HasSuffix(layout, "Z") {
			return t, nil
		}
		if tzid != "" {
			if loc, locErr := time.LoadLocation(tzid); locErr == nil {
				return time.Date(t.Year(), t.Month(), t.Day(),
					t.Hour(), t.Minute(), t.Second(), 0, loc), nil
			}
		}
		return t, nil
	}

	return time.Time{}, fmt.Errorf("unparseable timestamp %q", prop.Value)
}
