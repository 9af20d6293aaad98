// Package timeedit implements a schedule source backed by a TimeEdit
// iCal subscription feed. TimeEdit publishes personal timetables as
// standard iCalendar (RFC 5545) documents behind a per-user feed URL.
package timeedit

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/studvik/companion/internal/model"
	"github.com/studvik/companion/internal/source"
)

// maxFeedSize caps the feed body so a misconfigured URL cannot make us
// buffer arbitrary amounts of data.
const maxFeedSize = 5 << 20

// Adapter implements source.Source for TimeEdit calendar feeds.
type Adapter struct {
	feedURL    string
	httpClient *http.Client
}

// NewAdapter creates a TimeEdit adapter for the given feed URL.
// webcal:// URLs are accepted and fetched over https.
func NewAdapter(feedURL string) *Adapter {
	return &Adapter{
		feedURL: normalizeFeedURL(feedURL),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Integration returns the integration tag for TimeEdit.
func (a *Adapter) Integration() model.Integration {
	return model.IntegrationTimeEdit
}

// Configured reports whether a feed URL is present.
func (a *Adapter) Configured() bool {
	return a.feedURL != ""
}

// ValidateConnection fetches and parses the feed once. Returns a short
// status message with the event count on success.
func (a *Adapter) ValidateConnection(ctx context.Context) (string, error) {
	events, err := a.fetchEvents(ctx)
	if err != nil {
		return "", fmt.Errorf("validating TimeEdit feed: %w", err)
	}
	return fmt.Sprintf("feed reachable, %d events", len(events)), nil
}

// Fetch retrieves the feed and converts its entries to schedule events.
func (a *Adapter) Fetch(ctx context.Context) (*source.Snapshot, error) {
	events, err := a.fetchEvents(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetching TimeEdit feed: %w", err)
	}
	return &source.Snapshot{Events: events}, nil
}

func (a *Adapter) fetchEvents(ctx context.Context) ([]source.RemoteEvent, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.feedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "text/calendar")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing feed request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d on GET %s", resp.StatusCode, a.feedURL)
	}

	events, err := parseFeed(io.LimitReader(resp.Body, maxFeedSize))
	if err != nil {
		return nil, err
	}
	return events, nil
}

// normalizeFeedURL rewrites webcal:// subscription URLs to https://.
func normalizeFeedURL(feedURL string) string {
	if strings.HasPrefix(feedURL, "webcal://") {
		return "https://" + strings.TrimPrefix(feedURL, "webcal://")
	}
	return feedURL
}
