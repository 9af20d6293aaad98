package canvas

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/studvik/companion/internal/model"
	"github.com/studvik/companion/internal/source"
)

// Client is a thin HTTP client for the Canvas LMS REST API. It handles
// Bearer token authentication, JSON unmarshaling, and automatic retry
// with exponential backoff on HTTP 429.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	maxRetries int
}

// NewClient creates a new Canvas HTTP client. The baseURL should be the
// root URL of the Canvas instance (e.g., https://canvas.example.edu).
// The token is an access token used for Bearer authentication.
func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		maxRetries: 3,
	}
}

// Get performs an HTTP GET request and unmarshals the JSON response.
func (c *Client) Get(ctx context.Context, path string, result interface{}) error {
	url := c.baseURL + path

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return fmt.Errorf("creating request: %w", err)
		}

		req.Header.Set("Authorization", "Bearer "+c.token)
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("executing request GET %s: %w", path, err)
		}

		respBody, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			return fmt.Errorf("reading response body: %w", readErr)
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			waitDuration := retryAfterDuration(resp, attempt)
			lastErr = fmt.Errorf("rate limited (429) on GET %s", path)

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(waitDuration):
				continue
			}
		}

		if resp.StatusCode == http.StatusUnauthorized {
			return &source.AuthError{
				Integration: model.IntegrationCanvas,
				Message: fmt.Sprintf(
					"authentication failed (401): check your "+
						"access token for %s", c.baseURL,
				),
			}
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return fmt.Errorf(
				"unexpected status %d on GET %s: %s",
				resp.StatusCode, path, string(respBody),
			)
		}

		if result == nil || resp.StatusCode == http.StatusNoContent {
			return nil
		}

		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("unmarshaling response from GET %s: %w", path, err)
		}

		return nil
	}

	return fmt.Errorf("max retries (%d) exceeded: %w", c.maxRetries, lastErr)
}

// GetAllPages fetches every page of a paginated Canvas list endpoint into
// result batches. Canvas returns an empty array once the page number runs
// past the last page.
func (c *Client) GetAllPages(ctx context.Context, path string, perPage int, handle func(json.RawMessage) (int, error)) error {
	if perPage <= 0 {
		perPage = 50
	}

	separator := "?"
	if strings.Contains(path, "?") {
		separator = "&"
	}

	for page := 1; ; page++ {
		pagePath := fmt.Sprintf("%s%spage=%d&per_page=%d", path, separator, page, perPage)

		var raw json.RawMessage
		if err := c.Get(ctx, pagePath, &raw); err != nil {
			return err
		}

		n, err := handle(raw)
		if err != nil {
			return err
		}
		if n < perPage {
			return nil
		}
	}
}

// GetActiveCourses fetches all courses the user is actively enrolled in.
func (c *Client) GetActiveCourses(ctx context.Context) ([]Course, error) {
	var all []Course
	err := c.GetAllPages(ctx, "/api/v1/courses?enrollment_state=active", 50,
		func(raw json.RawMessage) (int, error) {
			var page []Course
			if err := json.Unmarshal(raw, &page); err != nil {
				return 0, fmt.Errorf("unmarshaling courses page: %w", err)
			}
			all = append(all, page...)
			return len(page), nil
		})
	if err != nil {
		return nil, err
	}
	return all, nil
}

// GetCourseAssignments fetches all assignments for one course.
func (c *Client) GetCourseAssignments(ctx context.Context, courseID int64) ([]Assignment, error) {
	path := fmt.Sprintf("/api/v1/courses/%d/assignments", courseID)

	var all []Assignment
	err := c.GetAllPages(ctx, path, 50,
		func(raw json.RawMessage) (int, error) {
			var page []Assignment
			if err := json.Unmarshal(raw, &page); err != nil {
				return 0, fmt.Errorf("unmarshaling assignments page: %w", err)
			}
			all = append(all, page...)
			return len(page), nil
		})
	if err != nil {
		return nil, err
	}
	return all, nil
}

// retryAfterDuration reads the Retry-After header and computes a wait
// duration. Falls back to exponential backoff if the header is missing.
func retryAfterDuration(resp *http.Response, attempt int) time.Duration {
	if header := resp.Header.Get("Retry-After"); header != "" {
		if seconds, err := strconv.Atoi(header); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}

	// Exponential backoff: 1s, 2s, 4s, ...
	backoff := time.Duration(1<<uint(attempt)) * time.Second
	if backoff > 30*time.Second {
		backoff = 30 * time.Second
	}
	return backoff
}
