package blackboard

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

// Client is a thin HTTP client for the Blackboard Learn REST API. It
// handles Bearer token authentication, JSON unmarshaling, and automatic
// retry with exponential backoff on HTTP 429.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	maxRetries int
}

// NewClient creates a new Blackboard HTTP client. The baseURL should be
// the root URL of the Learn instance (e.g., https://learn.example.edu).
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
				Integration: model.IntegrationBlackboard,
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

// GetResults fetches every page of a Learn collection endpoint. Learn
// wraps collections in {"results": [...], "paging": {"nextPage": ...}};
// the nextPage path is followed until the API stops returning one.
func (c *Client) GetResults(ctx context.Context, path string, handle func(json.RawMessage) error) error {
	next := path
	for next != "" {
		var page struct {
			Results json.RawMessage `json:"results"`
			Paging  struct {
				NextPage string `json:"nextPage"`
			} `json:"paging"`
		}
		if err := c.Get(ctx, next, &page); err != nil {
			return err
		}
		if len(page.Results) > 0 {
			if err := handle(page.Results); err != nil {
				return err
			}
		}
		next = page.Paging.NextPage
	}
	return nil
}

// GetCourses fetches all courses visible to the authenticated user.
func (c *Client) GetCourses(ctx context.Context) ([]Course, error) {
	var all []Course
	err := c.GetResults(ctx, "/learn/api/public/v3/courses",
		func(raw json.RawMessage) error {
			var page []Course
			if err := json.Unmarshal(raw, &page); err != nil {
				return fmt.Errorf("unmarshaling courses page: %w", err)
			}
			all = append(all, page...)
			return nil
		})
	if err != nil {
		return nil, err
	}
	return all, nil
}

// GetGradebookColumns fetches all gradebook columns for one course.
func (c *Client) GetGradebookColumns(ctx context.Context, courseID string) ([]GradebookColumn, error) {
	path := fmt.Sprintf("/learn/api/public/v2/courses/%s/gradebook/columns", courseID)

	var all []GradebookColumn
	err := c.GetResults(ctx, path,
		func(raw json.RawMessage) error {
			var page []GradebookColumn
			if err := json.Unmarshal(raw, &page); err != nil {
				return fmt.Errorf("unmarshaling gradebook columns page: %w", err)
			}
			all = append(all, page...)
			return nil
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
