package teams

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

// DefaultBaseURL is the Microsoft Graph v1.0 endpoint.
const DefaultBaseURL = "https://graph.microsoft.com/v1.0"

// Client is a thin HTTP client for the Microsoft Graph REST API. It
// handles Bearer token authentication, JSON unmarshaling, and automatic
// retry with exponential backoff on HTTP 429.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	maxRetries int
}

// NewClient creates a new Graph HTTP client. An empty baseURL selects
// the public Graph v1.0 endpoint.
func NewClient(baseURL, token string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
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
// path may be a path relative to the base URL or an absolute URL, since
// Graph pagination links are absolute.
func (c *Client) Get(ctx context.Context, path string, result interface{}) error {
	url := path
	if !strings.HasPrefix(path, "http") {
		url = c.baseURL + path
	}

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
				Integration: model.IntegrationTeams,
				Message: "authentication failed (401): check your " +
					"Microsoft Graph access token",
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

// GetList fetches every page of a Graph collection endpoint, following
// @odata.nextLink until the API stops returning one.
func (c *Client) GetList(ctx context.Context, path string, handle func(json.RawMessage) error) error {
	next := path
	for next != "" {
		var page struct {
			Value    json.RawMessage `json:"value"`
			NextLink string          `json:"@odata.nextLink"`
		}
		if err := c.Get(ctx, next, &page); err != nil {
			return err
		}
		if len(page.Value) > 0 {
			if err := handle(page.Value); err != nil {
				return err
			}
		}
		next = page.NextLink
	}
	return nil
}

// GetClasses fetches the education classes the user is enrolled in.
func (c *Client) GetClasses(ctx context.Context) ([]Class, error) {
	var all []Class
	err := c.GetList(ctx, "/education/me/classes",
		func(raw json.RawMessage) error {
			var page []Class
			if err := json.Unmarshal(raw, &page); err != nil {
				return fmt.Errorf("unmarshaling classes page: %w", err)
			}
			all = append(all, page...)
			return nil
		})
	if err != nil {
		return nil, err
	}
	return all, nil
}

// GetClassAssignments fetches all assignments for one education class.
func (c *Client) GetClassAssignments(ctx context.Context, classID string) ([]Assignment, error) {
	path := fmt.Sprintf("/education/classes/%s/assignments", classID)

	var all []Assignment
	err := c.GetList(ctx, path,
		func(raw json.RawMessage) error {
			var page []Assignment
			if err := json.Unmarshal(raw, &page); err != nil {
				return fmt.Errorf("unmarshaling assignments page: %w", err)
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
