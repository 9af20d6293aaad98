package tp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a thin HTTP client for the TP timetable web service. TP is
// an open API; no authentication is required.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new TP HTTP client. The baseURL should include
// the institution segment (e.g., https://tp.educloud.no/ntnu).
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Get performs an HTTP GET request and unmarshals the JSON response.
func (c *Client) Get(ctx context.Context, path string, result interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("executing request GET %s: %w", path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf(
			"unexpected status %d on GET %s: %s",
			resp.StatusCode, path, string(respBody),
		)
	}

	if err := json.Unmarshal(respBody, result); err != nil {
		return fmt.Errorf("unmarshaling response from GET %s: %w", path, err)
	}

	return nil
}

// GetCourseTimetable fetches the timetable for one course in one
// semester (e.g., "26v" for spring 2026).
func (c *Client) GetCourseTimetable(ctx context.Context, courseCode, semester string) (*Timetable, error) {
	path := fmt.Sprintf(
		"/ws/1.4/course.php?id=%s&sem=%s",
		url.QueryEscape(courseCode), url.QueryEscape(semester),
	)

	var tt Timetable
	if err := c.Get(ctx, path, &tt); err != nil {
		return nil, err
	}
	return &tt, nil
}

// GetCourseExams fetches the exam dates for one course in one year.
func (c *Client) GetCourseExams(ctx context.Context, courseCode string, year int) (*ExamResponse, error) {
	path := fmt.Sprintf(
		"/ws/1.4/exam.php?id=%s&year=%d",
		url.QueryEscape(courseCode), year,
	)

	var exams ExamResponse
	if err := c.Get(ctx, path, &exams); err != nil {
		return nil, err
	}
	return &exams, nil
}
