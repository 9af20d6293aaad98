package github

import "encoding/json"

// Issue is a GitHub issue as returned by the /issues listing. The
// listing also contains pull requests, distinguished by a non-nil
// pull_request key.
type Issue struct {
	ID          int64           `json:"id"`
	Number      int             `json:"number"`
	Title       string          `json:"title"`
	State       string          `json:"state"`
	HTMLURL     string          `json:"html_url"`
	Milestone   *Milestone      `json:"milestone"`
	Repository  *Repository     `json:"repository"`
	PullRequest json.RawMessage `json:"pull_request"`
}

// Milestone carries the issue's milestone due date, when one is set.
type Milestone struct {
	Title string `json:"title"`
	DueOn string `json:"due_on"`
}

// Repository identifies the repository an issue belongs to.
type Repository struct {
	Name     string `json:"name"`
	FullName string `json:"full_name"`
}

// User is the authenticated GitHub account.
type User struct {
	Login string `json:"login"`
	Name  string `json:"name"`
}
