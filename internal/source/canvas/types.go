package canvas

// Course is a Canvas course as returned by GET /api/v1/courses.
type Course struct {
	ID            int64  `json:"id"`
	Name          string `json:"name"`
	CourseCode    string `json:"course_code"`
	WorkflowState string `json:"workflow_state"`
}

// Assignment is a Canvas assignment as returned by
// GET /api/v1/courses/{course_id}/assignments.
type Assignment struct {
	ID             int64    `json:"id"`
	Name           string   `json:"name"`
	DueAt          string   `json:"due_at"`
	PointsPossible *float64 `json:"points_possible"`
	HTMLURL        string   `json:"html_url"`
	Published      bool     `json:"published"`
}

// User is the authenticated Canvas user as returned by
// GET /api/v1/users/self.
type User struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}
