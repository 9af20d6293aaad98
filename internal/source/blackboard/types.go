package blackboard

// Course is a Blackboard Learn course as returned by the v3 courses
// endpoint. CourseID is the human-facing course code.
type Course struct {
	ID           string       `json:"id"`
	CourseID     string       `json:"courseId"`
	Name         string       `json:"name"`
	Availability Availability `json:"availability"`
}

// Availability carries the course visibility flag ("Yes", "No" or
// "Disabled").
type Availability struct {
	Available string `json:"available"`
}

// GradebookColumn is one gradable column in a course's gradebook. Learn
// represents every assignment, test and manual grade as a column.
type GradebookColumn struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	ContentID string  `json:"contentId"`
	Grading   Grading `json:"grading"`
	Score     Score   `json:"score"`
}

// Grading holds the column's due date, when one is set.
type Grading struct {
	Due string `json:"due"`
}

// Score holds the column's maximum attainable score.
type Score struct {
	Possible *float64 `json:"possible"`
}

// User is the authenticated Blackboard user.
type User struct {
	ID       string   `json:"id"`
	UserName string   `json:"userName"`
	Name     UserName `json:"name"`
}

// UserName is the structured display name Learn returns for users.
type UserName struct {
	Given  string `json:"given"`
	Family string `json:"family"`
}
