package teams

// Class is a Microsoft Teams education class.
type Class struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	ClassCode   string `json:"classCode"`
}

// Assignment is an assignment published in an education class. Status
// is "draft" until the teacher assigns it.
type Assignment struct {
	ID          string   `json:"id"`
	DisplayName string   `json:"displayName"`
	DueDateTime string   `json:"dueDateTime"`
	Status      string   `json:"status"`
	WebURL      string   `json:"webUrl"`
	Grading     *Grading `json:"grading"`
}

// Grading describes the points scheme attached to an assignment. Nil
// MaxPoints means the assignment is ungraded.
type Grading struct {
	MaxPoints *float64 `json:"maxPoints"`
}

// User is the authenticated Microsoft account.
type User struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
}
