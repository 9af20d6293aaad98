package tp

// Timetable is the TP course timetable response.
type Timetable struct {
	Course CourseInfo       `json:"course"`
	Data   []TimetableEntry `json:"data"`
}

// CourseInfo identifies the course a timetable belongs to.
type CourseInfo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// TimetableEntry is one scheduled activity. Timestamps are local
// Norwegian time without a zone designator.
type TimetableEntry struct {
	ID                 string `json:"id"`
	DtStart            string `json:"dtstart"`
	DtEnd              string `json:"dtend"`
	Title              string `json:"title"`
	Summary            string `json:"summary"`
	TeachingMethodName string `json:"teaching-method-name"`
	Rooms              []Room `json:"room"`
}

// Room is a booked room for a timetable entry.
type Room struct {
	ID       string `json:"roomid"`
	Name     string `json:"roomname"`
	Building string `json:"buildingname"`
}

// ExamResponse is the TP exam listing response.
type ExamResponse struct {
	CourseID string `json:"courseid"`
	Data     []Exam `json:"data"`
}

// Exam is one exam date for a course.
type Exam struct {
	Date     string `json:"examdate"`
	Time     string `json:"examtime"`
	TypeName string `json:"exam-type-name"`
}
