package dto

// ExamCompletionEntry is the per-exam slice of a course completion check.
// Unsubmitted exams appear zero-filled with Submitted=false.
type ExamCompletionEntry struct {
	ExamID      uint    `json:"exam_id"`
	ExamTitle   string  `json:"exam_title"`
	TotalPoints float64 `json:"total_points"`
	Submitted   bool    `json:"submitted"`
	Score       float64 `json:"score"`
	Percentage  float64 `json:"percentage"`
	Passed      bool    `json:"passed"`
}

// CompletionResponse is the aggregate derived from a student's submissions
// across all of a course's exams.
type CompletionResponse struct {
	CourseID       uint                  `json:"course_id"`
	StudentID      uint                  `json:"student_id"`
	Status         string                `json:"status"`
	AverageScore   float64               `json:"average_score"`
	GradeLetter    string                `json:"grade_letter"`
	TotalExams     int                   `json:"total_exams"`
	SubmittedExams int                   `json:"submitted_exams"`
	Breakdown      []ExamCompletionEntry `json:"breakdown"`
}
