package dto

import (
	"time"

	"github.com/univia/univia-go-api/internal/models"
)

// Submission session states surfaced by the status projection. Voided marks
// an attempt an instructor soft-deleted; the exam cannot be restarted.
const (
	SubmissionStateNotStarted = "not_started"
	SubmissionStateStarted    = "started"
	SubmissionStateSubmitted  = "submitted"
	SubmissionStateVoided     = "voided"
)

// SubmissionResponse is the serialized representation of an exam attempt.
type SubmissionResponse struct {
	ID          uint       `json:"id"`
	ExamID      uint       `json:"exam_id"`
	StudentID   uint       `json:"student_id"`
	StartedAt   time.Time  `json:"started_at"`
	SubmittedAt *time.Time `json:"submitted_at"`
	Score       *float64   `json:"score"`
	DeadlineAt  time.Time  `json:"deadline_at"`
}

// NewSubmissionResponse converts a model into a DTO. The deadline is derived
// from the owning exam's duration.
func NewSubmissionResponse(model models.ExamSubmission, exam models.Exam) SubmissionResponse {
	return SubmissionResponse{
		ID:          model.ID,
		ExamID:      model.ExamID,
		StudentID:   model.StudentID,
		StartedAt:   model.StartedAt,
		SubmittedAt: model.SubmittedAt,
		Score:       model.Score,
		DeadlineAt:  exam.Deadline(model.StartedAt),
	}
}

// SubmissionStatusResponse is the pure read projection a resuming or polling
// client uses to learn whether a session is open, closed, or absent.
type SubmissionStatusResponse struct {
	State       string     `json:"state"`
	Open        bool       `json:"open"`
	StartedAt   *time.Time `json:"started_at"`
	SubmittedAt *time.Time `json:"submitted_at"`
	Score       *float64   `json:"score"`
	DeadlineAt  *time.Time `json:"deadline_at"`
}

// AnswerPayload is one selected option for one question.
type AnswerPayload struct {
	QuestionID       uint `json:"question_id" validate:"required"`
	SelectedOptionID uint `json:"selected_option_id" validate:"required"`
}

// SubmitExamRequest carries the full answer set of a submit call.
type SubmitExamRequest struct {
	Answers []AnswerPayload `json:"answers" validate:"dive"`
}

// AnswerBreakdown reports the grading outcome for one accepted answer.
type AnswerBreakdown struct {
	QuestionID        uint    `json:"question_id"`
	QuestionText      string  `json:"question_text"`
	SelectedOptionID  uint    `json:"selected_option_id"`
	IsCorrect         bool    `json:"is_correct"`
	PointsAwarded     float64 `json:"points_awarded"`
	CorrectOptionID   uint    `json:"correct_option_id"`
	CorrectOptionText string  `json:"correct_option_text"`
}

// ExamResultResponse is the full grading result of a finalized submission.
// The breakdown lists accepted answers only; skipped or unanswered questions
// are absent rather than zero-filled.
type ExamResultResponse struct {
	ExamID       uint              `json:"exam_id"`
	StudentID    uint              `json:"student_id"`
	Score        float64           `json:"score"`
	TotalPoints  float64           `json:"total_points"`
	Percentage   float64           `json:"percentage"`
	CorrectCount int               `json:"correct_count"`
	SubmittedAt  time.Time         `json:"submitted_at"`
	Breakdown    []AnswerBreakdown `json:"breakdown"`
}
