package dto

import (
	"time"

	"github.com/univia/univia-go-api/internal/models"
)

// ExamCreateRequest describes the payload for creating a new exam.
type ExamCreateRequest struct {
	Title           string  `json:"title" validate:"required,min=3,max=255"`
	ScheduledAt     string  `json:"scheduled_at" validate:"required,datetime=2006-01-02T15:04:05Z07:00"`
	DurationMinutes int     `json:"duration_minutes" validate:"required,min=1,max=600"`
	TotalPoints     float64 `json:"total_points" validate:"gte=0"`
}

// ExamUpdateRequest describes the payload for updating an unlocked exam.
type ExamUpdateRequest struct {
	Title           *string  `json:"title" validate:"omitempty,min=3,max=255"`
	ScheduledAt     *string  `json:"scheduled_at" validate:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
	DurationMinutes *int     `json:"duration_minutes" validate:"omitempty,min=1,max=600"`
	TotalPoints     *float64 `json:"total_points" validate:"omitempty,gte=0"`
}

// ExamResponse is the serialized representation returned to API clients.
type ExamResponse struct {
	ID              uint               `json:"id"`
	CourseID        uint               `json:"course_id"`
	Title           string             `json:"title"`
	ScheduledAt     time.Time          `json:"scheduled_at"`
	DurationMinutes int                `json:"duration_minutes"`
	TotalPoints     float64            `json:"total_points"`
	Locked          bool               `json:"locked"`
	CreatedAt       time.Time          `json:"created_at"`
	UpdatedAt       time.Time          `json:"updated_at"`
	Questions       []QuestionResponse `json:"questions,omitempty"`
}

// NewExamResponse converts a model into a DTO.
func NewExamResponse(model models.Exam, locked bool) ExamResponse {
	return ExamResponse{
		ID:              model.ID,
		CourseID:        model.CourseID,
		Title:           model.Title,
		ScheduledAt:     model.ScheduledAt,
		DurationMinutes: model.DurationMinutes,
		TotalPoints:     model.TotalPoints,
		Locked:          locked,
		CreatedAt:       model.CreatedAt,
		UpdatedAt:       model.UpdatedAt,
	}
}

// NewExamWithQuestionsResponse converts an exam and its question tree.
// Correct-option flags are only serialized when revealAnswers is set; the
// student-facing read must not leak the answer key.
func NewExamWithQuestionsResponse(model models.Exam, locked, revealAnswers bool) ExamResponse {
	response := NewExamResponse(model, locked)
	response.Questions = make([]QuestionResponse, 0, len(model.Questions))
	for _, question := range model.Questions {
		response.Questions = append(response.Questions, NewQuestionResponse(question, revealAnswers))
	}

	return response
}

// OptionPayload is one authored option inside a question create/update call.
type OptionPayload struct {
	Text        string `json:"text" validate:"required,max=512"`
	OrderNumber int    `json:"order_number" validate:"gte=0"`
	IsCorrect   bool   `json:"is_correct"`
}

// QuestionCreateRequest describes the payload for adding a question.
type QuestionCreateRequest struct {
	Text        string          `json:"text" validate:"required,min=3"`
	OrderNumber int             `json:"order_number" validate:"gte=0"`
	Points      float64         `json:"points" validate:"required,gt=0"`
	Options     []OptionPayload `json:"options" validate:"required,dive"`
}

// QuestionUpdateRequest describes the payload for updating a question.
// Supplying Options replaces the whole option set.
type QuestionUpdateRequest struct {
	Text        *string         `json:"text" validate:"omitempty,min=3"`
	OrderNumber *int            `json:"order_number" validate:"omitempty,gte=0"`
	Points      *float64        `json:"points" validate:"omitempty,gt=0"`
	Options     []OptionPayload `json:"options" validate:"omitempty,dive"`
}

// QuestionResponse is the serialized question representation.
type QuestionResponse struct {
	ID          uint             `json:"id"`
	ExamID      uint             `json:"exam_id"`
	Text        string           `json:"text"`
	OrderNumber int              `json:"order_number"`
	Points      float64          `json:"points"`
	Options     []OptionResponse `json:"options"`
}

// OptionResponse is the serialized option representation. IsCorrect stays
// nil unless the caller is allowed to see the answer key.
type OptionResponse struct {
	ID          uint   `json:"id"`
	Text        string `json:"text"`
	OrderNumber int    `json:"order_number"`
	IsCorrect   *bool  `json:"is_correct,omitempty"`
}

// NewQuestionResponse converts a question model into a DTO.
func NewQuestionResponse(model models.ExamQuestion, revealAnswers bool) QuestionResponse {
	options := make([]OptionResponse, 0, len(model.Options))
	for _, option := range model.Options {
		item := OptionResponse{
			ID:          option.ID,
			Text:        option.Text,
			OrderNumber: option.OrderNumber,
		}
		if revealAnswers {
			correct := option.IsCorrect
			item.IsCorrect = &correct
		}
		options = append(options, item)
	}

	return QuestionResponse{
		ID:          model.ID,
		ExamID:      model.ExamID,
		Text:        model.Text,
		OrderNumber: model.OrderNumber,
		Points:      model.Points,
		Options:     options,
	}
}
