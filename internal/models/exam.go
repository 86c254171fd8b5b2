package models

import (
	"time"

	"gorm.io/gorm"
)

// Exam is a scheduled assessment that belongs to exactly one course.
// Its content becomes immutable the moment any submission exists for it.
type Exam struct {
	ID              uint           `gorm:"primaryKey" json:"id"`
	CourseID        uint           `gorm:"not null;index" json:"course_id"`
	Title           string         `gorm:"size:255;not null" json:"title"`
	ScheduledAt     time.Time      `gorm:"not null" json:"scheduled_at"`
	DurationMinutes int            `gorm:"not null" json:"duration_minutes"`
	TotalPoints     float64        `gorm:"not null" json:"total_points"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
	DeletedAt       gorm.DeletedAt `gorm:"index" json:"-"`
	Questions       []ExamQuestion `json:"questions,omitempty"`
}

// Duration returns the time window a student has to finish the exam.
func (e Exam) Duration() time.Duration {
	return time.Duration(e.DurationMinutes) * time.Minute
}

// Deadline is the last instant a submission started at startedAt is still accepted.
func (e Exam) Deadline(startedAt time.Time) time.Time {
	return startedAt.Add(e.Duration())
}

// ExamQuestion is a single-choice question on an exam. A valid question
// carries at least two options with exactly one flagged correct.
type ExamQuestion struct {
	ID          uint        `gorm:"primaryKey" json:"id"`
	ExamID      uint        `gorm:"not null;index" json:"exam_id"`
	Text        string      `gorm:"type:text;not null" json:"text"`
	OrderNumber int         `json:"order_number"`
	Points      float64     `gorm:"not null" json:"points"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
	Options     []MCQOption `gorm:"foreignKey:QuestionID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"options,omitempty"`
}

// CorrectOption returns the option flagged correct, or nil when none is loaded.
func (q ExamQuestion) CorrectOption() *MCQOption {
	for i := range q.Options {
		if q.Options[i].IsCorrect {
			return &q.Options[i]
		}
	}
	return nil
}

// MCQOption is one selectable choice belonging to a question.
type MCQOption struct {
	ID          uint   `gorm:"primaryKey" json:"id"`
	QuestionID  uint   `gorm:"not null;index" json:"question_id"`
	Text        string `gorm:"size:512;not null" json:"text"`
	OrderNumber int    `json:"order_number"`
	IsCorrect   bool   `gorm:"not null" json:"is_correct"`
}
