package models

import (
	"time"

	"gorm.io/gorm"
)

// ExamSubmission is one student's single attempt at an exam. The unique
// index on (exam_id, student_id) is what enforces single-attempt semantics;
// concurrent starts race to the insert and the loser gets a duplicate-key
// error instead of a second row.
type ExamSubmission struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	ExamID      uint           `gorm:"not null;uniqueIndex:idx_submission_exam_student" json:"exam_id"`
	StudentID   uint           `gorm:"not null;uniqueIndex:idx_submission_exam_student" json:"student_id"`
	GraderID    *uint          `json:"grader_id"`
	StartedAt   time.Time      `gorm:"not null" json:"started_at"`
	SubmittedAt *time.Time     `json:"submitted_at"`
	Score       *float64       `json:"score"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
	Exam        Exam           `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"exam"`
	Answers     []ExamAnswer   `gorm:"foreignKey:SubmissionID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"answers,omitempty"`
}

// IsSubmitted reports whether the attempt has been finalized. SubmittedAt
// never reverts to nil once set.
func (s ExamSubmission) IsSubmitted() bool {
	return s.SubmittedAt != nil
}

// ExamAnswer records one processed answer of a finalized submission.
type ExamAnswer struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	SubmissionID     uint      `gorm:"not null;index" json:"submission_id"`
	QuestionID       uint      `gorm:"not null" json:"question_id"`
	SelectedOptionID uint      `gorm:"not null" json:"selected_option_id"`
	IsCorrect        bool      `gorm:"not null" json:"is_correct"`
	PointsAwarded    float64   `gorm:"not null" json:"points_awarded"`
	CreatedAt        time.Time `json:"created_at"`
}
