package models

import "time"

// Enrollment statuses persisted by the completion aggregator.
const (
	EnrollmentStatusEnrolled   = "enrolled"
	EnrollmentStatusInProgress = "in_progress"
	EnrollmentStatusCompleted  = "completed"
	EnrollmentStatusFailed     = "failed"
	EnrollmentStatusDropped    = "dropped"
)

// Course is the minimal course projection exams and enrollments hang off.
type Course struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Title     string    `gorm:"size:255;not null" json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Enrollment binds a student to a course and carries the derived completion
// outcome. FinalGrade and GradeLetter stay empty until every exam in the
// course has been submitted.
type Enrollment struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	StudentID   uint      `gorm:"not null;uniqueIndex:idx_enrollment_student_course" json:"student_id"`
	CourseID    uint      `gorm:"not null;uniqueIndex:idx_enrollment_student_course" json:"course_id"`
	Status      string    `gorm:"size:32;not null;default:enrolled" json:"status"`
	FinalGrade  *float64  `json:"final_grade"`
	GradeLetter string    `gorm:"size:4" json:"grade_letter"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	Course      Course    `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"course"`
}
