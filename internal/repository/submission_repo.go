package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/univia/univia-go-api/internal/models"
)

// SubmissionRepository defines data operations for exam submissions and
// their graded answers.
type SubmissionRepository interface {
	GetByExamAndStudent(ctx context.Context, examID, studentID uint) (models.ExamSubmission, error)
	GetByID(ctx context.Context, id uint) (models.ExamSubmission, error)
	GetByIDUnscoped(ctx context.Context, id uint) (models.ExamSubmission, error)
	ExistsForExam(ctx context.Context, examID uint) (bool, error)
	AttemptExists(ctx context.Context, examID, studentID uint) (bool, error)
	ListByStudentAndExams(ctx context.Context, studentID uint, examIDs []uint) ([]models.ExamSubmission, error)
	Create(ctx context.Context, submission *models.ExamSubmission) error
	Finalize(ctx context.Context, submission *models.ExamSubmission, answers []models.ExamAnswer) error
	SoftDelete(ctx context.Context, id uint) error
	Restore(ctx context.Context, id uint) error
}

type submissionRepository struct {
	db *gorm.DB
}

// NewSubmissionRepository instantiates the repository.
func NewSubmissionRepository(db *gorm.DB) SubmissionRepository {
	return &submissionRepository{db: db}
}

func (r *submissionRepository) GetByExamAndStudent(ctx context.Context, examID, studentID uint) (models.ExamSubmission, error) {
	var submission models.ExamSubmission
	if err := r.db.WithContext(ctx).
		Preload("Answers").
		Where("exam_id = ?", examID).
		Where("student_id = ?", studentID).
		First(&submission).Error; err != nil {
		return models.ExamSubmission{}, err
	}

	return submission, nil
}

func (r *submissionRepository) GetByID(ctx context.Context, id uint) (models.ExamSubmission, error) {
	var submission models.ExamSubmission
	if err := r.db.WithContext(ctx).First(&submission, id).Error; err != nil {
		return models.ExamSubmission{}, err
	}

	return submission, nil
}

// GetByIDUnscoped also resolves soft-deleted rows; the restore path needs it.
func (r *submissionRepository) GetByIDUnscoped(ctx context.Context, id uint) (models.ExamSubmission, error) {
	var submission models.ExamSubmission
	if err := r.db.WithContext(ctx).Unscoped().First(&submission, id).Error; err != nil {
		return models.ExamSubmission{}, err
	}

	return submission, nil
}

// ExistsForExam reports whether any submission, started or finished,
// soft-deleted or not, exists for the exam. Audit deletions must not
// unlock exam content.
func (r *submissionRepository) ExistsForExam(ctx context.Context, examID uint) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Unscoped().
		Model(&models.ExamSubmission{}).
		Where("exam_id = ?", examID).
		Count(&count).Error; err != nil {
		return false, err
	}

	return count > 0, nil
}

// AttemptExists reports whether the (exam, student) pair has an attempt row,
// soft-deleted included. The status projection uses it to tell a voided
// attempt apart from one that never started.
func (r *submissionRepository) AttemptExists(ctx context.Context, examID, studentID uint) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Unscoped().
		Model(&models.ExamSubmission{}).
		Where("exam_id = ?", examID).
		Where("student_id = ?", studentID).
		Count(&count).Error; err != nil {
		return false, err
	}

	return count > 0, nil
}

func (r *submissionRepository) ListByStudentAndExams(ctx context.Context, studentID uint, examIDs []uint) ([]models.ExamSubmission, error) {
	if len(examIDs) == 0 {
		return nil, nil
	}

	var submissions []models.ExamSubmission
	if err := r.db.WithContext(ctx).
		Where("student_id = ?", studentID).
		Where("exam_id IN ?", examIDs).
		Find(&submissions).Error; err != nil {
		return nil, err
	}

	return submissions, nil
}

// Create inserts the submission row. The unique (exam_id, student_id) index
// makes this the atomic insert-or-reject point; callers translate
// gorm.ErrDuplicatedKey into their own already-started error.
func (r *submissionRepository) Create(ctx context.Context, submission *models.ExamSubmission) error {
	return r.db.WithContext(ctx).Create(submission).Error
}

// Finalize persists the graded answers and the finalized submission in one
// transaction so a mid-grading failure cannot leave a half-graded attempt.
func (r *submissionRepository) Finalize(ctx context.Context, submission *models.ExamSubmission, answers []models.ExamAnswer) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(answers) > 0 {
			if err := tx.Create(&answers).Error; err != nil {
				return err
			}
		}

		return tx.Omit("Exam", "Answers").Save(submission).Error
	})
}

func (r *submissionRepository) SoftDelete(ctx context.Context, id uint) error {
	result := r.db.WithContext(ctx).Delete(&models.ExamSubmission{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *submissionRepository) Restore(ctx context.Context, id uint) error {
	result := r.db.WithContext(ctx).
		Unscoped().
		Model(&models.ExamSubmission{}).
		Where("id = ?", id).
		Update("deleted_at", nil)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
