package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/univia/univia-go-api/internal/models"
)

// QuestionRepository defines persistence operations for exam questions and
// their options.
type QuestionRepository interface {
	GetByID(ctx context.Context, id uint) (models.ExamQuestion, error)
	ListByExam(ctx context.Context, examID uint) ([]models.ExamQuestion, error)
	CountByExam(ctx context.Context, examID uint) (int64, error)
	Create(ctx context.Context, question *models.ExamQuestion) error
	Update(ctx context.Context, question *models.ExamQuestion) error
	ReplaceOptions(ctx context.Context, questionID uint, options []models.MCQOption) error
	Delete(ctx context.Context, id uint) error
}

type questionRepository struct {
	db *gorm.DB
}

// NewQuestionRepository instantiates the repository.
func NewQuestionRepository(db *gorm.DB) QuestionRepository {
	return &questionRepository{db: db}
}

func (r *questionRepository) GetByID(ctx context.Context, id uint) (models.ExamQuestion, error) {
	var question models.ExamQuestion
	if err := r.db.WithContext(ctx).
		Preload("Options", func(db *gorm.DB) *gorm.DB {
			return db.Order("order_number ASC")
		}).
		First(&question, id).Error; err != nil {
		return models.ExamQuestion{}, err
	}

	return question, nil
}

func (r *questionRepository) ListByExam(ctx context.Context, examID uint) ([]models.ExamQuestion, error) {
	var questions []models.ExamQuestion
	if err := r.db.WithContext(ctx).
		Preload("Options").
		Where("exam_id = ?", examID).
		Order("order_number ASC").
		Find(&questions).Error; err != nil {
		return nil, err
	}

	return questions, nil
}

func (r *questionRepository) CountByExam(ctx context.Context, examID uint) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.ExamQuestion{}).
		Where("exam_id = ?", examID).
		Count(&count).Error; err != nil {
		return 0, err
	}

	return count, nil
}

func (r *questionRepository) Create(ctx context.Context, question *models.ExamQuestion) error {
	return r.db.WithContext(ctx).Create(question).Error
}

func (r *questionRepository) Update(ctx context.Context, question *models.ExamQuestion) error {
	return r.db.WithContext(ctx).Omit("Options").Save(question).Error
}

// ReplaceOptions swaps the full option set of a question in one transaction.
func (r *questionRepository) ReplaceOptions(ctx context.Context, questionID uint, options []models.MCQOption) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("question_id = ?", questionID).Delete(&models.MCQOption{}).Error; err != nil {
			return err
		}

		for i := range options {
			options[i].ID = 0
			options[i].QuestionID = questionID
		}

		return tx.Create(&options).Error
	})
}

func (r *questionRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("question_id = ?", id).Delete(&models.MCQOption{}).Error; err != nil {
			return err
		}

		result := tx.Delete(&models.ExamQuestion{}, id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}
