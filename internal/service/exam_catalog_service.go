package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/univia/univia-go-api/internal/dto"
	"github.com/univia/univia-go-api/internal/models"
	"github.com/univia/univia-go-api/internal/repository"
)

// ErrExamNotFound indicates the exam does not exist under the given course.
// A course mismatch surfaces identically so callers cannot probe exam ids
// across courses.
var ErrExamNotFound = errors.New("exam not found")

// ErrQuestionNotFound indicates the question was not located.
var ErrQuestionNotFound = errors.New("question not found")

// ErrExamLocked indicates the exam content is frozen because at least one
// submission exists against it.
var ErrExamLocked = errors.New("exam is locked by existing submissions")

// ErrTooFewOptions indicates a question carries fewer than two options with text.
var ErrTooFewOptions = errors.New("question requires at least two options with text")

// ErrCorrectOptionCount indicates a question does not flag exactly one option correct.
var ErrCorrectOptionCount = errors.New("question requires exactly one correct option")

// ExamCatalogService owns exam, question and option authoring. Nothing about
// a live exam's content can change once any student has a submission against it.
type ExamCatalogService interface {
	CreateExam(ctx context.Context, courseID uint, payload dto.ExamCreateRequest, actor ActivityActor) (dto.ExamResponse, error)
	ListExams(ctx context.Context, courseID uint) ([]dto.ExamResponse, error)
	GetExamWithQuestions(ctx context.Context, examID, courseID uint, revealAnswers bool) (dto.ExamResponse, error)
	UpdateExam(ctx context.Context, examID, courseID uint, payload dto.ExamUpdateRequest, actor ActivityActor) (dto.ExamResponse, error)
	DeleteExam(ctx context.Context, examID, courseID uint, actor ActivityActor) error
	AddQuestion(ctx context.Context, examID uint, payload dto.QuestionCreateRequest, actor ActivityActor) (dto.QuestionResponse, error)
	UpdateQuestion(ctx context.Context, questionID uint, payload dto.QuestionUpdateRequest, actor ActivityActor) (dto.QuestionResponse, error)
	DeleteQuestion(ctx context.Context, questionID uint, actor ActivityActor) error
}

type examCatalogService struct {
	exams       repository.ExamRepository
	questions   repository.QuestionRepository
	submissions repository.SubmissionRepository
	validator   *validator.Validate
	sanitizer   *bluemonday.Policy
	activity    ActivityRecorder
	logger      zerolog.Logger
}

// NewExamCatalogService builds the catalog service.
func NewExamCatalogService(
	exams repository.ExamRepository,
	questions repository.QuestionRepository,
	submissions repository.SubmissionRepository,
	validate *validator.Validate,
	activity ActivityRecorder,
	logger zerolog.Logger,
) ExamCatalogService {
	return &examCatalogService{
		exams:       exams,
		questions:   questions,
		submissions: submissions,
		validator:   validate,
		sanitizer:   bluemonday.StrictPolicy(),
		activity:    activity,
		logger:      logger.With().Str("component", "exam_catalog_service").Logger(),
	}
}

func (s *examCatalogService) CreateExam(ctx context.Context, courseID uint, payload dto.ExamCreateRequest, actor ActivityActor) (dto.ExamResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.ExamResponse{}, err
	}

	scheduledAt, err := time.Parse(time.RFC3339, payload.ScheduledAt)
	if err != nil {
		return dto.ExamResponse{}, err
	}

	exam := models.Exam{
		CourseID:        courseID,
		Title:           strings.TrimSpace(s.sanitizer.Sanitize(payload.Title)),
		ScheduledAt:     scheduledAt,
		DurationMinutes: payload.DurationMinutes,
		TotalPoints:     payload.TotalPoints,
	}

	if err := s.exams.Create(ctx, &exam); err != nil {
		return dto.ExamResponse{}, err
	}

	s.logger.Info().Uint("exam_id", exam.ID).Uint("course_id", courseID).Msg("exam created")
	s.recordActivity(ctx, actor, "exam.created", "exam", exam.ID, map[string]interface{}{
		"course_id": courseID,
		"title":     exam.Title,
	})

	return dto.NewExamResponse(exam, false), nil
}

func (s *examCatalogService) ListExams(ctx context.Context, courseID uint) ([]dto.ExamResponse, error) {
	exams, err := s.exams.ListByCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}

	responses := make([]dto.ExamResponse, 0, len(exams))
	for _, exam := range exams {
		locked, err := s.submissions.ExistsForExam(ctx, exam.ID)
		if err != nil {
			return nil, err
		}
		responses = append(responses, dto.NewExamResponse(exam, locked))
	}

	return responses, nil
}

func (s *examCatalogService) GetExamWithQuestions(ctx context.Context, examID, courseID uint, revealAnswers bool) (dto.ExamResponse, error) {
	exam, err := s.exams.GetByIDWithQuestions(ctx, examID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.ExamResponse{}, ErrExamNotFound
		}
		return dto.ExamResponse{}, err
	}

	if exam.CourseID != courseID {
		return dto.ExamResponse{}, ErrExamNotFound
	}

	locked, err := s.submissions.ExistsForExam(ctx, exam.ID)
	if err != nil {
		return dto.ExamResponse{}, err
	}

	return dto.NewExamWithQuestionsResponse(exam, locked, revealAnswers), nil
}

func (s *examCatalogService) UpdateExam(ctx context.Context, examID, courseID uint, payload dto.ExamUpdateRequest, actor ActivityActor) (dto.ExamResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.ExamResponse{}, err
	}

	exam, err := s.exams.GetByID(ctx, examID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.ExamResponse{}, ErrExamNotFound
		}
		return dto.ExamResponse{}, err
	}

	if exam.CourseID != courseID {
		return dto.ExamResponse{}, ErrExamNotFound
	}

	if err := s.ensureUnlocked(ctx, exam.ID); err != nil {
		return dto.ExamResponse{}, err
	}

	if payload.Title != nil {
		exam.Title = strings.TrimSpace(s.sanitizer.Sanitize(*payload.Title))
	}
	if payload.ScheduledAt != nil {
		scheduledAt, err := time.Parse(time.RFC3339, *payload.ScheduledAt)
		if err != nil {
			return dto.ExamResponse{}, err
		}
		exam.ScheduledAt = scheduledAt
	}
	if payload.DurationMinutes != nil {
		exam.DurationMinutes = *payload.DurationMinutes
	}
	if payload.TotalPoints != nil {
		exam.TotalPoints = *payload.TotalPoints
	}

	if err := s.exams.Update(ctx, &exam); err != nil {
		return dto.ExamResponse{}, err
	}

	s.logger.Info().Uint("exam_id", exam.ID).Msg("exam updated")
	s.recordActivity(ctx, actor, "exam.updated", "exam", exam.ID, map[string]interface{}{
		"course_id": courseID,
	})

	return dto.NewExamResponse(exam, false), nil
}

func (s *examCatalogService) DeleteExam(ctx context.Context, examID, courseID uint, actor ActivityActor) error {
	exam, err := s.exams.GetByID(ctx, examID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrExamNotFound
		}
		return err
	}

	if exam.CourseID != courseID {
		return ErrExamNotFound
	}

	if err := s.ensureUnlocked(ctx, exam.ID); err != nil {
		return err
	}

	if err := s.exams.Delete(ctx, exam.ID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrExamNotFound
		}
		return err
	}

	s.logger.Info().Uint("exam_id", exam.ID).Msg("exam deleted")
	s.recordActivity(ctx, actor, "exam.deleted", "exam", exam.ID, map[string]interface{}{
		"course_id": courseID,
	})

	return nil
}

func (s *examCatalogService) AddQuestion(ctx context.Context, examID uint, payload dto.QuestionCreateRequest, actor ActivityActor) (dto.QuestionResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.QuestionResponse{}, err
	}

	if _, err := s.exams.GetByID(ctx, examID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.QuestionResponse{}, ErrExamNotFound
		}
		return dto.QuestionResponse{}, err
	}

	if err := s.ensureUnlocked(ctx, examID); err != nil {
		return dto.QuestionResponse{}, err
	}

	options, err := s.buildOptions(payload.Options)
	if err != nil {
		return dto.QuestionResponse{}, err
	}

	question := models.ExamQuestion{
		ExamID:      examID,
		Text:        strings.TrimSpace(s.sanitizer.Sanitize(payload.Text)),
		OrderNumber: payload.OrderNumber,
		Points:      payload.Points,
		Options:     options,
	}

	if err := s.questions.Create(ctx, &question); err != nil {
		return dto.QuestionResponse{}, err
	}

	s.logger.Info().Uint("question_id", question.ID).Uint("exam_id", examID).Msg("question added")
	s.recordActivity(ctx, actor, "question.created", "question", question.ID, map[string]interface{}{
		"exam_id": examID,
	})

	return dto.NewQuestionResponse(question, true), nil
}

func (s *examCatalogService) UpdateQuestion(ctx context.Context, questionID uint, payload dto.QuestionUpdateRequest, actor ActivityActor) (dto.QuestionResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.QuestionResponse{}, err
	}

	question, err := s.questions.GetByID(ctx, questionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.QuestionResponse{}, ErrQuestionNotFound
		}
		return dto.QuestionResponse{}, err
	}

	if err := s.ensureUnlocked(ctx, question.ExamID); err != nil {
		return dto.QuestionResponse{}, err
	}

	if payload.Text != nil {
		question.Text = strings.TrimSpace(s.sanitizer.Sanitize(*payload.Text))
	}
	if payload.OrderNumber != nil {
		question.OrderNumber = *payload.OrderNumber
	}
	if payload.Points != nil {
		question.Points = *payload.Points
	}

	if payload.Options != nil {
		options, err := s.buildOptions(payload.Options)
		if err != nil {
			return dto.QuestionResponse{}, err
		}
		if err := s.questions.ReplaceOptions(ctx, question.ID, options); err != nil {
			return dto.QuestionResponse{}, err
		}
		question.Options = options
	}

	if err := s.questions.Update(ctx, &question); err != nil {
		return dto.QuestionResponse{}, err
	}

	s.logger.Info().Uint("question_id", question.ID).Msg("question updated")
	s.recordActivity(ctx, actor, "question.updated", "question", question.ID, map[string]interface{}{
		"exam_id": question.ExamID,
	})

	return dto.NewQuestionResponse(question, true), nil
}

func (s *examCatalogService) DeleteQuestion(ctx context.Context, questionID uint, actor ActivityActor) error {
	question, err := s.questions.GetByID(ctx, questionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrQuestionNotFound
		}
		return err
	}

	if err := s.ensureUnlocked(ctx, question.ExamID); err != nil {
		return err
	}

	if err := s.questions.Delete(ctx, question.ID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrQuestionNotFound
		}
		return err
	}

	s.logger.Info().Uint("question_id", question.ID).Msg("question deleted")
	s.recordActivity(ctx, actor, "question.deleted", "question", question.ID, map[string]interface{}{
		"exam_id": question.ExamID,
	})

	return nil
}

// ensureUnlocked rejects authoring writes once any submission, started or
// finished, exists for the exam. The freeze protects grading integrity
// retroactively: once a student could have seen the content, it stays fixed.
func (s *examCatalogService) ensureUnlocked(ctx context.Context, examID uint) error {
	locked, err := s.submissions.ExistsForExam(ctx, examID)
	if err != nil {
		return err
	}
	if locked {
		return ErrExamLocked
	}
	return nil
}

// buildOptions sanitizes and validates an authored option set: at least two
// options with non-empty text and exactly one flagged correct.
func (s *examCatalogService) buildOptions(payloads []dto.OptionPayload) ([]models.MCQOption, error) {
	options := make([]models.MCQOption, 0, len(payloads))
	correctCount := 0
	for _, payload := range payloads {
		text := strings.TrimSpace(s.sanitizer.Sanitize(payload.Text))
		if text == "" {
			continue
		}
		if payload.IsCorrect {
			correctCount++
		}
		options = append(options, models.MCQOption{
			Text:        text,
			OrderNumber: payload.OrderNumber,
			IsCorrect:   payload.IsCorrect,
		})
	}

	if len(options) < 2 {
		return nil, ErrTooFewOptions
	}
	if correctCount != 1 {
		return nil, ErrCorrectOptionCount
	}

	return options, nil
}

func (s *examCatalogService) recordActivity(ctx context.Context, actor ActivityActor, action, entityType string, entityID uint, metadata map[string]interface{}) {
	if s.activity == nil {
		return
	}

	id := entityID
	_, _ = s.activity.Record(ctx, ActivityEntry{
		ActorID:    actor.ID,
		ActorRole:  actor.Role,
		Action:     action,
		EntityType: entityType,
		EntityID:   &id,
		Metadata:   metadata,
	})
}
