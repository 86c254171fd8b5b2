package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"gorm.io/gorm"

	"github.com/univia/univia-go-api/internal/dto"
	"github.com/univia/univia-go-api/internal/models"
	"github.com/univia/univia-go-api/internal/repository"
)

// ErrNotStarted indicates no submission exists to grade.
var ErrNotStarted = errors.New("exam not started")

// ErrAlreadySubmitted indicates the submission is final; no re-grading,
// no score mutation.
var ErrAlreadySubmitted = errors.New("exam already submitted")

// ErrTimeExpired indicates the submit call arrived after the duration window.
var ErrTimeExpired = errors.New("exam time expired")

// ErrNotSubmitted indicates a result was requested for an open session.
var ErrNotSubmitted = errors.New("exam not submitted yet")

// ErrAnswerOutsideExam is returned in strict mode when an answer references
// a question that does not belong to the submitted exam.
var ErrAnswerOutsideExam = errors.New("answer references a question outside this exam")

// ErrDuplicateAnswer is returned in strict mode when a payload answers the
// same question more than once.
var ErrDuplicateAnswer = errors.New("duplicate answer for question")

// GradingService scores a submitted answer set against the catalog's answer
// key and finalizes the session.
type GradingService interface {
	SubmitExam(ctx context.Context, examID, studentID uint, payload dto.SubmitExamRequest) (dto.ExamResultResponse, error)
	GetExamResult(ctx context.Context, examID, studentID uint) (dto.ExamResultResponse, error)
}

// GradingConfig tunes grading behaviour.
type GradingConfig struct {
	// StrictAnswers rejects the whole submit call when an answer references
	// an unknown or foreign question, instead of silently skipping it.
	StrictAnswers bool
	// ResultCacheTTL bounds how long finalized results stay cached.
	ResultCacheTTL time.Duration
}

type gradingService struct {
	exams       repository.ExamRepository
	submissions repository.SubmissionRepository
	validator   *validator.Validate
	cache       *redis.Client
	events      EventPublisher
	activity    ActivityRecorder
	config      GradingConfig
	logger      zerolog.Logger
	now         func() time.Time
}

// NewGradingService constructs the grading engine. Cache, events and
// activity may be nil; grading never depends on them.
func NewGradingService(
	exams repository.ExamRepository,
	submissions repository.SubmissionRepository,
	validate *validator.Validate,
	cache *redis.Client,
	events EventPublisher,
	activity ActivityRecorder,
	config GradingConfig,
	logger zerolog.Logger,
) GradingService {
	return &gradingService{
		exams:       exams,
		submissions: submissions,
		validator:   validate,
		cache:       cache,
		events:      events,
		activity:    activity,
		config:      config,
		logger:      logger.With().Str("component", "grading_service").Logger(),
		now:         time.Now,
	}
}

func (s *gradingService) SubmitExam(ctx context.Context, examID, studentID uint, payload dto.SubmitExamRequest) (dto.ExamResultResponse, error) {
	tracer := otel.Tracer("github.com/univia/univia-go-api/internal/service/grading")
	ctx, span := tracer.Start(ctx, "grading.submit")
	span.SetAttributes(
		attribute.Int64("grading.exam_id", int64(examID)),
		attribute.Int64("grading.student_id", int64(studentID)),
	)
	defer span.End()

	if err := s.validator.Struct(payload); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "validation_failed")
		return dto.ExamResultResponse{}, err
	}

	submission, err := s.submissions.GetByExamAndStudent(ctx, examID, studentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			span.SetStatus(codes.Error, "not_started")
			return dto.ExamResultResponse{}, ErrNotStarted
		}
		span.RecordError(err)
		return dto.ExamResultResponse{}, err
	}

	if submission.IsSubmitted() {
		span.SetStatus(codes.Error, "already_submitted")
		return dto.ExamResultResponse{}, ErrAlreadySubmitted
	}

	exam, err := s.exams.GetByIDWithQuestions(ctx, examID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.ExamResultResponse{}, ErrExamNotFound
		}
		span.RecordError(err)
		return dto.ExamResultResponse{}, err
	}

	// The duration limit is enforced lazily, right here: the attempt is
	// rejected outright, never partially graded. Submitting exactly at the
	// deadline still succeeds.
	submittedAt := s.now()
	if submittedAt.After(exam.Deadline(submission.StartedAt)) {
		span.SetStatus(codes.Error, "time_expired")
		return dto.ExamResultResponse{}, ErrTimeExpired
	}

	questionsByID := make(map[uint]models.ExamQuestion, len(exam.Questions))
	for _, question := range exam.Questions {
		questionsByID[question.ID] = question
	}

	var (
		score        float64
		correctCount int
		answers      = make([]models.ExamAnswer, 0, len(payload.Answers))
		breakdown    = make([]dto.AnswerBreakdown, 0, len(payload.Answers))
		graded       = make(map[uint]bool, len(payload.Answers))
	)

	for _, answer := range payload.Answers {
		question, ok := questionsByID[answer.QuestionID]
		if !ok {
			// An unknown or foreign question id is dropped rather than
			// failing the whole call; stale clients keep their valid answers.
			if s.config.StrictAnswers {
				span.SetStatus(codes.Error, "answer_outside_exam")
				return dto.ExamResultResponse{}, ErrAnswerOutsideExam
			}
			s.logger.Debug().
				Uint("question_id", answer.QuestionID).
				Uint("exam_id", examID).
				Msg("skipping answer for unknown question")
			continue
		}

		// Each question is graded at most once; repeating a correct answer
		// must not award its points again. First occurrence wins.
		if graded[question.ID] {
			if s.config.StrictAnswers {
				span.SetStatus(codes.Error, "duplicate_answer")
				return dto.ExamResultResponse{}, ErrDuplicateAnswer
			}
			s.logger.Debug().
				Uint("question_id", question.ID).
				Uint("exam_id", examID).
				Msg("skipping duplicate answer")
			continue
		}
		graded[question.ID] = true

		correct := question.CorrectOption()
		isCorrect := correct != nil && correct.ID == answer.SelectedOptionID
		awarded := 0.0
		if isCorrect {
			awarded = question.Points
			correctCount++
		}
		score += awarded

		answers = append(answers, models.ExamAnswer{
			SubmissionID:     submission.ID,
			QuestionID:       question.ID,
			SelectedOptionID: answer.SelectedOptionID,
			IsCorrect:        isCorrect,
			PointsAwarded:    awarded,
		})

		entry := dto.AnswerBreakdown{
			QuestionID:       question.ID,
			QuestionText:     question.Text,
			SelectedOptionID: answer.SelectedOptionID,
			IsCorrect:        isCorrect,
			PointsAwarded:    awarded,
		}
		if correct != nil {
			entry.CorrectOptionID = correct.ID
			entry.CorrectOptionText = correct.Text
		}
		breakdown = append(breakdown, entry)
	}

	submission.SubmittedAt = &submittedAt
	submission.Score = &score

	if err := s.submissions.Finalize(ctx, &submission, answers); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "finalize_failed")
		return dto.ExamResultResponse{}, err
	}

	result := dto.ExamResultResponse{
		ExamID:       exam.ID,
		StudentID:    studentID,
		Score:        score,
		TotalPoints:  exam.TotalPoints,
		Percentage:   percentage(score, exam.TotalPoints),
		CorrectCount: correctCount,
		SubmittedAt:  submittedAt,
		Breakdown:    breakdown,
	}

	span.SetAttributes(
		attribute.Float64("grading.score", score),
		attribute.Int("grading.correct_count", correctCount),
	)

	s.logger.Info().
		Uint("exam_id", exam.ID).
		Uint("student_id", studentID).
		Float64("score", score).
		Int("answers_graded", len(answers)).
		Msg("exam submitted and graded")

	s.cacheResult(ctx, result)
	s.publishSubmitted(ctx, result)
	s.recordGraded(ctx, studentID, submission.ID, result)

	return result, nil
}

// GetExamResult rebuilds the per-question breakdown of a finalized
// submission. Finalized results are immutable, so they are safe to cache.
func (s *gradingService) GetExamResult(ctx context.Context, examID, studentID uint) (dto.ExamResultResponse, error) {
	if cached, ok := s.cachedResult(ctx, examID, studentID); ok {
		return cached, nil
	}

	submission, err := s.submissions.GetByExamAndStudent(ctx, examID, studentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.ExamResultResponse{}, ErrSubmissionNotFound
		}
		return dto.ExamResultResponse{}, err
	}

	if !submission.IsSubmitted() {
		return dto.ExamResultResponse{}, ErrNotSubmitted
	}

	exam, err := s.exams.GetByIDWithQuestions(ctx, examID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.ExamResultResponse{}, ErrExamNotFound
		}
		return dto.ExamResultResponse{}, err
	}

	questionsByID := make(map[uint]models.ExamQuestion, len(exam.Questions))
	for _, question := range exam.Questions {
		questionsByID[question.ID] = question
	}

	correctCount := 0
	breakdown := make([]dto.AnswerBreakdown, 0, len(submission.Answers))
	for _, answer := range submission.Answers {
		entry := dto.AnswerBreakdown{
			QuestionID:       answer.QuestionID,
			SelectedOptionID: answer.SelectedOptionID,
			IsCorrect:        answer.IsCorrect,
			PointsAwarded:    answer.PointsAwarded,
		}
		if answer.IsCorrect {
			correctCount++
		}
		if question, ok := questionsByID[answer.QuestionID]; ok {
			entry.QuestionText = question.Text
			if correct := question.CorrectOption(); correct != nil {
				entry.CorrectOptionID = correct.ID
				entry.CorrectOptionText = correct.Text
			}
		}
		breakdown = append(breakdown, entry)
	}

	var score float64
	if submission.Score != nil {
		score = *submission.Score
	}

	result := dto.ExamResultResponse{
		ExamID:       exam.ID,
		StudentID:    studentID,
		Score:        score,
		TotalPoints:  exam.TotalPoints,
		Percentage:   percentage(score, exam.TotalPoints),
		CorrectCount: correctCount,
		SubmittedAt:  *submission.SubmittedAt,
		Breakdown:    breakdown,
	}

	s.cacheResult(ctx, result)

	return result, nil
}

// percentage guards the zero-total edge: a zero-point exam grades to 0%.
func percentage(score, totalPoints float64) float64 {
	if totalPoints <= 0 {
		return 0
	}
	return score / totalPoints * 100
}

func resultCacheKey(examID, studentID uint) string {
	return fmt.Sprintf("result:exam:%d:student:%d", examID, studentID)
}

func (s *gradingService) cachedResult(ctx context.Context, examID, studentID uint) (dto.ExamResultResponse, bool) {
	if s.cache == nil {
		return dto.ExamResultResponse{}, false
	}

	raw, err := s.cache.Get(ctx, resultCacheKey(examID, studentID)).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.logger.Warn().Err(err).Msg("failed to read result cache")
		}
		return dto.ExamResultResponse{}, false
	}

	var result dto.ExamResultResponse
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		return dto.ExamResultResponse{}, false
	}

	return result, true
}

func (s *gradingService) cacheResult(ctx context.Context, result dto.ExamResultResponse) {
	if s.cache == nil || s.config.ResultCacheTTL <= 0 {
		return
	}

	payload, err := json.Marshal(result)
	if err != nil {
		return
	}

	key := resultCacheKey(result.ExamID, result.StudentID)
	if err := s.cache.Set(ctx, key, payload, s.config.ResultCacheTTL).Err(); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("failed to store result cache")
	}
}

func (s *gradingService) publishSubmitted(ctx context.Context, result dto.ExamResultResponse) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, EventExamSubmitted, result); err != nil {
		s.logger.Warn().Err(err).Msg("failed to publish exam submitted event")
	}
}

func (s *gradingService) recordGraded(ctx context.Context, studentID, submissionID uint, result dto.ExamResultResponse) {
	if s.activity == nil {
		return
	}

	id := submissionID
	_, _ = s.activity.Record(ctx, ActivityEntry{
		ActorID:    studentID,
		ActorRole:  "student",
		Action:     "submission.graded",
		EntityType: "submission",
		EntityID:   &id,
		Metadata: map[string]interface{}{
			"exam_id":    result.ExamID,
			"score":      result.Score,
			"percentage": result.Percentage,
		},
	})
}
