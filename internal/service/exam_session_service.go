package service

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/univia/univia-go-api/internal/dto"
	"github.com/univia/univia-go-api/internal/models"
	"github.com/univia/univia-go-api/internal/repository"
)

// ErrAlreadyStarted indicates a submission already exists for the
// (exam, student) pair.
var ErrAlreadyStarted = errors.New("exam already started")

// ErrNoQuestions indicates the exam has no questions to take.
var ErrNoQuestions = errors.New("exam has no questions to take")

// ErrSubmissionNotFound indicates the submission was not located.
var ErrSubmissionNotFound = errors.New("submission not found")

// ExamSessionService creates and tracks the single allowed attempt per
// (exam, student) pair. Sessions move NotStarted -> Started -> Submitted and
// never back; the submitted transition belongs to the grading engine.
type ExamSessionService interface {
	StartExam(ctx context.Context, examID, studentID uint) (dto.SubmissionResponse, error)
	GetStatus(ctx context.Context, examID, studentID uint) (dto.SubmissionStatusResponse, error)
	DeleteSubmission(ctx context.Context, submissionID uint, actor ActivityActor) error
	RestoreSubmission(ctx context.Context, submissionID uint, actor ActivityActor) error
}

type examSessionService struct {
	exams       repository.ExamRepository
	questions   repository.QuestionRepository
	submissions repository.SubmissionRepository
	activity    ActivityRecorder
	logger      zerolog.Logger
	now         func() time.Time
}

// NewExamSessionService builds the session manager.
func NewExamSessionService(
	exams repository.ExamRepository,
	questions repository.QuestionRepository,
	submissions repository.SubmissionRepository,
	activity ActivityRecorder,
	logger zerolog.Logger,
) ExamSessionService {
	return &examSessionService{
		exams:       exams,
		questions:   questions,
		submissions: submissions,
		activity:    activity,
		logger:      logger.With().Str("component", "exam_session_service").Logger(),
		now:         time.Now,
	}
}

// StartExam opens the single attempt. The insert races against concurrent
// starts on the unique (exam_id, student_id) index rather than on a
// check-then-insert read, so the loser fails cleanly with ErrAlreadyStarted.
func (s *examSessionService) StartExam(ctx context.Context, examID, studentID uint) (dto.SubmissionResponse, error) {
	exam, err := s.exams.GetByID(ctx, examID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.SubmissionResponse{}, ErrExamNotFound
		}
		return dto.SubmissionResponse{}, err
	}

	count, err := s.questions.CountByExam(ctx, exam.ID)
	if err != nil {
		return dto.SubmissionResponse{}, err
	}
	if count == 0 {
		return dto.SubmissionResponse{}, ErrNoQuestions
	}

	submission := models.ExamSubmission{
		ExamID:    exam.ID,
		StudentID: studentID,
		StartedAt: s.now(),
	}

	if err := s.submissions.Create(ctx, &submission); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return dto.SubmissionResponse{}, ErrAlreadyStarted
		}
		return dto.SubmissionResponse{}, err
	}

	s.logger.Info().
		Uint("exam_id", exam.ID).
		Uint("student_id", studentID).
		Time("started_at", submission.StartedAt).
		Msg("exam started")

	return dto.NewSubmissionResponse(submission, exam), nil
}

// GetStatus is a pure read projection of the current row. An absent
// submission is a valid state, not an error.
func (s *examSessionService) GetStatus(ctx context.Context, examID, studentID uint) (dto.SubmissionStatusResponse, error) {
	exam, err := s.exams.GetByID(ctx, examID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.SubmissionStatusResponse{}, ErrExamNotFound
		}
		return dto.SubmissionStatusResponse{}, err
	}

	submission, err := s.submissions.GetByExamAndStudent(ctx, exam.ID, studentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// A soft-deleted attempt still blocks the unique index, so the
			// student cannot restart; report it as voided, not as not_started.
			voided, verr := s.submissions.AttemptExists(ctx, exam.ID, studentID)
			if verr != nil {
				return dto.SubmissionStatusResponse{}, verr
			}
			if voided {
				return dto.SubmissionStatusResponse{State: dto.SubmissionStateVoided}, nil
			}
			return dto.SubmissionStatusResponse{State: dto.SubmissionStateNotStarted}, nil
		}
		return dto.SubmissionStatusResponse{}, err
	}

	deadline := exam.Deadline(submission.StartedAt)
	status := dto.SubmissionStatusResponse{
		State:       dto.SubmissionStateStarted,
		Open:        !s.now().After(deadline),
		StartedAt:   &submission.StartedAt,
		SubmittedAt: submission.SubmittedAt,
		Score:       submission.Score,
		DeadlineAt:  &deadline,
	}
	if submission.IsSubmitted() {
		status.State = dto.SubmissionStateSubmitted
		status.Open = false
	}

	return status, nil
}

// DeleteSubmission soft-deletes a submission for audit purposes. The row
// stays behind the unique index, so the exam does not reopen to the student.
func (s *examSessionService) DeleteSubmission(ctx context.Context, submissionID uint, actor ActivityActor) error {
	submission, err := s.submissions.GetByID(ctx, submissionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrSubmissionNotFound
		}
		return err
	}

	if err := s.submissions.SoftDelete(ctx, submission.ID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrSubmissionNotFound
		}
		return err
	}

	s.logger.Info().Uint("submission_id", submission.ID).Msg("submission soft-deleted")
	s.recordToggle(ctx, actor, "submission.deleted", submission)

	return nil
}

// RestoreSubmission reverses an audit soft-delete.
func (s *examSessionService) RestoreSubmission(ctx context.Context, submissionID uint, actor ActivityActor) error {
	submission, err := s.submissions.GetByIDUnscoped(ctx, submissionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrSubmissionNotFound
		}
		return err
	}

	if err := s.submissions.Restore(ctx, submission.ID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrSubmissionNotFound
		}
		return err
	}

	s.logger.Info().Uint("submission_id", submission.ID).Msg("submission restored")
	s.recordToggle(ctx, actor, "submission.restored", submission)

	return nil
}

func (s *examSessionService) recordToggle(ctx context.Context, actor ActivityActor, action string, submission models.ExamSubmission) {
	if s.activity == nil {
		return
	}

	id := submission.ID
	_, _ = s.activity.Record(ctx, ActivityEntry{
		ActorID:    actor.ID,
		ActorRole:  actor.Role,
		Action:     action,
		EntityType: "submission",
		EntityID:   &id,
		Metadata: map[string]interface{}{
			"exam_id":    submission.ExamID,
			"student_id": submission.StudentID,
		},
	})
}
