package service

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"gorm.io/gorm"

	"github.com/univia/univia-go-api/internal/dto"
	"github.com/univia/univia-go-api/internal/models"
	"github.com/univia/univia-go-api/internal/repository"
)

// ErrEnrollmentNotFound indicates the student is not enrolled in the course,
// or the course itself is missing.
var ErrEnrollmentNotFound = errors.New("enrollment not found")

// ErrNoExams indicates the course has no exams yet, so completion is undefined.
var ErrNoExams = errors.New("course has no exams yet")

// passThresholdPercent is the minimum percentage to pass an exam and the
// minimum average to complete a course.
const passThresholdPercent = 60.0

// CompletionService derives a persisted course-level completion status and
// grade from a student's submissions across all of the course's exams. The
// aggregate is recomputed on demand, never incrementally maintained.
type CompletionService interface {
	CheckCourseCompletion(ctx context.Context, studentID, courseID uint) (dto.CompletionResponse, error)
}

type completionService struct {
	enrollments repository.EnrollmentRepository
	exams       repository.ExamRepository
	submissions repository.SubmissionRepository
	events      EventPublisher
	activity    ActivityRecorder
	logger      zerolog.Logger
}

// NewCompletionService builds the aggregator.
func NewCompletionService(
	enrollments repository.EnrollmentRepository,
	exams repository.ExamRepository,
	submissions repository.SubmissionRepository,
	events EventPublisher,
	activity ActivityRecorder,
	logger zerolog.Logger,
) CompletionService {
	return &completionService{
		enrollments: enrollments,
		exams:       exams,
		submissions: submissions,
		events:      events,
		activity:    activity,
		logger:      logger.With().Str("component", "completion_service").Logger(),
	}
}

func (s *completionService) CheckCourseCompletion(ctx context.Context, studentID, courseID uint) (dto.CompletionResponse, error) {
	tracer := otel.Tracer("github.com/univia/univia-go-api/internal/service/completion")
	ctx, span := tracer.Start(ctx, "completion.check")
	span.SetAttributes(
		attribute.Int64("completion.student_id", int64(studentID)),
		attribute.Int64("completion.course_id", int64(courseID)),
	)
	defer span.End()

	enrollment, err := s.enrollments.GetByStudentAndCourse(ctx, studentID, courseID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			span.SetStatus(codes.Error, "enrollment_not_found")
			return dto.CompletionResponse{}, ErrEnrollmentNotFound
		}
		span.RecordError(err)
		return dto.CompletionResponse{}, err
	}
	if enrollment.Course.ID == 0 {
		span.SetStatus(codes.Error, "course_not_found")
		return dto.CompletionResponse{}, ErrEnrollmentNotFound
	}

	exams, err := s.exams.ListByCourse(ctx, courseID)
	if err != nil {
		span.RecordError(err)
		return dto.CompletionResponse{}, err
	}
	if len(exams) == 0 {
		span.SetStatus(codes.Error, "no_exams")
		return dto.CompletionResponse{}, ErrNoExams
	}

	examIDs := make([]uint, 0, len(exams))
	for _, exam := range exams {
		examIDs = append(examIDs, exam.ID)
	}

	submissions, err := s.submissions.ListByStudentAndExams(ctx, studentID, examIDs)
	if err != nil {
		span.RecordError(err)
		return dto.CompletionResponse{}, err
	}

	submissionByExam := make(map[uint]models.ExamSubmission, len(submissions))
	for _, submission := range submissions {
		submissionByExam[submission.ExamID] = submission
	}

	var (
		breakdown      = make([]dto.ExamCompletionEntry, 0, len(exams))
		submittedCount int
		scoreSum       float64
		pointsSum      float64
	)

	for _, exam := range exams {
		entry := dto.ExamCompletionEntry{
			ExamID:      exam.ID,
			ExamTitle:   exam.Title,
			TotalPoints: exam.TotalPoints,
		}

		submission, ok := submissionByExam[exam.ID]
		if ok && submission.IsSubmitted() {
			score := 0.0
			if submission.Score != nil {
				score = *submission.Score
			}

			entry.Submitted = true
			entry.Score = score
			entry.Percentage = percentage(score, exam.TotalPoints)
			entry.Passed = entry.Percentage >= passThresholdPercent

			submittedCount++
			scoreSum += score
			pointsSum += exam.TotalPoints
		}

		breakdown = append(breakdown, entry)
	}

	// The average runs over submitted exams only; an unstarted exam neither
	// helps nor hurts the score, it just withholds completion.
	averageScore := percentage(scoreSum, pointsSum)

	response := dto.CompletionResponse{
		CourseID:       courseID,
		StudentID:      studentID,
		AverageScore:   averageScore,
		TotalExams:     len(exams),
		SubmittedExams: submittedCount,
		Breakdown:      breakdown,
	}

	if submittedCount < len(exams) {
		// Enrollment is left untouched until every exam is submitted.
		response.Status = models.EnrollmentStatusInProgress
		span.SetAttributes(attribute.String("completion.status", response.Status))
		return response, nil
	}

	if averageScore >= passThresholdPercent {
		response.Status = models.EnrollmentStatusCompleted
		response.GradeLetter = letterGrade(averageScore)
	} else {
		response.Status = models.EnrollmentStatusFailed
		response.GradeLetter = "F"
	}

	grade := averageScore
	enrollment.Status = response.Status
	enrollment.FinalGrade = &grade
	enrollment.GradeLetter = response.GradeLetter

	if err := s.enrollments.Update(ctx, &enrollment); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "enrollment_update_failed")
		return dto.CompletionResponse{}, err
	}

	span.SetAttributes(
		attribute.String("completion.status", response.Status),
		attribute.Float64("completion.average_score", averageScore),
	)

	s.logger.Info().
		Uint("student_id", studentID).
		Uint("course_id", courseID).
		Str("status", response.Status).
		Float64("average_score", averageScore).
		Str("grade_letter", response.GradeLetter).
		Msg("course completion persisted")

	s.publishCompleted(ctx, response)
	s.recordCompletion(ctx, studentID, enrollment.ID, response)

	return response, nil
}

// letterGrade maps an average percentage onto the fixed grade bands.
func letterGrade(average float64) string {
	switch {
	case average >= 97:
		return "A+"
	case average >= 93:
		return "A"
	case average >= 90:
		return "A-"
	case average >= 87:
		return "B+"
	case average >= 83:
		return "B"
	case average >= 80:
		return "B-"
	case average >= 77:
		return "C+"
	case average >= 73:
		return "C"
	case average >= 70:
		return "C-"
	case average >= 67:
		return "D+"
	case average >= 63:
		return "D"
	case average >= 60:
		return "D-"
	default:
		return "F"
	}
}

func (s *completionService) publishCompleted(ctx context.Context, response dto.CompletionResponse) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, EventCourseCompleted, response); err != nil {
		s.logger.Warn().Err(err).Msg("failed to publish course completed event")
	}
}

func (s *completionService) recordCompletion(ctx context.Context, studentID, enrollmentID uint, response dto.CompletionResponse) {
	if s.activity == nil {
		return
	}

	id := enrollmentID
	_, _ = s.activity.Record(ctx, ActivityEntry{
		ActorID:    studentID,
		ActorRole:  "student",
		Action:     "enrollment.completion_updated",
		EntityType: "enrollment",
		EntityID:   &id,
		Metadata: map[string]interface{}{
			"course_id":     response.CourseID,
			"status":        response.Status,
			"average_score": response.AverageScore,
			"grade_letter":  response.GradeLetter,
		},
	})
}
