package service

import (
	"context"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"

	"github.com/univia/univia-go-api/internal/dto"
	"github.com/univia/univia-go-api/internal/models"
)

func newCatalogFixture() (*memoryExamRepo, *memoryQuestionRepo, *memorySubmissionRepo, *recorderStub, ExamCatalogService) {
	exams := newMemoryExamRepo()
	questions := newMemoryQuestionRepo()
	submissions := newMemorySubmissionRepo()
	recorder := &recorderStub{}
	validate := validator.New(validator.WithRequiredStructEnabled())
	svc := NewExamCatalogService(exams, questions, submissions, validate, recorder, testLogger())
	return exams, questions, submissions, recorder, svc
}

func validOptions() []dto.OptionPayload {
	return []dto.OptionPayload{
		{Text: "Paris", OrderNumber: 1, IsCorrect: true},
		{Text: "Lyon", OrderNumber: 2},
		{Text: "Nice", OrderNumber: 3},
	}
}

func TestExamCatalogServiceCreateExam(t *testing.T) {
	_, _, _, recorder, svc := newCatalogFixture()

	payload := dto.ExamCreateRequest{
		Title:           "Midterm",
		ScheduledAt:     time.Now().Add(24 * time.Hour).Format(time.RFC3339),
		DurationMinutes: 90,
		TotalPoints:     100,
	}

	exam, err := svc.CreateExam(context.Background(), 7, payload, ActivityActor{ID: 3, Role: "instructor"})
	require.NoError(t, err)
	require.Equal(t, uint(7), exam.CourseID)
	require.Equal(t, "Midterm", exam.Title)
	require.False(t, exam.Locked)
	require.Len(t, recorder.entries, 1)
	require.Equal(t, "exam.created", recorder.entries[0].Action)
}

func TestExamCatalogServiceCreateExamValidation(t *testing.T) {
	_, _, _, _, svc := newCatalogFixture()

	payload := dto.ExamCreateRequest{
		Title:           "ab",
		ScheduledAt:     time.Now().Format(time.RFC3339),
		DurationMinutes: 90,
		TotalPoints:     100,
	}

	_, err := svc.CreateExam(context.Background(), 7, payload, ActivityActor{})
	require.Error(t, err)
}

func TestExamCatalogServiceCreateExamStripsMarkup(t *testing.T) {
	_, _, _, _, svc := newCatalogFixture()

	payload := dto.ExamCreateRequest{
		Title:           "<script>alert(1)</script>Midterm",
		ScheduledAt:     time.Now().Format(time.RFC3339),
		DurationMinutes: 60,
		TotalPoints:     50,
	}

	exam, err := svc.CreateExam(context.Background(), 1, payload, ActivityActor{})
	require.NoError(t, err)
	require.Equal(t, "Midterm", exam.Title)
}

func TestExamCatalogServiceLockBlocksWrites(t *testing.T) {
	exams, _, submissions, _, svc := newCatalogFixture()

	exam := models.Exam{CourseID: 1, Title: "Final", ScheduledAt: time.Now(), DurationMinutes: 60, TotalPoints: 100}
	require.NoError(t, exams.Create(context.Background(), &exam))

	submission := models.ExamSubmission{ExamID: exam.ID, StudentID: 9, StartedAt: time.Now()}
	require.NoError(t, submissions.Create(context.Background(), &submission))

	title := "Renamed"
	_, err := svc.UpdateExam(context.Background(), exam.ID, 1, dto.ExamUpdateRequest{Title: &title}, ActivityActor{})
	require.ErrorIs(t, err, ErrExamLocked)

	err = svc.DeleteExam(context.Background(), exam.ID, 1, ActivityActor{})
	require.ErrorIs(t, err, ErrExamLocked)

	_, err = svc.AddQuestion(context.Background(), exam.ID, dto.QuestionCreateRequest{
		Text:    "What is the capital of France?",
		Points:  10,
		Options: validOptions(),
	}, ActivityActor{})
	require.ErrorIs(t, err, ErrExamLocked)
}

func TestExamCatalogServiceLockSurvivesSoftDelete(t *testing.T) {
	exams, _, submissions, _, svc := newCatalogFixture()

	exam := models.Exam{CourseID: 1, Title: "Final", ScheduledAt: time.Now(), DurationMinutes: 60, TotalPoints: 100}
	require.NoError(t, exams.Create(context.Background(), &exam))

	submission := models.ExamSubmission{ExamID: exam.ID, StudentID: 9, StartedAt: time.Now()}
	require.NoError(t, submissions.Create(context.Background(), &submission))
	require.NoError(t, submissions.SoftDelete(context.Background(), submission.ID))

	title := "Renamed"
	_, err := svc.UpdateExam(context.Background(), exam.ID, 1, dto.ExamUpdateRequest{Title: &title}, ActivityActor{})
	require.ErrorIs(t, err, ErrExamLocked)
}

func TestExamCatalogServiceCourseMismatch(t *testing.T) {
	exams, _, _, _, svc := newCatalogFixture()

	exam := models.Exam{CourseID: 1, Title: "Final", ScheduledAt: time.Now(), DurationMinutes: 60, TotalPoints: 100}
	require.NoError(t, exams.Create(context.Background(), &exam))

	_, err := svc.GetExamWithQuestions(context.Background(), exam.ID, 2, false)
	require.ErrorIs(t, err, ErrExamNotFound)

	title := "Renamed"
	_, err = svc.UpdateExam(context.Background(), exam.ID, 2, dto.ExamUpdateRequest{Title: &title}, ActivityActor{})
	require.ErrorIs(t, err, ErrExamNotFound)

	err = svc.DeleteExam(context.Background(), exam.ID, 2, ActivityActor{})
	require.ErrorIs(t, err, ErrExamNotFound)
}

func TestExamCatalogServiceAddQuestionOptionRules(t *testing.T) {
	exams, _, _, _, svc := newCatalogFixture()

	exam := models.Exam{CourseID: 1, Title: "Quiz", ScheduledAt: time.Now(), DurationMinutes: 30, TotalPoints: 10}
	require.NoError(t, exams.Create(context.Background(), &exam))

	base := dto.QuestionCreateRequest{Text: "Pick one answer", Points: 5}

	payload := base
	payload.Options = []dto.OptionPayload{{Text: "Only", IsCorrect: true}}
	_, err := svc.AddQuestion(context.Background(), exam.ID, payload, ActivityActor{})
	require.ErrorIs(t, err, ErrTooFewOptions)

	payload = base
	payload.Options = []dto.OptionPayload{
		{Text: "A", IsCorrect: true},
		{Text: "B", IsCorrect: true},
	}
	_, err = svc.AddQuestion(context.Background(), exam.ID, payload, ActivityActor{})
	require.ErrorIs(t, err, ErrCorrectOptionCount)

	payload = base
	payload.Options = []dto.OptionPayload{
		{Text: "A"},
		{Text: "B"},
	}
	_, err = svc.AddQuestion(context.Background(), exam.ID, payload, ActivityActor{})
	require.ErrorIs(t, err, ErrCorrectOptionCount)

	// Whitespace-only options are dropped before the count is checked.
	payload = base
	payload.Options = []dto.OptionPayload{
		{Text: "   ", IsCorrect: true},
		{Text: "A"},
		{Text: "B"},
	}
	_, err = svc.AddQuestion(context.Background(), exam.ID, payload, ActivityActor{})
	require.ErrorIs(t, err, ErrCorrectOptionCount)

	payload = base
	payload.Options = validOptions()
	question, err := svc.AddQuestion(context.Background(), exam.ID, payload, ActivityActor{})
	require.NoError(t, err)
	require.Len(t, question.Options, 3)
}

func TestExamCatalogServiceAnswerKeyVisibility(t *testing.T) {
	exams, _, _, _, svc := newCatalogFixture()

	exam := models.Exam{
		CourseID:        1,
		Title:           "Quiz",
		ScheduledAt:     time.Now(),
		DurationMinutes: 30,
		TotalPoints:     10,
		Questions: []models.ExamQuestion{
			{
				ID:   1,
				Text: "Pick one",
				Options: []models.MCQOption{
					{ID: 1, Text: "Right", IsCorrect: true},
					{ID: 2, Text: "Wrong"},
				},
			},
		},
	}
	require.NoError(t, exams.Create(context.Background(), &exam))

	hidden, err := svc.GetExamWithQuestions(context.Background(), exam.ID, 1, false)
	require.NoError(t, err)
	require.Len(t, hidden.Questions, 1)
	for _, option := range hidden.Questions[0].Options {
		require.Nil(t, option.IsCorrect)
	}

	revealed, err := svc.GetExamWithQuestions(context.Background(), exam.ID, 1, true)
	require.NoError(t, err)
	require.NotNil(t, revealed.Questions[0].Options[0].IsCorrect)
	require.True(t, *revealed.Questions[0].Options[0].IsCorrect)
}

func TestExamCatalogServiceListExamsLockedFlag(t *testing.T) {
	exams, _, submissions, _, svc := newCatalogFixture()

	open := models.Exam{CourseID: 1, Title: "Open", ScheduledAt: time.Now(), DurationMinutes: 30, TotalPoints: 10}
	locked := models.Exam{CourseID: 1, Title: "Locked", ScheduledAt: time.Now(), DurationMinutes: 30, TotalPoints: 10}
	require.NoError(t, exams.Create(context.Background(), &open))
	require.NoError(t, exams.Create(context.Background(), &locked))

	submission := models.ExamSubmission{ExamID: locked.ID, StudentID: 5, StartedAt: time.Now()}
	require.NoError(t, submissions.Create(context.Background(), &submission))

	results, err := svc.ListExams(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, results, 2)
	require.False(t, results[0].Locked)
	require.True(t, results[1].Locked)
}
