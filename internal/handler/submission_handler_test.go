package handler_test

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/univia/univia-go-api/internal/handler"
	"github.com/univia/univia-go-api/internal/models"
	"github.com/univia/univia-go-api/internal/repository"
	"github.com/univia/univia-go-api/internal/service"
)

func setupSubmissionApp(t *testing.T) (*fiber.App, *gorm.DB) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.Exam{},
		&models.ExamQuestion{},
		&models.MCQOption{},
		&models.ExamSubmission{},
		&models.ExamAnswer{},
	))

	examRepo := repository.NewExamRepository(db)
	questionRepo := repository.NewQuestionRepository(db)
	submissionRepo := repository.NewSubmissionRepository(db)
	validate := validator.New(validator.WithRequiredStructEnabled())

	sessions := service.NewExamSessionService(examRepo, questionRepo, submissionRepo, nil, zerolog.Nop())
	grading := service.NewGradingService(examRepo, submissionRepo, validate, nil, nil, nil, service.GradingConfig{}, zerolog.Nop())
	h := handler.NewSubmissionHandler(sessions, grading, zerolog.Nop())

	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		c.Locals("user_id", uint(42))
		c.Locals("user_role", "student")
		return c.Next()
	})
	noop := func(c *fiber.Ctx) error { return c.Next() }
	h.RegisterExamRoutes(app.Group("/api/v1/exams"), noop)
	h.RegisterAuditRoutes(app.Group("/api/v1/submissions"), noop)

	return app, db
}

func seedExam(t *testing.T, db *gorm.DB) (models.Exam, models.ExamQuestion) {
	t.Helper()

	exam := models.Exam{CourseID: 1, Title: "Quiz", ScheduledAt: time.Now(), DurationMinutes: 60, TotalPoints: 10}
	require.NoError(t, db.Create(&exam).Error)

	question := models.ExamQuestion{
		ExamID: exam.ID,
		Text:   "Pick one",
		Points: 10,
		Options: []models.MCQOption{
			{Text: "Right", IsCorrect: true},
			{Text: "Wrong"},
		},
	}
	require.NoError(t, db.Create(&question).Error)
	return exam, question
}

func TestSubmissionHandlerFullFlow(t *testing.T) {
	app, db := setupSubmissionApp(t)
	exam, question := seedExam(t, db)

	// Start
	req := httptest.NewRequest(http.MethodPost, fmt.Sprintf("/api/v1/exams/%d/start", exam.ID), nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	// A second start conflicts
	req = httptest.NewRequest(http.MethodPost, fmt.Sprintf("/api/v1/exams/%d/start", exam.ID), nil)
	resp, err = app.Test(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusConflict, resp.StatusCode)

	// Status while open
	req = httptest.NewRequest(http.MethodGet, fmt.Sprintf("/api/v1/exams/%d/status", exam.ID), nil)
	resp, err = app.Test(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var status struct {
		Data struct {
			State string `json:"state"`
			Open  bool   `json:"open"`
		} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&status))
	require.Equal(t, "started", status.Data.State)
	require.True(t, status.Data.Open)

	// Result before submit is not found
	req = httptest.NewRequest(http.MethodGet, fmt.Sprintf("/api/v1/exams/%d/result", exam.ID), nil)
	resp, err = app.Test(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	// Submit
	resp = postJSON(t, app, fmt.Sprintf("/api/v1/exams/%d/submit", exam.ID), map[string]interface{}{
		"answers": []map[string]interface{}{
			{"question_id": question.ID, "selected_option_id": question.Options[0].ID},
		},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result struct {
		Data struct {
			Score        float64 `json:"score"`
			Percentage   float64 `json:"percentage"`
			CorrectCount int     `json:"correct_count"`
		} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	require.Equal(t, 10.0, result.Data.Score)
	require.Equal(t, 100.0, result.Data.Percentage)
	require.Equal(t, 1, result.Data.CorrectCount)

	// A second submit conflicts
	resp = postJSON(t, app, fmt.Sprintf("/api/v1/exams/%d/submit", exam.ID), map[string]interface{}{
		"answers": []map[string]interface{}{},
	})
	require.Equal(t, http.StatusConflict, resp.StatusCode)

	// Result after submit
	req = httptest.NewRequest(http.MethodGet, fmt.Sprintf("/api/v1/exams/%d/result", exam.ID), nil)
	resp, err = app.Test(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestSubmissionHandlerStartMissingExam(t *testing.T) {
	app, _ := setupSubmissionApp(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/exams/999999/start", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSubmissionHandlerSubmitWithoutStart(t *testing.T) {
	app, db := setupSubmissionApp(t)
	exam, question := seedExam(t, db)

	resp := postJSON(t, app, fmt.Sprintf("/api/v1/exams/%d/submit", exam.ID), map[string]interface{}{
		"answers": []map[string]interface{}{
			{"question_id": question.ID, "selected_option_id": question.Options[0].ID},
		},
	})
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSubmissionHandlerDeleteAndRestore(t *testing.T) {
	app, db := setupSubmissionApp(t)
	exam, _ := seedExam(t, db)

	submission := models.ExamSubmission{ExamID: exam.ID, StudentID: 7, StartedAt: time.Now()}
	require.NoError(t, db.Create(&submission).Error)

	req := httptest.NewRequest(http.MethodDelete, fmt.Sprintf("/api/v1/submissions/%d", submission.ID), nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	req = httptest.NewRequest(http.MethodPost, fmt.Sprintf("/api/v1/submissions/%d/restore", submission.ID), nil)
	resp, err = app.Test(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
}
