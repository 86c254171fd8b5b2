package router

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/univia/univia-go-api/internal/config"
	"github.com/univia/univia-go-api/internal/handler"
	"github.com/univia/univia-go-api/internal/middleware"
	"github.com/univia/univia-go-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	ExamHandler       *handler.ExamHandler
	SubmissionHandler *handler.SubmissionHandler
	CompletionHandler *handler.CompletionHandler
	ActivityHandler   *handler.ActivityHandler
	JWTMiddleware     fiber.Handler
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg))
	api.Get("/metrics", observability.MetricsHandler())

	// Use provided JWT middleware, or a no-op if nil
	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}

	instructorOnly := middleware.RequireRole(middleware.RoleInstructor, middleware.RoleAdmin)
	studentOnly := middleware.RequireRole(middleware.RoleStudent)

	courses := api.Group("/courses/:courseId", jwtMiddleware)
	exams := api.Group("/exams", jwtMiddleware)
	questions := api.Group("/questions", jwtMiddleware)

	// Exam catalog scoped under its course
	if deps.ExamHandler != nil {
		deps.ExamHandler.RegisterCourseRoutes(courses, instructorOnly)
		deps.ExamHandler.RegisterQuestionRoutes(exams, questions, instructorOnly)
	}

	// Exam sessions: starting and submitting are throttled per user
	if deps.SubmissionHandler != nil {
		exams.Use("/:examId/start", middleware.RateLimit("exam-start", 10, time.Minute))
		exams.Use("/:examId/submit", middleware.RateLimit("exam-submit", 10, time.Minute))
		deps.SubmissionHandler.RegisterExamRoutes(exams, studentOnly)

		submissions := api.Group("/submissions", jwtMiddleware)
		deps.SubmissionHandler.RegisterAuditRoutes(submissions, instructorOnly)
	}

	if deps.CompletionHandler != nil {
		deps.CompletionHandler.Register(courses, studentOnly)
	}

	if deps.ActivityHandler != nil {
		activity := api.Group("/activity", jwtMiddleware)
		deps.ActivityHandler.Register(activity, instructorOnly)
	}
}
