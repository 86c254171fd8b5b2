package handler

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/univia/univia-go-api/internal/dto"
	"github.com/univia/univia-go-api/internal/service"
	"github.com/univia/univia-go-api/internal/utils"
)

// SubmissionHandler wires the exam-taking HTTP routes: session start,
// submission/grading, status and result reads, and the audit toggles.
type SubmissionHandler struct {
	sessions service.ExamSessionService
	grading  service.GradingService
	logger   zerolog.Logger
}

// NewSubmissionHandler constructs the handler.
func NewSubmissionHandler(sessions service.ExamSessionService, grading service.GradingService, logger zerolog.Logger) *SubmissionHandler {
	return &SubmissionHandler{
		sessions: sessions,
		grading:  grading,
		logger:   logger.With().Str("component", "submission_handler").Logger(),
	}
}

// RegisterExamRoutes attaches the student-facing session endpoints.
func (h *SubmissionHandler) RegisterExamRoutes(router fiber.Router, studentOnly fiber.Handler) {
	router.Post("/:examId/start", studentOnly, h.start)
	router.Post("/:examId/submit", studentOnly, h.submit)
	router.Get("/:examId/status", studentOnly, h.status)
	router.Get("/:examId/result", studentOnly, h.result)
}

// RegisterAuditRoutes attaches the soft-delete/restore toggles.
func (h *SubmissionHandler) RegisterAuditRoutes(router fiber.Router, instructorOnly fiber.Handler) {
	router.Delete("/:submissionId", instructorOnly, h.delete)
	router.Post("/:submissionId/restore", instructorOnly, h.restore)
}

func (h *SubmissionHandler) start(c *fiber.Ctx) error {
	examID, err := parseUintParam(c, "examId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	submission, err := h.sessions.StartExam(c.Context(), examID, userIDFromContext(c))
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "exam started", submission)
}

func (h *SubmissionHandler) submit(c *fiber.Ctx) error {
	examID, err := parseUintParam(c, "examId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.SubmitExamRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	result, err := h.grading.SubmitExam(c.Context(), examID, userIDFromContext(c), payload)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "exam submitted", result)
}

func (h *SubmissionHandler) status(c *fiber.Ctx) error {
	examID, err := parseUintParam(c, "examId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	status, err := h.sessions.GetStatus(c.Context(), examID, userIDFromContext(c))
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "submission status retrieved", status)
}

func (h *SubmissionHandler) result(c *fiber.Ctx) error {
	examID, err := parseUintParam(c, "examId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	result, err := h.grading.GetExamResult(c.Context(), examID, userIDFromContext(c))
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "exam result retrieved", result)
}

func (h *SubmissionHandler) delete(c *fiber.Ctx) error {
	submissionID, err := parseUintParam(c, "submissionId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	if err := h.sessions.DeleteSubmission(c.Context(), submissionID, actorFromContext(c)); err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "submission deleted", fiber.Map{"id": submissionID})
}

func (h *SubmissionHandler) restore(c *fiber.Ctx) error {
	submissionID, err := parseUintParam(c, "submissionId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	if err := h.sessions.RestoreSubmission(c.Context(), submissionID, actorFromContext(c)); err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "submission restored", fiber.Map{"id": submissionID})
}

func (h *SubmissionHandler) handleError(c *fiber.Ctx, err error) error {
	var validationErrors validator.ValidationErrors
	switch {
	case errors.Is(err, service.ErrExamNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "exam not found")
	case errors.Is(err, service.ErrNotStarted):
		return utils.SendError(c, fiber.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrSubmissionNotFound), errors.Is(err, service.ErrNotSubmitted):
		return utils.SendError(c, fiber.StatusNotFound, "result not found")
	case errors.Is(err, service.ErrAlreadyStarted),
		errors.Is(err, service.ErrAlreadySubmitted),
		errors.Is(err, service.ErrTimeExpired):
		return utils.SendError(c, fiber.StatusConflict, err.Error())
	case errors.Is(err, service.ErrNoQuestions):
		return utils.SendError(c, fiber.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, service.ErrAnswerOutsideExam), errors.Is(err, service.ErrDuplicateAnswer):
		return utils.SendError(c, fiber.StatusUnprocessableEntity, err.Error())
	case errors.As(err, &validationErrors):
		return utils.SendError(c, fiber.StatusBadRequest, validationErrors.Error())
	default:
		h.logger.Error().Err(err).Msg("internal server error")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}
}
