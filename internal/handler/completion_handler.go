package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/univia/univia-go-api/internal/service"
	"github.com/univia/univia-go-api/internal/utils"
)

// CompletionHandler wires the course completion aggregate endpoint.
type CompletionHandler struct {
	service service.CompletionService
	logger  zerolog.Logger
}

// NewCompletionHandler constructs the handler.
func NewCompletionHandler(service service.CompletionService, logger zerolog.Logger) *CompletionHandler {
	return &CompletionHandler{
		service: service,
		logger:  logger.With().Str("component", "completion_handler").Logger(),
	}
}

// Register attaches the completion endpoint under a course scope.
func (h *CompletionHandler) Register(router fiber.Router, studentOnly fiber.Handler) {
	router.Get("/completion", studentOnly, h.check)
}

func (h *CompletionHandler) check(c *fiber.Ctx) error {
	courseID, err := parseUintParam(c, "courseId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	completion, err := h.service.CheckCourseCompletion(c.Context(), userIDFromContext(c), courseID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrEnrollmentNotFound):
			return utils.SendError(c, fiber.StatusNotFound, "enrollment not found")
		case errors.Is(err, service.ErrNoExams):
			return utils.SendError(c, fiber.StatusUnprocessableEntity, err.Error())
		default:
			h.logger.Error().Err(err).Msg("internal server error")
			return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
		}
	}

	return utils.SendSuccess(c, "course completion computed", completion)
}
