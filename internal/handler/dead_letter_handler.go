package handler

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/facilitator-activity-tracker/internal/models"
	"github.com/noah-isme/facilitator-activity-tracker/internal/utils"
)

// DeadLetterReader lists jobs that exhausted their delivery attempts.
type DeadLetterReader interface {
	DeadLetters(ctx context.Context, limit int64) ([]models.DeadLetter, error)
}

// DeadLetterHandler exposes dead-lettered notification jobs to operators.
type DeadLetterHandler struct {
	reader DeadLetterReader
	logger zerolog.Logger
}

// NewDeadLetterHandler constructs the handler.
func NewDeadLetterHandler(reader DeadLetterReader, logger zerolog.Logger) *DeadLetterHandler {
	return &DeadLetterHandler{reader: reader, logger: logger.With().Str("component", "dead_letter_handler").Logger()}
}

// Register mounts the handler routes.
func (h *DeadLetterHandler) Register(router fiber.Router) {
	router.Get("/", h.List)
}

// List returns the newest dead letters, bounded by the limit query parameter.
func (h *DeadLetterHandler) List(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 50)
	if limit <= 0 || limit > 500 {
		return utils.SendError(c, fiber.StatusBadRequest, "limit must be between 1 and 500")
	}

	letters, err := h.reader.DeadLetters(c.UserContext(), int64(limit))
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to read dead letters")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to read dead letters")
	}

	return utils.SendSuccess(c, "dead letters retrieved", letters)
}
