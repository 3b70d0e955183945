package handlers

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/examgen/backend/internal/examerr"
)

// statusFor maps pipeline errors onto HTTP status codes. Failures keep
// their reason: a generation call returns a paper or a clear error,
// never a silently padded paper.
func statusFor(err error) int {
	switch {
	case errors.Is(err, examerr.ErrServiceNotReady):
		return fiber.StatusServiceUnavailable
	case errors.Is(err, examerr.ErrNoExtractableText):
		return fiber.StatusUnprocessableEntity
	case errors.Is(err, examerr.ErrTransientBackend):
		return fiber.StatusBadGateway
	case strings.Contains(err.Error(), "invalid paper request"):
		return fiber.StatusBadRequest
	default:
		return fiber.StatusInternalServerError
	}
}

func respondError(c *fiber.Ctx, err error) error {
	return c.Status(statusFor(err)).JSON(fiber.Map{
		"error": err.Error(),
	})
}
