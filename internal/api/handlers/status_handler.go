package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/examgen/backend/internal/exam"
)

type StatusHandler struct {
	controller *exam.Controller
}

func NewStatusHandler(controller *exam.Controller) *StatusHandler {
	return &StatusHandler{controller: controller}
}

func (h *StatusHandler) Status(c *fiber.Ctx) error {
	state, reason := h.controller.Status()
	resp := fiber.Map{"state": state}
	if reason != "" {
		resp["failure_reason"] = reason
	}
	return c.JSON(resp)
}

// Initialize re-runs the liveness probes. Valid from failed as well as
// uninitialized; a no-op guard rejects concurrent attempts.
func (h *StatusHandler) Initialize(c *fiber.Ctx) error {
	if err := h.controller.Initialize(c.Context()); err != nil {
		state, reason := h.controller.Status()
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"state":          state,
			"failure_reason": reason,
		})
	}

	state, _ := h.controller.Status()
	return c.JSON(fiber.Map{"state": state})
}
