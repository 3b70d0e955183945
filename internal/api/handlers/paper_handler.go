package handlers

import (
	"encoding/json"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/examgen/backend/internal/exam"
	"github.com/examgen/backend/internal/storage/models"
	"github.com/examgen/backend/internal/storage/sqlite"
	"github.com/examgen/backend/pkg/logger"
)

type PaperHandler struct {
	service *exam.Service
	db      *sqlite.Client
}

func NewPaperHandler(service *exam.Service, db *sqlite.Client) *PaperHandler {
	return &PaperHandler{service: service, db: db}
}

func (h *PaperHandler) GeneratePaper(c *fiber.Ctx) error {
	var req exam.PaperRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}

	paper, err := h.service.GeneratePaper(c.Context(), req)
	if err != nil {
		logger.Error("paper generation failed", zap.Error(err))
		return respondError(c, err)
	}

	return c.JSON(paper)
}

// LatestPaper returns the most recently assembled paper, superseded on
// every new assembly.
func (h *PaperHandler) LatestPaper(c *fiber.Ctx) error {
	paper := h.service.LatestPaper()
	if paper == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "no paper generated yet",
		})
	}
	return c.JSON(paper)
}

// SaveLatest persists the latest paper into the saved-papers store.
func (h *PaperHandler) SaveLatest(c *fiber.Ctx) error {
	paper := h.service.LatestPaper()
	if paper == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "no paper to save",
		})
	}

	payload, err := json.Marshal(paper)
	if err != nil {
		logger.Error("failed to marshal paper", zap.Error(err))
		return respondError(c, err)
	}

	saved := &models.SavedPaper{
		ID:         paper.ID,
		Heading:    paper.Heading,
		TotalMarks: paper.TotalMarks,
		Payload:    string(payload),
		CreatedAt:  time.Now(),
	}
	if err := h.db.SavePaper(saved); err != nil {
		logger.Error("failed to save paper", zap.Error(err))
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{"id": saved.ID})
}

func (h *PaperHandler) ListSaved(c *fiber.Ctx) error {
	papers, err := h.db.ListPapers()
	if err != nil {
		logger.Error("failed to list papers", zap.Error(err))
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"papers": papers})
}

func (h *PaperHandler) GetSaved(c *fiber.Ctx) error {
	saved, err := h.db.GetPaper(c.Params("id"))
	if err != nil {
		logger.Error("failed to get paper", zap.Error(err))
		return respondError(c, err)
	}
	if saved == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "paper not found",
		})
	}

	var paper models.Paper
	if err := json.Unmarshal([]byte(saved.Payload), &paper); err != nil {
		logger.Error("failed to unmarshal saved paper", zap.Error(err))
		return respondError(c, err)
	}
	return c.JSON(paper)
}

func (h *PaperHandler) DeleteSaved(c *fiber.Ctx) error {
	if err := h.db.DeletePaper(c.Params("id")); err != nil {
		logger.Error("failed to delete paper", zap.Error(err))
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"deleted": c.Params("id")})
}
