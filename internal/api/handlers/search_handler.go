package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/examgen/backend/internal/retrieval"
	"github.com/examgen/backend/pkg/logger"
)

type SearchHandler struct {
	retriever *retrieval.Retriever
}

func NewSearchHandler(retriever *retrieval.Retriever) *SearchHandler {
	return &SearchHandler{retriever: retriever}
}

// Search runs an ad-hoc semantic query over the ingested corpus.
func (h *SearchHandler) Search(c *fiber.Ctx) error {
	var req struct {
		Query string `json:"query"`
		TopK  int    `json:"top_k"`
		DocID string `json:"doc_id"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}
	if req.Query == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "query is required",
		})
	}

	hits, err := h.retriever.Search(c.Context(), req.Query, req.TopK, req.DocID)
	if err != nil {
		logger.Error("search failed", zap.String("query", req.Query), zap.Error(err))
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{"results": hits})
}
