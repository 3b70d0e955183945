package handlers

import (
	"errors"
	"io"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/examgen/backend/internal/examerr"
	"github.com/examgen/backend/internal/ingestion"
	"github.com/examgen/backend/internal/storage/sqlite"
	"github.com/examgen/backend/pkg/logger"
)

type DocumentHandler struct {
	coordinator *ingestion.Coordinator
	db          *sqlite.Client
}

func NewDocumentHandler(coordinator *ingestion.Coordinator, db *sqlite.Client) *DocumentHandler {
	return &DocumentHandler{coordinator: coordinator, db: db}
}

// UploadDocument accepts one PDF as multipart field "file" and ingests
// it. A partially indexed document comes back as 207 with the achieved
// counts; re-uploading the same file resumes idempotently.
func (h *DocumentHandler) UploadDocument(c *fiber.Ctx) error {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "multipart field 'file' is required",
		})
	}

	file, err := fileHeader.Open()
	if err != nil {
		logger.Error("failed to open uploaded file", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "could not read uploaded file",
		})
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		logger.Error("failed to read uploaded file", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "could not read uploaded file",
		})
	}

	result, err := h.coordinator.IngestPDF(c.Context(), fileHeader.Filename, data)
	if err != nil {
		if errors.Is(err, examerr.ErrIngestionPartial) {
			return c.Status(fiber.StatusMultiStatus).JSON(result)
		}
		logger.Error("ingestion failed", zap.String("filename", fileHeader.Filename), zap.Error(err))
		return respondError(c, err)
	}

	return c.JSON(result)
}

func (h *DocumentHandler) ListDocuments(c *fiber.Ctx) error {
	docs, err := h.db.ListDocuments()
	if err != nil {
		logger.Error("failed to list documents", zap.Error(err))
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"documents": docs})
}
