package ingestion

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/examgen/backend/internal/chunker"
	"github.com/examgen/backend/internal/embedding"
	"github.com/examgen/backend/internal/examerr"
	"github.com/examgen/backend/internal/metrics"
	"github.com/examgen/backend/internal/pdf"
	"github.com/examgen/backend/internal/storage/models"
	"github.com/examgen/backend/internal/vector"
	"github.com/examgen/backend/pkg/logger"
	"github.com/examgen/backend/pkg/retry"
	"github.com/examgen/backend/pkg/utils"
)

// store is the document metadata persistence the coordinator needs.
// *sqlite.Client satisfies it; tests use an in-memory fake.
type store interface {
	UpsertDocument(doc *models.Document) error
	SetDocumentStatus(docID string, status models.IngestStatus, failureReason string) error
	UpsertChunks(chunks []models.Chunk) error
}

type Config struct {
	Collection    string
	ChunkSize     int
	ChunkOverlap  int
	BatchSize     int
	MaxRetries    int
	MaxConcurrent int
}

// Coordinator turns one document into vector index entries: chunk, embed
// in batches, upsert. Chunk ids derive from document id and position, so
// re-running ingestion overwrites instead of duplicating.
type Coordinator struct {
	store       store
	embedder    embedding.Embedder
	index       vector.Index
	collection  string
	chunkSize   int
	overlap     int
	batchSize   int
	retryPolicy retry.Policy
	sem         *semaphore.Weighted
}

func NewCoordinator(st store, embedder embedding.Embedder, index vector.Index, cfg Config) *Coordinator {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = chunker.DefaultChunkSize
	}
	if cfg.ChunkOverlap < 0 {
		cfg.ChunkOverlap = chunker.DefaultOverlap
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 32
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 2
	}

	return &Coordinator{
		store:      st,
		embedder:   embedder,
		index:      index,
		collection: cfg.Collection,
		chunkSize:  cfg.ChunkSize,
		overlap:    cfg.ChunkOverlap,
		batchSize:  cfg.BatchSize,
		retryPolicy: retry.Policy{
			MaxAttempts: cfg.MaxRetries,
			BaseDelay:   300 * time.Millisecond,
			MaxDelay:    5 * time.Second,
			Jitter:      0.2,
			Retryable:   []error{examerr.ErrTransientBackend},
			Logger:      logger.GetLogger(),
		},
		sem: semaphore.NewWeighted(int64(cfg.MaxConcurrent)),
	}
}

// IngestPDF extracts text from raw PDF bytes and ingests the document.
// The document id is the content hash, making repeat uploads idempotent.
func (c *Coordinator) IngestPDF(ctx context.Context, filename string, data []byte) (*models.IngestionResult, error) {
	text, err := pdf.ExtractTextBytes(data)
	if err != nil {
		return nil, fmt.Errorf("extracting %s: %w", filename, err)
	}

	now := time.Now()
	doc := &models.Document{
		ID:        utils.HashBytes(data),
		Filename:  filename,
		RawText:   text,
		Status:    models.IngestPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	return c.Ingest(ctx, doc)
}

// Ingest runs the full pipeline for one document. Failed batches are
// retried up to the configured bound; on exhaustion the document is
// marked failed but succeeded batches stay indexed. There is no
// all-or-nothing rollback: the result states exactly what was achieved,
// and re-running Ingest is safe.
func (c *Coordinator) Ingest(ctx context.Context, doc *models.Document) (*models.IngestionResult, error) {
	if err := c.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer c.sem.Release(1)

	logger.Info("ingesting document",
		zap.String("doc_id", doc.ID),
		zap.String("filename", doc.Filename),
	)

	doc.Status = models.IngestRunning
	if err := c.store.UpsertDocument(doc); err != nil {
		return nil, fmt.Errorf("recording document: %w", err)
	}

	chunks := chunker.Split(doc.ID, doc.RawText, c.chunkSize, c.overlap)
	if len(chunks) == 0 {
		c.store.SetDocumentStatus(doc.ID, models.IngestFailed, examerr.ErrNoExtractableText.Error())
		return nil, examerr.ErrNoExtractableText
	}

	result := &models.IngestionResult{
		DocID:       doc.ID,
		Filename:    doc.Filename,
		ChunksTotal: len(chunks),
	}

	for start := 0; start < len(chunks); start += c.batchSize {
		end := min(start+c.batchSize, len(chunks))
		batch := chunks[start:end]

		err := retry.Do(ctx, c.retryPolicy, func() error {
			return c.indexBatch(ctx, doc, batch)
		})
		if err != nil {
			logger.Error("batch failed after retries",
				zap.String("doc_id", doc.ID),
				zap.Int("batch_start", start),
				zap.Error(err),
			)
			result.Failures = append(result.Failures, models.BatchFailure{
				BatchStart: start,
				BatchSize:  len(batch),
				Reason:     err.Error(),
			})
			metrics.IngestionBatchFailures.Inc()
			continue
		}

		if err := c.store.UpsertChunks(batch); err != nil {
			logger.Warn("failed to persist chunk metadata", zap.Error(err))
		}
		result.ChunksIndexed += len(batch)
	}

	metrics.ChunksIndexed.Add(float64(result.ChunksIndexed))

	if len(result.Failures) > 0 {
		reason := fmt.Sprintf("%d of %d chunks failed to index", result.ChunksTotal-result.ChunksIndexed, result.ChunksTotal)
		if err := c.store.SetDocumentStatus(doc.ID, models.IngestFailed, reason); err != nil {
			logger.Warn("failed to record failed status", zap.Error(err))
		}
		metrics.DocumentsIngested.WithLabelValues("failed").Inc()
		return result, fmt.Errorf("%w: %s", examerr.ErrIngestionPartial, reason)
	}

	doc.Status = models.IngestDone
	doc.ChunkCount = result.ChunksIndexed
	doc.UpdatedAt = time.Now()
	if err := c.store.UpsertDocument(doc); err != nil {
		logger.Warn("failed to record ingested status", zap.Error(err))
	}
	metrics.DocumentsIngested.WithLabelValues("ingested").Inc()

	logger.Info("document ingested",
		zap.String("doc_id", doc.ID),
		zap.Int("chunks", result.ChunksIndexed),
	)
	return result, nil
}

func (c *Coordinator) indexBatch(ctx context.Context, doc *models.Document, batch []models.Chunk) error {
	texts := make([]string, len(batch))
	for i, ch := range batch {
		texts[i] = ch.Text
	}

	vectors, err := c.embedder.Embed(ctx, texts)
	if err != nil {
		return err
	}
	if len(vectors) != len(batch) {
		return examerr.Transient(fmt.Errorf("embedding count mismatch: got %d, want %d", len(vectors), len(batch)))
	}

	records := make([]vector.Record, len(batch))
	for i, ch := range batch {
		records[i] = vector.Record{
			ID:         ch.ID,
			Vector:     vectors[i],
			Text:       ch.Text,
			DocID:      ch.DocID,
			ChunkIndex: ch.Index,
			Filename:   doc.Filename,
		}
	}
	return c.index.Upsert(ctx, c.collection, records)
}

// IngestDirectory best-effort ingests every PDF in dir at startup.
// Individual failures are logged and skipped.
func (c *Coordinator) IngestDirectory(ctx context.Context, dir string) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		logger.Info("no PDF folder found, skipping startup ingestion", zap.String("dir", dir))
		return
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), ".pdf") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			logger.Warn("failed to read PDF", zap.String("file", entry.Name()), zap.Error(err))
			continue
		}
		if _, err := c.IngestPDF(ctx, entry.Name(), data); err != nil {
			logger.Warn("startup ingestion failed", zap.String("file", entry.Name()), zap.Error(err))
		}
	}
}
