package metrics

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	DocumentsIngested = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "examgen_documents_ingested_total",
			Help: "Documents processed by the ingestion coordinator",
		},
		[]string{"status"},
	)

	ChunksIndexed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "examgen_chunks_indexed_total",
			Help: "Chunks upserted into the vector index",
		},
	)

	IngestionBatchFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "examgen_ingestion_batch_failures_total",
			Help: "Embedding/upsert batches that exhausted their retries",
		},
	)

	PapersGenerated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "examgen_papers_generated_total",
			Help: "Papers assembled, by completeness",
		},
		[]string{"complete"},
	)

	QuestionFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "examgen_question_failures_total",
			Help: "Per-question generation failures, by question type",
		},
		[]string{"type"},
	)

	GenerationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "examgen_paper_generation_seconds",
			Help:    "End-to-end paper generation duration",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300},
		},
	)

	RetrievalResults = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "examgen_retrieval_results_count",
			Help:    "Chunks returned per retrieval query",
			Buckets: []float64{0, 1, 2, 5, 10, 20},
		},
	)
)

func Register() {
	prometheus.MustRegister(
		DocumentsIngested,
		ChunksIndexed,
		IngestionBatchFailures,
		PapersGenerated,
		QuestionFailures,
		GenerationDuration,
		RetrievalResults,
	)
}

// Handler exposes the prometheus scrape endpoint on a fiber route.
func Handler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}
