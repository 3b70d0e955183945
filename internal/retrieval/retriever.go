package retrieval

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/examgen/backend/internal/embedding"
	"github.com/examgen/backend/internal/metrics"
	"github.com/examgen/backend/internal/storage/models"
	"github.com/examgen/backend/internal/vector"
	"github.com/examgen/backend/pkg/logger"
)

// Retriever answers per-question-type semantic queries against the
// vector index and tracks which chunks already ground earlier questions
// in the same paper.
type Retriever struct {
	embedder   embedding.Embedder
	index      vector.Index
	collection string
}

// Result carries the grounding chunks for one question. Reused is set
// when the retrieval pool was too small to avoid repeating chunks that
// already ground another question; it is never hidden from the caller.
type Result struct {
	Hits   []vector.Hit
	Reused bool
}

func NewRetriever(embedder embedding.Embedder, index vector.Index, collection string) *Retriever {
	return &Retriever{embedder: embedder, index: index, collection: collection}
}

var typeHints = map[models.QuestionType]string{
	models.TypeMCQ: "key facts, definitions and precise factual statements",
	models.TypeSAQ: "concepts that can be explained briefly with examples",
	models.TypeLAQ: "broad themes requiring detailed conceptual explanation",
}

var difficultyHints = map[models.Difficulty]string{
	models.DifficultyEasy:   "fundamental introductory material",
	models.DifficultyMedium: "applied material connecting multiple ideas",
	models.DifficultyHard:   "advanced analytical material and edge cases",
}

// BuildQuery composes the retrieval query string. Pure function of its
// inputs: identical requests always produce identical queries.
func BuildQuery(topic string, qt models.QuestionType, diff models.Difficulty) string {
	parts := make([]string, 0, 3)
	if t := strings.TrimSpace(topic); t != "" {
		parts = append(parts, t)
	}
	if hint, ok := typeHints[qt]; ok {
		parts = append(parts, hint)
	}
	if hint, ok := difficultyHints[diff]; ok {
		parts = append(parts, hint)
	}
	return strings.Join(parts, "; ")
}

// Retrieve returns up to k grounding chunks for one question, skipping
// chunks in used when enough fresh ones exist. When the pool is smaller
// than the demand the deficit is filled with already-used chunks and the
// result is flagged Reused.
func (r *Retriever) Retrieve(ctx context.Context, topic string, qt models.QuestionType, diff models.Difficulty, k int, used map[string]bool) (*Result, error) {
	if k <= 0 {
		k = 5
	}

	query := BuildQuery(topic, qt, diff)
	vectors, err := r.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embedding retrieval query: %w", err)
	}

	// Over-fetch so deduplication against prior questions still leaves
	// enough candidates.
	topK := k + len(used)
	if topK > 50 {
		topK = 50
	}

	hits, err := r.index.Search(ctx, r.collection, vectors[0], topK, nil)
	if err != nil {
		return nil, fmt.Errorf("searching vector index: %w", err)
	}
	metrics.RetrievalResults.Observe(float64(len(hits)))

	fresh := make([]vector.Hit, 0, k)
	var seen []vector.Hit
	for _, h := range hits {
		if used[h.ChunkID] {
			seen = append(seen, h)
			continue
		}
		fresh = append(fresh, h)
		if len(fresh) == k {
			break
		}
	}

	result := &Result{Hits: fresh}
	for len(result.Hits) < k && len(seen) > 0 {
		result.Hits = append(result.Hits, seen[0])
		seen = seen[1:]
		result.Reused = true
	}

	logger.Debug("retrieval completed",
		zap.String("query", query),
		zap.Int("hits", len(result.Hits)),
		zap.Bool("reused", result.Reused),
	)
	return result, nil
}

// Search is the ad-hoc corpus search behind the search endpoint.
func (r *Retriever) Search(ctx context.Context, query string, topK int, docID string) ([]vector.Hit, error) {
	if topK <= 0 {
		topK = 10
	}

	vectors, err := r.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embedding search query: %w", err)
	}

	var filter map[string]string
	if docID != "" {
		filter = map[string]string{"doc_id": docID}
	}

	hits, err := r.index.Search(ctx, r.collection, vectors[0], topK, filter)
	if err != nil {
		return nil, fmt.Errorf("searching vector index: %w", err)
	}
	return hits, nil
}
