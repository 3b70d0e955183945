package embedding

import (
	"context"

	"go.uber.org/zap"

	"github.com/examgen/backend/pkg/logger"
	"github.com/examgen/backend/pkg/utils"
)

// Embedder converts texts into fixed-dimension vectors, preserving input
// order. Implementations must fail rather than return zero vectors.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
}

// cacheStore is the lookaside cache contract. *redis.Client satisfies
// it; tests use an in-memory fake.
type cacheStore interface {
	GetEmbedding(ctx context.Context, textHash string) ([]float32, bool, error)
	SetEmbedding(ctx context.Context, textHash string, vec []float32) error
}

// Cached wraps an Embedder with a lookaside cache keyed by text hash.
// Cache failures degrade to the backend, never to an error.
type Cached struct {
	backend Embedder
	cache   cacheStore
}

func NewCached(backend Embedder, cache cacheStore) *Cached {
	return &Cached{backend: backend, cache: cache}
}

func (c *Cached) Dimension() int {
	return c.backend.Dimension()
}

func (c *Cached) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	result := make([][]float32, len(texts))
	var missTexts []string
	var missIdx []int

	for i, text := range texts {
		vec, ok, err := c.cache.GetEmbedding(ctx, utils.HashString(text))
		if err != nil {
			logger.Warn("embedding cache lookup failed", zap.Error(err))
		}
		if ok {
			result[i] = vec
			continue
		}
		missTexts = append(missTexts, text)
		missIdx = append(missIdx, i)
	}

	if len(missTexts) == 0 {
		return result, nil
	}

	vectors, err := c.backend.Embed(ctx, missTexts)
	if err != nil {
		return nil, err
	}

	for j, vec := range vectors {
		result[missIdx[j]] = vec
		if err := c.cache.SetEmbedding(ctx, utils.HashString(missTexts[j]), vec); err != nil {
			logger.Warn("embedding cache write failed", zap.Error(err))
		}
	}

	logger.Debug("embeddings resolved",
		zap.Int("total", len(texts)),
		zap.Int("cache_hits", len(texts)-len(missTexts)),
	)
	return result, nil
}
