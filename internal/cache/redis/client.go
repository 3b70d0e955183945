package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/examgen/backend/pkg/logger"
)

// Client caches embedding vectors keyed by text hash so re-ingesting a
// document (or repeating a retrieval query) skips the embedding backend.
type Client struct {
	client *redis.Client
	ttl    time.Duration
}

func NewClient(host string, port int, password string, db int, ttl time.Duration) (*Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", host, port),
		Password: password,
		DB:       db,
	})

	if _, err := client.Ping(context.Background()).Result(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.Info("Redis client initialized", zap.String("addr", fmt.Sprintf("%s:%d", host, port)))

	return &Client{client: client, ttl: ttl}, nil
}

func (c *Client) Close() error {
	return c.client.Close()
}

// GetEmbedding returns the cached vector for textHash, or false on miss.
// Cache errors are reported, not fatal: the caller falls back to the
// embedding backend.
func (c *Client) GetEmbedding(ctx context.Context, textHash string) ([]float32, bool, error) {
	data, err := c.client.Get(ctx, embeddingKey(textHash)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get cached embedding: %w", err)
	}

	var vec []float32
	if err := json.Unmarshal(data, &vec); err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal cached embedding: %w", err)
	}

	logger.Debug("embedding cache hit", zap.String("text_hash", textHash))
	return vec, true, nil
}

func (c *Client) SetEmbedding(ctx context.Context, textHash string, vec []float32) error {
	data, err := json.Marshal(vec)
	if err != nil {
		return fmt.Errorf("failed to marshal embedding: %w", err)
	}

	if err := c.client.Set(ctx, embeddingKey(textHash), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache embedding: %w", err)
	}
	return nil
}

func embeddingKey(textHash string) string {
	return fmt.Sprintf("embedding:%s", textHash)
}
