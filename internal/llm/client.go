package llm

import (
	"context"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/examgen/backend/internal/examerr"
	"github.com/examgen/backend/pkg/circuitbreaker"
	"github.com/examgen/backend/pkg/logger"
	"github.com/examgen/backend/pkg/retry"
)

// Client talks to the OpenAI-compatible backend for both chat
// completions (question generation) and embeddings. All network
// failures surface as examerr.ErrTransientBackend after the bounded
// retry policy is exhausted.
type Client struct {
	client         *openai.Client
	model          string
	embeddingModel string
	embeddingDim   int
	temperature    float32
	maxTokens      int
	timeout        time.Duration
	cb             *circuitbreaker.Breaker
	retryPolicy    retry.Policy
}

type CompletionRequest struct {
	SystemPrompt string
	UserPrompt   string
	Temperature  float32
	MaxTokens    int
}

type CompletionResponse struct {
	Content          string
	PromptTokens     int
	CompletionTokens int
}

func NewClient(apiKey, model, embeddingModel string, embeddingDim int, temperature float32, maxTokens, timeoutSec int) *Client {
	cb := circuitbreaker.New("llm", circuitbreaker.Config{
		FailureThreshold: 5,
		SuccessThreshold: 2,
		Cooldown:         30 * time.Second,
		Logger:           logger.GetLogger(),
	})

	policy := retry.Policy{
		MaxAttempts: 3,
		BaseDelay:   500 * time.Millisecond,
		MaxDelay:    5 * time.Second,
		Jitter:      0.1,
		Retryable:   []error{examerr.ErrTransientBackend},
		Logger:      logger.GetLogger(),
	}

	if timeoutSec <= 0 {
		timeoutSec = 45
	}

	logger.Info("LLM client initialized",
		zap.String("model", model),
		zap.String("embedding_model", embeddingModel),
		zap.Int("embedding_dim", embeddingDim),
	)

	return &Client{
		client:         openai.NewClient(apiKey),
		model:          model,
		embeddingModel: embeddingModel,
		embeddingDim:   embeddingDim,
		temperature:    temperature,
		maxTokens:      maxTokens,
		timeout:        time.Duration(timeoutSec) * time.Second,
		cb:             cb,
		retryPolicy:    policy,
	}
}

// Complete generates one chat completion. The caller's context bounds
// the whole exchange; a per-call timeout is applied on top so a stuck
// backend becomes a question failure, never a hang.
func (c *Client) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	temperature := req.Temperature
	if temperature == 0 {
		temperature = c.temperature
	}
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = c.maxTokens
	}

	messages := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: req.SystemPrompt},
		{Role: openai.ChatMessageRoleUser, Content: req.UserPrompt},
	}

	var result *CompletionResponse
	err := c.cb.Execute(ctx, func() error {
		return retry.Do(ctx, c.retryPolicy, func() error {
			resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
				Model:       c.model,
				Messages:    messages,
				Temperature: temperature,
				MaxTokens:   maxTokens,
			})
			if err != nil {
				return examerr.Transient(fmt.Errorf("chat completion failed: %w", err))
			}
			if len(resp.Choices) == 0 {
				return examerr.Transient(fmt.Errorf("chat completion returned no choices"))
			}

			logger.Debug("LLM completion generated",
				zap.Int("prompt_tokens", resp.Usage.PromptTokens),
				zap.Int("completion_tokens", resp.Usage.CompletionTokens),
			)

			result = &CompletionResponse{
				Content:          resp.Choices[0].Message.Content,
				PromptTokens:     resp.Usage.PromptTokens,
				CompletionTokens: resp.Usage.CompletionTokens,
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Embed converts texts into vectors, batched, preserving input order.
// It never substitutes zero vectors: any backend failure is returned so
// the caller does not index corrupt similarity data.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	const batchSize = 100
	embeddings := make([][]float32, 0, len(texts))

	for i := 0; i < len(texts); i += batchSize {
		end := min(i+batchSize, len(texts))
		batch := texts[i:end]

		err := c.cb.Execute(ctx, func() error {
			return retry.Do(ctx, c.retryPolicy, func() error {
				resp, err := c.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
					Input: batch,
					Model: openai.EmbeddingModel(c.embeddingModel),
				})
				if err != nil {
					return examerr.Transient(fmt.Errorf("embedding request failed: %w", err))
				}
				if len(resp.Data) != len(batch) {
					return examerr.Transient(fmt.Errorf("embedding count mismatch: got %d, want %d", len(resp.Data), len(batch)))
				}

				for _, data := range resp.Data {
					vec := make([]float32, len(data.Embedding))
					copy(vec, data.Embedding)
					embeddings = append(embeddings, vec)
				}
				return nil
			})
		})
		if err != nil {
			return nil, err
		}
	}

	logger.Debug("batch embeddings generated", zap.Int("count", len(embeddings)))
	return embeddings, nil
}

// Dimension is the configured embedding vector size.
func (c *Client) Dimension() int {
	return c.embeddingDim
}

// Ping is the liveness probe used by the service controller: a minimal
// embedding round trip proves both credentials and connectivity.
func (c *Client) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	_, err := c.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: []string{"ping"},
		Model: openai.EmbeddingModel(c.embeddingModel),
	})
	if err != nil {
		return examerr.Transient(fmt.Errorf("llm liveness probe failed: %w", err))
	}
	return nil
}
