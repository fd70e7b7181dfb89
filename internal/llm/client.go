package llm

import (
	"context"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/docchat/backend/pkg/config"
	"github.com/docchat/backend/pkg/logger"
)

// EmbeddingError marks a failure of the embedding service (credential,
// quota, network). The underlying cause is preserved for errors.Is/As.
type EmbeddingError struct {
	Err error
}

func (e *EmbeddingError) Error() string {
	return fmt.Sprintf("embedding service: %v", e.Err)
}

func (e *EmbeddingError) Unwrap() error {
	return e.Err
}

// GenerationError marks a failure of the generation service.
type GenerationError struct {
	Err error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generation service: %v", e.Err)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

const embeddingBatchSize = 100

// Factory builds clients bound to a caller-supplied credential. Every user
// talks to the model provider with their own API key, so clients are
// constructed per request rather than once at startup.
type Factory struct {
	cfg config.LLMConfig
}

func NewFactory(cfg config.LLMConfig) *Factory {
	return &Factory{cfg: cfg}
}

func (f *Factory) ClientFor(apiKey string) *Client {
	clientConfig := openai.DefaultConfig(apiKey)
	if f.cfg.BaseURL != "" {
		clientConfig.BaseURL = f.cfg.BaseURL
	}

	return &Client{
		api:            openai.NewClientWithConfig(clientConfig),
		model:          f.cfg.Model,
		embeddingModel: f.cfg.EmbeddingModel,
		temperature:    f.cfg.Temperature,
		maxTokens:      f.cfg.MaxTokens,
		timeout:        time.Duration(f.cfg.TimeoutSec) * time.Second,
	}
}

func (f *Factory) ModelName() string {
	return f.cfg.Model
}

// Client wraps the OpenAI-compatible API for one credential. All calls carry
// a bounded timeout; nothing is retried automatically.
type Client struct {
	api            *openai.Client
	model          string
	embeddingModel string
	temperature    float32
	maxTokens      int
	timeout        time.Duration
}

func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	embeddings := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += embeddingBatchSize {
		end := start + embeddingBatchSize
		if end > len(texts) {
			end = len(texts)
		}

		resp, err := c.api.CreateEmbeddings(ctx, openai.EmbeddingRequest{
			Input: texts[start:end],
			Model: openai.EmbeddingModel(c.embeddingModel),
		})
		if err != nil {
			return nil, &EmbeddingError{Err: err}
		}
		if len(resp.Data) != end-start {
			return nil, &EmbeddingError{
				Err: fmt.Errorf("embedding count mismatch: got %d, expected %d", len(resp.Data), end-start),
			}
		}

		for _, data := range resp.Data {
			vector := make([]float32, len(data.Embedding))
			copy(vector, data.Embedding)
			embeddings = append(embeddings, vector)
		}
	}

	logger.Debug("Embeddings generated",
		zap.Int("texts", len(texts)),
		zap.String("model", c.embeddingModel),
	)
	return embeddings, nil
}

func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt,
			},
		},
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	})
	if err != nil {
		return "", &GenerationError{Err: err}
	}
	if len(resp.Choices) == 0 {
		return "", &GenerationError{Err: fmt.Errorf("no completion choices returned")}
	}

	logger.Debug("Completion generated",
		zap.String("model", c.model),
		zap.Int("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens),
	)
	return resp.Choices[0].Message.Content, nil
}
