package llm

import (
	"context"
	"fmt"
	"log/slog"

	"google.golang.org/genai"

	"github.com/caardbot/caard/internal/types"
)

// Embedder turns text into embedding vectors. Embed produces a query
// vector; EmbedDocument produces a document vector for storage. The two
// task types are not interchangeable: a document indexed as a query
// degrades retrieval quality.
type Embedder interface {
	Embed(ctx context.Context, text string) (types.Embedding, error)
	EmbedDocument(ctx context.Context, text string) (types.Embedding, error)
	Model() string
}

const embeddingDimensions = 768

// GenAIEmbedder embeds text through the GenAI embedding API with a
// bounded retry on transient failures.
type GenAIEmbedder struct {
	client  *genai.Client
	model   string
	retries int
}

// NewGenAIEmbedder creates the GenAI embedding implementation.
func NewGenAIEmbedder(ctx context.Context, apiKey, modelName string, retries int) (*GenAIEmbedder, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("google api key is required for embeddings")
	}
	if modelName == "" {
		modelName = "text-embedding-004"
	}
	if retries <= 0 {
		retries = 3
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	return &GenAIEmbedder{
		client:  client,
		model:   modelName,
		retries: retries,
	}, nil
}

// Model returns the embedding model identifier used to tag vectors.
func (e *GenAIEmbedder) Model() string {
	return e.model
}

// Embed converts text into a query vector, retrying transient failures
// up to the configured bound before surfacing a typed provider error.
func (e *GenAIEmbedder) Embed(ctx context.Context, text string) (types.Embedding, error) {
	return e.embedWithTask(ctx, text, "RETRIEVAL_QUERY")
}

// EmbedDocument converts text into a document vector for storage.
func (e *GenAIEmbedder) EmbedDocument(ctx context.Context, text string) (types.Embedding, error) {
	return e.embedWithTask(ctx, text, "RETRIEVAL_DOCUMENT")
}

func (e *GenAIEmbedder) embedWithTask(ctx context.Context, text, taskType string) (types.Embedding, error) {
	if text == "" {
		return types.Embedding{}, fmt.Errorf("cannot embed empty text")
	}

	var lastErr error
	for attempt := 1; attempt <= e.retries; attempt++ {
		values, err := e.embedOnce(ctx, text, taskType)
		if err == nil {
			if logErr := LogUsage(e.model, types.Usage{PromptTokens: EstimateTokens(text)}); logErr != nil {
				return types.Embedding{}, logErr
			}
			return types.Embedding{Values: values, Model: e.model}, nil
		}
		lastErr = err
		slog.Warn("embedding attempt failed", "attempt", attempt, "error", err.Error(), "model", e.model)
		if ctx.Err() != nil {
			break
		}
	}
	return types.Embedding{}, &ProviderError{Provider: "genai", Err: lastErr}
}

func (e *GenAIEmbedder) embedOnce(ctx context.Context, text, taskType string) ([]float32, error) {
	resp, err := e.client.Models.EmbedContent(ctx, e.model, genai.Text(text), &genai.EmbedContentConfig{
		TaskType:             taskType,
		OutputDimensionality: func() *int32 { v := int32(embeddingDimensions); return &v }(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to embed content: %w", err)
	}
	if resp == nil || len(resp.Embeddings) == 0 || resp.Embeddings[0] == nil {
		return nil, fmt.Errorf("empty embedding response")
	}
	values := resp.Embeddings[0].Values
	if len(values) == embeddingDimensions {
		return values, nil
	}
	if len(values) > embeddingDimensions {
		slog.Warn("embedding dimensions exceed target, truncating", "actual", len(values), "target", embeddingDimensions, "model", e.model)
		return values[:embeddingDimensions], nil
	}
	return nil, fmt.Errorf("embedding dimensions mismatch: got %d want %d", len(values), embeddingDimensions)
}
