package models

import (
	"context"
)

type EmbeddingResponse struct {
	Embedding []float32  `json:"embedding"`
	Model     string     `json:"model"`
	Usage     TokenUsage `json:"usage"`
}

// BatchEmbeddingResponse holds one embedding per input text, in input order.
type BatchEmbeddingResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
	Model      string      `json:"model"`
	Usage      TokenUsage  `json:"usage"`
}

// EmbeddingProvider is the interface implemented by all embedding backends.
// Dimensions is constant for the lifetime of a provider instance and always
// matches the width of the vectors it returns.
type EmbeddingProvider interface {
	GenerateEmbedding(ctx context.Context, text string) (*EmbeddingResponse, error)
	// GenerateBatch embeds texts in a single vendor call where the backend
	// supports it. The response preserves input order.
	GenerateBatch(ctx context.Context, texts []string) (*BatchEmbeddingResponse, error)
	Dimensions() int
	// MaxInputTokens returns the longest input, in tokens, the model accepts.
	MaxInputTokens() int
	ModelName() string
	CountTokens(text string) (int, error)
}
