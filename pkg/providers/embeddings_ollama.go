package providers

import (
	"context"
	"errors"
	"fmt"

	"github.com/tmc/langchaingo/llms/ollama"

	"github.com/ticobot/ticobot/config"
	"github.com/ticobot/ticobot/pkg/models"
)

var _ models.EmbeddingProvider = &OllamaEmbeddings{}

func NewOllamaEmbeddings(ctx context.Context, cfg *config.Config) (*OllamaEmbeddings, error) {
	embeddings := &OllamaEmbeddings{}
	err := embeddings.Init(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return embeddings, nil
}

// OllamaEmbeddings generates embeddings against a local Ollama server.
type OllamaEmbeddings struct {
	client         *ollama.LLM
	model          string
	dimensions     int
	maxInputTokens int
	counter        *tokenCounter
}

func (e *OllamaEmbeddings) Init(_ context.Context, cfg *config.Config) error {
	if cfg.Embeddings.Model == "" {
		return NewProviderError(ServiceOllama, ErrKindConfig, "embeddings model is not set", nil)
	}

	spec, known := ValidOllamaEmbeddingModels[ollamaBaseModel(cfg.Embeddings.Model)]
	dimensions, maxInputTokens, _, err := resolveEmbeddingDimensions(
		ServiceOllama, &cfg.Embeddings, spec, known,
	)
	if err != nil {
		return err
	}

	client, err := ollama.New(
		ollama.WithServerURL(cfg.Embeddings.OllamaServerURL),
		ollama.WithModel(cfg.Embeddings.Model),
	)
	if err != nil {
		return NewProviderError(ServiceOllama, ErrKindConfig, "error initializing ollama client", err)
	}

	counter, err := newTokenCounter()
	if err != nil {
		return NewProviderError(ServiceOllama, ErrKindConfig, "error initializing tokenizer", err)
	}

	e.client = client
	e.model = cfg.Embeddings.Model
	e.dimensions = dimensions
	e.maxInputTokens = maxInputTokens
	e.counter = counter
	return nil
}

func (e *OllamaEmbeddings) GenerateEmbedding(
	ctx context.Context,
	text string,
) (*models.EmbeddingResponse, error) {
	batch, err := e.GenerateBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return &models.EmbeddingResponse{
		Embedding: batch.Embeddings[0],
		Model:     batch.Model,
		Usage:     batch.Usage,
	}, nil
}

func (e *OllamaEmbeddings) GenerateBatch(
	ctx context.Context,
	texts []string,
) (*models.BatchEmbeddingResponse, error) {
	if e.client == nil {
		return nil, NewProviderError(ServiceOllama, ErrKindConfig, "embeddings client is not initialized", nil)
	}
	if len(texts) == 0 {
		return nil, errors.New("no texts provided")
	}

	thisCtx, cancel := context.WithTimeout(ctx, APITimeout)
	defer cancel()

	embeddings, err := e.client.CreateEmbedding(thisCtx, texts)
	if err != nil {
		return nil, NewProviderError(ServiceOllama, ErrKindTransport, "error while creating embeddings", err)
	}
	if len(embeddings) == 0 {
		return nil, NewProviderError(ServiceOllama, ErrKindEmptyResponse, "embedding response contained no data", nil)
	}
	if len(embeddings) != len(texts) {
		return nil, NewProviderError(
			ServiceOllama,
			ErrKindMalformedResponse,
			fmt.Sprintf("expected %d embeddings, got %d", len(texts), len(embeddings)),
			nil,
		)
	}
	for i, embedding := range embeddings {
		if len(embedding) != e.dimensions {
			return nil, NewProviderError(
				ServiceOllama,
				ErrKindMalformedResponse,
				fmt.Sprintf(
					"embedding %d width %d does not match configured dimensions %d",
					i, len(embedding), e.dimensions,
				),
				nil,
			)
		}
	}

	// Ollama reports no usage for embeddings; count the inputs locally so
	// callers still see token volume.
	promptTokens := 0
	for _, text := range texts {
		count, err := e.counter.CountTokens(text)
		if err == nil {
			promptTokens += count
		}
	}

	return &models.BatchEmbeddingResponse{
		Embeddings: embeddings,
		Model:      e.model,
		Usage: models.TokenUsage{
			PromptTokens: promptTokens,
			TotalTokens:  promptTokens,
		},
	}, nil
}

func (e *OllamaEmbeddings) Dimensions() int {
	return e.dimensions
}

func (e *OllamaEmbeddings) MaxInputTokens() int {
	return e.maxInputTokens
}

func (e *OllamaEmbeddings) ModelName() string {
	return e.model
}

func (e *OllamaEmbeddings) CountTokens(text string) (int, error) {
	return e.counter.CountTokens(text)
}
