package providers

import (
	"context"
	"errors"
	"fmt"

	"github.com/sashabaranov/go-openai"

	"github.com/ticobot/ticobot/config"
	"github.com/ticobot/ticobot/pkg/models"
)

var _ models.EmbeddingProvider = &OpenAIEmbeddings{}

func NewOpenAIEmbeddings(ctx context.Context, cfg *config.Config) (*OpenAIEmbeddings, error) {
	embeddings := &OpenAIEmbeddings{}
	err := embeddings.Init(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return embeddings, nil
}

// OpenAIEmbeddings generates embeddings with the OpenAI embeddings API.
type OpenAIEmbeddings struct {
	client         *openai.Client
	model          string
	dimensions     int
	maxInputTokens int
	// requestDims asks the vendor for reduced-width vectors. Only valid for
	// the text-embedding-3 family.
	requestDims bool
	counter     *tokenCounter
}

func (e *OpenAIEmbeddings) Init(_ context.Context, cfg *config.Config) error {
	if cfg.Embeddings.OpenAIAPIKey == "" {
		return NewProviderError(ServiceOpenAI, ErrKindConfig, "TICOBOT_OPENAI_API_KEY is not set", nil)
	}

	spec, known := ValidOpenAIEmbeddingModels[cfg.Embeddings.Model]
	if !known && cfg.Embeddings.OpenAIEndpoint == "" {
		return NewProviderError(
			ServiceOpenAI,
			ErrKindConfig,
			fmt.Sprintf("invalid embeddings model %q for %s", cfg.Embeddings.Model, ServiceOpenAI),
			nil,
		)
	}

	dimensions, maxInputTokens, requestDims, err := resolveEmbeddingDimensions(
		ServiceOpenAI, &cfg.Embeddings, spec, known,
	)
	if err != nil {
		return err
	}

	clientConfig := openai.DefaultConfig(cfg.Embeddings.OpenAIAPIKey)
	if cfg.Embeddings.OpenAIEndpoint != "" {
		clientConfig.BaseURL = cfg.Embeddings.OpenAIEndpoint
	}
	clientConfig.HTTPClient = NewRetryableHTTPClient(
		MaxAPIRequestAttempts,
		APITimeout,
	).StandardClient()

	counter, err := newTokenCounter()
	if err != nil {
		return NewProviderError(ServiceOpenAI, ErrKindConfig, "error initializing tokenizer", err)
	}

	e.client = openai.NewClientWithConfig(clientConfig)
	e.model = cfg.Embeddings.Model
	e.dimensions = dimensions
	e.maxInputTokens = maxInputTokens
	e.requestDims = requestDims
	e.counter = counter
	return nil
}

func (e *OpenAIEmbeddings) GenerateEmbedding(
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

func (e *OpenAIEmbeddings) GenerateBatch(
	ctx context.Context,
	texts []string,
) (*models.BatchEmbeddingResponse, error) {
	if e.client == nil {
		return nil, NewProviderError(ServiceOpenAI, ErrKindConfig, "embeddings client is not initialized", nil)
	}
	if len(texts) == 0 {
		return nil, errors.New("no texts provided")
	}

	req := openai.EmbeddingRequest{
		Input: texts,
		Model: openai.EmbeddingModel(e.model),
	}
	if e.requestDims {
		req.Dimensions = e.dimensions
	}

	thisCtx, cancel := context.WithTimeout(ctx, APITimeout)
	defer cancel()

	resp, err := e.client.CreateEmbeddings(thisCtx, req)
	if err != nil {
		return nil, classifyVendorError(ServiceOpenAI, "error while creating embeddings", err)
	}
	if len(resp.Data) == 0 {
		return nil, NewProviderError(ServiceOpenAI, ErrKindEmptyResponse, "embedding response contained no data", nil)
	}
	if len(resp.Data) != len(texts) {
		return nil, NewProviderError(
			ServiceOpenAI,
			ErrKindMalformedResponse,
			fmt.Sprintf("expected %d embeddings, got %d", len(texts), len(resp.Data)),
			nil,
		)
	}

	// Vectors are keyed by the response index field, not slice position.
	embeddings := make([][]float32, len(texts))
	for _, data := range resp.Data {
		if data.Index < 0 || data.Index >= len(embeddings) {
			return nil, NewProviderError(
				ServiceOpenAI,
				ErrKindMalformedResponse,
				fmt.Sprintf("embedding index %d out of range", data.Index),
				nil,
			)
		}
		if len(data.Embedding) != e.dimensions {
			return nil, NewProviderError(
				ServiceOpenAI,
				ErrKindMalformedResponse,
				fmt.Sprintf(
					"embedding width %d does not match configured dimensions %d",
					len(data.Embedding), e.dimensions,
				),
				nil,
			)
		}
		embeddings[data.Index] = data.Embedding
	}
	for i, embedding := range embeddings {
		if embedding == nil {
			return nil, NewProviderError(
				ServiceOpenAI,
				ErrKindMalformedResponse,
				fmt.Sprintf("no embedding returned for input %d", i),
				nil,
			)
		}
	}

	return &models.BatchEmbeddingResponse{
		Embeddings: embeddings,
		Model:      string(resp.Model),
		Usage: models.TokenUsage{
			PromptTokens: resp.Usage.PromptTokens,
			TotalTokens:  resp.Usage.TotalTokens,
		},
	}, nil
}

func (e *OpenAIEmbeddings) Dimensions() int {
	return e.dimensions
}

func (e *OpenAIEmbeddings) MaxInputTokens() int {
	return e.maxInputTokens
}

func (e *OpenAIEmbeddings) ModelName() string {
	return e.model
}

func (e *OpenAIEmbeddings) CountTokens(text string) (int, error) {
	return e.counter.CountTokens(text)
}
