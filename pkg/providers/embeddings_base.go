package providers

import (
	"fmt"

	"github.com/ticobot/ticobot/config"
)

// embeddingModelSpec pins the native vector width and input limit of a known
// embedding model.
type embeddingModelSpec struct {
	Dimensions     int
	MaxInputTokens int
	// Reducible models accept a dimensions request parameter and return
	// truncated, renormalized vectors.
	Reducible bool
}

var ValidOpenAIEmbeddingModels = map[string]embeddingModelSpec{
	"text-embedding-3-small": {Dimensions: 1536, MaxInputTokens: 8191, Reducible: true},
	"text-embedding-3-large": {Dimensions: 3072, MaxInputTokens: 8191, Reducible: true},
	"text-embedding-ada-002": {Dimensions: 1536, MaxInputTokens: 8191},
}

var ValidOllamaEmbeddingModels = map[string]embeddingModelSpec{
	"nomic-embed-text":  {Dimensions: 768, MaxInputTokens: 8192},
	"mxbai-embed-large": {Dimensions: 1024, MaxInputTokens: 512},
	"all-minilm":        {Dimensions: 384, MaxInputTokens: 256},
}

// DefaultEmbeddingMaxInputTokens is assumed for models missing from the
// tables above, such as custom deployments behind an endpoint override.
const DefaultEmbeddingMaxInputTokens = 8191

// resolveEmbeddingDimensions reconciles the configured dimensions with the
// model's native width. The returned requestDims is true when the vendor
// must be asked for a reduced width. A mismatch that the model cannot honor
// is a config error; the adapter never silently corrects dimensions.
func resolveEmbeddingDimensions(
	provider string,
	cfg *config.EmbeddingsConfig,
	spec embeddingModelSpec,
	known bool,
) (dimensions, maxInputTokens int, requestDims bool, err error) {
	if !known {
		if cfg.Dimensions <= 0 {
			return 0, 0, false, NewProviderError(
				provider,
				ErrKindConfig,
				fmt.Sprintf("embeddings.dimensions must be set for unknown model %q", cfg.Model),
				nil,
			)
		}
		return cfg.Dimensions, DefaultEmbeddingMaxInputTokens, false, nil
	}

	switch {
	case cfg.Dimensions == 0 || cfg.Dimensions == spec.Dimensions:
		return spec.Dimensions, spec.MaxInputTokens, false, nil
	case spec.Reducible && cfg.Dimensions < spec.Dimensions:
		return cfg.Dimensions, spec.MaxInputTokens, true, nil
	default:
		return 0, 0, false, NewProviderError(
			provider,
			ErrKindConfig,
			fmt.Sprintf(
				"embeddings.dimensions %d is not supported by %s (native width %d)",
				cfg.Dimensions, cfg.Model, spec.Dimensions,
			),
			nil,
		)
	}
}
