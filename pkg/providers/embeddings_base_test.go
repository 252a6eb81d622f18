package providers

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ticobot/ticobot/config"
)

func TestResolveEmbeddingDimensions(t *testing.T) {
	spec := ValidOpenAIEmbeddingModels["text-embedding-3-small"]

	t.Run("native width when dimensions unset", func(t *testing.T) {
		dims, maxTokens, requestDims, err := resolveEmbeddingDimensions(
			ServiceOpenAI,
			&config.EmbeddingsConfig{Model: "text-embedding-3-small"},
			spec,
			true,
		)
		assert.NoError(t, err)
		assert.Equal(t, 1536, dims)
		assert.Equal(t, 8191, maxTokens)
		assert.False(t, requestDims)
	})

	t.Run("native width accepted explicitly", func(t *testing.T) {
		dims, _, requestDims, err := resolveEmbeddingDimensions(
			ServiceOpenAI,
			&config.EmbeddingsConfig{Model: "text-embedding-3-small", Dimensions: 1536},
			spec,
			true,
		)
		assert.NoError(t, err)
		assert.Equal(t, 1536, dims)
		assert.False(t, requestDims)
	})

	t.Run("reduced width for reducible model", func(t *testing.T) {
		dims, _, requestDims, err := resolveEmbeddingDimensions(
			ServiceOpenAI,
			&config.EmbeddingsConfig{Model: "text-embedding-3-small", Dimensions: 512},
			spec,
			true,
		)
		assert.NoError(t, err)
		assert.Equal(t, 512, dims)
		assert.True(t, requestDims)
	})

	t.Run("width above native is rejected", func(t *testing.T) {
		_, _, _, err := resolveEmbeddingDimensions(
			ServiceOpenAI,
			&config.EmbeddingsConfig{Model: "text-embedding-3-small", Dimensions: 4096},
			spec,
			true,
		)
		assert.True(t, IsConfigError(err), "Expected a config error, got %v", err)
	})

	t.Run("non-reducible model rejects other widths", func(t *testing.T) {
		adaSpec := ValidOpenAIEmbeddingModels["text-embedding-ada-002"]
		_, _, _, err := resolveEmbeddingDimensions(
			ServiceOpenAI,
			&config.EmbeddingsConfig{Model: "text-embedding-ada-002", Dimensions: 512},
			adaSpec,
			true,
		)
		assert.True(t, IsConfigError(err), "Expected a config error, got %v", err)
	})

	t.Run("unknown model requires dimensions", func(t *testing.T) {
		_, _, _, err := resolveEmbeddingDimensions(
			ServiceOpenAI,
			&config.EmbeddingsConfig{Model: "custom-embedder"},
			embeddingModelSpec{},
			false,
		)
		assert.True(t, IsConfigError(err), "Expected a config error, got %v", err)
	})

	t.Run("unknown model with dimensions", func(t *testing.T) {
		dims, maxTokens, requestDims, err := resolveEmbeddingDimensions(
			ServiceOpenAI,
			&config.EmbeddingsConfig{Model: "custom-embedder", Dimensions: 384},
			embeddingModelSpec{},
			false,
		)
		assert.NoError(t, err)
		assert.Equal(t, 384, dims)
		assert.Equal(t, DefaultEmbeddingMaxInputTokens, maxTokens)
		assert.False(t, requestDims)
	})
}
