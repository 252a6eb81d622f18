package providers

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/schema"

	"github.com/ticobot/ticobot/config"
	"github.com/ticobot/ticobot/pkg/models"
)

func TestOllamaLLM_Init(t *testing.T) {
	cfg := &config.Config{
		LLM: config.LLM{
			Model:           "llama3.1:8b",
			OllamaServerURL: "http://localhost:11434",
		},
	}

	llm, err := NewOllamaLLM(context.Background(), cfg)
	require.NoError(t, err)

	assert.Equal(t, "llama3.1:8b", llm.ModelName())
	assert.Equal(t, 131_072, llm.ContextWindow())
	assert.False(t, llm.SupportsFunctionCalling())
}

func TestOllamaLLM_Init_MissingModel(t *testing.T) {
	cfg := &config.Config{
		LLM: config.LLM{
			OllamaServerURL: "http://localhost:11434",
		},
	}

	_, err := NewOllamaLLM(context.Background(), cfg)
	assert.True(t, IsConfigError(err), "Expected a config error, got %v", err)
}

func TestOllamaBaseModel(t *testing.T) {
	tests := []struct {
		model    string
		expected string
	}{
		{"llama3.1:8b", "llama3.1"},
		{"llama3", "llama3"},
		{"mistral:7b-instruct", "mistral"},
		{"nomic-embed-text:latest", "nomic-embed-text"},
	}

	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			if got := ollamaBaseModel(tt.model); got != tt.expected {
				t.Errorf("Expected %q but got %q", tt.expected, got)
			}
		})
	}
}

func TestOllamaLLM_CallOptions(t *testing.T) {
	llm := &OllamaLLM{}

	t.Run("defaults", func(t *testing.T) {
		applied := llms.CallOptions{}
		for _, opt := range llm.callOptions(nil) {
			opt(&applied)
		}
		assert.Equal(t, DefaultTemperature, applied.Temperature)
		assert.Zero(t, applied.MaxTokens)
	})

	t.Run("with options", func(t *testing.T) {
		temperature := 0.3
		topP := 0.9
		applied := llms.CallOptions{}
		for _, opt := range llm.callOptions(&models.GenerationOptions{
			Temperature:   &temperature,
			MaxTokens:     256,
			TopP:          &topP,
			StopSequences: []string{"User:"},
		}) {
			opt(&applied)
		}
		assert.Equal(t, 0.3, applied.Temperature)
		assert.Equal(t, 256, applied.MaxTokens)
		assert.Equal(t, 0.9, applied.TopP)
		assert.Equal(t, []string{"User:"}, applied.StopWords)
	})
}

func TestConvertMessages(t *testing.T) {
	converted := convertMessages([]models.LLMMessage{
		{Role: models.SystemRole, Content: "You answer questions about party platforms."},
		{Role: models.UserRole, Content: "What about housing?"},
		{Role: models.AssistantRole, Content: "The platform proposes rent caps."},
	})

	require.Len(t, converted, 3)
	assert.Equal(t, schema.ChatMessageTypeSystem, converted[0].Role)
	assert.Equal(t, schema.ChatMessageTypeHuman, converted[1].Role)
	assert.Equal(t, schema.ChatMessageTypeAI, converted[2].Role)
}

func TestUsageFromGenerationInfo(t *testing.T) {
	usage := usageFromGenerationInfo(map[string]any{
		"PromptTokens":     12,
		"CompletionTokens": 34,
	})
	assert.Equal(t, 12, usage.PromptTokens)
	assert.Equal(t, 34, usage.CompletionTokens)
	assert.Equal(t, 46, usage.TotalTokens)

	assert.Zero(t, usageFromGenerationInfo(nil))
}

func TestMapOllamaStopReason(t *testing.T) {
	tests := []struct {
		reason   string
		expected models.FinishReason
	}{
		{"", models.FinishReasonStop},
		{"stop", models.FinishReasonStop},
		{"length", models.FinishReasonLength},
		{"max_tokens", models.FinishReasonLength},
	}

	for _, tt := range tests {
		if got := mapOllamaStopReason(tt.reason); got != tt.expected {
			t.Errorf("Expected %q for reason %q but got %q", tt.expected, tt.reason, got)
		}
	}
}

func TestOllamaCompletionStream_Recv(t *testing.T) {
	chunks := make(chan models.StreamChunk, 2)
	chunks <- models.StreamChunk{Content: "partial"}
	chunks <- models.StreamChunk{FinishReason: models.FinishReasonStop}
	close(chunks)

	stream := &ollamaCompletionStream{
		chunks: chunks,
		errCh:  make(chan error, 1),
		cancel: func() {},
	}
	defer stream.Close()

	chunk, err := stream.Recv()
	require.NoError(t, err)
	assert.Equal(t, "partial", chunk.Content)

	chunk, err = stream.Recv()
	require.NoError(t, err)
	assert.Equal(t, models.FinishReasonStop, chunk.FinishReason)

	_, err = stream.Recv()
	assert.ErrorIs(t, err, io.EOF)
}

func TestOllamaCompletionStream_RecvError(t *testing.T) {
	errCh := make(chan error, 1)
	errCh <- NewProviderError(ServiceOllama, ErrKindTransport, "connection refused", nil)

	stream := &ollamaCompletionStream{
		chunks: make(chan models.StreamChunk),
		errCh:  errCh,
		cancel: func() {},
	}
	defer stream.Close()

	_, err := stream.Recv()
	assert.Equal(t, ErrKindTransport, KindOf(err))
}
