package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ticobot/ticobot/config"
	"github.com/ticobot/ticobot/pkg/models"
)

func TestNewCompatLLM_MissingAPIKey(t *testing.T) {
	cfg := &config.Config{
		LLM: config.LLM{
			Model: "gpt-4o-mini",
		},
	}

	_, err := NewOpenAILLM(context.Background(), cfg)
	assert.Error(t, err)
	assert.True(t, IsConfigError(err), "Expected a config error, got %v", err)
	assert.ErrorContains(t, err, "TICOBOT_OPENAI_API_KEY")
}

func TestNewCompatLLM_InvalidModel(t *testing.T) {
	cfg := &config.Config{
		LLM: config.LLM{
			Model:        "gpt-nonexistent",
			OpenAIAPIKey: "test-key",
		},
	}

	_, err := NewOpenAILLM(context.Background(), cfg)
	assert.Error(t, err)
	assert.True(t, IsConfigError(err), "Expected a config error, got %v", err)
}

func TestNewCompatLLM_EndpointSkipsModelValidation(t *testing.T) {
	cfg := &config.Config{
		LLM: config.LLM{
			Model:          "my-private-deployment",
			OpenAIAPIKey:   "test-key",
			OpenAIEndpoint: "http://localhost:9999/v1",
		},
	}

	llm, err := NewOpenAILLM(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, DefaultContextWindow, llm.ContextWindow())
	assert.Equal(t, "my-private-deployment", llm.ModelName())
}

func TestDeepSeekLLM_MissingAPIKey(t *testing.T) {
	cfg := &config.Config{
		LLM: config.LLM{
			Model: "deepseek-chat",
		},
	}

	_, err := NewDeepSeekLLM(context.Background(), cfg)
	assert.True(t, IsConfigError(err), "Expected a config error, got %v", err)
	assert.ErrorContains(t, err, "TICOBOT_DEEPSEEK_API_KEY")
}

func TestGroqLLM_MissingAPIKey(t *testing.T) {
	cfg := &config.Config{
		LLM: config.LLM{
			Model: "llama-3.3-70b-versatile",
		},
	}

	_, err := NewGroqLLM(context.Background(), cfg)
	assert.True(t, IsConfigError(err), "Expected a config error, got %v", err)
	assert.ErrorContains(t, err, "TICOBOT_GROQ_API_KEY")
}

func TestCompatLLM_BuildRequest(t *testing.T) {
	llm := &compatLLM{model: "gpt-4o-mini"}

	messages := []models.LLMMessage{
		{Role: models.SystemRole, Content: "You answer questions about party platforms."},
		{Role: models.UserRole, Content: "What about housing?"},
	}

	t.Run("defaults", func(t *testing.T) {
		req := llm.buildRequest(messages, nil)
		assert.Equal(t, "gpt-4o-mini", req.Model)
		assert.Len(t, req.Messages, 2)
		assert.Equal(t, openai.ChatMessageRoleSystem, req.Messages[0].Role)
		assert.Equal(t, openai.ChatMessageRoleUser, req.Messages[1].Role)
		assert.Equal(t, float32(math.SmallestNonzeroFloat32), req.Temperature)
		assert.Zero(t, req.MaxTokens)
	})

	t.Run("with options", func(t *testing.T) {
		temperature := 0.7
		topP := 0.9
		req := llm.buildRequest(messages, &models.GenerationOptions{
			Temperature:   &temperature,
			MaxTokens:     512,
			TopP:          &topP,
			StopSequences: []string{"\n\n"},
		})
		assert.Equal(t, float32(0.7), req.Temperature)
		assert.Equal(t, 512, req.MaxTokens)
		assert.Equal(t, float32(0.9), req.TopP)
		assert.Equal(t, []string{"\n\n"}, req.Stop)
	})
}

func TestRequestTemperature(t *testing.T) {
	// Zero must survive the wire encoding; omitempty would drop it and the
	// API would fall back to its default of 1.
	if got := requestTemperature(0); got != math.SmallestNonzeroFloat32 {
		t.Errorf("Expected %v but got %v", float32(math.SmallestNonzeroFloat32), got)
	}
	if got := requestTemperature(0.7); got != float32(0.7) {
		t.Errorf("Expected %v but got %v", float32(0.7), got)
	}
}

func TestMapRole(t *testing.T) {
	tests := []struct {
		role     models.RoleType
		expected string
	}{
		{models.SystemRole, openai.ChatMessageRoleSystem},
		{models.UserRole, openai.ChatMessageRoleUser},
		{models.AssistantRole, openai.ChatMessageRoleAssistant},
	}

	for _, tt := range tests {
		if got := mapRole(tt.role); got != tt.expected {
			t.Errorf("Expected %q for role %q but got %q", tt.expected, tt.role, got)
		}
	}
}

func TestMapFinishReason(t *testing.T) {
	tests := []struct {
		reason   openai.FinishReason
		expected models.FinishReason
	}{
		{openai.FinishReasonStop, models.FinishReasonStop},
		{openai.FinishReasonLength, models.FinishReasonLength},
		{openai.FinishReasonFunctionCall, models.FinishReasonFunctionCall},
		{openai.FinishReasonToolCalls, models.FinishReasonFunctionCall},
		{openai.FinishReasonContentFilter, models.FinishReasonContentFilter},
		{openai.FinishReasonNull, ""},
	}

	for _, tt := range tests {
		if got := mapFinishReason(tt.reason); got != tt.expected {
			t.Errorf("Expected %q for %q but got %q", tt.expected, tt.reason, got)
		}
	}
}

func newCompletionTestServer(t *testing.T, handler http.HandlerFunc) *OpenAILLM {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := &config.Config{
		LLM: config.LLM{
			Model:          "gpt-4o-mini",
			OpenAIAPIKey:   "test-key",
			OpenAIEndpoint: server.URL,
		},
	}
	llm, err := NewOpenAILLM(context.Background(), cfg)
	require.NoError(t, err)
	return llm
}

func TestCompatLLM_GenerateCompletion(t *testing.T) {
	llm := newCompletionTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req openai.ChatCompletionRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "gpt-4o-mini", req.Model)

		w.Header().Set("Content-Type", "application/json")
		assert.NoError(t, json.NewEncoder(w).Encode(openai.ChatCompletionResponse{
			ID:     "chatcmpl-test",
			Object: "chat.completion",
			Model:  "gpt-4o-mini",
			Choices: []openai.ChatCompletionChoice{
				{
					Message: openai.ChatCompletionMessage{
						Role:    openai.ChatMessageRoleAssistant,
						Content: "The platform proposes rent caps.",
					},
					FinishReason: openai.FinishReasonStop,
				},
			},
			Usage: openai.Usage{PromptTokens: 42, CompletionTokens: 7, TotalTokens: 49},
		}))
	})

	resp, err := llm.GenerateCompletion(context.Background(), []models.LLMMessage{
		{Role: models.UserRole, Content: "What does the platform say about rent?"},
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, "The platform proposes rent caps.", resp.Content)
	assert.Equal(t, models.FinishReasonStop, resp.FinishReason)
	assert.Equal(t, 42, resp.Usage.PromptTokens)
	assert.Equal(t, 7, resp.Usage.CompletionTokens)
	assert.Equal(t, 49, resp.Usage.TotalTokens)
}

func TestCompatLLM_GenerateCompletion_Unauthorized(t *testing.T) {
	llm := newCompletionTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(
			w,
			`{"error":{"message":"Incorrect API key provided","type":"invalid_request_error","code":"invalid_api_key"}}`,
		)
	})

	_, err := llm.GenerateCompletion(context.Background(), []models.LLMMessage{
		{Role: models.UserRole, Content: "What does the platform say about rent?"},
	}, nil)
	require.Error(t, err)
	assert.True(t, IsUnauthorized(err), "Expected an unauthorized error, got %v", err)
}

func TestCompatLLM_GenerateCompletion_NoChoices(t *testing.T) {
	llm := newCompletionTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"chatcmpl-test","object":"chat.completion","model":"gpt-4o-mini","choices":[]}`)
	})

	_, err := llm.GenerateCompletion(context.Background(), []models.LLMMessage{
		{Role: models.UserRole, Content: "What does the platform say about rent?"},
	}, nil)
	require.Error(t, err)
	assert.True(t, IsEmptyResponse(err), "Expected an empty response error, got %v", err)
}

func TestCompatLLM_GenerateStream(t *testing.T) {
	llm := newCompletionTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		var req openai.ChatCompletionRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.True(t, req.Stream, "Expected a streaming request")

		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(
			w,
			`data: {"id":"1","object":"chat.completion.chunk","model":"gpt-4o-mini","choices":[{"index":0,"delta":{"content":"Rent "}}]}`+"\n\n",
		)
		fmt.Fprint(
			w,
			`data: {"id":"1","object":"chat.completion.chunk","model":"gpt-4o-mini","choices":[{"index":0,"delta":{"content":"caps."},"finish_reason":"stop"}]}`+"\n\n",
		)
		fmt.Fprint(w, "data: [DONE]\n\n")
	})

	stream, err := llm.GenerateStream(context.Background(), []models.LLMMessage{
		{Role: models.UserRole, Content: "What does the platform say about rent?"},
	}, nil)
	require.NoError(t, err)
	defer stream.Close()

	var content string
	var finishReason models.FinishReason
	for {
		chunk, err := stream.Recv()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		content += chunk.Content
		if chunk.FinishReason != "" {
			finishReason = chunk.FinishReason
		}
	}

	assert.Equal(t, "Rent caps.", content)
	assert.Equal(t, models.FinishReasonStop, finishReason)
}
