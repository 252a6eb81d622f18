package models

import (
	"context"
)

type RoleType string

const (
	SystemRole    RoleType = "system"
	UserRole      RoleType = "user"
	AssistantRole RoleType = "assistant"
)

// LLMMessage is a single message in a chat completion exchange.
type LLMMessage struct {
	Role    RoleType `json:"role"`
	Content string   `json:"content"`
}

// GenerationOptions tunes a single completion call. Nil pointer fields fall
// back to the provider's defaults.
type GenerationOptions struct {
	Temperature      *float64 `json:"temperature,omitempty"`
	MaxTokens        int      `json:"max_tokens,omitempty"`
	TopP             *float64 `json:"top_p,omitempty"`
	FrequencyPenalty *float64 `json:"frequency_penalty,omitempty"`
	PresencePenalty  *float64 `json:"presence_penalty,omitempty"`
	StopSequences    []string `json:"stop,omitempty"`
}

// FinishReason is the vendor-reported reason a completion ended, normalized
// across providers. Providers that don't report one leave it empty.
type FinishReason string

const (
	FinishReasonStop          FinishReason = "stop"
	FinishReasonLength        FinishReason = "length"
	FinishReasonFunctionCall  FinishReason = "function_call"
	FinishReasonContentFilter FinishReason = "content_filter"
)

type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type LLMResponse struct {
	Content      string       `json:"content"`
	Model        string       `json:"model"`
	Usage        TokenUsage   `json:"usage"`
	FinishReason FinishReason `json:"finish_reason,omitempty"`
}

// StreamChunk is a single increment of a streaming completion. FinishReason
// is only set on the final chunk.
type StreamChunk struct {
	Content      string       `json:"content"`
	FinishReason FinishReason `json:"finish_reason,omitempty"`
}

// CompletionStream is a pull-based token stream. Recv blocks until the next
// chunk arrives and returns io.EOF once the stream is complete. Close
// releases the underlying connection and may be called at any time,
// including before the stream is drained.
type CompletionStream interface {
	Recv() (StreamChunk, error)
	Close() error
}

// LLMProvider is the interface implemented by all chat completion backends.
type LLMProvider interface {
	GenerateCompletion(
		ctx context.Context,
		messages []LLMMessage,
		opts *GenerationOptions,
	) (*LLMResponse, error)
	GenerateStream(
		ctx context.Context,
		messages []LLMMessage,
		opts *GenerationOptions,
	) (CompletionStream, error)
	// ContextWindow returns the model's maximum context length in tokens.
	ContextWindow() int
	SupportsFunctionCalling() bool
	ModelName() string
	// CountTokens returns the number of tokens text consumes with the
	// model's tokenizer.
	CountTokens(text string) (int, error)
}
