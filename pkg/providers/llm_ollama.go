package providers

import (
	"context"
	"io"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/schema"

	"github.com/ticobot/ticobot/config"
	"github.com/ticobot/ticobot/pkg/models"
)

var _ models.LLMProvider = &OllamaLLM{}

func NewOllamaLLM(ctx context.Context, cfg *config.Config) (*OllamaLLM, error) {
	llm := &OllamaLLM{}
	err := llm.Init(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return llm, nil
}

// OllamaLLM generates completions against a local Ollama server. No API key
// is required; only the server URL and a pulled model.
type OllamaLLM struct {
	client        *ollama.LLM
	model         string
	contextWindow int
	counter       *tokenCounter
}

func (llm *OllamaLLM) Init(_ context.Context, cfg *config.Config) error {
	if cfg.LLM.Model == "" {
		return NewProviderError(ServiceOllama, ErrKindConfig, "llm model is not set", nil)
	}

	client, err := ollama.New(
		ollama.WithServerURL(cfg.LLM.OllamaServerURL),
		ollama.WithModel(cfg.LLM.Model),
	)
	if err != nil {
		return NewProviderError(ServiceOllama, ErrKindConfig, "error initializing ollama client", err)
	}

	counter, err := newTokenCounter()
	if err != nil {
		return NewProviderError(ServiceOllama, ErrKindConfig, "error initializing tokenizer", err)
	}

	llm.client = client
	llm.model = cfg.LLM.Model
	llm.contextWindow = contextWindowForModel(ollamaBaseModel(cfg.LLM.Model))
	llm.counter = counter
	return nil
}

func (llm *OllamaLLM) GenerateCompletion(
	ctx context.Context,
	messages []models.LLMMessage,
	opts *models.GenerationOptions,
) (*models.LLMResponse, error) {
	if llm.client == nil {
		return nil, NewProviderError(ServiceOllama, ErrKindConfig, "llm client is not initialized", nil)
	}

	thisCtx, cancel := context.WithTimeout(ctx, APITimeout)
	defer cancel()

	resp, err := llm.client.GenerateContent(thisCtx, convertMessages(messages), llm.callOptions(opts)...)
	if err != nil {
		return nil, NewProviderError(ServiceOllama, ErrKindTransport, "error while creating chat completion", err)
	}
	if len(resp.Choices) == 0 {
		return nil, NewProviderError(ServiceOllama, ErrKindEmptyResponse, "completion returned no choices", nil)
	}

	choice := resp.Choices[0]
	return &models.LLMResponse{
		Content:      choice.Content,
		Model:        llm.model,
		Usage:        usageFromGenerationInfo(choice.GenerationInfo),
		FinishReason: mapOllamaStopReason(choice.StopReason),
	}, nil
}

func (llm *OllamaLLM) GenerateStream(
	ctx context.Context,
	messages []models.LLMMessage,
	opts *models.GenerationOptions,
) (models.CompletionStream, error) {
	if llm.client == nil {
		return nil, NewProviderError(ServiceOllama, ErrKindConfig, "llm client is not initialized", nil)
	}

	streamCtx, cancel := context.WithCancel(ctx)

	chunks := make(chan models.StreamChunk)
	errCh := make(chan error, 1)

	options := append(llm.callOptions(opts), llms.WithStreamingFunc(
		func(ctx context.Context, chunk []byte) error {
			select {
			case chunks <- models.StreamChunk{Content: string(chunk)}:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		},
	))

	go func() {
		_, err := llm.client.GenerateContent(streamCtx, convertMessages(messages), options...)
		if err != nil {
			errCh <- NewProviderError(ServiceOllama, ErrKindTransport, "error while streaming completion", err)
			return
		}
		select {
		case chunks <- models.StreamChunk{FinishReason: models.FinishReasonStop}:
		case <-streamCtx.Done():
		}
		close(chunks)
	}()

	return &ollamaCompletionStream{chunks: chunks, errCh: errCh, cancel: cancel}, nil
}

func (llm *OllamaLLM) ContextWindow() int {
	return llm.contextWindow
}

// SupportsFunctionCalling is false for all Ollama models: the client has no
// tool call plumbing.
func (llm *OllamaLLM) SupportsFunctionCalling() bool {
	return false
}

func (llm *OllamaLLM) ModelName() string {
	return llm.model
}

func (llm *OllamaLLM) CountTokens(text string) (int, error) {
	return llm.counter.CountTokens(text)
}

func (llm *OllamaLLM) callOptions(opts *models.GenerationOptions) []llms.CallOption {
	temperature := DefaultTemperature
	if opts != nil && opts.Temperature != nil {
		temperature = *opts.Temperature
	}
	options := []llms.CallOption{llms.WithTemperature(temperature)}
	if opts == nil {
		return options
	}

	if opts.MaxTokens > 0 {
		options = append(options, llms.WithMaxTokens(opts.MaxTokens))
	}
	if opts.TopP != nil {
		options = append(options, llms.WithTopP(*opts.TopP))
	}
	if opts.FrequencyPenalty != nil {
		options = append(options, llms.WithFrequencyPenalty(*opts.FrequencyPenalty))
	}
	if opts.PresencePenalty != nil {
		options = append(options, llms.WithPresencePenalty(*opts.PresencePenalty))
	}
	if len(opts.StopSequences) > 0 {
		options = append(options, llms.WithStopWords(opts.StopSequences))
	}

	return options
}

// ollamaBaseModel strips the tag from a model reference, so "llama3.1:8b"
// resolves its context window by the "llama3.1" family.
func ollamaBaseModel(model string) string {
	base, _, _ := strings.Cut(model, ":")
	return base
}

func convertMessages(messages []models.LLMMessage) []llms.MessageContent {
	converted := make([]llms.MessageContent, len(messages))
	for i, m := range messages {
		converted[i] = llms.TextParts(mapOllamaRole(m.Role), m.Content)
	}
	return converted
}

func mapOllamaRole(role models.RoleType) schema.ChatMessageType {
	switch role {
	case models.SystemRole:
		return schema.ChatMessageTypeSystem
	case models.AssistantRole:
		return schema.ChatMessageTypeAI
	default:
		return schema.ChatMessageTypeHuman
	}
}

func usageFromGenerationInfo(info map[string]any) models.TokenUsage {
	usage := models.TokenUsage{}
	if info == nil {
		return usage
	}
	if v, ok := info["PromptTokens"].(int); ok {
		usage.PromptTokens = v
	}
	if v, ok := info["CompletionTokens"].(int); ok {
		usage.CompletionTokens = v
	}
	if v, ok := info["TotalTokens"].(int); ok {
		usage.TotalTokens = v
	}
	if usage.TotalTokens == 0 {
		usage.TotalTokens = usage.PromptTokens + usage.CompletionTokens
	}
	return usage
}

// mapOllamaStopReason normalizes the stop reason of a completed generation.
// Ollama leaves it empty on ordinary completion.
func mapOllamaStopReason(reason string) models.FinishReason {
	switch reason {
	case "length", "max_tokens":
		return models.FinishReasonLength
	default:
		return models.FinishReasonStop
	}
}

var _ models.CompletionStream = &ollamaCompletionStream{}

// ollamaCompletionStream bridges the client's push callbacks to the
// pull-based CompletionStream interface.
type ollamaCompletionStream struct {
	chunks chan models.StreamChunk
	errCh  chan error
	cancel context.CancelFunc
}

func (s *ollamaCompletionStream) Recv() (models.StreamChunk, error) {
	select {
	case chunk, ok := <-s.chunks:
		if !ok {
			return models.StreamChunk{}, io.EOF
		}
		return chunk, nil
	case err := <-s.errCh:
		return models.StreamChunk{}, err
	}
}

func (s *ollamaCompletionStream) Close() error {
	s.cancel()
	return nil
}
