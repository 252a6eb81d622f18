package providers

import (
	"context"
	"fmt"
	"io"
	"math"

	"github.com/sashabaranov/go-openai"

	"github.com/ticobot/ticobot/config"
	"github.com/ticobot/ticobot/pkg/models"
)

// vendorSpec describes an OpenAI-compatible chat completion vendor. DeepSeek
// and Groq speak the same wire format as OpenAI and differ only in base URL,
// credentials and model catalog.
type vendorSpec struct {
	provider  string
	baseURL   string
	apiKey    string
	keyEnvVar string
	orgID     string
	// endpoint overrides baseURL. Model names are not validated when set, as
	// custom deployments may be named anything.
	endpoint    string
	validModels map[string]bool
}

// compatLLM implements models.LLMProvider over the OpenAI-compatible API.
type compatLLM struct {
	client        *openai.Client
	provider      string
	model         string
	contextWindow int
	functions     bool
	counter       *tokenCounter
}

func newCompatLLM(cfg *config.Config, spec vendorSpec) (*compatLLM, error) {
	if spec.apiKey == "" {
		return nil, NewProviderError(
			spec.provider,
			ErrKindConfig,
			fmt.Sprintf("%s is not set", spec.keyEnvVar),
			nil,
		)
	}

	if spec.endpoint == "" {
		if _, ok := spec.validModels[cfg.LLM.Model]; !ok {
			return nil, NewProviderError(
				spec.provider,
				ErrKindConfig,
				fmt.Sprintf("invalid llm model %q for %s", cfg.LLM.Model, spec.provider),
				nil,
			)
		}
	}

	clientConfig := openai.DefaultConfig(spec.apiKey)
	switch {
	case spec.endpoint != "":
		clientConfig.BaseURL = spec.endpoint
	case spec.baseURL != "":
		clientConfig.BaseURL = spec.baseURL
	}
	if spec.orgID != "" {
		clientConfig.OrgID = spec.orgID
	}
	clientConfig.HTTPClient = NewRetryableHTTPClient(
		MaxAPIRequestAttempts,
		APITimeout,
	).StandardClient()

	counter, err := newTokenCounter()
	if err != nil {
		return nil, NewProviderError(spec.provider, ErrKindConfig, "error initializing tokenizer", err)
	}

	return &compatLLM{
		client:        openai.NewClientWithConfig(clientConfig),
		provider:      spec.provider,
		model:         cfg.LLM.Model,
		contextWindow: contextWindowForModel(cfg.LLM.Model),
		functions:     FunctionCallingLLMs[cfg.LLM.Model],
		counter:       counter,
	}, nil
}

func (llm *compatLLM) GenerateCompletion(
	ctx context.Context,
	messages []models.LLMMessage,
	opts *models.GenerationOptions,
) (*models.LLMResponse, error) {
	if llm.client == nil {
		return nil, NewProviderError(llm.provider, ErrKindConfig, "llm client is not initialized", nil)
	}

	thisCtx, cancel := context.WithTimeout(ctx, APITimeout)
	defer cancel()

	resp, err := llm.client.CreateChatCompletion(thisCtx, llm.buildRequest(messages, opts))
	if err != nil {
		return nil, classifyVendorError(llm.provider, "error while creating chat completion", err)
	}
	if len(resp.Choices) == 0 {
		return nil, NewProviderError(llm.provider, ErrKindEmptyResponse, "completion returned no choices", nil)
	}

	choice := resp.Choices[0]
	return &models.LLMResponse{
		Content: choice.Message.Content,
		Model:   resp.Model,
		Usage: models.TokenUsage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
		FinishReason: mapFinishReason(choice.FinishReason),
	}, nil
}

func (llm *compatLLM) GenerateStream(
	ctx context.Context,
	messages []models.LLMMessage,
	opts *models.GenerationOptions,
) (models.CompletionStream, error) {
	if llm.client == nil {
		return nil, NewProviderError(llm.provider, ErrKindConfig, "llm client is not initialized", nil)
	}

	// The stream outlives this call, so it gets a cancel tied to Close
	// rather than a request timeout.
	streamCtx, cancel := context.WithCancel(ctx)

	stream, err := llm.client.CreateChatCompletionStream(streamCtx, llm.buildRequest(messages, opts))
	if err != nil {
		cancel()
		return nil, classifyVendorError(llm.provider, "error while creating completion stream", err)
	}

	return &compatCompletionStream{provider: llm.provider, stream: stream, cancel: cancel}, nil
}

func (llm *compatLLM) ContextWindow() int {
	return llm.contextWindow
}

func (llm *compatLLM) SupportsFunctionCalling() bool {
	return llm.functions
}

func (llm *compatLLM) ModelName() string {
	return llm.model
}

func (llm *compatLLM) CountTokens(text string) (int, error) {
	return llm.counter.CountTokens(text)
}

func (llm *compatLLM) buildRequest(
	messages []models.LLMMessage,
	opts *models.GenerationOptions,
) openai.ChatCompletionRequest {
	req := openai.ChatCompletionRequest{
		Model:    llm.model,
		Messages: make([]openai.ChatCompletionMessage, len(messages)),
	}
	for i, m := range messages {
		req.Messages[i] = openai.ChatCompletionMessage{
			Role:    mapRole(m.Role),
			Content: m.Content,
		}
	}

	if opts == nil {
		req.Temperature = requestTemperature(DefaultTemperature)
		return req
	}

	if opts.Temperature != nil {
		req.Temperature = requestTemperature(*opts.Temperature)
	} else {
		req.Temperature = requestTemperature(DefaultTemperature)
	}
	if opts.MaxTokens > 0 {
		req.MaxTokens = opts.MaxTokens
	}
	if opts.TopP != nil {
		req.TopP = float32(*opts.TopP)
	}
	if opts.FrequencyPenalty != nil {
		req.FrequencyPenalty = float32(*opts.FrequencyPenalty)
	}
	if opts.PresencePenalty != nil {
		req.PresencePenalty = float32(*opts.PresencePenalty)
	}
	if len(opts.StopSequences) > 0 {
		req.Stop = opts.StopSequences
	}

	return req
}

// requestTemperature works around the client's omitempty wire encoding: a
// zero temperature would be dropped from the request and the API would fall
// back to its default of 1.
func requestTemperature(temperature float64) float32 {
	if temperature == 0 {
		return math.SmallestNonzeroFloat32
	}
	return float32(temperature)
}

func mapRole(role models.RoleType) string {
	switch role {
	case models.SystemRole:
		return openai.ChatMessageRoleSystem
	case models.AssistantRole:
		return openai.ChatMessageRoleAssistant
	default:
		return openai.ChatMessageRoleUser
	}
}

func mapFinishReason(reason openai.FinishReason) models.FinishReason {
	switch reason {
	case openai.FinishReasonStop:
		return models.FinishReasonStop
	case openai.FinishReasonLength:
		return models.FinishReasonLength
	case openai.FinishReasonFunctionCall, openai.FinishReasonToolCalls:
		return models.FinishReasonFunctionCall
	case openai.FinishReasonContentFilter:
		return models.FinishReasonContentFilter
	default:
		return ""
	}
}

var _ models.CompletionStream = &compatCompletionStream{}

// compatCompletionStream adapts the vendor SSE stream to the pull-based
// CompletionStream interface.
type compatCompletionStream struct {
	provider string
	stream   *openai.ChatCompletionStream
	cancel   context.CancelFunc
}

func (s *compatCompletionStream) Recv() (models.StreamChunk, error) {
	resp, err := s.stream.Recv()
	if err == io.EOF {
		return models.StreamChunk{}, io.EOF
	}
	if err != nil {
		return models.StreamChunk{}, classifyVendorError(s.provider, "error while reading completion stream", err)
	}
	// Frames without choices carry usage or keepalive data; surface them as
	// empty chunks so callers keep pulling.
	if len(resp.Choices) == 0 {
		return models.StreamChunk{}, nil
	}

	choice := resp.Choices[0]
	return models.StreamChunk{
		Content:      choice.Delta.Content,
		FinishReason: mapFinishReason(choice.FinishReason),
	}, nil
}

func (s *compatCompletionStream) Close() error {
	s.cancel()
	return s.stream.Close()
}
