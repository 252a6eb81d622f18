package providers

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptrace"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/httptrace/otelhttptrace"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/ticobot/ticobot/config"
	"github.com/ticobot/ticobot/internal"
	"github.com/ticobot/ticobot/pkg/models"
)

const DefaultTemperature = 0.0

const APITimeout = 90 * time.Second
const MaxAPIRequestAttempts = 5

const (
	ServiceOpenAI   = "openai"
	ServiceDeepSeek = "deepseek"
	ServiceGroq     = "groq"
	ServiceOllama   = "ollama"
)

var log = internal.GetLogger()

// NewLLMProvider returns the completion backend selected by llm.service.
// Provider instances are expected to live for the life of the process; they
// are constructed once in cmd.NewAppState and shared via AppState.
func NewLLMProvider(ctx context.Context, cfg *config.Config) (models.LLMProvider, error) {
	switch cfg.LLM.Service {
	case ServiceOpenAI:
		return NewOpenAILLM(ctx, cfg)
	case ServiceDeepSeek:
		return NewDeepSeekLLM(ctx, cfg)
	case ServiceGroq:
		return NewGroqLLM(ctx, cfg)
	case ServiceOllama:
		return NewOllamaLLM(ctx, cfg)
	case "":
		// for backward compatibility
		return NewOpenAILLM(ctx, cfg)
	default:
		return nil, fmt.Errorf("llm service %q is not implemented", cfg.LLM.Service)
	}
}

// NewEmbeddingProvider returns the embedding backend selected by
// embeddings.service.
func NewEmbeddingProvider(ctx context.Context, cfg *config.Config) (models.EmbeddingProvider, error) {
	switch cfg.Embeddings.Service {
	case ServiceOpenAI:
		return NewOpenAIEmbeddings(ctx, cfg)
	case ServiceOllama:
		return NewOllamaEmbeddings(ctx, cfg)
	case "":
		return NewOpenAIEmbeddings(ctx, cfg)
	default:
		return nil, fmt.Errorf("embeddings service %q is not implemented", cfg.Embeddings.Service)
	}
}

var ValidOpenAILLMs = map[string]bool{
	"gpt-3.5-turbo": true,
	"gpt-4":         true,
	"gpt-4-turbo":   true,
	"gpt-4o":        true,
	"gpt-4o-mini":   true,
}

var ValidDeepSeekLLMs = map[string]bool{
	"deepseek-chat":     true,
	"deepseek-reasoner": true,
}

var ValidGroqLLMs = map[string]bool{
	"llama-3.1-8b-instant":    true,
	"llama-3.3-70b-versatile": true,
	"mixtral-8x7b-32768":      true,
	"gemma2-9b-it":            true,
}

var ValidLLMMap = internal.MergeMaps(ValidOpenAILLMs, ValidDeepSeekLLMs, ValidGroqLLMs)

// DefaultContextWindow is used for models missing from ContextWindowMap,
// such as custom deployments behind an endpoint override.
const DefaultContextWindow = 8192

var ContextWindowMap = map[string]int{
	"gpt-3.5-turbo":           16_385,
	"gpt-4":                   8192,
	"gpt-4-turbo":             128_000,
	"gpt-4o":                  128_000,
	"gpt-4o-mini":             128_000,
	"deepseek-chat":           65_536,
	"deepseek-reasoner":       65_536,
	"llama-3.1-8b-instant":    131_072,
	"llama-3.3-70b-versatile": 131_072,
	"mixtral-8x7b-32768":      32_768,
	"gemma2-9b-it":            8192,
	"llama3":                  8192,
	"llama3.1":                131_072,
	"llama3.2":                131_072,
	"mistral":                 32_768,
	"phi3":                    131_072,
}

// FunctionCallingLLMs lists models with tool/function calling support.
// Models absent from the map don't support it.
var FunctionCallingLLMs = map[string]bool{
	"gpt-3.5-turbo":           true,
	"gpt-4":                   true,
	"gpt-4-turbo":             true,
	"gpt-4o":                  true,
	"gpt-4o-mini":             true,
	"deepseek-chat":           true,
	"llama-3.1-8b-instant":    true,
	"llama-3.3-70b-versatile": true,
	"mixtral-8x7b-32768":      true,
}

func contextWindowForModel(model string) int {
	if window, ok := ContextWindowMap[model]; ok {
		return window
	}
	return DefaultContextWindow
}

func NewRetryableHTTPClient(retryMax int, timeout time.Duration) *retryablehttp.Client {
	retryableHTTPClient := retryablehttp.NewClient()
	retryableHTTPClient.RetryMax = retryMax
	retryableHTTPClient.HTTPClient.Timeout = timeout
	retryableHTTPClient.Logger = internal.NewLeveledLogrus(log)
	retryableHTTPClient.Backoff = retryablehttp.DefaultBackoff
	retryableHTTPClient.CheckRetry = retryPolicy
	retryableHTTPClient.HTTPClient.Transport = otelhttp.NewTransport(
		http.DefaultTransport,
		otelhttp.WithClientTrace(func(ctx context.Context) *httptrace.ClientTrace {
			return otelhttptrace.NewClientTrace(ctx)
		}),
	)

	return retryableHTTPClient
}

// retryPolicy is a retryablehttp.CheckRetry function. It is used to determine
// whether a request should be retried or not.
func retryPolicy(ctx context.Context, resp *http.Response, err error) (bool, error) {
	// do not retry on context.Canceled or context.DeadlineExceeded
	if ctx.Err() != nil {
		return false, ctx.Err()
	}

	// Do not retry 400 errors as they're used by OpenAI to indicate maximum
	// context length exceeded
	if resp != nil && resp.StatusCode == 400 {
		return false, err
	}

	shouldRetry, _ := retryablehttp.DefaultRetryPolicy(ctx, resp, err)
	return shouldRetry, nil
}
