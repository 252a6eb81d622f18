package rag

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/retrypolicy"

	"github.com/ticobot/ticobot/internal"
	"github.com/ticobot/ticobot/pkg/models"
	"github.com/ticobot/ticobot/pkg/providers"
)

var log = internal.GetLogger()

const (
	GenerationMaxRetries   = 2
	GenerationRetryBackoff = time.Second
	GenerationRetryCeiling = 10 * time.Second
)

// Service answers platform questions: cache consult, embed, search, prompt
// assembly, generate, cache store.
type Service struct {
	appState *models.AppState
}

func NewService(appState *models.AppState) *Service {
	return &Service{appState: appState}
}

// Answer runs the full RAG pipeline for a question and returns a grounded
// answer with its sources.
func (s *Service) Answer(
	ctx context.Context,
	request *models.ChatRequest,
) (*models.ChatResponse, error) {
	useCache := s.useCache(request)

	if useCache {
		cached, err := s.appState.AnswerCache.Get(ctx, request.Question, request.Party)
		switch {
		case err == nil:
			return &models.ChatResponse{
				Answer:  cached.Answer,
				Sources: cached.Sources,
				Cached:  true,
			}, nil
		case !errors.Is(err, models.ErrNotFound):
			// A broken cache must not take chat down.
			log.Warnf("answer cache lookup failed: %v", err)
		}
	}

	promptCtx, _, err := s.retrieveContext(ctx, request)
	if err != nil {
		return nil, err
	}
	if promptCtx == nil || len(promptCtx.Used) == 0 {
		return &models.ChatResponse{
			Answer:  NoContextAnswer,
			Sources: []models.Source{},
		}, nil
	}
	s.recordSavings(promptCtx)

	messages, err := s.promptMessages(request.Question, promptCtx)
	if err != nil {
		return nil, err
	}

	response, err := s.generate(ctx, messages)
	if err != nil {
		return nil, err
	}

	sources := sourcesFromResults(promptCtx.Used)
	if useCache {
		s.storeAnswer(ctx, request, response.Content, sources)
	}

	stats := promptCtx.Stats
	return &models.ChatResponse{
		Answer:       response.Content,
		Sources:      sources,
		Model:        response.Model,
		Usage:        response.Usage,
		ContextStats: &stats,
	}, nil
}

// AnswerStream runs retrieval and returns the completion stream along with
// the resolved sources. Streamed answers are not written to the cache.
func (s *Service) AnswerStream(
	ctx context.Context,
	request *models.ChatRequest,
) (models.CompletionStream, []models.Source, error) {
	promptCtx, _, err := s.retrieveContext(ctx, request)
	if err != nil {
		return nil, nil, err
	}
	if promptCtx == nil || len(promptCtx.Used) == 0 {
		return nil, nil, models.NewNotFoundError("relevant context")
	}
	s.recordSavings(promptCtx)

	messages, err := s.promptMessages(request.Question, promptCtx)
	if err != nil {
		return nil, nil, err
	}

	stream, err := s.appState.LLMProvider.GenerateStream(ctx, messages, s.generationOptions())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to start completion stream: %w", err)
	}

	return stream, sourcesFromResults(promptCtx.Used), nil
}

// Search embeds the query and returns ranked chunks without generation.
func (s *Service) Search(
	ctx context.Context,
	query *models.SearchQuery,
) (*models.SearchResultPage, error) {
	s.applySearchDefaults(query)
	return s.appState.VectorStore.SimilaritySearch(ctx, query)
}

func (s *Service) retrieveContext(
	ctx context.Context,
	request *models.ChatRequest,
) (*promptContext, *models.SearchResultPage, error) {
	query := &models.SearchQuery{
		Text:  request.Question,
		Party: request.Party,
		Limit: request.SearchLimit,
	}
	s.applySearchDefaults(query)

	page, err := s.appState.VectorStore.SimilaritySearch(ctx, query)
	if err != nil {
		return nil, nil, fmt.Errorf("similarity search failed: %w", err)
	}
	if len(page.Results) == 0 {
		return nil, page, nil
	}

	budget := contextBudget(s.appState.LLMProvider, s.maxCompletionTokens())
	promptCtx, err := buildPromptContext(s.appState.LLMProvider, page.Results, budget)
	if err != nil {
		return nil, nil, err
	}

	return promptCtx, page, nil
}

func (s *Service) promptMessages(
	question string,
	promptCtx *promptContext,
) ([]models.LLMMessage, error) {
	systemPrompt, err := internal.ParsePrompt(
		answerSystemPromptTemplate,
		AnswerPromptData{Context: promptCtx.Rendered},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to render system prompt: %w", err)
	}

	return []models.LLMMessage{
		{Role: models.SystemRole, Content: systemPrompt},
		{Role: models.UserRole, Content: question},
	}, nil
}

// generate calls the LLM with retry. Rate-limit and auth failures abort
// immediately; retrying those only digs the hole deeper.
func (s *Service) generate(
	ctx context.Context,
	messages []models.LLMMessage,
) (*models.LLMResponse, error) {
	generationRetryPolicy := retrypolicy.Builder[*models.LLMResponse]().
		AbortIf(func(_ *models.LLMResponse, err error) bool {
			return providers.IsRateLimited(err) || providers.IsUnauthorized(err)
		}).
		WithBackoff(GenerationRetryBackoff, GenerationRetryCeiling).
		WithMaxRetries(GenerationMaxRetries).
		Build()

	response, err := failsafe.Get(func() (*models.LLMResponse, error) {
		return s.appState.LLMProvider.GenerateCompletion(ctx, messages, s.generationOptions())
	}, generationRetryPolicy)
	if err != nil {
		return nil, fmt.Errorf("completion failed: %w", err)
	}

	return response, nil
}

func (s *Service) storeAnswer(
	ctx context.Context,
	request *models.ChatRequest,
	answer string,
	sources []models.Source,
) {
	entry := &models.CachedAnswer{
		Question: request.Question,
		Party:    request.Party,
		Answer:   answer,
		Sources:  sources,
	}
	if err := s.appState.AnswerCache.Put(ctx, entry, s.appState.Config.Cache.TTL); err != nil {
		log.Warnf("failed to store cached answer: %v", err)
	}
}

func (s *Service) recordSavings(promptCtx *promptContext) {
	if s.appState.UsageTracker == nil || promptCtx.Stats.JSONTokens == 0 {
		return
	}
	s.appState.UsageTracker.Record(models.UsageSample{
		CompactTokens: promptCtx.Stats.ContextTokens,
		JSONTokens:    promptCtx.Stats.JSONTokens,
	})
}

func (s *Service) useCache(request *models.ChatRequest) bool {
	if s.appState.AnswerCache == nil {
		return false
	}
	if request.UseCache != nil {
		return *request.UseCache
	}
	return s.appState.Config.Cache.Enabled
}

func (s *Service) applySearchDefaults(query *models.SearchQuery) {
	cfg := s.appState.Config
	if query.Limit <= 0 {
		query.Limit = cfg.Retrieval.Limit
	}
	if query.Threshold == 0 {
		query.Threshold = cfg.Retrieval.Threshold
	}
	if query.SearchType == "" && cfg.Retrieval.MMR.Enabled {
		query.SearchType = models.SearchTypeMMR
	}
}

func (s *Service) generationOptions() *models.GenerationOptions {
	cfg := s.appState.Config
	opts := &models.GenerationOptions{
		MaxTokens: cfg.LLM.MaxTokens,
	}
	if cfg.LLM.Temperature > 0 {
		temperature := cfg.LLM.Temperature
		opts.Temperature = &temperature
	}
	return opts
}

func (s *Service) maxCompletionTokens() int {
	return s.appState.Config.LLM.MaxTokens
}
