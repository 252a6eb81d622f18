package rag

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ticobot/ticobot/config"
	"github.com/ticobot/ticobot/pkg/models"
)

// stubLLM counts tokens as whitespace-separated words so budget tests are
// deterministic.
type stubLLM struct {
	contextWindow int
	response      *models.LLMResponse
	err           error
	calls         int
	lastMessages  []models.LLMMessage
}

func (s *stubLLM) GenerateCompletion(
	_ context.Context,
	messages []models.LLMMessage,
	_ *models.GenerationOptions,
) (*models.LLMResponse, error) {
	s.calls++
	s.lastMessages = messages
	if s.err != nil {
		return nil, s.err
	}
	return s.response, nil
}

func (s *stubLLM) GenerateStream(
	_ context.Context,
	messages []models.LLMMessage,
	_ *models.GenerationOptions,
) (models.CompletionStream, error) {
	s.calls++
	s.lastMessages = messages
	if s.err != nil {
		return nil, s.err
	}
	return &stubStream{chunks: strings.Fields(s.response.Content)}, nil
}

func (s *stubLLM) ContextWindow() int {
	if s.contextWindow > 0 {
		return s.contextWindow
	}
	return 8192
}

func (s *stubLLM) SupportsFunctionCalling() bool { return false }

func (s *stubLLM) ModelName() string { return "stub-model" }

func (s *stubLLM) CountTokens(text string) (int, error) {
	return len(strings.Fields(text)), nil
}

type stubStream struct {
	chunks []string
	pos    int
}

func (s *stubStream) Recv() (models.StreamChunk, error) {
	if s.pos >= len(s.chunks) {
		return models.StreamChunk{}, io.EOF
	}
	chunk := models.StreamChunk{Content: s.chunks[s.pos]}
	s.pos++
	return chunk, nil
}

func (s *stubStream) Close() error { return nil }

type stubVectorStore struct {
	page      *models.SearchResultPage
	err       error
	lastQuery *models.SearchQuery
}

func (s *stubVectorStore) Initialize(context.Context) error { return nil }

func (s *stubVectorStore) UpsertEmbeddings(context.Context, []models.Chunk) error { return nil }

func (s *stubVectorStore) SimilaritySearch(
	_ context.Context,
	query *models.SearchQuery,
) (*models.SearchResultPage, error) {
	s.lastQuery = query
	if s.err != nil {
		return nil, s.err
	}
	if s.page == nil {
		return &models.SearchResultPage{Results: []models.SearchResult{}}, nil
	}
	return s.page, nil
}

func (s *stubVectorStore) DeleteByDocument(context.Context, uuid.UUID) error { return nil }

func (s *stubVectorStore) GetByUUID(context.Context, uuid.UUID) (*models.Chunk, error) {
	return nil, models.NewNotFoundError("chunk")
}

func (s *stubVectorStore) CountEmbedded(context.Context, string) (int, error) { return 0, nil }

type stubAnswerCache struct {
	entries map[string]*models.CachedAnswer
	getErr  error
	puts    int
}

func newStubAnswerCache() *stubAnswerCache {
	return &stubAnswerCache{entries: map[string]*models.CachedAnswer{}}
}

func (s *stubAnswerCache) key(question, party string) string {
	return question + "|" + party
}

func (s *stubAnswerCache) Get(
	_ context.Context,
	question, party string,
) (*models.CachedAnswer, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	entry, ok := s.entries[s.key(question, party)]
	if !ok {
		return nil, models.NewNotFoundError("cached answer")
	}
	return entry, nil
}

func (s *stubAnswerCache) Put(
	_ context.Context,
	answer *models.CachedAnswer,
	_ time.Duration,
) error {
	s.puts++
	s.entries[s.key(answer.Question, answer.Party)] = answer
	return nil
}

func (s *stubAnswerCache) PurgeExpired(context.Context) error { return nil }

type stubTracker struct {
	samples []models.UsageSample
}

func (s *stubTracker) Record(sample models.UsageSample) {
	s.samples = append(s.samples, sample)
}

func (s *stubTracker) Snapshot() models.UsageSnapshot {
	return models.UsageSnapshot{SampleCount: len(s.samples)}
}

func (s *stubTracker) Samples() []models.UsageSample { return s.samples }

var errVendorDown = errors.New("vendor unavailable")

func testAppState(
	llm *stubLLM,
	vectorStore *stubVectorStore,
	cache *stubAnswerCache,
) *models.AppState {
	appState := &models.AppState{
		LLMProvider:  llm,
		VectorStore:  vectorStore,
		UsageTracker: &stubTracker{},
		Config: &config.Config{
			LLM: config.LLM{
				MaxTokens: 512,
			},
			Retrieval: config.RetrievalConfig{
				Limit:     5,
				Threshold: 0.4,
			},
			Cache: config.CacheConfig{
				Enabled: true,
				TTL:     time.Hour,
			},
		},
	}
	if cache != nil {
		appState.AnswerCache = cache
	}
	return appState
}

func searchResults(n int) []models.SearchResult {
	results := make([]models.SearchResult, n)
	for i := 0; i < n; i++ {
		results[i] = models.SearchResult{
			ChunkResponse: &models.ChunkResponse{
				UUID:          uuid.New(),
				DocumentUUID:  uuid.New(),
				DocumentTitle: "Platform 2026",
				Party:         "PLN",
				ChunkIndex:    i,
				Content:       "Education funding will rise every year of the term.",
			},
			Similarity: 0.9 - float64(i)*0.05,
		}
	}
	return results
}
