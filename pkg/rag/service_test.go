package rag

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ticobot/ticobot/pkg/models"
	"github.com/ticobot/ticobot/pkg/providers"
)

func TestAnswerCacheHit(t *testing.T) {
	llm := &stubLLM{}
	cache := newStubAnswerCache()
	cache.entries[cache.key("what about schools?", "PLN")] = &models.CachedAnswer{
		Question: "what about schools?",
		Party:    "PLN",
		Answer:   "Schools get more funding.",
	}
	svc := NewService(testAppState(llm, &stubVectorStore{}, cache))

	response, err := svc.Answer(context.Background(), &models.ChatRequest{
		Question: "what about schools?",
		Party:    "PLN",
	})
	require.NoError(t, err)
	assert.True(t, response.Cached)
	assert.Equal(t, "Schools get more funding.", response.Answer)
	assert.Equal(t, 0, llm.calls, "cache hit must not reach the LLM")
}

func TestAnswerGeneratesAndCaches(t *testing.T) {
	llm := &stubLLM{
		response: &models.LLMResponse{
			Content: "The platform promises rising education funding.",
			Model:   "stub-model",
			Usage:   models.TokenUsage{PromptTokens: 100, CompletionTokens: 20, TotalTokens: 120},
		},
	}
	vectorStore := &stubVectorStore{
		page: &models.SearchResultPage{Results: searchResults(3), ResultCount: 3},
	}
	cache := newStubAnswerCache()
	appState := testAppState(llm, vectorStore, cache)
	svc := NewService(appState)

	response, err := svc.Answer(context.Background(), &models.ChatRequest{
		Question: "what about schools?",
	})
	require.NoError(t, err)

	assert.False(t, response.Cached)
	assert.Equal(t, "The platform promises rising education funding.", response.Answer)
	assert.Len(t, response.Sources, 3)
	assert.Equal(t, "PLN", response.Sources[0].Party)
	require.NotNil(t, response.ContextStats)
	assert.Equal(t, 3, response.ContextStats.ChunksUsed)
	assert.Equal(t, 1, cache.puts, "generated answer is written through to the cache")

	// Prompt carries the compact context and the question.
	require.Len(t, llm.lastMessages, 2)
	assert.Equal(t, models.SystemRole, llm.lastMessages[0].Role)
	assert.Contains(t, llm.lastMessages[0].Content, compactTableHeader)
	assert.Equal(t, "what about schools?", llm.lastMessages[1].Content)

	// One savings sample was recorded.
	tracker := appState.UsageTracker.(*stubTracker)
	assert.Len(t, tracker.samples, 1)
}

func TestAnswerNoResultsFallback(t *testing.T) {
	llm := &stubLLM{}
	svc := NewService(testAppState(llm, &stubVectorStore{}, newStubAnswerCache()))

	response, err := svc.Answer(context.Background(), &models.ChatRequest{
		Question: "what about asteroid mining?",
	})
	require.NoError(t, err)
	assert.Equal(t, NoContextAnswer, response.Answer)
	assert.Empty(t, response.Sources)
	assert.Equal(t, 0, llm.calls, "no-context answers are not generated")
}

func TestAnswerCacheDisabledPerRequest(t *testing.T) {
	llm := &stubLLM{
		response: &models.LLMResponse{Content: "fresh answer"},
	}
	cache := newStubAnswerCache()
	cache.entries[cache.key("q", "")] = &models.CachedAnswer{Question: "q", Answer: "stale"}
	vectorStore := &stubVectorStore{
		page: &models.SearchResultPage{Results: searchResults(1), ResultCount: 1},
	}
	svc := NewService(testAppState(llm, vectorStore, cache))

	useCache := false
	response, err := svc.Answer(context.Background(), &models.ChatRequest{
		Question: "q",
		UseCache: &useCache,
	})
	require.NoError(t, err)
	assert.Equal(t, "fresh answer", response.Answer)
	assert.False(t, response.Cached)
	assert.Equal(t, 0, cache.puts)
}

func TestAnswerAbortsOnRateLimit(t *testing.T) {
	llm := &stubLLM{
		err: providers.NewProviderError(
			"openai", providers.ErrKindRateLimited, "rate limited", nil,
		),
	}
	vectorStore := &stubVectorStore{
		page: &models.SearchResultPage{Results: searchResults(1), ResultCount: 1},
	}
	svc := NewService(testAppState(llm, vectorStore, nil))

	_, err := svc.Answer(context.Background(), &models.ChatRequest{Question: "q"})
	require.Error(t, err)
	assert.True(t, providers.IsRateLimited(err))
	assert.Equal(t, 1, llm.calls, "rate limited calls must not be retried")
}

func TestAnswerRetriesTransportErrors(t *testing.T) {
	llm := &stubLLM{err: errVendorDown}
	vectorStore := &stubVectorStore{
		page: &models.SearchResultPage{Results: searchResults(1), ResultCount: 1},
	}
	svc := NewService(testAppState(llm, vectorStore, nil))

	_, err := svc.Answer(context.Background(), &models.ChatRequest{Question: "q"})
	require.Error(t, err)
	assert.Equal(t, 1+GenerationMaxRetries, llm.calls)
}

func TestAnswerStream(t *testing.T) {
	llm := &stubLLM{
		response: &models.LLMResponse{Content: "streamed answer tokens"},
	}
	vectorStore := &stubVectorStore{
		page: &models.SearchResultPage{Results: searchResults(2), ResultCount: 2},
	}
	svc := NewService(testAppState(llm, vectorStore, nil))

	stream, sources, err := svc.AnswerStream(context.Background(), &models.ChatRequest{
		Question: "what about schools?",
	})
	require.NoError(t, err)
	assert.Len(t, sources, 2)

	var got []string
	for {
		chunk, err := stream.Recv()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		got = append(got, chunk.Content)
	}
	assert.Equal(t, "streamed answer tokens", strings.Join(got, " "))
}

func TestSearchAppliesConfigDefaults(t *testing.T) {
	vectorStore := &stubVectorStore{}
	svc := NewService(testAppState(&stubLLM{}, vectorStore, nil))

	_, err := svc.Search(context.Background(), &models.SearchQuery{Text: "education"})
	require.NoError(t, err)
	require.NotNil(t, vectorStore.lastQuery)
	assert.Equal(t, 5, vectorStore.lastQuery.Limit)
	assert.Equal(t, 0.4, vectorStore.lastQuery.Threshold)
}
