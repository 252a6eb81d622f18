package server

import (
	"context"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ticobot/ticobot/config"
	"github.com/ticobot/ticobot/pkg/models"
	"github.com/ticobot/ticobot/pkg/stats"
)

type stubLLM struct {
	response *models.LLMResponse
}

func (s *stubLLM) GenerateCompletion(
	context.Context,
	[]models.LLMMessage,
	*models.GenerationOptions,
) (*models.LLMResponse, error) {
	return s.response, nil
}

func (s *stubLLM) GenerateStream(
	context.Context,
	[]models.LLMMessage,
	*models.GenerationOptions,
) (models.CompletionStream, error) {
	return &stubStream{chunks: strings.Fields(s.response.Content)}, nil
}

func (s *stubLLM) ContextWindow() int          { return 8192 }
func (s *stubLLM) SupportsFunctionCalling() bool { return false }
func (s *stubLLM) ModelName() string           { return "stub-model" }
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

type stubEmbedder struct{}

func (s *stubEmbedder) GenerateEmbedding(
	context.Context,
	string,
) (*models.EmbeddingResponse, error) {
	return &models.EmbeddingResponse{Embedding: make([]float32, 4)}, nil
}

func (s *stubEmbedder) GenerateBatch(
	_ context.Context,
	texts []string,
) (*models.BatchEmbeddingResponse, error) {
	embeddings := make([][]float32, len(texts))
	for i := range texts {
		embeddings[i] = make([]float32, 4)
	}
	return &models.BatchEmbeddingResponse{Embeddings: embeddings}, nil
}

func (s *stubEmbedder) Dimensions() int     { return 4 }
func (s *stubEmbedder) MaxInputTokens() int { return 8191 }
func (s *stubEmbedder) ModelName() string   { return "stub-embedder" }
func (s *stubEmbedder) CountTokens(text string) (int, error) {
	return len(strings.Fields(text)), nil
}

type stubVectorStore struct {
	models.VectorStore

	page *models.SearchResultPage
}

func (s *stubVectorStore) SimilaritySearch(
	context.Context,
	*models.SearchQuery,
) (*models.SearchResultPage, error) {
	if s.page == nil {
		return &models.SearchResultPage{Results: []models.SearchResult{}}, nil
	}
	return s.page, nil
}

func (s *stubVectorStore) UpsertEmbeddings(context.Context, []models.Chunk) error { return nil }

func (s *stubVectorStore) DeleteByDocument(context.Context, uuid.UUID) error { return nil }

type stubDocumentStore struct {
	models.DocumentStore

	documents map[uuid.UUID]*models.Document
}

func newStubDocumentStore() *stubDocumentStore {
	return &stubDocumentStore{documents: map[uuid.UUID]*models.Document{}}
}

func (s *stubDocumentStore) CreateDocument(
	_ context.Context,
	document *models.Document,
) (uuid.UUID, error) {
	document.UUID = uuid.New()
	s.documents[document.UUID] = document
	return document.UUID, nil
}

func (s *stubDocumentStore) CreateChunks(
	_ context.Context,
	documentUUID uuid.UUID,
	chunks []models.Chunk,
) ([]uuid.UUID, error) {
	uuids := make([]uuid.UUID, len(chunks))
	for i := range chunks {
		uuids[i] = uuid.New()
	}
	return uuids, nil
}

func (s *stubDocumentStore) GetDocument(
	_ context.Context,
	documentUUID uuid.UUID,
) (*models.Document, error) {
	document, ok := s.documents[documentUUID]
	if !ok {
		return nil, models.NewNotFoundError("document " + documentUUID.String())
	}
	return document, nil
}

func (s *stubDocumentStore) GetDocumentList(
	context.Context,
	string,
	int,
	int,
) (*models.DocumentListResponse, error) {
	documents := make([]models.Document, 0, len(s.documents))
	for _, document := range s.documents {
		documents = append(documents, *document)
	}
	return &models.DocumentListResponse{
		Documents:  documents,
		TotalCount: len(documents),
		RowCount:   len(documents),
	}, nil
}

func (s *stubDocumentStore) DeleteDocument(
	_ context.Context,
	documentUUID uuid.UUID,
) error {
	if _, ok := s.documents[documentUUID]; !ok {
		return models.NewNotFoundError("document " + documentUUID.String())
	}
	delete(s.documents, documentUUID)
	return nil
}

type stubAnswerCache struct {
	entries map[string]*models.CachedAnswer
}

func newStubAnswerCache() *stubAnswerCache {
	return &stubAnswerCache{entries: map[string]*models.CachedAnswer{}}
}

func (s *stubAnswerCache) Get(
	_ context.Context,
	question, party string,
) (*models.CachedAnswer, error) {
	entry, ok := s.entries[question+"|"+party]
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
	s.entries[answer.Question+"|"+answer.Party] = answer
	return nil
}

func (s *stubAnswerCache) PurgeExpired(context.Context) error { return nil }

func testServerConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			Host:             "localhost",
			Port:             8000,
			MaxContentLength: 1 << 20,
		},
		LLM: config.LLM{MaxTokens: 512},
		Retrieval: config.RetrievalConfig{
			Limit:     5,
			Threshold: 0.4,
		},
		Cache: config.CacheConfig{Enabled: true, TTL: time.Hour},
		Ingest: config.IngestConfig{
			ChunkSize:    500,
			ChunkOverlap: 50,
		},
		Stats: config.StatsConfig{CostPer1KTokens: 0.002},
	}
}

func testAppState() *models.AppState {
	results := []models.SearchResult{
		{
			ChunkResponse: &models.ChunkResponse{
				UUID:          uuid.New(),
				DocumentUUID:  uuid.New(),
				DocumentTitle: "Platform 2026",
				Party:         "PLN",
				ChunkIndex:    0,
				Content:       "Education funding will rise every year of the term.",
			},
			Similarity: 0.92,
		},
	}
	cfg := testServerConfig()
	return &models.AppState{
		LLMProvider:       &stubLLM{response: &models.LLMResponse{Content: "answer text", Model: "stub-model"}},
		EmbeddingProvider: &stubEmbedder{},
		VectorStore:       &stubVectorStore{page: &models.SearchResultPage{Results: results, ResultCount: 1}},
		DocumentStore:     newStubDocumentStore(),
		AnswerCache:       newStubAnswerCache(),
		UsageTracker:      stats.NewTracker(cfg.Stats.CostPer1KTokens),
		Config:            cfg,
	}
}
