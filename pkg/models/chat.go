package models

import (
	"github.com/google/uuid"
)

type ChatRequest struct {
	Question string `json:"question" validate:"required,min=3,max=2000"`
	// Party restricts retrieval to a single party's documents.
	Party string `json:"party,omitempty" validate:"max=128"`
	// UseCache overrides the configured cache policy for this request.
	UseCache *bool `json:"use_cache,omitempty"`
	// SearchLimit overrides the configured retrieval limit for this request.
	SearchLimit int `json:"search_limit,omitempty" validate:"omitempty,min=1,max=20"`
}

// Source identifies a chunk that grounded an answer.
type Source struct {
	DocumentUUID uuid.UUID `json:"document_uuid"`
	Title        string    `json:"title,omitempty"`
	Party        string    `json:"party"`
	ChunkIndex   int       `json:"chunk_index"`
	Similarity   float64   `json:"similarity"`
}

// ContextStats reports how the retrieved context was fitted into the prompt
// and what the compact serialization saved over the JSON baseline.
type ContextStats struct {
	ChunksRetrieved int     `json:"chunks_retrieved"`
	ChunksUsed      int     `json:"chunks_used"`
	ContextTokens   int     `json:"context_tokens"`
	JSONTokens      int     `json:"json_tokens"`
	SavingsPercent  float64 `json:"savings_percent"`
}

type ChatResponse struct {
	Answer  string   `json:"answer"`
	Sources []Source `json:"sources"`
	// Cached is true when the answer was served from the answer cache.
	Cached       bool          `json:"cached"`
	Model        string        `json:"model,omitempty"`
	Usage        TokenUsage    `json:"usage"`
	ContextStats *ContextStats `json:"context_stats,omitempty"`
}
