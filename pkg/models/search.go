package models

import (
	"github.com/google/uuid"
)

type SearchType string

const (
	SearchTypeSimilarity SearchType = "similarity"
	SearchTypeMMR        SearchType = "mmr"
)

// SearchQuery describes a similarity search over chunk embeddings. Either
// Text or Embedding must be set; when both are set, Embedding wins.
type SearchQuery struct {
	Text      string                 `json:"text,omitempty"`
	Embedding []float32              `json:"embedding,omitempty"`
	Party     string                 `json:"party,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	// Threshold drops results with a cosine similarity below it. Zero keeps
	// everything.
	Threshold  float64    `json:"threshold,omitempty"`
	Limit      int        `json:"limit,omitempty"`
	SearchType SearchType `json:"search_type,omitempty"`
	MMRLambda  float32    `json:"mmr_lambda,omitempty"`
}

type ChunkResponse struct {
	UUID          uuid.UUID              `json:"uuid"`
	DocumentUUID  uuid.UUID              `json:"document_uuid"`
	DocumentTitle string                 `json:"document_title,omitempty"`
	Party         string                 `json:"party"`
	ChunkIndex    int                    `json:"chunk_index"`
	Content       string                 `json:"content"`
	TokenCount    int                    `json:"token_count"`
	Metadata      map[string]interface{} `json:"metadata,omitempty"`
	Embedding     []float32              `json:"-"`
}

type SearchResult struct {
	*ChunkResponse
	Similarity float64 `json:"similarity"`
}

type SearchResultPage struct {
	Results     []SearchResult `json:"results"`
	ResultCount int            `json:"result_count"`
	QueryVector []float32      `json:"-"`
}
