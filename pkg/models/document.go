package models

import (
	"time"

	"github.com/google/uuid"
)

// Document is a source text about a party platform. Its content lives in
// chunks; the document row carries provenance.
type Document struct {
	UUID        uuid.UUID              `json:"uuid"`
	CreatedAt   time.Time              `json:"created_at"`
	UpdatedAt   time.Time              `json:"updated_at"`
	Title       string                 `json:"title"`
	Party       string                 `json:"party"`
	Source      string                 `json:"source,omitempty"`
	SourceURL   string                 `json:"source_url,omitempty"`
	PublishedAt *time.Time             `json:"published_at,omitempty"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
	ChunkCount  int                    `json:"chunk_count"`
}

// Chunk is a contiguous span of a document's content. Party is denormalized
// from the parent document so filtered similarity search doesn't join.
type Chunk struct {
	UUID         uuid.UUID              `json:"uuid"`
	CreatedAt    time.Time              `json:"created_at"`
	DocumentUUID uuid.UUID              `json:"document_uuid"`
	ChunkIndex   int                    `json:"chunk_index"`
	Content      string                 `json:"content"`
	TokenCount   int                    `json:"token_count"`
	Party        string                 `json:"party"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
	Embedding    []float32              `json:"embedding,omitempty"`
	IsEmbedded   bool                   `json:"is_embedded"`
}

type CreateDocumentRequest struct {
	Title       string                 `json:"title"        validate:"required,max=512"`
	Party       string                 `json:"party"        validate:"required,max=128"`
	Content     string                 `json:"content"      validate:"required"`
	Source      string                 `json:"source,omitempty"`
	SourceURL   string                 `json:"source_url,omitempty"   validate:"omitempty,url"`
	PublishedAt *time.Time             `json:"published_at,omitempty"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
}

// UpdateDocumentRequest updates document provenance. Metadata, when present,
// is merged into the stored metadata rather than replacing it. Content is
// immutable; re-ingest to change it.
type UpdateDocumentRequest struct {
	UUID      uuid.UUID              `json:"uuid"`
	Title     string                 `json:"title,omitempty"      validate:"omitempty,max=512"`
	Source    string                 `json:"source,omitempty"`
	SourceURL string                 `json:"source_url,omitempty" validate:"omitempty,url"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

type CreateDocumentResponse struct {
	UUID       uuid.UUID `json:"uuid"`
	ChunkCount int       `json:"chunk_count"`
	// Embedded is false when chunk embedding was deferred to the task queue.
	Embedded bool `json:"embedded"`
}

type DocumentListResponse struct {
	Documents  []Document `json:"documents"`
	TotalCount int        `json:"total_count"`
	RowCount   int        `json:"row_count"`
}
