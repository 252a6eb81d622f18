package models

import (
	"context"

	"github.com/google/uuid"
)

// VectorStore indexes chunk embeddings and serves similarity search.
type VectorStore interface {
	// Initialize prepares the store for use: extension checks, index
	// creation. Called once at startup.
	Initialize(ctx context.Context) error
	// UpsertEmbeddings writes embeddings for existing chunks and marks them
	// embedded. Every chunk's vector width must match the store's configured
	// dimensions.
	UpsertEmbeddings(ctx context.Context, chunks []Chunk) error
	// SimilaritySearch returns the closest chunks to the query embedding,
	// highest similarity first.
	SimilaritySearch(ctx context.Context, query *SearchQuery) (*SearchResultPage, error)
	// DeleteByDocument removes all embeddings belonging to a document.
	DeleteByDocument(ctx context.Context, documentUUID uuid.UUID) error
	// GetByUUID retrieves a single chunk with its embedding.
	GetByUUID(ctx context.Context, chunkUUID uuid.UUID) (*Chunk, error)
	// CountEmbedded returns the number of embedded chunks, optionally
	// restricted to one party.
	CountEmbedded(ctx context.Context, party string) (int, error)
}
