package models

import (
	"context"

	"github.com/google/uuid"
)

// DocumentStore persists documents and their chunks.
type DocumentStore interface {
	// CreateDocument stores a new document row and returns its UUID.
	// Chunks are created separately via CreateChunks.
	CreateDocument(ctx context.Context, document *Document) (uuid.UUID, error)
	// GetDocument retrieves a document by UUID.
	GetDocument(ctx context.Context, documentUUID uuid.UUID) (*Document, error)
	// GetDocumentList retrieves documents, optionally filtered by party.
	// Parameters:
	// - party: When non-empty, only documents for this party are returned.
	// - pageNumber: Specifies the current page number in the pagination scheme.
	// - pageSize: Determines the number of results per page.
	GetDocumentList(
		ctx context.Context,
		party string,
		pageNumber int,
		pageSize int,
	) (*DocumentListResponse, error)
	// UpdateDocument updates document provenance fields. Metadata is merged
	// into the existing metadata under an advisory lock.
	UpdateDocument(ctx context.Context, document *UpdateDocumentRequest) (*Document, error)
	// DeleteDocument soft-deletes a document and its chunks. Rows are hard
	// deleted by the purge processor.
	DeleteDocument(ctx context.Context, documentUUID uuid.UUID) error
	// CreateChunks stores a batch of chunks for a document and returns their
	// UUIDs in input order.
	CreateChunks(ctx context.Context, documentUUID uuid.UUID, chunks []Chunk) ([]uuid.UUID, error)
	// GetChunks retrieves chunks by UUID. Missing UUIDs are not an error;
	// the result simply omits them.
	GetChunks(ctx context.Context, chunkUUIDs []uuid.UUID) ([]Chunk, error)
	// PurgeDeleted hard deletes all soft-deleted rows.
	PurgeDeleted(ctx context.Context) error
	// Ping verifies the database connection is alive.
	Ping(ctx context.Context) error
	// OnStart is called when the application starts. This is a good place to
	// create the schema and verify the embedding column width.
	OnStart(ctx context.Context) error
	Close() error
}
