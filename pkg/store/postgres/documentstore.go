package postgres

import (
	"context"

	"github.com/google/uuid"

	"github.com/ticobot/ticobot/internal"
	"github.com/ticobot/ticobot/pkg/models"
	"github.com/ticobot/ticobot/pkg/store"
	"github.com/uptrace/bun"
)

var log = internal.GetLogger()

// NewDocumentStore returns a new DocumentStore. Use this to correctly initialize the store.
func NewDocumentStore(
	appState *models.AppState,
	client *bun.DB,
) (*DocumentStore, error) {
	if appState == nil {
		return nil, store.NewStorageError("nil appState received", nil)
	}

	ds := &DocumentStore{
		BaseDocumentStore: store.BaseDocumentStore[*bun.DB]{Client: client},
		appState:          appState,
	}

	err := ds.OnStart(context.Background())
	if err != nil {
		return nil, store.NewStorageError("failed to run OnInit", err)
	}
	return ds, nil
}

// Force compiler to validate that DocumentStore implements the DocumentStore interface.
var _ models.DocumentStore = &DocumentStore{}

type DocumentStore struct {
	store.BaseDocumentStore[*bun.DB]
	appState *models.AppState
}

func (ds *DocumentStore) OnStart(
	ctx context.Context,
) error {
	err := CreateSchema(ctx, ds.appState, ds.Client)
	if err != nil {
		return store.NewStorageError("failed to ensure postgres schema setup", err)
	}

	return nil
}

func (ds *DocumentStore) GetClient() *bun.DB {
	return ds.Client
}

// CreateDocument stores a new document row and returns its UUID. Chunks are
// stored separately via CreateChunks.
func (ds *DocumentStore) CreateDocument(
	ctx context.Context,
	document *models.Document,
) (uuid.UUID, error) {
	return putDocument(ctx, ds.Client, document)
}

// GetDocument retrieves a document by UUID.
func (ds *DocumentStore) GetDocument(
	ctx context.Context,
	documentUUID uuid.UUID,
) (*models.Document, error) {
	return getDocument(ctx, ds.Client, documentUUID)
}

// GetDocumentList retrieves documents with their chunk counts, optionally
// filtered by party.
func (ds *DocumentStore) GetDocumentList(
	ctx context.Context,
	party string,
	pageNumber int,
	pageSize int,
) (*models.DocumentListResponse, error) {
	return getDocumentList(ctx, ds.Client, party, pageNumber, pageSize)
}

// UpdateDocument updates document provenance fields. Metadata, when present,
// is merged into the stored metadata under an advisory lock.
func (ds *DocumentStore) UpdateDocument(
	ctx context.Context,
	document *models.UpdateDocumentRequest,
) (*models.Document, error) {
	return updateDocument(ctx, ds.Client, document)
}

// DeleteDocument soft-deletes a document and its chunks. Rows are hard
// deleted by the purge processor.
func (ds *DocumentStore) DeleteDocument(
	ctx context.Context,
	documentUUID uuid.UUID,
) error {
	return deleteDocument(ctx, ds.Client, documentUUID)
}

// CreateChunks stores a batch of chunks for a document and returns their
// UUIDs in input order.
func (ds *DocumentStore) CreateChunks(
	ctx context.Context,
	documentUUID uuid.UUID,
	chunks []models.Chunk,
) ([]uuid.UUID, error) {
	return putChunks(ctx, ds.Client, documentUUID, chunks)
}

// GetChunks retrieves chunks by UUID. Missing UUIDs are not an error; the
// result simply omits them.
func (ds *DocumentStore) GetChunks(
	ctx context.Context,
	chunkUUIDs []uuid.UUID,
) ([]models.Chunk, error) {
	return getChunksByUUID(ctx, ds.Client, chunkUUIDs)
}

func (ds *DocumentStore) PurgeDeleted(ctx context.Context) error {
	err := purgeDeleted(ctx, ds.Client)
	if err != nil {
		return store.NewStorageError("failed to purge deleted", err)
	}

	return nil
}

func (ds *DocumentStore) Ping(ctx context.Context) error {
	return ds.Client.PingContext(ctx)
}

func (ds *DocumentStore) Close() error {
	if ds.Client != nil {
		return ds.Client.Close()
	}
	return nil
}
