package postgres

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/ticobot/ticobot/pkg/models"
	"github.com/ticobot/ticobot/pkg/store"
	"github.com/uptrace/bun"
)

// NewVectorStore returns a new VectorStore. Use this to correctly initialize the store.
func NewVectorStore(
	appState *models.AppState,
	client *bun.DB,
) (*VectorStore, error) {
	if appState == nil {
		return nil, store.NewStorageError("nil appState received", nil)
	}

	vs := &VectorStore{
		BaseVectorStore: store.BaseVectorStore[*bun.DB]{Client: client},
		appState:        appState,
		dimensions:      embeddingDimensions(appState),
	}

	return vs, nil
}

// Force compiler to validate that VectorStore implements the VectorStore interface.
var _ models.VectorStore = &VectorStore{}

type VectorStore struct {
	store.BaseVectorStore[*bun.DB]
	appState   *models.AppState
	dimensions int

	mu sync.Mutex
	// probeCount is the ivfflat probe count applied per search. Zero when
	// searches run without an ivfflat index.
	probeCount int
}

// Initialize prepares vector indexing. When HNSW is available the index was
// created with the schema and nothing more is needed. Otherwise an ivfflat
// index is created once the chunk count warrants one, and the probe count is
// derived from the current row count.
func (vs *VectorStore) Initialize(ctx context.Context) error {
	if vs.appState.Config.Store.Postgres.AvailableIndexes.HSNW {
		log.Debug("hnsw index in use; skipping ivfflat indexing")
		return nil
	}

	vci := NewChunkVectorIndex(vs.appState, vs.Client)

	if err := vci.CountRows(ctx); err != nil {
		return store.NewStorageError("failed to count chunk rows", err)
	}

	exists, err := vci.IndexExists(ctx)
	if err != nil {
		return store.NewStorageError("failed to check for ivfflat index", err)
	}

	if !exists {
		if vci.RowCount < MinRowsForIndex {
			log.Debugf(
				"chunk row count %d below indexing threshold %d; using sequential scan",
				vci.RowCount,
				MinRowsForIndex,
			)
			return nil
		}
		if err := vci.CreateIndex(ctx, false); err != nil {
			return store.NewStorageError("failed to create ivfflat index", err)
		}
	}

	if err := vci.CalculateListCount(); err != nil {
		return store.NewStorageError("failed to calculate list count", err)
	}
	if err := vci.CalculateProbes(); err != nil {
		return store.NewStorageError("failed to calculate probes", err)
	}

	vs.mu.Lock()
	vs.probeCount = vci.ProbeCount
	vs.mu.Unlock()

	return nil
}

func (vs *VectorStore) probes() int {
	vs.mu.Lock()
	defer vs.mu.Unlock()
	return vs.probeCount
}

// chunkEmbeddingRow carries uuid + embedding pairs into the update CTE.
// We use real[] here to get around having to explicitly use vector and
// define the vector width; postgres casts it on assignment.
type chunkEmbeddingRow struct {
	UUID      uuid.UUID `bun:"uuid,type:uuid"`
	Embedding []float32 `bun:"embedding,type:real[]"`
}

// UpsertEmbeddings writes embeddings for existing chunks and marks them
// embedded. The uuids and embeddings of the chunks must be set; other fields
// are ignored. If any vector's width differs from the store's configured
// dimensions, nothing is written.
func (vs *VectorStore) UpsertEmbeddings(
	ctx context.Context,
	chunks []models.Chunk,
) error {
	if len(chunks) == 0 {
		return nil
	}

	rows := make([]chunkEmbeddingRow, len(chunks))
	for i := range chunks {
		if len(chunks[i].Embedding) != vs.dimensions {
			return store.NewEmbeddingMismatchError(
				fmt.Errorf(
					"chunk %s embedding has width %d, expected %d",
					chunks[i].UUID,
					len(chunks[i].Embedding),
					vs.dimensions,
				),
			)
		}
		rows[i] = chunkEmbeddingRow{
			UUID:      chunks[i].UUID,
			Embedding: chunks[i].Embedding,
		}
	}

	values := vs.Client.NewValues(&rows).Column("uuid", "embedding")
	r, err := vs.Client.NewUpdate().
		With("_data", values).
		ModelTableExpr("chunk AS c").
		TableExpr("_data").
		Set("embedding = _data.embedding").
		Set("is_embedded = TRUE").
		Set("updated_at = CURRENT_TIMESTAMP").
		Where("c.uuid = _data.uuid").
		Returning(""). // we don't need to return anything
		Exec(ctx)
	if err != nil {
		return store.NewStorageError("failed to update chunk embeddings", err)
	}

	rowsAffected, err := r.RowsAffected()
	if err != nil {
		return store.NewStorageError("failed to get rows affected", err)
	}
	if rowsAffected != int64(len(chunks)) {
		return store.NewStorageError(
			fmt.Sprintf(
				"failed to update all chunk embeddings: %d != %d",
				rowsAffected,
				len(chunks),
			),
			nil,
		)
	}

	return nil
}

// SimilaritySearch returns the closest chunks to the query, highest
// similarity first.
func (vs *VectorStore) SimilaritySearch(
	ctx context.Context,
	query *models.SearchQuery,
) (*models.SearchResultPage, error) {
	if query == nil {
		return nil, models.NewBadRequestError("nil query received")
	}

	limit := query.Limit
	if limit == 0 && vs.appState.Config != nil {
		limit = vs.appState.Config.Retrieval.Limit
	}

	withMMR := query.SearchType == models.SearchTypeMMR
	if query.SearchType == "" && vs.appState.Config != nil {
		withMMR = vs.appState.Config.Retrieval.MMR.Enabled
	}

	operation := &chunkSearchOperation{
		ctx:         ctx,
		appState:    vs.appState,
		db:          vs.Client,
		searchQuery: query,
		limit:       limit,
		withMMR:     withMMR,
		probes:      vs.probes(),
	}

	return operation.Execute()
}

// DeleteByDocument clears the embeddings of a document's live chunks and
// marks them unembedded. Used when a document must be re-embedded; deleted
// documents drop out of search via their soft-delete flags.
func (vs *VectorStore) DeleteByDocument(
	ctx context.Context,
	documentUUID uuid.UUID,
) error {
	_, err := vs.Client.NewUpdate().
		Model((*ChunkSchema)(nil)).
		Set("embedding = NULL").
		Set("is_embedded = FALSE").
		Where("document_uuid = ?", documentUUID).
		Exec(ctx)
	if err != nil {
		return store.NewStorageError("failed to delete document embeddings", err)
	}

	return nil
}

// GetByUUID retrieves a single chunk with its embedding.
func (vs *VectorStore) GetByUUID(
	ctx context.Context,
	chunkUUID uuid.UUID,
) (*models.Chunk, error) {
	chunks, err := getChunksByUUID(ctx, vs.Client, []uuid.UUID{chunkUUID})
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		return nil, models.NewNotFoundError("chunk " + chunkUUID.String())
	}

	return &chunks[0], nil
}

// CountEmbedded returns the number of embedded chunks, optionally restricted
// to one party.
func (vs *VectorStore) CountEmbedded(
	ctx context.Context,
	party string,
) (int, error) {
	query := vs.Client.NewSelect().
		Model((*ChunkSchema)(nil)).
		Where("is_embedded = TRUE")

	if party != "" {
		query = query.Where("party = ?", party)
	}

	count, err := query.Count(ctx)
	if err != nil {
		return 0, store.NewStorageError("failed to count embedded chunks", err)
	}

	return count, nil
}
