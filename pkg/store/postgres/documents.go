package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/retrypolicy"
	"github.com/google/uuid"
	"github.com/jinzhu/copier"
	"github.com/ticobot/ticobot/pkg/models"
	"github.com/uptrace/bun"
)

const DefaultDocumentPageSize = 10

// chunkCountExpr counts a document's live chunks. Used as a scanonly column
// on document reads.
const chunkCountExpr = "(SELECT count(*) FROM chunk WHERE chunk.document_uuid = d.uuid AND chunk.deleted_at IS NULL)"

// putDocument inserts a document row and returns its UUID.
func putDocument(
	ctx context.Context,
	db *bun.DB,
	document *models.Document,
) (uuid.UUID, error) {
	if document.Title == "" {
		return uuid.Nil, models.NewBadRequestError("document title cannot be empty")
	}
	if document.Party == "" {
		return uuid.Nil, models.NewBadRequestError("document party cannot be empty")
	}

	documentDB := &DocumentSchema{
		Title:       document.Title,
		Party:       document.Party,
		Source:      document.Source,
		SourceURL:   document.SourceURL,
		PublishedAt: document.PublishedAt,
		Metadata:    document.Metadata,
	}
	_, err := db.NewInsert().
		Model(documentDB).
		Returning("*").
		Exec(ctx)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to insert document: %w", err)
	}

	document.UUID = documentDB.UUID
	document.CreatedAt = documentDB.CreatedAt
	document.UpdatedAt = documentDB.UpdatedAt

	return documentDB.UUID, nil
}

// getDocument retrieves a document by UUID with its live chunk count.
func getDocument(
	ctx context.Context,
	db *bun.DB,
	documentUUID uuid.UUID,
) (*models.Document, error) {
	documentDB := new(DocumentSchema)
	err := db.NewSelect().
		Model(documentDB).
		ColumnExpr("d.*").
		ColumnExpr(chunkCountExpr + " AS chunk_count").
		Where("d.uuid = ?", documentUUID).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.NewNotFoundError("document " + documentUUID.String())
		}
		return nil, fmt.Errorf("failed to get document: %w", err)
	}

	return documentSchemaToDocument(documentDB)
}

// getDocumentList retrieves a page of documents, optionally filtered by
// party. Documents are ordered by their insertion cursor, oldest first.
func getDocumentList(
	ctx context.Context,
	db *bun.DB,
	party string,
	pageNumber int,
	pageSize int,
) (*models.DocumentListResponse, error) {
	if pageSize <= 0 {
		pageSize = DefaultDocumentPageSize
	}
	if pageNumber <= 0 {
		pageNumber = 1
	}

	var documentsDB []DocumentSchema
	query := db.NewSelect().
		Model(&documentsDB).
		ColumnExpr("d.*").
		ColumnExpr(chunkCountExpr + " AS chunk_count")

	if party != "" {
		query = query.Where("d.party = ?", party)
	}

	total, err := query.
		Order("d.id ASC").
		Limit(pageSize).
		Offset((pageNumber - 1) * pageSize).
		ScanAndCount(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get document list: %w", err)
	}

	documents := make([]models.Document, len(documentsDB))
	if err := copier.Copy(&documents, &documentsDB); err != nil {
		return nil, fmt.Errorf("failed to copy documents: %w", err)
	}

	return &models.DocumentListResponse{
		Documents:  documents,
		TotalCount: total,
		RowCount:   len(documents),
	}, nil
}

// updateDocument updates document provenance fields. If metadata is present,
// it is merged into the stored metadata under an advisory lock keyed on the
// document UUID, preventing concurrent updates from clobbering each other.
func updateDocument(
	ctx context.Context,
	db *bun.DB,
	document *models.UpdateDocumentRequest,
) (*models.Document, error) {
	if document.UUID == uuid.Nil {
		return nil, models.NewBadRequestError("document UUID cannot be empty")
	}

	// if metadata is null, we can keep this a cheap operation
	if document.Metadata == nil {
		return updateDocumentColumns(ctx, db, document)
	}

	// Acquire a lock for this document UUID. This is to prevent concurrent
	// updates to the document metadata.
	lockRetryPolicy := retrypolicy.Builder[any]().
		HandleErrors(models.ErrLockAcquisitionFailed).
		WithBackoff(200*time.Millisecond, 10*time.Second).
		WithMaxRetries(7).
		Build()

	lockIDVal, err := failsafe.Get(func() (any, error) {
		return tryAcquireAdvisoryLock(ctx, db, document.UUID.String())
	}, lockRetryPolicy)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire advisory lock: %w", err)
	}

	lockID, ok := lockIDVal.(uint64)
	if !ok {
		return nil, fmt.Errorf("failed to acquire advisory lock: %w", models.ErrLockAcquisitionFailed)
	}

	defer func(ctx context.Context, db bun.IDB, lockID uint64) {
		err := releaseAdvisoryLock(ctx, db, lockID)
		if err != nil {
			log.Errorf("failed to release advisory lock: %v", err)
		}
	}(ctx, db, lockID)

	mergedMetadata, err := mergeMetadata(
		ctx,
		db,
		"uuid",
		document.UUID.String(),
		"document",
		document.Metadata,
		false,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to merge metadata: %w", err)
	}

	document.Metadata = mergedMetadata
	return updateDocumentColumns(ctx, db, document)
}

func updateDocumentColumns(
	ctx context.Context,
	db *bun.DB,
	document *models.UpdateDocumentRequest,
) (*models.Document, error) {
	documentDB := DocumentSchema{
		Title:     document.Title,
		Source:    document.Source,
		SourceURL: document.SourceURL,
		Metadata:  document.Metadata,
	}
	r, err := db.NewUpdate().
		Model(&documentDB).
		Column("title", "source", "source_url", "metadata", "updated_at").
		OmitZero().
		Where("uuid = ?", document.UUID).
		Exec(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to update document: %w", err)
	}
	rowsAffected, err := r.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return nil, models.NewNotFoundError("document " + document.UUID.String())
	}

	// We can't return the updated document above as we're using OmitZero,
	// so we need to get the updated document from the DB
	return getDocument(ctx, db, document.UUID)
}

// deleteDocument soft-deletes a document and its chunks.
// Note: soft deletes don't trigger cascade deletes, so we need to delete the
// chunk rows manually.
func deleteDocument(
	ctx context.Context,
	db *bun.DB,
	documentUUID uuid.UUID,
) error {
	tx, err := db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer rollbackOnError(tx)

	r, err := tx.NewDelete().
		Model((*DocumentSchema)(nil)).
		Where("uuid = ?", documentUUID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	rowsAffected, err := r.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return models.NewNotFoundError("document " + documentUUID.String())
	}

	_, err = tx.NewDelete().
		Model((*ChunkSchema)(nil)).
		Where("document_uuid = ?", documentUUID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to delete chunks: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit delete: %w", err)
	}

	return nil
}

// putChunks inserts a batch of chunks for a document. The parent document
// must exist; its party is stamped onto every chunk so filtered search never
// needs a join.
func putChunks(
	ctx context.Context,
	db *bun.DB,
	documentUUID uuid.UUID,
	chunks []models.Chunk,
) ([]uuid.UUID, error) {
	if len(chunks) == 0 {
		return nil, nil
	}

	document, err := getDocument(ctx, db, documentUUID)
	if err != nil {
		return nil, err
	}

	chunksDB := make([]ChunkSchema, len(chunks))
	for i := range chunks {
		chunksDB[i] = ChunkSchema{
			DocumentUUID: documentUUID,
			ChunkIndex:   chunks[i].ChunkIndex,
			Party:        document.Party,
			Content:      chunks[i].Content,
			TokenCount:   chunks[i].TokenCount,
			Metadata:     chunks[i].Metadata,
		}
	}

	_, err = db.NewInsert().
		Model(&chunksDB).
		Returning("uuid").
		Exec(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to insert chunks: %w", err)
	}

	chunkUUIDs := make([]uuid.UUID, len(chunksDB))
	for i := range chunksDB {
		chunkUUIDs[i] = chunksDB[i].UUID
	}

	return chunkUUIDs, nil
}

// chunkRow is the scan target for chunk reads. The embedding is cast to
// real[] in the query so null embeddings scan cleanly.
type chunkRow struct {
	UUID         uuid.UUID              `bun:"uuid"`
	CreatedAt    time.Time              `bun:"created_at"`
	DocumentUUID uuid.UUID              `bun:"document_uuid"`
	ChunkIndex   int                    `bun:"chunk_index"`
	Party        string                 `bun:"party"`
	Content      string                 `bun:"content"`
	TokenCount   int                    `bun:"token_count"`
	Metadata     map[string]interface{} `bun:"metadata,type:jsonb"`
	Embedding    []float32              `bun:"embedding,type:real[],array"`
	IsEmbedded   bool                   `bun:"is_embedded"`
}

func (row *chunkRow) toChunk() models.Chunk {
	return models.Chunk{
		UUID:         row.UUID,
		CreatedAt:    row.CreatedAt,
		DocumentUUID: row.DocumentUUID,
		ChunkIndex:   row.ChunkIndex,
		Party:        row.Party,
		Content:      row.Content,
		TokenCount:   row.TokenCount,
		Metadata:     row.Metadata,
		Embedding:    row.Embedding,
		IsEmbedded:   row.IsEmbedded,
	}
}

// getChunksByUUID retrieves chunks by UUID, in input order. Missing UUIDs
// are omitted from the result.
func getChunksByUUID(
	ctx context.Context,
	db *bun.DB,
	chunkUUIDs []uuid.UUID,
) ([]models.Chunk, error) {
	if len(chunkUUIDs) == 0 {
		return nil, nil
	}

	var rows []chunkRow
	err := db.NewSelect().
		Model((*ChunkSchema)(nil)).
		Column("uuid", "created_at", "document_uuid", "chunk_index", "party",
			"content", "token_count", "metadata", "is_embedded").
		// cast the vector to a float array
		ColumnExpr("embedding::real[] AS embedding").
		Where("uuid IN (?)", bun.In(chunkUUIDs)).
		Scan(ctx, &rows)
	if err != nil {
		return nil, fmt.Errorf("failed to get chunks: %w", err)
	}

	chunksByUUID := make(map[uuid.UUID]models.Chunk, len(rows))
	for i := range rows {
		chunksByUUID[rows[i].UUID] = rows[i].toChunk()
	}

	chunks := make([]models.Chunk, 0, len(rows))
	for _, chunkUUID := range chunkUUIDs {
		if chunk, ok := chunksByUUID[chunkUUID]; ok {
			chunks = append(chunks, chunk)
		}
	}

	return chunks, nil
}

func documentSchemaToDocument(documentDB *DocumentSchema) (*models.Document, error) {
	document := models.Document{}
	if err := copier.Copy(&document, documentDB); err != nil {
		return nil, fmt.Errorf("failed to copy document: %w", err)
	}
	return &document, nil
}
