package postgres

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/ticobot/ticobot/pkg/models"

	"github.com/uptrace/bun"
)

const IndexTimeout = 1 * time.Hour
const EmbeddingColName = "embedding"
const ChunkEmbeddingIndexName = "chunk_embedding_idx"

// MinRowsForIndex is the minimum number of rows required to create an index. The pgvector docs
// recommend creating the index after a representative sample of data is loaded. This is a guesstimate.
const MinRowsForIndex = 10000

// indexMutex serializes ivfflat index creation on the chunk table.
var indexMutex = &sync.Mutex{}

// ChunkVectorIndex manages the ivfflat index on chunk.embedding. List and
// probe counts follow the pgvector tuning guidance for the current row count.
type ChunkVectorIndex struct {
	appState   *models.AppState
	db         *bun.DB
	ColName    string
	RowCount   int
	ListCount  int
	ProbeCount int
}

func NewChunkVectorIndex(appState *models.AppState, db *bun.DB) *ChunkVectorIndex {
	return &ChunkVectorIndex{
		appState: appState,
		db:       db,
		ColName:  EmbeddingColName,
	}
}

func (vci *ChunkVectorIndex) CountRows(ctx context.Context) error {
	count, err := vci.db.NewSelect().
		Model((*ChunkSchema)(nil)).
		Count(ctx)
	if err != nil {
		return fmt.Errorf("error counting rows: %w", err)
	}

	vci.RowCount = count

	return nil
}

// IndexExists reports whether the ivfflat index is already present.
func (vci *ChunkVectorIndex) IndexExists(ctx context.Context) (bool, error) {
	exists, err := vci.db.NewSelect().
		TableExpr("pg_indexes").
		Where("tablename = ?", "chunk").
		Where("indexname = ?", ChunkEmbeddingIndexName).
		Exists(ctx)
	if err != nil {
		return false, fmt.Errorf("error checking for index: %w", err)
	}

	return exists, nil
}

// CalculateListCount calculates the number of lists to use for the index.
func (vci *ChunkVectorIndex) CalculateListCount() error {
	if vci.RowCount <= 0 {
		return fmt.Errorf("rows must be greater than 0")
	}

	switch {
	case vci.RowCount <= 1000:
		vci.ListCount = 1
	case vci.RowCount <= 1_000_000:
		vci.ListCount = vci.RowCount / 1000
	default:
		vci.ListCount = int(math.Sqrt(float64(vci.RowCount)))
	}

	return nil
}

func (vci *ChunkVectorIndex) CalculateProbes() error {
	// sqrt(lists)
	if vci.ListCount <= 0 {
		return errors.New("lists must be greater than 0")
	}
	vci.ProbeCount = int(math.Sqrt(float64(vci.ListCount)))

	return nil
}

// CreateIndex builds the ivfflat index in the background, dropping any prior
// index first so the list count matches the current row count. DROP and
// CREATE both run CONCURRENTLY, so neither can run in a transaction.
func (vci *ChunkVectorIndex) CreateIndex(_ context.Context, force bool) error {
	indexMutex.Lock()

	// If this is not a forced index creation, check if there are enough rows to create an index.
	if !force && vci.RowCount < MinRowsForIndex {
		indexMutex.Unlock()
		return fmt.Errorf("not enough rows to create index")
	}
	if vci.ListCount <= 0 {
		if err := vci.CalculateListCount(); err != nil {
			indexMutex.Unlock()
			return fmt.Errorf("failed to calculate list count: %w", err)
		}
	}

	db := vci.db

	// run index creation in a goroutine with IndexTimeout
	go func() {
		defer indexMutex.Unlock()
		// Create a new context with a timeout
		ctx, cancel := context.WithTimeout(context.Background(), IndexTimeout)
		defer cancel()

		_, err := db.ExecContext(
			ctx,
			"DROP INDEX CONCURRENTLY IF EXISTS ?",
			bun.Ident(ChunkEmbeddingIndexName),
		)
		if err != nil {
			log.Error("error dropping index: ", err)
			return
		}

		// currently only supports cosine distance ops
		log.Infof("starting ivfflat index creation with %d lists", vci.ListCount)
		_, err = db.ExecContext(
			ctx,
			"CREATE INDEX CONCURRENTLY ? ON chunk USING ivfflat (embedding vector_cosine_ops) WITH (lists = ?)",
			bun.Ident(ChunkEmbeddingIndexName),
			vci.ListCount,
		)
		if err != nil {
			log.Error("error creating index: ", err)
			return
		}

		log.Info("ivfflat index creation completed successfully")
	}()

	return nil
}
