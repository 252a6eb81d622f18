package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"github.com/uptrace/bun"

	"github.com/ticobot/ticobot/pkg/models"
	"github.com/ticobot/ticobot/pkg/search"
	"github.com/ticobot/ticobot/pkg/store"
)

const DefaultChunkSearchLimit = 10

// DefaultMMRMultiplier is the oversampling factor applied to the search
// limit before MMR reranking.
const DefaultMMRMultiplier = 2

const DefaultMMRLambda = 0.5

// chunkSearchRow is the scan target for search results. Embedding is only
// populated when reranking with MMR.
type chunkSearchRow struct {
	UUID          uuid.UUID              `bun:"uuid"`
	CreatedAt     time.Time              `bun:"created_at"`
	DocumentUUID  uuid.UUID              `bun:"document_uuid"`
	DocumentTitle string                 `bun:"document_title"`
	ChunkIndex    int                    `bun:"chunk_index"`
	Party         string                 `bun:"party"`
	Content       string                 `bun:"content"`
	TokenCount    int                    `bun:"token_count"`
	Metadata      map[string]interface{} `bun:"metadata,type:jsonb"`
	Embedding     []float32              `bun:"embedding,type:real[],array"`
	Similarity    float64                `bun:"similarity"`
}

// chunkSearchOperation runs a single similarity search over chunk
// embeddings. Queries carrying only a metadata filter are served without a
// vector column and ordered by recency.
type chunkSearchOperation struct {
	ctx         context.Context
	appState    *models.AppState
	db          *bun.DB
	searchQuery *models.SearchQuery
	queryVector []float32
	limit       int
	withMMR     bool
	// probes is the ivfflat probe count to set for this query. Zero when no
	// ivfflat index is in use.
	probes int
}

func (cso *chunkSearchOperation) Execute() (*models.SearchResultPage, error) {
	if cso.searchQuery.Text == "" &&
		len(cso.searchQuery.Embedding) == 0 &&
		len(cso.searchQuery.Metadata) == 0 {
		return nil, models.NewBadRequestError("empty query")
	}

	if err := cso.resolveQueryVector(); err != nil {
		return nil, err
	}

	var rows []chunkSearchRow
	var err error
	if cso.probes > 0 {
		// run in transaction to scope the ivfflat.probes setting
		err = cso.db.RunInTx(cso.ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
			_, err := tx.Exec("SET LOCAL ivfflat.probes = ?", cso.probes)
			if err != nil {
				return fmt.Errorf("error setting probes: %w", err)
			}
			rows, err = cso.execQuery(tx)
			return err
		})
	} else {
		rows, err = cso.execQuery(cso.db)
	}
	if err != nil {
		return nil, store.NewStorageError("chunk search failed", err)
	}

	if cso.withMMR && len(cso.queryVector) > 0 {
		rows, err = cso.rerankMMR(rows)
		if err != nil {
			return nil, store.NewStorageError("error applying mmr", err)
		}
	}

	results := make([]models.SearchResult, len(rows))
	for i := range rows {
		results[i] = searchRowToResult(&rows[i])
	}

	return &models.SearchResultPage{
		Results:     results,
		ResultCount: len(results),
		QueryVector: cso.queryVector,
	}, nil
}

// resolveQueryVector fills in the query vector, embedding the query text
// when no vector was supplied. Metadata-only queries stay vectorless.
func (cso *chunkSearchOperation) resolveQueryVector() error {
	if len(cso.searchQuery.Embedding) > 0 {
		cso.queryVector = cso.searchQuery.Embedding
		return nil
	}
	if cso.searchQuery.Text == "" {
		return nil
	}

	if cso.appState.EmbeddingProvider == nil {
		return errors.New("no embedding service configured")
	}
	response, err := cso.appState.EmbeddingProvider.GenerateEmbedding(cso.ctx, cso.searchQuery.Text)
	if err != nil {
		return fmt.Errorf("failed to embed query: %w", err)
	}
	cso.queryVector = response.Embedding

	return nil
}

// execQuery executes the query and scans the results. It accepts a bun DB or Tx.
func (cso *chunkSearchOperation) execQuery(db bun.IDB) ([]chunkSearchRow, error) {
	query, err := cso.buildQuery(db)
	if err != nil {
		return nil, fmt.Errorf("error building query: %w", err)
	}

	var rows []chunkSearchRow
	if err := query.Scan(cso.ctx, &rows); err != nil {
		return nil, fmt.Errorf("error scanning query: %w", err)
	}

	return rows, nil
}

func (cso *chunkSearchOperation) buildQuery(db bun.IDB) (*bun.SelectQuery, error) {
	query := db.NewSelect().
		TableExpr("chunk AS c").
		Join("JOIN document AS d").
		JoinOn("d.uuid = c.document_uuid").
		ColumnExpr("c.uuid AS uuid").
		ColumnExpr("c.created_at AS created_at").
		ColumnExpr("c.document_uuid AS document_uuid").
		ColumnExpr("d.title AS document_title").
		ColumnExpr("c.chunk_index AS chunk_index").
		ColumnExpr("c.party AS party").
		ColumnExpr("c.content AS content").
		ColumnExpr("c.token_count AS token_count").
		ColumnExpr("c.metadata AS metadata")

	// Add the vector columns.
	if len(cso.queryVector) > 0 {
		v := pgvector.NewVector(cso.queryVector)
		// Cosine similarity is 1 - (a <=> b)
		query = query.ColumnExpr("1 - (c.embedding <=> ?) AS similarity", v)
		query = query.Where("c.is_embedded = TRUE")

		if threshold := cso.threshold(); threshold > 0 {
			query = query.Where("1 - (c.embedding <=> ?) >= ?", v, threshold)
		}
	}
	if cso.withMMR {
		query = query.ColumnExpr("c.embedding::real[] AS embedding")
	}

	if cso.searchQuery.Party != "" {
		query = query.Where("c.party = ?", cso.searchQuery.Party)
	}

	if len(cso.searchQuery.Metadata) > 0 {
		var err error
		query, err = cso.applyMetadataFilter(query, cso.searchQuery.Metadata)
		if err != nil {
			return nil, store.NewStorageError("error applying metadata filter", err)
		}
	}

	// Ensure we don't return deleted records.
	query = query.
		Where("c.deleted_at IS NULL").
		Where("d.deleted_at IS NULL")

	// Order by raw distance - required for the vector index to be used.
	if len(cso.queryVector) > 0 {
		query = query.OrderExpr("c.embedding <=> ?", pgvector.NewVector(cso.queryVector))
	} else {
		query = query.Order("c.created_at DESC")
	}

	limit := cso.limit
	if limit == 0 {
		limit = DefaultChunkSearchLimit
	}

	// If we're using MMR, we need to return more results than the limit so we
	// can rerank them.
	if cso.withMMR {
		tmpLimit := limit * cso.mmrMultiplier()
		if tmpLimit < 10 {
			tmpLimit = 10
		}
		query = query.Limit(tmpLimit)
	} else {
		query = query.Limit(limit)
	}

	return query, nil
}

func (cso *chunkSearchOperation) applyMetadataFilter(
	query *bun.SelectQuery,
	metadata map[string]interface{},
) (*bun.SelectQuery, error) {
	qb := query.QueryBuilder()

	if where, ok := metadata["where"]; ok {
		j, err := json.Marshal(where)
		if err != nil {
			return nil, fmt.Errorf("error marshalling metadata: %w", err)
		}

		var jq JSONQuery
		err = json.Unmarshal(j, &jq)
		if err != nil {
			return nil, fmt.Errorf("error unmarshalling metadata: %w", err)
		}
		qb = parseJSONQuery(qb, &jq, false, "c")
	}

	query = qb.Unwrap().(*bun.SelectQuery)

	return query, nil
}

// rerankMMR reranks the results using the Maximal Marginal Relevance algorithm.
func (cso *chunkSearchOperation) rerankMMR(rows []chunkSearchRow) ([]chunkSearchRow, error) {
	if len(rows) == 0 {
		return rows, nil
	}

	limit := cso.limit
	if limit == 0 {
		limit = DefaultChunkSearchLimit
	}

	embeddingList := make([][]float32, len(rows))
	for i := range rows {
		embeddingList[i] = rows[i].Embedding
	}

	rerankedIdxs, err := search.MaximalMarginalRelevance(
		cso.queryVector,
		embeddingList,
		cso.mmrLambda(),
		limit,
	)
	if err != nil {
		return nil, err
	}

	rerankedRows := make([]chunkSearchRow, len(rerankedIdxs))
	for i, idx := range rerankedIdxs {
		rerankedRows[i] = rows[idx]
	}
	return rerankedRows, nil
}

func (cso *chunkSearchOperation) threshold() float64 {
	if cso.searchQuery.Threshold > 0 {
		return cso.searchQuery.Threshold
	}
	if cso.appState.Config != nil {
		return cso.appState.Config.Retrieval.Threshold
	}
	return 0
}

func (cso *chunkSearchOperation) mmrLambda() float32 {
	if cso.searchQuery.MMRLambda > 0 {
		return cso.searchQuery.MMRLambda
	}
	if cso.appState.Config != nil && cso.appState.Config.Retrieval.MMR.Lambda > 0 {
		return float32(cso.appState.Config.Retrieval.MMR.Lambda)
	}
	return DefaultMMRLambda
}

func (cso *chunkSearchOperation) mmrMultiplier() int {
	if cso.appState.Config != nil && cso.appState.Config.Retrieval.MMR.Multiplier > 1 {
		return cso.appState.Config.Retrieval.MMR.Multiplier
	}
	return DefaultMMRMultiplier
}

func searchRowToResult(row *chunkSearchRow) models.SearchResult {
	return models.SearchResult{
		ChunkResponse: &models.ChunkResponse{
			UUID:          row.UUID,
			DocumentUUID:  row.DocumentUUID,
			DocumentTitle: row.DocumentTitle,
			Party:         row.Party,
			ChunkIndex:    row.ChunkIndex,
			Content:       row.Content,
			TokenCount:    row.TokenCount,
			Metadata:      row.Metadata,
			Embedding:     row.Embedding,
		},
		Similarity: row.Similarity,
	}
}
