package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/uptrace/bun/driver/pgdriver"

	"github.com/ticobot/ticobot/pkg/store/postgres/migrations"
	"github.com/uptrace/bun/dialect/pgdialect"

	"github.com/ticobot/ticobot/pkg/models"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/extra/bunotel"
)

// DefaultEmbeddingDims is used for the chunk embedding column when no
// embedding service has been configured yet. The column is migrated to the
// configured width at startup.
const DefaultEmbeddingDims = 1536

type DocumentSchema struct {
	bun.BaseModel `bun:"table:document,alias:d" yaml:"-"`

	UUID uuid.UUID `bun:",pk,type:uuid,default:gen_random_uuid()" yaml:"uuid,omitempty"`
	// ID is used as a cursor for pagination
	ID          int64                  `bun:",autoincrement" yaml:"id,omitempty"`
	CreatedAt   time.Time              `bun:"type:timestamptz,nullzero,notnull,default:current_timestamp" yaml:"created_at,omitempty"`
	UpdatedAt   time.Time              `bun:"type:timestamptz,nullzero,default:current_timestamp" yaml:"updated_at,omitempty"`
	DeletedAt   time.Time              `bun:"type:timestamptz,soft_delete,nullzero" yaml:"deleted_at,omitempty"`
	Title       string                 `bun:",notnull" yaml:"title,omitempty"`
	Party       string                 `bun:",notnull" yaml:"party,omitempty"`
	Source      string                 `bun:",nullzero" yaml:"source,omitempty"`
	SourceURL   string                 `bun:",nullzero" yaml:"source_url,omitempty"`
	PublishedAt *time.Time             `bun:"type:timestamptz,nullzero" yaml:"published_at,omitempty"`
	Metadata    map[string]interface{} `bun:"type:jsonb,nullzero,json_use_number" yaml:"metadata,omitempty"`
	// ChunkCount is computed on read; it is not a table column.
	ChunkCount int `bun:"chunk_count,scanonly" yaml:"-"`
}

var _ bun.BeforeAppendModelHook = (*DocumentSchema)(nil)

func (d *DocumentSchema) BeforeAppendModel(_ context.Context, query bun.Query) error {
	if _, ok := query.(*bun.UpdateQuery); ok {
		d.UpdatedAt = time.Now()
	}
	return nil
}

// BeforeCreateTable is a marker method to ensure uniform interface across all table models - used in table creation iterator
func (d *DocumentSchema) BeforeCreateTable(
	_ context.Context,
	_ *bun.CreateTableQuery,
) error {
	return nil
}

// ChunkSchema stores a span of document content together with its embedding.
// The embedding column width is fixed at table creation and migrated at
// startup when the configured embedding width differs.
type ChunkSchema struct {
	bun.BaseModel `bun:"table:chunk,alias:c" yaml:"-"`

	UUID         uuid.UUID `bun:",pk,type:uuid,default:gen_random_uuid()" yaml:"uuid,omitempty"`
	CreatedAt    time.Time `bun:"type:timestamptz,nullzero,notnull,default:current_timestamp" yaml:"created_at,omitempty"`
	UpdatedAt    time.Time `bun:"type:timestamptz,nullzero,default:current_timestamp" yaml:"updated_at,omitempty"`
	DeletedAt    time.Time `bun:"type:timestamptz,soft_delete,nullzero" yaml:"deleted_at,omitempty"`
	DocumentUUID uuid.UUID `bun:"type:uuid,notnull,unique:chunk_document_uuid_chunk_index" yaml:"document_uuid,omitempty"`
	ChunkIndex   int       `bun:",notnull,unique:chunk_document_uuid_chunk_index" yaml:"chunk_index"`
	// Party is denormalized from the parent document so filtered similarity
	// search doesn't need a join.
	Party      string                 `bun:",notnull" yaml:"party,omitempty"`
	Content    string                 `bun:",notnull" yaml:"content,omitempty"`
	TokenCount int                    `bun:",notnull" yaml:"token_count,omitempty"`
	Metadata   map[string]interface{} `bun:"type:jsonb,nullzero,json_use_number" yaml:"metadata,omitempty"`
	Embedding  pgvector.Vector        `bun:"type:vector(1536),nullzero" yaml:"-"`
	IsEmbedded bool                   `bun:"type:bool,notnull,default:false" yaml:"is_embedded"`
	Document   *DocumentSchema        `bun:"rel:belongs-to,join:document_uuid=uuid,on_delete:cascade" yaml:"-"`
}

var _ bun.BeforeAppendModelHook = (*ChunkSchema)(nil)

func (c *ChunkSchema) BeforeAppendModel(_ context.Context, query bun.Query) error {
	if _, ok := query.(*bun.UpdateQuery); ok {
		c.UpdatedAt = time.Now()
	}
	return nil
}

func (c *ChunkSchema) BeforeCreateTable(
	_ context.Context,
	_ *bun.CreateTableQuery,
) error {
	return nil
}

// AnswerCacheSchema stores generated answers keyed by normalized question and
// party. Party is stored as the empty string for answers spanning all parties
// so the (question, party) pair stays unique. Expired rows are treated as
// absent on read and hard deleted by the purge processor.
type AnswerCacheSchema struct {
	bun.BaseModel `bun:"table:answer_cache,alias:ac" yaml:"-"`

	UUID      uuid.UUID  `bun:",pk,type:uuid,default:gen_random_uuid()" yaml:"uuid,omitempty"`
	CreatedAt time.Time  `bun:"type:timestamptz,nullzero,notnull,default:current_timestamp" yaml:"created_at,omitempty"`
	UpdatedAt time.Time  `bun:"type:timestamptz,nullzero,default:current_timestamp" yaml:"updated_at,omitempty"`
	Question  string     `bun:",notnull,unique:answer_cache_question_party" yaml:"question,omitempty"`
	Party     string     `bun:",notnull,default:'',unique:answer_cache_question_party" yaml:"party"`
	Answer    string     `bun:",notnull" yaml:"answer,omitempty"`
	Sources   []byte     `bun:"type:jsonb,nullzero" yaml:"-"`
	ExpiresAt *time.Time `bun:"type:timestamptz,nullzero" yaml:"expires_at,omitempty"`
}

var _ bun.BeforeAppendModelHook = (*AnswerCacheSchema)(nil)

func (a *AnswerCacheSchema) BeforeAppendModel(_ context.Context, query bun.Query) error {
	if _, ok := query.(*bun.UpdateQuery); ok {
		a.UpdatedAt = time.Now()
	}
	return nil
}

func (a *AnswerCacheSchema) BeforeCreateTable(
	_ context.Context,
	_ *bun.CreateTableQuery,
) error {
	return nil
}

var _ bun.AfterCreateTableHook = (*DocumentSchema)(nil)
var _ bun.AfterCreateTableHook = (*ChunkSchema)(nil)
var _ bun.AfterCreateTableHook = (*AnswerCacheSchema)(nil)

func (*DocumentSchema) AfterCreateTable(
	ctx context.Context,
	query *bun.CreateTableQuery,
) error {
	_, err := query.DB().NewCreateIndex().
		Model((*DocumentSchema)(nil)).
		Index("document_party_idx").
		Column("party").
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return err
	}

	_, err = query.DB().NewCreateIndex().
		Model((*DocumentSchema)(nil)).
		Index("document_id_idx").
		Column("id").
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return err
	}

	return nil
}

func (*ChunkSchema) AfterCreateTable(
	ctx context.Context,
	query *bun.CreateTableQuery,
) error {
	colsToIndex := []string{"document_uuid", "party", "is_embedded"}
	for _, col := range colsToIndex {
		_, err := query.DB().NewCreateIndex().
			Model((*ChunkSchema)(nil)).
			Index(fmt.Sprintf("chunk_%s_idx", col)).
			Column(col).
			IfNotExists().
			Exec(ctx)
		if err != nil {
			return err
		}
	}
	return nil
}

func (*AnswerCacheSchema) AfterCreateTable(
	ctx context.Context,
	query *bun.CreateTableQuery,
) error {
	_, err := query.DB().NewCreateIndex().
		Model((*AnswerCacheSchema)(nil)).
		Index("answer_cache_expires_at_idx").
		Column("expires_at").
		IfNotExists().
		Exec(ctx)
	return err
}

var tableList = []bun.BeforeCreateTableHook{
	&ChunkSchema{},
	&AnswerCacheSchema{},
	&DocumentSchema{},
}

// enablePgVectorExtension creates the pgvector extension if it does not exist and updates it if it is out of date.
func enablePgVectorExtension(_ context.Context, db *bun.DB) error {
	// Create pgvector extension if it does not exist
	_, err := db.Exec("CREATE EXTENSION IF NOT EXISTS vector")
	if err != nil {
		return fmt.Errorf("error creating pgvector extension: %w", err)
	}

	// if this is an upgrade, we may need to update the pgvector extension
	// this is a no-op if the extension is already up to date
	_, err = db.Exec("ALTER EXTENSION vector UPDATE")
	if err != nil {
		return fmt.Errorf("error updating pgvector extension: %w", err)
	}

	return nil
}

// CreateSchema creates the db schema if it does not exist.
func CreateSchema(
	ctx context.Context,
	appState *models.AppState,
	db *bun.DB,
) error {
	// iterate through tableList in reverse order to create tables with foreign keys first
	for i := len(tableList) - 1; i >= 0; i-- {
		schema := tableList[i]
		_, err := db.NewCreateTable().
			Model(schema).
			IfNotExists().
			WithForeignKeys().
			Exec(ctx)
		if err != nil {
			// bun still trying to create indexes despite IfNotExists flag
			if strings.Contains(err.Error(), "already exists") {
				continue
			}
			return fmt.Errorf("error creating table for schema %T: %w", schema, err)
		}
	}

	// check that the chunk embedding dimensions match the configured service
	if err := checkChunkEmbeddingDims(ctx, appState, db); err != nil {
		return fmt.Errorf("error checking chunk embedding dimensions: %w", err)
	}

	// Create HNSW index on chunk embeddings if available
	if appState.Config.Store.Postgres.AvailableIndexes.HSNW {
		if err := createHNSWIndex(ctx, db, "chunk", EmbeddingColName); err != nil {
			return fmt.Errorf("error creating hnsw index: %w", err)
		}
	}

	// apply migrations
	if err := migrations.Migrate(ctx, db); err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	return nil
}

// createHNSWIndex creates an HNSW index on the given table and column if it does not exist.
// The index is created with the default M and efConstruction values. Only vector_cosine_ops is supported.
func createHNSWIndex(ctx context.Context, db *bun.DB, table, column string) error {
	const (
		m              = 16
		efConstruction = 64
	)

	idx := table + "_" + column + "_hnsw_idx"

	log.Infof("creating hnsw index on %s.%s if it does not exist", table, column)

	_, err := db.ExecContext(
		ctx,
		"CREATE INDEX CONCURRENTLY IF NOT EXISTS ? ON ? USING hnsw (? vector_cosine_ops) WITH (M = ?, ef_construction = ?);",
		bun.Safe(idx),
		bun.Ident(table),
		bun.Ident(column),
		m,
		efConstruction,
	)
	if err != nil {
		return err
	}

	log.Infof("created hnsw index successfully on %s.%s if it did not exist", table, column)

	return nil
}

// embeddingDimensions returns the vector width the store should use. The
// embedding service wins when configured; otherwise we fall back to config
// and finally to the default column width.
func embeddingDimensions(appState *models.AppState) int {
	if appState.EmbeddingProvider != nil {
		return appState.EmbeddingProvider.Dimensions()
	}
	if appState.Config != nil && appState.Config.Embeddings.Dimensions > 0 {
		return appState.Config.Embeddings.Dimensions
	}
	return DefaultEmbeddingDims
}

// checkChunkEmbeddingDims checks the dimensions of the chunk embedding column against the
// dimensions of the configured embedding service. If they do not match, the column is dropped and
// recreated with the correct dimensions.
func checkChunkEmbeddingDims(ctx context.Context, appState *models.AppState, db *bun.DB) error {
	dimensions := embeddingDimensions(appState)
	width, err := getEmbeddingColumnWidth(ctx, "chunk", db)
	if err != nil {
		return fmt.Errorf("error getting embedding column width: %w", err)
	}

	if width != dimensions {
		log.Warnf(
			"chunk embedding dimensions are %d, expected %d.\n migrating chunk embedding column width to %d. this may result in loss of existing embedding vectors",
			width,
			dimensions,
			dimensions,
		)
		err := MigrateChunkEmbeddingDims(ctx, db, dimensions)
		if err != nil {
			return fmt.Errorf("error migrating chunk embedding dimensions: %w", err)
		}
	}
	return nil
}

// getEmbeddingColumnWidth returns the width of the embedding column in the provided table.
func getEmbeddingColumnWidth(ctx context.Context, tableName string, db *bun.DB) (int, error) {
	var width int
	err := db.NewSelect().
		Table("pg_attribute").
		ColumnExpr("atttypmod"). // vector width is stored in atttypmod
		Where("attrelid = ?::regclass", tableName).
		Where("attname = ?", EmbeddingColName).
		Scan(ctx, &width)
	if err != nil {
		return 0, fmt.Errorf("error getting embedding column width: %w", err)
	}
	return width, nil
}

// MigrateChunkEmbeddingDims drops the old embedding column and creates a new one with the
// correct dimensions. Existing embeddings are lost; chunks must be re-embedded afterwards.
func MigrateChunkEmbeddingDims(
	ctx context.Context,
	db *bun.DB,
	dimensions int,
) error {
	columnQuery := `DO $$
BEGIN
    IF EXISTS (
        SELECT 1
        FROM   information_schema.columns
        WHERE  table_name = 'chunk'
        AND    column_name = 'embedding'
    ) THEN
        ALTER TABLE chunk DROP COLUMN embedding;
    END IF;
END $$;`

	_, err := db.ExecContext(ctx, columnQuery)
	if err != nil {
		return fmt.Errorf("error dropping column embedding: %w", err)
	}
	_, err = db.NewAddColumn().
		Model((*ChunkSchema)(nil)).
		ColumnExpr(fmt.Sprintf("embedding vector(%d)", dimensions)).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("error adding column embedding: %w", err)
	}

	// embeddings were dropped with the column
	_, err = db.NewUpdate().
		Model((*ChunkSchema)(nil)).
		Set("is_embedded = FALSE").
		Where("is_embedded = TRUE").
		WhereAllWithDeleted().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("error resetting is_embedded: %w", err)
	}

	return nil
}

// NewPostgresConn creates a new bun.DB connection to a postgres database using the provided DSN.
// The connection is configured to pool connections based on the number of PROCs available.
func NewPostgresConn(appState *models.AppState) (*bun.DB, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	maxOpenConns := 4 * runtime.GOMAXPROCS(0)

	// WithReadTimeout is 10 minutes to avoid timeouts when creating indexes.
	sqldb := sql.OpenDB(
		pgdriver.NewConnector(
			pgdriver.WithDSN(appState.Config.Store.Postgres.DSN),
			pgdriver.WithReadTimeout(10*time.Minute),
		),
	)
	sqldb.SetMaxOpenConns(maxOpenConns)
	sqldb.SetMaxIdleConns(maxOpenConns)

	db := bun.NewDB(sqldb, pgdialect.New())
	if appState.Config.OpenTelemetry.Enabled {
		db.AddQueryHook(bunotel.NewQueryHook(bunotel.WithDBName("ticobot")))
	}

	// Enable pgvector extension
	err := enablePgVectorExtension(ctx, db)
	if err != nil {
		log.Error("error enabling pgvector extension: ", err)
		return nil, err
	}

	// IVFFLAT indexes are always available
	appState.Config.Store.Postgres.AvailableIndexes.IVFFLAT = true

	// Check if HNSW indexes are available
	isHNSW, err := isHNSWAvailable(ctx, db)
	if err != nil {
		log.Error("error checking if hnsw indexes are available: ", err)
		return nil, err
	}
	if isHNSW {
		appState.Config.Store.Postgres.AvailableIndexes.HSNW = true
	}

	return db, nil
}

// isHNSWAvailable checks if the vector extension version is 0.5.0+.
func isHNSWAvailable(ctx context.Context, db *bun.DB) (bool, error) {
	const minVersion = "0.5.0"
	requiredVersion, err := semver.NewVersion(minVersion)
	if err != nil {
		return false, fmt.Errorf("error parsing required vector extension version: %w", err)
	}

	var version string
	err = db.NewSelect().
		Column("extversion").
		TableExpr("pg_extension").
		Where("extname = 'vector'").
		Scan(ctx, &version)
	if err != nil {
		if err == sql.ErrNoRows {
			// The vector extension is not installed
			log.Debug("vector extension not installed")
			return false, nil
		}
		// An error occurred while executing the query
		return false, fmt.Errorf("error checking vector extension version: %w", err)
	}

	thisVersion, err := semver.NewVersion(version)
	if err != nil {
		return false, fmt.Errorf("error parsing vector extension version: %w", err)
	}

	// Compare the version numbers
	if requiredVersion.GreaterThan(thisVersion) {
		// The vector extension version is < 0.5.0
		log.Infof("vector extension version is < %s. hnsw indexing not available", minVersion)
		return false, nil
	}

	// The vector extension version is >= 0.5.0
	log.Infof("vector extension version is >= %s. hnsw indexing available", minVersion)

	return true, nil
}

type IndexStatus struct {
	Phase       string `bun:"phase"`
	TuplesTotal int    `bun:"tuples_total"`
	TuplesDone  int    `bun:"tuples_done"`
}

// GetIndexStatus queries for an index's status given an index name.
func GetIndexStatus(ctx context.Context, db *bun.DB, indexName string) (IndexStatus, error) {
	var status IndexStatus
	err := db.NewSelect().
		ColumnExpr("i.phase, i.tuples_total, i.tuples_done").
		TableExpr("pg_stat_progress_create_index AS i").
		Join("JOIN pg_class AS c ON c.oid = i.index_relid").
		Where("c.relname = ?", indexName).
		Scan(ctx, &status)
	if err != nil {
		return IndexStatus{}, fmt.Errorf("error querying index status: %w", err)
	}

	return status, nil
}
