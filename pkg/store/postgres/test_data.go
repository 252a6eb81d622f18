package postgres

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/uptrace/bun/extra/bundebug"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"
	"github.com/ticobot/ticobot/pkg/models"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dbfixture"
	"gopkg.in/yaml.v3"
)

type Row interface {
	DocumentSchema | ChunkSchema | AnswerCacheSchema
}

type FixtureModel[T Row] struct {
	Model string `yaml:"model"`
	Rows  []T    `yaml:"rows"`
}

type Fixtures[T Row] []FixtureModel[T]

// fixtureParties are the party labels used in generated fixture data.
var fixtureParties = []string{"pln", "pusc", "fa", "plp", "pnr", "ppsd"}

func generateTimeLastNDays(nDays int) time.Time {
	now := time.Now()
	earliest := now.Add(time.Duration(-nDays) * 24 * time.Hour)
	return gofakeit.DateRange(earliest, now)
}

func GenerateFixtureData(fixtureCount int, outputDir string) {
	fakerGlobal := gofakeit.NewUnlocked(0)
	gofakeit.SetGlobalFaker(fakerGlobal)

	// Generate test data for DocumentSchema
	documents := make([]DocumentSchema, fixtureCount)
	for i := 0; i < fixtureCount; i++ {
		dateCreated := generateTimeLastNDays(14)
		party := fixtureParties[i%len(fixtureParties)]
		published := generateTimeLastNDays(730)
		documents[i] = DocumentSchema{
			UUID:      uuid.New(),
			CreatedAt: dateCreated,
			UpdatedAt: dateCreated,
			Title: fmt.Sprintf(
				"%s platform %d",
				strings.ToUpper(party),
				gofakeit.Number(2018, 2026),
			),
			Party:       party,
			Source:      strings.ToLower(gofakeit.AppName()) + ".pdf",
			SourceURL:   gofakeit.URL(),
			PublishedAt: &published,
			Metadata:    gofakeit.Map(),
		}
	}

	// Generate test data for ChunkSchema. Embeddings are not written to the
	// fixture files; LoadFixtures embeds most chunks after loading.
	var chunks []ChunkSchema
	for i := range documents {
		chunkCount := gofakeit.Number(5, 30)
		wordCount := gofakeit.Number(50, 200)
		dateCreated := documents[i].CreatedAt
		for j := 0; j < chunkCount; j++ {
			dateCreated = dateCreated.Add(time.Second * time.Duration(gofakeit.Number(1, 30)))
			chunks = append(chunks, ChunkSchema{
				UUID:         uuid.New(),
				CreatedAt:    dateCreated,
				UpdatedAt:    dateCreated,
				DocumentUUID: documents[i].UUID,
				ChunkIndex:   j,
				Party:        documents[i].Party,
				Content:      gofakeit.Paragraph(1, 5, wordCount, "."),
				TokenCount:   gofakeit.Number(100, 400),
				Metadata:     gofakeit.Map(),
			})
		}
	}

	// Generate test data for AnswerCacheSchema. Questions are deduplicated on
	// the (question, party) pair to satisfy the unique constraint.
	var answers []AnswerCacheSchema
	seen := make(map[string]struct{})
	for attempts := 0; len(answers) < fixtureCount && attempts < fixtureCount*10; attempts++ {
		question := NormalizeQuestion(gofakeit.Question())
		party := ""
		if gofakeit.Bool() {
			party = fixtureParties[gofakeit.Number(0, len(fixtureParties)-1)]
		}
		key := question + "|" + party
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}

		dateCreated := generateTimeLastNDays(7)
		var expiresAt *time.Time
		switch gofakeit.Number(0, 2) {
		case 0:
			// never expires
		case 1:
			t := time.Now().Add(14 * 24 * time.Hour)
			expiresAt = &t
		case 2:
			// already expired; exercises the purge processor
			t := time.Now().Add(-time.Hour)
			expiresAt = &t
		}
		answers = append(answers, AnswerCacheSchema{
			UUID:      uuid.New(),
			CreatedAt: dateCreated,
			UpdatedAt: dateCreated,
			Question:  question,
			Party:     party,
			Answer:    gofakeit.Paragraph(1, 3, 40, " "),
			ExpiresAt: expiresAt,
		})
	}

	documentFixture := Fixtures[DocumentSchema]{
		{
			Model: "DocumentSchema",
			Rows:  documents,
		},
	}

	chunkFixture := Fixtures[ChunkSchema]{
		{
			Model: "ChunkSchema",
			Rows:  chunks,
		},
	}

	answerFixture := Fixtures[AnswerCacheSchema]{
		{
			Model: "AnswerCacheSchema",
			Rows:  answers,
		},
	}

	if outputDir == "" {
		outputDir = "./"
	} else {
		// Create output directory if it doesn't exist
		if _, err := os.Stat(outputDir); os.IsNotExist(err) {
			err = os.Mkdir(outputDir, 0755)
			if err != nil {
				fmt.Printf("unable to create %s: %v", outputDir, err)
				return
			}
		}
	}

	// Write fixtures to YAML files
	writeFixtureToYAML(documentFixture, outputDir, "document_fixtures.yaml")
	writeFixtureToYAML(chunkFixture, outputDir, "chunk_fixtures.yaml")
	writeFixtureToYAML(answerFixture, outputDir, "answer_cache_fixtures.yaml")
}

func writeFixtureToYAML[T Row](fixtures Fixtures[T], outputDir, filename string) {
	// Marshal the fixture into YAML
	data, err := yaml.Marshal(&fixtures)
	if err != nil {
		fmt.Printf("error: %v", err)
		return
	}

	// Write the YAML data to a file
	file, err := os.Create(filepath.Join(outputDir, filename))
	if err != nil {
		fmt.Printf("error: %v", err)
		return
	}
	defer func(file *os.File) {
		err := file.Close()
		if err != nil {
			fmt.Printf("error: %v", err)
			return
		}
	}(file)

	_, err = file.Write(data)
	if err != nil {
		fmt.Printf("error: %v", err)
		return
	}

	fmt.Printf("Fixtures generated successfully in %s!\n", filename)
}

// embedFixtureChunks gives most pending chunks a random embedding through the
// regular upsert path. A few are left pending so a dev environment has work
// for the embedder task.
func embedFixtureChunks(ctx context.Context, appState *models.AppState, db *bun.DB) error {
	var chunkUUIDs []uuid.UUID
	err := db.NewSelect().
		Model((*ChunkSchema)(nil)).
		Column("uuid").
		Where("is_embedded = FALSE").
		Scan(ctx, &chunkUUIDs)
	if err != nil {
		return fmt.Errorf("failed to select pending chunks: %w", err)
	}

	width := embeddingDimensions(appState)
	chunks := make([]models.Chunk, 0, len(chunkUUIDs))
	for _, chunkUUID := range chunkUUIDs {
		// 95% of chunks get an embedding
		if gofakeit.Number(1, 100) > 95 {
			continue
		}
		chunks = append(chunks, models.Chunk{
			UUID:      chunkUUID,
			Embedding: randomEmbedding(width),
		})
	}
	if len(chunks) == 0 {
		return nil
	}

	vectorStore, err := NewVectorStore(appState, db)
	if err != nil {
		return fmt.Errorf("failed to create vector store: %w", err)
	}
	if err := vectorStore.UpsertEmbeddings(ctx, chunks); err != nil {
		return fmt.Errorf("failed to embed fixture chunks: %w", err)
	}

	return nil
}

// randomEmbedding returns a unit-normalized random vector.
func randomEmbedding(width int) []float32 {
	vector := make([]float32, width)
	var norm float64
	for i := range vector {
		vector[i] = gofakeit.Float32Range(-1, 1)
		norm += float64(vector[i]) * float64(vector[i])
	}
	norm = math.Sqrt(norm)
	if norm == 0 {
		norm = 1
	}
	for i := range vector {
		vector[i] = float32(float64(vector[i]) / norm)
	}
	return vector
}

func LoadFixtures(
	ctx context.Context,
	appState *models.AppState,
	db *bun.DB,
	fixturePath string,
) error {
	db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))

	dropSchemaQuery := `DROP SCHEMA public CASCADE;
CREATE SCHEMA public;
GRANT ALL ON SCHEMA public TO postgres;
GRANT ALL ON SCHEMA public TO public;`

	_, err := db.ExecContext(ctx, dropSchemaQuery)
	if err != nil {
		return fmt.Errorf("failed to drop schema: %w", err)
	}

	// Enable vector extension
	err = enablePgVectorExtension(ctx, db)
	if err != nil {
		return fmt.Errorf("failed to enable pg_vector extension: %w", err)
	}

	err = CreateSchema(ctx, appState, db)
	if err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	db.RegisterModel(
		(*DocumentSchema)(nil),
		(*ChunkSchema)(nil),
		(*AnswerCacheSchema)(nil),
	)

	fixture := dbfixture.New(db, dbfixture.WithRecreateTables())

	files, err := os.ReadDir(fixturePath)
	if err != nil {
		return fmt.Errorf("failed to read directory: %w", err)
	}

	for _, file := range files {
		if !file.IsDir() {
			switch filepath.Ext(file.Name()) {
			case ".yaml", ".yml":
				err := fixture.Load(ctx, os.DirFS(fixturePath), file.Name())
				if err != nil {
					return fmt.Errorf("failed to load fixture %s: %w", file.Name(), err)
				}
			}
		}
	}

	err = embedFixtureChunks(ctx, appState, db)
	if err != nil {
		return fmt.Errorf("failed to embed fixture chunks: %w", err)
	}

	return nil
}
