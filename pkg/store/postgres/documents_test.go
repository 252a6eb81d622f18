package postgres

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ticobot/ticobot/pkg/models"
)

func TestPutDocument(t *testing.T) {
	document := makeTestDocument()

	documentUUID, err := putDocument(testCtx, testDB, document)
	assert.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, documentUUID)
	// the store backfills server-generated fields
	assert.Equal(t, documentUUID, document.UUID)
	assert.False(t, document.CreatedAt.IsZero())
}

func TestGetDocumentChunkCount(t *testing.T) {
	document := makeTestDocument()
	documentUUID, err := putDocument(testCtx, testDB, document)
	require.NoError(t, err)

	contents := []string{"educación", "salud", "seguridad"}
	_, err = putChunks(testCtx, testDB, documentUUID, makeTestChunks(contents))
	require.NoError(t, err)

	retrieved, err := getDocument(testCtx, testDB, documentUUID)
	assert.NoError(t, err)
	assert.Equal(t, len(contents), retrieved.ChunkCount)
}

func TestPutChunks(t *testing.T) {
	document := makeTestDocument()
	documentUUID, err := putDocument(testCtx, testDB, document)
	require.NoError(t, err)

	chunks := makeTestChunks([]string{"uno", "dos", "tres"})
	chunkUUIDs, err := putChunks(testCtx, testDB, documentUUID, chunks)
	assert.NoError(t, err)
	assert.Len(t, chunkUUIDs, 3)

	retrieved, err := getChunksByUUID(testCtx, testDB, chunkUUIDs)
	assert.NoError(t, err)
	require.Len(t, retrieved, 3)
	for i, chunk := range retrieved {
		assert.Equal(t, chunkUUIDs[i], chunk.UUID)
		assert.Equal(t, documentUUID, chunk.DocumentUUID)
		assert.Equal(t, i, chunk.ChunkIndex)
		// party is stamped from the parent document
		assert.Equal(t, document.Party, chunk.Party)
		assert.False(t, chunk.IsEmbedded)
		assert.Nil(t, chunk.Embedding)
	}
}

func TestPutChunksUnknownDocument(t *testing.T) {
	_, err := putChunks(testCtx, testDB, uuid.New(), makeTestChunks([]string{"uno"}))
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestPutChunksEmpty(t *testing.T) {
	chunkUUIDs, err := putChunks(testCtx, testDB, uuid.New(), nil)
	assert.NoError(t, err)
	assert.Nil(t, chunkUUIDs)
}

func TestGetChunksByUUIDPreservesOrder(t *testing.T) {
	document := makeTestDocument()
	documentUUID, err := putDocument(testCtx, testDB, document)
	require.NoError(t, err)

	chunkUUIDs, err := putChunks(
		testCtx,
		testDB,
		documentUUID,
		makeTestChunks([]string{"uno", "dos", "tres"}),
	)
	require.NoError(t, err)

	// request in reverse order; results must follow the request order
	reversed := []uuid.UUID{chunkUUIDs[2], chunkUUIDs[1], chunkUUIDs[0]}
	retrieved, err := getChunksByUUID(testCtx, testDB, reversed)
	assert.NoError(t, err)
	require.Len(t, retrieved, 3)
	for i := range reversed {
		assert.Equal(t, reversed[i], retrieved[i].UUID)
	}
}

func TestGetChunksByUUIDOmitsMissing(t *testing.T) {
	document := makeTestDocument()
	documentUUID, err := putDocument(testCtx, testDB, document)
	require.NoError(t, err)

	chunkUUIDs, err := putChunks(
		testCtx,
		testDB,
		documentUUID,
		makeTestChunks([]string{"uno"}),
	)
	require.NoError(t, err)

	retrieved, err := getChunksByUUID(
		testCtx,
		testDB,
		append([]uuid.UUID{uuid.New()}, chunkUUIDs...),
	)
	assert.NoError(t, err)
	require.Len(t, retrieved, 1)
	assert.Equal(t, chunkUUIDs[0], retrieved[0].UUID)
}

func TestUpdateDocumentColumnsOmitZero(t *testing.T) {
	document := makeTestDocument()
	documentUUID, err := putDocument(testCtx, testDB, document)
	require.NoError(t, err)

	// only source is set; title must survive the update
	_, err = updateDocument(testCtx, testDB, &models.UpdateDocumentRequest{
		UUID:   documentUUID,
		Source: "plan.pdf",
	})
	require.NoError(t, err)

	retrieved, err := getDocument(testCtx, testDB, documentUUID)
	assert.NoError(t, err)
	assert.Equal(t, document.Title, retrieved.Title)
	assert.Equal(t, "plan.pdf", retrieved.Source)
}
