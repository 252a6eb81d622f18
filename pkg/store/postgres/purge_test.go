package postgres

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPurgeDeleted(t *testing.T) {
	document := makeTestDocument()
	documentUUID, err := putDocument(testCtx, testDB, document)
	require.NoError(t, err)

	_, err = putChunks(
		testCtx,
		testDB,
		documentUUID,
		makeTestChunks([]string{"uno", "dos"}),
	)
	require.NoError(t, err)

	err = deleteDocument(testCtx, testDB, documentUUID)
	require.NoError(t, err, "deleteDocument should not return an error")

	err = purgeDeleted(testCtx, testDB)
	assert.NoError(t, err, "purgeDeleted should not return an error")

	// Test that no soft-deleted rows remain
	for _, schema := range softDeleteTableList {
		r, err := testDB.NewSelect().
			Model(schema).
			WhereDeleted().
			Exec(testCtx)
		assert.NoError(t, err, "NewSelect should not return an error")
		rows, err := r.RowsAffected()
		assert.NoError(t, err, "RowsAffected should not return an error")
		assert.True(t, rows == 0, "purgeDeleted should Delete all rows")
	}
}

func TestPurgeExpiredAnswers(t *testing.T) {
	expired := time.Now().Add(-time.Minute)
	_, err := testDB.NewInsert().Model(&AnswerCacheSchema{
		Question:  NormalizeQuestion(newTestQuestion()),
		Answer:    "vencida",
		ExpiresAt: &expired,
	}).Exec(testCtx)
	require.NoError(t, err)

	purged, err := purgeExpiredAnswers(testCtx, testDB)
	assert.NoError(t, err)
	assert.GreaterOrEqual(t, purged, 1)

	remaining, err := testDB.NewSelect().
		Model((*AnswerCacheSchema)(nil)).
		Where("expires_at IS NOT NULL AND expires_at <= ?", time.Now()).
		Count(testCtx)
	require.NoError(t, err)
	assert.Equal(t, 0, remaining)
}
