package postgres

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ticobot/ticobot/pkg/models"
)

func TestCalculateListCount(t *testing.T) {
	vci := &ChunkVectorIndex{
		appState: &models.AppState{},
	}

	// Test when RowCount <= 1000
	vci.RowCount = 500
	err := vci.CalculateListCount()
	assert.NoError(t, err)
	assert.Equal(t, 1, vci.ListCount)

	// Test when RowCount <= 1_000_000
	vci.RowCount = 500_000
	err = vci.CalculateListCount()
	assert.NoError(t, err)
	assert.Equal(t, vci.RowCount/1000, vci.ListCount)

	// Test when RowCount > 1_000_000
	vci.RowCount = 2_000_000
	err = vci.CalculateListCount()
	assert.NoError(t, err)
	assert.Equal(t, int(math.Sqrt(2_000_000)), vci.ListCount)
}

func TestCalculateListCountNoRows(t *testing.T) {
	vci := &ChunkVectorIndex{
		appState: &models.AppState{},
	}
	err := vci.CalculateListCount()
	assert.Error(t, err)
}

func TestCalculateProbes(t *testing.T) {
	vci := &ChunkVectorIndex{
		appState: &models.AppState{},
	}

	vci.ListCount = 1000
	err := vci.CalculateProbes()
	assert.NoError(t, err)
	assert.Equal(t, int(math.Sqrt(1000)), vci.ProbeCount)
}

func TestCreateIndex(t *testing.T) {
	// make sure at least one chunk row exists for CountRows
	document := makeTestDocument()
	documentUUID, err := putDocument(testCtx, testDB, document)
	require.NoError(t, err)
	_, err = putChunks(testCtx, testDB, documentUUID, makeTestChunks([]string{"uno"}))
	require.NoError(t, err)

	vci := NewChunkVectorIndex(appState, testDB)
	require.NoError(t, vci.CountRows(testCtx))
	require.NoError(t, vci.CalculateListCount())
	require.NoError(t, vci.CalculateProbes())

	// CreateIndex runs in the background; force bypasses the row threshold
	err = vci.CreateIndex(context.Background(), true)
	assert.NoError(t, err)

	pollIndexCreation(t, vci)

	assert.True(t, vci.ProbeCount > 0)
	assert.True(t, vci.ListCount > 0)
}

func pollIndexCreation(t *testing.T, vci *ChunkVectorIndex) {
	t.Helper()
	timeout := time.After(2 * time.Minute)
	tick := time.Tick(500 * time.Millisecond)
Loop:
	for {
		select {
		case <-timeout:
			t.Fatal("timed out waiting for index to be created")
		case <-tick:
			exists, err := vci.IndexExists(testCtx)
			if err != nil {
				t.Fatal("error checking for index: ", err)
			}
			if exists {
				break Loop
			}
		}
	}
}
