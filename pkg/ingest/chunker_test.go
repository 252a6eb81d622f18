package ingest

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChunkerSplitEmpty(t *testing.T) {
	chunker := NewChunker(100, 10)
	assert.Empty(t, chunker.Split(""))
	assert.Empty(t, chunker.Split("   \n\n  \n"))
}

func TestChunkerSplitShortDocument(t *testing.T) {
	chunker := NewChunker(500, 50)
	chunks := chunker.Split("A single short paragraph.")
	assert.Equal(t, []string{"A single short paragraph."}, chunks)
}

func TestChunkerPacksParagraphs(t *testing.T) {
	chunker := NewChunker(100, 10)
	text := "First paragraph here.\n\nSecond paragraph here.\n\nThird paragraph here."

	chunks := chunker.Split(text)
	assert.Len(t, chunks, 1)
	assert.Contains(t, chunks[0], "First paragraph here.\n\nSecond paragraph here.")
}

func TestChunkerRespectsSizeBound(t *testing.T) {
	chunker := NewChunker(120, 20)

	var sentences []string
	for i := 0; i < 40; i++ {
		sentences = append(sentences, "The party platform promises lower taxes and better roads.")
	}
	text := strings.Join(sentences, " ")

	chunks := chunker.Split(text)
	assert.Greater(t, len(chunks), 1)
	for i, chunk := range chunks {
		assert.LessOrEqual(t, len([]rune(chunk)), chunker.Size,
			"chunk %d exceeds size bound", i)
		assert.NotEmpty(t, strings.TrimSpace(chunk))
	}
}

func TestChunkerOverlapPresent(t *testing.T) {
	chunker := NewChunker(120, 30)

	var sentences []string
	for i := 0; i < 20; i++ {
		sentences = append(sentences, "Education funding will rise every year of the term.")
	}
	chunks := chunker.Split(strings.Join(sentences, " "))
	assert.Greater(t, len(chunks), 1)

	// Each chunk after the first starts with trailing content of its
	// predecessor.
	for i := 1; i < len(chunks); i++ {
		prefix := strings.Fields(chunks[i])[0]
		assert.Contains(t, chunks[i-1], prefix)
	}
}

func TestChunkerSplitsLongParagraphOnSentences(t *testing.T) {
	chunker := NewChunker(80, 0)
	text := "The first promise is about housing. The second promise is about health. " +
		"The third promise is about transit. The fourth promise is about energy."

	chunks := chunker.Split(text)
	assert.Greater(t, len(chunks), 1)
	for _, chunk := range chunks {
		assert.LessOrEqual(t, len([]rune(chunk)), 80)
	}
	// Sentences are kept intact.
	assert.True(t, strings.HasSuffix(strings.TrimSpace(chunks[0]), "."))
}

func TestNewChunkerDefaults(t *testing.T) {
	chunker := NewChunker(0, -1)
	assert.Equal(t, DefaultChunkSize, chunker.Size)
	assert.Equal(t, DefaultChunkOverlap, chunker.Overlap)

	// Overlap >= size falls back to the default.
	chunker = NewChunker(100, 100)
	assert.Equal(t, DefaultChunkOverlap, chunker.Overlap)
}
