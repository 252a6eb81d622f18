package rag

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ticobot/ticobot/pkg/models"
)

// PromptTokenHeadroom is reserved for the system prompt scaffolding, the
// question, and tokenizer variance between vendors.
const PromptTokenHeadroom = 512

const compactTableHeader = "party|document|chunk|text"

// promptContext is the fitted retrieval context for one answer: the compact
// rendering that goes into the prompt, the chunks that survived the token
// budget, and the savings accounting against the JSON baseline.
type promptContext struct {
	Rendered string
	Used     []models.SearchResult
	Stats    models.ContextStats
}

// buildPromptContext renders results into the compact tabular serialization,
// dropping lowest-similarity chunks from the end until the rendering fits
// budget tokens. Results must arrive ordered best-first, which is what the
// vector store returns.
func buildPromptContext(
	llm models.LLMProvider,
	results []models.SearchResult,
	budget int,
) (*promptContext, error) {
	used := make([]models.SearchResult, len(results))
	copy(used, results)

	rendered := ""
	tokens := 0
	for len(used) > 0 {
		rendered = renderCompactTable(used)
		var err error
		tokens, err = llm.CountTokens(rendered)
		if err != nil {
			return nil, fmt.Errorf("failed to count context tokens: %w", err)
		}
		if tokens <= budget {
			break
		}
		used = used[:len(used)-1]
	}
	if len(used) == 0 {
		return &promptContext{
			Stats: models.ContextStats{ChunksRetrieved: len(results)},
		}, nil
	}

	baseline, err := renderJSONBaseline(used)
	if err != nil {
		return nil, fmt.Errorf("failed to render JSON baseline: %w", err)
	}
	jsonTokens, err := llm.CountTokens(baseline)
	if err != nil {
		return nil, fmt.Errorf("failed to count baseline tokens: %w", err)
	}

	stats := models.ContextStats{
		ChunksRetrieved: len(results),
		ChunksUsed:      len(used),
		ContextTokens:   tokens,
		JSONTokens:      jsonTokens,
	}
	if jsonTokens > 0 {
		stats.SavingsPercent = float64(jsonTokens-tokens) / float64(jsonTokens) * 100
	}

	return &promptContext{
		Rendered: rendered,
		Used:     used,
		Stats:    stats,
	}, nil
}

// contextBudget is the token allowance for the rendered context given the
// model's window and the completion reservation.
func contextBudget(llm models.LLMProvider, maxCompletionTokens int) int {
	return llm.ContextWindow() - maxCompletionTokens - PromptTokenHeadroom
}

func renderCompactTable(results []models.SearchResult) string {
	var sb strings.Builder
	sb.WriteString(compactTableHeader)
	for i := range results {
		sb.WriteString("\n")
		sb.WriteString(renderCompactRow(&results[i]))
	}
	return sb.String()
}

func renderCompactRow(result *models.SearchResult) string {
	return fmt.Sprintf(
		"%s|%s|%d|%s",
		sanitizeField(result.Party),
		sanitizeField(result.DocumentTitle),
		result.ChunkIndex,
		sanitizeField(result.Content),
	)
}

// sanitizeField keeps cell content from breaking the row structure.
func sanitizeField(value string) string {
	value = strings.ReplaceAll(value, "|", "/")
	value = strings.ReplaceAll(value, "\n", " ")
	return strings.TrimSpace(value)
}

type baselineEntry struct {
	Party         string `json:"party"`
	DocumentTitle string `json:"document_title"`
	ChunkIndex    int    `json:"chunk_index"`
	Content       string `json:"content"`
}

// renderJSONBaseline is the serialization the compact table is measured
// against: the same fields as an indented JSON array.
func renderJSONBaseline(results []models.SearchResult) (string, error) {
	entries := make([]baselineEntry, len(results))
	for i := range results {
		entries[i] = baselineEntry{
			Party:         results[i].Party,
			DocumentTitle: results[i].DocumentTitle,
			ChunkIndex:    results[i].ChunkIndex,
			Content:       results[i].Content,
		}
	}
	rendered, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return "", err
	}
	return string(rendered), nil
}

func sourcesFromResults(results []models.SearchResult) []models.Source {
	sources := make([]models.Source, len(results))
	for i := range results {
		sources[i] = models.Source{
			DocumentUUID: results[i].DocumentUUID,
			Title:        results[i].DocumentTitle,
			Party:        results[i].Party,
			ChunkIndex:   results[i].ChunkIndex,
			Similarity:   results[i].Similarity,
		}
	}
	return sources
}
