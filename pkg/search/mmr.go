package search

import (
	"fmt"
	"math"

	"github.com/viterin/vek/vek32"
)

// MaximalMarginalRelevance reranks embeddingList against queryEmbedding,
// trading relevance for diversity. lambdaMult of 1 is pure relevance, 0 is
// pure diversity. Returns the indexes of the selected embeddings, best
// first, at most k of them.
// See https://www.cs.cmu.edu/~jgc/publication/The_Use_MMR_Diversity_Based_LTMIR_1998.pdf
func MaximalMarginalRelevance(
	queryEmbedding []float32,
	embeddingList [][]float32,
	lambdaMult float32,
	k int,
) ([]int, error) {
	if k <= 0 || len(embeddingList) == 0 {
		return []int{}, nil
	}

	width := len(queryEmbedding)
	similarityToQuery := make([]float32, len(embeddingList))
	for i, embedding := range embeddingList {
		if len(embedding) != width {
			return nil, fmt.Errorf(
				"embedding %d has width %d; query has width %d",
				i, len(embedding), width,
			)
		}
		similarityToQuery[i] = vek32.CosineSimilarity(queryEmbedding, embedding)
	}

	mostSimilar := vek32.ArgMax(similarityToQuery)
	idxs := []int{mostSimilar}
	selected := [][]float32{embeddingList[mostSimilar]}

	for len(idxs) < min(k, len(embeddingList)) {
		bestScore := float32(math.Inf(-1))
		idxToAdd := -1
		for i, embedding := range embeddingList {
			if contains(idxs, i) {
				continue
			}
			redundantScore := float32(math.Inf(-1))
			for _, selectedEmbedding := range selected {
				similarity := vek32.CosineSimilarity(embedding, selectedEmbedding)
				if similarity > redundantScore {
					redundantScore = similarity
				}
			}
			equationScore := lambdaMult*similarityToQuery[i] - (1-lambdaMult)*redundantScore
			if equationScore > bestScore {
				bestScore = equationScore
				idxToAdd = i
			}
		}
		idxs = append(idxs, idxToAdd)
		selected = append(selected, embeddingList[idxToAdd])
	}
	return idxs, nil
}

func contains(slice []int, val int) bool {
	for _, item := range slice {
		if item == val {
			return true
		}
	}
	return false
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
