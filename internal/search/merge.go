package search

import (
	"sort"

	"github.com/hyperjump/kotaeru/internal/models"
)

// Merge flattens per-document result lists into one ranking sorted by
// descending score, with ties broken by document id then sequence index so
// equal-scoring runs order deterministically. The merged list is truncated
// to globalTopK; a non-positive limit keeps everything.
func Merge(perDoc [][]models.SearchResult, globalTopK int) []models.SearchResult {
	var merged []models.SearchResult
	for _, results := range perDoc {
		merged = append(merged, results...)
	}
	sort.Slice(merged, func(i, j int) bool {
		a, b := merged[i], merged[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.DocID != b.DocID {
			return a.DocID < b.DocID
		}
		return a.SequenceIndex < b.SequenceIndex
	})
	if globalTopK > 0 && len(merged) > globalTopK {
		merged = merged[:globalTopK]
	}
	return merged
}
