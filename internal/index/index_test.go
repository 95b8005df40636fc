package index

import (
	"errors"
	"fmt"
	"testing"

	"github.com/hyperjump/kotaeru/internal/models"
)

func testChunks(docID string, n int) []models.Chunk {
	chunks := make([]models.Chunk, n)
	for i := range chunks {
		chunks[i] = models.Chunk{
			ID:            fmt.Sprintf("%s_chunk_%d", docID, i),
			DocID:         docID,
			Text:          fmt.Sprintf("chunk %d text", i),
			SequenceIndex: i,
		}
	}
	return chunks
}

func TestBuild_DimensionMismatch(t *testing.T) {
	chunks := testChunks("d", 2)
	vectors := [][]float32{{1, 0, 0}, {0, 1}} // mixed lengths
	if _, err := Build("d", "mock", 3, chunks, vectors); !errors.Is(err, ErrDimensionMismatch) {
		t.Fatalf("got %v, want ErrDimensionMismatch", err)
	}
}

func TestBuild_CountMismatch(t *testing.T) {
	if _, err := Build("d", "mock", 2, testChunks("d", 3), [][]float32{{1, 0}}); err == nil {
		t.Fatal("expected error for chunk/vector count mismatch")
	}
}

func TestSearch_RankedDescending(t *testing.T) {
	chunks := testChunks("d", 3)
	vectors := [][]float32{
		{0, 1, 0},
		{1, 0, 0},
		{0.9, 0.1, 0},
	}
	idx, err := Build("d", "mock", 3, chunks, vectors)
	if err != nil {
		t.Fatal(err)
	}
	results, err := idx.Search([]float32{1, 0, 0}, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	if results[0].ChunkID != "d_chunk_1" {
		t.Errorf("top result = %s, want d_chunk_1", results[0].ChunkID)
	}
	for i := 1; i < len(results); i++ {
		if results[i].Score > results[i-1].Score {
			t.Errorf("results not descending at %d", i)
		}
	}
}

func TestSearch_KLargerThanIndex(t *testing.T) {
	idx, _ := Build("d", "mock", 2, testChunks("d", 3), [][]float32{{1, 0}, {0, 1}, {1, 1}})
	results, err := idx.Search([]float32{1, 0}, 50)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 3 {
		t.Errorf("got %d results, want all 3", len(results))
	}
}

// Scenario: a 5-chunk index over 4-dimensional vectors rejects a
// 3-dimensional query with ErrDimensionMismatch.
func TestSearch_QueryDimensionMismatch(t *testing.T) {
	vectors := make([][]float32, 5)
	for i := range vectors {
		vectors[i] = []float32{1, 0, 0, 0}
	}
	idx, err := Build("d", "mock", 4, testChunks("d", 5), vectors)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := idx.Search([]float32{1, 0, 0}, 3); !errors.Is(err, ErrDimensionMismatch) {
		t.Fatalf("got %v, want ErrDimensionMismatch", err)
	}
}

func TestSearch_EmptyIndex(t *testing.T) {
	idx, err := Build("d", "mock", 4, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := idx.Search([]float32{1, 0, 0, 0}, 3); !errors.Is(err, ErrEmptyIndex) {
		t.Fatalf("got %v, want ErrEmptyIndex", err)
	}
}

func TestSearch_ScaleInvariant(t *testing.T) {
	// Vectors are normalized at build, so a scaled copy of the query
	// produces identical rankings and scores.
	chunks := testChunks("d", 2)
	idx, _ := Build("d", "mock", 2, chunks, [][]float32{{3, 0}, {0, 5}})
	a, err := idx.Search([]float32{1, 0.2}, 2)
	if err != nil {
		t.Fatal(err)
	}
	b, err := idx.Search([]float32{10, 2}, 2)
	if err != nil {
		t.Fatal(err)
	}
	for i := range a {
		if a[i].ChunkID != b[i].ChunkID {
			t.Errorf("rank %d differs: %s vs %s", i, a[i].ChunkID, b[i].ChunkID)
		}
		if diff := a[i].Score - b[i].Score; diff > 1e-6 || diff < -1e-6 {
			t.Errorf("rank %d score differs: %f vs %f", i, a[i].Score, b[i].Score)
		}
	}
}

func TestSearch_TieBreakBySequence(t *testing.T) {
	// Identical vectors score identically; order falls back to sequence index.
	chunks := testChunks("d", 3)
	vectors := [][]float32{{1, 0}, {1, 0}, {1, 0}}
	idx, _ := Build("d", "mock", 2, chunks, vectors)
	results, err := idx.Search([]float32{1, 0}, 3)
	if err != nil {
		t.Fatal(err)
	}
	for i, r := range results {
		if r.SequenceIndex != i {
			t.Errorf("position %d has sequence %d", i, r.SequenceIndex)
		}
	}
}
