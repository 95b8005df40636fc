package search

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/hyperjump/kotaeru/internal/blob"
	"github.com/hyperjump/kotaeru/internal/config"
	"github.com/hyperjump/kotaeru/internal/index"
	"github.com/hyperjump/kotaeru/internal/models"
)

func testSearchConfig() config.SearchConfig {
	return config.SearchConfig{
		TopKPerDocument:       3,
		MaxTotalResults:       10,
		MaxConcurrentSearches: 4,
		QueryTimeoutSeconds:   30,
	}
}

func newTestCache(t *testing.T) *index.Cache {
	t.Helper()
	store, err := blob.NewStore("disk", t.TempDir(), "")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return index.NewCache(store, 0, nil)
}

// putDoc stores an index whose chunk i scores proportionally to base-i/10
// against the query vector {1, 0}.
func putDoc(t *testing.T, cache *index.Cache, docID string, n int, base float64) {
	t.Helper()
	chunks := make([]models.Chunk, n)
	vectors := make([][]float32, n)
	for i := 0; i < n; i++ {
		chunks[i] = models.Chunk{
			ID:            fmt.Sprintf("%s_chunk_%d", docID, i),
			DocID:         docID,
			Text:          fmt.Sprintf("text %d of %s", i, docID),
			SequenceIndex: i,
		}
		score := base - float64(i)/10
		vectors[i] = []float32{float32(score), float32(1 - score)}
	}
	idx, err := index.Build(docID, "mock", 2, chunks, vectors)
	if err != nil {
		t.Fatal(err)
	}
	if err := cache.Put(context.Background(), idx); err != nil {
		t.Fatal(err)
	}
}

func TestSearch_EmptyDocumentSet(t *testing.T) {
	s := NewCrossSearcher(newTestCache(t), testSearchConfig(), nil)
	if _, err := s.Search(context.Background(), nil, []float32{1, 0}, "mock", 3, 10); !errors.Is(err, ErrNoDocuments) {
		t.Fatalf("got %v, want ErrNoDocuments", err)
	}
}

// A document whose index cannot be loaded is skipped; the surviving
// document's results come back without an error.
func TestSearch_SkipsMissingDocument(t *testing.T) {
	cache := newTestCache(t)
	putDoc(t, cache, "doc-b", 3, 0.9)
	s := NewCrossSearcher(cache, testSearchConfig(), nil)

	results, err := s.Search(context.Background(), []string{"doc-a-missing", "doc-b"}, []float32{1, 0}, "mock", 3, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 3 {
		t.Fatalf("got %d results, want 3", len(results))
	}
	for _, r := range results {
		if r.DocID != "doc-b" {
			t.Errorf("result from unexpected document %s", r.DocID)
		}
	}
}

func TestSearch_AllDocumentsSkipped(t *testing.T) {
	s := NewCrossSearcher(newTestCache(t), testSearchConfig(), nil)
	results, err := s.Search(context.Background(), []string{"gone-1", "gone-2"}, []float32{1, 0}, "mock", 3, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 0 {
		t.Errorf("got %d results from missing documents", len(results))
	}
}

func TestSearch_DimensionMismatchAborts(t *testing.T) {
	cache := newTestCache(t)
	putDoc(t, cache, "doc-a", 2, 0.9)
	s := NewCrossSearcher(cache, testSearchConfig(), nil)

	_, err := s.Search(context.Background(), []string{"doc-a"}, []float32{1, 0, 0}, "mock", 3, 10)
	if !errors.Is(err, index.ErrDimensionMismatch) {
		t.Fatalf("got %v, want ErrDimensionMismatch", err)
	}
}

// Same dimensions, different embedding provider: the vectors occupy
// unrelated spaces, so the search must fail rather than score them.
func TestSearch_ProviderMismatchAborts(t *testing.T) {
	cache := newTestCache(t)
	putDoc(t, cache, "doc-a", 3, 0.9)
	s := NewCrossSearcher(cache, testSearchConfig(), nil)

	_, err := s.Search(context.Background(), []string{"doc-a"}, []float32{1, 0}, "other-provider", 3, 10)
	if !errors.Is(err, index.ErrDimensionMismatch) {
		t.Fatalf("got %v, want ErrDimensionMismatch for cross-provider query", err)
	}
}

func TestSearch_PerDocumentAndGlobalCaps(t *testing.T) {
	cache := newTestCache(t)
	putDoc(t, cache, "doc-a", 5, 0.9)
	putDoc(t, cache, "doc-b", 5, 0.8)
	putDoc(t, cache, "doc-c", 5, 0.7)
	s := NewCrossSearcher(cache, testSearchConfig(), nil)

	results, err := s.Search(context.Background(), []string{"doc-a", "doc-b", "doc-c"}, []float32{1, 0}, "mock", 2, 4)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 4 {
		t.Fatalf("got %d results, want 4", len(results))
	}
	perDoc := make(map[string]int)
	for _, r := range results {
		perDoc[r.DocID]++
	}
	for doc, n := range perDoc {
		if n > 2 {
			t.Errorf("document %s contributed %d results, cap is 2", doc, n)
		}
	}
	for i := 1; i < len(results); i++ {
		if results[i].Score > results[i-1].Score {
			t.Errorf("merged results not descending at %d", i)
		}
	}
}

func TestSearch_DefaultsFromConfig(t *testing.T) {
	cache := newTestCache(t)
	putDoc(t, cache, "doc-a", 8, 0.9)
	s := NewCrossSearcher(cache, testSearchConfig(), nil)

	// topKPerDoc 0 falls back to the configured 3.
	results, err := s.Search(context.Background(), []string{"doc-a"}, []float32{1, 0}, "mock", 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 3 {
		t.Errorf("got %d results, want configured per-document default 3", len(results))
	}
}

func TestSearch_CanceledContext(t *testing.T) {
	cache := newTestCache(t)
	putDoc(t, cache, "doc-a", 3, 0.9)
	s := NewCrossSearcher(cache, testSearchConfig(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	results, err := s.Search(ctx, []string{"doc-a"}, []float32{1, 0}, "mock", 3, 10)
	if err != nil {
		t.Fatal(err)
	}
	// The resident index may still serve, but a canceled load is a skip,
	// never a hard failure.
	if len(results) > 3 {
		t.Errorf("got %d results", len(results))
	}
}
