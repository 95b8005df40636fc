// Package index provides per-document vector indices with cosine
// similarity search, a versioned binary serialization format, and a
// process-wide cache over a durable blob store.
package index

import (
	"errors"
	"fmt"
	"sort"

	"github.com/hyperjump/kotaeru/internal/models"
	"github.com/hyperjump/kotaeru/pkg/utils"
)

var (
	// ErrDimensionMismatch reports vectors of inconsistent length, or a
	// query vector that does not match the index dimension.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
	// ErrEmptyIndex reports a search against an index with no chunks.
	ErrEmptyIndex = errors.New("index contains no chunks")
	// ErrCorruptIndex reports a durable record that cannot be decoded.
	ErrCorruptIndex = errors.New("corrupt index record")
	// ErrNotFound reports that no durable record exists for a document.
	ErrNotFound = errors.New("document index not found")
)

// DocumentIndex is one document's searchable state: its chunks plus
// unit-normalized embedding vectors. Immutable after Build, so Search may
// run concurrently without coordination.
type DocumentIndex struct {
	docID      string
	providerID string
	dimension  int
	chunks     []models.Chunk
	vectors    [][]float32
}

// Build creates an index over chunks and their embedding vectors. Vectors
// are copied and L2-normalized so inner product equals cosine similarity.
// Every vector must have length dimension or Build fails with
// ErrDimensionMismatch. An index with zero chunks is valid but unsearchable.
func Build(docID, providerID string, dimension int, chunks []models.Chunk, vectors [][]float32) (*DocumentIndex, error) {
	if docID == "" {
		return nil, fmt.Errorf("doc id is required")
	}
	if dimension <= 0 {
		return nil, fmt.Errorf("dimension must be positive, got %d", dimension)
	}
	if len(chunks) != len(vectors) {
		return nil, fmt.Errorf("chunk count %d does not match vector count %d", len(chunks), len(vectors))
	}
	normalized := make([][]float32, len(vectors))
	for i, v := range vectors {
		if len(v) != dimension {
			return nil, fmt.Errorf("%w: vector %d has %d dimensions, index expects %d", ErrDimensionMismatch, i, len(v), dimension)
		}
		vec := make([]float32, dimension)
		copy(vec, v)
		utils.NormalizeL2(vec)
		normalized[i] = vec
	}
	owned := make([]models.Chunk, len(chunks))
	copy(owned, chunks)
	return &DocumentIndex{
		docID:      docID,
		providerID: providerID,
		dimension:  dimension,
		chunks:     owned,
		vectors:    normalized,
	}, nil
}

// DocID returns the document identifier.
func (d *DocumentIndex) DocID() string { return d.docID }

// ProviderID returns the embedding provider the vectors came from.
func (d *DocumentIndex) ProviderID() string { return d.providerID }

// Dimension returns the embedding dimension.
func (d *DocumentIndex) Dimension() int { return d.dimension }

// Len returns the number of chunks in the index.
func (d *DocumentIndex) Len() int { return len(d.chunks) }

// Search returns the k chunks most similar to query, sorted by descending
// cosine similarity with ties broken by sequence index. For k greater than
// the chunk count, all chunks are returned. Fails with ErrEmptyIndex on an
// empty index and ErrDimensionMismatch on a wrong-length query.
func (d *DocumentIndex) Search(query []float32, k int) ([]models.SearchResult, error) {
	if len(d.chunks) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyIndex, d.docID)
	}
	if len(query) != d.dimension {
		return nil, fmt.Errorf("%w: query has %d dimensions, index expects %d", ErrDimensionMismatch, len(query), d.dimension)
	}
	if k <= 0 {
		return nil, nil
	}
	q := make([]float32, d.dimension)
	copy(q, query)
	utils.NormalizeL2(q)

	results := make([]models.SearchResult, len(d.chunks))
	for i, vec := range d.vectors {
		var dot float64
		for j := 0; j < d.dimension; j++ {
			dot += float64(q[j] * vec[j])
		}
		ch := d.chunks[i]
		results[i] = models.SearchResult{
			DocID:         d.docID,
			ChunkID:       ch.ID,
			Text:          ch.Text,
			PageNumber:    ch.PageNumber,
			SequenceIndex: ch.SequenceIndex,
			Score:         dot,
		}
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].SequenceIndex < results[j].SequenceIndex
	})
	if k > len(results) {
		k = len(results)
	}
	return results[:k], nil
}
