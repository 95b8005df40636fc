// Package embedding provides text embedding providers (OpenAI, Ollama, a
// deterministic mock) behind a common interface, plus an LRU cache layer.
package embedding

import (
	"context"
	"errors"
)

var (
	// ErrUnavailable reports that a provider could not be reached.
	ErrUnavailable = errors.New("embedding provider unavailable")
	// ErrRateLimited reports that a provider rejected the call for quota.
	ErrRateLimited = errors.New("embedding provider rate limited")
)

// Embedder produces vector embeddings for text. Implementations must be
// safe for concurrent use.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	Name() string
	Close() error
}
