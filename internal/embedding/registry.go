package embedding

import (
	"errors"
	"fmt"
	"sync"

	"github.com/hyperjump/kotaeru/internal/config"
)

// ErrUnknownProvider reports a provider name no embedder is registered
// under. Names arrive in requests, so callers treat this as bad input.
var ErrUnknownProvider = errors.New("unknown embedding provider")

// Registry resolves provider names to embedders. Providers are constructed
// lazily on first use so a missing API key only fails requests that name
// that provider.
type Registry struct {
	cfg config.EmbeddingConfig

	mu        sync.Mutex
	cacheSize int
	embedders map[string]Embedder
}

// NewRegistry creates a registry over the configured providers. cacheSize
// bounds each provider's embedding cache.
func NewRegistry(cfg config.EmbeddingConfig, cacheSize int) *Registry {
	return &Registry{
		cfg:       cfg,
		cacheSize: cacheSize,
		embedders: make(map[string]Embedder),
	}
}

// Get returns the embedder for name, constructing it on first use. An
// empty name resolves to the configured default provider.
func (r *Registry) Get(name string) (Embedder, error) {
	if name == "" {
		name = r.cfg.DefaultProvider
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.embedders[name]; ok {
		return e, nil
	}
	var inner Embedder
	switch name {
	case "openai":
		e, err := NewOpenAIEmbedder(r.cfg.OpenAI.Model)
		if err != nil {
			return nil, err
		}
		inner = e
	case "ollama":
		inner = NewOllamaEmbedder(r.cfg.Ollama.BaseURL, r.cfg.Ollama.Model, r.cfg.Ollama.Dimensions)
	case "mock":
		inner = NewMockEmbedder(384)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, name)
	}
	e := NewCachedEmbedder(inner, r.cacheSize)
	r.embedders[name] = e
	return e, nil
}

// Close closes every constructed embedder.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var firstErr error
	for name, e := range r.embedders {
		if err := e.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(r.embedders, name)
	}
	return firstErr
}
