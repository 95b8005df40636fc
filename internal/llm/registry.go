package llm

import (
	"errors"
	"fmt"
	"sync"

	"github.com/hyperjump/kotaeru/internal/config"
)

// ErrUnknownProvider reports a provider name no chat provider is
// registered under. Names arrive in requests, so callers treat this as
// bad input.
var ErrUnknownProvider = errors.New("unknown llm provider")

// Registry resolves provider names to chat providers. Providers are
// constructed lazily on first use so a missing API key only fails requests
// that name that provider.
type Registry struct {
	cfg config.LLMConfig

	mu        sync.Mutex
	providers map[string]Provider
}

// NewRegistry creates a registry over the configured providers.
func NewRegistry(cfg config.LLMConfig) *Registry {
	return &Registry{
		cfg:       cfg,
		providers: make(map[string]Provider),
	}
}

// Get returns the provider for name, constructing it on first use. An
// empty name resolves to the configured default provider.
func (r *Registry) Get(name string) (Provider, error) {
	if name == "" {
		name = r.cfg.DefaultProvider
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.providers[name]; ok {
		return p, nil
	}
	var p Provider
	switch name {
	case "openai":
		prov, err := NewOpenAIProvider(r.cfg.OpenAI.Model, r.cfg.OpenAI.Temperature, r.cfg.OpenAI.MaxTokens)
		if err != nil {
			return nil, err
		}
		p = prov
	case "ollama":
		p = NewOllamaProvider(r.cfg.Ollama.BaseURL, r.cfg.Ollama.Model, r.cfg.Ollama.Temperature)
	case "mock":
		p = NewMockProvider()
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, name)
	}
	r.providers[name] = p
	return p, nil
}

// Close closes every constructed provider.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var firstErr error
	for name, p := range r.providers {
		if err := p.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(r.providers, name)
	}
	return firstErr
}
