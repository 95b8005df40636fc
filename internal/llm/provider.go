// Package llm provides chat completion providers (OpenAI, Ollama, a
// scripted mock) behind a common interface.
package llm

import (
	"context"
	"errors"

	"github.com/hyperjump/kotaeru/internal/models"
)

var (
	// ErrUnavailable reports that a provider could not be reached.
	ErrUnavailable = errors.New("llm provider unavailable")
	// ErrRateLimited reports that a provider rejected the call for quota.
	ErrRateLimited = errors.New("llm provider rate limited")
)

// Provider generates chat completions. Implementations must be safe for
// concurrent use.
type Provider interface {
	// Generate produces a completion for prompt. system sets the system
	// message; history carries prior conversation turns in order.
	Generate(ctx context.Context, prompt, system string, history []models.ConversationMessage) (string, error)
	Name() string
	Close() error
}
