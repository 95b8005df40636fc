package llm

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/hyperjump/kotaeru/internal/models"
)

// MockProvider is a deterministic provider for tests. It echoes a short
// summary of the prompt and counts how many calls it has served.
type MockProvider struct {
	calls atomic.Int64
	// Response overrides the generated text when non-empty.
	Response string
	// Err is returned from every Generate call when non-nil.
	Err error
}

// NewMockProvider returns a provider suitable for tests.
func NewMockProvider() *MockProvider {
	return &MockProvider{}
}

// Generate returns a canned response.
func (p *MockProvider) Generate(ctx context.Context, prompt, system string, history []models.ConversationMessage) (string, error) {
	p.calls.Add(1)
	if p.Err != nil {
		return "", p.Err
	}
	if p.Response != "" {
		return p.Response, nil
	}
	return fmt.Sprintf("mock answer (%d prompt bytes)", len(prompt)), nil
}

// Calls returns how many times Generate has been invoked.
func (p *MockProvider) Calls() int {
	return int(p.calls.Load())
}

// Name identifies the provider.
func (p *MockProvider) Name() string {
	return "mock"
}

// Close is a no-op.
func (p *MockProvider) Close() error {
	return nil
}
