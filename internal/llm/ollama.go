package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hyperjump/kotaeru/internal/models"
)

// OllamaProvider generates completions via a local Ollama instance using
// its native /api/chat endpoint.
type OllamaProvider struct {
	baseURL     string
	model       string
	temperature float64
	client      *http.Client
}

// NewOllamaProvider creates a provider against the Ollama instance at baseURL.
func NewOllamaProvider(baseURL, model string, temperature float64) *OllamaProvider {
	return &OllamaProvider{
		baseURL:     strings.TrimSuffix(baseURL, "/"),
		model:       model,
		temperature: temperature,
		client:      &http.Client{Timeout: 300 * time.Second},
	}
}

type ollamaChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaChatRequest struct {
	Model    string              `json:"model"`
	Messages []ollamaChatMessage `json:"messages"`
	Stream   bool                `json:"stream"`
	Options  map[string]any      `json:"options,omitempty"`
}

type ollamaChatResponse struct {
	Message ollamaChatMessage `json:"message"`
}

// Generate produces a completion for prompt.
func (p *OllamaProvider) Generate(ctx context.Context, prompt, system string, history []models.ConversationMessage) (string, error) {
	messages := make([]ollamaChatMessage, 0, len(history)+2)
	if system != "" {
		messages = append(messages, ollamaChatMessage{Role: "system", Content: system})
	}
	for _, m := range history {
		messages = append(messages, ollamaChatMessage{Role: m.Role, Content: m.Content})
	}
	messages = append(messages, ollamaChatMessage{Role: "user", Content: prompt})

	body, err := json.Marshal(ollamaChatRequest{
		Model:    p.model,
		Messages: messages,
		Stream:   false,
		Options:  map[string]any{"temperature": p.temperature},
	})
	if err != nil {
		return "", fmt.Errorf("marshal chat request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return "", fmt.Errorf("%w: ollama returned 429", ErrRateLimited)
	}
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("%w: status %d: %s", ErrUnavailable, resp.StatusCode, string(msg))
	}

	var result ollamaChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("%w: decode response: %v", ErrUnavailable, err)
	}
	return result.Message.Content, nil
}

// Name identifies the provider.
func (p *OllamaProvider) Name() string {
	return "ollama"
}

// Close is a no-op.
func (p *OllamaProvider) Close() error {
	return nil
}
