package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"

	openai "github.com/sashabaranov/go-openai"

	"github.com/hyperjump/kotaeru/internal/models"
)

// OpenAIProvider generates completions via the OpenAI chat API.
type OpenAIProvider struct {
	client      *openai.Client
	model       string
	temperature float32
	maxTokens   int
}

// NewOpenAIProvider creates a provider for model. The API key is read from
// the OPENAI_API_KEY environment variable.
func NewOpenAIProvider(model string, temperature float64, maxTokens int) (*OpenAIProvider, error) {
	key := os.Getenv("OPENAI_API_KEY")
	if key == "" {
		return nil, errors.New("OPENAI_API_KEY environment variable not set")
	}
	return &OpenAIProvider{
		client:      openai.NewClient(key),
		model:       model,
		temperature: float32(temperature),
		maxTokens:   maxTokens,
	}, nil
}

// Generate produces a completion for prompt.
func (p *OpenAIProvider) Generate(ctx context.Context, prompt, system string, history []models.ConversationMessage) (string, error) {
	messages := make([]openai.ChatCompletionMessage, 0, len(history)+2)
	if system != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: system,
		})
	}
	for _, m := range history {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    m.Role,
			Content: m.Content,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: prompt,
	})

	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       p.model,
		Messages:    messages,
		Temperature: p.temperature,
		MaxTokens:   p.maxTokens,
	})
	if err != nil {
		return "", classifyError(err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: empty completion response", ErrUnavailable)
	}
	return resp.Choices[0].Message.Content, nil
}

// Name identifies the provider.
func (p *OpenAIProvider) Name() string {
	return "openai"
}

// Close is a no-op; the client holds no persistent connections.
func (p *OpenAIProvider) Close() error {
	return nil
}

func classifyError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.HTTPStatusCode == http.StatusTooManyRequests {
			return fmt.Errorf("%w: %v", ErrRateLimited, err)
		}
		if apiErr.HTTPStatusCode >= 500 {
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		return err
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}
