package openai

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/kailas-cloud/shortlist/internal/domain"
)

// Generator answers prompts through the chat completions endpoint.
type Generator struct {
	client *openai.Client
	model  string
	user   string
	logger *zap.Logger
}

// NewGenerator creates an OpenAI-compatible chat generator.
func NewGenerator(cfg *Config) *Generator {
	return &Generator{
		client: newClient(cfg.APIKey, cfg.BaseURL),
		model:  cfg.Model,
		user:   cfg.User,
		logger: cfg.Logger,
	}
}

// Generate implements domain.Generator with a single user message.
func (g *Generator) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: g.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		User: g.user,
	})
	if err != nil {
		return "", parseAPIError(err, domain.ErrGenerationFailure)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices in completion: %w", domain.ErrGenerationFailure)
	}

	out := strings.TrimSpace(resp.Choices[0].Message.Content)
	if out == "" {
		return "", fmt.Errorf("empty completion (finish reason %q): %w",
			resp.Choices[0].FinishReason, domain.ErrGenerationFailure)
	}
	return out, nil
}
