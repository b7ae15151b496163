// Package gemini adapts the Google GenAI API to the generation contract.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/genai"

	"github.com/kailas-cloud/shortlist/internal/domain"
)

const defaultModel = "gemini-2.0-flash"

// contentGenerator is the subset of *genai.Models the generator needs.
type contentGenerator interface {
	GenerateContent(
		ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig,
	) (*genai.GenerateContentResponse, error)
}

// Config holds the Gemini client settings.
type Config struct {
	APIKey  string
	BaseURL string // empty uses the public endpoint
	Model   string
}

// Generator wraps the Google GenAI client to provide prompt-in, text-out generation.
type Generator struct {
	models    contentGenerator
	modelName string
}

// NewGenerator creates a Generator configured for the Gemini API backend.
func NewGenerator(ctx context.Context, cfg Config) (*Generator, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errors.New("gemini api key is required")
	}

	clientCfg := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		clientCfg.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	return newGenerator(client.Models, cfg.Model), nil
}

func newGenerator(models contentGenerator, model string) *Generator {
	if model = strings.TrimSpace(model); model == "" {
		model = defaultModel
	}
	return &Generator{models: models, modelName: model}
}

// Generate sends the prompt to Gemini and returns the joined textual parts of the response.
func (g *Generator) Generate(ctx context.Context, prompt string) (string, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "", fmt.Errorf("prompt must not be empty: %w", domain.ErrGenerationFailure)
	}

	resp, err := g.models.GenerateContent(ctx, g.modelName, genai.Text(prompt), nil)
	if err != nil {
		return "", classify(err)
	}
	if resp == nil {
		return "", fmt.Errorf("nil response: %w", domain.ErrGenerationFailure)
	}

	var builder strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part == nil {
				continue
			}
			text := strings.TrimSpace(part.Text)
			if text == "" {
				continue
			}
			if builder.Len() > 0 {
				builder.WriteString("\n")
			}
			builder.WriteString(text)
		}
	}

	output := strings.TrimSpace(builder.String())
	if output == "" {
		return "", fmt.Errorf("gemini api returned empty response: %w", domain.ErrGenerationFailure)
	}
	return output, nil
}

// Model returns the configured model name.
func (g *Generator) Model() string {
	return g.modelName
}

func classify(err error) error {
	if errors.Is(err, context.Canceled) {
		return fmt.Errorf("generate content: %w: %w", domain.ErrGenerationFailure, err)
	}

	var apiErr genai.APIError
	if !errors.As(err, &apiErr) {
		var ptr *genai.APIError
		if !errors.As(err, &ptr) || ptr == nil {
			return fmt.Errorf("generate content: %w: %w: %w", domain.ErrGenerationFailure, domain.ErrProviderUnavailable, err)
		}
		apiErr = *ptr
	}

	switch {
	case apiErr.Code == http.StatusTooManyRequests:
		return fmt.Errorf("generate content: %w: %w: %w", domain.ErrGenerationFailure, domain.ErrRateLimited, err)
	case apiErr.Code >= http.StatusInternalServerError:
		return fmt.Errorf("generate content: %w: %w: %w", domain.ErrGenerationFailure, domain.ErrProviderUnavailable, err)
	default:
		return fmt.Errorf("generate content: %w: %w", domain.ErrGenerationFailure, err)
	}
}
