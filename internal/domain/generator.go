package domain

import "context"

// Generator turns a prompt into a natural-language answer.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Extractor turns raw document bytes into plain text.
type Extractor interface {
	Extract(ctx context.Context, raw []byte) (string, error)
}
