package ingest

import (
	"context"

	"github.com/kailas-cloud/shortlist/internal/domain"
	"github.com/kailas-cloud/shortlist/internal/domain/record"
)

// PoolStore reads, replaces or removes a whole pool.
type PoolStore interface {
	SelectAll(ctx context.Context, poolID string) ([]record.Record, error)
	Replace(ctx context.Context, poolID string, records []record.Record) error
	DeleteAll(ctx context.Context, poolID string) error
}

// Embedder vectorizes text into embeddings.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}

// Generator produces the key-point summary of a job description.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Extractor turns raw document bytes into plain text.
type Extractor interface {
	Extract(ctx context.Context, raw []byte) (string, error)
}

// Fetcher downloads documents addressed by URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}
