package query

import (
	"context"

	"github.com/kailas-cloud/shortlist/internal/domain"
	"github.com/kailas-cloud/shortlist/internal/domain/record"
	"github.com/kailas-cloud/shortlist/internal/domain/vector"
	"github.com/kailas-cloud/shortlist/internal/usecase/rank"
)

// PoolReader loads a whole pool.
type PoolReader interface {
	SelectAll(ctx context.Context, poolID string) ([]record.Record, error)
}

// Embedder vectorizes the query text.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}

// Ranker selects the top candidates of a pool.
type Ranker interface {
	Rank(ctx context.Context, pool []record.Record, query vector.Vector, n int) rank.Selection
}

// Assembler renders the generation prompt.
type Assembler interface {
	Assemble(selected []rank.Candidate, query string, count int) string
}

// Generator produces the final answer.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}
