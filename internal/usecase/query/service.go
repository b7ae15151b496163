// Package query answers a free-text question over a pool: it re-ranks the
// pool against the question, bounds the selection and asks the generator.
package query

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"go.uber.org/zap"

	"github.com/kailas-cloud/shortlist/internal/domain"
	"github.com/kailas-cloud/shortlist/internal/domain/record"
	"github.com/kailas-cloud/shortlist/internal/logger"
	"github.com/kailas-cloud/shortlist/internal/metrics"
	"github.com/kailas-cloud/shortlist/internal/usecase/prompt"
)

// Result statuses.
const (
	StatusAnswered              = "answered"
	StatusEmptyPool             = "empty_pool"
	StatusNoCandidatesRequested = "no_candidates_requested"
	StatusNoRankableCandidates  = "no_rankable_candidates"
	StatusOverBudget            = "over_budget"
)

// Request is one query.
type Request struct {
	PoolID string
	Text   string
	Count  int
}

// Candidate is the public view of one selected document.
type Candidate struct {
	Rank      int     `json:"rank"`
	Ordinal   int     `json:"ordinal"`
	Name      string  `json:"name"`
	Persisted float64 `json:"persisted_score"`
	Fresh     float64 `json:"query_score"`
	Fused     float64 `json:"fused_score"`
}

// Result is a query outcome. Answer is set only for StatusAnswered.
type Result struct {
	Status     string      `json:"status"`
	Answer     string      `json:"answer,omitempty"`
	Candidates []Candidate `json:"candidates"`
	Excluded   int         `json:"excluded"` // pool records that could not be scored
	Omitted    int         `json:"omitted"`  // selected records left out of the prompt by the budget
}

// Service runs queries.
type Service struct {
	pool      PoolReader
	embed     Embedder
	ranker    Ranker
	assembler Assembler
	gen       Generator
	budget    prompt.Budget
	dim       int
	logger    *zap.Logger
}

// New creates a query service. dim is the pool embedding dimension.
func New(
	pool PoolReader, embed Embedder, ranker Ranker, assembler Assembler, gen Generator,
	budget prompt.Budget, dim int, logger *zap.Logger,
) *Service {
	return &Service{
		pool: pool, embed: embed, ranker: ranker, assembler: assembler, gen: gen,
		budget: budget, dim: dim, logger: logger,
	}
}

// Query ranks the pool against req.Text and asks the generator about the top req.Count.
func (s *Service) Query(ctx context.Context, req Request) (Result, error) {
	if err := record.ValidatePoolID(req.PoolID); err != nil {
		return Result{}, err
	}
	if strings.TrimSpace(req.Text) == "" {
		return Result{}, fmt.Errorf("query text is required: %w", domain.ErrInvalidRequest)
	}

	ctx = logger.ContextWithLogger(ctx, s.logger.With(zap.String("pool", req.PoolID)))
	log := logger.FromContext(ctx)

	if req.Count <= 0 {
		return s.done(Result{Status: StatusNoCandidatesRequested}), nil
	}

	all, err := s.pool.SelectAll(ctx, req.PoolID)
	if err != nil {
		return Result{}, fmt.Errorf("load pool %s: %w", req.PoolID, err)
	}
	if len(all) == 0 {
		log.Info("Query against empty pool", zap.Error(domain.ErrEmptyPool))
		return s.done(Result{Status: StatusEmptyPool}), nil
	}

	pool, excluded := s.usable(ctx, all)
	if len(pool) == 0 {
		return s.done(Result{Status: StatusNoRankableCandidates, Excluded: excluded}), nil
	}

	q, err := s.embed.Embed(ctx, req.Text)
	if err != nil {
		if !errors.Is(err, domain.ErrEmbeddingFailure) {
			err = fmt.Errorf("%w: %w", domain.ErrEmbeddingFailure, err)
		}
		return Result{}, fmt.Errorf("embed query: %w", err)
	}

	sel := s.ranker.Rank(ctx, pool, q.Embedding, req.Count)
	excluded += sel.Excluded
	if len(sel.Candidates) == 0 {
		return s.done(Result{Status: StatusNoRankableCandidates, Excluded: excluded}), nil
	}

	kept, omitted := s.budget.Apply(sel.Candidates)
	if omitted > 0 {
		metrics.PromptOmittedDocumentsTotal.Add(float64(omitted))
		log.Info("Prompt budget left documents out",
			zap.Int("selected", len(sel.Candidates)),
			zap.Int("kept", len(kept)),
			zap.Int("omitted", omitted),
		)
	}
	res := Result{Candidates: view(kept), Excluded: excluded, Omitted: omitted}
	if len(kept) == 0 {
		res.Status = StatusOverBudget
		return s.done(res), nil
	}

	text := s.assembler.Assemble(kept, req.Text, req.Count)
	answer, err := s.gen.Generate(ctx, text)
	if err != nil {
		metrics.QueriesTotal.WithLabelValues("failed").Inc()
		if !errors.Is(err, domain.ErrGenerationFailure) {
			err = fmt.Errorf("%w: %w", domain.ErrGenerationFailure, err)
		}
		return Result{}, fmt.Errorf("generate answer: %w", err)
	}

	res.Status = StatusAnswered
	res.Answer = answer
	log.Debug("Query answered",
		zap.Int("candidates", len(kept)),
		zap.Int("prompt_len", len(text)),
		zap.Int("answer_len", len(answer)),
	)
	return s.done(res), nil
}

// usable drops records that do not fit the pool dimension and restores pool
// order, since stores do not guarantee any.
func (s *Service) usable(ctx context.Context, all []record.Record) ([]record.Record, int) {
	log := logger.FromContext(ctx)
	out := make([]record.Record, 0, len(all))
	for _, r := range all {
		if err := r.Validate(s.dim); err != nil {
			metrics.RankExcludedTotal.Inc()
			log.Warn("Excluding corrupt pool record", zap.Int("ordinal", r.Ordinal()), zap.Error(err))
			continue
		}
		out = append(out, r)
	}
	slices.SortStableFunc(out, func(a, b record.Record) int {
		return cmp.Compare(a.Ordinal(), b.Ordinal())
	})
	return out, len(all) - len(out)
}

func (s *Service) done(res Result) Result {
	if res.Candidates == nil {
		res.Candidates = []Candidate{}
	}
	metrics.QueriesTotal.WithLabelValues(res.Status).Inc()
	return res
}
