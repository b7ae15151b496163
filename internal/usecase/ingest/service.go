// Package ingest scores a batch of documents against a job description and
// atomically replaces a pool with the results.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/shortlist/internal/domain"
	"github.com/kailas-cloud/shortlist/internal/domain/record"
	"github.com/kailas-cloud/shortlist/internal/domain/score"
	"github.com/kailas-cloud/shortlist/internal/domain/vector"
	"github.com/kailas-cloud/shortlist/internal/logger"
	"github.com/kailas-cloud/shortlist/internal/metrics"
)

// DefaultWorkers is the per-run document concurrency.
const DefaultWorkers = 4

// Options tunes a Service.
type Options struct {
	Workers int
	Policy  string // PolicyKeyPoints (default) or PolicyDirect
	Dim     int    // expected embedding dimension; 0 accepts the reference's
}

// Service runs ingestions one at a time.
type Service struct {
	pool     PoolStore
	extract  Extractor
	embed    Embedder
	refEmbed Embedder
	gen      Generator
	fetch    Fetcher
	workers  int
	policy   string
	dim      int
	lock     chan struct{}
	logger   *zap.Logger
}

// New creates an ingestion service. gen may be nil, which forces PolicyDirect.
func New(
	pool PoolStore, extract Extractor, embed Embedder, gen Generator,
	opts Options, logger *zap.Logger,
) *Service {
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	if opts.Policy == "" {
		opts.Policy = PolicyKeyPoints
	}
	return &Service{
		pool: pool, extract: extract, embed: embed, refEmbed: embed, gen: gen,
		workers: opts.Workers, policy: opts.Policy, dim: opts.Dim,
		lock:   make(chan struct{}, 1),
		logger: logger,
	}
}

// WithFetcher enables documents addressed by URL.
func (s *Service) WithFetcher(f Fetcher) *Service {
	s.fetch = f
	return s
}

// WithReferenceEmbedder embeds the reference text with a different embedder
// (typically one carrying the query-side instruction).
func (s *Service) WithReferenceEmbedder(e Embedder) *Service {
	if e != nil {
		s.refEmbed = e
	}
	return s
}

// scored is a document that made it through extraction and embedding.
type scored struct {
	name      string
	text      string
	score     float64
	embedding vector.Vector
}

// Ingest scores every document and replaces the pool with the survivors.
// Per-document failures are reported, not returned. Errors are returned only
// when no pool write can happen: invalid request, reference embedding failure,
// cancellation, no document scored or store failure. In all those cases the
// old pool is untouched.
func (s *Service) Ingest(ctx context.Context, req Request) (Report, error) {
	if err := validate(req); err != nil {
		return Report{}, err
	}

	if err := s.acquire(ctx); err != nil {
		return Report{}, fmt.Errorf("wait for ingestion lock: %w", err)
	}
	defer s.release()

	return s.run(ctx, req)
}

// Rescore scores the documents already in a pool against a new job
// description. Records named by an http(s) URL are downloaded again when a
// fetcher is configured; the others reuse their stored text.
func (s *Service) Rescore(ctx context.Context, poolID, jobDescription string) (Report, error) {
	if err := record.ValidatePoolID(poolID); err != nil {
		return Report{}, err
	}
	if strings.TrimSpace(jobDescription) == "" {
		return Report{}, fmt.Errorf("job description is required: %w", domain.ErrInvalidRequest)
	}

	if err := s.acquire(ctx); err != nil {
		return Report{}, fmt.Errorf("wait for ingestion lock: %w", err)
	}
	defer s.release()

	current, err := s.pool.SelectAll(ctx, poolID)
	if err != nil {
		return Report{}, fmt.Errorf("load pool %s: %w", poolID, err)
	}
	if len(current) == 0 {
		return Report{}, fmt.Errorf("pool %s has no documents to rescore: %w", poolID, domain.ErrInvalidRequest)
	}
	slices.SortStableFunc(current, func(a, b record.Record) int { return a.Ordinal() - b.Ordinal() })

	req := Request{PoolID: poolID, JobDescription: jobDescription, Documents: make([]Document, len(current))}
	for i, rec := range current {
		req.Documents[i] = s.rescoreDocument(rec)
	}
	return s.run(ctx, req)
}

func (s *Service) rescoreDocument(rec record.Record) Document {
	if s.fetch != nil && isHTTPURL(rec.Name()) {
		return Document{URL: rec.Name()}
	}
	return Document{Name: rec.Name(), Body: []byte(rec.Text())}
}

func isHTTPURL(name string) bool {
	u, err := url.Parse(name)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// run does the work of one ingestion. The caller holds the lock.
func (s *Service) run(ctx context.Context, req Request) (Report, error) {
	runID := uuid.NewString()
	ctx = logger.ContextWithLogger(ctx, s.logger.With(
		zap.String("run_id", runID),
		zap.String("pool", req.PoolID),
	))
	log := logger.FromContext(ctx)
	log.Info("Ingestion started", zap.Int("documents", len(req.Documents)))

	ref, policy, err := s.reference(ctx, req.JobDescription)
	if err != nil {
		metrics.IngestionRunsTotal.WithLabelValues("failed", policy).Inc()
		return Report{}, err
	}

	results, outcomes, firstErr, err := s.scoreAll(ctx, ref, req)
	if err != nil {
		metrics.IngestionRunsTotal.WithLabelValues("cancelled", policy).Inc()
		return Report{}, err
	}

	records := make([]record.Record, 0, len(results))
	for _, r := range results {
		if r == nil {
			continue
		}
		rec, err := record.New(len(records), r.name, r.text, r.score, r.embedding)
		if err != nil {
			return Report{}, fmt.Errorf("build record %q: %w", r.name, err)
		}
		records = append(records, rec)
	}

	report := Report{
		RunID:     runID,
		PoolID:    req.PoolID,
		Policy:    policy,
		Succeeded: len(records),
		Failed:    len(req.Documents) - len(records),
		Outcomes:  outcomes,
	}

	// A run where nothing scored keeps the old pool; emptying one is Clear's job.
	if len(records) == 0 {
		metrics.IngestionRunsTotal.WithLabelValues("failed", policy).Inc()
		metrics.IngestionDocumentsTotal.WithLabelValues("failed").Add(float64(report.Failed))
		log.Warn("No document scored, pool left unchanged", zap.Int("failed", report.Failed))
		return report, fmt.Errorf("none of %d documents scored, pool %s unchanged: %w",
			report.Failed, req.PoolID, firstErr)
	}

	if err := s.pool.Replace(ctx, req.PoolID, records); err != nil {
		metrics.IngestionRunsTotal.WithLabelValues("failed", policy).Inc()
		return Report{}, fmt.Errorf("replace pool %s: %w", req.PoolID, err)
	}
	metrics.IngestionRunsTotal.WithLabelValues("ok", policy).Inc()
	metrics.IngestionDocumentsTotal.WithLabelValues("ok").Add(float64(report.Succeeded))
	metrics.IngestionDocumentsTotal.WithLabelValues("failed").Add(float64(report.Failed))

	log.Info("Ingestion finished",
		zap.String("policy", policy),
		zap.Int("succeeded", report.Succeeded),
		zap.Int("failed", report.Failed),
	)
	return report, nil
}

// scoreAll processes documents on a bounded worker pool. Result slots are
// per index, so input order is preserved regardless of completion order.
// firstErr is the failure of the lowest-index document that failed.
// Only the run's own context aborts the batch: a document error that wraps a
// deadline (an HTTP client timeout, say) still fails just that document.
func (s *Service) scoreAll(
	ctx context.Context, ref vector.Vector, req Request,
) (results []*scored, outcomes []DocumentOutcome, firstErr, err error) {
	results = make([]*scored, len(req.Documents))
	outcomes = make([]DocumentOutcome, len(req.Documents))
	errs := make([]error, len(req.Documents))
	var progressMu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)

	for i, doc := range req.Documents {
		if err := gctx.Err(); err != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			name := documentName(doc, i)
			res, err := s.scoreOne(gctx, ref, doc, name)

			out := DocumentOutcome{Index: i, Name: name}
			if err != nil {
				if ctxErr := gctx.Err(); ctxErr != nil {
					return ctxErr
				}
				errs[i] = err
				out.Error = err.Error()
				logger.FromContext(gctx).Warn("Skipping document",
					zap.Int("index", i), zap.String("name", name), zap.Error(err))
			} else {
				out.OK, out.Score = true, res.score
				results[i] = res
			}
			outcomes[i] = out

			if req.Progress != nil {
				progressMu.Lock()
				req.Progress(out)
				progressMu.Unlock()
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, nil, nil, fmt.Errorf("ingestion cancelled: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, nil, fmt.Errorf("ingestion cancelled: %w", err)
	}
	for _, e := range errs {
		if e != nil {
			return results, outcomes, e, nil
		}
	}
	return results, outcomes, nil, nil
}

func (s *Service) scoreOne(ctx context.Context, ref vector.Vector, doc Document, name string) (*scored, error) {
	raw := doc.Body
	if len(raw) == 0 {
		if doc.URL == "" || s.fetch == nil {
			return nil, fmt.Errorf("document %q has no content: %w", name, domain.ErrExtractionFailure)
		}
		body, err := s.fetch.Fetch(ctx, doc.URL)
		if err != nil {
			return nil, fmt.Errorf("fetch %s: %w", doc.URL, err)
		}
		raw = body
	}

	text, err := s.extract.Extract(ctx, raw)
	if err != nil {
		return nil, fmt.Errorf("extract: %w", err)
	}

	res, err := s.embed.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed: %w", wrapEmbedding(err))
	}
	if s.dim > 0 && res.Embedding.Dim() != s.dim {
		return nil, fmt.Errorf("embedding has %d dimensions, want %d: %w",
			res.Embedding.Dim(), s.dim, domain.ErrDimensionMismatch)
	}

	sim, err := score.Similarity(ref, res.Embedding)
	if err != nil {
		return nil, fmt.Errorf("score: %w", err)
	}

	return &scored{name: name, text: text, score: sim, embedding: res.Embedding}, nil
}

// Clear removes a pool. It waits for a running ingestion to finish.
func (s *Service) Clear(ctx context.Context, poolID string) error {
	if err := record.ValidatePoolID(poolID); err != nil {
		return err
	}
	if err := s.acquire(ctx); err != nil {
		return fmt.Errorf("wait for ingestion lock: %w", err)
	}
	defer s.release()

	if err := s.pool.DeleteAll(ctx, poolID); err != nil {
		return fmt.Errorf("clear pool %s: %w", poolID, err)
	}
	s.logger.Info("Pool cleared", zap.String("pool", poolID))
	return nil
}

func (s *Service) acquire(ctx context.Context) error {
	select {
	case s.lock <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Service) release() {
	<-s.lock
}

func validate(req Request) error {
	if err := record.ValidatePoolID(req.PoolID); err != nil {
		return err
	}
	if strings.TrimSpace(req.JobDescription) == "" {
		return fmt.Errorf("job description is required: %w", domain.ErrInvalidRequest)
	}
	if len(req.Documents) == 0 {
		return fmt.Errorf("at least one document is required: %w", domain.ErrInvalidRequest)
	}
	return nil
}

func documentName(doc Document, i int) string {
	switch {
	case doc.Name != "":
		return doc.Name
	case doc.URL != "":
		return doc.URL
	default:
		return fmt.Sprintf("document-%d", i+1)
	}
}

// wrapEmbedding tags provider errors with ErrEmbeddingFailure while keeping
// rate-limit and availability sentinels reachable.
func wrapEmbedding(err error) error {
	if errors.Is(err, domain.ErrEmbeddingFailure) {
		return err
	}
	return fmt.Errorf("%w: %w", domain.ErrEmbeddingFailure, err)
}
