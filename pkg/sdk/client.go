package shortlist

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	dbRedis "github.com/kailas-cloud/shortlist/internal/db/redis"
	"github.com/kailas-cloud/shortlist/internal/domain"
	"github.com/kailas-cloud/shortlist/internal/domain/record"
	"github.com/kailas-cloud/shortlist/internal/extract"
	"github.com/kailas-cloud/shortlist/internal/fetch"
	"github.com/kailas-cloud/shortlist/internal/metrics"
	"github.com/kailas-cloud/shortlist/internal/repository/pool"
	healthuc "github.com/kailas-cloud/shortlist/internal/usecase/health"
	ingestuc "github.com/kailas-cloud/shortlist/internal/usecase/ingest"
	"github.com/kailas-cloud/shortlist/internal/usecase/prompt"
	queryuc "github.com/kailas-cloud/shortlist/internal/usecase/query"
	"github.com/kailas-cloud/shortlist/internal/usecase/rank"
)

const (
	defaultReadinessTimeout = 10 * time.Second
	defaultKeyPrefix        = "shortlist:"
	policyDirect            = ingestuc.PolicyDirect
)

// Внутренние интерфейсы для подмены в тестах.
type ingestUseCase interface {
	Ingest(ctx context.Context, req ingestuc.Request) (ingestuc.Report, error)
	Clear(ctx context.Context, poolID string) error
}

type queryUseCase interface {
	Query(ctx context.Context, req queryuc.Request) (queryuc.Result, error)
}

type poolStore interface {
	SelectAll(ctx context.Context, poolID string) ([]record.Record, error)
	Replace(ctx context.Context, poolID string, records []record.Record) error
	DeleteAll(ctx context.Context, poolID string) error
	Ping(ctx context.Context) error
}

// Client is the shortlist SDK entry point.
type Client struct {
	ingestSvc ingestUseCase
	querySvc  queryUseCase
	healthSvc healthUseCase
	pinger    healthuc.DBPinger
	closeFn   func()
	obs       *observer
}

// New creates a Client and opens the pool store.
// The provided context is used for the initial readiness check.
func New(ctx context.Context, opts ...Option) (*Client, error) {
	cfg := &clientConfig{keyPrefix: defaultKeyPrefix}
	for _, o := range opts {
		o.apply(cfg)
	}

	if cfg.embedder == nil || cfg.dimensions <= 0 {
		return nil, errors.New("shortlist: embedder and dimensions required (use WithEmbedder)")
	}

	store, closeFn, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	obs, err := newObserver(cfg.logger, cfg.metricsReg)
	if err != nil {
		closeFn()
		return nil, err
	}
	return wireClient(store, closeFn, cfg, obs), nil
}

func openStore(ctx context.Context, cfg *clientConfig) (poolStore, func(), error) {
	switch cfg.driver {
	case driverValkey, driverRedis:
		if len(cfg.addrs) == 0 || cfg.addrs[0] == "" {
			return nil, nil, errors.New("shortlist: database address required")
		}
		s, err := dbRedis.NewStore(dbRedis.Config{Addrs: cfg.addrs, Password: cfg.password})
		if err != nil {
			return nil, nil, fmt.Errorf("shortlist: create %s store: %w", cfg.driver, err)
		}
		if err := s.WaitForReady(ctx, defaultReadinessTimeout); err != nil {
			s.Close()
			return nil, nil, fmt.Errorf("shortlist: database not ready: %w", err)
		}
		return redisPool{RedisRepo: pool.NewRedisRepo(s, cfg.keyPrefix, cfg.dimensions), store: s}, s.Close, nil
	case driverBolt:
		r, err := pool.OpenBolt(cfg.path, cfg.dimensions)
		if err != nil {
			return nil, nil, fmt.Errorf("shortlist: %w", err)
		}
		return r, func() { _ = r.Close() }, nil
	case driverSQLite:
		r, err := pool.OpenSQLite(ctx, cfg.path, cfg.dimensions)
		if err != nil {
			return nil, nil, fmt.Errorf("shortlist: %w", err)
		}
		return r, func() { _ = r.Close() }, nil
	case "":
		return nil, nil, errors.New("shortlist: store required (use WithValkey, WithRedis, WithBolt or WithSQLite)")
	default:
		return nil, nil, fmt.Errorf("shortlist: unknown driver %q", cfg.driver)
	}
}

// redisPool adds the connection ping to the hash-backed repository.
type redisPool struct {
	*pool.RedisRepo
	store *dbRedis.Store
}

func (p redisPool) Ping(ctx context.Context) error {
	return p.store.Ping(ctx) //nolint:wrapcheck // thin delegation
}

func wireClient(store poolStore, closeFn func(), cfg *clientConfig, obs *observer) *Client {
	logger := zap.NewNop()
	emb := &embedderAdapter{inner: cfg.embedder}

	var gen generatorAdapter
	var ingestGen ingestuc.Generator
	if cfg.generator != nil {
		gen = generatorAdapter{inner: cfg.generator}
		ingestGen = gen
	}

	ingestSvc := ingestuc.New(store, extract.New(), emb, ingestGen, ingestuc.Options{
		Workers: cfg.workers,
		Policy:  cfg.policy,
		Dim:     cfg.dimensions,
	}, logger)
	if cfg.fetcher {
		ingestSvc = ingestSvc.WithFetcher(fetch.New(0, 0))
	}

	querySvc := queryuc.New(
		store, emb,
		rank.New(metrics.RankExcludedTotal),
		prompt.NewAssembler(cfg.preamble),
		gen,
		prompt.Budget{MaxDocuments: cfg.maxDocuments, MaxChars: cfg.maxChars},
		cfg.dimensions, logger,
	)

	return &Client{
		ingestSvc: ingestSvc,
		querySvc:  querySvc,
		healthSvc: healthuc.New(store, nil),
		pinger:    store,
		closeFn:   closeFn,
		obs:       obs,
	}
}

// Close releases all resources.
func (c *Client) Close() {
	if c.closeFn != nil {
		c.closeFn()
	}
}

// Ping checks store connectivity.
func (c *Client) Ping(ctx context.Context) (err error) {
	start := time.Now()
	defer func() { c.obs.observe("ping", "", start, err) }()

	if err = c.pinger.Ping(ctx); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// Ingest scores documents against jobDescription and replaces the pool with the
// ones that succeed. Per-document failures are reported, not returned, unless
// none succeeded: then the pool is kept and the report comes with an error.
func (c *Client) Ingest(
	ctx context.Context, poolID, jobDescription string, docs []Document,
) (report IngestReport, err error) {
	start := time.Now()
	defer func() { c.obs.observe("ingest", poolID, start, err) }()

	req := ingestuc.Request{PoolID: poolID, JobDescription: jobDescription}
	for _, d := range docs {
		req.Documents = append(req.Documents, ingestuc.Document{Name: d.Name, Body: d.Body, URL: d.URL})
	}

	r, err := c.ingestSvc.Ingest(ctx, req)
	if err != nil {
		return reportFromUseCase(r), fmt.Errorf("ingest: %w", err)
	}
	return reportFromUseCase(r), nil
}

// Query re-ranks the pool against question and asks the generator about the top count documents.
func (c *Client) Query(ctx context.Context, poolID, question string, count int) (res QueryResult, err error) {
	start := time.Now()
	defer func() { c.obs.observe("query", poolID, start, err) }()

	r, err := c.querySvc.Query(ctx, queryuc.Request{PoolID: poolID, Text: question, Count: count})
	if err != nil {
		return QueryResult{}, fmt.Errorf("query: %w", err)
	}
	return resultFromUseCase(r), nil
}

// Clear removes every record of the pool.
func (c *Client) Clear(ctx context.Context, poolID string) (err error) {
	start := time.Now()
	defer func() { c.obs.observe("clear", poolID, start, err) }()

	if err = c.ingestSvc.Clear(ctx, poolID); err != nil {
		return fmt.Errorf("clear: %w", err)
	}
	return nil
}

// embedderAdapter wraps public Embedder to satisfy internal domain.Embedder.
type embedderAdapter struct {
	inner Embedder
}

func (a *embedderAdapter) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	r, err := a.inner.Embed(ctx, text)
	if err != nil {
		return domain.EmbeddingResult{}, fmt.Errorf("embed: %w: %w", domain.ErrEmbeddingFailure, err)
	}
	return domain.EmbeddingResult{
		Embedding:    r.Embedding,
		PromptTokens: r.PromptTokens,
		TotalTokens:  r.TotalTokens,
	}, nil
}

// generatorAdapter tags caller errors with ErrGenerationFailure. A zero value
// (no generator configured) fails every call.
type generatorAdapter struct {
	inner Generator
}

func (a generatorAdapter) Generate(ctx context.Context, p string) (string, error) {
	if a.inner == nil {
		return "", fmt.Errorf("shortlist: generator not configured (use WithGenerator): %w", domain.ErrGenerationFailure)
	}
	out, err := a.inner.Generate(ctx, p)
	if err != nil {
		return "", fmt.Errorf("generate: %w: %w", domain.ErrGenerationFailure, err)
	}
	return out, nil
}
