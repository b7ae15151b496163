package main

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/shortlist/internal/config"
	"github.com/kailas-cloud/shortlist/internal/db"
	dbRedis "github.com/kailas-cloud/shortlist/internal/db/redis"
	"github.com/kailas-cloud/shortlist/internal/domain"
	"github.com/kailas-cloud/shortlist/internal/domain/record"
	"github.com/kailas-cloud/shortlist/internal/extract"
	"github.com/kailas-cloud/shortlist/internal/fetch"
	"github.com/kailas-cloud/shortlist/internal/metrics"
	"github.com/kailas-cloud/shortlist/internal/repository/embcache"
	"github.com/kailas-cloud/shortlist/internal/repository/pool"
	geminiGen "github.com/kailas-cloud/shortlist/internal/transport/gemini"
	openaiTransport "github.com/kailas-cloud/shortlist/internal/transport/openai"
	embeddinguc "github.com/kailas-cloud/shortlist/internal/usecase/embedding"
	generationuc "github.com/kailas-cloud/shortlist/internal/usecase/generation"
	healthuc "github.com/kailas-cloud/shortlist/internal/usecase/health"
	ingestuc "github.com/kailas-cloud/shortlist/internal/usecase/ingest"
	"github.com/kailas-cloud/shortlist/internal/usecase/prompt"
	queryuc "github.com/kailas-cloud/shortlist/internal/usecase/query"
	"github.com/kailas-cloud/shortlist/internal/usecase/rank"
)

// poolStore is what both pipelines need from a pool backend.
type poolStore interface {
	SelectAll(ctx context.Context, poolID string) ([]record.Record, error)
	Replace(ctx context.Context, poolID string, records []record.Record) error
	DeleteAll(ctx context.Context, poolID string) error
}

// app is the composition root shared by serve and the one-shot commands.
type app struct {
	ingest *ingestuc.Service
	query  *queryuc.Service
	health *healthuc.Service
	close  func()
}

func buildApp(ctx context.Context, cfg config.Config, logger *zap.Logger) (*app, error) {
	metrics.Register()

	dim := cfg.Embedding.Dimensions

	var (
		repo    poolStore
		pinger  healthuc.DBPinger
		kv      db.KVStore
		closeFn func()
	)
	switch cfg.Database.Driver {
	case config.DriverValkey, config.DriverRedis:
		store, err := dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.Database.Addrs,
			Password: cfg.Database.Password,
		})
		if err != nil {
			return nil, fmt.Errorf("create database store: %w", err)
		}
		timeout := time.Duration(cfg.Database.ReadinessTimeout) * time.Second
		if err := store.WaitForReady(ctx, timeout); err != nil {
			store.Close()
			return nil, fmt.Errorf("database not ready: %w", err)
		}
		repo = pool.NewRedisRepo(store, cfg.Storage.KeyPrefix, dim)
		pinger, kv, closeFn = store, store, store.Close
	case config.DriverBolt:
		bolt, err := pool.OpenBolt(cfg.Database.Path, dim)
		if err != nil {
			return nil, fmt.Errorf("open bolt store: %w", err)
		}
		repo, pinger = bolt, bolt
		closeFn = func() { _ = bolt.Close() }
	case config.DriverSQLite:
		sqlite, err := pool.OpenSQLite(ctx, cfg.Database.Path, dim)
		if err != nil {
			return nil, fmt.Errorf("open sqlite store: %w", err)
		}
		repo, pinger = sqlite, sqlite
		closeFn = func() { _ = sqlite.Close() }
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Database.Driver)
	}
	logger.Info("Connected to pool store", zap.String("driver", cfg.Database.Driver))

	base := buildBaseEmbedder(cfg, kv, logger)
	docEmbedder := withInstruction(base, cfg.Embedding.DocumentInstruction)
	queryEmbedder := withInstruction(base, cfg.Embedding.QueryInstruction)

	gen, err := buildGenerator(ctx, cfg, logger)
	if err != nil {
		closeFn()
		return nil, err
	}

	ingest := ingestuc.New(repo, extract.New(), docEmbedder, gen, ingestuc.Options{
		Workers: cfg.Ingestion.Workers,
		Policy:  cfg.Ingestion.Policy,
		Dim:     dim,
	}, logger).
		WithFetcher(fetch.New(
			time.Duration(cfg.Ingestion.FetchTimeoutSec)*time.Second,
			cfg.Ingestion.MaxDocumentBytes,
		)).
		WithReferenceEmbedder(queryEmbedder)

	query := queryuc.New(
		repo, queryEmbedder,
		rank.New(metrics.RankExcludedTotal),
		prompt.NewAssembler(cfg.Prompt.Preamble),
		gen,
		prompt.Budget{MaxDocuments: cfg.Prompt.MaxDocuments, MaxChars: cfg.Prompt.MaxChars},
		dim, logger,
	)

	return &app{
		ingest: ingest,
		query:  query,
		health: healthuc.New(pinger, newEmbeddingHealthChecker(base)),
		close:  closeFn,
	}, nil
}

// buildBaseEmbedder assembles the decorator chain: OpenAI -> Cached -> Instrumented.
// Instructions are applied on top per use so the cache key includes them.
func buildBaseEmbedder(cfg config.Config, kv db.KVStore, logger *zap.Logger) domain.Embedder {
	ec := cfg.Embedding
	var embedder domain.Embedder = openaiTransport.NewEmbedder(&openaiTransport.Config{
		APIKey:     ec.APIKey,
		BaseURL:    ec.BaseURL,
		Model:      ec.Model,
		Dimensions: ec.Dimensions,
		Provider:   ec.Provider,
		Logger:     logger,
	})

	if kv != nil && ec.Cache {
		embedder = embcache.New(embedder, kv, embcache.Options{
			KeyPrefix: cfg.Storage.KeyPrefix,
			Model:     ec.Model,
			Dim:       ec.Dimensions,
		}, metrics.EmbeddingCacheTotal, logger)
	}

	return embeddinguc.NewInstrumentedEmbedder(embedder, ec.Provider, ec.Model, logger)
}

func withInstruction(e domain.Embedder, instruction string) domain.Embedder {
	if instruction == "" {
		return e
	}
	return domain.NewInstructionEmbedder(e, instruction)
}

func buildGenerator(ctx context.Context, cfg config.Config, logger *zap.Logger) (*generationuc.InstrumentedGenerator, error) {
	gc := cfg.Generation

	var inner generationuc.Generator
	switch gc.Provider {
	case config.ProviderGemini:
		g, err := geminiGen.NewGenerator(ctx, geminiGen.Config{APIKey: gc.APIKey, BaseURL: gc.BaseURL, Model: gc.Model})
		if err != nil {
			return nil, fmt.Errorf("create gemini generator: %w", err)
		}
		inner = g
	case config.ProviderOpenAI:
		inner = openaiTransport.NewGenerator(&openaiTransport.Config{
			APIKey:  gc.APIKey,
			BaseURL: gc.BaseURL,
			Model:   gc.Model,
			Logger:  logger,
		})
	default:
		return nil, fmt.Errorf("unknown generation provider %q", gc.Provider)
	}

	return generationuc.NewInstrumentedGenerator(inner, gc.Provider, gc.Model, gc.MaxRetries, logger).
		WithTimeout(time.Duration(gc.TimeoutSec) * time.Second), nil
}

// embeddingHealthChecker wraps domain.Embedder to implement health.EmbeddingChecker.
type embeddingHealthChecker struct {
	embedder domain.Embedder
}

func newEmbeddingHealthChecker(embedder domain.Embedder) *embeddingHealthChecker {
	return &embeddingHealthChecker{embedder: embedder}
}

func (h *embeddingHealthChecker) HealthCheck(ctx context.Context) error {
	if hc, ok := h.embedder.(domain.HealthChecker); ok {
		if err := hc.HealthCheck(ctx); err != nil {
			return fmt.Errorf("embedding health check: %w", err)
		}
	}
	return nil
}
