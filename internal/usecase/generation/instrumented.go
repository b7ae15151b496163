// Package generation holds provider-agnostic generator decorators.
package generation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/shortlist/internal/domain"
	"github.com/kailas-cloud/shortlist/internal/metrics"
)

// Generator produces text for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// InstrumentedGenerator adds logging, metrics and optional retries.
// Only domain.Retryable errors are retried, with exponential backoff.
type InstrumentedGenerator struct {
	inner      Generator
	provider   string
	model      string
	maxRetries int
	backoff    time.Duration
	timeout    time.Duration
	logger     *zap.Logger
}

// NewInstrumentedGenerator wraps a generator. maxRetries 0 disables retries.
func NewInstrumentedGenerator(
	inner Generator, provider, model string, maxRetries int, logger *zap.Logger,
) *InstrumentedGenerator {
	return &InstrumentedGenerator{
		inner: inner, provider: provider, model: model,
		maxRetries: max(maxRetries, 0),
		backoff:    500 * time.Millisecond,
		logger:     logger,
	}
}

// WithBackoff sets the first retry delay.
func (g *InstrumentedGenerator) WithBackoff(d time.Duration) *InstrumentedGenerator {
	g.backoff = d
	return g
}

// WithTimeout bounds each attempt. Zero leaves attempts bounded only by ctx.
func (g *InstrumentedGenerator) WithTimeout(d time.Duration) *InstrumentedGenerator {
	g.timeout = d
	return g
}

// Generate calls the inner generator, retrying transient failures.
// Every returned error wraps domain.ErrGenerationFailure.
func (g *InstrumentedGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	delay := g.backoff
	for attempt := 0; ; attempt++ {
		out, err := g.once(ctx, prompt)
		if err == nil {
			return out, nil
		}
		if attempt >= g.maxRetries || !domain.Retryable(err) {
			if !errors.Is(err, domain.ErrGenerationFailure) {
				err = fmt.Errorf("%w: %w", domain.ErrGenerationFailure, err)
			}
			return "", fmt.Errorf("generate: %w", err)
		}

		metrics.GenerationRetriesTotal.WithLabelValues(g.provider).Inc()
		g.logger.Warn("Retrying generation",
			zap.String("provider", g.provider),
			zap.Int("attempt", attempt+1),
			zap.Duration("delay", delay),
			zap.Error(err),
		)
		select {
		case <-ctx.Done():
			return "", fmt.Errorf("generate: %w: %w", domain.ErrGenerationFailure, ctx.Err())
		case <-time.After(delay):
		}
		delay *= 2
	}
}

func (g *InstrumentedGenerator) once(ctx context.Context, prompt string) (string, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	start := time.Now()
	out, err := g.inner.Generate(ctx, prompt)
	duration := time.Since(start)

	metrics.GenerationRequestDuration.WithLabelValues(g.provider, g.model).Observe(duration.Seconds())
	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.GenerationRequestsTotal.WithLabelValues(g.provider, g.model, status).Inc()

	if err != nil {
		g.logger.Error("Generation request failed",
			zap.String("provider", g.provider),
			zap.String("model", g.model),
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		return "", err
	}

	g.logger.Debug("Generation request completed",
		zap.String("provider", g.provider),
		zap.String("model", g.model),
		zap.Duration("duration", duration),
		zap.Int("prompt_len", len(prompt)),
		zap.Int("output_len", len(out)),
	)
	return out, nil
}
