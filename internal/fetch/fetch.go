// Package fetch downloads documents addressed by URL.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/kailas-cloud/shortlist/internal/domain"
)

const (
	defaultTimeout  = 30 * time.Second
	defaultMaxBytes = 20 << 20
)

// Fetcher performs bounded HTTP GETs.
type Fetcher struct {
	client   *http.Client
	maxBytes int64
}

// New creates a Fetcher. Non-positive arguments fall back to defaults.
func New(timeout time.Duration, maxBytes int64) *Fetcher {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if maxBytes <= 0 {
		maxBytes = defaultMaxBytes
	}
	return &Fetcher{
		client:   &http.Client{Timeout: timeout},
		maxBytes: maxBytes,
	}
}

// Fetch downloads url and returns its body. Bodies above the size limit are rejected.
func (f *Fetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("new request: %w: %w", domain.ErrExtractionFailure, err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("download %s: %w", url, ctx.Err())
		}
		// Client timeouts match context.DeadlineExceeded; keep them out of the chain.
		return nil, fmt.Errorf("download %s: %w: %v", url, domain.ErrExtractionFailure, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download %s: HTTP %d: %w", url, resp.StatusCode, domain.ErrExtractionFailure)
	}
	if resp.ContentLength > f.maxBytes {
		return nil, fmt.Errorf("download %s: %d bytes exceeds limit %d: %w",
			url, resp.ContentLength, f.maxBytes, domain.ErrExtractionFailure)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("read %s: %w", url, ctx.Err())
		}
		return nil, fmt.Errorf("read %s: %w: %v", url, domain.ErrExtractionFailure, err)
	}
	if int64(len(body)) > f.maxBytes {
		return nil, fmt.Errorf("download %s: body exceeds limit %d: %w", url, f.maxBytes, domain.ErrExtractionFailure)
	}
	return body, nil
}
