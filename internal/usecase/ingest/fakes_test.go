package ingest

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"

	"github.com/kailas-cloud/shortlist/internal/domain"
	"github.com/kailas-cloud/shortlist/internal/domain/record"
	"github.com/kailas-cloud/shortlist/internal/domain/vector"
)

// fakePool records the last Replace.
type fakePool struct {
	mu         sync.Mutex
	replaced   map[string][]record.Record
	replaceErr error
	replaces   int
	deletes    int
}

func newFakePool() *fakePool {
	return &fakePool{replaced: make(map[string][]record.Record)}
}

func (p *fakePool) Replace(_ context.Context, poolID string, records []record.Record) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.replaces++
	if p.replaceErr != nil {
		return p.replaceErr
	}
	p.replaced[poolID] = records
	return nil
}

func (p *fakePool) SelectAll(_ context.Context, poolID string) ([]record.Record, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.replaced[poolID]), nil
}

func (p *fakePool) DeleteAll(_ context.Context, poolID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.deletes++
	delete(p.replaced, poolID)
	return nil
}

// textExtractor passes bytes through; bodies starting with "BAD" fail.
type textExtractor struct{}

func (textExtractor) Extract(_ context.Context, raw []byte) (string, error) {
	if strings.HasPrefix(string(raw), "BAD") {
		return "", domain.ErrExtractionFailure
	}
	return string(raw), nil
}

// mapEmbedder returns a fixed vector per text, defaulting to {0, 1}.
type mapEmbedder struct {
	mu      sync.Mutex
	vectors map[string]vector.Vector
	fail    map[string]error
	texts   []string
}

func (e *mapEmbedder) Embed(_ context.Context, text string) (domain.EmbeddingResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.texts = append(e.texts, text)
	if err, ok := e.fail[text]; ok {
		return domain.EmbeddingResult{}, err
	}
	if v, ok := e.vectors[text]; ok {
		return domain.EmbeddingResult{Embedding: v}, nil
	}
	return domain.EmbeddingResult{Embedding: vector.Vector{0, 1}}, nil
}

func (e *mapEmbedder) sawText(text string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, t := range e.texts {
		if t == text {
			return true
		}
	}
	return false
}

type fakeGenerator struct {
	out   string
	err   error
	calls int
}

func (g *fakeGenerator) Generate(_ context.Context, _ string) (string, error) {
	g.calls++
	return g.out, g.err
}

type fakeFetcher struct {
	bodies map[string][]byte
	errs   map[string]error
}

func (f fakeFetcher) Fetch(_ context.Context, url string) ([]byte, error) {
	if err, ok := f.errs[url]; ok {
		return nil, err
	}
	if b, ok := f.bodies[url]; ok {
		return b, nil
	}
	return nil, errors.New("404")
}
