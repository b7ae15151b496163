package pool

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/kailas-cloud/shortlist/internal/db"
	"github.com/kailas-cloud/shortlist/internal/domain/record"
	"github.com/kailas-cloud/shortlist/internal/domain/vector"
)

const testDim = 3

// memStore is an in-memory hashStore with RENAME semantics.
type memStore struct {
	mu     sync.Mutex
	hashes map[string]map[string]string

	hsetErr   error
	renameErr error
	hsetCalls int
	delCalls  []string
}

func newMemStore() *memStore {
	return &memStore{hashes: make(map[string]map[string]string)}
}

func (m *memStore) HSet(_ context.Context, key string, fields map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hsetCalls++
	if m.hsetErr != nil {
		return m.hsetErr
	}
	h, ok := m.hashes[key]
	if !ok {
		h = make(map[string]string)
		m.hashes[key] = h
	}
	for k, v := range fields {
		h[k] = v
	}
	return nil
}

func (m *memStore) HGetAll(_ context.Context, key string) (map[string]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]string, len(m.hashes[key]))
	for k, v := range m.hashes[key] {
		out[k] = v
	}
	return out, nil
}

func (m *memStore) Del(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delCalls = append(m.delCalls, key)
	delete(m.hashes, key)
	return nil
}

func (m *memStore) Rename(_ context.Context, src, dst string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.renameErr != nil {
		return m.renameErr
	}
	h, ok := m.hashes[src]
	if !ok {
		return db.ErrKeyNotFound
	}
	m.hashes[dst] = h
	delete(m.hashes, src)
	return nil
}

func (m *memStore) keysWithPrefix(prefix string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var keys []string
	for k := range m.hashes {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	return keys
}

func mustRecord(t *testing.T, ordinal int, name string, persisted float64, emb vector.Vector) record.Record {
	t.Helper()
	r, err := record.New(ordinal, name, name+" text", persisted, emb)
	if err != nil {
		t.Fatalf("record.New: %v", err)
	}
	return r
}

var errBoom = errors.New("boom")
