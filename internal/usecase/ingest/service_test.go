package ingest

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/shortlist/internal/domain"
	"github.com/kailas-cloud/shortlist/internal/domain/record"
	"github.com/kailas-cloud/shortlist/internal/domain/vector"
	"github.com/kailas-cloud/shortlist/internal/fetch"
)

const jd = "Senior Go engineer"

func docs(bodies ...string) []Document {
	out := make([]Document, len(bodies))
	for i, b := range bodies {
		out[i] = Document{Name: b + ".pdf", Body: []byte(b)}
	}
	return out
}

func newDirect(pool PoolStore, emb Embedder) *Service {
	return New(pool, textExtractor{}, emb, nil, Options{Policy: PolicyDirect, Dim: 2}, zap.NewNop())
}

func TestIngest_SkipsFailedExtraction(t *testing.T) {
	pool := newFakePool()
	s := newDirect(pool, &mapEmbedder{})

	rep, err := s.Ingest(context.Background(), Request{
		PoolID:         "backend",
		JobDescription: jd,
		Documents:      docs("a", "b", "BAD-c", "d", "e"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rep.Succeeded != 4 || rep.Failed != 1 {
		t.Fatalf("succeeded=%d failed=%d, want 4/1", rep.Succeeded, rep.Failed)
	}
	if got := len(pool.replaced["backend"]); got != 4 {
		t.Fatalf("pool holds %d records, want 4", got)
	}
	if rep.Outcomes[2].OK || rep.Outcomes[2].Error == "" {
		t.Errorf("outcome for failed document: %+v", rep.Outcomes[2])
	}
	if rep.RunID == "" {
		t.Error("expected run id")
	}
}

func TestIngest_OrdinalsFollowInputOrder(t *testing.T) {
	pool := newFakePool()
	s := New(pool, textExtractor{}, &mapEmbedder{}, nil, Options{Policy: PolicyDirect, Workers: 8}, zap.NewNop())

	_, err := s.Ingest(context.Background(), Request{
		PoolID: "p", JobDescription: jd,
		Documents: docs("a", "BAD", "b", "c", "BAD", "d"),
	})
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"a.pdf", "b.pdf", "c.pdf", "d.pdf"}
	got := pool.replaced["p"]
	if len(got) != len(want) {
		t.Fatalf("got %d records", len(got))
	}
	for i, r := range got {
		if r.Ordinal() != i || r.Name() != want[i] {
			t.Errorf("record %d = (%d, %s), want (%d, %s)", i, r.Ordinal(), r.Name(), i, want[i])
		}
	}
}

func TestIngest_ScoresAgainstReference(t *testing.T) {
	pool := newFakePool()
	emb := &mapEmbedder{vectors: map[string]vector.Vector{
		jd:      {1, 0},
		"match": {1, 0},
		"half":  {0.5, 0.8660254},
		"none":  {0, 1},
	}}
	s := newDirect(pool, emb)

	if _, err := s.Ingest(context.Background(), Request{
		PoolID: "p", JobDescription: jd, Documents: docs("match", "half", "none"),
	}); err != nil {
		t.Fatal(err)
	}

	want := []float64{100, 50, 0}
	for i, r := range pool.replaced["p"] {
		if math.Abs(r.Score()-want[i]) > 1e-4 {
			t.Errorf("%s score = %v, want %v", r.Name(), r.Score(), want[i])
		}
		if r.Text() != []string{"match", "half", "none"}[i] {
			t.Errorf("text not persisted: %q", r.Text())
		}
	}
}

func TestIngest_Idempotent(t *testing.T) {
	pool := newFakePool()
	s := newDirect(pool, &mapEmbedder{vectors: map[string]vector.Vector{jd: {1, 1}, "a": {1, 0}}})
	req := Request{PoolID: "p", JobDescription: jd, Documents: docs("a", "b")}

	if _, err := s.Ingest(context.Background(), req); err != nil {
		t.Fatal(err)
	}
	first := pool.replaced["p"]
	if _, err := s.Ingest(context.Background(), req); err != nil {
		t.Fatal(err)
	}
	second := pool.replaced["p"]

	if len(first) != len(second) {
		t.Fatalf("pool size changed: %d -> %d", len(first), len(second))
	}
	for i := range first {
		if first[i].Name() != second[i].Name() || first[i].Score() != second[i].Score() {
			t.Errorf("record %d differs between runs", i)
		}
	}
}

func TestIngest_KeyPointsPolicy(t *testing.T) {
	pool := newFakePool()
	emb := &mapEmbedder{}
	gen := &fakeGenerator{out: "- Go\n- Kubernetes"}
	s := New(pool, textExtractor{}, emb, gen, Options{}, zap.NewNop())

	rep, err := s.Ingest(context.Background(), Request{PoolID: "p", JobDescription: jd, Documents: docs("a")})
	if err != nil {
		t.Fatal(err)
	}
	if rep.Policy != PolicyKeyPoints {
		t.Errorf("policy = %q", rep.Policy)
	}
	if gen.calls != 1 {
		t.Errorf("generator calls = %d", gen.calls)
	}
	if !emb.sawText("- Go\n- Kubernetes") || emb.sawText(jd) {
		t.Error("reference must be the key point summary, not the raw job description")
	}
}

func TestIngest_KeyPointsFallsBackToDirect(t *testing.T) {
	for name, gen := range map[string]*fakeGenerator{
		"generation failure": {err: domain.ErrGenerationFailure},
		"empty summary":      {out: "  \n"},
	} {
		t.Run(name, func(t *testing.T) {
			pool := newFakePool()
			emb := &mapEmbedder{}
			s := New(pool, textExtractor{}, emb, gen, Options{Policy: PolicyKeyPoints}, zap.NewNop())

			rep, err := s.Ingest(context.Background(), Request{PoolID: "p", JobDescription: jd, Documents: docs("a")})
			if err != nil {
				t.Fatalf("fallback must not abort ingestion: %v", err)
			}
			if rep.Policy != PolicyDirect {
				t.Errorf("policy = %q, want direct", rep.Policy)
			}
			if !emb.sawText(jd) {
				t.Error("expected raw job description to be embedded")
			}
			if len(pool.replaced["p"]) != 1 {
				t.Error("pool must still be written")
			}
		})
	}
}

func TestIngest_DirectPolicySkipsGenerator(t *testing.T) {
	gen := &fakeGenerator{out: "summary"}
	s := New(newFakePool(), textExtractor{}, &mapEmbedder{}, gen, Options{Policy: PolicyDirect}, zap.NewNop())
	if _, err := s.Ingest(context.Background(), Request{PoolID: "p", JobDescription: jd, Documents: docs("a")}); err != nil {
		t.Fatal(err)
	}
	if gen.calls != 0 {
		t.Errorf("generator called %d times under direct policy", gen.calls)
	}
}

func TestIngest_ReferenceEmbeddingFailureIsFatal(t *testing.T) {
	pool := newFakePool()
	emb := &mapEmbedder{fail: map[string]error{jd: errors.New("provider down")}}
	s := newDirect(pool, emb)

	_, err := s.Ingest(context.Background(), Request{PoolID: "p", JobDescription: jd, Documents: docs("a")})
	if !errors.Is(err, domain.ErrEmbeddingFailure) {
		t.Fatalf("expected ErrEmbeddingFailure, got %v", err)
	}
	if pool.replaces != 0 {
		t.Error("pool must not be written")
	}
}

func TestIngest_DocumentEmbeddingFailureIsSkipped(t *testing.T) {
	pool := newFakePool()
	emb := &mapEmbedder{
		fail:    map[string]error{"b": errors.New("timeout")},
		vectors: map[string]vector.Vector{"c": {1, 0, 0}, "d": {0, 0}},
	}
	s := newDirect(pool, emb)

	rep, err := s.Ingest(context.Background(), Request{PoolID: "p", JobDescription: jd, Documents: docs("a", "b", "c", "d")})
	if err != nil {
		t.Fatal(err)
	}
	if rep.Succeeded != 1 || rep.Failed != 3 {
		t.Fatalf("succeeded=%d failed=%d, want 1/3", rep.Succeeded, rep.Failed)
	}
}

func TestIngest_StoreFailureIsFatal(t *testing.T) {
	pool := newFakePool()
	pool.replaceErr = domain.ErrStoreFailure
	s := newDirect(pool, &mapEmbedder{})

	_, err := s.Ingest(context.Background(), Request{PoolID: "p", JobDescription: jd, Documents: docs("a")})
	if !errors.Is(err, domain.ErrStoreFailure) {
		t.Fatalf("expected ErrStoreFailure, got %v", err)
	}
}

func TestIngest_CancelledWritesNothing(t *testing.T) {
	pool := newFakePool()
	s := newDirect(pool, &mapEmbedder{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Ingest(ctx, Request{PoolID: "p", JobDescription: jd, Documents: docs("a", "b")})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if pool.replaces != 0 {
		t.Error("cancelled run must not write")
	}
}

func TestIngest_InvalidRequests(t *testing.T) {
	s := newDirect(newFakePool(), &mapEmbedder{})
	for name, req := range map[string]Request{
		"bad pool":     {PoolID: "a b", JobDescription: jd, Documents: docs("a")},
		"no jd":        {PoolID: "p", JobDescription: " ", Documents: docs("a")},
		"no documents": {PoolID: "p", JobDescription: jd},
	} {
		if _, err := s.Ingest(context.Background(), req); !errors.Is(err, domain.ErrInvalidRequest) {
			t.Errorf("%s: expected ErrInvalidRequest, got %v", name, err)
		}
	}
}

func TestIngest_FetchesURLDocuments(t *testing.T) {
	pool := newFakePool()
	s := newDirect(pool, &mapEmbedder{}).WithFetcher(fakeFetcher{bodies: map[string][]byte{
		"https://cdn.example.com/alice.pdf": []byte("alice resume"),
	}})

	rep, err := s.Ingest(context.Background(), Request{
		PoolID: "p", JobDescription: jd,
		Documents: []Document{
			{URL: "https://cdn.example.com/alice.pdf"},
			{URL: "https://cdn.example.com/missing.pdf"},
			{Name: "empty"},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	if rep.Succeeded != 1 || rep.Failed != 2 {
		t.Fatalf("succeeded=%d failed=%d", rep.Succeeded, rep.Failed)
	}
	if got := pool.replaced["p"][0].Name(); got != "https://cdn.example.com/alice.pdf" {
		t.Errorf("name = %q, want the URL", got)
	}
}

func TestIngest_ReportsProgress(t *testing.T) {
	var seen int
	s := newDirect(newFakePool(), &mapEmbedder{})
	_, err := s.Ingest(context.Background(), Request{
		PoolID: "p", JobDescription: jd, Documents: docs("a", "BAD", "c"),
		Progress: func(DocumentOutcome) { seen++ },
	})
	if err != nil {
		t.Fatal(err)
	}
	if seen != 3 {
		t.Errorf("progress called %d times, want 3", seen)
	}
}

func TestIngest_ReferenceEmbedderOverride(t *testing.T) {
	docEmb := &mapEmbedder{}
	refEmb := &mapEmbedder{vectors: map[string]vector.Vector{jd: {1, 0}}}
	s := newDirect(newFakePool(), docEmb).WithReferenceEmbedder(refEmb)

	if _, err := s.Ingest(context.Background(), Request{PoolID: "p", JobDescription: jd, Documents: docs("a")}); err != nil {
		t.Fatal(err)
	}
	if docEmb.sawText(jd) || !refEmb.sawText(jd) {
		t.Error("reference text must go through the reference embedder")
	}
	if !docEmb.sawText("a") {
		t.Error("documents must go through the document embedder")
	}
}

func TestClear(t *testing.T) {
	pool := newFakePool()
	s := newDirect(pool, &mapEmbedder{})
	if err := s.Clear(context.Background(), "p"); err != nil {
		t.Fatal(err)
	}
	if pool.deletes != 1 {
		t.Errorf("deletes = %d", pool.deletes)
	}
	if err := s.Clear(context.Background(), "bad id"); !errors.Is(err, domain.ErrInvalidRequest) {
		t.Errorf("expected ErrInvalidRequest, got %v", err)
	}
}

func TestLock_SerializesRuns(t *testing.T) {
	s := newDirect(newFakePool(), &mapEmbedder{})
	if err := s.acquire(context.Background()); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := s.Ingest(ctx, Request{PoolID: "p", JobDescription: jd, Documents: docs("a")})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected to wait for the lock, got %v", err)
	}

	s.release()
	if _, err := s.Ingest(context.Background(), Request{PoolID: "p", JobDescription: jd, Documents: docs("a")}); err != nil {
		t.Fatalf("lock should be free: %v", err)
	}
}

func TestIngest_CollaboratorDeadlineFailsOnlyThatDocument(t *testing.T) {
	const slow = "https://cdn.example.com/slow.pdf"
	pool := newFakePool()
	emb := &mapEmbedder{fail: map[string]error{"carol resume": context.DeadlineExceeded}}
	s := newDirect(pool, emb).WithFetcher(fakeFetcher{
		bodies: map[string][]byte{
			"https://cdn.example.com/alice.pdf": []byte("alice resume"),
			"https://cdn.example.com/bob.pdf":   []byte("bob resume"),
			"https://cdn.example.com/carol.pdf": []byte("carol resume"),
		},
		errs: map[string]error{
			slow: fmt.Errorf("%w: %w", domain.ErrExtractionFailure, context.DeadlineExceeded),
		},
	})

	rep, err := s.Ingest(context.Background(), Request{
		PoolID: "p", JobDescription: jd,
		Documents: []Document{
			{URL: "https://cdn.example.com/alice.pdf"},
			{URL: slow},
			{URL: "https://cdn.example.com/bob.pdf"},
			{URL: "https://cdn.example.com/carol.pdf"},
		},
	})
	if err != nil {
		t.Fatalf("a document timeout must not abort the run: %v", err)
	}
	if rep.Succeeded != 2 || rep.Failed != 2 {
		t.Fatalf("succeeded=%d failed=%d, want 2/2", rep.Succeeded, rep.Failed)
	}
	if rep.Outcomes[1].OK || rep.Outcomes[3].OK {
		t.Errorf("timed out documents reported as ok: %+v", rep.Outcomes)
	}
	if pool.replaces != 1 || len(pool.replaced["p"]) != 2 {
		t.Errorf("replaces=%d records=%d, want 1/2", pool.replaces, len(pool.replaced["p"]))
	}
}

func TestIngest_NothingScoredKeepsPool(t *testing.T) {
	seed := []record.Record{record.Reconstruct(0, "old.pdf", "old", 80, vector.Vector{0, 1})}

	for name, tc := range map[string]struct {
		emb  *mapEmbedder
		docs []Document
		want error
	}{
		"extraction": {&mapEmbedder{}, docs("BAD-a", "BAD-b"), domain.ErrExtractionFailure},
		"rate limited": {
			&mapEmbedder{fail: map[string]error{
				"a": fmt.Errorf("%w: %w", domain.ErrEmbeddingFailure, domain.ErrRateLimited),
				"b": fmt.Errorf("%w: %w", domain.ErrEmbeddingFailure, domain.ErrRateLimited),
			}},
			docs("a", "b"), domain.ErrRateLimited,
		},
	} {
		t.Run(name, func(t *testing.T) {
			pool := newFakePool()
			pool.replaced["p"] = seed
			s := newDirect(pool, tc.emb)

			rep, err := s.Ingest(context.Background(), Request{PoolID: "p", JobDescription: jd, Documents: tc.docs})
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
			if rep.Failed != 2 || len(rep.Outcomes) != 2 {
				t.Errorf("report should still describe the failures: %+v", rep)
			}
			if pool.replaces != 0 || len(pool.replaced["p"]) != 1 {
				t.Errorf("pool must be left as it was: replaces=%d", pool.replaces)
			}
		})
	}
}

func TestRescore_ReusesPoolDocuments(t *testing.T) {
	const alice = "https://cdn.example.com/alice.pdf"
	pool := newFakePool()
	pool.replaced["p"] = []record.Record{
		record.Reconstruct(1, "notes.txt", "bob notes", 10, vector.Vector{0, 1}),
		record.Reconstruct(0, alice, "alice v1", 10, vector.Vector{0, 1}),
	}
	emb := &mapEmbedder{}
	s := newDirect(pool, emb).WithFetcher(fakeFetcher{bodies: map[string][]byte{alice: []byte("alice v2")}})

	rep, err := s.Rescore(context.Background(), "p", "Staff Go engineer")
	if err != nil {
		t.Fatal(err)
	}
	if rep.Succeeded != 2 || pool.replaces != 1 {
		t.Fatalf("succeeded=%d replaces=%d", rep.Succeeded, pool.replaces)
	}
	if !emb.sawText("Staff Go engineer") || !emb.sawText("alice v2") || !emb.sawText("bob notes") {
		t.Error("expected the new job description, the refetched URL and the stored text to be embedded")
	}
	got := pool.replaced["p"]
	if got[0].Name() != alice || got[1].Name() != "notes.txt" {
		t.Errorf("order or names changed: %s, %s", got[0].Name(), got[1].Name())
	}
}

func TestRescore_WithoutFetcherUsesStoredText(t *testing.T) {
	const alice = "https://cdn.example.com/alice.pdf"
	pool := newFakePool()
	pool.replaced["p"] = []record.Record{record.Reconstruct(0, alice, "alice v1", 10, vector.Vector{0, 1})}
	emb := &mapEmbedder{}

	if _, err := newDirect(pool, emb).Rescore(context.Background(), "p", jd); err != nil {
		t.Fatal(err)
	}
	if !emb.sawText("alice v1") {
		t.Error("stored text should be rescored when URLs cannot be fetched")
	}
}

func TestRescore_InvalidRequests(t *testing.T) {
	s := newDirect(newFakePool(), &mapEmbedder{})
	for name, tc := range map[string]struct{ pool, jd string }{
		"empty pool": {"p", jd},
		"bad pool":   {"a b", jd},
		"no jd":      {"p", ""},
	} {
		if _, err := s.Rescore(context.Background(), tc.pool, tc.jd); !errors.Is(err, domain.ErrInvalidRequest) {
			t.Errorf("%s: expected ErrInvalidRequest, got %v", name, err)
		}
	}
}

func TestIngest_SlowDownloadFailsOnlyThatDocument(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/slow.pdf" {
			select {
			case <-r.Context().Done():
			case <-time.After(time.Second):
			}
			return
		}
		_, _ = w.Write([]byte("resume " + r.URL.Path))
	}))
	defer server.Close()

	pool := newFakePool()
	s := newDirect(pool, &mapEmbedder{}).WithFetcher(fetch.New(100*time.Millisecond, 0))

	rep, err := s.Ingest(context.Background(), Request{
		PoolID: "p", JobDescription: jd,
		Documents: []Document{
			{URL: server.URL + "/fast1.pdf"},
			{URL: server.URL + "/slow.pdf"},
			{URL: server.URL + "/fast2.pdf"},
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rep.Succeeded != 2 || rep.Failed != 1 || rep.Outcomes[1].OK {
		t.Fatalf("unexpected report: %+v", rep)
	}
	if pool.replaces != 1 {
		t.Errorf("replaces = %d, want 1", pool.replaces)
	}
}
