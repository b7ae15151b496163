package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	queryuc "github.com/kailas-cloud/shortlist/internal/usecase/query"
)

func TestExpandDocuments(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.pdf", "nested/b.pdf", "nested/c.txt"} {
		p := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(p), 0o750); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte("x"), 0o600); err != nil {
			t.Fatal(err)
		}
	}
	explicit := filepath.Join(dir, "a.pdf")

	got, err := expandDocuments([]string{explicit}, []string{filepath.Join(dir, "**", "*.pdf")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %v, want a.pdf and nested/b.pdf once each", got)
	}
	if got[0] != explicit || !strings.HasSuffix(got[1], filepath.Join("nested", "b.pdf")) {
		t.Errorf("unexpected order: %v", got)
	}
}

func TestJobDescription(t *testing.T) {
	if _, err := jobDescription(ingestFlags{}); err == nil {
		t.Error("expected error without --jd or --jd-text")
	}

	p := filepath.Join(t.TempDir(), "jd.txt")
	if err := os.WriteFile(p, []byte("Go engineer"), 0o600); err != nil {
		t.Fatal(err)
	}
	got, err := jobDescription(ingestFlags{jdFile: p})
	if err != nil || got != "Go engineer" {
		t.Errorf("got %q, %v", got, err)
	}
}

func TestPrintResult(t *testing.T) {
	var buf bytes.Buffer
	res := queryuc.Result{
		Status:     queryuc.StatusAnswered,
		Answer:     "doc2 is the strongest match",
		Candidates: []queryuc.Candidate{{Rank: 1, Name: "doc2", Fused: 45}, {Rank: 2, Name: "doc1", Fused: 8}},
		Omitted:    1,
	}
	if err := printResult(&buf, res, false); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{"1. doc2", "2. doc1", "1 left out", "strongest match"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}

	buf.Reset()
	_ = printResult(&buf, queryuc.Result{Status: queryuc.StatusEmptyPool}, false)
	if !strings.Contains(buf.String(), "empty_pool") {
		t.Errorf("unexpected output: %s", buf.String())
	}
}
