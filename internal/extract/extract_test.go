package extract

import (
	"context"
	"errors"
	"testing"

	"github.com/kailas-cloud/shortlist/internal/domain"
)

func TestExtract_PlainText(t *testing.T) {
	got, err := New().Extract(context.Background(), []byte("  Jane Doe\nGo, Kubernetes  \n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "Jane Doe\nGo, Kubernetes" {
		t.Errorf("got %q", got)
	}
}

func TestExtract_Failures(t *testing.T) {
	tests := []struct {
		name string
		raw  []byte
	}{
		{"empty", nil},
		{"whitespace only", []byte(" \n\t ")},
		{"binary", []byte{0xff, 0xfe, 0x00, 0x81}},
		{"truncated pdf", []byte("%PDF-1.4\n%garbage")},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := New().Extract(context.Background(), tc.raw)
			if !errors.Is(err, domain.ErrExtractionFailure) {
				t.Fatalf("expected ErrExtractionFailure, got %v", err)
			}
		})
	}
}

func TestExtract_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := New().Extract(ctx, []byte("text")); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
