package record

import (
	"errors"
	"strings"
	"testing"

	"github.com/kailas-cloud/shortlist/internal/domain"
	"github.com/kailas-cloud/shortlist/internal/domain/vector"
)

func TestNew_Valid(t *testing.T) {
	emb := vector.Vector{0.1, 0.2, 0.3}
	r, err := New(2, "cv.pdf", "Go developer", 73.5, emb)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Ordinal() != 2 || r.Name() != "cv.pdf" || r.Text() != "Go developer" || r.Score() != 73.5 {
		t.Errorf("unexpected record: %+v", r)
	}

	emb[0] = 99
	if r.Embedding()[0] == 99 {
		t.Error("record must not share the caller's embedding slice")
	}

	got := r.Embedding()
	got[1] = 42
	if r.Embedding()[1] == 42 {
		t.Error("Embedding() must return a copy")
	}
}

func TestNew_Invalid(t *testing.T) {
	emb := vector.Vector{1}
	tests := []struct {
		name    string
		ordinal int
		text    string
		score   float64
		emb     vector.Vector
	}{
		{"negative ordinal", -1, "t", 10, emb},
		{"empty text", 0, "", 10, emb},
		{"score below range", 0, "t", -0.5, emb},
		{"score above range", 0, "t", 100.5, emb},
		{"no embedding", 0, "t", 10, nil},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := New(tc.ordinal, "n", tc.text, tc.score, tc.emb); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestValidate_Dimension(t *testing.T) {
	r := Reconstruct(0, "a", "text", 50, vector.Vector{1, 2, 3})
	if err := r.Validate(3); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	err := r.Validate(4)
	if !errors.Is(err, vector.ErrDimensionMismatch) {
		t.Fatalf("expected ErrDimensionMismatch, got %v", err)
	}
}

func TestValidate_Score(t *testing.T) {
	r := Reconstruct(0, "a", "text", 150, vector.Vector{1})
	if err := r.Validate(1); err == nil {
		t.Fatal("expected error for out-of-range score")
	}
}

func TestValidatePoolID(t *testing.T) {
	valid := []string{"backend", "data-science", "team_42"}
	for _, id := range valid {
		if err := ValidatePoolID(id); err != nil {
			t.Errorf("ValidatePoolID(%q): %v", id, err)
		}
	}
	invalid := []string{"", "has space", "slash/inside", "dots.here", strings.Repeat("a", MaxPoolIDLength+1)}
	for _, id := range invalid {
		if err := ValidatePoolID(id); !errors.Is(err, domain.ErrInvalidRequest) {
			t.Errorf("ValidatePoolID(%q): expected ErrInvalidRequest, got %v", id, err)
		}
	}
}
