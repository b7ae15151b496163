// Package record defines the persisted unit of a pool: one scored, embedded document.
package record

import (
	"fmt"
	"regexp"

	"github.com/kailas-cloud/shortlist/internal/domain"
	"github.com/kailas-cloud/shortlist/internal/domain/score"
	"github.com/kailas-cloud/shortlist/internal/domain/vector"
)

var poolIDRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// MaxPoolIDLength bounds pool identifiers, which end up in store keys and bucket names.
const MaxPoolIDLength = 128

// ValidatePoolID checks a pool identifier: ^[a-zA-Z0-9_-]+$, 1-128 chars.
func ValidatePoolID(id string) error {
	if id == "" {
		return fmt.Errorf("pool ID is required: %w", domain.ErrInvalidRequest)
	}
	if len(id) > MaxPoolIDLength {
		return fmt.Errorf("pool ID too long (max %d): %w", MaxPoolIDLength, domain.ErrInvalidRequest)
	}
	if !poolIDRegex.MatchString(id) {
		return fmt.Errorf("pool ID must be alphanumeric with underscores and hyphens: %w", domain.ErrInvalidRequest)
	}
	return nil
}

// Record is an immutable scored document.
type Record struct {
	ordinal   int
	name      string
	text      string
	score     float64
	embedding vector.Vector
}

// New validates and creates a Record.
// Text must be non-empty, score within [0, score.Scale], embedding non-empty.
func New(ordinal int, name, text string, persisted float64, embedding vector.Vector) (Record, error) {
	if ordinal < 0 {
		return Record{}, fmt.Errorf("ordinal must be non-negative, got %d", ordinal)
	}
	if text == "" {
		return Record{}, fmt.Errorf("text is required")
	}
	if !score.Valid(persisted) {
		return Record{}, fmt.Errorf("score %f outside [0, %.0f]", persisted, score.Scale)
	}
	if len(embedding) == 0 {
		return Record{}, fmt.Errorf("embedding is required: %w", vector.ErrDimensionMismatch)
	}
	return Reconstruct(ordinal, name, text, persisted, embedding), nil
}

// Reconstruct creates a Record without validation (storage hydration).
func Reconstruct(ordinal int, name, text string, persisted float64, embedding vector.Vector) Record {
	return Record{
		ordinal:   ordinal,
		name:      name,
		text:      text,
		score:     persisted,
		embedding: embedding.Clone(),
	}
}

// Ordinal returns the position of the record in its ingestion batch.
func (r Record) Ordinal() int { return r.ordinal }

// Name returns the document name (file name or URL).
func (r Record) Name() string { return r.name }

// Text returns the extracted plain text.
func (r Record) Text() string { return r.text }

// Score returns the persisted job-description score on [0, score.Scale].
func (r Record) Score() float64 { return r.score }

// Embedding returns a copy of the document embedding.
func (r Record) Embedding() vector.Vector { return r.embedding.Clone() }

// Validate checks the record against the system embedding dimension.
func (r Record) Validate(dim int) error {
	if len(r.embedding) != dim {
		return fmt.Errorf("record %d: embedding has %d dimensions, want %d: %w",
			r.ordinal, len(r.embedding), dim, vector.ErrDimensionMismatch)
	}
	if !score.Valid(r.score) {
		return fmt.Errorf("record %d: score %f outside [0, %.0f]", r.ordinal, r.score, score.Scale)
	}
	return nil
}
