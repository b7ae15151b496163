// Package score maps similarities onto the common ranking scale and fuses them.
//
// Both the persisted job-description score and the fresh query similarity live on
// [0, Scale]. Fusion is multiplicative: a candidate has to match the job description
// and the current query to rank high.
package score

import (
	"fmt"
	"math"

	"github.com/kailas-cloud/shortlist/internal/domain/vector"
)

// Scale is the upper bound of every score in the system.
const Scale = 100.0

// Rescale maps a cosine similarity onto [0, Scale]. Negative similarities carry no
// relevance and map to 0.
func Rescale(cosine float64) float64 {
	if math.IsNaN(cosine) || cosine <= 0 {
		return 0
	}
	if cosine >= 1 {
		return Scale
	}
	return cosine * Scale
}

// Similarity returns the rescaled cosine similarity of a and b.
func Similarity(a, b vector.Vector) (float64, error) {
	c, err := vector.Cosine(a, b)
	if err != nil {
		return 0, fmt.Errorf("similarity: %w", err)
	}
	return Rescale(c), nil
}

// Fuse combines a persisted score and a fresh similarity into one ranking key on [0, Scale].
func Fuse(persisted, fresh float64) float64 {
	return clamp(persisted) * clamp(fresh) / Scale
}

// Valid reports whether s is a finite score within [0, Scale].
func Valid(s float64) bool {
	return !math.IsNaN(s) && s >= 0 && s <= Scale
}

func clamp(s float64) float64 {
	if math.IsNaN(s) || s < 0 {
		return 0
	}
	if s > Scale {
		return Scale
	}
	return s
}
