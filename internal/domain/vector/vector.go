// Package vector holds the fixed-dimension embedding type and its similarity math.
package vector

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

var (
	// ErrDimensionMismatch signals vectors of different (or zero) length.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
	// ErrDegenerateVector signals a zero-norm vector, for which cosine similarity is undefined.
	ErrDegenerateVector = errors.New("degenerate vector")
)

// Vector is an embedding produced by the embedding provider.
type Vector []float32

// Dim returns the number of components.
func (v Vector) Dim() int { return len(v) }

// Norm returns the Euclidean length.
func (v Vector) Norm() float64 {
	var sum float64
	for _, f := range v {
		sum += float64(f) * float64(f)
	}
	return math.Sqrt(sum)
}

// Clone returns an independent copy.
func (v Vector) Clone() Vector {
	if v == nil {
		return nil
	}
	out := make(Vector, len(v))
	copy(out, v)
	return out
}

// Cosine returns the cosine similarity of a and b in [-1, 1].
// Accumulates in float64; the result is clamped to absorb rounding drift.
func Cosine(a, b Vector) (float64, error) {
	if len(a) != len(b) || len(a) == 0 {
		return 0, fmt.Errorf("cosine %d vs %d: %w", len(a), len(b), ErrDimensionMismatch)
	}

	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0, fmt.Errorf("cosine with zero-norm vector: %w", ErrDegenerateVector)
	}

	sim := dot / (math.Sqrt(na) * math.Sqrt(nb))
	if math.IsNaN(sim) || math.IsInf(sim, 0) {
		return 0, fmt.Errorf("cosine is not finite: %w", ErrDegenerateVector)
	}
	return math.Max(-1, math.Min(1, sim)), nil
}

// Encode serializes v to bytes (4 bytes per component, little-endian).
func Encode(v Vector) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// Decode deserializes bytes produced by Encode.
func Decode(data []byte) (Vector, error) {
	if len(data)%4 != 0 {
		return nil, fmt.Errorf("invalid vector data: len=%d (not multiple of 4)", len(data))
	}
	v := make(Vector, len(data)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return v, nil
}
