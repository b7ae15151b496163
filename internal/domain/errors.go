package domain

import (
	"errors"

	"github.com/kailas-cloud/shortlist/internal/domain/vector"
)

var (
	// ErrInvalidRequest signals malformed input from a caller.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrExtractionFailure signals that a document could not be turned into text.
	ErrExtractionFailure = errors.New("extraction failure")
	// ErrEmbeddingFailure signals an embedding provider failure or unusable embedding.
	ErrEmbeddingFailure = errors.New("embedding failure")
	// ErrGenerationFailure signals a generative model failure (quota, timeout, network).
	ErrGenerationFailure = errors.New("generation failure")
	// ErrEmptyPool signals a pool without records.
	ErrEmptyPool = errors.New("empty pool")
	// ErrStoreFailure signals a persistent store failure.
	ErrStoreFailure = errors.New("store failure")

	// ErrRateLimited signals a provider rate limit hit.
	ErrRateLimited = errors.New("rate limited")
	// ErrProviderUnavailable signals a transient provider-side failure (5xx, timeout).
	ErrProviderUnavailable = errors.New("provider unavailable")

	// ErrDimensionMismatch signals a vector of the wrong dimension.
	ErrDimensionMismatch = vector.ErrDimensionMismatch
	// ErrDegenerateVector signals a zero-norm vector.
	ErrDegenerateVector = vector.ErrDegenerateVector
)

// Retryable reports whether err is a transient provider error worth retrying.
func Retryable(err error) bool {
	return errors.Is(err, ErrRateLimited) || errors.Is(err, ErrProviderUnavailable)
}
