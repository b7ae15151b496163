package shortlist

import "github.com/kailas-cloud/shortlist/internal/domain"

// Sentinel errors re-exported from the domain layer.
// Use errors.Is() to check.
var (
	ErrInvalidRequest      = domain.ErrInvalidRequest
	ErrExtractionFailure   = domain.ErrExtractionFailure
	ErrEmbeddingFailure    = domain.ErrEmbeddingFailure
	ErrGenerationFailure   = domain.ErrGenerationFailure
	ErrStoreFailure        = domain.ErrStoreFailure
	ErrRateLimited         = domain.ErrRateLimited
	ErrProviderUnavailable = domain.ErrProviderUnavailable
	ErrDimensionMismatch   = domain.ErrDimensionMismatch
)
