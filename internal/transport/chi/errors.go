package chi

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/kailas-cloud/shortlist/internal/domain"
)

// Error codes returned in ErrorResponse.Code.
const (
	CodeBadRequest          = "bad_request"
	CodeValidationFailed    = "validation_failed"
	CodeRateLimited         = "rate_limited"
	CodeEmbeddingFailure    = "embedding_provider_error"
	CodeGenerationFailure   = "generation_provider_error"
	CodeStoreUnavailable    = "store_unavailable"
	CodePayloadTooLarge     = "payload_too_large"
	CodeInternalError       = "internal_error"
	CodeRequestCanceled     = "request_canceled"
	CodeUnsupportedDocument = "unsupported_document"
)

// ErrorResponse is the JSON error body.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Order matters: rate limiting is checked before the provider failure it wraps.
var errorHandlers = []errorHandler{
	sentinelHandler(domain.ErrInvalidRequest, http.StatusBadRequest, CodeValidationFailed),
	sentinelHandler(domain.ErrRateLimited, http.StatusTooManyRequests, CodeRateLimited),
	sentinelHandler(domain.ErrEmbeddingFailure, http.StatusBadGateway, CodeEmbeddingFailure),
	sentinelHandler(domain.ErrGenerationFailure, http.StatusBadGateway, CodeGenerationFailure),
	sentinelHandler(domain.ErrExtractionFailure, http.StatusUnprocessableEntity, CodeUnsupportedDocument),
	sentinelHandler(domain.ErrStoreFailure, http.StatusServiceUnavailable, CodeStoreUnavailable),
	sentinelHandler(domain.ErrProviderUnavailable, http.StatusBadGateway, CodeEmbeddingFailure),
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
// Invalid requests echo the full message: it only describes caller input.
func safeDomainMessage(err error) string {
	if errors.Is(err, domain.ErrInvalidRequest) {
		return err.Error()
	}
	sentinels := []error{
		domain.ErrRateLimited,
		domain.ErrEmbeddingFailure,
		domain.ErrGenerationFailure,
		domain.ErrExtractionFailure,
		domain.ErrStoreFailure,
		domain.ErrProviderUnavailable,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code string) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	log := s.log(r)
	if ctxErr := r.Context().Err(); ctxErr != nil && errors.Is(err, ctxErr) {
		log.Info("request canceled", zap.Error(err))
		writeError(w, 499, CodeRequestCanceled, "request canceled")
		return
	}

	log.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	log.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, CodeInternalError, "internal error")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{
		Code:    code,
		Message: message,
	})
}
