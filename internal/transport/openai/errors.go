package openai

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	openai "github.com/sashabaranov/go-openai"

	"github.com/kailas-cloud/shortlist/internal/domain"
)

// parseAPIError extracts a human-readable error from the API response and
// tags it with kind plus, for transient statuses, a retryable sentinel.
func parseAPIError(err error, kind error) error {
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		detail := extractDetail(reqErr.Body)
		if detail == "" {
			detail = string(reqErr.Body)
		}
		return statusError(reqErr.HTTPStatusCode, detail, kind)
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return statusError(apiErr.HTTPStatusCode, apiErr.Message, kind)
	}

	return fmt.Errorf("request failed: %w: %w: %w", kind, domain.ErrProviderUnavailable, err)
}

func statusError(status int, detail string, kind error) error {
	switch {
	case status == http.StatusTooManyRequests:
		return fmt.Errorf("API error %d: %s: %w: %w", status, detail, kind, domain.ErrRateLimited)
	case status >= http.StatusInternalServerError:
		return fmt.Errorf("API error %d: %s: %w: %w", status, detail, kind, domain.ErrProviderUnavailable)
	default:
		return fmt.Errorf("API error %d: %s: %w", status, detail, kind)
	}
}

// extractDetail extracts the "detail" field from a JSON error body (Nebius error format).
func extractDetail(body []byte) string {
	var parsed struct {
		Detail string `json:"detail"`
	}
	if json.Unmarshal(body, &parsed) == nil && parsed.Detail != "" {
		return parsed.Detail
	}
	return ""
}

func newClient(apiKey, baseURL string) *openai.Client {
	clientCfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		clientCfg.BaseURL = baseURL
	}
	return openai.NewClientWithConfig(clientCfg)
}
