package upstream

import (
	"fmt"

	"github.com/go-resty/resty/v2"
)

const maxErrorBody = 4096

// APIError is a non-2xx answer from an upstream provider.
// It satisfies the httpStatusError interface used by circuit breaker classification.
type APIError struct {
	Upstream   string
	StatusCode int
	Body       string
}

// Error returns a formatted error string including upstream, status, and body.
func (e *APIError) Error() string {
	return fmt.Sprintf("%s: HTTP %d: %s", e.Upstream, e.StatusCode, e.Body)
}

// HTTPStatus returns the provider's HTTP status code.
func (e *APIError) HTTPStatus() int { return e.StatusCode }

// NewAPIError builds an APIError from resp, keeping at most 4KB of its body.
func NewAPIError(upstream string, resp *resty.Response) *APIError {
	body := resp.Body()
	if len(body) > maxErrorBody {
		body = body[:maxErrorBody]
	}
	return &APIError{Upstream: upstream, StatusCode: resp.StatusCode(), Body: string(body)}
}
