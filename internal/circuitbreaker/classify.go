package circuitbreaker

import (
	"context"
	"errors"
	"net/http"
	"os"

	gateway "github.com/eugener/meridian/internal"
)

// httpStatusError is implemented by errors carrying an upstream HTTP status,
// such as upstream.APIError.
type httpStatusError interface {
	HTTPStatus() int
}

// ClassifyError weighs an upstream call outcome for the breaker window.
// A zero weight means the provider is healthy even though the call failed.
//
//   - nil, caller cancellation, unknown word -> 0.0
//   - 4xx except 429 -> 0.0
//   - 429 -> 0.5
//   - 5xx, network and decode failures -> 1.0
//   - timeout -> 1.5
func ClassifyError(err error) float64 {
	switch {
	case err == nil, errors.Is(err, context.Canceled), errors.Is(err, gateway.ErrNotFound):
		return 0
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, os.ErrDeadlineExceeded):
		return 1.5
	}

	var he httpStatusError
	if errors.As(err, &he) {
		return statusWeight(he.HTTPStatus())
	}
	return 1.0
}

func statusWeight(code int) float64 {
	switch {
	case code == http.StatusTooManyRequests:
		return 0.5
	case code >= http.StatusInternalServerError:
		return 1.0
	default:
		return 0
	}
}
