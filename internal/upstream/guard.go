package upstream

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	gateway "github.com/eugener/meridian/internal"
	"github.com/eugener/meridian/internal/circuitbreaker"
	"github.com/eugener/meridian/internal/telemetry"
)

// Guard bounds every outbound call: circuit breaker admission, a tracing
// span, the configured timeout, and upstream metrics.
// A nil *Guard runs calls unguarded.
type Guard struct {
	timeout  time.Duration           // 0 = no timeout
	breakers *circuitbreaker.Registry // nil = breakers disabled
	metrics  *telemetry.Metrics       // nil = no metrics
	tracer   trace.Tracer
}

// NewGuard creates a Guard. breakers and m may be nil.
func NewGuard(timeout time.Duration, breakers *circuitbreaker.Registry, m *telemetry.Metrics) *Guard {
	return &Guard{
		timeout:  timeout,
		breakers: breakers,
		metrics:  m,
		tracer:   telemetry.Tracer("meridian/upstream"),
	}
}

// Do runs fn against the named upstream. When the upstream's breaker is open
// it returns ErrUpstreamUnavailable without calling fn.
func (g *Guard) Do(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	if g == nil {
		return fn(ctx)
	}

	var br *circuitbreaker.Breaker
	if g.breakers != nil {
		br = g.breakers.GetOrCreate(name)
		if !br.Allow() {
			g.countError(name, "open")
			return fmt.Errorf("%s: %w", name, gateway.ErrUpstreamUnavailable)
		}
	}

	ctx, span := g.tracer.Start(ctx, "upstream."+name,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("upstream.name", name)),
	)
	defer span.End()

	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	start := time.Now()
	err := fn(ctx)
	if g.metrics != nil {
		g.metrics.UpstreamDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	}

	if br != nil {
		switch w := circuitbreaker.ClassifyError(err); {
		case w > 0:
			br.RecordError(w)
		case errors.Is(err, context.Canceled):
			// Zero weight; still ends a half-open probe.
			br.RecordError(0)
		default:
			br.RecordSuccess()
		}
	}

	if err != nil {
		status := errorLabel(err)
		g.countError(name, status)
		span.SetAttributes(attribute.String("upstream.error", status))
		span.RecordError(err)
		span.SetStatus(codes.Error, status)
	}
	return err
}

func (g *Guard) countError(name, status string) {
	if g.metrics != nil {
		g.metrics.UpstreamErrors.WithLabelValues(name, status).Inc()
	}
}

// errorLabel returns a low-cardinality label for err.
func errorLabel(err error) string {
	var apiErr *APIError
	switch {
	case errors.As(err, &apiErr):
		return strconv.Itoa(apiErr.StatusCode)
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "error"
	}
}
