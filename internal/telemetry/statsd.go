package telemetry

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cactus/go-statsd-client/v5/statsd"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	gaugeChanSize    = 1024
	statsdFlushEvery = 300 * time.Millisecond
)

// Statter is the subset of the StatsD client used by the emitter.
type Statter interface {
	Gauge(stat string, value int64, rate float32, tags ...statsd.Tag) error
	Close() error
}

type gaugeSample struct {
	name  string
	value int64
}

// StatsD sends gauges to a StatsD collector from a background worker.
// Gauge never blocks and never fails; samples are dropped when the queue is full.
type StatsD struct {
	ch      chan gaugeSample
	client  Statter
	dropped prometheus.Counter // nil = not counted
}

// NewStatsD creates an emitter that sends through client.
func NewStatsD(client Statter, dropped prometheus.Counter) *StatsD {
	return &StatsD{
		ch:      make(chan gaugeSample, gaugeChanSize),
		client:  client,
		dropped: dropped,
	}
}

// DialStatsD creates a buffered UDP StatsD client for addr (host:port).
func DialStatsD(addr, prefix string) (Statter, error) {
	c, err := statsd.NewClientWithConfig(&statsd.ClientConfig{
		Address:       addr,
		Prefix:        prefix,
		UseBuffered:   true,
		FlushInterval: statsdFlushEvery,
	})
	if err != nil {
		return nil, fmt.Errorf("create statsd client: %w", err)
	}
	return c, nil
}

// Name returns the worker identifier.
func (s *StatsD) Name() string { return "statsd_emitter" }

// Gauge enqueues a gauge sample. Safe to call on a nil emitter.
func (s *StatsD) Gauge(name string, value int64) {
	if s == nil {
		return
	}
	select {
	case s.ch <- gaugeSample{name: name, value: value}:
	default:
		if s.dropped != nil {
			s.dropped.Inc()
		}
	}
}

// Run sends queued samples until ctx is cancelled, then drains the queue and
// closes the client.
func (s *StatsD) Run(ctx context.Context) error {
	defer func() {
		if err := s.client.Close(); err != nil {
			slog.Warn("statsd close failed", "error", err)
		}
	}()

	for {
		select {
		case g := <-s.ch:
			s.send(g)
		case <-ctx.Done():
			for {
				select {
				case g := <-s.ch:
					s.send(g)
				default:
					return nil
				}
			}
		}
	}
}

func (s *StatsD) send(g gaugeSample) {
	if err := s.client.Gauge(g.name, g.value, 1.0); err != nil {
		slog.Debug("statsd gauge failed", "metric", g.name, "error", err)
	}
}
