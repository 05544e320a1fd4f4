package app

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/greenmesh/greenmesh/x/shared/errkind"
)

// HostMetrics holds the sequencer host metrics.
type HostMetrics struct {
	Operations      *prometheus.CounterVec
	OpDuration      *prometheus.HistogramVec
	Height          prometheus.Gauge
	SinkFailures    prometheus.Counter
	InvariantBreaks *prometheus.CounterVec
}

var (
	hostMetricsOnce sync.Once
	hostMetrics     *HostMetrics
)

// NewHostMetrics creates and registers host metrics (singleton pattern)
func NewHostMetrics() *HostMetrics {
	hostMetricsOnce.Do(func() {
		hostMetrics = &HostMetrics{
			Operations: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: "greenmesh",
					Subsystem: "host",
					Name:      "operations_total",
					Help:      "Operations executed by the sequencer, by outcome",
				},
				[]string{"op", "outcome"},
			),
			OpDuration: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Namespace: "greenmesh",
					Subsystem: "host",
					Name:      "operation_duration_seconds",
					Help:      "Time spent executing and committing one operation",
					Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14),
				},
				[]string{"op"},
			),
			Height: promauto.NewGauge(
				prometheus.GaugeOpts{
					Namespace: "greenmesh",
					Subsystem: "host",
					Name:      "block_height",
					Help:      "Last committed block height",
				},
			),
			SinkFailures: promauto.NewCounter(
				prometheus.CounterOpts{
					Namespace: "greenmesh",
					Subsystem: "host",
					Name:      "sink_failures_total",
					Help:      "Committed blocks at least one event sink failed to receive",
				},
			),
			InvariantBreaks: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: "greenmesh",
					Subsystem: "host",
					Name:      "invariant_breaks_total",
					Help:      "Blocks refused because an invariant broke",
				},
				[]string{"module", "route"},
			),
		}
	})
	return hostMetrics
}

// observe records one Execute call. Rejected operations are labelled with
// their error kind.
func (m *HostMetrics) observe(op string, err error, elapsed time.Duration) {
	outcome := "ok"
	if err != nil {
		outcome = errkind.Of(err).String()
	}
	m.Operations.WithLabelValues(op, outcome).Inc()
	m.OpDuration.WithLabelValues(op).Observe(elapsed.Seconds())
}
