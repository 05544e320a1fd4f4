package api

import (
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// APIMetrics holds the HTTP API metrics.
type APIMetrics struct {
	Requests        *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
}

var (
	apiMetricsOnce sync.Once
	apiMetrics     *APIMetrics
)

// NewAPIMetrics creates and registers API metrics (singleton pattern)
func NewAPIMetrics() *APIMetrics {
	apiMetricsOnce.Do(func() {
		apiMetrics = &APIMetrics{
			Requests: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: "greenmesh",
					Subsystem: "api",
					Name:      "requests_total",
					Help:      "HTTP requests by route and status",
				},
				[]string{"method", "route", "status"},
			),
			RequestDuration: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Namespace: "greenmesh",
					Subsystem: "api",
					Name:      "request_duration_seconds",
					Help:      "HTTP request latency",
					Buckets:   prometheus.DefBuckets,
				},
				[]string{"method", "route"},
			),
		}
	})
	return apiMetrics
}

// MetricsMiddleware records request counts and latency per route template.
func MetricsMiddleware(m *APIMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.Requests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		m.RequestDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}
