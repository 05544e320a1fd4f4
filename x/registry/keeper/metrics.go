package keeper

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// RegistryMetrics holds all Prometheus metrics for the registry module
type RegistryMetrics struct {
	NodesRegistered          *prometheus.CounterVec
	NodesUnregistered        *prometheus.CounterVec
	NodesSlashed             *prometheus.CounterVec
	ReputationUpdates        *prometheus.CounterVec
	RegistrationsRateLimited prometheus.Counter
	ActiveNodes              prometheus.Gauge
}

var (
	registryMetricsOnce sync.Once
	registryMetrics     *RegistryMetrics
)

// NewRegistryMetrics creates and registers registry metrics (singleton pattern)
func NewRegistryMetrics() *RegistryMetrics {
	registryMetricsOnce.Do(func() {
		registryMetrics = &RegistryMetrics{
			NodesRegistered: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: "greenmesh",
					Subsystem: "registry",
					Name:      "nodes_registered_total",
					Help:      "Total nodes registered",
				},
				[]string{"device_type"},
			),
			NodesUnregistered: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: "greenmesh",
					Subsystem: "registry",
					Name:      "nodes_unregistered_total",
					Help:      "Total nodes unregistered",
				},
				[]string{"device_type"},
			),
			NodesSlashed: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: "greenmesh",
					Subsystem: "registry",
					Name:      "nodes_slashed_total",
					Help:      "Total slashing events",
				},
				[]string{"permanent"},
			),
			ReputationUpdates: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: "greenmesh",
					Subsystem: "registry",
					Name:      "reputation_updates_total",
					Help:      "Reputation updates by outcome",
				},
				[]string{"success"},
			),
			RegistrationsRateLimited: promauto.NewCounter(
				prometheus.CounterOpts{
					Namespace: "greenmesh",
					Subsystem: "registry",
					Name:      "registrations_rate_limited_total",
					Help:      "Registrations rejected by the window cap",
				},
			),
			ActiveNodes: promauto.NewGauge(
				prometheus.GaugeOpts{
					Namespace: "greenmesh",
					Subsystem: "registry",
					Name:      "active_nodes",
					Help:      "Nodes in the active index",
				},
			),
		}
	})
	return registryMetrics
}
