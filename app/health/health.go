// Package health reports the health of a running GreenMesh node.
//
// Endpoints:
//   - /health is a liveness check
//   - /health/ready reports readiness for load balancers
//   - /health/detailed adds the invariant sweep
package health

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"cosmossdk.io/log"
	"github.com/gin-gonic/gin"

	"github.com/greenmesh/greenmesh/app"
)

// Status represents the health status of a component
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
	StatusUnknown   Status = "unknown"
)

// ComponentHealth represents the health status of a single component
type ComponentHealth struct {
	Status    Status         `json:"status"`
	Message   string         `json:"message,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
	Metrics   map[string]any `json:"metrics,omitempty"`
}

// HealthCheck represents the overall health check response
type HealthCheck struct {
	Status     Status                     `json:"status"`
	Timestamp  time.Time                  `json:"timestamp"`
	Version    string                     `json:"version,omitempty"`
	Components map[string]ComponentHealth `json:"components,omitempty"`
}

// Source is the node state the checker inspects.
type Source interface {
	Height() int64
	LastBlockTime() time.Time
	CircuitStatus() app.CircuitBreakerStatus
	CheckInvariants() error
}

// Config holds configuration for the health checker
type Config struct {
	// Version is reported in every response.
	Version string

	// MaxInvariantTime marks the invariant sweep degraded when exceeded.
	MaxInvariantTime time.Duration

	// CacheDuration is how long to cache health check results
	CacheDuration time.Duration
}

// DefaultConfig returns the default health check configuration
func DefaultConfig() Config {
	return Config{
		MaxInvariantTime: 2 * time.Second,
		CacheDuration:    5 * time.Second,
	}
}

// Checker performs health checks on various components
type Checker struct {
	logger log.Logger
	source Source
	cfg    Config

	mu           sync.RWMutex
	lastCheck    time.Time
	cachedHealth *HealthCheck
	// cachedCircuit is the breaker state cachedHealth was computed under.
	cachedCircuit app.CircuitBreakerStatus
}

// NewChecker creates a new health checker
func NewChecker(logger log.Logger, cfg Config, source Source) (*Checker, error) {
	if source == nil {
		return nil, fmt.Errorf("health source is required")
	}
	return &Checker{
		logger: logger.With("module", "health"),
		source: source,
		cfg:    cfg,
	}, nil
}

// Check runs the component checks. Detailed checks bypass the cache and
// include the invariant sweep. A cached result is dropped as soon as a
// circuit breaker changes state.
func (c *Checker) Check(ctx context.Context, detailed bool) *HealthCheck {
	circuit := c.source.CircuitStatus()
	if !detailed {
		if cached := c.cached(circuit); cached != nil {
			return cached
		}
	}

	health := &HealthCheck{
		Timestamp:  time.Now(),
		Version:    c.cfg.Version,
		Components: make(map[string]ComponentHealth),
	}
	health.Components["ledger"] = c.checkLedger()
	health.Components["circuit_breakers"] = c.checkCircuitBreakers(circuit)
	if detailed {
		health.Components["invariants"] = c.checkInvariants(ctx)
	}
	health.Status = c.calculateOverallStatus(health.Components)

	if !detailed {
		c.mu.Lock()
		c.lastCheck = time.Now()
		c.cachedHealth = health
		c.cachedCircuit = circuit
		c.mu.Unlock()
	}
	return health
}

// checkLedger verifies that genesis has been committed.
func (c *Checker) checkLedger() ComponentHealth {
	height := c.source.Height()
	if height == 0 {
		return ComponentHealth{
			Status:    StatusUnhealthy,
			Message:   "Genesis has not been committed",
			Timestamp: time.Now(),
		}
	}
	last := c.source.LastBlockTime()
	return ComponentHealth{
		Status:    StatusHealthy,
		Message:   "Ledger is accepting operations",
		Timestamp: time.Now(),
		Metrics: map[string]any{
			"height":            height,
			"last_block_time":   last.Format(time.RFC3339),
			"block_age_seconds": time.Since(last).Seconds(),
		},
	}
}

// checkCircuitBreakers reports paused modules as degraded.
func (c *Checker) checkCircuitBreakers(status app.CircuitBreakerStatus) ComponentHealth {
	component := ComponentHealth{
		Status:    StatusHealthy,
		Message:   "No module is paused",
		Timestamp: time.Now(),
		Metrics: map[string]any{
			"registry_paused":  status.RegistryPaused,
			"scheduler_paused": status.SchedulerPaused,
		},
	}
	if status.AnyOpen {
		component.Status = StatusDegraded
		component.Message = "One or more modules are paused"
	}
	return component
}

// checkInvariants runs every registered invariant against the last commit.
func (c *Checker) checkInvariants(ctx context.Context) ComponentHealth {
	start := time.Now()
	done := make(chan error, 1)
	go func() { done <- c.source.CheckInvariants() }()

	select {
	case <-ctx.Done():
		return ComponentHealth{
			Status:    StatusUnknown,
			Message:   "Invariant sweep cancelled",
			Timestamp: time.Now(),
		}
	case err := <-done:
		elapsed := time.Since(start)
		metrics := map[string]any{"duration_ms": elapsed.Milliseconds()}
		if err != nil {
			c.logger.Error("invariant check failed", "error", err)
			return ComponentHealth{
				Status:    StatusUnhealthy,
				Message:   err.Error(),
				Timestamp: time.Now(),
				Metrics:   metrics,
			}
		}
		status := StatusHealthy
		message := "All invariants hold"
		if c.cfg.MaxInvariantTime > 0 && elapsed > c.cfg.MaxInvariantTime {
			status = StatusDegraded
			message = "Invariant sweep is slow"
		}
		return ComponentHealth{Status: status, Message: message, Timestamp: time.Now(), Metrics: metrics}
	}
}

// calculateOverallStatus determines the overall health status based on component statuses
func (c *Checker) calculateOverallStatus(components map[string]ComponentHealth) Status {
	hasUnhealthy := false
	hasDegraded := false

	for _, component := range components {
		switch component.Status {
		case StatusUnhealthy:
			hasUnhealthy = true
		case StatusDegraded, StatusUnknown:
			hasDegraded = true
		}
	}

	if hasUnhealthy {
		return StatusUnhealthy
	}
	if hasDegraded {
		return StatusDegraded
	}
	return StatusHealthy
}

func (c *Checker) cached(circuit app.CircuitBreakerStatus) *HealthCheck {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.cachedHealth == nil || time.Since(c.lastCheck) >= c.cfg.CacheDuration {
		return nil
	}
	if c.cachedCircuit != circuit {
		return nil
	}
	return c.cachedHealth
}

// RegisterRoutes registers health check endpoints
func (c *Checker) RegisterRoutes(router gin.IRoutes) {
	router.GET("/health", c.handleHealth)
	router.GET("/health/ready", c.handleHealthReady)
	router.GET("/health/detailed", c.handleHealthDetailed)
}

// handleHealth handles the basic liveness check endpoint
func (c *Checker) handleHealth(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

// handleHealthReady handles the readiness check endpoint
func (c *Checker) handleHealthReady(ctx *gin.Context) {
	c.respond(ctx, c.Check(ctx.Request.Context(), false))
}

// handleHealthDetailed handles the detailed health check endpoint
func (c *Checker) handleHealthDetailed(ctx *gin.Context) {
	c.respond(ctx, c.Check(ctx.Request.Context(), true))
}

func (c *Checker) respond(ctx *gin.Context, health *HealthCheck) {
	statusCode := http.StatusOK
	if health.Status == StatusUnhealthy {
		statusCode = http.StatusServiceUnavailable
	}
	ctx.JSON(statusCode, health)
}
