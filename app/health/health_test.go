package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"cosmossdk.io/log"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/greenmesh/greenmesh/app"
)

type fakeSource struct {
	height    int64
	last      time.Time
	status    app.CircuitBreakerStatus
	invariant error
	calls     int
}

func (f *fakeSource) Height() int64                           { f.calls++; return f.height }
func (f *fakeSource) LastBlockTime() time.Time                { return f.last }
func (f *fakeSource) CircuitStatus() app.CircuitBreakerStatus { return f.status }
func (f *fakeSource) CheckInvariants() error                  { return f.invariant }

func newChecker(t *testing.T, source Source) *Checker {
	t.Helper()
	c, err := NewChecker(log.NewNopLogger(), DefaultConfig(), source)
	require.NoError(t, err)
	return c
}

func TestNewChecker_RequiresSource(t *testing.T) {
	_, err := NewChecker(log.NewNopLogger(), DefaultConfig(), nil)
	require.ErrorContains(t, err, "health source is required")
}

func TestCheck(t *testing.T) {
	tests := []struct {
		name     string
		source   *fakeSource
		detailed bool
		expected Status
	}{
		{
			name:     "healthy ledger",
			source:   &fakeSource{height: 5, last: time.Now()},
			expected: StatusHealthy,
		},
		{
			name:     "no genesis",
			source:   &fakeSource{},
			expected: StatusUnhealthy,
		},
		{
			name: "paused scheduler",
			source: &fakeSource{height: 5, status: app.CircuitBreakerStatus{
				SchedulerPaused: true,
				AnyOpen:         true,
			}},
			expected: StatusDegraded,
		},
		{
			name:     "broken invariant only shows in detailed check",
			source:   &fakeSource{height: 5, invariant: errors.New("stake-conservation")},
			expected: StatusHealthy,
		},
		{
			name:     "broken invariant",
			source:   &fakeSource{height: 5, invariant: errors.New("stake-conservation")},
			detailed: true,
			expected: StatusUnhealthy,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			health := newChecker(t, tt.source).Check(context.Background(), tt.detailed)
			require.Equal(t, tt.expected, health.Status)
			_, hasInvariants := health.Components["invariants"]
			require.Equal(t, tt.detailed, hasInvariants)
		})
	}
}

func TestCheck_UsesCache(t *testing.T) {
	source := &fakeSource{height: 1}
	c := newChecker(t, source)

	first := c.Check(context.Background(), false)
	second := c.Check(context.Background(), false)
	require.Same(t, first, second)
	require.Equal(t, 1, source.calls)

	c.Check(context.Background(), true)
	require.Equal(t, 2, source.calls)
}

func TestCheck_CacheFollowsCircuitBreakers(t *testing.T) {
	source := &fakeSource{height: 3, last: time.Now()}
	c := newChecker(t, source)
	require.Equal(t, StatusHealthy, c.Check(context.Background(), false).Status)

	source.status = app.CircuitBreakerStatus{RegistryPaused: true, SchedulerPaused: true, AnyOpen: true}
	paused := c.Check(context.Background(), false)
	require.Equal(t, StatusDegraded, paused.Status)
	require.Equal(t, StatusDegraded, paused.Components["circuit_breakers"].Status)
	require.Same(t, paused, c.Check(context.Background(), false))

	source.status = app.CircuitBreakerStatus{}
	require.Equal(t, StatusHealthy, c.Check(context.Background(), false).Status)
}

func TestCalculateOverallStatus(t *testing.T) {
	c := newChecker(t, &fakeSource{})
	require.Equal(t, StatusHealthy, c.calculateOverallStatus(map[string]ComponentHealth{
		"ledger": {Status: StatusHealthy},
	}))
	require.Equal(t, StatusDegraded, c.calculateOverallStatus(map[string]ComponentHealth{
		"ledger":     {Status: StatusHealthy},
		"invariants": {Status: StatusUnknown},
	}))
	require.Equal(t, StatusUnhealthy, c.calculateOverallStatus(map[string]ComponentHealth{
		"ledger":           {Status: StatusUnhealthy},
		"circuit_breakers": {Status: StatusDegraded},
	}))
}

func TestRoutes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	newChecker(t, &fakeSource{}).RegisterRoutes(router)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body HealthCheck
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, StatusUnhealthy, body.Status)
	require.Contains(t, body.Components, "ledger")
}
