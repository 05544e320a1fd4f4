// Package besteffort runs collaborator calls whose failure must never abort the
// operation that makes them.
//
// A Runner executes the call on its own cache branch, so a failing call leaves
// no partial writes. Failures are logged by severity, emitted as a
// best_effort_failure event and counted; the caller only learns whether the
// call succeeded.
package besteffort

import (
	"fmt"
	"sync"

	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/greenmesh/greenmesh/x/shared/txn"
)

// EventTypeFailure is emitted for every swallowed failure.
const EventTypeFailure = "best_effort_failure"

// Severity classifies how much a swallowed failure matters to operators.
type Severity int

const (
	// SeverityLow covers purely advisory calls such as prediction requests.
	SeverityLow Severity = iota
	// SeverityMedium degrades scheduling quality, e.g. a missed auditor reservation.
	SeverityMedium
	// SeverityHigh leaves bookkeeping out of step, e.g. a failed capacity release.
	SeverityHigh
)

func (s Severity) String() string {
	switch s {
	case SeverityLow:
		return "low"
	case SeverityMedium:
		return "medium"
	case SeverityHigh:
		return "high"
	default:
		return "unknown"
	}
}

var (
	failuresOnce sync.Once
	failures     *prometheus.CounterVec
)

func failureCounter() *prometheus.CounterVec {
	failuresOnce.Do(func() {
		failures = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "greenmesh",
				Subsystem: "besteffort",
				Name:      "failures_total",
				Help:      "Collaborator calls that failed and were ignored",
			},
			[]string{"module", "operation", "severity"},
		)
	})
	return failures
}

// Runner is the fire-and-forget wrapper for one module.
type Runner struct {
	module string
}

// NewRunner creates a runner that labels failures with module.
func NewRunner(module string) Runner {
	failureCounter()
	return Runner{module: module}
}

// Run executes fn and reports whether it succeeded. Errors and panics raised
// by fn are absorbed; nothing fn wrote survives a failure.
func (r Runner) Run(ctx sdk.Context, operation string, severity Severity, fn func(ctx sdk.Context) error) (ok bool) {
	err := r.call(ctx, fn)
	if err == nil {
		return true
	}
	r.report(ctx, operation, severity, err)
	return false
}

func (r Runner) call(ctx sdk.Context, fn func(ctx sdk.Context) error) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic: %v", rec)
		}
	}()
	return txn.Atomic(ctx, fn)
}

func (r Runner) report(ctx sdk.Context, operation string, severity Severity, err error) {
	logger := ctx.Logger().With("module", r.module, "operation", operation, "severity", severity.String())
	switch severity {
	case SeverityHigh:
		logger.Error("best-effort call failed", "error", err.Error())
	case SeverityMedium:
		logger.Warn("best-effort call failed", "error", err.Error())
	default:
		logger.Debug("best-effort call failed", "error", err.Error())
	}

	ctx.EventManager().EmitEvent(
		sdk.NewEvent(
			EventTypeFailure,
			sdk.NewAttribute("module", r.module),
			sdk.NewAttribute("operation", operation),
			sdk.NewAttribute("severity", severity.String()),
			sdk.NewAttribute("error", err.Error()),
			sdk.NewAttribute("height", fmt.Sprintf("%d", ctx.BlockHeight())),
		),
	)
	failureCounter().WithLabelValues(r.module, operation, severity.String()).Inc()
}
