// Package dispatcher runs the off-chain assignment loop.
//
// On every tick the dispatcher reads the pending queue in priority order. For
// each job it may enable auditing, skips escrow-rail jobs whose escrow is not
// funded yet and asks the ledger to assign the job. A failure on one job is
// logged and never stops the pass or the loop.
package dispatcher

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"
	"time"

	"cosmossdk.io/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/greenmesh/greenmesh/x/scheduler/types"
)

// Engine is the ledger surface the dispatcher drives.
type Engine interface {
	PendingJobs(ctx context.Context) ([]types.Job, error)
	IsFunded(ctx context.Context, jobID uint64) (bool, error)
	SetJobAudit(ctx context.Context, jobID uint64, enabled bool) error
	AssignJob(ctx context.Context, jobID uint64) error
}

// Config tunes the loop.
type Config struct {
	// Interval between passes.
	Interval time.Duration
	// AuditProbability is the chance a job is duplicated to an auditor.
	AuditProbability float64
	// Seed makes audit sampling reproducible when non-zero.
	Seed uint64
}

// DefaultConfig returns a 10s interval with one job in five audited.
func DefaultConfig() Config {
	return Config{
		Interval:         10 * time.Second,
		AuditProbability: 0.2,
	}
}

// Validate checks the loop settings.
func (c Config) Validate() error {
	if c.Interval <= 0 {
		return errors.New("dispatcher interval must be positive")
	}
	if c.AuditProbability < 0 || c.AuditProbability > 1 {
		return errors.New("audit probability must be within [0, 1]")
	}
	return nil
}

// Stats counts what one pass did.
type Stats struct {
	Pending  int
	Audited  int
	Assigned int
	Skipped  int
	Failed   int
}

// Dispatcher assigns pending jobs.
type Dispatcher struct {
	engine  Engine
	cfg     Config
	logger  log.Logger
	rng     *rand.Rand
	metrics *Metrics

	// decided remembers the audit roll per job so a job that waits for a
	// node is not re-rolled on every pass.
	decided map[uint64]bool
}

// New returns a dispatcher over engine.
func New(engine Engine, cfg Config, logger log.Logger) (*Dispatcher, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return &Dispatcher{
		engine:  engine,
		cfg:     cfg,
		logger:  logger.With("module", "dispatcher"),
		rng:     rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		metrics: NewMetrics(),
		decided: make(map[uint64]bool),
	}, nil
}

// Run executes passes until ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context) {
	d.logger.Info("dispatcher started", "interval", d.cfg.Interval, "audit_probability", d.cfg.AuditProbability)
	ticker := time.NewTicker(d.cfg.Interval)
	defer ticker.Stop()

	for {
		d.Tick(ctx)
		select {
		case <-ctx.Done():
			d.logger.Info("dispatcher stopped")
			return
		case <-ticker.C:
		}
	}
}

// Tick runs one pass over the pending queue.
func (d *Dispatcher) Tick(ctx context.Context) Stats {
	var stats Stats
	jobs, err := d.engine.PendingJobs(ctx)
	if err != nil {
		d.logger.Error("list pending jobs", "error", err)
		d.metrics.Actions.WithLabelValues("list_failed").Inc()
		return stats
	}
	stats.Pending = len(jobs)

	live := make(map[uint64]bool, len(jobs))
	for _, job := range jobs {
		if ctx.Err() != nil {
			break
		}
		live[job.ID] = true
		d.dispatch(ctx, job, &stats)
	}
	for id := range d.decided {
		if !live[id] {
			delete(d.decided, id)
		}
	}

	if stats.Pending > 0 {
		d.logger.Debug("dispatch pass",
			"pending", stats.Pending,
			"assigned", stats.Assigned,
			"audited", stats.Audited,
			"skipped", stats.Skipped,
			"failed", stats.Failed,
		)
	}
	return stats
}

func (d *Dispatcher) dispatch(ctx context.Context, job types.Job, stats *Stats) {
	logger := d.logger.With("job_id", job.ID)

	if !job.AuditEnabled && d.wantsAudit(job.ID) {
		if err := d.engine.SetJobAudit(ctx, job.ID, true); err != nil {
			logger.Error("enable audit", "error", err)
			d.metrics.Actions.WithLabelValues("audit_failed").Inc()
		} else {
			stats.Audited++
			d.metrics.Actions.WithLabelValues("audited").Inc()
		}
	}

	if job.Rail == types.RailEscrow {
		funded, err := d.engine.IsFunded(ctx, job.ID)
		if err != nil {
			logger.Error("check escrow", "error", err)
			stats.Failed++
			d.metrics.Actions.WithLabelValues("failed").Inc()
			return
		}
		if !funded {
			stats.Skipped++
			d.metrics.Actions.WithLabelValues("skipped_unfunded").Inc()
			return
		}
	}

	if err := d.engine.AssignJob(ctx, job.ID); err != nil {
		if errors.Is(err, types.ErrNoSuitableNode) {
			logger.Debug("no suitable node yet")
		} else {
			logger.Error("assign job", "error", err)
		}
		stats.Failed++
		d.metrics.Actions.WithLabelValues("failed").Inc()
		return
	}
	stats.Assigned++
	d.metrics.Actions.WithLabelValues("assigned").Inc()
	logger.Info("job assigned")
}

func (d *Dispatcher) wantsAudit(id uint64) bool {
	audit, ok := d.decided[id]
	if !ok {
		audit = d.cfg.AuditProbability > 0 && d.rng.Float64() < d.cfg.AuditProbability
		d.decided[id] = audit
	}
	return audit
}

// Metrics counts dispatcher actions.
type Metrics struct {
	Actions *prometheus.CounterVec
}

var (
	dispatcherMetricsOnce sync.Once
	dispatcherMetrics     *Metrics
)

// NewMetrics creates and registers dispatcher metrics (singleton pattern)
func NewMetrics() *Metrics {
	dispatcherMetricsOnce.Do(func() {
		dispatcherMetrics = &Metrics{
			Actions: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: "greenmesh",
					Subsystem: "dispatcher",
					Name:      "actions_total",
					Help:      "Dispatcher actions by outcome",
				},
				[]string{"action"},
			),
		}
	})
	return dispatcherMetrics
}
