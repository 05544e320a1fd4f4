package provider

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"cosmossdk.io/log"

	schedulertypes "github.com/greenmesh/greenmesh/x/scheduler/types"
)

// JobClient is the part of the API a worker needs.
type JobClient interface {
	AssignedJobs(ctx context.Context) ([]schedulertypes.Job, error)
	Ping(ctx context.Context) error
	StartJob(ctx context.Context, id uint64) error
	CompleteJob(ctx context.Context, id uint64, resultHash []byte, resultRef string) error
}

// Workload executes a job and returns its result digest and reference.
type Workload func(ctx context.Context, job schedulertypes.Job) (resultHash []byte, resultRef string, err error)

// PlaceholderWorkload derives the result from the job input alone, so the
// primary and an honest auditor always agree.
func PlaceholderWorkload(_ context.Context, job schedulertypes.Job) ([]byte, string, error) {
	h := sha256.New()
	h.Write([]byte(job.JobType))
	h.Write([]byte{0})
	h.Write([]byte(job.ContentRef))
	sum := h.Sum(nil)
	return sum, fmt.Sprintf("greenmesh://results/%d/%s", job.ID, hex.EncodeToString(sum[:8])), nil
}

// Config tunes the worker loop.
type Config struct {
	Interval time.Duration
	// PingEvery sends a liveness ping every n polls; zero disables pings.
	PingEvery int
}

// DefaultConfig returns the worker defaults.
func DefaultConfig() Config {
	return Config{Interval: 15 * time.Second, PingEvery: 4}
}

// Result summarises one poll.
type Result struct {
	Started   int
	Completed int
	Audited   int
	Failed    int
}

// Worker polls for assigned jobs and completes them.
type Worker struct {
	client JobClient
	node   string
	run    Workload
	cfg    Config
	logger log.Logger
	polls  int
}

// NewWorker returns a worker acting as node. A nil workload uses PlaceholderWorkload.
func NewWorker(client JobClient, node string, run Workload, cfg Config, logger log.Logger) (*Worker, error) {
	if cfg.Interval <= 0 {
		return nil, fmt.Errorf("poll interval must be positive, got %s", cfg.Interval)
	}
	if cfg.PingEvery < 0 {
		return nil, fmt.Errorf("ping interval must not be negative, got %d", cfg.PingEvery)
	}
	if run == nil {
		run = PlaceholderWorkload
	}
	return &Worker{
		client: client,
		node:   node,
		run:    run,
		cfg:    cfg,
		logger: logger.With("module", "provider", "node", node),
	}, nil
}

// Run polls until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.cfg.Interval)
	defer ticker.Stop()

	w.logger.Info("provider started", "interval", w.cfg.Interval)
	for {
		res, err := w.Poll(ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			w.logger.Error("poll failed", "error", err)
		} else if res.Completed+res.Audited+res.Failed > 0 {
			w.logger.Info("poll", "started", res.Started, "completed", res.Completed, "audited", res.Audited, "failed", res.Failed)
		}
		select {
		case <-ctx.Done():
			w.logger.Info("provider stopped")
			return nil
		case <-ticker.C:
		}
	}
}

// Poll handles every job currently assigned to the node. A failing job is
// logged and counted; the remaining jobs are still processed.
func (w *Worker) Poll(ctx context.Context) (Result, error) {
	var res Result
	w.polls++
	if w.cfg.PingEvery > 0 && (w.polls-1)%w.cfg.PingEvery == 0 {
		if err := w.client.Ping(ctx); err != nil {
			w.logger.Warn("ping failed", "error", err)
		}
	}

	jobs, err := w.client.AssignedJobs(ctx)
	if err != nil {
		return res, fmt.Errorf("list assigned jobs: %w", err)
	}
	for _, job := range jobs {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		switch {
		case job.AssignedNode == w.node && !job.HasResult():
			if err := w.execute(ctx, job, &res); err != nil {
				res.Failed++
				w.logger.Error("job failed", "job_id", job.ID, "error", err)
			}
		case job.Audit != nil && job.Audit.Node == w.node && !job.Audit.Submitted:
			if err := w.audit(ctx, job); err != nil {
				res.Failed++
				w.logger.Error("audit failed", "job_id", job.ID, "error", err)
				continue
			}
			res.Audited++
		}
	}
	return res, nil
}

func (w *Worker) execute(ctx context.Context, job schedulertypes.Job, res *Result) error {
	if job.Status == schedulertypes.JobStatusAssigned {
		if err := w.client.StartJob(ctx, job.ID); err != nil {
			return fmt.Errorf("start: %w", err)
		}
		res.Started++
	}
	hash, ref, err := w.run(ctx, job)
	if err != nil {
		return fmt.Errorf("run: %w", err)
	}
	if err := w.client.CompleteJob(ctx, job.ID, hash, ref); err != nil {
		return fmt.Errorf("complete: %w", err)
	}
	res.Completed++
	return nil
}

func (w *Worker) audit(ctx context.Context, job schedulertypes.Job) error {
	hash, ref, err := w.run(ctx, job)
	if err != nil {
		return fmt.Errorf("run: %w", err)
	}
	return w.client.CompleteJob(ctx, job.ID, hash, ref)
}
