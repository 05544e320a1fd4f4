package app

import (
	"context"
	"time"

	cmtproto "github.com/cometbft/cometbft/proto/tendermint/types"
	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/greenmesh/greenmesh/pkg/eventsink"
	"github.com/greenmesh/greenmesh/x/shared/errkind"
)

// ChainID names the ledger in block headers.
const ChainID = "greenmesh-1"

// sinkTimeout bounds publishing one block to the sinks.
const sinkTimeout = 5 * time.Second

// BlockResult describes one committed operation.
type BlockResult struct {
	Height int64              `json:"height"`
	Time   time.Time          `json:"time"`
	Events []eventsink.Record `json:"events"`
}

// Execute runs fn as the next block. Callers are serialised. When fn
// succeeds its writes and events are committed together; when it fails
// nothing is committed and the height does not move.
func (app *App) Execute(op string, fn func(ctx sdk.Context) error) (BlockResult, error) {
	start := time.Now()
	res, err := app.execute(op, fn, false)
	app.metrics.observe(op, err, time.Since(start))
	if err != nil {
		app.logger.Debug("operation rejected", "op", op, "kind", errkind.Of(err).String(), "error", err)
		return BlockResult{}, err
	}
	app.publish(res)
	return res, nil
}

func (app *App) execute(op string, fn func(ctx sdk.Context) error, genesis bool) (BlockResult, error) {
	app.mu.Lock()
	defer app.mu.Unlock()

	switch {
	case app.closed:
		return BlockResult{}, ErrClosed
	case genesis && app.height > 0:
		return BlockResult{}, ErrAlreadyInitialized
	case !genesis && app.height == 0:
		return BlockResult{}, ErrNotInitialized
	}

	height := app.height + 1
	blockTime := app.nextBlockTime()

	branch := app.cms.CacheMultiStore()
	ctx := sdk.NewContext(branch, cmtproto.Header{ChainID: ChainID, Height: height, Time: blockTime}, false, app.logger).
		WithEventManager(sdk.NewEventManager())

	if err := fn(ctx); err != nil {
		return BlockResult{}, err
	}
	if app.checkInvariants {
		if err := app.assertInvariants(ctx); err != nil {
			app.logger.Error("refusing to commit block", "op", op, "height", height, "error", err)
			return BlockResult{}, err
		}
	}

	records := eventsink.FromEvents(height, blockTime, op, ctx.EventManager().Events())
	if err := app.writeBlock(ctx, head{Height: height, Time: blockTime}, records); err != nil {
		return BlockResult{}, err
	}
	branch.Write()
	app.cms.Commit()

	app.height = height
	app.lastBlockTime = blockTime
	app.metrics.Height.Set(float64(height))
	app.refreshMetrics()
	return BlockResult{Height: height, Time: blockTime, Events: records}, nil
}

// refreshMetrics republishes the keeper state gauges from the last commit.
func (app *App) refreshMetrics() {
	ctx := app.readContext()
	app.Registry.RefreshMetrics(ctx)
	app.Scheduler.RefreshMetrics(ctx)
}

// nextBlockTime keeps block times strictly increasing even when the wall
// clock stalls or steps back.
func (app *App) nextBlockTime() time.Time {
	t := app.clock().UTC()
	if !app.lastBlockTime.IsZero() && !t.After(app.lastBlockTime) {
		t = app.lastBlockTime.Add(time.Millisecond)
	}
	return t
}

func (app *App) publish(res BlockResult) {
	if len(res.Events) == 0 {
		return
	}
	app.mu.RLock()
	sinks := app.sinks
	app.mu.RUnlock()
	if len(sinks) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), sinkTimeout)
	defer cancel()
	if err := sinks.Publish(ctx, res.Events); err != nil {
		app.metrics.SinkFailures.Inc()
		app.logger.Error("publish events", "height", res.Height, "error", err)
	}
}

// Query runs fn against a throwaway branch of the last commit. Writes made
// by fn are discarded.
func (app *App) Query(fn func(ctx sdk.Context) error) error {
	app.mu.RLock()
	defer app.mu.RUnlock()
	return fn(app.readContext())
}

func (app *App) readContext() sdk.Context {
	header := cmtproto.Header{ChainID: ChainID, Height: app.height, Time: app.lastBlockTime}
	return sdk.NewContext(app.cms.CacheMultiStore(), header, false, app.logger).
		WithEventManager(sdk.NewEventManager())
}
