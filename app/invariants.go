package app

import (
	sdk "github.com/cosmos/cosmos-sdk/types"

	escrowkeeper "github.com/greenmesh/greenmesh/x/escrow/keeper"
	registrykeeper "github.com/greenmesh/greenmesh/x/registry/keeper"
	schedulerkeeper "github.com/greenmesh/greenmesh/x/scheduler/keeper"
)

type namedInvariant struct {
	module string
	route  string
	check  sdk.Invariant
}

// RegisterRoute implements sdk.InvariantRegistry.
func (app *App) RegisterRoute(moduleName, route string, invar sdk.Invariant) {
	app.invariants = append(app.invariants, namedInvariant{module: moduleName, route: route, check: invar})
}

var _ sdk.InvariantRegistry = (*App)(nil)

func (app *App) registerInvariants() {
	registrykeeper.RegisterInvariants(app, *app.Registry)
	escrowkeeper.RegisterInvariants(app, *app.Escrow)
	schedulerkeeper.RegisterInvariants(app, *app.Scheduler)
}

func (app *App) assertInvariants(ctx sdk.Context) error {
	for _, inv := range app.invariants {
		if msg, broken := inv.check(ctx); broken {
			app.metrics.InvariantBreaks.WithLabelValues(inv.module, inv.route).Inc()
			return ErrInvariantBroken.Wrap(msg)
		}
	}
	return nil
}

// CheckInvariants runs every registered invariant against the last commit.
func (app *App) CheckInvariants() error {
	return app.Query(app.assertInvariants)
}
