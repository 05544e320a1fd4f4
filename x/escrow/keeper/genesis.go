package keeper

import (
	"context"

	"github.com/greenmesh/greenmesh/x/escrow/types"
)

// InitGenesis initializes the escrow module's state from a genesis state.
func (k Keeper) InitGenesis(ctx context.Context, gs types.GenesisState) error {
	if err := gs.Validate(); err != nil {
		return err
	}
	if err := k.SetParams(ctx, gs.Params); err != nil {
		return err
	}
	for _, r := range gs.Records {
		if err := k.setEscrow(ctx, r); err != nil {
			return err
		}
	}
	return nil
}

// ExportGenesis returns the escrow module's exported genesis.
func (k Keeper) ExportGenesis(ctx context.Context) (*types.GenesisState, error) {
	gs := &types.GenesisState{Params: k.GetParams(ctx)}
	err := k.IterateEscrows(ctx, func(r types.Record) bool {
		gs.Records = append(gs.Records, r)
		return false
	})
	return gs, err
}
