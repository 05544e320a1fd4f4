package keeper

import (
	"context"

	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/greenmesh/greenmesh/x/registry/types"
)

// InitGenesis initializes the registry module's state from a genesis state.
// The active index and aggregates are rebuilt from the node list; the module
// account must already hold the listed stake.
func (k Keeper) InitGenesis(ctx context.Context, gs types.GenesisState) error {
	if err := gs.Validate(); err != nil {
		return err
	}
	if err := k.SetParams(ctx, gs.Params); err != nil {
		return err
	}
	for _, p := range gs.Profiles {
		if err := k.setDeviceProfile(ctx, p); err != nil {
			return err
		}
	}
	for _, a := range gs.Tombstones {
		k.tombstone(ctx, sdk.MustAccAddressFromBech32(a))
	}

	agg := types.NewAggregates()
	for _, n := range gs.Nodes {
		if err := k.SetNode(ctx, n); err != nil {
			return err
		}
		if !n.Slashed {
			k.addToIndex(ctx, sdk.MustAccAddressFromBech32(n.Address))
		}
		k.adjustDeviceTypeCount(ctx, n.DeviceType, 1)
		agg.TotalNodes++
		agg.TotalStaked = agg.TotalStaked.Add(n.Stake)
		agg.TotalComputePower += n.Capabilities.ComputePower()
	}

	store := k.getStore(ctx)
	var maxID uint64
	for _, r := range gs.SlashRecords {
		agg.TotalSlashed = agg.TotalSlashed.Add(r.Amount)
		if err := setJSON(store, SlashRecordKey(r.ID), r); err != nil {
			return err
		}
		if r.ID > maxID {
			maxID = r.ID
		}
	}
	store.Set(NextSlashIDKey, GetUint64Bytes(maxID))

	if gs.Paused {
		store.Set(PausedKey, []byte{1})
	}
	return k.setAggregates(ctx, agg)
}

// ExportGenesis returns the registry module's exported genesis.
func (k Keeper) ExportGenesis(ctx context.Context) (*types.GenesisState, error) {
	params, err := k.GetParams(ctx)
	if err != nil {
		return nil, err
	}
	profiles, err := k.GetDeviceProfiles(ctx)
	if err != nil {
		return nil, err
	}
	nodes, err := k.GetNodes(ctx)
	if err != nil {
		return nil, err
	}
	records, err := k.GetSlashRecords(ctx)
	if err != nil {
		return nil, err
	}

	var tombstones []string
	for _, addr := range k.Tombstones(ctx) {
		tombstones = append(tombstones, addr.String())
	}

	return &types.GenesisState{
		Params:       params,
		Profiles:     profiles,
		Nodes:        nodes,
		Tombstones:   tombstones,
		SlashRecords: records,
		Paused:       k.IsPaused(ctx),
	}, nil
}
