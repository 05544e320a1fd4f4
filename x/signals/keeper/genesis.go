package keeper

import (
	"context"
	"encoding/json"

	storetypes "cosmossdk.io/store/types"
	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/greenmesh/greenmesh/x/signals/types"
)

// InitGenesis initializes the signals module's state from a genesis state.
func (k Keeper) InitGenesis(ctx context.Context, gs types.GenesisState) error {
	if err := gs.Validate(); err != nil {
		return err
	}
	if err := k.SetParams(ctx, gs.Params); err != nil {
		return err
	}
	for _, c := range gs.Certificates {
		node := sdk.MustAccAddressFromBech32(c.Node)
		if err := k.set(ctx, certificateKey(node), c); err != nil {
			return err
		}
		k.getStore(ctx).Set(nonceKey(node), sdk.Uint64ToBigEndian(c.Nonce))
	}
	for _, s := range gs.Scores {
		if err := k.set(ctx, nodeScoreKey(sdk.MustAccAddressFromBech32(s.Node)), s); err != nil {
			return err
		}
	}
	for _, f := range gs.Forecasts {
		if err := k.set(ctx, forecastKey(f.JobType), f); err != nil {
			return err
		}
	}
	return nil
}

// ExportGenesis returns the signals module's exported genesis. Prediction
// requests are transient and not exported.
func (k Keeper) ExportGenesis(ctx context.Context) (*types.GenesisState, error) {
	gs := &types.GenesisState{Params: k.GetParams(ctx)}
	store := k.getStore(ctx)

	if err := iterate(store, CertificatePrefix, func(bz []byte) error {
		var c types.GreenCertificate
		if err := json.Unmarshal(bz, &c); err != nil {
			return err
		}
		gs.Certificates = append(gs.Certificates, c)
		return nil
	}); err != nil {
		return nil, err
	}
	if err := iterate(store, NodeScorePrefix, func(bz []byte) error {
		var s types.NodeScore
		if err := json.Unmarshal(bz, &s); err != nil {
			return err
		}
		gs.Scores = append(gs.Scores, s)
		return nil
	}); err != nil {
		return nil, err
	}
	if err := iterate(store, ForecastPrefix, func(bz []byte) error {
		var f types.DemandForecast
		if err := json.Unmarshal(bz, &f); err != nil {
			return err
		}
		gs.Forecasts = append(gs.Forecasts, f)
		return nil
	}); err != nil {
		return nil, err
	}
	return gs, nil
}

func iterate(store storetypes.KVStore, prefix []byte, fn func(value []byte) error) error {
	iter := storetypes.KVStorePrefixIterator(store, prefix)
	defer iter.Close()
	for ; iter.Valid(); iter.Next() {
		if err := fn(iter.Value()); err != nil {
			return err
		}
	}
	return nil
}
