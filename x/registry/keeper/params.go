package keeper

import (
	"context"

	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/greenmesh/greenmesh/x/registry/types"
	"github.com/greenmesh/greenmesh/x/shared/access"
)

// GetParams returns the current parameters for the registry module.
func (k Keeper) GetParams(ctx context.Context) (types.Params, error) {
	var params types.Params
	found, err := getJSON(k.getStore(ctx), ParamsKey, &params)
	if err != nil {
		return types.Params{}, err
	}
	if !found {
		return types.DefaultParams(), nil
	}
	return params, nil
}

// SetParams updates the parameters for the registry module.
func (k Keeper) SetParams(ctx context.Context, params types.Params) error {
	if err := params.Validate(); err != nil {
		return err
	}
	return setJSON(k.getStore(ctx), ParamsKey, params)
}

// UpdateParams lets an admin replace the module parameters.
func (k Keeper) UpdateParams(ctx context.Context, actor sdk.AccAddress, params types.Params) error {
	if err := k.policy.Require(ctx, actor, access.RoleAdmin); err != nil {
		return err
	}
	current, err := k.GetParams(ctx)
	if err != nil {
		return err
	}
	if current.Denom != params.Denom && k.getAggregates(ctx).TotalStaked.IsPositive() {
		return types.ErrInvalidParams.Wrap("stake denom cannot change while stake is locked")
	}
	return k.SetParams(ctx, params)
}
