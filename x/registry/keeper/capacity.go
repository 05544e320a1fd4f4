package keeper

import (
	"context"
	"fmt"

	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/greenmesh/greenmesh/x/registry/types"
	"github.com/greenmesh/greenmesh/x/shared/access"
)

// HasCapacity reports whether addr could take one more task right now.
// Power-saving nodes never have capacity.
func (k Keeper) HasCapacity(ctx context.Context, addr sdk.AccAddress) bool {
	node, err := k.GetNode(ctx, addr)
	if err != nil {
		return false
	}
	ok, err := k.hasCapacity(ctx, node)
	return err == nil && ok
}

func (k Keeper) hasCapacity(ctx context.Context, node types.Node) (bool, error) {
	if node.Slashed || node.PowerSaving {
		return false, nil
	}
	profile, err := k.GetDeviceProfile(ctx, node.DeviceType)
	if err != nil {
		return false, err
	}
	return node.ActiveTasks < profile.MaxConcurrentTasks, nil
}

// TryReserveCapacity takes one task slot on addr. It returns false without
// error when the node is full or power saving.
func (k Keeper) TryReserveCapacity(ctx context.Context, actor, addr sdk.AccAddress) (bool, error) {
	var reserved bool
	err := k.runAtomic(ctx, func(ctx sdk.Context) error {
		if err := k.policy.Require(ctx, actor, access.RoleCapacityManager); err != nil {
			return err
		}
		node, err := k.GetNode(ctx, addr)
		if err != nil {
			return err
		}
		ok, err := k.hasCapacity(ctx, node)
		if err != nil || !ok {
			return err
		}
		node.ActiveTasks++
		node.LastActiveAt = ctx.BlockTime()
		if err := k.SetNode(ctx, node); err != nil {
			return err
		}
		reserved = true
		return nil
	})
	return reserved, err
}

// ReleaseCapacity returns one task slot on addr. Releasing an idle node is a no-op.
func (k Keeper) ReleaseCapacity(ctx context.Context, actor, addr sdk.AccAddress) error {
	return k.runAtomic(ctx, func(ctx sdk.Context) error {
		if err := k.policy.Require(ctx, actor, access.RoleCapacityManager); err != nil {
			return err
		}
		node, err := k.GetNode(ctx, addr)
		if err != nil {
			return err
		}
		if node.ActiveTasks == 0 {
			return nil
		}
		node.ActiveTasks--
		return k.SetNode(ctx, node)
	})
}

// Ping records node activity.
func (k Keeper) Ping(ctx context.Context, addr sdk.AccAddress) error {
	return k.runAtomic(ctx, func(ctx sdk.Context) error {
		if err := k.requireNotPaused(ctx); err != nil {
			return err
		}
		node, err := k.GetNode(ctx, addr)
		if err != nil {
			return err
		}
		node.LastActiveAt = ctx.BlockTime()
		return k.SetNode(ctx, node)
	})
}

// SetPowerSaving toggles power-saving mode on a mobile node.
func (k Keeper) SetPowerSaving(ctx context.Context, addr sdk.AccAddress, enabled bool) error {
	return k.runAtomic(ctx, func(ctx sdk.Context) error {
		if err := k.requireNotPaused(ctx); err != nil {
			return err
		}
		node, err := k.GetNode(ctx, addr)
		if err != nil {
			return err
		}
		profile, err := k.GetDeviceProfile(ctx, node.DeviceType)
		if err != nil {
			return err
		}
		if profile.Class != types.DeviceClassMobile {
			return types.ErrPowerSavingUnsupported.Wrapf("%s is %s", node.DeviceType, profile.Class)
		}

		node.PowerSaving = enabled
		node.LastActiveAt = ctx.BlockTime()
		if err := k.SetNode(ctx, node); err != nil {
			return err
		}

		ctx.EventManager().EmitEvent(
			sdk.NewEvent(
				types.EventTypePowerSavingChanged,
				sdk.NewAttribute(types.AttributeKeyNode, addr.String()),
				sdk.NewAttribute(types.AttributeKeyPowerSaving, fmt.Sprintf("%t", enabled)),
			),
		)
		return nil
	})
}
