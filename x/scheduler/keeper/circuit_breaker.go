package keeper

import (
	"context"

	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/greenmesh/greenmesh/x/scheduler/types"
	"github.com/greenmesh/greenmesh/x/shared/access"
)

// IsPaused reports whether intake and assignment are halted.
func (k Keeper) IsPaused(ctx context.Context) bool {
	bz := k.getStore(ctx).Get(PausedKey)
	return len(bz) == 1 && bz[0] == 1
}

// Pause halts job creation, assignment and start. Completion, settlement and
// cancellation stay open so locked payments can always leave.
func (k Keeper) Pause(ctx context.Context, actor sdk.AccAddress, reason string) error {
	if err := k.policy.Require(ctx, actor, access.RoleAdmin); err != nil {
		return err
	}
	if k.IsPaused(ctx) {
		return types.ErrAlreadyPaused
	}

	store := k.getStore(ctx)
	store.Set(PausedKey, []byte{1})
	store.Set(PauseReasonKey, []byte(reason))

	k.Logger(ctx).Info("scheduler paused", "actor", actor.String(), "reason", reason)
	sdk.UnwrapSDKContext(ctx).EventManager().EmitEvent(
		sdk.NewEvent(
			types.EventTypeModulePaused,
			sdk.NewAttribute(types.AttributeKeyModule, types.ModuleName),
			sdk.NewAttribute(types.AttributeKeyActor, actor.String()),
			sdk.NewAttribute(types.AttributeKeyReason, reason),
		),
	)
	return nil
}

// Resume lifts a pause.
func (k Keeper) Resume(ctx context.Context, actor sdk.AccAddress, reason string) error {
	if err := k.policy.Require(ctx, actor, access.RoleAdmin); err != nil {
		return err
	}
	if !k.IsPaused(ctx) {
		return types.ErrNotPaused
	}

	store := k.getStore(ctx)
	store.Delete(PausedKey)
	store.Delete(PauseReasonKey)

	k.Logger(ctx).Info("scheduler resumed", "actor", actor.String(), "reason", reason)
	sdk.UnwrapSDKContext(ctx).EventManager().EmitEvent(
		sdk.NewEvent(
			types.EventTypeModuleResumed,
			sdk.NewAttribute(types.AttributeKeyModule, types.ModuleName),
			sdk.NewAttribute(types.AttributeKeyActor, actor.String()),
			sdk.NewAttribute(types.AttributeKeyReason, reason),
		),
	)
	return nil
}

// PauseReason returns the reason recorded with the active pause.
func (k Keeper) PauseReason(ctx context.Context) string {
	return string(k.getStore(ctx).Get(PauseReasonKey))
}

func (k Keeper) requireNotPaused(ctx context.Context) error {
	if k.IsPaused(ctx) {
		return types.ErrSchedulerPaused.Wrap(k.PauseReason(ctx))
	}
	return nil
}
