package keeper

import (
	"context"
	"fmt"

	"cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/greenmesh/greenmesh/x/escrow/types"
	"github.com/greenmesh/greenmesh/x/shared/access"
)

// CreateEscrow opens a pending escrow for jobID that payer must fund.
func (k Keeper) CreateEscrow(ctx context.Context, operator sdk.AccAddress, jobID uint64, payer sdk.AccAddress, amount math.Int) error {
	if err := k.policy.Require(ctx, operator, access.RoleEscrowAgent); err != nil {
		return err
	}
	if amount.IsNil() || !amount.IsPositive() {
		return types.ErrInvalidAmount.Wrap("escrow amount must be positive")
	}
	if _, err := k.GetEscrow(ctx, jobID); err == nil {
		return types.ErrEscrowExists.Wrapf("job %d", jobID)
	}

	sdkCtx := sdk.UnwrapSDKContext(ctx)
	r := types.Record{
		JobID:     jobID,
		Payer:     payer.String(),
		Amount:    amount,
		Status:    types.StatusPending,
		CreatedAt: sdkCtx.BlockTime(),
	}
	if err := k.setEscrow(ctx, r); err != nil {
		return err
	}

	sdkCtx.EventManager().EmitEvent(
		sdk.NewEvent(
			types.EventTypeEscrowCreated,
			sdk.NewAttribute(types.AttributeKeyJobID, fmt.Sprintf("%d", jobID)),
			sdk.NewAttribute(types.AttributeKeyPayer, payer.String()),
			sdk.NewAttribute(types.AttributeKeyAmount, amount.String()),
		),
	)
	return nil
}

// Fund moves the escrowed amount from the payer into custody.
func (k Keeper) Fund(ctx context.Context, payer sdk.AccAddress, jobID uint64) error {
	return k.runAtomic(ctx, func(ctx sdk.Context) error {
		r, err := k.GetEscrow(ctx, jobID)
		if err != nil {
			return err
		}
		if r.Payer != payer.String() {
			return types.ErrNotPayer.Wrapf("job %d", jobID)
		}
		if r.Status != types.StatusPending {
			return types.ErrInvalidStatus.Wrapf("job %d escrow is %s", jobID, r.Status)
		}

		r.Status = types.StatusFunded
		r.FundedAt = ctx.BlockTime()
		if err := k.setEscrow(ctx, r); err != nil {
			return err
		}
		if err := k.transferIn(ctx, payer, r.Amount); err != nil {
			return err
		}

		ctx.EventManager().EmitEvent(
			sdk.NewEvent(
				types.EventTypeEscrowFunded,
				sdk.NewAttribute(types.AttributeKeyJobID, fmt.Sprintf("%d", jobID)),
				sdk.NewAttribute(types.AttributeKeyPayer, r.Payer),
				sdk.NewAttribute(types.AttributeKeyAmount, r.Amount.String()),
			),
		)
		return nil
	})
}

// IsFunded reports whether jobID's escrow holds its funds.
func (k Keeper) IsFunded(ctx context.Context, jobID uint64) bool {
	r, err := k.GetEscrow(ctx, jobID)
	return err == nil && r.Status == types.StatusFunded
}

// Release pays a funded escrow out to payee.
func (k Keeper) Release(ctx context.Context, operator sdk.AccAddress, jobID uint64, payee sdk.AccAddress) error {
	return k.runAtomic(ctx, func(ctx sdk.Context) error {
		if err := k.policy.Require(ctx, operator, access.RoleEscrowAgent); err != nil {
			return err
		}
		r, err := k.GetEscrow(ctx, jobID)
		if err != nil {
			return err
		}
		if r.Status != types.StatusFunded {
			return types.ErrInvalidStatus.Wrapf("job %d escrow is %s", jobID, r.Status)
		}

		// state first, funds second
		r.Status = types.StatusReleased
		r.Payee = payee.String()
		r.ClosedAt = ctx.BlockTime()
		if err := k.setEscrow(ctx, r); err != nil {
			return err
		}
		if err := k.transferOut(ctx, payee, r.Amount); err != nil {
			return err
		}

		ctx.EventManager().EmitEvent(
			sdk.NewEvent(
				types.EventTypeEscrowReleased,
				sdk.NewAttribute(types.AttributeKeyJobID, fmt.Sprintf("%d", jobID)),
				sdk.NewAttribute(types.AttributeKeyPayee, r.Payee),
				sdk.NewAttribute(types.AttributeKeyAmount, r.Amount.String()),
			),
		)
		return nil
	})
}

// Refund returns a funded escrow to its payer, or cancels a pending one.
func (k Keeper) Refund(ctx context.Context, operator sdk.AccAddress, jobID uint64) error {
	return k.runAtomic(ctx, func(ctx sdk.Context) error {
		if err := k.policy.Require(ctx, operator, access.RoleEscrowAgent); err != nil {
			return err
		}
		r, err := k.GetEscrow(ctx, jobID)
		if err != nil {
			return err
		}

		switch r.Status {
		case types.StatusPending:
			r.Status = types.StatusCancelled
			r.ClosedAt = ctx.BlockTime()
			if err := k.setEscrow(ctx, r); err != nil {
				return err
			}
			ctx.EventManager().EmitEvent(
				sdk.NewEvent(
					types.EventTypeEscrowCancelled,
					sdk.NewAttribute(types.AttributeKeyJobID, fmt.Sprintf("%d", jobID)),
				),
			)
			return nil

		case types.StatusFunded:
			r.Status = types.StatusRefunded
			r.ClosedAt = ctx.BlockTime()
			if err := k.setEscrow(ctx, r); err != nil {
				return err
			}
			payer, err := sdk.AccAddressFromBech32(r.Payer)
			if err != nil {
				return err
			}
			if err := k.transferOut(ctx, payer, r.Amount); err != nil {
				return err
			}
			ctx.EventManager().EmitEvent(
				sdk.NewEvent(
					types.EventTypeEscrowRefunded,
					sdk.NewAttribute(types.AttributeKeyJobID, fmt.Sprintf("%d", jobID)),
					sdk.NewAttribute(types.AttributeKeyPayer, r.Payer),
					sdk.NewAttribute(types.AttributeKeyAmount, r.Amount.String()),
				),
			)
			return nil

		default:
			return types.ErrInvalidStatus.Wrapf("job %d escrow is %s", jobID, r.Status)
		}
	})
}

func (k Keeper) coins(ctx context.Context, amount math.Int) sdk.Coins {
	return sdk.NewCoins(sdk.NewCoin(k.GetParams(ctx).Denom, amount))
}

func (k Keeper) transferIn(ctx context.Context, from sdk.AccAddress, amount math.Int) error {
	release, err := k.guard.Enter("escrow/transfer")
	if err != nil {
		return err
	}
	defer release()
	if err := k.bankKeeper.SendCoinsFromAccountToModule(ctx, from, types.ModuleName, k.coins(ctx, amount)); err != nil {
		return types.ErrTransfer.Wrapf("fund: %v", err)
	}
	return nil
}

func (k Keeper) transferOut(ctx context.Context, to sdk.AccAddress, amount math.Int) error {
	release, err := k.guard.Enter("escrow/transfer")
	if err != nil {
		return err
	}
	defer release()
	if err := k.bankKeeper.SendCoinsFromModuleToAccount(ctx, types.ModuleName, to, k.coins(ctx, amount)); err != nil {
		return types.ErrTransfer.Wrapf("payout: %v", err)
	}
	return nil
}
