package keeper

import (
	"context"
	"fmt"

	"cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/greenmesh/greenmesh/x/scheduler/types"
	"github.com/greenmesh/greenmesh/x/shared/access"
)

// SettleJob pays a completed job's node exactly once. The client or a
// validator may settle a Completed job; a Disputed job needs a validator.
func (k Keeper) SettleJob(ctx context.Context, caller sdk.AccAddress, id uint64) error {
	return k.runAtomic(ctx, func(ctx sdk.Context) error {
		job, err := k.GetJob(ctx, id)
		if err != nil {
			return err
		}
		if job.Settled {
			return types.ErrAlreadySettled.Wrapf("job %d", id)
		}

		isValidator := k.policy.HasRole(ctx, access.RoleValidator, caller)
		if caller.String() != job.Client && !isValidator {
			return types.ErrNotJobParticipant.Wrapf("%s cannot settle job %d", caller, id)
		}
		switch job.Status {
		case types.JobStatusCompleted:
		case types.JobStatusDisputed:
			if !isValidator {
				return access.ErrUnauthorized.Wrapf("disputed job %d needs a validator", id)
			}
		default:
			return types.ErrInvalidJobStatus.Wrapf("job %d is %s", id, job.Status)
		}

		job.Settled = true
		job.SettledAt = ctx.BlockTime()
		if err := k.setJob(ctx, job); err != nil {
			return err
		}
		if err := k.payout(ctx, job); err != nil {
			return err
		}

		ctx.EventManager().EmitEvent(
			sdk.NewEvent(
				types.EventTypeJobSettled,
				sdk.NewAttribute(types.AttributeKeyJobID, fmt.Sprintf("%d", id)),
				sdk.NewAttribute(types.AttributeKeyPayee, job.AssignedNode),
				sdk.NewAttribute(types.AttributeKeyAmount, job.Payment.String()),
				sdk.NewAttribute(types.AttributeKeyRail, string(job.Rail)),
				sdk.NewAttribute(types.AttributeKeyActor, caller.String()),
			),
		)
		k.metrics.JobsSettled.WithLabelValues(string(job.Rail)).Inc()
		return nil
	})
}

// lockPayment takes custody of a new job's payment on its rail.
func (k Keeper) lockPayment(ctx context.Context, client sdk.AccAddress, job types.Job) error {
	release, err := k.guard.Enter(payoutScope)
	if err != nil {
		return err
	}
	defer release()

	switch job.Rail {
	case types.RailEscrow:
		if err := k.escrow.CreateEscrow(ctx, ModuleAddress(), job.ID, client, job.Payment); err != nil {
			return types.ErrEscrowFailed.Wrapf("create escrow for job %d: %v", job.ID, err)
		}
	default:
		if err := k.bank.SendCoinsFromAccountToModule(ctx, client, types.ModuleName, k.coins(ctx, job.Payment)); err != nil {
			return types.ErrPaymentFailed.Wrapf("lock payment for job %d: %v", job.ID, err)
		}
	}
	return nil
}

func (k Keeper) payout(ctx context.Context, job types.Job) error {
	release, err := k.guard.Enter(payoutScope)
	if err != nil {
		return err
	}
	defer release()

	node := sdk.MustAccAddressFromBech32(job.AssignedNode)
	switch job.Rail {
	case types.RailEscrow:
		if err := k.escrow.Release(ctx, ModuleAddress(), job.ID, node); err != nil {
			return types.ErrEscrowFailed.Wrapf("release escrow of job %d: %v", job.ID, err)
		}
	default:
		if err := k.bank.SendCoinsFromModuleToAccount(ctx, types.ModuleName, node, k.coins(ctx, job.Payment)); err != nil {
			return types.ErrPaymentFailed.Wrapf("pay job %d: %v", job.ID, err)
		}
	}
	return nil
}

func (k Keeper) refund(ctx context.Context, job types.Job) error {
	release, err := k.guard.Enter(payoutScope)
	if err != nil {
		return err
	}
	defer release()

	switch job.Rail {
	case types.RailEscrow:
		if err := k.escrow.Refund(ctx, ModuleAddress(), job.ID); err != nil {
			return types.ErrEscrowFailed.Wrapf("refund escrow of job %d: %v", job.ID, err)
		}
	default:
		client := sdk.MustAccAddressFromBech32(job.Client)
		if err := k.bank.SendCoinsFromModuleToAccount(ctx, types.ModuleName, client, k.coins(ctx, job.Payment)); err != nil {
			return types.ErrPaymentFailed.Wrapf("refund job %d: %v", job.ID, err)
		}
	}
	return nil
}

// lockedPayments sums the direct-rail payments the module account still owes.
func (k Keeper) lockedPayments(ctx context.Context) math.Int {
	total := math.ZeroInt()
	_ = k.IterateJobs(ctx, func(job types.Job) (bool, error) {
		if job.Rail == types.RailDirect && !job.Settled && job.Status != types.JobStatusCancelled {
			total = total.Add(job.Payment)
		}
		return false, nil
	})
	return total
}
