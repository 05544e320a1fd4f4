package keeper

import (
	"context"
	"fmt"
	"time"

	"cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/greenmesh/greenmesh/x/scheduler/types"
	"github.com/greenmesh/greenmesh/x/shared/access"
	"github.com/greenmesh/greenmesh/x/shared/besteffort"
)

// CreateJob validates spec, locks its payment on the chosen rail and queues
// the job. The id is consumed only when creation succeeds.
func (k Keeper) CreateJob(ctx context.Context, client sdk.AccAddress, spec types.JobSpec) (uint64, error) {
	var id uint64
	err := k.runAtomic(ctx, func(ctx sdk.Context) error {
		if err := k.requireNotPaused(ctx); err != nil {
			return err
		}
		params := k.GetParams(ctx)
		if err := spec.ValidateBasic(params); err != nil {
			return err
		}
		now := ctx.BlockTime()
		if !spec.Deadline.After(now) {
			return types.ErrInvalidDeadline.Wrap("deadline must be in the future")
		}
		if latest := now.Add(time.Duration(params.MaxJobDurationSeconds) * time.Second); spec.Deadline.After(latest) {
			return types.ErrInvalidDeadline.Wrapf("deadline beyond %s", latest.UTC().Format(time.RFC3339))
		}
		if spec.Rail == types.RailEscrow && k.escrow == nil {
			return types.ErrInvalidRail.Wrap("no escrow custodian configured")
		}

		id = k.NextJobID(ctx)
		job := types.Job{
			ID:          id,
			Client:      client.String(),
			JobType:     spec.JobType,
			Priority:    spec.Priority,
			Resources:   spec.Resources,
			Payment:     spec.Payment,
			Rail:        spec.Rail,
			CreatedAt:   now,
			Deadline:    spec.Deadline,
			ContentRef:  spec.ContentRef,
			Status:      types.JobStatusCreated,
			PreferGreen: spec.PreferGreen,
			QuotedPrice: math.ZeroInt(),
		}
		if err := k.lockPayment(ctx, client, job); err != nil {
			return err
		}
		if err := k.setJob(ctx, job); err != nil {
			return err
		}
		k.setNextJobID(ctx, id+1)
		k.indexJob(ctx, job)

		ctx.EventManager().EmitEvent(
			sdk.NewEvent(
				types.EventTypeJobCreated,
				sdk.NewAttribute(types.AttributeKeyJobID, fmt.Sprintf("%d", id)),
				sdk.NewAttribute(types.AttributeKeyClient, job.Client),
				sdk.NewAttribute(types.AttributeKeyJobType, job.JobType),
				sdk.NewAttribute(types.AttributeKeyPriority, job.Priority.String()),
				sdk.NewAttribute(types.AttributeKeyPayment, job.Payment.String()),
				sdk.NewAttribute(types.AttributeKeyRail, string(job.Rail)),
				sdk.NewAttribute(types.AttributeKeyDeadline, job.Deadline.UTC().Format(time.RFC3339)),
				sdk.NewAttribute(types.AttributeKeyPreferGreen, fmt.Sprintf("%t", job.PreferGreen)),
			),
		)

		k.runner.Run(ctx, "request_prediction", besteffort.SeverityLow, func(ctx sdk.Context) error {
			return k.ai.RequestPrediction(ctx, id, job.JobType, job.Payment, job.Deadline)
		})

		k.metrics.JobsCreated.WithLabelValues(job.JobType, string(job.Rail)).Inc()
		return nil
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

// SetJobAudit turns duplicate auditing on or off for a job still waiting for
// assignment.
func (k Keeper) SetJobAudit(ctx context.Context, actor sdk.AccAddress, id uint64, enabled bool) error {
	return k.runAtomic(ctx, func(ctx sdk.Context) error {
		if err := k.policy.Require(ctx, actor, access.RoleScheduler); err != nil {
			return err
		}
		job, err := k.GetJob(ctx, id)
		if err != nil {
			return err
		}
		if job.Status != types.JobStatusCreated {
			return types.ErrInvalidJobStatus.Wrapf("job %d is %s", id, job.Status)
		}
		job.AuditEnabled = enabled
		if err := k.setJob(ctx, job); err != nil {
			return err
		}

		ctx.EventManager().EmitEvent(
			sdk.NewEvent(
				types.EventTypeJobAuditToggled,
				sdk.NewAttribute(types.AttributeKeyJobID, fmt.Sprintf("%d", id)),
				sdk.NewAttribute(types.AttributeKeyEnabled, fmt.Sprintf("%t", enabled)),
			),
		)
		return nil
	})
}

// AssignJob picks the best-scoring node for a waiting job and, when auditing
// is enabled, the best remaining node as auditor.
func (k Keeper) AssignJob(ctx context.Context, actor sdk.AccAddress, id uint64) error {
	return k.runAtomic(ctx, func(ctx sdk.Context) error {
		if err := k.policy.Require(ctx, actor, access.RoleScheduler); err != nil {
			return err
		}
		if err := k.requireNotPaused(ctx); err != nil {
			return err
		}
		job, err := k.GetJob(ctx, id)
		if err != nil {
			return err
		}
		if job.Status != types.JobStatusCreated {
			return types.ErrInvalidJobStatus.Wrapf("job %d is %s", id, job.Status)
		}
		if !ctx.BlockTime().Before(job.Deadline) {
			return types.ErrDeadlinePassed.Wrapf("job %d deadline %s", id, job.Deadline.UTC().Format(time.RFC3339))
		}
		if job.Rail == types.RailEscrow && !k.escrow.IsFunded(ctx, id) {
			return types.ErrEscrowNotFunded.Wrapf("job %d", id)
		}

		cands, err := k.rankCandidates(ctx, job)
		if err != nil {
			return err
		}
		best := SelectBest(cands)
		if best < 0 {
			k.metrics.NoSuitableNode.Inc()
			return types.ErrNoSuitableNode.Wrapf("job %d", id)
		}

		job.QuotedPrice = k.quote(ctx, job)
		ctx.EventManager().EmitEvent(
			sdk.NewEvent(
				types.EventTypeJobPriceComputed,
				sdk.NewAttribute(types.AttributeKeyJobID, fmt.Sprintf("%d", id)),
				sdk.NewAttribute(types.AttributeKeyPayment, job.Payment.String()),
				sdk.NewAttribute(types.AttributeKeyPrice, job.QuotedPrice.String()),
			),
		)

		winner := cands[best]
		job.Status = types.JobStatusAssigned
		job.AssignedNode = winner.Node.Address
		job.AssignedAt = ctx.BlockTime()
		job.PrimaryReserved = k.reserve(ctx, winner.Addr)
		k.addNodeJob(ctx, job.AssignedNode, id)

		auditNode := ""
		if job.AuditEnabled {
			if i := SelectBest(cands, best); i >= 0 && k.reserve(ctx, cands[i].Addr) {
				auditNode = cands[i].Node.Address
				job.Audit = &types.Audit{Node: auditNode}
				k.addNodeJob(ctx, auditNode, id)
			}
		}

		k.dequeue(ctx, job)
		if err := k.setJob(ctx, job); err != nil {
			return err
		}

		ctx.EventManager().EmitEvent(
			sdk.NewEvent(
				types.EventTypeJobAssigned,
				sdk.NewAttribute(types.AttributeKeyJobID, fmt.Sprintf("%d", id)),
				sdk.NewAttribute(types.AttributeKeyNode, job.AssignedNode),
				sdk.NewAttribute(types.AttributeKeyScore, fmt.Sprintf("%d", winner.Score)),
				sdk.NewAttribute(types.AttributeKeyAuditNode, auditNode),
			),
		)
		k.metrics.JobsAssigned.WithLabelValues(job.JobType, fmt.Sprintf("%t", auditNode != "")).Inc()
		return nil
	})
}

// StartJob lets the assigned node acknowledge that it is executing the job.
func (k Keeper) StartJob(ctx context.Context, node sdk.AccAddress, id uint64) error {
	return k.runAtomic(ctx, func(ctx sdk.Context) error {
		if err := k.requireNotPaused(ctx); err != nil {
			return err
		}
		job, err := k.GetJob(ctx, id)
		if err != nil {
			return err
		}
		if job.AssignedNode != node.String() {
			return types.ErrNotJobParticipant.Wrapf("%s is not assigned to job %d", node, id)
		}
		if job.Status != types.JobStatusAssigned {
			return types.ErrInvalidJobStatus.Wrapf("job %d is %s", id, job.Status)
		}
		job.Status = types.JobStatusInProgress
		if err := k.setJob(ctx, job); err != nil {
			return err
		}

		ctx.EventManager().EmitEvent(
			sdk.NewEvent(
				types.EventTypeJobStarted,
				sdk.NewAttribute(types.AttributeKeyJobID, fmt.Sprintf("%d", id)),
				sdk.NewAttribute(types.AttributeKeyNode, job.AssignedNode),
			),
		)
		return nil
	})
}

// CancelJob refunds a job that has not produced a result yet and frees every
// task slot it holds.
func (k Keeper) CancelJob(ctx context.Context, caller sdk.AccAddress, id uint64, reason string) error {
	return k.runAtomic(ctx, func(ctx sdk.Context) error {
		job, err := k.GetJob(ctx, id)
		if err != nil {
			return err
		}
		client := sdk.MustAccAddressFromBech32(job.Client)
		if err := k.policy.RequireSelfOr(ctx, caller, client, access.RoleAdmin); err != nil {
			return err
		}
		if uint32(len(reason)) > k.GetParams(ctx).MaxCancelReasonLength {
			return types.ErrInvalidReason.Wrapf("reason exceeds %d bytes", k.GetParams(ctx).MaxCancelReasonLength)
		}
		from := job.Status
		if from != types.JobStatusCreated && from != types.JobStatusAssigned {
			return types.ErrInvalidJobStatus.Wrapf("job %d is %s", id, job.Status)
		}

		job.Status = types.JobStatusCancelled
		job.CancelledAt = ctx.BlockTime()
		job.CancelReason = reason
		if from == types.JobStatusCreated {
			k.dequeue(ctx, job)
		}
		if job.AssignedNode != "" {
			k.removeNodeJob(ctx, job.AssignedNode, id)
			if job.PrimaryReserved {
				k.release(ctx, sdk.MustAccAddressFromBech32(job.AssignedNode))
				job.PrimaryReserved = false
			}
		}
		if job.AuditPending() {
			k.removeNodeJob(ctx, job.Audit.Node, id)
			k.release(ctx, sdk.MustAccAddressFromBech32(job.Audit.Node))
		}
		if err := k.setJob(ctx, job); err != nil {
			return err
		}
		if err := k.refund(ctx, job); err != nil {
			return err
		}

		ctx.EventManager().EmitEvent(
			sdk.NewEvent(
				types.EventTypeJobCancelled,
				sdk.NewAttribute(types.AttributeKeyJobID, fmt.Sprintf("%d", id)),
				sdk.NewAttribute(types.AttributeKeyActor, caller.String()),
				sdk.NewAttribute(types.AttributeKeyAmount, job.Payment.String()),
				sdk.NewAttribute(types.AttributeKeyReason, reason),
			),
		)
		k.metrics.JobsCancelled.WithLabelValues(from.String()).Inc()
		return nil
	})
}

// reserve takes a task slot on node, reporting whether it did. A full node is
// not a failure; a registry error is logged and swallowed.
func (k Keeper) reserve(ctx sdk.Context, node sdk.AccAddress) bool {
	var reserved bool
	k.runner.Run(ctx, "reserve_capacity", besteffort.SeverityMedium, func(ctx sdk.Context) error {
		ok, err := k.registry.TryReserveCapacity(ctx, ModuleAddress(), node)
		if err != nil {
			return err
		}
		reserved = ok
		return nil
	})
	return reserved
}

func (k Keeper) release(ctx sdk.Context, node sdk.AccAddress) {
	k.runner.Run(ctx, "release_capacity", besteffort.SeverityHigh, func(ctx sdk.Context) error {
		return k.registry.ReleaseCapacity(ctx, ModuleAddress(), node)
	})
}

func (k Keeper) reputation(ctx sdk.Context, node sdk.AccAddress, success bool) {
	k.runner.Run(ctx, "update_reputation", besteffort.SeverityMedium, func(ctx sdk.Context) error {
		return k.registry.UpdateReputation(ctx, ModuleAddress(), node, success)
	})
}
