package keeper

import (
	"context"
	"encoding/hex"
	"fmt"

	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/greenmesh/greenmesh/x/scheduler/types"
)

// CompleteJob records a result from either the assigned node or the auditor.
// Once both results are in they are compared; a mismatch costs the auditor
// reputation and, before settlement, moves the job to Disputed.
func (k Keeper) CompleteJob(ctx context.Context, caller sdk.AccAddress, id uint64, resultHash []byte, resultRef string) error {
	return k.runAtomic(ctx, func(ctx sdk.Context) error {
		job, err := k.GetJob(ctx, id)
		if err != nil {
			return err
		}

		switch {
		case job.AssignedNode != "" && caller.String() == job.AssignedNode:
			err = k.completePrimary(ctx, &job, resultHash, resultRef)
		case job.Audit != nil && caller.String() == job.Audit.Node:
			err = k.submitAudit(ctx, &job, resultHash, resultRef)
		default:
			return types.ErrNotJobParticipant.Wrapf("%s on job %d", caller, id)
		}
		if err != nil {
			return err
		}
		return k.setJob(ctx, job)
	})
}

func (k Keeper) completePrimary(ctx sdk.Context, job *types.Job, resultHash []byte, resultRef string) error {
	if job.HasResult() {
		return types.ErrResultAlreadySubmitted.Wrapf("job %d", job.ID)
	}
	if !job.Status.Running() {
		return types.ErrInvalidJobStatus.Wrapf("job %d is %s", job.ID, job.Status)
	}
	if err := types.ValidateResult(resultHash, resultRef, k.GetParams(ctx)); err != nil {
		return err
	}

	job.ResultHash = resultHash
	job.ResultRef = resultRef
	job.CompletedAt = ctx.BlockTime()
	job.Status = types.JobStatusCompleted

	node := sdk.MustAccAddressFromBech32(job.AssignedNode)
	k.removeNodeJob(ctx, job.AssignedNode, job.ID)
	if job.PrimaryReserved {
		k.release(ctx, node)
		job.PrimaryReserved = false
	}
	k.reputation(ctx, node, true)

	attrs := []sdk.Attribute{
		sdk.NewAttribute(types.AttributeKeyJobID, fmt.Sprintf("%d", job.ID)),
		sdk.NewAttribute(types.AttributeKeyNode, job.AssignedNode),
		sdk.NewAttribute(types.AttributeKeyResultHash, hex.EncodeToString(resultHash)),
		sdk.NewAttribute(types.AttributeKeyResultRef, resultRef),
	}
	k.compare(ctx, job)
	if job.Audit != nil && job.Audit.Compared {
		attrs = append(attrs, sdk.NewAttribute(types.AttributeKeyAuditMatch, fmt.Sprintf("%t", job.Audit.Matched)))
	}
	ctx.EventManager().EmitEvent(sdk.NewEvent(types.EventTypeJobCompleted, attrs...))
	k.metrics.JobsCompleted.WithLabelValues(job.JobType).Inc()
	return nil
}

// submitAudit accepts the auditor's result at any point after assignment,
// including after the job settled.
func (k Keeper) submitAudit(ctx sdk.Context, job *types.Job, resultHash []byte, resultRef string) error {
	if job.Audit.Submitted {
		return types.ErrResultAlreadySubmitted.Wrapf("audit of job %d", job.ID)
	}
	if job.Status == types.JobStatusCancelled || job.Status == types.JobStatusCreated {
		return types.ErrInvalidJobStatus.Wrapf("job %d is %s", job.ID, job.Status)
	}
	if err := types.ValidateResult(resultHash, resultRef, k.GetParams(ctx)); err != nil {
		return err
	}

	job.Audit.ResultHash = resultHash
	job.Audit.ResultRef = resultRef
	job.Audit.Submitted = true
	job.Audit.SubmittedAt = ctx.BlockTime()

	k.removeNodeJob(ctx, job.Audit.Node, job.ID)
	k.release(ctx, sdk.MustAccAddressFromBech32(job.Audit.Node))

	attrs := []sdk.Attribute{
		sdk.NewAttribute(types.AttributeKeyJobID, fmt.Sprintf("%d", job.ID)),
		sdk.NewAttribute(types.AttributeKeyAuditNode, job.Audit.Node),
		sdk.NewAttribute(types.AttributeKeyResultHash, hex.EncodeToString(resultHash)),
		sdk.NewAttribute(types.AttributeKeyResultRef, resultRef),
	}
	k.compare(ctx, job)
	if job.Audit.Compared {
		attrs = append(attrs, sdk.NewAttribute(types.AttributeKeyAuditMatch, fmt.Sprintf("%t", job.Audit.Matched)))
	}
	ctx.EventManager().EmitEvent(sdk.NewEvent(types.EventTypeJobAuditSubmitted, attrs...))
	return nil
}

// compare settles the audit outcome once both results exist. It runs at most
// once per job.
func (k Keeper) compare(ctx sdk.Context, job *types.Job) {
	if job.Audit == nil || job.Audit.Compared {
		return
	}
	matched, ok := job.AuditMatch()
	if !ok {
		return
	}
	job.Audit.Compared = true
	job.Audit.Matched = matched
	k.metrics.AuditOutcomes.WithLabelValues(fmt.Sprintf("%t", matched)).Inc()
	if matched {
		return
	}

	// Only the auditor is penalised; which side was wrong is unknown.
	k.reputation(ctx, sdk.MustAccAddressFromBech32(job.Audit.Node), false)
	if job.Settled || job.Status != types.JobStatusCompleted {
		return
	}
	job.Status = types.JobStatusDisputed
	k.Logger(ctx).Info("audit mismatch", "job", job.ID, "node", job.AssignedNode, "auditor", job.Audit.Node)
	ctx.EventManager().EmitEvent(
		sdk.NewEvent(
			types.EventTypeJobDisputed,
			sdk.NewAttribute(types.AttributeKeyJobID, fmt.Sprintf("%d", job.ID)),
			sdk.NewAttribute(types.AttributeKeyNode, job.AssignedNode),
			sdk.NewAttribute(types.AttributeKeyAuditNode, job.Audit.Node),
		),
	)
}
