package keeper

import (
	"context"

	"github.com/greenmesh/greenmesh/x/scheduler/types"
)

// InitGenesis initializes the scheduler module's state from a genesis state.
// Indexes and queues are rebuilt from the job list; locked payments must
// already sit in the module account or the escrow custodian.
func (k Keeper) InitGenesis(ctx context.Context, gs types.GenesisState) error {
	if err := gs.Validate(); err != nil {
		return err
	}
	if err := k.SetParams(ctx, gs.Params); err != nil {
		return err
	}
	for _, job := range gs.Jobs {
		if err := k.setJob(ctx, job); err != nil {
			return err
		}
		k.indexJob(ctx, job)
		if job.Status.Running() {
			k.addNodeJob(ctx, job.AssignedNode, job.ID)
		}
		if job.AuditPending() && job.Status != types.JobStatusCancelled {
			k.addNodeJob(ctx, job.Audit.Node, job.ID)
		}
	}
	k.setNextJobID(ctx, gs.NextJobID)
	if gs.Paused {
		k.getStore(ctx).Set(PausedKey, []byte{1})
	}
	return nil
}

// ExportGenesis returns the scheduler module's exported genesis.
func (k Keeper) ExportGenesis(ctx context.Context) (*types.GenesisState, error) {
	jobs, err := k.GetJobs(ctx)
	if err != nil {
		return nil, err
	}
	return &types.GenesisState{
		Params:    k.GetParams(ctx),
		Jobs:      jobs,
		NextJobID: k.NextJobID(ctx),
		Paused:    k.IsPaused(ctx),
	}, nil
}
