package keeper

import (
	"context"
	"encoding/json"
	"fmt"

	storetypes "cosmossdk.io/store/types"
	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/greenmesh/greenmesh/x/scheduler/types"
)

// GetJob returns the job with id.
func (k Keeper) GetJob(ctx context.Context, id uint64) (types.Job, error) {
	bz := k.getStore(ctx).Get(JobKey(id))
	if bz == nil {
		return types.Job{}, types.ErrJobNotFound.Wrapf("job %d", id)
	}
	var job types.Job
	if err := json.Unmarshal(bz, &job); err != nil {
		return types.Job{}, fmt.Errorf("unmarshal job %d: %w", id, err)
	}
	return job, nil
}

// HasJob reports whether a job with id exists.
func (k Keeper) HasJob(ctx context.Context, id uint64) bool {
	return k.getStore(ctx).Has(JobKey(id))
}

func (k Keeper) setJob(ctx context.Context, job types.Job) error {
	bz, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job %d: %w", job.ID, err)
	}
	k.getStore(ctx).Set(JobKey(job.ID), bz)
	return nil
}

// NextJobID returns the id the next created job will receive.
func (k Keeper) NextJobID(ctx context.Context) uint64 {
	bz := k.getStore(ctx).Get(NextJobIDKey)
	if bz == nil {
		return 1
	}
	return GetUint64FromBytes(bz)
}

func (k Keeper) setNextJobID(ctx context.Context, id uint64) {
	k.getStore(ctx).Set(NextJobIDKey, GetUint64Bytes(id))
}

// indexJob writes the permanent client and type index entries and, for a
// waiting job, its queue entries.
func (k Keeper) indexJob(ctx context.Context, job types.Job) {
	store := k.getStore(ctx)
	client := sdk.MustAccAddressFromBech32(job.Client)
	store.Set(ClientIndexKey(client, job.ID), []byte{})
	store.Set(TypeIndexKey(job.JobType, job.ID), []byte{})
	if job.Status == types.JobStatusCreated {
		store.Set(PendingQueueKey(job.Priority, job.ID), []byte{})
		if job.PreferGreen {
			store.Set(GreenQueueKey(job.ID), []byte{})
		}
		k.setQueueDepth(ctx, k.QueueDepth(ctx)+1)
	}
}

// dequeue removes a job that left Created from the waiting queues.
func (k Keeper) dequeue(ctx context.Context, job types.Job) {
	store := k.getStore(ctx)
	store.Delete(PendingQueueKey(job.Priority, job.ID))
	store.Delete(GreenQueueKey(job.ID))
	if depth := k.QueueDepth(ctx); depth > 0 {
		k.setQueueDepth(ctx, depth-1)
	}
}

// QueueDepth returns the number of jobs waiting in the pending queue.
func (k Keeper) QueueDepth(ctx context.Context) uint64 {
	bz := k.getStore(ctx).Get(QueueDepthKey)
	if bz == nil {
		return 0
	}
	return GetUint64FromBytes(bz)
}

func (k Keeper) setQueueDepth(ctx context.Context, depth uint64) {
	k.getStore(ctx).Set(QueueDepthKey, GetUint64Bytes(depth))
}

// RefreshMetrics sets the state gauges from ctx. Call it with committed state
// only; a branch that is later discarded would leave the gauges wrong.
func (k Keeper) RefreshMetrics(ctx context.Context) {
	k.metrics.QueueDepth.Set(float64(k.QueueDepth(ctx)))
}

func (k Keeper) addNodeJob(ctx context.Context, node string, id uint64) {
	k.getStore(ctx).Set(NodeJobKey(sdk.MustAccAddressFromBech32(node), id), []byte{})
}

func (k Keeper) removeNodeJob(ctx context.Context, node string, id uint64) {
	k.getStore(ctx).Delete(NodeJobKey(sdk.MustAccAddressFromBech32(node), id))
}

// IterateJobs walks all jobs in id order.
func (k Keeper) IterateJobs(ctx context.Context, cb func(job types.Job) (stop bool, err error)) error {
	iter := storetypes.KVStorePrefixIterator(k.getStore(ctx), JobKeyPrefix)
	defer iter.Close()

	for ; iter.Valid(); iter.Next() {
		var job types.Job
		if err := json.Unmarshal(iter.Value(), &job); err != nil {
			return fmt.Errorf("unmarshal job: %w", err)
		}
		stop, err := cb(job)
		if err != nil {
			return err
		}
		if stop {
			break
		}
	}
	return nil
}

// GetJobs returns every job in id order.
func (k Keeper) GetJobs(ctx context.Context) ([]types.Job, error) {
	var jobs []types.Job
	err := k.IterateJobs(ctx, func(job types.Job) (bool, error) {
		jobs = append(jobs, job)
		return false, nil
	})
	return jobs, err
}

// jobsByIndex loads the jobs referenced by every key under prefix, in key order.
func (k Keeper) jobsByIndex(ctx context.Context, prefix []byte) ([]types.Job, error) {
	iter := storetypes.KVStorePrefixIterator(k.getStore(ctx), prefix)
	defer iter.Close()

	var jobs []types.Job
	for ; iter.Valid(); iter.Next() {
		job, err := k.GetJob(ctx, jobIDFromIndexKey(iter.Key()))
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

// JobsByClient returns every job submitted by client.
func (k Keeper) JobsByClient(ctx context.Context, client sdk.AccAddress) ([]types.Job, error) {
	return k.jobsByIndex(ctx, ClientIndexPrefixFor(client))
}

// JobsByType returns every job of jobType.
func (k Keeper) JobsByType(ctx context.Context, jobType string) ([]types.Job, error) {
	return k.jobsByIndex(ctx, TypeIndexPrefixFor(jobType))
}

// PendingJobs returns the jobs waiting for assignment, highest priority first
// and oldest first within a priority.
func (k Keeper) PendingJobs(ctx context.Context) ([]types.Job, error) {
	return k.jobsByIndex(ctx, PendingQueuePrefix)
}

// GreenQueue returns waiting jobs that prefer green nodes, oldest first.
func (k Keeper) GreenQueue(ctx context.Context) ([]types.Job, error) {
	return k.jobsByIndex(ctx, GreenQueuePrefix)
}

// RecommendedJobs returns the jobs node still owes a result for, either as
// the assigned node or as the auditor.
func (k Keeper) RecommendedJobs(ctx context.Context, node sdk.AccAddress) ([]types.Job, error) {
	return k.jobsByIndex(ctx, NodeJobPrefixFor(node))
}
