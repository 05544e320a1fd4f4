package keeper

import (
	"fmt"

	storetypes "cosmossdk.io/store/types"
	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/greenmesh/greenmesh/x/scheduler/types"
)

// RegisterInvariants registers all scheduler module invariants
func RegisterInvariants(ir sdk.InvariantRegistry, k Keeper) {
	ir.RegisterRoute(types.ModuleName, "job-status", JobStatusInvariant(k))
	ir.RegisterRoute(types.ModuleName, "settlement-balance", SettlementBalanceInvariant(k))
}

// AllInvariants runs all invariants of the scheduler module
func AllInvariants(k Keeper) sdk.Invariant {
	return func(ctx sdk.Context) (string, bool) {
		res, stop := JobStatusInvariant(k)(ctx)
		if stop {
			return res, stop
		}
		return SettlementBalanceInvariant(k)(ctx)
	}
}

// JobStatusInvariant checks every job's fields against its status and that
// the pending queue holds exactly the Created jobs.
func JobStatusInvariant(k Keeper) sdk.Invariant {
	return func(ctx sdk.Context) (string, bool) {
		var problems []string
		created := 0
		err := k.IterateJobs(ctx, func(job types.Job) (bool, error) {
			if job.Settled && job.Status != types.JobStatusCompleted && job.Status != types.JobStatusDisputed {
				problems = append(problems, fmt.Sprintf("job %d settled while %s", job.ID, job.Status))
			}
			switch job.Status {
			case types.JobStatusCreated:
				created++
				if !k.getStore(ctx).Has(PendingQueueKey(job.Priority, job.ID)) {
					problems = append(problems, fmt.Sprintf("job %d missing from pending queue", job.ID))
				}
			case types.JobStatusAssigned, types.JobStatusInProgress:
				if job.AssignedNode == "" {
					problems = append(problems, fmt.Sprintf("job %d is %s without a node", job.ID, job.Status))
				}
			case types.JobStatusCompleted, types.JobStatusDisputed:
				if job.AssignedNode == "" || !job.HasResult() {
					problems = append(problems, fmt.Sprintf("job %d is %s without a result", job.ID, job.Status))
				}
				if job.PrimaryReserved {
					problems = append(problems, fmt.Sprintf("job %d still holds its node's slot", job.ID))
				}
			}
			if job.Status == types.JobStatusDisputed && (job.Audit == nil || !job.Audit.Compared || job.Audit.Matched) {
				problems = append(problems, fmt.Sprintf("job %d disputed without an audit mismatch", job.ID))
			}
			return false, nil
		})
		if err != nil {
			return sdk.FormatInvariant(types.ModuleName, "job-status", err.Error()), true
		}

		queued := 0
		iter := storetypes.KVStorePrefixIterator(k.getStore(ctx), PendingQueuePrefix)
		for ; iter.Valid(); iter.Next() {
			queued++
		}
		iter.Close()
		if queued != created {
			problems = append(problems, fmt.Sprintf("pending queue holds %d entries for %d created jobs", queued, created))
		}

		broken := len(problems) > 0
		return sdk.FormatInvariant(types.ModuleName, "job-status",
			fmt.Sprintf("job status broken: %t %v", broken, problems)), broken
	}
}

// SettlementBalanceInvariant checks that the module account holds exactly the
// direct-rail payments of jobs neither settled nor cancelled.
func SettlementBalanceInvariant(k Keeper) sdk.Invariant {
	return func(ctx sdk.Context) (string, bool) {
		locked := k.lockedPayments(ctx)
		balance := k.bank.GetBalance(ctx, ModuleAddress(), k.GetParams(ctx).Denom).Amount
		broken := !balance.Equal(locked)
		return sdk.FormatInvariant(types.ModuleName, "settlement-balance",
			fmt.Sprintf("locked payments %s, module balance %s", locked, balance)), broken
	}
}
