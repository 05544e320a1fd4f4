package keeper_test

import (
	"fmt"
	"testing"

	"cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	keepertest "github.com/greenmesh/greenmesh/testutil/keeper"
	"github.com/greenmesh/greenmesh/x/scheduler/types"
)

// statusRank orders statuses along the lifecycle. Disputed and Completed share
// a rank since either may follow the other only once.
func statusRank(s types.JobStatus) int {
	switch s {
	case types.JobStatusCreated:
		return 0
	case types.JobStatusAssigned:
		return 1
	case types.JobStatusInProgress:
		return 2
	case types.JobStatusCompleted, types.JobStatusDisputed:
		return 3
	default:
		return 4
	}
}

// Random create / audit / assign / start / complete / settle / cancel
// sequences keep job status monotone, pay each job at most once and keep the
// module balance equal to the payments still owed.
func TestJobLifecycleUnderRandomOperations(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		f := keepertest.NewFixture(rt)
		client := keepertest.Addr("client")
		f.Fund(rt, client, math.NewInt(1_000_000))

		nodes := make([]string, 3)
		for i := range nodes {
			nodes[i] = f.RegisterNode(rt, fmt.Sprintf("node-%d", i), "desktop", keepertest.DesktopCaps()).String()
		}
		nodeStart := make(map[string]math.Int, len(nodes))
		for _, n := range nodes {
			nodeStart[n] = f.Balance(sdk.MustAccAddressFromBech32(n))
		}

		var ids []uint64
		last := map[uint64]types.JobStatus{}
		paid := math.ZeroInt()

		steps := rapid.IntRange(1, 50).Draw(rt, "steps")
		for i := 0; i < steps; i++ {
			op := rapid.IntRange(0, 6).Draw(rt, "op")
			if op == 0 || len(ids) == 0 {
				payment := rapid.Int64Range(1_000, 5_000).Draw(rt, "payment")
				id, err := f.Scheduler.CreateJob(f.Ctx, client, f.JobSpec(payment))
				require.NoError(rt, err)
				ids = append(ids, id)
				continue
			}

			id := rapid.SampledFrom(ids).Draw(rt, "job")
			job, err := f.Scheduler.GetJob(f.Ctx, id)
			require.NoError(rt, err)

			switch op {
			case 1:
				_ = f.Scheduler.SetJobAudit(f.Ctx, f.Dispatcher, id, true)
			case 2:
				_ = f.Scheduler.AssignJob(f.Ctx, f.Dispatcher, id)
			case 3:
				if job.AssignedNode != "" {
					_ = f.Scheduler.StartJob(f.Ctx, sdk.MustAccAddressFromBech32(job.AssignedNode), id)
				}
			case 4:
				worker := job.AssignedNode
				if job.Audit != nil && rapid.Bool().Draw(rt, "auditor") {
					worker = job.Audit.Node
				}
				if worker != "" {
					out := rapid.SampledFrom([]string{"x", "y"}).Draw(rt, "result")
					_ = f.Scheduler.CompleteJob(f.Ctx, sdk.MustAccAddressFromBech32(worker), id, resultHash(out), "ipfs://"+out)
				}
			case 5:
				if err := f.Scheduler.SettleJob(f.Ctx, f.Validator, id); err == nil {
					require.False(rt, job.Settled, "job %d settled twice", id)
					paid = paid.Add(job.Payment)
				}
			case 6:
				_ = f.Scheduler.CancelJob(f.Ctx, client, id, "")
			}

			after, err := f.Scheduler.GetJob(f.Ctx, id)
			require.NoError(rt, err)
			require.GreaterOrEqual(rt, statusRank(after.Status), statusRank(last[id]),
				"job %d went from %s to %s", id, last[id], after.Status)
			if job.Status == types.JobStatusDisputed {
				require.Equal(rt, types.JobStatusDisputed, after.Status)
			}
			last[id] = after.Status
			requireInvariants(rt, f)
		}

		earned := math.ZeroInt()
		for _, n := range nodes {
			earned = earned.Add(f.Balance(sdk.MustAccAddressFromBech32(n)).Sub(nodeStart[n]))
		}
		require.True(rt, earned.Equal(paid), "nodes earned %s, settled %s", earned, paid)
	})
}
