package keeper_test

import (
	"testing"

	"cosmossdk.io/math"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	keepertest "github.com/greenmesh/greenmesh/testutil/keeper"
	"github.com/greenmesh/greenmesh/x/scheduler/keeper"
	"github.com/greenmesh/greenmesh/x/scheduler/types"
	"github.com/greenmesh/greenmesh/x/shared/attest"
	signalstypes "github.com/greenmesh/greenmesh/x/signals/types"
)

func TestComputePrice(t *testing.T) {
	base := math.NewInt(1_000)
	tests := []struct {
		name                        string
		demand, urgency, confidence uint32
		priority                    types.Priority
		green                       bool
		want                        int64
	}{
		{"neutral", 0, 0, 0, types.PriorityNormal, false, 100_000},
		{"low priority is not discounted", 0, 0, 0, types.PriorityLow, false, 100_000},
		{"high priority", 0, 0, 0, types.PriorityHigh, false, 125_000},
		{"critical priority", 0, 0, 0, types.PriorityCritical, false, 150_000},
		{"green bonus", 0, 0, 0, types.PriorityNormal, true, 110_000},
		{"full demand, low confidence", 100, 0, 49, types.PriorityNormal, false, 150_000},
		// demandMul = 150 * 105 / 100 = 157
		{"full demand, full confidence", 100, 0, 100, types.PriorityNormal, false, 157_000},
		// urgencyMul = 150 * 125 / 100 = 187
		{"critical and urgent", 0, 100, 0, types.PriorityCritical, false, 187_000},
		// 157 * 187 * 110 / 10000 per unit of base
		{"everything", 100, 100, 100, types.PriorityCritical, true, 322_949},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := keeper.ComputePrice(base, tc.demand, tc.urgency, tc.confidence, tc.priority, tc.green)
			require.True(t, got.Equal(math.NewInt(tc.want)), "got %s want %d", got, tc.want)
		})
	}
}

func TestComputePrice_MonotoneInDemand(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		base := math.NewInt(rapid.Int64Range(1_000, 1_000_000_000).Draw(rt, "base"))
		lo := rapid.Uint32Range(0, 99).Draw(rt, "lo")
		hi := rapid.Uint32Range(lo+1, 100).Draw(rt, "hi")
		urgency := rapid.Uint32Range(0, 100).Draw(rt, "urgency")
		confidence := rapid.Uint32Range(0, 100).Draw(rt, "confidence")
		prio := types.Priority(rapid.IntRange(int(types.PriorityLow), int(types.PriorityCritical)).Draw(rt, "prio"))

		a := keeper.ComputePrice(base, lo, urgency, confidence, prio, false)
		b := keeper.ComputePrice(base, hi, urgency, confidence, prio, false)
		require.True(rt, b.GTE(a))
		require.True(rt, a.GTE(base.MulRaw(100)))
	})
}

func TestQuotePrice_UsesForecast(t *testing.T) {
	f := keepertest.NewFixture(t)
	client := keepertest.Addr("client")
	f.Fund(t, client, math.NewInt(10_000))
	id, err := f.Scheduler.CreateJob(f.Ctx, client, f.JobSpec(1_000))
	require.NoError(t, err)

	oracle := attest.Address(f.OracleKey.PubKey())
	require.NoError(t, f.Signals.SetDemandForecast(f.Ctx, oracle, signalstypes.DemandForecast{
		JobType:    types.JobTypeInference,
		Demand:     100,
		Confidence: 100,
	}))
	price, err := f.Scheduler.QuotePrice(f.Ctx, id)
	require.NoError(t, err)
	require.True(t, price.Equal(math.NewInt(157_000)), price.String())

	_, err = f.Scheduler.QuotePrice(f.Ctx, 99)
	require.ErrorIs(t, err, types.ErrJobNotFound)
}

func TestScoreNode(t *testing.T) {
	require.Equal(t, uint64(65), keeper.ScoreNode(50, 50, 100, false))
	require.Equal(t, uint64(78), keeper.ScoreNode(50, 50, 100, true))
	require.Equal(t, uint64(100), keeper.ScoreNode(100, 100, 100, false))
	require.Equal(t, uint64(0), keeper.ScoreNode(0, 0, 0, true))
	require.Equal(t, uint64(130), keeper.ScoreNode(100, 100, 200, false))
}

func TestSelectBest(t *testing.T) {
	cands := func(scores ...uint64) []keeper.Candidate {
		out := make([]keeper.Candidate, len(scores))
		for i, s := range scores {
			out[i].Score = s
		}
		return out
	}

	require.Equal(t, -1, keeper.SelectBest(nil))
	require.Equal(t, 1, keeper.SelectBest(cands(10, 30, 20)))
	// ties go to the earliest candidate
	require.Equal(t, 0, keeper.SelectBest(cands(30, 30, 30)))
	require.Equal(t, 1, keeper.SelectBest(cands(30, 30, 30), 0))
	require.Equal(t, 2, keeper.SelectBest(cands(10, 30, 20), 1))
	require.Equal(t, -1, keeper.SelectBest(cands(10), 0))
}
