package keeper

import (
	"context"

	sdk "github.com/cosmos/cosmos-sdk/types"

	registrytypes "github.com/greenmesh/greenmesh/x/registry/types"
	"github.com/greenmesh/greenmesh/x/scheduler/types"
)

// Selection weights, in percent.
const (
	weightAIScore      = 40
	weightReputation   = 30
	weightGreen        = 30
	greenPreferBonus   = 120
	percentDenominator = 100
)

// Candidate is a registry node scored for one job.
type Candidate struct {
	Node  registrytypes.Node
	Addr  sdk.AccAddress
	Score uint64
}

// ScoreNode combines the AI score, reputation and green multiplier into the
// selection score. Integer arithmetic keeps it deterministic.
func ScoreNode(aiScore, reputation, greenMultiplier uint32, greenBonus bool) uint64 {
	score := (uint64(aiScore)*weightAIScore +
		uint64(reputation)*weightReputation +
		uint64(greenMultiplier)*weightGreen) / percentDenominator
	if greenBonus {
		score = score * greenPreferBonus / percentDenominator
	}
	return score
}

// SelectBest returns the index of the highest score, skipping the indexes in
// exclude. The earliest candidate wins ties, so index order breaks them. It
// returns -1 when nothing is eligible.
//
// Selection is greedy per job: an assignment never considers jobs still in
// the queue, so a scarce node can go to a job that had alternatives.
func SelectBest(cands []Candidate, exclude ...int) int {
	best := -1
outer:
	for i, c := range cands {
		for _, x := range exclude {
			if i == x {
				continue outer
			}
		}
		if best < 0 || c.Score > cands[best].Score {
			best = i
		}
	}
	return best
}

// rankCandidates scores every registry candidate for job that has a free task
// slot, preserving the registry's index order.
func (k Keeper) rankCandidates(ctx context.Context, job types.Job) ([]Candidate, error) {
	nodes, err := k.registry.FindCandidates(
		ctx,
		job.Resources.MinCpuCores,
		job.Resources.MinRamGb,
		job.Resources.RequireGpu,
		job.PreferGreen,
	)
	if err != nil {
		return nil, types.ErrRegistry.Wrapf("find candidates: %v", err)
	}

	cands := make([]Candidate, 0, len(nodes))
	for _, node := range nodes {
		addr, err := sdk.AccAddressFromBech32(node.Address)
		if err != nil {
			return nil, types.ErrRegistry.Wrapf("candidate address %q: %v", node.Address, err)
		}
		if !k.registry.HasCapacity(ctx, addr) {
			continue
		}
		bonus := job.PreferGreen && node.Green
		cands = append(cands, Candidate{
			Node: node,
			Addr: addr,
			Score: ScoreNode(
				k.ai.NodeScore(ctx, addr),
				node.Reputation,
				k.green.RewardMultiplier(ctx, addr),
				bonus,
			),
		})
	}
	k.metrics.CandidatesPerJob.Observe(float64(len(cands)))
	return cands, nil
}
