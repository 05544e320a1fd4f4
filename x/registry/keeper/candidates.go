package keeper

import (
	"context"
	"time"

	"github.com/greenmesh/greenmesh/x/registry/types"
)

// CandidateFilter are the job requirements a candidate node must meet.
type CandidateFilter struct {
	MinCpuCores  uint32
	MinRamGb     uint32
	RequireGpu   bool
	RequireGreen bool
}

// FindCandidates returns the active nodes that satisfy the filter, in index
// order. It does not look at capacity.
func (k Keeper) FindCandidates(ctx context.Context, minCpuCores, minRamGb uint32, requireGpu, preferGreen bool) ([]types.Node, error) {
	return k.findCandidates(ctx, CandidateFilter{
		MinCpuCores:  minCpuCores,
		MinRamGb:     minRamGb,
		RequireGpu:   requireGpu,
		RequireGreen: preferGreen,
	})
}

func (k Keeper) findCandidates(ctx context.Context, f CandidateFilter) ([]types.Node, error) {
	params, err := k.GetParams(ctx)
	if err != nil {
		return nil, err
	}
	now := blockTime(ctx)
	inactivity := time.Duration(params.InactivityWindowSeconds) * time.Second

	var out []types.Node
	for _, addr := range k.ActiveNodes(ctx) {
		node, err := k.GetNode(ctx, addr)
		if err != nil {
			return nil, err
		}
		switch {
		case node.Slashed,
			node.Capabilities.CpuCores < f.MinCpuCores,
			node.Capabilities.RamGb < f.MinRamGb,
			f.RequireGpu && !node.Capabilities.HasGpu,
			node.Reputation < params.MinCandidateReputation,
			!node.AttestationValid(now),
			node.LastActiveAt.Add(inactivity).Before(now),
			f.RequireGreen && !node.Green:
			continue
		}
		out = append(out, node)
	}
	return out, nil
}
