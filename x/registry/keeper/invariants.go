package keeper

import (
	"fmt"

	"cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/greenmesh/greenmesh/x/registry/types"
)

// RegisterInvariants registers all registry module invariants
func RegisterInvariants(ir sdk.InvariantRegistry, k Keeper) {
	ir.RegisterRoute(types.ModuleName, "stake-conservation", StakeConservationInvariant(k))
	ir.RegisterRoute(types.ModuleName, "active-index", ActiveIndexInvariant(k))
	ir.RegisterRoute(types.ModuleName, "capacity", CapacityInvariant(k))
}

// AllInvariants runs all invariants of the registry module
func AllInvariants(k Keeper) sdk.Invariant {
	return func(ctx sdk.Context) (string, bool) {
		res, stop := StakeConservationInvariant(k)(ctx)
		if stop {
			return res, stop
		}
		res, stop = ActiveIndexInvariant(k)(ctx)
		if stop {
			return res, stop
		}
		return CapacityInvariant(k)(ctx)
	}
}

// StakeConservationInvariant checks that the module balance, the aggregate
// total and the sum of node stakes agree, and that every unslashed node holds
// at least its profile minimum.
func StakeConservationInvariant(k Keeper) sdk.Invariant {
	return func(ctx sdk.Context) (string, bool) {
		params, err := k.GetParams(ctx)
		if err != nil {
			return sdk.FormatInvariant(types.ModuleName, "stake-conservation", err.Error()), true
		}

		sum := math.ZeroInt()
		var problems []string
		err = k.IterateNodes(ctx, func(node types.Node) (bool, error) {
			sum = sum.Add(node.Stake)
			if node.Slashed {
				return false, nil
			}
			profile, err := k.GetDeviceProfile(ctx, node.DeviceType)
			if err != nil {
				problems = append(problems, fmt.Sprintf("node %s: %v", node.Address, err))
				return false, nil
			}
			if node.Stake.LT(profile.MinStake) {
				problems = append(problems, fmt.Sprintf("node %s stake %s below minimum %s", node.Address, node.Stake, profile.MinStake))
			}
			return false, nil
		})
		if err != nil {
			return sdk.FormatInvariant(types.ModuleName, "stake-conservation", err.Error()), true
		}

		agg := k.getAggregates(ctx)
		balance := k.bankKeeper.GetBalance(ctx, ModuleAddress(), params.Denom).Amount
		if !sum.Equal(agg.TotalStaked) {
			problems = append(problems, fmt.Sprintf("node stakes %s != aggregate %s", sum, agg.TotalStaked))
		}
		if !sum.Equal(balance) {
			problems = append(problems, fmt.Sprintf("node stakes %s != module balance %s", sum, balance))
		}

		broken := len(problems) > 0
		return sdk.FormatInvariant(types.ModuleName, "stake-conservation",
			fmt.Sprintf("stake conservation broken: %t %v", broken, problems)), broken
	}
}

// ActiveIndexInvariant checks that every unslashed node appears exactly once in
// the active index and that the index holds nothing else.
func ActiveIndexInvariant(k Keeper) sdk.Invariant {
	return func(ctx sdk.Context) (string, bool) {
		var problems []string

		indexed := k.ActiveNodes(ctx)
		if uint64(len(indexed)) != k.ActiveNodeCount(ctx) {
			problems = append(problems, fmt.Sprintf("index holds %d entries, length says %d", len(indexed), k.ActiveNodeCount(ctx)))
		}
		seen := make(map[string]bool, len(indexed))
		for pos, addr := range indexed {
			if seen[addr.String()] {
				problems = append(problems, fmt.Sprintf("%s indexed twice", addr))
			}
			seen[addr.String()] = true

			bz := k.getStore(ctx).Get(IndexReverseKey(addr))
			if GetUint64FromBytes(bz) != uint64(pos) {
				problems = append(problems, fmt.Sprintf("%s reverse position mismatch", addr))
			}
			node, err := k.GetNode(ctx, addr)
			if err != nil {
				problems = append(problems, fmt.Sprintf("%s indexed but not registered", addr))
				continue
			}
			if node.Slashed {
				problems = append(problems, fmt.Sprintf("%s indexed while slashed", addr))
			}
		}

		var total uint64
		err := k.IterateNodes(ctx, func(node types.Node) (bool, error) {
			total++
			if !node.Slashed && !seen[node.Address] {
				problems = append(problems, fmt.Sprintf("%s registered but not indexed", node.Address))
			}
			return false, nil
		})
		if err != nil {
			problems = append(problems, err.Error())
		}
		if agg := k.getAggregates(ctx); agg.TotalNodes != total {
			problems = append(problems, fmt.Sprintf("aggregate node count %d != %d", agg.TotalNodes, total))
		}

		broken := len(problems) > 0
		return sdk.FormatInvariant(types.ModuleName, "active-index",
			fmt.Sprintf("active index broken: %t %v", broken, problems)), broken
	}
}

// CapacityInvariant checks active_tasks <= max concurrent tasks for every node.
func CapacityInvariant(k Keeper) sdk.Invariant {
	return func(ctx sdk.Context) (string, bool) {
		var problems []string
		err := k.IterateNodes(ctx, func(node types.Node) (bool, error) {
			profile, err := k.GetDeviceProfile(ctx, node.DeviceType)
			if err != nil {
				problems = append(problems, fmt.Sprintf("node %s: %v", node.Address, err))
				return false, nil
			}
			if node.ActiveTasks > profile.MaxConcurrentTasks {
				problems = append(problems, fmt.Sprintf("node %s has %d tasks, max %d", node.Address, node.ActiveTasks, profile.MaxConcurrentTasks))
			}
			return false, nil
		})
		if err != nil {
			problems = append(problems, err.Error())
		}

		broken := len(problems) > 0
		return sdk.FormatInvariant(types.ModuleName, "capacity",
			fmt.Sprintf("capacity broken: %t %v", broken, problems)), broken
	}
}
