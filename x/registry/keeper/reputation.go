package keeper

import (
	"context"
	"fmt"

	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/greenmesh/greenmesh/x/registry/types"
	"github.com/greenmesh/greenmesh/x/shared/access"
)

// UpdateReputation moves a node's reputation one step up on success or down on
// failure, clamped to [0, 100], and bumps the matching task counter.
func (k Keeper) UpdateReputation(ctx context.Context, actor, addr sdk.AccAddress, success bool) error {
	return k.runAtomic(ctx, func(ctx sdk.Context) error {
		if err := k.policy.Require(ctx, actor, access.RoleReputationManager); err != nil {
			return err
		}
		node, err := k.GetNode(ctx, addr)
		if err != nil {
			return err
		}
		params, err := k.GetParams(ctx)
		if err != nil {
			return err
		}

		node.Reputation = stepReputation(node.Reputation, params.ReputationStep, success)
		if success {
			node.TasksCompleted++
		} else {
			node.TasksDisputed++
		}
		if err := k.SetNode(ctx, node); err != nil {
			return err
		}

		k.metrics.ReputationUpdates.WithLabelValues(fmt.Sprintf("%t", success)).Inc()
		ctx.EventManager().EmitEvent(
			sdk.NewEvent(
				types.EventTypeNodeReputationUpdated,
				sdk.NewAttribute(types.AttributeKeyNode, addr.String()),
				sdk.NewAttribute(types.AttributeKeySuccess, fmt.Sprintf("%t", success)),
				sdk.NewAttribute(types.AttributeKeyReputation, fmt.Sprintf("%d", node.Reputation)),
			),
		)
		return nil
	})
}

func stepReputation(current, step uint32, up bool) uint32 {
	if up {
		if current+step > 100 {
			return 100
		}
		return current + step
	}
	if current < step {
		return 0
	}
	return current - step
}
