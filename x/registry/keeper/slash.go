package keeper

import (
	"context"
	"fmt"

	"cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/greenmesh/greenmesh/x/registry/types"
	"github.com/greenmesh/greenmesh/x/shared/access"
)

// Slash burns SlashPercent of a node's stake and docks its reputation. A node
// whose stake falls below its profile minimum is permanently slashed: it leaves
// the active index and its identity is tombstoned. The record itself stays so
// the owner can unregister and withdraw the remainder.
func (k Keeper) Slash(ctx context.Context, actor, addr sdk.AccAddress, reason string) error {
	return k.runAtomic(ctx, func(ctx sdk.Context) error {
		if err := k.policy.Require(ctx, actor, access.RoleSlasher); err != nil {
			return err
		}
		node, err := k.GetNode(ctx, addr)
		if err != nil {
			return err
		}
		if node.Slashed {
			return types.ErrNodeSlashed.Wrap(addr.String())
		}
		params, err := k.GetParams(ctx)
		if err != nil {
			return err
		}
		profile, err := k.GetDeviceProfile(ctx, node.DeviceType)
		if err != nil {
			return err
		}

		amount := node.Stake.MulRaw(int64(params.SlashPercent)).QuoRaw(100)
		node.Stake = node.Stake.Sub(amount)
		if node.Reputation > params.SlashReputationPenalty {
			node.Reputation -= params.SlashReputationPenalty
		} else {
			node.Reputation = 0
		}

		permanent := node.Stake.LT(profile.MinStake)
		if permanent {
			node.Slashed = true
			k.removeFromIndex(ctx, addr)
			k.tombstone(ctx, addr)
		}
		if err := k.SetNode(ctx, node); err != nil {
			return err
		}

		agg := k.getAggregates(ctx)
		agg.TotalStaked = agg.TotalStaked.Sub(amount)
		agg.TotalSlashed = agg.TotalSlashed.Add(amount)
		if err := k.setAggregates(ctx, agg); err != nil {
			return err
		}

		if amount.IsPositive() {
			release, err := k.guard.Enter("registry/stake")
			if err != nil {
				return err
			}
			defer release()
			if err := k.bankKeeper.BurnCoins(ctx, types.ModuleName, stakeCoins(params, amount)); err != nil {
				return types.ErrStakeTransfer.Wrapf("burn slashed stake: %v", err)
			}
		}

		if err := k.recordSlash(ctx, types.SlashRecord{
			Node:      addr.String(),
			Actor:     actor.String(),
			Amount:    amount,
			Reason:    reason,
			Permanent: permanent,
			SlashedAt: ctx.BlockTime(),
		}); err != nil {
			return err
		}

		k.metrics.NodesSlashed.WithLabelValues(fmt.Sprintf("%t", permanent)).Inc()
		k.Logger(ctx).Info("node slashed", "node", addr.String(), "amount", amount.String(), "permanent", permanent)
		ctx.EventManager().EmitEvent(
			sdk.NewEvent(
				types.EventTypeNodeSlashed,
				sdk.NewAttribute(types.AttributeKeyNode, addr.String()),
				sdk.NewAttribute(types.AttributeKeyAmount, amount.String()),
				sdk.NewAttribute(types.AttributeKeyReason, reason),
				sdk.NewAttribute(types.AttributeKeyPermanent, fmt.Sprintf("%t", permanent)),
				sdk.NewAttribute(types.AttributeKeyReputation, fmt.Sprintf("%d", node.Reputation)),
			),
		)
		return nil
	})
}

func (k Keeper) recordSlash(ctx context.Context, record types.SlashRecord) error {
	store := k.getStore(ctx)
	id := GetUint64FromBytes(store.Get(NextSlashIDKey)) + 1
	store.Set(NextSlashIDKey, GetUint64Bytes(id))
	record.ID = id
	return setJSON(store, SlashRecordKey(id), record)
}

// GetSlashRecords returns every slash record in id order.
func (k Keeper) GetSlashRecords(ctx context.Context) ([]types.SlashRecord, error) {
	store := k.getStore(ctx)
	n := GetUint64FromBytes(store.Get(NextSlashIDKey))
	out := make([]types.SlashRecord, 0, n)
	for id := uint64(1); id <= n; id++ {
		var r types.SlashRecord
		found, err := getJSON(store, SlashRecordKey(id), &r)
		if err != nil {
			return nil, err
		}
		if found {
			out = append(out, r)
		}
	}
	return out, nil
}

// TotalSlashed is a convenience accessor used by queries and invariants.
func (k Keeper) TotalSlashed(ctx context.Context) math.Int {
	return k.getAggregates(ctx).TotalSlashed
}
