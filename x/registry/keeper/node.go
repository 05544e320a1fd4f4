package keeper

import (
	"context"
	"encoding/json"
	"fmt"

	storetypes "cosmossdk.io/store/types"
	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/greenmesh/greenmesh/x/registry/types"
)

// GetNode retrieves a node by address
func (k Keeper) GetNode(ctx context.Context, addr sdk.AccAddress) (types.Node, error) {
	var node types.Node
	found, err := getJSON(k.getStore(ctx), NodeKey(addr), &node)
	if err != nil {
		return types.Node{}, err
	}
	if !found {
		return types.Node{}, types.ErrNodeNotFound.Wrap(addr.String())
	}
	return node, nil
}

// HasNode reports whether addr is registered.
func (k Keeper) HasNode(ctx context.Context, addr sdk.AccAddress) bool {
	return k.getStore(ctx).Has(NodeKey(addr))
}

// SetNode stores a node record
func (k Keeper) SetNode(ctx context.Context, node types.Node) error {
	addr, err := sdk.AccAddressFromBech32(node.Address)
	if err != nil {
		return types.ErrInvalidAddress.Wrapf("failed to parse address: %v", err)
	}
	return setJSON(k.getStore(ctx), NodeKey(addr), node)
}

func (k Keeper) deleteNode(ctx context.Context, addr sdk.AccAddress) {
	k.getStore(ctx).Delete(NodeKey(addr))
}

// IterateNodes iterates over all node records in address order
func (k Keeper) IterateNodes(ctx context.Context, cb func(node types.Node) (stop bool, err error)) error {
	iter := storetypes.KVStorePrefixIterator(k.getStore(ctx), NodeKeyPrefix)
	defer iter.Close()

	for ; iter.Valid(); iter.Next() {
		var node types.Node
		if err := json.Unmarshal(iter.Value(), &node); err != nil {
			return fmt.Errorf("failed to unmarshal node: %w", err)
		}
		stop, err := cb(node)
		if err != nil {
			return err
		}
		if stop {
			break
		}
	}
	return nil
}

// GetNodes returns every registered node.
func (k Keeper) GetNodes(ctx context.Context) ([]types.Node, error) {
	var nodes []types.Node
	err := k.IterateNodes(ctx, func(node types.Node) (bool, error) {
		nodes = append(nodes, node)
		return false, nil
	})
	return nodes, err
}

// IsTombstoned reports whether addr was permanently slashed.
func (k Keeper) IsTombstoned(ctx context.Context, addr sdk.AccAddress) bool {
	return k.getStore(ctx).Has(TombstoneKey(addr))
}

func (k Keeper) tombstone(ctx context.Context, addr sdk.AccAddress) {
	k.getStore(ctx).Set(TombstoneKey(addr), []byte{1})
}

// Tombstones returns every permanently slashed identity.
func (k Keeper) Tombstones(ctx context.Context) []sdk.AccAddress {
	iter := storetypes.KVStorePrefixIterator(k.getStore(ctx), TombstonePrefix)
	defer iter.Close()

	var out []sdk.AccAddress
	for ; iter.Valid(); iter.Next() {
		out = append(out, sdk.AccAddress(append([]byte{}, iter.Key()[len(TombstonePrefix):]...)))
	}
	return out
}

// GetAggregates returns the registry-wide totals.
func (k Keeper) GetAggregates(ctx context.Context) types.Aggregates {
	return k.getAggregates(ctx)
}

func (k Keeper) getAggregates(ctx context.Context) types.Aggregates {
	agg := types.NewAggregates()
	if _, err := getJSON(k.getStore(ctx), AggregatesKey, &agg); err != nil {
		k.Logger(ctx).Error("corrupt aggregates", "error", err)
		return types.NewAggregates()
	}
	if agg.TotalStaked.IsNil() {
		agg.TotalStaked = types.NewAggregates().TotalStaked
	}
	if agg.TotalSlashed.IsNil() {
		agg.TotalSlashed = types.NewAggregates().TotalSlashed
	}
	return agg
}

func (k Keeper) setAggregates(ctx context.Context, agg types.Aggregates) error {
	return setJSON(k.getStore(ctx), AggregatesKey, agg)
}
