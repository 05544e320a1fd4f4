package keeper

import (
	"context"

	storetypes "cosmossdk.io/store/types"
	sdk "github.com/cosmos/cosmos-sdk/types"
)

// The active node index is a dense array of identities stored as
// position -> identity with a reverse identity -> position map and a length
// counter. Removal swaps the last element into the vacated slot, so positions
// are stable only between removals.

// ActiveNodeCount returns the number of identities in the index.
func (k Keeper) ActiveNodeCount(ctx context.Context) uint64 {
	return GetUint64FromBytes(k.getStore(ctx).Get(IndexLengthKey))
}

func (k Keeper) setIndexLength(ctx context.Context, n uint64) {
	k.getStore(ctx).Set(IndexLengthKey, GetUint64Bytes(n))
}

// InActiveIndex reports whether addr is in the index.
func (k Keeper) InActiveIndex(ctx context.Context, addr sdk.AccAddress) bool {
	return k.getStore(ctx).Has(IndexReverseKey(addr))
}

// activeNodeAt returns the identity at pos.
func (k Keeper) activeNodeAt(ctx context.Context, pos uint64) (sdk.AccAddress, bool) {
	bz := k.getStore(ctx).Get(IndexPositionKey(pos))
	if bz == nil {
		return nil, false
	}
	return sdk.AccAddress(bz), true
}

// ActiveNodes returns the indexed identities in position order.
func (k Keeper) ActiveNodes(ctx context.Context) []sdk.AccAddress {
	iter := storetypes.KVStorePrefixIterator(k.getStore(ctx), IndexPositionPrefix)
	defer iter.Close()

	out := make([]sdk.AccAddress, 0, k.ActiveNodeCount(ctx))
	for ; iter.Valid(); iter.Next() {
		out = append(out, sdk.AccAddress(append([]byte{}, iter.Value()...)))
	}
	return out
}

// addToIndex appends addr. Adding an indexed identity is a no-op.
func (k Keeper) addToIndex(ctx context.Context, addr sdk.AccAddress) {
	if k.InActiveIndex(ctx, addr) {
		return
	}
	store := k.getStore(ctx)
	n := k.ActiveNodeCount(ctx)
	store.Set(IndexPositionKey(n), addr.Bytes())
	store.Set(IndexReverseKey(addr), GetUint64Bytes(n))
	k.setIndexLength(ctx, n+1)
}

// removeFromIndex swap-removes addr. Removing an absent identity is a no-op.
func (k Keeper) removeFromIndex(ctx context.Context, addr sdk.AccAddress) {
	store := k.getStore(ctx)
	bz := store.Get(IndexReverseKey(addr))
	if bz == nil {
		return
	}
	pos := GetUint64FromBytes(bz)
	last := k.ActiveNodeCount(ctx) - 1

	if pos != last {
		moved, _ := k.activeNodeAt(ctx, last)
		store.Set(IndexPositionKey(pos), moved.Bytes())
		store.Set(IndexReverseKey(moved), GetUint64Bytes(pos))
	}
	store.Delete(IndexPositionKey(last))
	store.Delete(IndexReverseKey(addr))
	k.setIndexLength(ctx, last)
}

// RefreshMetrics sets the state gauges from ctx. Call it with committed state
// only; a branch that is later discarded would leave the gauges wrong.
func (k Keeper) RefreshMetrics(ctx context.Context) {
	k.metrics.ActiveNodes.Set(float64(k.ActiveNodeCount(ctx)))
}
