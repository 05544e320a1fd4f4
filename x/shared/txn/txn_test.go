package txn_test

import (
	"errors"
	"testing"

	storetypes "cosmossdk.io/store/types"
	"github.com/cosmos/cosmos-sdk/testutil"
	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/stretchr/testify/require"

	"github.com/greenmesh/greenmesh/x/shared/txn"
)

func newCtx(t *testing.T) (sdk.Context, *storetypes.KVStoreKey) {
	t.Helper()
	key := storetypes.NewKVStoreKey("txn_test")
	ctx := testutil.DefaultContext(key, storetypes.NewTransientStoreKey("transient_txn_test"))
	return ctx, key
}

func TestAtomicCommitsOnSuccess(t *testing.T) {
	ctx, key := newCtx(t)

	err := txn.Atomic(ctx, func(ctx sdk.Context) error {
		ctx.KVStore(key).Set([]byte("a"), []byte("1"))
		ctx.EventManager().EmitEvent(sdk.NewEvent("written"))
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, []byte("1"), ctx.KVStore(key).Get([]byte("a")))
	require.Len(t, ctx.EventManager().Events(), 1)
}

func TestAtomicDiscardsOnError(t *testing.T) {
	ctx, key := newCtx(t)
	boom := errors.New("boom")

	err := txn.Atomic(ctx, func(ctx sdk.Context) error {
		ctx.KVStore(key).Set([]byte("a"), []byte("1"))
		ctx.EventManager().EmitEvent(sdk.NewEvent("written"))
		return boom
	})
	require.ErrorIs(t, err, boom)
	require.Nil(t, ctx.KVStore(key).Get([]byte("a")))
	require.Empty(t, ctx.EventManager().Events())
}

func TestAtomicNested(t *testing.T) {
	ctx, key := newCtx(t)

	err := txn.Atomic(ctx, func(outer sdk.Context) error {
		outer.KVStore(key).Set([]byte("outer"), []byte("1"))
		inner := txn.Atomic(outer, func(inner sdk.Context) error {
			inner.KVStore(key).Set([]byte("inner"), []byte("1"))
			return errors.New("inner failed")
		})
		require.Error(t, inner)
		return nil
	})
	require.NoError(t, err)
	require.NotNil(t, ctx.KVStore(key).Get([]byte("outer")))
	require.Nil(t, ctx.KVStore(key).Get([]byte("inner")))
}

func TestAtomicValue(t *testing.T) {
	ctx, key := newCtx(t)

	n, err := txn.AtomicValue(ctx, func(ctx sdk.Context) (uint64, error) {
		ctx.KVStore(key).Set([]byte("n"), sdk.Uint64ToBigEndian(7))
		return 7, nil
	})
	require.NoError(t, err)
	require.Equal(t, uint64(7), n)

	n, err = txn.AtomicValue(ctx, func(ctx sdk.Context) (uint64, error) {
		return 9, errors.New("no")
	})
	require.Error(t, err)
	require.Zero(t, n)
}
