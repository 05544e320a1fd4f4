package besteffort_test

import (
	"errors"
	"testing"

	storetypes "cosmossdk.io/store/types"
	"github.com/cosmos/cosmos-sdk/testutil"
	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/stretchr/testify/require"

	"github.com/greenmesh/greenmesh/x/shared/besteffort"
)

func TestRunSuccess(t *testing.T) {
	key := storetypes.NewKVStoreKey("besteffort_test")
	ctx := testutil.DefaultContext(key, storetypes.NewTransientStoreKey("transient_besteffort_test"))
	r := besteffort.NewRunner("test")

	ok := r.Run(ctx, "write", besteffort.SeverityLow, func(ctx sdk.Context) error {
		ctx.KVStore(key).Set([]byte("k"), []byte("v"))
		return nil
	})
	require.True(t, ok)
	require.Equal(t, []byte("v"), ctx.KVStore(key).Get([]byte("k")))
	require.Empty(t, ctx.EventManager().Events())
}

func TestRunSwallowsErrorAndPartialWrites(t *testing.T) {
	key := storetypes.NewKVStoreKey("besteffort_test")
	ctx := testutil.DefaultContext(key, storetypes.NewTransientStoreKey("transient_besteffort_test"))
	r := besteffort.NewRunner("test")

	ok := r.Run(ctx, "predict", besteffort.SeverityMedium, func(ctx sdk.Context) error {
		ctx.KVStore(key).Set([]byte("k"), []byte("v"))
		return errors.New("collaborator down")
	})
	require.False(t, ok)
	require.Nil(t, ctx.KVStore(key).Get([]byte("k")))

	events := ctx.EventManager().Events()
	require.Len(t, events, 1)
	require.Equal(t, besteffort.EventTypeFailure, events[0].Type)

	attrs := map[string]string{}
	for _, a := range events[0].Attributes {
		attrs[a.Key] = a.Value
	}
	require.Equal(t, "test", attrs["module"])
	require.Equal(t, "predict", attrs["operation"])
	require.Equal(t, "medium", attrs["severity"])
	require.Equal(t, "collaborator down", attrs["error"])
}

func TestRunRecoversPanic(t *testing.T) {
	key := storetypes.NewKVStoreKey("besteffort_test")
	ctx := testutil.DefaultContext(key, storetypes.NewTransientStoreKey("transient_besteffort_test"))
	r := besteffort.NewRunner("test")

	require.NotPanics(t, func() {
		ok := r.Run(ctx, "explode", besteffort.SeverityHigh, func(ctx sdk.Context) error {
			panic("out of gas")
		})
		require.False(t, ok)
	})
	require.Len(t, ctx.EventManager().Events(), 1)
}
