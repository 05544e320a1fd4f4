package keeper_test

import (
	"testing"

	"cosmossdk.io/math"
	"github.com/stretchr/testify/require"

	keepertest "github.com/greenmesh/greenmesh/testutil/keeper"
	"github.com/greenmesh/greenmesh/x/escrow/keeper"
	"github.com/greenmesh/greenmesh/x/escrow/types"
	schedulerkeeper "github.com/greenmesh/greenmesh/x/scheduler/keeper"
	"github.com/greenmesh/greenmesh/x/shared/access"
)

func requireBalanced(t *testing.T, f *keepertest.Fixture) {
	t.Helper()
	msg, broken := keeper.EscrowBalanceInvariant(*f.Escrow)(f.Ctx)
	require.False(t, broken, msg)
}

func TestEscrowLifecycle(t *testing.T) {
	f := keepertest.NewFixture(t)
	agent := schedulerkeeper.ModuleAddress()
	payer := keepertest.Addr("client")
	payee := keepertest.Addr("node")
	f.Fund(t, payer, math.NewInt(5_000))

	require.ErrorIs(t, f.Escrow.CreateEscrow(f.Ctx, payer, 1, payer, math.NewInt(2_000)), access.ErrUnauthorized)
	require.ErrorIs(t, f.Escrow.CreateEscrow(f.Ctx, agent, 1, payer, math.ZeroInt()), types.ErrInvalidAmount)
	require.NoError(t, f.Escrow.CreateEscrow(f.Ctx, agent, 1, payer, math.NewInt(2_000)))
	require.ErrorIs(t, f.Escrow.CreateEscrow(f.Ctx, agent, 1, payer, math.NewInt(2_000)), types.ErrEscrowExists)
	require.False(t, f.Escrow.IsFunded(f.Ctx, 1))

	// releasing before funding is refused
	require.ErrorIs(t, f.Escrow.Release(f.Ctx, agent, 1, payee), types.ErrInvalidStatus)

	require.ErrorIs(t, f.Escrow.Fund(f.Ctx, payee, 1), types.ErrNotPayer)
	require.NoError(t, f.Escrow.Fund(f.Ctx, payer, 1))
	require.True(t, f.Escrow.IsFunded(f.Ctx, 1))
	require.Equal(t, math.NewInt(3_000), f.Balance(payer))
	require.ErrorIs(t, f.Escrow.Fund(f.Ctx, payer, 1), types.ErrInvalidStatus)
	requireBalanced(t, f)

	require.ErrorIs(t, f.Escrow.Release(f.Ctx, payee, 1, payee), access.ErrUnauthorized)
	require.NoError(t, f.Escrow.Release(f.Ctx, agent, 1, payee))
	require.Equal(t, math.NewInt(2_000), f.Balance(payee))
	requireBalanced(t, f)

	r, err := f.Escrow.GetEscrow(f.Ctx, 1)
	require.NoError(t, err)
	require.Equal(t, types.StatusReleased, r.Status)
	require.Equal(t, payee.String(), r.Payee)
	require.True(t, r.Status.Closed())

	// closed escrows never pay twice
	require.ErrorIs(t, f.Escrow.Release(f.Ctx, agent, 1, payee), types.ErrInvalidStatus)
	require.ErrorIs(t, f.Escrow.Refund(f.Ctx, agent, 1), types.ErrInvalidStatus)
	require.Equal(t, math.NewInt(2_000), f.Balance(payee))
}

func TestEscrowRefund(t *testing.T) {
	f := keepertest.NewFixture(t)
	agent := schedulerkeeper.ModuleAddress()
	payer := keepertest.Addr("client")
	f.Fund(t, payer, math.NewInt(5_000))

	t.Run("pending escrow is cancelled", func(t *testing.T) {
		require.NoError(t, f.Escrow.CreateEscrow(f.Ctx, agent, 1, payer, math.NewInt(1_000)))
		require.NoError(t, f.Escrow.Refund(f.Ctx, agent, 1))
		r, err := f.Escrow.GetEscrow(f.Ctx, 1)
		require.NoError(t, err)
		require.Equal(t, types.StatusCancelled, r.Status)
		require.Equal(t, math.NewInt(5_000), f.Balance(payer))
		require.ErrorIs(t, f.Escrow.Fund(f.Ctx, payer, 1), types.ErrInvalidStatus)
	})

	t.Run("funded escrow is returned", func(t *testing.T) {
		require.NoError(t, f.Escrow.CreateEscrow(f.Ctx, agent, 2, payer, math.NewInt(1_500)))
		require.NoError(t, f.Escrow.Fund(f.Ctx, payer, 2))
		require.Equal(t, math.NewInt(3_500), f.Balance(payer))
		require.NoError(t, f.Escrow.Refund(f.Ctx, agent, 2))
		require.Equal(t, math.NewInt(5_000), f.Balance(payer))
		r, err := f.Escrow.GetEscrow(f.Ctx, 2)
		require.NoError(t, err)
		require.Equal(t, types.StatusRefunded, r.Status)
		requireBalanced(t, f)
	})

	t.Run("unknown escrow", func(t *testing.T) {
		require.ErrorIs(t, f.Escrow.Refund(f.Ctx, agent, 42), types.ErrEscrowNotFound)
	})
}

func TestEscrowFund_InsufficientBalance(t *testing.T) {
	f := keepertest.NewFixture(t)
	agent := schedulerkeeper.ModuleAddress()
	payer := keepertest.Addr("client")
	f.Fund(t, payer, math.NewInt(100))

	require.NoError(t, f.Escrow.CreateEscrow(f.Ctx, agent, 1, payer, math.NewInt(1_000)))
	require.ErrorIs(t, f.Escrow.Fund(f.Ctx, payer, 1), types.ErrTransfer)

	// the failed transfer left no trace
	require.False(t, f.Escrow.IsFunded(f.Ctx, 1))
	require.Equal(t, math.NewInt(100), f.Balance(payer))
	requireBalanced(t, f)
}

func TestEscrowGenesisRoundTrip(t *testing.T) {
	f := keepertest.NewFixture(t)
	agent := schedulerkeeper.ModuleAddress()
	payer := keepertest.Addr("client")
	require.NoError(t, f.Escrow.CreateEscrow(f.Ctx, agent, 7, payer, math.NewInt(900)))

	exported, err := f.Escrow.ExportGenesis(f.Ctx)
	require.NoError(t, err)
	require.Len(t, exported.Records, 1)

	g := keepertest.NewFixture(t)
	require.NoError(t, g.Escrow.InitGenesis(g.Ctx, *exported))
	r, err := g.Escrow.GetEscrow(g.Ctx, 7)
	require.NoError(t, err)
	require.True(t, r.Amount.Equal(math.NewInt(900)))
	require.Equal(t, types.StatusPending, r.Status)

	dup := *exported
	dup.Records = append(dup.Records, dup.Records[0])
	require.ErrorIs(t, dup.Validate(), types.ErrInvalidGenesis)
}
