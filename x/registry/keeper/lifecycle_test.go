package keeper_test

import (
	"testing"
	"time"

	"cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/stretchr/testify/require"

	keepertest "github.com/greenmesh/greenmesh/testutil/keeper"
	"github.com/greenmesh/greenmesh/x/registry/keeper"
	"github.com/greenmesh/greenmesh/x/registry/types"
	"github.com/greenmesh/greenmesh/x/shared/access"
)

func requireInvariants(t *testing.T, f *keepertest.Fixture) {
	t.Helper()
	msg, broken := keeper.AllInvariants(*f.Registry)(f.Ctx)
	require.False(t, broken, msg)
}

func TestUnregister_SwapRemove(t *testing.T) {
	f := keepertest.NewFixture(t)
	a := f.RegisterNode(t, "a", "desktop", keepertest.DesktopCaps())
	b := f.RegisterNode(t, "b", "desktop", keepertest.DesktopCaps())
	c := f.RegisterNode(t, "c", "desktop", keepertest.DesktopCaps())
	require.Equal(t, []sdk.AccAddress{a, b, c}, f.Registry.ActiveNodes(f.Ctx))

	require.NoError(t, f.Registry.Unregister(f.Ctx, a))
	require.Equal(t, []sdk.AccAddress{c, b}, f.Registry.ActiveNodes(f.Ctx))
	require.False(t, f.Registry.InActiveIndex(f.Ctx, a))
	require.Equal(t, math.NewInt(10_000_000), f.Balance(a))

	require.NoError(t, f.Registry.Unregister(f.Ctx, b))
	require.Equal(t, []sdk.AccAddress{c}, f.Registry.ActiveNodes(f.Ctx))
	require.Equal(t, uint64(1), f.Registry.GetAggregates(f.Ctx).TotalNodes)
	require.Equal(t, uint64(1), f.Registry.DeviceTypeCount(f.Ctx, "desktop"))

	require.ErrorIs(t, f.Registry.Unregister(f.Ctx, a), types.ErrNodeNotFound)
	requireInvariants(t, f)

	// a clean exit may register again
	f.Fund(t, a, math.NewInt(10_000_000))
	caps := keepertest.DesktopCaps()
	require.NoError(t, f.Registry.Register(f.Ctx, a, "desktop", caps, f.Attest(t, a, caps)))
}

func TestUnregister_Busy(t *testing.T) {
	f := keepertest.NewFixture(t)
	addr := f.RegisterNode(t, "a", "desktop", keepertest.DesktopCaps())
	ok, err := f.Registry.TryReserveCapacity(f.Ctx, f.Admin, addr)
	require.ErrorIs(t, err, access.ErrUnauthorized)
	require.False(t, ok)

	require.NoError(t, f.Policy.Grant(f.Ctx, f.Admin, access.RoleCapacityManager, f.Admin))
	ok, err = f.Registry.TryReserveCapacity(f.Ctx, f.Admin, addr)
	require.NoError(t, err)
	require.True(t, ok)

	require.ErrorIs(t, f.Registry.Unregister(f.Ctx, addr), types.ErrNodeBusy)
	require.NoError(t, f.Registry.ReleaseCapacity(f.Ctx, f.Admin, addr))
	require.NoError(t, f.Registry.Unregister(f.Ctx, addr))
}

func TestSlash_Permanent(t *testing.T) {
	f := keepertest.NewFixture(t)
	a := f.RegisterNode(t, "a", "desktop", keepertest.DesktopCaps())
	b := f.RegisterNode(t, "b", "desktop", keepertest.DesktopCaps())

	require.ErrorIs(t, f.Registry.Slash(f.Ctx, f.Admin, a, "fraud"), access.ErrUnauthorized)
	require.NoError(t, f.Registry.Slash(f.Ctx, f.Slasher, a, "fraud"))

	node, err := f.Registry.GetNode(f.Ctx, a)
	require.NoError(t, err)
	require.True(t, node.Slashed)
	require.Equal(t, math.NewInt(9_000_000), node.Stake)
	require.Equal(t, uint32(30), node.Reputation)
	require.True(t, f.Registry.IsTombstoned(f.Ctx, a))
	require.Equal(t, []sdk.AccAddress{b}, f.Registry.ActiveNodes(f.Ctx))
	require.False(t, f.Registry.HasCapacity(f.Ctx, a))

	// burned, not kept
	require.Equal(t, math.NewInt(19_000_000), f.Balance(keeper.ModuleAddress()))
	require.Equal(t, math.NewInt(1_000_000), f.Registry.TotalSlashed(f.Ctx))
	records, err := f.Registry.GetSlashRecords(f.Ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.True(t, records[0].Permanent)
	requireInvariants(t, f)

	require.ErrorIs(t, f.Registry.Slash(f.Ctx, f.Slasher, a, "again"), types.ErrNodeSlashed)

	// the remainder can be withdrawn but the identity stays barred
	require.NoError(t, f.Registry.Unregister(f.Ctx, a))
	require.Equal(t, math.NewInt(9_000_000), f.Balance(a))
	f.Fund(t, a, math.NewInt(1_000_000))
	caps := keepertest.DesktopCaps()
	err = f.Registry.Register(f.Ctx, a, "desktop", caps, f.Attest(t, a, caps))
	require.ErrorIs(t, err, types.ErrPermanentlySlashed)
	requireInvariants(t, f)
}

func TestUpdateReputation(t *testing.T) {
	f := keepertest.NewFixture(t)
	addr := f.RegisterNode(t, "a", "desktop", keepertest.DesktopCaps())
	manager := keepertest.Addr("manager")
	require.NoError(t, f.Policy.Grant(f.Ctx, f.Admin, access.RoleReputationManager, manager))

	require.ErrorIs(t, f.Registry.UpdateReputation(f.Ctx, addr, addr, true), access.ErrUnauthorized)
	for i := 0; i < 20; i++ {
		require.NoError(t, f.Registry.UpdateReputation(f.Ctx, manager, addr, true))
	}
	node, err := f.Registry.GetNode(f.Ctx, addr)
	require.NoError(t, err)
	require.Equal(t, uint32(100), node.Reputation)
	require.Equal(t, uint64(20), node.TasksCompleted)

	for i := 0; i < 25; i++ {
		require.NoError(t, f.Registry.UpdateReputation(f.Ctx, manager, addr, false))
	}
	node, err = f.Registry.GetNode(f.Ctx, addr)
	require.NoError(t, err)
	require.Zero(t, node.Reputation)
	require.Equal(t, uint64(25), node.TasksDisputed)
}

func TestCapacity(t *testing.T) {
	f := keepertest.NewFixture(t)
	require.NoError(t, f.Policy.Grant(f.Ctx, f.Admin, access.RoleCapacityManager, f.Admin))
	desk := f.RegisterNode(t, "desk", "desktop", keepertest.DesktopCaps())

	for i := 0; i < 4; i++ {
		ok, err := f.Registry.TryReserveCapacity(f.Ctx, f.Admin, desk)
		require.NoError(t, err)
		require.True(t, ok)
	}
	ok, err := f.Registry.TryReserveCapacity(f.Ctx, f.Admin, desk)
	require.NoError(t, err)
	require.False(t, ok)
	require.False(t, f.Registry.HasCapacity(f.Ctx, desk))
	requireInvariants(t, f)

	for i := 0; i < 6; i++ {
		require.NoError(t, f.Registry.ReleaseCapacity(f.Ctx, f.Admin, desk))
	}
	node, err := f.Registry.GetNode(f.Ctx, desk)
	require.NoError(t, err)
	require.Zero(t, node.ActiveTasks)

	t.Run("power saving", func(t *testing.T) {
		phone := f.RegisterNode(t, "phone", "smartphone", keepertest.PhoneCaps())
		require.NoError(t, f.Registry.SetPowerSaving(f.Ctx, phone, true))
		require.False(t, f.Registry.HasCapacity(f.Ctx, phone))
		ok, err := f.Registry.TryReserveCapacity(f.Ctx, f.Admin, phone)
		require.NoError(t, err)
		require.False(t, ok)

		require.NoError(t, f.Registry.SetPowerSaving(f.Ctx, phone, false))
		require.True(t, f.Registry.HasCapacity(f.Ctx, phone))

		require.ErrorIs(t, f.Registry.SetPowerSaving(f.Ctx, desk, true), types.ErrPowerSavingUnsupported)
	})
}

func TestFindCandidates(t *testing.T) {
	f := keepertest.NewFixture(t)
	desk := f.RegisterNode(t, "desk", "desktop", keepertest.DesktopCaps())
	server := f.RegisterNode(t, "server", "server", keepertest.ServerCaps())

	addrs := func(nodes []types.Node) []string {
		out := make([]string, 0, len(nodes))
		for _, n := range nodes {
			out = append(out, n.Address)
		}
		return out
	}

	nodes, err := f.Registry.FindCandidates(f.Ctx, 4, 8, false, false)
	require.NoError(t, err)
	require.Equal(t, []string{desk.String(), server.String()}, addrs(nodes))

	nodes, err = f.Registry.FindCandidates(f.Ctx, 16, 8, false, false)
	require.NoError(t, err)
	require.Equal(t, []string{server.String()}, addrs(nodes))

	nodes, err = f.Registry.FindCandidates(f.Ctx, 1, 1, true, false)
	require.NoError(t, err)
	require.Equal(t, []string{server.String()}, addrs(nodes))

	nodes, err = f.Registry.FindCandidates(f.Ctx, 1, 1, false, true)
	require.NoError(t, err)
	require.Empty(t, nodes)

	t.Run("reputation floor", func(t *testing.T) {
		manager := keepertest.Addr("manager")
		require.NoError(t, f.Policy.Grant(f.Ctx, f.Admin, access.RoleReputationManager, manager))
		for i := 0; i < 5; i++ {
			require.NoError(t, f.Registry.UpdateReputation(f.Ctx, manager, desk, false))
		}
		nodes, err := f.Registry.FindCandidates(f.Ctx, 1, 1, false, false)
		require.NoError(t, err)
		require.Equal(t, []string{server.String()}, addrs(nodes))
	})

	t.Run("inactivity and expiry", func(t *testing.T) {
		f.Advance(8 * 24 * time.Hour)
		nodes, err := f.Registry.FindCandidates(f.Ctx, 1, 1, false, false)
		require.NoError(t, err)
		require.Empty(t, nodes)

		require.NoError(t, f.Registry.Ping(f.Ctx, server))
		nodes, err = f.Registry.FindCandidates(f.Ctx, 1, 1, false, false)
		require.NoError(t, err)
		require.Len(t, nodes, 1)

		f.Advance(23 * 24 * time.Hour)
		require.NoError(t, f.Registry.Ping(f.Ctx, server))
		nodes, err = f.Registry.FindCandidates(f.Ctx, 1, 1, false, false)
		require.NoError(t, err)
		require.Empty(t, nodes, "attestation expired after 30 days")

		caps := keepertest.ServerCaps()
		require.NoError(t, f.Registry.RenewAttestation(f.Ctx, server, f.Attest(t, server, caps)))
		nodes, err = f.Registry.FindCandidates(f.Ctx, 1, 1, false, false)
		require.NoError(t, err)
		require.Len(t, nodes, 1)
	})
}

func TestRegister_CachesGreenFlag(t *testing.T) {
	f := keepertest.NewFixture(t)
	addr := keepertest.Addr("solar")
	f.CertifyGreen(t, addr, 150, 1)

	f.RegisterNode(t, "solar", "desktop", keepertest.DesktopCaps())
	node, err := f.Registry.GetNode(f.Ctx, addr)
	require.NoError(t, err)
	require.True(t, node.Green)

	nodes, err := f.Registry.FindCandidates(f.Ctx, 1, 1, false, true)
	require.NoError(t, err)
	require.Len(t, nodes, 1)
}

func TestDeviceProfileAdmin(t *testing.T) {
	f := keepertest.NewFixture(t)
	profile := testBoxProfile()
	require.ErrorIs(t, f.Registry.SetDeviceProfile(f.Ctx, keepertest.Addr("x"), profile), access.ErrUnauthorized)
	require.NoError(t, f.Registry.SetDeviceProfile(f.Ctx, f.Admin, profile))

	addr := keepertest.Addr("box")
	f.Fund(t, addr, math.NewInt(200))
	caps := minimalCaps()
	require.NoError(t, f.Registry.Register(f.Ctx, addr, "test_box", caps, f.Attest(t, addr, caps)))

	raised := profile
	raised.MinStake = math.NewInt(300)
	require.ErrorIs(t, f.Registry.SetDeviceProfile(f.Ctx, f.Admin, raised), types.ErrDeviceTypeInUse)
	require.ErrorIs(t, f.Registry.RemoveDeviceProfile(f.Ctx, f.Admin, "test_box"), types.ErrDeviceTypeInUse)

	lowered := profile
	lowered.MinStake = math.NewInt(100)
	require.NoError(t, f.Registry.SetDeviceProfile(f.Ctx, f.Admin, lowered))

	require.NoError(t, f.Registry.Unregister(f.Ctx, addr))
	require.NoError(t, f.Registry.RemoveDeviceProfile(f.Ctx, f.Admin, "test_box"))
	_, err := f.Registry.GetDeviceProfile(f.Ctx, "test_box")
	require.ErrorIs(t, err, types.ErrUnknownDeviceType)
}

func TestGenesisRoundTrip(t *testing.T) {
	f := keepertest.NewFixture(t)
	a := f.RegisterNode(t, "a", "desktop", keepertest.DesktopCaps())
	f.RegisterNode(t, "b", "server", keepertest.ServerCaps())
	require.NoError(t, f.Registry.Slash(f.Ctx, f.Slasher, a, "fraud"))

	exported, err := f.Registry.ExportGenesis(f.Ctx)
	require.NoError(t, err)
	require.NoError(t, exported.Validate())

	g := keepertest.NewFixture(t)
	require.NoError(t, g.Bank.MintCoins(g.Ctx, keepertest.FaucetModule, sdk.NewCoins(sdk.NewCoin(types.DefaultDenom, f.Balance(keeper.ModuleAddress())))))
	require.NoError(t, g.Bank.SendCoinsFromModuleToModule(g.Ctx, keepertest.FaucetModule, types.ModuleName, sdk.NewCoins(sdk.NewCoin(types.DefaultDenom, f.Balance(keeper.ModuleAddress())))))
	require.NoError(t, g.Registry.InitGenesis(g.Ctx, *exported))

	require.Equal(t, f.Registry.ActiveNodes(f.Ctx), g.Registry.ActiveNodes(g.Ctx))
	want, got := f.Registry.GetAggregates(f.Ctx), g.Registry.GetAggregates(g.Ctx)
	require.Equal(t, want.TotalNodes, got.TotalNodes)
	require.Equal(t, want.TotalComputePower, got.TotalComputePower)
	require.True(t, want.TotalStaked.Equal(got.TotalStaked))
	require.True(t, want.TotalSlashed.Equal(got.TotalSlashed))
	require.True(t, g.Registry.IsTombstoned(g.Ctx, a))
	requireInvariants(t, g)
}
