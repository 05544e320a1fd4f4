package keeper_test

import (
	"fmt"
	"testing"

	"cosmossdk.io/math"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	keepertest "github.com/greenmesh/greenmesh/testutil/keeper"
	"github.com/greenmesh/greenmesh/x/registry/keeper"
	"github.com/greenmesh/greenmesh/x/shared/access"
)

// Random register / unregister / reserve / release / slash sequences never
// break stake conservation, the active index or the capacity bound.
func TestRegistryInvariantsHoldUnderRandomOperations(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		f := keepertest.NewFixture(rt)
		require.NoError(rt, f.Policy.Grant(f.Ctx, f.Admin, access.RoleCapacityManager, f.Admin))

		names := make([]string, 6)
		for i := range names {
			names[i] = fmt.Sprintf("node-%d", i)
			f.Fund(rt, keepertest.Addr(names[i]), math.NewInt(200_000_000))
		}

		steps := rapid.IntRange(1, 40).Draw(rt, "steps")
		for i := 0; i < steps; i++ {
			addr := keepertest.Addr(rapid.SampledFrom(names).Draw(rt, "node"))
			switch rapid.IntRange(0, 4).Draw(rt, "op") {
			case 0:
				caps := keepertest.DesktopCaps()
				_ = f.Registry.Register(f.Ctx, addr, "desktop", caps, f.Attest(rt, addr, caps))
			case 1:
				_ = f.Registry.Unregister(f.Ctx, addr)
			case 2:
				_, _ = f.Registry.TryReserveCapacity(f.Ctx, f.Admin, addr)
			case 3:
				_ = f.Registry.ReleaseCapacity(f.Ctx, f.Admin, addr)
			case 4:
				_ = f.Registry.Slash(f.Ctx, f.Slasher, addr, "random")
			}

			msg, broken := keeper.AllInvariants(*f.Registry)(f.Ctx)
			if broken {
				rt.Fatalf("step %d: %s", i, msg)
			}
		}
	})
}
