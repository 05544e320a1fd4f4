package access_test

import (
	"testing"

	storetypes "cosmossdk.io/store/types"
	"github.com/cosmos/cosmos-sdk/testutil"
	sdk "github.com/cosmos/cosmos-sdk/types"
	authtypes "github.com/cosmos/cosmos-sdk/x/auth/types"
	banktypes "github.com/cosmos/cosmos-sdk/x/bank/types"
	"github.com/stretchr/testify/require"

	"github.com/greenmesh/greenmesh/x/shared/access"
)

func setup(t *testing.T) (access.Policy, sdk.Context, sdk.AccAddress) {
	t.Helper()
	key := storetypes.NewKVStoreKey(access.StoreKey)
	ctx := testutil.DefaultContext(key, storetypes.NewTransientStoreKey("transient_access"))
	p := access.NewPolicy(key)
	admin := sdk.AccAddress([]byte("admin_______________"))
	require.NoError(t, p.SetRole(ctx, access.RoleAdmin, admin))
	return p, ctx, admin
}

func TestRequire(t *testing.T) {
	p, ctx, admin := setup(t)
	user := sdk.AccAddress([]byte("user________________"))

	require.NoError(t, p.Require(ctx, admin, access.RoleAdmin))
	require.ErrorIs(t, p.Require(ctx, user, access.RoleAdmin), access.ErrUnauthorized)
	require.ErrorIs(t, p.Require(ctx, nil, access.RoleAdmin), access.ErrUnauthorized)

	require.NoError(t, p.Grant(ctx, admin, access.RoleValidator, user))
	require.NoError(t, p.Require(ctx, user, access.RoleAdmin, access.RoleValidator))
	require.ErrorIs(t, p.Require(ctx, user), access.ErrUnauthorized)
}

func TestRequireSelfOr(t *testing.T) {
	p, ctx, admin := setup(t)
	owner := sdk.AccAddress([]byte("owner_______________"))
	stranger := sdk.AccAddress([]byte("stranger____________"))

	require.NoError(t, p.RequireSelfOr(ctx, owner, owner, access.RoleAdmin))
	require.NoError(t, p.RequireSelfOr(ctx, admin, owner, access.RoleAdmin))
	require.ErrorIs(t, p.RequireSelfOr(ctx, stranger, owner, access.RoleAdmin), access.ErrUnauthorized)
}

func TestGrantRevoke(t *testing.T) {
	p, ctx, admin := setup(t)
	user := sdk.AccAddress([]byte("user________________"))

	require.ErrorIs(t, p.Grant(ctx, user, access.RoleSlasher, user), access.ErrUnauthorized)
	require.ErrorIs(t, p.Grant(ctx, admin, access.Role("wizard"), user), access.ErrUnknownRole)

	require.NoError(t, p.Grant(ctx, admin, access.RoleSlasher, user))
	require.True(t, p.HasRole(ctx, access.RoleSlasher, user))
	require.False(t, p.HasRole(ctx, access.RoleOracle, user))
	require.Equal(t, []sdk.AccAddress{user}, p.Members(ctx, access.RoleSlasher))

	require.NoError(t, p.Revoke(ctx, admin, access.RoleSlasher, user))
	require.False(t, p.HasRole(ctx, access.RoleSlasher, user))
	require.Empty(t, p.Members(ctx, access.RoleSlasher))

	require.ErrorIs(t, p.Revoke(ctx, admin, access.RoleAdmin, admin), access.ErrLastAdmin)
	require.NoError(t, p.Grant(ctx, admin, access.RoleAdmin, user))
	require.NoError(t, p.Revoke(ctx, user, access.RoleAdmin, admin))
	require.False(t, p.HasRole(ctx, access.RoleAdmin, admin))
}

func TestGenesisRoundTrip(t *testing.T) {
	p, ctx, admin := setup(t)
	oracle := sdk.AccAddress([]byte("oracle______________"))
	require.NoError(t, p.SetRole(ctx, access.RoleOracle, oracle))

	grants := p.ExportGenesis(ctx)
	require.NoError(t, access.ValidateGrants(grants))
	require.Len(t, grants, 2)

	p2, ctx2, _ := setup(t)
	require.NoError(t, p2.InitGenesis(ctx2, grants))
	require.True(t, p2.HasRole(ctx2, access.RoleOracle, oracle))
	require.True(t, p2.HasRole(ctx2, access.RoleAdmin, admin))

	dup := append(grants, grants[0])
	require.ErrorIs(t, access.ValidateGrants(dup), access.ErrInvalidGrant)
}

func TestStoreKeyMountsBesideAuthAndBank(t *testing.T) {
	require.NotPanics(t, func() {
		storetypes.NewKVStoreKeys(authtypes.StoreKey, banktypes.StoreKey, access.StoreKey)
	})
}
