package keeper

import (
	"context"
	"encoding/json"
	"fmt"

	"cosmossdk.io/log"
	"cosmossdk.io/math"
	storetypes "cosmossdk.io/store/types"
	sdk "github.com/cosmos/cosmos-sdk/types"
	authtypes "github.com/cosmos/cosmos-sdk/x/auth/types"

	"github.com/greenmesh/greenmesh/x/scheduler/types"
	"github.com/greenmesh/greenmesh/x/shared/access"
	"github.com/greenmesh/greenmesh/x/shared/besteffort"
	"github.com/greenmesh/greenmesh/x/shared/guard"
	"github.com/greenmesh/greenmesh/x/shared/txn"
)

// payoutScope is the re-entrancy scope held around every payment movement.
const payoutScope = "scheduler/payout"

// Keeper of the job scheduler store
type Keeper struct {
	storeKey storetypes.StoreKey
	registry types.RegistryKeeper
	bank     types.BankKeeper
	green    types.GreenSignals
	ai       types.AISignals
	escrow   types.EscrowKeeper
	policy   access.Policy
	runner   besteffort.Runner
	guard    *guard.Guard
	metrics  *SchedulerMetrics
}

// NewKeeper creates a new scheduler Keeper instance. escrow may be nil, in
// which case jobs on the escrow rail are rejected.
func NewKeeper(
	key storetypes.StoreKey,
	registry types.RegistryKeeper,
	bankKeeper types.BankKeeper,
	green types.GreenSignals,
	ai types.AISignals,
	escrow types.EscrowKeeper,
	policy access.Policy,
) *Keeper {
	return &Keeper{
		storeKey: key,
		registry: registry,
		bank:     bankKeeper,
		green:    green,
		ai:       ai,
		escrow:   escrow,
		policy:   policy,
		runner:   besteffort.NewRunner(types.ModuleName),
		guard:    guard.New(),
		metrics:  NewSchedulerMetrics(),
	}
}

// Logger returns a module-specific logger.
func (k Keeper) Logger(ctx context.Context) log.Logger {
	return sdk.UnwrapSDKContext(ctx).Logger().With("module", "x/"+types.ModuleName)
}

// ModuleAddress is the account holding direct-rail payments. It is also the
// identity the scheduler presents to the registry and the escrow custodian.
func ModuleAddress() sdk.AccAddress {
	return authtypes.NewModuleAddress(types.ModuleName)
}

// OperatorRoles are the roles the module account needs on its collaborators.
var OperatorRoles = []access.Role{
	access.RoleCapacityManager,
	access.RoleReputationManager,
	access.RoleEscrowAgent,
}

func (k Keeper) getStore(ctx context.Context) storetypes.KVStore {
	return sdk.UnwrapSDKContext(ctx).KVStore(k.storeKey)
}

// runAtomic executes fn on a branch of ctx; nothing fn writes survives an error.
func (k Keeper) runAtomic(ctx context.Context, fn func(ctx sdk.Context) error) error {
	return txn.Atomic(sdk.UnwrapSDKContext(ctx), fn)
}

func (k Keeper) coins(ctx context.Context, amount math.Int) sdk.Coins {
	return sdk.NewCoins(sdk.NewCoin(k.GetParams(ctx).Denom, amount))
}

// GetParams returns the current parameters, or the defaults when none are stored.
func (k Keeper) GetParams(ctx context.Context) types.Params {
	bz := k.getStore(ctx).Get(ParamsKey)
	if bz == nil {
		return types.DefaultParams()
	}
	var params types.Params
	if err := json.Unmarshal(bz, &params); err != nil {
		panic(fmt.Sprintf("corrupt scheduler params: %v", err))
	}
	return params
}

// SetParams stores params after validation.
func (k Keeper) SetParams(ctx context.Context, params types.Params) error {
	if err := params.Validate(); err != nil {
		return err
	}
	bz, err := json.Marshal(params)
	if err != nil {
		return err
	}
	k.getStore(ctx).Set(ParamsKey, bz)
	return nil
}

// UpdateParams replaces params on behalf of an admin. The denom cannot change
// while direct-rail payments are locked.
func (k Keeper) UpdateParams(ctx context.Context, actor sdk.AccAddress, params types.Params) error {
	if err := k.policy.Require(ctx, actor, access.RoleAdmin); err != nil {
		return err
	}
	current := k.GetParams(ctx)
	if params.Denom != current.Denom && !k.lockedPayments(ctx).IsZero() {
		return types.ErrInvalidParams.Wrap("denom is frozen while payments are locked")
	}
	return k.SetParams(ctx, params)
}
