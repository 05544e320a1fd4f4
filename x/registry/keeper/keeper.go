package keeper

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cosmossdk.io/log"
	"cosmossdk.io/math"
	storetypes "cosmossdk.io/store/types"
	sdk "github.com/cosmos/cosmos-sdk/types"
	authtypes "github.com/cosmos/cosmos-sdk/x/auth/types"

	"github.com/greenmesh/greenmesh/x/registry/types"
	"github.com/greenmesh/greenmesh/x/shared/access"
	"github.com/greenmesh/greenmesh/x/shared/guard"
	"github.com/greenmesh/greenmesh/x/shared/txn"
)

// Keeper of the node registry store
type Keeper struct {
	storeKey   storetypes.StoreKey
	bankKeeper types.BankKeeper
	green      types.GreenSignals
	policy     access.Policy
	guard      *guard.Guard
	metrics    *RegistryMetrics
}

// NewKeeper creates a new registry Keeper instance. green may be nil, in which
// case no node is ever cached as green.
func NewKeeper(
	key storetypes.StoreKey,
	bankKeeper types.BankKeeper,
	green types.GreenSignals,
	policy access.Policy,
) *Keeper {
	return &Keeper{
		storeKey:   key,
		bankKeeper: bankKeeper,
		green:      green,
		policy:     policy,
		guard:      guard.New(),
		metrics:    NewRegistryMetrics(),
	}
}

// SetGreenSignals wires the green collaborator after construction.
func (k *Keeper) SetGreenSignals(green types.GreenSignals) {
	k.green = green
}

// Logger returns a module-specific logger.
func (k Keeper) Logger(ctx context.Context) log.Logger {
	return sdk.UnwrapSDKContext(ctx).Logger().With("module", "x/"+types.ModuleName)
}

// ModuleAddress is the account holding all locked stake.
func ModuleAddress() sdk.AccAddress {
	return authtypes.NewModuleAddress(types.ModuleName)
}

func (k Keeper) getStore(ctx context.Context) storetypes.KVStore {
	return sdk.UnwrapSDKContext(ctx).KVStore(k.storeKey)
}

// runAtomic executes fn on a branch of ctx; nothing fn writes survives an error.
func (k Keeper) runAtomic(ctx context.Context, fn func(ctx sdk.Context) error) error {
	return txn.Atomic(sdk.UnwrapSDKContext(ctx), fn)
}

func stakeCoins(params types.Params, amount math.Int) sdk.Coins {
	return sdk.NewCoins(sdk.NewCoin(params.Denom, amount))
}

func setJSON(store storetypes.KVStore, key []byte, v any) error {
	bz, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %T: %w", v, err)
	}
	store.Set(key, bz)
	return nil
}

func getJSON(store storetypes.KVStore, key []byte, v any) (bool, error) {
	bz := store.Get(key)
	if bz == nil {
		return false, nil
	}
	if err := json.Unmarshal(bz, v); err != nil {
		return true, fmt.Errorf("unmarshal %T: %w", v, err)
	}
	return true, nil
}

func blockTime(ctx context.Context) time.Time {
	return sdk.UnwrapSDKContext(ctx).BlockTime()
}
