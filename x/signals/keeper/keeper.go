package keeper

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"

	"cosmossdk.io/log"
	storetypes "cosmossdk.io/store/types"
	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/greenmesh/greenmesh/x/shared/access"
	"github.com/greenmesh/greenmesh/x/shared/txn"
	"github.com/greenmesh/greenmesh/x/signals/types"
)

var (
	ParamsKey            = []byte{0x01}
	CertificatePrefix    = []byte{0x02}
	NoncePrefix          = []byte{0x03}
	NodeScorePrefix      = []byte{0x04}
	ForecastPrefix       = []byte{0x05}
	PredictionPrefix     = []byte{0x06}
	NextPredictionIDKey  = []byte{0x07}
	PendingPredictionKey = []byte{0x08}
)

func certificateKey(node sdk.AccAddress) []byte {
	return append(append([]byte{}, CertificatePrefix...), node...)
}

func nonceKey(node sdk.AccAddress) []byte {
	return append(append([]byte{}, NoncePrefix...), node...)
}

func nodeScoreKey(node sdk.AccAddress) []byte {
	return append(append([]byte{}, NodeScorePrefix...), node...)
}

func forecastKey(jobType string) []byte {
	return append(append([]byte{}, ForecastPrefix...), jobType...)
}

func predictionKey(id uint64) []byte {
	bz := make([]byte, 8)
	binary.BigEndian.PutUint64(bz, id)
	return append(append([]byte{}, PredictionPrefix...), bz...)
}

// Keeper is the reference implementation of the green certification and AI
// prediction collaborators. Oracles feed it signed certificates, scores and
// forecasts; the registry and scheduler read them.
type Keeper struct {
	storeKey storetypes.StoreKey
	policy   access.Policy
}

// NewKeeper creates a new signals Keeper instance
func NewKeeper(key storetypes.StoreKey, policy access.Policy) *Keeper {
	return &Keeper{storeKey: key, policy: policy}
}

// Logger returns a module-specific logger.
func (k Keeper) Logger(ctx context.Context) log.Logger {
	return sdk.UnwrapSDKContext(ctx).Logger().With("module", "x/"+types.ModuleName)
}

func (k Keeper) getStore(ctx context.Context) storetypes.KVStore {
	return sdk.UnwrapSDKContext(ctx).KVStore(k.storeKey)
}

func (k Keeper) runAtomic(ctx context.Context, fn func(ctx sdk.Context) error) error {
	return txn.Atomic(sdk.UnwrapSDKContext(ctx), fn)
}

func (k Keeper) set(ctx context.Context, key []byte, v any) error {
	bz, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %T: %w", v, err)
	}
	k.getStore(ctx).Set(key, bz)
	return nil
}

func (k Keeper) get(ctx context.Context, key []byte, v any) bool {
	bz := k.getStore(ctx).Get(key)
	if bz == nil {
		return false
	}
	if err := json.Unmarshal(bz, v); err != nil {
		k.Logger(ctx).Error("corrupt signals record", "key", fmt.Sprintf("%x", key), "error", err)
		return false
	}
	return true
}

// GetParams returns the current parameters for the signals module.
func (k Keeper) GetParams(ctx context.Context) types.Params {
	var params types.Params
	if !k.get(ctx, ParamsKey, &params) {
		return types.DefaultParams()
	}
	return params
}

// SetParams updates the parameters for the signals module.
func (k Keeper) SetParams(ctx context.Context, params types.Params) error {
	if err := params.Validate(); err != nil {
		return err
	}
	return k.set(ctx, ParamsKey, params)
}

// UpdateParams lets an admin replace the module parameters.
func (k Keeper) UpdateParams(ctx context.Context, actor sdk.AccAddress, params types.Params) error {
	if err := k.policy.Require(ctx, actor, access.RoleAdmin); err != nil {
		return err
	}
	return k.SetParams(ctx, params)
}
