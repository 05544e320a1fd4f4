package keeper

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"

	"cosmossdk.io/log"
	storetypes "cosmossdk.io/store/types"
	sdk "github.com/cosmos/cosmos-sdk/types"
	authtypes "github.com/cosmos/cosmos-sdk/x/auth/types"

	"github.com/greenmesh/greenmesh/x/escrow/types"
	"github.com/greenmesh/greenmesh/x/shared/access"
	"github.com/greenmesh/greenmesh/x/shared/guard"
	"github.com/greenmesh/greenmesh/x/shared/txn"
)

var (
	ParamsKey    = []byte{0x01}
	RecordPrefix = []byte{0x02}
)

// RecordKey returns the store key for a job's escrow
func RecordKey(jobID uint64) []byte {
	bz := make([]byte, 8)
	binary.BigEndian.PutUint64(bz, jobID)
	return append(append([]byte{}, RecordPrefix...), bz...)
}

// Keeper is the reference escrow custodian.
type Keeper struct {
	storeKey   storetypes.StoreKey
	bankKeeper types.BankKeeper
	policy     access.Policy
	guard      *guard.Guard
}

// NewKeeper creates a new escrow Keeper instance
func NewKeeper(key storetypes.StoreKey, bankKeeper types.BankKeeper, policy access.Policy) *Keeper {
	return &Keeper{storeKey: key, bankKeeper: bankKeeper, policy: policy, guard: guard.New()}
}

// Logger returns a module-specific logger.
func (k Keeper) Logger(ctx context.Context) log.Logger {
	return sdk.UnwrapSDKContext(ctx).Logger().With("module", "x/"+types.ModuleName)
}

// ModuleAddress is the account holding funded escrows.
func ModuleAddress() sdk.AccAddress {
	return authtypes.NewModuleAddress(types.ModuleName)
}

func (k Keeper) getStore(ctx context.Context) storetypes.KVStore {
	return sdk.UnwrapSDKContext(ctx).KVStore(k.storeKey)
}

// GetParams returns the current parameters for the escrow module.
func (k Keeper) GetParams(ctx context.Context) types.Params {
	bz := k.getStore(ctx).Get(ParamsKey)
	if bz == nil {
		return types.DefaultParams()
	}
	var p types.Params
	if err := json.Unmarshal(bz, &p); err != nil {
		return types.DefaultParams()
	}
	return p
}

// SetParams updates the parameters for the escrow module.
func (k Keeper) SetParams(ctx context.Context, p types.Params) error {
	if err := p.Validate(); err != nil {
		return err
	}
	bz, err := json.Marshal(p)
	if err != nil {
		return err
	}
	k.getStore(ctx).Set(ParamsKey, bz)
	return nil
}

// GetEscrow returns the escrow for jobID.
func (k Keeper) GetEscrow(ctx context.Context, jobID uint64) (types.Record, error) {
	bz := k.getStore(ctx).Get(RecordKey(jobID))
	if bz == nil {
		return types.Record{}, types.ErrEscrowNotFound.Wrapf("job %d", jobID)
	}
	var r types.Record
	if err := json.Unmarshal(bz, &r); err != nil {
		return types.Record{}, fmt.Errorf("unmarshal escrow %d: %w", jobID, err)
	}
	return r, nil
}

func (k Keeper) setEscrow(ctx context.Context, r types.Record) error {
	bz, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal escrow %d: %w", r.JobID, err)
	}
	k.getStore(ctx).Set(RecordKey(r.JobID), bz)
	return nil
}

// IterateEscrows walks every escrow in job id order
func (k Keeper) IterateEscrows(ctx context.Context, cb func(r types.Record) (stop bool)) error {
	iter := storetypes.KVStorePrefixIterator(k.getStore(ctx), RecordPrefix)
	defer iter.Close()
	for ; iter.Valid(); iter.Next() {
		var r types.Record
		if err := json.Unmarshal(iter.Value(), &r); err != nil {
			return fmt.Errorf("unmarshal escrow: %w", err)
		}
		if cb(r) {
			break
		}
	}
	return nil
}

func (k Keeper) runAtomic(ctx context.Context, fn func(ctx sdk.Context) error) error {
	return txn.Atomic(sdk.UnwrapSDKContext(ctx), fn)
}
