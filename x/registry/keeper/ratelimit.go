package keeper

import (
	"context"
	"encoding/binary"

	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/greenmesh/greenmesh/x/registry/types"
)

// Registrations are counted in fixed time buckets. The cap per bucket grows in
// discrete tiers with the size of the network:
//
//	cap = BaseRegistrationCap * (1 + activeNodes / RegistrationTierSize)

// RegistrationCap returns the current per-window registration cap.
func (k Keeper) RegistrationCap(ctx context.Context, params types.Params) uint64 {
	tiers := k.ActiveNodeCount(ctx) / params.RegistrationTierSize
	return params.BaseRegistrationCap * (1 + tiers)
}

func (k Keeper) registrationBucket(ctx context.Context, params types.Params) (bucket, count uint64) {
	now := sdk.UnwrapSDKContext(ctx).BlockTime().Unix()
	if now < 0 {
		now = 0
	}
	current := uint64(now) / params.RegistrationWindowSeconds

	bz := k.getStore(ctx).Get(RegistrationBucketKey)
	if len(bz) != 16 {
		return current, 0
	}
	stored := binary.BigEndian.Uint64(bz[:8])
	if stored != current {
		return current, 0
	}
	return current, binary.BigEndian.Uint64(bz[8:])
}

// consumeRegistrationSlot takes one slot from the current window.
func (k Keeper) consumeRegistrationSlot(ctx context.Context, params types.Params) error {
	bucket, count := k.registrationBucket(ctx, params)
	limit := k.RegistrationCap(ctx, params)
	if count >= limit {
		k.metrics.RegistrationsRateLimited.Inc()
		return types.ErrRegistrationRateLimited.Wrapf("%d registrations this window, cap %d", count, limit)
	}

	bz := make([]byte, 16)
	binary.BigEndian.PutUint64(bz[:8], bucket)
	binary.BigEndian.PutUint64(bz[8:], count+1)
	k.getStore(ctx).Set(RegistrationBucketKey, bz)
	return nil
}

// RegistrationsThisWindow returns how many registrations the current window holds.
func (k Keeper) RegistrationsThisWindow(ctx context.Context) (uint64, error) {
	params, err := k.GetParams(ctx)
	if err != nil {
		return 0, err
	}
	_, count := k.registrationBucket(ctx, params)
	return count, nil
}
