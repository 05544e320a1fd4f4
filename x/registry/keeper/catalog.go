package keeper

import (
	"context"
	"encoding/json"
	"fmt"

	storetypes "cosmossdk.io/store/types"
	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/greenmesh/greenmesh/x/registry/types"
	"github.com/greenmesh/greenmesh/x/shared/access"
)

// GetDeviceProfile returns the catalog entry for deviceType.
func (k Keeper) GetDeviceProfile(ctx context.Context, deviceType string) (types.DeviceProfile, error) {
	var profile types.DeviceProfile
	found, err := getJSON(k.getStore(ctx), DeviceProfileKey(deviceType), &profile)
	if err != nil {
		return types.DeviceProfile{}, err
	}
	if !found {
		return types.DeviceProfile{}, types.ErrUnknownDeviceType.Wrap(deviceType)
	}
	return profile, nil
}

// GetDeviceProfiles returns the whole catalog ordered by device type.
func (k Keeper) GetDeviceProfiles(ctx context.Context) ([]types.DeviceProfile, error) {
	iter := storetypes.KVStorePrefixIterator(k.getStore(ctx), DeviceProfileKeyPrefix)
	defer iter.Close()

	var profiles []types.DeviceProfile
	for ; iter.Valid(); iter.Next() {
		var p types.DeviceProfile
		if err := json.Unmarshal(iter.Value(), &p); err != nil {
			return nil, fmt.Errorf("device profile %x: %w", iter.Key(), err)
		}
		profiles = append(profiles, p)
	}
	return profiles, nil
}

// SetDeviceProfile adds or updates a catalog entry. While nodes of the type
// are registered the update may not change the class, raise the minimum stake
// or lower the concurrency limit, since existing nodes were admitted under the
// old values.
func (k Keeper) SetDeviceProfile(ctx context.Context, actor sdk.AccAddress, profile types.DeviceProfile) error {
	if err := k.policy.Require(ctx, actor, access.RoleAdmin); err != nil {
		return err
	}
	if err := profile.Validate(); err != nil {
		return err
	}

	if k.DeviceTypeCount(ctx, profile.DeviceType) > 0 {
		current, err := k.GetDeviceProfile(ctx, profile.DeviceType)
		if err != nil {
			return err
		}
		if current.Class != profile.Class ||
			profile.MinStake.GT(current.MinStake) ||
			profile.MaxConcurrentTasks < current.MaxConcurrentTasks {
			return types.ErrDeviceTypeInUse.Wrapf("%s: class, min stake and concurrency are frozen while nodes exist", profile.DeviceType)
		}
	}

	if err := k.setDeviceProfile(ctx, profile); err != nil {
		return err
	}

	sdk.UnwrapSDKContext(ctx).EventManager().EmitEvent(
		sdk.NewEvent(
			types.EventTypeDeviceProfileSet,
			sdk.NewAttribute(types.AttributeKeyDeviceType, profile.DeviceType),
			sdk.NewAttribute(types.AttributeKeyStake, profile.MinStake.String()),
			sdk.NewAttribute(types.AttributeKeyActor, actor.String()),
		),
	)
	return nil
}

// RemoveDeviceProfile deletes a catalog entry that no node references.
func (k Keeper) RemoveDeviceProfile(ctx context.Context, actor sdk.AccAddress, deviceType string) error {
	if err := k.policy.Require(ctx, actor, access.RoleAdmin); err != nil {
		return err
	}
	if _, err := k.GetDeviceProfile(ctx, deviceType); err != nil {
		return err
	}
	if n := k.DeviceTypeCount(ctx, deviceType); n > 0 {
		return types.ErrDeviceTypeInUse.Wrapf("%s has %d nodes", deviceType, n)
	}

	k.getStore(ctx).Delete(DeviceProfileKey(deviceType))

	sdk.UnwrapSDKContext(ctx).EventManager().EmitEvent(
		sdk.NewEvent(
			types.EventTypeDeviceProfileRemoved,
			sdk.NewAttribute(types.AttributeKeyDeviceType, deviceType),
			sdk.NewAttribute(types.AttributeKeyActor, actor.String()),
		),
	)
	return nil
}

func (k Keeper) setDeviceProfile(ctx context.Context, profile types.DeviceProfile) error {
	return setJSON(k.getStore(ctx), DeviceProfileKey(profile.DeviceType), profile)
}

// DeviceTypeCount returns the number of registered nodes of deviceType.
func (k Keeper) DeviceTypeCount(ctx context.Context, deviceType string) uint64 {
	return GetUint64FromBytes(k.getStore(ctx).Get(DeviceTypeCountKey(deviceType)))
}

// DeviceTypeCounts returns the per-type node counts for every catalog entry.
func (k Keeper) DeviceTypeCounts(ctx context.Context) ([]types.DeviceTypeCount, error) {
	profiles, err := k.GetDeviceProfiles(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]types.DeviceTypeCount, 0, len(profiles))
	for _, p := range profiles {
		out = append(out, types.DeviceTypeCount{DeviceType: p.DeviceType, Count: k.DeviceTypeCount(ctx, p.DeviceType)})
	}
	return out, nil
}

func (k Keeper) adjustDeviceTypeCount(ctx context.Context, deviceType string, delta int) {
	n := k.DeviceTypeCount(ctx, deviceType)
	switch {
	case delta > 0:
		n += uint64(delta)
	case uint64(-delta) > n:
		n = 0
	default:
		n -= uint64(-delta)
	}
	store := k.getStore(ctx)
	if n == 0 {
		store.Delete(DeviceTypeCountKey(deviceType))
		return
	}
	store.Set(DeviceTypeCountKey(deviceType), GetUint64Bytes(n))
}
