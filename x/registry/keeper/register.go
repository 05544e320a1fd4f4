package keeper

import (
	"context"
	"fmt"
	"time"

	errorsmod "cosmossdk.io/errors"
	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/greenmesh/greenmesh/x/registry/types"
	"github.com/greenmesh/greenmesh/x/shared/access"
)

// Register admits addr as a node of deviceType. The device profile's minimum
// stake is locked from addr's balance.
func (k Keeper) Register(
	ctx context.Context,
	addr sdk.AccAddress,
	deviceType string,
	caps types.Capabilities,
	claim types.AttestationClaim,
) error {
	return k.runAtomic(ctx, func(ctx sdk.Context) error {
		if err := k.requireNotPaused(ctx); err != nil {
			return err
		}
		params, err := k.GetParams(ctx)
		if err != nil {
			return err
		}
		return k.register(ctx, params, addr, deviceType, caps, claim)
	})
}

// RegisterBatch registers every entry or none. Each entry's stake is drawn
// from its own identity, so an operator may only submit entries for itself
// unless it holds the bulk registrar role. Batches above the alert threshold
// always require that role and leave an alert record behind.
func (k Keeper) RegisterBatch(ctx context.Context, operator sdk.AccAddress, entries []types.Registration) error {
	if len(entries) == 0 {
		return types.ErrEmptyBatch
	}
	return k.runAtomic(ctx, func(ctx sdk.Context) error {
		if err := k.requireNotPaused(ctx); err != nil {
			return err
		}
		params, err := k.GetParams(ctx)
		if err != nil {
			return err
		}

		oversized := uint32(len(entries)) > params.BatchAlertThreshold
		bulk := k.policy.HasRole(ctx, access.RoleBulkRegistrar, operator)
		if oversized && !bulk {
			return access.ErrUnauthorized.Wrapf("batch of %d exceeds %d without bulk registrar role", len(entries), params.BatchAlertThreshold)
		}

		for i, entry := range entries {
			addr, err := sdk.AccAddressFromBech32(entry.Address)
			if err != nil {
				return types.ErrInvalidAddress.Wrapf("entry %d: %v", i, err)
			}
			if !bulk && !addr.Equals(operator) {
				return access.ErrUnauthorized.Wrapf("entry %d registers %s on behalf of %s", i, addr, operator)
			}
			if err := k.register(ctx, params, addr, entry.DeviceType, entry.Capabilities, entry.Attestation); err != nil {
				return errorsmod.Wrapf(err, "entry %d", i)
			}
		}

		if oversized {
			return k.raiseBatchAlert(ctx, operator, uint32(len(entries)))
		}
		return nil
	})
}

func (k Keeper) register(
	ctx sdk.Context,
	params types.Params,
	addr sdk.AccAddress,
	deviceType string,
	caps types.Capabilities,
	claim types.AttestationClaim,
) error {
	if k.IsTombstoned(ctx, addr) {
		return types.ErrPermanentlySlashed.Wrap(addr.String())
	}
	if k.HasNode(ctx, addr) {
		return types.ErrAlreadyRegistered.Wrap(addr.String())
	}

	profile, err := k.GetDeviceProfile(ctx, deviceType)
	if err != nil {
		return err
	}
	if err := validateCapabilities(profile, caps, params); err != nil {
		return err
	}

	record, err := k.verifyAttestation(ctx, addr, caps, claim, params)
	if err != nil {
		return err
	}

	if err := k.consumeRegistrationSlot(ctx, params); err != nil {
		return err
	}

	if err := k.bankKeeper.SendCoinsFromAccountToModule(ctx, addr, types.ModuleName, stakeCoins(params, profile.MinStake)); err != nil {
		return errorsmod.Wrapf(err, "lock stake %s%s", profile.MinStake, params.Denom)
	}

	green := false
	if k.green != nil {
		green = k.green.IsGreen(ctx, addr)
	}

	now := ctx.BlockTime()
	node := types.Node{
		Address:      addr.String(),
		DeviceType:   deviceType,
		Capabilities: caps,
		Stake:        profile.MinStake,
		RegisteredAt: now,
		LastActiveAt: now,
		Reputation:   params.InitialReputation,
		Green:        green,
		Attestation:  record,
	}
	if err := k.SetNode(ctx, node); err != nil {
		return err
	}
	k.addToIndex(ctx, addr)
	k.adjustDeviceTypeCount(ctx, deviceType, 1)

	agg := k.getAggregates(ctx)
	agg.TotalNodes++
	agg.TotalStaked = agg.TotalStaked.Add(profile.MinStake)
	agg.TotalComputePower += caps.ComputePower()
	if err := k.setAggregates(ctx, agg); err != nil {
		return err
	}

	k.metrics.NodesRegistered.WithLabelValues(deviceType).Inc()
	ctx.EventManager().EmitEvent(
		sdk.NewEvent(
			types.EventTypeNodeRegistered,
			sdk.NewAttribute(types.AttributeKeyNode, addr.String()),
			sdk.NewAttribute(types.AttributeKeyDeviceType, deviceType),
			sdk.NewAttribute(types.AttributeKeyStake, profile.MinStake.String()),
			sdk.NewAttribute(types.AttributeKeyGreen, fmt.Sprintf("%t", green)),
			sdk.NewAttribute(types.AttributeKeyExpiresAt, record.ExpiresAt.UTC().Format(time.RFC3339)),
		),
	)
	return nil
}

func validateCapabilities(profile types.DeviceProfile, caps types.Capabilities, params types.Params) error {
	switch {
	case caps.CpuCores < profile.MinCpuCores:
		return types.ErrInsufficientCapability.Wrapf("cpu cores %d < %d", caps.CpuCores, profile.MinCpuCores)
	case caps.RamGb < profile.MinRamGb:
		return types.ErrInsufficientCapability.Wrapf("ram %dGB < %dGB", caps.RamGb, profile.MinRamGb)
	case caps.StorageGb < profile.MinStorageGb:
		return types.ErrInsufficientCapability.Wrapf("storage %dGB < %dGB", caps.StorageGb, profile.MinStorageGb)
	case caps.BandwidthMbps < profile.MinBandwidthMbps:
		return types.ErrInsufficientCapability.Wrapf("bandwidth %dMbps < %dMbps", caps.BandwidthMbps, profile.MinBandwidthMbps)
	}

	switch profile.Class {
	case types.DeviceClassMobile:
		if !caps.Mobile || caps.BatteryMah == 0 {
			return types.ErrInvalidMobileConfig.Wrap("mobile devices need the mobility flag and a battery")
		}
	case types.DeviceClassServer:
		if caps.Mobile {
			return types.ErrInvalidServerConfig.Wrap("servers cannot be mobile")
		}
		if caps.UptimePercent < params.MinServerUptimePercent {
			return types.ErrInvalidServerConfig.Wrapf("uptime %d%% < %d%%", caps.UptimePercent, params.MinServerUptimePercent)
		}
	}
	return nil
}

func (k Keeper) raiseBatchAlert(ctx sdk.Context, operator sdk.AccAddress, size uint32) error {
	store := k.getStore(ctx)
	id := GetUint64FromBytes(store.Get(NextAlertIDKey)) + 1
	store.Set(NextAlertIDKey, GetUint64Bytes(id))

	alert := types.BatchAlert{ID: id, Operator: operator.String(), Size: size, RaisedAt: ctx.BlockTime()}
	if err := setJSON(store, BatchAlertKey(id), alert); err != nil {
		return err
	}

	k.Logger(ctx).Warn("oversized registration batch", "operator", operator.String(), "size", size)
	ctx.EventManager().EmitEvent(
		sdk.NewEvent(
			types.EventTypeRegistrationBatchAlert,
			sdk.NewAttribute(types.AttributeKeyAlertID, fmt.Sprintf("%d", id)),
			sdk.NewAttribute(types.AttributeKeyOperator, operator.String()),
			sdk.NewAttribute(types.AttributeKeyBatchSize, fmt.Sprintf("%d", size)),
		),
	)
	return nil
}

// GetBatchAlerts returns every batch alert in id order.
func (k Keeper) GetBatchAlerts(ctx context.Context) ([]types.BatchAlert, error) {
	store := k.getStore(ctx)
	n := GetUint64FromBytes(store.Get(NextAlertIDKey))
	out := make([]types.BatchAlert, 0, n)
	for id := uint64(1); id <= n; id++ {
		var alert types.BatchAlert
		found, err := getJSON(store, BatchAlertKey(id), &alert)
		if err != nil {
			return nil, err
		}
		if found {
			out = append(out, alert)
		}
	}
	return out, nil
}

// Unregister removes addr from the registry and returns its remaining stake.
// A permanently slashed identity stays tombstoned.
func (k Keeper) Unregister(ctx context.Context, addr sdk.AccAddress) error {
	return k.runAtomic(ctx, func(ctx sdk.Context) error {
		if err := k.requireNotPaused(ctx); err != nil {
			return err
		}
		node, err := k.GetNode(ctx, addr)
		if err != nil {
			return err
		}
		if node.ActiveTasks > 0 {
			return types.ErrNodeBusy.Wrapf("%d active tasks", node.ActiveTasks)
		}
		params, err := k.GetParams(ctx)
		if err != nil {
			return err
		}

		k.removeFromIndex(ctx, addr)
		k.adjustDeviceTypeCount(ctx, node.DeviceType, -1)

		agg := k.getAggregates(ctx)
		if agg.TotalNodes > 0 {
			agg.TotalNodes--
		}
		agg.TotalStaked = agg.TotalStaked.Sub(node.Stake)
		power := node.Capabilities.ComputePower()
		if agg.TotalComputePower >= power {
			agg.TotalComputePower -= power
		} else {
			agg.TotalComputePower = 0
		}
		if err := k.setAggregates(ctx, agg); err != nil {
			return err
		}
		k.deleteNode(ctx, addr)

		if node.Stake.IsPositive() {
			release, err := k.guard.Enter("registry/stake")
			if err != nil {
				return err
			}
			defer release()
			if err := k.bankKeeper.SendCoinsFromModuleToAccount(ctx, types.ModuleName, addr, stakeCoins(params, node.Stake)); err != nil {
				return types.ErrStakeTransfer.Wrapf("return stake: %v", err)
			}
		}

		k.metrics.NodesUnregistered.WithLabelValues(node.DeviceType).Inc()
		ctx.EventManager().EmitEvent(
			sdk.NewEvent(
				types.EventTypeNodeUnregistered,
				sdk.NewAttribute(types.AttributeKeyNode, addr.String()),
				sdk.NewAttribute(types.AttributeKeyDeviceType, node.DeviceType),
				sdk.NewAttribute(types.AttributeKeyReturned, node.Stake.String()),
			),
		)
		return nil
	})
}
