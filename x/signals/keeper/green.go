package keeper

import (
	"context"
	"fmt"
	"time"

	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/greenmesh/greenmesh/x/shared/access"
	"github.com/greenmesh/greenmesh/x/shared/attest"
	"github.com/greenmesh/greenmesh/x/signals/types"
)

// SubmitGreenCertificate accepts an oracle-signed certificate for a node. Anyone
// may relay it; the signature decides. Nonces are strictly increasing per node.
func (k Keeper) SubmitGreenCertificate(ctx context.Context, claim types.CertificateClaim, signature []byte) error {
	return k.runAtomic(ctx, func(ctx sdk.Context) error {
		if err := claim.Validate(); err != nil {
			return err
		}
		node, err := sdk.AccAddressFromBech32(claim.Node)
		if err != nil {
			return types.ErrInvalidCertificate.Wrapf("node: %v", err)
		}

		now := ctx.BlockTime()
		validUntil := time.Unix(claim.ValidUntil, 0).UTC()
		if !validUntil.After(now) {
			return types.ErrCertificateExpired.Wrapf("valid until %s", validUntil.Format(time.RFC3339))
		}
		maxValidity := time.Duration(k.GetParams(ctx).MaxCertificateValiditySecs) * time.Second
		if validUntil.Sub(now) > maxValidity {
			return types.ErrInvalidCertificate.Wrapf("validity exceeds %s", maxValidity)
		}

		oracle, err := attest.Verify(ctx, k.policy, access.RoleOracle, node, claim, types.CertificateDomain, signature)
		if err != nil {
			return types.ErrUntrustedOracle.Wrap(err.Error())
		}

		if last := k.lastNonce(ctx, node); claim.Nonce <= last {
			return types.ErrStaleNonce.Wrapf("nonce %d, last accepted %d", claim.Nonce, last)
		}
		k.getStore(ctx).Set(nonceKey(node), sdk.Uint64ToBigEndian(claim.Nonce))

		cert := types.GreenCertificate{
			Node:       node.String(),
			Green:      claim.Green,
			Multiplier: claim.Multiplier,
			ValidUntil: validUntil,
			Nonce:      claim.Nonce,
			Oracle:     oracle.String(),
			IssuedAt:   now,
		}
		if err := k.set(ctx, certificateKey(node), cert); err != nil {
			return err
		}

		ctx.EventManager().EmitEvent(
			sdk.NewEvent(
				types.EventTypeGreenCertified,
				sdk.NewAttribute(types.AttributeKeyNode, cert.Node),
				sdk.NewAttribute(types.AttributeKeyGreen, fmt.Sprintf("%t", cert.Green)),
				sdk.NewAttribute(types.AttributeKeyMultiplier, fmt.Sprintf("%d", cert.Multiplier)),
				sdk.NewAttribute(types.AttributeKeyValidUntil, validUntil.Format(time.RFC3339)),
				sdk.NewAttribute(types.AttributeKeyOracle, cert.Oracle),
			),
		)
		return nil
	})
}

// RevokeGreenCertificate drops a node's certificate.
func (k Keeper) RevokeGreenCertificate(ctx context.Context, actor, node sdk.AccAddress) error {
	if err := k.policy.Require(ctx, actor, access.RoleOracle); err != nil {
		return err
	}
	k.getStore(ctx).Delete(certificateKey(node))
	sdk.UnwrapSDKContext(ctx).EventManager().EmitEvent(
		sdk.NewEvent(
			types.EventTypeGreenRevoked,
			sdk.NewAttribute(types.AttributeKeyNode, node.String()),
			sdk.NewAttribute(types.AttributeKeyOracle, actor.String()),
		),
	)
	return nil
}

func (k Keeper) lastNonce(ctx context.Context, node sdk.AccAddress) uint64 {
	bz := k.getStore(ctx).Get(nonceKey(node))
	if bz == nil {
		return 0
	}
	return sdk.BigEndianToUint64(bz)
}

// GetGreenCertificate returns the stored certificate for node, active or not.
func (k Keeper) GetGreenCertificate(ctx context.Context, node sdk.AccAddress) (types.GreenCertificate, bool) {
	var cert types.GreenCertificate
	ok := k.get(ctx, certificateKey(node), &cert)
	return cert, ok
}

func (k Keeper) activeCertificate(ctx context.Context, node sdk.AccAddress) (types.GreenCertificate, bool) {
	cert, ok := k.GetGreenCertificate(ctx, node)
	if !ok || !cert.Active(sdk.UnwrapSDKContext(ctx).BlockTime()) {
		return types.GreenCertificate{}, false
	}
	return cert, true
}

// IsGreen reports whether node holds an active green certificate.
func (k Keeper) IsGreen(ctx context.Context, node sdk.AccAddress) bool {
	cert, ok := k.activeCertificate(ctx, node)
	return ok && cert.Green
}

// RewardMultiplier returns node's green multiplier in percent, 100 when uncertified.
func (k Keeper) RewardMultiplier(ctx context.Context, node sdk.AccAddress) uint32 {
	cert, ok := k.activeCertificate(ctx, node)
	if !ok {
		return types.NeutralMultiplier
	}
	return cert.Multiplier
}
