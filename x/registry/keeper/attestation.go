package keeper

import (
	"context"
	"time"

	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/greenmesh/greenmesh/x/registry/types"
	"github.com/greenmesh/greenmesh/x/shared/access"
	"github.com/greenmesh/greenmesh/x/shared/attest"
)

// verifyAttestation checks that claim was signed by an attestor over
// (node identity, declared capabilities, attestation hash) and returns the
// record to store.
func (k Keeper) verifyAttestation(
	ctx context.Context,
	addr sdk.AccAddress,
	caps types.Capabilities,
	claim types.AttestationClaim,
	params types.Params,
) (types.Attestation, error) {
	if len(claim.Hash) == 0 {
		return types.Attestation{}, types.ErrInvalidAttestation.Wrap("empty attestation hash")
	}
	signer, err := attest.Verify(ctx, k.policy, access.RoleAttestor, addr, caps, claim.Hash, claim.Signature)
	if err != nil {
		return types.Attestation{}, types.ErrInvalidAttestation.Wrap(err.Error())
	}

	now := sdk.UnwrapSDKContext(ctx).BlockTime()
	return types.Attestation{
		Hash:      append([]byte{}, claim.Hash...),
		Attestor:  signer.String(),
		IssuedAt:  now,
		ExpiresAt: now.Add(time.Duration(params.AttestationValiditySeconds) * time.Second),
		Verified:  true,
	}, nil
}

// RenewAttestation replaces a node's attestation with a freshly signed one
// over its stored capabilities.
func (k Keeper) RenewAttestation(ctx context.Context, addr sdk.AccAddress, claim types.AttestationClaim) error {
	return k.runAtomic(ctx, func(ctx sdk.Context) error {
		if err := k.requireNotPaused(ctx); err != nil {
			return err
		}
		node, err := k.GetNode(ctx, addr)
		if err != nil {
			return err
		}
		if node.Slashed {
			return types.ErrNodeSlashed.Wrap(addr.String())
		}
		params, err := k.GetParams(ctx)
		if err != nil {
			return err
		}
		record, err := k.verifyAttestation(ctx, addr, node.Capabilities, claim, params)
		if err != nil {
			return err
		}

		node.Attestation = record
		node.LastActiveAt = ctx.BlockTime()
		if err := k.SetNode(ctx, node); err != nil {
			return err
		}

		ctx.EventManager().EmitEvent(
			sdk.NewEvent(
				types.EventTypeAttestationRenewed,
				sdk.NewAttribute(types.AttributeKeyNode, addr.String()),
				sdk.NewAttribute(types.AttributeKeyExpiresAt, record.ExpiresAt.UTC().Format(time.RFC3339)),
			),
		)
		return nil
	})
}
