// Package attest builds and verifies the role-signed statements used for node
// hardware attestations and green certificates.
//
// The signed message is sha256(subject address bytes || CBOR(payload) || aux),
// where the payload is encoded with the core deterministic CBOR profile so the
// same struct always hashes the same way. Signatures are 65-byte compact
// recoverable secp256k1 signatures; the signer is identified by the account
// address of the recovered compressed public key.
package attest

import (
	"context"
	"crypto/sha256"

	errorsmod "cosmossdk.io/errors"
	cosmossecp256k1 "github.com/cosmos/cosmos-sdk/crypto/keys/secp256k1"
	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
	"github.com/fxamacker/cbor/v2"

	"github.com/greenmesh/greenmesh/x/shared/access"
)

// SignatureLength is the size of a compact recoverable signature.
const SignatureLength = 65

const codespace = "attest"

var (
	ErrEncoding           = errorsmod.Register(codespace, 2, "payload encoding failed")
	ErrMalformedSignature = errorsmod.Register(codespace, 20, "malformed signature")
	ErrSignerNotTrusted   = errorsmod.Register(codespace, 21, "signer does not hold the required role")
)

var encMode cbor.EncMode

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
}

// RoleChecker is the slice of the access policy verification needs.
type RoleChecker interface {
	HasRole(ctx context.Context, role access.Role, addr sdk.AccAddress) bool
}

// Encode returns the deterministic CBOR encoding of payload.
func Encode(payload any) ([]byte, error) {
	bz, err := encMode.Marshal(payload)
	if err != nil {
		return nil, ErrEncoding.Wrap(err.Error())
	}
	return bz, nil
}

// MessageHash returns the digest a trusted signer signs for subject.
func MessageHash(subject sdk.AccAddress, payload any, aux []byte) ([]byte, error) {
	body, err := Encode(payload)
	if err != nil {
		return nil, err
	}
	h := sha256.New()
	h.Write(subject)
	h.Write(body)
	h.Write(aux)
	return h.Sum(nil), nil
}

// Sign produces a compact recoverable signature over hash.
func Sign(key *secp256k1.PrivateKey, hash []byte) []byte {
	return ecdsa.SignCompact(key, hash, true)
}

// SignStatement hashes and signs in one step.
func SignStatement(key *secp256k1.PrivateKey, subject sdk.AccAddress, payload any, aux []byte) ([]byte, error) {
	hash, err := MessageHash(subject, payload, aux)
	if err != nil {
		return nil, err
	}
	return Sign(key, hash), nil
}

// Address returns the account address controlled by pub.
func Address(pub *secp256k1.PublicKey) sdk.AccAddress {
	pk := cosmossecp256k1.PubKey{Key: pub.SerializeCompressed()}
	return sdk.AccAddress(pk.Address())
}

// RecoverSigner returns the address whose key produced sig over hash.
func RecoverSigner(hash, sig []byte) (sdk.AccAddress, error) {
	if len(sig) != SignatureLength {
		return nil, ErrMalformedSignature.Wrapf("length %d, want %d", len(sig), SignatureLength)
	}
	pub, _, err := ecdsa.RecoverCompact(sig, hash)
	if err != nil {
		return nil, ErrMalformedSignature.Wrap(err.Error())
	}
	return Address(pub), nil
}

// Verify recovers the signer of (subject, payload, aux) and checks it holds role.
func Verify(
	ctx context.Context,
	roles RoleChecker,
	role access.Role,
	subject sdk.AccAddress,
	payload any,
	aux []byte,
	sig []byte,
) (sdk.AccAddress, error) {
	hash, err := MessageHash(subject, payload, aux)
	if err != nil {
		return nil, err
	}
	signer, err := RecoverSigner(hash, sig)
	if err != nil {
		return nil, err
	}
	if !roles.HasRole(ctx, role, signer) {
		return nil, ErrSignerNotTrusted.Wrapf("%s is not %s", signer, role)
	}
	return signer, nil
}
