package attest_test

import (
	"context"
	"testing"

	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/stretchr/testify/require"

	"github.com/greenmesh/greenmesh/x/shared/access"
	"github.com/greenmesh/greenmesh/x/shared/attest"
)

type staticRoles map[string]access.Role

func (s staticRoles) HasRole(_ context.Context, role access.Role, addr sdk.AccAddress) bool {
	return s[addr.String()] == role
}

type payload struct {
	CpuCores uint32 `cbor:"cpu_cores"`
	RamGb    uint32 `cbor:"ram_gb"`
	HasGpu   bool   `cbor:"has_gpu"`
}

func key(t *testing.T, seed byte) *secp256k1.PrivateKey {
	t.Helper()
	raw := make([]byte, 32)
	raw[31] = seed
	return secp256k1.PrivKeyFromBytes(raw)
}

func TestSignAndRecover(t *testing.T) {
	priv := key(t, 7)
	subject := sdk.AccAddress([]byte("node________________"))
	p := payload{CpuCores: 8, RamGb: 16}

	sig, err := attest.SignStatement(priv, subject, p, []byte("aux"))
	require.NoError(t, err)
	require.Len(t, sig, attest.SignatureLength)

	hash, err := attest.MessageHash(subject, p, []byte("aux"))
	require.NoError(t, err)
	signer, err := attest.RecoverSigner(hash, sig)
	require.NoError(t, err)
	require.Equal(t, attest.Address(priv.PubKey()), signer)
}

func TestMessageHashIsDeterministicAndBound(t *testing.T) {
	subject := sdk.AccAddress([]byte("node________________"))
	other := sdk.AccAddress([]byte("other_______________"))
	p := payload{CpuCores: 4, RamGb: 8, HasGpu: true}

	h1, err := attest.MessageHash(subject, p, []byte("x"))
	require.NoError(t, err)
	h2, err := attest.MessageHash(subject, p, []byte("x"))
	require.NoError(t, err)
	require.Equal(t, h1, h2)

	h3, err := attest.MessageHash(other, p, []byte("x"))
	require.NoError(t, err)
	require.NotEqual(t, h1, h3)

	h4, err := attest.MessageHash(subject, payload{CpuCores: 4, RamGb: 9, HasGpu: true}, []byte("x"))
	require.NoError(t, err)
	require.NotEqual(t, h1, h4)

	h5, err := attest.MessageHash(subject, p, []byte("y"))
	require.NoError(t, err)
	require.NotEqual(t, h1, h5)
}

func TestVerify(t *testing.T) {
	ctx := context.Background()
	attestor := key(t, 1)
	stranger := key(t, 2)
	roles := staticRoles{attest.Address(attestor.PubKey()).String(): access.RoleAttestor}

	subject := sdk.AccAddress([]byte("node________________"))
	p := payload{CpuCores: 2, RamGb: 4}

	sig, err := attest.SignStatement(attestor, subject, p, nil)
	require.NoError(t, err)
	signer, err := attest.Verify(ctx, roles, access.RoleAttestor, subject, p, nil, sig)
	require.NoError(t, err)
	require.Equal(t, attest.Address(attestor.PubKey()), signer)

	_, err = attest.Verify(ctx, roles, access.RoleOracle, subject, p, nil, sig)
	require.ErrorIs(t, err, attest.ErrSignerNotTrusted)

	bad, err := attest.SignStatement(stranger, subject, p, nil)
	require.NoError(t, err)
	_, err = attest.Verify(ctx, roles, access.RoleAttestor, subject, p, nil, bad)
	require.ErrorIs(t, err, attest.ErrSignerNotTrusted)

	// signature over different capabilities recovers a different key
	_, err = attest.Verify(ctx, roles, access.RoleAttestor, subject, payload{CpuCores: 64}, nil, sig)
	require.Error(t, err)

	_, err = attest.Verify(ctx, roles, access.RoleAttestor, subject, p, nil, sig[:10])
	require.ErrorIs(t, err, attest.ErrMalformedSignature)
}
