package keeper_test

import (
	"testing"
	"time"

	"cosmossdk.io/math"
	"github.com/stretchr/testify/require"

	keepertest "github.com/greenmesh/greenmesh/testutil/keeper"
	"github.com/greenmesh/greenmesh/x/shared/access"
	"github.com/greenmesh/greenmesh/x/shared/attest"
	"github.com/greenmesh/greenmesh/x/signals/types"
)

func TestGreenCertificate(t *testing.T) {
	f := keepertest.NewFixture(t)
	node := keepertest.Addr("solar")

	require.False(t, f.Signals.IsGreen(f.Ctx, node))
	require.Equal(t, uint32(types.NeutralMultiplier), f.Signals.RewardMultiplier(f.Ctx, node))

	f.CertifyGreen(t, node, 160, 1)
	require.True(t, f.Signals.IsGreen(f.Ctx, node))
	require.Equal(t, uint32(160), f.Signals.RewardMultiplier(f.Ctx, node))

	cert, ok := f.Signals.GetGreenCertificate(f.Ctx, node)
	require.True(t, ok)
	require.Equal(t, attest.Address(f.OracleKey.PubKey()).String(), cert.Oracle)

	// replaying the same nonce is refused
	claim := types.CertificateClaim{
		Node:       node.String(),
		Green:      true,
		Multiplier: 160,
		ValidUntil: f.Ctx.BlockTime().Add(24 * time.Hour).Unix(),
		Nonce:      1,
	}
	sig, err := attest.SignStatement(f.OracleKey, node, claim, types.CertificateDomain)
	require.NoError(t, err)
	require.ErrorIs(t, f.Signals.SubmitGreenCertificate(f.Ctx, claim, sig), types.ErrStaleNonce)

	// expiry drops the certificate's effect
	f.Advance(91 * 24 * time.Hour)
	require.False(t, f.Signals.IsGreen(f.Ctx, node))
	require.Equal(t, uint32(types.NeutralMultiplier), f.Signals.RewardMultiplier(f.Ctx, node))
}

func TestGreenCertificate_Rejections(t *testing.T) {
	f := keepertest.NewFixture(t)
	node := keepertest.Addr("solar")
	valid := types.CertificateClaim{
		Node:       node.String(),
		Green:      true,
		Multiplier: 120,
		ValidUntil: f.Ctx.BlockTime().Add(24 * time.Hour).Unix(),
		Nonce:      7,
	}

	t.Run("untrusted signer", func(t *testing.T) {
		sig, err := attest.SignStatement(keepertest.KeyFor("rogue"), node, valid, types.CertificateDomain)
		require.NoError(t, err)
		require.ErrorIs(t, f.Signals.SubmitGreenCertificate(f.Ctx, valid, sig), types.ErrUntrustedOracle)
	})

	t.Run("claim altered after signing", func(t *testing.T) {
		sig, err := attest.SignStatement(f.OracleKey, node, valid, types.CertificateDomain)
		require.NoError(t, err)
		altered := valid
		altered.Multiplier = 200
		require.ErrorIs(t, f.Signals.SubmitGreenCertificate(f.Ctx, altered, sig), types.ErrUntrustedOracle)
	})

	t.Run("multiplier out of range", func(t *testing.T) {
		bad := valid
		bad.Multiplier = 250
		require.ErrorIs(t, f.Signals.SubmitGreenCertificate(f.Ctx, bad, nil), types.ErrInvalidCertificate)
	})

	t.Run("already expired", func(t *testing.T) {
		bad := valid
		bad.ValidUntil = f.Ctx.BlockTime().Unix()
		require.ErrorIs(t, f.Signals.SubmitGreenCertificate(f.Ctx, bad, nil), types.ErrCertificateExpired)
	})

	t.Run("revocation is oracle only", func(t *testing.T) {
		f.CertifyGreen(t, node, 120, 8)
		require.ErrorIs(t, f.Signals.RevokeGreenCertificate(f.Ctx, f.Admin, node), access.ErrUnauthorized)
		require.NoError(t, f.Signals.RevokeGreenCertificate(f.Ctx, attest.Address(f.OracleKey.PubKey()), node))
		require.False(t, f.Signals.IsGreen(f.Ctx, node))
	})
}

func TestScoresAndForecasts(t *testing.T) {
	f := keepertest.NewFixture(t)
	oracle := attest.Address(f.OracleKey.PubKey())
	node := keepertest.Addr("node")

	require.Equal(t, uint32(50), f.Signals.NodeScore(f.Ctx, node))
	require.ErrorIs(t, f.Signals.SetNodeScore(f.Ctx, f.Admin, node, 80), access.ErrUnauthorized)
	require.ErrorIs(t, f.Signals.SetNodeScore(f.Ctx, oracle, node, 101), types.ErrInvalidScore)
	require.NoError(t, f.Signals.SetNodeScore(f.Ctx, oracle, node, 80))
	require.Equal(t, uint32(80), f.Signals.NodeScore(f.Ctx, node))

	d, u, c := f.Signals.DemandForecast(f.Ctx, "inference")
	require.Zero(t, d+u+c)
	require.ErrorIs(t, f.Signals.SetDemandForecast(f.Ctx, oracle, types.DemandForecast{JobType: "inference", Demand: 101}), types.ErrInvalidForecast)
	require.NoError(t, f.Signals.SetDemandForecast(f.Ctx, oracle, types.DemandForecast{JobType: "inference", Demand: 60, Urgency: 40, Confidence: 90}))
	d, u, c = f.Signals.DemandForecast(f.Ctx, "inference")
	require.Equal(t, []uint32{60, 40, 90}, []uint32{d, u, c})
}

func TestPredictionQueue(t *testing.T) {
	f := keepertest.NewFixture(t)
	oracle := attest.Address(f.OracleKey.PubKey())
	params := f.Signals.GetParams(f.Ctx)
	params.MaxPendingPredictions = 2
	require.NoError(t, f.Signals.SetParams(f.Ctx, params))

	deadline := f.Ctx.BlockTime().Add(time.Hour)
	require.NoError(t, f.Signals.RequestPrediction(f.Ctx, 1, "inference", math.NewInt(10), deadline))
	require.NoError(t, f.Signals.RequestPrediction(f.Ctx, 2, "training", math.NewInt(10), deadline))
	require.ErrorIs(t, f.Signals.RequestPrediction(f.Ctx, 3, "batch", math.NewInt(10), deadline), types.ErrPredictionQueueFull)

	pending, err := f.Signals.PendingPredictions(f.Ctx)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	require.Equal(t, uint64(2), pending[1].JobID)

	require.NoError(t, f.Signals.FulfillPrediction(f.Ctx, oracle, pending[0].ID, 300))
	require.ErrorIs(t, f.Signals.FulfillPrediction(f.Ctx, oracle, 99, 300), types.ErrPredictionNotFound)
	require.NoError(t, f.Signals.RequestPrediction(f.Ctx, 3, "batch", math.NewInt(10), deadline))

	pending, err = f.Signals.PendingPredictions(f.Ctx)
	require.NoError(t, err)
	require.Len(t, pending, 2)
}

func TestSignalsGenesisRoundTrip(t *testing.T) {
	f := keepertest.NewFixture(t)
	oracle := attest.Address(f.OracleKey.PubKey())
	node := keepertest.Addr("node")
	f.CertifyGreen(t, node, 130, 1)
	require.NoError(t, f.Signals.SetNodeScore(f.Ctx, oracle, node, 70))
	require.NoError(t, f.Signals.SetDemandForecast(f.Ctx, oracle, types.DemandForecast{JobType: "rendering", Demand: 10}))

	exported, err := f.Signals.ExportGenesis(f.Ctx)
	require.NoError(t, err)

	g := keepertest.NewFixture(t)
	require.NoError(t, g.Signals.InitGenesis(g.Ctx, *exported))
	require.True(t, g.Signals.IsGreen(g.Ctx, node))
	require.Equal(t, uint32(70), g.Signals.NodeScore(g.Ctx, node))
	d, _, _ := g.Signals.DemandForecast(g.Ctx, "rendering")
	require.Equal(t, uint32(10), d)
}
