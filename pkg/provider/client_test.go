package provider_test

import (
	"context"
	"crypto/sha256"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"cosmossdk.io/log"
	"cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/greenmesh/greenmesh/api"
	"github.com/greenmesh/greenmesh/app"
	"github.com/greenmesh/greenmesh/pkg/provider"
	keepertest "github.com/greenmesh/greenmesh/testutil/keeper"
	registrytypes "github.com/greenmesh/greenmesh/x/registry/types"
	schedulertypes "github.com/greenmesh/greenmesh/x/scheduler/types"
	"github.com/greenmesh/greenmesh/x/shared/access"
	"github.com/greenmesh/greenmesh/x/shared/attest"
)

var (
	nodeKey     = keepertest.KeyFor("node")
	attestorKey = keepertest.KeyFor("attestor")
	admin       = keepertest.Addr("admin")
	client      = keepertest.Addr("client")
	operator    = keepertest.Addr("dispatcher")
)

func setup(t *testing.T) (*app.App, *httptest.Server) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	a, err := app.NewInMemory(log.NewNopLogger(), app.Options{
		Clock:           func() time.Time { return keepertest.GenesisTime },
		CheckInvariants: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	node := attest.Address(nodeKey.PubKey())
	gs := app.NewDefaultGenesisState(admin)
	gs, err = gs.AddGrant(access.RoleScheduler, operator)
	require.NoError(t, err)
	gs, err = gs.AddGrant(access.RoleAttestor, attest.Address(attestorKey.PubKey()))
	require.NoError(t, err)
	gs, err = gs.AddBalance(client, math.NewInt(1_000_000))
	require.NoError(t, err)
	gs, err = gs.AddBalance(node, math.NewInt(10_000_000))
	require.NoError(t, err)
	_, err = a.InitChain(gs)
	require.NoError(t, err)

	caps := keepertest.DesktopCaps()
	hash := sha256.Sum256([]byte("attestation:" + node.String()))
	sig, err := attest.SignStatement(attestorKey, node, caps, hash[:])
	require.NoError(t, err)
	_, err = a.Execute("register_node", func(ctx sdk.Context) error {
		return a.Registry.Register(ctx, node, "desktop", caps, registrytypes.AttestationClaim{Hash: hash[:], Signature: sig})
	})
	require.NoError(t, err)

	server, err := api.NewServer(a, &api.Config{
		JWTSecret:      []byte("test-secret"),
		TokenTTL:       time.Hour,
		RateLimitRPS:   1000,
		RequestTimeout: 10 * time.Second,
	}, log.NewNopLogger())
	require.NoError(t, err)
	srv := httptest.NewServer(server.Handler())
	t.Cleanup(srv.Close)
	return a, srv
}

func assignedJob(t *testing.T, a *app.App) uint64 {
	t.Helper()
	var id uint64
	_, err := a.Execute("create_job", func(ctx sdk.Context) (err error) {
		id, err = a.Scheduler.CreateJob(ctx, client, schedulertypes.JobSpec{
			JobType:  schedulertypes.JobTypeInference,
			Priority: schedulertypes.PriorityNormal,
			Resources: schedulertypes.Resources{
				MinCpuCores:              4,
				MinRamGb:                 8,
				EstimatedDurationSeconds: 600,
			},
			Payment:    math.NewInt(2000),
			Rail:       schedulertypes.RailDirect,
			Deadline:   ctx.BlockTime().Add(time.Hour),
			ContentRef: "ipfs://bafy-job-input",
		})
		return err
	})
	require.NoError(t, err)
	_, err = a.Execute("assign_job", func(ctx sdk.Context) error {
		return a.Scheduler.AssignJob(ctx, operator, id)
	})
	require.NoError(t, err)
	return id
}

func TestWorker_CompletesAssignedJobOverHTTP(t *testing.T) {
	a, srv := setup(t)
	id := assignedJob(t, a)

	c := provider.NewClient(srv.URL, nodeKey, srv.Client())
	w, err := provider.NewWorker(c, c.Address().String(), nil, provider.Config{Interval: time.Second, PingEvery: 1}, log.NewNopLogger())
	require.NoError(t, err)

	res, err := w.Poll(context.Background())
	require.NoError(t, err)
	require.Equal(t, provider.Result{Started: 1, Completed: 1}, res)

	var job schedulertypes.Job
	require.NoError(t, a.Query(func(ctx sdk.Context) (err error) {
		job, err = a.Scheduler.GetJob(ctx, id)
		return err
	}))
	require.Equal(t, schedulertypes.JobStatusCompleted, job.Status)
	want, _, err := provider.PlaceholderWorkload(context.Background(), job)
	require.NoError(t, err)
	require.Equal(t, want, job.ResultHash)

	// nothing left to do
	res, err = w.Poll(context.Background())
	require.NoError(t, err)
	require.Equal(t, provider.Result{}, res)
}

func TestClient_SurfacesAPIErrors(t *testing.T) {
	_, srv := setup(t)
	c := provider.NewClient(srv.URL, nodeKey, srv.Client())

	err := c.StartJob(context.Background(), 999)
	var apiErr *provider.APIError
	require.True(t, errors.As(err, &apiErr), "got %v", err)
	require.Equal(t, http.StatusNotFound, apiErr.Status)
	require.Equal(t, schedulertypes.ModuleName, apiErr.Response.Codespace)
}
