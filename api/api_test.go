package api

import (
	"bytes"
	"crypto/sha256"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"cosmossdk.io/log"
	"cosmossdk.io/math"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/greenmesh/greenmesh/app"
	keepertest "github.com/greenmesh/greenmesh/testutil/keeper"
	registrytypes "github.com/greenmesh/greenmesh/x/registry/types"
	schedulertypes "github.com/greenmesh/greenmesh/x/scheduler/types"
	"github.com/greenmesh/greenmesh/x/shared/access"
	"github.com/greenmesh/greenmesh/x/shared/attest"
)

var (
	adminKey    = keepertest.KeyFor("admin")
	clientKey   = keepertest.KeyFor("client")
	nodeKey     = keepertest.KeyFor("node")
	operatorKey = keepertest.KeyFor("dispatcher")
	attestorKey = keepertest.KeyFor("attestor")
)

func addrOf(key *secp256k1.PrivateKey) string {
	return attest.Address(key.PubKey()).String()
}

type testServer struct {
	*Server
	t *testing.T
}

// setupTestServer creates a test server over an initialized in-memory ledger
func setupTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	a, err := app.NewInMemory(log.NewNopLogger(), app.Options{
		Clock:           func() time.Time { return keepertest.GenesisTime },
		CheckInvariants: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	gs := app.NewDefaultGenesisState(attest.Address(adminKey.PubKey()))
	gs, err = gs.AddGrant(access.RoleScheduler, attest.Address(operatorKey.PubKey()))
	require.NoError(t, err)
	gs, err = gs.AddGrant(access.RoleAttestor, attest.Address(attestorKey.PubKey()))
	require.NoError(t, err)
	gs, err = gs.AddBalance(attest.Address(clientKey.PubKey()), math.NewInt(1_000_000))
	require.NoError(t, err)
	gs, err = gs.AddBalance(attest.Address(nodeKey.PubKey()), math.NewInt(10_000_000))
	require.NoError(t, err)
	_, err = a.InitChain(gs)
	require.NoError(t, err)

	server, err := NewServer(a, &Config{
		JWTSecret:      []byte("test-secret"),
		TokenTTL:       time.Hour,
		CORSOrigins:    []string{"*"},
		RateLimitRPS:   1000,
		RequestTimeout: 10 * time.Second,
	}, log.NewNopLogger())
	require.NoError(t, err)
	return &testServer{Server: server, t: t}
}

func (ts *testServer) do(method, path, token string, body any) *httptest.ResponseRecorder {
	ts.t.Helper()
	var reader *bytes.Reader
	if body != nil {
		bz, err := json.Marshal(body)
		require.NoError(ts.t, err)
		reader = bytes.NewReader(bz)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	return w
}

func (ts *testServer) login(key *secp256k1.PrivateKey) string {
	ts.t.Helper()
	req, err := SignLogin(key, time.Now())
	require.NoError(ts.t, err)
	w := ts.do(http.MethodPost, "/api/auth/login", "", req)
	require.Equal(ts.t, http.StatusOK, w.Code, w.Body.String())

	var resp TokenResponse
	require.NoError(ts.t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(ts.t, resp.Token)
	return resp.Token
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func registerBody(t *testing.T) RegisterNodeRequest {
	t.Helper()
	caps := keepertest.DesktopCaps()
	node := attest.Address(nodeKey.PubKey())
	hash := sha256.Sum256([]byte("attestation:" + node.String()))
	sig, err := attest.SignStatement(attestorKey, node, caps, hash[:])
	require.NoError(t, err)
	return RegisterNodeRequest{
		DeviceType:   "desktop",
		Capabilities: caps,
		Attestation:  registrytypes.AttestationClaim{Hash: hash[:], Signature: sig},
	}
}

func jobBody(rail schedulertypes.PaymentRail) schedulertypes.JobSpec {
	return schedulertypes.JobSpec{
		JobType:  schedulertypes.JobTypeInference,
		Priority: schedulertypes.PriorityNormal,
		Resources: schedulertypes.Resources{
			MinCpuCores:              4,
			MinRamGb:                 8,
			EstimatedDurationSeconds: 600,
		},
		Payment:    math.NewInt(2000),
		Rail:       rail,
		Deadline:   keepertest.GenesisTime.Add(24 * time.Hour),
		ContentRef: "ipfs://bafy-job-input",
	}
}

// TestHealthCheck tests the health check endpoint
func TestHealthCheck(t *testing.T) {
	ts := setupTestServer(t)

	w := ts.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	response := decode[map[string]any](t, w)
	assert.Equal(t, "healthy", response["status"])
}

func TestLogin(t *testing.T) {
	ts := setupTestServer(t)
	token := ts.login(clientKey)

	w := ts.do(http.MethodGet, "/api/auth/whoami", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, addrOf(clientKey), decode[map[string]string](t, w)["address"])

	w = ts.do(http.MethodPost, "/api/auth/refresh", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, decode[TokenResponse](t, w).Token)
}

func TestLogin_Rejected(t *testing.T) {
	ts := setupTestServer(t)

	stale, err := SignLogin(clientKey, time.Now().Add(-time.Hour))
	require.NoError(t, err)

	forged, err := SignLogin(clientKey, time.Now())
	require.NoError(t, err)
	forged.Address = addrOf(nodeKey)

	for name, req := range map[string]LoginRequest{"stale": stale, "forged": forged} {
		t.Run(name, func(t *testing.T) {
			w := ts.do(http.MethodPost, "/api/auth/login", "", req)
			assert.Equal(t, http.StatusUnauthorized, w.Code)
		})
	}
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	ts := setupTestServer(t)

	tests := []struct {
		name   string
		header string
	}{
		{"missing", ""},
		{"malformed", "Token abc"},
		{"invalid", "Bearer not-a-jwt"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/jobs", strings.NewReader("{}"))
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			ts.router.ServeHTTP(w, req)
			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.Equal(t, "UNAUTHENTICATED", decode[ErrorResponse](t, w).Code)
		})
	}
}

func TestJobLifecycleOverHTTP(t *testing.T) {
	ts := setupTestServer(t)
	nodeToken := ts.login(nodeKey)
	clientToken := ts.login(clientKey)
	operatorToken := ts.login(operatorKey)

	w := ts.do(http.MethodPost, "/api/nodes", nodeToken, registerBody(t))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	tx := decode[TxResponse](t, w)
	require.Equal(t, int64(2), tx.Height)
	require.NotEmpty(t, tx.Events)

	w = ts.do(http.MethodGet, "/api/nodes/"+addrOf(nodeKey), "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "desktop", decode[registrytypes.Node](t, w).DeviceType)

	w = ts.do(http.MethodPost, "/api/jobs", clientToken, jobBody(schedulertypes.RailDirect))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decode[CreateJobResponse](t, w)
	require.NotZero(t, created.JobID)
	jobPath := "/api/jobs/" + itoa(created.JobID)

	w = ts.do(http.MethodGet, jobPath+"/quote", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, decode[QuoteResponse](t, w).Price.IsPositive())

	// only a scheduler may assign
	w = ts.do(http.MethodPost, jobPath+"/assign", clientToken, nil)
	require.Equal(t, http.StatusForbidden, w.Code, w.Body.String())
	assert.Equal(t, "authorization", decode[ErrorResponse](t, w).Kind)

	w = ts.do(http.MethodPost, jobPath+"/assign", operatorToken, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = ts.do(http.MethodGet, "/api/nodes/"+addrOf(nodeKey)+"/jobs", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, 1, decode[JobListResponse](t, w).Total)

	w = ts.do(http.MethodPost, jobPath+"/start", nodeToken, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	result := sha256.Sum256([]byte("result"))
	w = ts.do(http.MethodPost, jobPath+"/complete", nodeToken, CompleteJobRequest{ResultHash: result[:], ResultRef: "ipfs://bafy-result"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = ts.do(http.MethodPost, jobPath+"/settle", clientToken, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// second settlement is a state conflict
	w = ts.do(http.MethodPost, jobPath+"/settle", clientToken, nil)
	require.Equal(t, http.StatusConflict, w.Code)
	resp := decode[ErrorResponse](t, w)
	assert.Equal(t, schedulertypes.ModuleName, resp.Codespace)

	w = ts.do(http.MethodGet, jobPath, "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	job := decode[schedulertypes.Job](t, w)
	assert.Equal(t, schedulertypes.JobStatusCompleted, job.Status)
	assert.True(t, job.Settled)

	w = ts.do(http.MethodGet, "/api/jobs/mine", clientToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, decode[JobListResponse](t, w).Total)
}

func TestErrorMapping(t *testing.T) {
	ts := setupTestServer(t)
	clientToken := ts.login(clientKey)

	w := ts.do(http.MethodGet, "/api/jobs/999", "", nil)
	require.Equal(t, http.StatusNotFound, w.Code)
	resp := decode[ErrorResponse](t, w)
	assert.Equal(t, schedulertypes.ModuleName, resp.Codespace)
	assert.NotEmpty(t, resp.Suggestion)

	w = ts.do(http.MethodGet, "/api/jobs/abc", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	spec := jobBody(schedulertypes.RailDirect)
	spec.Deadline = keepertest.GenesisTime.Add(-time.Hour)
	w = ts.do(http.MethodPost, "/api/jobs", clientToken, spec)
	require.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
	assert.Equal(t, "validation", decode[ErrorResponse](t, w).Kind)

	w = ts.do(http.MethodGet, "/api/nodes/"+addrOf(nodeKey), "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = ts.do(http.MethodGet, "/api/jobs?queue=blue", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestEscrowRail(t *testing.T) {
	ts := setupTestServer(t)
	clientToken := ts.login(clientKey)

	w := ts.do(http.MethodPost, "/api/jobs", clientToken, jobBody(schedulertypes.RailEscrow))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	id := decode[CreateJobResponse](t, w).JobID

	w = ts.do(http.MethodPost, "/api/escrow/"+itoa(id)+"/fund", clientToken, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = ts.do(http.MethodGet, "/api/escrow/"+itoa(id), "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = ts.do(http.MethodGet, "/api/escrow/424242", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCircuitAdmin(t *testing.T) {
	ts := setupTestServer(t)
	adminToken := ts.login(adminKey)
	clientToken := ts.login(clientKey)

	w := ts.do(http.MethodPost, "/api/admin/pause", clientToken, CircuitRequest{Module: "registry", Reason: "incident"})
	require.Equal(t, http.StatusForbidden, w.Code)

	w = ts.do(http.MethodPost, "/api/admin/pause", adminToken, CircuitRequest{Module: "registry", Reason: "incident"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = ts.do(http.MethodGet, "/api/admin/circuit", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	status := decode[app.CircuitBreakerStatus](t, w)
	assert.True(t, status.RegistryPaused)
	assert.True(t, status.SchedulerPaused)

	// liveness stays ok; readiness reports the pause
	w = ts.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, "ok", decode[map[string]any](t, w)["status"])
	w = ts.do(http.MethodGet, "/health/ready", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "degraded", decode[map[string]any](t, w)["status"])

	w = ts.do(http.MethodPost, "/api/jobs", clientToken, jobBody(schedulertypes.RailDirect))
	assert.Equal(t, http.StatusConflict, w.Code)

	w = ts.do(http.MethodPost, "/api/admin/resume", adminToken, CircuitRequest{Module: "registry", Reason: "resolved"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = ts.do(http.MethodGet, "/health/ready", "", nil)
	assert.Equal(t, "healthy", decode[map[string]any](t, w)["status"])

	w = ts.do(http.MethodPost, "/api/admin/roles", adminToken, RoleRequest{Role: string(access.RoleOracle), Address: addrOf(clientKey)})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestListEvents(t *testing.T) {
	ts := setupTestServer(t)
	nodeToken := ts.login(nodeKey)

	w := ts.do(http.MethodPost, "/api/nodes", nodeToken, registerBody(t))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = ts.do(http.MethodGet, "/api/events?type="+registrytypes.EventTypeNodeRegistered+"&attr.node="+addrOf(nodeKey), "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Count int `json:"count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Count)

	w = ts.do(http.MethodGet, "/api/events?limit=5000", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestWebSocketReceivesCommittedEvents(t *testing.T) {
	ts := setupTestServer(t)
	ts.app.AddSink(ts.Hub())
	go ts.Hub().Run()
	t.Cleanup(func() { _ = ts.Hub().Close() })

	srv := httptest.NewServer(ts.Handler())
	t.Cleanup(srv.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	defer conn.Close()

	channel := "node:" + addrOf(nodeKey)
	require.NoError(t, conn.WriteJSON(WSSubscribeMessage{Type: "subscribe", Channel: channel}))

	var msg WSMessage
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	require.NoError(t, conn.ReadJSON(&msg))
	require.Equal(t, "subscribed", msg.Type)

	w := ts.do(http.MethodPost, "/api/nodes", ts.login(nodeKey), registerBody(t))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "event", msg.Type)
	assert.Equal(t, ChannelEvents, msg.Channel)
}

func TestAuthService_Expiry(t *testing.T) {
	as := NewAuthService([]byte("secret"), time.Minute)
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	as.now = func() time.Time { return now }

	token, expires, err := as.GenerateToken(attest.Address(clientKey.PubKey()))
	require.NoError(t, err)
	require.Equal(t, now.Add(time.Minute), expires)

	claims, err := as.ValidateToken(token)
	require.NoError(t, err)
	require.Equal(t, addrOf(clientKey), claims.Address)

	now = now.Add(2 * time.Minute)
	_, err = as.ValidateToken(token)
	require.Error(t, err)

	other := NewAuthService([]byte("other"), time.Minute)
	_, err = other.ValidateToken(token)
	require.Error(t, err)
}

func itoa(id uint64) string {
	return strconv.FormatUint(id, 10)
}
