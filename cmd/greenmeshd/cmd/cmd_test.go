package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"cosmossdk.io/log"
	"github.com/stretchr/testify/require"

	"github.com/greenmesh/greenmesh/api"
	"github.com/greenmesh/greenmesh/app"
	registrytypes "github.com/greenmesh/greenmesh/x/registry/types"
	"github.com/greenmesh/greenmesh/x/shared/access"
	"github.com/greenmesh/greenmesh/x/shared/attest"
	signalstypes "github.com/greenmesh/greenmesh/x/signals/types"
)

func run(t *testing.T, home string, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append(args, "--"+flagHome, home))
	err := cmd.Execute()
	return out.String(), err
}

func mustRun(t *testing.T, home string, args ...string) string {
	t.Helper()
	out, err := run(t, home, args...)
	require.NoError(t, err, out)
	return out
}

func keyAddress(t *testing.T, home, name string) string {
	t.Helper()
	key, err := loadKey(home, name)
	require.NoError(t, err)
	return attest.Address(key.PubKey()).String()
}

func TestKeys(t *testing.T) {
	home := t.TempDir()

	out := mustRun(t, home, "keys", "add", "alice")
	require.Contains(t, out, "alice\t")

	_, err := run(t, home, "keys", "add", "alice")
	require.ErrorContains(t, err, "already exists")

	_, err = run(t, home, "keys", "add", "../escape")
	require.ErrorContains(t, err, "invalid key name")

	mustRun(t, home, "keys", "add", "bob", "--recover", strings.Repeat("01", 32))
	out = mustRun(t, home, "keys", "list")
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	require.True(t, strings.HasPrefix(lines[0], "alice\t"))
	require.True(t, strings.HasPrefix(lines[1], "bob\t"))

	out = mustRun(t, home, "keys", "show", "bob")
	require.Contains(t, out, keyAddress(t, home, "bob"))

	info, err := os.Stat(filepath.Join(home, keysDir, "bob"+keyFileExt))
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestInit(t *testing.T) {
	home := t.TempDir()
	for _, name := range []string{"admin", "dispatcher", "attestor", "client"} {
		mustRun(t, home, "keys", "add", name)
	}

	catalog := registrytypes.DefaultCatalog()[:1]
	bz, err := registrytypes.MarshalCatalog(catalog)
	require.NoError(t, err)
	catalogPath := filepath.Join(home, "devices.yaml")
	require.NoError(t, os.WriteFile(catalogPath, bz, 0o600))

	mustRun(t, home, "init",
		"--admin", "admin",
		"--operator", "dispatcher",
		"--grant", "attestor=attestor",
		"--balance", "client=1000000",
		"--catalog", catalogPath,
	)

	gs, err := app.ReadGenesisFile(genesisPath(home))
	require.NoError(t, err)
	require.NoError(t, gs.Validate())

	var grants []access.Grant
	require.NoError(t, json.Unmarshal(gs[access.ModuleName], &grants))
	require.Contains(t, grants, access.Grant{Role: access.RoleScheduler, Address: keyAddress(t, home, "dispatcher")})
	require.Contains(t, grants, access.Grant{Role: access.RoleAttestor, Address: keyAddress(t, home, "attestor")})

	var registry registrytypes.GenesisState
	require.NoError(t, json.Unmarshal(gs[registrytypes.ModuleName], &registry))
	require.Len(t, registry.Profiles, 1)
	require.Equal(t, catalog[0].DeviceType, registry.Profiles[0].DeviceType)

	cfg, err := LoadConfig(home)
	require.NoError(t, err)
	require.True(t, cfg.Dispatcher.Enabled)
	require.Equal(t, keyAddress(t, home, "dispatcher"), cfg.Dispatcher.Operator)

	out := mustRun(t, home, "validate-genesis")
	require.Contains(t, out, "is valid")

	_, err = run(t, home, "init", "--admin", "admin")
	require.ErrorContains(t, err, "already exists")
	mustRun(t, home, "init", "--admin", "admin", "--overwrite")

	_, err = run(t, home, "init", "--admin", "admin", "--overwrite", "--balance", "client")
	require.Error(t, err)
	_, err = run(t, home, "init", "--admin", "nobody", "--overwrite")
	require.ErrorContains(t, err, "neither an address nor a local key")
}

func TestLoadConfig(t *testing.T) {
	home := t.TempDir()

	cfg, err := LoadConfig(home)
	require.NoError(t, err)
	require.Equal(t, "info", cfg.Log.Level)
	require.Equal(t, "1317", cfg.API.Port)
	require.Equal(t, 24*time.Hour, cfg.API.TokenTTL)
	require.Equal(t, 10*time.Second, cfg.Dispatcher.Interval)
	require.False(t, cfg.Dispatcher.Enabled)

	require.NoError(t, WriteDefaultConfig(home, map[string]any{"api.port": "9000"}))
	cfg, err = LoadConfig(home)
	require.NoError(t, err)
	require.Equal(t, "9000", cfg.API.Port)

	t.Setenv("GREENMESH_API_PORT", "9100")
	t.Setenv("GREENMESH_KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("GREENMESH_DISPATCHER_INTERVAL", "3s")
	cfg, err = LoadConfig(home)
	require.NoError(t, err)
	require.Equal(t, "9100", cfg.API.Port)
	require.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	require.Equal(t, 3*time.Second, cfg.Dispatcher.Interval)

	t.Setenv("GREENMESH_DISPATCHER_ENABLED", "true")
	_, err = LoadConfig(home)
	require.ErrorContains(t, err, "dispatcher.operator")
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger, err := newLogger(LogConfig{Level: "warn", Format: "json"}, &buf)
	require.NoError(t, err)
	logger.Info("hidden")
	logger.Warn("shown", "k", "v")
	require.NotContains(t, buf.String(), "hidden")
	require.Contains(t, buf.String(), `"message":"shown"`)

	_, err = newLogger(LogConfig{Level: "loud", Format: "json"}, &buf)
	require.Error(t, err)
	_, err = newLogger(LogConfig{Level: "info", Format: "xml"}, &buf)
	require.Error(t, err)
}

func TestToken(t *testing.T) {
	home := t.TempDir()
	mustRun(t, home, "keys", "add", "client")

	_, err := run(t, home, "token", "client")
	require.ErrorContains(t, err, "jwt_secret")

	require.NoError(t, WriteDefaultConfig(home, map[string]any{"api.jwt_secret": "s3cret"}))
	out := mustRun(t, home, "token", "client", "--ttl", "1h")

	var resp api.TokenResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	claims, err := api.NewAuthService([]byte("s3cret"), time.Hour).ValidateToken(resp.Token)
	require.NoError(t, err)
	require.Equal(t, keyAddress(t, home, "client"), claims.Address)
}

func TestAttest(t *testing.T) {
	home := t.TempDir()
	mustRun(t, home, "keys", "add", "attestor")
	mustRun(t, home, "keys", "add", "oracle")
	mustRun(t, home, "keys", "add", "node")

	caps := registrytypes.Capabilities{CpuCores: 8, RamGb: 16, StorageGb: 512, BandwidthMbps: 1000, UptimePercent: 99}
	capsJSON, err := json.Marshal(caps)
	require.NoError(t, err)
	capsPath := filepath.Join(home, "caps.json")
	docPath := filepath.Join(home, "report.bin")
	require.NoError(t, os.WriteFile(capsPath, capsJSON, 0o600))
	require.NoError(t, os.WriteFile(docPath, []byte("tpm quote"), 0o600))

	out := mustRun(t, home, "attest", "node", "--key", "attestor", "--node", "node", "--caps", capsPath, "--document", docPath)
	var claim registrytypes.AttestationClaim
	require.NoError(t, json.Unmarshal([]byte(out), &claim))

	node, err := resolveAddress(home, "node")
	require.NoError(t, err)
	hash, err := attest.MessageHash(node, caps, claim.Hash)
	require.NoError(t, err)
	signer, err := attest.RecoverSigner(hash, claim.Signature)
	require.NoError(t, err)
	require.Equal(t, keyAddress(t, home, "attestor"), signer.String())

	out = mustRun(t, home, "attest", "certificate", "--key", "oracle", "--node", "node",
		"--multiplier", "150", "--valid-until", "2030-01-01T00:00:00Z", "--nonce", "1")
	var req api.SubmitCertificateRequest
	require.NoError(t, json.Unmarshal([]byte(out), &req))
	require.Equal(t, uint32(150), req.Claim.Multiplier)
	hash, err = attest.MessageHash(node, req.Claim, signalstypes.CertificateDomain)
	require.NoError(t, err)
	signer, err = attest.RecoverSigner(hash, req.Signature)
	require.NoError(t, err)
	require.Equal(t, keyAddress(t, home, "oracle"), signer.String())

	_, err = run(t, home, "attest", "certificate", "--key", "oracle", "--node", "node",
		"--multiplier", "1", "--valid-until", "2030-01-01T00:00:00Z", "--nonce", "1")
	require.Error(t, err)
}

func TestExportAfterGenesis(t *testing.T) {
	home := t.TempDir()
	mustRun(t, home, "keys", "add", "admin")
	mustRun(t, home, "init", "--admin", "admin")

	nc := nodeContext{home: home, cfg: Config{Ledger: LedgerConfig{CheckInvariants: true}}, logger: log.NewNopLogger()}
	a, err := openApp(nc)
	require.NoError(t, err)
	gs, err := app.ReadGenesisFile(genesisPath(home))
	require.NoError(t, err)
	_, err = a.InitChain(gs)
	require.NoError(t, err)
	require.NoError(t, a.Close())

	out := mustRun(t, home, "export")
	var exported app.GenesisState
	require.NoError(t, json.Unmarshal([]byte(out), &exported))
	require.NoError(t, exported.Validate())
}
