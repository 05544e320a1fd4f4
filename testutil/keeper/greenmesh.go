package keeper

import (
	"crypto/sha256"
	"time"

	"cosmossdk.io/log"
	"cosmossdk.io/math"
	"cosmossdk.io/store"
	"cosmossdk.io/store/metrics"
	storetypes "cosmossdk.io/store/types"
	"github.com/cometbft/cometbft/crypto"
	cmtproto "github.com/cometbft/cometbft/proto/tendermint/types"
	dbm "github.com/cosmos/cosmos-db"
	"github.com/cosmos/cosmos-sdk/codec"
	"github.com/cosmos/cosmos-sdk/codec/address"
	codectypes "github.com/cosmos/cosmos-sdk/codec/types"
	"github.com/cosmos/cosmos-sdk/runtime"
	sdk "github.com/cosmos/cosmos-sdk/types"
	authkeeper "github.com/cosmos/cosmos-sdk/x/auth/keeper"
	authtypes "github.com/cosmos/cosmos-sdk/x/auth/types"
	bankkeeper "github.com/cosmos/cosmos-sdk/x/bank/keeper"
	banktypes "github.com/cosmos/cosmos-sdk/x/bank/types"
	govtypes "github.com/cosmos/cosmos-sdk/x/gov/types"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/stretchr/testify/require"

	escrowkeeper "github.com/greenmesh/greenmesh/x/escrow/keeper"
	escrowtypes "github.com/greenmesh/greenmesh/x/escrow/types"
	registrykeeper "github.com/greenmesh/greenmesh/x/registry/keeper"
	registrytypes "github.com/greenmesh/greenmesh/x/registry/types"
	schedulerkeeper "github.com/greenmesh/greenmesh/x/scheduler/keeper"
	schedulertypes "github.com/greenmesh/greenmesh/x/scheduler/types"
	"github.com/greenmesh/greenmesh/x/shared/access"
	"github.com/greenmesh/greenmesh/x/shared/attest"
	signalskeeper "github.com/greenmesh/greenmesh/x/signals/keeper"
	signalstypes "github.com/greenmesh/greenmesh/x/signals/types"
)

// TB is the part of testing.TB the fixture needs. *rapid.T satisfies it too.
type TB interface {
	require.TestingT
	Helper()
}

// FaucetModule mints test balances.
const FaucetModule = "faucet"

// GenesisTime is the block time every fixture starts at.
var GenesisTime = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

// Fixture wires every greenmesh keeper over one in-memory multistore with real
// auth and bank keepers.
type Fixture struct {
	Ctx   sdk.Context
	Store storetypes.CommitMultiStore

	Account   authkeeper.AccountKeeper
	Bank      bankkeeper.BaseKeeper
	Policy    access.Policy
	Registry  *registrykeeper.Keeper
	Signals   *signalskeeper.Keeper
	Escrow    *escrowkeeper.Keeper
	Scheduler *schedulerkeeper.Keeper

	Admin       sdk.AccAddress
	Dispatcher  sdk.AccAddress
	Validator   sdk.AccAddress
	Slasher     sdk.AccAddress
	AttestorKey *secp256k1.PrivateKey
	OracleKey   *secp256k1.PrivateKey
}

// NewFixture builds a fresh fixture with the default catalog and every
// operator role granted.
func NewFixture(t TB) *Fixture {
	t.Helper()

	keys := storetypes.NewKVStoreKeys(
		authtypes.StoreKey,
		banktypes.StoreKey,
		access.StoreKey,
		registrytypes.StoreKey,
		signalstypes.StoreKey,
		escrowtypes.StoreKey,
		schedulertypes.StoreKey,
	)

	db := dbm.NewMemDB()
	stateStore := store.NewCommitMultiStore(db, log.NewNopLogger(), metrics.NewNoOpMetrics())
	for _, key := range keys {
		stateStore.MountStoreWithDB(key, storetypes.StoreTypeIAVL, db)
	}
	require.NoError(t, stateStore.LoadLatestVersion())

	registry := codectypes.NewInterfaceRegistry()
	authtypes.RegisterInterfaces(registry)
	banktypes.RegisterInterfaces(registry)
	cdc := codec.NewProtoCodec(registry)
	authority := authtypes.NewModuleAddress(govtypes.ModuleName)

	maccPerms := map[string][]string{
		FaucetModule:              {authtypes.Minter},
		registrytypes.ModuleName:  {authtypes.Burner},
		escrowtypes.ModuleName:    nil,
		schedulertypes.ModuleName: nil,
	}

	accountKeeper := authkeeper.NewAccountKeeper(
		cdc,
		runtime.NewKVStoreService(keys[authtypes.StoreKey]),
		authtypes.ProtoBaseAccount,
		maccPerms,
		address.NewBech32Codec(sdk.GetConfig().GetBech32AccountAddrPrefix()),
		sdk.GetConfig().GetBech32AccountAddrPrefix(),
		authority.String(),
	)

	blockedAddrs := map[string]bool{
		registrykeeper.ModuleAddress().String():  true,
		escrowkeeper.ModuleAddress().String():    true,
		schedulerkeeper.ModuleAddress().String(): true,
	}
	bankKeeper := bankkeeper.NewBaseKeeper(
		cdc,
		runtime.NewKVStoreService(keys[banktypes.StoreKey]),
		accountKeeper,
		blockedAddrs,
		authority.String(),
		log.NewNopLogger(),
	)

	policy := access.NewPolicy(keys[access.StoreKey])
	signals := signalskeeper.NewKeeper(keys[signalstypes.StoreKey], policy)
	reg := registrykeeper.NewKeeper(keys[registrytypes.StoreKey], bankKeeper, signals, policy)
	esc := escrowkeeper.NewKeeper(keys[escrowtypes.StoreKey], bankKeeper, policy)
	sched := schedulerkeeper.NewKeeper(keys[schedulertypes.StoreKey], reg, bankKeeper, signals, signals, esc, policy)

	ctx := sdk.NewContext(stateStore, cmtproto.Header{Height: 1, Time: GenesisTime}, false, log.NewNopLogger())

	f := &Fixture{
		Ctx:         ctx,
		Store:       stateStore,
		Account:     accountKeeper,
		Bank:        bankKeeper,
		Policy:      policy,
		Registry:    reg,
		Signals:     signals,
		Escrow:      esc,
		Scheduler:   sched,
		Admin:       Addr("admin"),
		Dispatcher:  Addr("dispatcher"),
		Validator:   Addr("validator"),
		Slasher:     Addr("slasher"),
		AttestorKey: KeyFor("attestor"),
		OracleKey:   KeyFor("oracle"),
	}

	require.NoError(t, reg.InitGenesis(ctx, *registrytypes.DefaultGenesis()))
	require.NoError(t, sched.InitGenesis(ctx, *schedulertypes.DefaultGenesis()))

	grants := []access.Grant{
		{Role: access.RoleAdmin, Address: f.Admin.String()},
		{Role: access.RoleScheduler, Address: f.Dispatcher.String()},
		{Role: access.RoleValidator, Address: f.Validator.String()},
		{Role: access.RoleSlasher, Address: f.Slasher.String()},
		{Role: access.RoleAttestor, Address: attest.Address(f.AttestorKey.PubKey()).String()},
		{Role: access.RoleOracle, Address: attest.Address(f.OracleKey.PubKey()).String()},
	}
	for _, role := range schedulerkeeper.OperatorRoles {
		grants = append(grants, access.Grant{Role: role, Address: schedulerkeeper.ModuleAddress().String()})
	}
	require.NoError(t, policy.InitGenesis(ctx, grants))

	return f
}

// Addr derives a stable test address from name.
func Addr(name string) sdk.AccAddress {
	return sdk.AccAddress(crypto.AddressHash([]byte(name)))
}

// KeyFor derives a stable secp256k1 key from name.
func KeyFor(name string) *secp256k1.PrivateKey {
	seed := sha256.Sum256([]byte(name))
	return secp256k1.PrivKeyFromBytes(seed[:])
}

// Fund mints amount of the default denom to addr.
func (f *Fixture) Fund(t TB, addr sdk.AccAddress, amount math.Int) {
	t.Helper()
	coins := sdk.NewCoins(sdk.NewCoin(registrytypes.DefaultDenom, amount))
	require.NoError(t, f.Bank.MintCoins(f.Ctx, FaucetModule, coins))
	require.NoError(t, f.Bank.SendCoinsFromModuleToAccount(f.Ctx, FaucetModule, addr, coins))
}

// Balance returns addr's balance of the default denom.
func (f *Fixture) Balance(addr sdk.AccAddress) math.Int {
	return f.Bank.GetBalance(f.Ctx, addr, registrytypes.DefaultDenom).Amount
}

// Advance moves the block clock forward by d and bumps the height.
func (f *Fixture) Advance(d time.Duration) {
	f.Ctx = f.Ctx.WithBlockTime(f.Ctx.BlockTime().Add(d)).WithBlockHeight(f.Ctx.BlockHeight() + 1)
}

// ResetEvents gives the context a fresh event manager.
func (f *Fixture) ResetEvents() {
	f.Ctx = f.Ctx.WithEventManager(sdk.NewEventManager())
}

// Attest signs caps for addr with the fixture attestor.
func (f *Fixture) Attest(t TB, addr sdk.AccAddress, caps registrytypes.Capabilities) registrytypes.AttestationClaim {
	t.Helper()
	hash := sha256.Sum256([]byte("attestation:" + addr.String()))
	sig, err := attest.SignStatement(f.AttestorKey, addr, caps, hash[:])
	require.NoError(t, err)
	return registrytypes.AttestationClaim{Hash: hash[:], Signature: sig}
}

// RegisterNode funds and registers a node named name.
func (f *Fixture) RegisterNode(t TB, name, deviceType string, caps registrytypes.Capabilities) sdk.AccAddress {
	t.Helper()
	addr := Addr(name)
	profile, err := f.Registry.GetDeviceProfile(f.Ctx, deviceType)
	require.NoError(t, err)
	f.Fund(t, addr, profile.MinStake)
	require.NoError(t, f.Registry.Register(f.Ctx, addr, deviceType, caps, f.Attest(t, addr, caps)))
	return addr
}

// CertifyGreen submits an oracle-signed green certificate for node.
func (f *Fixture) CertifyGreen(t TB, node sdk.AccAddress, multiplier uint32, nonce uint64) {
	t.Helper()
	claim := signalstypes.CertificateClaim{
		Node:       node.String(),
		Green:      true,
		Multiplier: multiplier,
		ValidUntil: f.Ctx.BlockTime().Add(90 * 24 * time.Hour).Unix(),
		Nonce:      nonce,
	}
	sig, err := attest.SignStatement(f.OracleKey, node, claim, signalstypes.CertificateDomain)
	require.NoError(t, err)
	require.NoError(t, f.Signals.SubmitGreenCertificate(f.Ctx, claim, sig))
}

// DesktopCaps meets the desktop profile minimums exactly.
func DesktopCaps() registrytypes.Capabilities {
	return registrytypes.Capabilities{
		CpuCores:      8,
		CpuFreqMhz:    3200,
		RamGb:         16,
		StorageGb:     256,
		BandwidthMbps: 100,
		UptimePercent: 90,
		OS:            "linux",
		Containers:    true,
	}
}

// ServerCaps meets the server profile minimums with a GPU.
func ServerCaps() registrytypes.Capabilities {
	return registrytypes.Capabilities{
		CpuCores:      32,
		CpuFreqMhz:    3000,
		RamGb:         128,
		StorageGb:     4000,
		HasGpu:        true,
		GpuMemGb:      24,
		BandwidthMbps: 10000,
		UptimePercent: 99,
		OS:            "linux",
		Containers:    true,
	}
}

// PhoneCaps meets the smartphone profile minimums.
func PhoneCaps() registrytypes.Capabilities {
	return registrytypes.Capabilities{
		CpuCores:      8,
		CpuFreqMhz:    2400,
		RamGb:         6,
		StorageGb:     128,
		BandwidthMbps: 50,
		UptimePercent: 60,
		BatteryMah:    4500,
		Mobile:        true,
		OS:            "android",
	}
}

// JobSpec returns a direct-rail inference job due in one hour.
func (f *Fixture) JobSpec(payment int64) schedulertypes.JobSpec {
	return schedulertypes.JobSpec{
		JobType:  schedulertypes.JobTypeInference,
		Priority: schedulertypes.PriorityNormal,
		Resources: schedulertypes.Resources{
			MinCpuCores:              4,
			MinRamGb:                 8,
			EstimatedDurationSeconds: 600,
		},
		Payment:    math.NewInt(payment),
		Rail:       schedulertypes.RailDirect,
		Deadline:   f.Ctx.BlockTime().Add(time.Hour),
		ContentRef: "ipfs://bafy-job-input",
	}
}
