// Package app hosts the GreenMesh modules behind a single sequencer.
//
// The App owns one IAVL multistore with real auth and bank keepers plus the
// registry, signals, escrow and scheduler keepers. Every state-changing
// operation goes through Execute, which serialises callers, runs the
// operation as one block on a cache branch, commits it and appends its events
// to the event log. Reads go through Query on a branch of the last commit.
package app

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"cosmossdk.io/log"
	"cosmossdk.io/store/metrics"
	"cosmossdk.io/store/rootmulti"
	storetypes "cosmossdk.io/store/types"
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

	"github.com/greenmesh/greenmesh/pkg/eventsink"
	escrowkeeper "github.com/greenmesh/greenmesh/x/escrow/keeper"
	escrowtypes "github.com/greenmesh/greenmesh/x/escrow/types"
	registrykeeper "github.com/greenmesh/greenmesh/x/registry/keeper"
	registrytypes "github.com/greenmesh/greenmesh/x/registry/types"
	schedulerkeeper "github.com/greenmesh/greenmesh/x/scheduler/keeper"
	schedulertypes "github.com/greenmesh/greenmesh/x/scheduler/types"
	"github.com/greenmesh/greenmesh/x/shared/access"
	signalskeeper "github.com/greenmesh/greenmesh/x/signals/keeper"
	signalstypes "github.com/greenmesh/greenmesh/x/signals/types"
)

const (
	AppName = "greenmesh"

	// GenesisModule is the module account that mints genesis balances.
	GenesisModule = "genesis"
)

var (
	// DefaultNodeHome is the default home directory for the application daemon.
	DefaultNodeHome string

	maccPerms = map[string][]string{
		GenesisModule:             {authtypes.Minter},
		registrytypes.ModuleName:  {authtypes.Burner},
		escrowtypes.ModuleName:    nil,
		schedulertypes.ModuleName: nil,
	}
)

func init() {
	userHomeDir, err := os.UserHomeDir()
	if err != nil {
		panic(err)
	}
	DefaultNodeHome = filepath.Join(userHomeDir, ".greenmesh")
}

// GetMaccPerms returns a copy of the module account permissions.
func GetMaccPerms() map[string][]string {
	dup := make(map[string][]string, len(maccPerms))
	for k, v := range maccPerms {
		dup[k] = v
	}
	return dup
}

// BlockedModuleAccountAddrs returns the module accounts that may not receive
// plain transfers. Custody accounts only move funds through their keepers.
func BlockedModuleAccountAddrs() map[string]bool {
	return map[string]bool{
		registrykeeper.ModuleAddress().String():  true,
		escrowkeeper.ModuleAddress().String():    true,
		schedulerkeeper.ModuleAddress().String(): true,
	}
}

// Options tune a new App.
type Options struct {
	// Clock supplies block times. It defaults to time.Now in UTC.
	Clock func() time.Time
	// CheckInvariants runs every module invariant before each commit and
	// refuses to commit a block that breaks one.
	CheckInvariants bool
	// Sinks receive committed events.
	Sinks []eventsink.Sink
}

// App is the GreenMesh sequencer host.
type App struct {
	logger log.Logger
	db     dbm.DB
	cms    *rootmulti.Store
	keys   map[string]*storetypes.KVStoreKey
	closed bool

	AccountKeeper authkeeper.AccountKeeper
	BankKeeper    bankkeeper.BaseKeeper
	Policy        access.Policy
	Registry      *registrykeeper.Keeper
	Signals       *signalskeeper.Keeper
	Escrow        *escrowkeeper.Keeper
	Scheduler     *schedulerkeeper.Keeper

	// mu serialises Execute; Query takes it shared.
	mu              sync.RWMutex
	height          int64
	lastBlockTime   time.Time
	clock           func() time.Time
	checkInvariants bool
	sinks           eventsink.Multi
	invariants      []namedInvariant
	metrics         *HostMetrics
}

// StoreKeyNames lists every store the App mounts. No name may be a prefix of
// another.
func StoreKeyNames() []string {
	return []string{
		authtypes.StoreKey,
		banktypes.StoreKey,
		access.StoreKey,
		registrytypes.StoreKey,
		signalstypes.StoreKey,
		escrowtypes.StoreKey,
		schedulertypes.StoreKey,
		EventLogStoreKey,
	}
}

// mountedKey is set in every store at genesis and never removed. goleveldb
// reads an empty IAVL root back as a missing version, so no committed tree
// may be empty.
var mountedKey = []byte{0xFF, 'm'}

func (app *App) markStores(ctx sdk.Context) {
	for _, key := range app.keys {
		ctx.KVStore(key).Set(mountedKey, []byte{1})
	}
}

// New opens the application over db, loading the latest committed version.
func New(logger log.Logger, db dbm.DB, opts Options) (*App, error) {
	keys := storetypes.NewKVStoreKeys(StoreKeyNames()...)

	// Pruning runs inline so no tree goroutine outlives a commit and Close
	// can release the database right after the last block.
	cms := rootmulti.NewStore(db, logger, metrics.NewNoOpMetrics())
	cms.SetIAVLSyncPruning(true)
	for _, key := range keys {
		cms.MountStoreWithDB(key, storetypes.StoreTypeIAVL, nil)
	}
	if err := cms.LoadLatestVersion(); err != nil {
		return nil, fmt.Errorf("load latest version: %w", err)
	}

	interfaceRegistry := codectypes.NewInterfaceRegistry()
	authtypes.RegisterInterfaces(interfaceRegistry)
	banktypes.RegisterInterfaces(interfaceRegistry)
	cdc := codec.NewProtoCodec(interfaceRegistry)
	authority := authtypes.NewModuleAddress(govtypes.ModuleName).String()
	prefix := sdk.GetConfig().GetBech32AccountAddrPrefix()

	app := &App{
		logger:          logger.With("module", "app"),
		db:              db,
		cms:             cms,
		keys:            keys,
		clock:           opts.Clock,
		checkInvariants: opts.CheckInvariants,
		sinks:           eventsink.Multi(opts.Sinks),
		metrics:         NewHostMetrics(),
	}
	if app.clock == nil {
		app.clock = func() time.Time { return time.Now().UTC() }
	}

	app.AccountKeeper = authkeeper.NewAccountKeeper(
		cdc,
		runtime.NewKVStoreService(keys[authtypes.StoreKey]),
		authtypes.ProtoBaseAccount,
		maccPerms,
		address.NewBech32Codec(prefix),
		prefix,
		authority,
	)
	app.BankKeeper = bankkeeper.NewBaseKeeper(
		cdc,
		runtime.NewKVStoreService(keys[banktypes.StoreKey]),
		app.AccountKeeper,
		BlockedModuleAccountAddrs(),
		authority,
		logger,
	)

	app.Policy = access.NewPolicy(keys[access.StoreKey])
	app.Signals = signalskeeper.NewKeeper(keys[signalstypes.StoreKey], app.Policy)
	app.Registry = registrykeeper.NewKeeper(keys[registrytypes.StoreKey], app.BankKeeper, app.Signals, app.Policy)
	app.Escrow = escrowkeeper.NewKeeper(keys[escrowtypes.StoreKey], app.BankKeeper, app.Policy)
	app.Scheduler = schedulerkeeper.NewKeeper(
		keys[schedulertypes.StoreKey],
		app.Registry,
		app.BankKeeper,
		app.Signals,
		app.Signals,
		app.Escrow,
		app.Policy,
	)
	app.registerInvariants()

	if err := app.loadHead(); err != nil {
		return nil, err
	}
	return app, nil
}

// NewInMemory returns an App over a fresh in-memory database.
func NewInMemory(logger log.Logger, opts Options) (*App, error) {
	return New(logger, dbm.NewMemDB(), opts)
}

// OpenDB opens the GoLevelDB database under <home>/data.
func OpenDB(home string) (dbm.DB, error) {
	return dbm.NewGoLevelDB(AppName, filepath.Join(home, "data"), nil)
}

// Logger returns the host logger.
func (app *App) Logger() log.Logger { return app.logger }

// Height returns the last committed block height.
func (app *App) Height() int64 {
	app.mu.RLock()
	defer app.mu.RUnlock()
	return app.height
}

// LastBlockTime returns the time of the last committed block.
func (app *App) LastBlockTime() time.Time {
	app.mu.RLock()
	defer app.mu.RUnlock()
	return app.lastBlockTime
}

// Initialized reports whether genesis has been committed.
func (app *App) Initialized() bool {
	return app.Height() > 0
}

// AddSink registers an event sink for blocks committed from now on.
func (app *App) AddSink(s eventsink.Sink) {
	app.mu.Lock()
	defer app.mu.Unlock()
	app.sinks = append(app.sinks, s)
}

// Close flushes sinks and closes the database. Every commit is already
// durable when Close runs; calling it twice is a no-op.
func (app *App) Close() error {
	app.mu.Lock()
	defer app.mu.Unlock()
	if app.closed {
		return nil
	}
	app.closed = true
	if err := app.sinks.Close(); err != nil {
		app.logger.Error("close event sinks", "error", err)
	}
	return app.db.Close()
}
