package app

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"

	escrowkeeper "github.com/greenmesh/greenmesh/x/escrow/keeper"
	escrowtypes "github.com/greenmesh/greenmesh/x/escrow/types"
	registrykeeper "github.com/greenmesh/greenmesh/x/registry/keeper"
	registrytypes "github.com/greenmesh/greenmesh/x/registry/types"
	schedulerkeeper "github.com/greenmesh/greenmesh/x/scheduler/keeper"
	schedulertypes "github.com/greenmesh/greenmesh/x/scheduler/types"
	"github.com/greenmesh/greenmesh/x/shared/access"
	signalstypes "github.com/greenmesh/greenmesh/x/signals/types"
)

// BalancesKey is the genesis section holding initial balances.
const BalancesKey = "balances"

// GenesisState represents the genesis state of the ledger.
// It is a map from module name to module genesis state.
type GenesisState map[string]json.RawMessage

// Balance is one account's genesis balance of BondDenom.
type Balance struct {
	Address string   `json:"address"`
	Amount  math.Int `json:"amount"`
}

// moduleSections pairs every section with its decoder and validator, in
// InitChain order.
var moduleSections = []string{
	access.ModuleName,
	BalancesKey,
	signalstypes.ModuleName,
	registrytypes.ModuleName,
	escrowtypes.ModuleName,
	schedulertypes.ModuleName,
}

// NewDefaultGenesisState returns default module genesis with admin holding
// the admin role and the scheduler module account holding the operator
// roles it needs to reserve capacity, adjust reputation and move escrow.
func NewDefaultGenesisState(admin sdk.AccAddress) GenesisState {
	grants := []access.Grant{{Role: access.RoleAdmin, Address: admin.String()}}
	for _, role := range schedulerkeeper.OperatorRoles {
		grants = append(grants, access.Grant{Role: role, Address: schedulerkeeper.ModuleAddress().String()})
	}

	genesis := make(GenesisState)
	genesis[access.ModuleName] = mustMarshalJSON(grants)
	genesis[BalancesKey] = mustMarshalJSON([]Balance{})
	genesis[signalstypes.ModuleName] = mustMarshalJSON(signalstypes.DefaultGenesis())
	genesis[registrytypes.ModuleName] = mustMarshalJSON(registrytypes.DefaultGenesis())
	genesis[escrowtypes.ModuleName] = mustMarshalJSON(escrowtypes.DefaultGenesis())
	genesis[schedulertypes.ModuleName] = mustMarshalJSON(schedulertypes.DefaultGenesis())
	return genesis
}

func mustMarshalJSON(v any) json.RawMessage {
	bz, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return bz
}

// decoded is a GenesisState with every section parsed.
type decoded struct {
	grants    []access.Grant
	balances  []Balance
	signals   signalstypes.GenesisState
	registry  registrytypes.GenesisState
	escrow    escrowtypes.GenesisState
	scheduler schedulertypes.GenesisState
}

func (gs GenesisState) decode() (decoded, error) {
	var d decoded
	targets := map[string]any{
		access.ModuleName:         &d.grants,
		BalancesKey:               &d.balances,
		signalstypes.ModuleName:   &d.signals,
		registrytypes.ModuleName:  &d.registry,
		escrowtypes.ModuleName:    &d.escrow,
		schedulertypes.ModuleName: &d.scheduler,
	}
	for _, name := range moduleSections {
		raw, ok := gs[name]
		if !ok {
			return decoded{}, ErrInvalidGenesis.Wrapf("missing section %q", name)
		}
		if err := json.Unmarshal(raw, targets[name]); err != nil {
			return decoded{}, ErrInvalidGenesis.Wrapf("section %q: %v", name, err)
		}
	}
	for name := range gs {
		if _, known := targets[name]; !known {
			return decoded{}, ErrInvalidGenesis.Wrapf("unknown section %q", name)
		}
	}
	return d, nil
}

// Validate decodes and validates every section.
func (gs GenesisState) Validate() error {
	d, err := gs.decode()
	if err != nil {
		return err
	}
	if err := access.ValidateGrants(d.grants); err != nil {
		return err
	}
	seen := make(map[string]bool, len(d.balances))
	for _, b := range d.balances {
		if _, err := sdk.AccAddressFromBech32(b.Address); err != nil {
			return ErrInvalidGenesis.Wrapf("balance %s: %v", b.Address, err)
		}
		if seen[b.Address] {
			return ErrInvalidGenesis.Wrapf("duplicate balance %s", b.Address)
		}
		seen[b.Address] = true
		if b.Amount.IsNil() || !b.Amount.IsPositive() {
			return ErrInvalidGenesis.Wrapf("balance %s must be positive", b.Address)
		}
	}
	for _, check := range []func() error{
		d.signals.Validate,
		d.registry.Validate,
		d.escrow.Validate,
		d.scheduler.Validate,
	} {
		if err := check(); err != nil {
			return err
		}
	}
	return nil
}

// AddBalance returns a copy of gs with amount credited to addr.
func (gs GenesisState) AddBalance(addr sdk.AccAddress, amount math.Int) (GenesisState, error) {
	var balances []Balance
	if err := json.Unmarshal(gs[BalancesKey], &balances); err != nil {
		return nil, ErrInvalidGenesis.Wrapf("section %q: %v", BalancesKey, err)
	}
	found := false
	for i := range balances {
		if balances[i].Address == addr.String() {
			balances[i].Amount = balances[i].Amount.Add(amount)
			found = true
		}
	}
	if !found {
		balances = append(balances, Balance{Address: addr.String(), Amount: amount})
	}
	out := gs.clone()
	out[BalancesKey] = mustMarshalJSON(balances)
	return out, nil
}

// AddGrant returns a copy of gs with role granted to addr.
func (gs GenesisState) AddGrant(role access.Role, addr sdk.AccAddress) (GenesisState, error) {
	var grants []access.Grant
	if err := json.Unmarshal(gs[access.ModuleName], &grants); err != nil {
		return nil, ErrInvalidGenesis.Wrapf("section %q: %v", access.ModuleName, err)
	}
	for _, g := range grants {
		if g.Role == role && g.Address == addr.String() {
			return gs, nil
		}
	}
	out := gs.clone()
	out[access.ModuleName] = mustMarshalJSON(append(grants, access.Grant{Role: role, Address: addr.String()}))
	return out, nil
}

// SetModule returns a copy of gs with the named section replaced.
func (gs GenesisState) SetModule(name string, state any) GenesisState {
	out := gs.clone()
	out[name] = mustMarshalJSON(state)
	return out
}

func (gs GenesisState) clone() GenesisState {
	out := make(GenesisState, len(gs))
	for k, v := range gs {
		out[k] = v
	}
	return out
}

// ReadGenesisFile loads a genesis file written by WriteGenesisFile.
func ReadGenesisFile(path string) (GenesisState, error) {
	bz, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var gs GenesisState
	if err := json.Unmarshal(bz, &gs); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return gs, nil
}

// WriteGenesisFile writes gs as indented JSON.
func WriteGenesisFile(path string, gs GenesisState) error {
	bz, err := json.MarshalIndent(gs, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, bz, 0o600)
}

// moduleAccounts maps custody account addresses to their module names.
func moduleAccounts() map[string]string {
	return map[string]string{
		registrykeeper.ModuleAddress().String():  registrytypes.ModuleName,
		escrowkeeper.ModuleAddress().String():    escrowtypes.ModuleName,
		schedulerkeeper.ModuleAddress().String(): schedulertypes.ModuleName,
	}
}

// InitChain commits genesis as block 1.
func (app *App) InitChain(gs GenesisState) (BlockResult, error) {
	if err := gs.Validate(); err != nil {
		return BlockResult{}, err
	}
	d, err := gs.decode()
	if err != nil {
		return BlockResult{}, err
	}

	res, err := app.execute("init_chain", func(ctx sdk.Context) error {
		app.markStores(ctx)
		if err := app.Policy.InitGenesis(ctx, d.grants); err != nil {
			return err
		}
		if err := app.initBalances(ctx, d.balances); err != nil {
			return err
		}
		if err := app.Signals.InitGenesis(ctx, d.signals); err != nil {
			return err
		}
		if err := app.Registry.InitGenesis(ctx, d.registry); err != nil {
			return err
		}
		if err := app.Escrow.InitGenesis(ctx, d.escrow); err != nil {
			return err
		}
		return app.Scheduler.InitGenesis(ctx, d.scheduler)
	}, true)
	if err != nil {
		return BlockResult{}, err
	}
	app.logger.Info("genesis committed", "height", res.Height, "time", res.Time)
	app.publish(res)
	return res, nil
}

func (app *App) initBalances(ctx sdk.Context, balances []Balance) error {
	modules := moduleAccounts()
	for _, b := range balances {
		addr, err := sdk.AccAddressFromBech32(b.Address)
		if err != nil {
			return ErrInvalidGenesis.Wrapf("balance %s: %v", b.Address, err)
		}
		coins := sdk.NewCoins(sdk.NewCoin(BondDenom, b.Amount))
		if err := app.BankKeeper.MintCoins(ctx, GenesisModule, coins); err != nil {
			return err
		}
		if module, ok := modules[b.Address]; ok {
			err = app.BankKeeper.SendCoinsFromModuleToModule(ctx, GenesisModule, module, coins)
		} else {
			err = app.BankKeeper.SendCoinsFromModuleToAccount(ctx, GenesisModule, addr, coins)
		}
		if err != nil {
			return fmt.Errorf("genesis balance %s: %w", b.Address, err)
		}
	}
	return nil
}

// ExportGenesis exports the last committed state as a genesis that InitChain
// accepts.
func (app *App) ExportGenesis() (GenesisState, error) {
	genesis := make(GenesisState)
	err := app.Query(func(ctx sdk.Context) error {
		genesis[access.ModuleName] = mustMarshalJSON(app.Policy.ExportGenesis(ctx))

		var balances []Balance
		for _, b := range app.BankKeeper.GetAccountsBalances(ctx) {
			amount := b.Coins.AmountOf(BondDenom)
			if amount.IsPositive() {
				balances = append(balances, Balance{Address: b.Address, Amount: amount})
			}
		}
		sort.Slice(balances, func(i, j int) bool { return balances[i].Address < balances[j].Address })
		genesis[BalancesKey] = mustMarshalJSON(balances)

		signals, err := app.Signals.ExportGenesis(ctx)
		if err != nil {
			return err
		}
		genesis[signalstypes.ModuleName] = mustMarshalJSON(signals)

		registry, err := app.Registry.ExportGenesis(ctx)
		if err != nil {
			return err
		}
		genesis[registrytypes.ModuleName] = mustMarshalJSON(registry)

		escrow, err := app.Escrow.ExportGenesis(ctx)
		if err != nil {
			return err
		}
		genesis[escrowtypes.ModuleName] = mustMarshalJSON(escrow)

		scheduler, err := app.Scheduler.ExportGenesis(ctx)
		if err != nil {
			return err
		}
		genesis[schedulertypes.ModuleName] = mustMarshalJSON(scheduler)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return genesis, nil
}
