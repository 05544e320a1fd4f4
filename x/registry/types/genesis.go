package types

import (
	sdk "github.com/cosmos/cosmos-sdk/types"
)

// GenesisState is the registry genesis.
type GenesisState struct {
	Params       Params          `json:"params"`
	Profiles     []DeviceProfile `json:"profiles"`
	Nodes        []Node          `json:"nodes"`
	Tombstones   []string        `json:"tombstones"`
	SlashRecords []SlashRecord   `json:"slash_records"`
	Paused       bool            `json:"paused"`
}

// DefaultGenesis returns the default registry genesis with the built-in catalog.
func DefaultGenesis() *GenesisState {
	return &GenesisState{
		Params:   DefaultParams(),
		Profiles: DefaultCatalog(),
	}
}

// Validate performs basic genesis state validation.
func (gs GenesisState) Validate() error {
	if err := gs.Params.Validate(); err != nil {
		return err
	}

	profiles := make(map[string]DeviceProfile, len(gs.Profiles))
	for _, p := range gs.Profiles {
		if err := p.Validate(); err != nil {
			return err
		}
		if _, dup := profiles[p.DeviceType]; dup {
			return ErrInvalidGenesis.Wrapf("duplicate device profile %s", p.DeviceType)
		}
		profiles[p.DeviceType] = p
	}

	tombstoned := make(map[string]bool, len(gs.Tombstones))
	for _, addr := range gs.Tombstones {
		if _, err := sdk.AccAddressFromBech32(addr); err != nil {
			return ErrInvalidGenesis.Wrapf("tombstone %s: %v", addr, err)
		}
		tombstoned[addr] = true
	}

	seen := make(map[string]bool, len(gs.Nodes))
	for _, n := range gs.Nodes {
		if _, err := sdk.AccAddressFromBech32(n.Address); err != nil {
			return ErrInvalidGenesis.Wrapf("node %s: %v", n.Address, err)
		}
		if seen[n.Address] {
			return ErrInvalidGenesis.Wrapf("duplicate node %s", n.Address)
		}
		seen[n.Address] = true

		profile, ok := profiles[n.DeviceType]
		if !ok {
			return ErrInvalidGenesis.Wrapf("node %s references unknown device type %s", n.Address, n.DeviceType)
		}
		if n.Stake.IsNil() || n.Stake.IsNegative() {
			return ErrInvalidGenesis.Wrapf("node %s has invalid stake", n.Address)
		}
		if !n.Slashed && n.Stake.LT(profile.MinStake) {
			return ErrInvalidGenesis.Wrapf("node %s stake below profile minimum", n.Address)
		}
		if n.Slashed && !tombstoned[n.Address] {
			return ErrInvalidGenesis.Wrapf("slashed node %s missing from tombstones", n.Address)
		}
		if n.ActiveTasks > profile.MaxConcurrentTasks {
			return ErrInvalidGenesis.Wrapf("node %s exceeds max concurrent tasks", n.Address)
		}
		if n.Reputation > 100 {
			return ErrInvalidGenesis.Wrapf("node %s reputation above 100", n.Address)
		}
	}

	for _, r := range gs.SlashRecords {
		if r.ID == 0 {
			return ErrInvalidGenesis.Wrapf("slash record for %s has zero id", r.Node)
		}
	}
	return nil
}
