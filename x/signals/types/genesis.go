package types

import (
	sdk "github.com/cosmos/cosmos-sdk/types"
)

// GenesisState is the signals genesis.
type GenesisState struct {
	Params       Params             `json:"params"`
	Certificates []GreenCertificate `json:"certificates"`
	Scores       []NodeScore        `json:"scores"`
	Forecasts    []DemandForecast   `json:"forecasts"`
}

// DefaultGenesis returns the default signals genesis
func DefaultGenesis() *GenesisState {
	return &GenesisState{Params: DefaultParams()}
}

// Validate performs basic genesis state validation
func (gs GenesisState) Validate() error {
	if err := gs.Params.Validate(); err != nil {
		return err
	}
	for _, c := range gs.Certificates {
		if _, err := sdk.AccAddressFromBech32(c.Node); err != nil {
			return ErrInvalidGenesis.Wrapf("certificate node %s: %v", c.Node, err)
		}
		if c.Multiplier < NeutralMultiplier || c.Multiplier > MaxMultiplier {
			return ErrInvalidGenesis.Wrapf("certificate for %s has multiplier %d", c.Node, c.Multiplier)
		}
	}
	for _, s := range gs.Scores {
		if _, err := sdk.AccAddressFromBech32(s.Node); err != nil {
			return ErrInvalidGenesis.Wrapf("score node %s: %v", s.Node, err)
		}
		if s.Score > 100 {
			return ErrInvalidGenesis.Wrapf("score for %s above 100", s.Node)
		}
	}
	for _, f := range gs.Forecasts {
		if err := f.Validate(); err != nil {
			return err
		}
	}
	return nil
}
