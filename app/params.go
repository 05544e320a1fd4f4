package app

import (
	sdk "github.com/cosmos/cosmos-sdk/types"
)

const (
	// Bech32PrefixAccAddr defines the Bech32 prefix of an account's address
	Bech32PrefixAccAddr = "green"
	// Bech32PrefixAccPub defines the Bech32 prefix of an account's public key
	Bech32PrefixAccPub = "greenpub"

	// CoinType is the GreenMesh coin type as defined in SLIP44
	CoinType = 118

	// BondDenom is the stake and payment token.
	BondDenom = "ugreen"
)

// SetConfig sets the address configuration for GreenMesh. Call it once,
// before any address is rendered.
func SetConfig() {
	config := sdk.GetConfig()
	config.SetBech32PrefixForAccount(Bech32PrefixAccAddr, Bech32PrefixAccPub)
	config.SetCoinType(CoinType)
	config.Seal()
}
