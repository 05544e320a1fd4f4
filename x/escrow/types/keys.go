package types

const (
	// ModuleName defines the module name
	ModuleName = "escrow"

	// StoreKey defines the primary module store key
	StoreKey = ModuleName

	// DefaultDenom is the escrowed denomination when params do not name one.
	DefaultDenom = "ugreen"
)
