package types

const (
	// ModuleName defines the module name
	ModuleName = "registry"

	// StoreKey defines the primary module store key
	StoreKey = ModuleName

	// DefaultDenom is the stake denomination used when params do not name one.
	DefaultDenom = "ugreen"
)
