package types

const (
	// ModuleName defines the module name
	ModuleName = "scheduler"

	// StoreKey defines the primary module store key
	StoreKey = ModuleName

	// DefaultDenom is the payment denomination when params do not name one.
	DefaultDenom = "ugreen"
)
