package app

import (
	sdkerrors "cosmossdk.io/errors"
)

// Codespace of host-level errors.
const Codespace = "app"

var (
	ErrInvalidGenesis = sdkerrors.Register(Codespace, 2, "invalid genesis")
	ErrInvalidRequest = sdkerrors.Register(Codespace, 3, "invalid request")

	ErrNotInitialized     = sdkerrors.Register(Codespace, 30, "chain has not been initialized")
	ErrAlreadyInitialized = sdkerrors.Register(Codespace, 31, "chain is already initialized")
	ErrClosed             = sdkerrors.Register(Codespace, 32, "ledger is closed")

	ErrInvariantBroken = sdkerrors.Register(Codespace, 60, "invariant broken")
)
