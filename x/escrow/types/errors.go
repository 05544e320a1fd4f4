package types

import (
	sdkerrors "cosmossdk.io/errors"
)

var (
	ErrInvalidAmount  = sdkerrors.Register(ModuleName, 2, "invalid escrow amount")
	ErrInvalidGenesis = sdkerrors.Register(ModuleName, 3, "invalid escrow genesis")
	ErrInvalidParams  = sdkerrors.Register(ModuleName, 4, "invalid escrow params")

	ErrNotPayer = sdkerrors.Register(ModuleName, 20, "only the payer may fund this escrow")

	ErrEscrowExists   = sdkerrors.Register(ModuleName, 30, "escrow already exists")
	ErrEscrowNotFound = sdkerrors.Register(ModuleName, 31, "escrow not found")
	ErrInvalidStatus  = sdkerrors.Register(ModuleName, 32, "escrow is not in the required status")

	ErrTransfer = sdkerrors.Register(ModuleName, 50, "escrow transfer failed")
)
