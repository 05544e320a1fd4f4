package types

import (
	sdkerrors "cosmossdk.io/errors"
)

var (
	ErrInvalidCertificate = sdkerrors.Register(ModuleName, 2, "invalid green certificate")
	ErrInvalidScore       = sdkerrors.Register(ModuleName, 3, "invalid node score")
	ErrInvalidForecast    = sdkerrors.Register(ModuleName, 4, "invalid demand forecast")
	ErrInvalidParams      = sdkerrors.Register(ModuleName, 5, "invalid signals params")
	ErrInvalidPrediction  = sdkerrors.Register(ModuleName, 6, "invalid prediction request")
	ErrInvalidGenesis     = sdkerrors.Register(ModuleName, 7, "invalid signals genesis")

	ErrUntrustedOracle = sdkerrors.Register(ModuleName, 20, "statement not signed by an oracle")

	ErrStaleNonce          = sdkerrors.Register(ModuleName, 30, "certificate nonce already used")
	ErrPredictionQueueFull = sdkerrors.Register(ModuleName, 31, "prediction queue is full")
	ErrPredictionNotFound  = sdkerrors.Register(ModuleName, 32, "prediction request not found")
	ErrCertificateExpired  = sdkerrors.Register(ModuleName, 33, "certificate already expired")
)
