package types

import (
	"errors"

	sdkerrors "cosmossdk.io/errors"

	"github.com/greenmesh/greenmesh/x/shared/errkind"
)

// Registry module sentinel errors. Codes follow the shared layout:
// validation 2-19, authorization 20-29, state 30-49, collaborator 50-59.
var (
	// Validation errors
	ErrUnknownDeviceType      = sdkerrors.Register(ModuleName, 2, "unknown device type")
	ErrInsufficientCapability = sdkerrors.Register(ModuleName, 3, "capabilities below device profile minimum")
	ErrInvalidMobileConfig    = sdkerrors.Register(ModuleName, 4, "invalid mobile device configuration")
	ErrInvalidServerConfig    = sdkerrors.Register(ModuleName, 5, "invalid server device configuration")
	ErrInvalidDeviceProfile   = sdkerrors.Register(ModuleName, 6, "invalid device profile")
	ErrInvalidParams          = sdkerrors.Register(ModuleName, 7, "invalid registry params")
	ErrInvalidAddress         = sdkerrors.Register(ModuleName, 8, "invalid address")
	ErrPowerSavingUnsupported = sdkerrors.Register(ModuleName, 9, "power saving is only available to mobile devices")
	ErrEmptyBatch             = sdkerrors.Register(ModuleName, 10, "registration batch is empty")
	ErrInvalidGenesis         = sdkerrors.Register(ModuleName, 11, "invalid registry genesis")

	// Authorization errors
	ErrInvalidAttestation = sdkerrors.Register(ModuleName, 20, "invalid hardware attestation")

	// State errors
	ErrAlreadyRegistered       = sdkerrors.Register(ModuleName, 30, "node already registered")
	ErrPermanentlySlashed      = sdkerrors.Register(ModuleName, 31, "identity permanently slashed")
	ErrNodeNotFound            = sdkerrors.Register(ModuleName, 32, "node not found")
	ErrRegistrationRateLimited = sdkerrors.Register(ModuleName, 33, "registration rate limit reached")
	ErrRegistryPaused          = sdkerrors.Register(ModuleName, 34, "registry is paused")
	ErrNodeBusy                = sdkerrors.Register(ModuleName, 35, "node has active tasks")
	ErrDeviceTypeInUse         = sdkerrors.Register(ModuleName, 36, "device type still has registered nodes")
	ErrAlreadyPaused           = sdkerrors.Register(ModuleName, 37, "registry already paused")
	ErrNotPaused               = sdkerrors.Register(ModuleName, 38, "registry is not paused")
	ErrNodeSlashed             = sdkerrors.Register(ModuleName, 39, "node is slashed")

	// Collaborator errors
	ErrStakeTransfer = sdkerrors.Register(ModuleName, 50, "stake transfer failed")
)

// ErrorWithRecovery wraps an error with a recovery suggestion
type ErrorWithRecovery struct {
	Err      error
	Recovery string
}

func (e *ErrorWithRecovery) Error() string {
	return e.Err.Error()
}

func (e *ErrorWithRecovery) Unwrap() error {
	return e.Err
}

// RecoverySuggestions provides actionable recovery steps for each error type
var RecoverySuggestions = map[error]string{
	ErrUnknownDeviceType:       "Query the device catalog for supported device types.",
	ErrInsufficientCapability:  "Compare declared cpu, ram, storage and bandwidth with the device profile minimums.",
	ErrInvalidMobileConfig:     "Mobile devices must declare the mobility flag and a non-zero battery capacity.",
	ErrInvalidServerConfig:     "Server devices must not declare mobility and need at least 95% uptime.",
	ErrInvalidAttestation:      "Obtain a fresh attestation from a registered attestor over the exact capabilities being declared.",
	ErrAlreadyRegistered:       "Unregister the existing node before registering again.",
	ErrPermanentlySlashed:      "This identity was permanently slashed and cannot register again. Use a different identity.",
	ErrNodeNotFound:            "Verify the node address. The node may have unregistered.",
	ErrRegistrationRateLimited: "The registration window is full. Retry in the next window.",
	ErrRegistryPaused:          "Registry operations are paused by an administrator. Wait for resume.",
	ErrNodeBusy:                "Wait for active tasks to finish before unregistering.",
	ErrDeviceTypeInUse:         "Unregister every node of this device type before removing the profile.",
	ErrStakeTransfer:           "Check the account balance covers the device profile minimum stake.",
}

// WrapWithRecovery wraps an error with its recovery suggestion
func WrapWithRecovery(err error, msg string, args ...interface{}) error {
	wrapped := sdkerrors.Wrapf(err, msg, args...)
	if suggestion, ok := RecoverySuggestions[err]; ok {
		return &ErrorWithRecovery{Err: wrapped, Recovery: suggestion}
	}
	return wrapped
}

// GetRecoverySuggestion returns the recovery suggestion for an error
func GetRecoverySuggestion(err error) string {
	for _, candidate := range []error{
		ErrUnknownDeviceType, ErrInsufficientCapability, ErrInvalidMobileConfig, ErrInvalidServerConfig,
		ErrInvalidAttestation, ErrAlreadyRegistered, ErrPermanentlySlashed, ErrNodeNotFound,
		ErrRegistrationRateLimited, ErrRegistryPaused, ErrNodeBusy, ErrDeviceTypeInUse, ErrStakeTransfer,
	} {
		if errors.Is(err, candidate) {
			return RecoverySuggestions[candidate]
		}
	}
	return "No recovery suggestion available. Check error message for details."
}

// ErrorKind classifies err into the shared failure kinds.
func ErrorKind(err error) errkind.Kind {
	return errkind.Of(err)
}
