// Package errkind classifies registered module errors into the broad failure
// kinds shared by every GreenMesh module.
//
// Each module registers its sentinels with cosmossdk.io/errors using a common
// code layout: validation 2-19, authorization 20-29, state conflict 30-49 and
// collaborator failures 50-59. Anything else is internal.
package errkind

import (
	"errors"

	errorsmod "cosmossdk.io/errors"
)

// Kind is the broad class of an operation failure.
type Kind int

const (
	Internal Kind = iota
	Validation
	Authorization
	State
	Collaborator
)

// String returns the lower-case kind name used in logs, metrics and API bodies.
func (k Kind) String() string {
	switch k {
	case Validation:
		return "validation"
	case Authorization:
		return "authorization"
	case State:
		return "state"
	case Collaborator:
		return "collaborator"
	default:
		return "internal"
	}
}

// Of returns the kind of err. Nil errors and unregistered errors are Internal.
func Of(err error) Kind {
	if err == nil {
		return Internal
	}
	var registered *errorsmod.Error
	if !errors.As(err, &registered) {
		return Internal
	}
	return ForCode(registered.ABCICode())
}

// ForCode maps a registered error code onto its kind.
func ForCode(code uint32) Kind {
	switch {
	case code >= 2 && code <= 19:
		return Validation
	case code >= 20 && code <= 29:
		return Authorization
	case code >= 30 && code <= 49:
		return State
	case code >= 50 && code <= 59:
		return Collaborator
	default:
		return Internal
	}
}
