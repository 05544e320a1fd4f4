package types

import (
	"errors"

	sdkerrors "cosmossdk.io/errors"

	"github.com/greenmesh/greenmesh/x/shared/errkind"
)

// Scheduler module sentinel errors. Codes follow the shared layout:
// validation 2-19, authorization 20-29, state 30-49, collaborator 50-59.
var (
	// Validation errors
	ErrInvalidPayment    = sdkerrors.Register(ModuleName, 2, "invalid job payment")
	ErrInvalidDeadline   = sdkerrors.Register(ModuleName, 3, "invalid job deadline")
	ErrInvalidContentRef = sdkerrors.Register(ModuleName, 4, "invalid content reference")
	ErrInvalidDuration   = sdkerrors.Register(ModuleName, 5, "invalid estimated duration")
	ErrInvalidJobType    = sdkerrors.Register(ModuleName, 6, "invalid job type")
	ErrInvalidPriority   = sdkerrors.Register(ModuleName, 7, "invalid job priority")
	ErrInvalidResult     = sdkerrors.Register(ModuleName, 8, "invalid job result")
	ErrInvalidParams     = sdkerrors.Register(ModuleName, 9, "invalid scheduler params")
	ErrInvalidRail       = sdkerrors.Register(ModuleName, 10, "invalid payment rail")
	ErrInvalidGenesis    = sdkerrors.Register(ModuleName, 11, "invalid scheduler genesis")
	ErrInvalidReason     = sdkerrors.Register(ModuleName, 12, "invalid cancellation reason")

	// Authorization errors
	ErrNotJobParticipant = sdkerrors.Register(ModuleName, 20, "caller is not a participant of this job")

	// State errors
	ErrJobNotFound            = sdkerrors.Register(ModuleName, 30, "job not found")
	ErrInvalidJobStatus       = sdkerrors.Register(ModuleName, 31, "job status does not allow this transition")
	ErrDeadlinePassed         = sdkerrors.Register(ModuleName, 32, "job deadline has passed")
	ErrNoSuitableNode         = sdkerrors.Register(ModuleName, 33, "no suitable node")
	ErrAlreadySettled         = sdkerrors.Register(ModuleName, 34, "job already settled")
	ErrResultAlreadySubmitted = sdkerrors.Register(ModuleName, 35, "result already submitted")
	ErrSchedulerPaused        = sdkerrors.Register(ModuleName, 36, "scheduler is paused")
	ErrAlreadyPaused          = sdkerrors.Register(ModuleName, 37, "scheduler already paused")
	ErrNotPaused              = sdkerrors.Register(ModuleName, 38, "scheduler is not paused")
	ErrEscrowNotFunded        = sdkerrors.Register(ModuleName, 39, "job escrow is not funded")

	// Collaborator errors
	ErrPaymentFailed = sdkerrors.Register(ModuleName, 50, "payment transfer failed")
	ErrEscrowFailed  = sdkerrors.Register(ModuleName, 51, "escrow custodian call failed")
	ErrRegistry      = sdkerrors.Register(ModuleName, 52, "node registry call failed")
)

// RecoverySuggestions provides actionable recovery steps for each error type
var RecoverySuggestions = map[error]string{
	ErrInvalidPayment:         "Query params for the minimum payment and resubmit with at least that amount.",
	ErrInvalidDeadline:        "Choose a deadline in the future and within the maximum job duration.",
	ErrInvalidContentRef:      "Provide the content reference of the job input.",
	ErrJobNotFound:            "Verify the job id.",
	ErrInvalidJobStatus:       "Query the job; the requested transition is not allowed from its current status.",
	ErrDeadlinePassed:         "The job can no longer be assigned. Cancel it to reclaim the payment.",
	ErrNoSuitableNode:         "No registered node meets the requirements right now. Retry assignment later.",
	ErrAlreadySettled:         "Payment was already released for this job.",
	ErrResultAlreadySubmitted: "This node already submitted its result.",
	ErrSchedulerPaused:        "Scheduling is paused by an administrator. Wait for resume.",
	ErrEscrowNotFunded:        "Fund the job escrow before it can be assigned.",
	ErrPaymentFailed:          "Check the client balance covers the payment.",
}

// GetRecoverySuggestion returns the recovery suggestion for an error
func GetRecoverySuggestion(err error) string {
	for candidate, suggestion := range RecoverySuggestions {
		if errors.Is(err, candidate) {
			return suggestion
		}
	}
	return "No recovery suggestion available. Check error message for details."
}

// ErrorKind classifies err into the shared failure kinds.
func ErrorKind(err error) errkind.Kind {
	return errkind.Of(err)
}
