package types

import "cosmossdk.io/math"

// DefaultParams returns default scheduler parameters
func DefaultParams() Params {
	return Params{
		Denom:                 DefaultDenom,
		MinPayment:            math.NewInt(1000),
		MaxJobDurationSeconds: 30 * 24 * 3600,
		MaxContentRefLength:   512,
		MaxCancelReasonLength: 256,
	}
}

// Params are the governable scheduler settings.
type Params struct {
	Denom                 string   `json:"denom"`
	MinPayment            math.Int `json:"min_payment"`
	MaxJobDurationSeconds uint64   `json:"max_job_duration_seconds"`
	MaxContentRefLength   uint32   `json:"max_content_ref_length"`
	MaxCancelReasonLength uint32   `json:"max_cancel_reason_length"`
}

// Validate performs basic validation of scheduler parameters
func (p Params) Validate() error {
	if p.Denom == "" {
		return ErrInvalidParams.Wrap("denom is required")
	}
	if p.MinPayment.IsNil() || !p.MinPayment.IsPositive() {
		return ErrInvalidParams.Wrap("min payment must be positive")
	}
	if p.MaxJobDurationSeconds == 0 {
		return ErrInvalidParams.Wrap("max job duration must be positive")
	}
	if p.MaxContentRefLength == 0 {
		return ErrInvalidParams.Wrap("max content ref length must be positive")
	}
	return nil
}
