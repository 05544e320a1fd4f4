package types

import (
	"time"

	"cosmossdk.io/math"
)

// Status is the escrow state machine:
//
//	Pending -> Funded -> Released
//	Pending -> Cancelled
//	Funded  -> Refunded
type Status string

const (
	StatusPending   Status = "pending"
	StatusFunded    Status = "funded"
	StatusReleased  Status = "released"
	StatusRefunded  Status = "refunded"
	StatusCancelled Status = "cancelled"
)

// Closed reports whether no further transitions are possible.
func (s Status) Closed() bool {
	return s == StatusReleased || s == StatusRefunded || s == StatusCancelled
}

// Record is one job's escrow.
type Record struct {
	JobID     uint64    `json:"job_id"`
	Payer     string    `json:"payer"`
	Payee     string    `json:"payee,omitempty"`
	Amount    math.Int  `json:"amount"`
	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	FundedAt  time.Time `json:"funded_at,omitempty"`
	ClosedAt  time.Time `json:"closed_at,omitempty"`
}

// Params are the escrow settings.
type Params struct {
	Denom string `json:"denom"`
}

// DefaultParams returns default escrow parameters
func DefaultParams() Params {
	return Params{Denom: DefaultDenom}
}

// Validate performs basic validation of escrow parameters
func (p Params) Validate() error {
	if p.Denom == "" {
		return ErrInvalidParams.Wrap("denom is required")
	}
	return nil
}

// GenesisState is the escrow genesis.
type GenesisState struct {
	Params  Params   `json:"params"`
	Records []Record `json:"records"`
}

// DefaultGenesis returns the default escrow genesis
func DefaultGenesis() *GenesisState {
	return &GenesisState{Params: DefaultParams()}
}

// Validate performs basic genesis state validation
func (gs GenesisState) Validate() error {
	if err := gs.Params.Validate(); err != nil {
		return err
	}
	seen := make(map[uint64]bool, len(gs.Records))
	for _, r := range gs.Records {
		if seen[r.JobID] {
			return ErrInvalidGenesis.Wrapf("duplicate escrow for job %d", r.JobID)
		}
		seen[r.JobID] = true
		if r.Amount.IsNil() || !r.Amount.IsPositive() {
			return ErrInvalidGenesis.Wrapf("escrow for job %d has no amount", r.JobID)
		}
	}
	return nil
}
