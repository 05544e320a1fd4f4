package types

import (
	"time"

	"cosmossdk.io/math"
)

// Multiplier bounds, in percent.
const (
	NeutralMultiplier = 100
	MaxMultiplier     = 200
)

// CertificateClaim is the statement an oracle signs for a node.
type CertificateClaim struct {
	Node       string `json:"node" cbor:"node"`
	Green      bool   `json:"green" cbor:"green"`
	Multiplier uint32 `json:"multiplier" cbor:"multiplier"`
	ValidUntil int64  `json:"valid_until" cbor:"valid_until"`
	Nonce      uint64 `json:"nonce" cbor:"nonce"`
}

// Validate checks the claim's static fields.
func (c CertificateClaim) Validate() error {
	if c.Multiplier < NeutralMultiplier || c.Multiplier > MaxMultiplier {
		return ErrInvalidCertificate.Wrapf("multiplier %d outside [%d, %d]", c.Multiplier, NeutralMultiplier, MaxMultiplier)
	}
	if c.Nonce == 0 {
		return ErrInvalidCertificate.Wrap("nonce must be positive")
	}
	if c.ValidUntil <= 0 {
		return ErrInvalidCertificate.Wrap("validity end required")
	}
	return nil
}

// GreenCertificate is an accepted claim.
type GreenCertificate struct {
	Node       string    `json:"node"`
	Green      bool      `json:"green"`
	Multiplier uint32    `json:"multiplier"`
	ValidUntil time.Time `json:"valid_until"`
	Nonce      uint64    `json:"nonce"`
	Oracle     string    `json:"oracle"`
	IssuedAt   time.Time `json:"issued_at"`
}

// Active reports whether the certificate applies at now.
func (c GreenCertificate) Active(now time.Time) bool {
	return now.Before(c.ValidUntil)
}

// DemandForecast is the AI service's view of a job type's market.
// All three values are percentages.
type DemandForecast struct {
	JobType    string    `json:"job_type"`
	Demand     uint32    `json:"demand"`
	Urgency    uint32    `json:"urgency"`
	Confidence uint32    `json:"confidence"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Validate checks the forecast's ranges.
func (f DemandForecast) Validate() error {
	if f.JobType == "" {
		return ErrInvalidForecast.Wrap("job type required")
	}
	if f.Demand > 100 || f.Urgency > 100 || f.Confidence > 100 {
		return ErrInvalidForecast.Wrap("demand, urgency and confidence are percentages")
	}
	return nil
}

// NodeScore is the AI service's 0-100 rating of a node.
type NodeScore struct {
	Node      string    `json:"node"`
	Score     uint32    `json:"score"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PredictionRequest asks the AI service to estimate a job.
type PredictionRequest struct {
	ID              uint64    `json:"id"`
	JobID           uint64    `json:"job_id"`
	JobType         string    `json:"job_type"`
	Payment         math.Int  `json:"payment"`
	Deadline        time.Time `json:"deadline"`
	RequestedAt     time.Time `json:"requested_at"`
	Fulfilled       bool      `json:"fulfilled"`
	EstimateSeconds uint64    `json:"estimate_seconds"`
}
