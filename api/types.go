package api

import (
	"time"

	"cosmossdk.io/math"

	"github.com/greenmesh/greenmesh/pkg/eventsink"
	registrytypes "github.com/greenmesh/greenmesh/x/registry/types"
	schedulertypes "github.com/greenmesh/greenmesh/x/scheduler/types"
	signalstypes "github.com/greenmesh/greenmesh/x/signals/types"
)

// ==================== Authentication Types ====================

// LoginStatement is the payload a key holder signs to obtain a token.
type LoginStatement struct {
	Issuer    string `json:"issuer" cbor:"issuer"`
	Timestamp int64  `json:"timestamp" cbor:"timestamp"`
}

// LoginRequest proves control of Address by signing a LoginStatement.
type LoginRequest struct {
	Address   string `json:"address" binding:"required"`
	Timestamp int64  `json:"timestamp" binding:"required"`
	Signature []byte `json:"signature" binding:"required"`
}

// TokenResponse carries a bearer token.
type TokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ==================== Ledger Types ====================

// TxResponse describes the block an operation committed.
type TxResponse struct {
	Height int64              `json:"height"`
	Time   time.Time          `json:"time"`
	Events []eventsink.Record `json:"events"`
}

// CreateJobResponse is returned by job creation.
type CreateJobResponse struct {
	TxResponse
	JobID uint64 `json:"job_id"`
}

// ==================== Registry Types ====================

// RegisterNodeRequest registers the caller as a node.
type RegisterNodeRequest struct {
	DeviceType   string                         `json:"device_type" binding:"required"`
	Capabilities registrytypes.Capabilities     `json:"capabilities"`
	Attestation  registrytypes.AttestationClaim `json:"attestation"`
}

// RegisterBatchRequest registers several nodes at once.
type RegisterBatchRequest struct {
	Entries []registrytypes.Registration `json:"entries" binding:"required,min=1"`
}

// RenewAttestationRequest replaces the caller's attestation.
type RenewAttestationRequest struct {
	Attestation registrytypes.AttestationClaim `json:"attestation"`
}

// PowerSavingRequest toggles power saving.
type PowerSavingRequest struct {
	Enabled bool `json:"enabled"`
}

// SlashRequest slashes a node.
type SlashRequest struct {
	Reason string `json:"reason" binding:"required"`
}

// ReputationRequest reports a task outcome.
type ReputationRequest struct {
	Success bool `json:"success"`
}

// ==================== Scheduler Types ====================

// CompleteJobRequest reports a result.
type CompleteJobRequest struct {
	ResultHash []byte `json:"result_hash" binding:"required"`
	ResultRef  string `json:"result_ref"`
}

// CancelJobRequest cancels a job.
type CancelJobRequest struct {
	Reason string `json:"reason"`
}

// AuditRequest toggles duplicate execution.
type AuditRequest struct {
	Enabled bool `json:"enabled"`
}

// QuoteResponse is the current price of a job.
type QuoteResponse struct {
	JobID uint64   `json:"job_id"`
	Price math.Int `json:"price"`
}

// JobListResponse lists jobs.
type JobListResponse struct {
	Jobs  []schedulertypes.Job `json:"jobs"`
	Total int                  `json:"total"`
}

// ==================== Signals Types ====================

// NodeScoreRequest sets a node score.
type NodeScoreRequest struct {
	Score uint32 `json:"score"`
}

// FulfillPredictionRequest answers a prediction request.
type FulfillPredictionRequest struct {
	EstimateSeconds uint64 `json:"estimate_seconds" binding:"required"`
}

// ForecastResponse is the stored forecast for a job type.
type ForecastResponse struct {
	JobType    string `json:"job_type"`
	Demand     uint32 `json:"demand"`
	Urgency    uint32 `json:"urgency"`
	Confidence uint32 `json:"confidence"`
}

// ==================== Admin Types ====================

// CircuitRequest pauses or resumes a module.
type CircuitRequest struct {
	Module string `json:"module" binding:"required"`
	Reason string `json:"reason" binding:"required"`
}

// RoleRequest grants or revokes a role.
type RoleRequest struct {
	Role    string `json:"role" binding:"required"`
	Address string `json:"address" binding:"required"`
}

// SubmitCertificateRequest carries an oracle-signed certificate claim.
type SubmitCertificateRequest struct {
	Claim     signalstypes.CertificateClaim `json:"claim"`
	Signature []byte                        `json:"signature" binding:"required"`
}
