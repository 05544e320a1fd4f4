package types

import (
	"bytes"
	"fmt"
	"time"

	"cosmossdk.io/math"
)

// JobStatus is the lifecycle state of a job:
//
//	Created -> Assigned -> (InProgress) -> Completed -> (Disputed)
//	Created | Assigned -> Cancelled
type JobStatus uint8

const (
	JobStatusCreated JobStatus = iota
	JobStatusAssigned
	JobStatusInProgress
	JobStatusCompleted
	JobStatusDisputed
	JobStatusCancelled
)

var jobStatusNames = map[JobStatus]string{
	JobStatusCreated:    "created",
	JobStatusAssigned:   "assigned",
	JobStatusInProgress: "in_progress",
	JobStatusCompleted:  "completed",
	JobStatusDisputed:   "disputed",
	JobStatusCancelled:  "cancelled",
}

func (s JobStatus) String() string {
	if name, ok := jobStatusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("unknown(%d)", uint8(s))
}

// MarshalText implements encoding.TextMarshaler.
func (s JobStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *JobStatus) UnmarshalText(text []byte) error {
	for status, name := range jobStatusNames {
		if name == string(text) {
			*s = status
			return nil
		}
	}
	return fmt.Errorf("unknown job status %q", text)
}

// Running reports whether a node currently owes the primary result.
func (s JobStatus) Running() bool {
	return s == JobStatusAssigned || s == JobStatusInProgress
}

// Priority orders the pending queue and scales the quoted price.
type Priority uint8

const (
	PriorityLow Priority = iota
	PriorityNormal
	PriorityHigh
	PriorityCritical
)

var priorityNames = map[Priority]string{
	PriorityLow:      "low",
	PriorityNormal:   "normal",
	PriorityHigh:     "high",
	PriorityCritical: "critical",
}

func (p Priority) String() string {
	if name, ok := priorityNames[p]; ok {
		return name
	}
	return fmt.Sprintf("unknown(%d)", uint8(p))
}

// Valid reports whether p is a known priority.
func (p Priority) Valid() bool {
	_, ok := priorityNames[p]
	return ok
}

// MarshalText implements encoding.TextMarshaler.
func (p Priority) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Priority) UnmarshalText(text []byte) error {
	for prio, name := range priorityNames {
		if name == string(text) {
			*p = prio
			return nil
		}
	}
	return fmt.Errorf("unknown priority %q", text)
}

// PriorityMultiplier is the percentage applied to the urgency factor of a quote.
func (p Priority) PriorityMultiplier() uint64 {
	switch p {
	case PriorityHigh:
		return 125
	case PriorityCritical:
		return 150
	default:
		return 100
	}
}

// Job types accepted by the scheduler.
const (
	JobTypeInference  = "inference"
	JobTypeTraining   = "training"
	JobTypeRendering  = "rendering"
	JobTypeBatch      = "batch"
	JobTypeAnalytics  = "analytics"
	JobTypeSimulation = "simulation"
)

// JobTypes lists every accepted job type.
var JobTypes = []string{
	JobTypeInference,
	JobTypeTraining,
	JobTypeRendering,
	JobTypeBatch,
	JobTypeAnalytics,
	JobTypeSimulation,
}

// ValidJobType reports whether jobType is accepted.
func ValidJobType(jobType string) bool {
	for _, t := range JobTypes {
		if t == jobType {
			return true
		}
	}
	return false
}

// PaymentRail selects who holds a job's payment until settlement.
type PaymentRail string

const (
	// RailDirect locks the payment in the scheduler module account.
	RailDirect PaymentRail = "direct"
	// RailEscrow delegates custody to the escrow custodian.
	RailEscrow PaymentRail = "escrow"
)

// Valid reports whether r is a known rail.
func (r PaymentRail) Valid() bool {
	return r == RailDirect || r == RailEscrow
}

// Resources are a job's hardware requirements.
type Resources struct {
	MinCpuCores              uint32 `json:"min_cpu_cores"`
	MinRamGb                 uint32 `json:"min_ram_gb"`
	RequireGpu               bool   `json:"require_gpu"`
	EstimatedDurationSeconds uint64 `json:"estimated_duration_seconds"`
}

// JobSpec is what a client submits.
type JobSpec struct {
	JobType     string      `json:"job_type"`
	Priority    Priority    `json:"priority"`
	Resources   Resources   `json:"resources"`
	Payment     math.Int    `json:"payment"`
	Rail        PaymentRail `json:"rail"`
	Deadline    time.Time   `json:"deadline"`
	ContentRef  string      `json:"content_ref"`
	PreferGreen bool        `json:"prefer_green"`
}

// ValidateBasic performs the stateless checks on a spec.
func (s JobSpec) ValidateBasic(params Params) error {
	if !ValidJobType(s.JobType) {
		return ErrInvalidJobType.Wrapf("%q", s.JobType)
	}
	if !s.Priority.Valid() {
		return ErrInvalidPriority.Wrapf("%d", s.Priority)
	}
	if !s.Rail.Valid() {
		return ErrInvalidRail.Wrapf("%q", s.Rail)
	}
	if s.Payment.IsNil() || s.Payment.LT(params.MinPayment) {
		return ErrInvalidPayment.Wrapf("payment must be at least %s", params.MinPayment)
	}
	if s.ContentRef == "" {
		return ErrInvalidContentRef.Wrap("content reference is required")
	}
	if uint32(len(s.ContentRef)) > params.MaxContentRefLength {
		return ErrInvalidContentRef.Wrapf("content reference exceeds %d bytes", params.MaxContentRefLength)
	}
	if s.Resources.EstimatedDurationSeconds == 0 {
		return ErrInvalidDuration.Wrap("estimated duration must be positive")
	}
	return nil
}

// Audit is the duplicate-execution sub-record of a job.
type Audit struct {
	Node        string    `json:"node"`
	ResultHash  []byte    `json:"result_hash,omitempty"`
	ResultRef   string    `json:"result_ref,omitempty"`
	Submitted   bool      `json:"submitted"`
	SubmittedAt time.Time `json:"submitted_at,omitempty"`
	Compared    bool      `json:"compared"`
	Matched     bool      `json:"matched"`
}

// Job is the stored record of a submitted job. Jobs are never deleted.
type Job struct {
	ID              uint64      `json:"id"`
	Client          string      `json:"client"`
	JobType         string      `json:"job_type"`
	Priority        Priority    `json:"priority"`
	Resources       Resources   `json:"resources"`
	Payment         math.Int    `json:"payment"`
	Rail            PaymentRail `json:"rail"`
	CreatedAt       time.Time   `json:"created_at"`
	Deadline        time.Time   `json:"deadline"`
	ContentRef      string      `json:"content_ref"`
	Status          JobStatus   `json:"status"`
	PreferGreen     bool        `json:"prefer_green"`
	AuditEnabled    bool        `json:"audit_enabled"`
	AssignedNode    string      `json:"assigned_node,omitempty"`
	AssignedAt      time.Time   `json:"assigned_at,omitempty"`
	PrimaryReserved bool        `json:"primary_reserved"`
	QuotedPrice     math.Int    `json:"quoted_price"`
	ResultHash      []byte      `json:"result_hash,omitempty"`
	ResultRef       string      `json:"result_ref,omitempty"`
	CompletedAt     time.Time   `json:"completed_at,omitempty"`
	Audit           *Audit      `json:"audit,omitempty"`
	Settled         bool        `json:"settled"`
	SettledAt       time.Time   `json:"settled_at,omitempty"`
	CancelledAt     time.Time   `json:"cancelled_at,omitempty"`
	CancelReason    string      `json:"cancel_reason,omitempty"`
}

// HasResult reports whether the primary node submitted its result.
func (j Job) HasResult() bool {
	return len(j.ResultHash) > 0
}

// AuditPending reports whether an auditor still owes a result.
func (j Job) AuditPending() bool {
	return j.Audit != nil && !j.Audit.Submitted
}

// AuditMatch compares primary and audit results once both are in.
func (j Job) AuditMatch() (matched, comparable bool) {
	if j.Audit == nil || !j.Audit.Submitted || !j.HasResult() {
		return false, false
	}
	return bytes.Equal(j.ResultHash, j.Audit.ResultHash), true
}

// ValidateResult checks a submitted result hash and reference.
func ValidateResult(hash []byte, ref string, params Params) error {
	if len(hash) == 0 || len(hash) > 64 {
		return ErrInvalidResult.Wrap("result hash must be 1-64 bytes")
	}
	if isZero(hash) {
		return ErrInvalidResult.Wrap("result hash must be non-zero")
	}
	if ref == "" {
		return ErrInvalidResult.Wrap("result reference is required")
	}
	if uint32(len(ref)) > params.MaxContentRefLength {
		return ErrInvalidResult.Wrapf("result reference exceeds %d bytes", params.MaxContentRefLength)
	}
	return nil
}

func isZero(bz []byte) bool {
	for _, b := range bz {
		if b != 0 {
			return false
		}
	}
	return true
}
