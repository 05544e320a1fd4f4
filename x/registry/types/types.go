package types

import (
	"fmt"
	"time"

	"cosmossdk.io/math"
)

// DeviceClass groups device types that share configuration rules.
type DeviceClass string

const (
	DeviceClassMobile DeviceClass = "mobile"
	DeviceClassEdge   DeviceClass = "edge"
	DeviceClassServer DeviceClass = "server"
)

// Valid reports whether c is a known class.
func (c DeviceClass) Valid() bool {
	switch c {
	case DeviceClassMobile, DeviceClassEdge, DeviceClassServer:
		return true
	}
	return false
}

// DeviceProfile is the catalog entry every node of a device type is checked against.
type DeviceProfile struct {
	DeviceType         string      `json:"device_type"`
	Class              DeviceClass `json:"class"`
	MinStake           math.Int    `json:"min_stake"`
	MinCpuCores        uint32      `json:"min_cpu_cores"`
	MinRamGb           uint32      `json:"min_ram_gb"`
	MinStorageGb       uint32      `json:"min_storage_gb"`
	MinBandwidthMbps   uint32      `json:"min_bandwidth_mbps"`
	MaxConcurrentTasks uint32      `json:"max_concurrent_tasks"`
	SupportsBatch      bool        `json:"supports_batch"`
	SupportsGpu        bool        `json:"supports_gpu"`
	LowLatency         bool        `json:"low_latency"`
	PowerEfficiency    uint32      `json:"power_efficiency"`
	Reliability        uint32      `json:"reliability"`
}

// Validate checks the profile is internally consistent.
func (p DeviceProfile) Validate() error {
	if p.DeviceType == "" || len(p.DeviceType) > 64 {
		return ErrInvalidDeviceProfile.Wrap("device type must be 1-64 characters")
	}
	if !p.Class.Valid() {
		return ErrInvalidDeviceProfile.Wrapf("unknown class %q", p.Class)
	}
	if p.MinStake.IsNil() || !p.MinStake.IsPositive() {
		return ErrInvalidDeviceProfile.Wrap("min stake must be positive")
	}
	if p.MaxConcurrentTasks == 0 {
		return ErrInvalidDeviceProfile.Wrap("max concurrent tasks must be positive")
	}
	if p.PowerEfficiency > 100 || p.Reliability > 100 {
		return ErrInvalidDeviceProfile.Wrap("efficiency and reliability scores are percentages")
	}
	return nil
}

// Capabilities is the hardware descriptor a node declares at registration.
// The cbor tags define the attested encoding.
type Capabilities struct {
	CpuCores      uint32 `json:"cpu_cores" cbor:"cpu_cores"`
	CpuFreqMhz    uint32 `json:"cpu_freq_mhz" cbor:"cpu_freq_mhz"`
	RamGb         uint32 `json:"ram_gb" cbor:"ram_gb"`
	StorageGb     uint32 `json:"storage_gb" cbor:"storage_gb"`
	HasGpu        bool   `json:"has_gpu" cbor:"has_gpu"`
	GpuMemGb      uint32 `json:"gpu_mem_gb" cbor:"gpu_mem_gb"`
	BandwidthMbps uint32 `json:"bandwidth_mbps" cbor:"bandwidth_mbps"`
	UptimePercent uint32 `json:"uptime_percent" cbor:"uptime_percent"`
	BatteryMah    uint32 `json:"battery_mah" cbor:"battery_mah"`
	Mobile        bool   `json:"mobile" cbor:"mobile"`
	OS            string `json:"os" cbor:"os"`
	Containers    bool   `json:"containers" cbor:"containers"`
}

// ComputePower is the node's contribution to the registry-wide compute total.
func (c Capabilities) ComputePower() uint64 {
	power := uint64(c.CpuCores)*10 + uint64(c.RamGb)*5 + uint64(c.BandwidthMbps)/100
	if c.HasGpu {
		power += uint64(c.GpuMemGb) * 20
	}
	return power
}

// AttestationClaim is what a registrant submits: the attested payload hash and
// the attestor's signature over (identity, capabilities, hash).
type AttestationClaim struct {
	Hash      []byte `json:"hash"`
	Signature []byte `json:"signature"`
}

// Attestation is the stored record of an accepted claim.
type Attestation struct {
	Hash      []byte    `json:"hash"`
	Attestor  string    `json:"attestor"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
	Verified  bool      `json:"verified"`
}

// Node is a registered worker.
type Node struct {
	Address        string       `json:"address"`
	DeviceType     string       `json:"device_type"`
	Capabilities   Capabilities `json:"capabilities"`
	Stake          math.Int     `json:"stake"`
	RegisteredAt   time.Time    `json:"registered_at"`
	LastActiveAt   time.Time    `json:"last_active_at"`
	Reputation     uint32       `json:"reputation"`
	ActiveTasks    uint32       `json:"active_tasks"`
	Green          bool         `json:"green"`
	PowerSaving    bool         `json:"power_saving"`
	Attestation    Attestation  `json:"attestation"`
	Slashed        bool         `json:"slashed"`
	TasksCompleted uint64       `json:"tasks_completed"`
	TasksDisputed  uint64       `json:"tasks_disputed"`
}

// AttestationValid reports whether the attestation is verified and unexpired at now.
func (n Node) AttestationValid(now time.Time) bool {
	return n.Attestation.Verified && now.Before(n.Attestation.ExpiresAt)
}

// Aggregates are the registry-wide totals.
type Aggregates struct {
	TotalNodes        uint64   `json:"total_nodes"`
	TotalStaked       math.Int `json:"total_staked"`
	TotalComputePower uint64   `json:"total_compute_power"`
	TotalSlashed      math.Int `json:"total_slashed"`
}

// NewAggregates returns zeroed aggregates.
func NewAggregates() Aggregates {
	return Aggregates{TotalStaked: math.ZeroInt(), TotalSlashed: math.ZeroInt()}
}

// DeviceTypeCount pairs a device type with its registered node count.
type DeviceTypeCount struct {
	DeviceType string `json:"device_type"`
	Count      uint64 `json:"count"`
}

// SlashRecord documents one slash.
type SlashRecord struct {
	ID        uint64    `json:"id"`
	Node      string    `json:"node"`
	Actor     string    `json:"actor"`
	Amount    math.Int  `json:"amount"`
	Reason    string    `json:"reason"`
	Permanent bool      `json:"permanent"`
	SlashedAt time.Time `json:"slashed_at"`
}

// BatchAlert records an oversized registration batch.
type BatchAlert struct {
	ID       uint64    `json:"id"`
	Operator string    `json:"operator"`
	Size     uint32    `json:"size"`
	RaisedAt time.Time `json:"raised_at"`
}

// Registration is one entry of a registration request.
type Registration struct {
	Address      string           `json:"address"`
	DeviceType   string           `json:"device_type"`
	Capabilities Capabilities     `json:"capabilities"`
	Attestation  AttestationClaim `json:"attestation"`
}

func (n Node) String() string {
	return fmt.Sprintf("Node{%s type=%s stake=%s rep=%d tasks=%d}", n.Address, n.DeviceType, n.Stake, n.Reputation, n.ActiveTasks)
}
