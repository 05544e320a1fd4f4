package types

// DefaultParams returns default registry parameters
func DefaultParams() Params {
	return Params{
		Denom:                      DefaultDenom,
		AttestationValiditySeconds: 30 * 24 * 3600,
		InactivityWindowSeconds:    7 * 24 * 3600,
		InitialReputation:          50,
		MinCandidateReputation:     30,
		ReputationStep:             5,
		SlashPercent:               10,
		SlashReputationPenalty:     20,
		MinServerUptimePercent:     95,
		RegistrationWindowSeconds:  24 * 3600,
		BaseRegistrationCap:        100,
		RegistrationTierSize:       1000,
		BatchAlertThreshold:        10,
	}
}

// Params are the governable registry settings.
type Params struct {
	Denom                      string `json:"denom"`
	AttestationValiditySeconds uint64 `json:"attestation_validity_seconds"`
	InactivityWindowSeconds    uint64 `json:"inactivity_window_seconds"`
	InitialReputation          uint32 `json:"initial_reputation"`
	MinCandidateReputation     uint32 `json:"min_candidate_reputation"`
	ReputationStep             uint32 `json:"reputation_step"`
	SlashPercent               uint32 `json:"slash_percent"`
	SlashReputationPenalty     uint32 `json:"slash_reputation_penalty"`
	MinServerUptimePercent     uint32 `json:"min_server_uptime_percent"`
	RegistrationWindowSeconds  uint64 `json:"registration_window_seconds"`
	BaseRegistrationCap        uint64 `json:"base_registration_cap"`
	RegistrationTierSize       uint64 `json:"registration_tier_size"`
	BatchAlertThreshold        uint32 `json:"batch_alert_threshold"`
}

// Validate performs basic validation of registry parameters
func (p Params) Validate() error {
	if p.Denom == "" {
		return ErrInvalidParams.Wrap("denom is required")
	}
	if p.AttestationValiditySeconds == 0 {
		return ErrInvalidParams.Wrap("attestation validity must be positive")
	}
	if p.InactivityWindowSeconds == 0 {
		return ErrInvalidParams.Wrap("inactivity window must be positive")
	}
	if p.InitialReputation > 100 || p.MinCandidateReputation > 100 {
		return ErrInvalidParams.Wrap("reputation values are bounded by 100")
	}
	if p.ReputationStep == 0 || p.ReputationStep > 100 {
		return ErrInvalidParams.Wrap("reputation step must be in 1..100")
	}
	if p.SlashPercent == 0 || p.SlashPercent > 100 {
		return ErrInvalidParams.Wrap("slash percent must be in 1..100")
	}
	if p.SlashReputationPenalty > 100 {
		return ErrInvalidParams.Wrap("slash reputation penalty is bounded by 100")
	}
	if p.MinServerUptimePercent > 100 {
		return ErrInvalidParams.Wrap("server uptime floor is a percentage")
	}
	if p.RegistrationWindowSeconds == 0 || p.BaseRegistrationCap == 0 || p.RegistrationTierSize == 0 {
		return ErrInvalidParams.Wrap("registration window, cap and tier size must be positive")
	}
	return nil
}
