package types

// Params are the governable signals settings.
type Params struct {
	DefaultNodeScore           uint32 `json:"default_node_score"`
	MaxPendingPredictions      uint64 `json:"max_pending_predictions"`
	MaxCertificateValiditySecs uint64 `json:"max_certificate_validity_secs"`
}

// DefaultParams returns default signals parameters
func DefaultParams() Params {
	return Params{
		DefaultNodeScore:           50,
		MaxPendingPredictions:      1000,
		MaxCertificateValiditySecs: 365 * 24 * 3600,
	}
}

// Validate performs basic validation of signals parameters
func (p Params) Validate() error {
	if p.DefaultNodeScore > 100 {
		return ErrInvalidParams.Wrap("default node score is bounded by 100")
	}
	if p.MaxCertificateValiditySecs == 0 {
		return ErrInvalidParams.Wrap("certificate validity must be positive")
	}
	return nil
}
