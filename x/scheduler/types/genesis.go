package types

// GenesisState is the scheduler module's genesis state.
type GenesisState struct {
	Params    Params `json:"params"`
	Jobs      []Job  `json:"jobs"`
	NextJobID uint64 `json:"next_job_id"`
	Paused    bool   `json:"paused"`
}

// DefaultGenesis returns the default genesis state
func DefaultGenesis() *GenesisState {
	return &GenesisState{
		Params:    DefaultParams(),
		NextJobID: 1,
	}
}

// Validate performs basic genesis state validation
func (gs GenesisState) Validate() error {
	if err := gs.Params.Validate(); err != nil {
		return err
	}
	if gs.NextJobID == 0 {
		return ErrInvalidGenesis.Wrap("next job id must be positive")
	}
	seen := make(map[uint64]struct{}, len(gs.Jobs))
	for _, job := range gs.Jobs {
		if job.ID == 0 || job.ID >= gs.NextJobID {
			return ErrInvalidGenesis.Wrapf("job id %d outside [1, %d)", job.ID, gs.NextJobID)
		}
		if _, dup := seen[job.ID]; dup {
			return ErrInvalidGenesis.Wrapf("duplicate job %d", job.ID)
		}
		seen[job.ID] = struct{}{}
		if job.Client == "" {
			return ErrInvalidGenesis.Wrapf("job %d has no client", job.ID)
		}
		if job.Payment.IsNil() || !job.Payment.IsPositive() {
			return ErrInvalidGenesis.Wrapf("job %d has no payment", job.ID)
		}
		if job.Settled && job.Status != JobStatusCompleted && job.Status != JobStatusDisputed {
			return ErrInvalidGenesis.Wrapf("job %d settled in status %s", job.ID, job.Status)
		}
		if job.Status != JobStatusCreated && job.Status != JobStatusCancelled && job.AssignedNode == "" {
			return ErrInvalidGenesis.Wrapf("job %d is %s without a node", job.ID, job.Status)
		}
	}
	return nil
}
