package types

import (
	"encoding/json"
	"testing"
	"time"

	"cosmossdk.io/math"
	"github.com/stretchr/testify/require"
)

func validSpec() JobSpec {
	return JobSpec{
		JobType:  JobTypeInference,
		Priority: PriorityNormal,
		Resources: Resources{
			MinCpuCores:              2,
			MinRamGb:                 4,
			EstimatedDurationSeconds: 600,
		},
		Payment:    math.NewInt(5000),
		Rail:       RailDirect,
		Deadline:   time.Unix(1_700_003_600, 0).UTC(),
		ContentRef: "ipfs://bafy-input",
	}
}

func TestJobSpecValidateBasic(t *testing.T) {
	params := DefaultParams()

	cases := []struct {
		name   string
		mutate func(*JobSpec)
		err    error
	}{
		{"valid", func(*JobSpec) {}, nil},
		{"unknown type", func(s *JobSpec) { s.JobType = "mining" }, ErrInvalidJobType},
		{"bad priority", func(s *JobSpec) { s.Priority = 9 }, ErrInvalidPriority},
		{"bad rail", func(s *JobSpec) { s.Rail = "cheque" }, ErrInvalidRail},
		{"nil payment", func(s *JobSpec) { s.Payment = math.Int{} }, ErrInvalidPayment},
		{"below minimum", func(s *JobSpec) { s.Payment = math.NewInt(999) }, ErrInvalidPayment},
		{"no content", func(s *JobSpec) { s.ContentRef = "" }, ErrInvalidContentRef},
		{"zero duration", func(s *JobSpec) { s.Resources.EstimatedDurationSeconds = 0 }, ErrInvalidDuration},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			spec := validSpec()
			tc.mutate(&spec)
			err := spec.ValidateBasic(params)
			if tc.err == nil {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, tc.err)
		})
	}
}

func TestValidateResult(t *testing.T) {
	params := DefaultParams()
	require.NoError(t, ValidateResult([]byte{0x01}, "ipfs://out", params))
	require.ErrorIs(t, ValidateResult(nil, "ipfs://out", params), ErrInvalidResult)
	require.ErrorIs(t, ValidateResult(make([]byte, 32), "ipfs://out", params), ErrInvalidResult)
	require.ErrorIs(t, ValidateResult([]byte{0x01}, "", params), ErrInvalidResult)
}

func TestAuditMatch(t *testing.T) {
	job := Job{ResultHash: []byte{0xaa}}
	_, ok := job.AuditMatch()
	require.False(t, ok)

	job.Audit = &Audit{Node: "n", Submitted: true, ResultHash: []byte{0xaa}}
	matched, ok := job.AuditMatch()
	require.True(t, ok)
	require.True(t, matched)

	job.Audit.ResultHash = []byte{0xbb}
	matched, ok = job.AuditMatch()
	require.True(t, ok)
	require.False(t, matched)
}

func TestStatusTextEncoding(t *testing.T) {
	bz, err := json.Marshal(struct {
		S JobStatus `json:"s"`
		P Priority  `json:"p"`
	}{JobStatusDisputed, PriorityCritical})
	require.NoError(t, err)
	require.JSONEq(t, `{"s":"disputed","p":"critical"}`, string(bz))

	var out struct {
		S JobStatus `json:"s"`
		P Priority  `json:"p"`
	}
	require.NoError(t, json.Unmarshal(bz, &out))
	require.Equal(t, JobStatusDisputed, out.S)
	require.Equal(t, PriorityCritical, out.P)
}

func TestGenesisValidate(t *testing.T) {
	gs := DefaultGenesis()
	require.NoError(t, gs.Validate())

	job := Job{ID: 1, Client: "c", Payment: math.NewInt(10), Status: JobStatusCreated}
	gs.Jobs = []Job{job}
	require.ErrorIs(t, gs.Validate(), ErrInvalidGenesis)

	gs.NextJobID = 2
	require.NoError(t, gs.Validate())

	gs.Jobs[0].Settled = true
	require.ErrorIs(t, gs.Validate(), ErrInvalidGenesis)
}
