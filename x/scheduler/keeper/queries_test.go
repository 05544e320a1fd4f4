package keeper_test

import (
	"testing"

	"cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/stretchr/testify/suite"

	keepertest "github.com/greenmesh/greenmesh/testutil/keeper"
	"github.com/greenmesh/greenmesh/x/scheduler/types"
	"github.com/greenmesh/greenmesh/x/shared/access"
	"github.com/greenmesh/greenmesh/x/shared/errkind"
)

type JobQuerySuite struct {
	suite.Suite
	f      *keepertest.Fixture
	client sdk.AccAddress
}

func (s *JobQuerySuite) SetupTest() {
	s.f = keepertest.NewFixture(s.T())
	s.client = keepertest.Addr("client")
	s.f.Fund(s.T(), s.client, math.NewInt(100_000))
}

func TestJobQuerySuite(t *testing.T) {
	suite.Run(t, new(JobQuerySuite))
}

func (s *JobQuerySuite) create(mutate func(*types.JobSpec)) uint64 {
	spec := s.f.JobSpec(1_000)
	if mutate != nil {
		mutate(&spec)
	}
	id, err := s.f.Scheduler.CreateJob(s.f.Ctx, s.client, spec)
	s.Require().NoError(err)
	return id
}

func ids(jobs []types.Job) []uint64 {
	out := make([]uint64, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, j.ID)
	}
	return out
}

func (s *JobQuerySuite) TestPendingJobsPriorityOrder() {
	low := s.create(func(spec *types.JobSpec) { spec.Priority = types.PriorityLow })
	normal := s.create(nil)
	critical := s.create(func(spec *types.JobSpec) { spec.Priority = types.PriorityCritical })
	high := s.create(func(spec *types.JobSpec) { spec.Priority = types.PriorityHigh })
	secondCritical := s.create(func(spec *types.JobSpec) { spec.Priority = types.PriorityCritical })

	pending, err := s.f.Scheduler.PendingJobs(s.f.Ctx)
	s.Require().NoError(err)
	s.Equal([]uint64{critical, secondCritical, high, normal, low}, ids(pending))
}

func (s *JobQuerySuite) TestGreenQueue() {
	s.create(nil)
	green := s.create(func(spec *types.JobSpec) { spec.PreferGreen = true })

	queue, err := s.f.Scheduler.GreenQueue(s.f.Ctx)
	s.Require().NoError(err)
	s.Equal([]uint64{green}, ids(queue))
}

func (s *JobQuerySuite) TestCancelledJobLeavesQueuesButStaysIndexed() {
	id := s.create(func(spec *types.JobSpec) {
		spec.PreferGreen = true
		spec.JobType = types.JobTypeRendering
	})
	s.Require().NoError(s.f.Scheduler.CancelJob(s.f.Ctx, s.client, id, "no longer needed"))

	pending, err := s.f.Scheduler.PendingJobs(s.f.Ctx)
	s.Require().NoError(err)
	s.Empty(pending)
	queue, err := s.f.Scheduler.GreenQueue(s.f.Ctx)
	s.Require().NoError(err)
	s.Empty(queue)

	byClient, err := s.f.Scheduler.JobsByClient(s.f.Ctx, s.client)
	s.Require().NoError(err)
	s.Equal([]uint64{id}, ids(byClient))
	byType, err := s.f.Scheduler.JobsByType(s.f.Ctx, types.JobTypeRendering)
	s.Require().NoError(err)
	s.Equal([]uint64{id}, ids(byType))
	s.Equal(types.JobStatusCancelled, byType[0].Status)
}

func (s *JobQuerySuite) TestJobsByClientIsolation() {
	other := keepertest.Addr("other-client")
	s.f.Fund(s.T(), other, math.NewInt(5_000))
	mine := s.create(nil)
	_, err := s.f.Scheduler.CreateJob(s.f.Ctx, other, s.f.JobSpec(1_000))
	s.Require().NoError(err)

	jobs, err := s.f.Scheduler.JobsByClient(s.f.Ctx, s.client)
	s.Require().NoError(err)
	s.Equal([]uint64{mine}, ids(jobs))
}

func (s *JobQuerySuite) TestErrorKinds() {
	_, err := s.f.Scheduler.GetJob(s.f.Ctx, 99)
	s.Equal(errkind.State, types.ErrorKind(err))

	_, err = s.f.Scheduler.CreateJob(s.f.Ctx, s.client, s.f.JobSpec(1))
	s.Equal(errkind.Validation, types.ErrorKind(err))

	id := s.create(nil)
	err = s.f.Scheduler.AssignJob(s.f.Ctx, s.client, id)
	s.ErrorIs(err, access.ErrUnauthorized)
	s.Equal(errkind.Authorization, types.ErrorKind(err))
}

func (s *JobQuerySuite) TestQueueDepthTracksPendingQueue() {
	s.Zero(s.f.Scheduler.QueueDepth(s.f.Ctx))
	first := s.create(nil)
	s.create(func(spec *types.JobSpec) { spec.PreferGreen = true })
	s.Equal(uint64(2), s.f.Scheduler.QueueDepth(s.f.Ctx))

	s.Require().NoError(s.f.Scheduler.CancelJob(s.f.Ctx, s.client, first, "no longer needed"))
	s.Equal(uint64(1), s.f.Scheduler.QueueDepth(s.f.Ctx))
}
