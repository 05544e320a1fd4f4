package app

import (
	"context"

	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/greenmesh/greenmesh/pkg/dispatcher"
	"github.com/greenmesh/greenmesh/x/scheduler/types"
)

// DispatchEngine drives the scheduler on behalf of an operator holding the
// scheduler role.
type DispatchEngine struct {
	app      *App
	operator sdk.AccAddress
}

var _ dispatcher.Engine = DispatchEngine{}

// NewDispatchEngine returns an engine acting as operator.
func NewDispatchEngine(app *App, operator sdk.AccAddress) DispatchEngine {
	return DispatchEngine{app: app, operator: operator}
}

func (e DispatchEngine) PendingJobs(_ context.Context) ([]types.Job, error) {
	var jobs []types.Job
	err := e.app.Query(func(ctx sdk.Context) error {
		var err error
		jobs, err = e.app.Scheduler.PendingJobs(ctx)
		return err
	})
	return jobs, err
}

func (e DispatchEngine) IsFunded(_ context.Context, jobID uint64) (bool, error) {
	var funded bool
	err := e.app.Query(func(ctx sdk.Context) error {
		funded = e.app.Escrow.IsFunded(ctx, jobID)
		return nil
	})
	return funded, err
}

func (e DispatchEngine) SetJobAudit(_ context.Context, jobID uint64, enabled bool) error {
	_, err := e.app.Execute("set_job_audit", func(ctx sdk.Context) error {
		return e.app.Scheduler.SetJobAudit(ctx, e.operator, jobID, enabled)
	})
	return err
}

func (e DispatchEngine) AssignJob(_ context.Context, jobID uint64) error {
	_, err := e.app.Execute("assign_job", func(ctx sdk.Context) error {
		return e.app.Scheduler.AssignJob(ctx, e.operator, jobID)
	})
	return err
}
