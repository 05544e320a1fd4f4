package app

import (
	"context"
	"errors"

	sdk "github.com/cosmos/cosmos-sdk/types"

	registrykeeper "github.com/greenmesh/greenmesh/x/registry/keeper"
	registrytypes "github.com/greenmesh/greenmesh/x/registry/types"
	schedulerkeeper "github.com/greenmesh/greenmesh/x/scheduler/keeper"
	schedulertypes "github.com/greenmesh/greenmesh/x/scheduler/types"
)

// Circuit breaker coordination event types
const (
	EventTypeCircuitBreakerPropagated = "circuit_breaker_propagated"
	AttributeKeySourceModule          = "source_module"
	AttributeKeyTargetModule          = "target_module"
	AttributeKeyPropagationReason     = "propagation_reason"
)

// CircuitBreakerStatus is the pause state of every pausable module.
type CircuitBreakerStatus struct {
	RegistryPaused  bool   `json:"registry_paused"`
	RegistryReason  string `json:"registry_reason,omitempty"`
	SchedulerPaused bool   `json:"scheduler_paused"`
	SchedulerReason string `json:"scheduler_reason,omitempty"`
	// AnyOpen is true if any module is paused
	AnyOpen bool `json:"any_open"`
}

// CircuitBreakerCoordinator pauses and resumes modules together. The
// scheduler depends on the registry for matching and capacity, so pausing
// the registry also pauses the scheduler.
type CircuitBreakerCoordinator struct {
	registryKeeper  *registrykeeper.Keeper
	schedulerKeeper *schedulerkeeper.Keeper
}

// NewCircuitBreakerCoordinator creates a new circuit breaker coordinator.
func NewCircuitBreakerCoordinator(registryKeeper *registrykeeper.Keeper, schedulerKeeper *schedulerkeeper.Keeper) *CircuitBreakerCoordinator {
	return &CircuitBreakerCoordinator{
		registryKeeper:  registryKeeper,
		schedulerKeeper: schedulerKeeper,
	}
}

// CircuitBreakers returns the coordinator over the app keepers.
func (app *App) CircuitBreakers() *CircuitBreakerCoordinator {
	return NewCircuitBreakerCoordinator(app.Registry, app.Scheduler)
}

// GetGlobalStatus returns the unified pause status across all modules.
func (c *CircuitBreakerCoordinator) GetGlobalStatus(ctx context.Context) CircuitBreakerStatus {
	status := CircuitBreakerStatus{}
	if c.registryKeeper != nil {
		status.RegistryPaused = c.registryKeeper.IsPaused(ctx)
		status.RegistryReason = c.registryKeeper.PauseReason(ctx)
	}
	if c.schedulerKeeper != nil {
		status.SchedulerPaused = c.schedulerKeeper.IsPaused(ctx)
		status.SchedulerReason = c.schedulerKeeper.PauseReason(ctx)
	}
	status.AnyOpen = status.RegistryPaused || status.SchedulerPaused
	return status
}

// Pause pauses module and every module that depends on it. Dependents that
// are already paused keep their own reason.
func (c *CircuitBreakerCoordinator) Pause(ctx context.Context, actor sdk.AccAddress, module, reason string) error {
	switch module {
	case registrytypes.ModuleName:
		if err := c.registryKeeper.Pause(ctx, actor, reason); err != nil {
			return err
		}
		if c.schedulerKeeper.IsPaused(ctx) {
			return nil
		}
		if err := c.schedulerKeeper.Pause(ctx, actor, reason); err != nil {
			return err
		}
		c.emitPropagationEvent(ctx, registrytypes.ModuleName, schedulertypes.ModuleName, reason)
		return nil
	case schedulertypes.ModuleName:
		return c.schedulerKeeper.Pause(ctx, actor, reason)
	default:
		return ErrInvalidRequest.Wrapf("module %q has no circuit breaker", module)
	}
}

// Resume resumes module. Resuming the registry also resumes a scheduler
// that was paused with it.
func (c *CircuitBreakerCoordinator) Resume(ctx context.Context, actor sdk.AccAddress, module, reason string) error {
	switch module {
	case registrytypes.ModuleName:
		propagated := c.schedulerKeeper.IsPaused(ctx) &&
			c.schedulerKeeper.PauseReason(ctx) == c.registryKeeper.PauseReason(ctx)
		if err := c.registryKeeper.Resume(ctx, actor, reason); err != nil {
			return err
		}
		if !propagated {
			return nil
		}
		if err := c.schedulerKeeper.Resume(ctx, actor, reason); err != nil {
			return err
		}
		c.emitPropagationEvent(ctx, registrytypes.ModuleName, schedulertypes.ModuleName, reason)
		return nil
	case schedulertypes.ModuleName:
		if c.registryKeeper.IsPaused(ctx) {
			return ErrInvalidRequest.Wrap("scheduler cannot resume while the registry is paused")
		}
		return c.schedulerKeeper.Resume(ctx, actor, reason)
	default:
		return ErrInvalidRequest.Wrapf("module %q has no circuit breaker", module)
	}
}

// CheckDependenciesForScheduler reports whether the scheduler's upstream
// modules are available.
func (c *CircuitBreakerCoordinator) CheckDependenciesForScheduler(ctx context.Context) error {
	if c.registryKeeper != nil && c.registryKeeper.IsPaused(ctx) {
		return errors.Join(registrytypes.ErrRegistryPaused, errors.New(c.registryKeeper.PauseReason(ctx)))
	}
	return nil
}

// emitPropagationEvent emits an event when a circuit breaker state is propagated.
func (c *CircuitBreakerCoordinator) emitPropagationEvent(ctx context.Context, source, target, reason string) {
	sdkCtx := sdk.UnwrapSDKContext(ctx)
	sdkCtx.EventManager().EmitEvent(
		sdk.NewEvent(
			EventTypeCircuitBreakerPropagated,
			sdk.NewAttribute(AttributeKeySourceModule, source),
			sdk.NewAttribute(AttributeKeyTargetModule, target),
			sdk.NewAttribute(AttributeKeyPropagationReason, reason),
		),
	)
}

// CircuitStatus returns the pause status as of the last commit.
func (app *App) CircuitStatus() CircuitBreakerStatus {
	var status CircuitBreakerStatus
	_ = app.Query(func(ctx sdk.Context) error {
		status = app.CircuitBreakers().GetGlobalStatus(ctx)
		return nil
	})
	return status
}
