package types

import (
	"context"
	"time"

	"cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"

	registrytypes "github.com/greenmesh/greenmesh/x/registry/types"
)

// RegistryKeeper is the node registry as seen by the scheduler.
type RegistryKeeper interface {
	FindCandidates(ctx context.Context, minCpuCores, minRamGb uint32, requireGpu, preferGreen bool) ([]registrytypes.Node, error)
	GetNode(ctx context.Context, addr sdk.AccAddress) (registrytypes.Node, error)
	HasCapacity(ctx context.Context, addr sdk.AccAddress) bool
	TryReserveCapacity(ctx context.Context, actor, addr sdk.AccAddress) (bool, error)
	ReleaseCapacity(ctx context.Context, actor, addr sdk.AccAddress) error
	UpdateReputation(ctx context.Context, actor, addr sdk.AccAddress, success bool) error
}

// BankKeeper defines the expected bank keeper for the direct payment rail.
type BankKeeper interface {
	GetBalance(ctx context.Context, addr sdk.AccAddress, denom string) sdk.Coin
	SendCoinsFromAccountToModule(ctx context.Context, senderAddr sdk.AccAddress, recipientModule string, amt sdk.Coins) error
	SendCoinsFromModuleToAccount(ctx context.Context, senderModule string, recipientAddr sdk.AccAddress, amt sdk.Coins) error
}

// GreenSignals is the renewable-energy certification collaborator.
type GreenSignals interface {
	IsGreen(ctx context.Context, node sdk.AccAddress) bool
	RewardMultiplier(ctx context.Context, node sdk.AccAddress) uint32
}

// AISignals is the prediction collaborator.
type AISignals interface {
	NodeScore(ctx context.Context, node sdk.AccAddress) uint32
	DemandForecast(ctx context.Context, jobType string) (demand, urgency, confidence uint32)
	RequestPrediction(ctx context.Context, jobID uint64, jobType string, payment math.Int, deadline time.Time) error
}

// EscrowKeeper is the third-party escrow custodian.
type EscrowKeeper interface {
	CreateEscrow(ctx context.Context, operator sdk.AccAddress, jobID uint64, payer sdk.AccAddress, amount math.Int) error
	IsFunded(ctx context.Context, jobID uint64) bool
	Release(ctx context.Context, operator sdk.AccAddress, jobID uint64, payee sdk.AccAddress) error
	Refund(ctx context.Context, operator sdk.AccAddress, jobID uint64) error
}
