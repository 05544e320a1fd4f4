package keeper

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cosmossdk.io/math"
	storetypes "cosmossdk.io/store/types"
	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/greenmesh/greenmesh/x/shared/access"
	"github.com/greenmesh/greenmesh/x/signals/types"
)

// SetNodeScore records the AI service's rating of node.
func (k Keeper) SetNodeScore(ctx context.Context, actor, node sdk.AccAddress, score uint32) error {
	if err := k.policy.Require(ctx, actor, access.RoleOracle); err != nil {
		return err
	}
	if score > 100 {
		return types.ErrInvalidScore.Wrapf("%d > 100", score)
	}
	sdkCtx := sdk.UnwrapSDKContext(ctx)
	if err := k.set(ctx, nodeScoreKey(node), types.NodeScore{Node: node.String(), Score: score, UpdatedAt: sdkCtx.BlockTime()}); err != nil {
		return err
	}
	sdkCtx.EventManager().EmitEvent(
		sdk.NewEvent(
			types.EventTypeNodeScoreSet,
			sdk.NewAttribute(types.AttributeKeyNode, node.String()),
			sdk.NewAttribute(types.AttributeKeyScore, fmt.Sprintf("%d", score)),
		),
	)
	return nil
}

// NodeScore returns node's AI score, or the default when none was published.
func (k Keeper) NodeScore(ctx context.Context, node sdk.AccAddress) uint32 {
	var s types.NodeScore
	if !k.get(ctx, nodeScoreKey(node), &s) {
		return k.GetParams(ctx).DefaultNodeScore
	}
	return s.Score
}

// SetDemandForecast records the AI service's forecast for a job type.
func (k Keeper) SetDemandForecast(ctx context.Context, actor sdk.AccAddress, forecast types.DemandForecast) error {
	if err := k.policy.Require(ctx, actor, access.RoleOracle); err != nil {
		return err
	}
	if err := forecast.Validate(); err != nil {
		return err
	}
	sdkCtx := sdk.UnwrapSDKContext(ctx)
	forecast.UpdatedAt = sdkCtx.BlockTime()
	if err := k.set(ctx, forecastKey(forecast.JobType), forecast); err != nil {
		return err
	}
	sdkCtx.EventManager().EmitEvent(
		sdk.NewEvent(
			types.EventTypeForecastSet,
			sdk.NewAttribute(types.AttributeKeyJobType, forecast.JobType),
			sdk.NewAttribute(types.AttributeKeyDemand, fmt.Sprintf("%d", forecast.Demand)),
			sdk.NewAttribute(types.AttributeKeyUrgency, fmt.Sprintf("%d", forecast.Urgency)),
			sdk.NewAttribute(types.AttributeKeyConfidence, fmt.Sprintf("%d", forecast.Confidence)),
		),
	)
	return nil
}

// DemandForecast returns (demand, urgency, confidence) for jobType; all zero
// when no forecast exists.
func (k Keeper) DemandForecast(ctx context.Context, jobType string) (demand, urgency, confidence uint32) {
	var f types.DemandForecast
	if !k.get(ctx, forecastKey(jobType), &f) {
		return 0, 0, 0
	}
	return f.Demand, f.Urgency, f.Confidence
}

// RequestPrediction queues a prediction request for a new job. It fails once
// MaxPendingPredictions requests are outstanding.
func (k Keeper) RequestPrediction(ctx context.Context, jobID uint64, jobType string, payment math.Int, deadline time.Time) error {
	if jobType == "" || payment.IsNil() || payment.IsNegative() {
		return types.ErrInvalidPrediction.Wrap("job type and non-negative payment required")
	}
	store := k.getStore(ctx)
	pending := sdk.BigEndianToUint64(store.Get(PendingPredictionKey))
	if pending >= k.GetParams(ctx).MaxPendingPredictions {
		return types.ErrPredictionQueueFull.Wrapf("%d pending", pending)
	}

	id := sdk.BigEndianToUint64(store.Get(NextPredictionIDKey)) + 1
	store.Set(NextPredictionIDKey, sdk.Uint64ToBigEndian(id))
	store.Set(PendingPredictionKey, sdk.Uint64ToBigEndian(pending+1))

	sdkCtx := sdk.UnwrapSDKContext(ctx)
	req := types.PredictionRequest{
		ID:          id,
		JobID:       jobID,
		JobType:     jobType,
		Payment:     payment,
		Deadline:    deadline,
		RequestedAt: sdkCtx.BlockTime(),
	}
	if err := k.set(ctx, predictionKey(id), req); err != nil {
		return err
	}
	sdkCtx.EventManager().EmitEvent(
		sdk.NewEvent(
			types.EventTypePredictionQueued,
			sdk.NewAttribute(types.AttributeKeyRequestID, fmt.Sprintf("%d", id)),
			sdk.NewAttribute(types.AttributeKeyJobID, fmt.Sprintf("%d", jobID)),
			sdk.NewAttribute(types.AttributeKeyJobType, jobType),
		),
	)
	return nil
}

// FulfillPrediction records the AI service's answer to a request.
func (k Keeper) FulfillPrediction(ctx context.Context, actor sdk.AccAddress, id, estimateSeconds uint64) error {
	if err := k.policy.Require(ctx, actor, access.RoleOracle); err != nil {
		return err
	}
	var req types.PredictionRequest
	if !k.get(ctx, predictionKey(id), &req) {
		return types.ErrPredictionNotFound.Wrapf("request %d", id)
	}
	if req.Fulfilled {
		return nil
	}
	req.Fulfilled = true
	req.EstimateSeconds = estimateSeconds
	if err := k.set(ctx, predictionKey(id), req); err != nil {
		return err
	}

	store := k.getStore(ctx)
	if pending := sdk.BigEndianToUint64(store.Get(PendingPredictionKey)); pending > 0 {
		store.Set(PendingPredictionKey, sdk.Uint64ToBigEndian(pending-1))
	}

	sdk.UnwrapSDKContext(ctx).EventManager().EmitEvent(
		sdk.NewEvent(
			types.EventTypePredictionFulfiled,
			sdk.NewAttribute(types.AttributeKeyRequestID, fmt.Sprintf("%d", id)),
			sdk.NewAttribute(types.AttributeKeyEstimate, fmt.Sprintf("%d", estimateSeconds)),
		),
	)
	return nil
}

// PendingPredictions returns unfulfilled requests in id order.
func (k Keeper) PendingPredictions(ctx context.Context) ([]types.PredictionRequest, error) {
	iter := storetypes.KVStorePrefixIterator(k.getStore(ctx), PredictionPrefix)
	defer iter.Close()

	var out []types.PredictionRequest
	for ; iter.Valid(); iter.Next() {
		var req types.PredictionRequest
		if err := json.Unmarshal(iter.Value(), &req); err != nil {
			return nil, fmt.Errorf("unmarshal prediction: %w", err)
		}
		if !req.Fulfilled {
			out = append(out, req)
		}
	}
	return out, nil
}
