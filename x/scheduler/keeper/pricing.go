package keeper

import (
	"context"

	"cosmossdk.io/math"

	"github.com/greenmesh/greenmesh/x/scheduler/types"
)

// ComputePrice quotes a job from its base payment and the demand forecast:
//
//	price      = base * demandMul * urgencyMul * greenBonus / 10000
//	demandMul  = (100 + demand*50/100) * confAdj / 100
//	confAdj    = 100 below 50% confidence, else 100 + (confidence-50)/10
//	urgencyMul = prioMul * (100 + urgency*25/100) / 100
//	greenBonus = 110 when the job prefers green, else 100
//
// Each factor is a percentage, so neutral inputs quote 100x base. Every step
// truncates the way the formula reads.
func ComputePrice(base math.Int, demand, urgency, confidence uint32, priority types.Priority, preferGreen bool) math.Int {
	confAdj := uint64(100)
	if confidence >= 50 {
		confAdj = 100 + (uint64(confidence)-50)/10
	}
	demandMul := (100 + uint64(demand)*50/100) * confAdj / 100
	urgencyMul := priority.PriorityMultiplier() * (100 + uint64(urgency)*25/100) / 100
	greenBonus := uint64(100)
	if preferGreen {
		greenBonus = 110
	}

	return base.
		Mul(math.NewIntFromUint64(demandMul)).
		Mul(math.NewIntFromUint64(urgencyMul)).
		Mul(math.NewIntFromUint64(greenBonus)).
		QuoRaw(10000)
}

// QuotePrice prices an existing job against the current forecast for its type.
func (k Keeper) QuotePrice(ctx context.Context, id uint64) (math.Int, error) {
	job, err := k.GetJob(ctx, id)
	if err != nil {
		return math.Int{}, err
	}
	return k.quote(ctx, job), nil
}

func (k Keeper) quote(ctx context.Context, job types.Job) math.Int {
	demand, urgency, confidence := k.ai.DemandForecast(ctx, job.JobType)
	return ComputePrice(job.Payment, demand, urgency, confidence, job.Priority, job.PreferGreen)
}
