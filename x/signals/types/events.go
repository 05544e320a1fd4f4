package types

const (
	EventTypeGreenCertified     = "green_certified"
	EventTypeGreenRevoked       = "green_revoked"
	EventTypeNodeScoreSet       = "node_score_set"
	EventTypeForecastSet        = "demand_forecast_set"
	EventTypePredictionQueued   = "prediction_requested"
	EventTypePredictionFulfiled = "prediction_fulfilled"

	AttributeKeyNode       = "node"
	AttributeKeyMultiplier = "multiplier"
	AttributeKeyGreen      = "green"
	AttributeKeyValidUntil = "valid_until"
	AttributeKeyOracle     = "oracle"
	AttributeKeyScore      = "score"
	AttributeKeyJobType    = "job_type"
	AttributeKeyDemand     = "demand"
	AttributeKeyUrgency    = "urgency"
	AttributeKeyConfidence = "confidence"
	AttributeKeyRequestID  = "request_id"
	AttributeKeyJobID      = "job_id"
	AttributeKeyEstimate   = "estimate_seconds"
)
