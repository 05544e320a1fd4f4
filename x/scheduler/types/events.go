package types

// Event types for the scheduler module
const (
	EventTypeJobCreated        = "job_created"
	EventTypeJobAssigned       = "job_assigned"
	EventTypeJobPriceComputed  = "job_price_computed"
	EventTypeJobStarted        = "job_started"
	EventTypeJobCompleted      = "job_completed"
	EventTypeJobAuditSubmitted = "job_audit_submitted"
	EventTypeJobDisputed       = "job_disputed"
	EventTypeJobSettled        = "job_settled"
	EventTypeJobCancelled      = "job_cancelled"
	EventTypeJobAuditToggled   = "job_audit_toggled"
	EventTypeModulePaused      = "module_paused"
	EventTypeModuleResumed     = "module_resumed"
)

// Event attribute keys
const (
	AttributeKeyModule      = "module"
	AttributeKeyJobID       = "job_id"
	AttributeKeyClient      = "client"
	AttributeKeyJobType     = "job_type"
	AttributeKeyPriority    = "priority"
	AttributeKeyPayment     = "payment"
	AttributeKeyRail        = "rail"
	AttributeKeyDeadline    = "deadline"
	AttributeKeyNode        = "node"
	AttributeKeyAuditNode   = "audit_node"
	AttributeKeyScore       = "score"
	AttributeKeyPrice       = "price"
	AttributeKeyResultHash  = "result_hash"
	AttributeKeyResultRef   = "result_ref"
	AttributeKeyAuditMatch  = "audit_match"
	AttributeKeyPayee       = "payee"
	AttributeKeyAmount      = "amount"
	AttributeKeyReason      = "reason"
	AttributeKeyActor       = "actor"
	AttributeKeyEnabled     = "enabled"
	AttributeKeyPreferGreen = "prefer_green"
)
