package types

const (
	EventTypeEscrowCreated   = "escrow_created"
	EventTypeEscrowFunded    = "escrow_funded"
	EventTypeEscrowReleased  = "escrow_released"
	EventTypeEscrowRefunded  = "escrow_refunded"
	EventTypeEscrowCancelled = "escrow_cancelled"

	AttributeKeyJobID  = "job_id"
	AttributeKeyPayer  = "payer"
	AttributeKeyPayee  = "payee"
	AttributeKeyAmount = "amount"
)
