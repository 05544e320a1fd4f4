package types

// Event types for the registry module
const (
	EventTypeNodeRegistered         = "node_registered"
	EventTypeNodeUnregistered       = "node_unregistered"
	EventTypeNodeSlashed            = "node_slashed"
	EventTypeNodeReputationUpdated  = "node_reputation_updated"
	EventTypeRegistrationBatchAlert = "registration_batch_alert"
	EventTypeAttestationRenewed     = "attestation_renewed"
	EventTypePowerSavingChanged     = "power_saving_changed"
	EventTypeDeviceProfileSet       = "device_profile_set"
	EventTypeDeviceProfileRemoved   = "device_profile_removed"
	EventTypeModulePaused           = "module_paused"
	EventTypeModuleResumed          = "module_resumed"
)

// Event attribute keys
const (
	AttributeKeyModule      = "module"
	AttributeKeyNode        = "node"
	AttributeKeyDeviceType  = "device_type"
	AttributeKeyStake       = "stake"
	AttributeKeyReputation  = "reputation"
	AttributeKeySuccess     = "success"
	AttributeKeyAmount      = "amount"
	AttributeKeyReason      = "reason"
	AttributeKeyPermanent   = "permanent"
	AttributeKeyOperator    = "operator"
	AttributeKeyBatchSize   = "batch_size"
	AttributeKeyAlertID     = "alert_id"
	AttributeKeyGreen       = "green"
	AttributeKeyExpiresAt   = "expires_at"
	AttributeKeyPowerSaving = "power_saving"
	AttributeKeyActor       = "actor"
	AttributeKeyReturned    = "returned_stake"
)
