package types

// lockvote module event types
const (
	EventTypeLockTokens          = "lock_tokens"
	EventTypeUnlockTokens        = "unlock_tokens"
	EventTypeSplitLock           = "split_lock"
	EventTypeMergeLocks          = "merge_locks"
	EventTypeCreateProposal      = "create_proposal"
	EventTypeCreateTranche       = "create_tranche"
	EventTypeVote                = "vote"
	EventTypeSlashProposalVoters = "slash_proposal_voters"
	EventTypeBuyoutPendingSlash  = "buyout_pending_slash"
	EventTypeUpdateConstants     = "update_constants"
	EventTypeRegisterRatios      = "register_token_ratios"

	AttributeKeySender              = "sender"
	AttributeKeyLockID              = "lock_id"
	AttributeKeyLockIDs             = "lock_ids"
	AttributeKeyRoundID             = "round_id"
	AttributeKeyTrancheID           = "tranche_id"
	AttributeKeyProposalID          = "proposal_id"
	AttributeKeyAmount              = "amount"
	AttributeKeyDenom               = "denom"
	AttributeKeySlashPercent        = "slash_percent"
	AttributeKeySlashedLocks        = "slashed_lockups"
	AttributeKeySkippedLocks        = "skipped_lockups"
	AttributeKeyPendingSlashesAdded = "pending_slashes_added"
	AttributeKeySlashedAmounts      = "slashed_amounts"
	AttributeKeyTotalTokensSlashed  = "total_tokens_slashed"
	AttributeKeyRefund              = "refund"
	AttributeKeyUsedAmount          = "used_amount"
	AttributeValueCategory          = ModuleName
)
