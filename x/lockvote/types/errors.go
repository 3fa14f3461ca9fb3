package types

import (
	errorsmod "cosmossdk.io/errors"
	sdkerrors "github.com/cosmos/cosmos-sdk/types/errors"
)

// x/lockvote module sentinel errors
var (
	ErrUnauthorized            = errorsmod.Register(ModuleName, 2, "sender is not a whitelist admin")
	ErrPaused                  = errorsmod.Register(ModuleName, 3, "module is paused")
	ErrNoConstants             = errorsmod.Register(ModuleName, 4, "no constants active at the given timestamp")
	ErrRoundNotStarted         = errorsmod.Register(ModuleName, 5, "the first round has not started yet")
	ErrFutureRound             = errorsmod.Register(ModuleName, 6, "round is in the future")
	ErrTrancheNotFound         = errorsmod.Register(ModuleName, 7, "tranche does not exist")
	ErrProposalNotFound        = errorsmod.Register(ModuleName, 8, "proposal does not exist")
	ErrLockNotFound            = errorsmod.Register(ModuleName, 9, "lock entry does not exist")
	ErrHeightBeforeSnapshots   = errorsmod.Register(ModuleName, 10, "height is lower than the snapshot activation height")
	ErrInvalidDenom            = errorsmod.Register(ModuleName, 11, "token denom can not be locked")
	ErrLockLimitReached        = errorsmod.Register(ModuleName, 12, "the limit for locking tokens has been reached")
	ErrLockNotExpired          = errorsmod.Register(ModuleName, 13, "lock entry has not expired yet")
	ErrVotingNotAllowed        = errorsmod.Register(ModuleName, 14, "not allowed to vote with this lock in the current round")
	ErrInsufficientShares      = errorsmod.Register(ModuleName, 15, "insufficient shares for the token group")
	ErrInsufficientTotalPower  = errorsmod.Register(ModuleName, 16, "insufficient total power")
	ErrCompositionCycle        = errorsmod.Register(ModuleName, 17, "lock composition graph contains a revisited lock id")
	ErrLockDepthExceeded       = errorsmod.Register(ModuleName, 18, "lock ancestor depth limit exceeded")
	ErrNoPendingSlash          = errorsmod.Register(ModuleName, 19, "lock has no pending slash attached")
	ErrNotLockOwner            = errorsmod.Register(ModuleName, 20, "sender is not the owner of the lock")
	ErrTokenInfoProviderExists = errorsmod.Register(ModuleName, 21, "token info provider already registered")
	ErrNoTokenInfoProviders    = errorsmod.Register(ModuleName, 22, "at least one token info provider must be registered")
	ErrInvalidSigner           = errorsmod.Register(ModuleName, 23, "expected authority account as only signer for proposal message")

	ErrInvalidSlashPercent = errorsmod.Wrap(sdkerrors.ErrInvalidRequest, "slash percent must be between 0 and 1")
	ErrEmptyVote           = errorsmod.Wrap(sdkerrors.ErrInvalidRequest, "must provide at least one proposal and lockup to vote")
	ErrDuplicateLockID     = errorsmod.Wrap(sdkerrors.ErrInvalidRequest, "duplicate lock id provided")
	ErrDuplicateProposalID = errorsmod.Wrap(sdkerrors.ErrInvalidRequest, "duplicate proposal id provided")
	ErrInvalidLockDuration = errorsmod.Wrap(sdkerrors.ErrInvalidRequest, "lock duration must be a positive multiple of the lock epoch length")
	ErrInvalidSplitAmount  = errorsmod.Wrap(sdkerrors.ErrInvalidRequest, "split amount must be positive and lower than the lock amount")
	ErrMergeDenomMismatch  = errorsmod.Wrap(sdkerrors.ErrInvalidRequest, "can not merge locks holding different token denoms")
	ErrTooFewLocksToMerge  = errorsmod.Wrap(sdkerrors.ErrInvalidRequest, "must provide at least two locks to merge")
)
