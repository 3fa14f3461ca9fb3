package types

import (
	"context"
	"strings"
	"time"

	"cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"
	sdkerrors "github.com/cosmos/cosmos-sdk/types/errors"
)

// MsgServer is the transaction-handling surface of the module. Message
// envelope and signature verification belong to the surrounding runtime; the
// handlers here receive already-authenticated senders.
type MsgServer interface {
	LockTokens(ctx context.Context, msg *MsgLockTokens) (*MsgLockTokensResponse, error)
	RefreshLockDuration(ctx context.Context, msg *MsgRefreshLockDuration) (*MsgRefreshLockDurationResponse, error)
	UnlockTokens(ctx context.Context, msg *MsgUnlockTokens) (*MsgUnlockTokensResponse, error)
	SplitLock(ctx context.Context, msg *MsgSplitLock) (*MsgSplitLockResponse, error)
	MergeLocks(ctx context.Context, msg *MsgMergeLocks) (*MsgMergeLocksResponse, error)
	CreateTranche(ctx context.Context, msg *MsgCreateTranche) (*MsgCreateTrancheResponse, error)
	CreateProposal(ctx context.Context, msg *MsgCreateProposal) (*MsgCreateProposalResponse, error)
	Vote(ctx context.Context, msg *MsgVote) (*MsgVoteResponse, error)
	Unvote(ctx context.Context, msg *MsgUnvote) (*MsgUnvoteResponse, error)
	SlashProposalVoters(ctx context.Context, msg *MsgSlashProposalVoters) (*MsgSlashProposalVotersResponse, error)
	BuyoutPendingSlash(ctx context.Context, msg *MsgBuyoutPendingSlash) (*MsgBuyoutPendingSlashResponse, error)
	UpdateConstants(ctx context.Context, msg *MsgUpdateConstants) (*MsgUpdateConstantsResponse, error)
	RegisterTokenRatios(ctx context.Context, msg *MsgRegisterTokenRatios) (*MsgRegisterTokenRatiosResponse, error)
	AddTokenInfoProvider(ctx context.Context, msg *MsgAddTokenInfoProvider) (*MsgAddTokenInfoProviderResponse, error)
}

type MsgLockTokens struct {
	Sender       string        `json:"sender"`
	Amount       sdk.Coin      `json:"amount"`
	LockDuration time.Duration `json:"lock_duration"`
}

type MsgLockTokensResponse struct {
	LockId uint64 `json:"lock_id"`
}

func (msg MsgLockTokens) Validate() error {
	if _, err := sdk.AccAddressFromBech32(msg.Sender); err != nil {
		return sdkerrors.ErrInvalidAddress.Wrapf("invalid sender address: %s", err)
	}
	if !msg.Amount.IsValid() || msg.Amount.IsZero() {
		return sdkerrors.ErrInvalidCoins.Wrapf("invalid lock amount: %s", msg.Amount)
	}
	if msg.LockDuration <= 0 {
		return ErrInvalidLockDuration
	}

	return nil
}

type MsgRefreshLockDuration struct {
	Sender       string        `json:"sender"`
	LockIds      []uint64      `json:"lock_ids"`
	LockDuration time.Duration `json:"lock_duration"`
}

type MsgRefreshLockDurationResponse struct{}

func (msg MsgRefreshLockDuration) Validate() error {
	if _, err := sdk.AccAddressFromBech32(msg.Sender); err != nil {
		return sdkerrors.ErrInvalidAddress.Wrapf("invalid sender address: %s", err)
	}
	if len(msg.LockIds) == 0 {
		return sdkerrors.ErrInvalidRequest.Wrap("must provide at least one lock id to refresh")
	}
	if msg.LockDuration <= 0 {
		return ErrInvalidLockDuration
	}

	return nil
}

type MsgUnlockTokens struct {
	Sender  string   `json:"sender"`
	LockIds []uint64 `json:"lock_ids"`
}

type MsgUnlockTokensResponse struct {
	UnlockedLockIds []uint64 `json:"unlocked_lock_ids"`
}

func (msg MsgUnlockTokens) Validate() error {
	if _, err := sdk.AccAddressFromBech32(msg.Sender); err != nil {
		return sdkerrors.ErrInvalidAddress.Wrapf("invalid sender address: %s", err)
	}

	return nil
}

type MsgSplitLock struct {
	Sender string   `json:"sender"`
	LockId uint64   `json:"lock_id"`
	Amount math.Int `json:"amount"`
}

type MsgSplitLockResponse struct {
	NewLockIds []uint64 `json:"new_lock_ids"`
}

func (msg MsgSplitLock) Validate() error {
	if _, err := sdk.AccAddressFromBech32(msg.Sender); err != nil {
		return sdkerrors.ErrInvalidAddress.Wrapf("invalid sender address: %s", err)
	}
	if msg.Amount.IsNil() || !msg.Amount.IsPositive() {
		return ErrInvalidSplitAmount
	}

	return nil
}

type MsgMergeLocks struct {
	Sender  string   `json:"sender"`
	LockIds []uint64 `json:"lock_ids"`
}

type MsgMergeLocksResponse struct {
	NewLockId uint64 `json:"new_lock_id"`
}

func (msg MsgMergeLocks) Validate() error {
	if _, err := sdk.AccAddressFromBech32(msg.Sender); err != nil {
		return sdkerrors.ErrInvalidAddress.Wrapf("invalid sender address: %s", err)
	}
	if len(msg.LockIds) < 2 {
		return ErrTooFewLocksToMerge
	}

	return nil
}

type MsgCreateTranche struct {
	Sender   string `json:"sender"`
	Name     string `json:"name"`
	Metadata string `json:"metadata"`
}

type MsgCreateTrancheResponse struct {
	TrancheId uint64 `json:"tranche_id"`
}

func (msg MsgCreateTranche) Validate() error {
	if _, err := sdk.AccAddressFromBech32(msg.Sender); err != nil {
		return sdkerrors.ErrInvalidAddress.Wrapf("invalid sender address: %s", err)
	}
	if strings.TrimSpace(msg.Name) == "" {
		return sdkerrors.ErrInvalidRequest.Wrap("tranche name must not be empty")
	}

	return nil
}

type MsgCreateProposal struct {
	Sender                  string   `json:"sender"`
	TrancheId               uint64   `json:"tranche_id"`
	Title                   string   `json:"title"`
	Description             string   `json:"description"`
	DeploymentDuration      uint64   `json:"deployment_duration"`
	MinimumLiquidityRequest math.Int `json:"minimum_liquidity_request"`
}

type MsgCreateProposalResponse struct {
	ProposalId uint64 `json:"proposal_id"`
}

func (msg MsgCreateProposal) Validate() error {
	if _, err := sdk.AccAddressFromBech32(msg.Sender); err != nil {
		return sdkerrors.ErrInvalidAddress.Wrapf("invalid sender address: %s", err)
	}
	if strings.TrimSpace(msg.Title) == "" {
		return sdkerrors.ErrInvalidRequest.Wrap("proposal title must not be empty")
	}
	if msg.DeploymentDuration == 0 {
		return sdkerrors.ErrInvalidRequest.Wrap("deployment duration must be positive")
	}

	return nil
}

type MsgVote struct {
	Sender         string              `json:"sender"`
	TrancheId      uint64              `json:"tranche_id"`
	ProposalsVotes []ProposalToLockups `json:"proposals_votes"`
}

type MsgVoteResponse struct {
	VotedLockIds   []uint64 `json:"voted_lock_ids"`
	SkippedLockIds []uint64 `json:"skipped_lock_ids"`
}

func (msg MsgVote) Validate() error {
	if _, err := sdk.AccAddressFromBech32(msg.Sender); err != nil {
		return sdkerrors.ErrInvalidAddress.Wrapf("invalid sender address: %s", err)
	}
	if len(msg.ProposalsVotes) == 0 {
		return ErrEmptyVote
	}

	return nil
}

type MsgUnvote struct {
	Sender    string   `json:"sender"`
	TrancheId uint64   `json:"tranche_id"`
	LockIds   []uint64 `json:"lock_ids"`
}

type MsgUnvoteResponse struct{}

func (msg MsgUnvote) Validate() error {
	if _, err := sdk.AccAddressFromBech32(msg.Sender); err != nil {
		return sdkerrors.ErrInvalidAddress.Wrapf("invalid sender address: %s", err)
	}
	if len(msg.LockIds) == 0 {
		return sdkerrors.ErrInvalidRequest.Wrap("must provide at least one lock id to unvote")
	}

	return nil
}

type MsgSlashProposalVoters struct {
	Sender       string         `json:"sender"`
	RoundId      uint64         `json:"round_id"`
	TrancheId    uint64         `json:"tranche_id"`
	ProposalId   uint64         `json:"proposal_id"`
	SlashPercent math.LegacyDec `json:"slash_percent"`

	// StartFrom and Limit paginate the proposal's votes so that a large
	// voter set can be slashed across multiple transactions.
	StartFrom uint64 `json:"start_from"`
	Limit     uint64 `json:"limit"`
}

type MsgSlashProposalVotersResponse struct {
	SlashedLockIds      []uint64  `json:"slashed_lock_ids"`
	SkippedLockIds      []uint64  `json:"skipped_lock_ids"`
	PendingSlashLockIds []uint64  `json:"pending_slash_lock_ids"`
	SlashedAmounts      sdk.Coins `json:"slashed_amounts"`
	TotalTokensSlashed  math.Int  `json:"total_tokens_slashed"`
}

func (msg MsgSlashProposalVoters) Validate() error {
	if _, err := sdk.AccAddressFromBech32(msg.Sender); err != nil {
		return sdkerrors.ErrInvalidAddress.Wrapf("invalid sender address: %s", err)
	}
	if msg.SlashPercent.IsNil() || !msg.SlashPercent.IsPositive() || msg.SlashPercent.GT(math.LegacyOneDec()) {
		return ErrInvalidSlashPercent
	}
	if msg.Limit == 0 {
		return sdkerrors.ErrInvalidRequest.Wrap("pagination limit must be positive")
	}

	return nil
}

type MsgBuyoutPendingSlash struct {
	Sender string    `json:"sender"`
	LockId uint64    `json:"lock_id"`
	Funds  sdk.Coins `json:"funds"`
}

type MsgBuyoutPendingSlashResponse struct {
	// AmountBoughtOut is denominated in the lock's current denom.
	AmountBoughtOut math.Int  `json:"amount_bought_out"`
	Refund          sdk.Coins `json:"refund"`
}

func (msg MsgBuyoutPendingSlash) Validate() error {
	if _, err := sdk.AccAddressFromBech32(msg.Sender); err != nil {
		return sdkerrors.ErrInvalidAddress.Wrapf("invalid sender address: %s", err)
	}
	if !msg.Funds.IsValid() || msg.Funds.IsZero() {
		return sdkerrors.ErrInvalidCoins.Wrap("buyout requires funds")
	}

	return nil
}

type MsgUpdateConstants struct {
	Sender      string    `json:"sender"`
	ActivatedAt time.Time `json:"activated_at"`
	Constants   Constants `json:"constants"`
}

type MsgUpdateConstantsResponse struct{}

func (msg MsgUpdateConstants) Validate() error {
	if _, err := sdk.AccAddressFromBech32(msg.Sender); err != nil {
		return sdkerrors.ErrInvalidAddress.Wrapf("invalid sender address: %s", err)
	}

	return msg.Constants.Validate()
}

type MsgRegisterTokenRatios struct {
	Sender  string       `json:"sender"`
	RoundId uint64       `json:"round_id"`
	Ratios  []TokenRatio `json:"ratios"`
}

type MsgRegisterTokenRatiosResponse struct{}

func (msg MsgRegisterTokenRatios) Validate() error {
	if _, err := sdk.AccAddressFromBech32(msg.Sender); err != nil {
		return sdkerrors.ErrInvalidAddress.Wrapf("invalid sender address: %s", err)
	}
	if len(msg.Ratios) == 0 {
		return sdkerrors.ErrInvalidRequest.Wrap("must provide at least one token ratio")
	}
	for _, ratio := range msg.Ratios {
		if ratio.TokenGroupId == "" {
			return sdkerrors.ErrInvalidRequest.Wrap("token group id must not be empty")
		}
		if ratio.Ratio.IsNil() || ratio.Ratio.IsNegative() {
			return sdkerrors.ErrInvalidRequest.Wrap("token ratio must be non-negative")
		}
	}

	return nil
}

type MsgAddTokenInfoProvider struct {
	Sender   string            `json:"sender"`
	Provider TokenInfoProvider `json:"provider"`

	// LsmDenoms registers denom -> validator mappings served by an LSM
	// provider; ignored for other kinds.
	LsmDenoms map[string]string `json:"lsm_denoms,omitempty"`
}

type MsgAddTokenInfoProviderResponse struct{}

func (msg MsgAddTokenInfoProvider) Validate() error {
	if _, err := sdk.AccAddressFromBech32(msg.Sender); err != nil {
		return sdkerrors.ErrInvalidAddress.Wrapf("invalid sender address: %s", err)
	}

	return msg.Provider.Validate()
}
