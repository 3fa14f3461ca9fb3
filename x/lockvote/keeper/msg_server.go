package keeper

import (
	"context"
	"strconv"
	"strings"

	"github.com/hashicorp/go-metrics"

	"cosmossdk.io/collections"
	"cosmossdk.io/math"

	"github.com/cosmos/cosmos-sdk/telemetry"
	sdk "github.com/cosmos/cosmos-sdk/types"
	sdkerrors "github.com/cosmos/cosmos-sdk/types/errors"

	"github.com/tidal-zone/lockvote/x/lockvote/types"
)

type MsgServer struct {
	*Keeper
}

var _ types.MsgServer = MsgServer{}

// NewMsgServerImpl returns an implementation of the lockvote MsgServer.
func NewMsgServerImpl(k *Keeper) MsgServer {
	return MsgServer{k}
}

// checkNotPaused rejects user-facing operations while the module is paused.
// Admin operations stay available so the pause can be lifted again.
func (ms MsgServer) checkNotPaused(ctx context.Context) error {
	constants, err := ms.GetCurrentConstants(ctx)
	if err != nil {
		return err
	}

	if constants.Paused {
		return types.ErrPaused
	}

	return nil
}

func (ms MsgServer) LockTokens(ctx context.Context, msg *types.MsgLockTokens) (*types.MsgLockTokensResponse, error) {
	defer telemetry.MeasureSince(telemetry.Now(), "lockvote", "msg", "lock_tokens")

	if err := msg.Validate(); err != nil {
		return nil, err
	}

	if err := ms.checkNotPaused(ctx); err != nil {
		return nil, err
	}

	sender, err := sdk.AccAddressFromBech32(msg.Sender)
	if err != nil {
		return nil, err
	}

	lock, err := ms.Keeper.LockTokens(ctx, sender, msg.Amount, msg.LockDuration)
	if err != nil {
		return nil, err
	}

	telemetry.IncrCounterWithLabels(
		[]string{"lockvote", "locked_tokens"},
		float32(msg.Amount.Amount.Int64()),
		[]metrics.Label{telemetry.NewLabel("denom", msg.Amount.Denom)},
	)

	sdkCtx := sdk.UnwrapSDKContext(ctx)
	sdkCtx.EventManager().EmitEvent(
		sdk.NewEvent(
			types.EventTypeLockTokens,
			sdk.NewAttribute(types.AttributeKeySender, msg.Sender),
			sdk.NewAttribute(types.AttributeKeyLockID, strconv.FormatUint(lock.LockId, 10)),
			sdk.NewAttribute(types.AttributeKeyAmount, msg.Amount.String()),
		),
	)

	return &types.MsgLockTokensResponse{LockId: lock.LockId}, nil
}

func (ms MsgServer) RefreshLockDuration(ctx context.Context, msg *types.MsgRefreshLockDuration) (*types.MsgRefreshLockDurationResponse, error) {
	if err := msg.Validate(); err != nil {
		return nil, err
	}

	if err := ms.checkNotPaused(ctx); err != nil {
		return nil, err
	}

	sender, err := sdk.AccAddressFromBech32(msg.Sender)
	if err != nil {
		return nil, err
	}

	if err := ms.Keeper.RefreshLockDuration(ctx, sender, msg.LockIds, msg.LockDuration); err != nil {
		return nil, err
	}

	return &types.MsgRefreshLockDurationResponse{}, nil
}

func (ms MsgServer) UnlockTokens(ctx context.Context, msg *types.MsgUnlockTokens) (*types.MsgUnlockTokensResponse, error) {
	defer telemetry.MeasureSince(telemetry.Now(), "lockvote", "msg", "unlock_tokens")

	if err := msg.Validate(); err != nil {
		return nil, err
	}

	if err := ms.checkNotPaused(ctx); err != nil {
		return nil, err
	}

	sender, err := sdk.AccAddressFromBech32(msg.Sender)
	if err != nil {
		return nil, err
	}

	unlockedIDs, released, err := ms.Keeper.UnlockTokens(ctx, sender, msg.LockIds)
	if err != nil {
		return nil, err
	}

	sdkCtx := sdk.UnwrapSDKContext(ctx)
	sdkCtx.EventManager().EmitEvent(
		sdk.NewEvent(
			types.EventTypeUnlockTokens,
			sdk.NewAttribute(types.AttributeKeySender, msg.Sender),
			sdk.NewAttribute(types.AttributeKeyLockIDs, formatLockIDs(unlockedIDs)),
			sdk.NewAttribute(types.AttributeKeyAmount, released.String()),
		),
	)

	return &types.MsgUnlockTokensResponse{UnlockedLockIds: unlockedIDs}, nil
}

func (ms MsgServer) SplitLock(ctx context.Context, msg *types.MsgSplitLock) (*types.MsgSplitLockResponse, error) {
	if err := msg.Validate(); err != nil {
		return nil, err
	}

	if err := ms.checkNotPaused(ctx); err != nil {
		return nil, err
	}

	sender, err := sdk.AccAddressFromBech32(msg.Sender)
	if err != nil {
		return nil, err
	}

	newLockIDs, err := ms.Keeper.SplitLock(ctx, sender, msg.LockId, msg.Amount)
	if err != nil {
		return nil, err
	}

	sdkCtx := sdk.UnwrapSDKContext(ctx)
	sdkCtx.EventManager().EmitEvent(
		sdk.NewEvent(
			types.EventTypeSplitLock,
			sdk.NewAttribute(types.AttributeKeySender, msg.Sender),
			sdk.NewAttribute(types.AttributeKeyLockID, strconv.FormatUint(msg.LockId, 10)),
			sdk.NewAttribute(types.AttributeKeyLockIDs, formatLockIDs(newLockIDs)),
			sdk.NewAttribute(types.AttributeKeyAmount, msg.Amount.String()),
		),
	)

	return &types.MsgSplitLockResponse{NewLockIds: newLockIDs}, nil
}

func (ms MsgServer) MergeLocks(ctx context.Context, msg *types.MsgMergeLocks) (*types.MsgMergeLocksResponse, error) {
	if err := msg.Validate(); err != nil {
		return nil, err
	}

	if err := ms.checkNotPaused(ctx); err != nil {
		return nil, err
	}

	sender, err := sdk.AccAddressFromBech32(msg.Sender)
	if err != nil {
		return nil, err
	}

	newLockID, err := ms.Keeper.MergeLocks(ctx, sender, msg.LockIds)
	if err != nil {
		return nil, err
	}

	sdkCtx := sdk.UnwrapSDKContext(ctx)
	sdkCtx.EventManager().EmitEvent(
		sdk.NewEvent(
			types.EventTypeMergeLocks,
			sdk.NewAttribute(types.AttributeKeySender, msg.Sender),
			sdk.NewAttribute(types.AttributeKeyLockIDs, formatLockIDs(msg.LockIds)),
			sdk.NewAttribute(types.AttributeKeyLockID, strconv.FormatUint(newLockID, 10)),
		),
	)

	return &types.MsgMergeLocksResponse{NewLockId: newLockID}, nil
}

func (ms MsgServer) CreateTranche(ctx context.Context, msg *types.MsgCreateTranche) (*types.MsgCreateTrancheResponse, error) {
	if err := msg.Validate(); err != nil {
		return nil, err
	}

	if err := ms.validateSenderIsWhitelistAdmin(ctx, msg.Sender); err != nil {
		return nil, err
	}

	trancheID, err := ms.NextTrancheID.Next(ctx)
	if err != nil {
		return nil, err
	}

	tranche := types.Tranche{
		Id:       trancheID,
		Name:     msg.Name,
		Metadata: msg.Metadata,
	}

	if err := ms.Tranches.Set(ctx, trancheID, tranche); err != nil {
		return nil, err
	}

	sdkCtx := sdk.UnwrapSDKContext(ctx)
	sdkCtx.EventManager().EmitEvent(
		sdk.NewEvent(
			types.EventTypeCreateTranche,
			sdk.NewAttribute(types.AttributeKeySender, msg.Sender),
			sdk.NewAttribute(types.AttributeKeyTrancheID, strconv.FormatUint(trancheID, 10)),
		),
	)

	return &types.MsgCreateTrancheResponse{TrancheId: trancheID}, nil
}

func (ms MsgServer) CreateProposal(ctx context.Context, msg *types.MsgCreateProposal) (*types.MsgCreateProposalResponse, error) {
	if err := msg.Validate(); err != nil {
		return nil, err
	}

	if err := ms.validateSenderIsWhitelistAdmin(ctx, msg.Sender); err != nil {
		return nil, err
	}

	constants, err := ms.GetCurrentConstants(ctx)
	if err != nil {
		return nil, err
	}

	currentRoundID, err := ms.ComputeCurrentRoundID(ctx, constants)
	if err != nil {
		return nil, err
	}

	if err := ms.validateTrancheExists(ctx, msg.TrancheId); err != nil {
		return nil, err
	}

	if msg.DeploymentDuration > constants.MaxDeploymentDuration {
		return nil, sdkerrors.ErrInvalidRequest.Wrapf(
			"deployment duration %d exceeds the maximum of %d",
			msg.DeploymentDuration, constants.MaxDeploymentDuration)
	}

	proposalID, err := ms.NextProposalID.Next(ctx)
	if err != nil {
		return nil, err
	}

	minimumLiquidityRequest := msg.MinimumLiquidityRequest
	if minimumLiquidityRequest.IsNil() {
		minimumLiquidityRequest = math.ZeroInt()
	}

	proposal := types.Proposal{
		RoundId:                 currentRoundID,
		TrancheId:               msg.TrancheId,
		ProposalId:              proposalID,
		Title:                   msg.Title,
		Description:             msg.Description,
		Power:                   math.ZeroInt(),
		DeploymentDuration:      msg.DeploymentDuration,
		MinimumLiquidityRequest: minimumLiquidityRequest,
	}

	key := collections.Join3(currentRoundID, msg.TrancheId, proposalID)
	if err := ms.Proposals.Set(ctx, key, proposal); err != nil {
		return nil, err
	}

	if err := ms.UpdateRoundHeightMaps(ctx, currentRoundID); err != nil {
		return nil, err
	}

	sdkCtx := sdk.UnwrapSDKContext(ctx)
	sdkCtx.EventManager().EmitEvent(
		sdk.NewEvent(
			types.EventTypeCreateProposal,
			sdk.NewAttribute(types.AttributeKeySender, msg.Sender),
			sdk.NewAttribute(types.AttributeKeyRoundID, strconv.FormatUint(currentRoundID, 10)),
			sdk.NewAttribute(types.AttributeKeyTrancheID, strconv.FormatUint(msg.TrancheId, 10)),
			sdk.NewAttribute(types.AttributeKeyProposalID, strconv.FormatUint(proposalID, 10)),
		),
	)

	return &types.MsgCreateProposalResponse{ProposalId: proposalID}, nil
}

func (ms MsgServer) Vote(ctx context.Context, msg *types.MsgVote) (*types.MsgVoteResponse, error) {
	defer telemetry.MeasureSince(telemetry.Now(), "lockvote", "msg", "vote")

	if err := msg.Validate(); err != nil {
		return nil, err
	}

	if err := ms.checkNotPaused(ctx); err != nil {
		return nil, err
	}

	sender, err := sdk.AccAddressFromBech32(msg.Sender)
	if err != nil {
		return nil, err
	}

	votedIDs, skippedIDs, err := ms.Keeper.Vote(ctx, sender, msg.TrancheId, msg.ProposalsVotes)
	if err != nil {
		return nil, err
	}

	sdkCtx := sdk.UnwrapSDKContext(ctx)
	sdkCtx.EventManager().EmitEvent(
		sdk.NewEvent(
			types.EventTypeVote,
			sdk.NewAttribute(types.AttributeKeySender, msg.Sender),
			sdk.NewAttribute(types.AttributeKeyTrancheID, strconv.FormatUint(msg.TrancheId, 10)),
			sdk.NewAttribute(types.AttributeKeyLockIDs, formatLockIDs(votedIDs)),
			sdk.NewAttribute(types.AttributeKeySkippedLocks, formatLockIDs(skippedIDs)),
		),
	)

	return &types.MsgVoteResponse{VotedLockIds: votedIDs, SkippedLockIds: skippedIDs}, nil
}

func (ms MsgServer) Unvote(ctx context.Context, msg *types.MsgUnvote) (*types.MsgUnvoteResponse, error) {
	if err := msg.Validate(); err != nil {
		return nil, err
	}

	if err := ms.checkNotPaused(ctx); err != nil {
		return nil, err
	}

	sender, err := sdk.AccAddressFromBech32(msg.Sender)
	if err != nil {
		return nil, err
	}

	if err := ms.Keeper.Unvote(ctx, sender, msg.TrancheId, msg.LockIds); err != nil {
		return nil, err
	}

	return &types.MsgUnvoteResponse{}, nil
}

func (ms MsgServer) SlashProposalVoters(ctx context.Context, msg *types.MsgSlashProposalVoters) (*types.MsgSlashProposalVotersResponse, error) {
	defer telemetry.MeasureSince(telemetry.Now(), "lockvote", "msg", "slash_proposal_voters")

	if err := msg.Validate(); err != nil {
		return nil, err
	}

	if err := ms.validateSenderIsWhitelistAdmin(ctx, msg.Sender); err != nil {
		return nil, err
	}

	result, err := ms.Keeper.SlashProposalVoters(
		ctx, msg.RoundId, msg.TrancheId, msg.ProposalId,
		msg.SlashPercent, msg.StartFrom, msg.Limit,
	)
	if err != nil {
		return nil, err
	}

	sdkCtx := sdk.UnwrapSDKContext(ctx)
	sdkCtx.EventManager().EmitEvent(
		sdk.NewEvent(
			types.EventTypeSlashProposalVoters,
			sdk.NewAttribute(types.AttributeKeySender, msg.Sender),
			sdk.NewAttribute(types.AttributeKeyRoundID, strconv.FormatUint(msg.RoundId, 10)),
			sdk.NewAttribute(types.AttributeKeyTrancheID, strconv.FormatUint(msg.TrancheId, 10)),
			sdk.NewAttribute(types.AttributeKeyProposalID, strconv.FormatUint(msg.ProposalId, 10)),
			sdk.NewAttribute(types.AttributeKeySlashPercent, msg.SlashPercent.String()),
			sdk.NewAttribute(types.AttributeKeySlashedLocks, formatLockIDs(result.SlashedLockIds)),
			sdk.NewAttribute(types.AttributeKeySkippedLocks, formatLockIDs(result.SkippedLockIds)),
			sdk.NewAttribute(types.AttributeKeyPendingSlashesAdded, formatLockIDs(result.PendingSlashLockIds)),
			sdk.NewAttribute(types.AttributeKeySlashedAmounts, result.SlashedAmounts.String()),
			sdk.NewAttribute(types.AttributeKeyTotalTokensSlashed, result.TotalTokensSlashed.String()),
		),
	)

	return &types.MsgSlashProposalVotersResponse{
		SlashedLockIds:      result.SlashedLockIds,
		SkippedLockIds:      result.SkippedLockIds,
		PendingSlashLockIds: result.PendingSlashLockIds,
		SlashedAmounts:      result.SlashedAmounts,
		TotalTokensSlashed:  result.TotalTokensSlashed,
	}, nil
}

func (ms MsgServer) BuyoutPendingSlash(ctx context.Context, msg *types.MsgBuyoutPendingSlash) (*types.MsgBuyoutPendingSlashResponse, error) {
	if err := msg.Validate(); err != nil {
		return nil, err
	}

	if err := ms.checkNotPaused(ctx); err != nil {
		return nil, err
	}

	sender, err := sdk.AccAddressFromBech32(msg.Sender)
	if err != nil {
		return nil, err
	}

	boughtOut, refund, err := ms.Keeper.BuyoutPendingSlash(ctx, sender, msg.LockId, msg.Funds)
	if err != nil {
		return nil, err
	}

	sdkCtx := sdk.UnwrapSDKContext(ctx)
	sdkCtx.EventManager().EmitEvent(
		sdk.NewEvent(
			types.EventTypeBuyoutPendingSlash,
			sdk.NewAttribute(types.AttributeKeySender, msg.Sender),
			sdk.NewAttribute(types.AttributeKeyLockID, strconv.FormatUint(msg.LockId, 10)),
			sdk.NewAttribute(types.AttributeKeyUsedAmount, boughtOut.String()),
			sdk.NewAttribute(types.AttributeKeyRefund, refund.String()),
		),
	)

	return &types.MsgBuyoutPendingSlashResponse{AmountBoughtOut: boughtOut, Refund: refund}, nil
}

func (ms MsgServer) UpdateConstants(ctx context.Context, msg *types.MsgUpdateConstants) (*types.MsgUpdateConstantsResponse, error) {
	if err := msg.Validate(); err != nil {
		return nil, err
	}

	if msg.Sender != ms.authority {
		if err := ms.validateSenderIsWhitelistAdmin(ctx, msg.Sender); err != nil {
			return nil, err
		}
	}

	if err := ms.SetConstants(ctx, msg.ActivatedAt, msg.Constants); err != nil {
		return nil, err
	}

	sdkCtx := sdk.UnwrapSDKContext(ctx)
	sdkCtx.EventManager().EmitEvent(
		sdk.NewEvent(
			types.EventTypeUpdateConstants,
			sdk.NewAttribute(types.AttributeKeySender, msg.Sender),
		),
	)

	return &types.MsgUpdateConstantsResponse{}, nil
}

func (ms MsgServer) RegisterTokenRatios(ctx context.Context, msg *types.MsgRegisterTokenRatios) (*types.MsgRegisterTokenRatiosResponse, error) {
	if err := msg.Validate(); err != nil {
		return nil, err
	}

	if err := ms.validateSenderIsWhitelistAdmin(ctx, msg.Sender); err != nil {
		return nil, err
	}

	constants, err := ms.GetCurrentConstants(ctx)
	if err != nil {
		return nil, err
	}

	currentRoundID, err := ms.ComputeCurrentRoundID(ctx, constants)
	if err != nil {
		return nil, err
	}

	if err := ms.Keeper.RegisterTokenRatios(ctx, currentRoundID, msg.RoundId, msg.Ratios); err != nil {
		return nil, err
	}

	if err := ms.UpdateRoundHeightMaps(ctx, currentRoundID); err != nil {
		return nil, err
	}

	sdkCtx := sdk.UnwrapSDKContext(ctx)
	sdkCtx.EventManager().EmitEvent(
		sdk.NewEvent(
			types.EventTypeRegisterRatios,
			sdk.NewAttribute(types.AttributeKeySender, msg.Sender),
			sdk.NewAttribute(types.AttributeKeyRoundID, strconv.FormatUint(msg.RoundId, 10)),
		),
	)

	return &types.MsgRegisterTokenRatiosResponse{}, nil
}

func (ms MsgServer) AddTokenInfoProvider(ctx context.Context, msg *types.MsgAddTokenInfoProvider) (*types.MsgAddTokenInfoProviderResponse, error) {
	if err := msg.Validate(); err != nil {
		return nil, err
	}

	if err := ms.validateSenderIsWhitelistAdmin(ctx, msg.Sender); err != nil {
		return nil, err
	}

	if err := ms.Keeper.AddTokenInfoProvider(ctx, msg.Provider, msg.LsmDenoms); err != nil {
		return nil, err
	}

	return &types.MsgAddTokenInfoProviderResponse{}, nil
}

func formatLockIDs(lockIDs []uint64) string {
	parts := make([]string, 0, len(lockIDs))
	for _, lockID := range lockIDs {
		parts = append(parts, strconv.FormatUint(lockID, 10))
	}

	return strings.Join(parts, ",")
}
