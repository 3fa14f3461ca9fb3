package keeper

import (
	"context"
	"errors"
	"sort"

	"cosmossdk.io/collections"
	"cosmossdk.io/math"

	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/tidal-zone/lockvote/x/lockvote/types"
)

// slashedLockChange records how a slash changed one lock entry, so round
// powers and scaled shares can be reconciled afterwards.
type slashedLockChange struct {
	oldLock   types.LockEntry
	newAmount math.Int
	removed   bool
}

// SlashResult is the outcome of one SlashProposalVoters call.
type SlashResult struct {
	SlashedLockIds      []uint64
	SkippedLockIds      []uint64
	PendingSlashLockIds []uint64
	SlashedAmounts      sdk.Coins
	TotalTokensSlashed  math.Int
}

// SlashProposalVoters seizes a fraction of the tokens that voted for the
// given proposal. Votes of the proposal's round are walked in lock id order;
// StartFrom and Limit paginate over all votes of the (round, tranche) pair,
// including votes for other proposals, so successive calls never reprocess an
// entry. Each voted lock is resolved through the composition graph to the
// locks currently holding its tokens, and the computed amount accumulates as
// a pending slash until it reaches the slash percentage threshold, at which
// point the whole accumulated amount is seized.
func (k Keeper) SlashProposalVoters(
	ctx context.Context,
	roundID, trancheID, proposalID uint64,
	slashPercent math.LegacyDec,
	startFrom, limit uint64,
) (SlashResult, error) {
	sdkCtx := sdk.UnwrapSDKContext(ctx)

	constants, err := k.GetCurrentConstants(ctx)
	if err != nil {
		return SlashResult{}, err
	}

	currentRoundID, err := k.ComputeCurrentRoundID(ctx, constants)
	if err != nil {
		return SlashResult{}, err
	}

	if roundID > currentRoundID {
		return SlashResult{}, types.ErrFutureRound.Wrapf("round %d", roundID)
	}

	has, err := k.Proposals.Has(ctx, collections.Join3(roundID, trancheID, proposalID))
	if err != nil {
		return SlashResult{}, err
	}
	if !has {
		return SlashResult{}, types.ErrProposalNotFound.Wrapf(
			"proposal %d in round %d tranche %d", proposalID, roundID, trancheID)
	}

	votingRoundHeight, err := k.GetHighestKnownHeightForRound(ctx, roundID)
	if err != nil {
		return SlashResult{}, err
	}

	page, err := k.getVotesPage(ctx, roundID, trancheID, startFrom, limit)
	if err != nil {
		return SlashResult{}, err
	}

	result := SlashResult{
		SlashedAmounts:     sdk.NewCoins(),
		TotalTokensSlashed: math.ZeroInt(),
	}

	height := uint64(sdkCtx.BlockHeight())
	lockChanges := map[uint64]slashedLockChange{}
	removedByOwner := map[string][]uint64{}

	for _, voteEntry := range page {
		if voteEntry.vote.PropId != proposalID {
			continue
		}

		if !voteEntry.vote.TimeWeightedShares.Shares.IsPositive() {
			result.SkippedLockIds = append(result.SkippedLockIds, voteEntry.lockID)
			continue
		}

		// The lock as it was when the vote counted, read right after the
		// last mutation of the voting round.
		votedLock, found, err := k.Locks.GetAtHeight(ctx, voteEntry.lockID, votingRoundHeight+1)
		if err != nil {
			return SlashResult{}, err
		}
		if !found {
			result.SkippedLockIds = append(result.SkippedLockIds, voteEntry.lockID)
			continue
		}

		voteTokenRatio, err := k.GetTokenDenomRatio(ctx, roundID, votedLock.Funds.Denom)
		if err != nil {
			return SlashResult{}, err
		}
		if voteTokenRatio.IsZero() {
			result.SkippedLockIds = append(result.SkippedLockIds, voteEntry.lockID)
			continue
		}

		composition, err := k.GetCurrentLockComposition(ctx, voteEntry.lockID)
		if err != nil {
			return SlashResult{}, err
		}

		for _, leaf := range composition {
			currentLock, err := k.Locks.Get(ctx, leaf.LockId)
			if err != nil {
				if errors.Is(err, collections.ErrNotFound) {
					continue
				}

				return SlashResult{}, err
			}

			computed, _, err := k.intoAmountToSlash(
				ctx, roundID, currentRoundID,
				votedLock.Funds, voteTokenRatio, currentLock.Funds,
				leaf.Fraction, slashPercent,
			)
			if err != nil {
				return SlashResult{}, err
			}

			// The vote's power dropped to zero afterwards, or the ratio of
			// the held token cannot be resolved in this round. A prior
			// pending slash stays pending; it is never seized without a new
			// contribution.
			if computed.IsZero() {
				result.SkippedLockIds = append(result.SkippedLockIds, leaf.LockId)
				continue
			}

			pending, err := k.getLockPendingSlash(ctx, leaf.LockId)
			if err != nil {
				return SlashResult{}, err
			}

			accumulated := pending.Add(computed)
			if accumulated.GT(currentLock.Funds.Amount) {
				accumulated = currentLock.Funds.Amount
			}

			slashedFraction := math.LegacyNewDecFromInt(accumulated).
				QuoInt(currentLock.Funds.Amount)

			if slashedFraction.LT(constants.SlashPercentageThreshold) {
				if err := k.PendingSlashes.Set(ctx, leaf.LockId, accumulated); err != nil {
					return SlashResult{}, err
				}
				result.PendingSlashLockIds = append(result.PendingSlashLockIds, leaf.LockId)
				continue
			}

			newAmount := currentLock.Funds.Amount.Sub(accumulated)
			if newAmount.IsZero() {
				if err := k.Locks.Remove(ctx, leaf.LockId, height); err != nil {
					return SlashResult{}, err
				}

				removedByOwner[currentLock.Owner] = append(
					removedByOwner[currentLock.Owner], leaf.LockId)

				if err := k.clearVotingAllowedRounds(ctx, leaf.LockId); err != nil {
					return SlashResult{}, err
				}
			} else {
				slashedLock := currentLock
				slashedLock.Funds = sdk.NewCoin(currentLock.Funds.Denom, newAmount)
				if err := k.Locks.Set(ctx, leaf.LockId, slashedLock, height); err != nil {
					return SlashResult{}, err
				}
			}

			if err := k.PendingSlashes.Remove(ctx, leaf.LockId); err != nil &&
				!errors.Is(err, collections.ErrNotFound) {
				return SlashResult{}, err
			}

			lockChanges[leaf.LockId] = slashedLockChange{
				oldLock:   currentLock,
				newAmount: newAmount,
				removed:   newAmount.IsZero(),
			}

			result.SlashedLockIds = append(result.SlashedLockIds, leaf.LockId)
			result.SlashedAmounts = result.SlashedAmounts.Add(
				sdk.NewCoin(currentLock.Funds.Denom, accumulated))
			result.TotalTokensSlashed = result.TotalTokensSlashed.Add(accumulated)
		}
	}

	if len(lockChanges) > 0 {
		if err := k.updateCurrentRoundVotes(ctx, constants, currentRoundID, lockChanges); err != nil {
			return SlashResult{}, err
		}

		for owner, removedIDs := range removedByOwner {
			for _, removedID := range removedIDs {
				if err := k.removeLockFromUser(ctx, owner, removedID, height); err != nil {
					return SlashResult{}, err
				}
			}
		}

		if err := k.updateRoundsPowersAndScaledShares(ctx, constants, currentRoundID, lockChanges); err != nil {
			return SlashResult{}, err
		}

		if err := k.subLockedTokens(ctx, result.TotalTokensSlashed); err != nil {
			return SlashResult{}, err
		}

		receiver, err := sdk.AccAddressFromBech32(constants.SlashTokensReceiverAddr)
		if err != nil {
			return SlashResult{}, err
		}

		if err := k.bankKeeper.SendCoinsFromModuleToAccount(
			ctx, types.ModuleName, receiver, result.SlashedAmounts,
		); err != nil {
			return SlashResult{}, err
		}
	}

	if err := k.UpdateRoundHeightMaps(ctx, currentRoundID); err != nil {
		return SlashResult{}, err
	}

	return result, nil
}

type votePageEntry struct {
	lockID uint64
	vote   types.Vote
}

// getVotesPage returns the votes of a (round, tranche) in lock id order,
// skipping the first startFrom entries and taking at most limit.
func (k Keeper) getVotesPage(
	ctx context.Context,
	roundID, trancheID uint64,
	startFrom, limit uint64,
) ([]votePageEntry, error) {
	rng := collections.NewSuperPrefixedTripleRange[uint64, uint64, uint64](roundID, trancheID)

	iter, err := k.Votes.Iterate(ctx, rng)
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var (
		page    []votePageEntry
		skipped uint64
	)

	for ; iter.Valid(); iter.Next() {
		if skipped < startFrom {
			skipped++
			continue
		}
		if uint64(len(page)) >= limit {
			break
		}

		kv, err := iter.KeyValue()
		if err != nil {
			return nil, err
		}

		page = append(page, votePageEntry{lockID: kv.Key.K3(), vote: kv.Value})
	}

	return page, nil
}

// intoAmountToSlash converts the slashable share of a vote into the denom of
// the lock that currently holds the tokens. A lock whose token ratio cannot
// be resolved in the slashing round is not slashed at all. When both locks
// hold the same denom the amount carries over directly; ratio drift between
// the rounds is deliberately not compensated. Otherwise the voted amount is
// converted through the two rounds' token ratios. The result is floored and
// capped at the current lock's amount, and returned together with the held
// token's ratio to the base token.
func (k Keeper) intoAmountToSlash(
	ctx context.Context,
	votingRoundID, currentRoundID uint64,
	votedFunds sdk.Coin,
	voteTokenRatio math.LegacyDec,
	currentFunds sdk.Coin,
	fraction, slashPercent math.LegacyDec,
) (math.Int, math.LegacyDec, error) {
	slashTokenRatio, err := k.GetTokenDenomRatio(ctx, currentRoundID, currentFunds.Denom)
	if err != nil {
		return math.Int{}, math.LegacyDec{}, err
	}
	if slashTokenRatio.IsZero() {
		return math.ZeroInt(), math.LegacyZeroDec(), nil
	}

	base := math.LegacyNewDecFromInt(votedFunds.Amount).Mul(fraction).Mul(slashPercent)

	var amount math.Int
	if votedFunds.Denom == currentFunds.Denom {
		amount = base.TruncateInt()
	} else {
		amount = base.Mul(voteTokenRatio).Quo(slashTokenRatio).TruncateInt()
	}

	if amount.GT(currentFunds.Amount) {
		amount = currentFunds.Amount
	}

	return amount, slashTokenRatio, nil
}

// updateCurrentRoundVotes removes the current round votes cast with slashed
// locks and recasts them with the reduced entries. Fully seized locks simply
// lose their votes.
func (k Keeper) updateCurrentRoundVotes(
	ctx context.Context,
	constants types.Constants,
	currentRoundID uint64,
	lockChanges map[uint64]slashedLockChange,
) error {
	lockIDs := make([]uint64, 0, len(lockChanges))
	for lockID := range lockChanges {
		lockIDs = append(lockIDs, lockID)
	}
	sort.Slice(lockIDs, func(i, j int) bool { return lockIDs[i] < lockIDs[j] })

	trancheIDs, err := k.getTrancheIDs(ctx)
	if err != nil {
		return err
	}

	for _, trancheID := range trancheIDs {
		unvoteResult, err := k.ProcessUnvotes(ctx, currentRoundID, trancheID, lockIDs, nil)
		if err != nil {
			return err
		}

		changes := unvoteResult.PowerChanges

		revotes := map[uint64][]uint64{}
		for _, lockID := range lockIDs {
			vote, voted := unvoteResult.RemovedVotes[lockID]
			if !voted || lockChanges[lockID].removed {
				continue
			}

			revotes[vote.PropId] = append(revotes[vote.PropId], lockID)
		}

		if len(revotes) > 0 {
			proposalsVotes := make([]types.ProposalToLockups, 0, len(revotes))
			proposalIDs := make([]uint64, 0, len(revotes))
			for proposalID := range revotes {
				proposalIDs = append(proposalIDs, proposalID)
			}
			sort.Slice(proposalIDs, func(i, j int) bool { return proposalIDs[i] < proposalIDs[j] })

			for _, proposalID := range proposalIDs {
				proposalsVotes = append(proposalsVotes, types.ProposalToLockups{
					ProposalId: proposalID,
					LockIds:    revotes[proposalID],
				})
			}

			voteResult, err := k.ProcessVotes(
				ctx, constants, currentRoundID, trancheID, proposalsVotes, nil,
			)
			if err != nil {
				return err
			}

			changes.merge(voteResult.PowerChanges)
		}

		if err := k.ApplyProposalPowerChanges(ctx, currentRoundID, trancheID, changes); err != nil {
			return err
		}
	}

	return nil
}

// updateRoundsPowersAndScaledShares lowers the scaled shares and total powers
// of the current and future rounds by the power the slashed tokens carried.
func (k Keeper) updateRoundsPowersAndScaledShares(
	ctx context.Context,
	constants types.Constants,
	currentRoundID uint64,
	lockChanges map[uint64]slashedLockChange,
) error {
	height := uint64(sdk.UnwrapSDKContext(ctx).BlockHeight())
	maxRounds := constants.RoundLockPowerSchedule.GetMaximumRoundsToLock()

	lockIDs := make([]uint64, 0, len(lockChanges))
	for lockID := range lockChanges {
		lockIDs = append(lockIDs, lockID)
	}
	sort.Slice(lockIDs, func(i, j int) bool { return lockIDs[i] < lockIDs[j] })

	// shareDiffs accumulates, per round and token group, the scaled shares
	// the slashed tokens no longer carry.
	shareDiffs := map[uint64]map[string]math.LegacyDec{}

	for _, lockID := range lockIDs {
		change := lockChanges[lockID]

		tokenGroupID, err := k.ResolveDenomTokenGroup(
			ctx, currentRoundID, change.oldLock.Funds.Denom)
		if err != nil {
			if errors.Is(err, types.ErrInvalidDenom) || errors.Is(err, types.ErrNoTokenInfoProviders) {
				continue
			}

			return err
		}

		newLock := change.oldLock
		newLock.Funds = sdk.NewCoin(change.oldLock.Funds.Denom, change.newAmount)

		for roundID := currentRoundID; roundID <= currentRoundID+maxRounds; roundID++ {
			roundEnd := ComputeRoundEnd(constants, roundID)
			if !change.oldLock.LockEnd.After(roundEnd) {
				break
			}

			oldPower := GetLockTimeWeightedShares(constants, roundEnd, change.oldLock)
			newPower := GetLockTimeWeightedShares(constants, roundEnd, newLock)
			diff := oldPower.Sub(newPower)
			if diff.IsZero() {
				continue
			}

			groups, ok := shareDiffs[roundID]
			if !ok {
				groups = map[string]math.LegacyDec{}
				shareDiffs[roundID] = groups
			}

			current, ok := groups[tokenGroupID]
			if !ok {
				current = math.LegacyZeroDec()
			}
			groups[tokenGroupID] = current.Add(diff.ToLegacyDec())
		}
	}

	roundIDs := make([]uint64, 0, len(shareDiffs))
	for roundID := range shareDiffs {
		roundIDs = append(roundIDs, roundID)
	}
	sort.Slice(roundIDs, func(i, j int) bool { return roundIDs[i] < roundIDs[j] })

	for _, roundID := range roundIDs {
		groups := shareDiffs[roundID]

		tokenGroupIDs := make([]string, 0, len(groups))
		for tokenGroupID := range groups {
			tokenGroupIDs = append(tokenGroupIDs, tokenGroupID)
		}
		sort.Strings(tokenGroupIDs)

		roundPowerChange := math.LegacyZeroDec()

		for _, tokenGroupID := range tokenGroupIDs {
			diff := groups[tokenGroupID]

			oldShares, err := k.GetTokenGroupSharesForRound(ctx, roundID, tokenGroupID)
			if err != nil {
				return err
			}

			newShares := oldShares.Sub(diff)
			if newShares.IsNegative() {
				newShares = math.LegacyZeroDec()
			}

			key := collections.Join(roundID, tokenGroupID)
			if err := k.ScaledRoundShares.Set(ctx, key, newShares); err != nil {
				return err
			}

			ratio, err := k.GetTokenGroupRatio(ctx, currentRoundID, tokenGroupID)
			if err != nil {
				return err
			}
			if ratio.IsZero() {
				continue
			}

			roundPowerChange = roundPowerChange.
				Add(oldShares.Mul(ratio)).
				Sub(newShares.Mul(ratio))
		}

		if roundPowerChange.IsZero() {
			continue
		}

		totalPower, err := k.GetTotalPowerForRound(ctx, roundID)
		if err != nil {
			return err
		}

		newTotal := totalPower.ToLegacyDec().Sub(roundPowerChange)
		if newTotal.IsNegative() {
			newTotal = math.LegacyZeroDec()
		}

		if err := k.RoundTotalPower.Set(ctx, roundID, newTotal.Ceil().TruncateInt(), height); err != nil {
			return err
		}
	}

	return nil
}

// clearVotingAllowedRounds drops the voting constraints of a lock in every
// tranche. Called when a lock is removed entirely.
func (k Keeper) clearVotingAllowedRounds(ctx context.Context, lockID uint64) error {
	trancheIDs, err := k.getTrancheIDs(ctx)
	if err != nil {
		return err
	}

	for _, trancheID := range trancheIDs {
		if err := k.VotingAllowedRound.Remove(ctx, collections.Join(trancheID, lockID)); err != nil &&
			!errors.Is(err, collections.ErrNotFound) {
			return err
		}
	}

	return nil
}
