package keeper

import (
	"context"
	"errors"
	"sort"

	"cosmossdk.io/collections"
	errorsmod "cosmossdk.io/errors"
	"cosmossdk.io/math"

	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/tidal-zone/lockvote/x/lockvote/types"
)

// SplitLock splits off the given amount of a lock into a new lock entry. The
// original lock is removed and replaced by two entries that inherit its owner
// and expiry; the first holds the remainder and the second the split amount.
// Any pending slash is divided between them in proportion to their amounts,
// and a vote cast with the original lock in the current round is recast with
// both pieces so the proposal keeps its power.
func (k Keeper) SplitLock(
	ctx context.Context,
	sender sdk.AccAddress,
	lockID uint64,
	amount math.Int,
) ([]uint64, error) {
	sdkCtx := sdk.UnwrapSDKContext(ctx)

	constants, err := k.GetCurrentConstants(ctx)
	if err != nil {
		return nil, err
	}

	currentRoundID, err := k.ComputeCurrentRoundID(ctx, constants)
	if err != nil {
		return nil, err
	}

	lock, err := k.Locks.Get(ctx, lockID)
	if err != nil {
		if errors.Is(err, collections.ErrNotFound) {
			return nil, types.ErrLockNotFound.Wrapf("lock %d", lockID)
		}

		return nil, err
	}

	if lock.Owner != sender.String() {
		return nil, types.ErrNotLockOwner.Wrapf("lock %d", lockID)
	}

	if !amount.IsPositive() || amount.GTE(lock.Funds.Amount) {
		return nil, errorsmod.Wrapf(types.ErrInvalidSplitAmount,
			"amount %s, lock holds %s", amount, lock.Funds.Amount)
	}

	depth, err := k.GetLockAncestorDepth(ctx, lockID)
	if err != nil {
		return nil, err
	}
	if depth+1 > lockDepthLimit {
		return nil, types.ErrLockDepthExceeded.Wrapf("lock %d has depth %d", lockID, depth)
	}

	totalAmount := lock.Funds.Amount
	remainderAmount := totalAmount.Sub(amount)

	remainderID, err := k.NextLockID.Next(ctx)
	if err != nil {
		return nil, err
	}
	splitID, err := k.NextLockID.Next(ctx)
	if err != nil {
		return nil, err
	}

	remainderLock := lock
	remainderLock.LockId = remainderID
	remainderLock.Funds = sdk.NewCoin(lock.Funds.Denom, remainderAmount)

	splitLock := lock
	splitLock.LockId = splitID
	splitLock.Funds = sdk.NewCoin(lock.Funds.Denom, amount)

	height := uint64(sdkCtx.BlockHeight())

	if err := k.Locks.Remove(ctx, lockID, height); err != nil {
		return nil, err
	}
	if err := k.Locks.Set(ctx, remainderID, remainderLock, height); err != nil {
		return nil, err
	}
	if err := k.Locks.Set(ctx, splitID, splitLock, height); err != nil {
		return nil, err
	}

	if err := k.removeLockFromUser(ctx, lock.Owner, lockID, height); err != nil {
		return nil, err
	}
	if err := k.addLockToUser(ctx, lock.Owner, remainderID, height); err != nil {
		return nil, err
	}
	if err := k.addLockToUser(ctx, lock.Owner, splitID, height); err != nil {
		return nil, err
	}

	totalDec := math.LegacyNewDecFromInt(totalAmount)
	if err := k.recordLockSuccessors(ctx, lockID, []types.LockSuccessor{
		{LockId: remainderID, Fraction: math.LegacyNewDecFromInt(remainderAmount).Quo(totalDec)},
		{LockId: splitID, Fraction: math.LegacyNewDecFromInt(amount).Quo(totalDec)},
	}); err != nil {
		return nil, err
	}

	if err := k.splitPendingSlash(ctx, lockID, remainderID, splitID, remainderAmount, totalAmount); err != nil {
		return nil, err
	}

	trancheIDs, err := k.getTrancheIDs(ctx)
	if err != nil {
		return nil, err
	}

	for _, trancheID := range trancheIDs {
		if err := k.insertPlaceholderVotes(
			ctx, currentRoundID, trancheID, []uint64{lockID}, []uint64{remainderID, splitID},
		); err != nil {
			return nil, err
		}

		if err := k.recastSplitVote(
			ctx, currentRoundID, trancheID, lockID,
			remainderID, splitID, remainderAmount, totalAmount,
		); err != nil {
			return nil, err
		}
	}

	if err := k.UpdateRoundHeightMaps(ctx, currentRoundID); err != nil {
		return nil, err
	}

	return []uint64{remainderID, splitID}, nil
}

// MergeLocks combines the given locks of the sender into one new lock. The
// merged lock holds the summed amount and the latest expiry; pending slashes
// carry over summed. It votes in the current round only when every merged
// lock was allowed to vote and all their votes target the same proposal.
func (k Keeper) MergeLocks(
	ctx context.Context,
	sender sdk.AccAddress,
	lockIDs []uint64,
) (uint64, error) {
	sdkCtx := sdk.UnwrapSDKContext(ctx)

	constants, err := k.GetCurrentConstants(ctx)
	if err != nil {
		return 0, err
	}

	currentRoundID, err := k.ComputeCurrentRoundID(ctx, constants)
	if err != nil {
		return 0, err
	}

	lockIDs = dedupeLockIDs(lockIDs)
	if len(lockIDs) < 2 {
		return 0, types.ErrTooFewLocksToMerge
	}

	locks := make([]types.LockEntry, 0, len(lockIDs))
	totalAmount := math.ZeroInt()
	maxDepth := uint64(0)
	var lockEnd = sdkCtx.BlockTime()

	for _, lockID := range lockIDs {
		lock, err := k.Locks.Get(ctx, lockID)
		if err != nil {
			if errors.Is(err, collections.ErrNotFound) {
				return 0, types.ErrLockNotFound.Wrapf("lock %d", lockID)
			}

			return 0, err
		}

		if lock.Owner != sender.String() {
			return 0, types.ErrNotLockOwner.Wrapf("lock %d", lockID)
		}

		if len(locks) > 0 && lock.Funds.Denom != locks[0].Funds.Denom {
			return 0, errorsmod.Wrapf(types.ErrMergeDenomMismatch,
				"lock %d holds %s, lock %d holds %s",
				lockID, lock.Funds.Denom, locks[0].LockId, locks[0].Funds.Denom)
		}

		depth, err := k.GetLockAncestorDepth(ctx, lockID)
		if err != nil {
			return 0, err
		}
		if depth > maxDepth {
			maxDepth = depth
		}

		totalAmount = totalAmount.Add(lock.Funds.Amount)
		if lock.LockEnd.After(lockEnd) {
			lockEnd = lock.LockEnd
		}

		locks = append(locks, lock)
	}

	if maxDepth+1 > lockDepthLimit {
		return 0, types.ErrLockDepthExceeded.Wrapf("merged lock would have depth %d", maxDepth+1)
	}

	newLockID, err := k.NextLockID.Next(ctx)
	if err != nil {
		return 0, err
	}

	newLock := types.LockEntry{
		LockId:    newLockID,
		Owner:     sender.String(),
		Funds:     sdk.NewCoin(locks[0].Funds.Denom, totalAmount),
		LockStart: sdkCtx.BlockTime(),
		LockEnd:   lockEnd,
	}

	height := uint64(sdkCtx.BlockHeight())

	if err := k.Locks.Set(ctx, newLockID, newLock, height); err != nil {
		return 0, err
	}
	if err := k.addLockToUser(ctx, sender.String(), newLockID, height); err != nil {
		return 0, err
	}

	pendingTotal := math.ZeroInt()
	for _, lock := range locks {
		if err := k.Locks.Remove(ctx, lock.LockId, height); err != nil {
			return 0, err
		}
		if err := k.removeLockFromUser(ctx, sender.String(), lock.LockId, height); err != nil {
			return 0, err
		}

		pending, err := k.getLockPendingSlash(ctx, lock.LockId)
		if err != nil {
			return 0, err
		}
		if pending.IsPositive() {
			pendingTotal = pendingTotal.Add(pending)
			if err := k.PendingSlashes.Remove(ctx, lock.LockId); err != nil {
				return 0, err
			}
		}

		if err := k.recordLockSuccessors(ctx, lock.LockId, []types.LockSuccessor{
			{LockId: newLockID, Fraction: math.LegacyOneDec()},
		}); err != nil {
			return 0, err
		}
	}

	if pendingTotal.IsPositive() {
		if err := k.PendingSlashes.Set(ctx, newLockID, pendingTotal); err != nil {
			return 0, err
		}
	}

	// The merged lock inherits the latest expiry, so round share totals
	// change wherever a shorter parent gained lockup time.
	tokenGroupID, err := k.ResolveDenomTokenGroup(ctx, currentRoundID, newLock.Funds.Denom)
	if err != nil {
		return 0, err
	}
	ratio, err := k.GetTokenGroupRatio(ctx, currentRoundID, tokenGroupID)
	if err != nil {
		return 0, err
	}
	for _, lock := range locks {
		drained := lock
		drained.Funds = sdk.NewCoin(lock.Funds.Denom, math.ZeroInt())
		if err := k.addLockSharesDiffToRounds(
			ctx, constants, currentRoundID, tokenGroupID, ratio, lock, drained,
		); err != nil {
			return 0, err
		}
	}
	if err := k.addLockSharesToRounds(ctx, constants, currentRoundID, tokenGroupID, ratio, newLock); err != nil {
		return 0, err
	}

	trancheIDs, err := k.getTrancheIDs(ctx)
	if err != nil {
		return 0, err
	}

	for _, trancheID := range trancheIDs {
		if err := k.insertPlaceholderVotes(
			ctx, currentRoundID, trancheID, lockIDs, []uint64{newLockID},
		); err != nil {
			return 0, err
		}

		if err := k.recastMergedVote(
			ctx, constants, currentRoundID, trancheID, lockIDs, newLockID,
		); err != nil {
			return 0, err
		}
	}

	if err := k.UpdateRoundHeightMaps(ctx, currentRoundID); err != nil {
		return 0, err
	}

	return newLockID, nil
}

// splitPendingSlash divides a pending slash between the two pieces of a split
// lock in proportion to their amounts, flooring the remainder piece so the
// pieces sum to the original amount exactly.
func (k Keeper) splitPendingSlash(
	ctx context.Context,
	lockID, remainderID, splitID uint64,
	remainderAmount, totalAmount math.Int,
) error {
	pending, err := k.getLockPendingSlash(ctx, lockID)
	if err != nil {
		return err
	}
	if !pending.IsPositive() {
		return nil
	}

	remainderPending := pending.Mul(remainderAmount).Quo(totalAmount)
	splitPending := pending.Sub(remainderPending)

	if remainderPending.IsPositive() {
		if err := k.PendingSlashes.Set(ctx, remainderID, remainderPending); err != nil {
			return err
		}
	}
	if splitPending.IsPositive() {
		if err := k.PendingSlashes.Set(ctx, splitID, splitPending); err != nil {
			return err
		}
	}

	return k.PendingSlashes.Remove(ctx, lockID)
}

// insertPlaceholderVotes adds zero share votes for the successor locks in
// every past round a predecessor voted in, so historical vote queries can
// follow a lock's lineage. When several predecessors voted in the same round,
// the one with the highest lock id provides the recorded proposal.
func (k Keeper) insertPlaceholderVotes(
	ctx context.Context,
	currentRoundID, trancheID uint64,
	predecessorIDs, successorIDs []uint64,
) error {
	for roundID := uint64(0); roundID < currentRoundID; roundID++ {
		var (
			found bool
			vote  types.Vote
		)

		for _, predecessorID := range predecessorIDs {
			predecessorVote, err := k.Votes.Get(ctx, collections.Join3(roundID, trancheID, predecessorID))
			if err != nil {
				if errors.Is(err, collections.ErrNotFound) {
					continue
				}

				return err
			}

			found = true
			vote = predecessorVote
		}

		if !found {
			continue
		}

		placeholder := types.Vote{
			PropId: vote.PropId,
			TimeWeightedShares: types.TokenGroupShares{
				TokenGroupId: vote.TimeWeightedShares.TokenGroupId,
				Shares:       math.LegacyZeroDec(),
			},
		}

		for _, successorID := range successorIDs {
			key := collections.Join3(roundID, trancheID, successorID)
			if err := k.Votes.Set(ctx, key, placeholder); err != nil {
				return err
			}
		}
	}

	return nil
}

// recastSplitVote replaces a current round vote of the split lock with two
// votes whose shares are proportional to the piece amounts. The shares of the
// two pieces sum to the original vote's shares, leaving the proposal's power
// untouched.
func (k Keeper) recastSplitVote(
	ctx context.Context,
	roundID, trancheID, lockID uint64,
	remainderID, splitID uint64,
	remainderAmount, totalAmount math.Int,
) error {
	allowedRound, err := k.getVotingAllowedRound(ctx, trancheID, lockID)
	if err != nil {
		return err
	}

	unvoteResult, err := k.ProcessUnvotes(ctx, roundID, trancheID, []uint64{lockID}, nil)
	if err != nil {
		return err
	}

	vote, voted := unvoteResult.RemovedVotes[lockID]
	if !voted {
		return nil
	}

	remainderShares := vote.TimeWeightedShares.Shares.
		MulInt(remainderAmount).QuoInt(totalAmount)
	splitShares := vote.TimeWeightedShares.Shares.Sub(remainderShares)

	changes := unvoteResult.PowerChanges

	for _, piece := range []struct {
		lockID uint64
		shares math.LegacyDec
	}{
		{remainderID, remainderShares},
		{splitID, splitShares},
	} {
		pieceVote := types.Vote{
			PropId: vote.PropId,
			TimeWeightedShares: types.TokenGroupShares{
				TokenGroupId: vote.TimeWeightedShares.TokenGroupId,
				Shares:       piece.shares,
			},
		}

		key := collections.Join3(roundID, trancheID, piece.lockID)
		if err := k.Votes.Set(ctx, key, pieceVote); err != nil {
			return err
		}

		if allowedRound > 0 {
			if err := k.VotingAllowedRound.Set(
				ctx, collections.Join(trancheID, piece.lockID), allowedRound,
			); err != nil {
				return err
			}
		}

		if piece.shares.IsPositive() {
			changes.add(vote.PropId, vote.TimeWeightedShares.TokenGroupId, piece.shares)
		}
	}

	return k.ApplyProposalPowerChanges(ctx, roundID, trancheID, changes)
}

// recastMergedVote removes the current round votes of the merged locks and
// lets the new lock vote in their place, but only when every merged lock was
// free to vote this round and all their votes target the same proposal.
func (k Keeper) recastMergedVote(
	ctx context.Context,
	constants types.Constants,
	roundID, trancheID uint64,
	lockIDs []uint64,
	newLockID uint64,
) error {
	unvoteResult, err := k.ProcessUnvotes(ctx, roundID, trancheID, lockIDs, nil)
	if err != nil {
		return err
	}

	// Removing a current round vote also removes its allowed round marker,
	// so any marker still present binds the lock through an earlier round's
	// deployment.
	allVotingAllowed := true
	maxAllowedRound := uint64(0)

	for _, lockID := range lockIDs {
		allowedRound, err := k.getVotingAllowedRound(ctx, trancheID, lockID)
		if err != nil {
			return err
		}
		if allowedRound > roundID {
			allVotingAllowed = false
		}
		if allowedRound > maxAllowedRound {
			maxAllowedRound = allowedRound
		}
	}

	// Constraints of predecessors that did not vote this round still need
	// dropping, so the new lock is the only one carrying them.
	for _, lockID := range lockIDs {
		if err := k.VotingAllowedRound.Remove(ctx, collections.Join(trancheID, lockID)); err != nil &&
			!errors.Is(err, collections.ErrNotFound) {
			return err
		}
	}

	if err := k.ApplyProposalPowerChanges(ctx, roundID, trancheID, unvoteResult.PowerChanges); err != nil {
		return err
	}

	targetProposal, sameTarget := commonVoteTarget(unvoteResult.RemovedVotes)

	if allVotingAllowed && sameTarget {
		voteResult, err := k.ProcessVotes(
			ctx, constants, roundID, trancheID,
			[]types.ProposalToLockups{{ProposalId: targetProposal, LockIds: []uint64{newLockID}}},
			nil,
		)
		if err != nil {
			return err
		}

		return k.ApplyProposalPowerChanges(ctx, roundID, trancheID, voteResult.PowerChanges)
	}

	if maxAllowedRound > roundID {
		return k.VotingAllowedRound.Set(
			ctx, collections.Join(trancheID, newLockID), maxAllowedRound,
		)
	}

	return nil
}

// commonVoteTarget returns the proposal all removed votes point at, if they
// exist and agree.
func commonVoteTarget(removedVotes map[uint64]types.Vote) (uint64, bool) {
	if len(removedVotes) == 0 {
		return 0, false
	}

	var (
		target uint64
		first  = true
	)

	for _, vote := range removedVotes {
		if first {
			target = vote.PropId
			first = false
			continue
		}

		if vote.PropId != target {
			return 0, false
		}
	}

	return target, true
}

func dedupeLockIDs(lockIDs []uint64) []uint64 {
	seen := map[uint64]bool{}
	deduped := make([]uint64, 0, len(lockIDs))

	for _, lockID := range lockIDs {
		if seen[lockID] {
			continue
		}
		seen[lockID] = true
		deduped = append(deduped, lockID)
	}

	sort.Slice(deduped, func(i, j int) bool { return deduped[i] < deduped[j] })

	return deduped
}
