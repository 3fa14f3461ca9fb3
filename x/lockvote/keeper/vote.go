package keeper

import (
	"context"
	"errors"
	"sort"

	"cosmossdk.io/collections"

	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/tidal-zone/lockvote/x/lockvote/types"
)

// Vote casts votes for proposals of the tranche in the current round, using
// the sender's locks. A lock that already voted in the round switches its
// vote to the new proposal; its previous shares are removed first. Locks that
// cannot carry the vote are skipped rather than failing the whole message.
func (k Keeper) Vote(
	ctx context.Context,
	sender sdk.AccAddress,
	trancheID uint64,
	proposalsVotes []types.ProposalToLockups,
) ([]uint64, []uint64, error) {
	constants, err := k.GetCurrentConstants(ctx)
	if err != nil {
		return nil, nil, err
	}

	currentRoundID, err := k.ComputeCurrentRoundID(ctx, constants)
	if err != nil {
		return nil, nil, err
	}

	if err := k.validateTrancheExists(ctx, trancheID); err != nil {
		return nil, nil, err
	}

	lockIDs, targets, err := validateProposalsVotes(proposalsVotes)
	if err != nil {
		return nil, nil, err
	}

	if err := k.validateLockOwnership(ctx, sender.String(), lockIDs); err != nil {
		return nil, nil, err
	}

	unvoteResult, err := k.ProcessUnvotes(ctx, currentRoundID, trancheID, lockIDs, targets)
	if err != nil {
		return nil, nil, err
	}

	voteResult, err := k.ProcessVotes(
		ctx, constants, currentRoundID, trancheID, proposalsVotes, unvoteResult.SkippedLocks,
	)
	if err != nil {
		return nil, nil, err
	}

	changes := proposalPowerChanges{}
	changes.merge(unvoteResult.PowerChanges)
	changes.merge(voteResult.PowerChanges)

	if err := k.ApplyProposalPowerChanges(ctx, currentRoundID, trancheID, changes); err != nil {
		return nil, nil, err
	}

	if err := k.UpdateRoundHeightMaps(ctx, currentRoundID); err != nil {
		return nil, nil, err
	}

	return voteResult.VotedLockIDs, voteResult.SkippedLockIDs, nil
}

// Unvote withdraws the current round votes cast with the given locks.
func (k Keeper) Unvote(
	ctx context.Context,
	sender sdk.AccAddress,
	trancheID uint64,
	lockIDs []uint64,
) error {
	constants, err := k.GetCurrentConstants(ctx)
	if err != nil {
		return err
	}

	currentRoundID, err := k.ComputeCurrentRoundID(ctx, constants)
	if err != nil {
		return err
	}

	if err := k.validateTrancheExists(ctx, trancheID); err != nil {
		return err
	}

	if err := validateNoDuplicateLockIDs(lockIDs); err != nil {
		return err
	}

	if err := k.validateLockOwnership(ctx, sender.String(), lockIDs); err != nil {
		return err
	}

	unvoteResult, err := k.ProcessUnvotes(ctx, currentRoundID, trancheID, lockIDs, nil)
	if err != nil {
		return err
	}

	if err := k.ApplyProposalPowerChanges(ctx, currentRoundID, trancheID, unvoteResult.PowerChanges); err != nil {
		return err
	}

	return k.UpdateRoundHeightMaps(ctx, currentRoundID)
}

// UnvoteResult carries the outcome of removing votes for a set of locks.
type UnvoteResult struct {
	// RemovedVotes maps lock id to the vote that was removed for it.
	RemovedVotes map[uint64]types.Vote
	// SkippedLocks are locks whose existing vote already targets the
	// proposal they are about to vote for, so removing it would be wasted.
	SkippedLocks map[uint64]bool
	PowerChanges proposalPowerChanges
}

// ProcessUnvotes removes the current round votes of the given locks and
// accumulates the negative share deltas. When targetVotes assigns a lock a
// proposal and the existing vote already targets it, the vote is kept and the
// lock reported as skipped.
func (k Keeper) ProcessUnvotes(
	ctx context.Context,
	roundID, trancheID uint64,
	lockIDs []uint64,
	targetVotes map[uint64]uint64,
) (UnvoteResult, error) {
	result := UnvoteResult{
		RemovedVotes: map[uint64]types.Vote{},
		SkippedLocks: map[uint64]bool{},
		PowerChanges: proposalPowerChanges{},
	}

	for _, lockID := range lockIDs {
		key := collections.Join3(roundID, trancheID, lockID)

		vote, err := k.Votes.Get(ctx, key)
		if err != nil {
			if errors.Is(err, collections.ErrNotFound) {
				continue
			}

			return UnvoteResult{}, err
		}

		if target, ok := targetVotes[lockID]; ok && vote.PropId == target {
			result.SkippedLocks[lockID] = true
			continue
		}

		if vote.TimeWeightedShares.Shares.IsPositive() {
			result.PowerChanges.add(
				vote.PropId,
				vote.TimeWeightedShares.TokenGroupId,
				vote.TimeWeightedShares.Shares.Neg(),
			)
		}

		result.RemovedVotes[lockID] = vote

		if err := k.Votes.Remove(ctx, key); err != nil {
			return UnvoteResult{}, err
		}

		if err := k.VotingAllowedRound.Remove(ctx, collections.Join(trancheID, lockID)); err != nil &&
			!errors.Is(err, collections.ErrNotFound) {
			return UnvoteResult{}, err
		}
	}

	return result, nil
}

// VoteResult carries the outcome of casting votes for a set of locks.
type VoteResult struct {
	VotedLockIDs   []uint64
	SkippedLockIDs []uint64
	PowerChanges   proposalPowerChanges
}

// ProcessVotes writes votes for the given proposal to lock assignments and
// accumulates the positive share deltas. A lock is skipped when its token
// cannot be resolved, it carries no power in the round, or it expires before
// the proposal's deployment concludes. A lock that is still bound to an
// earlier vote's deployment fails the whole call.
func (k Keeper) ProcessVotes(
	ctx context.Context,
	constants types.Constants,
	roundID, trancheID uint64,
	proposalsVotes []types.ProposalToLockups,
	locksSkipped map[uint64]bool,
) (VoteResult, error) {
	result := VoteResult{PowerChanges: proposalPowerChanges{}}
	roundEnd := ComputeRoundEnd(constants, roundID)

	for _, proposalVotes := range proposalsVotes {
		proposal, err := k.Proposals.Get(
			ctx, collections.Join3(roundID, trancheID, proposalVotes.ProposalId),
		)
		if err != nil {
			if errors.Is(err, collections.ErrNotFound) {
				return VoteResult{}, types.ErrProposalNotFound.Wrapf(
					"proposal %d in round %d tranche %d", proposalVotes.ProposalId, roundID, trancheID)
			}

			return VoteResult{}, err
		}

		// The deployment spans the voting round itself plus the following
		// deployment duration minus one rounds.
		deploymentEnd := ComputeRoundEnd(constants, roundID+proposal.DeploymentDuration-1)

		for _, lockID := range proposalVotes.LockIds {
			if locksSkipped[lockID] {
				result.SkippedLockIDs = append(result.SkippedLockIDs, lockID)
				continue
			}

			allowedRound, err := k.getVotingAllowedRound(ctx, trancheID, lockID)
			if err != nil {
				return VoteResult{}, err
			}
			if allowedRound > roundID {
				return VoteResult{}, types.ErrVotingNotAllowed.Wrapf(
					"lock %d can vote again in round %d", lockID, allowedRound)
			}

			lock, err := k.Locks.Get(ctx, lockID)
			if err != nil {
				return VoteResult{}, err
			}

			tokenGroupID, err := k.ResolveDenomTokenGroup(ctx, roundID, lock.Funds.Denom)
			if err != nil {
				if errors.Is(err, types.ErrInvalidDenom) || errors.Is(err, types.ErrNoTokenInfoProviders) {
					result.SkippedLockIDs = append(result.SkippedLockIDs, lockID)
					continue
				}

				return VoteResult{}, err
			}

			shares := GetLockTimeWeightedShares(constants, roundEnd, lock)
			if shares.IsZero() {
				result.SkippedLockIDs = append(result.SkippedLockIDs, lockID)
				continue
			}

			if lock.LockEnd.Before(deploymentEnd) {
				result.SkippedLockIDs = append(result.SkippedLockIDs, lockID)
				continue
			}

			vote := types.Vote{
				PropId: proposalVotes.ProposalId,
				TimeWeightedShares: types.TokenGroupShares{
					TokenGroupId: tokenGroupID,
					Shares:       shares.ToLegacyDec(),
				},
			}

			if err := k.Votes.Set(ctx, collections.Join3(roundID, trancheID, lockID), vote); err != nil {
				return VoteResult{}, err
			}

			if err := k.VotingAllowedRound.Set(
				ctx, collections.Join(trancheID, lockID), roundID+proposal.DeploymentDuration,
			); err != nil {
				return VoteResult{}, err
			}

			result.PowerChanges.add(proposalVotes.ProposalId, tokenGroupID, shares.ToLegacyDec())
			result.VotedLockIDs = append(result.VotedLockIDs, lockID)
		}
	}

	return result, nil
}

func (k Keeper) validateTrancheExists(ctx context.Context, trancheID uint64) error {
	has, err := k.Tranches.Has(ctx, trancheID)
	if err != nil {
		return err
	}
	if !has {
		return types.ErrTrancheNotFound.Wrapf("tranche %d", trancheID)
	}

	return nil
}

func (k Keeper) validateLockOwnership(ctx context.Context, owner string, lockIDs []uint64) error {
	for _, lockID := range lockIDs {
		lock, err := k.Locks.Get(ctx, lockID)
		if err != nil {
			if errors.Is(err, collections.ErrNotFound) {
				return types.ErrLockNotFound.Wrapf("lock %d", lockID)
			}

			return err
		}

		if lock.Owner != owner {
			return types.ErrNotLockOwner.Wrapf("lock %d", lockID)
		}
	}

	return nil
}

// validateProposalsVotes flattens the assignments, rejecting duplicate lock
// or proposal ids, and returns the lock ids with their target proposals.
func validateProposalsVotes(proposalsVotes []types.ProposalToLockups) ([]uint64, map[uint64]uint64, error) {
	seenProposals := map[uint64]bool{}
	targets := map[uint64]uint64{}
	lockIDs := make([]uint64, 0)

	for _, proposalVotes := range proposalsVotes {
		if seenProposals[proposalVotes.ProposalId] {
			return nil, nil, types.ErrDuplicateProposalID
		}
		seenProposals[proposalVotes.ProposalId] = true

		if len(proposalVotes.LockIds) == 0 {
			return nil, nil, types.ErrEmptyVote
		}

		for _, lockID := range proposalVotes.LockIds {
			if _, ok := targets[lockID]; ok {
				return nil, nil, types.ErrDuplicateLockID
			}

			targets[lockID] = proposalVotes.ProposalId
			lockIDs = append(lockIDs, lockID)
		}
	}

	sort.Slice(lockIDs, func(i, j int) bool { return lockIDs[i] < lockIDs[j] })

	return lockIDs, targets, nil
}

func validateNoDuplicateLockIDs(lockIDs []uint64) error {
	seen := map[uint64]bool{}
	for _, lockID := range lockIDs {
		if seen[lockID] {
			return types.ErrDuplicateLockID
		}
		seen[lockID] = true
	}

	return nil
}
