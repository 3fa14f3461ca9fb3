package keeper_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"cosmossdk.io/collections"
	"cosmossdk.io/math"

	"github.com/tidal-zone/lockvote/x/lockvote/types"
)

func Test_Vote(t *testing.T) {
	ctx, k, bankKeeper := setupDefault(t)

	lock := lockFor(t, ctx, k, bankKeeper, addrs[0], 1000, 3)
	createProposal(t, ctx, k, 0, 1, 1, 1)

	votedIDs, skippedIDs, err := k.Vote(ctx, addrs[0], 1, []types.ProposalToLockups{
		{ProposalId: 1, LockIds: []uint64{lock.LockId}},
	})
	require.NoError(t, err)
	require.Equal(t, []uint64{lock.LockId}, votedIDs)
	require.Empty(t, skippedIDs)

	vote, err := k.Votes.Get(ctx, voteKey(0, 1, lock.LockId))
	require.NoError(t, err)
	require.Equal(t, uint64(1), vote.PropId)
	require.Equal(t, baseGroup, vote.TimeWeightedShares.TokenGroupId)
	require.Equal(t, math.LegacyNewDec(1500), vote.TimeWeightedShares.Shares)

	power, err := k.GetTotalPowerForProposal(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, math.LegacyNewDec(1500), power)

	proposal, err := k.Proposals.Get(ctx, proposalKey(0, 1, 1))
	require.NoError(t, err)
	require.Equal(t, math.NewInt(1500), proposal.Power)

	// The lock is released for voting again after the deployment round.
	allowedRound, err := k.VotingAllowedRound.Get(ctx, collections.Join(uint64(1), lock.LockId))
	require.NoError(t, err)
	require.Equal(t, uint64(1), allowedRound)
}

func Test_Vote_Switch(t *testing.T) {
	ctx, k, bankKeeper := setupDefault(t)

	lock := lockFor(t, ctx, k, bankKeeper, addrs[0], 1000, 3)
	createProposal(t, ctx, k, 0, 1, 1, 1)
	createProposal(t, ctx, k, 0, 1, 2, 2)

	_, _, err := k.Vote(ctx, addrs[0], 1, []types.ProposalToLockups{
		{ProposalId: 1, LockIds: []uint64{lock.LockId}},
	})
	require.NoError(t, err)

	// Switching within the same round moves the shares over entirely.
	_, _, err = k.Vote(ctx, addrs[0], 1, []types.ProposalToLockups{
		{ProposalId: 2, LockIds: []uint64{lock.LockId}},
	})
	require.NoError(t, err)

	power, err := k.GetTotalPowerForProposal(ctx, 1)
	require.NoError(t, err)
	require.True(t, power.IsZero())

	power, err = k.GetTotalPowerForProposal(ctx, 2)
	require.NoError(t, err)
	require.Equal(t, math.LegacyNewDec(1500), power)

	allowedRound, err := k.VotingAllowedRound.Get(ctx, collections.Join(uint64(1), lock.LockId))
	require.NoError(t, err)
	require.Equal(t, uint64(2), allowedRound)
}

func Test_Vote_SameProposalSkipped(t *testing.T) {
	ctx, k, bankKeeper := setupDefault(t)

	lock := lockFor(t, ctx, k, bankKeeper, addrs[0], 1000, 3)
	createProposal(t, ctx, k, 0, 1, 1, 1)

	_, _, err := k.Vote(ctx, addrs[0], 1, []types.ProposalToLockups{
		{ProposalId: 1, LockIds: []uint64{lock.LockId}},
	})
	require.NoError(t, err)

	votedIDs, skippedIDs, err := k.Vote(ctx, addrs[0], 1, []types.ProposalToLockups{
		{ProposalId: 1, LockIds: []uint64{lock.LockId}},
	})
	require.NoError(t, err)
	require.Empty(t, votedIDs)
	require.Equal(t, []uint64{lock.LockId}, skippedIDs)

	power, err := k.GetTotalPowerForProposal(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, math.LegacyNewDec(1500), power)
}

func Test_Vote_DeploymentOutlastsLock(t *testing.T) {
	ctx, k, bankKeeper := setupDefault(t)

	lock := lockFor(t, ctx, k, bankKeeper, addrs[0], 1000, 3)
	// The deployment runs through round 3, past the lock's expiry.
	createProposal(t, ctx, k, 0, 1, 1, 4)

	votedIDs, skippedIDs, err := k.Vote(ctx, addrs[0], 1, []types.ProposalToLockups{
		{ProposalId: 1, LockIds: []uint64{lock.LockId}},
	})
	require.NoError(t, err)
	require.Empty(t, votedIDs)
	require.Equal(t, []uint64{lock.LockId}, skippedIDs)

	has, err := k.Votes.Has(ctx, voteKey(0, 1, lock.LockId))
	require.NoError(t, err)
	require.False(t, has)
}

func Test_Vote_ZeroShareLockSkipped(t *testing.T) {
	ctx, k, bankKeeper := setupDefault(t)

	// Expires exactly at the end of round 0, carrying no power in it.
	lock := lockFor(t, ctx, k, bankKeeper, addrs[0], 1000, 1)
	createProposal(t, ctx, k, 0, 1, 1, 1)

	votedIDs, skippedIDs, err := k.Vote(ctx, addrs[0], 1, []types.ProposalToLockups{
		{ProposalId: 1, LockIds: []uint64{lock.LockId}},
	})
	require.NoError(t, err)
	require.Empty(t, votedIDs)
	require.Equal(t, []uint64{lock.LockId}, skippedIDs)
}

func Test_Vote_NotAllowedInDeploymentRounds(t *testing.T) {
	ctx, k, bankKeeper := setupDefault(t)
	constants := defaultConstants()

	lock := lockFor(t, ctx, k, bankKeeper, addrs[0], 1000, 3)
	createProposal(t, ctx, k, 0, 1, 1, 2)

	_, _, err := k.Vote(ctx, addrs[0], 1, []types.ProposalToLockups{
		{ProposalId: 1, LockIds: []uint64{lock.LockId}},
	})
	require.NoError(t, err)

	ctx = advanceBlock(ctx, constants.RoundLength)
	createProposal(t, ctx, k, 1, 1, 2, 1)

	// The two round deployment still binds the lock in round 1.
	_, _, err = k.Vote(ctx, addrs[0], 1, []types.ProposalToLockups{
		{ProposalId: 2, LockIds: []uint64{lock.LockId}},
	})
	require.ErrorIs(t, err, types.ErrVotingNotAllowed)
}

func Test_Vote_Validation(t *testing.T) {
	ctx, k, bankKeeper := setupDefault(t)

	lock := lockFor(t, ctx, k, bankKeeper, addrs[0], 1000, 3)
	createProposal(t, ctx, k, 0, 1, 1, 1)
	createProposal(t, ctx, k, 0, 1, 2, 1)

	_, _, err := k.Vote(ctx, addrs[0], 7, []types.ProposalToLockups{
		{ProposalId: 1, LockIds: []uint64{lock.LockId}},
	})
	require.ErrorIs(t, err, types.ErrTrancheNotFound)

	_, _, err = k.Vote(ctx, addrs[0], 1, []types.ProposalToLockups{
		{ProposalId: 1, LockIds: []uint64{lock.LockId}},
		{ProposalId: 1, LockIds: []uint64{lock.LockId}},
	})
	require.ErrorIs(t, err, types.ErrDuplicateProposalID)

	_, _, err = k.Vote(ctx, addrs[0], 1, []types.ProposalToLockups{
		{ProposalId: 1, LockIds: []uint64{lock.LockId}},
		{ProposalId: 2, LockIds: []uint64{lock.LockId}},
	})
	require.ErrorIs(t, err, types.ErrDuplicateLockID)

	_, _, err = k.Vote(ctx, addrs[0], 1, []types.ProposalToLockups{
		{ProposalId: 1, LockIds: nil},
	})
	require.ErrorIs(t, err, types.ErrEmptyVote)

	_, _, err = k.Vote(ctx, addrs[1], 1, []types.ProposalToLockups{
		{ProposalId: 1, LockIds: []uint64{lock.LockId}},
	})
	require.ErrorIs(t, err, types.ErrNotLockOwner)

	_, _, err = k.Vote(ctx, addrs[0], 1, []types.ProposalToLockups{
		{ProposalId: 99, LockIds: []uint64{lock.LockId}},
	})
	require.ErrorIs(t, err, types.ErrProposalNotFound)
}

func Test_Unvote(t *testing.T) {
	ctx, k, bankKeeper := setupDefault(t)

	lock := lockFor(t, ctx, k, bankKeeper, addrs[0], 1000, 3)
	createProposal(t, ctx, k, 0, 1, 1, 1)

	_, _, err := k.Vote(ctx, addrs[0], 1, []types.ProposalToLockups{
		{ProposalId: 1, LockIds: []uint64{lock.LockId}},
	})
	require.NoError(t, err)

	require.NoError(t, k.Unvote(ctx, addrs[0], 1, []uint64{lock.LockId}))

	has, err := k.Votes.Has(ctx, voteKey(0, 1, lock.LockId))
	require.NoError(t, err)
	require.False(t, has)

	has, err = k.VotingAllowedRound.Has(ctx, collections.Join(uint64(1), lock.LockId))
	require.NoError(t, err)
	require.False(t, has)

	power, err := k.GetTotalPowerForProposal(ctx, 1)
	require.NoError(t, err)
	require.True(t, power.IsZero())

	proposal, err := k.Proposals.Get(ctx, proposalKey(0, 1, 1))
	require.NoError(t, err)
	require.True(t, proposal.Power.IsZero())

	// Unvoting a lock that never voted is a no-op.
	require.NoError(t, k.Unvote(ctx, addrs[0], 1, []uint64{lock.LockId}))
}
