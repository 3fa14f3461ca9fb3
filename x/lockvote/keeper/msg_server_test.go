package keeper_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"cosmossdk.io/math"

	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/tidal-zone/lockvote/x/lockvote/keeper"
	"github.com/tidal-zone/lockvote/x/lockvote/types"
)

func Test_MsgServer_LockTokens(t *testing.T) {
	ctx, k, bankKeeper := setupDefault(t)
	ms := keeper.NewMsgServerImpl(k)

	coin := sdk.NewCoin(baseDenom, math.NewInt(1000))
	bankKeeper.fund(addrs[0], coin)

	resp, err := ms.LockTokens(ctx, &types.MsgLockTokens{
		Sender:       addrs[0].String(),
		Amount:       coin,
		LockDuration: 3 * defaultConstants().LockEpochLength,
	})
	require.NoError(t, err)
	require.Equal(t, uint64(0), resp.LockId)

	_, err = ms.LockTokens(ctx, &types.MsgLockTokens{
		Sender:       "not-an-address",
		Amount:       coin,
		LockDuration: defaultConstants().LockEpochLength,
	})
	require.Error(t, err)
}

func Test_MsgServer_PausedRejectsUserOps(t *testing.T) {
	ctx, k, bankKeeper := setupDefault(t)
	ms := keeper.NewMsgServerImpl(k)

	coin := sdk.NewCoin(baseDenom, math.NewInt(1000))
	bankKeeper.fund(addrs[0], coin)

	paused := defaultConstants()
	paused.Paused = true
	_, err := ms.UpdateConstants(ctx, &types.MsgUpdateConstants{
		Sender:      adminAddr.String(),
		ActivatedAt: ctx.BlockTime(),
		Constants:   paused,
	})
	require.NoError(t, err)

	_, err = ms.LockTokens(ctx, &types.MsgLockTokens{
		Sender:       addrs[0].String(),
		Amount:       coin,
		LockDuration: 3 * defaultConstants().LockEpochLength,
	})
	require.ErrorIs(t, err, types.ErrPaused)

	_, err = ms.Vote(ctx, &types.MsgVote{
		Sender:    addrs[0].String(),
		TrancheId: 1,
		ProposalsVotes: []types.ProposalToLockups{
			{ProposalId: 1, LockIds: []uint64{0}},
		},
	})
	require.ErrorIs(t, err, types.ErrPaused)

	// Admin operations keep working, so the pause can be lifted.
	ctx = advanceBlock(ctx, time.Minute)
	_, err = ms.UpdateConstants(ctx, &types.MsgUpdateConstants{
		Sender:      adminAddr.String(),
		ActivatedAt: ctx.BlockTime(),
		Constants:   defaultConstants(),
	})
	require.NoError(t, err)

	_, err = ms.LockTokens(ctx, &types.MsgLockTokens{
		Sender:       addrs[0].String(),
		Amount:       coin,
		LockDuration: 3 * defaultConstants().LockEpochLength,
	})
	require.NoError(t, err)
}

func Test_MsgServer_AdminGating(t *testing.T) {
	ctx, k, _ := setupDefault(t)
	ms := keeper.NewMsgServerImpl(k)

	_, err := ms.CreateTranche(ctx, &types.MsgCreateTranche{
		Sender: addrs[0].String(),
		Name:   "sneaky",
	})
	require.ErrorIs(t, err, types.ErrUnauthorized)

	resp, err := ms.CreateTranche(ctx, &types.MsgCreateTranche{
		Sender: adminAddr.String(),
		Name:   "second",
	})
	require.NoError(t, err)

	tranche, err := k.Tranches.Get(ctx, resp.TrancheId)
	require.NoError(t, err)
	require.Equal(t, "second", tranche.Name)
}

func Test_MsgServer_CreateProposal(t *testing.T) {
	ctx, k, _ := setupDefault(t)
	ms := keeper.NewMsgServerImpl(k)

	resp, err := ms.CreateProposal(ctx, &types.MsgCreateProposal{
		Sender:             adminAddr.String(),
		TrancheId:          1,
		Title:              "deploy liquidity",
		DeploymentDuration: 2,
	})
	require.NoError(t, err)

	proposal, err := k.Proposals.Get(ctx, proposalKey(0, 1, resp.ProposalId))
	require.NoError(t, err)
	require.Equal(t, "deploy liquidity", proposal.Title)
	require.Equal(t, uint64(2), proposal.DeploymentDuration)
	require.True(t, proposal.Power.IsZero())
	require.True(t, proposal.MinimumLiquidityRequest.IsZero())

	// Deployments cannot outlast the configured maximum.
	_, err = ms.CreateProposal(ctx, &types.MsgCreateProposal{
		Sender:             adminAddr.String(),
		TrancheId:          1,
		Title:              "too long",
		DeploymentDuration: defaultConstants().MaxDeploymentDuration + 1,
	})
	require.Error(t, err)
}
