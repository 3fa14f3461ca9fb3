package keeper_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"cosmossdk.io/collections"
	"cosmossdk.io/math"

	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/tidal-zone/lockvote/x/lockvote/types"
)

func Test_LockTokens(t *testing.T) {
	ctx, k, bankKeeper := setupDefault(t)
	constants := defaultConstants()

	lock := lockFor(t, ctx, k, bankKeeper, addrs[0], 1000, 3)

	require.Equal(t, uint64(0), lock.LockId)
	require.Equal(t, addrs[0].String(), lock.Owner)
	require.Equal(t, math.NewInt(1000), lock.Funds.Amount)
	require.Equal(t, ctx.BlockTime().Add(3*constants.LockEpochLength), lock.LockEnd)

	require.Equal(t, math.NewInt(1000), bankKeeper.moduleBalanceOf(baseDenom))
	require.True(t, bankKeeper.balanceOf(addrs[0], baseDenom).IsZero())

	lockedTokens, err := k.LockedTokens.Get(ctx)
	require.NoError(t, err)
	require.Equal(t, math.NewInt(1000), lockedTokens)

	userLocks, err := k.UserLocks.Get(ctx, addrs[0].String())
	require.NoError(t, err)
	require.Equal(t, []uint64{0}, userLocks)

	// Two epochs remain at the end of round 0 (1.5x), one at the end of
	// round 1 (1x), and the lock expires exactly at the end of round 2.
	power, err := k.GetTotalPowerForRound(ctx, 0)
	require.NoError(t, err)
	require.Equal(t, math.NewInt(1500), power)

	power, err = k.GetTotalPowerForRound(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, math.NewInt(1000), power)

	power, err = k.GetTotalPowerForRound(ctx, 2)
	require.NoError(t, err)
	require.True(t, power.IsZero())
}

func Test_LockTokens_InvalidDuration(t *testing.T) {
	ctx, k, bankKeeper := setupDefault(t)

	coin := sdk.NewCoin(baseDenom, math.NewInt(1000))
	bankKeeper.fund(addrs[0], coin)

	// Two epochs has no schedule entry; only 1, 3, 6 and 12 do.
	_, err := k.LockTokens(ctx, addrs[0], coin, 2*defaultConstants().LockEpochLength)
	require.ErrorIs(t, err, types.ErrInvalidLockDuration)

	_, err = k.LockTokens(ctx, addrs[0], coin, time.Hour)
	require.ErrorIs(t, err, types.ErrInvalidLockDuration)
}

func Test_LockTokens_UnknownDenom(t *testing.T) {
	ctx, k, bankKeeper := setupDefault(t)

	coin := sdk.NewCoin("unknown", math.NewInt(1000))
	bankKeeper.fund(addrs[0], coin)

	_, err := k.LockTokens(ctx, addrs[0], coin, defaultConstants().LockEpochLength)
	require.ErrorIs(t, err, types.ErrInvalidDenom)
}

func Test_LockTokens_CapReached(t *testing.T) {
	ctx, k, bankKeeper := setupKeeper(t)

	constants := defaultConstants()
	constants.MaxLockedTokens = math.NewInt(1500)
	require.NoError(t, k.SetConstants(ctx, genesisTime, constants))
	require.NoError(t, k.AddTokenInfoProvider(ctx, types.TokenInfoProvider{
		Id:           "base",
		Kind:         types.ProviderKindBase,
		Denom:        baseDenom,
		TokenGroupId: baseGroup,
	}, nil))

	lockFor(t, ctx, k, bankKeeper, addrs[0], 1000, 1)

	coin := sdk.NewCoin(baseDenom, math.NewInt(1000))
	bankKeeper.fund(addrs[1], coin)

	_, err := k.LockTokens(ctx, addrs[1], coin, constants.LockEpochLength)
	require.ErrorIs(t, err, types.ErrLockLimitReached)

	// The failed attempt must not move funds.
	require.Equal(t, math.NewInt(1000), bankKeeper.balanceOf(addrs[1], baseDenom))
}

func Test_RefreshLockDuration(t *testing.T) {
	ctx, k, bankKeeper := setupDefault(t)
	constants := defaultConstants()

	lock := lockFor(t, ctx, k, bankKeeper, addrs[0], 1000, 1)

	// Expiring exactly at the end of round 0 means no power yet.
	power, err := k.GetTotalPowerForRound(ctx, 0)
	require.NoError(t, err)
	require.True(t, power.IsZero())

	// The new expiry must be strictly later.
	err = k.RefreshLockDuration(ctx, addrs[0], []uint64{lock.LockId}, constants.LockEpochLength)
	require.ErrorIs(t, err, types.ErrInvalidLockDuration)

	require.NoError(t, k.RefreshLockDuration(ctx, addrs[0], []uint64{lock.LockId}, 3*constants.LockEpochLength))

	refreshed, err := k.Locks.Get(ctx, lock.LockId)
	require.NoError(t, err)
	require.Equal(t, ctx.BlockTime().Add(3*constants.LockEpochLength), refreshed.LockEnd)

	power, err = k.GetTotalPowerForRound(ctx, 0)
	require.NoError(t, err)
	require.Equal(t, math.NewInt(1500), power)

	power, err = k.GetTotalPowerForRound(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, math.NewInt(1000), power)

	err = k.RefreshLockDuration(ctx, addrs[1], []uint64{lock.LockId}, 6*constants.LockEpochLength)
	require.ErrorIs(t, err, types.ErrNotLockOwner)
}

func Test_UnlockTokens(t *testing.T) {
	ctx, k, bankKeeper := setupDefault(t)
	constants := defaultConstants()

	lock := lockFor(t, ctx, k, bankKeeper, addrs[0], 1000, 1)

	// Still locked: nothing to release.
	unlockedIDs, released, err := k.UnlockTokens(ctx, addrs[0], nil)
	require.NoError(t, err)
	require.Empty(t, unlockedIDs)
	require.True(t, released.IsZero())

	ctx = advanceBlock(ctx, constants.LockEpochLength)

	unlockedIDs, released, err = k.UnlockTokens(ctx, addrs[0], nil)
	require.NoError(t, err)
	require.Equal(t, []uint64{lock.LockId}, unlockedIDs)
	require.Equal(t, math.NewInt(1000), released.AmountOf(baseDenom))

	require.Equal(t, math.NewInt(1000), bankKeeper.balanceOf(addrs[0], baseDenom))
	require.True(t, bankKeeper.moduleBalanceOf(baseDenom).IsZero())

	has, err := k.Locks.Has(ctx, lock.LockId)
	require.NoError(t, err)
	require.False(t, has)

	lockedTokens, err := k.LockedTokens.Get(ctx)
	require.NoError(t, err)
	require.True(t, lockedTokens.IsZero())
}

func Test_UnlockTokens_SkipsPendingSlash(t *testing.T) {
	ctx, k, bankKeeper := setupDefault(t)
	constants := defaultConstants()

	lock := lockFor(t, ctx, k, bankKeeper, addrs[0], 1000, 1)
	require.NoError(t, k.PendingSlashes.Set(ctx, lock.LockId, math.NewInt(100)))

	ctx = advanceBlock(ctx, constants.LockEpochLength)

	unlockedIDs, _, err := k.UnlockTokens(ctx, addrs[0], nil)
	require.NoError(t, err)
	require.Empty(t, unlockedIDs)
}

func Test_UnlockTokens_SkipsVotingBoundLocks(t *testing.T) {
	ctx, k, bankKeeper := setupDefault(t)
	constants := defaultConstants()

	lock := lockFor(t, ctx, k, bankKeeper, addrs[0], 1000, 1)

	// The lock voted for a proposal whose deployment runs two more rounds.
	require.NoError(t, k.VotingAllowedRound.Set(ctx, collections.Join(uint64(1), lock.LockId), uint64(3)))

	ctx = advanceBlock(ctx, constants.LockEpochLength)

	unlockedIDs, _, err := k.UnlockTokens(ctx, addrs[0], nil)
	require.NoError(t, err)
	require.Empty(t, unlockedIDs)

	// Once the deployment concluded the lock unlocks normally.
	ctx = advanceBlock(ctx, 2*constants.RoundLength)

	unlockedIDs, _, err = k.UnlockTokens(ctx, addrs[0], nil)
	require.NoError(t, err)
	require.Equal(t, []uint64{lock.LockId}, unlockedIDs)
}

func Test_GetUserVotingPower(t *testing.T) {
	ctx, k, bankKeeper := setupDefault(t)
	constants := defaultConstants()

	lockFor(t, ctx, k, bankKeeper, addrs[0], 1000, 3)
	lockFor(t, ctx, k, bankKeeper, addrs[0], 500, 1)

	// The one epoch lock expires exactly when round 0 ends, so only the
	// longer lock counts, at 1.5x.
	power, err := k.GetUserVotingPower(ctx, constants, addrs[0].String(), 0)
	require.NoError(t, err)
	require.Equal(t, math.NewInt(1500), power)

	power, err = k.GetUserVotingPower(ctx, constants, addrs[0].String(), 1)
	require.NoError(t, err)
	require.Equal(t, math.NewInt(1000), power)

	power, err = k.GetUserVotingPower(ctx, constants, addrs[1].String(), 0)
	require.NoError(t, err)
	require.True(t, power.IsZero())
}
