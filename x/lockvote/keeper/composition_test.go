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

// buildLineage splits lock 0 (50000) into 1 (40000) and 2 (10000), splits
// lock 1 into 3 (20000) and 4 (20000), and merges 2 and 3 into 5 (30000).
func buildLineage(t *testing.T, ctx sdk.Context, k *keeper.Keeper, bankKeeper *mockBankKeeper) {
	t.Helper()

	lock := lockFor(t, ctx, k, bankKeeper, addrs[0], 50000, 3)

	_, err := k.SplitLock(ctx, addrs[0], lock.LockId, math.NewInt(10000))
	require.NoError(t, err)

	_, err = k.SplitLock(ctx, addrs[0], 1, math.NewInt(20000))
	require.NoError(t, err)

	mergedID, err := k.MergeLocks(ctx, addrs[0], []uint64{2, 3})
	require.NoError(t, err)
	require.Equal(t, uint64(5), mergedID)
}

func Test_GetCurrentLockComposition(t *testing.T) {
	ctx, k, bankKeeper := setupDefault(t)
	buildLineage(t, ctx, k, bankKeeper)

	// Lock 4 holds 20000 of the original 50000 and the merged lock 5 the
	// remaining 10000 + 20000.
	composition, err := k.GetCurrentLockComposition(ctx, 0)
	require.NoError(t, err)
	require.Equal(t, []types.LockSuccessor{
		{LockId: 4, Fraction: math.LegacyNewDecWithPrec(4, 1)},
		{LockId: 5, Fraction: math.LegacyNewDecWithPrec(6, 1)},
	}, composition)

	total := math.LegacyZeroDec()
	for _, successor := range composition {
		total = total.Add(successor.Fraction)
	}
	require.Equal(t, math.LegacyOneDec(), total)

	// An intermediate lock resolves only through its own subtree.
	composition, err = k.GetCurrentLockComposition(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, []types.LockSuccessor{
		{LockId: 4, Fraction: math.LegacyNewDecWithPrec(5, 1)},
		{LockId: 5, Fraction: math.LegacyNewDecWithPrec(5, 1)},
	}, composition)

	// A lock without successors is its own composition.
	composition, err = k.GetCurrentLockComposition(ctx, 4)
	require.NoError(t, err)
	require.Equal(t, []types.LockSuccessor{
		{LockId: 4, Fraction: math.LegacyOneDec()},
	}, composition)
}

func Test_GetLockAncestorDepth(t *testing.T) {
	ctx, k, bankKeeper := setupDefault(t)
	buildLineage(t, ctx, k, bankKeeper)

	depth, err := k.GetLockAncestorDepth(ctx, 0)
	require.NoError(t, err)
	require.Equal(t, uint64(0), depth)

	depth, err = k.GetLockAncestorDepth(ctx, 4)
	require.NoError(t, err)
	require.Equal(t, uint64(2), depth)

	// Lock 5 descends from lock 3, which is two generations down already.
	depth, err = k.GetLockAncestorDepth(ctx, 5)
	require.NoError(t, err)
	require.Equal(t, uint64(3), depth)
}

func Test_GetLockAncestorDepth_AgedOutAncestors(t *testing.T) {
	ctx, k, bankKeeper := setupDefault(t)
	buildLineage(t, ctx, k, bankKeeper)

	// Age out lock 1 only; lock 3 counts as fresh, so lock 5's depth comes
	// from the surviving chain through lock 2.
	require.NoError(t, k.LockRetiredAt.Set(ctx, 1, ctx.BlockTime().Add(-31*24*time.Hour)))

	depth, err := k.GetLockAncestorDepth(ctx, 5)
	require.NoError(t, err)
	require.Equal(t, uint64(2), depth)

	// With every direct parent aged out the lock counts as fresh.
	require.NoError(t, k.LockRetiredAt.Set(ctx, 2, ctx.BlockTime().Add(-31*24*time.Hour)))
	require.NoError(t, k.LockRetiredAt.Set(ctx, 3, ctx.BlockTime().Add(-31*24*time.Hour)))

	depth, err = k.GetLockAncestorDepth(ctx, 5)
	require.NoError(t, err)
	require.Equal(t, uint64(0), depth)
}
