package keeper_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"cosmossdk.io/math"

	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/tidal-zone/lockvote/x/lockvote/types"
)

func Test_BuyoutPendingSlash(t *testing.T) {
	ctx, k, bankKeeper := setupDefault(t)

	lock := lockFor(t, ctx, k, bankKeeper, addrs[0], 1000, 3)
	require.NoError(t, k.PendingSlashes.Set(ctx, lock.LockId, math.NewInt(300)))

	payment := sdk.NewCoin(baseDenom, math.NewInt(500))
	bankKeeper.fund(addrs[0], payment)

	boughtOut, refund, err := k.BuyoutPendingSlash(ctx, addrs[0], lock.LockId, sdk.NewCoins(payment))
	require.NoError(t, err)
	require.Equal(t, math.NewInt(300), boughtOut)
	require.Equal(t, math.NewInt(200), refund.AmountOf(baseDenom))

	has, err := k.PendingSlashes.Has(ctx, lock.LockId)
	require.NoError(t, err)
	require.False(t, has)

	require.Equal(t, math.NewInt(300), bankKeeper.balanceOf(receiverAddr, baseDenom))
	require.Equal(t, math.NewInt(200), bankKeeper.balanceOf(addrs[0], baseDenom))

	// The lock itself stays untouched.
	unchanged, err := k.Locks.Get(ctx, lock.LockId)
	require.NoError(t, err)
	require.Equal(t, math.NewInt(1000), unchanged.Funds.Amount)
}

func Test_BuyoutPendingSlash_Partial(t *testing.T) {
	ctx, k, bankKeeper := setupDefault(t)

	lock := lockFor(t, ctx, k, bankKeeper, addrs[0], 1000, 3)
	require.NoError(t, k.PendingSlashes.Set(ctx, lock.LockId, math.NewInt(300)))

	payment := sdk.NewCoin(baseDenom, math.NewInt(100))
	bankKeeper.fund(addrs[0], payment)

	boughtOut, refund, err := k.BuyoutPendingSlash(ctx, addrs[0], lock.LockId, sdk.NewCoins(payment))
	require.NoError(t, err)
	require.Equal(t, math.NewInt(100), boughtOut)
	require.True(t, refund.IsZero())

	pending, err := k.PendingSlashes.Get(ctx, lock.LockId)
	require.NoError(t, err)
	require.Equal(t, math.NewInt(200), pending)
}

func Test_BuyoutPendingSlash_OtherDenom(t *testing.T) {
	ctx, k, bankKeeper := setupDefault(t)

	require.NoError(t, k.AddTokenInfoProvider(ctx, types.TokenInfoProvider{
		Id:           "deriv",
		Kind:         types.ProviderKindDerivative,
		Denom:        derivDenom,
		TokenGroupId: derivGroup,
	}, nil))
	require.NoError(t, k.RegisterTokenRatios(ctx, 0, 0, []types.TokenRatio{
		{TokenGroupId: derivGroup, Ratio: math.LegacyNewDecWithPrec(15, 1)},
	}))

	lock := lockFor(t, ctx, k, bankKeeper, addrs[0], 1000, 3)
	require.NoError(t, k.PendingSlashes.Set(ctx, lock.LockId, math.NewInt(300)))

	// 1.5 base units per derivative unit: 200 derivative tokens cover the
	// whole 300 pending.
	payment := sdk.NewCoin(derivDenom, math.NewInt(500))
	bankKeeper.fund(addrs[0], payment)

	boughtOut, refund, err := k.BuyoutPendingSlash(ctx, addrs[0], lock.LockId, sdk.NewCoins(payment))
	require.NoError(t, err)
	require.Equal(t, math.NewInt(300), boughtOut)
	require.Equal(t, math.NewInt(300), refund.AmountOf(derivDenom))

	require.Equal(t, math.NewInt(200), bankKeeper.balanceOf(receiverAddr, derivDenom))
}

func Test_BuyoutPendingSlash_NoPendingSlash(t *testing.T) {
	ctx, k, bankKeeper := setupDefault(t)

	lock := lockFor(t, ctx, k, bankKeeper, addrs[0], 1000, 3)

	payment := sdk.NewCoin(baseDenom, math.NewInt(100))
	bankKeeper.fund(addrs[0], payment)

	_, _, err := k.BuyoutPendingSlash(ctx, addrs[0], lock.LockId, sdk.NewCoins(payment))
	require.ErrorIs(t, err, types.ErrNoPendingSlash)

	_, _, err = k.BuyoutPendingSlash(ctx, addrs[1], lock.LockId, sdk.NewCoins(payment))
	require.ErrorIs(t, err, types.ErrNotLockOwner)

	_, _, err = k.BuyoutPendingSlash(ctx, addrs[0], 99, sdk.NewCoins(payment))
	require.ErrorIs(t, err, types.ErrLockNotFound)
}
