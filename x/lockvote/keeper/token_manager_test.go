package keeper_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"cosmossdk.io/math"

	"github.com/tidal-zone/lockvote/x/lockvote/types"
)

func Test_ResolveDenomTokenGroup(t *testing.T) {
	ctx, k, _ := setupKeeper(t)

	_, err := k.ResolveDenomTokenGroup(ctx, 0, baseDenom)
	require.ErrorIs(t, err, types.ErrNoTokenInfoProviders)

	require.NoError(t, k.AddTokenInfoProvider(ctx, types.TokenInfoProvider{
		Id:           "base",
		Kind:         types.ProviderKindBase,
		Denom:        baseDenom,
		TokenGroupId: baseGroup,
	}, nil))

	group, err := k.ResolveDenomTokenGroup(ctx, 0, baseDenom)
	require.NoError(t, err)
	require.Equal(t, baseGroup, group)

	_, err = k.ResolveDenomTokenGroup(ctx, 0, "unknown")
	require.ErrorIs(t, err, types.ErrInvalidDenom)

	err = k.AddTokenInfoProvider(ctx, types.TokenInfoProvider{
		Id:           "base",
		Kind:         types.ProviderKindBase,
		Denom:        baseDenom,
		TokenGroupId: baseGroup,
	}, nil)
	require.ErrorIs(t, err, types.ErrTokenInfoProviderExists)
}

func Test_DerivativeProvider_Ratios(t *testing.T) {
	ctx, k, _ := setupKeeper(t)

	require.NoError(t, k.AddTokenInfoProvider(ctx, types.TokenInfoProvider{
		Id:           "deriv",
		Kind:         types.ProviderKindDerivative,
		Denom:        derivDenom,
		TokenGroupId: derivGroup,
	}, nil))

	// Without a registered ratio the derivative denom does not resolve.
	_, err := k.ResolveDenomTokenGroup(ctx, 0, derivDenom)
	require.ErrorIs(t, err, types.ErrInvalidDenom)

	ratio, err := k.GetTokenDenomRatio(ctx, 0, derivDenom)
	require.NoError(t, err)
	require.True(t, ratio.IsZero())

	require.NoError(t, k.RegisterTokenRatios(ctx, 0, 0, []types.TokenRatio{
		{TokenGroupId: derivGroup, Ratio: math.LegacyNewDecWithPrec(12, 1)},
	}))

	group, err := k.ResolveDenomTokenGroup(ctx, 0, derivDenom)
	require.NoError(t, err)
	require.Equal(t, derivGroup, group)

	ratio, err = k.GetTokenDenomRatio(ctx, 0, derivDenom)
	require.NoError(t, err)
	require.Equal(t, math.LegacyNewDecWithPrec(12, 1), ratio)

	// Ratios are round scoped; the next round starts back at zero.
	ratio, err = k.GetTokenDenomRatio(ctx, 1, derivDenom)
	require.NoError(t, err)
	require.True(t, ratio.IsZero())
}

func Test_LsmProvider(t *testing.T) {
	ctx, k, _ := setupKeeper(t)

	require.NoError(t, k.AddTokenInfoProvider(ctx, types.TokenInfoProvider{
		Id:                         "ignored",
		Kind:                       types.ProviderKindLsm,
		MaxValidatorsParticipating: 100,
	}, map[string]string{
		"factory/val1/share": "val1",
	}))

	// LSM providers are stored under the fixed id.
	has, err := k.TokenInfoProviders.Has(ctx, types.LsmProviderID)
	require.NoError(t, err)
	require.True(t, has)

	_, err = k.ResolveDenomTokenGroup(ctx, 0, "factory/val1/share")
	require.ErrorIs(t, err, types.ErrInvalidDenom)

	require.NoError(t, k.RegisterTokenRatios(ctx, 0, 0, []types.TokenRatio{
		{TokenGroupId: "val1", Ratio: math.LegacyOneDec()},
	}))

	group, err := k.ResolveDenomTokenGroup(ctx, 0, "factory/val1/share")
	require.NoError(t, err)
	require.Equal(t, "val1", group)
}

func Test_BaseProviderRatioIsAlwaysOne(t *testing.T) {
	ctx, k, _ := setupDefault(t)

	ratio, err := k.GetTokenGroupRatio(ctx, 5, baseGroup)
	require.NoError(t, err)
	require.Equal(t, math.LegacyOneDec(), ratio)
}
