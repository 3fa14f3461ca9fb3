package keeper_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tidal-zone/lockvote/x/lockvote/types"
)

func Test_GenesisRoundtrip(t *testing.T) {
	ctx, k, _ := setupKeeper(t)

	genState := &types.GenesisState{
		Constants: []types.ConstantsEntry{
			{ActivatedAt: genesisTime, Constants: defaultConstants()},
		},
		WhitelistAdmins: []string{adminAddr.String()},
		Tranches: []types.Tranche{
			{Id: 1, Name: "main"},
			{Id: 4, Name: "experimental", Metadata: "short lived deployments"},
		},
		TokenInfoProviders: []types.TokenInfoProvider{
			{Id: "base", Kind: types.ProviderKindBase, Denom: baseDenom, TokenGroupId: baseGroup},
		},
	}
	require.NoError(t, genState.Validate())
	require.NoError(t, k.InitGenesis(ctx, genState))

	constants, err := k.GetCurrentConstants(ctx)
	require.NoError(t, err)
	require.Equal(t, defaultConstants().MaxLockedTokens, constants.MaxLockedTokens)

	isAdmin, err := k.IsWhitelistAdmin(ctx, adminAddr.String())
	require.NoError(t, err)
	require.True(t, isAdmin)

	// New tranche ids continue past the highest imported one.
	nextTrancheID, err := k.NextTrancheID.Peek(ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(5), nextTrancheID)

	exported, err := k.ExportGenesis(ctx)
	require.NoError(t, err)
	require.Len(t, exported.Constants, 1)
	require.True(t, exported.Constants[0].ActivatedAt.Equal(genesisTime))
	require.Equal(t, genState.WhitelistAdmins, exported.WhitelistAdmins)
	require.Equal(t, genState.Tranches, exported.Tranches)
	require.Equal(t, genState.TokenInfoProviders, exported.TokenInfoProviders)
}

func Test_GenesisValidate(t *testing.T) {
	invalidConstants := defaultConstants()
	invalidConstants.RoundLength = -time.Hour

	genState := &types.GenesisState{
		Constants: []types.ConstantsEntry{
			{ActivatedAt: genesisTime, Constants: invalidConstants},
		},
	}
	require.Error(t, genState.Validate())

	genState = &types.GenesisState{
		Tranches: []types.Tranche{{Id: 1, Name: "a"}, {Id: 1, Name: "b"}},
	}
	require.Error(t, genState.Validate())

	genState = &types.GenesisState{
		WhitelistAdmins: []string{"not-an-address"},
	}
	require.Error(t, genState.Validate())

	require.NoError(t, types.DefaultGenesisState().Validate())
}
