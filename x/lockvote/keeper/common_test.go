package keeper_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"cosmossdk.io/collections"
	"cosmossdk.io/log"
	"cosmossdk.io/math"
	"cosmossdk.io/store"
	"cosmossdk.io/store/metrics"
	storetypes "cosmossdk.io/store/types"

	cmtproto "github.com/cometbft/cometbft/proto/tendermint/types"
	dbm "github.com/cosmos/cosmos-db"

	"github.com/cosmos/cosmos-sdk/runtime"
	sdk "github.com/cosmos/cosmos-sdk/types"
	authtypes "github.com/cosmos/cosmos-sdk/x/auth/types"
	govtypes "github.com/cosmos/cosmos-sdk/x/gov/types"

	"github.com/tidal-zone/lockvote/x/lockvote/keeper"
	"github.com/tidal-zone/lockvote/x/lockvote/types"
)

const (
	baseDenom  = "utoken"
	derivDenom = "stutoken"
	baseGroup  = "base_group"
	derivGroup = "deriv_group"
)

var (
	genesisTime = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	addrs = []sdk.AccAddress{
		sdk.AccAddress("addr1_______________"),
		sdk.AccAddress("addr2_______________"),
		sdk.AccAddress("addr3_______________"),
	}

	adminAddr    = sdk.AccAddress("admin_______________")
	receiverAddr = sdk.AccAddress("slash_receiver______")
)

// mockBankKeeper tracks module and account balances in memory.
type mockBankKeeper struct {
	moduleBalances  map[string]sdk.Coins
	accountBalances map[string]sdk.Coins
}

func newMockBankKeeper() *mockBankKeeper {
	return &mockBankKeeper{
		moduleBalances:  map[string]sdk.Coins{},
		accountBalances: map[string]sdk.Coins{},
	}
}

func (bk *mockBankKeeper) SendCoinsFromAccountToModule(_ context.Context, senderAddr sdk.AccAddress, recipientModule string, amt sdk.Coins) error {
	bk.accountBalances[senderAddr.String()] = bk.accountBalances[senderAddr.String()].Sub(amt...)
	bk.moduleBalances[recipientModule] = bk.moduleBalances[recipientModule].Add(amt...)
	return nil
}

func (bk *mockBankKeeper) SendCoinsFromModuleToAccount(_ context.Context, senderModule string, recipientAddr sdk.AccAddress, amt sdk.Coins) error {
	bk.moduleBalances[senderModule] = bk.moduleBalances[senderModule].Sub(amt...)
	bk.accountBalances[recipientAddr.String()] = bk.accountBalances[recipientAddr.String()].Add(amt...)
	return nil
}

func (bk *mockBankKeeper) fund(addr sdk.AccAddress, coins ...sdk.Coin) {
	bk.accountBalances[addr.String()] = bk.accountBalances[addr.String()].Add(coins...)
}

func (bk *mockBankKeeper) balanceOf(addr sdk.AccAddress, denom string) math.Int {
	return bk.accountBalances[addr.String()].AmountOf(denom)
}

func (bk *mockBankKeeper) moduleBalanceOf(denom string) math.Int {
	return bk.moduleBalances[types.ModuleName].AmountOf(denom)
}

func setupKeeper(t *testing.T) (sdk.Context, *keeper.Keeper, *mockBankKeeper) {
	t.Helper()

	key := storetypes.NewKVStoreKey(types.StoreKey)
	db := dbm.NewMemDB()

	cms := store.NewCommitMultiStore(db, log.NewNopLogger(), metrics.NewNoOpMetrics())
	cms.MountStoreWithDB(key, storetypes.StoreTypeIAVL, db)
	require.NoError(t, cms.LoadLatestVersion())

	ctx := sdk.NewContext(cms, cmtproto.Header{Time: genesisTime, Height: 1}, false, log.NewNopLogger())

	bankKeeper := newMockBankKeeper()
	authority := authtypes.NewModuleAddress(govtypes.ModuleName).String()
	k := keeper.NewKeeper(runtime.NewKVStoreService(key), bankKeeper, authority)

	return ctx, k, bankKeeper
}

func defaultConstants() types.Constants {
	return types.Constants{
		RoundLength:              30 * 24 * time.Hour,
		LockEpochLength:          30 * 24 * time.Hour,
		FirstRoundStart:          genesisTime,
		MaxLockedTokens:          math.NewInt(1_000_000_000),
		KnownUsersCap:            math.ZeroInt(),
		Paused:                   false,
		MaxDeploymentDuration:    12,
		RoundLockPowerSchedule:   types.DefaultRoundLockPowerSchedule(),
		SlashPercentageThreshold: math.LegacyNewDecWithPrec(5, 1),
		SlashTokensReceiverAddr:  receiverAddr.String(),
	}
}

// setupDefault prepares a keeper with active constants, a whitelist admin, a
// base token provider and one tranche.
func setupDefault(t *testing.T) (sdk.Context, *keeper.Keeper, *mockBankKeeper) {
	t.Helper()

	ctx, k, bankKeeper := setupKeeper(t)

	require.NoError(t, k.SetConstants(ctx, genesisTime, defaultConstants()))
	require.NoError(t, k.WhitelistAdmins.Set(ctx, []string{adminAddr.String()}))

	require.NoError(t, k.AddTokenInfoProvider(ctx, types.TokenInfoProvider{
		Id:           "base",
		Kind:         types.ProviderKindBase,
		Denom:        baseDenom,
		TokenGroupId: baseGroup,
	}, nil))

	require.NoError(t, k.Tranches.Set(ctx, 1, types.Tranche{Id: 1, Name: "main"}))

	return ctx, k, bankKeeper
}

// advanceBlock moves the context one block forward plus the given duration.
func advanceBlock(ctx sdk.Context, d time.Duration) sdk.Context {
	return ctx.
		WithBlockHeight(ctx.BlockHeight() + 1).
		WithBlockTime(ctx.BlockTime().Add(d))
}

func lockFor(t *testing.T, ctx sdk.Context, k *keeper.Keeper, bk *mockBankKeeper, owner sdk.AccAddress, amount int64, epochs int64) types.LockEntry {
	t.Helper()

	coin := sdk.NewCoin(baseDenom, math.NewInt(amount))
	bk.fund(owner, coin)

	lock, err := k.LockTokens(ctx, owner, coin, time.Duration(epochs)*defaultConstants().LockEpochLength)
	require.NoError(t, err)

	return lock
}

func createProposal(t *testing.T, ctx sdk.Context, k *keeper.Keeper, roundID, trancheID, proposalID, deploymentDuration uint64) {
	t.Helper()

	require.NoError(t, k.Proposals.Set(ctx, proposalKey(roundID, trancheID, proposalID), types.Proposal{
		RoundId:                 roundID,
		TrancheId:               trancheID,
		ProposalId:              proposalID,
		Title:                   "proposal",
		Power:                   math.ZeroInt(),
		DeploymentDuration:      deploymentDuration,
		MinimumLiquidityRequest: math.ZeroInt(),
	}))
}

func proposalKey(roundID, trancheID, proposalID uint64) collections.Triple[uint64, uint64, uint64] {
	return collections.Join3(roundID, trancheID, proposalID)
}

func voteKey(roundID, trancheID, lockID uint64) collections.Triple[uint64, uint64, uint64] {
	return collections.Join3(roundID, trancheID, lockID)
}
