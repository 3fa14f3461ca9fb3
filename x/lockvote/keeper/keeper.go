package keeper

import (
	"context"
	"time"

	"cosmossdk.io/collections"
	collcodec "cosmossdk.io/collections/codec"
	corestoretypes "cosmossdk.io/core/store"
	"cosmossdk.io/log"
	"cosmossdk.io/math"

	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/tidal-zone/lockvote/x/lockvote/types"
)

type Keeper struct {
	storeService corestoretypes.KVStoreService
	bankKeeper   types.BankKeeper

	// the address capable of executing governance-gated messages, typically
	// the gov module account
	authority string

	Schema collections.Schema

	NextLockID     collections.Sequence
	NextProposalID collections.Sequence
	NextTrancheID  collections.Sequence

	// Constants are keyed by activation timestamp (unix nanos); reads resolve
	// the entry with the highest activation timestamp not after block time.
	Constants       collections.Map[uint64, types.Constants]
	WhitelistAdmins collections.Item[[]string]
	LockedTokens    collections.Item[math.Int]

	Locks            SnapshotMap[uint64, types.LockEntry]
	UserLocks        SnapshotMap[string, []uint64]
	LockSuccessors   collections.Map[uint64, []types.LockSuccessor]
	LockPredecessors collections.Map[uint64, []uint64]
	PendingSlashes   collections.Map[uint64, math.Int]
	LockRetiredAt    collections.Map[uint64, time.Time]

	Tranches collections.Map[uint64, types.Tranche]
	// Proposals and Votes are keyed by (round_id, tranche_id, proposal_id)
	// and (round_id, tranche_id, lock_id) respectively.
	Proposals          collections.Map[collections.Triple[uint64, uint64, uint64], types.Proposal]
	Votes              collections.Map[collections.Triple[uint64, uint64, uint64], types.Vote]
	VotingAllowedRound collections.Map[collections.Pair[uint64, uint64], uint64]

	// Scaled shares are keyed by (round_id, token_group_id) and
	// (proposal_id, token_group_id); each slot holds ratio-independent shares
	// so powers can be recomputed when token group ratios change.
	ScaledRoundShares    collections.Map[collections.Pair[uint64, string], math.LegacyDec]
	ScaledProposalShares collections.Map[collections.Pair[uint64, string], math.LegacyDec]
	ProposalTotalPower   collections.Map[uint64, math.LegacyDec]
	RoundTotalPower      SnapshotMap[uint64, math.Int]

	RoundHeightRange         collections.Map[uint64, types.HeightRange]
	HeightToRound            collections.Map[uint64, uint64]
	SnapshotActivationHeight collections.Item[uint64]

	TokenInfoProviders collections.Map[string, types.TokenInfoProvider]
	TokenGroupRatios   collections.Map[collections.Pair[uint64, string], math.LegacyDec]
	LsmDenoms          collections.Map[string, string]
}

func NewKeeper(
	storeService corestoretypes.KVStoreService,
	bankKeeper types.BankKeeper,
	authority string,
) *Keeper {
	if _, err := sdk.AccAddressFromBech32(authority); err != nil {
		panic("invalid authority address: " + authority)
	}

	sb := collections.NewSchemaBuilder(storeService)

	k := &Keeper{
		storeService: storeService,
		bankKeeper:   bankKeeper,
		authority:    authority,

		NextLockID:     collections.NewSequence(sb, types.NextLockIDKey, "next_lock_id"),
		NextProposalID: collections.NewSequence(sb, types.NextProposalIDKey, "next_proposal_id"),
		NextTrancheID:  collections.NewSequence(sb, types.NextTrancheIDKey, "next_tranche_id"),

		Constants: collections.NewMap(
			sb, types.ConstantsPrefix, "constants",
			collections.Uint64Key, types.JSONValue[types.Constants]("constants"),
		),
		WhitelistAdmins: collections.NewItem(
			sb, types.WhitelistAdminsKey, "whitelist_admins",
			types.JSONValue[[]string]("whitelist_admins"),
		),
		LockedTokens: collections.NewItem(
			sb, types.LockedTokensKey, "locked_tokens", sdk.IntValue,
		),

		LockSuccessors: collections.NewMap(
			sb, types.LockSuccessorsPrefix, "lock_successors",
			collections.Uint64Key, types.JSONValue[[]types.LockSuccessor]("lock_successors"),
		),
		LockPredecessors: collections.NewMap(
			sb, types.LockPredecessorsPrefix, "lock_predecessors",
			collections.Uint64Key, types.JSONValue[[]uint64]("lock_predecessors"),
		),
		PendingSlashes: collections.NewMap(
			sb, types.PendingSlashesPrefix, "pending_slashes",
			collections.Uint64Key, sdk.IntValue,
		),
		LockRetiredAt: collections.NewMap(
			sb, types.LockRetiredAtPrefix, "lock_retired_at",
			collections.Uint64Key, collcodec.KeyToValueCodec(sdk.TimeKey),
		),

		Tranches: collections.NewMap(
			sb, types.TranchesPrefix, "tranches",
			collections.Uint64Key, types.JSONValue[types.Tranche]("tranches"),
		),
		Proposals: collections.NewMap(
			sb, types.ProposalsPrefix, "proposals",
			collections.TripleKeyCodec(collections.Uint64Key, collections.Uint64Key, collections.Uint64Key),
			types.JSONValue[types.Proposal]("proposals"),
		),
		Votes: collections.NewMap(
			sb, types.VotesPrefix, "votes",
			collections.TripleKeyCodec(collections.Uint64Key, collections.Uint64Key, collections.Uint64Key),
			types.JSONValue[types.Vote]("votes"),
		),
		VotingAllowedRound: collections.NewMap(
			sb, types.VotingAllowedRoundPrefix, "voting_allowed_round",
			collections.PairKeyCodec(collections.Uint64Key, collections.Uint64Key),
			collections.Uint64Value,
		),

		ScaledRoundShares: collections.NewMap(
			sb, types.ScaledRoundSharesPrefix, "scaled_round_shares",
			collections.PairKeyCodec(collections.Uint64Key, collections.StringKey),
			sdk.LegacyDecValue,
		),
		ScaledProposalShares: collections.NewMap(
			sb, types.ScaledProposalSharesPrefix, "scaled_proposal_shares",
			collections.PairKeyCodec(collections.Uint64Key, collections.StringKey),
			sdk.LegacyDecValue,
		),
		ProposalTotalPower: collections.NewMap(
			sb, types.ProposalTotalPowerPrefix, "proposal_total_power",
			collections.Uint64Key, sdk.LegacyDecValue,
		),

		RoundHeightRange: collections.NewMap(
			sb, types.RoundHeightRangePrefix, "round_height_range",
			collections.Uint64Key, types.JSONValue[types.HeightRange]("round_height_range"),
		),
		HeightToRound: collections.NewMap(
			sb, types.HeightToRoundPrefix, "height_to_round",
			collections.Uint64Key, collections.Uint64Value,
		),
		SnapshotActivationHeight: collections.NewItem(
			sb, types.SnapshotActivationHeightKey, "snapshot_activation_height",
			collections.Uint64Value,
		),

		TokenInfoProviders: collections.NewMap(
			sb, types.TokenInfoProvidersPrefix, "token_info_providers",
			collections.StringKey, types.JSONValue[types.TokenInfoProvider]("token_info_providers"),
		),
		TokenGroupRatios: collections.NewMap(
			sb, types.TokenGroupRatiosPrefix, "token_group_ratios",
			collections.PairKeyCodec(collections.Uint64Key, collections.StringKey),
			sdk.LegacyDecValue,
		),
		LsmDenoms: collections.NewMap(
			sb, types.LsmDenomsPrefix, "lsm_denoms",
			collections.StringKey, collections.StringValue,
		),
	}

	k.Locks = NewSnapshotMap(
		sb, types.LocksPrefix, types.LocksChangelogPrefix, "locks",
		collections.Uint64Key, types.JSONValue[types.LockEntry]("locks"),
		k.SnapshotActivationHeight,
	)
	k.UserLocks = NewSnapshotMap(
		sb, types.UserLocksPrefix, types.UserLocksChangelogPrefix, "user_locks",
		collections.StringKey, types.JSONValue[[]uint64]("user_locks"),
		k.SnapshotActivationHeight,
	)
	k.RoundTotalPower = NewSnapshotMap(
		sb, types.RoundTotalPowerPrefix, types.RoundTotalPowerChangelogPrefix, "round_total_power",
		collections.Uint64Key, sdk.IntValue,
		k.SnapshotActivationHeight,
	)

	schema, err := sb.Build()
	if err != nil {
		panic(err)
	}
	k.Schema = schema

	return k
}

// GetAuthority returns the x/lockvote module's authority.
func (k Keeper) GetAuthority() string {
	return k.authority
}

// Logger returns a module-specific logger.
func (k Keeper) Logger(ctx context.Context) log.Logger {
	sdkCtx := sdk.UnwrapSDKContext(ctx)
	return sdkCtx.Logger().With("module", "x/"+types.ModuleName)
}
