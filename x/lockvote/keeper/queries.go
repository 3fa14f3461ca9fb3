package keeper

import (
	"context"
	"errors"

	"cosmossdk.io/collections"
	"cosmossdk.io/math"

	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/tidal-zone/lockvote/x/lockvote/types"
)

var _ types.QueryServer = Querier{}

type Querier struct {
	*Keeper
}

func NewQuerier(k *Keeper) Querier {
	return Querier{k}
}

func (q Querier) Constants(ctx context.Context, _ *types.QueryConstantsRequest) (*types.QueryConstantsResponse, error) {
	constants, err := q.GetCurrentConstants(ctx)
	if err != nil {
		return nil, err
	}

	return &types.QueryConstantsResponse{Constants: constants}, nil
}

func (q Querier) CurrentRound(ctx context.Context, _ *types.QueryCurrentRoundRequest) (*types.QueryCurrentRoundResponse, error) {
	constants, err := q.GetCurrentConstants(ctx)
	if err != nil {
		return nil, err
	}

	roundID, err := q.ComputeCurrentRoundID(ctx, constants)
	if err != nil {
		return nil, err
	}

	return &types.QueryCurrentRoundResponse{
		RoundId:  roundID,
		RoundEnd: ComputeRoundEnd(constants, roundID),
	}, nil
}

func (q Querier) Tranches(ctx context.Context, _ *types.QueryTranchesRequest) (*types.QueryTranchesResponse, error) {
	iter, err := q.Keeper.Tranches.Iterate(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	tranches, err := iter.Values()
	if err != nil {
		return nil, err
	}

	return &types.QueryTranchesResponse{Tranches: tranches}, nil
}

func (q Querier) RoundProposals(ctx context.Context, req *types.QueryRoundProposalsRequest) (*types.QueryRoundProposalsResponse, error) {
	rng := collections.NewSuperPrefixedTripleRange[uint64, uint64, uint64](req.RoundId, req.TrancheId)

	iter, err := q.Proposals.Iterate(ctx, rng)
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	proposals, err := iter.Values()
	if err != nil {
		return nil, err
	}

	return &types.QueryRoundProposalsResponse{Proposals: proposals}, nil
}

func (q Querier) Proposal(ctx context.Context, req *types.QueryProposalRequest) (*types.QueryProposalResponse, error) {
	proposal, err := q.Proposals.Get(ctx, collections.Join3(req.RoundId, req.TrancheId, req.ProposalId))
	if err != nil {
		if errors.Is(err, collections.ErrNotFound) {
			return nil, types.ErrProposalNotFound.Wrapf(
				"proposal %d in round %d tranche %d", req.ProposalId, req.RoundId, req.TrancheId)
		}

		return nil, err
	}

	return &types.QueryProposalResponse{Proposal: proposal}, nil
}

func (q Querier) RoundTotalPower(ctx context.Context, req *types.QueryRoundTotalPowerRequest) (*types.QueryRoundTotalPowerResponse, error) {
	totalPower, err := q.GetTotalPowerForRound(ctx, req.RoundId)
	if err != nil {
		return nil, err
	}

	return &types.QueryRoundTotalPowerResponse{TotalPower: totalPower}, nil
}

func (q Querier) Lock(ctx context.Context, req *types.QueryLockRequest) (*types.QueryLockResponse, error) {
	lock, err := q.Locks.Get(ctx, req.LockId)
	if err != nil {
		if errors.Is(err, collections.ErrNotFound) {
			return nil, types.ErrLockNotFound.Wrapf("lock %d", req.LockId)
		}

		return nil, err
	}

	return &types.QueryLockResponse{Lock: lock}, nil
}

func (q Querier) UserLocks(ctx context.Context, req *types.QueryUserLocksRequest) (*types.QueryUserLocksResponse, error) {
	lockIDs, err := q.getUserLockIDs(ctx, req.Owner)
	if err != nil {
		return nil, err
	}

	locks := make([]types.LockEntry, 0, len(lockIDs))
	for _, lockID := range lockIDs {
		lock, err := q.Locks.Get(ctx, lockID)
		if err != nil {
			return nil, err
		}

		locks = append(locks, lock)
	}

	return &types.QueryUserLocksResponse{Locks: locks}, nil
}

func (q Querier) LockComposition(ctx context.Context, req *types.QueryLockCompositionRequest) (*types.QueryLockCompositionResponse, error) {
	entries, err := q.GetCurrentLockComposition(ctx, req.LockId)
	if err != nil {
		return nil, err
	}

	return &types.QueryLockCompositionResponse{Entries: entries}, nil
}

func (q Querier) PendingSlash(ctx context.Context, req *types.QueryPendingSlashRequest) (*types.QueryPendingSlashResponse, error) {
	pending, err := q.getLockPendingSlash(ctx, req.LockId)
	if err != nil {
		return nil, err
	}

	return &types.QueryPendingSlashResponse{Amount: pending}, nil
}

func (q Querier) Vote(ctx context.Context, req *types.QueryVoteRequest) (*types.QueryVoteResponse, error) {
	vote, err := q.Votes.Get(ctx, collections.Join3(req.RoundId, req.TrancheId, req.LockId))
	if err != nil {
		return nil, err
	}

	return &types.QueryVoteResponse{Vote: vote}, nil
}

func (q Querier) UserVotingPower(ctx context.Context, req *types.QueryUserVotingPowerRequest) (*types.QueryUserVotingPowerResponse, error) {
	constants, err := q.GetCurrentConstants(ctx)
	if err != nil {
		return nil, err
	}

	power, err := q.GetUserVotingPower(ctx, constants, req.Owner, req.RoundId)
	if err != nil {
		return nil, err
	}

	return &types.QueryUserVotingPowerResponse{Power: power}, nil
}

// SlashableTokens reports the tokens that would be seized if the proposal's
// voters were slashed in full right now, as a single base token equivalent
// total plus a per denom breakdown.
func (q Querier) SlashableTokens(ctx context.Context, req *types.QuerySlashableTokensRequest) (*types.QuerySlashableTokensResponse, error) {
	constants, err := q.GetCurrentConstants(ctx)
	if err != nil {
		return nil, err
	}

	currentRoundID, err := q.ComputeCurrentRoundID(ctx, constants)
	if err != nil {
		return nil, err
	}

	if req.RoundId > currentRoundID {
		return nil, types.ErrFutureRound.Wrapf("round %d", req.RoundId)
	}

	has, err := q.Proposals.Has(ctx, collections.Join3(req.RoundId, req.TrancheId, req.ProposalId))
	if err != nil {
		return nil, err
	}
	if !has {
		return nil, types.ErrProposalNotFound.Wrapf(
			"proposal %d in round %d tranche %d", req.ProposalId, req.RoundId, req.TrancheId)
	}

	votingRoundHeight, err := q.GetHighestKnownHeightForRound(ctx, req.RoundId)
	if err != nil {
		return nil, err
	}

	rng := collections.NewSuperPrefixedTripleRange[uint64, uint64, uint64](req.RoundId, req.TrancheId)

	iter, err := q.Votes.Iterate(ctx, rng)
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	tokens := sdk.NewCoins()
	baseTokenAmount := math.ZeroInt()

	for ; iter.Valid(); iter.Next() {
		kv, err := iter.KeyValue()
		if err != nil {
			return nil, err
		}

		if kv.Value.PropId != req.ProposalId || !kv.Value.TimeWeightedShares.Shares.IsPositive() {
			continue
		}

		lockID := kv.Key.K3()

		votedLock, found, err := q.Locks.GetAtHeight(ctx, lockID, votingRoundHeight+1)
		if err != nil {
			return nil, err
		}
		if !found {
			continue
		}

		voteTokenRatio, err := q.GetTokenDenomRatio(ctx, req.RoundId, votedLock.Funds.Denom)
		if err != nil {
			return nil, err
		}
		if voteTokenRatio.IsZero() {
			continue
		}

		composition, err := q.GetCurrentLockComposition(ctx, lockID)
		if err != nil {
			return nil, err
		}

		for _, leaf := range composition {
			currentLock, err := q.Locks.Get(ctx, leaf.LockId)
			if err != nil {
				if errors.Is(err, collections.ErrNotFound) {
					continue
				}

				return nil, err
			}

			amount, ratioToBase, err := q.intoAmountToSlash(
				ctx, req.RoundId, currentRoundID,
				votedLock.Funds, voteTokenRatio, currentLock.Funds,
				leaf.Fraction, math.LegacyOneDec(),
			)
			if err != nil {
				return nil, err
			}

			if amount.IsPositive() {
				tokens = tokens.Add(sdk.NewCoin(currentLock.Funds.Denom, amount))
				baseTokenAmount = baseTokenAmount.Add(
					math.LegacyNewDecFromInt(amount).Mul(ratioToBase).TruncateInt())
			}
		}
	}

	return &types.QuerySlashableTokensResponse{
		BaseTokenAmount: baseTokenAmount,
		Tokens:          tokens,
	}, nil
}
