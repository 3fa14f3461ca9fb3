package types

import (
	"context"
	"time"

	"cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"
)

// QueryServer is the read-only surface of the module.
type QueryServer interface {
	Constants(ctx context.Context, req *QueryConstantsRequest) (*QueryConstantsResponse, error)
	CurrentRound(ctx context.Context, req *QueryCurrentRoundRequest) (*QueryCurrentRoundResponse, error)
	Tranches(ctx context.Context, req *QueryTranchesRequest) (*QueryTranchesResponse, error)
	RoundProposals(ctx context.Context, req *QueryRoundProposalsRequest) (*QueryRoundProposalsResponse, error)
	Proposal(ctx context.Context, req *QueryProposalRequest) (*QueryProposalResponse, error)
	RoundTotalPower(ctx context.Context, req *QueryRoundTotalPowerRequest) (*QueryRoundTotalPowerResponse, error)
	Lock(ctx context.Context, req *QueryLockRequest) (*QueryLockResponse, error)
	UserLocks(ctx context.Context, req *QueryUserLocksRequest) (*QueryUserLocksResponse, error)
	LockComposition(ctx context.Context, req *QueryLockCompositionRequest) (*QueryLockCompositionResponse, error)
	PendingSlash(ctx context.Context, req *QueryPendingSlashRequest) (*QueryPendingSlashResponse, error)
	Vote(ctx context.Context, req *QueryVoteRequest) (*QueryVoteResponse, error)
	UserVotingPower(ctx context.Context, req *QueryUserVotingPowerRequest) (*QueryUserVotingPowerResponse, error)
	SlashableTokens(ctx context.Context, req *QuerySlashableTokensRequest) (*QuerySlashableTokensResponse, error)
}

type QueryConstantsRequest struct{}

type QueryConstantsResponse struct {
	Constants Constants `json:"constants"`
}

type QueryCurrentRoundRequest struct{}

type QueryCurrentRoundResponse struct {
	RoundId  uint64    `json:"round_id"`
	RoundEnd time.Time `json:"round_end"`
}

type QueryTranchesRequest struct{}

type QueryTranchesResponse struct {
	Tranches []Tranche `json:"tranches"`
}

type QueryRoundProposalsRequest struct {
	RoundId   uint64 `json:"round_id"`
	TrancheId uint64 `json:"tranche_id"`
}

type QueryRoundProposalsResponse struct {
	Proposals []Proposal `json:"proposals"`
}

type QueryProposalRequest struct {
	RoundId    uint64 `json:"round_id"`
	TrancheId  uint64 `json:"tranche_id"`
	ProposalId uint64 `json:"proposal_id"`
}

type QueryProposalResponse struct {
	Proposal Proposal `json:"proposal"`
}

type QueryRoundTotalPowerRequest struct {
	RoundId uint64 `json:"round_id"`
}

type QueryRoundTotalPowerResponse struct {
	TotalPower math.Int `json:"total_power"`
}

type QueryLockRequest struct {
	LockId uint64 `json:"lock_id"`
}

type QueryLockResponse struct {
	Lock LockEntry `json:"lock"`
}

type QueryUserLocksRequest struct {
	Owner string `json:"owner"`
}

type QueryUserLocksResponse struct {
	Locks []LockEntry `json:"locks"`
}

type QueryLockCompositionRequest struct {
	LockId uint64 `json:"lock_id"`
}

type QueryLockCompositionResponse struct {
	// Entries are the live locks currently holding the queried lock's
	// tokens, with the fraction each one holds.
	Entries []LockSuccessor `json:"entries"`
}

type QueryPendingSlashRequest struct {
	LockId uint64 `json:"lock_id"`
}

type QueryPendingSlashResponse struct {
	Amount math.Int `json:"amount"`
}

type QueryVoteRequest struct {
	RoundId   uint64 `json:"round_id"`
	TrancheId uint64 `json:"tranche_id"`
	LockId    uint64 `json:"lock_id"`
}

type QueryVoteResponse struct {
	Vote Vote `json:"vote"`
}

type QueryUserVotingPowerRequest struct {
	Owner   string `json:"owner"`
	RoundId uint64 `json:"round_id"`
}

type QueryUserVotingPowerResponse struct {
	Power math.Int `json:"power"`
}

type QuerySlashableTokensRequest struct {
	RoundId    uint64 `json:"round_id"`
	TrancheId  uint64 `json:"tranche_id"`
	ProposalId uint64 `json:"proposal_id"`
}

type QuerySlashableTokensResponse struct {
	// BaseTokenAmount is the base token equivalent of everything that would
	// be seized if the proposal's voters were slashed in full, with every
	// denom converted by its current round ratio.
	BaseTokenAmount math.Int `json:"base_token_amount"`

	// Tokens is the per denom breakdown of the same amount.
	Tokens sdk.Coins `json:"tokens"`
}
