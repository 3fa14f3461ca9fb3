package types

import (
	"time"

	"cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"
)

// LockEntry is a quantity of one token denomination committed for a duration.
// Entries are height-snapshotted; an entry whose amount reaches zero is
// removed from the store at the current height, whether through slashing,
// unlocking or merging into another lock.
type LockEntry struct {
	LockId    uint64    `json:"lock_id"`
	Owner     string    `json:"owner"`
	Funds     sdk.Coin  `json:"funds"`
	LockStart time.Time `json:"lock_start"`
	LockEnd   time.Time `json:"lock_end"`
}

// TokenGroupShares is the time-weighted shares a vote contributed, expressed
// in units of the token group the voting lock held.
type TokenGroupShares struct {
	TokenGroupId string         `json:"token_group_id"`
	Shares       math.LegacyDec `json:"shares"`
}

// Vote records which proposal a lock voted for in a (round, tranche) and the
// scaled shares the vote carried. Zero-share votes are placeholders inserted
// when a voted lock is split or merged; they preserve historical queryability
// and carry no power.
type Vote struct {
	PropId             uint64           `json:"prop_id"`
	TimeWeightedShares TokenGroupShares `json:"time_weighted_shares"`
}

// VoteWithPower is a vote whose shares have been resolved into power.
type VoteWithPower struct {
	PropId uint64         `json:"prop_id"`
	Power  math.LegacyDec `json:"power"`
}

type Proposal struct {
	RoundId    uint64 `json:"round_id"`
	TrancheId  uint64 `json:"tranche_id"`
	ProposalId uint64 `json:"proposal_id"`

	Title       string `json:"title"`
	Description string `json:"description"`

	Power math.Int `json:"power"`

	// DeploymentDuration is the number of rounds liquidity is allocated for,
	// excluding the voting round. Locks that vote for the proposal can not
	// vote again in the same tranche until it elapses.
	DeploymentDuration uint64 `json:"deployment_duration"`

	MinimumLiquidityRequest math.Int `json:"minimum_liquidity_request"`
}

// Tranche is a named voting track within a round.
type Tranche struct {
	Id       uint64 `json:"id"`
	Name     string `json:"name"`
	Metadata string `json:"metadata"`
}

// LockSuccessor is one forward edge of the lock composition DAG: when a lock
// is split or merged, each resulting lock records the fraction of the
// original lock's value it inherited.
type LockSuccessor struct {
	LockId   uint64         `json:"lock_id"`
	Fraction math.LegacyDec `json:"fraction"`
}

// HeightRange is the range of block heights at which transactions were
// executed within a round. The round may span beyond these boundaries, but
// the recorded range is sufficient to pick historical snapshot heights.
type HeightRange struct {
	LowestKnownHeight  uint64 `json:"lowest_known_height"`
	HighestKnownHeight uint64 `json:"highest_known_height"`
}

// ProposalToLockups groups the lock ids voting for a single proposal.
type ProposalToLockups struct {
	ProposalId uint64   `json:"proposal_id"`
	LockIds    []uint64 `json:"lock_ids"`
}

// TokenRatio binds a token group to its ratio towards the base token for one
// round. Ratios are round-scoped and never backfilled.
type TokenRatio struct {
	TokenGroupId string         `json:"token_group_id"`
	Ratio        math.LegacyDec `json:"ratio"`
}

// TokenRatioChange captures a ratio update within the current round, used to
// reconcile proposal and round powers computed with the old ratio.
type TokenRatioChange struct {
	TokenGroupId string
	OldRatio     math.LegacyDec
	NewRatio     math.LegacyDec
}
