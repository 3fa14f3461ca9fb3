package types

const (
	// ModuleName is the name of the lockvote module
	ModuleName = "lockvote"

	// StoreKey is the string store representation
	StoreKey = ModuleName

	// RouterKey is the msg router key for the lockvote module
	RouterKey = ModuleName
)

var (
	// Keys for store prefixes
	ConstantsPrefix    = []byte{0x11} // activation timestamp -> Constants
	LockedTokensKey    = []byte{0x12} // total locked tokens counter
	NextLockIDKey      = []byte{0x13}
	NextProposalIDKey  = []byte{0x14}
	NextTrancheIDKey   = []byte{0x15}
	WhitelistAdminsKey = []byte{0x16}

	LocksPrefix              = []byte{0x21} // lock_id -> LockEntry (latest)
	LocksChangelogPrefix     = []byte{0x22} // (lock_id, height) -> lock changelog entry
	UserLocksPrefix          = []byte{0x23} // owner -> lock ids (latest)
	UserLocksChangelogPrefix = []byte{0x24} // (owner, height) -> lock ids changelog entry
	LockSuccessorsPrefix     = []byte{0x25} // lock_id -> successor edges
	LockPredecessorsPrefix   = []byte{0x26} // lock_id -> predecessor lock ids
	PendingSlashesPrefix     = []byte{0x27} // lock_id -> pending slash amount
	LockRetiredAtPrefix      = []byte{0x28} // lock_id -> time the lock was consumed by split/merge

	TranchesPrefix           = []byte{0x31} // tranche_id -> Tranche
	ProposalsPrefix          = []byte{0x32} // (round_id, tranche_id, proposal_id) -> Proposal
	VotesPrefix              = []byte{0x33} // (round_id, tranche_id, lock_id) -> Vote
	VotingAllowedRoundPrefix = []byte{0x34} // (tranche_id, lock_id) -> round_id

	ScaledRoundSharesPrefix        = []byte{0x41} // (round_id, token_group_id) -> scaled shares
	ScaledProposalSharesPrefix     = []byte{0x42} // (proposal_id, token_group_id) -> scaled shares
	ProposalTotalPowerPrefix       = []byte{0x43} // proposal_id -> total power
	RoundTotalPowerPrefix          = []byte{0x44} // round_id -> total voting power (latest)
	RoundTotalPowerChangelogPrefix = []byte{0x45} // (round_id, height) -> total power changelog entry

	RoundHeightRangePrefix      = []byte{0x51} // round_id -> HeightRange
	HeightToRoundPrefix         = []byte{0x52} // block height -> round_id
	SnapshotActivationHeightKey = []byte{0x53} // lowest height retained by snapshot stores

	TokenInfoProvidersPrefix = []byte{0x61} // provider_id -> TokenInfoProvider
	TokenGroupRatiosPrefix   = []byte{0x62} // (round_id, token_group_id) -> ratio to base token
	LsmDenomsPrefix          = []byte{0x63} // denom -> validator token group
)
