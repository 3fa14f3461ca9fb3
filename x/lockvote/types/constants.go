package types

import (
	"fmt"
	"sort"
	"time"

	"cosmossdk.io/math"
)

// LockPowerEntry defines the power scaling factor that a lockup has when it
// still has the given number of epochs left at the end of a round.
type LockPowerEntry struct {
	LockedRounds       uint64         `json:"locked_rounds"`
	PowerScalingFactor math.LegacyDec `json:"power_scaling_factor"`
}

// RoundLockPowerSchedule is a sorted list of LockPowerEntry, where each entry
// contains a number of epochs and the power scaling factor that a lockup has
// when it has this many epochs left at the end of the round. A lockup that
// expires before the end of the round has zero power. Between two entries the
// larger entry's factor is used. For example, the schedule
// [(1, 1), (2, 1.25), (3, 1.5), (6, 2), (12, 4)] gives
// 1x for up to 1 epoch left, 1.25x for between 1 and 2 epochs, and so on.
type RoundLockPowerSchedule struct {
	Entries []LockPowerEntry `json:"entries"`
}

// NewRoundLockPowerSchedule builds a schedule from (locked_rounds, factor)
// pairs, sorting by locked rounds and keeping the first entry when a value
// appears twice.
func NewRoundLockPowerSchedule(pairs []LockPowerEntry) RoundLockPowerSchedule {
	entries := make([]LockPowerEntry, len(pairs))
	copy(entries, pairs)

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].LockedRounds < entries[j].LockedRounds
	})

	deduped := entries[:0]
	for _, entry := range entries {
		if len(deduped) > 0 && deduped[len(deduped)-1].LockedRounds == entry.LockedRounds {
			continue
		}
		deduped = append(deduped, entry)
	}

	return RoundLockPowerSchedule{Entries: deduped}
}

// DefaultRoundLockPowerSchedule returns the schedule used unless genesis
// overrides it.
func DefaultRoundLockPowerSchedule() RoundLockPowerSchedule {
	return NewRoundLockPowerSchedule([]LockPowerEntry{
		{LockedRounds: 1, PowerScalingFactor: math.LegacyOneDec()},
		{LockedRounds: 3, PowerScalingFactor: math.LegacyNewDecWithPrec(15, 1)},
		{LockedRounds: 6, PowerScalingFactor: math.LegacyNewDec(2)},
		{LockedRounds: 12, PowerScalingFactor: math.LegacyNewDec(4)},
	})
}

// GetMaximumRoundsToLock returns the largest number of epochs any lockup can
// still contribute power for.
func (s RoundLockPowerSchedule) GetMaximumRoundsToLock() uint64 {
	if len(s.Entries) == 0 {
		return 0
	}

	return s.Entries[len(s.Entries)-1].LockedRounds
}

func (s RoundLockPowerSchedule) Validate() error {
	if len(s.Entries) == 0 {
		return fmt.Errorf("round lock power schedule must have at least one entry")
	}

	for i, entry := range s.Entries {
		if entry.LockedRounds == 0 {
			return fmt.Errorf("schedule entry %d: locked rounds must be positive", i)
		}
		if entry.PowerScalingFactor.IsNil() || !entry.PowerScalingFactor.IsPositive() {
			return fmt.Errorf("schedule entry %d: power scaling factor must be positive", i)
		}
		if i > 0 && s.Entries[i-1].LockedRounds >= entry.LockedRounds {
			return fmt.Errorf("schedule entries must be sorted by locked rounds")
		}
	}

	return nil
}

// Constants is the immutable-per-activation module configuration. A new
// Constants value activates at its activation timestamp without invalidating
// history recorded under older ones.
type Constants struct {
	RoundLength     time.Duration `json:"round_length"`
	LockEpochLength time.Duration `json:"lock_epoch_length"`
	FirstRoundStart time.Time     `json:"first_round_start"`

	// MaxLockedTokens caps the total amount that can be locked by all users.
	MaxLockedTokens math.Int `json:"max_locked_tokens"`
	// KnownUsersCap is the part of MaxLockedTokens reserved for users that
	// had voting power in the previous round. Zero disables the reservation.
	KnownUsersCap math.Int `json:"known_users_cap"`

	Paused                 bool                   `json:"paused"`
	MaxDeploymentDuration  uint64                 `json:"max_deployment_duration"`
	RoundLockPowerSchedule RoundLockPowerSchedule `json:"round_lock_power_schedule"`

	// SlashPercentageThreshold is the fraction of a lockup's amount that the
	// accumulated pending slashes must reach before they are applied.
	SlashPercentageThreshold math.LegacyDec `json:"slash_percentage_threshold"`
	// SlashTokensReceiverAddr receives all seized funds.
	SlashTokensReceiverAddr string `json:"slash_tokens_receiver_addr"`
}

func (c Constants) Validate() error {
	if c.RoundLength <= 0 {
		return fmt.Errorf("round length must be positive")
	}
	if c.LockEpochLength <= 0 {
		return fmt.Errorf("lock epoch length must be positive")
	}
	if c.FirstRoundStart.IsZero() {
		return fmt.Errorf("first round start must be set")
	}
	if c.MaxLockedTokens.IsNil() || c.MaxLockedTokens.IsNegative() {
		return fmt.Errorf("max locked tokens must be non-negative")
	}
	if c.KnownUsersCap.IsNil() || c.KnownUsersCap.IsNegative() {
		return fmt.Errorf("known users cap must be non-negative")
	}
	if c.KnownUsersCap.GT(c.MaxLockedTokens) {
		return fmt.Errorf("known users cap can not exceed max locked tokens")
	}
	if c.SlashPercentageThreshold.IsNil() || c.SlashPercentageThreshold.IsNegative() ||
		c.SlashPercentageThreshold.GT(math.LegacyOneDec()) {
		return fmt.Errorf("slash percentage threshold must be between 0 and 1")
	}
	if c.MaxDeploymentDuration == 0 {
		return fmt.Errorf("max deployment duration must be positive")
	}

	return c.RoundLockPowerSchedule.Validate()
}
