package keeper

import (
	"time"

	"cosmossdk.io/math"

	"github.com/tidal-zone/lockvote/x/lockvote/types"
)

// ScaleLockupPower scales a raw token amount by the power factor the schedule
// assigns to the remaining lockup time. Remaining times beyond the largest
// schedule entry use that entry's factor.
func ScaleLockupPower(
	schedule types.RoundLockPowerSchedule,
	lockEpochLength time.Duration,
	lockupTime time.Duration,
	rawPower math.Int,
) math.Int {
	for _, entry := range schedule.Entries {
		if lockupTime <= lockEpochLength*time.Duration(entry.LockedRounds) {
			return entry.PowerScalingFactor.MulInt(rawPower).TruncateInt()
		}
	}

	if len(schedule.Entries) == 0 {
		return rawPower
	}

	maxEntry := schedule.Entries[len(schedule.Entries)-1]

	return maxEntry.PowerScalingFactor.MulInt(rawPower).TruncateInt()
}

// GetLockTimeWeightedShares returns the scaled voting power a lock carries at
// the end of a round. A lock that expires at or before the round end has no
// power in that round.
func GetLockTimeWeightedShares(
	constants types.Constants,
	roundEnd time.Time,
	lock types.LockEntry,
) math.Int {
	if !lock.LockEnd.After(roundEnd) {
		return math.ZeroInt()
	}

	return ScaleLockupPower(
		constants.RoundLockPowerSchedule,
		constants.LockEpochLength,
		lock.LockEnd.Sub(roundEnd),
		lock.Funds.Amount,
	)
}
