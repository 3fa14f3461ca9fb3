package keeper

import (
	"context"
	"errors"
	"time"

	"cosmossdk.io/collections"
	errorsmod "cosmossdk.io/errors"
	"cosmossdk.io/math"

	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/tidal-zone/lockvote/x/lockvote/types"
)

// LockTokens transfers the funds to the module account and creates a lock
// entry for the sender. The lock duration must be one of the periods the
// round lock power schedule assigns a scaling factor to.
func (k Keeper) LockTokens(
	ctx context.Context,
	sender sdk.AccAddress,
	funds sdk.Coin,
	lockDuration time.Duration,
) (types.LockEntry, error) {
	sdkCtx := sdk.UnwrapSDKContext(ctx)

	constants, err := k.GetCurrentConstants(ctx)
	if err != nil {
		return types.LockEntry{}, err
	}

	if err := validateLockDuration(constants, lockDuration); err != nil {
		return types.LockEntry{}, err
	}

	currentRoundID, err := k.ComputeCurrentRoundID(ctx, constants)
	if err != nil {
		return types.LockEntry{}, err
	}

	tokenGroupID, err := k.ResolveDenomTokenGroup(ctx, currentRoundID, funds.Denom)
	if err != nil {
		return types.LockEntry{}, err
	}

	if err := k.validateTokensToLock(ctx, constants, currentRoundID, sender.String(), funds.Amount); err != nil {
		return types.LockEntry{}, err
	}

	if err := k.bankKeeper.SendCoinsFromAccountToModule(
		ctx, sender, types.ModuleName, sdk.NewCoins(funds),
	); err != nil {
		return types.LockEntry{}, err
	}

	lockID, err := k.NextLockID.Next(ctx)
	if err != nil {
		return types.LockEntry{}, err
	}

	lock := types.LockEntry{
		LockId:    lockID,
		Owner:     sender.String(),
		Funds:     funds,
		LockStart: sdkCtx.BlockTime(),
		LockEnd:   sdkCtx.BlockTime().Add(lockDuration),
	}

	height := uint64(sdkCtx.BlockHeight())
	if err := k.Locks.Set(ctx, lockID, lock, height); err != nil {
		return types.LockEntry{}, err
	}

	if err := k.addLockToUser(ctx, sender.String(), lockID, height); err != nil {
		return types.LockEntry{}, err
	}

	if err := k.addLockedTokens(ctx, funds.Amount); err != nil {
		return types.LockEntry{}, err
	}

	ratio, err := k.GetTokenGroupRatio(ctx, currentRoundID, tokenGroupID)
	if err != nil {
		return types.LockEntry{}, err
	}

	if err := k.addLockSharesToRounds(ctx, constants, currentRoundID, tokenGroupID, ratio, lock); err != nil {
		return types.LockEntry{}, err
	}

	return lock, nil
}

// RefreshLockDuration extends existing locks so that they expire at the
// current block time plus the new duration. The new expiry must be later than
// the current one for every given lock.
func (k Keeper) RefreshLockDuration(
	ctx context.Context,
	sender sdk.AccAddress,
	lockIDs []uint64,
	lockDuration time.Duration,
) error {
	sdkCtx := sdk.UnwrapSDKContext(ctx)

	constants, err := k.GetCurrentConstants(ctx)
	if err != nil {
		return err
	}

	if err := validateLockDuration(constants, lockDuration); err != nil {
		return err
	}

	currentRoundID, err := k.ComputeCurrentRoundID(ctx, constants)
	if err != nil {
		return err
	}

	newLockEnd := sdkCtx.BlockTime().Add(lockDuration)
	height := uint64(sdkCtx.BlockHeight())

	for _, lockID := range lockIDs {
		lock, err := k.Locks.Get(ctx, lockID)
		if err != nil {
			if errors.Is(err, collections.ErrNotFound) {
				return types.ErrLockNotFound.Wrapf("lock %d", lockID)
			}

			return err
		}

		if lock.Owner != sender.String() {
			return types.ErrNotLockOwner.Wrapf("lock %d", lockID)
		}

		if !newLockEnd.After(lock.LockEnd) {
			return errorsmod.Wrapf(types.ErrInvalidLockDuration,
				"lock %d: new expiry must be later than the current one", lockID)
		}

		oldLock := lock
		lock.LockEnd = newLockEnd

		if err := k.Locks.Set(ctx, lockID, lock, height); err != nil {
			return err
		}

		tokenGroupID, err := k.ResolveDenomTokenGroup(ctx, currentRoundID, lock.Funds.Denom)
		if err != nil {
			return err
		}

		ratio, err := k.GetTokenGroupRatio(ctx, currentRoundID, tokenGroupID)
		if err != nil {
			return err
		}

		if err := k.addLockSharesDiffToRounds(
			ctx, constants, currentRoundID, tokenGroupID, ratio, oldLock, lock,
		); err != nil {
			return err
		}
	}

	return nil
}

// UnlockTokens releases expired locks back to their owner. An empty lock id
// list unlocks every eligible lock of the sender. A lock is skipped when it
// has not expired, carries a pending slash, or voted for a proposal whose
// deployment has not concluded yet.
func (k Keeper) UnlockTokens(
	ctx context.Context,
	sender sdk.AccAddress,
	lockIDs []uint64,
) ([]uint64, sdk.Coins, error) {
	sdkCtx := sdk.UnwrapSDKContext(ctx)

	constants, err := k.GetCurrentConstants(ctx)
	if err != nil {
		return nil, nil, err
	}

	currentRoundID, err := k.ComputeCurrentRoundID(ctx, constants)
	if err != nil {
		return nil, nil, err
	}

	userLockIDs, err := k.getUserLockIDs(ctx, sender.String())
	if err != nil {
		return nil, nil, err
	}

	requested := map[uint64]bool{}
	for _, lockID := range lockIDs {
		requested[lockID] = true
	}

	height := uint64(sdkCtx.BlockHeight())

	var (
		unlockedIDs []uint64
		released    sdk.Coins
	)

	for _, lockID := range userLockIDs {
		if len(requested) > 0 && !requested[lockID] {
			continue
		}

		lock, err := k.Locks.Get(ctx, lockID)
		if err != nil {
			return nil, nil, err
		}

		if lock.LockEnd.After(sdkCtx.BlockTime()) {
			continue
		}

		pending, err := k.getLockPendingSlash(ctx, lockID)
		if err != nil {
			return nil, nil, err
		}
		if pending.IsPositive() {
			continue
		}

		allowed, err := k.lockCanVoteInAllTranches(ctx, currentRoundID, lockID)
		if err != nil {
			return nil, nil, err
		}
		if !allowed {
			continue
		}

		if err := k.Locks.Remove(ctx, lockID, height); err != nil {
			return nil, nil, err
		}

		if err := k.removeLockFromUser(ctx, sender.String(), lockID, height); err != nil {
			return nil, nil, err
		}

		if err := k.subLockedTokens(ctx, lock.Funds.Amount); err != nil {
			return nil, nil, err
		}

		unlockedIDs = append(unlockedIDs, lockID)
		released = released.Add(lock.Funds)
	}

	if !released.IsZero() {
		if err := k.bankKeeper.SendCoinsFromModuleToAccount(
			ctx, types.ModuleName, sender, released,
		); err != nil {
			return nil, nil, err
		}
	}

	return unlockedIDs, released, nil
}

func validateLockDuration(constants types.Constants, lockDuration time.Duration) error {
	for _, entry := range constants.RoundLockPowerSchedule.Entries {
		if lockDuration == constants.LockEpochLength*time.Duration(entry.LockedRounds) {
			return nil
		}
	}

	return errorsmod.Wrapf(types.ErrInvalidLockDuration, "duration %s", lockDuration)
}

// validateTokensToLock enforces the total locking cap. The slice of the cap
// reserved for known users is only available to addresses that held voting
// power in the previous round.
func (k Keeper) validateTokensToLock(
	ctx context.Context,
	constants types.Constants,
	currentRoundID uint64,
	owner string,
	amount math.Int,
) error {
	lockedTokens, err := k.getLockedTokens(ctx)
	if err != nil {
		return err
	}

	totalAfter := lockedTokens.Add(amount)
	if totalAfter.GT(constants.MaxLockedTokens) {
		return types.ErrLockLimitReached.Wrapf(
			"locked %s, cap %s", totalAfter, constants.MaxLockedTokens)
	}

	publicCap := constants.MaxLockedTokens.Sub(constants.KnownUsersCap)
	if totalAfter.LTE(publicCap) || constants.KnownUsersCap.IsZero() {
		return nil
	}

	if currentRoundID == 0 {
		return types.ErrLockLimitReached.Wrapf(
			"remaining capacity is reserved for users with voting power in the previous round")
	}

	previousPower, err := k.GetUserVotingPower(ctx, constants, owner, currentRoundID-1)
	if err != nil {
		return err
	}
	if !previousPower.IsPositive() {
		return types.ErrLockLimitReached.Wrapf(
			"remaining capacity is reserved for users with voting power in the previous round")
	}

	return nil
}

// GetUserVotingPower sums the power of the user's current locks at the end of
// the given round, using the round's token ratios.
func (k Keeper) GetUserVotingPower(
	ctx context.Context,
	constants types.Constants,
	owner string,
	roundID uint64,
) (math.Int, error) {
	lockIDs, err := k.getUserLockIDs(ctx, owner)
	if err != nil {
		return math.Int{}, err
	}

	roundEnd := ComputeRoundEnd(constants, roundID)
	total := math.LegacyZeroDec()

	for _, lockID := range lockIDs {
		lock, err := k.Locks.Get(ctx, lockID)
		if err != nil {
			return math.Int{}, err
		}

		shares := GetLockTimeWeightedShares(constants, roundEnd, lock)
		if shares.IsZero() {
			continue
		}

		ratio, err := k.GetTokenDenomRatio(ctx, roundID, lock.Funds.Denom)
		if err != nil {
			return math.Int{}, err
		}

		total = total.Add(ratio.MulInt(shares))
	}

	return total.TruncateInt(), nil
}

// addLockSharesToRounds adds the lock's time weighted shares to every round
// it still has power in, starting with the current one.
func (k Keeper) addLockSharesToRounds(
	ctx context.Context,
	constants types.Constants,
	currentRoundID uint64,
	tokenGroupID string,
	ratio math.LegacyDec,
	lock types.LockEntry,
) error {
	maxRounds := constants.RoundLockPowerSchedule.GetMaximumRoundsToLock()

	for roundID := currentRoundID; roundID <= currentRoundID+maxRounds; roundID++ {
		roundEnd := ComputeRoundEnd(constants, roundID)
		if !lock.LockEnd.After(roundEnd) {
			break
		}

		shares := GetLockTimeWeightedShares(constants, roundEnd, lock)
		if shares.IsZero() {
			continue
		}

		if err := k.AddTokenGroupSharesToRoundTotal(
			ctx, roundID, tokenGroupID, ratio, shares.ToLegacyDec(),
		); err != nil {
			return err
		}

		if err := k.UpdateRoundHeightMaps(ctx, roundID); err != nil {
			return err
		}
	}

	return nil
}

// addLockSharesDiffToRounds applies the per round share difference between an
// old and a new version of the same lock.
func (k Keeper) addLockSharesDiffToRounds(
	ctx context.Context,
	constants types.Constants,
	currentRoundID uint64,
	tokenGroupID string,
	ratio math.LegacyDec,
	oldLock, newLock types.LockEntry,
) error {
	maxRounds := constants.RoundLockPowerSchedule.GetMaximumRoundsToLock()

	for roundID := currentRoundID; roundID <= currentRoundID+maxRounds; roundID++ {
		roundEnd := ComputeRoundEnd(constants, roundID)
		if !oldLock.LockEnd.After(roundEnd) && !newLock.LockEnd.After(roundEnd) {
			break
		}

		oldShares := GetLockTimeWeightedShares(constants, roundEnd, oldLock)
		newShares := GetLockTimeWeightedShares(constants, roundEnd, newLock)
		diff := newShares.Sub(oldShares)
		if diff.IsZero() {
			continue
		}

		if err := k.AddTokenGroupSharesToRoundTotal(
			ctx, roundID, tokenGroupID, ratio, diff.ToLegacyDec(),
		); err != nil {
			return err
		}

		if err := k.UpdateRoundHeightMaps(ctx, roundID); err != nil {
			return err
		}
	}

	return nil
}

// lockCanVoteInAllTranches reports whether no tranche still forbids the lock
// from voting in the current round.
func (k Keeper) lockCanVoteInAllTranches(ctx context.Context, currentRoundID, lockID uint64) (bool, error) {
	trancheIDs, err := k.getTrancheIDs(ctx)
	if err != nil {
		return false, err
	}

	for _, trancheID := range trancheIDs {
		allowedRound, err := k.getVotingAllowedRound(ctx, trancheID, lockID)
		if err != nil {
			return false, err
		}
		if allowedRound > currentRoundID {
			return false, nil
		}
	}

	return true, nil
}

func (k Keeper) getVotingAllowedRound(ctx context.Context, trancheID, lockID uint64) (uint64, error) {
	allowedRound, err := k.VotingAllowedRound.Get(ctx, collections.Join(trancheID, lockID))
	if err != nil {
		if errors.Is(err, collections.ErrNotFound) {
			return 0, nil
		}

		return 0, err
	}

	return allowedRound, nil
}

func (k Keeper) getUserLockIDs(ctx context.Context, owner string) ([]uint64, error) {
	lockIDs, err := k.UserLocks.Get(ctx, owner)
	if err != nil {
		if errors.Is(err, collections.ErrNotFound) {
			return nil, nil
		}

		return nil, err
	}

	return lockIDs, nil
}

func (k Keeper) addLockToUser(ctx context.Context, owner string, lockID uint64, height uint64) error {
	lockIDs, err := k.getUserLockIDs(ctx, owner)
	if err != nil {
		return err
	}

	return k.UserLocks.Set(ctx, owner, append(lockIDs, lockID), height)
}

func (k Keeper) removeLockFromUser(ctx context.Context, owner string, lockID uint64, height uint64) error {
	lockIDs, err := k.getUserLockIDs(ctx, owner)
	if err != nil {
		return err
	}

	remaining := make([]uint64, 0, len(lockIDs))
	for _, id := range lockIDs {
		if id != lockID {
			remaining = append(remaining, id)
		}
	}

	return k.UserLocks.Set(ctx, owner, remaining, height)
}

func (k Keeper) getLockPendingSlash(ctx context.Context, lockID uint64) (math.Int, error) {
	pending, err := k.PendingSlashes.Get(ctx, lockID)
	if err != nil {
		if errors.Is(err, collections.ErrNotFound) {
			return math.ZeroInt(), nil
		}

		return math.Int{}, err
	}

	return pending, nil
}

func (k Keeper) getLockedTokens(ctx context.Context) (math.Int, error) {
	lockedTokens, err := k.LockedTokens.Get(ctx)
	if err != nil {
		if errors.Is(err, collections.ErrNotFound) {
			return math.ZeroInt(), nil
		}

		return math.Int{}, err
	}

	return lockedTokens, nil
}

func (k Keeper) addLockedTokens(ctx context.Context, amount math.Int) error {
	lockedTokens, err := k.getLockedTokens(ctx)
	if err != nil {
		return err
	}

	return k.LockedTokens.Set(ctx, lockedTokens.Add(amount))
}

// subLockedTokens lowers the locked tokens counter, flooring at zero.
func (k Keeper) subLockedTokens(ctx context.Context, amount math.Int) error {
	lockedTokens, err := k.getLockedTokens(ctx)
	if err != nil {
		return err
	}

	updated := lockedTokens.Sub(amount)
	if updated.IsNegative() {
		updated = math.ZeroInt()
	}

	return k.LockedTokens.Set(ctx, updated)
}
