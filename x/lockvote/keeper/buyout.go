package keeper

import (
	"context"
	"errors"

	"cosmossdk.io/collections"
	"cosmossdk.io/math"

	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/tidal-zone/lockvote/x/lockvote/types"
)

// BuyoutPendingSlash lets the lock owner pay off a pending slash before it
// crosses the threshold, releasing the lock from the debt. Payment coins in
// the lock's denom count at face value; other denoms are converted through
// the current round's token ratios. Whatever exceeds the pending amount, or
// cannot be converted, is refunded. The consumed payment goes to the slash
// tokens receiver.
func (k Keeper) BuyoutPendingSlash(
	ctx context.Context,
	sender sdk.AccAddress,
	lockID uint64,
	funds sdk.Coins,
) (math.Int, sdk.Coins, error) {
	constants, err := k.GetCurrentConstants(ctx)
	if err != nil {
		return math.Int{}, nil, err
	}

	currentRoundID, err := k.ComputeCurrentRoundID(ctx, constants)
	if err != nil {
		return math.Int{}, nil, err
	}

	lock, err := k.Locks.Get(ctx, lockID)
	if err != nil {
		if errors.Is(err, collections.ErrNotFound) {
			return math.Int{}, nil, types.ErrLockNotFound.Wrapf("lock %d", lockID)
		}

		return math.Int{}, nil, err
	}

	if lock.Owner != sender.String() {
		return math.Int{}, nil, types.ErrNotLockOwner.Wrapf("lock %d", lockID)
	}

	pending, err := k.getLockPendingSlash(ctx, lockID)
	if err != nil {
		return math.Int{}, nil, err
	}
	if !pending.IsPositive() {
		return math.Int{}, nil, types.ErrNoPendingSlash.Wrapf("lock %d", lockID)
	}

	if err := k.bankKeeper.SendCoinsFromAccountToModule(
		ctx, sender, types.ModuleName, funds,
	); err != nil {
		return math.Int{}, nil, err
	}

	lockDenomRatio, err := k.GetTokenDenomRatio(ctx, currentRoundID, lock.Funds.Denom)
	if err != nil {
		return math.Int{}, nil, err
	}

	remaining := pending
	consumed := sdk.NewCoins()
	refund := sdk.NewCoins()

	for _, coin := range funds {
		if remaining.IsZero() {
			refund = refund.Add(coin)
			continue
		}

		if coin.Denom == lock.Funds.Denom {
			used := coin.Amount
			if used.GT(remaining) {
				used = remaining
			}

			remaining = remaining.Sub(used)
			consumed = consumed.Add(sdk.NewCoin(coin.Denom, used))

			if leftover := coin.Amount.Sub(used); leftover.IsPositive() {
				refund = refund.Add(sdk.NewCoin(coin.Denom, leftover))
			}
			continue
		}

		paymentRatio, err := k.GetTokenDenomRatio(ctx, currentRoundID, coin.Denom)
		if err != nil {
			return math.Int{}, nil, err
		}
		if paymentRatio.IsZero() || lockDenomRatio.IsZero() {
			refund = refund.Add(coin)
			continue
		}

		// Value of the payment coin expressed in the lock's denom.
		value := paymentRatio.MulInt(coin.Amount).Quo(lockDenomRatio).TruncateInt()
		if !value.IsPositive() {
			refund = refund.Add(coin)
			continue
		}

		if value.LTE(remaining) {
			remaining = remaining.Sub(value)
			consumed = consumed.Add(coin)
			continue
		}

		// Only part of the coin is needed; round the consumed payment up so
		// the pending amount is fully covered.
		used := lockDenomRatio.MulInt(remaining).Quo(paymentRatio).Ceil().TruncateInt()
		if used.GT(coin.Amount) {
			used = coin.Amount
		}

		remaining = math.ZeroInt()
		consumed = consumed.Add(sdk.NewCoin(coin.Denom, used))

		if leftover := coin.Amount.Sub(used); leftover.IsPositive() {
			refund = refund.Add(sdk.NewCoin(coin.Denom, leftover))
		}
	}

	boughtOut := pending.Sub(remaining)

	if remaining.IsPositive() {
		if err := k.PendingSlashes.Set(ctx, lockID, remaining); err != nil {
			return math.Int{}, nil, err
		}
	} else {
		if err := k.PendingSlashes.Remove(ctx, lockID); err != nil {
			return math.Int{}, nil, err
		}
	}

	if !consumed.IsZero() {
		receiver, err := sdk.AccAddressFromBech32(constants.SlashTokensReceiverAddr)
		if err != nil {
			return math.Int{}, nil, err
		}

		if err := k.bankKeeper.SendCoinsFromModuleToAccount(
			ctx, types.ModuleName, receiver, consumed,
		); err != nil {
			return math.Int{}, nil, err
		}
	}

	if !refund.IsZero() {
		if err := k.bankKeeper.SendCoinsFromModuleToAccount(
			ctx, types.ModuleName, sender, refund,
		); err != nil {
			return math.Int{}, nil, err
		}
	}

	if err := k.UpdateRoundHeightMaps(ctx, currentRoundID); err != nil {
		return math.Int{}, nil, err
	}

	return boughtOut, refund, nil
}
