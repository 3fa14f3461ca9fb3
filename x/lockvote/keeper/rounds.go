package keeper

import (
	"context"
	"errors"
	"time"

	"cosmossdk.io/collections"

	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/tidal-zone/lockvote/x/lockvote/types"
)

// ComputeRoundIDForTimestamp returns the round the given timestamp falls
// into, by dividing the time since the first round start by the round length.
func ComputeRoundIDForTimestamp(constants types.Constants, timestamp time.Time) (uint64, error) {
	if timestamp.Before(constants.FirstRoundStart) {
		return 0, types.ErrRoundNotStarted
	}

	return uint64(timestamp.Sub(constants.FirstRoundStart) / constants.RoundLength), nil
}

// ComputeCurrentRoundID returns the round the current block time falls into.
func (k Keeper) ComputeCurrentRoundID(ctx context.Context, constants types.Constants) (uint64, error) {
	return ComputeRoundIDForTimestamp(constants, sdk.UnwrapSDKContext(ctx).BlockTime())
}

// ComputeRoundEnd returns the end timestamp of the given round.
func ComputeRoundEnd(constants types.Constants, roundID uint64) time.Time {
	return constants.FirstRoundStart.Add(constants.RoundLength * time.Duration(roundID+1))
}

// UpdateRoundHeightMaps records the current block height in the round's known
// height range and the height to round index. Called on every state-mutating
// operation so historical snapshot reads can pick the right height boundary.
func (k Keeper) UpdateRoundHeightMaps(ctx context.Context, roundID uint64) error {
	height := uint64(sdk.UnwrapSDKContext(ctx).BlockHeight())

	heightRange, err := k.RoundHeightRange.Get(ctx, roundID)
	switch {
	case err == nil:
		heightRange.HighestKnownHeight = height
	case errors.Is(err, collections.ErrNotFound):
		heightRange = types.HeightRange{
			LowestKnownHeight:  height,
			HighestKnownHeight: height,
		}
	default:
		return err
	}

	if err := k.RoundHeightRange.Set(ctx, roundID, heightRange); err != nil {
		return err
	}

	if err := k.HeightToRound.Set(ctx, height, roundID); err != nil {
		return err
	}

	// The first recorded height is the lowest one snapshot reads can serve.
	has, err := k.SnapshotActivationHeight.Has(ctx)
	if err != nil {
		return err
	}
	if !has {
		return k.SnapshotActivationHeight.Set(ctx, height)
	}

	return nil
}

// GetHighestKnownHeightForRound returns the highest block height at which a
// transaction was executed within the given round, or zero if none was.
func (k Keeper) GetHighestKnownHeightForRound(ctx context.Context, roundID uint64) (uint64, error) {
	heightRange, err := k.RoundHeightRange.Get(ctx, roundID)
	if err != nil {
		if errors.Is(err, collections.ErrNotFound) {
			return 0, nil
		}

		return 0, err
	}

	return heightRange.HighestKnownHeight, nil
}
