package keeper

import (
	"context"
	"errors"
	"sort"
	"time"

	"cosmossdk.io/collections"
	"cosmossdk.io/math"

	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/tidal-zone/lockvote/x/lockvote/types"
)

const (
	// lockDepthLimit caps how long a chain of splits and merges can grow
	// before the oldest links age out.
	lockDepthLimit = 50

	// lockRetirementAge is how long a consumed lock keeps counting towards
	// the ancestor depth of its successors.
	lockRetirementAge = 30 * 24 * time.Hour
)

// GetCurrentLockComposition flattens the successor graph of the given lock id
// into the currently existing lock ids and the fraction of the original
// lock's value each one holds. Fractions over multiple paths to the same leaf
// are summed; the result is sorted by lock id and its fractions sum to one.
func (k Keeper) GetCurrentLockComposition(ctx context.Context, lockID uint64) ([]types.LockSuccessor, error) {
	leaves := map[uint64]math.LegacyDec{}

	type frame struct {
		id       uint64
		fraction math.LegacyDec
		path     map[uint64]bool
	}

	stack := []frame{{
		id:       lockID,
		fraction: math.LegacyOneDec(),
		path:     map[uint64]bool{lockID: true},
	}}

	for len(stack) > 0 {
		current := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		successors, err := k.LockSuccessors.Get(ctx, current.id)
		if err != nil {
			if errors.Is(err, collections.ErrNotFound) {
				// No successors, this is a currently existing lock.
				fraction, ok := leaves[current.id]
				if !ok {
					fraction = math.LegacyZeroDec()
				}
				leaves[current.id] = fraction.Add(current.fraction)

				continue
			}

			return nil, err
		}

		for _, successor := range successors {
			// A successor can be reached over multiple paths, but never over
			// a path that already contains it.
			if current.path[successor.LockId] {
				return nil, types.ErrCompositionCycle.Wrapf("lock %d", successor.LockId)
			}

			path := make(map[uint64]bool, len(current.path)+1)
			for id := range current.path {
				path[id] = true
			}
			path[successor.LockId] = true

			stack = append(stack, frame{
				id:       successor.LockId,
				fraction: current.fraction.Mul(successor.Fraction),
				path:     path,
			})
		}
	}

	result := make([]types.LockSuccessor, 0, len(leaves))
	for id, fraction := range leaves {
		result = append(result, types.LockSuccessor{LockId: id, Fraction: fraction})
	}

	sort.Slice(result, func(i, j int) bool { return result[i].LockId < result[j].LockId })

	return result, nil
}

// GetLockAncestorDepth returns the length of the longest chain of
// still-relevant ancestors above the given lock. An ancestor consumed long
// enough ago no longer counts, and cuts off the history above it.
func (k Keeper) GetLockAncestorDepth(ctx context.Context, lockID uint64) (uint64, error) {
	blockTime := sdk.UnwrapSDKContext(ctx).BlockTime()
	memo := map[uint64]uint64{}

	var depth func(id uint64, visiting map[uint64]bool) (uint64, error)
	depth = func(id uint64, visiting map[uint64]bool) (uint64, error) {
		if cached, ok := memo[id]; ok {
			return cached, nil
		}
		if visiting[id] {
			return 0, types.ErrCompositionCycle.Wrapf("lock %d", id)
		}
		visiting[id] = true
		defer delete(visiting, id)

		parents, err := k.LockPredecessors.Get(ctx, id)
		if err != nil {
			if errors.Is(err, collections.ErrNotFound) {
				memo[id] = 0
				return 0, nil
			}

			return 0, err
		}

		maxParentDepth := uint64(0)
		for _, parent := range parents {
			retired, err := k.isLockRetirementAgedOut(ctx, parent, blockTime)
			if err != nil {
				return 0, err
			}
			if retired {
				// History above an aged-out ancestor is forgiven entirely.
				memo[id] = 0
				return 0, nil
			}

			parentDepth, err := depth(parent, visiting)
			if err != nil {
				return 0, err
			}
			if parentDepth > maxParentDepth {
				maxParentDepth = parentDepth
			}
		}

		result := uint64(0)
		if len(parents) > 0 {
			result = maxParentDepth + 1
		}
		memo[id] = result

		return result, nil
	}

	return depth(lockID, map[uint64]bool{})
}

func (k Keeper) isLockRetirementAgedOut(ctx context.Context, lockID uint64, blockTime time.Time) (bool, error) {
	retiredAt, err := k.LockRetiredAt.Get(ctx, lockID)
	if err != nil {
		if errors.Is(err, collections.ErrNotFound) {
			return false, nil
		}

		return false, err
	}

	return blockTime.Sub(retiredAt) > lockRetirementAge, nil
}

// recordLockSuccessors writes the forward and reverse composition edges for
// locks produced by a split or merge, and stamps the consumed parents.
func (k Keeper) recordLockSuccessors(ctx context.Context, parentID uint64, successors []types.LockSuccessor) error {
	if err := k.LockSuccessors.Set(ctx, parentID, successors); err != nil {
		return err
	}

	for _, successor := range successors {
		parents, err := k.LockPredecessors.Get(ctx, successor.LockId)
		if err != nil && !errors.Is(err, collections.ErrNotFound) {
			return err
		}

		parents = append(parents, parentID)
		if err := k.LockPredecessors.Set(ctx, successor.LockId, parents); err != nil {
			return err
		}
	}

	return k.LockRetiredAt.Set(ctx, parentID, sdk.UnwrapSDKContext(ctx).BlockTime())
}
