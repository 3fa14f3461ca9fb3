package keeper

import (
	"context"
	"errors"
	"time"

	"cosmossdk.io/collections"

	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/tidal-zone/lockvote/x/lockvote/types"
)

// SetConstants stores a Constants value that becomes active at the given
// timestamp. Older entries stay in place so historical rounds keep the
// configuration they ran under.
func (k Keeper) SetConstants(ctx context.Context, activatedAt time.Time, constants types.Constants) error {
	if err := constants.Validate(); err != nil {
		return err
	}

	return k.Constants.Set(ctx, uint64(activatedAt.UnixNano()), constants)
}

func nanosToTime(nanos uint64) time.Time {
	return time.Unix(0, int64(nanos)).UTC()
}

// GetConstantsActiveAt returns the Constants entry with the highest
// activation timestamp not after the given one.
func (k Keeper) GetConstantsActiveAt(ctx context.Context, timestamp time.Time) (types.Constants, error) {
	rng := new(collections.Range[uint64]).
		EndInclusive(uint64(timestamp.UnixNano())).
		Descending()

	iter, err := k.Constants.Iterate(ctx, rng)
	if err != nil {
		return types.Constants{}, err
	}
	defer iter.Close()

	if !iter.Valid() {
		return types.Constants{}, types.ErrNoConstants.Wrapf("timestamp %s", timestamp)
	}

	return iter.Value()
}

// GetCurrentConstants returns the Constants active at the current block time.
func (k Keeper) GetCurrentConstants(ctx context.Context) (types.Constants, error) {
	return k.GetConstantsActiveAt(ctx, sdk.UnwrapSDKContext(ctx).BlockTime())
}

// IsWhitelistAdmin reports whether the address is in the whitelist admins set.
func (k Keeper) IsWhitelistAdmin(ctx context.Context, address string) (bool, error) {
	admins, err := k.WhitelistAdmins.Get(ctx)
	if err != nil {
		if errors.Is(err, collections.ErrNotFound) {
			return false, nil
		}

		return false, err
	}

	for _, admin := range admins {
		if admin == address {
			return true, nil
		}
	}

	return false, nil
}

func (k Keeper) validateSenderIsWhitelistAdmin(ctx context.Context, sender string) error {
	isAdmin, err := k.IsWhitelistAdmin(ctx, sender)
	if err != nil {
		return err
	}
	if !isAdmin {
		return types.ErrUnauthorized.Wrapf("sender %s", sender)
	}

	return nil
}
