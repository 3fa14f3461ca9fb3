package keeper

import (
	"context"
	"errors"

	"cosmossdk.io/collections"
	"cosmossdk.io/math"

	"github.com/tidal-zone/lockvote/x/lockvote/types"
)

// The token manager resolves token denoms to the token group they belong to
// and token groups to their round-scoped ratio against the base token. It
// fans out over the registered providers; whichever one claims the denom
// wins. Ratios are registered per round and never backfilled, so a missing
// ratio reads as zero rather than an error.

// AddTokenInfoProvider registers a new provider. There can be at most one LSM
// provider, stored under a fixed id.
func (k Keeper) AddTokenInfoProvider(ctx context.Context, provider types.TokenInfoProvider, lsmDenoms map[string]string) error {
	if err := provider.Validate(); err != nil {
		return err
	}

	if provider.Kind == types.ProviderKindLsm {
		provider.Id = types.LsmProviderID
	}

	has, err := k.TokenInfoProviders.Has(ctx, provider.Id)
	if err != nil {
		return err
	}
	if has {
		return types.ErrTokenInfoProviderExists.Wrapf("id %s", provider.Id)
	}

	if err := k.TokenInfoProviders.Set(ctx, provider.Id, provider); err != nil {
		return err
	}

	if provider.Kind == types.ProviderKindLsm {
		for denom, validator := range lsmDenoms {
			if err := k.LsmDenoms.Set(ctx, denom, validator); err != nil {
				return err
			}
		}
	}

	return nil
}

// ResolveDenomTokenGroup resolves a denom to the token group it belongs to in
// the given round, or ErrInvalidDenom if no provider claims it.
func (k Keeper) ResolveDenomTokenGroup(ctx context.Context, roundID uint64, denom string) (string, error) {
	providers, err := k.getTokenInfoProviders(ctx)
	if err != nil {
		return "", err
	}
	if len(providers) == 0 {
		return "", types.ErrNoTokenInfoProviders
	}

	for _, provider := range providers {
		tokenGroupID, err := k.resolveDenomWithProvider(ctx, provider, roundID, denom)
		if err == nil {
			return tokenGroupID, nil
		}
	}

	return "", types.ErrInvalidDenom.Wrapf("denom %s in round %d", denom, roundID)
}

func (k Keeper) resolveDenomWithProvider(ctx context.Context, provider types.TokenInfoProvider, roundID uint64, denom string) (string, error) {
	switch provider.Kind {
	case types.ProviderKindBase:
		if provider.Denom == denom {
			return provider.TokenGroupId, nil
		}

	case types.ProviderKindDerivative:
		if provider.Denom != denom {
			break
		}

		// A derivative token is lockable only in rounds its ratio is known for.
		ratio, err := k.getRegisteredRatio(ctx, roundID, provider.TokenGroupId)
		if err != nil {
			return "", err
		}
		if ratio.IsZero() {
			return "", types.ErrInvalidDenom.Wrapf("ratio not available for round %d", roundID)
		}

		return provider.TokenGroupId, nil

	case types.ProviderKindLsm:
		validator, err := k.LsmDenoms.Get(ctx, denom)
		if err != nil {
			break
		}

		// The validator must be among the participating set for the round,
		// which is exactly the set a ratio was registered for.
		ratio, err := k.getRegisteredRatio(ctx, roundID, validator)
		if err != nil {
			return "", err
		}
		if ratio.IsZero() {
			return "", types.ErrInvalidDenom.Wrapf(
				"validator %s is not among the top %d participating in round %d",
				validator, provider.MaxValidatorsParticipating, roundID)
		}

		return validator, nil
	}

	return "", types.ErrInvalidDenom.Wrapf("denom %s", denom)
}

// GetTokenGroupRatio returns the token group's ratio to the base token for
// the given round, or zero when no provider can supply it.
func (k Keeper) GetTokenGroupRatio(ctx context.Context, roundID uint64, tokenGroupID string) (math.LegacyDec, error) {
	providers, err := k.getTokenInfoProviders(ctx)
	if err != nil {
		return math.LegacyDec{}, err
	}

	for _, provider := range providers {
		switch provider.Kind {
		case types.ProviderKindBase:
			if provider.TokenGroupId == tokenGroupID {
				return math.LegacyOneDec(), nil
			}

		case types.ProviderKindDerivative:
			if provider.TokenGroupId != tokenGroupID {
				continue
			}

			return k.getRegisteredRatio(ctx, roundID, tokenGroupID)

		case types.ProviderKindLsm:
			ratio, err := k.getRegisteredRatio(ctx, roundID, tokenGroupID)
			if err != nil {
				return math.LegacyDec{}, err
			}
			if !ratio.IsZero() {
				return ratio, nil
			}
		}
	}

	return math.LegacyZeroDec(), nil
}

// GetTokenDenomRatio resolves the denom and returns its token group's ratio
// for the round, or zero when the denom cannot be resolved.
func (k Keeper) GetTokenDenomRatio(ctx context.Context, roundID uint64, denom string) (math.LegacyDec, error) {
	tokenGroupID, err := k.ResolveDenomTokenGroup(ctx, roundID, denom)
	if err != nil {
		if errors.Is(err, types.ErrInvalidDenom) || errors.Is(err, types.ErrNoTokenInfoProviders) {
			return math.LegacyZeroDec(), nil
		}

		return math.LegacyDec{}, err
	}

	return k.GetTokenGroupRatio(ctx, roundID, tokenGroupID)
}

// RegisterTokenRatios stores the ratios of token groups towards the base
// token for one round. When ratios change within the current round, powers
// already computed with the old ratios are reconciled.
func (k Keeper) RegisterTokenRatios(ctx context.Context, currentRoundID, roundID uint64, ratios []types.TokenRatio) error {
	changes := make([]types.TokenRatioChange, 0, len(ratios))
	for _, ratio := range ratios {
		oldRatio, err := k.getRegisteredRatio(ctx, roundID, ratio.TokenGroupId)
		if err != nil {
			return err
		}

		key := collections.Join(roundID, ratio.TokenGroupId)
		if err := k.TokenGroupRatios.Set(ctx, key, ratio.Ratio); err != nil {
			return err
		}

		if !oldRatio.Equal(ratio.Ratio) {
			changes = append(changes, types.TokenRatioChange{
				TokenGroupId: ratio.TokenGroupId,
				OldRatio:     oldRatio,
				NewRatio:     ratio.Ratio,
			})
		}
	}

	if roundID != currentRoundID || len(changes) == 0 {
		return nil
	}

	return k.ApplyTokenGroupRatioChanges(ctx, currentRoundID, changes)
}

func (k Keeper) getRegisteredRatio(ctx context.Context, roundID uint64, tokenGroupID string) (math.LegacyDec, error) {
	ratio, err := k.TokenGroupRatios.Get(ctx, collections.Join(roundID, tokenGroupID))
	if err != nil {
		if errors.Is(err, collections.ErrNotFound) {
			return math.LegacyZeroDec(), nil
		}

		return math.LegacyDec{}, err
	}

	return ratio, nil
}

func (k Keeper) getTokenInfoProviders(ctx context.Context) ([]types.TokenInfoProvider, error) {
	iter, err := k.TokenInfoProviders.Iterate(ctx, nil)
	if err != nil {
		return nil, err
	}

	return iter.Values()
}
