package keeper

import (
	"context"
	"errors"

	"cosmossdk.io/collections"

	"github.com/tidal-zone/lockvote/x/lockvote/types"
)

// InitGenesis sets up the module state from the genesis data.
func (k Keeper) InitGenesis(ctx context.Context, genState *types.GenesisState) error {
	for _, entry := range genState.Constants {
		if err := k.SetConstants(ctx, entry.ActivatedAt, entry.Constants); err != nil {
			return err
		}
	}

	if len(genState.WhitelistAdmins) > 0 {
		if err := k.WhitelistAdmins.Set(ctx, genState.WhitelistAdmins); err != nil {
			return err
		}
	}

	var maxTrancheID uint64
	for _, tranche := range genState.Tranches {
		if err := k.Tranches.Set(ctx, tranche.Id, tranche); err != nil {
			return err
		}
		if tranche.Id >= maxTrancheID {
			maxTrancheID = tranche.Id + 1
		}
	}

	if maxTrancheID > 0 {
		if err := k.NextTrancheID.Set(ctx, maxTrancheID); err != nil {
			return err
		}
	}

	for _, provider := range genState.TokenInfoProviders {
		if err := k.TokenInfoProviders.Set(ctx, provider.Id, provider); err != nil {
			return err
		}
	}

	return nil
}

// ExportGenesis returns the module's exportable state.
func (k Keeper) ExportGenesis(ctx context.Context) (*types.GenesisState, error) {
	genState := types.DefaultGenesisState()

	constantsIter, err := k.Constants.Iterate(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer constantsIter.Close()

	for ; constantsIter.Valid(); constantsIter.Next() {
		kv, err := constantsIter.KeyValue()
		if err != nil {
			return nil, err
		}

		genState.Constants = append(genState.Constants, types.ConstantsEntry{
			ActivatedAt: nanosToTime(kv.Key),
			Constants:   kv.Value,
		})
	}

	admins, err := k.WhitelistAdmins.Get(ctx)
	if err != nil && !errors.Is(err, collections.ErrNotFound) {
		return nil, err
	}
	genState.WhitelistAdmins = admins

	tranchesIter, err := k.Tranches.Iterate(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tranchesIter.Close()

	genState.Tranches, err = tranchesIter.Values()
	if err != nil {
		return nil, err
	}

	providersIter, err := k.TokenInfoProviders.Iterate(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer providersIter.Close()

	genState.TokenInfoProviders, err = providersIter.Values()
	if err != nil {
		return nil, err
	}

	return genState, nil
}
