package types

import (
	"fmt"
	"time"

	sdk "github.com/cosmos/cosmos-sdk/types"
)

// ConstantsEntry pairs a Constants value with its activation timestamp.
type ConstantsEntry struct {
	ActivatedAt time.Time `json:"activated_at"`
	Constants   Constants `json:"constants"`
}

type GenesisState struct {
	Constants          []ConstantsEntry    `json:"constants"`
	WhitelistAdmins    []string            `json:"whitelist_admins"`
	Tranches           []Tranche           `json:"tranches"`
	TokenInfoProviders []TokenInfoProvider `json:"token_info_providers"`
}

func DefaultGenesisState() *GenesisState {
	return &GenesisState{
		Constants:          nil,
		WhitelistAdmins:    nil,
		Tranches:           nil,
		TokenInfoProviders: nil,
	}
}

func (gs GenesisState) Validate() error {
	for i, entry := range gs.Constants {
		if err := entry.Constants.Validate(); err != nil {
			return fmt.Errorf("constants entry %d: %w", i, err)
		}
	}

	for _, admin := range gs.WhitelistAdmins {
		if _, err := sdk.AccAddressFromBech32(admin); err != nil {
			return fmt.Errorf("invalid whitelist admin address %q: %w", admin, err)
		}
	}

	seenTranches := map[uint64]bool{}
	for _, tranche := range gs.Tranches {
		if seenTranches[tranche.Id] {
			return fmt.Errorf("duplicate tranche id %d", tranche.Id)
		}
		seenTranches[tranche.Id] = true
	}

	seenProviders := map[string]bool{}
	for _, provider := range gs.TokenInfoProviders {
		if err := provider.Validate(); err != nil {
			return err
		}
		if seenProviders[provider.Id] {
			return fmt.Errorf("duplicate token info provider id %q", provider.Id)
		}
		seenProviders[provider.Id] = true
	}

	return nil
}
