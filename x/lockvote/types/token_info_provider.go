package types

import (
	"fmt"
)

// Token info provider kinds. Providers resolve token denoms to the token
// group they belong to, and token groups to their round-scoped ratio against
// the base token. CosmWasm-style trait objects can not be stored, so the
// variants live in one tagged struct.
const (
	// ProviderKindLsm handles liquid-staked validator share tokens; the
	// token group is the validator address and ratios follow the validator
	// power ratio registered per round.
	ProviderKindLsm = "lsm"
	// ProviderKindDerivative handles a single derivative token (e.g. a
	// liquid-staking derivative) whose ratio is registered per round.
	ProviderKindDerivative = "derivative"
	// ProviderKindBase handles the base token itself, with a constant
	// ratio of one.
	ProviderKindBase = "base"
)

// LsmProviderID keys the LSM provider in the provider store, since there can
// be at most one of them.
const LsmProviderID = "lsm_token_info_provider"

// TokenInfoProvider is one registered ratio source. Kind selects the variant;
// the remaining fields apply to the variants that use them.
type TokenInfoProvider struct {
	Id   string `json:"id"`
	Kind string `json:"kind"`

	// MaxValidatorsParticipating bounds the validator set the LSM provider
	// accepts token groups from.
	MaxValidatorsParticipating uint64 `json:"max_validators_participating,omitempty"`

	// Denom and TokenGroupId bind the derivative and base variants to the
	// single denomination they serve.
	Denom        string `json:"denom,omitempty"`
	TokenGroupId string `json:"token_group_id,omitempty"`
}

func (p TokenInfoProvider) Validate() error {
	switch p.Kind {
	case ProviderKindLsm:
		if p.MaxValidatorsParticipating == 0 {
			return fmt.Errorf("lsm provider must allow at least one validator")
		}
	case ProviderKindDerivative, ProviderKindBase:
		if p.Denom == "" || p.TokenGroupId == "" {
			return fmt.Errorf("%s provider must set denom and token group id", p.Kind)
		}
	default:
		return fmt.Errorf("unknown token info provider kind %q", p.Kind)
	}

	if p.Id == "" {
		return fmt.Errorf("token info provider id must be set")
	}

	return nil
}
