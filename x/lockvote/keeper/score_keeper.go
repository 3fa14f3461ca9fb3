package keeper

import (
	"context"
	"errors"
	"sort"

	"cosmossdk.io/collections"
	"cosmossdk.io/math"

	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/tidal-zone/lockvote/x/lockvote/types"
)

// GetTotalPowerForProposal returns the proposal's total voting power as a
// decimal, zero if it has never been voted on.
func (k Keeper) GetTotalPowerForProposal(ctx context.Context, proposalID uint64) (math.LegacyDec, error) {
	power, err := k.ProposalTotalPower.Get(ctx, proposalID)
	if err != nil {
		if errors.Is(err, collections.ErrNotFound) {
			return math.LegacyZeroDec(), nil
		}

		return math.LegacyDec{}, err
	}

	return power, nil
}

// GetTotalPowerForRound returns the round's total voting power, zero when no
// lock gives power in it.
func (k Keeper) GetTotalPowerForRound(ctx context.Context, roundID uint64) (math.Int, error) {
	power, err := k.RoundTotalPower.Get(ctx, roundID)
	if err != nil {
		if errors.Is(err, collections.ErrNotFound) {
			return math.ZeroInt(), nil
		}

		return math.Int{}, err
	}

	return power, nil
}

// GetTokenGroupSharesForRound returns the scaled shares accumulated for the
// token group in the round.
func (k Keeper) GetTokenGroupSharesForRound(ctx context.Context, roundID uint64, tokenGroupID string) (math.LegacyDec, error) {
	shares, err := k.ScaledRoundShares.Get(ctx, collections.Join(roundID, tokenGroupID))
	if err != nil {
		if errors.Is(err, collections.ErrNotFound) {
			return math.LegacyZeroDec(), nil
		}

		return math.LegacyDec{}, err
	}

	return shares, nil
}

// GetTokenGroupSharesForProposal returns the scaled shares the token group
// contributed to the proposal.
func (k Keeper) GetTokenGroupSharesForProposal(ctx context.Context, proposalID uint64, tokenGroupID string) (math.LegacyDec, error) {
	shares, err := k.ScaledProposalShares.Get(ctx, collections.Join(proposalID, tokenGroupID))
	if err != nil {
		if errors.Is(err, collections.ErrNotFound) {
			return math.LegacyZeroDec(), nil
		}

		return math.LegacyDec{}, err
	}

	return shares, nil
}

// AddTokenGroupSharesToRoundTotal adds scaled shares for the token group to
// the round accumulator and bumps the round's total voting power by the
// shares multiplied with the token ratio. The total is snapshotted at the
// current height, rounded up.
func (k Keeper) AddTokenGroupSharesToRoundTotal(
	ctx context.Context,
	roundID uint64,
	tokenGroupID string,
	tokenRatio math.LegacyDec,
	shares math.LegacyDec,
) error {
	currentShares, err := k.GetTokenGroupSharesForRound(ctx, roundID, tokenGroupID)
	if err != nil {
		return err
	}

	key := collections.Join(roundID, tokenGroupID)
	if err := k.ScaledRoundShares.Set(ctx, key, currentShares.Add(shares)); err != nil {
		return err
	}

	totalBefore, err := k.GetTotalPowerForRound(ctx, roundID)
	if err != nil {
		return err
	}

	totalAfter := totalBefore.ToLegacyDec().Add(shares.Mul(tokenRatio)).Ceil().TruncateInt()
	height := uint64(sdk.UnwrapSDKContext(ctx).BlockHeight())

	return k.RoundTotalPower.Set(ctx, roundID, totalAfter, height)
}

// proposalPowerChanges accumulates per-proposal, per-token-group scaled share
// deltas. Deltas can be negative; they are applied in one pass per proposal.
type proposalPowerChanges map[uint64]map[string]math.LegacyDec

func (c proposalPowerChanges) add(proposalID uint64, tokenGroupID string, shares math.LegacyDec) {
	groups, ok := c[proposalID]
	if !ok {
		groups = map[string]math.LegacyDec{}
		c[proposalID] = groups
	}

	current, ok := groups[tokenGroupID]
	if !ok {
		current = math.LegacyZeroDec()
	}

	groups[tokenGroupID] = current.Add(shares)
}

func (c proposalPowerChanges) merge(other proposalPowerChanges) {
	for proposalID, groups := range other {
		for tokenGroupID, shares := range groups {
			c.add(proposalID, tokenGroupID, shares)
		}
	}
}

// ApplyProposalPowerChanges applies accumulated share deltas to the proposal
// share maps and proposal total powers, using the round's token ratios, and
// refreshes the stored proposal powers.
func (k Keeper) ApplyProposalPowerChanges(
	ctx context.Context,
	roundID, trancheID uint64,
	changes proposalPowerChanges,
) error {
	proposalIDs := make([]uint64, 0, len(changes))
	for proposalID := range changes {
		proposalIDs = append(proposalIDs, proposalID)
	}
	sort.Slice(proposalIDs, func(i, j int) bool { return proposalIDs[i] < proposalIDs[j] })

	for _, proposalID := range proposalIDs {
		groups := changes[proposalID]

		tokenGroupIDs := make([]string, 0, len(groups))
		for tokenGroupID := range groups {
			tokenGroupIDs = append(tokenGroupIDs, tokenGroupID)
		}
		sort.Strings(tokenGroupIDs)

		totalPower, err := k.GetTotalPowerForProposal(ctx, proposalID)
		if err != nil {
			return err
		}

		changed := false
		for _, tokenGroupID := range tokenGroupIDs {
			shares := groups[tokenGroupID]
			if shares.IsZero() {
				continue
			}

			currentShares, err := k.GetTokenGroupSharesForProposal(ctx, proposalID, tokenGroupID)
			if err != nil {
				return err
			}

			updatedShares := currentShares.Add(shares)
			if updatedShares.IsNegative() {
				return types.ErrInsufficientShares.Wrapf(
					"proposal %d token group %s", proposalID, tokenGroupID)
			}

			key := collections.Join(proposalID, tokenGroupID)
			if err := k.ScaledProposalShares.Set(ctx, key, updatedShares); err != nil {
				return err
			}

			ratio, err := k.GetTokenGroupRatio(ctx, roundID, tokenGroupID)
			if err != nil {
				return err
			}

			totalPower = totalPower.Add(shares.Mul(ratio))
			changed = true
		}

		if !changed {
			continue
		}

		if totalPower.IsNegative() {
			return types.ErrInsufficientTotalPower.Wrapf("proposal %d", proposalID)
		}

		if err := k.ProposalTotalPower.Set(ctx, proposalID, totalPower); err != nil {
			return err
		}

		if err := k.refreshProposalPower(ctx, roundID, trancheID, proposalID, totalPower); err != nil {
			return err
		}
	}

	return nil
}

func (k Keeper) refreshProposalPower(ctx context.Context, roundID, trancheID, proposalID uint64, totalPower math.LegacyDec) error {
	key := collections.Join3(roundID, trancheID, proposalID)

	proposal, err := k.Proposals.Get(ctx, key)
	if err != nil {
		return err
	}

	proposal.Power = totalPower.Ceil().TruncateInt()

	return k.Proposals.Set(ctx, key, proposal)
}

// ApplyTokenGroupRatioChanges reconciles proposal and round powers after the
// ratio of one or more token groups changed within the current round.
func (k Keeper) ApplyTokenGroupRatioChanges(
	ctx context.Context,
	currentRoundID uint64,
	ratioChanges []types.TokenRatioChange,
) error {
	if err := k.updateProposalPowersForRatioChanges(ctx, currentRoundID, ratioChanges); err != nil {
		return err
	}

	return k.updateRoundTotalsForRatioChanges(ctx, currentRoundID, ratioChanges)
}

func (k Keeper) updateProposalPowersForRatioChanges(
	ctx context.Context,
	roundID uint64,
	ratioChanges []types.TokenRatioChange,
) error {
	trancheIDs, err := k.getTrancheIDs(ctx)
	if err != nil {
		return err
	}

	for _, trancheID := range trancheIDs {
		rng := collections.NewSuperPrefixedTripleRange[uint64, uint64, uint64](roundID, trancheID)

		iter, err := k.Proposals.Iterate(ctx, rng)
		if err != nil {
			return err
		}

		proposals, err := iter.Values()
		iter.Close()
		if err != nil {
			return err
		}

		for _, proposal := range proposals {
			initialPower, err := k.GetTotalPowerForProposal(ctx, proposal.ProposalId)
			if err != nil {
				return err
			}
			currentPower := initialPower

			for _, change := range ratioChanges {
				shares, err := k.GetTokenGroupSharesForProposal(ctx, proposal.ProposalId, change.TokenGroupId)
				if err != nil {
					return err
				}
				if shares.IsZero() {
					continue
				}

				currentPower = currentPower.
					Sub(shares.Mul(change.OldRatio)).
					Add(shares.Mul(change.NewRatio))
			}

			if currentPower.Equal(initialPower) {
				continue
			}

			if err := k.ProposalTotalPower.Set(ctx, proposal.ProposalId, currentPower); err != nil {
				return err
			}

			if err := k.refreshProposalPower(ctx, roundID, trancheID, proposal.ProposalId, currentPower); err != nil {
				return err
			}
		}
	}

	return nil
}

func (k Keeper) updateRoundTotalsForRatioChanges(
	ctx context.Context,
	currentRoundID uint64,
	ratioChanges []types.TokenRatioChange,
) error {
	height := uint64(sdk.UnwrapSDKContext(ctx).BlockHeight())

	pending := make(map[string]types.TokenRatioChange, len(ratioChanges))
	for _, change := range ratioChanges {
		pending[change.TokenGroupId] = change
	}

	// Walk current and future rounds until the first one with no recorded
	// total; no lock gives power beyond it.
	for roundID := currentRoundID; len(pending) > 0; roundID++ {
		has, err := k.RoundTotalPower.Has(ctx, roundID)
		if err != nil {
			return err
		}
		if !has {
			break
		}

		totalBefore, err := k.GetTotalPowerForRound(ctx, roundID)
		if err != nil {
			return err
		}
		totalCurrent := totalBefore.ToLegacyDec()

		tokenGroupIDs := make([]string, 0, len(pending))
		for tokenGroupID := range pending {
			tokenGroupIDs = append(tokenGroupIDs, tokenGroupID)
		}
		sort.Strings(tokenGroupIDs)

		for _, tokenGroupID := range tokenGroupIDs {
			change := pending[tokenGroupID]

			shares, err := k.GetTokenGroupSharesForRound(ctx, roundID, tokenGroupID)
			if err != nil {
				return err
			}
			if shares.IsZero() {
				// No shares in this round means none in any later round either.
				delete(pending, tokenGroupID)
				continue
			}

			totalCurrent = totalCurrent.
				Sub(shares.Mul(change.OldRatio)).
				Add(shares.Mul(change.NewRatio))
		}

		if !totalCurrent.Equal(totalBefore.ToLegacyDec()) {
			if err := k.RoundTotalPower.Set(ctx, roundID, totalCurrent.Ceil().TruncateInt(), height); err != nil {
				return err
			}
		}
	}

	return nil
}

func (k Keeper) getTrancheIDs(ctx context.Context) ([]uint64, error) {
	iter, err := k.Tranches.Iterate(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	return iter.Keys()
}
