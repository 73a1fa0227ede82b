package transform

import (
	"strings"

	"github.com/samber/lo"

	"github.com/mtlprog/mstate/internal/domain"
	"github.com/mtlprog/mstate/internal/fixedpoint"
	"github.com/mtlprog/mstate/internal/subgraph"
)

func (t *transformer) vault(rec subgraph.BoostedSavingsVault) domain.BoostedSavingsVaultState {
	const d = fixedpoint.DefaultDecimals
	address := strings.ToLower(rec.ID)
	factor, legacy := t.legacy.Lookup(address)

	totalRaw := "0"
	if rec.TotalRaw != nil && *rec.TotalRaw != "" {
		totalRaw = *rec.TotalRaw
	}

	v := domain.BoostedSavingsVaultState{
		Address:              address,
		LastUpdateTime:       rec.LastUpdateTime,
		LockupDuration:       rec.LockupDuration,
		PeriodDuration:       rec.PeriodDuration,
		PeriodFinish:         rec.PeriodFinish,
		RewardPerTokenStored: t.p.bigInt("vault.rewardPerTokenStored", rec.RewardPerTokenStored),
		RewardRate:           t.p.bigInt("vault.rewardRate", rec.RewardRate),
		StakingContract:      strings.ToLower(rec.StakingContract),
		StakingToken:         tokenRef(rec.StakingToken),
		RewardsToken:         tokenRef(rec.RewardsToken),
		TotalStakingRewards:  t.p.human("vault.totalStakingRewards", rec.TotalStakingRewards, d),
		TotalSupply:          t.p.exact("vault.totalSupply", rec.TotalSupply, d),
		TotalRaw:             t.p.exact("vault.totalRaw", totalRaw, d),
		UnlockPercentage:     t.p.bigInt("vault.unlockPercentage", rec.UnlockPercentage),
		PriceCoeff:           t.p.optFloat("vault.priceCoeff", rec.PriceCoeff),
		BoostCoeff:           t.p.optFloat("vault.boostCoeff", rec.BoostCoeff),
		IsImusd:              legacy,
	}

	if rec.PlatformRewardsToken != nil && lo.FromPtr(rec.PlatformRewardPerTokenStored) != "" && lo.FromPtr(rec.PlatformRewardRate) != "" {
		ref := tokenRef(*rec.PlatformRewardsToken)
		v.PlatformRewardsToken = &ref
		v.PlatformRewardRate = t.p.bigInt("vault.platformRewardRate", *rec.PlatformRewardRate)
		v.PlatformRewardPerTokenStored = t.p.bigInt("vault.platformRewardPerTokenStored", *rec.PlatformRewardPerTokenStored)
	}

	if len(rec.Accounts) > 0 {
		if !legacy {
			factor = 1
		}
		a := t.vaultAccount(rec.Accounts[0], factor)
		v.Account = &a
	}

	return v
}

func (t *transformer) vaultAccount(rec subgraph.VaultAccount, factor int64) domain.BoostedSavingsVaultAccountState {
	const d = fixedpoint.DefaultDecimals
	boosted := t.p.exact("vaultAccount.boostedBalance", rec.BoostedBalance, d)
	raw := t.p.exact("vaultAccount.rawBalance", rec.RawBalance, d)

	a := domain.BoostedSavingsVaultAccountState{
		BoostedBalance:     boosted,
		RawBalance:         raw,
		BoostMultiplier:    BoostMultiplier(boosted, raw) * float64(factor),
		LastAction:         rec.LastAction,
		LastClaim:          rec.LastClaim,
		RewardCount:        rec.RewardCount,
		RewardPerTokenPaid: t.p.bigInt("vaultAccount.rewardPerTokenPaid", rec.RewardPerTokenPaid),
		Rewards:            t.p.bigInt("vaultAccount.rewards", rec.Rewards),
		RewardEntries: lo.Map(rec.RewardEntries, func(e subgraph.RewardEntry, _ int) domain.RewardEntry {
			return domain.RewardEntry{
				Index:  e.Index,
				Start:  e.Start,
				Finish: e.Finish,
				Rate:   t.p.bigInt("vaultAccount.rewardEntry.rate", e.Rate),
			}
		}),
	}

	if lo.FromPtr(rec.PlatformRewards) != "" && lo.FromPtr(rec.PlatformRewardPerTokenPaid) != "" {
		a.PlatformRewards = t.p.bigInt("vaultAccount.platformRewards", *rec.PlatformRewards)
		a.PlatformRewardPerTokenPaid = t.p.bigInt("vaultAccount.platformRewardPerTokenPaid", *rec.PlatformRewardPerTokenPaid)
	}

	return a
}

// BoostMultiplier is boosted / raw, or 1 when either balance is zero.
func BoostMultiplier(boosted, raw fixedpoint.Decimal) float64 {
	if boosted.IsZero() || raw.IsZero() {
		return 1
	}
	ratio, err := boosted.Rescale(raw.Decimals()).DivPrecisely(raw)
	if err != nil {
		return 1
	}
	return ratio.Float64()
}

func tokenRef(r subgraph.TokenRef) domain.TokenRef {
	return domain.TokenRef{Address: strings.ToLower(r.Address), Symbol: domain.NormalizeSymbol(r.Symbol)}
}
