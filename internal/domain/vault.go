package domain

import (
	"math/big"
	"strings"

	"github.com/mtlprog/mstate/internal/fixedpoint"
)

// RewardEntry is one reward-rate period of a vault account, kept in emission (chronological) order.
type RewardEntry struct {
	Index  int      `json:"index"`
	Start  int64    `json:"start"`
	Finish int64    `json:"finish"`
	Rate   *big.Int `json:"rate"`
}

// BoostedSavingsVaultAccountState is the watched account's position in a boosted savings vault.
type BoostedSavingsVaultAccountState struct {
	BoostedBalance             fixedpoint.Decimal `json:"boostedBalance"`
	RawBalance                 fixedpoint.Decimal `json:"rawBalance"`
	BoostMultiplier            float64            `json:"boostMultiplier"`
	LastAction                 int64              `json:"lastAction"`
	LastClaim                  int64              `json:"lastClaim"`
	RewardCount                int                `json:"rewardCount"`
	RewardPerTokenPaid         *big.Int           `json:"rewardPerTokenPaid"`
	Rewards                    *big.Int           `json:"rewards"`
	PlatformRewardPerTokenPaid *big.Int           `json:"platformRewardPerTokenPaid,omitempty"`
	PlatformRewards            *big.Int           `json:"platformRewards,omitempty"`
	RewardEntries              []RewardEntry      `json:"rewardEntries"`
}

// ActiveRewardEntry returns the first entry whose finish time is at or after now.
func (a BoostedSavingsVaultAccountState) ActiveRewardEntry(now int64) (RewardEntry, bool) {
	for _, e := range a.RewardEntries {
		if e.Finish >= now {
			return e, true
		}
	}
	return RewardEntry{}, false
}

// BoostedSavingsVaultState is a staking vault whose rewards are boosted by governance voting power.
type BoostedSavingsVaultState struct {
	Address                      string                           `json:"address"`
	LastUpdateTime               int64                            `json:"lastUpdateTime"`
	LockupDuration               int64                            `json:"lockupDuration"`
	PeriodDuration               int64                            `json:"periodDuration"`
	PeriodFinish                 int64                            `json:"periodFinish"`
	RewardPerTokenStored         *big.Int                         `json:"rewardPerTokenStored"`
	RewardRate                   *big.Int                         `json:"rewardRate"`
	PlatformRewardPerTokenStored *big.Int                         `json:"platformRewardPerTokenStored,omitempty"`
	PlatformRewardRate           *big.Int                         `json:"platformRewardRate,omitempty"`
	StakingContract              string                           `json:"stakingContract"`
	StakingToken                 TokenRef                         `json:"stakingToken"`
	RewardsToken                 TokenRef                         `json:"rewardsToken"`
	PlatformRewardsToken         *TokenRef                        `json:"platformRewardsToken,omitempty"`
	TotalStakingRewards          fixedpoint.Decimal               `json:"totalStakingRewards"`
	TotalSupply                  fixedpoint.Decimal               `json:"totalSupply"`
	TotalRaw                     fixedpoint.Decimal               `json:"totalRaw"`
	UnlockPercentage             *big.Int                         `json:"unlockPercentage"`
	PriceCoeff                   *float64                         `json:"priceCoeff,omitempty"`
	BoostCoeff                   *float64                         `json:"boostCoeff,omitempty"`
	IsImusd                      bool                             `json:"isImusd"`
	Account                      *BoostedSavingsVaultAccountState `json:"account,omitempty"`
}

// Coefficients returns the price/boost coefficient pair when both are present.
func (v BoostedSavingsVaultState) Coefficients() (priceCoeff, boostCoeff float64, ok bool) {
	if v.PriceCoeff == nil || v.BoostCoeff == nil {
		return 0, 0, false
	}
	return *v.PriceCoeff, *v.BoostCoeff, true
}

// LegacyVaultTable maps a vault address to the factor its displayed boost multiplier is scaled by.
// Legacy vaults report boosts on a halved range and use the legacy boost formula.
type LegacyVaultTable map[string]int64

// Lookup returns the boost factor for a legacy vault.
func (t LegacyVaultTable) Lookup(address string) (int64, bool) {
	f, ok := t[strings.ToLower(address)]
	return f, ok
}

// imUSDVaultAddress is the mainnet imUSD boosted savings vault.
const imUSDVaultAddress = "0x78befca7de27d07dc6e71da295cc2946681a6c7b"

// DefaultLegacyVaults returns the built-in legacy vault table.
func DefaultLegacyVaults() LegacyVaultTable {
	return LegacyVaultTable{imUSDVaultAddress: 2}
}
