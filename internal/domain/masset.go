package domain

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/mtlprog/mstate/internal/fixedpoint"
)

// MassetName identifies one of the supported mAssets.
type MassetName string

const (
	MassetMUSD MassetName = "musd"
	MassetMBTC MassetName = "mbtc"
)

// MassetNames lists the supported mAssets in display order.
var MassetNames = []MassetName{MassetMUSD, MassetMBTC}

// ParseMassetName accepts a masset name or symbol in any case ("mUSD", "musd").
func ParseMassetName(s string) (MassetName, error) {
	n := MassetName(strings.ToLower(NormalizeSymbol(strings.TrimSpace(s))))
	switch n {
	case MassetMUSD, MassetMBTC:
		return n, nil
	default:
		return "", fmt.Errorf("unknown masset %q", s)
	}
}

// DataState is the full state tree keyed by masset. A missing key means the masset is not loaded yet.
type DataState map[MassetName]MassetState

// ExchangeRate is a savings contract credit → masset exchange rate observation.
type ExchangeRate struct {
	Rate      fixedpoint.Decimal `json:"rate"`
	Timestamp int64              `json:"timestamp"`
}

// SavingsBalance is the watched account's savings position; derived by recalc.
type SavingsBalance struct {
	Balance *fixedpoint.Decimal `json:"balance,omitempty"`
	Credits *fixedpoint.Decimal `json:"credits,omitempty"`
}

// SavingsContract holds the fields shared by both savings contract versions.
type SavingsContract struct {
	Active             bool               `json:"active"`
	Current            bool               `json:"current"`
	Address            string             `json:"address"`
	MassetAddress      string             `json:"massetAddress"`
	LatestExchangeRate *ExchangeRate      `json:"latestExchangeRate,omitempty"`
	TotalSavings       fixedpoint.Decimal `json:"totalSavings"`
	DailyAPY           float64            `json:"dailyAPY"`
	SavingsBalance     SavingsBalance     `json:"savingsBalance"`
}

// SavingsContractV1State is the legacy savings contract, present only before migration.
type SavingsContractV1State struct {
	SavingsContract
	CreditBalance   *fixedpoint.Decimal `json:"creditBalance,omitempty"`
	TotalCredits    fixedpoint.Decimal  `json:"totalCredits"`
	MassetAllowance fixedpoint.Decimal  `json:"massetAllowance"`
}

// SavingsContractV2State is the current savings contract. Its LatestExchangeRate is always set.
type SavingsContractV2State struct {
	SavingsContract
	Token               *SubscribedToken          `json:"token,omitempty"`
	BoostedSavingsVault *BoostedSavingsVaultState `json:"boostedSavingsVault,omitempty"`
}

// SavingsContracts pairs the optional v1 contract with the mandatory v2 contract.
type SavingsContracts struct {
	V1 *SavingsContractV1State `json:"v1,omitempty"`
	V2 SavingsContractV2State  `json:"v2"`
}

// MassetState is a masset with its basket, feeder pools and savings contracts.
// FAssets is filled by recalc.Recalculate and is empty before.
type MassetState struct {
	Address                string                     `json:"address"`
	Token                  SubscribedToken            `json:"token"`
	BAssets                map[string]BassetState     `json:"bAssets"`
	FAssets                map[string]FassetState     `json:"fAssets"`
	RemovedBassets         map[string]SubscribedToken `json:"removedBassets"`
	CollateralisationRatio *big.Int                   `json:"collateralisationRatio,omitempty"`
	FeeRate                *big.Int                   `json:"feeRate"`
	RedemptionFeeRate      *big.Int                   `json:"redemptionFeeRate"`
	InvariantStartTime     *int64                     `json:"invariantStartTime,omitempty"`
	InvariantStartingCap   *big.Int                   `json:"invariantStartingCap,omitempty"`
	InvariantCapFactor     *big.Int                   `json:"invariantCapFactor,omitempty"`
	Failed                 bool                       `json:"failed"`
	UndergoingRecol        bool                       `json:"undergoingRecol"`
	FeederPools            map[string]FeederPoolState `json:"feederPools"`
	HasFeederPools         bool                       `json:"hasFeederPools"`
	SavingsContracts       SavingsContracts           `json:"savingsContracts"`
	UserVaults             map[string][]int           `json:"userVaults"`
	VaultIDs               map[int]string             `json:"vaultIds"`
	BoostDirector          *string                    `json:"boostDirector,omitempty"`
	BassetRatios           map[string]*big.Int        `json:"bassetRatios"`
}

// Vaults returns every boosted savings vault reachable from the masset: the savings vault first,
// then feeder pool vaults.
func (m MassetState) Vaults() []BoostedSavingsVaultState {
	var out []BoostedSavingsVaultState
	if v := m.SavingsContracts.V2.BoostedSavingsVault; v != nil {
		out = append(out, *v)
	}
	for _, fp := range m.FeederPools {
		if fp.Vault != nil {
			out = append(out, *fp.Vault)
		}
	}
	return out
}

// FindVault looks a boosted savings vault up by address across all massets.
func (s DataState) FindVault(address string) (BoostedSavingsVaultState, bool) {
	address = strings.ToLower(address)
	for _, name := range MassetNames {
		m, ok := s[name]
		if !ok {
			continue
		}
		for _, v := range m.Vaults() {
			if strings.ToLower(v.Address) == address {
				return v, true
			}
		}
	}
	return BoostedSavingsVaultState{}, false
}
