package domain

import (
	"math/big"

	"github.com/mtlprog/mstate/internal/fixedpoint"
)

// FeederPoolAccountState is the watched account's earnings in a feeder pool and its vault.
type FeederPoolAccountState struct {
	CumulativeEarned      fixedpoint.Decimal `json:"cumulativeEarned"`
	CumulativeEarnedVault fixedpoint.Decimal `json:"cumulativeEarnedVault"`
	Balance               fixedpoint.Decimal `json:"balance"`
	BalanceVault          fixedpoint.Decimal `json:"balanceVault"`
	Price                 fixedpoint.Decimal `json:"price"`
	PriceVault            fixedpoint.Decimal `json:"priceVault"`
	LastUpdate            int64              `json:"lastUpdate"`
	LastUpdateVault       int64              `json:"lastUpdateVault"`
}

// FeederPoolState is a two-asset pool pairing the masset with one fasset.
// Fee rates are raw integers on the 18-decimal scale.
type FeederPoolState struct {
	Address           string                    `json:"address"`
	Masset            FassetState               `json:"masset"`
	Fasset            FassetState               `json:"fasset"`
	Token             SubscribedToken           `json:"token"`
	TotalSupply       fixedpoint.Decimal        `json:"totalSupply"`
	InvariantK        *big.Int                  `json:"invariantK"`
	Price             fixedpoint.Decimal        `json:"price"`
	Liquidity         fixedpoint.Decimal        `json:"liquidity"`
	GovernanceFeeRate *big.Int                  `json:"governanceFeeRate"`
	FeeRate           *big.Int                  `json:"feeRate"`
	RedemptionFeeRate *big.Int                  `json:"redemptionFeeRate"`
	DailyAPY          float64                   `json:"dailyApy"`
	Title             string                    `json:"title"`
	Failed            bool                      `json:"failed"`
	UndergoingRecol   bool                      `json:"undergoingRecol"`
	Vault             *BoostedSavingsVaultState `json:"vault,omitempty"`
	Account           *FeederPoolAccountState   `json:"account,omitempty"`
}
