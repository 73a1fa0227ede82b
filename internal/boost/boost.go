// Package boost computes reward boost multipliers from staked and voting balances.
package boost

import (
	"math"

	"github.com/mtlprog/mstate/internal/domain"
	"github.com/mtlprog/mstate/internal/fixedpoint"
)

// DefaultMultiplier is returned for degenerate input.
const DefaultMultiplier = 1.0

// Params is one boost formula:
//
//	boost = base + coefficient × min(voting, MaxVotingWeight) / scaledDeposit^Exponent
//
// bounded to [MinBoost, MaxBoost]. base is MinBoost when BaseIncluded is set and 0 otherwise.
type Params struct {
	MinBoost float64 `yaml:"min_boost"`
	MaxBoost float64 `yaml:"max_boost"`
	// Coefficient is used by the legacy formula. The standard formula takes its coefficient
	// from the vault (boostCoeff / BoostCoeffDivisor).
	Coefficient       float64 `yaml:"coefficient"`
	BoostCoeffDivisor float64 `yaml:"boost_coeff_divisor"`
	Exponent          float64 `yaml:"exponent"`
	// MinScaledDeposit below which the minimum boost applies.
	MinScaledDeposit float64 `yaml:"min_scaled_deposit"`
	MaxVotingWeight  float64 `yaml:"max_voting_weight"`
	// PriceCoeffScale divides the vault's on-chain price coefficient.
	PriceCoeffScale float64 `yaml:"price_coeff_scale"`
	BaseIncluded    bool    `yaml:"base_included"`
}

// Config holds the formula for coefficient vaults and for legacy vaults.
type Config struct {
	Standard Params `yaml:"standard"`
	Legacy   Params `yaml:"legacy"`
}

// DefaultConfig returns the mainnet boost parameters.
//
// Standard vaults: boost = min(voting, 600k) × boostCoeff/10 / (raw × priceCoeff/1e18)^(7/8),
// bounded to [1, 3]. Deposits worth less than 1 unit get the minimum.
//
// Legacy (imUSD) vault: boost = 1 + 0.9 × min(voting, 600k) / raw^(3/4), bounded to [1, 3].
// That vault reports on a halved range, hence the doubled bounds.
func DefaultConfig() Config {
	return Config{
		Standard: Params{
			MinBoost:          1,
			MaxBoost:          3,
			BoostCoeffDivisor: 10,
			Exponent:          0.875,
			MinScaledDeposit:  1,
			MaxVotingWeight:   600_000,
			PriceCoeffScale:   1e18,
		},
		Legacy: Params{
			MinBoost:        1,
			MaxBoost:        3,
			Coefficient:     0.9,
			Exponent:        0.75,
			MaxVotingWeight: 600_000,
			BaseIncluded:    true,
		},
	}
}

// Calculator evaluates the configured boost formulas. It is safe for concurrent use.
type Calculator struct {
	cfg Config
}

// NewCalculator creates a Calculator.
func NewCalculator(cfg Config) *Calculator {
	return &Calculator{cfg: cfg}
}

// Calculate applies the standard formula with the vault's coefficients.
func (c *Calculator) Calculate(priceCoeff, boostCoeff float64, raw, voting fixedpoint.Decimal) float64 {
	p := c.cfg.Standard
	if priceCoeff <= 0 || boostCoeff <= 0 {
		return DefaultMultiplier
	}
	r, v, ok := balances(raw, voting)
	if !ok {
		return DefaultMultiplier
	}

	scaled := r
	if p.PriceCoeffScale > 0 {
		scaled = r * priceCoeff / p.PriceCoeffScale
	}
	coeff := boostCoeff
	if p.BoostCoeffDivisor > 0 {
		coeff = boostCoeff / p.BoostCoeffDivisor
	}
	return p.evaluate(coeff, scaled, v)
}

// CalculateLegacy applies the legacy formula used by vaults without coefficients.
func (c *Calculator) CalculateLegacy(raw, voting fixedpoint.Decimal) float64 {
	r, v, ok := balances(raw, voting)
	if !ok {
		return DefaultMultiplier
	}
	p := c.cfg.Legacy
	return p.evaluate(p.Coefficient, r, v)
}

// UserBoost picks the formula for vault: legacy when the vault is a legacy vault or carries no
// coefficients, standard otherwise. The raw balance is the vault account's.
func (c *Calculator) UserBoost(vault *domain.BoostedSavingsVaultState, voting fixedpoint.Decimal) float64 {
	if vault == nil || vault.Account == nil {
		return DefaultMultiplier
	}
	raw := vault.Account.RawBalance

	priceCoeff, boostCoeff, ok := vault.Coefficients()
	if vault.IsImusd || !ok {
		return c.CalculateLegacy(raw, voting)
	}
	return c.Calculate(priceCoeff, boostCoeff, raw, voting)
}

func (p Params) evaluate(coeff, scaled, voting float64) float64 {
	if scaled <= 0 || scaled < p.MinScaledDeposit {
		return p.MinBoost
	}
	if p.MaxVotingWeight > 0 {
		voting = math.Min(voting, p.MaxVotingWeight)
	}

	boost := coeff * voting / math.Pow(scaled, p.Exponent)
	if p.BaseIncluded {
		boost += p.MinBoost
	}
	if math.IsNaN(boost) || math.IsInf(boost, 0) {
		return p.MinBoost
	}
	return math.Min(p.MaxBoost, math.Max(p.MinBoost, boost))
}

// balances returns the float values of raw and voting, or false when either is not positive.
func balances(raw, voting fixedpoint.Decimal) (float64, float64, bool) {
	if raw.Sign() <= 0 || voting.Sign() <= 0 {
		return 0, 0, false
	}
	return raw.Float64(), voting.Float64(), true
}
