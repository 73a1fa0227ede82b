package domain

import (
	"math/big"

	"github.com/mtlprog/mstate/internal/fixedpoint"
)

// BassetStatus is the on-chain status of a basket asset.
type BassetStatus string

const (
	BassetStatusDefault        BassetStatus = "Default"
	BassetStatusNormal         BassetStatus = "Normal"
	BassetStatusBrokenBelowPeg BassetStatus = "BrokenBelowPeg"
	BassetStatusBrokenAbovePeg BassetStatus = "BrokenAbovePeg"
	BassetStatusBlacklisted    BassetStatus = "Blacklisted"
	BassetStatusLiquidating    BassetStatus = "Liquidating"
	BassetStatusLiquidated     BassetStatus = "Liquidated"
	BassetStatusFailed         BassetStatus = "Failed"
)

var knownStatuses = map[BassetStatus]bool{
	BassetStatusDefault:        true,
	BassetStatusNormal:         true,
	BassetStatusBrokenBelowPeg: true,
	BassetStatusBrokenAbovePeg: true,
	BassetStatusBlacklisted:    true,
	BassetStatusLiquidating:    true,
	BassetStatusLiquidated:     true,
	BassetStatusFailed:         true,
}

// ParseBassetStatus maps an indexed status string to a BassetStatus; unknown values become Default.
func ParseBassetStatus(s string) BassetStatus {
	if st := BassetStatus(s); knownStatuses[st] {
		return st
	}
	return BassetStatusDefault
}

// BassetState is a basket asset. TotalVault is the custodied amount in the basset's own units.
//
// BalanceInMasset, BasketShare, MaxWeightInMasset, Overweight and TotalVaultInMasset are derived
// by recalc.Recalculate and are zero until then.
type BassetState struct {
	Address              string             `json:"address"`
	Token                SubscribedToken    `json:"token"`
	Ratio                *big.Int           `json:"ratio"`
	Status               BassetStatus       `json:"status"`
	IsTransferFeeCharged bool               `json:"isTransferFeeCharged"`
	MaxWeight            *big.Int           `json:"maxWeight,omitempty"`
	TotalVault           fixedpoint.Decimal `json:"totalVault"`

	BalanceInMasset    fixedpoint.Decimal `json:"balanceInMasset"`
	BasketShare        fixedpoint.Decimal `json:"basketShare"`
	MaxWeightInMasset  fixedpoint.Decimal `json:"maxWeightInMasset"`
	Overweight         bool               `json:"overweight"`
	TotalVaultInMasset fixedpoint.Decimal `json:"totalVaultInMasset"`
}

// FassetState is a basset scoped to a feeder pool.
type FassetState struct {
	BassetState
	FeederPoolAddress string `json:"feederPoolAddress"`
}

// MassetUnits converts a basset amount into 18-decimal masset units using the basset ratio.
// The ratio carries the decimals shift (1e8 × 10^(18-decimals)), so the scaled integer is
// reinterpreted at 18 decimals here and nowhere else.
func MassetUnits(amount fixedpoint.Decimal, ratio *big.Int) fixedpoint.Decimal {
	if ratio == nil {
		return fixedpoint.Zero(fixedpoint.DefaultDecimals)
	}
	return fixedpoint.FromInteger(amount.MulRatioTruncate(ratio).Exact(), fixedpoint.DefaultDecimals)
}
