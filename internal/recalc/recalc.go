// Package recalc derives the basket fields that need the whole transformed tree.
package recalc

import (
	"fmt"
	"maps"

	"github.com/samber/lo"

	"github.com/mtlprog/mstate/internal/domain"
	"github.com/mtlprog/mstate/internal/fixedpoint"
)

// Recalculate returns a copy of state with basket shares, masset-denominated balances,
// overweight flags, fAssets and savings balances filled in. The input is not modified.
func Recalculate(state domain.DataState) (domain.DataState, error) {
	out := make(domain.DataState, len(state))
	for name, m := range state {
		rm, err := masset(m)
		if err != nil {
			return nil, fmt.Errorf("recalculating %s: %w", name, err)
		}
		out[name] = rm
	}
	return out, nil
}

func masset(m domain.MassetState) (domain.MassetState, error) {
	bassets, err := Basket(m.BAssets)
	if err != nil {
		return domain.MassetState{}, fmt.Errorf("basket: %w", err)
	}
	m.BAssets = bassets

	pools := make(map[string]domain.FeederPoolState, len(m.FeederPools))
	fassets := make(map[string]domain.FassetState, len(m.FeederPools))
	for addr, fp := range m.FeederPools {
		rp, err := feederPool(fp)
		if err != nil {
			return domain.MassetState{}, fmt.Errorf("feeder pool %s: %w", addr, err)
		}
		pools[addr] = rp
		fassets[addr] = rp.Fasset
	}
	m.FeederPools = pools
	m.FAssets = fassets

	if v1 := m.SavingsContracts.V1; v1 != nil {
		c := *v1
		c.SavingsBalance = savingsBalance(c.CreditBalance, c.LatestExchangeRate)
		m.SavingsContracts.V1 = &c
	}

	v2 := m.SavingsContracts.V2
	var credits *fixedpoint.Decimal
	if v2.Token != nil {
		credits = lo.ToPtr(v2.Token.Balance)
	}
	v2.SavingsBalance = savingsBalance(credits, v2.LatestExchangeRate)
	m.SavingsContracts.V2 = v2

	return m, nil
}

func feederPool(fp domain.FeederPoolState) (domain.FeederPoolState, error) {
	basket, err := Basket(map[string]domain.BassetState{
		"masset": fp.Masset.BassetState,
		"fasset": fp.Fasset.BassetState,
	})
	if err != nil {
		return domain.FeederPoolState{}, err
	}
	fp.Masset.BassetState = basket["masset"]
	fp.Fasset.BassetState = basket["fasset"]
	return fp, nil
}

// Basket derives the masset-denominated fields of every basset in one basket.
// A basset's share is its vault in masset units over the basket total; an empty basket total
// leaves every share at zero.
func Basket(bassets map[string]domain.BassetState) (map[string]domain.BassetState, error) {
	out := maps.Clone(bassets)
	if out == nil {
		out = map[string]domain.BassetState{}
	}

	for addr, b := range out {
		b.TotalVaultInMasset = domain.MassetUnits(b.TotalVault, b.Ratio)
		b.BalanceInMasset = domain.MassetUnits(b.Token.Balance, b.Ratio)
		out[addr] = b
	}

	total, err := fixedpoint.Sum(lo.MapToSlice(out, func(_ string, b domain.BassetState) fixedpoint.Decimal {
		return b.TotalVaultInMasset
	})...)
	if err != nil {
		return nil, err
	}

	for addr, b := range out {
		b.BasketShare = fixedpoint.Zero(fixedpoint.DefaultDecimals)
		if !total.IsZero() {
			if b.BasketShare, err = b.TotalVaultInMasset.DivPrecisely(total); err != nil {
				return nil, err
			}
		}

		b.MaxWeightInMasset = fixedpoint.Zero(fixedpoint.DefaultDecimals)
		b.Overweight = false
		if b.MaxWeight != nil {
			b.MaxWeightInMasset = total.MulTruncate(b.MaxWeight)
			b.Overweight = b.TotalVaultInMasset.Cmp(b.MaxWeightInMasset) > 0
		}
		out[addr] = b
	}

	return out, nil
}

// savingsBalance converts credits to masset units at the latest exchange rate.
func savingsBalance(credits *fixedpoint.Decimal, rate *domain.ExchangeRate) domain.SavingsBalance {
	if credits == nil {
		return domain.SavingsBalance{}
	}
	sb := domain.SavingsBalance{Credits: lo.ToPtr(*credits)}
	if rate != nil {
		sb.Balance = lo.ToPtr(credits.MulTruncate(rate.Rate.Exact()))
	}
	return sb
}
