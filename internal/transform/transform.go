// Package transform builds the first-pass state tree from raw subgraph records.
//
// Transform is pure: it reads only its RawData argument. Derived basket fields are left at
// zero and are filled by recalc.Recalculate.
package transform

import (
	"fmt"
	"log/slog"
	"math/big"
	"slices"
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/mtlprog/mstate/internal/domain"
	"github.com/mtlprog/mstate/internal/fixedpoint"
	"github.com/mtlprog/mstate/internal/subgraph"
)

// defaultFeeRate is the swap fee applied when the index does not report one (0.02%).
var defaultFeeRate = big.NewInt(200_000_000_000_000)

// defaultExchangeRate is used for a v2 savings contract that has no exchange rate yet.
const defaultExchangeRate = 0.1

// RawData is everything one pipeline run reads.
type RawData struct {
	// Massets is nil until the protocol subgraph has answered.
	Massets *subgraph.MassetsResult
	// FeederPools is nil until the feeders subgraph has answered, or subgraph.EmptyFeederPools()
	// on networks without one.
	FeederPools *subgraph.FeederPoolsResult
	// Tokens is the live subscription cache keyed by lower-cased token address.
	Tokens map[string]domain.SubscribedToken
	// VaultBalances overrides indexed basset vault balances, keyed by lower-cased basset address.
	VaultBalances map[string]string
	// ObservedAt stamps defaulted exchange rates.
	ObservedAt time.Time
	// LegacyVaults defaults to domain.DefaultLegacyVaults() when nil.
	LegacyVaults domain.LegacyVaultTable
}

// Complete reports whether both subgraph sections are present.
func (r RawData) Complete() bool {
	return r.Massets != nil && r.FeederPools != nil
}

// Transform maps raw records into a DataState. Incomplete input yields an empty state and no error.
// A malformed numeric field fails the whole run with an error wrapping *fixedpoint.ParseError.
func Transform(raw RawData) (domain.DataState, error) {
	state := domain.DataState{}
	if !raw.Complete() {
		return state, nil
	}

	t := &transformer{raw: raw, legacy: raw.LegacyVaults}
	if t.legacy == nil {
		t.legacy = domain.DefaultLegacyVaults()
	}

	for _, m := range raw.Massets.Massets {
		name, err := domain.ParseMassetName(m.Token.Symbol)
		if err != nil {
			slog.Warn("Transform: skipping unknown masset", "symbol", m.Token.Symbol, "address", m.ID)
			continue
		}
		ms, ok, err := t.masset(m)
		if err != nil {
			return nil, fmt.Errorf("transforming masset %s: %w", name, err)
		}
		if !ok {
			continue
		}
		state[name] = ms
	}

	return state, nil
}

type transformer struct {
	raw    RawData
	legacy domain.LegacyVaultTable
	p      fieldParser
}

func (t *transformer) subscription(address string) (domain.SubscribedToken, bool) {
	sub, ok := t.raw.Tokens[strings.ToLower(address)]
	return sub, ok
}

// token merges indexed metadata with the live subscription. Balance and allowances come from
// the subscription; address, decimals, symbol and supply always come from the index.
func (t *transformer) token(rec subgraph.Token) domain.SubscribedToken {
	address := tokenAddress(rec)
	tok := domain.SubscribedToken{
		Balance:    fixedpoint.Zero(rec.Decimals),
		Allowances: map[string]fixedpoint.Decimal{},
	}
	if sub, ok := t.subscription(address); ok {
		tok = sub
		if tok.Allowances == nil {
			tok.Allowances = map[string]fixedpoint.Decimal{}
		}
		tok.Balance = tok.Balance.Rescale(rec.Decimals)
	}
	tok.Address = address
	tok.Decimals = rec.Decimals
	tok.Symbol = domain.NormalizeSymbol(rec.Symbol)
	tok.TotalSupply = t.p.metric("token.totalSupply", rec.TotalSupply)
	if rec.Name != "" {
		tok.Name = rec.Name
	}
	return tok
}

func tokenAddress(rec subgraph.Token) string {
	if rec.Address != "" {
		return strings.ToLower(rec.Address)
	}
	return strings.ToLower(rec.ID)
}

// basset builds a first-pass basset. overrides may be nil.
func (t *transformer) basset(rec subgraph.Basset, overrides map[string]string) domain.BassetState {
	address := tokenAddress(rec.Token)

	vault := rec.VaultBalance.Exact
	if v, ok := overrides[address]; ok {
		vault = v
	}

	zero := fixedpoint.Zero(fixedpoint.DefaultDecimals)
	return domain.BassetState{
		Address:              address,
		Token:                t.token(rec.Token),
		Ratio:                t.p.bigInt("basset.ratio", rec.Ratio),
		Status:               domain.ParseBassetStatus(rec.Status),
		IsTransferFeeCharged: rec.IsTransferFeeCharged,
		MaxWeight:            t.p.optBigInt("basset.maxWeight", rec.MaxWeight),
		TotalVault:           t.p.exact("basset.vaultBalance", vault, rec.Token.Decimals),

		BalanceInMasset:    zero,
		BasketShare:        zero,
		MaxWeightInMasset:  zero,
		TotalVaultInMasset: zero,
	}
}

func (t *transformer) masset(rec subgraph.Masset) (domain.MassetState, bool, error) {
	address := strings.ToLower(rec.ID)
	if address == "" {
		address = tokenAddress(rec.Token)
	}

	if len(rec.SavingsContractsV2) == 0 {
		slog.Warn("Transform: skipping masset without savings contract", "masset", address)
		return domain.MassetState{}, false, nil
	}

	fp := t.raw.FeederPools

	bassets := make(map[string]domain.BassetState, len(rec.Basket.Bassets))
	for _, b := range rec.Basket.Bassets {
		bs := t.basset(b, t.raw.VaultBalances)
		bassets[bs.Address] = bs
	}

	removed := lo.SliceToMap(rec.Basket.RemovedBassets, func(b subgraph.RemovedBasset) (string, domain.SubscribedToken) {
		return tokenAddress(b.Token), t.token(b.Token)
	})

	pools := make(map[string]domain.FeederPoolState)
	for _, pool := range fp.FeederPools {
		if !strings.EqualFold(tokenAddress(pool.Masset), address) {
			continue
		}
		ps, ok := t.feederPool(pool)
		if !ok {
			continue
		}
		pools[ps.Address] = ps
	}

	v2 := rec.SavingsContractsV2[0]
	saveVaults := lo.Filter(fp.SaveVaults, func(v subgraph.BoostedSavingsVault, _ int) bool {
		return strings.EqualFold(v.StakingToken.Address, v2.ID)
	})

	var v1 *domain.SavingsContractV1State
	if len(rec.SavingsContractsV1) > 0 {
		s := t.savingsV1(rec.SavingsContractsV1[0], address)
		v1 = &s
	}

	feeRate := defaultFeeRate
	if rec.FeeRate != nil && *rec.FeeRate != "" {
		feeRate = t.p.bigInt("masset.feeRate", *rec.FeeRate)
	}

	var invariantStart *int64
	if rec.InvariantStartTime != nil && *rec.InvariantStartTime != 0 {
		invariantStart = lo.ToPtr(*rec.InvariantStartTime)
	}

	var director *string
	if len(fp.BoostDirectors) > 0 {
		director = lo.ToPtr(strings.ToLower(fp.BoostDirectors[0].ID))
	}

	ms := domain.MassetState{
		Address:                address,
		Token:                  t.token(rec.Token),
		BAssets:                bassets,
		FAssets:                map[string]domain.FassetState{},
		RemovedBassets:         removed,
		CollateralisationRatio: t.p.optBigInt("masset.collateralisationRatio", rec.Basket.CollateralisationRatio),
		FeeRate:                new(big.Int).Set(feeRate),
		RedemptionFeeRate:      t.p.bigInt("masset.redemptionFeeRate", rec.RedemptionFeeRate),
		InvariantStartTime:     invariantStart,
		InvariantStartingCap:   t.p.optBigInt("masset.invariantStartingCap", rec.InvariantStartingCap),
		InvariantCapFactor:     t.p.optBigInt("masset.invariantCapFactor", rec.InvariantCapFactor),
		Failed:                 rec.Basket.Failed,
		UndergoingRecol:        rec.Basket.UndergoingRecol,
		FeederPools:            pools,
		HasFeederPools:         len(pools) > 0,
		SavingsContracts: domain.SavingsContracts{
			V1: v1,
			V2: t.savingsV2(v2, saveVaults, address),
		},
		UserVaults: lo.SliceToMap(fp.UserVaults, func(u subgraph.UserVaults) (string, []int) {
			return strings.ToLower(u.ID), lo.Map(u.BoostDirection, func(b subgraph.BoostDirection, _ int) int {
				return b.DirectorVaultID
			})
		}),
		VaultIDs: lo.SliceToMap(fp.VaultIDs, func(v subgraph.VaultID) (int, string) {
			return lo.FromPtr(v.DirectorVaultID), strings.ToLower(v.ID)
		}),
		BoostDirector: director,
		BassetRatios: lo.MapValues(bassets, func(b domain.BassetState, _ string) *big.Int {
			return new(big.Int).Set(b.Ratio)
		}),
	}

	if t.p.err != nil {
		return domain.MassetState{}, false, t.p.err
	}
	return ms, true, nil
}

func (t *transformer) savingsV1(rec subgraph.SavingsContractV1, massetAddress string) domain.SavingsContractV1State {
	address := strings.ToLower(rec.ID)

	var credit *fixedpoint.Decimal
	if len(rec.CreditBalances) > 0 {
		c := t.p.exact("savings.creditBalance", rec.CreditBalances[0].Amount, fixedpoint.DefaultDecimals)
		credit = &c
	}

	totalCredits := fixedpoint.Zero(fixedpoint.DefaultDecimals)
	if rec.TotalCredits != nil {
		totalCredits = t.p.metric("savings.totalCredits", *rec.TotalCredits)
	}

	allowance := fixedpoint.Zero(fixedpoint.DefaultDecimals)
	if sub, ok := t.subscription(massetAddress); ok {
		if a, ok := sub.Allowances[address]; ok {
			allowance = a
		}
	}

	return domain.SavingsContractV1State{
		SavingsContract: domain.SavingsContract{
			Active:             rec.Active,
			Current:            false,
			Address:            address,
			MassetAddress:      massetAddress,
			LatestExchangeRate: t.exchangeRate(rec.LatestExchangeRate),
			TotalSavings:       t.p.metric("savings.totalSavings", rec.TotalSavings),
			DailyAPY:           t.p.float("savings.dailyAPY", rec.DailyAPY),
		},
		CreditBalance:   credit,
		TotalCredits:    totalCredits,
		MassetAllowance: allowance,
	}
}

func (t *transformer) savingsV2(rec subgraph.SavingsContractV2, vaults []subgraph.BoostedSavingsVault, massetAddress string) domain.SavingsContractV2State {
	address := strings.ToLower(rec.ID)

	rate := t.exchangeRate(rec.LatestExchangeRate)
	if rate == nil {
		d, err := fixedpoint.FromFloat(defaultExchangeRate, fixedpoint.DefaultDecimals)
		if err != nil {
			t.p.fail("savings.defaultExchangeRate", err)
		}
		rate = &domain.ExchangeRate{Rate: d, Timestamp: t.raw.ObservedAt.Unix()}
	}

	var token *domain.SubscribedToken
	if sub, ok := t.subscription(address); ok {
		token = &sub
	}

	var vault *domain.BoostedSavingsVaultState
	if len(vaults) > 0 {
		v := t.vault(vaults[0])
		vault = &v
	}

	return domain.SavingsContractV2State{
		SavingsContract: domain.SavingsContract{
			Active:             true,
			Current:            true,
			Address:            address,
			MassetAddress:      massetAddress,
			LatestExchangeRate: rate,
			TotalSavings:       t.p.metric("savings.totalSavings", rec.TotalSavings),
			DailyAPY:           t.p.float("savings.dailyAPY", rec.DailyAPY),
		},
		Token:               token,
		BoostedSavingsVault: vault,
	}
}

func (t *transformer) exchangeRate(rec *subgraph.ExchangeRate) *domain.ExchangeRate {
	if rec == nil {
		return nil
	}
	return &domain.ExchangeRate{
		Rate:      t.p.human("savings.exchangeRate", rec.Rate, fixedpoint.DefaultDecimals),
		Timestamp: rec.Timestamp,
	}
}

// feederPool returns false when the pool basket lacks its masset or fasset.
func (t *transformer) feederPool(rec subgraph.FeederPool) (domain.FeederPoolState, bool) {
	address := strings.ToLower(rec.ID)

	findAsset := func(token subgraph.Token) (subgraph.Basset, bool) {
		return lo.Find(rec.Basket.Bassets, func(b subgraph.Basset) bool {
			return tokenAddress(b.Token) == tokenAddress(token)
		})
	}
	mRec, okM := findAsset(rec.Masset)
	fRec, okF := findAsset(rec.Fasset)
	if !okM || !okF {
		slog.Warn("Transform: skipping feeder pool with incomplete basket",
			"pool", address, "hasMasset", okM, "hasFasset", okF)
		return domain.FeederPoolState{}, false
	}

	// Feeder pool balances come from the feeders subgraph only.
	masset := t.basset(mRec, nil)
	fasset := t.basset(fRec, nil)

	price := fixedpoint.Zero(fixedpoint.DefaultDecimals)
	if rec.Price != nil && *rec.Price != "" {
		price = t.p.exact("pool.price", *rec.Price, fixedpoint.DefaultDecimals)
	}
	invariantK := t.p.bigInt("pool.invariantK", rec.InvariantK)

	var vault *domain.BoostedSavingsVaultState
	if rec.Vault != nil {
		v := t.vault(*rec.Vault)
		vault = &v
	}

	var account *domain.FeederPoolAccountState
	if len(rec.Accounts) > 0 {
		a := t.feederPoolAccount(rec.Accounts[0])
		account = &a
	}

	token := t.token(rec.Token)

	return domain.FeederPoolState{
		Address:           address,
		Masset:            domain.FassetState{BassetState: masset, FeederPoolAddress: address},
		Fasset:            domain.FassetState{BassetState: fasset, FeederPoolAddress: address},
		Token:             token,
		TotalSupply:       token.TotalSupply,
		InvariantK:        invariantK,
		Price:             price,
		Liquidity:         fixedpoint.FromInteger(invariantK, fixedpoint.DefaultDecimals).MulTruncate(price.Exact()),
		GovernanceFeeRate: t.p.bigInt("pool.governanceFeeRate", rec.GovernanceFeeRate),
		FeeRate:           t.p.bigInt("pool.swapFeeRate", rec.SwapFeeRate),
		RedemptionFeeRate: t.p.bigInt("pool.redemptionFeeRate", rec.RedemptionFeeRate),
		DailyAPY:          t.p.float("pool.dailyAPY", rec.DailyAPY),
		Title:             poolTitle(rec.Basket.Bassets),
		Failed:            rec.Basket.Failed,
		UndergoingRecol:   rec.Basket.UndergoingRecol,
		Vault:             vault,
		Account:           account,
	}, true
}

// poolTitle joins the normalized basket symbols with the masset symbols first, e.g. "mUSD/GUSD".
func poolTitle(bassets []subgraph.Basset) string {
	symbols := lo.Map(bassets, func(b subgraph.Basset, _ int) string {
		return domain.NormalizeSymbol(b.Token.Symbol)
	})
	slices.SortStableFunc(symbols, func(a, b string) int {
		return massetRank(a) - massetRank(b)
	})
	return strings.Join(symbols, "/")
}

func massetRank(symbol string) int {
	if symbol == "mUSD" || symbol == "mBTC" {
		return 0
	}
	return 1
}

func (t *transformer) feederPoolAccount(rec subgraph.FeederPoolAccount) domain.FeederPoolAccountState {
	const d = fixedpoint.DefaultDecimals
	return domain.FeederPoolAccountState{
		CumulativeEarned:      t.p.metric("poolAccount.cumulativeEarned", rec.CumulativeEarned),
		CumulativeEarnedVault: t.p.metric("poolAccount.cumulativeEarnedVault", rec.CumulativeEarnedVault),
		Balance:               t.p.exact("poolAccount.balance", rec.Balance, d),
		BalanceVault:          t.p.exact("poolAccount.balanceVault", rec.BalanceVault, d),
		Price:                 t.p.exact("poolAccount.price", rec.Price, d),
		PriceVault:            t.p.exact("poolAccount.priceVault", rec.PriceVault, d),
		LastUpdate:            rec.LastUpdate,
		LastUpdateVault:       rec.LastUpdateVault,
	}
}
