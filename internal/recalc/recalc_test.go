package recalc

import (
	"math/big"
	"testing"

	"github.com/mtlprog/mstate/internal/domain"
	"github.com/mtlprog/mstate/internal/fixedpoint"
)

// ratio18 is the basset ratio of an 18-decimal token.
var ratio18 = fixedpoint.RatioScale()

func bassetWithVault(addr, vault string) domain.BassetState {
	return domain.BassetState{
		Address:    addr,
		Ratio:      ratio18,
		TotalVault: fixedpoint.MustParse(vault, 18),
		Token: domain.SubscribedToken{
			Token:   domain.Token{Address: addr, Decimals: 18},
			Balance: fixedpoint.Zero(18),
		},
	}
}

func weight(s string) *big.Int {
	return fixedpoint.MustParse(s, 18).Exact()
}

func TestBasketShares(t *testing.T) {
	bassets := map[string]domain.BassetState{
		"a": bassetWithVault("a", "100"),
		"b": bassetWithVault("b", "300"),
		"c": bassetWithVault("c", "600"),
	}

	got, err := Basket(bassets)
	if err != nil {
		t.Fatalf("Basket() error = %v", err)
	}

	want := map[string]string{"a": "0.1", "b": "0.3", "c": "0.6"}
	for addr, share := range want {
		if g := got[addr].BasketShare; !g.Equal(fixedpoint.MustParse(share, 18)) {
			t.Errorf("share[%s] = %s, want %s", addr, g, share)
		}
	}
}

func TestBasketSharesSumToOne(t *testing.T) {
	bassets := map[string]domain.BassetState{
		"a": bassetWithVault("a", "1"),
		"b": bassetWithVault("b", "1"),
		"c": bassetWithVault("c", "1"),
	}
	got, err := Basket(bassets)
	if err != nil {
		t.Fatalf("Basket() error = %v", err)
	}

	sum := new(big.Int)
	for _, b := range got {
		sum.Add(sum, b.BasketShare.Exact())
	}
	// Each share truncates, so the sum may fall short of 1e18 by at most one unit per basset.
	diff := new(big.Int).Sub(fixedpoint.Scale(), sum)
	if diff.Sign() < 0 || diff.Cmp(big.NewInt(3)) > 0 {
		t.Errorf("sum of shares = %s, want 1e18 within 3", sum)
	}
}

func TestBasketMassetUnits(t *testing.T) {
	usdc := domain.BassetState{
		Address:    "usdc",
		Ratio:      new(big.Int).Mul(ratio18, big.NewInt(1_000_000_000_000)),
		TotalVault: fixedpoint.MustParse("250", 6),
		Token: domain.SubscribedToken{
			Token:   domain.Token{Decimals: 6},
			Balance: fixedpoint.MustParse("12.5", 6),
		},
	}
	got, err := Basket(map[string]domain.BassetState{"usdc": usdc, "dai": bassetWithVault("dai", "750")})
	if err != nil {
		t.Fatalf("Basket() error = %v", err)
	}

	b := got["usdc"]
	if !b.TotalVaultInMasset.Equal(fixedpoint.MustParse("250", 18)) || b.TotalVaultInMasset.Decimals() != 18 {
		t.Errorf("totalVaultInMasset = %s@%d, want 250@18", b.TotalVaultInMasset, b.TotalVaultInMasset.Decimals())
	}
	if !b.BalanceInMasset.Equal(fixedpoint.MustParse("12.5", 18)) {
		t.Errorf("balanceInMasset = %s, want 12.5", b.BalanceInMasset)
	}
	if !b.BasketShare.Equal(fixedpoint.MustParse("0.25", 18)) {
		t.Errorf("basketShare = %s, want 0.25", b.BasketShare)
	}
}

func TestBasketOverweight(t *testing.T) {
	tests := []struct {
		name      string
		maxWeight *big.Int
		want      bool
	}{
		{"below threshold", weight("0.55"), true},
		{"above threshold", weight("0.65"), false},
		{"equal threshold", weight("0.6"), false},
		{"no max weight", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			heavy := bassetWithVault("heavy", "600")
			heavy.MaxWeight = tt.maxWeight
			got, err := Basket(map[string]domain.BassetState{
				"heavy": heavy,
				"light": bassetWithVault("light", "400"),
			})
			if err != nil {
				t.Fatalf("Basket() error = %v", err)
			}
			if got["heavy"].Overweight != tt.want {
				t.Errorf("overweight = %v, want %v", got["heavy"].Overweight, tt.want)
			}
			if tt.maxWeight != nil {
				want := fixedpoint.MustParse("1000", 18).MulTruncate(tt.maxWeight)
				if !got["heavy"].MaxWeightInMasset.Equal(want) {
					t.Errorf("maxWeightInMasset = %s, want %s", got["heavy"].MaxWeightInMasset, want)
				}
			}
		})
	}
}

func TestBasketEmptyVaults(t *testing.T) {
	got, err := Basket(map[string]domain.BassetState{"a": bassetWithVault("a", "0")})
	if err != nil {
		t.Fatalf("Basket() error = %v", err)
	}
	if !got["a"].BasketShare.IsZero() {
		t.Errorf("basketShare = %s, want 0 for an empty basket", got["a"].BasketShare)
	}
}

func testState() domain.DataState {
	pool := domain.FeederPoolState{
		Address: "pool",
		Masset:  domain.FassetState{BassetState: bassetWithVault("musd", "300"), FeederPoolAddress: "pool"},
		Fasset:  domain.FassetState{BassetState: bassetWithVault("gusd", "100"), FeederPoolAddress: "pool"},
	}
	v2Token := domain.SubscribedToken{Balance: fixedpoint.MustParse("10", 18)}
	return domain.DataState{
		domain.MassetMUSD: {
			Address: "musd",
			BAssets: map[string]domain.BassetState{
				"a": bassetWithVault("a", "500"),
				"b": bassetWithVault("b", "500"),
			},
			FAssets:     map[string]domain.FassetState{},
			FeederPools: map[string]domain.FeederPoolState{"pool": pool},
			SavingsContracts: domain.SavingsContracts{
				V1: &domain.SavingsContractV1State{
					SavingsContract: domain.SavingsContract{
						LatestExchangeRate: &domain.ExchangeRate{Rate: fixedpoint.MustParse("1.5", 18)},
					},
					CreditBalance: ptr(fixedpoint.MustParse("4", 18)),
				},
				V2: domain.SavingsContractV2State{
					SavingsContract: domain.SavingsContract{
						LatestExchangeRate: &domain.ExchangeRate{Rate: fixedpoint.MustParse("0.1", 18)},
					},
					Token: &v2Token,
				},
			},
		},
	}
}

func ptr[T any](v T) *T { return &v }

func TestRecalculate(t *testing.T) {
	state := testState()
	got, err := Recalculate(state)
	if err != nil {
		t.Fatalf("Recalculate() error = %v", err)
	}
	m := got[domain.MassetMUSD]

	if !m.BAssets["a"].BasketShare.Equal(fixedpoint.MustParse("0.5", 18)) {
		t.Errorf("share[a] = %s, want 0.5", m.BAssets["a"].BasketShare)
	}

	fa, ok := m.FAssets["pool"]
	if !ok {
		t.Fatal("fAssets[pool] missing")
	}
	if fa.FeederPoolAddress != "pool" || !fa.BasketShare.Equal(fixedpoint.MustParse("0.25", 18)) {
		t.Errorf("fAsset = %+v, want pool share 0.25", fa)
	}
	if !m.FeederPools["pool"].Masset.BasketShare.Equal(fixedpoint.MustParse("0.75", 18)) {
		t.Errorf("pool masset share = %s, want 0.75", m.FeederPools["pool"].Masset.BasketShare)
	}

	v1 := m.SavingsContracts.V1.SavingsBalance
	if v1.Balance == nil || !v1.Balance.Equal(fixedpoint.MustParse("6", 18)) {
		t.Errorf("v1 balance = %v, want 6", v1.Balance)
	}
	v2 := m.SavingsContracts.V2.SavingsBalance
	if v2.Credits == nil || !v2.Credits.Equal(fixedpoint.MustParse("10", 18)) {
		t.Errorf("v2 credits = %v, want 10", v2.Credits)
	}
	if v2.Balance == nil || !v2.Balance.Equal(fixedpoint.MustParse("1", 18)) {
		t.Errorf("v2 balance = %v, want 1", v2.Balance)
	}
}

func TestRecalculateDoesNotModifyInput(t *testing.T) {
	state := testState()
	if _, err := Recalculate(state); err != nil {
		t.Fatalf("Recalculate() error = %v", err)
	}
	m := state[domain.MassetMUSD]
	if !m.BAssets["a"].BasketShare.IsZero() {
		t.Error("input basset modified")
	}
	if len(m.FAssets) != 0 {
		t.Error("input fAssets modified")
	}
	if m.SavingsContracts.V1.SavingsBalance.Balance != nil {
		t.Error("input savings balance modified")
	}
}

func TestRecalculateIsDeterministic(t *testing.T) {
	a, err := Recalculate(testState())
	if err != nil {
		t.Fatalf("Recalculate() error = %v", err)
	}
	b, err := Recalculate(testState())
	if err != nil {
		t.Fatalf("Recalculate() error = %v", err)
	}
	for addr, ba := range a[domain.MassetMUSD].BAssets {
		bb := b[domain.MassetMUSD].BAssets[addr]
		if !ba.BasketShare.Equal(bb.BasketShare) || !ba.TotalVaultInMasset.Equal(bb.TotalVaultInMasset) {
			t.Errorf("basset %s differs between runs", addr)
		}
	}
}

func TestRecalculateEmptyState(t *testing.T) {
	got, err := Recalculate(domain.DataState{})
	if err != nil {
		t.Fatalf("Recalculate() error = %v", err)
	}
	if len(got) != 0 {
		t.Errorf("Recalculate({}) = %v, want empty", got)
	}
}
