package domain

import (
	"regexp"
	"strings"

	"github.com/mtlprog/mstate/internal/fixedpoint"
)

// Token is the static metadata of an ERC-20 token.
type Token struct {
	Address     string              `json:"address"`
	Decimals    uint8               `json:"decimals"`
	Symbol      string              `json:"symbol"`
	Name        string              `json:"name,omitempty"`
	TotalSupply fixedpoint.Decimal  `json:"totalSupply"`
	Price       *fixedpoint.Decimal `json:"price,omitempty"`
}

// SubscribedToken is a token plus the watched account's balance and allowances (spender → amount).
type SubscribedToken struct {
	Token
	Balance    fixedpoint.Decimal            `json:"balance"`
	Allowances map[string]fixedpoint.Decimal `json:"allowances"`
}

// TokenRef identifies a token without its supply data.
type TokenRef struct {
	Address string `json:"address"`
	Symbol  string `json:"symbol"`
}

// Allowance returns the allowance granted to spender, or zero at the token's scale.
func (t SubscribedToken) Allowance(spender string) fixedpoint.Decimal {
	if a, ok := t.Allowances[strings.ToLower(spender)]; ok {
		return a
	}
	return fixedpoint.Zero(t.Decimals)
}

// bridgedSymbol matches Polygon PoS bridged mStable names, optionally behind a "PAIR/" prefix:
// "(pos) mstable USD", "mstable BTC (polygon pos)", "FRAX/(PoS) mStable USD".
var bridgedSymbol = regexp.MustCompile(`(?i)^(\w+/)?(?:(?:\(pos\) mstable (\w+))|(?:mstable (\w+) \(polygon pos\)))$`)

// NormalizeSymbol rewrites bridged mStable names into the canonical m<ASSET> form.
// Other symbols are returned unchanged.
func NormalizeSymbol(symbol string) string {
	m := bridgedSymbol.FindStringSubmatch(symbol)
	if m == nil {
		return symbol
	}
	asset := m[2]
	if asset == "" {
		asset = m[3]
	}
	return m[1] + "m" + asset
}
