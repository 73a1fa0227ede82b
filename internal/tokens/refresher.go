package tokens

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/samber/lo"

	"github.com/mtlprog/mstate/internal/chain"
	"github.com/mtlprog/mstate/internal/domain"
	"github.com/mtlprog/mstate/internal/fixedpoint"
)

// Subscription is a token to watch and the spenders whose allowances matter.
type Subscription struct {
	Token    domain.Token
	Spenders []string
}

// Subscriptions derives the watch list from a state tree: bassets approve their masset,
// the masset approves its savings contracts, the savings token approves its vault, and
// feeder pool assets approve their pool.
func Subscriptions(state domain.DataState) map[string]Subscription {
	subs := make(map[string]Subscription)
	add := func(tok domain.Token, spenders ...string) {
		addr := strings.ToLower(tok.Address)
		if addr == "" {
			return
		}
		s, ok := subs[addr]
		if !ok {
			s = Subscription{Token: tok}
		}
		for _, sp := range spenders {
			if sp != "" {
				s.Spenders = append(s.Spenders, strings.ToLower(sp))
			}
		}
		subs[addr] = s
	}

	for _, name := range domain.MassetNames {
		m, ok := state[name]
		if !ok {
			continue
		}
		savings := []string{m.SavingsContracts.V2.Address}
		if v1 := m.SavingsContracts.V1; v1 != nil {
			savings = append(savings, v1.Address)
		}
		add(m.Token.Token, savings...)

		for _, b := range m.BAssets {
			add(b.Token.Token, m.Address)
		}

		if tok := m.SavingsContracts.V2.Token; tok != nil {
			var vault string
			if v := m.SavingsContracts.V2.BoostedSavingsVault; v != nil {
				vault = v.Address
			}
			add(tok.Token, vault)
		}

		for _, fp := range m.FeederPools {
			add(fp.Masset.Token.Token, fp.Address)
			add(fp.Fasset.Token.Token, fp.Address)
			var vault string
			if fp.Vault != nil {
				vault = fp.Vault.Address
			}
			add(fp.Token.Token, vault)
		}
	}

	for addr, s := range subs {
		s.Spenders = lo.Uniq(s.Spenders)
		slices.Sort(s.Spenders)
		subs[addr] = s
	}
	return subs
}

// Refresher reads balances, allowances and supplies for the watched account.
type Refresher struct {
	caller  chain.Caller
	store   *Store
	account string
}

// NewRefresher creates a Refresher. An empty account disables refreshing.
func NewRefresher(caller chain.Caller, store *Store, account string) *Refresher {
	if caller == nil || store == nil {
		panic("tokens: NewRefresher requires a caller and a store")
	}
	return &Refresher{caller: caller, store: store, account: strings.ToLower(account)}
}

// AfterTick refreshes the subscriptions derived from the state just published.
func (r *Refresher) AfterTick(ctx context.Context, state domain.DataState) error {
	return r.Refresh(ctx, Subscriptions(state))
}

// Refresh reads every subscription and replaces the store. Tokens that fail keep their
// previous value; the errors are joined and returned.
func (r *Refresher) Refresh(ctx context.Context, subs map[string]Subscription) error {
	if r.account == "" || len(subs) == 0 {
		return nil
	}

	prev := r.store.Snapshot()
	next := make(map[string]domain.SubscribedToken, len(subs))
	var errs []error

	for addr, sub := range subs {
		tok, err := r.read(ctx, addr, sub)
		if err != nil {
			errs = append(errs, fmt.Errorf("token %s: %w", addr, err))
			if p, ok := prev[addr]; ok {
				next[addr] = p
			}
			continue
		}
		next[addr] = tok
	}

	r.store.Replace(next)
	slog.Debug("TokenRefresher: refreshed", "tokens", len(next), "failed", len(errs))
	return errors.Join(errs...)
}

func (r *Refresher) read(ctx context.Context, addr string, sub Subscription) (domain.SubscribedToken, error) {
	decimals := sub.Token.Decimals

	balance, err := r.amount(ctx, addr, chain.EncodeBalanceOf(r.account), decimals)
	if err != nil {
		return domain.SubscribedToken{}, fmt.Errorf("balanceOf: %w", err)
	}
	supply, err := r.amount(ctx, addr, chain.SelectorTotalSupply, decimals)
	if err != nil {
		return domain.SubscribedToken{}, fmt.Errorf("totalSupply: %w", err)
	}

	allowances := make(map[string]fixedpoint.Decimal, len(sub.Spenders))
	for _, spender := range sub.Spenders {
		a, err := r.amount(ctx, addr, chain.EncodeAllowance(r.account, spender), decimals)
		if err != nil {
			return domain.SubscribedToken{}, fmt.Errorf("allowance(%s): %w", spender, err)
		}
		allowances[spender] = a
	}

	tok := sub.Token
	tok.Address = addr
	tok.TotalSupply = supply
	return domain.SubscribedToken{
		Token:      tok,
		Balance:    balance,
		Allowances: allowances,
	}, nil
}

// amount performs a call returning one uint256 token amount, already scaled by decimals.
func (r *Refresher) amount(ctx context.Context, to string, calldata []byte, decimals uint8) (fixedpoint.Decimal, error) {
	data, err := r.caller.EthCall(ctx, to, calldata)
	if err != nil {
		return fixedpoint.Decimal{}, err
	}
	n, err := chain.DecodeUint256(data)
	if err != nil {
		return fixedpoint.Decimal{}, err
	}
	return fixedpoint.FromInteger(n, decimals), nil
}
