package chain

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/dgraph-io/ristretto"
	"github.com/samber/lo"
)

// VaultBalanceReader reads authoritative basset vault balances from masset contracts.
// Results are cached per set of masset addresses; the indexers lag behind the chain, so these
// override indexed balances when present.
type VaultBalanceReader struct {
	caller Caller
	cache  *ristretto.Cache
	ttl    time.Duration
}

// NewVaultBalanceReader creates a reader. A zero ttl caches each address set until evicted.
func NewVaultBalanceReader(caller Caller, ttl time.Duration) (*VaultBalanceReader, error) {
	if caller == nil {
		panic("chain: NewVaultBalanceReader requires a caller")
	}
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 1_000,
		MaxCost:     100,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("creating vault balance cache: %w", err)
	}
	return &VaultBalanceReader{caller: caller, cache: cache, ttl: ttl}, nil
}

// cacheKey is the sorted, lower-cased, comma-joined address set.
func cacheKey(massets []string) string {
	keys := lo.Uniq(lo.Map(massets, func(a string, _ int) string { return strings.ToLower(a) }))
	slices.Sort(keys)
	return strings.Join(keys, ",")
}

// VaultBalances returns basset address → vault balance (raw integer string) for every masset.
// Any failed call fails the whole set so a partial override never mixes with stale data.
func (r *VaultBalanceReader) VaultBalances(ctx context.Context, massets []string) (map[string]string, error) {
	key := cacheKey(massets)
	if key == "" {
		return map[string]string{}, nil
	}
	if v, ok := r.cache.Get(key); ok {
		return v.(map[string]string), nil
	}

	out := make(map[string]string)
	for _, masset := range strings.Split(key, ",") {
		data, err := r.caller.EthCall(ctx, masset, SelectorGetBassets)
		if err != nil {
			return nil, fmt.Errorf("getBassets on %s: %w", masset, err)
		}
		personal, bassetData, err := DecodeGetBassets(data)
		if err != nil {
			return nil, fmt.Errorf("getBassets on %s: %w", masset, err)
		}
		for i, p := range personal {
			out[strings.ToLower(p.Addr)] = bassetData[i].VaultBalance.String()
		}
	}

	r.cache.SetWithTTL(key, out, 1, r.ttl)
	r.cache.Wait()
	slog.Debug("VaultBalanceReader: fetched vault balances", "massets", key, "bassets", len(out))
	return out, nil
}

// Close releases the cache.
func (r *VaultBalanceReader) Close() {
	r.cache.Close()
}
