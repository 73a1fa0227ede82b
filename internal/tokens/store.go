// Package tokens keeps the watched account's live token balances and allowances.
package tokens

import (
	"maps"
	"strings"
	"sync"

	"github.com/mtlprog/mstate/internal/domain"
)

// Store is the token subscription cache read by each pipeline run.
type Store struct {
	mu     sync.RWMutex
	tokens map[string]domain.SubscribedToken
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{tokens: make(map[string]domain.SubscribedToken)}
}

// Snapshot returns a copy of the cache keyed by lower-cased token address.
func (s *Store) Snapshot() map[string]domain.SubscribedToken {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return maps.Clone(s.tokens)
}

// Get returns one subscription.
func (s *Store) Get(address string) (domain.SubscribedToken, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tokens[strings.ToLower(address)]
	return t, ok
}

// Replace swaps the whole cache.
func (s *Store) Replace(tokens map[string]domain.SubscribedToken) {
	next := make(map[string]domain.SubscribedToken, len(tokens))
	for addr, t := range tokens {
		next[strings.ToLower(addr)] = t
	}
	s.mu.Lock()
	s.tokens = next
	s.mu.Unlock()
}

// Len returns the number of subscribed tokens.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tokens)
}
