// Package pipeline runs transform and recalc once per tick and keeps the last good state.
package pipeline

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/mtlprog/mstate/internal/domain"
	"github.com/mtlprog/mstate/internal/recalc"
	"github.com/mtlprog/mstate/internal/transform"
)

// ErrMissingInput means a tick arrived before every raw section was loaded. The previous
// state is kept; callers should not treat it as a failure.
var ErrMissingInput = errors.New("raw input incomplete")

// Service holds the latest successfully computed state tree.
//
// States handed out by Current and Update are shared and must be treated as read-only.
type Service struct {
	mu        sync.RWMutex
	current   domain.DataState
	updatedAt time.Time
	changed   chan struct{}
}

// NewService creates a Service whose state is empty until the first complete tick.
func NewService() *Service {
	return &Service{
		current: domain.DataState{},
		changed: make(chan struct{}),
	}
}

// Update runs one tick. It returns the state consumers should see: the new tree on success,
// or the previous one together with ErrMissingInput or the pipeline error.
func (s *Service) Update(raw transform.RawData) (domain.DataState, error) {
	if !raw.Complete() {
		return s.Current(), ErrMissingInput
	}

	state, err := Run(raw)
	if err != nil {
		return s.Current(), err
	}

	s.mu.Lock()
	s.current = state
	s.updatedAt = time.Now()
	close(s.changed)
	s.changed = make(chan struct{})
	s.mu.Unlock()

	return state, nil
}

// Run is the pure two-pass pipeline: Transform then Recalculate.
func Run(raw transform.RawData) (domain.DataState, error) {
	state, err := transform.Transform(raw)
	if err != nil {
		return nil, fmt.Errorf("transform: %w", err)
	}
	state, err = recalc.Recalculate(state)
	if err != nil {
		return nil, fmt.Errorf("recalculate: %w", err)
	}
	return state, nil
}

// Current returns the last successful state, or an empty state before the first one.
func (s *Service) Current() domain.DataState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// UpdatedAt returns when the state was last replaced; zero before the first success.
func (s *Service) UpdatedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.updatedAt
}

// Changed returns a channel that is closed on the next successful update.
func (s *Service) Changed() <-chan struct{} {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.changed
}
