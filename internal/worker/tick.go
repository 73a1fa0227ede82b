package worker

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/samber/lo"

	"github.com/mtlprog/mstate/internal/domain"
	"github.com/mtlprog/mstate/internal/pipeline"
	"github.com/mtlprog/mstate/internal/subgraph"
	"github.com/mtlprog/mstate/internal/transform"
)

// SubgraphSource fetches the two indexed raw sections.
type SubgraphSource interface {
	Massets(ctx context.Context, account string) (*subgraph.MassetsResult, error)
	FeederPools(ctx context.Context, account string) (*subgraph.FeederPoolsResult, error)
}

// VaultBalanceSource reads basset vault balances straight from the masset contracts.
type VaultBalanceSource interface {
	VaultBalances(ctx context.Context, massets []string) (map[string]string, error)
}

// TokenSource provides the live token subscription cache.
type TokenSource interface {
	Snapshot() map[string]domain.SubscribedToken
}

// StateUpdater runs the pipeline on one raw snapshot.
type StateUpdater interface {
	Update(raw transform.RawData) (domain.DataState, error)
}

// AfterTickHook is called after each successful tick with the published state.
type AfterTickHook interface {
	AfterTick(ctx context.Context, state domain.DataState) error
}

// TickConfig configures a TickWorker.
type TickConfig struct {
	Account      string
	Interval     time.Duration
	LegacyVaults domain.LegacyVaultTable
}

// TickWorker polls raw data sources and feeds the pipeline.
type TickWorker struct {
	source  SubgraphSource
	vaults  VaultBalanceSource // optional
	tokens  TokenSource        // optional
	updater StateUpdater
	cfg     TickConfig
	hooks   []AfterTickHook
	trigger chan struct{}
}

// NewTickWorker creates a TickWorker. vaults and tokens may be nil.
func NewTickWorker(source SubgraphSource, vaults VaultBalanceSource, tokens TokenSource, updater StateUpdater, cfg TickConfig, hooks ...AfterTickHook) *TickWorker {
	if source == nil || updater == nil {
		panic("worker: NewTickWorker requires a subgraph source and a state updater")
	}
	return &TickWorker{
		source:  source,
		vaults:  vaults,
		tokens:  tokens,
		updater: updater,
		cfg:     cfg,
		hooks:   lo.Filter(hooks, func(h AfterTickHook, _ int) bool { return h != nil }),
		trigger: make(chan struct{}, 1),
	}
}

// Trigger requests an immediate tick. It reports false when one is already pending.
func (w *TickWorker) Trigger() bool {
	select {
	case w.trigger <- struct{}{}:
		return true
	default:
		return false
	}
}

// Collect fetches one raw snapshot. A failed subgraph section is left nil so the pipeline
// keeps the previous state; a failed contract read falls back to indexed balances.
func (w *TickWorker) Collect(ctx context.Context) transform.RawData {
	raw := transform.RawData{
		ObservedAt:   time.Now().UTC(),
		LegacyVaults: w.cfg.LegacyVaults,
	}

	massets, err := w.source.Massets(ctx, w.cfg.Account)
	if err != nil {
		slog.Error("TickWorker: fetching massets failed", "error", err)
	} else {
		raw.Massets = massets
	}

	pools, err := w.source.FeederPools(ctx, w.cfg.Account)
	if err != nil {
		slog.Error("TickWorker: fetching feeder pools failed", "error", err)
	} else {
		raw.FeederPools = pools
	}

	if w.vaults != nil && raw.Massets != nil {
		addrs := lo.Map(raw.Massets.Massets, func(m subgraph.Masset, _ int) string { return m.ID })
		balances, err := w.vaults.VaultBalances(ctx, addrs)
		if err != nil {
			slog.Warn("TickWorker: vault balances unavailable, using indexed values", "error", err)
		} else {
			raw.VaultBalances = balances
		}
	}

	if w.tokens != nil {
		raw.Tokens = w.tokens.Snapshot()
	}
	return raw
}

// Tick collects raw data and runs the pipeline once. On success the hooks are run.
func (w *TickWorker) Tick(ctx context.Context) (domain.DataState, error) {
	state, err := w.updater.Update(w.Collect(ctx))
	if err != nil {
		return state, err
	}
	w.runHooks(ctx, state)
	return state, nil
}

func (w *TickWorker) runHooks(ctx context.Context, state domain.DataState) {
	for _, h := range w.hooks {
		if err := h.AfterTick(ctx, state); err != nil {
			slog.Error("TickWorker: after-tick hook failed", "error", err)
		}
	}
}

func (w *TickWorker) tick(ctx context.Context) {
	state, err := w.Tick(ctx)
	switch {
	case errors.Is(err, pipeline.ErrMissingInput):
		slog.Debug("TickWorker: raw input incomplete, keeping previous state")
	case err != nil:
		slog.Error("TickWorker: pipeline failed, keeping previous state", "error", err)
	default:
		slog.Info("TickWorker: state updated", "massets", len(state))
	}
}

// Run starts the tick loop. It blocks until the context is cancelled.
func (w *TickWorker) Run(ctx context.Context) {
	slog.Info("TickWorker: starting", "interval", w.cfg.Interval)

	// Tick immediately on startup
	w.tick(ctx)

	ticker := time.NewTicker(w.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("TickWorker: shutting down")
			return
		case <-ticker.C:
			w.tick(ctx)
		case <-w.trigger:
			slog.Info("TickWorker: manual tick requested")
			w.tick(ctx)
		}
	}
}
