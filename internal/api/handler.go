package api

import (
	"cmp"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/samber/lo"

	"github.com/mtlprog/mstate/internal/domain"
	"github.com/mtlprog/mstate/internal/fixedpoint"
)

// StateProvider exposes the last published state tree.
type StateProvider interface {
	Current() domain.DataState
	UpdatedAt() time.Time
	Changed() <-chan struct{}
}

// TickTrigger requests an immediate pipeline tick.
type TickTrigger interface {
	Trigger() bool
}

// BoostCalculator computes a user's boost for a vault at a given voting balance.
type BoostCalculator interface {
	UserBoost(vault *domain.BoostedSavingsVaultState, voting fixedpoint.Decimal) float64
}

// Handler provides HTTP endpoints for the state API.
type Handler struct {
	states StateProvider
	ticks  TickTrigger
	boosts BoostCalculator
}

// NewHandler creates a new API handler. ticks may be nil.
func NewHandler(states StateProvider, ticks TickTrigger, boosts BoostCalculator) *Handler {
	if states == nil || boosts == nil {
		panic("api: NewHandler requires a state provider and a boost calculator")
	}
	return &Handler{states: states, ticks: ticks, boosts: boosts}
}

type stateResponse struct {
	UpdatedAt *time.Time       `json:"updatedAt"`
	Massets   domain.DataState `json:"massets"`
}

func (h *Handler) snapshot() stateResponse {
	resp := stateResponse{Massets: h.states.Current()}
	if at := h.states.UpdatedAt(); !at.IsZero() {
		resp.UpdatedAt = &at
	}
	return resp
}

// GetState handles GET /api/v1/state.
func (h *Handler) GetState(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.snapshot())
}

// GetDebugState handles GET /debug/state: the bare state tree.
func (h *Handler) GetDebugState(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.states.Current())
}

var errNotLoaded = errors.New("state not loaded yet")

// masset resolves the {name} path value, writing the error response on failure.
func (h *Handler) masset(w http.ResponseWriter, r *http.Request) (domain.MassetState, bool) {
	name, err := domain.ParseMassetName(r.PathValue("name"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "unknown masset")
		return domain.MassetState{}, false
	}
	state := h.states.Current()
	if len(state) == 0 {
		writeError(w, http.StatusServiceUnavailable, errNotLoaded.Error())
		return domain.MassetState{}, false
	}
	m, ok := state[name]
	if !ok {
		writeError(w, http.StatusNotFound, "masset not found")
		return domain.MassetState{}, false
	}
	return m, true
}

// GetMasset handles GET /api/v1/massets/{name}.
func (h *Handler) GetMasset(w http.ResponseWriter, r *http.Request) {
	if m, ok := h.masset(w, r); ok {
		writeJSON(w, http.StatusOK, m)
	}
}

// GetBassets handles GET /api/v1/massets/{name}/bassets.
func (h *Handler) GetBassets(w http.ResponseWriter, r *http.Request) {
	if m, ok := h.masset(w, r); ok {
		writeJSON(w, http.StatusOK, m.BAssets)
	}
}

// GetFeederPools handles GET /api/v1/massets/{name}/feeder-pools, ordered by pool address.
func (h *Handler) GetFeederPools(w http.ResponseWriter, r *http.Request) {
	m, ok := h.masset(w, r)
	if !ok {
		return
	}
	pools := lo.Values(m.FeederPools)
	slices.SortFunc(pools, func(a, b domain.FeederPoolState) int { return cmp.Compare(a.Address, b.Address) })
	writeJSON(w, http.StatusOK, pools)
}

type boostResponse struct {
	Vault           string              `json:"vault"`
	IsImusd         bool                `json:"isImusd"`
	VotingBalance   string              `json:"votingBalance"`
	BoostMultiplier *float64            `json:"boostMultiplier"`
	UserBoost       float64             `json:"userBoost"`
	ActiveReward    *domain.RewardEntry `json:"activeReward,omitempty"`
}

// GetVaultBoost handles GET /api/v1/vaults/{address}/boost?votingBalance=.
// votingBalance is a simple decimal amount; it defaults to zero.
func (h *Handler) GetVaultBoost(w http.ResponseWriter, r *http.Request) {
	voting := fixedpoint.Zero(fixedpoint.DefaultDecimals)
	if v := r.URL.Query().Get("votingBalance"); v != "" {
		parsed, err := fixedpoint.Parse(v, fixedpoint.DefaultDecimals)
		if err != nil || parsed.Sign() < 0 {
			writeError(w, http.StatusBadRequest, "invalid votingBalance")
			return
		}
		voting = parsed
	}

	state := h.states.Current()
	if len(state) == 0 {
		writeError(w, http.StatusServiceUnavailable, errNotLoaded.Error())
		return
	}
	vault, ok := state.FindVault(r.PathValue("address"))
	if !ok {
		writeError(w, http.StatusNotFound, "vault not found")
		return
	}

	resp := boostResponse{
		Vault:         vault.Address,
		IsImusd:       vault.IsImusd,
		VotingBalance: voting.String(),
		UserBoost:     h.boosts.UserBoost(&vault, voting),
	}
	if vault.Account != nil {
		resp.BoostMultiplier = lo.ToPtr(vault.Account.BoostMultiplier)
		if e, ok := vault.Account.ActiveRewardEntry(time.Now().Unix()); ok {
			resp.ActiveReward = &e
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// TriggerTick handles POST /api/v1/ticks.
func (h *Handler) TriggerTick(w http.ResponseWriter, _ *http.Request) {
	status := "scheduled"
	if !h.ticks.Trigger() {
		status = "pending"
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": status})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		slog.Error("failed to marshal JSON response", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		slog.Warn("failed to write HTTP response body", "error", err)
		return
	}
	_, _ = w.Write([]byte("\n"))
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
