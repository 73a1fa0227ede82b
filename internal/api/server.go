package api

import (
	"crypto/subtle"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/cors"
)

// Options configures the HTTP server.
type Options struct {
	Port        string
	AdminAPIKey string
	// DebugState exposes the bare state tree at /debug/state.
	DebugState  bool
	CORSOrigins []string
}

// NewServer creates an HTTP server with all routes configured.
func NewServer(opts Options, handler *Handler) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/state", handler.GetState)
	mux.HandleFunc("GET /api/v1/massets/{name}", handler.GetMasset)
	mux.HandleFunc("GET /api/v1/massets/{name}/bassets", handler.GetBassets)
	mux.HandleFunc("GET /api/v1/massets/{name}/feeder-pools", handler.GetFeederPools)
	mux.HandleFunc("GET /api/v1/vaults/{address}/boost", handler.GetVaultBoost)

	upgrader := &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin:     originChecker(opts.CORSOrigins),
	}
	mux.HandleFunc("GET /api/v1/state/stream", handler.StreamState(upgrader))

	if handler.ticks != nil {
		tickHandler := http.HandlerFunc(handler.TriggerTick)
		if opts.AdminAPIKey != "" {
			mux.Handle("POST /api/v1/ticks", requireAuth(opts.AdminAPIKey, tickHandler))
		} else {
			mux.Handle("POST /api/v1/ticks", tickHandler)
		}
	}

	if opts.DebugState {
		mux.HandleFunc("GET /debug/state", handler.GetDebugState)
	}

	c := cors.New(cors.Options{
		AllowedOrigins: opts.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
	})

	return &http.Server{
		Addr:        ":" + opts.Port,
		Handler:     c.Handler(mux),
		ReadTimeout: 15 * time.Second,
		// No WriteTimeout: state streams are long-lived.
		IdleTimeout: 60 * time.Second,
	}
}

// originChecker allows websocket upgrades from the configured CORS origins. With no
// origins configured only same-host requests are allowed; "*" allows any.
func originChecker(origins []string) func(*http.Request) bool {
	if slices.Contains(origins, "*") {
		return func(*http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		if slices.Contains(origins, origin) {
			return true
		}
		host, _ := strings.CutPrefix(origin, "https://")
		host, _ = strings.CutPrefix(host, "http://")
		return strings.EqualFold(host, r.Host)
	}
}

func requireAuth(apiKey string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		token := strings.TrimPrefix(auth, "Bearer ")
		if !strings.HasPrefix(auth, "Bearer ") || subtle.ConstantTimeCompare([]byte(token), []byte(apiKey)) != 1 {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}
