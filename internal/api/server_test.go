package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mtlprog/mstate/internal/domain"
)

func TestRequireAuthValidToken(t *testing.T) {
	called := false
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	})

	handler := requireAuth("secret-key", next)
	req := httptest.NewRequest(http.MethodPost, "/test", nil)
	req.Header.Set("Authorization", "Bearer secret-key")
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
	if !called {
		t.Error("next handler was not called")
	}
}

func TestRequireAuthMissingHeader(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("next handler should not be called")
	})

	handler := requireAuth("secret-key", next)
	req := httptest.NewRequest(http.MethodPost, "/test", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

func TestRequireAuthWrongToken(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("next handler should not be called")
	})

	handler := requireAuth("secret-key", next)
	req := httptest.NewRequest(http.MethodPost, "/test", nil)
	req.Header.Set("Authorization", "Bearer wrong-key")
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

func TestRequireAuthMalformedHeader(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("next handler should not be called")
	})

	handler := requireAuth("secret-key", next)
	req := httptest.NewRequest(http.MethodPost, "/test", nil)
	req.Header.Set("Authorization", "Basic secret-key")
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

func TestServerRoutes(t *testing.T) {
	h, _ := newTestHandler(testState())
	srv := httptest.NewServer(NewServer(Options{AdminAPIKey: "secret-key", CORSOrigins: []string{"*"}}, h).Handler)
	defer srv.Close()

	tests := []struct {
		method     string
		path       string
		auth       string
		wantStatus int
	}{
		{http.MethodGet, "/api/v1/state", "", http.StatusOK},
		{http.MethodGet, "/api/v1/massets/musd", "", http.StatusOK},
		{http.MethodGet, "/api/v1/massets/musd/bassets", "", http.StatusOK},
		{http.MethodGet, "/api/v1/massets/musd/feeder-pools", "", http.StatusOK},
		{http.MethodGet, "/api/v1/vaults/0xvaulta/boost", "", http.StatusOK},
		{http.MethodPost, "/api/v1/ticks", "", http.StatusUnauthorized},
		{http.MethodPost, "/api/v1/ticks", "Bearer secret-key", http.StatusAccepted},
		{http.MethodGet, "/debug/state", "", http.StatusNotFound},
	}
	for _, tt := range tests {
		req, _ := http.NewRequest(tt.method, srv.URL+tt.path, nil)
		if tt.auth != "" {
			req.Header.Set("Authorization", tt.auth)
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("%s %s: %v", tt.method, tt.path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != tt.wantStatus {
			t.Errorf("%s %s: status = %d, want %d", tt.method, tt.path, resp.StatusCode, tt.wantStatus)
		}
	}
}

func TestServerDebugState(t *testing.T) {
	h, _ := newTestHandler(testState())
	srv := httptest.NewServer(NewServer(Options{DebugState: true}, h).Handler)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/debug/state")
	if err != nil {
		t.Fatalf("GET /debug/state: %v", err)
	}
	defer resp.Body.Close()

	var state map[string]json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&state); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if _, ok := state["musd"]; !ok {
		t.Errorf("debug state = %v, want musd", state)
	}
}

func TestOriginChecker(t *testing.T) {
	tests := []struct {
		name    string
		origins []string
		origin  string
		want    bool
	}{
		{"wildcard", []string{"*"}, "https://evil.example", true},
		{"listed", []string{"https://app.example"}, "https://app.example", true},
		{"unlisted", []string{"https://app.example"}, "https://evil.example", false},
		{"same host", nil, "http://api.example", true},
		{"no origin header", nil, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "http://api.example/api/v1/state/stream", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			if got := originChecker(tt.origins)(req); got != tt.want {
				t.Errorf("originChecker() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestStateStream(t *testing.T) {
	h, states := newTestHandler(domain.DataState{})
	srv := httptest.NewServer(NewServer(Options{}, h).Handler)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/state/stream"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	var first stateResponse
	if err := conn.ReadJSON(&first); err != nil {
		t.Fatalf("reading initial state: %v", err)
	}
	if len(first.Massets) != 0 || first.UpdatedAt != nil {
		t.Errorf("initial state = %+v, want empty", first)
	}

	states.publish(testState())

	var next struct {
		UpdatedAt *time.Time                 `json:"updatedAt"`
		Massets   map[string]json.RawMessage `json:"massets"`
	}
	if err := conn.ReadJSON(&next); err != nil {
		t.Fatalf("reading update: %v", err)
	}
	if _, ok := next.Massets["musd"]; !ok || next.UpdatedAt == nil {
		t.Errorf("update = %+v, want musd with updatedAt", next)
	}
}
