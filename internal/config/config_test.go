package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"NETWORK", "NETWORKS_FILE", "SUBGRAPH_PROTOCOL_URL", "SUBGRAPH_FEEDERS_URL", "RPC_URLS", "RPC_BLOCK_TAG",
		"WATCH_ACCOUNT", "TICK_INTERVAL", "HTTP_RETRY_MAX", "HTTP_RETRY_BASE_DELAY", "VAULT_BALANCE_TTL",
		"HTTP_PORT", "ADMIN_API_KEY", "DEBUG_STATE", "EXPORT_CRON", "EXPORT_XLSX_PATH",
		"GOOGLE_SHEETS_ID", "GOOGLE_CREDENTIALS_JSON", "CORS_ORIGINS",
	} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Network.Name != "mainnet" || cfg.Network.ChainID != 1 {
		t.Errorf("Network = %s/%d, want mainnet/1", cfg.Network.Name, cfg.Network.ChainID)
	}
	if cfg.Network.ProtocolSubgraph == "" || cfg.Network.FeedersSubgraph == "" {
		t.Errorf("mainnet subgraphs = %q, %q; want both set", cfg.Network.ProtocolSubgraph, cfg.Network.FeedersSubgraph)
	}
	if len(cfg.Network.RPCURLs) == 0 {
		t.Error("mainnet RPC URLs should not be empty")
	}
	if f, ok := cfg.Network.LegacyVaultTable().Lookup("0x78BEFCA7DE27D07DC6E71DA295CC2946681A6C7B"); !ok || f != 2 {
		t.Errorf("imUSD vault factor = %d, %v; want 2", f, ok)
	}
	if cfg.TickInterval != 15*time.Second {
		t.Errorf("TickInterval = %v, want 15s", cfg.TickInterval)
	}
	if cfg.RPCBlockTag != "latest" {
		t.Errorf("RPCBlockTag = %q, want latest", cfg.RPCBlockTag)
	}
	if cfg.HTTPRetryMax != 5 {
		t.Errorf("HTTPRetryMax = %d, want 5", cfg.HTTPRetryMax)
	}
	if cfg.HTTPRetryBaseDelay != 2*time.Second {
		t.Errorf("HTTPRetryBaseDelay = %v, want 2s", cfg.HTTPRetryBaseDelay)
	}
	if cfg.VaultBalanceTTL != 0 {
		t.Errorf("VaultBalanceTTL = %v, want 0", cfg.VaultBalanceTTL)
	}
	if cfg.HTTPPort != "8080" {
		t.Errorf("HTTPPort = %q, want 8080", cfg.HTTPPort)
	}
	if cfg.DebugState {
		t.Error("DebugState should default to false")
	}
	if len(cfg.CORSOrigins) != 1 || cfg.CORSOrigins[0] != "*" {
		t.Errorf("CORSOrigins = %v, want [*]", cfg.CORSOrigins)
	}
	if cfg.Network.BoostConfig().Standard.MaxBoost != 3 {
		t.Error("boost config should fall back to defaults")
	}
}

func TestLoadEnvOverride(t *testing.T) {
	clearEnv(t)
	t.Setenv("NETWORK", "polygon")
	t.Setenv("SUBGRAPH_PROTOCOL_URL", "https://graph.example/protocol")
	t.Setenv("RPC_URLS", "https://a.example, ,https://b.example")
	t.Setenv("WATCH_ACCOUNT", "0xABC")
	t.Setenv("TICK_INTERVAL", "1m")
	t.Setenv("RPC_BLOCK_TAG", "safe")
	t.Setenv("DEBUG_STATE", "true")
	t.Setenv("HTTP_PORT", "9090")
	t.Setenv("CORS_ORIGINS", "https://app.example")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Network.Name != "polygon" {
		t.Errorf("Network = %q, want polygon", cfg.Network.Name)
	}
	if cfg.Network.ProtocolSubgraph != "https://graph.example/protocol" {
		t.Errorf("ProtocolSubgraph = %q", cfg.Network.ProtocolSubgraph)
	}
	if cfg.Network.FeedersSubgraph != "" {
		t.Errorf("polygon FeedersSubgraph = %q, want empty", cfg.Network.FeedersSubgraph)
	}
	if len(cfg.Network.RPCURLs) != 2 || cfg.Network.RPCURLs[1] != "https://b.example" {
		t.Errorf("RPCURLs = %v", cfg.Network.RPCURLs)
	}
	if cfg.WatchAccount != "0xabc" {
		t.Errorf("WatchAccount = %q, want lower-cased", cfg.WatchAccount)
	}
	if cfg.TickInterval != time.Minute {
		t.Errorf("TickInterval = %v, want 1m", cfg.TickInterval)
	}
	if cfg.RPCBlockTag != "safe" {
		t.Errorf("RPCBlockTag = %q, want safe", cfg.RPCBlockTag)
	}
	if !cfg.DebugState {
		t.Error("DebugState should be true")
	}
	if cfg.HTTPPort != "9090" {
		t.Errorf("HTTPPort = %q, want 9090", cfg.HTTPPort)
	}
	if len(cfg.CORSOrigins) != 1 || cfg.CORSOrigins[0] != "https://app.example" {
		t.Errorf("CORSOrigins = %v", cfg.CORSOrigins)
	}
}

func TestLoadInvalidValuesFallBack(t *testing.T) {
	clearEnv(t)
	t.Setenv("HTTP_RETRY_MAX", "not-a-number")
	t.Setenv("TICK_INTERVAL", "soon")
	t.Setenv("DEBUG_STATE", "maybe")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.HTTPRetryMax != 5 {
		t.Errorf("HTTPRetryMax = %d, want default 5", cfg.HTTPRetryMax)
	}
	if cfg.TickInterval != 15*time.Second {
		t.Errorf("TickInterval = %v, want default 15s", cfg.TickInterval)
	}
	if cfg.DebugState {
		t.Error("DebugState should fall back to false")
	}
}

func TestLoadUnknownNetwork(t *testing.T) {
	clearEnv(t)
	t.Setenv("NETWORK", "ropsten")

	if _, err := Load(); !errors.Is(err, ErrUnknownNetwork) {
		t.Errorf("Load() error = %v, want ErrUnknownNetwork", err)
	}
}

func TestLoadNetworksFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "networks.yaml")
	data := `
local:
  chain_id: 31337
  protocol_subgraph: http://localhost:8000/protocol
  legacy_vaults:
    "0xAAAA": 4
  boost:
    standard:
      min_boost: 1
      max_boost: 2
    legacy:
      min_boost: 1
      max_boost: 2
`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatalf("writing networks file: %v", err)
	}
	t.Setenv("NETWORKS_FILE", path)
	t.Setenv("NETWORK", "local")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Network.ChainID != 31337 {
		t.Errorf("ChainID = %d, want 31337", cfg.Network.ChainID)
	}
	if f, ok := cfg.Network.LegacyVaultTable().Lookup("0xaaaa"); !ok || f != 4 {
		t.Errorf("legacy factor = %d, %v; want 4", f, ok)
	}
	if got := cfg.Network.BoostConfig().Standard.MaxBoost; got != 2 {
		t.Errorf("MaxBoost = %v, want 2", got)
	}

	t.Setenv("NETWORKS_FILE", filepath.Join(t.TempDir(), "missing.yaml"))
	if _, err := Load(); err == nil {
		t.Error("expected error for missing networks file")
	}
}
