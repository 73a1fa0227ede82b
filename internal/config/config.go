package config

import (
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/samber/lo"
	"gopkg.in/yaml.v3"

	"github.com/mtlprog/mstate/internal/boost"
	"github.com/mtlprog/mstate/internal/domain"
)

//go:embed networks.yaml
var defaultNetworks []byte

// ErrUnknownNetwork is returned when NETWORK names no entry of the network table.
var ErrUnknownNetwork = errors.New("unknown network")

// Network is one entry of the network table.
type Network struct {
	Name             string           `yaml:"-"`
	ChainID          int              `yaml:"chain_id"`
	ProtocolSubgraph string           `yaml:"protocol_subgraph"`
	FeedersSubgraph  string           `yaml:"feeders_subgraph"`
	RPCURLs          []string         `yaml:"rpc_urls"`
	LegacyVaults     map[string]int64 `yaml:"legacy_vaults"`
	Boost            *boost.Config    `yaml:"boost"`
}

// BoostConfig returns the network's boost parameters, or the defaults.
func (n Network) BoostConfig() boost.Config {
	if n.Boost == nil {
		return boost.DefaultConfig()
	}
	return *n.Boost
}

// LegacyVaultTable returns the legacy vault table keyed by lower-cased address, or the defaults.
func (n Network) LegacyVaultTable() domain.LegacyVaultTable {
	if n.LegacyVaults == nil {
		return domain.DefaultLegacyVaults()
	}
	return domain.LegacyVaultTable(lo.MapKeys(n.LegacyVaults, func(_ int64, addr string) string {
		return strings.ToLower(addr)
	}))
}

// Config holds all application configuration loaded from environment variables.
type Config struct {
	Network               Network
	WatchAccount          string
	RPCBlockTag           string
	TickInterval          time.Duration
	HTTPRetryMax          int
	HTTPRetryBaseDelay    time.Duration
	VaultBalanceTTL       time.Duration
	HTTPPort              string
	AdminAPIKey           string
	DebugState            bool
	ExportCron            string
	ExportXLSXPath        string
	GoogleSheetsID        string
	GoogleCredentialsJSON string
	CORSOrigins           []string
}

// Load reads configuration from environment variables with sensible defaults. The network
// entry comes from NETWORKS_FILE, or the embedded table, and env vars override its endpoints.
func Load() (Config, error) {
	network, err := loadNetwork(envOrDefault("NETWORK", "mainnet"), os.Getenv("NETWORKS_FILE"))
	if err != nil {
		return Config{}, err
	}
	network.ProtocolSubgraph = envOrDefault("SUBGRAPH_PROTOCOL_URL", network.ProtocolSubgraph)
	network.FeedersSubgraph = envOrDefault("SUBGRAPH_FEEDERS_URL", network.FeedersSubgraph)
	network.RPCURLs = envOrDefaultList("RPC_URLS", network.RPCURLs)

	if network.ProtocolSubgraph == "" {
		slog.Warn("no protocol subgraph configured", "network", network.Name)
	}

	return Config{
		Network:               network,
		WatchAccount:          strings.ToLower(os.Getenv("WATCH_ACCOUNT")),
		RPCBlockTag:           envOrDefault("RPC_BLOCK_TAG", "latest"),
		TickInterval:          envOrDefaultDuration("TICK_INTERVAL", 15*time.Second),
		HTTPRetryMax:          envOrDefaultInt("HTTP_RETRY_MAX", 5),
		HTTPRetryBaseDelay:    envOrDefaultDuration("HTTP_RETRY_BASE_DELAY", 2*time.Second),
		VaultBalanceTTL:       envOrDefaultDuration("VAULT_BALANCE_TTL", 0),
		HTTPPort:              envOrDefault("HTTP_PORT", "8080"),
		AdminAPIKey:           os.Getenv("ADMIN_API_KEY"),
		DebugState:            envOrDefaultBool("DEBUG_STATE", false),
		ExportCron:            os.Getenv("EXPORT_CRON"),
		ExportXLSXPath:        os.Getenv("EXPORT_XLSX_PATH"),
		GoogleSheetsID:        os.Getenv("GOOGLE_SHEETS_ID"),
		GoogleCredentialsJSON: os.Getenv("GOOGLE_CREDENTIALS_JSON"),
		CORSOrigins:           envOrDefaultList("CORS_ORIGINS", []string{"*"}),
	}, nil
}

// loadNetwork reads the network table from path, or the embedded table when path is empty.
func loadNetwork(name, path string) (Network, error) {
	data := defaultNetworks
	if path != "" {
		var err error
		if data, err = os.ReadFile(path); err != nil {
			return Network{}, fmt.Errorf("reading networks file: %w", err)
		}
	}

	var table map[string]Network
	if err := yaml.Unmarshal(data, &table); err != nil {
		return Network{}, fmt.Errorf("parsing networks file: %w", err)
	}

	n, ok := table[name]
	if !ok {
		return Network{}, fmt.Errorf("%w: %q (known: %s)", ErrUnknownNetwork, name, strings.Join(slices.Sorted(maps.Keys(table)), ", "))
	}
	n.Name = name
	return n, nil
}

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

// envOrDefaultList splits a comma-separated env var, dropping empty items.
func envOrDefaultList(key string, defaultVal []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	return lo.Compact(lo.Map(strings.Split(v, ","), func(s string, _ int) string {
		return strings.TrimSpace(s)
	}))
}

func envOrDefaultInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			slog.Warn("invalid integer env var, using default", "key", key, "value", v, "default", defaultVal)
			return defaultVal
		}
		return n
	}
	return defaultVal
}

func envOrDefaultBool(key string, defaultVal bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			slog.Warn("invalid boolean env var, using default", "key", key, "value", v, "default", defaultVal)
			return defaultVal
		}
		return b
	}
	return defaultVal
}

func envOrDefaultDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			slog.Warn("invalid duration env var, using default", "key", key, "value", v, "default", defaultVal)
			return defaultVal
		}
		return d
	}
	return defaultVal
}
