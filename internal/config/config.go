package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Default intervals for the listener loops. The short interval paces the
// happy path, the long one follows an unrecovered tick error.
const (
	DefaultPollInterval    = 3 * time.Second
	DefaultBackoffInterval = 5 * time.Second
)

// Config holds all configuration for the chain listener service
type Config struct {
	Log      LogConfig       `yaml:"log"`
	API      APIConfig       `yaml:"api"`
	Cursor   CursorConfig    `yaml:"cursor"`
	Offchain OffchainConfig  `yaml:"offchain"`
	Listener ListenerConfig  `yaml:"listener"`
	Networks []NetworkConfig `yaml:"networks"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// APIConfig holds HTTP server configuration
type APIConfig struct {
	Enabled            bool    `yaml:"enabled"`
	Host               string  `yaml:"host"`
	Port               int     `yaml:"port"`
	EnableRateLimit    bool    `yaml:"enable_rate_limit"`
	RateLimitPerSecond float64 `yaml:"rate_limit_per_second"`
	RateLimitBurst     int     `yaml:"rate_limit_burst"`
}

// Address returns the host:port address for the HTTP server
func (c *APIConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// CursorConfig holds cursor store configuration
type CursorConfig struct {
	// Backend selects the cursor persistence backend: "pebble" or "redis"
	Backend string `yaml:"backend"`
	// Path is the pebble database directory (pebble backend)
	Path string `yaml:"path"`
	// Redis holds connection settings (redis backend)
	Redis RedisConfig `yaml:"redis"`
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password,omitempty"`
	DB       int    `yaml:"db"`
}

// OffchainConfig holds downstream event store configuration
type OffchainConfig struct {
	Path string `yaml:"path"`
}

// ListenerConfig holds per-loop polling configuration shared by all networks
type ListenerConfig struct {
	// PollInterval is the sleep between successful ticks
	PollInterval time.Duration `yaml:"poll_interval"`
	// BackoffInterval is the sleep after a failed tick
	BackoffInterval time.Duration `yaml:"backoff_interval"`
	// DedupRetentionBlocks bounds the in-memory dedup window; identities
	// older than this many blocks behind the cursor are evicted.
	// 0 keeps the window unbounded for the process lifetime.
	DedupRetentionBlocks uint64 `yaml:"dedup_retention_blocks"`
}

// NetworkConfig identifies one blockchain network and its subscribed registries
type NetworkConfig struct {
	// Name is the network identifier; it scopes the cursor key and the
	// dedup identity of every event observed on this network.
	Name string `yaml:"name"`
	// RPCEndpoint is the JSON-RPC endpoint URL. Environment references
	// ($VAR / ${VAR}, e.g. an API key segment) are expanded at load time.
	RPCEndpoint string `yaml:"rpc_endpoint"`
	// RPCTimeout bounds the initial connection dial
	RPCTimeout time.Duration `yaml:"rpc_timeout,omitempty"`
	// PrivateKeyEnv names the environment variable holding the hex-encoded
	// signing key for this network's account
	PrivateKeyEnv string `yaml:"private_key_env,omitempty"`
	// Enabled indicates whether a listener loop is started for this network
	Enabled bool `yaml:"enabled"`
	// Registries are the contracts whose events this network subscribes to
	Registries []RegistryConfig `yaml:"registries"`
}

// RegistryConfig describes one contract registry on a network
type RegistryConfig struct {
	// Name is the registry name; a registry named "ValidatorRegistry" is
	// bookkeeping only and is never polled for events.
	Name string `yaml:"name"`
	// Address is the contract address (0x-prefixed hex)
	Address string `yaml:"address"`
	// ABIPath points to the contract ABI JSON file
	ABIPath string `yaml:"abi_path,omitempty"`
	// ABI is the ABI JSON itself; populated from ABIPath at load time
	// when empty
	ABI string `yaml:"abi,omitempty"`
	// Events are the event names subscribed on this registry
	Events []string `yaml:"events"`
}

// DefaultConfig returns a configuration with sane defaults
func DefaultConfig() *Config {
	return &Config{
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
		API: APIConfig{
			Enabled:            true,
			Host:               "0.0.0.0",
			Port:               8080,
			RateLimitPerSecond: 50,
			RateLimitBurst:     100,
		},
		Cursor: CursorConfig{
			Backend: "pebble",
			Path:    "./data/cursors",
		},
		Offchain: OffchainConfig{
			Path: "./data/offchain",
		},
		Listener: ListenerConfig{
			PollInterval:    DefaultPollInterval,
			BackoffInterval: DefaultBackoffInterval,
		},
	}
}

// Load reads configuration from the given YAML file, applies environment
// overrides and expands environment references in endpoints. An empty path
// yields the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	cfg.applyEnv()

	for i := range cfg.Networks {
		cfg.Networks[i].RPCEndpoint = os.ExpandEnv(cfg.Networks[i].RPCEndpoint)
	}

	if err := cfg.loadABIs(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyEnv applies CHAINLISTENER_* environment overrides
func (c *Config) applyEnv() {
	if v := os.Getenv("CHAINLISTENER_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("CHAINLISTENER_LOG_FORMAT"); v != "" {
		c.Log.Format = v
	}
	if v := os.Getenv("CHAINLISTENER_CURSOR_PATH"); v != "" {
		c.Cursor.Path = v
	}
	if v := os.Getenv("CHAINLISTENER_OFFCHAIN_PATH"); v != "" {
		c.Offchain.Path = v
	}
	if v := os.Getenv("CHAINLISTENER_API_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.API.Port = port
		}
	}
}

// loadABIs reads each registry ABI from its ABIPath when the inline ABI
// is empty
func (c *Config) loadABIs() error {
	for ni := range c.Networks {
		for ri := range c.Networks[ni].Registries {
			reg := &c.Networks[ni].Registries[ri]
			if reg.ABI != "" || reg.ABIPath == "" {
				continue
			}
			data, err := os.ReadFile(reg.ABIPath)
			if err != nil {
				return fmt.Errorf("failed to read ABI for registry %s: %w", reg.Name, err)
			}
			reg.ABI = string(data)
		}
	}
	return nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Listener.PollInterval <= 0 {
		return fmt.Errorf("listener poll interval must be positive")
	}
	if c.Listener.BackoffInterval <= 0 {
		return fmt.Errorf("listener backoff interval must be positive")
	}

	switch c.Cursor.Backend {
	case "pebble":
		if c.Cursor.Path == "" {
			return fmt.Errorf("cursor path is required for the pebble backend")
		}
	case "redis":
		if c.Cursor.Redis.Addr == "" {
			return fmt.Errorf("cursor redis address is required for the redis backend")
		}
	default:
		return fmt.Errorf("unknown cursor backend %q (expected pebble or redis)", c.Cursor.Backend)
	}

	if c.API.Enabled {
		if c.API.Port <= 0 || c.API.Port > 65535 {
			return fmt.Errorf("api port must be in range 1-65535")
		}
	}

	seen := make(map[string]bool, len(c.Networks))
	for _, net := range c.Networks {
		if err := net.Validate(); err != nil {
			return err
		}
		if seen[net.Name] {
			return fmt.Errorf("duplicate network name %q", net.Name)
		}
		seen[net.Name] = true
	}

	return nil
}

// Validate validates a single network configuration
func (n *NetworkConfig) Validate() error {
	if n.Name == "" {
		return fmt.Errorf("network name is required")
	}
	if !n.Enabled {
		return nil
	}
	if n.RPCEndpoint == "" {
		return fmt.Errorf("network %s: rpc endpoint is required", n.Name)
	}
	if len(n.Registries) == 0 {
		return fmt.Errorf("network %s: at least one registry is required", n.Name)
	}
	for _, reg := range n.Registries {
		if reg.Name == "" {
			return fmt.Errorf("network %s: registry name is required", n.Name)
		}
		if reg.Address == "" {
			return fmt.Errorf("network %s: registry %s: address is required", n.Name, reg.Name)
		}
		if reg.ABI == "" && reg.ABIPath == "" {
			return fmt.Errorf("network %s: registry %s: abi or abi_path is required", n.Name, reg.Name)
		}
	}
	return nil
}

// EnabledNetworks returns the networks with Enabled set
func (c *Config) EnabledNetworks() []NetworkConfig {
	enabled := make([]NetworkConfig, 0, len(c.Networks))
	for _, net := range c.Networks {
		if net.Enabled {
			enabled = append(enabled, net)
		}
	}
	return enabled
}
