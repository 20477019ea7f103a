package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testABI = `[{"type":"event","name":"PostProof","inputs":[]}]`

func validConfig() *Config {
	cfg := DefaultConfig()
	cfg.Networks = []NetworkConfig{
		{
			Name:        "fuji",
			RPCEndpoint: "https://example.invalid/rpc",
			Enabled:     true,
			Registries: []RegistryConfig{
				{Name: "RWADesk", Address: "0x0000000000000000000000000000000000000001", ABI: testABI, Events: []string{"PostProof"}},
			},
		},
	}
	return cfg
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "pebble", cfg.Cursor.Backend)
	assert.Equal(t, 3*time.Second, cfg.Listener.PollInterval)
	assert.Equal(t, 5*time.Second, cfg.Listener.BackoffInterval)
	assert.Zero(t, cfg.Listener.DedupRetentionBlocks)
	require.NoError(t, cfg.Validate())
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	abiPath := filepath.Join(dir, "desk.json")
	require.NoError(t, os.WriteFile(abiPath, []byte(testABI), 0o644))

	yaml := `
log:
  level: debug
listener:
  poll_interval: 1s
  backoff_interval: 2s
networks:
  - name: fuji
    rpc_endpoint: https://rpc.example/${TEST_API_KEY}
    enabled: true
    registries:
      - name: RWADesk
        address: "0x0000000000000000000000000000000000000001"
        abi_path: ` + abiPath + `
        events: [PostProof]
`
	cfgPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(yaml), 0o644))

	t.Setenv("TEST_API_KEY", "secret123")

	cfg, err := Load(cfgPath)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, time.Second, cfg.Listener.PollInterval)
	require.Len(t, cfg.Networks, 1)
	assert.Equal(t, "https://rpc.example/secret123", cfg.Networks[0].RPCEndpoint)
	require.Len(t, cfg.Networks[0].Registries, 1)
	assert.Equal(t, testABI, cfg.Networks[0].Registries[0].ABI)
	require.NoError(t, cfg.Validate())
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("/nonexistent/config.yaml")
	assert.Error(t, err)
}

func TestLoadEmptyPathUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "pebble", cfg.Cursor.Backend)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("CHAINLISTENER_LOG_LEVEL", "warn")
	t.Setenv("CHAINLISTENER_API_PORT", "9090")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, 9090, cfg.API.Port)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "valid",
			mutate: func(c *Config) {},
		},
		{
			name:    "zero poll interval",
			mutate:  func(c *Config) { c.Listener.PollInterval = 0 },
			wantErr: "poll interval",
		},
		{
			name:    "unknown cursor backend",
			mutate:  func(c *Config) { c.Cursor.Backend = "etcd" },
			wantErr: "cursor backend",
		},
		{
			name: "redis backend without addr",
			mutate: func(c *Config) {
				c.Cursor.Backend = "redis"
				c.Cursor.Redis.Addr = ""
			},
			wantErr: "redis address",
		},
		{
			name:    "missing network name",
			mutate:  func(c *Config) { c.Networks[0].Name = "" },
			wantErr: "network name",
		},
		{
			name: "duplicate network names",
			mutate: func(c *Config) {
				c.Networks = append(c.Networks, c.Networks[0])
			},
			wantErr: "duplicate network",
		},
		{
			name:    "enabled network without endpoint",
			mutate:  func(c *Config) { c.Networks[0].RPCEndpoint = "" },
			wantErr: "rpc endpoint",
		},
		{
			name:    "enabled network without registries",
			mutate:  func(c *Config) { c.Networks[0].Registries = nil },
			wantErr: "at least one registry",
		},
		{
			name:    "registry without abi",
			mutate:  func(c *Config) { c.Networks[0].Registries[0].ABI = "" },
			wantErr: "abi",
		},
		{
			name: "disabled network skips deep validation",
			mutate: func(c *Config) {
				c.Networks[0].Enabled = false
				c.Networks[0].RPCEndpoint = ""
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestEnabledNetworks(t *testing.T) {
	cfg := validConfig()
	cfg.Networks = append(cfg.Networks, NetworkConfig{Name: "sepolia", Enabled: false})

	enabled := cfg.EnabledNetworks()
	require.Len(t, enabled, 1)
	assert.Equal(t, "fuji", enabled[0].Name)
}
