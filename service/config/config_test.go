package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/brojonat/solxr/service/strategy"
	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testInitializer = "9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM"

var envKeys = []string{
	"SERVER_ADDR", "LOG_LEVEL", "SIGNATURE_MAX_SKEW",
	"STORE_BACKEND", "DATABASE_URL", "PROGRAM_ID", "INITIALIZER_ADDRESS",
	"CLOCK", "SOLANA_RPC_URL", "NATS_URL",
	"REDIS_ADDR", "REDIS_PASSWORD", "REDIS_DB", "CACHE_TTL",
	"TEMPORAL_ENABLED", "TEMPORAL_EMBEDDED_WORKER",
	"TEMPORAL_HOST", "TEMPORAL_NAMESPACE", "TEMPORAL_TASK_QUEUE",
}

// clearEnv blanks every variable Load reads; empty values count as unset.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range envKeys {
		t.Setenv(k, "")
	}
}

func TestLoad_ValidConfig(t *testing.T) {
	clearEnv(t)
	t.Setenv("DATABASE_URL", "postgres://localhost/test")
	t.Setenv("INITIALIZER_ADDRESS", testInitializer)

	cfg, err := Load()
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, "postgres://localhost/test", cfg.DatabaseURL)
	assert.Equal(t, ":8080", cfg.ServerAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, StorePostgres, cfg.StoreBackend)
	assert.Equal(t, ClockSystem, cfg.Clock)
	assert.Equal(t, strategy.DefaultProgramID, cfg.ProgramID)
	assert.Equal(t, solana.MustPublicKeyFromBase58(testInitializer), cfg.InitializerAddress)
	assert.Equal(t, 5*time.Minute, cfg.SignatureMaxSkew)
	assert.Equal(t, 30*time.Second, cfg.CacheTTL)
	assert.True(t, cfg.TemporalEnabled)
	assert.Equal(t, "solxr-rounds", cfg.TemporalTaskQueue)
	assert.Empty(t, cfg.NATSURL)
	assert.Empty(t, cfg.RedisAddr)
}

func TestLoad_MissingDatabaseURL(t *testing.T) {
	clearEnv(t)
	t.Setenv("INITIALIZER_ADDRESS", testInitializer)

	cfg, err := Load()
	require.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "DATABASE_URL is required")
}

func TestLoad_AggregatesErrors(t *testing.T) {
	clearEnv(t)
	t.Setenv("STORE_BACKEND", "sqlite")
	t.Setenv("CLOCK", "cluster")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "STORE_BACKEND must be")
	assert.Contains(t, err.Error(), "INITIALIZER_ADDRESS is required")
	assert.Contains(t, err.Error(), "SOLANA_RPC_URL is required")
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
		want string
	}{
		{"skew", "SIGNATURE_MAX_SKEW", "soon", "invalid duration"},
		{"cache ttl", "CACHE_TTL", "forever", "invalid duration"},
		{"redis db", "REDIS_DB", "zero", "invalid integer"},
		{"temporal flag", "TEMPORAL_ENABLED", "maybe", "invalid boolean"},
		{"program id", "PROGRAM_ID", "0xdeadbeef", "PROGRAM_ID: invalid public key"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv("DATABASE_URL", "postgres://localhost/test")
			t.Setenv("INITIALIZER_ADDRESS", testInitializer)
			t.Setenv(tt.key, tt.val)

			cfg, err := Load()
			require.Error(t, err)
			assert.Nil(t, cfg)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoad_CustomValues(t *testing.T) {
	clearEnv(t)
	t.Setenv("SERVER_ADDR", ":9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("STORE_BACKEND", "memory")
	t.Setenv("INITIALIZER_ADDRESS", testInitializer)
	t.Setenv("CLOCK", "cluster")
	t.Setenv("SOLANA_RPC_URL", "https://api.devnet.solana.com")
	t.Setenv("NATS_URL", "nats://nats.example.com:4222")
	t.Setenv("REDIS_ADDR", "redis:6379")
	t.Setenv("REDIS_DB", "2")
	t.Setenv("CACHE_TTL", "1m")
	t.Setenv("TEMPORAL_EMBEDDED_WORKER", "true")
	t.Setenv("TEMPORAL_HOST", "temporal.example.com:7233")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.ServerAddr)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, StoreMemory, cfg.StoreBackend)
	assert.Equal(t, ClockCluster, cfg.Clock)
	assert.Equal(t, "https://api.devnet.solana.com", cfg.SolanaRPCURL)
	assert.Equal(t, "nats://nats.example.com:4222", cfg.NATSURL)
	assert.Equal(t, "redis:6379", cfg.RedisAddr)
	assert.Equal(t, 2, cfg.RedisDB)
	assert.Equal(t, time.Minute, cfg.CacheTTL)
	assert.True(t, cfg.TemporalEmbeddedWorker)
	assert.Equal(t, "temporal.example.com:7233", cfg.TemporalHost)
}

func validConfig() *Config {
	return &Config{
		StoreBackend:       StorePostgres,
		DatabaseURL:        "postgres://localhost/test",
		InitializerAddress: solana.MustPublicKeyFromBase58(testInitializer),
		Clock:              ClockSystem,
		SignatureMaxSkew:   time.Minute,
		TemporalEnabled:    true,
		TemporalHost:       "localhost:7233",
		TemporalNamespace:  "default",
		TemporalTaskQueue:  "solxr-rounds",
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		want   string
	}{
		{"valid", func(c *Config) {}, ""},
		{"memory without embedded worker", func(c *Config) { c.StoreBackend = StoreMemory }, "TEMPORAL_EMBEDDED_WORKER"},
		{"memory without temporal", func(c *Config) { c.StoreBackend = StoreMemory; c.TemporalEnabled = false }, ""},
		{"unknown clock", func(c *Config) { c.Clock = "sundial" }, "CLOCK must be"},
		{"zero skew", func(c *Config) { c.SignatureMaxSkew = 0 }, "SIGNATURE_MAX_SKEW must be positive"},
		{"missing task queue", func(c *Config) { c.TemporalTaskQueue = "" }, "TemporalTaskQueue is required"},
		{"task queue ignored when disabled", func(c *Config) { c.TemporalEnabled = false; c.TemporalTaskQueue = "" }, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.want == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

const initParamsTOML = `
[token]
governance = "9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM"
platform = "7EcDhSYGxXyscszYEp35KHN8vvw3svAuLKTzXwCFLtV"
treasury = "HN7cABqLq46Es1jh92dQQisAq662SmxELLLsHHe4YWrH"
initial_pool_cap = 1000000000000
individual_address_cap = 100000000000
max_mint_per_wallet = 50000000000
mint_duration = "48h"
platform_mint_fee = 20000000
max_platform_mint_fee = 1000000000
max_rounds = 10

[token.capacity]
model = "fixed"
fixed = 5000000000

[editions]
program = "2oAJBBNEGWnxbH65MEWuehjjmbN6Gk9uLiK9Wt6cR3cT"
governance = "9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM"
bond_price = 2000000000

[[offerings]]
kind = "bond"
name = "Bond One"
symbol = "BND1"
uri = "https://example.com/bond1.json"
price = 2000000000
maturity = 2027-01-01T00:00:00Z
strike_price = 1250000000
supply = 100
max_mint_per_wallet = 5
start_time = 2026-11-01T00:00:00Z
end_time = 2026-11-30T00:00:00Z
`

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "init.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadInitParams(t *testing.T) {
	p, err := LoadInitParams(writeFile(t, initParamsTOML))
	require.NoError(t, err)

	require.NotNil(t, p.Token)
	assert.Equal(t, solana.MustPublicKeyFromBase58(testInitializer), p.Token.Governance)
	assert.Equal(t, uint64(1_000_000_000_000), p.Token.InitialPoolCap)
	assert.Equal(t, 48*time.Hour, p.Token.MintDuration)
	assert.Equal(t, strategy.FixedCapacity, p.Token.Capacity.Model)
	assert.Equal(t, uint64(5_000_000_000), p.Token.Capacity.Fixed)

	require.NotNil(t, p.Editions)
	assert.Equal(t, uint64(2_000_000_000), p.Editions.BondPrice)

	require.Len(t, p.Offerings, 1)
	o := p.Offerings[0]
	assert.Equal(t, strategy.Bond, o.Kind)
	assert.Equal(t, uint64(100), o.Supply)
	assert.Equal(t, time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC), o.Maturity.UTC())
	assert.NoError(t, o.Validate())
}

func TestLoadInitParams_Errors(t *testing.T) {
	_, err := LoadInitParams(writeFile(t, "[token]\nbogus = 1\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown keys")

	_, err = LoadInitParams(writeFile(t, "# nothing here\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no [token]")

	_, err = LoadInitParams(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}
