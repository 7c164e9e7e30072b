package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/brojonat/solxr/service/strategy"
	"github.com/gagliardetto/solana-go"
	"github.com/joho/godotenv"
)

const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"

	ClockSystem  = "system"
	ClockCluster = "cluster"
)

// Config holds all application configuration loaded from environment variables.
// All required fields are validated at startup to ensure fail-fast behavior.
type Config struct {
	// Server configuration
	ServerAddr       string
	LogLevel         string
	SignatureMaxSkew time.Duration

	// Strategy host
	StoreBackend       string
	DatabaseURL        string
	ProgramID          solana.PublicKey
	InitializerAddress solana.PublicKey

	// Clock
	Clock        string
	SolanaRPCURL string

	// NATS configuration; empty disables receipt publishing
	NATSURL string

	// Redis configuration; empty disables the query cache and keeps the
	// signature replay guard in process
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	CacheTTL      time.Duration

	// Temporal configuration
	TemporalEnabled        bool
	TemporalEmbeddedWorker bool
	TemporalHost           string
	TemporalNamespace      string
	TemporalTaskQueue      string
}

// Load reads configuration from environment variables and validates all required fields.
// A .env file in the working directory is read first when present; variables
// already set in the environment win.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	var errs []error

	cfg.ServerAddr = getEnvOrDefault("SERVER_ADDR", ":8080")
	cfg.LogLevel = getEnvOrDefault("LOG_LEVEL", "info")

	skew, err := parseDuration("SIGNATURE_MAX_SKEW", "5m")
	if err != nil {
		errs = append(errs, err)
	}
	cfg.SignatureMaxSkew = skew

	cfg.StoreBackend = getEnvOrDefault("STORE_BACKEND", StorePostgres)
	cfg.DatabaseURL = os.Getenv("DATABASE_URL")

	if v := os.Getenv("PROGRAM_ID"); v != "" {
		pk, err := solana.PublicKeyFromBase58(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("PROGRAM_ID: invalid public key %q: %w", v, err))
		}
		cfg.ProgramID = pk
	} else {
		cfg.ProgramID = strategy.DefaultProgramID
	}

	if v := os.Getenv("INITIALIZER_ADDRESS"); v != "" {
		pk, err := solana.PublicKeyFromBase58(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("INITIALIZER_ADDRESS: invalid public key %q: %w", v, err))
		}
		cfg.InitializerAddress = pk
	}

	cfg.Clock = getEnvOrDefault("CLOCK", ClockSystem)
	cfg.SolanaRPCURL = os.Getenv("SOLANA_RPC_URL")

	cfg.NATSURL = os.Getenv("NATS_URL")

	cfg.RedisAddr = os.Getenv("REDIS_ADDR")
	cfg.RedisPassword = os.Getenv("REDIS_PASSWORD")
	redisDB, err := parseInt("REDIS_DB", 0)
	if err != nil {
		errs = append(errs, err)
	}
	cfg.RedisDB = redisDB
	ttl, err := parseDuration("CACHE_TTL", "30s")
	if err != nil {
		errs = append(errs, err)
	}
	cfg.CacheTTL = ttl

	temporalEnabled, err := parseBool("TEMPORAL_ENABLED", true)
	if err != nil {
		errs = append(errs, err)
	}
	cfg.TemporalEnabled = temporalEnabled
	embedded, err := parseBool("TEMPORAL_EMBEDDED_WORKER", false)
	if err != nil {
		errs = append(errs, err)
	}
	cfg.TemporalEmbeddedWorker = embedded
	cfg.TemporalHost = getEnvOrDefault("TEMPORAL_HOST", "localhost:7233")
	cfg.TemporalNamespace = getEnvOrDefault("TEMPORAL_NAMESPACE", "default")
	cfg.TemporalTaskQueue = getEnvOrDefault("TEMPORAL_TASK_QUEUE", "solxr-rounds")

	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration validation failed: %v", errs)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// MustLoad is like Load but panics if configuration is invalid.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}
	return cfg
}

// Validate checks if the configuration is valid.
// This is useful for testing configuration without loading from env.
func (c *Config) Validate() error {
	var errs []error

	switch c.StoreBackend {
	case StorePostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, fmt.Errorf("DATABASE_URL is required for the postgres store"))
		}
	case StoreMemory:
		if c.TemporalEnabled && !c.TemporalEmbeddedWorker {
			errs = append(errs, fmt.Errorf("the memory store needs TEMPORAL_EMBEDDED_WORKER=true when Temporal is enabled"))
		}
	default:
		errs = append(errs, fmt.Errorf("STORE_BACKEND must be %q or %q, got %q", StoreMemory, StorePostgres, c.StoreBackend))
	}

	if c.InitializerAddress.IsZero() {
		errs = append(errs, fmt.Errorf("INITIALIZER_ADDRESS is required"))
	}

	switch c.Clock {
	case ClockSystem:
	case ClockCluster:
		if c.SolanaRPCURL == "" {
			errs = append(errs, fmt.Errorf("SOLANA_RPC_URL is required for the cluster clock"))
		}
	default:
		errs = append(errs, fmt.Errorf("CLOCK must be %q or %q, got %q", ClockSystem, ClockCluster, c.Clock))
	}

	if c.SignatureMaxSkew <= 0 {
		errs = append(errs, fmt.Errorf("SIGNATURE_MAX_SKEW must be positive"))
	}

	if c.TemporalEnabled {
		if c.TemporalHost == "" {
			errs = append(errs, fmt.Errorf("TemporalHost is required"))
		}
		if c.TemporalNamespace == "" {
			errs = append(errs, fmt.Errorf("TemporalNamespace is required"))
		}
		if c.TemporalTaskQueue == "" {
			errs = append(errs, fmt.Errorf("TemporalTaskQueue is required"))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %v", errs)
	}
	return nil
}

// InitParams is the governance setup file: token and edition parameters plus
// any offerings to create right after initialization.
type InitParams struct {
	Token     *strategy.TokenParams     `toml:"token"`
	Editions  *strategy.EditionParams   `toml:"editions"`
	Offerings []strategy.OfferingParams `toml:"offerings"`
}

// LoadInitParams decodes a TOML setup file.
func LoadInitParams(path string) (*InitParams, error) {
	var p InitParams
	md, err := toml.DecodeFile(path, &p)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("%s: unknown keys %v", path, undecoded)
	}
	if p.Token == nil && p.Editions == nil && len(p.Offerings) == 0 {
		return nil, errors.New(path + ": no [token], [editions] or [[offerings]] section")
	}
	return &p, nil
}

// getEnvOrDefault returns the environment variable value or a default if not set.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// parseDuration parses a duration from an environment variable or uses a default.
func parseDuration(key, defaultValue string) (time.Duration, error) {
	value := getEnvOrDefault(key, defaultValue)
	duration, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", key, value, err)
	}
	return duration, nil
}

// parseInt parses an integer from an environment variable or uses a default.
func parseInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	result, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid integer %q: %w", key, value, err)
	}
	return result, nil
}

func parseBool(key string, defaultValue bool) (bool, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	result, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("%s: invalid boolean %q: %w", key, value, err)
	}
	return result, nil
}
