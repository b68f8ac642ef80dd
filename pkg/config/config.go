package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ServerConfig controls the HTTP server.
type ServerConfig struct {
	Host            string `json:"host" env:"SERVER_HOST"`
	Port            int    `json:"port" env:"SERVER_PORT"`
	ShutdownTimeout int    `json:"shutdown_timeout_seconds" env:"SERVER_SHUTDOWN_TIMEOUT_SECONDS"`
}

// CacheConfig controls the in-memory engine's resource limits.
type CacheConfig struct {
	MaxMemoryMB      int    `json:"max_memory_mb" env:"CACHE_MAX_MEMORY_MB"`
	DefaultTTLSeconds int64 `json:"default_ttl_seconds" env:"CACHE_DEFAULT_TTL_SECONDS"`
	MaxTTLSeconds    int64  `json:"max_ttl_seconds" env:"CACHE_MAX_TTL_SECONDS"`
	EvictionPolicy   string `json:"eviction_policy" env:"CACHE_EVICTION_POLICY"`
	ReaperInterval   int    `json:"reaper_interval_seconds" env:"CACHE_REAPER_INTERVAL_SECONDS"`
}

// LoggingConfig controls application logging.
type LoggingConfig struct {
	Level  string `json:"level" env:"LOG_LEVEL"`
	Format string `json:"format" env:"LOG_FORMAT"`
}

// RateLimitConfig controls the fixed-window per-caller request ceiling.
type RateLimitConfig struct {
	WindowSeconds int `json:"window_seconds" env:"RATELIMIT_WINDOW_SECONDS"`
	MaxRequests   int `json:"max_requests" env:"RATELIMIT_MAX_REQUESTS"`
}

// RegistryConfig holds Worker Location Registry settings. Only
// PersistentStoreAddr is read at startup; the heartbeat interval and TTL and
// the lookup retry bound are fixed inside domain/registry, and these fields
// do not change them.
type RegistryConfig struct {
	HeartbeatIntervalSeconds int    `json:"heartbeat_interval_seconds" env:"REGISTRY_HEARTBEAT_INTERVAL_SECONDS"`
	HeartbeatTTLSeconds      int    `json:"heartbeat_ttl_seconds" env:"REGISTRY_HEARTBEAT_TTL_SECONDS"`
	PersistentStoreAddr      string `json:"persistent_store_addr" env:"REGISTRY_STORE_ADDR"`
	MaxRetries               int    `json:"max_retries" env:"REGISTRY_MAX_RETRIES"`
}

// TEEConfig controls the simulated Trusted Execution Environment decorator.
type TEEConfig struct {
	Enabled   bool   `json:"enabled" env:"TEE_ENABLED"`
	KeySource string `json:"key_source" env:"TEE_KEY_SOURCE"`
}

// AuthConfig controls owner-address based authorization for destructive
// operations. JWTSecret is optional: when set, callers may present a signed
// owner token instead of (or in addition to) the raw OwnerAddressHeader, and
// the token's subject is trusted in its place.
type AuthConfig struct {
	OwnerAddressHeader string `json:"owner_address_header" env:"AUTH_OWNER_ADDRESS_HEADER"`
	JWTSecret          string `json:"jwt_secret" env:"AUTH_JWT_SECRET"`
}

// Config is the top-level configuration structure.
type Config struct {
	Server    ServerConfig    `json:"server"`
	Cache     CacheConfig     `json:"cache"`
	Logging   LoggingConfig   `json:"logging"`
	RateLimit RateLimitConfig `json:"rate_limit"`
	Registry  RegistryConfig  `json:"registry"`
	TEE       TEEConfig       `json:"tee"`
	Auth      AuthConfig      `json:"auth"`
}

// New returns a configuration populated with defaults.
func New() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ShutdownTimeout: 30,
		},
		Cache: CacheConfig{
			MaxMemoryMB:       256,
			DefaultTTLSeconds: 0,
			MaxTTLSeconds:     30 * 24 * 3600,
			EvictionPolicy:    "lru",
			ReaperInterval:    30,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		RateLimit: RateLimitConfig{
			WindowSeconds: 60,
			MaxRequests:   1000,
		},
		Registry: RegistryConfig{
			HeartbeatIntervalSeconds: 10,
			HeartbeatTTLSeconds:      30,
			MaxRetries:               5,
		},
		TEE: TEEConfig{
			Enabled:   false,
			KeySource: "ephemeral",
		},
		Auth: AuthConfig{
			OwnerAddressHeader: "x-owner-address",
		},
	}
}

// Load loads configuration from file (if present) and environment variables.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := New()

	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		if err := loadFromFile(path, cfg); err != nil {
			return nil, err
		}
	} else {
		_ = loadFromFile("configs/config.yaml", cfg)
	}

	if err := envdecode.Decode(cfg); err != nil {
		// envdecode returns an error when no tagged fields are present in the
		// environment; treat that case as "no overrides" so local runs work
		// without exporting vars.
		if !strings.Contains(err.Error(), "none of the target fields were set") {
			return nil, fmt.Errorf("decode env: %w", err)
		}
	}

	cfg.normalize()

	return cfg, nil
}

// LoadFile reads configuration from a YAML file.
func LoadFile(path string) (*Config, error) {
	cfg := New()
	if err := loadFromFile(path, cfg); err != nil {
		return nil, err
	}
	cfg.normalize()
	return cfg, nil
}

func loadFromFile(path string, cfg *Config) error {
	expanded, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(expanded)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return err
	}
	return nil
}

// LoadConfig is a helper used by tests to load JSON config snippets.
func LoadConfig(path string) (*Config, error) {
	cfg := New()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	cfg.normalize()
	return cfg, nil
}

func (c *Config) normalize() {
	if c == nil {
		return
	}
	if c.Cache.MaxMemoryMB <= 0 {
		c.Cache.MaxMemoryMB = 256
	}
	if c.Cache.EvictionPolicy == "" {
		c.Cache.EvictionPolicy = "lru"
	}
	if c.RateLimit.WindowSeconds <= 0 {
		c.RateLimit.WindowSeconds = 60
	}
	if c.RateLimit.MaxRequests <= 0 || c.RateLimit.MaxRequests > 1000 {
		c.RateLimit.MaxRequests = 1000
	}
	if c.Auth.OwnerAddressHeader == "" {
		c.Auth.OwnerAddressHeader = "x-owner-address"
	}
}
