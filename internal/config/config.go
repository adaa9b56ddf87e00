// Package config provides configuration management for the bandhanheal
// backend: defaults, an optional YAML file and BH_-prefixed env overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Store engine names accepted by Config.Store.Engine.
const (
	EngineMemory = "memory"
	EngineSQLite = "sqlite"
	EngineRedis  = "redis"
)

// Defaults.
const (
	DefaultListenAddr     = ":8787"
	DefaultTokenTTL       = 24 * time.Hour
	DefaultRequestTimeout = 15 * time.Second
	DefaultMaxConns       = 4
)

// Duration wraps time.Duration so YAML values like "24h" parse.
type Duration time.Duration

// UnmarshalYAML accepts either a duration string or integer nanoseconds.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err == nil {
		parsed, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", s, err)
		}
		*d = Duration(parsed)
		return nil
	}

	var n int64
	if err := value.Decode(&n); err != nil {
		return fmt.Errorf("invalid duration: %w", err)
	}
	*d = Duration(n)
	return nil
}

// StoreConfig selects and parameterizes the key-value engine.
type StoreConfig struct {
	Engine     string `yaml:"engine"`      // memory | sqlite | redis
	SQLitePath string `yaml:"sqlite_path"` // used when engine=sqlite
	MaxConns   int    `yaml:"max_conns"`   // sqlite connection pool size
	RedisAddr  string `yaml:"redis_addr"`  // used when engine=redis
}

// Config is the full runtime configuration.
type Config struct {
	ListenAddr     string      `yaml:"listen_addr"`
	LogLevel       string      `yaml:"log_level"`
	TokenTTL       Duration    `yaml:"token_ttl"`
	RequestTimeout Duration    `yaml:"request_timeout"`
	Store          StoreConfig `yaml:"store"`
}

// DataDir returns the default data directory (~/.bandhanheal).
func DataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".bandhanheal"
	}
	return filepath.Join(home, ".bandhanheal")
}

// DBPath returns the default SQLite database path.
func DBPath() string {
	return filepath.Join(DataDir(), "bandhanheal.db")
}

// SettingsPath returns the default YAML settings path.
func SettingsPath() string {
	return filepath.Join(DataDir(), "settings.yaml")
}

// EnsureDataDir creates the data directory if it does not exist.
func EnsureDataDir() error {
	return os.MkdirAll(DataDir(), 0o755)
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		ListenAddr:     DefaultListenAddr,
		LogLevel:       "info",
		TokenTTL:       Duration(DefaultTokenTTL),
		RequestTimeout: Duration(DefaultRequestTimeout),
		Store: StoreConfig{
			Engine:     EngineSQLite,
			SQLitePath: DBPath(),
			MaxConns:   DefaultMaxConns,
		},
	}
}

// Load reads the YAML file at path (defaults apply for absent fields), then
// applies env overrides. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = SettingsPath()
	}
	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.applyEnv()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overrides fields from BH_* environment variables.
func (c *Config) applyEnv() {
	if v := os.Getenv("BH_LISTEN_ADDR"); v != "" {
		c.ListenAddr = v
	}
	if v := os.Getenv("BH_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("BH_TOKEN_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.TokenTTL = Duration(d)
		}
	}
	if v := os.Getenv("BH_REQUEST_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.RequestTimeout = Duration(d)
		}
	}
	if v := os.Getenv("BH_STORE_ENGINE"); v != "" {
		c.Store.Engine = v
	}
	if v := os.Getenv("BH_SQLITE_PATH"); v != "" {
		c.Store.SQLitePath = v
	}
	if v := os.Getenv("BH_SQLITE_MAX_CONNS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Store.MaxConns = n
		}
	}
	if v := os.Getenv("BH_REDIS_ADDR"); v != "" {
		c.Store.RedisAddr = v
	}
}

func (c *Config) validate() error {
	switch c.Store.Engine {
	case EngineMemory, EngineSQLite:
	case EngineRedis:
		if c.Store.RedisAddr == "" {
			return fmt.Errorf("store.redis_addr is required for the redis engine")
		}
	default:
		return fmt.Errorf("unknown store engine %q", c.Store.Engine)
	}
	if c.TokenTTL <= 0 {
		return fmt.Errorf("token_ttl must be positive")
	}
	return nil
}
