package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Storage backends accepted in STORE_BACKEND.
const (
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
	BackendMemory   = "memory"
)

// Config - global bot configuration, read from the environment (.env is autoloaded by main).
// Keys are derived from field names: Telegram.BotToken -> TELEGRAM_BOT_TOKEN.
type Config struct {
	AppEnv   string `split_words:"true" default:"local"` // "local", "prod"
	Telegram TelegramConfig
	Source   SourceConfig
	Store    StoreConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Poller   PollerConfig
	Metrics  MetricsConfig
}

type TelegramConfig struct {
	BotToken string        `split_words:"true"`
	Timeout  time.Duration `default:"10s"`
	AdminID  int64         `split_words:"true"`
}

// SourceConfig - upstream price API
type SourceConfig struct {
	URL     string        `default:"https://dolarapi.com"`
	Timeout time.Duration `default:"10s"`
}

type StoreConfig struct {
	Backend string `default:"postgres"`
}

type DatabaseConfig struct {
	Host     string `default:"localhost"`
	Port     int    `default:"5432"`
	User     string `default:"postgres"`
	Password string
	Name     string `default:"dolarbot"`
	SSLMode  string `split_words:"true" default:"disable"`
}

type RedisConfig struct {
	Addr     string `default:"localhost:6379"`
	Password string
	DB       int    `default:"0"`
	Prefix   string `default:"dolarbot"`
}

// PollerConfig - cadence of the source check, independent of subscriber intervals
type PollerConfig struct {
	Interval            time.Duration `default:"5s"`
	DispatchConcurrency int           `split_words:"true" default:"8"`
}

type MetricsConfig struct {
	Addr string `default:":9090"` // empty disables the listener
}

// LoadConfig - reads the environment, applies defaults and validates
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("process env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &cfg, nil
}

// LoadStorageConfig - like LoadConfig, but only the storage section has to be
// valid. Used by maintenance commands that never talk to Telegram.
func LoadStorageConfig() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("process env: %w", err)
	}
	if err := cfg.ValidateStorage(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &cfg, nil
}

// Validate checks that required fields are set and values are usable.
func (c *Config) Validate() error {
	if c.Telegram.BotToken == "" {
		return errors.New("TELEGRAM_BOT_TOKEN is required")
	}
	if c.Telegram.Timeout <= 0 {
		return errors.New("telegram.timeout must be > 0")
	}
	if c.Source.URL == "" {
		return errors.New("source.url is required")
	}
	if c.Source.Timeout <= 0 {
		return errors.New("source.timeout must be > 0")
	}
	if c.Poller.Interval <= 0 {
		return errors.New("poller.interval must be > 0")
	}
	if c.Poller.DispatchConcurrency < 1 {
		return errors.New("poller.dispatch_concurrency must be >= 1")
	}
	return c.ValidateStorage()
}

// ValidateStorage checks the selected backend and its connection settings.
func (c *Config) ValidateStorage() error {
	switch c.Store.Backend {
	case BackendPostgres:
		if c.Database.Host == "" || c.Database.Name == "" {
			return errors.New("database.host and database.name are required for the postgres backend")
		}
	case BackendRedis:
		if c.Redis.Addr == "" {
			return errors.New("redis.addr is required for the redis backend")
		}
	case BackendMemory:
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}

	return nil
}

// IsLocal - maintenance commands that write test data only run locally
func (c *Config) IsLocal() bool {
	return c.AppEnv == "local"
}
