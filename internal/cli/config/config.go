// Package config loads the tablequery CLI configuration from
// tablequery.yaml and TABLEQUERY_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// FileName is the configuration file looked up in the working directory
const FileName = "tablequery.yaml"

// Config represents the tablequery configuration
type Config struct {
	// Schema is the path of the YAML table definition
	Schema   string         `mapstructure:"schema"`
	Database DatabaseConfig `mapstructure:"database"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Log      LogConfig      `mapstructure:"log"`
	Access   AccessConfig   `mapstructure:"access"`
}

// DatabaseConfig represents database configuration
type DatabaseConfig struct {
	Driver  string `mapstructure:"driver"`
	DSN     string `mapstructure:"dsn"`
	Dialect string `mapstructure:"dialect"`

	// BatchSize caps the ids bound per multi-item read, 0 for the default
	BatchSize int `mapstructure:"batch_size"`
}

// CacheConfig selects and configures the cache backend
type CacheConfig struct {
	Backend  string        `mapstructure:"backend"`
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
	Prefix   string        `mapstructure:"prefix"`
}

// AccessConfig enables casbin field access checks for one subject.
// Rules are "p, sub, obj, act" and "g, user, role" lines.
type AccessConfig struct {
	Subject string     `mapstructure:"subject"`
	Rules   [][]string `mapstructure:"rules"`
}

// Enabled reports whether access checks apply
func (a AccessConfig) Enabled() bool {
	return a.Subject != ""
}

// LogConfig configures the zap logger
type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

// Cache backends
const (
	BackendNone   = "none"
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// Load reads the configuration. An empty path looks for tablequery.yaml in
// the working directory and falls back to defaults when there is none.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("schema", "schema.yaml")
	v.SetDefault("database.driver", "sqlite3")
	v.SetDefault("database.dsn", "file:tablequery.db")
	v.SetDefault("database.dialect", "")
	v.SetDefault("database.batch_size", 0)
	v.SetDefault("cache.backend", BackendMemory)
	v.SetDefault("cache.addr", "localhost:6379")
	v.SetDefault("cache.password", "")
	v.SetDefault("cache.db", 0)
	v.SetDefault("cache.ttl", 5*time.Minute)
	v.SetDefault("cache.prefix", "tablequery:")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
	v.SetDefault("access.subject", "")

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("tablequery")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("TABLEQUERY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the values Load cannot default
func (c *Config) Validate() error {
	if c.Database.Driver == "" {
		return fmt.Errorf("database.driver is required")
	}

	if c.Database.BatchSize < 0 {
		return fmt.Errorf("database.batch_size must not be negative, got: %d", c.Database.BatchSize)
	}

	switch c.Cache.Backend {
	case BackendNone, BackendMemory:
	case BackendRedis:
		if c.Cache.Addr == "" {
			return fmt.Errorf("cache.addr is required for the redis backend")
		}
	default:
		return fmt.Errorf("cache.backend must be one of none, memory, redis, got: %s", c.Cache.Backend)
	}

	if c.Cache.TTL < 0 {
		return fmt.Errorf("cache.ttl must not be negative, got: %s", c.Cache.TTL)
	}

	if _, err := c.Log.level(); err != nil {
		return err
	}
	return nil
}

func (l LogConfig) level() (zapcore.Level, error) {
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(l.Level)); err != nil {
		return lvl, fmt.Errorf("log.level %q: %w", l.Level, err)
	}
	return lvl, nil
}

// NewLogger builds the logger described by the log section
func (l LogConfig) NewLogger() (*zap.Logger, error) {
	lvl, err := l.level()
	if err != nil {
		return nil, err
	}

	zc := zap.NewProductionConfig()
	if l.Development {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(lvl)
	zc.OutputPaths = []string{"stderr"}

	return zc.Build()
}
