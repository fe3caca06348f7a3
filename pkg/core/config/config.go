// Package config loads settings from defaults, an optional YAML file, .env and
// XBRL_* environment variables, in increasing priority.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"xbrl_lookup/pkg/core/ingest"
	"xbrl_lookup/pkg/core/store"
)

const EnvPrefix = "XBRL"

const (
	DefaultProductionDB = "production_financial_data.db"
	DefaultDemoDB       = "financial_data.db"
	DefaultAPIAddr      = ":8080"
)

// Config holds every runtime setting.
type Config struct {
	UserAgent        string        `mapstructure:"user_agent"`
	BaseURL          string        `mapstructure:"base_url"`
	MinInterval      time.Duration `mapstructure:"min_interval"`
	RateLimitBackoff time.Duration `mapstructure:"rate_limit_backoff"`
	Timeout          time.Duration `mapstructure:"timeout"`
	CacheTTL         time.Duration `mapstructure:"cache_ttl"`
	ProductionDB     string        `mapstructure:"production_db"`
	DemoDB           string        `mapstructure:"demo_db"`
	DatabaseURL      string        `mapstructure:"database_url"`
	RegistryFile     string        `mapstructure:"registry_file"`
	APIAddr          string        `mapstructure:"api_addr"`
	Verbose          bool          `mapstructure:"verbose"`
}

// SetDefaults registers the defaults on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("user_agent", ingest.DefaultUserAgent)
	v.SetDefault("base_url", ingest.DefaultBaseURL)
	v.SetDefault("min_interval", ingest.DefaultMinInterval)
	v.SetDefault("rate_limit_backoff", ingest.DefaultRateLimitBackoff)
	v.SetDefault("timeout", ingest.DefaultTimeout)
	v.SetDefault("cache_ttl", time.Duration(0))
	v.SetDefault("production_db", DefaultProductionDB)
	v.SetDefault("demo_db", DefaultDemoDB)
	v.SetDefault("database_url", "")
	v.SetDefault("registry_file", "")
	v.SetDefault("api_addr", DefaultAPIAddr)
	v.SetDefault("verbose", false)
}

// LoadDotEnv loads .env files into the process environment without
// overriding variables that are already set. Missing files are ignored.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to load %s: %w", p, err)
		}
	}
	return nil
}

// Load reads configuration into a fresh viper instance.
func Load(configFile string) (*Config, error) {
	return LoadWith(viper.New(), configFile)
}

// LoadWith reads configuration using v, so callers can bind CLI flags first.
// An empty configFile means no file.
func LoadWith(v *viper.Viper, configFile string) (*Config, error) {
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("database_url", EnvPrefix+"_DATABASE_URL", "DATABASE_URL"); err != nil {
		return nil, fmt.Errorf("failed to bind DATABASE_URL: %w", err)
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the client or store cannot work with.
func (c *Config) Validate() error {
	switch {
	case strings.TrimSpace(c.UserAgent) == "":
		return fmt.Errorf("user_agent must not be empty (SEC requires one)")
	case c.MinInterval < 0:
		return fmt.Errorf("min_interval must not be negative")
	case c.RateLimitBackoff < 0:
		return fmt.Errorf("rate_limit_backoff must not be negative")
	case c.Timeout <= 0:
		return fmt.Errorf("timeout must be positive")
	case c.CacheTTL < 0:
		return fmt.Errorf("cache_ttl must not be negative")
	}
	return nil
}

// ClientOptions returns the SEC client settings.
func (c *Config) ClientOptions() ingest.ClientOptions {
	return ingest.ClientOptions{
		BaseURL:          c.BaseURL,
		UserAgent:        c.UserAgent,
		MinInterval:      c.MinInterval,
		RateLimitBackoff: c.RateLimitBackoff,
		Timeout:          c.Timeout,
		CacheTTL:         c.CacheTTL,
	}
}

// StoreOptions selects the store: PostgreSQL when a database URL is set,
// otherwise the demo or production SQLite file.
func (c *Config) StoreOptions(demo bool) store.Options {
	if c.DatabaseURL != "" {
		return store.Options{Dialect: store.DialectPostgres, URL: c.DatabaseURL}
	}
	path := c.ProductionDB
	if demo {
		path = c.DemoDB
	}
	return store.Options{Dialect: store.DialectSQLite, Path: path}
}

// Registry returns the company table, extended from RegistryFile when set.
func (c *Config) Registry() (*ingest.Registry, error) {
	if c.RegistryFile == "" {
		return ingest.DefaultRegistry(), nil
	}
	return ingest.LoadRegistry(c.RegistryFile)
}
