package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	devSessionSecret = "secret_key_change_me"
	devTokenSecret   = "token_secret_change_me"
)

// Config holds all configuration for the application.
type Config struct {
	Port int    `mapstructure:"port"`
	Env  string `mapstructure:"app_env"`

	// DatabaseDriver is "postgres" or "sqlite".
	DatabaseDriver string `mapstructure:"database_driver"`
	DatabaseURL    string `mapstructure:"database_url"`

	SessionSecret      string        `mapstructure:"session_secret"`
	TokenSecret        string        `mapstructure:"token_secret"`
	TokenTTL           time.Duration `mapstructure:"token_ttl"`
	TokenRefreshWindow time.Duration `mapstructure:"token_refresh_window"`

	// CacheBackend is "lru" or "redis".
	CacheBackend string        `mapstructure:"cache_backend"`
	CacheSize    int           `mapstructure:"cache_size"`
	CacheTTL     time.Duration `mapstructure:"cache_ttl"`
	RedisAddr    string        `mapstructure:"redis_addr"`

	PageSize          int           `mapstructure:"page_size"`
	ViewFlushInterval time.Duration `mapstructure:"view_flush_interval"`
	ViewBatchSize     int           `mapstructure:"view_batch_size"`

	LogLevel     string `mapstructure:"log_level"`
	SentryDSN    string `mapstructure:"sentry_dsn"`
	OTLPEndpoint string `mapstructure:"otel_exporter_otlp_endpoint"`
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", 8080)
	v.SetDefault("app_env", "development")
	v.SetDefault("database_driver", "postgres")
	v.SetDefault("database_url", "host=localhost user=postgres password=postgres dbname=haruboard port=5432 sslmode=disable TimeZone=UTC")
	v.SetDefault("session_secret", "")
	v.SetDefault("token_secret", "")
	v.SetDefault("token_ttl", time.Hour)
	v.SetDefault("token_refresh_window", 15*time.Minute)
	v.SetDefault("cache_backend", "lru")
	v.SetDefault("cache_size", 500)
	v.SetDefault("cache_ttl", 10*time.Minute)
	v.SetDefault("redis_addr", "localhost:6379")
	v.SetDefault("page_size", 10)
	v.SetDefault("view_flush_interval", 500*time.Millisecond)
	v.SetDefault("view_batch_size", 50)
	v.SetDefault("log_level", "info")
	v.SetDefault("sentry_dsn", "")
	v.SetDefault("otel_exporter_otlp_endpoint", "")
}

// Load reads .env (if present) and the process environment.
func Load() (*Config, error) {
	// A missing .env is fine, the environment may already be populated.
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid PORT: %d", c.Port)
	}
	switch c.DatabaseDriver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("unsupported DATABASE_DRIVER %q", c.DatabaseDriver)
	}
	switch c.CacheBackend {
	case "lru", "redis":
	default:
		return fmt.Errorf("unsupported CACHE_BACKEND %q", c.CacheBackend)
	}
	if c.PageSize < 1 {
		return fmt.Errorf("invalid PAGE_SIZE: %d", c.PageSize)
	}
	if c.TokenRefreshWindow >= c.TokenTTL {
		return errors.New("TOKEN_REFRESH_WINDOW must be shorter than TOKEN_TTL")
	}

	if c.SessionSecret == "" || c.TokenSecret == "" {
		if c.IsProduction() {
			return errors.New("SESSION_SECRET and TOKEN_SECRET are required in production")
		}
		if c.SessionSecret == "" {
			c.SessionSecret = devSessionSecret
		}
		if c.TokenSecret == "" {
			c.TokenSecret = devTokenSecret
		}
	}
	return nil
}
