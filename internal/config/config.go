package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config is the root application configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Auth     AuthConfig     `yaml:"auth"`
	History  HistoryConfig  `yaml:"history"`
	CORS     CORSConfig     `yaml:"cors"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `yaml:"host"             env:"SERVER_HOST"             env-default:"0.0.0.0"`
	Port            int           `yaml:"port"             env:"SERVER_PORT"             env-default:"8080"`
	ReadTimeout     time.Duration `yaml:"read_timeout"     env:"SERVER_READ_TIMEOUT"     env-default:"15s"`
	WriteTimeout    time.Duration `yaml:"write_timeout"    env:"SERVER_WRITE_TIMEOUT"    env-default:"15s"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"     env:"SERVER_IDLE_TIMEOUT"     env-default:"60s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SERVER_SHUTDOWN_TIMEOUT" env-default:"10s"`
	RateBurst       int           `yaml:"rate_burst"       env:"SERVER_RATE_BURST"       env-default:"20"`
	RatePerSecond   int           `yaml:"rate_per_second"  env:"SERVER_RATE_PER_SECOND"  env-default:"10"`
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	DSN             string        `yaml:"dsn"                env:"ORDRE_PG_DSN"`
	MaxOpenConns    int           `yaml:"max_open_conns"     env:"DATABASE_MAX_OPEN_CONNS"    env-default:"25"`
	MaxIdleConns    int           `yaml:"max_idle_conns"     env:"DATABASE_MAX_IDLE_CONNS"    env-default:"10"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"  env:"DATABASE_CONN_MAX_LIFETIME" env-default:"30m"`
}

// AuthConfig holds token settings for the identity layer.
type AuthConfig struct {
	TokenSecret string        `yaml:"token_secret" env:"ORDRE_AUTH_SECRET"`
	TokenIssuer string        `yaml:"token_issuer" env:"AUTH_TOKEN_ISSUER" env-default:"lordre"`
	TokenTTL    time.Duration `yaml:"token_ttl"    env:"AUTH_TOKEN_TTL"    env-default:"15m"`
}

// HistoryConfig bounds the action-history read side.
type HistoryConfig struct {
	// QueryCap limits every history page to the most recent N entries;
	// search filters never scan past it.
	QueryCap int `yaml:"query_cap" env:"HISTORY_QUERY_CAP" env-default:"200"`
}

// CORSConfig holds CORS settings for the browser clients.
type CORSConfig struct {
	AllowedOrigins string `yaml:"allowed_origins" env:"CORS_ALLOWED_ORIGINS" env-default:"*"`
	AllowedMethods string `yaml:"allowed_methods" env:"CORS_ALLOWED_METHODS" env-default:"GET,POST,PUT,OPTIONS"`
	AllowedHeaders string `yaml:"allowed_headers" env:"CORS_ALLOWED_HEADERS" env-default:"Authorization,Content-Type"`
	MaxAge         int    `yaml:"max_age"         env:"CORS_MAX_AGE"         env-default:"600"`
}

// Load reads configuration from a YAML file and environment variables.
// Priority: ENV > YAML > defaults. The file path comes from CONFIG_PATH
// (fallback "./config.yaml"); a missing default file is not an error.
func Load() (*Config, error) {
	var cfg Config

	path := os.Getenv("CONFIG_PATH")
	explicitPath := path != ""
	if !explicitPath {
		path = "./config.yaml"
	}

	if _, err := os.Stat(path); err == nil {
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	} else if explicitPath {
		return nil, fmt.Errorf("config: file %s: %w", path, err)
	} else {
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return nil, fmt.Errorf("config: read env: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validate: %w", err)
	}
	return &cfg, nil
}

// Validate rejects settings the server cannot start with.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server port %d out of range", c.Server.Port)
	}
	if c.History.QueryCap <= 0 {
		return fmt.Errorf("history query_cap must be positive")
	}
	if c.Auth.TokenTTL <= 0 {
		return fmt.Errorf("auth token_ttl must be positive")
	}
	if strings.TrimSpace(c.Auth.TokenIssuer) == "" {
		return fmt.Errorf("auth token_issuer is required")
	}
	return nil
}

// Addr returns the listen address for the HTTP server.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
