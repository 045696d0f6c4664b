// Package config provides application configuration management.
// Configuration is loaded from environment variables following 12-factor principles.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
)

// Config holds all application configuration.
// All fields are populated from environment variables.
type Config struct {
	// Application settings
	AppEnv  string `env:"APP_ENV" envDefault:"development"`
	AppPort int    `env:"APP_PORT" envDefault:"8080"`

	// Database (PostgreSQL)
	DatabaseURL string `env:"DATABASE_URL,required"`

	// Cache and usage stream (Redis)
	RedisURL string `env:"REDIS_URL,required"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	// Server timeouts
	ReadTimeout     time.Duration `env:"READ_TIMEOUT" envDefault:"5s"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT" envDefault:"10s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`

	// Session tokens for dashboard endpoints
	JWTSecret string        `env:"JWT_SECRET,required"`
	JWTTTL    time.Duration `env:"JWT_TTL" envDefault:"24h"`

	// Credit metering
	LocationQueryCost   int64 `env:"LOCATION_QUERY_COST" envDefault:"5"`
	WelcomeBonusCredits int64 `env:"WELCOME_BONUS_CREDITS" envDefault:"100"`

	// Comma-separated path prefixes that require API key authentication.
	MeteredPathPrefixes string `env:"METERED_PATH_PREFIXES" envDefault:"/api/locations"`

	// Origins allowed to call the dashboard endpoints from a browser.
	// Empty disables CORS headers entirely.
	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envSeparator:","`

	// Location result cache
	LocationCacheTTL time.Duration `env:"LOCATION_CACHE_TTL" envDefault:"5m"`

	// Usage event pipeline (last_used updates, daily stats)
	UsageStreamEnabled bool `env:"USAGE_STREAM_ENABLED" envDefault:"true"`
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// GetMeteredPathPrefixes parses the comma-separated prefix list.
func (c *Config) GetMeteredPathPrefixes() []string {
	if c.MeteredPathPrefixes == "" {
		return nil
	}

	parts := strings.Split(c.MeteredPathPrefixes, ",")
	result := make([]string, 0, len(parts))

	for _, p := range parts {
		trimmed := strings.TrimSpace(p)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}

// Load parses environment variables and returns a Config.
// Returns an error if required variables are missing.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if cfg.LocationQueryCost <= 0 {
		return nil, fmt.Errorf("LOCATION_QUERY_COST must be positive, got %d", cfg.LocationQueryCost)
	}
	if cfg.WelcomeBonusCredits < 0 {
		return nil, fmt.Errorf("WELCOME_BONUS_CREDITS must not be negative, got %d", cfg.WelcomeBonusCredits)
	}
	return cfg, nil
}
