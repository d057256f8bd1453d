package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Config holds all configuration for the dev server
type Config struct {
	// HTTP Configuration
	Server ServerConfig

	// Database Configuration
	Database DatabaseConfig

	// Token Configuration
	JWT JWTConfig

	// Session housekeeping
	Sessions SessionsConfig

	// Logging Configuration
	Logging LoggingConfig
}

// ServerConfig holds HTTP listener configuration
type ServerConfig struct {
	Port               string   `validate:"required,numeric"`
	CORSAllowedOrigins []string `validate:"dive,url"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	URL string `validate:"required"`
}

// JWTConfig holds token signing configuration
type JWTConfig struct {
	Secret          string        `validate:"required,min=16"`
	AccessTokenTTL  time.Duration `validate:"gt=0"`
	RefreshTokenTTL time.Duration `validate:"gtfield=AccessTokenTTL"`
}

// SessionsConfig holds session housekeeping configuration
type SessionsConfig struct {
	CleanupSchedule string `validate:"required"` // cron expression or descriptor, e.g. "@every 1h"
}

// LoggingConfig holds logging-related configuration
type LoggingConfig struct {
	Level  string `validate:"oneof=trace debug info warn warning error fatal panic disabled off"`
	Format string `validate:"oneof=json console"` // json, console
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env files (fails silently if files don't exist)
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	accessTTL, err := durationEnv("ACCESS_TOKEN_TTL", 15*time.Minute)
	if err != nil {
		return nil, err
	}
	refreshTTL, err := durationEnv("REFRESH_TOKEN_TTL", 7*24*time.Hour)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:               stringEnv("PORT", "8080"),
			CORSAllowedOrigins: listEnv("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000", "http://localhost:5173"}),
		},
		Database: DatabaseConfig{
			// Default to a local file, allow ":memory:" for throwaway runs
			URL: stringEnv("DATABASE_URL", "authcenter.sqlite"),
		},
		JWT: JWTConfig{
			Secret:          os.Getenv("JWT_SECRET"),
			AccessTokenTTL:  accessTTL,
			RefreshTokenTTL: refreshTTL,
		},
		Sessions: SessionsConfig{
			CleanupSchedule: stringEnv("SESSION_CLEANUP_SCHEDULE", "@every 1h"),
		},
		// Logging configuration - defaults suitable for local development
		Logging: LoggingConfig{
			Level:  strings.ToLower(stringEnv("LOG_LEVEL", "info")),
			Format: strings.ToLower(stringEnv("LOG_FORMAT", "console")),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for missing or inconsistent values
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

func stringEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func durationEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return d, nil
}

func listEnv(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
