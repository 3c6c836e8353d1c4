// Package config reads server settings from the environment, loading a
// .env file first when one exists.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

type Config struct {
	App      AppConfig
	Database DatabaseConfig
	HTTP     HTTPConfig
}

type AppConfig struct {
	Port     int
	Env      string
	LogLevel string
	LogJSON  bool
}

// DatabaseConfig selects where calculation records live. The hierarchy,
// events and holidays always use the SQLite file at Path.
type DatabaseConfig struct {
	Path          string
	LedgerBackend string
	URL           string
	MaxConns      int
}

type HTTPConfig struct {
	AllowedOrigins  []string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// Load reads the environment. A missing .env file is not an error; a
// malformed one is.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	return FromEnv(), nil
}

// FromEnv builds a Config from the current environment only.
func FromEnv() *Config {
	return &Config{
		App: AppConfig{
			Port:     getEnvInt("APP_PORT", 8080),
			Env:      getEnv("APP_ENV", "development"),
			LogLevel: getEnv("LOG_LEVEL", "info"),
			LogJSON:  getEnvBool("LOG_JSON", true),
		},
		Database: DatabaseConfig{
			Path:          getEnv("DB_PATH", "benefits.db"),
			LedgerBackend: strings.ToLower(getEnv("LEDGER_BACKEND", BackendSQLite)),
			URL:           getEnv("DATABASE_URL", ""),
			MaxConns:      getEnvInt("DB_MAX_CONNS", 10),
		},
		HTTP: HTTPConfig{
			AllowedOrigins:  getEnvList("CORS_ALLOWED_ORIGINS", []string{"*"}),
			ReadTimeout:     getEnvDuration("HTTP_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getEnvDuration("HTTP_WRITE_TIMEOUT", 15*time.Second),
			ShutdownTimeout: getEnvDuration("SHUTDOWN_TIMEOUT", 30*time.Second),
		},
	}
}

func (c *Config) Validate() error {
	if c.App.Port <= 0 || c.App.Port > 65535 {
		return fmt.Errorf("APP_PORT must be between 1 and 65535")
	}
	switch c.Database.LedgerBackend {
	case BackendSQLite:
		if strings.TrimSpace(c.Database.Path) == "" {
			return fmt.Errorf("DB_PATH is required")
		}
	case BackendPostgres:
		if strings.TrimSpace(c.Database.URL) == "" {
			return fmt.Errorf("DATABASE_URL is required when LEDGER_BACKEND is postgres")
		}
		if strings.TrimSpace(c.Database.Path) == "" {
			return fmt.Errorf("DB_PATH is required")
		}
	default:
		return fmt.Errorf("LEDGER_BACKEND must be %q or %q, got %q", BackendSQLite, BackendPostgres, c.Database.LedgerBackend)
	}
	if c.Database.MaxConns <= 0 {
		return fmt.Errorf("DB_MAX_CONNS must be positive")
	}
	return nil
}

// SlogLevel maps LOG_LEVEL to a slog level, defaulting to info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.App.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func (c *Config) IsProduction() bool {
	return c.App.Env == "production"
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvList(key string, fallback []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
