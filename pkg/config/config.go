// Package config loads the service's runtime configuration from the
// environment, optionally seeded from a local .env file for development,
// mirroring the environment-variable-driven configuration this codebase's
// lineage already uses for its transport and tracing settings.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every environment-derived setting the server needs to boot.
type Config struct {
	// DatabaseURL is the Postgres/PostGIS connection string for the POI store.
	DatabaseURL string
	// CacheURL is the optional Redis connection string for the L2 tile cache.
	// Empty disables L2 and the server runs L1-only.
	CacheURL string
	// AdminSecret gates the prewarm endpoint via bearer auth.
	AdminSecret string
	// ListenAddr is the HTTP bind address, e.g. ":8080".
	ListenAddr string
	// MaxWorkers holds MAX_WORKERS (0 when unset). The evaluator does not
	// read it: its worker count is derived from GOMAXPROCS and capped at 8.
	MaxWorkers int
	// TileBuildTimeout holds TILE_BUILD_TIMEOUT; the server sets its HTTP
	// write timeout to this value plus 30s. Tile builds are not bounded by it.
	TileBuildTimeout time.Duration
	// LogLevel is one of debug, info, warn, error.
	LogLevel string
}

// defaults applied when an optional variable is unset.
const (
	defaultListenAddr       = ":8080"
	defaultTileBuildTimeout = 60 * time.Second
	defaultLogLevel         = "info"
)

// Load reads configuration from the environment, first loading envFile
// (typically ".env") if it exists — a missing envFile is not an error,
// mirroring godotenv's documented local-development usage. Required
// variables that remain unset after that cause Load to fail fast rather
// than let the server start half-configured.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("loading %s: %w", envFile, err)
		}
	}

	cfg := &Config{
		DatabaseURL: os.Getenv("DATABASE_URL"),
		CacheURL:    os.Getenv("CACHE_URL"),
		AdminSecret: os.Getenv("ADMIN_SECRET"),
		ListenAddr:  getEnvDefault("LISTEN_ADDR", defaultListenAddr),
		LogLevel:    getEnvDefault("LOG_LEVEL", defaultLogLevel),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	workers, err := getEnvInt("MAX_WORKERS", 0)
	if err != nil {
		return nil, err
	}
	cfg.MaxWorkers = workers

	timeout, err := getEnvDuration("TILE_BUILD_TIMEOUT", defaultTileBuildTimeout)
	if err != nil {
		return nil, err
	}
	cfg.TileBuildTimeout = timeout

	return cfg, nil
}

func getEnvDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("parsing %s=%q as int: %w", key, v, err)
	}
	return n, nil
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("parsing %s=%q as duration: %w", key, v, err)
	}
	return d, nil
}
