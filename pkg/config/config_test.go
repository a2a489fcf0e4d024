package config

import (
	"os"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"DATABASE_URL", "CACHE_URL", "ADMIN_SECRET", "LISTEN_ADDR", "MAX_WORKERS", "TILE_BUILD_TIMEOUT", "LOG_LEVEL"} {
		os.Unsetenv(k)
	}
}

func TestLoadFailsWithoutDatabaseURL(t *testing.T) {
	clearEnv(t)
	defer clearEnv(t)
	if _, err := Load(""); err == nil {
		t.Fatal("expected an error when DATABASE_URL is unset")
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	clearEnv(t)
	defer clearEnv(t)
	os.Setenv("DATABASE_URL", "postgres://localhost/geoscore")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ListenAddr != defaultListenAddr {
		t.Fatalf("expected default listen addr, got %s", cfg.ListenAddr)
	}
	if cfg.TileBuildTimeout != defaultTileBuildTimeout {
		t.Fatalf("expected default timeout, got %s", cfg.TileBuildTimeout)
	}
	if cfg.LogLevel != defaultLogLevel {
		t.Fatalf("expected default log level, got %s", cfg.LogLevel)
	}
}

func TestLoadReadsOverrides(t *testing.T) {
	clearEnv(t)
	defer clearEnv(t)
	os.Setenv("DATABASE_URL", "postgres://localhost/geoscore")
	os.Setenv("CACHE_URL", "redis://localhost:6379/0")
	os.Setenv("LISTEN_ADDR", ":9090")
	os.Setenv("MAX_WORKERS", "4")
	os.Setenv("TILE_BUILD_TIMEOUT", "30s")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.CacheURL != "redis://localhost:6379/0" {
		t.Fatalf("unexpected cache url: %s", cfg.CacheURL)
	}
	if cfg.ListenAddr != ":9090" {
		t.Fatalf("unexpected listen addr: %s", cfg.ListenAddr)
	}
	if cfg.MaxWorkers != 4 {
		t.Fatalf("unexpected max workers: %d", cfg.MaxWorkers)
	}
	if cfg.TileBuildTimeout != 30*time.Second {
		t.Fatalf("unexpected timeout: %s", cfg.TileBuildTimeout)
	}
}

func TestLoadRejectsMalformedInt(t *testing.T) {
	clearEnv(t)
	defer clearEnv(t)
	os.Setenv("DATABASE_URL", "postgres://localhost/geoscore")
	os.Setenv("MAX_WORKERS", "not-a-number")
	if _, err := Load(""); err == nil {
		t.Fatal("expected an error for malformed MAX_WORKERS")
	}
}
