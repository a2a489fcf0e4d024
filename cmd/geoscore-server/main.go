// Command geoscore-server runs the heatmap and property tile HTTP API:
// it wires the POI store, tile builder, two-tier tile cache, request
// coordinator and chi router together and serves them until a shutdown
// signal arrives.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/osiedlownik/geoscore/pkg/config"
	"github.com/osiedlownik/geoscore/pkg/coordinator"
	"github.com/osiedlownik/geoscore/pkg/httpapi"
	"github.com/osiedlownik/geoscore/pkg/monitoring"
	"github.com/osiedlownik/geoscore/pkg/poi"
	"github.com/osiedlownik/geoscore/pkg/property"
	"github.com/osiedlownik/geoscore/pkg/tilebuilder"
	"github.com/osiedlownik/geoscore/pkg/tilecache"
	"github.com/osiedlownik/geoscore/pkg/tracing"
)

// version is set at build time via -ldflags "-X main.version=...".
var version = "dev"

func main() {
	envFile := flag.String("env-file", ".env", "path to a local .env file (missing file is not an error)")
	flag.Parse()

	cfg, err := config.Load(*envFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "loading configuration: %v\n", err)
		os.Exit(1)
	}

	level := slog.LevelInfo
	_ = level.UnmarshalText([]byte(cfg.LogLevel))
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.InitTracing(ctx, version)
	if err != nil {
		slog.Error("failed to initialize tracing", "error", err)
		os.Exit(1)
	}
	defer shutdownTracing(context.Background())

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	store, err := poi.NewStore(pool)
	if err != nil {
		slog.Error("failed to create POI store", "error", err)
		os.Exit(1)
	}

	var l2 tilecache.L2
	if cfg.CacheURL != "" {
		redisL2, err := tilecache.NewRedisL2(cfg.CacheURL)
		if err != nil {
			slog.Error("failed to configure L2 cache", "error", err)
			os.Exit(1)
		}
		if err := redisL2.Ping(ctx); err != nil {
			slog.Warn("L2 cache unreachable at startup, continuing L1-only", "error", err)
		} else {
			l2 = redisL2
		}
	}

	heatmapCache, err := tilecache.New(tilecache.KindHeatmap, l2)
	if err != nil {
		slog.Error("failed to create heatmap cache", "error", err)
		os.Exit(1)
	}

	builder := tilebuilder.New(store)
	heatmapSvc := httpapi.NewHeatmapService(builder, heatmapCache)

	propertySource := property.NewHTTPSource(os.Getenv("PROPERTY_SOURCE_URL"))
	propertyCache, err := property.NewCache(l2, propertySource)
	if err != nil {
		slog.Error("failed to create property cache", "error", err)
		os.Exit(1)
	}

	health := monitoring.NewHealthChecker(monitoring.ServiceName, version)
	defer health.Shutdown()

	dbMonitor := monitoring.NewConnectionMonitor("database", health, func() error {
		return pool.Ping(ctx)
	}, 15*time.Second)
	dbMonitor.Start()
	defer dbMonitor.Stop()

	heatmapHandler := &httpapi.HeatmapHandler{Tiles: heatmapSvc, Points: heatmapSvc, Budget: coordinator.HeatmapBudget, Prewarm: heatmapSvc}
	propertyHandler := &httpapi.PropertyHandler{Listings: propertyCache}

	srv := httpapi.NewServer(heatmapHandler, propertyHandler, health, cfg.AdminSecret)
	defer srv.Shutdown()

	httpServer := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      srv.Router(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: cfg.TileBuildTimeout + 30*time.Second,
	}

	go func() {
		slog.Info("geoscore-server listening", "addr", cfg.ListenAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("http server failed", "error", err)
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("graceful shutdown failed", "error", err)
	}
}
