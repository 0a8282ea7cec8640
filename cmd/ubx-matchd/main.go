// Command ubx-matchd is the reference host daemon: it loads a compiled
// snapshot, keeps it warm behind an Engine, and exposes match_request,
// match_response_headers, match_cosmetics, compile_filter_lists, and
// get_snapshot_info over HTTP for a browser-extension host process to
// call (spec.md §6 "External API").
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/edgecomet/ubx/internal/common/config"
	"github.com/edgecomet/ubx/internal/common/logger"
	"github.com/edgecomet/ubx/internal/common/metricsserver"
	"github.com/edgecomet/ubx/internal/common/redis"
	"github.com/edgecomet/ubx/internal/statsstore"
	"github.com/edgecomet/ubx/internal/telemetry"
	"github.com/edgecomet/ubx/internal/ubx/engine"
	"github.com/edgecomet/ubx/internal/ubx/psl"
)

func main() {
	configPath := flag.String("c", "configs/example/ubx-matchd.yaml", "path to matchd configuration file")
	flag.Parse()

	initialLogger, err := logger.NewDefaultLogger()
	if err != nil {
		log.Fatalf("failed to create logger: %v", err)
	}
	initialLogger.Info("starting ubx-matchd", zap.String("config_path", *configPath))

	cm, err := config.NewManager(*configPath, initialLogger.Logger)
	if err != nil {
		initialLogger.Fatal("failed to load matchd config", zap.Error(err))
	}
	cfg := cm.GetConfig()

	dynamicLogger, err := logger.NewLoggerWithStartupOverride(cfg.Log)
	if err != nil {
		initialLogger.Fatal("failed to create configured logger", zap.Error(err))
	}
	defer dynamicLogger.Sync()
	zapLogger := dynamicLogger.Logger

	var pslTable *psl.Table
	if cfg.PSL.Path != "" {
		pslTable, err = psl.LoadFile(cfg.PSL.Path)
		if err != nil {
			zapLogger.Fatal("failed to load public suffix list", zap.Error(err))
		}
	}

	var redisClient *redis.Client
	if cfg.Redis != nil {
		redisClient, err = redis.NewClient(cfg.Redis, zapLogger)
		if err != nil {
			zapLogger.Fatal("failed to connect to redis", zap.Error(err))
		}
		defer redisClient.Close()
	}

	telemetrySink, err := telemetry.NewSink(cfg.Telemetry, zapLogger)
	if err != nil {
		zapLogger.Fatal("failed to start telemetry sink", zap.Error(err))
	}

	statsStore, err := statsstore.NewStore(cfg.StatsStore, zapLogger)
	if err != nil {
		zapLogger.Fatal("failed to open stats store", zap.Error(err))
	}

	eng := engine.New(engine.Options{
		CacheSize:        cfg.DecisionCache.Capacity,
		PSL:              pslTable,
		Logger:           zapLogger,
		Redis:            redisClient,
		MetricsNamespace: cfg.Metrics.Namespace,
		Telemetry:        telemetrySink,
		StatsStore:       statsStore,
	})
	defer eng.Close()

	if len(cfg.TrustedSites) > 0 {
		eng.SetTrustedSites(cfg.TrustedSites)
	}

	raw, err := os.ReadFile(cfg.SnapshotPath)
	if err != nil {
		zapLogger.Fatal("failed to read snapshot file", zap.String("path", cfg.SnapshotPath), zap.Error(err))
	}
	if cfg.FallbackPath != "" {
		fallback, ferr := os.ReadFile(cfg.FallbackPath)
		if ferr != nil {
			zapLogger.Warn("no fallback snapshot available", zap.Error(ferr))
			if err := eng.Load(raw); err != nil {
				zapLogger.Fatal("failed to load snapshot", zap.Error(err))
			}
		} else if err := eng.LoadOrFallback(raw, fallback); err != nil {
			zapLogger.Fatal("failed to load snapshot or fallback", zap.Error(err))
		}
	} else if err := eng.Load(raw); err != nil {
		zapLogger.Fatal("failed to load snapshot", zap.Error(err))
	}

	zapLogger.Info("snapshot loaded", zap.String("path", cfg.SnapshotPath))

	d := &matchDaemon{engine: eng, logger: zapLogger}

	httpServer := &fasthttp.Server{
		Handler:                      d.ServeHTTP,
		Name:                         "ubx-matchd",
		ReadTimeout:                  time.Duration(cfg.Server.Timeout),
		WriteTimeout:                 time.Duration(cfg.Server.Timeout),
		IdleTimeout:                  60 * time.Second,
		DisablePreParseMultipartForm: true,
		NoDefaultServerHeader:        true,
		NoDefaultDate:                true,
	}

	go func() {
		zapLogger.Info("match API server starting", zap.String("addr", cfg.Server.Listen))
		if err := httpServer.ListenAndServe(cfg.Server.Listen); err != nil {
			zapLogger.Error("match API server error", zap.Error(err))
		}
	}()

	metricsHandler := eng.Metrics()
	var metricsSrv *fasthttp.Server
	if metricsHandler != nil {
		metricsSrv, err = metricsserver.StartMetricsServer(
			cfg.Metrics.Enabled, cfg.Metrics.Listen, cfg.Metrics.Path, metricsHandler, zapLogger)
		if err != nil {
			zapLogger.Error("failed to start metrics server", zap.Error(err))
		}
	}

	dynamicLogger.SwitchToConfiguredLevel()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	dynamicLogger.EnsureInfoLevelForShutdown()
	zapLogger.Info("shutting down ubx-matchd...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.ShutdownWithContext(shutdownCtx); err != nil {
		zapLogger.Error("failed to shut down match API server", zap.Error(err))
	}
	if metricsSrv != nil {
		if err := metricsSrv.ShutdownWithContext(shutdownCtx); err != nil {
			zapLogger.Error("failed to shut down metrics server", zap.Error(err))
		}
	}

	zapLogger.Info("ubx-matchd stopped")
}
