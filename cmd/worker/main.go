package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/brojonat/solxr/service/cache"
	"github.com/brojonat/solxr/service/config"
	"github.com/brojonat/solxr/service/db"
	"github.com/brojonat/solxr/service/engine"
	"github.com/brojonat/solxr/service/metrics"
	natspkg "github.com/brojonat/solxr/service/nats"
	"github.com/brojonat/solxr/service/solana"
	"github.com/brojonat/solxr/service/temporal"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
)

func main() {
	// Load and validate configuration from environment
	cfg := config.MustLoad()

	logger := setupLogger(cfg.LogLevel)
	logger.Info("starting temporal worker",
		"temporal_host", cfg.TemporalHost,
		"namespace", cfg.TemporalNamespace,
		"task_queue", cfg.TemporalTaskQueue,
		"log_level", cfg.LogLevel,
	)

	if cfg.StoreBackend != config.StorePostgres {
		logger.Error("the standalone worker needs the postgres store; use TEMPORAL_EMBEDDED_WORKER with the memory store")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("worker exited with error", "error", err)
		os.Exit(1)
	}
	logger.Info("shutdown complete")
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	pool, err := db.Connect(ctx, cfg.DatabaseURL, 5)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()
	logger.Info("connected to database")

	m := metrics.NewMetrics(nil) // nil uses default registry

	var clock engine.Clock = solana.SystemClock{}
	if cfg.Clock == config.ClockCluster {
		clock = solana.NewClusterClock(solana.NewClient(solana.NewRPCClient(cfg.SolanaRPCURL), m, logger))
	}

	engineCfg := engine.Config{
		Store:       db.NewStore(pool, m),
		Clock:       clock,
		Metrics:     m,
		Logger:      logger,
		Initializer: cfg.InitializerAddress,
		Program:     cfg.ProgramID,
	}
	if cfg.NATSURL != "" {
		publisher, err := natspkg.NewPublisher(cfg.NATSURL, m, logger)
		if err != nil {
			return fmt.Errorf("failed to create NATS publisher: %w", err)
		}
		defer publisher.Close()
		engineCfg.Publisher = publisher
		logger.Info("connected to NATS", "url", cfg.NATSURL)
	}
	if cfg.RedisAddr != "" {
		// Expiries committed here must retire the API servers' cached queries.
		backend, err := cache.NewRedis(ctx, cache.ClientConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		defer backend.Close()
		engineCfg.Invalidator = cache.New(backend, cfg.CacheTTL, m, logger)
		logger.Info("connected to redis", "addr", cfg.RedisAddr)
	}

	e, err := engine.New(engineCfg)
	if err != nil {
		return fmt.Errorf("failed to create engine: %w", err)
	}

	w, err := temporal.NewWorker(temporal.WorkerConfig{
		TemporalHost:      cfg.TemporalHost,
		TemporalNamespace: cfg.TemporalNamespace,
		TaskQueue:         cfg.TemporalTaskQueue,
		Engine:            e,
		Metrics:           m,
		Logger:            logger,
	})
	if err != nil {
		return fmt.Errorf("failed to create temporal worker: %w", err)
	}

	metricsAddr := getEnv("METRICS_ADDR", ":9091")
	metricsServer := &http.Server{
		Addr:    metricsAddr,
		Handler: promhttp.Handler(),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting metrics HTTP server", "addr", metricsAddr)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics server: %w", err)
		}
		return nil
	})
	g.Go(w.Start)
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutdown signal received")
		w.Stop()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return metricsServer.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// setupLogger creates a structured logger with the given log level.
func setupLogger(levelStr string) *slog.Logger {
	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	return slog.New(slog.NewJSONHandler(os.Stderr, opts))
}

// getEnv returns the value of an environment variable or a default if not set.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
