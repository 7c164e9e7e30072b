package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/brojonat/solxr/service/auth"
	"github.com/brojonat/solxr/service/cache"
	"github.com/brojonat/solxr/service/config"
	"github.com/brojonat/solxr/service/db"
	"github.com/brojonat/solxr/service/engine"
	"github.com/brojonat/solxr/service/metrics"
	natspkg "github.com/brojonat/solxr/service/nats"
	"github.com/brojonat/solxr/service/server"
	"github.com/brojonat/solxr/service/solana"
	"github.com/brojonat/solxr/service/temporal"
	"golang.org/x/sync/errgroup"
)

func main() {
	// Load and validate configuration from environment
	// This fails fast if any required config is missing or invalid
	cfg := config.MustLoad()

	logger := setupLogger(cfg.LogLevel)
	logger.Info("starting server",
		"addr", cfg.ServerAddr,
		"store", cfg.StoreBackend,
		"clock", cfg.Clock,
		"log_level", cfg.LogLevel,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server exited with error", "error", err)
		os.Exit(1)
	}
	logger.Info("server shutdown complete")
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	m := metrics.NewMetrics(nil) // nil uses default registry

	store, closeStore, err := openStore(ctx, cfg, m, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	clock, err := openClock(cfg, m, logger)
	if err != nil {
		return err
	}

	engineCfg := engine.Config{
		Store:       store,
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
	} else {
		logger.Warn("NATS_URL not set, receipts are not published")
	}

	var (
		qc     *cache.QueryCache
		replay auth.ReplayGuard = auth.NewMemoryGuard()
	)
	if cfg.RedisAddr != "" {
		backend, err := cache.NewRedis(ctx, cache.ClientConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		defer backend.Close()
		qc = cache.New(backend, cfg.CacheTTL, m, logger)
		engineCfg.Invalidator = qc
		replay = backend
		logger.Info("connected to redis", "addr", cfg.RedisAddr, "ttl", cfg.CacheTTL)
	} else {
		logger.Warn("REDIS_ADDR not set, request signatures are remembered by this process only")
	}

	e, err := engine.New(engineCfg)
	if err != nil {
		return fmt.Errorf("failed to create engine: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)

	var scheduler temporal.Scheduler
	if cfg.TemporalEnabled {
		tc, err := temporal.NewClient(cfg.TemporalHost, cfg.TemporalNamespace, cfg.TemporalTaskQueue, m, logger)
		if err != nil {
			return fmt.Errorf("failed to create temporal client: %w", err)
		}
		defer tc.Close()
		scheduler = tc
		logger.Info("connected to temporal",
			"host", cfg.TemporalHost,
			"namespace", cfg.TemporalNamespace,
			"task_queue", cfg.TemporalTaskQueue,
		)

		if cfg.TemporalEmbeddedWorker {
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
			g.Go(w.Start)
			g.Go(func() error {
				<-gctx.Done()
				w.Stop()
				return nil
			})
		}
	}

	httpServer := server.New(cfg.ServerAddr, cfg, e, qc, scheduler, m, logger).WithReplayGuard(replay)
	g.Go(httpServer.Start)
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	logger.Info("server initialized, all dependencies ready",
		"nats", cfg.NATSURL != "",
		"cache", qc != nil,
		"temporal", cfg.TemporalEnabled,
	)

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// openStore returns the configured store and a function releasing it.
func openStore(ctx context.Context, cfg *config.Config, m *metrics.Metrics, logger *slog.Logger) (engine.Store, func(), error) {
	if cfg.StoreBackend == config.StoreMemory {
		logger.Warn("using in-memory store, state is lost on restart")
		return db.NewMemoryStore(), func() {}, nil
	}

	pool, err := db.Connect(ctx, cfg.DatabaseURL, 10)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	applied, err := db.Migrate(ctx, pool)
	if err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	logger.Info("connected to database", "migrations_applied", len(applied))
	return db.NewStore(pool, m), pool.Close, nil
}

func openClock(cfg *config.Config, m *metrics.Metrics, logger *slog.Logger) (engine.Clock, error) {
	switch cfg.Clock {
	case config.ClockSystem:
		return solana.SystemClock{}, nil
	case config.ClockCluster:
		// For premium RPC endpoints, include the API key in the URL
		rpc := solana.NewRPCClient(cfg.SolanaRPCURL)
		logger.Info("using cluster clock", "rpc", cfg.SolanaRPCURL)
		return solana.NewClusterClock(solana.NewClient(rpc, m, logger)), nil
	default:
		return nil, fmt.Errorf("unknown clock %q", cfg.Clock)
	}
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
