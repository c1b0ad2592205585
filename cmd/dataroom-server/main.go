// Package main is the entry point for the data room server.
// The server exposes the REST API, runs the background promotion worker that
// moves uploads into the content store, and the reconciler that repairs
// counter drift and sweeps orphaned scratch files.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/nickrsmith/og-platform-sub004/internal/cache/memory"
	"github.com/nickrsmith/og-platform-sub004/internal/cache/redis"
	"github.com/nickrsmith/og-platform-sub004/internal/config"
	"github.com/nickrsmith/og-platform-sub004/internal/handler"
	"github.com/nickrsmith/og-platform-sub004/internal/lock"
	"github.com/nickrsmith/og-platform-sub004/internal/metrics"
	"github.com/nickrsmith/og-platform-sub004/internal/repository"
	"github.com/nickrsmith/og-platform-sub004/internal/repository/postgres"
	"github.com/nickrsmith/og-platform-sub004/internal/repository/sqlite"
	"github.com/nickrsmith/og-platform-sub004/internal/scratch"
	"github.com/nickrsmith/og-platform-sub004/internal/service"
	"github.com/nickrsmith/og-platform-sub004/internal/storage"
)

// Version information (set at build time)
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg := config.MustLoad(*configPath)
	logger := newLogger(cfg.Logging)

	logger.Info().
		Str("version", Version).
		Str("build_time", BuildTime).
		Str("git_commit", GitCommit).
		Msg("Starting data room server")

	if err := run(cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("server exited with error")
	}
}

func run(cfg *config.Config, logger zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Repositories
	var (
		roomRepo repository.DataRoomRepository
		docRepo  repository.DocumentRepository
		pinger   handler.Pinger
	)
	switch cfg.Database.Driver {
	case "postgres":
		db, err := postgres.NewDB(ctx, cfg.Database, logger)
		if err != nil {
			return fmt.Errorf("failed to connect to postgres: %w", err)
		}
		defer db.Close()
		if err := db.Migrate(ctx); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		roomRepo = postgres.NewDataRoomRepository(db)
		docRepo = postgres.NewDocumentRepository(db)
		pinger = db
	default:
		sqliteCfg := sqlite.DefaultConfig(cfg.Database.Path)
		sqliteCfg.JournalMode = cfg.Database.JournalMode
		sqliteCfg.BusyTimeout = cfg.Database.BusyTimeout
		sqliteCfg.SynchronousMode = cfg.Database.SynchronousMode
		db, err := sqlite.NewDB(ctx, sqliteCfg, logger)
		if err != nil {
			return fmt.Errorf("failed to open sqlite database: %w", err)
		}
		defer db.Close()
		if err := db.Migrate(ctx); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		roomRepo = sqlite.NewDataRoomRepository(db)
		docRepo = sqlite.NewDocumentRepository(db)
		pinger = db
	}

	// Redis: read-through room cache and the single-flight lock for the
	// background workers. Without redis both degrade to in-process forms.
	var locker lock.Locker
	if cfg.Redis.Enabled {
		client, err := redis.NewClient(ctx, cfg.Redis)
		if err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		defer client.Close()

		roomRepo = repository.NewCachedDataRoomRepository(roomRepo, redis.NewCache(client), cfg.Redis.CacheTTL, logger)
		locker = lock.NewRedisLocker(redis.NewLock(client))
	} else {
		memCache := memory.NewCache()
		defer memCache.Stop()

		roomRepo = repository.NewCachedDataRoomRepository(roomRepo, memCache, cfg.Redis.CacheTTL, logger)
		locker = lock.NewMemoryLocker()
	}

	// Scratch area and permanent content store
	scratchStore, err := scratch.NewStore(cfg.Scratch.Dir, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize scratch store: %w", err)
	}

	var backend storage.Backend
	switch cfg.Storage.Backend {
	case "s3":
		backend, err = storage.NewS3Backend(ctx, cfg.Storage.S3, cfg.Storage.BaseURL, logger)
	default:
		backend, err = storage.NewFilesystemBackend(cfg.Storage.DataDir, cfg.Storage.BaseURL, logger)
	}
	if err != nil {
		return fmt.Errorf("failed to initialize storage backend: %w", err)
	}

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
	}

	// Services and workers
	roomService := service.NewDataRoomService(roomRepo, docRepo, logger)
	docService := service.NewDocumentService(roomRepo, docRepo, scratchStore, m, logger)

	promotion := service.NewPromotionService(docRepo, scratchStore, backend, locker, m, logger, service.PromotionConfig{
		Enabled:   cfg.Promotion.Enabled,
		Interval:  cfg.Promotion.Interval,
		BatchSize: cfg.Promotion.BatchSize,
	})
	if cfg.Promotion.Enabled {
		promotion.Start()
		defer promotion.Stop()
	}

	reconciler := service.NewReconcileService(roomRepo, docRepo, scratchStore, locker, m, logger, service.ReconcileConfig{
		Enabled:   cfg.Reconcile.Enabled,
		Interval:  cfg.Reconcile.Interval,
		OrphanAge: cfg.Scratch.OrphanAge,
	})
	if cfg.Reconcile.Enabled {
		reconciler.Start()
		defer reconciler.Stop()
	}

	// HTTP servers
	router := handler.NewRouter(handler.RouterConfig{
		DataRoomHandler: handler.NewDataRoomHandler(roomService, logger),
		DocumentHandler: handler.NewDocumentHandler(docService, logger),
		DB:              pinger,
		Metrics:         m,
		Logger:          logger,
	})

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 2)

	go func() {
		logger.Info().Str("addr", server.Addr).Msg("API server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	var metricsServer *http.Server
	if m != nil {
		mux := http.NewServeMux()
		mux.Handle(cfg.Metrics.Path, m.Handler())
		metricsServer = &http.Server{
			Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Metrics.Port),
			Handler: mux,
		}
		go func() {
			logger.Info().Str("addr", metricsServer.Addr).Msg("metrics server listening")
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
		}()
	}

	select {
	case <-ctx.Done():
		logger.Info().Msg("shutdown signal received")
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shut down API server cleanly")
	}
	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("failed to shut down metrics server cleanly")
		}
	}

	logger.Info().Msg("server stopped")
	return nil
}

// newLogger builds the root logger from configuration.
func newLogger(cfg config.LoggingConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}

	zerolog.TimeFieldFormat = cfg.TimeFormat

	var out = os.Stdout
	if cfg.Output == "stderr" {
		out = os.Stderr
	}

	if cfg.Format == "console" {
		return zerolog.New(zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}).
			Level(level).With().Timestamp().Logger()
	}
	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}
