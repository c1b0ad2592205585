// Package main is the entry point for the data room admin CLI.
// It runs the background jobs on demand: counter reconciliation, the
// orphaned-scratch sweep, and promotion of pending uploads.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"github.com/nickrsmith/og-platform-sub004/internal/config"
	"github.com/nickrsmith/og-platform-sub004/internal/lock"
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

	if flag.NArg() < 1 {
		printUsage()
		os.Exit(1)
	}

	switch flag.Arg(0) {
	case "version":
		fmt.Printf("Data Room Admin CLI\n")
		fmt.Printf("Version: %s\n", Version)
		fmt.Printf("Build Time: %s\n", BuildTime)
		fmt.Printf("Git Commit: %s\n", GitCommit)

	case "reconcile":
		if err := runReconcile(*configPath); err != nil {
			fmt.Fprintf(os.Stderr, "reconcile failed: %v\n", err)
			os.Exit(1)
		}

	case "promote":
		if err := runPromote(*configPath); err != nil {
			fmt.Fprintf(os.Stderr, "promote failed: %v\n", err)
			os.Exit(1)
		}

	case "help", "-h", "--help":
		printUsage()

	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", flag.Arg(0))
		printUsage()
		os.Exit(1)
	}
}

// env holds the store handles the admin commands operate on.
type env struct {
	roomRepo repository.DataRoomRepository
	docRepo  repository.DocumentRepository
	scratch  *scratch.Store
	cfg      *config.Config
	logger   zerolog.Logger
	close    func()
}

func setup(ctx context.Context, configPath string) (*env, error) {
	cfg := config.MustLoad(configPath)
	logger := zerolog.New(os.Stderr).With().Timestamp().Logger()

	var (
		roomRepo repository.DataRoomRepository
		docRepo  repository.DocumentRepository
		closeDB  func()
	)
	switch cfg.Database.Driver {
	case "postgres":
		db, err := postgres.NewDB(ctx, cfg.Database, logger)
		if err != nil {
			return nil, err
		}
		roomRepo = postgres.NewDataRoomRepository(db)
		docRepo = postgres.NewDocumentRepository(db)
		closeDB = func() { _ = db.Close() }
	default:
		db, err := sqlite.NewDB(ctx, sqlite.DefaultConfig(cfg.Database.Path), logger)
		if err != nil {
			return nil, err
		}
		roomRepo = sqlite.NewDataRoomRepository(db)
		docRepo = sqlite.NewDocumentRepository(db)
		closeDB = func() { _ = db.Close() }
	}

	scratchStore, err := scratch.NewStore(cfg.Scratch.Dir, logger)
	if err != nil {
		closeDB()
		return nil, err
	}

	return &env{
		roomRepo: roomRepo,
		docRepo:  docRepo,
		scratch:  scratchStore,
		cfg:      cfg,
		logger:   logger,
		close:    closeDB,
	}, nil
}

func runReconcile(configPath string) error {
	ctx := context.Background()

	e, err := setup(ctx, configPath)
	if err != nil {
		return err
	}
	defer e.close()

	reconciler := service.NewReconcileService(
		e.roomRepo, e.docRepo, e.scratch,
		lock.NewNoOpLocker(), nil, e.logger,
		service.ReconcileConfig{
			Interval:  e.cfg.Reconcile.Interval,
			OrphanAge: e.cfg.Scratch.OrphanAge,
		},
	)

	result := reconciler.RunOnce(ctx)
	fmt.Printf("rooms fixed:     %d\n", result.RoomsFixed)
	fmt.Printf("orphans removed: %d\n", result.OrphansRemoved)
	fmt.Printf("errors:          %d\n", result.Errors)
	fmt.Printf("duration:        %s\n", result.Duration)

	if result.Errors > 0 {
		return fmt.Errorf("%d errors during reconciliation", result.Errors)
	}
	return nil
}

func runPromote(configPath string) error {
	ctx := context.Background()

	e, err := setup(ctx, configPath)
	if err != nil {
		return err
	}
	defer e.close()

	var backend storage.Backend
	switch e.cfg.Storage.Backend {
	case "s3":
		backend, err = storage.NewS3Backend(ctx, e.cfg.Storage.S3, e.cfg.Storage.BaseURL, e.logger)
	default:
		backend, err = storage.NewFilesystemBackend(e.cfg.Storage.DataDir, e.cfg.Storage.BaseURL, e.logger)
	}
	if err != nil {
		return err
	}

	promotion := service.NewPromotionService(
		e.docRepo, e.scratch, backend,
		lock.NewNoOpLocker(), nil, e.logger,
		service.PromotionConfig{
			Interval:  e.cfg.Promotion.Interval,
			BatchSize: e.cfg.Promotion.BatchSize,
		},
	)

	result := promotion.RunOnce(ctx)
	fmt.Printf("pending:  %d\n", result.Pending)
	fmt.Printf("promoted: %d\n", result.Promoted)
	fmt.Printf("errors:   %d\n", result.Errors)
	fmt.Printf("duration: %s\n", result.Duration)

	if result.Errors > 0 {
		return fmt.Errorf("%d errors during promotion", result.Errors)
	}
	return nil
}

func printUsage() {
	fmt.Println(`Data Room Admin CLI

Usage:
  dataroom-admin [-config path] <command>

Commands:
  reconcile   Recompute room counters from document rows and sweep
              orphaned scratch files
  promote     Promote pending uploads into the content store
  version     Print version information
  help        Show this help message

Examples:
  dataroom-admin reconcile
  dataroom-admin -config ./configs/config.yaml promote`)
}
