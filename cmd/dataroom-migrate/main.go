// Package main is the entry point for the data room schema migration tool.
// It applies embedded migrations against the configured database backend.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"github.com/nickrsmith/og-platform-sub004/internal/config"
	"github.com/nickrsmith/og-platform-sub004/internal/repository/postgres"
	"github.com/nickrsmith/og-platform-sub004/internal/repository/sqlite"
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
		fmt.Printf("Data Room Migration Tool\n")
		fmt.Printf("Version: %s\n", Version)
		fmt.Printf("Build Time: %s\n", BuildTime)
		fmt.Printf("Git Commit: %s\n", GitCommit)

	case "up":
		if err := migrateUp(*configPath); err != nil {
			fmt.Fprintf(os.Stderr, "migration failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("migrations applied")

	case "help", "-h", "--help":
		printUsage()

	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", flag.Arg(0))
		printUsage()
		os.Exit(1)
	}
}

func migrateUp(configPath string) error {
	cfg := config.MustLoad(configPath)
	logger := zerolog.New(os.Stderr).With().Timestamp().Logger()
	ctx := context.Background()

	switch cfg.Database.Driver {
	case "postgres":
		db, err := postgres.NewDB(ctx, cfg.Database, logger)
		if err != nil {
			return err
		}
		defer db.Close()
		return db.Migrate(ctx)
	default:
		db, err := sqlite.NewDB(ctx, sqlite.DefaultConfig(cfg.Database.Path), logger)
		if err != nil {
			return err
		}
		defer db.Close()
		return db.Migrate(ctx)
	}
}

func printUsage() {
	fmt.Println(`Data Room Migration Tool

Usage:
  dataroom-migrate [-config path] <command>

Commands:
  up          Apply all pending migrations
  version     Print version information
  help        Show this help message

Configuration is read the same way the server reads it: an optional YAML
file plus DATAROOM_-prefixed environment variables.

Examples:
  dataroom-migrate up
  dataroom-migrate -config ./configs/config.yaml up`)
}
