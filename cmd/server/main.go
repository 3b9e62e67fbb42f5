// Package main is the entry point for the to-do lists server.
//
// The main package stays minimal. Its job is to:
//  1. Read configuration (flags, config file, environment)
//  2. Set up logging
//  3. Create the server and start it
//
// All actual logic lives in the internal/ packages.
//
// Configuration precedence, lowest to highest: built-in defaults, the YAML
// file named by --config (or TODOLISTS_CONFIG), environment variables,
// explicit flags. Run with --help for the flag list.
package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/pflag"

	"github.com/sakif/todolists/internal/config"
	"github.com/sakif/todolists/internal/logging"
	"github.com/sakif/todolists/internal/server"
)

func main() {
	// === 1. READ CONFIGURATION ===
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "todolists: %v\n", err)
		os.Exit(2)
	}

	// === 2. SET UP LOGGING ===
	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "todolists: %v\n", err)
		os.Exit(2)
	}
	logger := logging.New(os.Stdout, level, cfg.Log.Format)
	slog.SetDefault(logger)

	// === 3. DATABASE DIRECTORY ===
	// os.MkdirAll creates all parent directories if needed (like `mkdir -p`).
	if cfg.Database.Driver == config.DriverSQLite && cfg.Database.Path != ":memory:" {
		dbDir := filepath.Dir(cfg.Database.Path)
		if err := os.MkdirAll(dbDir, 0755); err != nil {
			logger.Error("failed to create database directory",
				slog.String("dir", dbDir),
				slog.String("error", err.Error()),
			)
			os.Exit(1)
		}
	}

	// === 4. CREATE AND START THE SERVER ===
	srv, err := server.New(cfg, logger)
	if err != nil {
		logger.Error("failed to create server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Start() blocks until the server is shut down (via Ctrl+C or SIGTERM)
	if err := srv.Start(); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
