// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Storecache-server is a read-only HTTP binary cache: it serves NARs,
// narinfo metadata, directory listings, and build logs for a content-
// addressed package store, signing narinfo responses with the
// configured keys. It takes no positional arguments; configuration
// comes from CONFIG_FILE/SIGN_KEY_PATHS and the TOML file they name.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/nixcache/storecache/lib/config"
	"github.com/nixcache/storecache/lib/narhash"
	"github.com/nixcache/storecache/lib/store"
	"github.com/nixcache/storecache/lib/version"
	"github.com/nixcache/storecache/server"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var showVersion bool
	flag.BoolVar(&showVersion, "version", false, "print version information and exit")
	flag.Parse()

	if showVersion {
		fmt.Printf("storecache-server %s\n", version.Info())
		return nil
	}

	logger := newLogger()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	keys := make([]*narhash.SigningKey, 0, len(cfg.SignKeyPaths))
	for _, path := range cfg.SignKeyPaths {
		key, err := narhash.LoadSigningKey(path)
		if err != nil {
			return fmt.Errorf("loading signing key %s: %w", path, err)
		}
		keys = append(keys, key)
	}
	logger.Info("signing keys loaded", "count", len(keys))

	handler := &server.Handler{
		Store:           store.NewHandle(cfg.DaemonSocket, cfg.RealNixStore),
		Keys:            keys,
		VirtualStoreDir: cfg.VirtualNixStore,
		Priority:        cfg.Priority,
		Logger:          logger,
	}

	srv := &server.Server{
		Bind:         cfg.Bind,
		Workers:      cfg.Workers,
		MaxPerWorker: cfg.MaxConnectionRate,
		Handler:      server.NewRouter(handler),
		Logger:       logger,
		TLSCertPath:  cfg.TLSCertPath,
		TLSKeyPath:   cfg.TLSKeyPath,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return srv.Serve(ctx)
}

// newLogger builds the standard JSON-to-stderr slog logger, level
// controlled by LOG_LEVEL (spec's "RUST_LOG or equivalent"), default
// info.
func newLogger() *slog.Logger {
	level := slog.LevelInfo
	switch os.Getenv("LOG_LEVEL") {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return logger
}
