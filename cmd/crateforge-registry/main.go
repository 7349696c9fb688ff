// Copyright 2026 The Crateforge Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/crateforge/crateforge/lib/blobstore"
	"github.com/crateforge/crateforge/lib/bundle"
	"github.com/crateforge/crateforge/lib/catalog"
	"github.com/crateforge/crateforge/lib/clock"
	"github.com/crateforge/crateforge/lib/config"
	"github.com/crateforge/crateforge/lib/resolver"
	"github.com/crateforge/crateforge/lib/service"
	"github.com/crateforge/crateforge/lib/version"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath  string
		listenAddr  string
		showVersion bool
	)

	flagSet := pflag.NewFlagSet("crateforge-registry", pflag.ContinueOnError)
	flagSet.StringVar(&configPath, "config", "", "path to crateforge.yaml (default: $CRATEFORGE_CONFIG)")
	flagSet.StringVar(&listenAddr, "listen", "", "override the configured listen address")
	flagSet.BoolVar(&showVersion, "version", false, "print version information and exit")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		return err
	}

	if showVersion {
		fmt.Printf("crateforge-registry %s\n", version.Info())
		return nil
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if listenAddr != "" {
		cfg.Listen.Address = listenAddr
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger := service.NewLogger()
	logger.Info("starting crateforge-registry",
		"version", version.Info(),
		"environment", cfg.Environment,
		"address", cfg.Listen.Address,
		"resolver_mode", cfg.Resolver.Mode)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	catalogStore, err := catalog.Open(catalog.Config{
		Path:     cfg.Catalog.Path,
		PoolSize: cfg.Catalog.PoolSize,
		Clock:    clock.Real(),
		Logger:   logger.With("component", "catalog"),
	})
	if err != nil {
		return fmt.Errorf("opening catalog: %w", err)
	}
	defer catalogStore.Close()

	compression, err := blobstore.ParseCompressionTag(cfg.Blobstore.Compression)
	if err != nil {
		return fmt.Errorf("blobstore configuration: %w", err)
	}
	blobs, err := blobstore.OpenFS(blobstore.FSConfig{
		Root:         cfg.Blobstore.Root,
		Compression:  compression,
		FetchRetries: cfg.Blobstore.FetchRetries,
		Clock:        clock.Real(),
		Logger:       logger.With("component", "blobstore"),
	})
	if err != nil {
		return fmt.Errorf("opening blob store: %w", err)
	}

	mode := bundle.Mode(cfg.Resolver.Mode)
	var graphResolver *resolver.Resolver
	if mode == bundle.ModeExternal {
		var allowList *resolver.AllowList
		if cfg.Resolver.AllowListFile != "" {
			allowList, err = resolver.ReadAllowList(cfg.Resolver.AllowListFile)
			if err != nil {
				return fmt.Errorf("reading resolver allow-list: %w", err)
			}
		}
		graphResolver, err = resolver.New(resolver.Config{
			Binary:    cfg.Resolver.Binary,
			Timeout:   cfg.Resolver.TimeoutDuration(),
			AllowList: allowList,
			Logger:    logger.With("component", "resolver"),
		})
		if err != nil {
			return fmt.Errorf("creating resolver: %w", err)
		}
	}

	bundles, err := bundle.New(bundle.Config{
		Catalog:  catalogStore,
		Blobs:    blobs,
		Resolver: graphResolver,
		Mode:     mode,
		Workers:  cfg.Bundle.Workers,
		Clock:    clock.Real(),
		Logger:   logger.With("component", "bundle"),
	})
	if err != nil {
		return fmt.Errorf("creating bundle service: %w", err)
	}

	server := service.NewHTTPServer(service.HTTPServerConfig{
		Address:         cfg.Listen.Address,
		Handler:         newHandler(bundles, catalogStore, blobs, logger.With("component", "http")),
		ShutdownTimeout: cfg.Listen.ShutdownTimeoutDuration(),
		Logger:          logger.With("component", "http"),
	})

	return server.Serve(ctx)
}

// loadConfig prefers the --config flag, then CRATEFORGE_CONFIG, then
// built-in defaults. Running a registry on pure defaults is fine for
// local development; production deployments set an explicit file.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFile(path)
	}
	if os.Getenv("CRATEFORGE_CONFIG") != "" {
		return config.Load()
	}
	return config.Default(), nil
}
