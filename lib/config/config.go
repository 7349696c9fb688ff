// Copyright 2026 The Crateforge Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides configuration loading for Crateforge
// components.
//
// Configuration is loaded from a single YAML file specified by:
//   - CRATEFORGE_CONFIG environment variable, or
//   - --config flag passed to the command
//
// There are no fallbacks or automatic discovery. The config file may
// contain environment-specific sections (development, staging,
// production) that override base values when the environment matches.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/crateforge/crateforge/lib/blobstore"
	"github.com/crateforge/crateforge/lib/bundle"
)

// Environment represents the deployment environment.
type Environment string

const (
	Development Environment = "development"
	Staging     Environment = "staging"
	Production  Environment = "production"
)

// Config is the master configuration for the Crateforge registry.
type Config struct {
	// Environment identifies the deployment type.
	Environment Environment `yaml:"environment"`

	// Listen configures the HTTP server.
	Listen ListenConfig `yaml:"listen"`

	// Catalog configures the SQLite package catalog.
	Catalog CatalogConfig `yaml:"catalog"`

	// Blobstore configures archive storage.
	Blobstore BlobstoreConfig `yaml:"blobstore"`

	// Resolver configures dependency resolution.
	Resolver ResolverConfig `yaml:"resolver"`

	// Bundle configures container assembly.
	Bundle BundleConfig `yaml:"bundle"`

	// Per-environment overrides, applied after the base config.
	Development *Overrides `yaml:"development,omitempty"`
	Staging     *Overrides `yaml:"staging,omitempty"`
	Production  *Overrides `yaml:"production,omitempty"`
}

// Overrides contains the fields that can be overridden per
// environment.
type Overrides struct {
	Listen    *ListenConfig    `yaml:"listen,omitempty"`
	Catalog   *CatalogConfig   `yaml:"catalog,omitempty"`
	Blobstore *BlobstoreConfig `yaml:"blobstore,omitempty"`
	Resolver  *ResolverConfig  `yaml:"resolver,omitempty"`
	Bundle    *BundleConfig    `yaml:"bundle,omitempty"`
}

// ListenConfig configures the HTTP server.
type ListenConfig struct {
	// Address is the TCP listen address. Default: ":8420".
	Address string `yaml:"address"`

	// ShutdownTimeout bounds graceful shutdown, as a duration string
	// ("10s", "1m"). Default: 10s.
	ShutdownTimeout string `yaml:"shutdown_timeout"`
}

// ShutdownTimeoutDuration parses the shutdown timeout. Call Validate
// first; parse failures fall back to the default.
func (l ListenConfig) ShutdownTimeoutDuration() time.Duration {
	d, err := time.ParseDuration(l.ShutdownTimeout)
	if err != nil || d <= 0 {
		return 10 * time.Second
	}
	return d
}

// CatalogConfig configures the SQLite catalog.
type CatalogConfig struct {
	// Path is the database file. Default: ${CRATEFORGE_ROOT}/catalog.db.
	Path string `yaml:"path"`

	// PoolSize is the connection pool size. Default: 4.
	PoolSize int `yaml:"pool_size"`
}

// BlobstoreConfig configures archive storage.
type BlobstoreConfig struct {
	// Root is the store directory. Default: ${CRATEFORGE_ROOT}/blobs.
	Root string `yaml:"root"`

	// Compression is the at-rest algorithm: none, lz4, or zstd.
	// Default: none — uploaded archives are already gzip-compressed,
	// and only uncompressed blobs can be served by path.
	Compression string `yaml:"compression"`

	// FetchRetries is how many times a failed blob read is retried.
	// Default: 2.
	FetchRetries int `yaml:"fetch_retries"`
}

// ResolverConfig configures dependency resolution.
type ResolverConfig struct {
	// Mode is "stored" (trust the graph snapshot recorded at upload)
	// or "external" (recompute through the resolver CLI). Default:
	// stored.
	Mode string `yaml:"mode"`

	// Binary is the resolver executable. Default: conan.
	Binary string `yaml:"binary"`

	// Timeout bounds one resolution, as a duration string ("5m").
	// Default: 5m.
	Timeout string `yaml:"timeout"`

	// AllowListFile is an optional JSONC file restricting which
	// packages the external resolver may run for.
	AllowListFile string `yaml:"allow_list_file"`
}

// TimeoutDuration parses the resolution timeout. Call Validate first;
// parse failures fall back to the default.
func (r ResolverConfig) TimeoutDuration() time.Duration {
	d, err := time.ParseDuration(r.Timeout)
	if err != nil || d <= 0 {
		return 5 * time.Minute
	}
	return d
}

// BundleConfig configures container assembly.
type BundleConfig struct {
	// Workers bounds concurrent artifact fetches per request.
	// Default: 4.
	Workers int `yaml:"workers"`
}

// Default returns the default configuration. The defaults ensure
// every field has a sensible value; the config file remains the
// source of truth.
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	defaultRoot := filepath.Join(homeDir, ".local", "share", "crateforge")

	return &Config{
		Environment: Development,
		Listen: ListenConfig{
			Address:         ":8420",
			ShutdownTimeout: "10s",
		},
		Catalog: CatalogConfig{
			Path:     filepath.Join(defaultRoot, "catalog.db"),
			PoolSize: 4,
		},
		Blobstore: BlobstoreConfig{
			Root:         filepath.Join(defaultRoot, "blobs"),
			Compression:  "none",
			FetchRetries: 2,
		},
		Resolver: ResolverConfig{
			Mode:    string(bundle.ModeStored),
			Binary:  "conan",
			Timeout: "5m",
		},
		Bundle: BundleConfig{
			Workers: 4,
		},
	}
}

// Load loads configuration from the CRATEFORGE_CONFIG environment
// variable. There are no fallbacks: if the variable is not set, Load
// fails.
func Load() (*Config, error) {
	configPath := os.Getenv("CRATEFORGE_CONFIG")
	if configPath == "" {
		return nil, fmt.Errorf("CRATEFORGE_CONFIG environment variable not set; " +
			"set it to the path of your crateforge.yaml config file, or use --config flag")
	}
	return LoadFile(configPath)
}

// LoadFile loads configuration from a specific file path. Environment
// variables do not override config values; the only expansion
// performed is ${HOME} and similar path variables.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	cfg.applyEnvironmentOverrides()
	cfg.expandVariables()
	return cfg, nil
}

func (c *Config) applyEnvironmentOverrides() {
	var overrides *Overrides
	switch c.Environment {
	case Development:
		overrides = c.Development
	case Staging:
		overrides = c.Staging
	case Production:
		overrides = c.Production
	}
	if overrides == nil {
		return
	}

	if overrides.Listen != nil {
		if overrides.Listen.Address != "" {
			c.Listen.Address = overrides.Listen.Address
		}
		if overrides.Listen.ShutdownTimeout != "" {
			c.Listen.ShutdownTimeout = overrides.Listen.ShutdownTimeout
		}
	}
	if overrides.Catalog != nil {
		if overrides.Catalog.Path != "" {
			c.Catalog.Path = overrides.Catalog.Path
		}
		if overrides.Catalog.PoolSize != 0 {
			c.Catalog.PoolSize = overrides.Catalog.PoolSize
		}
	}
	if overrides.Blobstore != nil {
		if overrides.Blobstore.Root != "" {
			c.Blobstore.Root = overrides.Blobstore.Root
		}
		if overrides.Blobstore.Compression != "" {
			c.Blobstore.Compression = overrides.Blobstore.Compression
		}
		if overrides.Blobstore.FetchRetries != 0 {
			c.Blobstore.FetchRetries = overrides.Blobstore.FetchRetries
		}
	}
	if overrides.Resolver != nil {
		if overrides.Resolver.Mode != "" {
			c.Resolver.Mode = overrides.Resolver.Mode
		}
		if overrides.Resolver.Binary != "" {
			c.Resolver.Binary = overrides.Resolver.Binary
		}
		if overrides.Resolver.Timeout != "" {
			c.Resolver.Timeout = overrides.Resolver.Timeout
		}
		if overrides.Resolver.AllowListFile != "" {
			c.Resolver.AllowListFile = overrides.Resolver.AllowListFile
		}
	}
	if overrides.Bundle != nil {
		if overrides.Bundle.Workers != 0 {
			c.Bundle.Workers = overrides.Bundle.Workers
		}
	}
}

// expandVariables expands ${VAR} and ${VAR:-default} patterns in
// paths.
func (c *Config) expandVariables() {
	vars := map[string]string{
		"HOME": os.Getenv("HOME"),
	}
	c.Catalog.Path = expandVars(c.Catalog.Path, vars)
	c.Blobstore.Root = expandVars(c.Blobstore.Root, vars)
	c.Resolver.AllowListFile = expandVars(c.Resolver.AllowListFile, vars)
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}
		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}
		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.Environment != Development && c.Environment != Staging && c.Environment != Production {
		errs = append(errs, fmt.Errorf("invalid environment: %s", c.Environment))
	}
	if c.Listen.Address == "" {
		errs = append(errs, fmt.Errorf("listen.address is required"))
	}
	if c.Catalog.Path == "" {
		errs = append(errs, fmt.Errorf("catalog.path is required"))
	}
	if c.Blobstore.Root == "" {
		errs = append(errs, fmt.Errorf("blobstore.root is required"))
	}
	if _, err := blobstore.ParseCompressionTag(c.Blobstore.Compression); err != nil {
		errs = append(errs, fmt.Errorf("blobstore.compression: %w", err))
	}
	switch bundle.Mode(c.Resolver.Mode) {
	case bundle.ModeStored, bundle.ModeExternal:
	default:
		errs = append(errs, fmt.Errorf("resolver.mode must be %q or %q, got %q",
			bundle.ModeStored, bundle.ModeExternal, c.Resolver.Mode))
	}
	if c.Listen.ShutdownTimeout != "" {
		if _, err := time.ParseDuration(c.Listen.ShutdownTimeout); err != nil {
			errs = append(errs, fmt.Errorf("listen.shutdown_timeout: %w", err))
		}
	}
	if c.Resolver.Timeout != "" {
		if _, err := time.ParseDuration(c.Resolver.Timeout); err != nil {
			errs = append(errs, fmt.Errorf("resolver.timeout: %w", err))
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
