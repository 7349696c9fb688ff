// Copyright 2026 The Crateforge Authors
// SPDX-License-Identifier: Apache-2.0

package resolver

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/crateforge/crateforge/lib/depgraph"
	"github.com/crateforge/crateforge/lib/settings"
)

// DefaultTimeout bounds a single resolver invocation when the config
// does not override it.
const DefaultTimeout = 5 * time.Minute

// runFunc executes the resolver binary in dir and returns its stdout.
// Production uses exec.CommandContext; tests substitute a fake.
type runFunc func(ctx context.Context, dir, binary string, args []string) ([]byte, error)

// Config configures a Resolver.
type Config struct {
	// Binary is the resolver executable. Defaults to "conan"; resolved
	// through PATH at invocation time.
	Binary string

	// Timeout bounds each resolution. Defaults to DefaultTimeout.
	Timeout time.Duration

	// AllowList, when non-nil, restricts which packages may be
	// resolved. Nil permits any package that passes name validation.
	AllowList *AllowList

	Logger *slog.Logger

	// run substitutes the subprocess execution in tests.
	run runFunc
}

// Resolver invokes the conan CLI to compute a dependency graph.
type Resolver struct {
	binary    string
	timeout   time.Duration
	allowList *AllowList
	logger    *slog.Logger
	run       runFunc
}

// New validates the config and returns a Resolver.
func New(config Config) (*Resolver, error) {
	if config.Logger == nil {
		return nil, fmt.Errorf("resolver: Logger is required")
	}
	binary := config.Binary
	if binary == "" {
		binary = "conan"
	}
	timeout := config.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	run := config.run
	if run == nil {
		run = runCommand
	}
	return &Resolver{
		binary:    binary,
		timeout:   timeout,
		allowList: config.AllowList,
		logger:    config.Logger,
		run:       run,
	}, nil
}

// Resolve computes the dependency graph for (name, version) under the
// given settings. The returned graph carries the resolver's node
// order; the caller applies the host-context filter.
//
// Error classification: ErrUnavailable when the binary cannot be
// found or started, ErrTimeout when the deadline expires, and
// *ResolutionError when the CLI exits non-zero.
func (r *Resolver) Resolve(ctx context.Context, name, version string, tuple settings.Tuple) (*depgraph.Graph, error) {
	if err := validateRef(name, version); err != nil {
		return nil, err
	}
	if err := validateSettings(tuple); err != nil {
		return nil, err
	}
	if !r.allowList.Allows(name) {
		return nil, fmt.Errorf("resolver: package %q not in allow-list", name)
	}

	workDir, err := os.MkdirTemp("", "crateforge-resolve-*")
	if err != nil {
		return nil, fmt.Errorf("creating resolver work directory: %w", err)
	}
	defer os.RemoveAll(workDir)

	conanfile := fmt.Sprintf("[requires]\n%s/%s\n", name, version)
	if err := os.WriteFile(filepath.Join(workDir, "conanfile.txt"), []byte(conanfile), 0o644); err != nil {
		return nil, fmt.Errorf("writing conanfile: %w", err)
	}

	profile := profileText(tuple)
	profilePath := filepath.Join(workDir, "profile")
	if err := os.WriteFile(profilePath, []byte(profile), 0o644); err != nil {
		return nil, fmt.Errorf("writing profile: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	args := []string{
		"install", "conanfile.txt",
		"--profile:host", profilePath,
		"--format", "json",
		"--build=never",
	}

	start := time.Now()
	output, err := r.run(ctx, workDir, r.binary, args)
	if err != nil {
		return nil, classifyRunError(ctx, err)
	}

	graph, err := depgraph.Parse(output)
	if err != nil {
		return nil, &ResolutionError{Stderr: fmt.Sprintf("unparseable resolver output: %v", err)}
	}

	r.logger.Info("external resolution complete",
		"package", name,
		"version", version,
		"settings", tuple.String(),
		"nodes", len(graph.Refs),
		"duration", time.Since(start))

	return graph, nil
}

// profileText renders the settings tuple as a conan profile.
func profileText(tuple settings.Tuple) string {
	return fmt.Sprintf(`[settings]
os=%s
arch=%s
compiler=%s
compiler.version=%s
build_type=%s
`, tuple.OS, tuple.Arch, tuple.Compiler, tuple.CompilerVersion, tuple.BuildType)
}

// classifyRunError maps subprocess failures onto the package's typed
// errors. The context is consulted because exec reports a killed
// process as a generic exit failure.
func classifyRunError(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	if errors.Is(err, exec.ErrNotFound) {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return &ResolutionError{
			ExitCode: exitErr.ExitCode(),
			Stderr:   string(bytes.TrimSpace(exitErr.Stderr)),
		}
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}

func runCommand(ctx context.Context, dir, binary string, args []string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, binary, args...)
	cmd.Dir = dir
	return cmd.Output()
}
