// Copyright 2026 The Crateforge Authors
// SPDX-License-Identifier: Apache-2.0

// Package version exposes build-time version information. The values
// are injected at link time via -ldflags; defaults identify a local
// development build.
package version

import (
	"fmt"
	"runtime"
)

// Set at build time via -ldflags "-X github.com/crateforge/crateforge/lib/version.Version=..."
var (
	// Version is the semantic version of this build.
	Version = "dev"

	// GitCommit is the short commit SHA the binary was built from.
	GitCommit = "unknown"

	// GitDirty is "true" when the working tree had uncommitted
	// changes at build time.
	GitDirty = ""

	// BuildTime is the UTC build timestamp.
	BuildTime = "unknown"
)

// Info returns the one-line version string printed by --version.
func Info() string {
	dirty := ""
	if GitDirty == "true" {
		dirty = "-dirty"
	}
	return fmt.Sprintf("%s (%s%s, %s)", Version, GitCommit, dirty, BuildTime)
}

// Full returns detailed version information including Go version.
func Full() string {
	return fmt.Sprintf("%s\n  Go: %s\n  Platform: %s/%s",
		Info(), runtime.Version(), runtime.GOOS, runtime.GOARCH)
}
