// Copyright 2026 The Crateforge Authors
// SPDX-License-Identifier: Apache-2.0

package resolver

import (
	"errors"
	"fmt"
)

// ErrUnavailable is returned when the resolver binary cannot be found
// or started. The registry is misconfigured or the host is missing
// the CLI; retrying the request will not help until that changes.
var ErrUnavailable = errors.New("resolver: binary unavailable")

// ErrTimeout is returned when resolution exceeds the configured
// deadline. Unlike ErrUnavailable, a retry can succeed.
var ErrTimeout = errors.New("resolver: resolution timed out")

// ResolutionError is returned when the resolver ran but exited
// non-zero (missing dependency, broken remote, invalid settings).
type ResolutionError struct {
	ExitCode int
	Stderr   string
}

func (e *ResolutionError) Error() string {
	if e.Stderr == "" {
		return fmt.Sprintf("resolver: resolution failed with exit code %d", e.ExitCode)
	}
	return fmt.Sprintf("resolver: resolution failed with exit code %d: %s", e.ExitCode, e.Stderr)
}
