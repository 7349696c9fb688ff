// Copyright 2026 The Crateforge Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers for Crateforge
// packages.
//
// [TarGz] builds a tar.gz archive from a path→content map, in the
// shape compiled-package uploads arrive in. Tests across the bundle
// and registry packages use it instead of committing binary fixtures.
//
// [RequireReceive] encapsulates the timeout safety valve pattern
// (select with time.After fallback) so individual tests do not need
// direct time.After calls.
//
// All helpers call t.Fatalf on failure rather than returning errors,
// since test setup failures are not recoverable.
package testutil
