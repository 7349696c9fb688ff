// Copyright 2026 The Crateforge Authors
// SPDX-License-Identifier: Apache-2.0

// Package catalog is the registry's relational record of packages,
// versions, and binaries, backed by SQLite.
//
// The bundle pipeline treats the catalog as a read-only collaborator:
// it looks up versions by (name, version) and binaries by
// (name, version, package_id), and reads each binary's settings
// tuple, blob key, and stored dependency graph. The only writes are
// the append-only upload path (AddPackage / AddVersion / AddBinary)
// and download counters; binaries and their graphs are immutable
// once recorded.
package catalog
