// Copyright 2026 The Crateforge Authors
// SPDX-License-Identifier: Apache-2.0

// crateforge-registry is the download side of the Crateforge binary
// package registry. It serves previews, bundle containers, and direct
// binary downloads over HTTP, backed by the SQLite catalog and the
// filesystem blob store.
//
// Configuration comes from a YAML file named by --config or the
// CRATEFORGE_CONFIG environment variable; without either, built-in
// defaults rooted at ~/.local/share/crateforge apply.
package main
