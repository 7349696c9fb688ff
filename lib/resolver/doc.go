// Copyright 2026 The Crateforge Authors
// SPDX-License-Identifier: Apache-2.0

// Package resolver runs the conan CLI to compute a dependency graph
// from scratch, for registries that do not trust the graph snapshot
// stored alongside a binary upload.
//
// The subprocess boundary is deliberately narrow: package names and
// versions are validated against a character allow-list (and
// optionally a configured package allow-list file) before they appear
// on a command line, the CLI runs in a throwaway working directory
// with a generated conanfile and profile, and the call is bounded by
// a context timeout. Failures are typed so the bundle service can map
// them to distinct conditions: the binary missing entirely, the
// resolution failing, or the resolution timing out.
package resolver
