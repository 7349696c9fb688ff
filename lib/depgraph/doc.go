// Copyright 2026 The Crateforge Authors
// SPDX-License-Identifier: Apache-2.0

// Package depgraph parses stored dependency graph snapshots and
// resolves them against the catalog.
//
// A graph snapshot is the resolver's JSON output recorded at upload
// time. It is loosely typed at the boundary (a node map keyed by
// string indices), so Parse converts it into a strict, validated
// list of refs on ingestion — malformed nodes are rejected with a
// note, never propagated as raw maps into the pipeline. Graphs are
// acyclic by construction upstream; this package does not detect
// cycles.
//
// Resolve performs the per-entry catalog lookup. A lookup miss is
// non-fatal: it produces an Unresolved entry carrying the requested
// identity, and the pipeline continues with the remaining
// dependencies.
package depgraph
