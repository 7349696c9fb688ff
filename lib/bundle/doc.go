// Copyright 2026 The Crateforge Authors
// SPDX-License-Identifier: Apache-2.0

// Package bundle assembles downloadable containers for a package
// version and settings tuple: the full dependency closure of compiled
// binaries, packed as a zip in one of two layouts.
//
// The segregated layout ships each package's original tar.gz archive
// untouched in its own directory, alongside the recipe and a
// per-package info file. The interlaced layout extracts and
// normalizes every archive, namespaces headers per package under
// include/, and merges lib/, bin/, and cmake/ flat, producing a tree
// a build system can point at directly.
//
// The Service orchestrates the pipeline: catalog lookup, settings
// match, dependency resolution (from the stored graph snapshot or the
// external resolver, per configuration), concurrent artifact fetch,
// and container assembly. Failures carry a Condition so the HTTP
// layer can map them onto status codes without string matching.
package bundle
