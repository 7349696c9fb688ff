// Copyright 2026 The Crateforge Authors
// SPDX-License-Identifier: Apache-2.0

// Package settings defines the binary settings tuple and the profile
// matcher that compares a requested tuple against the binaries
// available for a package version.
//
// A settings tuple identifies a build configuration: operating
// system, architecture, compiler, compiler version, and build type.
// Build options are deliberately not part of the tuple — two binaries
// built with identical settings but different options carry different
// package IDs and are both valid matches for the same request.
package settings
