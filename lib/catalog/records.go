// Copyright 2026 The Crateforge Authors
// SPDX-License-Identifier: Apache-2.0

package catalog

import (
	"time"

	"github.com/crateforge/crateforge/lib/settings"
)

// Package is the top-level registry entity: a unique name owning one
// or more versions.
type Package struct {
	Name          string
	Description   string
	Homepage      string
	License       string
	Author        string
	DownloadCount int64
	CreatedAt     time.Time
}

// PackageVersion is one released version of a package. It carries the
// recipe recorded at upload time.
type PackageVersion struct {
	Package        string
	Version        string
	RecipeRevision string
	RecipeContent  string
	UploadedBy     string
	CreatedAt      time.Time
}

// FullName returns the "name/version" reference form.
func (v *PackageVersion) FullName() string {
	return v.Package + "/" + v.Version
}

// BinaryPackage is one compiled binary of a package version. The
// settings tuple, blob key, checksum, and dependency graph are
// recorded once at upload time by the external resolver and never
// modified afterwards.
type BinaryPackage struct {
	PackageName string
	Version     string

	// PackageID is the content-derived identifier for this binary.
	// Binaries with identical settings but different build options
	// have distinct package IDs.
	PackageID string

	Settings settings.Tuple

	// OptionsJSON is the build options blob as uploaded. Options are
	// deliberately excluded from settings matching; the field exists
	// for display and manifests only.
	OptionsJSON string

	// BlobKey addresses the compiled archive in the blob store.
	BlobKey string

	// Size is the archive size in bytes.
	Size int64

	// Checksum is the BLAKE3 hex digest of the archive.
	Checksum string

	// DependencyGraph is the raw resolver graph JSON snapshot
	// recorded at upload time. Parsed by lib/depgraph; opaque here.
	DependencyGraph []byte

	DownloadCount int64
	CreatedAt     time.Time
}

// SettingsTuple implements settings.Candidate.
func (b *BinaryPackage) SettingsTuple() settings.Tuple {
	return b.Settings
}
