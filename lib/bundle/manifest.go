// Copyright 2026 The Crateforge Authors
// SPDX-License-Identifier: Apache-2.0

package bundle

import (
	"fmt"
	"strings"
	"time"

	"github.com/crateforge/crateforge/lib/catalog"
)

// Layout selects the container format.
type Layout string

const (
	// LayoutSegregated keeps each package's original archive in its
	// own directory.
	LayoutSegregated Layout = "segregated"

	// LayoutInterlaced merges normalized package trees into one
	// build-ready layout.
	LayoutInterlaced Layout = "interlaced"
)

// ParseLayout parses a layout name.
func ParseLayout(name string) (Layout, error) {
	switch Layout(name) {
	case LayoutSegregated, LayoutInterlaced:
		return Layout(name), nil
	default:
		return "", fmt.Errorf("unknown bundle layout: %q", name)
	}
}

// EntryType distinguishes the requested package from its
// dependencies in manifests.
type EntryType string

const (
	EntryMain       EntryType = "main"
	EntryDependency EntryType = "dependency"
)

// ManifestEntry describes one package included in a container.
type ManifestEntry struct {
	Package   string    `json:"package"`
	Version   string    `json:"version"`
	Type      EntryType `json:"type"`
	PackageID string    `json:"package_id"`
	Settings  string    `json:"settings"`
	Size      int64     `json:"size"`
}

// Manifest is the container-level record written to every bundle and
// served by the manifest endpoint.
type Manifest struct {
	Package          string          `json:"package"`
	Version          string          `json:"version"`
	Settings         string          `json:"settings"`
	Layout           Layout          `json:"layout"`
	ResolutionMethod string          `json:"resolution_method"`
	GeneratedAt      time.Time       `json:"generated_at"`
	Entries          []ManifestEntry `json:"entries"`
	Notes            []string        `json:"notes,omitempty"`
}

func manifestEntry(binary *catalog.BinaryPackage, entryType EntryType) ManifestEntry {
	return ManifestEntry{
		Package:   binary.PackageName,
		Version:   binary.Version,
		Type:      entryType,
		PackageID: binary.PackageID,
		Settings:  binary.Settings.Summary(),
		Size:      binary.Size,
	}
}

// readmeText renders the human-readable README.txt included at the
// root of every container.
func readmeText(manifest *Manifest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Bundle for %s/%s\n", manifest.Package, manifest.Version)
	fmt.Fprintf(&b, "Settings: %s\n", manifest.Settings)
	fmt.Fprintf(&b, "Layout: %s\n", manifest.Layout)
	fmt.Fprintf(&b, "Resolved via: %s\n", manifest.ResolutionMethod)
	fmt.Fprintf(&b, "Generated: %s\n", manifest.GeneratedAt.Format(time.RFC3339))
	b.WriteString("\nContents:\n")
	for _, entry := range manifest.Entries {
		fmt.Fprintf(&b, "  %s/%s (%s, package_id %s, %d bytes)\n",
			entry.Package, entry.Version, entry.Type, entry.PackageID, entry.Size)
	}
	if manifest.Layout == LayoutSegregated {
		b.WriteString("\nEach package directory contains the original compiled archive,\n")
		b.WriteString("its recipe, and a bundle_info.json describing the binary.\n")
	} else {
		b.WriteString("\nHeaders are namespaced per package under include/. Libraries,\n")
		b.WriteString("binaries, and cmake files are merged flat.\n")
	}
	if len(manifest.Notes) > 0 {
		b.WriteString("\nNotes:\n")
		for _, note := range manifest.Notes {
			fmt.Fprintf(&b, "  - %s\n", note)
		}
	}
	return b.String()
}
