// Copyright 2026 The Crateforge Authors
// SPDX-License-Identifier: Apache-2.0

package bundle

import (
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"os"
	"time"

	"github.com/klauspost/compress/zip"

	"github.com/crateforge/crateforge/lib/normalize"
)

const (
	manifestFileName = "bundle_manifest.json"
	readmeFileName   = "README.txt"
)

// writeSegregated packs each package's original archive untouched
// into its own directory, with the recipe and a per-package info
// file, plus the container manifest and README at the root.
func writeSegregated(w io.Writer, items []*item, manifest *Manifest) error {
	zw := zip.NewWriter(w)

	// Two binaries of the same package version can share a closure
	// (same settings, different options, distinct package IDs). Their
	// directories carry the package ID so no zip entry name repeats.
	versionCount := make(map[string]int)
	for _, it := range items {
		versionCount[it.binary.PackageName+"/"+it.binary.Version]++
	}

	for _, it := range items {
		dir := fmt.Sprintf("%s-%s", it.binary.PackageName, it.binary.Version)
		if versionCount[it.binary.PackageName+"/"+it.binary.Version] > 1 {
			dir += "-" + it.binary.PackageID
		}
		modTime := normalize.ClampTime(it.binary.CreatedAt)

		archiveName := fmt.Sprintf("%s/%s.tar.gz", dir, dir)
		if err := addEntry(zw, archiveName, it.data, modTime, 0o644); err != nil {
			return err
		}

		if it.recipe != "" {
			if err := addEntry(zw, dir+"/conanfile.py", []byte(it.recipe), modTime, 0o644); err != nil {
				return err
			}
		}

		info, err := json.MarshalIndent(manifestEntry(it.binary, it.entryType), "", "  ")
		if err != nil {
			return fmt.Errorf("encoding bundle info for %s: %w", it.ref(), err)
		}
		if err := addEntry(zw, dir+"/bundle_info.json", info, modTime, 0o644); err != nil {
			return err
		}
	}

	if err := addManifestAndReadme(zw, manifest); err != nil {
		return err
	}
	return zw.Close()
}

// writeInterlaced merges the normalized trees of every package into
// one build-ready layout: include/ namespaced per package, lib/, bin/
// and cmake/ flat, leftovers under other/ namespaced per package.
//
// Flat directories can collide across packages. The last package in
// closure order wins and the collision is recorded as a manifest
// note, so the winner is deterministic and visible.
func writeInterlaced(w io.Writer, items []*item, manifest *Manifest) error {
	type planned struct {
		zipPath string
		file    normalize.File
	}

	var plan []planned
	index := make(map[string]int)
	owners := make(map[string]string)

	for _, it := range items {
		pkg := it.binary.PackageName
		for _, file := range it.tree.Files {
			zipPath := interlacedPath(pkg, file)
			if previous, ok := index[zipPath]; ok {
				manifest.Notes = append(manifest.Notes,
					fmt.Sprintf("%s from %s overwrote the copy from %s",
						zipPath, pkg, owners[zipPath]))
				plan[previous] = planned{zipPath: zipPath, file: file}
				owners[zipPath] = pkg
				continue
			}
			index[zipPath] = len(plan)
			owners[zipPath] = pkg
			plan = append(plan, planned{zipPath: zipPath, file: file})
		}
	}

	zw := zip.NewWriter(w)
	for _, entry := range plan {
		if err := addDiskEntry(zw, entry.zipPath, entry.file); err != nil {
			return err
		}
	}
	if err := addManifestAndReadme(zw, manifest); err != nil {
		return err
	}
	return zw.Close()
}

// interlacedPath maps a classified file to its container path.
func interlacedPath(pkg string, file normalize.File) string {
	switch file.Category {
	case normalize.CategoryInclude:
		return "include/" + pkg + "/" + file.Path
	case normalize.CategoryOther:
		return "other/" + pkg + "/" + file.Path
	default:
		return string(file.Category) + "/" + file.Path
	}
}

// writeSinglePackage zips one normalized package tree as-is:
// include/, lib/, bin/, cmake/, other/ with no namespacing.
func writeSinglePackage(w io.Writer, it *item) error {
	zw := zip.NewWriter(w)
	for _, file := range it.tree.Files {
		zipPath := string(file.Category) + "/" + file.Path
		if err := addDiskEntry(zw, zipPath, file); err != nil {
			return err
		}
	}
	return zw.Close()
}

func addManifestAndReadme(zw *zip.Writer, manifest *Manifest) error {
	encoded, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding manifest: %w", err)
	}
	modTime := normalize.ClampTime(manifest.GeneratedAt)
	if err := addEntry(zw, manifestFileName, encoded, modTime, 0o644); err != nil {
		return err
	}
	return addEntry(zw, readmeFileName, []byte(readmeText(manifest)), modTime, 0o644)
}

func addEntry(zw *zip.Writer, name string, data []byte, modTime time.Time, mode fs.FileMode) error {
	writer, err := createEntry(zw, name, modTime, mode)
	if err != nil {
		return err
	}
	if _, err := writer.Write(data); err != nil {
		return fmt.Errorf("writing zip entry %s: %w", name, err)
	}
	return nil
}

func addDiskEntry(zw *zip.Writer, name string, file normalize.File) error {
	writer, err := createEntry(zw, name, file.ModTime, file.Mode)
	if err != nil {
		return err
	}
	source, err := os.Open(file.DiskPath)
	if err != nil {
		return fmt.Errorf("opening extracted file %s: %w", file.DiskPath, err)
	}
	defer source.Close()
	if _, err := io.Copy(writer, source); err != nil {
		return fmt.Errorf("writing zip entry %s: %w", name, err)
	}
	return nil
}

func createEntry(zw *zip.Writer, name string, modTime time.Time, mode fs.FileMode) (io.Writer, error) {
	header := &zip.FileHeader{
		Name:     name,
		Method:   zip.Deflate,
		Modified: normalize.ClampTime(modTime),
	}
	header.SetMode(mode)
	writer, err := zw.CreateHeader(header)
	if err != nil {
		return nil, fmt.Errorf("creating zip entry %s: %w", name, err)
	}
	return writer, nil
}
