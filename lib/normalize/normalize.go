// Copyright 2026 The Crateforge Authors
// SPDX-License-Identifier: Apache-2.0

package normalize

import (
	"archive/tar"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"
)

// Category is the canonical top-level directory a file is classified
// into.
type Category string

const (
	CategoryInclude Category = "include"
	CategoryLib     Category = "lib"
	CategoryBin     Category = "bin"
	CategoryCmake   Category = "cmake"
	CategoryOther   Category = "other"
)

// categories maps recognized path segments to their category.
// Classification is first-match: the leftmost recognized segment wins
// and everything after it becomes the file's relative path.
var categories = map[string]Category{
	"include": CategoryInclude,
	"lib":     CategoryLib,
	"bin":     CategoryBin,
	"cmake":   CategoryCmake,
}

// skipFiles are resolver bookkeeping files that never belong in a
// bundle, matched by basename anywhere in the archive.
var skipFiles = map[string]struct{}{
	"conaninfo.txt":     {},
	"conanmanifest.txt": {},
	"pkglist.json":      {},
	"conan_sources.tgz": {},
	"conanfile.py":      {},
}

// cacheDirs are build-cache folder names (export, download, source,
// export_sources). They are transparent while scanning for a category
// segment; a file that sits under one and never reaches a category is
// cache bookkeeping, not package payload, and is dropped.
var cacheDirs = map[string]struct{}{
	"e":  {},
	"d":  {},
	"s":  {},
	"es": {},
}

// ZipEpoch is the earliest timestamp the zip format can represent.
// Archive entries older than this (notably the zero Unix time that
// build caches often emit) are clamped to it.
var ZipEpoch = time.Date(1980, 1, 1, 0, 0, 0, 0, time.UTC)

// ClampTime returns t, or ZipEpoch when t is earlier.
func ClampTime(t time.Time) time.Time {
	if t.Before(ZipEpoch) {
		return ZipEpoch
	}
	return t
}

// File is one classified file extracted from an archive.
type File struct {
	// Category is the canonical top-level directory.
	Category Category

	// Path is the file's path relative to its category directory,
	// always slash-separated.
	Path string

	// DiskPath is where the extracted bytes live, under the
	// destination directory passed to Extract.
	DiskPath string

	Size    int64
	Mode    fs.FileMode
	ModTime time.Time
}

// Tree is the result of normalizing one archive.
type Tree struct {
	Files []File

	// Notes records anything surprising: unclassified files routed to
	// other/, skipped symlinks.
	Notes []string
}

// ErrCorrupt wraps archive decode failures so callers can distinguish
// a damaged blob from an IO problem.
var ErrCorrupt = errors.New("normalize: corrupt archive")

// Extract reads a tar.gz archive from r, classifies every file, and
// writes the classified tree under destDir (destDir/<category>/<path>).
// The caller owns destDir and removes it when done with the tree.
func Extract(r io.Reader, destDir string) (*Tree, error) {
	gz, err := gzip.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	defer gz.Close()

	tree := &Tree{}
	reader := tar.NewReader(gz)
	for {
		header, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
		}

		name := path.Clean(strings.TrimPrefix(header.Name, "./"))
		if name == "." || name == "" {
			continue
		}
		// Zip-slip guard: nothing escapes the destination directory.
		if path.IsAbs(header.Name) || strings.HasPrefix(name, "..") {
			return nil, fmt.Errorf("%w: entry %q escapes archive root", ErrCorrupt, header.Name)
		}

		switch header.Typeflag {
		case tar.TypeDir:
			continue
		case tar.TypeReg:
		default:
			tree.Notes = append(tree.Notes,
				fmt.Sprintf("Skipped non-regular entry: %s", name))
			continue
		}

		if _, skip := skipFiles[path.Base(name)]; skip {
			continue
		}

		category, relPath, sawCacheDir := classify(name)
		if category == CategoryOther {
			if sawCacheDir {
				// Export/download/source cache content, not payload.
				continue
			}
			tree.Notes = append(tree.Notes,
				fmt.Sprintf("Unclassified file routed to other/: %s", name))
		}

		diskPath := filepath.Join(destDir, string(category), filepath.FromSlash(relPath))
		if err := writeFile(diskPath, reader, header.FileInfo().Mode().Perm()); err != nil {
			return nil, fmt.Errorf("extracting %s: %w", name, err)
		}

		tree.Files = append(tree.Files, File{
			Category: category,
			Path:     relPath,
			DiskPath: diskPath,
			Size:     header.Size,
			Mode:     header.FileInfo().Mode().Perm(),
			ModTime:  ClampTime(header.ModTime),
		})
	}

	return tree, nil
}

// classify scans the path segments left to right for a category
// segment. Returns the category, the path relative to it, and whether
// a cache folder segment was crossed before classification failed.
func classify(name string) (Category, string, bool) {
	segments := strings.Split(name, "/")
	sawCacheDir := false
	for i, segment := range segments[:len(segments)-1] {
		if category, ok := categories[segment]; ok {
			return category, strings.Join(segments[i+1:], "/"), false
		}
		if _, ok := cacheDirs[segment]; ok {
			sawCacheDir = true
		}
	}
	return CategoryOther, name, sawCacheDir
}

func writeFile(diskPath string, r io.Reader, perm fs.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(diskPath), 0o755); err != nil {
		return err
	}
	if perm == 0 {
		perm = 0o644
	}
	file, err := os.OpenFile(diskPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	if _, err := io.Copy(file, r); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}
