// Copyright 2026 The Crateforge Authors
// SPDX-License-Identifier: Apache-2.0

package normalize

import (
	"archive/tar"
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"
)

type archiveEntry struct {
	name    string
	content string
	modTime time.Time
}

func buildArchive(t *testing.T, entries []archiveEntry) []byte {
	t.Helper()
	var buffer bytes.Buffer
	gz := gzip.NewWriter(&buffer)
	tw := tar.NewWriter(gz)
	for _, entry := range entries {
		modTime := entry.modTime
		if modTime.IsZero() {
			modTime = time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)
		}
		header := &tar.Header{
			Name:    entry.name,
			Mode:    0o644,
			Size:    int64(len(entry.content)),
			ModTime: modTime,
		}
		if err := tw.WriteHeader(header); err != nil {
			t.Fatalf("writing tar header %s: %v", entry.name, err)
		}
		if _, err := tw.Write([]byte(entry.content)); err != nil {
			t.Fatalf("writing tar content %s: %v", entry.name, err)
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatalf("closing tar: %v", err)
	}
	if err := gz.Close(); err != nil {
		t.Fatalf("closing gzip: %v", err)
	}
	return buffer.Bytes()
}

func findFile(tree *Tree, category Category, path string) *File {
	for i := range tree.Files {
		if tree.Files[i].Category == category && tree.Files[i].Path == path {
			return &tree.Files[i]
		}
	}
	return nil
}

func TestClassifierScansEverySegment(t *testing.T) {
	archive := buildArchive(t, []archiveEntry{
		{name: "b/9f2a/p/include/foo.h", content: "#pragma once"},
		{name: "b/9f2a/p/include/zlib/zconf.h", content: "config"},
		{name: "b/9f2a/p/lib/libz.a", content: "objects"},
		{name: "b/9f2a/p/bin/minigzip", content: "elf"},
		{name: "b/9f2a/p/cmake/zlibConfig.cmake", content: "cmake"},
	})

	tree, err := Extract(bytes.NewReader(archive), t.TempDir())
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if len(tree.Files) != 5 {
		t.Fatalf("extracted %d files, want 5", len(tree.Files))
	}
	for _, want := range []struct {
		category Category
		path     string
	}{
		{CategoryInclude, "foo.h"},
		{CategoryInclude, "zlib/zconf.h"},
		{CategoryLib, "libz.a"},
		{CategoryBin, "minigzip"},
		{CategoryCmake, "zlibConfig.cmake"},
	} {
		if findFile(tree, want.category, want.path) == nil {
			t.Errorf("missing %s/%s in %v", want.category, want.path, tree.Files)
		}
	}
	if len(tree.Notes) != 0 {
		t.Errorf("unexpected notes: %v", tree.Notes)
	}
}

func TestExtractedContentOnDisk(t *testing.T) {
	archive := buildArchive(t, []archiveEntry{
		{name: "p/include/foo.h", content: "#pragma once"},
	})
	destDir := t.TempDir()

	tree, err := Extract(bytes.NewReader(archive), destDir)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	file := findFile(tree, CategoryInclude, "foo.h")
	if file == nil {
		t.Fatal("foo.h not extracted")
	}
	if file.DiskPath != filepath.Join(destDir, "include", "foo.h") {
		t.Errorf("DiskPath = %q", file.DiskPath)
	}
	onDisk, err := os.ReadFile(file.DiskPath)
	if err != nil {
		t.Fatalf("reading extracted file: %v", err)
	}
	if string(onDisk) != "#pragma once" {
		t.Errorf("extracted content = %q", onDisk)
	}
}

func TestMetadataFilesSkipped(t *testing.T) {
	archive := buildArchive(t, []archiveEntry{
		{name: "p/conaninfo.txt", content: "settings"},
		{name: "p/conanmanifest.txt", content: "hashes"},
		{name: "p/pkglist.json", content: "{}"},
		{name: "p/conan_sources.tgz", content: "tgz"},
		{name: "p/conanfile.py", content: "class Recipe: pass"},
		{name: "p/lib/libz.a", content: "objects"},
	})

	tree, err := Extract(bytes.NewReader(archive), t.TempDir())
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if len(tree.Files) != 1 || tree.Files[0].Path != "libz.a" {
		t.Errorf("Files = %v, want only lib/libz.a", tree.Files)
	}
}

func TestCacheDirContentDropped(t *testing.T) {
	archive := buildArchive(t, []archiveEntry{
		{name: "e/recipe_export.txt", content: "export"},
		{name: "d/download.lock", content: "lock"},
		{name: "s/src/main.c", content: "int main(){}"},
		{name: "es/exported_source.c", content: "src"},
		{name: "p/lib/libz.a", content: "objects"},
	})

	tree, err := Extract(bytes.NewReader(archive), t.TempDir())
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if len(tree.Files) != 1 || tree.Files[0].Category != CategoryLib {
		t.Errorf("Files = %v, want only the lib payload", tree.Files)
	}
	if len(tree.Notes) != 0 {
		t.Errorf("cache content should drop silently, got notes %v", tree.Notes)
	}
}

func TestUnclassifiedRoutedToOther(t *testing.T) {
	archive := buildArchive(t, []archiveEntry{
		{name: "p/licenses/LICENSE", content: "MIT"},
	})

	tree, err := Extract(bytes.NewReader(archive), t.TempDir())
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	file := findFile(tree, CategoryOther, "p/licenses/LICENSE")
	if file == nil {
		t.Fatalf("Files = %v, want other/p/licenses/LICENSE", tree.Files)
	}
	if len(tree.Notes) != 1 || !strings.Contains(tree.Notes[0], "other/") {
		t.Errorf("Notes = %v, want one unclassified note", tree.Notes)
	}
}

func TestTimestampClamp(t *testing.T) {
	archive := buildArchive(t, []archiveEntry{
		{name: "p/lib/old.a", content: "x", modTime: time.Unix(0, 0)},
		{name: "p/lib/new.a", content: "x", modTime: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)},
	})

	tree, err := Extract(bytes.NewReader(archive), t.TempDir())
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	old := findFile(tree, CategoryLib, "old.a")
	if old == nil || !old.ModTime.Equal(ZipEpoch) {
		t.Errorf("pre-epoch timestamp not clamped: %+v", old)
	}
	recent := findFile(tree, CategoryLib, "new.a")
	if recent == nil || recent.ModTime.Year() != 2026 {
		t.Errorf("post-epoch timestamp altered: %+v", recent)
	}
}

func TestZipSlipRejected(t *testing.T) {
	archive := buildArchive(t, []archiveEntry{
		{name: "../../etc/passwd", content: "root"},
	})

	if _, err := Extract(bytes.NewReader(archive), t.TempDir()); !errors.Is(err, ErrCorrupt) {
		t.Errorf("Extract error = %v, want ErrCorrupt", err)
	}
}

func TestCorruptArchive(t *testing.T) {
	if _, err := Extract(bytes.NewReader([]byte("not a gzip stream")), t.TempDir()); !errors.Is(err, ErrCorrupt) {
		t.Errorf("Extract error = %v, want ErrCorrupt", err)
	}
}

func TestEmptyArchive(t *testing.T) {
	archive := buildArchive(t, nil)
	tree, err := Extract(bytes.NewReader(archive), t.TempDir())
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if len(tree.Files) != 0 {
		t.Errorf("empty archive produced files: %v", tree.Files)
	}
}
