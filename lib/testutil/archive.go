// Copyright 2026 The Crateforge Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"archive/tar"
	"bytes"
	"sort"
	"time"

	"github.com/klauspost/compress/gzip"
)

// TarGz builds a tar.gz archive containing the given files, sorted by
// path for determinism. Every entry is a regular file with mode 0644
// and a fixed timestamp.
func TarGz(t interface {
	Helper()
	Fatalf(format string, args ...any)
}, files map[string]string) []byte {
	t.Helper()

	paths := make([]string, 0, len(files))
	for path := range files {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	var buffer bytes.Buffer
	gz := gzip.NewWriter(&buffer)
	tw := tar.NewWriter(gz)
	for _, path := range paths {
		content := files[path]
		header := &tar.Header{
			Name:    path,
			Mode:    0o644,
			Size:    int64(len(content)),
			ModTime: time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC),
		}
		if err := tw.WriteHeader(header); err != nil {
			t.Fatalf("writing tar header %s: %v", path, err)
		}
		if _, err := tw.Write([]byte(content)); err != nil {
			t.Fatalf("writing tar content %s: %v", path, err)
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatalf("closing tar writer: %v", err)
	}
	if err := gz.Close(); err != nil {
		t.Fatalf("closing gzip writer: %v", err)
	}
	return buffer.Bytes()
}
