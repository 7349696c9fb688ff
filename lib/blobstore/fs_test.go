// Copyright 2026 The Crateforge Authors
// SPDX-License-Identifier: Apache-2.0

package blobstore

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"os"
	"testing"
	"time"

	"github.com/crateforge/crateforge/lib/clock"
)

func newTestStore(t *testing.T, compression CompressionTag) *FS {
	t.Helper()
	store, err := OpenFS(FSConfig{
		Root:        t.TempDir(),
		Compression: compression,
		Clock:       clock.Fake(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)),
		Logger:      slog.New(slog.DiscardHandler),
	})
	if err != nil {
		t.Fatalf("OpenFS failed: %v", err)
	}
	return store
}

func TestPutFetchRoundTrip(t *testing.T) {
	store := newTestStore(t, CompressionNone)
	ctx := context.Background()
	content := []byte("binary package archive bytes")

	meta, err := store.Put(ctx, "zlib/1.2.13/abc.tgz", content, "application/gzip")
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if meta.Size != int64(len(content)) {
		t.Errorf("meta.Size = %d, want %d", meta.Size, len(content))
	}
	if meta.Compression != "none" {
		t.Errorf("meta.Compression = %q, want none", meta.Compression)
	}

	fetched, err := store.Fetch(ctx, "zlib/1.2.13/abc.tgz")
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if !bytes.Equal(fetched, content) {
		t.Errorf("Fetch returned %q, want %q", fetched, content)
	}
}

func TestFetchMissingBlob(t *testing.T) {
	store := newTestStore(t, CompressionNone)
	if _, err := store.Fetch(context.Background(), "absent/1.0/x.tgz"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Fetch error = %v, want ErrNotFound", err)
	}
}

func TestLocateUncompressed(t *testing.T) {
	store := newTestStore(t, CompressionNone)
	ctx := context.Background()
	content := []byte("archive")

	if _, err := store.Put(ctx, "fmt/10.0.0/def.tgz", content, ""); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	path, err := store.Locate(ctx, "fmt/10.0.0/def.tgz")
	if err != nil {
		t.Fatalf("Locate failed: %v", err)
	}
	onDisk, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading located path: %v", err)
	}
	if !bytes.Equal(onDisk, content) {
		t.Errorf("located file holds %q, want %q", onDisk, content)
	}
}

func TestLocateCompressedBlobFails(t *testing.T) {
	store := newTestStore(t, CompressionZstd)
	ctx := context.Background()

	// Highly compressible content so zstd does not fall back to none.
	content := bytes.Repeat([]byte("conanfile "), 500)
	meta, err := store.Put(ctx, "boost/1.83.0/ghi.tgz", content, "")
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if meta.Compression != "zstd" {
		t.Fatalf("meta.Compression = %q, want zstd", meta.Compression)
	}

	if _, err := store.Locate(ctx, "boost/1.83.0/ghi.tgz"); !errors.Is(err, ErrNotLocatable) {
		t.Errorf("Locate error = %v, want ErrNotLocatable", err)
	}

	// Fetch still round-trips through decompression.
	fetched, err := store.Fetch(ctx, "boost/1.83.0/ghi.tgz")
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if !bytes.Equal(fetched, content) {
		t.Error("Fetch did not return the original content")
	}
}

func TestIncompressibleFallsBackToNone(t *testing.T) {
	store := newTestStore(t, CompressionLZ4)
	ctx := context.Background()

	// Random bytes do not shrink under lz4, like the tar.gz archives
	// the registry actually stores.
	content := make([]byte, 4096)
	random := rand.New(rand.NewSource(42))
	random.Read(content)

	meta, err := store.Put(ctx, "zstd/1.5.5/jkl.tgz", content, "application/gzip")
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if meta.Compression != "none" {
		t.Errorf("meta.Compression = %q, want none fallback", meta.Compression)
	}
	if _, err := store.Locate(ctx, "zstd/1.5.5/jkl.tgz"); err != nil {
		t.Errorf("Locate failed after fallback: %v", err)
	}
}

func TestFetchDetectsCorruption(t *testing.T) {
	store := newTestStore(t, CompressionNone)
	ctx := context.Background()
	content := []byte("pristine archive content")

	if _, err := store.Put(ctx, "zlib/1.2.13/abc.tgz", content, ""); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	// Flip bytes in the stored blob behind the store's back.
	path, err := store.Locate(ctx, "zlib/1.2.13/abc.tgz")
	if err != nil {
		t.Fatalf("Locate failed: %v", err)
	}
	corrupted := append([]byte("X"), content[1:]...)
	if err := os.WriteFile(path, corrupted, 0o644); err != nil {
		t.Fatalf("corrupting blob: %v", err)
	}

	if _, err := store.Fetch(ctx, "zlib/1.2.13/abc.tgz"); !errors.Is(err, ErrChecksumMismatch) {
		t.Errorf("Fetch error = %v, want ErrChecksumMismatch", err)
	}
}

func TestPutReplacesExistingBlob(t *testing.T) {
	store := newTestStore(t, CompressionNone)
	ctx := context.Background()

	if _, err := store.Put(ctx, "fmt/10.0.0/def.tgz", []byte("first"), ""); err != nil {
		t.Fatalf("first Put failed: %v", err)
	}
	if _, err := store.Put(ctx, "fmt/10.0.0/def.tgz", []byte("second"), ""); err != nil {
		t.Fatalf("second Put failed: %v", err)
	}

	fetched, err := store.Fetch(ctx, "fmt/10.0.0/def.tgz")
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if string(fetched) != "second" {
		t.Errorf("Fetch returned %q, want the replacement blob", fetched)
	}
}

func TestDeleteIsIdempotent(t *testing.T) {
	store := newTestStore(t, CompressionNone)
	ctx := context.Background()

	if _, err := store.Put(ctx, "zlib/1.2.13/abc.tgz", []byte("archive"), ""); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := store.Delete(ctx, "zlib/1.2.13/abc.tgz"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if err := store.Delete(ctx, "zlib/1.2.13/abc.tgz"); err != nil {
		t.Errorf("second Delete failed: %v", err)
	}
	if _, err := store.Fetch(ctx, "zlib/1.2.13/abc.tgz"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Fetch after delete = %v, want ErrNotFound", err)
	}
}

func TestInvalidKeysRejected(t *testing.T) {
	store := newTestStore(t, CompressionNone)
	ctx := context.Background()

	for _, key := range []string{"", "../escape", "/absolute", "a/../../b"} {
		if _, err := store.Put(ctx, key, []byte("x"), ""); err == nil {
			t.Errorf("Put accepted invalid key %q", key)
		}
	}
}
