// Copyright 2026 The Crateforge Authors
// SPDX-License-Identifier: Apache-2.0

package blobstore

import (
	"context"
	"encoding/hex"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/zeebo/blake3"

	"github.com/crateforge/crateforge/lib/clock"
	"github.com/crateforge/crateforge/lib/codec"
)

// Directory names within the store root.
const (
	blobDir = "blobs"
	metaDir = "meta"
	tmpDir  = "tmp"
)

// FSConfig configures a filesystem blob store.
type FSConfig struct {
	// Root is the store directory. Created if it does not exist.
	Root string

	// Compression is the at-rest compression applied to new blobs.
	// Individual blobs fall back to none when incompressible.
	Compression CompressionTag

	// FetchRetries is how many times Fetch retries a failed disk read
	// before giving up. Zero means no retries.
	FetchRetries int

	// RetryDelay is the base delay between fetch retries; the delay
	// doubles on each attempt. Defaults to 200ms when zero.
	RetryDelay time.Duration

	Clock  clock.Clock
	Logger *slog.Logger
}

// FS is a filesystem-backed blob store. Blobs live under
// root/blobs/<shard>/<key>, each with a CBOR metadata sidecar under
// root/meta. Writes go through root/tmp and an atomic rename, so a
// crash mid-write never leaves a partial blob visible.
//
// FS is safe for concurrent use. Concurrent Puts to the same key race
// on the rename; the last writer wins, which matches the registry's
// last-upload-wins semantics.
type FS struct {
	root        string
	compression CompressionTag
	retries     int
	retryDelay  time.Duration
	clock       clock.Clock
	logger      *slog.Logger
}

// OpenFS creates (or reopens) a filesystem blob store rooted at
// config.Root.
func OpenFS(config FSConfig) (*FS, error) {
	if config.Root == "" {
		return nil, fmt.Errorf("blobstore: Root is required")
	}
	if config.Clock == nil {
		return nil, fmt.Errorf("blobstore: Clock is required")
	}
	if config.Logger == nil {
		return nil, fmt.Errorf("blobstore: Logger is required")
	}

	for _, dir := range []string{
		config.Root,
		filepath.Join(config.Root, blobDir),
		filepath.Join(config.Root, metaDir),
		filepath.Join(config.Root, tmpDir),
	} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating store directory %s: %w", dir, err)
		}
	}

	retryDelay := config.RetryDelay
	if retryDelay == 0 {
		retryDelay = 200 * time.Millisecond
	}

	return &FS{
		root:        config.Root,
		compression: config.Compression,
		retries:     config.FetchRetries,
		retryDelay:  retryDelay,
		clock:       config.Clock,
		logger:      config.Logger,
	}, nil
}

// Put stores data under key, replacing any existing blob. The blob is
// compressed per the store's configuration (falling back to none for
// incompressible data) and its metadata sidecar is written last, so a
// sidecar on disk always describes a complete blob.
func (s *FS) Put(ctx context.Context, key string, data []byte, contentType string) (*Meta, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}

	checksum := blake3.Sum256(data)

	stored, tag, err := compressWithFallback(data, s.compression)
	if err != nil {
		return nil, fmt.Errorf("compressing blob %s: %w", key, err)
	}

	meta := &Meta{
		Size:        int64(len(data)),
		Checksum:    hex.EncodeToString(checksum[:]),
		ContentType: contentType,
		Compression: tag.String(),
		StoredAt:    s.clock.Now().UTC(),
	}

	if err := s.writeAtomic(s.blobPath(key), stored); err != nil {
		return nil, fmt.Errorf("writing blob %s: %w", key, err)
	}

	sidecar, err := codec.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("encoding metadata for %s: %w", key, err)
	}
	if err := s.writeAtomic(s.metaPath(key), sidecar); err != nil {
		return nil, fmt.Errorf("writing metadata for %s: %w", key, err)
	}

	s.logger.Debug("blob stored",
		"key", key,
		"size", meta.Size,
		"stored_size", len(stored),
		"compression", meta.Compression)

	return meta, nil
}

// Stat returns the metadata sidecar for key. Returns ErrNotFound when
// no blob exists under key.
func (s *FS) Stat(ctx context.Context, key string) (*Meta, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}

	raw, err := os.ReadFile(s.metaPath(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("blob %s: %w", key, ErrNotFound)
		}
		return nil, fmt.Errorf("reading metadata for %s: %w", key, err)
	}

	var meta Meta
	if err := codec.Unmarshal(raw, &meta); err != nil {
		return nil, fmt.Errorf("decoding metadata for %s: %w", key, err)
	}
	return &meta, nil
}

// Locate returns the on-disk path of the blob under key when it is
// stored uncompressed. Compressed blobs return ErrNotLocatable; the
// caller falls back to Fetch.
func (s *FS) Locate(ctx context.Context, key string) (string, error) {
	meta, err := s.Stat(ctx, key)
	if err != nil {
		return "", err
	}
	if meta.Compression != CompressionNone.String() {
		return "", fmt.Errorf("blob %s stored as %s: %w", key, meta.Compression, ErrNotLocatable)
	}
	return s.blobPath(key), nil
}

// Fetch reads the blob under key, decompresses it, and verifies the
// checksum from the metadata sidecar. Disk read failures (other than
// the blob not existing) are retried with backoff up to the
// configured limit.
func (s *FS) Fetch(ctx context.Context, key string) ([]byte, error) {
	meta, err := s.Stat(ctx, key)
	if err != nil {
		return nil, err
	}

	tag, err := ParseCompressionTag(meta.Compression)
	if err != nil {
		return nil, fmt.Errorf("blob %s: %w", key, err)
	}

	var stored []byte
	delay := s.retryDelay
	for attempt := 0; ; attempt++ {
		stored, err = os.ReadFile(s.blobPath(key))
		if err == nil {
			break
		}
		if os.IsNotExist(err) {
			// Sidecar without a blob: a partial delete, not transient.
			return nil, fmt.Errorf("blob %s missing despite sidecar: %w", key, ErrNotFound)
		}
		if attempt >= s.retries {
			return nil, fmt.Errorf("reading blob %s after %d attempts: %w", key, attempt+1, err)
		}

		s.logger.Warn("blob read failed, retrying",
			"key", key,
			"attempt", attempt+1,
			"error", err)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-s.clock.After(delay):
		}
		delay *= 2
	}

	data, err := decompress(stored, tag, int(meta.Size))
	if err != nil {
		return nil, fmt.Errorf("blob %s: %w", key, err)
	}

	checksum := blake3.Sum256(data)
	if hex.EncodeToString(checksum[:]) != meta.Checksum {
		return nil, fmt.Errorf("blob %s: %w", key, ErrChecksumMismatch)
	}

	return data, nil
}

// Delete removes the blob and its sidecar. Missing files are not an
// error, so Delete is idempotent.
func (s *FS) Delete(ctx context.Context, key string) error {
	if err := validateKey(key); err != nil {
		return err
	}
	for _, path := range []string{s.blobPath(key), s.metaPath(key)} {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("removing %s: %w", path, err)
		}
	}
	return nil
}

// writeAtomic writes data to path via a temp file in the store's tmp
// directory and an atomic rename.
func (s *FS) writeAtomic(path string, data []byte) error {
	tmpFile, err := os.CreateTemp(filepath.Join(s.root, tmpDir), "blob-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	// Clean up the temp file on any error path.
	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmpFile.Write(data); err != nil {
		tmpFile.Close()
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating shard directory: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("renaming to %s: %w", path, err)
	}

	success = true
	return nil
}

// blobPath returns the sharded blob path for a key. Keys are sharded
// by the first two hex characters of their BLAKE3 hash so a large
// registry does not pile every blob into one directory.
func (s *FS) blobPath(key string) string {
	shard := keyShard(key)
	return filepath.Join(s.root, blobDir, shard, encodeKey(key))
}

func (s *FS) metaPath(key string) string {
	shard := keyShard(key)
	return filepath.Join(s.root, metaDir, shard, encodeKey(key)+".cbor")
}

func keyShard(key string) string {
	sum := blake3.Sum256([]byte(key))
	return hex.EncodeToString(sum[:1])
}

// encodeKey flattens a key into a single path segment. Keys contain
// slashes (package/version/package_id.tgz); storing them flat keeps
// deletes and renames single-file operations.
func encodeKey(key string) string {
	return strings.ReplaceAll(key, "/", "_")
}

func validateKey(key string) error {
	if key == "" {
		return fmt.Errorf("blobstore: empty key")
	}
	if strings.Contains(key, "..") || strings.HasPrefix(key, "/") {
		return fmt.Errorf("blobstore: invalid key %q", key)
	}
	if !fs.ValidPath(key) {
		return fmt.Errorf("blobstore: invalid key %q", key)
	}
	return nil
}
