// Copyright 2026 The Crateforge Authors
// SPDX-License-Identifier: Apache-2.0

package blobstore

import (
	"context"
	"time"
)

// Store is the read side of a blob store, as consumed by the bundle
// assembler.
type Store interface {
	// Fetch returns the full uncompressed blob bytes. Returns
	// ErrNotFound when no blob exists under key.
	Fetch(ctx context.Context, key string) ([]byte, error)

	// Locate returns the on-disk path of an uncompressed blob, so the
	// caller can stream it without buffering. Returns ErrNotFound when
	// the blob does not exist and ErrNotLocatable when it is stored
	// compressed.
	Locate(ctx context.Context, key string) (string, error)
}

// Meta describes a stored blob. It is persisted as a CBOR sidecar
// next to the blob file.
type Meta struct {
	// Size is the uncompressed blob size in bytes.
	Size int64 `cbor:"size"`

	// Checksum is the lowercase hex BLAKE3-256 hash of the
	// uncompressed blob bytes.
	Checksum string `cbor:"checksum"`

	// ContentType is the MIME type recorded at store time, if any.
	ContentType string `cbor:"content_type,omitempty"`

	// Compression names the at-rest compression algorithm.
	Compression string `cbor:"compression"`

	// StoredAt is when the blob was written.
	StoredAt time.Time `cbor:"stored_at"`
}
