// Copyright 2026 The Crateforge Authors
// SPDX-License-Identifier: Apache-2.0

// Package blobstore stores and retrieves binary package archives by
// opaque key. Blobs are the raw tar.gz archives uploaded to the
// registry; the catalog records the key, size, and checksum, and the
// bundle assembler fetches blobs by key when building containers.
//
// The filesystem backend compresses blobs at rest (lz4 or zstd,
// selectable per store) and keeps a CBOR metadata sidecar next to each
// blob recording the uncompressed size, BLAKE3 checksum, and storage
// time. Fetch verifies the checksum on every read, so a corrupt blob
// is detected before it reaches a bundle.
//
// Locate returns the on-disk path of an uncompressed blob so callers
// can stream it without loading it into memory. Blobs stored
// compressed are not locatable; callers fall back to Fetch.
package blobstore
