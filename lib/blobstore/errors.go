// Copyright 2026 The Crateforge Authors
// SPDX-License-Identifier: Apache-2.0

package blobstore

import "errors"

// ErrNotFound is returned when no blob exists under the requested
// key. This is a permanent condition: retrying the same key will not
// succeed until someone stores a blob there.
var ErrNotFound = errors.New("blobstore: blob not found")

// ErrNotLocatable is returned by Locate when the blob exists but is
// stored compressed, so there is no on-disk file holding the raw
// bytes. Callers fall back to Fetch.
var ErrNotLocatable = errors.New("blobstore: blob not locatable")

// ErrChecksumMismatch is returned when a fetched blob does not hash
// to the checksum recorded in its metadata sidecar. The blob on disk
// is corrupt.
var ErrChecksumMismatch = errors.New("blobstore: checksum mismatch")
