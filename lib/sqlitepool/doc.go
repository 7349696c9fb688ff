// Copyright 2026 The Crateforge Authors
// SPDX-License-Identifier: Apache-2.0

// Package sqlitepool wraps zombiezen.com/go/sqlite's connection pool
// with the registry-standard pragmas (WAL journal, normal sync, busy
// timeout). The catalog opens one pool per process; bundle requests
// borrow read connections from it concurrently.
package sqlitepool
