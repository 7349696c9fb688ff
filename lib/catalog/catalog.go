// Copyright 2026 The Crateforge Authors
// SPDX-License-Identifier: Apache-2.0

package catalog

import (
	"errors"
	"fmt"
	"log/slog"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/crateforge/crateforge/lib/clock"
	"github.com/crateforge/crateforge/lib/sqlitepool"
)

// ErrNotFound is returned when a package, version, or binary does not
// exist in the catalog. Callers distinguish it from storage errors
// with errors.Is.
var ErrNotFound = errors.New("not found in catalog")

// Catalog provides access to the package/version/binary records.
// Safe for concurrent use; each call borrows its own pool connection.
type Catalog struct {
	pool   *sqlitepool.Pool
	clock  clock.Clock
	logger *slog.Logger
}

// Config holds the parameters for opening a catalog.
type Config struct {
	// Path is the SQLite database file. Created if missing. Use
	// ":memory:" with PoolSize 1 for tests.
	Path string

	// PoolSize is the connection pool size. Defaults to 4.
	PoolSize int

	// Clock provides upload timestamps. Required.
	Clock clock.Clock

	// Logger receives operational messages. Required.
	Logger *slog.Logger
}

// Open creates the catalog, creating the schema on first connection.
func Open(cfg Config) (*Catalog, error) {
	if cfg.Clock == nil {
		return nil, fmt.Errorf("catalog: Clock is required")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("catalog: Logger is required")
	}

	poolSize := cfg.PoolSize
	if poolSize <= 0 {
		poolSize = 4
	}

	pool, err := sqlitepool.Open(sqlitepool.Config{
		Path:     cfg.Path,
		PoolSize: poolSize,
		Logger:   cfg.Logger,
		OnConnect: func(conn *sqlite.Conn) error {
			return sqlitex.ExecuteScript(conn, schema, nil)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("catalog: %w", err)
	}

	return &Catalog{pool: pool, clock: cfg.Clock, logger: cfg.Logger}, nil
}

// Close closes the underlying connection pool.
func (c *Catalog) Close() error {
	return c.pool.Close()
}

const schema = `
CREATE TABLE IF NOT EXISTS packages (
	name           TEXT PRIMARY KEY,
	description    TEXT NOT NULL DEFAULT '',
	homepage       TEXT NOT NULL DEFAULT '',
	license        TEXT NOT NULL DEFAULT '',
	author         TEXT NOT NULL DEFAULT '',
	download_count INTEGER NOT NULL DEFAULT 0,
	created_at     INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS package_versions (
	id              INTEGER PRIMARY KEY,
	package         TEXT NOT NULL REFERENCES packages(name),
	version         TEXT NOT NULL,
	recipe_revision TEXT NOT NULL DEFAULT '',
	recipe_content  TEXT NOT NULL DEFAULT '',
	uploaded_by     TEXT NOT NULL DEFAULT '',
	created_at      INTEGER NOT NULL,
	UNIQUE (package, version)
);

CREATE TABLE IF NOT EXISTS binary_packages (
	id               INTEGER PRIMARY KEY,
	version_id       INTEGER NOT NULL REFERENCES package_versions(id),
	package_id       TEXT NOT NULL UNIQUE,
	os               TEXT NOT NULL DEFAULT '',
	arch             TEXT NOT NULL DEFAULT '',
	compiler         TEXT NOT NULL DEFAULT '',
	compiler_version TEXT NOT NULL DEFAULT '',
	build_type       TEXT NOT NULL DEFAULT '',
	options          TEXT NOT NULL DEFAULT '{}',
	blob_key         TEXT NOT NULL,
	size             INTEGER NOT NULL DEFAULT 0,
	checksum         TEXT NOT NULL DEFAULT '',
	dependency_graph TEXT,
	download_count   INTEGER NOT NULL DEFAULT 0,
	created_at       INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_binary_packages_version
	ON binary_packages(version_id);
`
