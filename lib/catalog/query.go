// Copyright 2026 The Crateforge Authors
// SPDX-License-Identifier: Apache-2.0

package catalog

import (
	"context"
	"fmt"
	"time"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/crateforge/crateforge/lib/settings"
)

// Version looks up one package version by (name, version). Returns
// ErrNotFound (wrapped) when either the package or the version does
// not exist.
func (c *Catalog) Version(ctx context.Context, name, version string) (*PackageVersion, error) {
	conn, err := c.pool.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("catalog: version lookup: %w", err)
	}
	defer c.pool.Put(conn)

	var record *PackageVersion
	err = sqlitex.Execute(conn, `
		SELECT package, version, recipe_revision, recipe_content, uploaded_by, created_at
		FROM package_versions WHERE package = ? AND version = ?`,
		&sqlitex.ExecOptions{
			Args: []any{name, version},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				record = &PackageVersion{
					Package:        stmt.ColumnText(0),
					Version:        stmt.ColumnText(1),
					RecipeRevision: stmt.ColumnText(2),
					RecipeContent:  stmt.ColumnText(3),
					UploadedBy:     stmt.ColumnText(4),
					CreatedAt:      time.Unix(stmt.ColumnInt64(5), 0).UTC(),
				}
				return nil
			},
		})
	if err != nil {
		return nil, fmt.Errorf("catalog: version lookup for %s/%s: %w", name, version, err)
	}
	if record == nil {
		return nil, fmt.Errorf("package version %s/%s: %w", name, version, ErrNotFound)
	}
	return record, nil
}

// Binaries returns every binary recorded for a package version, in
// upload order. Returns an empty slice (not an error) when the
// version exists but has no binaries; returns ErrNotFound when the
// version itself is unknown.
func (c *Catalog) Binaries(ctx context.Context, name, version string) ([]BinaryPackage, error) {
	if _, err := c.Version(ctx, name, version); err != nil {
		return nil, err
	}

	conn, err := c.pool.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("catalog: binaries lookup: %w", err)
	}
	defer c.pool.Put(conn)

	var binaries []BinaryPackage
	err = sqlitex.Execute(conn, `
		SELECT v.package, v.version, b.package_id,
		       b.os, b.arch, b.compiler, b.compiler_version, b.build_type,
		       b.options, b.blob_key, b.size, b.checksum, b.dependency_graph,
		       b.download_count, b.created_at
		FROM binary_packages b
		JOIN package_versions v ON v.id = b.version_id
		WHERE v.package = ? AND v.version = ?
		ORDER BY b.id`,
		&sqlitex.ExecOptions{
			Args: []any{name, version},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				binaries = append(binaries, scanBinary(stmt))
				return nil
			},
		})
	if err != nil {
		return nil, fmt.Errorf("catalog: binaries lookup for %s/%s: %w", name, version, err)
	}
	return binaries, nil
}

// Binary looks up one binary by the exact (name, version, package_id)
// triple. This is the lookup the graph resolver performs for every
// dependency entry.
func (c *Catalog) Binary(ctx context.Context, name, version, packageID string) (*BinaryPackage, error) {
	conn, err := c.pool.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("catalog: binary lookup: %w", err)
	}
	defer c.pool.Put(conn)

	var record *BinaryPackage
	err = sqlitex.Execute(conn, `
		SELECT v.package, v.version, b.package_id,
		       b.os, b.arch, b.compiler, b.compiler_version, b.build_type,
		       b.options, b.blob_key, b.size, b.checksum, b.dependency_graph,
		       b.download_count, b.created_at
		FROM binary_packages b
		JOIN package_versions v ON v.id = b.version_id
		WHERE v.package = ? AND v.version = ? AND b.package_id = ?`,
		&sqlitex.ExecOptions{
			Args: []any{name, version, packageID},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				binary := scanBinary(stmt)
				record = &binary
				return nil
			},
		})
	if err != nil {
		return nil, fmt.Errorf("catalog: binary lookup for %s/%s#%s: %w", name, version, packageID, err)
	}
	if record == nil {
		return nil, fmt.Errorf("binary %s/%s with package_id %s: %w", name, version, packageID, ErrNotFound)
	}
	return record, nil
}

// IncrementDownloadCount bumps the download counters for a binary and
// its package. Best-effort accounting on the direct download path.
func (c *Catalog) IncrementDownloadCount(ctx context.Context, name, packageID string) error {
	conn, err := c.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("catalog: download count: %w", err)
	}
	defer c.pool.Put(conn)

	err = sqlitex.Execute(conn,
		`UPDATE binary_packages SET download_count = download_count + 1 WHERE package_id = ?`,
		&sqlitex.ExecOptions{Args: []any{packageID}})
	if err != nil {
		return fmt.Errorf("catalog: download count for %s: %w", packageID, err)
	}

	err = sqlitex.Execute(conn,
		`UPDATE packages SET download_count = download_count + 1 WHERE name = ?`,
		&sqlitex.ExecOptions{Args: []any{name}})
	if err != nil {
		return fmt.Errorf("catalog: download count for package %s: %w", name, err)
	}
	return nil
}

// scanBinary reads one binary_packages join row. Column order must
// match the SELECT lists above.
func scanBinary(stmt *sqlite.Stmt) BinaryPackage {
	var graph []byte
	if text := stmt.ColumnText(12); text != "" {
		graph = []byte(text)
	}
	return BinaryPackage{
		PackageName: stmt.ColumnText(0),
		Version:     stmt.ColumnText(1),
		PackageID:   stmt.ColumnText(2),
		Settings: settings.Tuple{
			OS:              stmt.ColumnText(3),
			Arch:            stmt.ColumnText(4),
			Compiler:        stmt.ColumnText(5),
			CompilerVersion: stmt.ColumnText(6),
			BuildType:       stmt.ColumnText(7),
		},
		OptionsJSON:     stmt.ColumnText(8),
		BlobKey:         stmt.ColumnText(9),
		Size:            stmt.ColumnInt64(10),
		Checksum:        stmt.ColumnText(11),
		DependencyGraph: graph,
		DownloadCount:   stmt.ColumnInt64(13),
		CreatedAt:       time.Unix(stmt.ColumnInt64(14), 0).UTC(),
	}
}
