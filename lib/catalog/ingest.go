// Copyright 2026 The Crateforge Authors
// SPDX-License-Identifier: Apache-2.0

package catalog

import (
	"context"
	"fmt"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

// The ingest surface is append-only: packages, versions, and binaries
// are written once by the upload-time actor and never updated or
// deleted. There is deliberately no API for mutating a recorded
// binary or its dependency graph.

// AddPackage records a package. Adding an existing name is an error.
func (c *Catalog) AddPackage(ctx context.Context, pkg Package) error {
	conn, err := c.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("catalog: add package: %w", err)
	}
	defer c.pool.Put(conn)

	err = sqlitex.Execute(conn, `
		INSERT INTO packages (name, description, homepage, license, author, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		&sqlitex.ExecOptions{
			Args: []any{
				pkg.Name, pkg.Description, pkg.Homepage, pkg.License, pkg.Author,
				c.clock.Now().Unix(),
			},
		})
	if err != nil {
		return fmt.Errorf("catalog: add package %s: %w", pkg.Name, err)
	}

	c.logger.Info("package recorded", "package", pkg.Name)
	return nil
}

// AddVersion records a version of an existing package.
func (c *Catalog) AddVersion(ctx context.Context, version PackageVersion) error {
	conn, err := c.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("catalog: add version: %w", err)
	}
	defer c.pool.Put(conn)

	err = sqlitex.Execute(conn, `
		INSERT INTO package_versions (package, version, recipe_revision, recipe_content, uploaded_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		&sqlitex.ExecOptions{
			Args: []any{
				version.Package, version.Version, version.RecipeRevision,
				version.RecipeContent, version.UploadedBy, c.clock.Now().Unix(),
			},
		})
	if err != nil {
		return fmt.Errorf("catalog: add version %s/%s: %w", version.Package, version.Version, err)
	}

	c.logger.Info("package version recorded",
		"package", version.Package,
		"version", version.Version,
	)
	return nil
}

// AddBinary records a binary for an existing package version. The
// binary's settings tuple, blob key, checksum, and dependency graph
// are immutable after this call.
func (c *Catalog) AddBinary(ctx context.Context, binary BinaryPackage) error {
	conn, err := c.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("catalog: add binary: %w", err)
	}
	defer c.pool.Put(conn)

	versionID, err := versionRowID(conn, binary.PackageName, binary.Version)
	if err != nil {
		return err
	}

	options := binary.OptionsJSON
	if options == "" {
		options = "{}"
	}

	err = sqlitex.Execute(conn, `
		INSERT INTO binary_packages
			(version_id, package_id, os, arch, compiler, compiler_version, build_type,
			 options, blob_key, size, checksum, dependency_graph, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		&sqlitex.ExecOptions{
			Args: []any{
				versionID, binary.PackageID,
				binary.Settings.OS, binary.Settings.Arch, binary.Settings.Compiler,
				binary.Settings.CompilerVersion, binary.Settings.BuildType,
				options, binary.BlobKey, binary.Size, binary.Checksum,
				string(binary.DependencyGraph), c.clock.Now().Unix(),
			},
		})
	if err != nil {
		return fmt.Errorf("catalog: add binary %s for %s/%s: %w",
			binary.PackageID, binary.PackageName, binary.Version, err)
	}

	c.logger.Info("binary recorded",
		"package", binary.PackageName,
		"version", binary.Version,
		"package_id", binary.PackageID,
		"settings", binary.Settings.String(),
	)
	return nil
}

// versionRowID resolves the package_versions row id for a
// (name, version) pair on an already-borrowed connection.
func versionRowID(conn *sqlite.Conn, name, version string) (int64, error) {
	var id int64 = -1
	err := sqlitex.Execute(conn,
		`SELECT id FROM package_versions WHERE package = ? AND version = ?`,
		&sqlitex.ExecOptions{
			Args: []any{name, version},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				id = stmt.ColumnInt64(0)
				return nil
			},
		})
	if err != nil {
		return 0, fmt.Errorf("catalog: resolving version row for %s/%s: %w", name, version, err)
	}
	if id < 0 {
		return 0, fmt.Errorf("package version %s/%s: %w", name, version, ErrNotFound)
	}
	return id, nil
}
