// Copyright 2026 The Crateforge Authors
// SPDX-License-Identifier: Apache-2.0

package depgraph

import (
	"context"
	"errors"
	"fmt"

	"github.com/crateforge/crateforge/lib/catalog"
)

// Lookup is the catalog query the resolver needs: the exact-triple
// binary lookup. *catalog.Catalog implements it.
type Lookup interface {
	Binary(ctx context.Context, name, version, packageID string) (*catalog.BinaryPackage, error)
}

// Unresolved marks a dependency whose binary is not in the catalog.
// The identity is the one the graph requested; Note is the
// human-readable explanation surfaced in previews and manifests.
type Unresolved struct {
	Ref  Ref
	Note string
}

// Entry is one resolved dependency: either a concrete binary or an
// unresolved marker. Exactly one field is non-nil.
type Entry struct {
	Binary     *catalog.BinaryPackage
	Unresolved *Unresolved
}

// Resolve looks up each ref in the catalog by its exact
// (name, version, package_id) triple. Refs must already be filtered
// and deduplicated (see HostRefs); output order matches input order.
//
// A catalog miss for one ref is non-fatal — it yields an Unresolved
// entry and resolution continues. Any other catalog error aborts,
// because it means the catalog itself is unhealthy, not that one
// binary is missing.
func Resolve(ctx context.Context, lookup Lookup, refs []Ref) ([]Entry, error) {
	entries := make([]Entry, 0, len(refs))
	for _, ref := range refs {
		binary, err := lookup.Binary(ctx, ref.Name, ref.Version, ref.PackageID)
		if err != nil {
			if errors.Is(err, catalog.ErrNotFound) {
				entries = append(entries, Entry{Unresolved: &Unresolved{
					Ref: ref,
					Note: fmt.Sprintf("Missing dependency: %s/%s with package_id %s",
						ref.Name, ref.Version, ref.PackageID),
				}})
				continue
			}
			return nil, fmt.Errorf("depgraph: resolving %s: %w", ref, err)
		}
		entries = append(entries, Entry{Binary: binary})
	}
	return entries, nil
}
