// Copyright 2026 The Crateforge Authors
// SPDX-License-Identifier: Apache-2.0

package depgraph

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/crateforge/crateforge/lib/catalog"
)

// fakeLookup resolves from an in-memory triple map.
type fakeLookup struct {
	binaries map[string]*catalog.BinaryPackage
	err      error
}

func (f *fakeLookup) Binary(ctx context.Context, name, version, packageID string) (*catalog.BinaryPackage, error) {
	if f.err != nil {
		return nil, f.err
	}
	key := fmt.Sprintf("%s/%s#%s", name, version, packageID)
	binary, ok := f.binaries[key]
	if !ok {
		return nil, catalog.ErrNotFound
	}
	return binary, nil
}

func TestResolvePartialMiss(t *testing.T) {
	lookup := &fakeLookup{binaries: map[string]*catalog.BinaryPackage{
		"zlib/1.2.13#abc":    {PackageName: "zlib", Version: "1.2.13", PackageID: "abc"},
		"openssl/3.1.0#def":  {PackageName: "openssl", Version: "3.1.0", PackageID: "def"},
	}}
	refs := []Ref{
		{Name: "zlib", Version: "1.2.13", PackageID: "abc", Context: ContextHost},
		{Name: "fmt", Version: "10.0.0", PackageID: "ghi", Context: ContextHost},
		{Name: "openssl", Version: "3.1.0", PackageID: "def", Context: ContextHost},
	}

	entries, err := Resolve(context.Background(), lookup, refs)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("Resolve returned %d entries, want 3", len(entries))
	}
	if entries[0].Binary == nil || entries[0].Binary.PackageName != "zlib" {
		t.Errorf("entry 0 = %+v, want zlib binary", entries[0])
	}
	if entries[1].Unresolved == nil {
		t.Fatalf("entry 1 = %+v, want unresolved", entries[1])
	}
	want := "Missing dependency: fmt/10.0.0 with package_id ghi"
	if entries[1].Unresolved.Note != want {
		t.Errorf("unresolved note = %q, want %q", entries[1].Unresolved.Note, want)
	}
	if entries[2].Binary == nil || entries[2].Binary.PackageName != "openssl" {
		t.Errorf("entry 2 = %+v, want openssl binary", entries[2])
	}
}

func TestResolveCatalogFailureAborts(t *testing.T) {
	dbErr := errors.New("database locked")
	lookup := &fakeLookup{err: dbErr}
	refs := []Ref{{Name: "zlib", Version: "1.2.13", PackageID: "abc"}}

	if _, err := Resolve(context.Background(), lookup, refs); !errors.Is(err, dbErr) {
		t.Errorf("Resolve error = %v, want wrapped %v", err, dbErr)
	}
}

func TestResolveEmpty(t *testing.T) {
	entries, err := Resolve(context.Background(), &fakeLookup{}, nil)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("Resolve returned %d entries, want 0", len(entries))
	}
}
