// Copyright 2026 The Crateforge Authors
// SPDX-License-Identifier: Apache-2.0

package bundle

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/crateforge/crateforge/lib/blobstore"
	"github.com/crateforge/crateforge/lib/catalog"
	"github.com/crateforge/crateforge/lib/clock"
	"github.com/crateforge/crateforge/lib/depgraph"
	"github.com/crateforge/crateforge/lib/resolver"
	"github.com/crateforge/crateforge/lib/settings"
)

// Mode selects where the dependency closure comes from.
type Mode string

const (
	// ModeStored trusts the graph snapshot recorded at upload time.
	ModeStored Mode = "stored"

	// ModeExternal recomputes every closure through the external
	// resolver. Resolver failures are fatal to the request.
	ModeExternal Mode = "external"
)

// Resolution methods recorded in previews and manifests.
const (
	MethodStoredGraph      = "stored_graph"
	MethodExternalResolver = "external_resolver"
)

// DefaultWorkers bounds concurrent artifact fetches per request when
// the config does not override it.
const DefaultWorkers = 4

// Config configures a bundle Service.
type Config struct {
	Catalog *catalog.Catalog
	Blobs   blobstore.Store

	// Resolver is required when Mode is ModeExternal.
	Resolver *resolver.Resolver

	// Mode defaults to ModeStored.
	Mode Mode

	// Workers bounds concurrent fetch+normalize per request. Defaults
	// to DefaultWorkers.
	Workers int

	Clock  clock.Clock
	Logger *slog.Logger
}

// Service builds previews and containers.
type Service struct {
	catalog  *catalog.Catalog
	blobs    blobstore.Store
	resolver *resolver.Resolver
	mode     Mode
	workers  int
	clock    clock.Clock
	logger   *slog.Logger
}

// New validates the config and returns a Service.
func New(config Config) (*Service, error) {
	if config.Catalog == nil {
		return nil, fmt.Errorf("bundle: Catalog is required")
	}
	if config.Blobs == nil {
		return nil, fmt.Errorf("bundle: Blobs is required")
	}
	if config.Clock == nil {
		return nil, fmt.Errorf("bundle: Clock is required")
	}
	if config.Logger == nil {
		return nil, fmt.Errorf("bundle: Logger is required")
	}
	mode := config.Mode
	if mode == "" {
		mode = ModeStored
	}
	if mode == ModeExternal && config.Resolver == nil {
		return nil, fmt.Errorf("bundle: Resolver is required in external mode")
	}
	workers := config.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}
	return &Service{
		catalog:  config.Catalog,
		blobs:    config.Blobs,
		resolver: config.Resolver,
		mode:     mode,
		workers:  workers,
		clock:    config.Clock,
		logger:   config.Logger,
	}, nil
}

// Request identifies what to bundle.
type Request struct {
	Name     string
	Version  string
	Settings settings.Tuple
	Layout   Layout

	// Strict requires a complete closure: any dependency without a
	// catalog binary fails the request instead of degrading into a
	// labeled entry.
	Strict bool
}

// Resolved is the computed closure for a request, before any
// artifacts are fetched.
type Resolved struct {
	Main        *catalog.BinaryPackage
	MainVersion *catalog.PackageVersion

	// Dependencies preserves the resolver's order. Entries are either
	// concrete binaries or unresolved markers.
	Dependencies []depgraph.Entry

	Method    string
	Notes     []string
	TotalSize int64
}

// resolve runs the lookup half of the pipeline: catalog, settings
// match, dependency closure.
func (s *Service) resolve(ctx context.Context, request Request) (*Resolved, error) {
	version, err := s.catalog.Version(ctx, request.Name, request.Version)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			return nil, &Error{
				Condition: ConditionNotFound,
				Message:   fmt.Sprintf("package %s/%s not found", request.Name, request.Version),
				Err:       err,
			}
		}
		return nil, fmt.Errorf("looking up %s/%s: %w", request.Name, request.Version, err)
	}

	binaries, err := s.catalog.Binaries(ctx, request.Name, request.Version)
	if err != nil {
		return nil, fmt.Errorf("listing binaries for %s: %w", version.FullName(), err)
	}

	candidates := make([]*catalog.BinaryPackage, len(binaries))
	for i := range binaries {
		candidates[i] = &binaries[i]
	}

	results := settings.Match(request.Settings, candidates)
	exact := settings.ExactMatches(results)
	if len(exact) == 0 {
		info := make([]CandidateInfo, 0, len(results))
		for _, result := range results {
			info = append(info, CandidateInfo{
				PackageID:       result.Candidate.PackageID,
				Settings:        result.Candidate.Settings.Summary(),
				DifferingFields: result.DifferingFields,
			})
		}
		return nil, &Error{
			Condition: ConditionSettingsMismatch,
			Message: fmt.Sprintf("no binary of %s matches %s",
				version.FullName(), request.Settings.String()),
			Candidates: info,
		}
	}
	main := exact[0].Candidate

	graph, method, err := s.dependencyGraph(ctx, request, main)
	if err != nil {
		return nil, err
	}

	// Drop the requested package itself from the closure; it is the
	// main entry, not a dependency.
	refs := make([]depgraph.Ref, 0, len(graph.Refs))
	for _, ref := range depgraph.HostRefs(graph.Refs) {
		if ref.Name == request.Name && ref.Version == request.Version {
			continue
		}
		refs = append(refs, ref)
	}

	dependencies, err := depgraph.Resolve(ctx, s.catalog, refs)
	if err != nil {
		return nil, fmt.Errorf("resolving dependencies of %s: %w", version.FullName(), err)
	}

	if request.Strict {
		var missing []string
		for _, entry := range dependencies {
			if entry.Unresolved != nil {
				missing = append(missing, entry.Unresolved.Ref.Name+"/"+entry.Unresolved.Ref.Version)
			}
		}
		if len(missing) > 0 {
			return nil, &Error{
				Condition: ConditionDependencyUnresolved,
				Message: fmt.Sprintf("closure of %s is incomplete: no binary for %s",
					version.FullName(), strings.Join(missing, ", ")),
			}
		}
	}

	resolved := &Resolved{
		Main:        main,
		MainVersion: version,
		Dependencies: dependencies,
		Method:      method,
		Notes:       graph.Notes,
		TotalSize:   main.Size,
	}
	for _, entry := range dependencies {
		if entry.Binary != nil {
			resolved.TotalSize += entry.Binary.Size
		}
	}
	return resolved, nil
}

// dependencyGraph produces the closure source per the configured
// mode: the stored snapshot or a fresh external resolution.
func (s *Service) dependencyGraph(ctx context.Context, request Request, main *catalog.BinaryPackage) (*depgraph.Graph, string, error) {
	if s.mode == ModeExternal {
		graph, err := s.resolver.Resolve(ctx, request.Name, request.Version, request.Settings)
		if err != nil {
			return nil, "", externalResolverError(request, err)
		}
		return graph, MethodExternalResolver, nil
	}

	graph, err := depgraph.Parse(main.DependencyGraph)
	if err != nil {
		return nil, "", &Error{
			Condition: ConditionResolverError,
			Message: fmt.Sprintf("stored dependency graph for %s/%s (package_id %s) is unparseable",
				request.Name, request.Version, main.PackageID),
			Err: err,
		}
	}
	return graph, MethodStoredGraph, nil
}

func externalResolverError(request Request, err error) error {
	switch {
	case errors.Is(err, resolver.ErrUnavailable):
		return &Error{
			Condition: ConditionResolverUnavailable,
			Message:   "external resolver unavailable",
			Err:       err,
		}
	case errors.Is(err, resolver.ErrTimeout):
		return &Error{
			Condition: ConditionResolutionTimeout,
			Message:   fmt.Sprintf("resolution of %s/%s timed out", request.Name, request.Version),
			Err:       err,
		}
	default:
		return &Error{
			Condition: ConditionResolverError,
			Message:   fmt.Sprintf("resolution of %s/%s failed", request.Name, request.Version),
			Err:       err,
		}
	}
}

// Preview is the dry-run result: what a bundle would contain, without
// fetching a single artifact.
type Preview struct {
	Package          string              `json:"package"`
	Version          string              `json:"version"`
	Settings         string              `json:"settings"`
	ResolutionMethod string              `json:"resolution_method"`
	Main             PreviewBinary       `json:"main"`
	Dependencies     []PreviewDependency `json:"dependencies"`
	TotalSize        int64               `json:"total_size"`
	Notes            []string            `json:"notes,omitempty"`
}

// PreviewBinary describes the matched main binary.
type PreviewBinary struct {
	PackageID string `json:"package_id"`
	Settings  string `json:"settings"`
	Size      int64  `json:"size"`
	Checksum  string `json:"checksum"`
}

// PreviewDependency is one closure entry. Status is "resolved" or
// "missing"; missing entries carry a note instead of a size.
type PreviewDependency struct {
	Package   string `json:"package"`
	Version   string `json:"version"`
	PackageID string `json:"package_id"`
	Status    string `json:"status"`
	Size      int64  `json:"size,omitempty"`
	Note      string `json:"note,omitempty"`
}

// Preview resolves the closure and reports it without touching the
// blob store.
func (s *Service) Preview(ctx context.Context, request Request) (*Preview, error) {
	resolved, err := s.resolve(ctx, request)
	if err != nil {
		return nil, err
	}

	preview := &Preview{
		Package:          request.Name,
		Version:          request.Version,
		Settings:         request.Settings.Summary(),
		ResolutionMethod: resolved.Method,
		Main: PreviewBinary{
			PackageID: resolved.Main.PackageID,
			Settings:  resolved.Main.Settings.Summary(),
			Size:      resolved.Main.Size,
			Checksum:  resolved.Main.Checksum,
		},
		Dependencies: make([]PreviewDependency, 0, len(resolved.Dependencies)),
		TotalSize:    resolved.TotalSize,
		Notes:        resolved.Notes,
	}

	for _, entry := range resolved.Dependencies {
		if entry.Binary != nil {
			preview.Dependencies = append(preview.Dependencies, PreviewDependency{
				Package:   entry.Binary.PackageName,
				Version:   entry.Binary.Version,
				PackageID: entry.Binary.PackageID,
				Status:    "resolved",
				Size:      entry.Binary.Size,
			})
			continue
		}
		preview.Dependencies = append(preview.Dependencies, PreviewDependency{
			Package:   entry.Unresolved.Ref.Name,
			Version:   entry.Unresolved.Ref.Version,
			PackageID: entry.Unresolved.Ref.PackageID,
			Status:    "missing",
			Note:      entry.Unresolved.Note,
		})
	}

	return preview, nil
}

// Materialize resolves the closure, fetches every artifact, and
// writes the assembled container to w. The returned manifest is the
// one embedded in the container.
//
// Any required artifact that cannot be fetched aborts the whole
// container: partial bundles are never written. Dependencies missing
// from the catalog are not fetch failures; they become manifest
// notes.
func (s *Service) Materialize(ctx context.Context, request Request, w io.Writer) (*Manifest, error) {
	resolved, err := s.resolve(ctx, request)
	if err != nil {
		return nil, err
	}

	items := s.collectItems(ctx, resolved)

	extract := request.Layout == LayoutInterlaced
	var tempRoot string
	if extract {
		tempRoot, err = os.MkdirTemp("", "crateforge-bundle-*")
		if err != nil {
			return nil, fmt.Errorf("creating bundle work directory: %w", err)
		}
		defer os.RemoveAll(tempRoot)
	}

	if err := s.fetchItems(ctx, items, extract, tempRoot); err != nil {
		return nil, err
	}

	manifest := s.buildManifest(resolved, items, request)

	switch request.Layout {
	case LayoutInterlaced:
		err = writeInterlaced(w, items, manifest)
	default:
		err = writeSegregated(w, items, manifest)
	}
	if err != nil {
		return nil, fmt.Errorf("assembling %s bundle for %s/%s: %w",
			request.Layout, request.Name, request.Version, err)
	}

	s.logger.Info("bundle assembled",
		"package", request.Name,
		"version", request.Version,
		"layout", string(request.Layout),
		"method", resolved.Method,
		"packages", len(items),
		"total_size", resolved.TotalSize)

	return manifest, nil
}

// collectItems flattens the closure into fetchable items: the main
// binary first, then resolved dependencies in order. Recipes are
// looked up best-effort for the segregated layout.
func (s *Service) collectItems(ctx context.Context, resolved *Resolved) []*item {
	items := []*item{{
		binary:    resolved.Main,
		entryType: EntryMain,
		recipe:    resolved.MainVersion.RecipeContent,
	}}
	for _, entry := range resolved.Dependencies {
		if entry.Binary == nil {
			continue
		}
		it := &item{binary: entry.Binary, entryType: EntryDependency}
		if version, err := s.catalog.Version(ctx, entry.Binary.PackageName, entry.Binary.Version); err == nil {
			it.recipe = version.RecipeContent
		}
		items = append(items, it)
	}
	return items
}

// buildManifest assembles the container manifest, folding in
// unresolved-dependency and normalization notes.
func (s *Service) buildManifest(resolved *Resolved, items []*item, request Request) *Manifest {
	manifest := &Manifest{
		Package:          request.Name,
		Version:          request.Version,
		Settings:         request.Settings.Summary(),
		Layout:           request.Layout,
		ResolutionMethod: resolved.Method,
		GeneratedAt:      s.clock.Now().UTC(),
		Notes:            append([]string(nil), resolved.Notes...),
	}
	for _, it := range items {
		manifest.Entries = append(manifest.Entries, manifestEntry(it.binary, it.entryType))
	}
	for _, entry := range resolved.Dependencies {
		if entry.Unresolved != nil {
			manifest.Notes = append(manifest.Notes, entry.Unresolved.Note)
		}
	}
	for _, it := range items {
		if it.tree != nil {
			manifest.Notes = append(manifest.Notes, it.tree.Notes...)
			if len(it.tree.Files) == 0 {
				manifest.Notes = append(manifest.Notes,
					fmt.Sprintf("Package %s/%s contained no files after normalization",
						it.binary.PackageName, it.binary.Version))
			}
		}
	}
	return manifest
}

// Manifest returns the manifest for a request without building the
// container. Serves the manifest endpoint.
func (s *Service) Manifest(ctx context.Context, request Request) (*Manifest, error) {
	resolved, err := s.resolve(ctx, request)
	if err != nil {
		return nil, err
	}
	items := s.collectItems(ctx, resolved)
	return s.buildManifest(resolved, items, request), nil
}

// MaterializeBinary fetches a single binary by its package ID,
// normalizes it, and writes a build-ready zip of just that package
// (no dependency closure, no include/ namespacing).
func (s *Service) MaterializeBinary(ctx context.Context, name, version, packageID string, w io.Writer) error {
	binary, err := s.catalog.Binary(ctx, name, version, packageID)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			return &Error{
				Condition: ConditionNotFound,
				Message:   fmt.Sprintf("binary %s/%s (package_id %s) not found", name, version, packageID),
				Err:       err,
			}
		}
		return fmt.Errorf("looking up binary %s/%s: %w", name, version, err)
	}

	tempRoot, err := os.MkdirTemp("", "crateforge-extract-*")
	if err != nil {
		return fmt.Errorf("creating extraction directory: %w", err)
	}
	defer os.RemoveAll(tempRoot)

	items := []*item{{binary: binary, entryType: EntryMain}}
	if err := s.fetchItems(ctx, items, true, tempRoot); err != nil {
		return err
	}

	if err := writeSinglePackage(w, items[0]); err != nil {
		return fmt.Errorf("assembling extracted zip for %s/%s: %w", name, version, err)
	}
	return nil
}
