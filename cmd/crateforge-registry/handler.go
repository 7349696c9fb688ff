// Copyright 2026 The Crateforge Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/crateforge/crateforge/lib/blobstore"
	"github.com/crateforge/crateforge/lib/bundle"
	"github.com/crateforge/crateforge/lib/catalog"
	"github.com/crateforge/crateforge/lib/settings"
)

// Default settings applied when a query parameter is absent. These
// match the most common consumer configuration; clients targeting
// anything else pass explicit parameters.
var defaultSettings = settings.Tuple{
	OS:              "Linux",
	Arch:            "x86_64",
	Compiler:        "gcc",
	CompilerVersion: "11",
	BuildType:       "Release",
}

type handler struct {
	bundles *bundle.Service
	catalog *catalog.Catalog
	blobs   blobstore.Store
	logger  *slog.Logger
}

// newHandler builds the registry's HTTP routing table. All routes are
// read-only; ingest happens out of band.
func newHandler(bundles *bundle.Service, cat *catalog.Catalog, blobs blobstore.Store, logger *slog.Logger) http.Handler {
	h := &handler{bundles: bundles, catalog: cat, blobs: blobs, logger: logger}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /packages/{name}/{version}/preview", h.preview)
	mux.HandleFunc("GET /packages/{name}/{version}/bundle", h.bundleSegregated)
	mux.HandleFunc("GET /packages/{name}/{version}/bundle/extracted", h.bundleInterlaced)
	mux.HandleFunc("GET /packages/{name}/{version}/binaries", h.listBinaries)
	mux.HandleFunc("GET /packages/{name}/{version}/binaries/{id}/download", h.downloadBinary)
	mux.HandleFunc("GET /packages/{name}/{version}/binaries/{id}/extracted", h.extractedBinary)
	mux.HandleFunc("GET /packages/{name}/{version}/manifest", h.manifest)
	mux.HandleFunc("GET /packages/{name}/{version}/recipe", h.recipe)

	return logRequests(logger, mux)
}

// requestSettings reads the settings tuple from query parameters,
// falling back to defaults per field.
func requestSettings(r *http.Request) settings.Tuple {
	query := r.URL.Query()
	pick := func(key, fallback string) string {
		if value := query.Get(key); value != "" {
			return value
		}
		return fallback
	}
	return settings.Tuple{
		OS:              pick("os", defaultSettings.OS),
		Arch:            pick("arch", defaultSettings.Arch),
		Compiler:        pick("compiler", defaultSettings.Compiler),
		CompilerVersion: pick("compiler_version", defaultSettings.CompilerVersion),
		BuildType:       pick("build_type", defaultSettings.BuildType),
	}
}

func (h *handler) bundleRequest(r *http.Request, layout bundle.Layout) bundle.Request {
	strict, _ := strconv.ParseBool(r.URL.Query().Get("strict"))
	return bundle.Request{
		Name:     r.PathValue("name"),
		Version:  r.PathValue("version"),
		Settings: requestSettings(r),
		Layout:   layout,
		Strict:   strict,
	}
}

func (h *handler) preview(w http.ResponseWriter, r *http.Request) {
	preview, err := h.bundles.Preview(r.Context(), h.bundleRequest(r, bundle.LayoutSegregated))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, preview)
}

func (h *handler) bundleSegregated(w http.ResponseWriter, r *http.Request) {
	h.serveBundle(w, r, bundle.LayoutSegregated)
}

func (h *handler) bundleInterlaced(w http.ResponseWriter, r *http.Request) {
	h.serveBundle(w, r, bundle.LayoutInterlaced)
}

// serveBundle materializes the container into a buffer before
// touching the response. A failure partway through assembly must
// produce an error response, never a truncated zip, so the container
// is never streamed directly.
func (h *handler) serveBundle(w http.ResponseWriter, r *http.Request, layout bundle.Layout) {
	request := h.bundleRequest(r, layout)

	var buffer bytes.Buffer
	if _, err := h.bundles.Materialize(r.Context(), request, &buffer); err != nil {
		h.writeError(w, r, err)
		return
	}

	suffix := ""
	if layout == bundle.LayoutInterlaced {
		suffix = "-extracted"
	}
	filename := fmt.Sprintf("%s-%s%s.zip", request.Name, request.Version, suffix)
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("Content-Length", fmt.Sprint(buffer.Len()))
	w.WriteHeader(http.StatusOK)
	buffer.WriteTo(w)
}

// binaryInfo is one row of the configurations listing.
type binaryInfo struct {
	PackageID     string    `json:"package_id"`
	Settings      string    `json:"settings"`
	Options       string    `json:"options,omitempty"`
	Size          int64     `json:"size"`
	Checksum      string    `json:"checksum"`
	DownloadCount int64     `json:"download_count"`
	CreatedAt     time.Time `json:"created_at"`
}

func (h *handler) listBinaries(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	version := r.PathValue("version")

	binaries, err := h.catalog.Binaries(r.Context(), name, version)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	infos := make([]binaryInfo, 0, len(binaries))
	for _, binary := range binaries {
		infos = append(infos, binaryInfo{
			PackageID:     binary.PackageID,
			Settings:      binary.Settings.Summary(),
			Options:       binary.OptionsJSON,
			Size:          binary.Size,
			Checksum:      binary.Checksum,
			DownloadCount: binary.DownloadCount,
			CreatedAt:     binary.CreatedAt,
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"package":  name,
		"version":  version,
		"binaries": infos,
	})
}

// downloadBinary serves the original uploaded archive. Uncompressed
// blobs are served straight off disk; blobs held under at-rest
// compression go through Fetch instead.
func (h *handler) downloadBinary(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	version := r.PathValue("version")
	packageID := r.PathValue("id")

	binary, err := h.catalog.Binary(r.Context(), name, version, packageID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	filename := fmt.Sprintf("%s-%s-%s.tgz", name, version, packageID)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("Content-Type", "application/gzip")

	path, err := h.blobs.Locate(r.Context(), binary.BlobKey)
	switch {
	case err == nil:
		http.ServeFile(w, r, path)
	case errors.Is(err, blobstore.ErrNotLocatable):
		data, fetchErr := h.blobs.Fetch(r.Context(), binary.BlobKey)
		if fetchErr != nil {
			h.writeError(w, r, fetchErr)
			return
		}
		w.Header().Set("Content-Length", fmt.Sprint(len(data)))
		w.WriteHeader(http.StatusOK)
		w.Write(data)
	default:
		h.writeError(w, r, err)
		return
	}

	// Best-effort accounting: a failed counter update never fails
	// the download.
	if err := h.catalog.IncrementDownloadCount(r.Context(), name, packageID); err != nil {
		h.logger.Warn("download count update failed", "package", name, "package_id", packageID, "error", err)
	}
}

func (h *handler) extractedBinary(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	version := r.PathValue("version")
	packageID := r.PathValue("id")

	var buffer bytes.Buffer
	if err := h.bundles.MaterializeBinary(r.Context(), name, version, packageID, &buffer); err != nil {
		h.writeError(w, r, err)
		return
	}

	filename := fmt.Sprintf("%s-%s-%s-extracted.zip", name, version, packageID)
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("Content-Length", fmt.Sprint(buffer.Len()))
	w.WriteHeader(http.StatusOK)
	buffer.WriteTo(w)
}

func (h *handler) manifest(w http.ResponseWriter, r *http.Request) {
	manifest, err := h.bundles.Manifest(r.Context(), h.bundleRequest(r, bundle.LayoutSegregated))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, manifest)
}

func (h *handler) recipe(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	version := r.PathValue("version")

	record, err := h.catalog.Version(r.Context(), name, version)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if record.RecipeContent == "" {
		writeErrorJSON(w, http.StatusNotFound, bundle.ConditionNotFound,
			fmt.Sprintf("no recipe recorded for %s/%s", name, version), nil)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="conanfile.py"`)
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, record.RecipeContent)
}

// writeError maps an error to a status code and a JSON body of the
// form {"condition": ..., "error": ...}. Settings mismatches include
// the near-miss candidates.
func (h *handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	condition := bundle.ConditionOf(err)
	if condition == "" && errors.Is(err, catalog.ErrNotFound) {
		condition = bundle.ConditionNotFound
	}
	if condition == "" && errors.Is(err, blobstore.ErrNotFound) {
		condition = bundle.ConditionArtifactFetchFailure
	}

	status := http.StatusInternalServerError
	switch condition {
	case bundle.ConditionNotFound, bundle.ConditionSettingsMismatch, bundle.ConditionDependencyUnresolved:
		status = http.StatusNotFound
	case bundle.ConditionResolverUnavailable, bundle.ConditionResolverError,
		bundle.ConditionArtifactFetchFailure, bundle.ConditionArchiveCorrupt:
		status = http.StatusBadGateway
	case bundle.ConditionResolutionTimeout:
		status = http.StatusGatewayTimeout
	}

	message := err.Error()
	var candidates []bundle.CandidateInfo
	var bundleErr *bundle.Error
	if errors.As(err, &bundleErr) {
		message = bundleErr.Message
		candidates = bundleErr.Candidates
	}

	if status == http.StatusInternalServerError {
		h.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		message = "internal error"
	}
	writeErrorJSON(w, status, condition, message, candidates)
}

func writeErrorJSON(w http.ResponseWriter, status int, condition bundle.Condition, message string, candidates []bundle.CandidateInfo) {
	body := map[string]any{
		"condition": condition,
		"error":     message,
	}
	if len(candidates) > 0 {
		body["candidates"] = candidates
	}
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	encoder.Encode(payload)
}

// statusRecorder captures the response status for the request log.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func logRequests(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)
		logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", recorder.status,
			"duration", time.Since(start))
	})
}
