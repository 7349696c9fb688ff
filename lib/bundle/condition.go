// Copyright 2026 The Crateforge Authors
// SPDX-License-Identifier: Apache-2.0

package bundle

import (
	"errors"
	"fmt"
)

// Condition classifies a bundle failure. Conditions are stable wire
// values: the HTTP handler maps them to status codes and clients
// branch on them.
type Condition string

const (
	// ConditionNotFound: the package or version does not exist.
	ConditionNotFound Condition = "not_found"

	// ConditionSettingsMismatch: the version exists but no binary
	// matches the requested settings tuple exactly.
	ConditionSettingsMismatch Condition = "settings_mismatch"

	// ConditionDependencyUnresolved: a dependency named by the graph
	// has no binary in the catalog and the request demanded a
	// complete closure (Request.Strict). Non-strict requests degrade
	// the miss into a labeled entry instead.
	ConditionDependencyUnresolved Condition = "dependency_unresolved"

	// ConditionResolverUnavailable: the external resolver binary
	// cannot be found or started.
	ConditionResolverUnavailable Condition = "resolver_unavailable"

	// ConditionResolverError: the external resolver ran and failed,
	// or a stored graph snapshot is unparseable.
	ConditionResolverError Condition = "resolver_error"

	// ConditionResolutionTimeout: external resolution exceeded its
	// deadline. Retryable.
	ConditionResolutionTimeout Condition = "resolution_timeout"

	// ConditionArtifactFetchFailure: a required archive could not be
	// fetched from the blob store.
	ConditionArtifactFetchFailure Condition = "artifact_fetch_failure"

	// ConditionArchiveCorrupt: a fetched archive failed checksum
	// verification or could not be decoded.
	ConditionArchiveCorrupt Condition = "archive_corrupt"
)

// CandidateInfo describes one near-miss binary in a settings mismatch
// response: which fields of its tuple disagree with the request.
type CandidateInfo struct {
	PackageID       string   `json:"package_id"`
	Settings        string   `json:"settings"`
	DifferingFields []string `json:"differing_fields,omitempty"`
}

// Error is the typed failure for every bundle operation.
type Error struct {
	Condition Condition
	Message   string

	// Candidates is populated for settings mismatches so the response
	// can explain what is available instead.
	Candidates []CandidateInfo

	Err error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Condition, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Condition, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// ConditionOf extracts the Condition from an error chain. Returns the
// empty string for errors that did not originate in this package.
func ConditionOf(err error) Condition {
	var bundleErr *Error
	if errors.As(err, &bundleErr) {
		return bundleErr.Condition
	}
	return ""
}
