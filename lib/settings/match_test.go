// Copyright 2026 The Crateforge Authors
// SPDX-License-Identifier: Apache-2.0

package settings

import (
	"reflect"
	"testing"
)

type fakeBinary struct {
	id    string
	tuple Tuple
}

func (b fakeBinary) SettingsTuple() Tuple { return b.tuple }

var linuxGCC = Tuple{
	OS:              "Linux",
	Arch:            "x86_64",
	Compiler:        "gcc",
	CompilerVersion: "11",
	BuildType:       "Release",
}

func TestMatchExact(t *testing.T) {
	candidates := []fakeBinary{
		{id: "abc", tuple: linuxGCC},
		{id: "def", tuple: Tuple{OS: "Windows", Arch: "x86_64", Compiler: "msvc", CompilerVersion: "193", BuildType: "Release"}},
	}

	results := Match(linuxGCC, candidates)
	if len(results) != 2 {
		t.Fatalf("Match returned %d results, want 2", len(results))
	}

	if !results[0].Exact {
		t.Error("first result should be the exact match")
	}
	if results[0].Candidate.id != "abc" {
		t.Errorf("exact match id = %q, want %q", results[0].Candidate.id, "abc")
	}
	if len(results[0].DifferingFields) != 0 {
		t.Errorf("exact match has differing fields: %v", results[0].DifferingFields)
	}

	if results[1].Exact {
		t.Error("windows binary should not match a linux request")
	}
}

func TestMatchSameSettingsDifferentPackageID(t *testing.T) {
	// Binaries built with identical settings but different options
	// carry distinct package IDs. Both are exact matches.
	candidates := []fakeBinary{
		{id: "shared-abc", tuple: linuxGCC},
		{id: "static-def", tuple: linuxGCC},
	}

	results := Match(linuxGCC, candidates)
	if len(results) != 2 {
		t.Fatalf("Match returned %d results, want 2", len(results))
	}
	for i, result := range results {
		if !result.Exact {
			t.Errorf("result %d: Exact = false, want true", i)
		}
		if len(result.DifferingFields) != 0 {
			t.Errorf("result %d: DifferingFields = %v, want empty", i, result.DifferingFields)
		}
	}
}

func TestMatchNoneAnnotatesEveryCandidate(t *testing.T) {
	candidates := []fakeBinary{
		{id: "clang", tuple: Tuple{OS: "Linux", Arch: "x86_64", Compiler: "clang", CompilerVersion: "15", BuildType: "Release"}},
		{id: "debug", tuple: Tuple{OS: "Linux", Arch: "x86_64", Compiler: "gcc", CompilerVersion: "11", BuildType: "Debug"}},
	}

	results := Match(linuxGCC, candidates)
	if len(results) != 2 {
		t.Fatalf("Match returned %d results, want 2 (a no-match result must not be empty)", len(results))
	}

	want := map[string][]string{
		"clang": {"compiler", "compiler_version"},
		"debug": {"build_type"},
	}
	for _, result := range results {
		if result.Exact {
			t.Errorf("candidate %s: unexpected exact match", result.Candidate.id)
		}
		if !reflect.DeepEqual(result.DifferingFields, want[result.Candidate.id]) {
			t.Errorf("candidate %s: DifferingFields = %v, want %v",
				result.Candidate.id, result.DifferingFields, want[result.Candidate.id])
		}
	}
}

func TestMatchEmptyCandidates(t *testing.T) {
	if results := Match[fakeBinary](linuxGCC, nil); len(results) != 0 {
		t.Errorf("Match with no candidates returned %d results", len(results))
	}
}

func TestTupleString(t *testing.T) {
	got := linuxGCC.String()
	want := "Linux/x86_64/gcc-11/Release"
	if got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

func TestTupleSummaryOmitsEmptyFields(t *testing.T) {
	tuple := Tuple{OS: "Linux", Compiler: "gcc", CompilerVersion: "11"}
	got := tuple.Summary()
	want := "OS: Linux, Compiler: gcc 11"
	if got != want {
		t.Errorf("Summary() = %q, want %q", got, want)
	}
}
