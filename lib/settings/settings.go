// Copyright 2026 The Crateforge Authors
// SPDX-License-Identifier: Apache-2.0

package settings

import (
	"fmt"
	"strings"
)

// Tuple is a binary build configuration. All five fields participate
// in exact matching; there is no wildcard or partial-match semantics.
type Tuple struct {
	OS              string `json:"os" yaml:"os"`
	Arch            string `json:"arch" yaml:"arch"`
	Compiler        string `json:"compiler" yaml:"compiler"`
	CompilerVersion string `json:"compiler_version" yaml:"compiler_version"`
	BuildType       string `json:"build_type" yaml:"build_type"`
}

// String returns the compact profile form used in error messages and
// logs: "Linux/x86_64/gcc-11/Release".
func (t Tuple) String() string {
	return fmt.Sprintf("%s/%s/%s-%s/%s", t.OS, t.Arch, t.Compiler, t.CompilerVersion, t.BuildType)
}

// Summary returns the human-readable configuration string recorded in
// bundle manifests. Empty fields are omitted.
func (t Tuple) Summary() string {
	var parts []string
	if t.OS != "" {
		parts = append(parts, "OS: "+t.OS)
	}
	if t.Arch != "" {
		parts = append(parts, "Arch: "+t.Arch)
	}
	if t.Compiler != "" {
		compiler := t.Compiler
		if t.CompilerVersion != "" {
			compiler += " " + t.CompilerVersion
		}
		parts = append(parts, "Compiler: "+compiler)
	}
	if t.BuildType != "" {
		parts = append(parts, "Build: "+t.BuildType)
	}
	return strings.Join(parts, ", ")
}

// DifferingFields returns the names of the fields where t and other
// disagree, in declaration order. An empty result means the tuples
// are identical.
func (t Tuple) DifferingFields(other Tuple) []string {
	var fields []string
	if t.OS != other.OS {
		fields = append(fields, "os")
	}
	if t.Arch != other.Arch {
		fields = append(fields, "arch")
	}
	if t.Compiler != other.Compiler {
		fields = append(fields, "compiler")
	}
	if t.CompilerVersion != other.CompilerVersion {
		fields = append(fields, "compiler_version")
	}
	if t.BuildType != other.BuildType {
		fields = append(fields, "build_type")
	}
	return fields
}
