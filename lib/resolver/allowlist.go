// Copyright 2026 The Crateforge Authors
// SPDX-License-Identifier: Apache-2.0

package resolver

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"

	"github.com/tidwall/jsonc"

	"github.com/crateforge/crateforge/lib/settings"
)

// AllowList restricts which packages the external resolver may be
// invoked for. Authored on disk as JSONC (JSON with comments and
// trailing commas):
//
//	{
//	    // Packages the resolver may compute graphs for.
//	    "packages": ["zlib", "openssl", "fmt"],
//	}
type AllowList struct {
	Packages []string `json:"packages"`
}

// ParseAllowList strips JSONC comments and trailing commas from data,
// then unmarshals the result.
func ParseAllowList(data []byte) (*AllowList, error) {
	stripped := jsonc.ToJSON(data)

	var list AllowList
	if err := json.Unmarshal(stripped, &list); err != nil {
		return nil, fmt.Errorf("parsing allow-list: %w", err)
	}
	return &list, nil
}

// ReadAllowList reads a JSONC allow-list file from disk.
func ReadAllowList(path string) (*AllowList, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	list, err := ParseAllowList(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return list, nil
}

// Allows reports whether the list permits resolution for the named
// package. A nil list permits everything that passes name validation.
func (l *AllowList) Allows(name string) bool {
	if l == nil {
		return true
	}
	for _, allowed := range l.Packages {
		if allowed == name {
			return true
		}
	}
	return false
}

// safeNamePattern is the character set permitted in package names and
// versions before they reach a command line. Matches conan reference
// syntax; anything else is rejected outright.
var safeNamePattern = regexp.MustCompile(`^[a-zA-Z0-9_][a-zA-Z0-9_.+-]*$`)

// validateRef rejects names and versions that could smuggle flags or
// shell metacharacters into the resolver invocation.
func validateRef(name, version string) error {
	if !safeNamePattern.MatchString(name) {
		return fmt.Errorf("resolver: invalid package name %q", name)
	}
	if !safeNamePattern.MatchString(version) {
		return fmt.Errorf("resolver: invalid version %q", version)
	}
	return nil
}

// safeSettingPattern is the character set permitted in settings
// values before they are rendered into a profile file. Wider than
// safeNamePattern only by the space character ("Visual Studio");
// newlines and brackets stay out, so a value can never terminate its
// own line or open a new profile section.
var safeSettingPattern = regexp.MustCompile(`^[a-zA-Z0-9_][a-zA-Z0-9_ .+-]*$`)

// validateSettings rejects tuple values that could smuggle extra
// lines or sections into the resolver's profile file. Every field is
// required: external resolution needs a complete tuple.
func validateSettings(tuple settings.Tuple) error {
	fields := []struct {
		name  string
		value string
	}{
		{"os", tuple.OS},
		{"arch", tuple.Arch},
		{"compiler", tuple.Compiler},
		{"compiler_version", tuple.CompilerVersion},
		{"build_type", tuple.BuildType},
	}
	for _, field := range fields {
		if !safeSettingPattern.MatchString(field.value) {
			return fmt.Errorf("resolver: invalid %s setting %q", field.name, field.value)
		}
	}
	return nil
}
