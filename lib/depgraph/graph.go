// Copyright 2026 The Crateforge Authors
// SPDX-License-Identifier: Apache-2.0

package depgraph

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// ContextHost marks a runtime dependency. Entries with any other
// context (build tooling, test harnesses) are excluded from bundles.
const ContextHost = "host"

// Ref identifies one dependency in a graph: the exact
// (name, version, package_id) triple plus the resolver context.
type Ref struct {
	Name      string `json:"name"`
	Version   string `json:"version"`
	PackageID string `json:"package_id"`
	Context   string `json:"context"`
}

// String returns the "name/version#package_id" reference form used
// in notes and logs.
func (r Ref) String() string {
	return fmt.Sprintf("%s/%s#%s", r.Name, r.Version, r.PackageID)
}

// Key returns the dedup key. Context is excluded: the same binary
// reached through different contexts is still one binary.
func (r Ref) Key() string {
	return r.Name + "/" + r.Version + "#" + r.PackageID
}

// Graph is the validated form of a stored snapshot: dependency refs
// in graph order, plus notes for any node that failed validation.
type Graph struct {
	Refs  []Ref
	Notes []string
}

// rawGraph mirrors the resolver's JSON output shape. Only the fields
// the registry needs are declared; everything else is ignored.
type rawGraph struct {
	Graph struct {
		Nodes map[string]rawNode `json:"nodes"`
	} `json:"graph"`
}

type rawNode struct {
	Ref       string `json:"ref"`
	PackageID string `json:"package_id"`
	Context   string `json:"context"`
}

// Parse converts a stored graph snapshot into a validated Graph.
// Node "0" is the root (the package the graph belongs to) and is
// skipped. Remaining nodes are ordered by numeric node index, which
// is the resolver's traversal order. A node whose ref is not in
// "name/version" form, or whose package_id is empty, is recorded as
// a note and excluded from Refs.
//
// An empty or absent snapshot parses to an empty Graph: a package
// with no dependencies is valid.
func Parse(raw []byte) (*Graph, error) {
	if len(raw) == 0 {
		return &Graph{}, nil
	}

	var decoded rawGraph
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("depgraph: parsing snapshot: %w", err)
	}

	indices := make([]int, 0, len(decoded.Graph.Nodes))
	byIndex := make(map[int]rawNode, len(decoded.Graph.Nodes))
	graph := &Graph{}

	for key, node := range decoded.Graph.Nodes {
		index, err := strconv.Atoi(key)
		if err != nil {
			graph.Notes = append(graph.Notes, fmt.Sprintf("ignoring node %q: non-numeric node index", key))
			continue
		}
		indices = append(indices, index)
		byIndex[index] = node
	}
	sort.Ints(indices)

	for _, index := range indices {
		if index == 0 {
			// Root node: the package itself, not a dependency.
			continue
		}
		node := byIndex[index]

		name, version, ok := splitRef(node.Ref)
		if !ok {
			graph.Notes = append(graph.Notes, fmt.Sprintf("ignoring node %d: malformed ref %q", index, node.Ref))
			continue
		}
		if node.PackageID == "" {
			graph.Notes = append(graph.Notes, fmt.Sprintf("ignoring node %d (%s): missing package_id", index, node.Ref))
			continue
		}

		context := node.Context
		if context == "" {
			// Older snapshots predate the context field; they only
			// ever recorded runtime dependencies.
			context = ContextHost
		}

		graph.Refs = append(graph.Refs, Ref{
			Name:      name,
			Version:   version,
			PackageID: node.PackageID,
			Context:   context,
		})
	}

	return graph, nil
}

// HostRefs filters refs down to runtime (host-context) dependencies
// and deduplicates by (name, version, package_id), keeping the first
// occurrence. Order is otherwise preserved.
func HostRefs(refs []Ref) []Ref {
	seen := make(map[string]struct{}, len(refs))
	var host []Ref
	for _, ref := range refs {
		if ref.Context != ContextHost {
			continue
		}
		if _, dup := seen[ref.Key()]; dup {
			continue
		}
		seen[ref.Key()] = struct{}{}
		host = append(host, ref)
	}
	return host
}

// splitRef parses "name/version" or "name/version#revision" into its
// name and version. The recipe revision suffix is discarded: the
// catalog keys binaries by package_id, not recipe revision.
func splitRef(ref string) (name, version string, ok bool) {
	name, rest, found := strings.Cut(ref, "/")
	if !found || name == "" {
		return "", "", false
	}
	version, _, _ = strings.Cut(rest, "#")
	if version == "" {
		return "", "", false
	}
	return name, version, true
}
