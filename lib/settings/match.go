// Copyright 2026 The Crateforge Authors
// SPDX-License-Identifier: Apache-2.0

package settings

// Candidate is anything that carries a settings tuple. The catalog's
// binary package record implements this.
type Candidate interface {
	SettingsTuple() Tuple
}

// MatchResult annotates one candidate from a Match call. When Exact
// is true, DifferingFields is empty. When Exact is false,
// DifferingFields names every settings field that disagrees with the
// requested tuple, so the caller can explain to the user exactly why
// no binary was served.
type MatchResult[C Candidate] struct {
	Candidate       C
	Exact           bool
	DifferingFields []string
}

// Match compares the requested tuple against every candidate and
// returns one annotated result per candidate, exact matches first,
// preserving the relative candidate order within each group.
//
// Multiple candidates may match exactly: binaries built with the same
// settings but different build options share a tuple while carrying
// distinct package IDs, and all of them are equally valid. When no
// candidate matches, the full annotated list is still returned — an
// empty, unexplained result is never acceptable.
func Match[C Candidate](requested Tuple, candidates []C) []MatchResult[C] {
	results := make([]MatchResult[C], 0, len(candidates))
	for _, candidate := range candidates {
		differing := requested.DifferingFields(candidate.SettingsTuple())
		if len(differing) == 0 {
			results = append(results, MatchResult[C]{Candidate: candidate, Exact: true})
		}
	}
	for _, candidate := range candidates {
		differing := requested.DifferingFields(candidate.SettingsTuple())
		if len(differing) > 0 {
			results = append(results, MatchResult[C]{
				Candidate:       candidate,
				DifferingFields: differing,
			})
		}
	}
	return results
}

// ExactMatches filters a Match result down to the exact entries.
func ExactMatches[C Candidate](results []MatchResult[C]) []MatchResult[C] {
	var exact []MatchResult[C]
	for _, result := range results {
		if result.Exact {
			exact = append(exact, result)
		}
	}
	return exact
}
