// Copyright 2026 The Crateforge Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock abstracts time operations for testability. Production
// code injects Real(); tests inject Fake() and advance time
// deterministically.
//
// The registry uses the clock in two places: blob metadata timestamps
// (StoredAt) and retry backoff sleeps inside the blob store. Both must
// be controllable in tests — backoff tests that sleep on the wall
// clock are forbidden.
package clock
