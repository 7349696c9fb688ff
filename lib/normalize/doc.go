// Copyright 2026 The Crateforge Authors
// SPDX-License-Identifier: Apache-2.0

// Package normalize converts a compiled-package tar.gz archive into a
// canonical {include, lib, bin, cmake, other} file tree.
//
// Archives arrive with whatever directory nesting the producing build
// cache used (revision hashes, cache folder letters, package
// subfolders). The classifier scans every path segment left to right
// and keeps the remainder after the first recognized category segment,
// so b/9f2a/p/include/foo.h lands at include/foo.h regardless of how
// deep the cache nesting goes. Files that never pass a category
// segment go under other/ with a note, and resolver bookkeeping files
// (conaninfo.txt, conanmanifest.txt and friends) are dropped outright.
//
// The extracted tree is what the interlaced bundle layout is built
// from; the segregated layout ships the original archives untouched.
package normalize
