// Copyright 2026 The Crateforge Authors
// SPDX-License-Identifier: Apache-2.0

// Package service provides the shared runtime pieces for Crateforge
// daemons: the standard structured logger and an HTTP server with
// managed listener lifecycle and graceful shutdown.
package service
