// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package process holds the entrypoint helper used by the shell and
// CLI binaries when main() must report an error before (or without)
// a structured logger.
package process
