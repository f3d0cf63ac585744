// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides YAML configuration loading for the companion
// shell.
//
// Configuration comes from a single optional file, named by the
// --config flag (via [LoadFile]) or the COMPANION_CONFIG environment
// variable (via [Load]). With neither, the shell runs on [Default],
// which is what a desktop install normally does. There is no automatic
// file discovery.
//
// The file may contain development and production sections that
// override base values when [Config].Environment matches. Production
// without an explicit section logs at warn level.
//
// ${VAR} and ${VAR:-default} patterns in path fields are expanded
// after loading. No other environment variables override config
// values; command-line flags are applied by the binaries on top of
// the loaded file.
//
// Key exports:
//
//   - [Config] -- master struct with Sidecar, Probe, Bridge sections
//   - [Default] -- returns a Config with desktop defaults
//   - [Load] and [LoadFile] -- the two entry points for loading
//   - [DefaultSocketPath] -- where the shell serves its bridge socket
package config
