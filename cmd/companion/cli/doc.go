// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package cli is the small command framework behind the companion
// command-line client.
//
// A [Command] tree is dispatched by [Command.Execute]: the first
// positional argument selects a subcommand, flags are parsed with
// pflag, and unknown commands or flags produce a "did you mean"
// suggestion based on edit distance. Commands that want a non-zero
// exit without an error message return an [ExitError].
package cli
