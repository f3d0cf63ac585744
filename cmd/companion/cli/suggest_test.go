// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"testing"

	"github.com/spf13/pflag"
)

func TestLevenshtein(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"", "abc", 3},
		{"abc", "", 3},
		{"abc", "abc", 0},
		{"abc", "abd", 1}, // substitution
		{"abc", "ab", 1},  // deletion
		{"ab", "abc", 1},  // insertion
		{"abc", "bac", 2}, // transposition counts as two edits
		{"kitten", "sitting", 3},
		{"toggle", "togle", 1},
		{"status", "stauts", 2},
	}

	for _, test := range tests {
		t.Run(test.a+"->"+test.b, func(t *testing.T) {
			if got := levenshtein(test.a, test.b); got != test.want {
				t.Errorf("levenshtein(%q, %q) = %d, want %d", test.a, test.b, got, test.want)
			}
			if got := levenshtein(test.b, test.a); got != test.want {
				t.Errorf("levenshtein(%q, %q) = %d, want %d", test.b, test.a, got, test.want)
			}
		})
	}
}

func TestSuggestCommand(t *testing.T) {
	commands := []*Command{
		{Name: "address"},
		{Name: "status"},
		{Name: "toggle"},
		{Name: "info"},
		{Name: "fetch"},
		{Name: "quit"},
	}

	tests := []struct {
		input string
		want  string
	}{
		{"togle", "toggle"},
		{"stats", "status"},
		{"adress", "address"},
		{"fecth", "fetch"},
		{"qiut", "quit"},
		{"zzzzzzzzz", ""},
	}

	for _, test := range tests {
		t.Run(test.input, func(t *testing.T) {
			if got := suggestCommand(test.input, commands); got != test.want {
				t.Errorf("suggestCommand(%q) = %q, want %q", test.input, got, test.want)
			}
		})
	}
}

func TestSuggestFlag(t *testing.T) {
	newFlagSet := func() *pflag.FlagSet {
		flagSet := pflag.NewFlagSet("fetch", pflag.ContinueOnError)
		flagSet.String("method", "GET", "")
		flagSet.String("token", "", "")
		flagSet.String("body-file", "", "")
		flagSet.StringP("socket", "s", "", "")
		return flagSet
	}

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"typo", []string{"--methd", "POST"}, "--method"},
		{"with value", []string{"--tokn=abc"}, "--token"},
		{"skips known flags", []string{"--method", "POST", "--bodyfile", "x"}, "--body-file"},
		{"known shorthand", []string{"-s", "/tmp/x", "--tken"}, "--token"},
		{"nothing close", []string{"--completely-different"}, ""},
		{"stops at terminator", []string{"--", "--methd"}, ""},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if got := suggestFlag(test.args, newFlagSet()); got != test.want {
				t.Errorf("suggestFlag(%q) = %q, want %q", test.args, got, test.want)
			}
		})
	}
}
