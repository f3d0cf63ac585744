// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"bytes"
	"encoding/json"
	"io"
	"os"

	"golang.org/x/term"
)

// WriteJSON marshals value as JSON followed by a newline. Output to a
// terminal is indented; output to a pipe or file is compact, one value
// per line.
func WriteJSON(w io.Writer, value any) error {
	encoder := json.NewEncoder(w)
	encoder.SetEscapeHTML(false)
	if isTerminal(w) {
		encoder.SetIndent("", "  ")
	}
	return encoder.Encode(value)
}

// WriteRawJSON writes an already encoded JSON document followed by a
// newline, indented when w is a terminal and verbatim otherwise.
func WriteRawJSON(w io.Writer, data []byte) error {
	if isTerminal(w) {
		var indented bytes.Buffer
		if err := json.Indent(&indented, data, "", "  "); err == nil {
			data = indented.Bytes()
		}
	}
	if _, err := w.Write(data); err != nil {
		return err
	}
	_, err := io.WriteString(w, "\n")
	return err
}

func isTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	return ok && term.IsTerminal(int(file.Fd()))
}
