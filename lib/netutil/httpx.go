// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package netutil

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
)

// MaxResponseSize bounds JSON response body reads: 256 MB. The sidecar
// answers with small JSON documents; the limit only exists so a
// misbehaving sidecar cannot exhaust the shell's memory.
const MaxResponseSize int64 = 256 << 20

// ReadResponse reads a response body up to MaxResponseSize bytes.
func ReadResponse(body io.Reader) ([]byte, error) {
	return io.ReadAll(io.LimitReader(body, MaxResponseSize))
}

// DecodeJSON reads a response body (up to MaxResponseSize bytes) and
// decodes exactly one JSON value from it. Numbers decode as
// json.Number so re-encoding does not lose precision. Trailing data
// after the value is an error.
func DecodeJSON(body io.Reader) (any, error) {
	data, err := ReadResponse(body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()

	var value any
	if err := decoder.Decode(&value); err != nil {
		return nil, err
	}
	var extra any
	if err := decoder.Decode(&extra); err != io.EOF {
		return nil, fmt.Errorf("trailing data after JSON value")
	}
	return value, nil
}
