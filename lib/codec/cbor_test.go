// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"bytes"
	"testing"
)

func TestMarshalIsDeterministic(t *testing.T) {
	value := map[string]any{
		"zeta":  1,
		"alpha": "a",
		"mid":   true,
	}

	first, err := Marshal(value)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	for range 10 {
		again, err := Marshal(value)
		if err != nil {
			t.Fatalf("Marshal: %v", err)
		}
		if !bytes.Equal(first, again) {
			t.Fatalf("encoding differs between calls: %x vs %x", first, again)
		}
	}
}

func TestDecodeIntoAnyProducesStringKeyedMaps(t *testing.T) {
	data, err := Marshal(map[string]any{
		"outer": map[string]any{"inner": "value"},
	})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var decoded any
	if err := Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	top, ok := decoded.(map[string]any)
	if !ok {
		t.Fatalf("decoded type = %T, want map[string]any", decoded)
	}
	inner, ok := top["outer"].(map[string]any)
	if !ok {
		t.Fatalf("nested type = %T, want map[string]any", top["outer"])
	}
	if inner["inner"] != "value" {
		t.Errorf("inner = %v, want %q", inner["inner"], "value")
	}
}

func TestUnknownFieldsIgnored(t *testing.T) {
	data, err := Marshal(map[string]any{"known": "yes", "added_later": 42})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var target struct {
		Known string `cbor:"known"`
	}
	if err := Unmarshal(data, &target); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if target.Known != "yes" {
		t.Errorf("Known = %q, want %q", target.Known, "yes")
	}
}

func TestStreamRoundTrip(t *testing.T) {
	type request struct {
		Action string `cbor:"action"`
		URL    string `cbor:"url,omitempty"`
	}

	var buffer bytes.Buffer
	encoder := NewEncoder(&buffer)
	for _, action := range []string{"server-status", "toggle-server"} {
		if err := encoder.Encode(request{Action: action}); err != nil {
			t.Fatalf("Encode: %v", err)
		}
	}

	decoder := NewDecoder(&buffer)
	for _, want := range []string{"server-status", "toggle-server"} {
		var got request
		if err := decoder.Decode(&got); err != nil {
			t.Fatalf("Decode: %v", err)
		}
		if got.Action != want {
			t.Errorf("Action = %q, want %q", got.Action, want)
		}
	}
}
