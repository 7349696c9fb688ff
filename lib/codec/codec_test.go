// Copyright 2026 The Crateforge Authors
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"bytes"
	"testing"
)

func TestMarshalDeterministic(t *testing.T) {
	value := map[string]any{
		"size":     int64(1024),
		"checksum": "abc123",
		"key":      "binaries/zlib/1.2.13/abc.tar.gz",
	}

	first, err := Marshal(value)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	second, err := Marshal(value)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Error("identical values produced different encodings")
	}
}

func TestRoundtripStruct(t *testing.T) {
	type record struct {
		Key  string `cbor:"key"`
		Size int64  `cbor:"size"`
	}

	in := record{Key: "binaries/zlib.tar.gz", Size: 42}
	data, err := Marshal(in)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var out record
	if err := Unmarshal(data, &out); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if out != in {
		t.Errorf("roundtrip mismatch: got %+v, want %+v", out, in)
	}
}

func TestUnmarshalIgnoresUnknownFields(t *testing.T) {
	data, err := Marshal(map[string]any{"key": "k", "future_field": true})
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var out struct {
		Key string `cbor:"key"`
	}
	if err := Unmarshal(data, &out); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if out.Key != "k" {
		t.Errorf("Key = %q, want %q", out.Key, "k")
	}
}
