// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"bytes"
	"strings"
	"testing"
)

// daemonRequest and daemonResponse mirror lib/store's wire types
// (same cbor struct tags) without importing that package, which
// would create an import cycle since it depends on codec.
type daemonRequest struct {
	Action string         `cbor:"action"`
	Fields map[string]any `cbor:"fields,omitempty"`
}

type daemonResponse struct {
	OK    bool       `cbor:"ok"`
	Error string     `cbor:"error,omitempty"`
	Data  RawMessage `cbor:"data,omitempty"`
}

// wirePathInfo mirrors lib/store's over-the-wire QueryPathInfo
// result: plain strings and slices rather than storepath.Info's raw
// [32]byte hash.
type wirePathInfo struct {
	NarHashBase32    string   `cbor:"nar_hash"`
	NarSize          uint64   `cbor:"nar_size"`
	References       []string `cbor:"references"`
	Deriver          string   `cbor:"deriver,omitempty"`
	Sigs             []string `cbor:"sigs,omitempty"`
	CA               string   `cbor:"ca,omitempty"`
	RegistrationTime int64    `cbor:"registration_time"`
}

func TestMarshalUnmarshalRoundtrip(t *testing.T) {
	original := daemonRequest{
		Action: "QueryPathInfo",
		Fields: map[string]any{"base": "abcdefghijklmnopqrstuvwxyz123456-hello-1.0"},
	}

	data, err := Marshal(original)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if len(data) == 0 {
		t.Fatal("Marshal produced empty output")
	}

	var decoded daemonRequest
	if err := Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	if decoded.Action != original.Action {
		t.Errorf("Action: got %q, want %q", decoded.Action, original.Action)
	}
	if decoded.Fields["base"] != original.Fields["base"] {
		t.Errorf("Fields[base]: got %v, want %v", decoded.Fields["base"], original.Fields["base"])
	}
}

func TestMarshalDeterministic(t *testing.T) {
	request := daemonRequest{
		Action: "QueryPathFromHashPart",
		Fields: map[string]any{"hash_part": "abcdefghijklmnopqrstuvwxyz123456"},
	}

	first, err := Marshal(request)
	if err != nil {
		t.Fatalf("first Marshal: %v", err)
	}
	second, err := Marshal(request)
	if err != nil {
		t.Fatalf("second Marshal: %v", err)
	}

	if !bytes.Equal(first, second) {
		t.Errorf("deterministic encoding violated: %x != %x", first, second)
	}
}

func TestEncoderDecoderStreamRoundtrip(t *testing.T) {
	// Mirrors the request/response framing lib/store's DaemonClient
	// uses: one CBOR item written, one read back, per call, over a
	// shared connection-like stream.
	requests := []daemonRequest{
		{Action: "QueryPathInfo", Fields: map[string]any{"base": "p1"}},
		{Action: "HasBuildLog", Fields: map[string]any{"base": "p2.drv"}},
		{Action: "StreamBuildLog", Fields: map[string]any{"base": "p3.drv"}},
	}

	var buffer bytes.Buffer
	encoder := NewEncoder(&buffer)
	for _, req := range requests {
		if err := encoder.Encode(req); err != nil {
			t.Fatalf("Encode: %v", err)
		}
	}

	decoder := NewDecoder(&buffer)
	for i, want := range requests {
		var got daemonRequest
		if err := decoder.Decode(&got); err != nil {
			t.Fatalf("Decode message %d: %v", i, err)
		}
		if got.Action != want.Action {
			t.Errorf("message %d: got action %q, want %q", i, got.Action, want.Action)
		}
	}
}

func TestDaemonResponseWithNestedPathInfo(t *testing.T) {
	// A QueryPathInfo response carries its wirePathInfo payload as a
	// raw, still-encoded CBOR value in Data, decoded only once the
	// caller knows which RPC it answered.
	info := wirePathInfo{
		NarHashBase32:    "0123456789abcdefghijklmnopqrstuv",
		NarSize:          4096,
		References:       []string{"abcdefghijklmnopqrstuvwxyz123456-dep-1.0"},
		Sigs:             []string{"cache-1:deadbeef"},
		RegistrationTime: 1_700_000_000,
	}

	infoData, err := Marshal(info)
	if err != nil {
		t.Fatalf("Marshal wirePathInfo: %v", err)
	}

	resp := daemonResponse{OK: true, Data: RawMessage(infoData)}
	data, err := Marshal(resp)
	if err != nil {
		t.Fatalf("Marshal daemonResponse: %v", err)
	}

	var decoded daemonResponse
	if err := Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal daemonResponse: %v", err)
	}
	if !decoded.OK {
		t.Fatal("decoded response OK=false, want true")
	}

	var decodedInfo wirePathInfo
	if err := Unmarshal(decoded.Data, &decodedInfo); err != nil {
		t.Fatalf("Unmarshal nested wirePathInfo: %v", err)
	}
	if decodedInfo.NarHashBase32 != info.NarHashBase32 {
		t.Errorf("NarHashBase32: got %q, want %q", decodedInfo.NarHashBase32, info.NarHashBase32)
	}
	if decodedInfo.NarSize != info.NarSize {
		t.Errorf("NarSize: got %d, want %d", decodedInfo.NarSize, info.NarSize)
	}
	if len(decodedInfo.References) != 1 || decodedInfo.References[0] != info.References[0] {
		t.Errorf("References: got %v, want %v", decodedInfo.References, info.References)
	}
}

func TestDaemonErrorResponse(t *testing.T) {
	resp := daemonResponse{OK: false, Error: "not found"}

	data, err := Marshal(resp)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var decoded daemonResponse
	if err := Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if decoded.OK {
		t.Error("decoded OK=true, want false")
	}
	if decoded.Error != resp.Error {
		t.Errorf("Error: got %q, want %q", decoded.Error, resp.Error)
	}
	if len(decoded.Data) != 0 {
		t.Errorf("Data: got %v, want empty (omitempty on zero-value response)", decoded.Data)
	}
}

func TestOmitemptyRespected(t *testing.T) {
	withFields := daemonRequest{Action: "a", Fields: map[string]any{"x": 1}}
	withoutFields := daemonRequest{Action: "a"}

	dataWith, err := Marshal(withFields)
	if err != nil {
		t.Fatal(err)
	}
	dataWithout, err := Marshal(withoutFields)
	if err != nil {
		t.Fatal(err)
	}

	// The encoding without fields should be shorter because the
	// omitted map is not present.
	if len(dataWithout) >= len(dataWith) {
		t.Errorf("omitempty not effective: without=%d bytes, with=%d bytes",
			len(dataWithout), len(dataWith))
	}
}

func TestUnmarshalInvalidCBOR(t *testing.T) {
	var req daemonRequest
	err := Unmarshal([]byte{0xFF, 0xFE, 0xFD}, &req)
	if err == nil {
		t.Error("Unmarshal should reject invalid CBOR")
	}
}

func TestByteStringRoundtrip(t *testing.T) {
	// Verify that []byte fields encode as CBOR byte strings (major
	// type 2), not text strings. Build log streaming bodies aren't
	// carried this way, but state snapshots derived from daemon
	// responses sometimes embed raw byte payloads.
	type envelope struct {
		Payload []byte `cbor:"payload"`
	}

	original := envelope{Payload: []byte(`{"key":"value"}`)}

	data, err := Marshal(original)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	// A 15-byte payload as a byte string has initial byte 0x4f (major
	// type 2, length 15); as a text string it would be 0x6f.
	if !bytes.Contains(data, append([]byte{0x4f}, original.Payload...)) {
		t.Errorf("payload not encoded as a CBOR byte string: %x", data)
	}

	var decoded envelope
	if err := Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	if !bytes.Equal(decoded.Payload, original.Payload) {
		t.Errorf("byte string roundtrip: got %q, want %q", decoded.Payload, original.Payload)
	}
}

func BenchmarkMarshal(b *testing.B) {
	request := daemonRequest{
		Action: "QueryPathInfo",
		Fields: map[string]any{"base": "abcdefghijklmnopqrstuvwxyz123456-hello-1.0"},
	}

	b.ReportAllocs()
	for b.Loop() {
		Marshal(request)
	}
}

func TestDiagnose(t *testing.T) {
	data, err := Marshal(map[string]any{"action": "status"})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	notation, err := Diagnose(data)
	if err != nil {
		t.Fatalf("Diagnose: %v", err)
	}

	if !strings.Contains(notation, `"action"`) {
		t.Errorf("notation %q does not contain \"action\"", notation)
	}
	if !strings.Contains(notation, `"status"`) {
		t.Errorf("notation %q does not contain \"status\"", notation)
	}
}

func TestDiagnoseFirst(t *testing.T) {
	item1, err := Marshal("hello")
	if err != nil {
		t.Fatalf("Marshal item 1: %v", err)
	}
	item2, err := Marshal(int64(42))
	if err != nil {
		t.Fatalf("Marshal item 2: %v", err)
	}

	var sequence []byte
	sequence = append(sequence, item1...)
	sequence = append(sequence, item2...)

	notation, remaining, err := DiagnoseFirst(sequence)
	if err != nil {
		t.Fatalf("DiagnoseFirst: %v", err)
	}

	if !strings.Contains(notation, `"hello"`) {
		t.Errorf("first item notation %q does not contain \"hello\"", notation)
	}
	if len(remaining) == 0 {
		t.Fatal("expected remaining bytes after first item")
	}

	notation2, remaining2, err := DiagnoseFirst(remaining)
	if err != nil {
		t.Fatalf("DiagnoseFirst second: %v", err)
	}
	if !strings.Contains(notation2, "42") {
		t.Errorf("second item notation %q does not contain \"42\"", notation2)
	}
	if len(remaining2) != 0 {
		t.Errorf("expected no remaining bytes, got %d", len(remaining2))
	}
}

func BenchmarkUnmarshal(b *testing.B) {
	request := daemonRequest{
		Action: "QueryPathInfo",
		Fields: map[string]any{"base": "abcdefghijklmnopqrstuvwxyz123456-hello-1.0"},
	}
	data, err := Marshal(request)
	if err != nil {
		b.Fatal(err)
	}

	b.SetBytes(int64(len(data)))
	b.ReportAllocs()
	for b.Loop() {
		var decoded daemonRequest
		Unmarshal(data, &decoded)
	}
}
