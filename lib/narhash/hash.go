// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package narhash

import (
	"crypto/sha256"
	"encoding/hex"
	"hash"
	"io"
)

// Hasher accumulates a streaming SHA-256 digest alongside the byte
// count it has seen. The narinfo handler encodes a NAR straight into a
// Hasher so the narHash and narSize are both known the moment the
// stream ends, without buffering the NAR in memory.
type Hasher struct {
	h    hash.Hash
	size uint64
}

// NewHasher returns a Hasher ready to accumulate bytes.
func NewHasher() *Hasher {
	return &Hasher{h: sha256.New()}
}

// Write implements io.Writer. It never returns an error — sha256.New
// never fails to Write.
func (hr *Hasher) Write(p []byte) (int, error) {
	n, err := hr.h.Write(p)
	hr.size += uint64(n)
	return n, err
}

// Sum returns the accumulated digest and byte count. It does not
// reset the Hasher.
func (hr *Hasher) Sum() (digest [32]byte, size uint64) {
	hr.h.Sum(digest[:0])
	return digest, hr.size
}

var _ io.Writer = (*Hasher)(nil)

// FormatBase32 renders a narHash for narinfo text and fingerprint
// text: "sha256:<52-character nix32>".
func FormatBase32(digest [32]byte) string {
	return "sha256:" + EncodeNix32(digest[:])
}

// FormatHex renders a narHash in the hexadecimal form some backends
// report instead of nix32: "sha256:<64 hex chars>".
func FormatHex(digest [32]byte) string {
	return "sha256:" + hex.EncodeToString(digest[:])
}

// ParseBase32 parses a "sha256:<nix32>" narHash string, as stored in
// ValidPathInfo or read back from a backend, into raw digest bytes.
func ParseBase32(s string) (digest [32]byte, err error) {
	const prefix = "sha256:"
	if len(s) <= len(prefix) || s[:len(prefix)] != prefix {
		return digest, errBadHash(s)
	}
	raw, err := DecodeNix32(s[len(prefix):], 32)
	if err != nil {
		return digest, errBadHash(s)
	}
	copy(digest[:], raw)
	return digest, nil
}
