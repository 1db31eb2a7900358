// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package narhash computes the SHA-256 narHash of a NAR stream,
// formats it for narinfo text and store-path hash parts, builds the
// signing fingerprint, and produces detached ed25519 signatures over
// it.
package narhash

import "fmt"

// Alphabet is Nix's own base-32 variant: digits followed by a
// consonant-heavy lowercase set that omits 'e', 'o', 'u', and 't' to
// avoid spelling words by accident. Neither the encoding nor the bit
// order matches RFC 4648 base32, so the standard library's
// encoding/base32 cannot be reused here. Exported so lib/storepath
// can validate hash-part characters without duplicating it.
const Alphabet = "0123456789abcdfghijklmnpqrsvwxyz"

const alphabet = Alphabet

// EncodeNix32 renders data in Nix's base-32 variant: groups of 5 bits
// packed most-significant-group-first, output length
// ceil(len(data)*8/5) characters, zero padding bits on the final
// (most significant) group ignored.
func EncodeNix32(data []byte) string {
	if len(data) == 0 {
		return ""
	}
	length := len(data)
	outputLen := (length*8-1)/5 + 1
	out := make([]byte, outputLen)
	for n := outputLen - 1; n >= 0; n-- {
		b := n * 5
		i := b / 8
		j := uint(b % 8)

		c := data[i] >> j
		if i+1 < length {
			c |= data[i+1] << (8 - j)
		}
		out[outputLen-n-1] = alphabet[c&0x1f]
	}
	return string(out)
}

// DecodeNix32 is the inverse of EncodeNix32: it reconstructs
// byteLen bytes from a Nix base-32 string. Returns an error if s has
// the wrong length for byteLen, contains a character outside the
// alphabet, or encodes more bits than byteLen*8 can hold (non-zero
// padding bits in the final group).
func DecodeNix32(s string, byteLen int) ([]byte, error) {
	expectedLen := (byteLen*8-1)/5 + 1
	if len(s) != expectedLen {
		return nil, fmt.Errorf("narhash: nix32 string %q has length %d, want %d for %d bytes", s, len(s), expectedLen, byteLen)
	}

	out := make([]byte, byteLen)
	for n := 0; n < len(s); n++ {
		digit, ok := digitValue(s[len(s)-n-1])
		if !ok {
			return nil, fmt.Errorf("narhash: nix32 string %q contains invalid character %q", s, s[len(s)-n-1])
		}

		b := n * 5
		i := b / 8
		j := uint(b % 8)

		out[i] |= digit << j
		if i+1 < byteLen {
			out[i+1] |= digit >> (8 - j)
		} else if digit>>(8-j) != 0 {
			return nil, fmt.Errorf("narhash: nix32 string %q encodes more bits than %d bytes hold", s, byteLen)
		}
	}
	return out, nil
}

func digitValue(c byte) (byte, bool) {
	for i := 0; i < len(alphabet); i++ {
		if alphabet[i] == c {
			return byte(i), true
		}
	}
	return 0, false
}
