// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package storepath

import "sort"

// Info is the metadata the store backend knows about a realized
// store path (spec.md §3 ValidPathInfo). NarHash is stored as raw
// SHA-256 bytes; lib/narhash renders it to text.
type Info struct {
	NarHash          [32]byte
	NarSize          uint64
	References       []StorePath
	Deriver          StorePath // zero value if absent
	Sigs             []string  // pre-existing "keyName:base64sig" strings
	CA               string    // rendered descriptor, "" if absent
	RegistrationTime int64
}

// SortedReferences returns References sorted by hash part, the order
// required everywhere a reference list is rendered (narinfo
// References field, signing fingerprint).
func (info Info) SortedReferences() []StorePath {
	out := make([]StorePath, len(info.References))
	copy(out, info.References)
	sort.Slice(out, func(i, j int) bool { return out[i].Hash() < out[j].Hash() })
	return out
}
