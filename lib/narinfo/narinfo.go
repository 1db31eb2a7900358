// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package narinfo renders the narinfo text block a fetcher downloads
// alongside a store path's NAR: store path, compression, hashes,
// references, deriver, and signatures, in a fixed field order.
package narinfo

import (
	"sort"
	"strconv"
	"strings"

	"github.com/nixcache/storecache/lib/compressor"
)

// Info holds everything needed to render a narinfo text block. All
// fields are already-resolved, fully-formatted values — narinfo does
// not know about store directories, hashing, or signing; it only
// renders.
type Info struct {
	StorePath     string // full path under the advertised store directory
	URL           string // "nar/<handle>.nar[.xz|.zst]"
	Compression   compressor.Format
	FileHash      string // "sha256:<base32>", empty if Compression is None
	FileSize      uint64 // 0 and omitted if Compression is None
	NarHash       string // "sha256:<base32>"
	NarSize       uint64
	References    []string // basenames, any order — Render sorts them
	Deriver       string   // basename, empty if absent
	Signatures    []string // "<key-name>:<base64>", any order
	ContentAddress string  // rendered CA descriptor, empty if absent
}

// Render produces the narinfo text block in the field order fetchers
// expect. Optional fields with no value are omitted entirely rather
// than written blank.
func (info Info) Render() string {
	var b strings.Builder

	writeField(&b, "StorePath", info.StorePath)
	writeField(&b, "URL", info.URL)
	writeField(&b, "Compression", info.Compression.String())

	if info.Compression != compressor.None && info.Compression != "" {
		writeField(&b, "FileHash", info.FileHash)
		writeField(&b, "FileSize", strconv.FormatUint(info.FileSize, 10))
	}

	writeField(&b, "NarHash", info.NarHash)
	writeField(&b, "NarSize", strconv.FormatUint(info.NarSize, 10))

	refs := make([]string, len(info.References))
	copy(refs, info.References)
	sort.Strings(refs)
	writeField(&b, "References", strings.Join(refs, " "))

	if info.Deriver != "" {
		writeField(&b, "Deriver", info.Deriver)
	}

	for _, sig := range info.Signatures {
		writeField(&b, "Sig", sig)
	}

	if info.ContentAddress != "" {
		writeField(&b, "CA", info.ContentAddress)
	}

	return b.String()
}

func writeField(b *strings.Builder, name, value string) {
	b.WriteString(name)
	b.WriteString(": ")
	b.WriteString(value)
	b.WriteByte('\n')
}
