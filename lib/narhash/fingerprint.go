// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package narhash

import (
	"sort"
	"strconv"
	"strings"
)

// Fingerprint builds the canonical string a detached signature is
// computed over: "1;<store-path>;<narHash>;<narSize>;<refs>".
//
// storePath and references are full advertised paths (store
// directory included), narHash is the "sha256:<nix32>" form. The
// function does not take lib/storepath values directly — storepath
// uses narhash's Alphabet constant, so narhash must not import
// storepath back. references is sorted lexicographically by full
// path before joining; callers do not need to pre-sort.
func Fingerprint(storePath, narHash string, narSize uint64, references []string) string {
	sorted := make([]string, len(references))
	copy(sorted, references)
	sort.Strings(sorted)

	var b strings.Builder
	b.WriteString("1;")
	b.WriteString(storePath)
	b.WriteByte(';')
	b.WriteString(narHash)
	b.WriteByte(';')
	b.WriteString(strconv.FormatUint(narSize, 10))
	b.WriteByte(';')
	b.WriteString(strings.Join(sorted, ","))
	return b.String()
}
