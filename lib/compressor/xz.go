// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package compressor

import (
	"fmt"
	"io"

	"github.com/ulikunitz/xz"
)

// newXzReader returns a streaming xz decompressor. No pack example
// repo uses xz or any LZMA-family codec, and the standard library has
// none either — github.com/ulikunitz/xz is the ecosystem's standard
// pure-Go xz implementation and is named directly per the expanded
// domain stack.
func newXzReader(src io.Reader) (io.Reader, error) {
	r, err := xz.NewReader(src)
	if err != nil {
		return nil, fmt.Errorf("compressor: xz reader: %w", err)
	}
	return r, nil
}

// xzDictCap is the LZMA2 dictionary size "xz -3" uses (4 MiB), the
// level spec.md §4.4 specifies. ulikunitz/xz doesn't expose a numeric
// preset level directly; DictCap is the preset's dominant parameter,
// so this is the closest match to "xz -3" its WriterConfig offers.
const xzDictCap = 4 << 20

// newXzWriter returns a streaming xz compressor at the dictionary
// size matching "xz -3".
func newXzWriter(dst io.Writer) (io.WriteCloser, error) {
	cfg := xz.WriterConfig{DictCap: xzDictCap}
	w, err := cfg.NewWriter(dst)
	if err != nil {
		return nil, fmt.Errorf("compressor: xz writer: %w", err)
	}
	return w, nil
}
