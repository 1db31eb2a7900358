// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package compressor

import (
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
)

// newZstdReader returns a streaming zstd decompressor. Each call
// allocates a fresh *zstd.Decoder bound to src — unlike
// lib/artifactstore's reused singleton decoder, a narinfo-serving
// request streams an unbounded, unknown-length NAR and cannot share
// a decoder's internal window state across concurrent requests.
func newZstdReader(src io.Reader) (io.Reader, error) {
	dec, err := zstd.NewReader(src)
	if err != nil {
		return nil, fmt.Errorf("compressor: zstd reader: %w", err)
	}
	return &zstdReadCloser{dec}, nil
}

// zstdReadCloser releases the decoder's background goroutines when
// the HTTP handler is done streaming, whether it read to EOF or the
// client disconnected early.
type zstdReadCloser struct {
	dec *zstd.Decoder
}

func (r *zstdReadCloser) Read(p []byte) (int, error) { return r.dec.Read(p) }
func (r *zstdReadCloser) Close() error                { r.dec.Close(); return nil }

// newZstdWriter returns a streaming zstd compressor at level 8, the
// level spec.md §4.4 specifies for zstd NAR downloads.
func newZstdWriter(dst io.Writer) (io.WriteCloser, error) {
	enc, err := zstd.NewWriter(dst, zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(8)))
	if err != nil {
		return nil, fmt.Errorf("compressor: zstd writer: %w", err)
	}
	return enc, nil
}
