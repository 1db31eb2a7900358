// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package compressor wraps the NAR byte stream in the compression
// format a narinfo's FileHash/FileSize pair is computed over. Unlike
// a whole-buffer compressor, every wrapper here streams: a NAR can be
// gigabytes and must never be fully buffered to produce a response.
package compressor

import (
	"fmt"
	"io"
)

// Format identifies a NAR compression format, as advertised in a
// store path's ".nar.<ext>" suffix and narinfo's Compression: field.
type Format string

const (
	// None passes the NAR stream through unchanged.
	None Format = "none"
	// Xz is the default Nix binary cache compression format.
	Xz Format = "xz"
	// Zstd trades a slightly worse ratio than xz for much faster
	// decompression, useful for a cache fronting interactive installs.
	Zstd Format = "zstd"
)

// String returns the narinfo Compression: field value for the
// format.
func (f Format) String() string { return string(f) }

// Extension returns the file extension used in "/nar/<hash>.nar<ext>"
// request paths: "" for None, ".xz" for Xz, ".zst" for Zstd.
func (f Format) Extension() string {
	switch f {
	case Xz:
		return ".xz"
	case Zstd:
		return ".zst"
	default:
		return ""
	}
}

// Parse maps a Compression: field value or URL suffix to a Format.
// "bzip2" and "lzip" are recognized (Nix's narinfo format allows
// them) but rejected with an error — this cache never produces or
// reads them.
func Parse(name string) (Format, error) {
	switch name {
	case "", "none":
		return None, nil
	case "xz":
		return Xz, nil
	case "zstd", "zst":
		return Zstd, nil
	default:
		return "", fmt.Errorf("compressor: unsupported compression format %q", name)
	}
}

// NewReader wraps src with a decompressor for format. The returned
// reader must be closed if it implements io.Closer (the zstd reader
// does, releasing its zstd.Decoder; the xz reader and the identity
// passthrough do not allocate resources that need releasing).
func NewReader(src io.Reader, format Format) (io.Reader, error) {
	switch format {
	case None, "":
		return src, nil
	case Xz:
		return newXzReader(src)
	case Zstd:
		return newZstdReader(src)
	default:
		return nil, fmt.Errorf("compressor: unsupported compression format %q", format)
	}
}

// NewWriter wraps dst with a compressor for format. The caller must
// call Close on the returned WriteCloser to flush trailing frame
// data — for None, Close is a no-op.
func NewWriter(dst io.Writer, format Format) (io.WriteCloser, error) {
	switch format {
	case None, "":
		return nopWriteCloser{dst}, nil
	case Xz:
		return newXzWriter(dst)
	case Zstd:
		return newZstdWriter(dst)
	default:
		return nil, fmt.Errorf("compressor: unsupported compression format %q", format)
	}
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }
