// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package nar

import (
	"errors"
	"fmt"
	"io"

	"github.com/nixcache/storecache/lib/cacheerr"
)

// rangeWriter drives both full-stream and windowed NAR encoding
// through the same tree-walk. It tracks cursor, the byte offset the
// conceptual full NAR stream has reached, and only forwards the slice
// of each emitted chunk that falls inside [start, end) to the
// underlying writer. Everything outside the window is still walked
// (directory structure must be traversed to find later files' byte
// positions) but its bytes are never materialized for large file
// content — see emitFile.
type rangeWriter struct {
	w      io.Writer
	cursor int64
	start  int64
	end    int64 // exclusive
}

// emit advances the cursor by len(data) and writes whatever portion
// of data intersects the window. Used for structural tokens, names,
// and symlink targets — all small enough to always hold in memory.
func (rw *rangeWriter) emit(data []byte) error {
	lo := rw.cursor
	hi := lo + int64(len(data))
	rw.cursor = hi

	writeFrom := max64(lo, rw.start)
	writeTo := min64(hi, rw.end)
	if writeFrom >= writeTo {
		return nil
	}
	if _, err := rw.w.Write(data[writeFrom-lo : writeTo-lo]); err != nil {
		return fmt.Errorf("nar: write: %w", err)
	}
	return nil
}

// emitFile advances the cursor by size and streams the portion of a
// regular file's contents that intersects the window. A file that
// falls entirely outside the window is never opened: its size alone
// (already known from Source.Stat) is enough to advance the cursor.
// A file partially inside the window is opened and seeked directly
// to the first byte the window needs, never reading bytes it will
// discard.
func (rw *rangeWriter) emitFile(src Source, subpath []string, size int64) error {
	lo := rw.cursor
	hi := lo + size
	rw.cursor = hi

	writeFrom := max64(lo, rw.start)
	writeTo := min64(hi, rw.end)
	if writeFrom >= writeTo {
		return nil
	}

	f, err := src.OpenFile(subpath)
	if err != nil {
		return fmt.Errorf("nar: opening %s: %w", joinSubpath(subpath), cacheerr.Kind(err))
	}
	defer f.Close()

	fileOffset := writeFrom - lo
	if fileOffset > 0 {
		if _, err := f.Seek(fileOffset, io.SeekStart); err != nil {
			return fmt.Errorf("nar: seeking %s: %w", joinSubpath(subpath), cacheerr.BackendUnavailable)
		}
	}

	want := writeTo - writeFrom
	n, err := io.CopyN(rw.w, f, want)
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return fmt.Errorf("nar: %s: declared size %d but only %d bytes available at offset %d: %w",
				joinSubpath(subpath), size, n, fileOffset, cacheerr.Internal)
		}
		return fmt.Errorf("nar: reading %s: %w", joinSubpath(subpath), cacheerr.BackendUnavailable)
	}
	return nil
}

func joinSubpath(subpath []string) string {
	if len(subpath) == 0 {
		return "."
	}
	out := subpath[0]
	for _, part := range subpath[1:] {
		out += "/" + part
	}
	return out
}

func max64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}

func min64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}
