// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package nar

import (
	"encoding/binary"
	"fmt"
	"math"
	"sort"

	"io"
)

// Magic is the fixed token every NAR stream opens with.
const Magic = "nix-archive-1"

var zeroPad [8]byte

// Encode writes the full NAR stream for src's root to w.
func Encode(w io.Writer, src Source) error {
	return EncodeRange(w, src, 0, math.MaxInt64)
}

// EncodeRange writes exactly the bytes of the NAR stream in
// [start, start+length) to w, without generating bytes outside that
// window — large file content that falls entirely outside the window
// is never read, only accounted for by size. start and length must
// be non-negative; a window extending past the end of the stream is
// silently clamped (the caller is expected to have already validated
// start/length against the stream's actual total size, usually known
// in advance from a prior narHash/narSize computation).
func EncodeRange(w io.Writer, src Source, start, length int64) error {
	if start < 0 || length < 0 {
		return fmt.Errorf("nar: start and length must be non-negative, got start=%d length=%d", start, length)
	}

	end := start + length
	if length > 0 && end < start {
		end = math.MaxInt64 // overflow: treat as unbounded
	}

	rw := &rangeWriter{w: w, start: start, end: end}
	if err := writeToken(rw, Magic); err != nil {
		return err
	}
	return encodeNode(rw, src, nil)
}

func encodeNode(rw *rangeWriter, src Source, subpath []string) error {
	kind, executable, size, err := src.Stat(subpath)
	if err != nil {
		return fmt.Errorf("nar: stat %s: %w", joinSubpath(subpath), err)
	}

	if err := writeToken(rw, "("); err != nil {
		return err
	}
	if err := writeToken(rw, "type"); err != nil {
		return err
	}

	switch kind {
	case KindRegular:
		if err := writeToken(rw, "regular"); err != nil {
			return err
		}
		if executable {
			if err := writeToken(rw, "executable"); err != nil {
				return err
			}
			if err := writeToken(rw, ""); err != nil {
				return err
			}
		}
		if err := writeToken(rw, "contents"); err != nil {
			return err
		}
		if err := encodeFileContents(rw, src, subpath, size); err != nil {
			return err
		}

	case KindSymlink:
		target, err := src.ReadLink(subpath)
		if err != nil {
			return fmt.Errorf("nar: readlink %s: %w", joinSubpath(subpath), err)
		}
		if err := writeToken(rw, "symlink"); err != nil {
			return err
		}
		if err := writeToken(rw, "target"); err != nil {
			return err
		}
		if err := writeBytes(rw, target); err != nil {
			return err
		}

	case KindDirectory:
		if err := writeToken(rw, "directory"); err != nil {
			return err
		}
		entries, err := src.ReadDir(subpath)
		if err != nil {
			return fmt.Errorf("nar: readdir %s: %w", joinSubpath(subpath), err)
		}
		// Directory entries MUST be sorted by raw byte order of
		// their names regardless of what the backend returns.
		sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })

		for _, e := range entries {
			if err := writeToken(rw, "entry"); err != nil {
				return err
			}
			if err := writeToken(rw, "("); err != nil {
				return err
			}
			if err := writeToken(rw, "name"); err != nil {
				return err
			}
			if err := writeBytes(rw, []byte(e.Name)); err != nil {
				return err
			}
			if err := writeToken(rw, "node"); err != nil {
				return err
			}
			child := append(append([]string{}, subpath...), e.Name)
			if err := encodeNode(rw, src, child); err != nil {
				return err
			}
			if err := writeToken(rw, ")"); err != nil {
				return err
			}
		}

	default:
		return fmt.Errorf("nar: %s has unknown entry kind %d", joinSubpath(subpath), kind)
	}

	return writeToken(rw, ")")
}

func encodeFileContents(rw *rangeWriter, src Source, subpath []string, size int64) error {
	var lenBuf [8]byte
	binary.LittleEndian.PutUint64(lenBuf[:], uint64(size))
	if err := rw.emit(lenBuf[:]); err != nil {
		return err
	}
	if err := rw.emitFile(src, subpath, size); err != nil {
		return err
	}
	if pad := padLen(size); pad > 0 {
		if err := rw.emit(zeroPad[:pad]); err != nil {
			return err
		}
	}
	return nil
}

// writeBytes emits a NAR string token: an 8-byte little-endian
// length, the bytes themselves, then zero padding out to the next
// multiple of 8.
func writeBytes(rw *rangeWriter, data []byte) error {
	var lenBuf [8]byte
	binary.LittleEndian.PutUint64(lenBuf[:], uint64(len(data)))
	if err := rw.emit(lenBuf[:]); err != nil {
		return err
	}
	if err := rw.emit(data); err != nil {
		return err
	}
	if pad := padLen(int64(len(data))); pad > 0 {
		if err := rw.emit(zeroPad[:pad]); err != nil {
			return err
		}
	}
	return nil
}

func writeToken(rw *rangeWriter, s string) error {
	return writeBytes(rw, []byte(s))
}

func padLen(n int64) int64 {
	return (8 - n%8) % 8
}
