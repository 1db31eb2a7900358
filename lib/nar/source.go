// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package nar serializes a store path's filesystem subtree to the
// Nix Archive (NAR) binary format: a sequence of length-prefixed
// tokens describing a recursive directory/file/symlink tree,
// byte-identical for the same subtree every time it is produced.
package nar

import "io"

// EntryKind identifies the type of a NAR node.
type EntryKind int

const (
	KindRegular EntryKind = iota
	KindSymlink
	KindDirectory
)

func (k EntryKind) String() string {
	switch k {
	case KindRegular:
		return "regular"
	case KindSymlink:
		return "symlink"
	case KindDirectory:
		return "directory"
	default:
		return "unknown"
	}
}

// Entry is one name inside a directory listing, as produced by
// Source.ReadDir.
type Entry struct {
	Name       string
	Kind       EntryKind
	Executable bool // meaningful only when Kind == KindRegular
}

// Source is the filesystem subtree a NAR stream is generated from,
// rooted at a single store path. subpath is a sequence of path
// components relative to that root; nil or an empty slice denotes the
// root itself. This mirrors the Store Adapter's own public contract
// (open_file/readdir/readlink), so a store backend implementation
// can satisfy Source directly.
type Source interface {
	// Stat reports the kind of subpath and, if it names a regular
	// file, whether it is executable and its declared size in bytes.
	Stat(subpath []string) (kind EntryKind, executable bool, size int64, err error)

	// ReadDir lists the immediate children of subpath, which must
	// name a directory. Order is not required to be sorted — the
	// encoder sorts defensively.
	ReadDir(subpath []string) ([]Entry, error)

	// ReadLink returns the raw target bytes of subpath, which must
	// name a symlink. The target is written to the NAR stream
	// verbatim, with no interpretation or containment check — NAR
	// serialization never follows or validates symlinks.
	ReadLink(subpath []string) ([]byte, error)

	// OpenFile opens subpath, which must name a regular file, for
	// reading. The returned ReadSeekCloser's Seek is used to jump
	// directly to an offset inside the file when only part of it
	// falls inside a requested byte range, without reading and
	// discarding the bytes before it.
	OpenFile(subpath []string) (io.ReadSeekCloser, error)
}
