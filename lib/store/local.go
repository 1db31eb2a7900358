// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/nixcache/storecache/lib/cacheerr"
	"github.com/nixcache/storecache/lib/nar"
)

// FileTree reads a single store path's filesystem subtree directly
// off disk, rooted at root (the real, on-disk directory for that
// path). It implements nar.Source, so it can be fed straight into
// nar.Encode/EncodeRange and listing.Build — file content, directory
// listing, and symlink targets all come from real_store_dir, never
// from the daemon, matching the split in spec.md §1: the daemon
// supplies metadata, the filesystem supplies bytes.
type FileTree struct {
	root string
}

// NewFileTree returns a FileTree rooted at root. root must already
// have been validated (by storepath.ResolveUnder) to lie under
// real_store_dir.
func NewFileTree(root string) *FileTree {
	return &FileTree{root: filepath.Clean(root)}
}

func (t *FileTree) real(subpath []string) string {
	if len(subpath) == 0 {
		return t.root
	}
	return filepath.Join(t.root, filepath.Join(subpath...))
}

func (t *FileTree) Stat(subpath []string) (nar.EntryKind, bool, int64, error) {
	real := t.real(subpath)
	info, err := os.Lstat(real)
	if err != nil {
		return 0, false, 0, wrapFSError(real, err)
	}

	switch {
	case info.Mode()&os.ModeSymlink != 0:
		return nar.KindSymlink, false, 0, nil
	case info.IsDir():
		return nar.KindDirectory, false, 0, nil
	case info.Mode().IsRegular():
		executable := info.Mode()&0o111 != 0
		return nar.KindRegular, executable, info.Size(), nil
	default:
		return 0, false, 0, fmt.Errorf("store: %s is neither a regular file, directory, nor symlink: %w", real, cacheerr.Internal)
	}
}

func (t *FileTree) ReadDir(subpath []string) ([]nar.Entry, error) {
	real := t.real(subpath)
	dirEntries, err := os.ReadDir(real)
	if err != nil {
		return nil, wrapFSError(real, err)
	}

	entries := make([]nar.Entry, 0, len(dirEntries))
	for _, de := range dirEntries {
		info, err := de.Info()
		if err != nil {
			return nil, wrapFSError(filepath.Join(real, de.Name()), err)
		}

		var kind nar.EntryKind
		var executable bool
		switch {
		case info.Mode()&os.ModeSymlink != 0:
			kind = nar.KindSymlink
		case info.IsDir():
			kind = nar.KindDirectory
		default:
			kind = nar.KindRegular
			executable = info.Mode()&0o111 != 0
		}
		entries = append(entries, nar.Entry{Name: de.Name(), Kind: kind, Executable: executable})
	}
	return entries, nil
}

func (t *FileTree) ReadLink(subpath []string) ([]byte, error) {
	real := t.real(subpath)
	target, err := os.Readlink(real)
	if err != nil {
		return nil, wrapFSError(real, err)
	}
	return []byte(target), nil
}

func (t *FileTree) OpenFile(subpath []string) (io.ReadSeekCloser, error) {
	real := t.real(subpath)
	f, err := os.Open(real)
	if err != nil {
		return nil, wrapFSError(real, err)
	}
	return f, nil
}

func wrapFSError(path string, err error) error {
	if os.IsNotExist(err) {
		return fmt.Errorf("store: %s: %w", path, cacheerr.NotFound)
	}
	if os.IsPermission(err) {
		return fmt.Errorf("store: %s: %w", path, cacheerr.Forbidden)
	}
	return fmt.Errorf("store: %s: %w", path, cacheerr.BackendUnavailable)
}

// SplitRealPath separates a resolved real filesystem path into the
// path components relative to a store path's root directory, the
// form nar.Source and listing.Build expect. It is the inverse of
// FileTree.real.
func SplitRealPath(root, real string) ([]string, error) {
	root = filepath.Clean(root)
	real = filepath.Clean(real)
	if real == root {
		return nil, nil
	}
	if !strings.HasPrefix(real, root+string(filepath.Separator)) {
		return nil, fmt.Errorf("store: %s does not lie under %s: %w", real, root, cacheerr.Internal)
	}
	rel := real[len(root)+1:]
	return strings.Split(rel, string(filepath.Separator)), nil
}
