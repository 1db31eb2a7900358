// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package listing

import (
	"fmt"
	"sort"

	"github.com/nixcache/storecache/lib/nar"
)

// Build walks src's entire subtree into a Tree, the ".ls" response
// body. It never follows symlinks — per spec, absolute symlinks
// leaving the subtree are recorded as-is with no follow, so every
// symlink (escaping or not) is simply recorded by its raw target
// text. Build reuses nar.Source rather than defining its own
// filesystem interface, since the walk it needs (stat/readdir/
// readlink) is identical to the NAR encoder's.
func Build(src nar.Source) (Tree, error) {
	root, err := buildEntry(src, nil)
	if err != nil {
		return Tree{}, err
	}
	return Tree{Version: 1, Root: root}, nil
}

func buildEntry(src nar.Source, subpath []string) (Entry, error) {
	kind, executable, size, err := src.Stat(subpath)
	if err != nil {
		return Entry{}, fmt.Errorf("listing: stat %v: %w", subpath, err)
	}

	switch kind {
	case nar.KindRegular:
		return Entry{Kind: kind, Size: size, Executable: executable}, nil

	case nar.KindSymlink:
		target, err := src.ReadLink(subpath)
		if err != nil {
			return Entry{}, fmt.Errorf("listing: readlink %v: %w", subpath, err)
		}
		return Entry{Kind: kind, Target: string(target)}, nil

	case nar.KindDirectory:
		dirEntries, err := src.ReadDir(subpath)
		if err != nil {
			return Entry{}, fmt.Errorf("listing: readdir %v: %w", subpath, err)
		}
		sort.Slice(dirEntries, func(i, j int) bool { return dirEntries[i].Name < dirEntries[j].Name })

		children := NewEntryMap()
		for _, de := range dirEntries {
			child, err := buildEntry(src, append(append([]string{}, subpath...), de.Name))
			if err != nil {
				return Entry{}, err
			}
			children.Put(de.Name, child)
		}
		return Entry{Kind: kind, Children: children}, nil

	default:
		return Entry{}, fmt.Errorf("listing: %v has unknown entry kind %d", subpath, kind)
	}
}
