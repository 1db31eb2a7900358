// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package listing

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/nixcache/storecache/lib/cacheerr"
)

// maxSymlinkHops bounds symlink-following, the same defense against
// a resolution cycle filepath.EvalSymlinks applies internally.
const maxSymlinkHops = 40

// ResolveServePath resolves subpath's components on disk starting
// from storeRoot (the real directory backing a single store path),
// following symlinks per the containment policy: a symlink is
// followed if its target, once resolved, lies under storeRoot or
// under allowedRoot (real_store_dir); anything else is rejected as
// Forbidden. The returned path never itself names a symlink — every
// symlink encountered along the way has already been followed.
func ResolveServePath(storeRoot, allowedRoot string, subpath []string) (string, error) {
	current := filepath.Clean(storeRoot)
	hops := 0

	for _, component := range subpath {
		switch component {
		case "", ".", "..":
			return "", fmt.Errorf("listing: subpath component %q is not allowed: %w", component, cacheerr.BadRequest)
		}

		next := filepath.Join(current, component)
		resolved, err := resolveSymlinks(next, storeRoot, allowedRoot, &hops)
		if err != nil {
			return "", err
		}
		current = resolved
	}

	return current, nil
}

func resolveSymlinks(path, storeRoot, allowedRoot string, hops *int) (string, error) {
	for {
		info, err := os.Lstat(path)
		if err != nil {
			if os.IsNotExist(err) {
				return "", fmt.Errorf("listing: %s: %w", path, cacheerr.NotFound)
			}
			return "", fmt.Errorf("listing: stat %s: %w", path, cacheerr.BackendUnavailable)
		}
		if info.Mode()&os.ModeSymlink == 0 {
			return path, nil
		}

		*hops++
		if *hops > maxSymlinkHops {
			return "", fmt.Errorf("listing: too many levels of symbolic links resolving %s: %w", path, cacheerr.Forbidden)
		}

		target, err := os.Readlink(path)
		if err != nil {
			return "", fmt.Errorf("listing: readlink %s: %w", path, cacheerr.BackendUnavailable)
		}

		var next string
		if filepath.IsAbs(target) {
			next = filepath.Clean(target)
		} else {
			next = filepath.Join(filepath.Dir(path), target)
		}

		if !isUnder(next, storeRoot) && !isUnder(next, allowedRoot) {
			return "", fmt.Errorf("listing: symlink %s -> %s escapes the store: %w", path, target, cacheerr.Forbidden)
		}
		path = next
	}
}

func isUnder(path, root string) bool {
	root = filepath.Clean(root)
	path = filepath.Clean(path)
	return path == root || strings.HasPrefix(path, root+string(filepath.Separator))
}
