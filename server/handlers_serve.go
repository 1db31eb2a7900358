// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/nixcache/storecache/lib/cacheerr"
	"github.com/nixcache/storecache/lib/listing"
	"github.com/nixcache/storecache/lib/storepath"
)

// handleServe serves "/serve/<hash32>[/<subpath>]": a plain
// filesystem view of a store path's contents, following symlinks
// under the containment rule listing.ResolveServePath enforces. It
// reads directly from the real on-disk store rather than through
// lib/nar — a symlink's target is a filesystem fact the NAR encoder
// has already resolved into a verbatim link, not something C3 models.
func (h *Handler) handleServe(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/serve/")
	hashPart, subpathStr, _ := strings.Cut(rest, "/")

	hashPart, err := storepath.ParseHashPart(hashPart)
	if err != nil {
		writeError(w, err)
		return
	}

	ctx := r.Context()
	path, _, ok, err := h.Store.ResolveAndQuery(ctx, hashPart)
	if err != nil {
		writeError(w, err)
		return
	}
	if !ok {
		writeError(w, cacheerr.NotFound)
		return
	}

	_, storeRoot, err := h.Store.Tree(path)
	if err != nil {
		writeError(w, err)
		return
	}

	subpath, err := storepath.SplitSubpath(subpathStr)
	if err != nil {
		writeError(w, err)
		return
	}

	resolved, err := listing.ResolveServePath(storeRoot, h.Store.RealStoreDir, subpath)
	if err != nil {
		writeError(w, err)
		return
	}

	info, err := os.Stat(resolved)
	if err != nil {
		if os.IsNotExist(err) {
			writeError(w, cacheerr.NotFound)
		} else {
			writeError(w, fmt.Errorf("server: stat %s: %w", resolved, cacheerr.BackendUnavailable))
		}
		return
	}

	if info.IsDir() {
		h.serveDirectory(w, r, resolved, "/"+path.Base()+"/"+strings.Join(subpath, "/"))
		return
	}
	h.serveFile(w, r, resolved, info)
}

func (h *Handler) serveDirectory(w http.ResponseWriter, r *http.Request, dir, title string) {
	if indexInfo, err := os.Stat(filepath.Join(dir, "index.html")); err == nil && !indexInfo.IsDir() {
		h.serveFile(w, r, filepath.Join(dir, "index.html"), indexInfo)
		return
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		writeError(w, fmt.Errorf("server: reading %s: %w", dir, cacheerr.BackendUnavailable))
		return
	}

	indexEntries := make([]listing.IndexEntry, 0, len(entries))
	for _, entry := range entries {
		entryInfo, err := entry.Info()
		if err != nil {
			continue
		}
		indexEntries = append(indexEntries, listing.IndexEntry{
			Name:       entry.Name(),
			IsDir:      entry.IsDir(),
			Size:       entryInfo.Size(),
			Executable: entryInfo.Mode()&0o111 != 0,
		})
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if r.Method == http.MethodHead {
		return
	}
	hasParent := strings.Count(strings.Trim(title, "/"), "/") > 0
	if err := listing.RenderIndex(w, title, hasParent, indexEntries); err != nil {
		h.Logger.Warn("rendering directory index", "dir", dir, "error", err)
	}
}

func (h *Handler) serveFile(w http.ResponseWriter, r *http.Request, path string, info os.FileInfo) {
	f, err := os.Open(path)
	if err != nil {
		writeError(w, fmt.Errorf("server: opening %s: %w", path, cacheerr.BackendUnavailable))
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", listing.ContentType(path))
	http.ServeContent(w, r, filepath.Base(path), info.ModTime(), f)
}
