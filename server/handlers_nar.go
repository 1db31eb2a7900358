// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/nixcache/storecache/lib/cacheerr"
	"github.com/nixcache/storecache/lib/compressor"
	"github.com/nixcache/storecache/lib/nar"
	"github.com/nixcache/storecache/lib/narhash"
	"github.com/nixcache/storecache/lib/storepath"
)

// handleNar serves "/nar/<hash32>.nar[.xz|.zst]". The handle names
// the store path by its 32-character hash part, not by its narHash —
// the same form handleNarinfo advertises in the narinfo URL field.
// The only backend resolution primitive is by hash part, so this is
// the only form the router can satisfy.
func (h *Handler) handleNar(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimPrefix(r.URL.Path, "/nar/")

	format := compressor.None
	if rest, ok := strings.CutSuffix(name, compressor.Xz.Extension()); ok {
		name, format = rest, compressor.Xz
	} else if rest, ok := strings.CutSuffix(name, compressor.Zstd.Extension()); ok {
		name, format = rest, compressor.Zstd
	}
	name = strings.TrimSuffix(name, ".nar")

	hashPart, err := storepath.ParseHashPart(name)
	if err != nil {
		writeError(w, err)
		return
	}

	ctx := r.Context()
	path, info, ok, err := h.Store.ResolveAndQuery(ctx, hashPart)
	if err != nil {
		writeError(w, err)
		return
	}
	if !ok {
		writeError(w, cacheerr.NotFound)
		return
	}

	etag := fmt.Sprintf("W/%q", narhash.FormatBase32(info.NarHash))
	w.Header().Set("ETag", etag)
	if r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	tree, _, err := h.Store.Tree(path)
	if err != nil {
		writeError(w, err)
		return
	}

	narSize := int64(info.NarSize)

	rng, hasRange, err := parseRange(r.Header.Get("Range"), narSize)
	if err != nil {
		writeError(w, err)
		return
	}

	contentType := "application/x-nix-nar"
	if format != compressor.None {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Accept-Ranges", "bytes")

	// A compressed stream's final length isn't known without
	// compressing it, so this server never sets Content-Length for a
	// compressed response and never honors Range against one — the
	// client asked for the compressed transfer and gets it chunked
	// in full, the same tradeoff harmonia makes.
	if format != compressor.None {
		if hasRange {
			writeError(w, cacheerr.RangeNotSatisfiable)
			return
		}
		// Without this, net/http computes a Content-Length itself for
		// a body small enough to finish before its first flush.
		w.Header().Set("Transfer-Encoding", "chunked")
		if r.Method == http.MethodHead {
			return
		}
		cw, err := compressor.NewWriter(w, format)
		if err != nil {
			writeError(w, err)
			return
		}
		if err := nar.Encode(cw, tree); err != nil {
			h.Logger.Warn("streaming compressed nar", "path", path, "error", err)
			cw.Close()
			return
		}
		if err := cw.Close(); err != nil {
			h.Logger.Warn("flushing compressed nar", "path", path, "error", err)
		}
		return
	}

	if hasRange {
		w.Header().Set("Content-Range", contentRangeHeader(rng, narSize))
		w.Header().Set("Content-Length", strconv.FormatInt(rng.length(), 10))
		w.WriteHeader(http.StatusPartialContent)
		if r.Method == http.MethodHead {
			return
		}
		if err := nar.EncodeRange(w, tree, rng.start, rng.length()); err != nil {
			h.Logger.Warn("streaming nar", "path", path, "error", err)
		}
		return
	}

	w.Header().Set("Content-Length", strconv.FormatInt(narSize, 10))
	if r.Method == http.MethodHead {
		return
	}
	if err := nar.Encode(w, tree); err != nil {
		h.Logger.Warn("streaming nar", "path", path, "error", err)
	}
}

func contentRangeHeader(r byteRange, size int64) string {
	return "bytes " + strconv.FormatInt(r.start, 10) + "-" + strconv.FormatInt(r.end-1, 10) + "/" + strconv.FormatInt(size, 10)
}
