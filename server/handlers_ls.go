// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"encoding/json"
	"net/http"

	"github.com/nixcache/storecache/lib/cacheerr"
	"github.com/nixcache/storecache/lib/listing"
	"github.com/nixcache/storecache/lib/storepath"
)

func (h *Handler) handleLs(w http.ResponseWriter, r *http.Request, hashPart string) {
	ctx := r.Context()

	hashPart, err := storepath.ParseHashPart(hashPart)
	if err != nil {
		writeError(w, err)
		return
	}

	path, _, ok, err := h.Store.ResolveAndQuery(ctx, hashPart)
	if err != nil {
		writeError(w, err)
		return
	}
	if !ok {
		writeError(w, cacheerr.NotFound)
		return
	}

	tree, _, err := h.Store.Tree(path)
	if err != nil {
		writeError(w, err)
		return
	}

	result, err := listing.Build(tree)
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(result); err != nil {
		h.Logger.Warn("writing .ls response", "error", err)
	}
}
