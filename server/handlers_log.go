// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"io"
	"net/http"
	"strings"

	"github.com/nixcache/storecache/lib/cacheerr"
	"github.com/nixcache/storecache/lib/storepath"
)

// handleLog serves "/log/<drv-basename>". Build logs are an optional
// backend capability — a daemon that never implements LogFetchable
// leaves h.Store.LogFetcher nil, and every request here is simply a
// 404, the same as a log the daemon knows it doesn't have.
func (h *Handler) handleLog(w http.ResponseWriter, r *http.Request) {
	base := strings.TrimPrefix(r.URL.Path, "/log/")

	drv, err := storepath.Parse(base)
	if err != nil {
		writeError(w, err)
		return
	}

	if h.Store.LogFetcher == nil {
		writeError(w, cacheerr.NotFound)
		return
	}

	body, ok, err := h.Store.LogFetcher.GetBuildLog(r.Context(), drv)
	if err != nil {
		writeError(w, err)
		return
	}
	if !ok {
		writeError(w, cacheerr.NotFound)
		return
	}
	defer body.Close()

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if r.Method == http.MethodHead {
		return
	}
	if _, err := io.Copy(w, body); err != nil {
		h.Logger.Warn("streaming build log", "drv", drv, "error", err)
	}
}
