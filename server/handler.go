// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"log/slog"
	"net/http"

	"github.com/nixcache/storecache/lib/narhash"
	"github.com/nixcache/storecache/lib/store"
)

// Handler bundles everything a request needs: the store handle, the
// signing keys loaded at startup, and the values advertised in
// nix-cache-info/narinfo. It carries no mutable state — every field
// is set once before NewRouter is called and read concurrently by
// every request thereafter.
type Handler struct {
	Store           store.Handle
	Keys            []*narhash.SigningKey
	VirtualStoreDir string
	Priority        int
	Logger          *slog.Logger
}

// NewRouter builds the complete HTTP handler: exact routes for the
// fixed endpoints, prefix routes for the hash-addressed ones, the
// way proxy/server.go registers its fixed agentMux routes alongside
// a manually-parsed catch-all for /http/.
func NewRouter(h *Handler) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /version", h.handleVersion)
	mux.HandleFunc("GET /nix-cache-info", h.handleNixCacheInfo)
	mux.HandleFunc("GET /nar/", h.handleNar)
	mux.HandleFunc("HEAD /nar/", h.handleNar)
	mux.HandleFunc("GET /log/", h.handleLog)
	mux.HandleFunc("GET /serve/", h.handleServe)
	mux.HandleFunc("GET /", h.handleRoot)

	return withLogging(h.Logger, mux)
}
