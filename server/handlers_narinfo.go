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
	"github.com/nixcache/storecache/lib/narinfo"
	"github.com/nixcache/storecache/lib/storepath"
)

// handleHashAddressed dispatches the two endpoints that live directly
// off the root path, distinguished only by suffix: "/<hash>.narinfo"
// and "/<hash>.ls" (handled in handlers_ls.go). Go's ServeMux
// wildcard segments can't express a literal suffix glued onto a
// wildcard, so — exactly as proxy/handler.go's HandleHTTPProxy
// manually parses r.URL.Path instead of relying on mux patterns —
// this is plain string matching.
func (h *Handler) handleHashAddressed(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimPrefix(r.URL.Path, "/")

	switch {
	case strings.HasSuffix(name, ".narinfo"):
		h.handleNarinfo(w, r, strings.TrimSuffix(name, ".narinfo"))
	case strings.HasSuffix(name, ".ls"):
		h.handleLs(w, r, strings.TrimSuffix(name, ".ls"))
	default:
		writeError(w, cacheerr.NotFound)
	}
}

func (h *Handler) handleNarinfo(w http.ResponseWriter, r *http.Request, hashPart string) {
	ctx := r.Context()

	hashPart, err := storepath.ParseHashPart(hashPart)
	if err != nil {
		writeError(w, err)
		return
	}

	path, info, ok, err := h.Store.ResolveAndQuery(ctx, hashPart)
	if err != nil {
		writeError(w, err)
		return
	}
	if !ok {
		writeError(w, cacheerr.NotFound)
		return
	}

	// The conditional-request check is cheap: info.NarHash is already
	// known from the backend query, so a 304 never needs to stream
	// the NAR through C3. Only a cache miss pays for the recompute
	// below.
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

	// Recompute narHash/narSize from the actual bytes rather than
	// trusting the backend's stored values, per spec.md §2's data
	// flow for narinfo: C2 streams through C3 every time the response
	// body is actually built.
	hasher := narhash.NewHasher()
	if err := nar.Encode(hasher, tree); err != nil {
		writeError(w, err)
		return
	}
	digest, narSize := hasher.Sum()
	narHash := narhash.FormatBase32(digest)

	advertisedPath := h.VirtualStoreDir + "/" + path.Base()

	refs := make([]string, 0, len(info.References))
	refFull := make([]string, 0, len(info.References))
	for _, ref := range info.SortedReferences() {
		refs = append(refs, ref.Base())
		refFull = append(refFull, h.VirtualStoreDir+"/"+ref.Base())
	}

	fingerprint := narhash.Fingerprint(advertisedPath, narHash, narSize, refFull)

	fresh := make([]string, 0, len(h.Keys))
	for _, key := range h.Keys {
		fresh = append(fresh, narhash.Sign(key, fingerprint))
	}
	signatures := narhash.MergeSignatures(info.Sigs, fresh)

	var deriver string
	if !info.Deriver.IsZero() {
		deriver = info.Deriver.Base()
	}

	body := narinfo.Info{
		StorePath:      advertisedPath,
		URL:            "nar/" + path.Hash() + ".nar" + compressor.None.Extension(),
		Compression:    compressor.None,
		NarHash:        narHash,
		NarSize:        narSize,
		References:     refs,
		Deriver:        deriver,
		Signatures:     signatures,
		ContentAddress: info.CA,
	}.Render()

	w.Header().Set("Content-Type", "text/x-nix-narinfo")
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	if r.Method == http.MethodHead {
		return
	}
	fmt.Fprint(w, body)
}
