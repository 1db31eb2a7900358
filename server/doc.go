// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package server implements the cache's HTTP surface and the
// concurrency shell that runs it.
//
// [NewRouter] builds the http.Handler: nix-cache-info, narinfo,
// NAR streaming (with Range/HEAD support), the ".ls" listing, the
// "/serve/" browser, and build-log streaming, wiring together
// lib/store, lib/nar, lib/narhash, lib/compressor, lib/narinfo, and
// lib/listing. [Server] then serves that handler over a fixed-size
// worker pool, each worker bounding how many connections it holds in
// flight at once — modeled on lib/service/socket.go's accept loop,
// generalized from a single accept goroutine to a small pool.
package server
