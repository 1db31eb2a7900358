// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides the CBOR encoding configuration shared by
// the cache server's store daemon client and its build-log streaming.
//
// The cache server talks to its store daemon over a Unix domain
// socket, one connection per RPC: a daemonRequest naming an action
// and carrying loosely-typed fields, answered by a daemonResponse
// wrapping either a result payload or an error message (see
// lib/store/daemon.go). Path metadata crosses the wire as
// wirePathInfo — plain strings and slices rather than storepath.Info's
// raw [32]byte hash, since a daemon implementation isn't expected to
// share Go types with its client.
//
// This package provides the shared CBOR encoding and decoding modes
// so every caller encodes identically without duplicating
// configuration. The encoder uses Core Deterministic Encoding (RFC
// 8949 §4.2): sorted map keys, smallest integer encoding, no
// indefinite-length items. Same logical data always produces
// identical bytes, which matters for the request/response framing
// above: the daemon and client must agree byte-for-byte on where one
// message ends and the next begins.
//
// For buffer-oriented operations:
//
//	data, err := codec.Marshal(value)
//	err = codec.Unmarshal(data, &value)
//
// For stream-oriented operations (the daemon socket):
//
//	encoder := codec.NewEncoder(conn)
//	decoder := codec.NewDecoder(conn)
//
// All daemon wire types use `cbor` struct tags; none of them are
// ever serialized as JSON, so there is no `json`-tag fallback
// concern to document here.
package codec
