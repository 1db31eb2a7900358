// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package storepath parses and validates store paths — absolute
// paths of the form "<store-dir>/<hash32>-<name>" under a
// content-addressed store. A path's canonical identity is its
// 32-character hash part; two paths with the same hash part are
// equal regardless of the name suffix or which store directory they
// were resolved under.
package storepath

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/nixcache/storecache/lib/narhash"
)

// HashLen is the length of the base-32 hash part that prefixes every
// store path's basename.
const HashLen = 32

// StorePath identifies a single entry directly under a store
// directory: "<hash32>-<name>". It does not carry the store
// directory itself — callers resolve a StorePath against a
// real/virtual store-dir prefix when they need a full filesystem or
// advertised path.
type StorePath struct {
	hashPart string
	name     string
}

// Hash returns the 32-character hash part, the canonical identity of
// the path.
func (p StorePath) Hash() string { return p.hashPart }

// Name returns the suffix after "<hash32>-".
func (p StorePath) Name() string { return p.name }

// Base returns "<hash32>-<name>", the store path's basename.
func (p StorePath) Base() string { return p.hashPart + "-" + p.name }

// IsZero reports whether p is the zero value (used to represent an
// absent optional StorePath, e.g. ValidPathInfo.Deriver).
func (p StorePath) IsZero() bool { return p.hashPart == "" }

// Equal compares two store paths by hash part alone, per the spec's
// canonical-identity rule.
func (p StorePath) Equal(other StorePath) bool { return p.hashPart == other.hashPart }

// String renders "<hash32>-<name>".
func (p StorePath) String() string { return p.Base() }

// Parse validates and splits a store path basename ("<hash32>-<name>")
// into its hash and name parts. It does not consult any store
// directory — it is a pure syntactic check.
func Parse(base string) (StorePath, error) {
	if len(base) < HashLen+2 {
		return StorePath{}, fmt.Errorf("store path %q: too short to contain a hash part and name: %w", base, errBadPath)
	}
	hashPart := base[:HashLen]
	if base[HashLen] != '-' {
		return StorePath{}, fmt.Errorf("store path %q: expected '-' after hash part: %w", base, errBadPath)
	}
	name := base[HashLen+1:]
	if name == "" {
		return StorePath{}, fmt.Errorf("store path %q: empty name suffix: %w", base, errBadPath)
	}
	if !isValidHashPart(hashPart) {
		return StorePath{}, fmt.Errorf("store path %q: hash part %q is not valid nix32: %w", base, hashPart, errBadPath)
	}
	if !isValidName(name) {
		return StorePath{}, fmt.Errorf("store path %q: name %q contains disallowed characters: %w", base, name, errBadPath)
	}
	return StorePath{hashPart: hashPart, name: name}, nil
}

// ParseHashPart validates a bare 32-character hash part, as used in
// URL path segments like "<hash>.narinfo" or "<hash>.ls".
func ParseHashPart(hashPart string) (string, error) {
	if len(hashPart) != HashLen || !isValidHashPart(hashPart) {
		return "", fmt.Errorf("hash part %q: not a valid 32-character nix32 hash: %w", hashPart, errBadPath)
	}
	return hashPart, nil
}

func isValidHashPart(s string) bool {
	if len(s) != HashLen {
		return false
	}
	for i := 0; i < len(s); i++ {
		if strings.IndexByte(narhash.Alphabet, s[i]) < 0 {
			return false
		}
	}
	return true
}

// isValidName allows the printable-suffix characters Nix itself
// accepts in store path names: alphanumerics and "+-._?=".
func isValidName(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		case c == '+' || c == '-' || c == '.' || c == '_' || c == '?' || c == '=':
		default:
			return false
		}
	}
	return true
}

// ResolveUnder joins a StorePath onto a store directory and verifies
// the result lies directly under it — guards against a name
// containing an encoded path-traversal sequence slipping past
// isValidName (it can't, but ResolveUnder is the single choke point
// every caller goes through, so the invariant holds even if the
// allowed character set above is loosened later).
func ResolveUnder(storeDir string, p StorePath) (string, error) {
	full := filepath.Join(storeDir, p.Base())
	cleanDir := filepath.Clean(storeDir)
	if full != cleanDir && !strings.HasPrefix(full, cleanDir+string(filepath.Separator)) {
		return "", fmt.Errorf("store path %q escapes store directory %q: %w", p, storeDir, errEscape)
	}
	return full, nil
}

// SplitSubpath splits a "/"-separated subpath into components,
// rejecting empty, ".", or ".." components per spec §4.1. An empty
// input string yields a nil (zero-length) slice, meaning "the store
// path root itself".
func SplitSubpath(subpath string) ([]string, error) {
	if subpath == "" {
		return nil, nil
	}
	parts := strings.Split(subpath, "/")
	for _, part := range parts {
		switch part {
		case "", ".", "..":
			return nil, fmt.Errorf("subpath %q: component %q is not allowed: %w", subpath, part, errBadPath)
		}
	}
	return parts, nil
}
