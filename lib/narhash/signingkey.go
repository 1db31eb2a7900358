// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package narhash

import (
	"crypto/ed25519"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/nixcache/storecache/lib/secret"
)

// SigningKey is a named Ed25519 secret key used to sign narinfo
// fingerprints, in the "<name>:<base64-secret>" form Nix itself uses
// for its binary cache signing keys. The secret bytes live in a
// mlock'd, core-dump-excluded secret.Buffer rather than on the
// regular heap.
type SigningKey struct {
	name   string
	secret *secret.Buffer // holds ed25519.PrivateKey bytes (64 bytes)
}

// Name returns the key's name, the "cache.example.org-1" style label
// that prefixes signatures and identifies which public key to verify
// against.
func (k *SigningKey) Name() string { return k.name }

// PublicKey returns the public half of the keypair, derived from the
// stored private key bytes.
func (k *SigningKey) PublicKey() ed25519.PublicKey {
	priv := ed25519.PrivateKey(k.secret.Bytes())
	return priv.Public().(ed25519.PublicKey)
}

// Close releases the underlying secret buffer.
func (k *SigningKey) Close() error {
	return k.secret.Close()
}

// ParseSigningKey decodes a "<name>:<base64-secret>" line into a
// SigningKey, copying the decoded secret bytes into protected memory.
// The caller's copy of line is not modified; ParseSigningKey makes
// its own base64-decoded copy and zeros that intermediate buffer
// after handing it to secret.NewFromBytes.
func ParseSigningKey(line string) (*SigningKey, error) {
	name, encoded, ok := strings.Cut(strings.TrimSpace(line), ":")
	if !ok || name == "" || encoded == "" {
		return nil, fmt.Errorf("narhash: signing key line is not \"<name>:<base64-secret>\"")
	}

	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("narhash: decoding secret for key %q: %w", name, err)
	}
	if len(raw) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("narhash: secret for key %q has %d bytes, want %d", name, len(raw), ed25519.PrivateKeySize)
	}

	buf, err := secret.NewFromBytes(raw)
	if err != nil {
		return nil, fmt.Errorf("narhash: protecting secret for key %q: %w", name, err)
	}

	return &SigningKey{name: name, secret: buf}, nil
}

// LoadSigningKey reads a single "<name>:<base64-secret>" line from
// path (a file, or "-" for stdin) via secret.ReadFromPath, and parses
// it into a SigningKey.
func LoadSigningKey(path string) (*SigningKey, error) {
	buf, err := secret.ReadFromPath(path)
	if err != nil {
		return nil, fmt.Errorf("narhash: reading signing key from %s: %w", path, err)
	}
	defer buf.Close()

	key, err := ParseSigningKey(buf.String())
	if err != nil {
		return nil, fmt.Errorf("narhash: parsing signing key from %s: %w", path, err)
	}
	return key, nil
}

// Sign computes a detached signature over fingerprint and renders it
// as "<key-name>:<base64-signature>", the form narinfo Sig: lines use.
func Sign(key *SigningKey, fingerprint string) string {
	priv := ed25519.PrivateKey(key.secret.Bytes())
	sig := ed25519.Sign(priv, []byte(fingerprint))
	return key.name + ":" + base64.StdEncoding.EncodeToString(sig)
}

// Verify checks a single "<key-name>:<base64-signature>" Sig: line
// against fingerprint using pub. It returns false (never an error)
// for any malformed signature string, since narinfo signatures are
// opportunistic — an unparseable one is simply not valid.
func Verify(pub ed25519.PublicKey, sigLine, fingerprint string) bool {
	_, encoded, ok := strings.Cut(sigLine, ":")
	if !ok {
		return false
	}
	sig, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return false
	}
	return ed25519.Verify(pub, []byte(fingerprint), sig)
}

// MergeSignatures combines a backend-reported signature list with
// freshly computed ones, by key name: a fresh signature for a given
// key name always replaces a stale backend-reported one, and
// signatures for key names the backend reported but this server has
// no key for are preserved unchanged. The result preserves first-seen
// order: existing signatures keep their relative order, and any
// key name only present in fresh is appended after them.
func MergeSignatures(existing []string, fresh []string) []string {
	byName := make(map[string]string, len(existing)+len(fresh))
	order := make([]string, 0, len(existing)+len(fresh))

	add := func(sig string) {
		name, _, ok := strings.Cut(sig, ":")
		if !ok {
			return
		}
		if _, seen := byName[name]; !seen {
			order = append(order, name)
		}
		byName[name] = sig
	}

	for _, sig := range existing {
		add(sig)
	}
	for _, sig := range fresh {
		add(sig)
	}

	out := make([]string, 0, len(order))
	for _, name := range order {
		out = append(out, byName[name])
	}
	return out
}
