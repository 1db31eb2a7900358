// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"
	"fmt"
	"io"

	"github.com/nixcache/storecache/lib/storepath"
)

// Queryable resolves hashes and fetches registered path metadata.
// DaemonClient implements it; a test double can implement it without
// a daemon at all.
type Queryable interface {
	QueryPathFromHashPart(ctx context.Context, hashPart string) (storepath.StorePath, bool, error)
	QueryPathInfo(ctx context.Context, path storepath.StorePath) (storepath.Info, bool, error)
}

// LogFetchable streams a derivation's build log, if a source for it
// exists. Optional: a backend with no log source simply doesn't
// implement it, and the router treats "no LogFetchable capability"
// the same as "no log available."
type LogFetchable interface {
	GetBuildLog(ctx context.Context, drv storepath.StorePath) (io.ReadCloser, bool, error)
}

// Handle is the explicit, by-value store handle every request-
// handling task receives — replacing the ambient process-wide
// singleton a Nix-style store library usually exposes. It bundles
// the daemon capability (Queryable, and LogFetchable if the daemon
// supports it) with the real store directory filesystem access is
// rooted under.
type Handle struct {
	Queryable    Queryable
	LogFetcher   LogFetchable // nil if unsupported
	RealStoreDir string
}

// NewHandle constructs a Handle backed by a daemon reachable at
// socketPath, with filesystem reads rooted at realStoreDir.
func NewHandle(socketPath, realStoreDir string) Handle {
	client := NewDaemonClient(socketPath)
	return Handle{
		Queryable:    client,
		LogFetcher:   client,
		RealStoreDir: realStoreDir,
	}
}

// Tree opens path's filesystem subtree for reading, rooted at its
// real, on-disk directory under RealStoreDir.
func (h Handle) Tree(path storepath.StorePath) (*FileTree, string, error) {
	real, err := storepath.ResolveUnder(h.RealStoreDir, path)
	if err != nil {
		return nil, "", err
	}
	return NewFileTree(real), real, nil
}

// ResolveAndQuery is the common first step of every endpoint: turn a
// bare hash part into a registered StorePath and its metadata, or
// report that it does not exist. Returns ok=false, nil error when
// the hash simply isn't registered (the router maps that to 404);
// a non-nil error indicates a genuine backend problem.
func (h Handle) ResolveAndQuery(ctx context.Context, hashPart string) (storepath.StorePath, storepath.Info, bool, error) {
	path, ok, err := h.Queryable.QueryPathFromHashPart(ctx, hashPart)
	if err != nil {
		return storepath.StorePath{}, storepath.Info{}, false, fmt.Errorf("store: resolving hash part %q: %w", hashPart, err)
	}
	if !ok {
		return storepath.StorePath{}, storepath.Info{}, false, nil
	}

	info, ok, err := h.Queryable.QueryPathInfo(ctx, path)
	if err != nil {
		return storepath.StorePath{}, storepath.Info{}, false, fmt.Errorf("store: querying info for %s: %w", path, err)
	}
	if !ok {
		return storepath.StorePath{}, storepath.Info{}, false, nil
	}

	return path, info, true, nil
}
