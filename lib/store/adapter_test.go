// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"
	"strings"
	"testing"

	"github.com/nixcache/storecache/lib/storepath"
)

var testHash = strings.Repeat("0", 30) + "a1"

type fakeQueryable struct {
	paths map[string]storepath.StorePath
	infos map[string]storepath.Info
}

func (f *fakeQueryable) QueryPathFromHashPart(ctx context.Context, hashPart string) (storepath.StorePath, bool, error) {
	p, ok := f.paths[hashPart]
	return p, ok, nil
}

func (f *fakeQueryable) QueryPathInfo(ctx context.Context, path storepath.StorePath) (storepath.Info, bool, error) {
	info, ok := f.infos[path.Hash()]
	return info, ok, nil
}

func TestHandleResolveAndQuery(t *testing.T) {
	path, err := storepath.Parse(testHash + "-hello")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	fq := &fakeQueryable{
		paths: map[string]storepath.StorePath{testHash: path},
		infos: map[string]storepath.Info{testHash: {NarSize: 1024}},
	}

	h := Handle{Queryable: fq, RealStoreDir: "/nix/store"}

	gotPath, gotInfo, ok, err := h.ResolveAndQuery(context.Background(), testHash)
	if err != nil {
		t.Fatalf("ResolveAndQuery: %v", err)
	}
	if !ok {
		t.Fatal("ResolveAndQuery reported not found for a registered hash")
	}
	if !gotPath.Equal(path) {
		t.Fatalf("resolved path = %v, want %v", gotPath, path)
	}
	if gotInfo.NarSize != 1024 {
		t.Fatalf("NarSize = %d, want 1024", gotInfo.NarSize)
	}
}

func TestHandleResolveAndQueryUnknownHash(t *testing.T) {
	fq := &fakeQueryable{paths: map[string]storepath.StorePath{}, infos: map[string]storepath.Info{}}
	h := Handle{Queryable: fq, RealStoreDir: "/nix/store"}

	_, _, ok, err := h.ResolveAndQuery(context.Background(), "00000000000000000000000000000000")
	if err != nil {
		t.Fatalf("ResolveAndQuery: %v", err)
	}
	if ok {
		t.Fatal("ResolveAndQuery should report not found for an unregistered hash")
	}
}

func TestHandleTreeResolvesUnderRealStoreDir(t *testing.T) {
	path, err := storepath.Parse(testHash + "-hello")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	h := Handle{RealStoreDir: "/nix/store"}
	_, real, err := h.Tree(path)
	if err != nil {
		t.Fatalf("Tree: %v", err)
	}
	if real != "/nix/store/"+testHash+"-hello" {
		t.Fatalf("real = %q, want %q", real, "/nix/store/"+testHash+"-hello")
	}
}
