// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nixcache/storecache/lib/nar"
	"github.com/nixcache/storecache/lib/narhash"
	"github.com/nixcache/storecache/lib/store"
	"github.com/nixcache/storecache/lib/storepath"
)

const testHash = "0123456789abcdfghijklmnpqrsvwxyz"
const refHash = "123456789abcdfghijklmnpqrsvwxyz0"

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

// narSizeOf encodes path's tree the same way handleNar streams it, so
// the fixture's declared NarSize matches the bytes the server will
// actually send (and the Content-Length it derives from NarSize).
func narSizeOf(t *testing.T, adapter store.Handle, path storepath.StorePath) uint64 {
	t.Helper()
	tree, _, err := adapter.Tree(path)
	if err != nil {
		t.Fatalf("Tree(%s): %v", path, err)
	}
	var counter byteCounter
	if err := nar.Encode(&counter, tree); err != nil {
		t.Fatalf("Encode(%s): %v", path, err)
	}
	return uint64(counter)
}

type byteCounter int64

func (c *byteCounter) Write(p []byte) (int, error) {
	*c += byteCounter(len(p))
	return len(p), nil
}

// newTestServer builds a fixture store path ("<testHash>-hello")
// under t.TempDir() containing regular files (one with a non-ASCII
// name), a subdirectory, a symlink within the path, and a symlink
// escaping the store, registers it with a fakeQueryable, and returns a
// running httptest.Server plus the StorePath.
func newTestServer(t *testing.T, keys []*narhash.SigningKey) (*httptest.Server, storepath.StorePath) {
	t.Helper()

	storeDir := t.TempDir()
	path, err := storepath.Parse(testHash + "-hello")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	refPath, err := storepath.Parse(refHash + "-dep")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	root := filepath.Join(storeDir, path.Base())
	if err := os.MkdirAll(filepath.Join(root, "bin"), 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(filepath.Join(root, "hello.txt"), []byte("hello, éçè 世界\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if err := os.WriteFile(filepath.Join(root, "bin", "run"), []byte("#!/bin/sh\necho hi\n"), 0o755); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if err := os.Symlink("hello.txt", filepath.Join(root, "link")); err != nil {
		t.Fatalf("Symlink: %v", err)
	}
	if err := os.WriteFile(filepath.Join(root, "🦄"), []byte("unicorn\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if err := os.Symlink("/etc/passwd", filepath.Join(root, "escape")); err != nil {
		t.Fatalf("Symlink: %v", err)
	}

	if err := os.MkdirAll(filepath.Join(storeDir, refPath.Base()), 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}

	adapter := store.Handle{RealStoreDir: storeDir}
	fq := &fakeQueryable{
		paths: map[string]storepath.StorePath{
			testHash: path,
			refHash:  refPath,
		},
		infos: map[string]storepath.Info{
			testHash: {References: []storepath.StorePath{refPath}, NarSize: narSizeOf(t, adapter, path)},
			refHash:  {NarSize: narSizeOf(t, adapter, refPath)},
		},
	}

	h := &Handler{
		Store:           store.Handle{Queryable: fq, RealStoreDir: storeDir},
		Keys:            keys,
		VirtualStoreDir: "/nix/store",
		Priority:        30,
		Logger:          discardLogger(),
	}

	ts := httptest.NewServer(NewRouter(h))
	t.Cleanup(ts.Close)
	return ts, path
}

func TestVersionAndNixCacheInfo(t *testing.T) {
	ts, _ := newTestServer(t, nil)

	resp, err := http.Get(ts.URL + "/nix-cache-info")
	if err != nil {
		t.Fatalf("GET /nix-cache-info: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "Priority: 30") {
		t.Errorf("nix-cache-info missing Priority: 30, got %q", body)
	}

	resp2, err := http.Get(ts.URL + "/version")
	if err != nil {
		t.Fatalf("GET /version: %v", err)
	}
	resp2.Body.Close()
	if resp2.StatusCode != http.StatusOK {
		t.Errorf("GET /version status = %d, want 200", resp2.StatusCode)
	}
}

func TestNarinfoSimple(t *testing.T) {
	ts, path := newTestServer(t, nil)

	resp, err := http.Get(ts.URL + "/" + path.Hash() + ".narinfo")
	if err != nil {
		t.Fatalf("GET .narinfo: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	text := string(body)

	if !strings.Contains(text, "StorePath: /nix/store/"+path.Base()) {
		t.Errorf("narinfo missing StorePath, got:\n%s", text)
	}
	if !strings.Contains(text, "URL: nar/"+path.Hash()+".nar") {
		t.Errorf("narinfo missing expected URL, got:\n%s", text)
	}
	if !strings.Contains(text, "References: "+refHash+"-dep") {
		t.Errorf("narinfo missing reference, got:\n%s", text)
	}
	if resp.Header.Get("ETag") == "" {
		t.Error("narinfo response missing ETag")
	}
}

func TestNarinfoConditionalRequest(t *testing.T) {
	ts, path := newTestServer(t, nil)

	resp, err := http.Get(ts.URL + "/" + path.Hash() + ".narinfo")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	etag := resp.Header.Get("ETag")
	resp.Body.Close()

	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/"+path.Hash()+".narinfo", nil)
	req.Header.Set("If-None-Match", etag)
	resp2, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("conditional GET: %v", err)
	}
	defer resp2.Body.Close()
	if resp2.StatusCode != http.StatusNotModified {
		t.Errorf("status = %d, want 304", resp2.StatusCode)
	}
}

func TestNarinfoSigning(t *testing.T) {
	_, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("ed25519.GenerateKey: %v", err)
	}
	key := mustSigningKey(t, "test-1", priv)

	ts, path := newTestServer(t, []*narhash.SigningKey{key})

	resp, err := http.Get(ts.URL + "/" + path.Hash() + ".narinfo")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	text := string(body)

	if !strings.Contains(text, "Sig: test-1:") {
		t.Errorf("narinfo missing signature from test-1, got:\n%s", text)
	}
}

func TestNarUnknownHash(t *testing.T) {
	ts, _ := newTestServer(t, nil)

	resp, err := http.Get(ts.URL + "/00000000000000000000000000000000.narinfo")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestNarRangeRequest(t *testing.T) {
	ts, path := newTestServer(t, nil)

	full, err := http.Get(ts.URL + "/nar/" + path.Hash() + ".nar")
	if err != nil {
		t.Fatalf("GET full nar: %v", err)
	}
	fullBody, _ := io.ReadAll(full.Body)
	full.Body.Close()
	if len(fullBody) == 0 {
		t.Fatal("full NAR body is empty")
	}

	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/nar/"+path.Hash()+".nar", nil)
	req.Header.Set("Range", "bytes=0-15")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("ranged GET: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusPartialContent {
		t.Fatalf("status = %d, want 206", resp.StatusCode)
	}
	rangeBody, _ := io.ReadAll(resp.Body)
	if len(rangeBody) != 16 {
		t.Fatalf("ranged body length = %d, want 16", len(rangeBody))
	}
	if string(rangeBody) != string(fullBody[:16]) {
		t.Error("ranged body does not match prefix of full body")
	}
}

func TestNarRangeNotSatisfiable(t *testing.T) {
	ts, path := newTestServer(t, nil)

	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/nar/"+path.Hash()+".nar", nil)
	req.Header.Set("Range", "bytes=999999999-1000000000")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("ranged GET: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusRequestedRangeNotSatisfiable {
		t.Errorf("status = %d, want 416", resp.StatusCode)
	}
}

func TestNarCompressed(t *testing.T) {
	ts, path := newTestServer(t, nil)

	resp, err := http.Get(ts.URL + "/nar/" + path.Hash() + ".nar.xz")
	if err != nil {
		t.Fatalf("GET compressed nar: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if len(body) == 0 {
		t.Fatal("compressed NAR body is empty")
	}
	if resp.Header.Get("Content-Length") != "" {
		t.Errorf("compressed response must not set Content-Length, got %q", resp.Header.Get("Content-Length"))
	}
}

func TestLsUnicodeNames(t *testing.T) {
	ts, path := newTestServer(t, nil)

	resp, err := http.Get(ts.URL + "/" + path.Hash() + ".ls")
	if err != nil {
		t.Fatalf("GET .ls: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var tree struct {
		Version int `json:"version"`
		Root    struct {
			Type    string `json:"type"`
			Entries map[string]struct {
				Type string `json:"type"`
				Size int64  `json:"size"`
			} `json:"entries"`
		} `json:"root"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tree); err != nil {
		t.Fatalf("decoding .ls body: %v", err)
	}
	if tree.Root.Type != "directory" {
		t.Fatalf("root type = %q, want directory", tree.Root.Type)
	}
	if _, ok := tree.Root.Entries["hello.txt"]; !ok {
		t.Errorf("entries missing hello.txt: %+v", tree.Root.Entries)
	}
	if entry, ok := tree.Root.Entries["🦄"]; !ok || entry.Type != "regular" {
		t.Errorf("entries missing regular file 🦄: %+v", tree.Root.Entries)
	}
}

func TestServeDirectoryAndForbiddenSymlink(t *testing.T) {
	ts, path := newTestServer(t, nil)

	resp, err := http.Get(ts.URL + "/serve/" + path.Hash() + "/")
	if err != nil {
		t.Fatalf("GET /serve/: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200, body: %s", resp.StatusCode, body)
	}
	if !strings.Contains(string(body), "hello.txt") {
		t.Errorf("directory index missing hello.txt, got:\n%s", body)
	}

	resp2, err := http.Get(ts.URL + "/serve/" + path.Hash() + "/../../etc/passwd")
	if err != nil {
		t.Fatalf("GET escaping path: %v", err)
	}
	resp2.Body.Close()
	if resp2.StatusCode == http.StatusOK {
		t.Error("escaping path must not succeed")
	}

	resp3, err := http.Get(ts.URL + "/serve/" + path.Hash() + "/escape")
	if err != nil {
		t.Fatalf("GET escaping symlink: %v", err)
	}
	resp3.Body.Close()
	if resp3.StatusCode != http.StatusForbidden {
		t.Errorf("escaping symlink status = %d, want 403", resp3.StatusCode)
	}
}

func TestLogUnavailableWhenNoFetcher(t *testing.T) {
	ts, _ := newTestServer(t, nil)

	resp, err := http.Get(ts.URL + "/log/" + testHash + "-hello.drv")
	if err != nil {
		t.Fatalf("GET /log/: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestHeadMatchesGetHeaders(t *testing.T) {
	ts, path := newTestServer(t, nil)

	getResp, err := http.Get(ts.URL + "/nar/" + path.Hash() + ".nar")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	getResp.Body.Close()

	headResp, err := http.Head(ts.URL + "/nar/" + path.Hash() + ".nar")
	if err != nil {
		t.Fatalf("HEAD: %v", err)
	}
	headResp.Body.Close()

	if getResp.Header.Get("Content-Length") != headResp.Header.Get("Content-Length") {
		t.Errorf("Content-Length mismatch: GET=%s HEAD=%s",
			getResp.Header.Get("Content-Length"), headResp.Header.Get("Content-Length"))
	}
}

func mustSigningKey(t *testing.T, name string, priv ed25519.PrivateKey) *narhash.SigningKey {
	t.Helper()
	path := filepath.Join(t.TempDir(), "key")
	line := name + ":" + base64.StdEncoding.EncodeToString(priv)
	if err := os.WriteFile(path, []byte(line), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	key, err := narhash.LoadSigningKey(path)
	if err != nil {
		t.Fatalf("LoadSigningKey: %v", err)
	}
	return key
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
