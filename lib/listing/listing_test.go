// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package listing

import (
	"encoding/json"
	"io"
	"strings"
	"testing"

	"github.com/nixcache/storecache/lib/nar"
)

func TestEntryMapMarshalPreservesInsertionOrder(t *testing.T) {
	m := NewEntryMap()
	m.Put("zeta", Entry{Kind: nar.KindRegular, Size: 1})
	m.Put("alpha", Entry{Kind: nar.KindRegular, Size: 2})
	m.Put("mid", Entry{Kind: nar.KindRegular, Size: 3})

	data, err := json.Marshal(m)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	posZeta := strings.Index(string(data), `"zeta"`)
	posAlpha := strings.Index(string(data), `"alpha"`)
	posMid := strings.Index(string(data), `"mid"`)
	if !(posZeta < posAlpha && posAlpha < posMid) {
		t.Fatalf("EntryMap did not preserve insertion order: %s", data)
	}
}

func TestEntryMarshalShapes(t *testing.T) {
	reg, err := json.Marshal(Entry{Kind: nar.KindRegular, Size: 40960, Executable: true})
	if err != nil {
		t.Fatalf("marshal regular: %v", err)
	}
	if !strings.Contains(string(reg), `"type":"regular"`) || !strings.Contains(string(reg), `"executable":true`) {
		t.Fatalf("regular entry JSON missing expected fields: %s", reg)
	}

	plain, err := json.Marshal(Entry{Kind: nar.KindRegular, Size: 12})
	if err != nil {
		t.Fatalf("marshal plain regular: %v", err)
	}
	if strings.Contains(string(plain), "executable") {
		t.Fatalf("non-executable regular entry should omit executable: %s", plain)
	}

	sym, err := json.Marshal(Entry{Kind: nar.KindSymlink, Target: "../escape"})
	if err != nil {
		t.Fatalf("marshal symlink: %v", err)
	}
	if !strings.Contains(string(sym), `"target":"../escape"`) {
		t.Fatalf("symlink entry JSON missing verbatim target: %s", sym)
	}
}

func TestBuildProducesSortedTree(t *testing.T) {
	src := sampleTreeForListing()

	tree, err := Build(src)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if tree.Version != 1 {
		t.Fatalf("Version = %d, want 1", tree.Version)
	}

	data, err := json.Marshal(tree)
	if err != nil {
		t.Fatalf("Marshal tree: %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	root := decoded["root"].(map[string]any)
	if root["type"] != "directory" {
		t.Fatalf("root type = %v, want directory", root["type"])
	}
	entries := root["entries"].(map[string]any)
	bin := entries["bin"].(map[string]any)
	binEntries := bin["entries"].(map[string]any)
	hello := binEntries["hello"].(map[string]any)
	if hello["executable"] != true {
		t.Fatalf("bin/hello should be executable: %v", hello)
	}
}

func TestContentType(t *testing.T) {
	if got := ContentType("index.html"); got != "text/html; charset=utf-8" {
		t.Errorf("ContentType(index.html) = %q", got)
	}
	if got := ContentType("no-extension-at-all"); got != "application/octet-stream" {
		t.Errorf("ContentType with no extension = %q, want application/octet-stream", got)
	}
}

// fixtureNode and fixtureSource are a minimal nar.Source fixture,
// independent of the nar package's own (unexported) test fixture.
type fixtureNode struct {
	kind       nar.EntryKind
	executable bool
	size       int64
	target     []byte
	children   map[string]*fixtureNode
}

type fixtureSource struct{ root *fixtureNode }

func (s *fixtureSource) lookup(subpath []string) *fixtureNode {
	n := s.root
	for _, part := range subpath {
		if n.children == nil {
			return nil
		}
		n = n.children[part]
		if n == nil {
			return nil
		}
	}
	return n
}

func (s *fixtureSource) Stat(subpath []string) (nar.EntryKind, bool, int64, error) {
	n := s.lookup(subpath)
	return n.kind, n.executable, n.size, nil
}

func (s *fixtureSource) ReadDir(subpath []string) ([]nar.Entry, error) {
	n := s.lookup(subpath)
	out := make([]nar.Entry, 0, len(n.children))
	for name, child := range n.children {
		out = append(out, nar.Entry{Name: name, Kind: child.kind, Executable: child.executable})
	}
	return out, nil
}

func (s *fixtureSource) ReadLink(subpath []string) ([]byte, error) {
	return s.lookup(subpath).target, nil
}

func (s *fixtureSource) OpenFile(subpath []string) (io.ReadSeekCloser, error) {
	panic("not used by listing tests")
}

func sampleTreeForListing() nar.Source {
	return &fixtureSource{root: &fixtureNode{
		kind: nar.KindDirectory,
		children: map[string]*fixtureNode{
			"bin": {
				kind: nar.KindDirectory,
				children: map[string]*fixtureNode{
					"hello": {kind: nar.KindRegular, executable: true, size: 40960},
				},
			},
		},
	}}
}
