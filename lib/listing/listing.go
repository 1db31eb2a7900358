// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package listing builds the ".ls" JSON directory tree and renders
// the "/serve/" HTML directory index, both subject to the symlink
// containment rule: nothing outside a store path's own subtree (or,
// for /serve/, outside the real store directory) is ever exposed.
package listing

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/nixcache/storecache/lib/nar"
)

// Entry is one node of the ".ls" JSON tree. Its JSON shape varies by
// Kind, so Entry implements json.Marshaler directly instead of
// relying on struct tags with omitempty.
type Entry struct {
	Kind       nar.EntryKind
	Size       int64     // regular
	Executable bool      // regular
	Target     string    // symlink
	Children   *EntryMap // directory
}

// EntryMap is a directory's children, keyed by name, that marshals to
// JSON preserving insertion order — Go's map type does not, and the
// ".ls" format requires entries in bytewise name order (the order
// Build appends them in).
type EntryMap struct {
	names   []string
	entries map[string]Entry
}

// NewEntryMap returns an empty, order-preserving entry map.
func NewEntryMap() *EntryMap {
	return &EntryMap{entries: make(map[string]Entry)}
}

// Put appends name/entry. Callers must add names in the order they
// should appear in the rendered JSON (bytewise-sorted, per the
// listing engine's directory walk).
func (m *EntryMap) Put(name string, entry Entry) {
	if _, exists := m.entries[name]; !exists {
		m.names = append(m.names, name)
	}
	m.entries[name] = entry
}

// MarshalJSON renders {"name": entry, ...} with keys in insertion
// order, matching encoding/json's object syntax without its
// map-key-sorts-alphabetically behavior.
func (m *EntryMap) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, name := range m.names {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(name)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		value, err := json.Marshal(m.entries[name])
		if err != nil {
			return nil, err
		}
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// MarshalJSON renders Entry per its Kind, per spec §4.5:
//
//	directory: {"type":"directory","entries":{...}}
//	regular:   {"type":"regular","size":N[,"executable":true]}
//	symlink:   {"type":"symlink","target":"..."}
func (e Entry) MarshalJSON() ([]byte, error) {
	switch e.Kind {
	case nar.KindDirectory:
		children := e.Children
		if children == nil {
			children = NewEntryMap()
		}
		return json.Marshal(struct {
			Type    string    `json:"type"`
			Entries *EntryMap `json:"entries"`
		}{"directory", children})

	case nar.KindRegular:
		if e.Executable {
			return json.Marshal(struct {
				Type       string `json:"type"`
				Size       int64  `json:"size"`
				Executable bool   `json:"executable"`
			}{"regular", e.Size, true})
		}
		return json.Marshal(struct {
			Type string `json:"type"`
			Size int64  `json:"size"`
		}{"regular", e.Size})

	case nar.KindSymlink:
		return json.Marshal(struct {
			Type   string `json:"type"`
			Target string `json:"target"`
		}{"symlink", e.Target})

	default:
		return nil, fmt.Errorf("listing: entry has unknown kind %d", e.Kind)
	}
}

// Tree is the top-level ".ls" response body: {"version":1,"root":...}.
type Tree struct {
	Version int   `json:"version"`
	Root    Entry `json:"root"`
}
