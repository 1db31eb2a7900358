// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package listing

import (
	"mime"
	"path/filepath"
)

// ContentType infers a "/serve/" file's Content-Type from its name's
// extension, defaulting to application/octet-stream for anything
// mime doesn't recognize — no example repo carries an extension-to-
// content-type table of its own, and Go's standard mime package
// (backed by the system's mime.types plus a built-in fallback table)
// is the ecosystem-standard source for this mapping.
func ContentType(name string) string {
	ext := filepath.Ext(name)
	if ext == "" {
		return "application/octet-stream"
	}
	ct := mime.TypeByExtension(ext)
	if ct == "" {
		return "application/octet-stream"
	}
	return ct
}
