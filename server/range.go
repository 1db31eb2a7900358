// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/nixcache/storecache/lib/cacheerr"
)

// byteRange is a single, resolved [start, end) window into a
// resource of a known total size.
type byteRange struct {
	start, end int64 // end is exclusive
}

func (r byteRange) length() int64 { return r.end - r.start }

// parseRange parses a "Range: bytes=a-b" header against a resource
// of the given total size. Only a single range is supported, per
// spec.md §4.7 — a request naming more than one is rejected as
// BadRequest rather than silently honoring just the first.
//
// Returns ok=false, nil error when header is empty (no range
// requested, serve the full body).
func parseRange(header string, size int64) (r byteRange, ok bool, err error) {
	if header == "" {
		return byteRange{}, false, nil
	}

	spec, found := strings.CutPrefix(header, "bytes=")
	if !found {
		return byteRange{}, false, fmt.Errorf("server: unsupported Range unit in %q: %w", header, cacheerr.BadRequest)
	}
	if strings.Contains(spec, ",") {
		return byteRange{}, false, fmt.Errorf("server: multiple ranges not supported in %q: %w", header, cacheerr.BadRequest)
	}

	lo, hi, found := strings.Cut(spec, "-")
	if !found {
		return byteRange{}, false, fmt.Errorf("server: malformed Range %q: %w", header, cacheerr.BadRequest)
	}

	var start, end int64
	switch {
	case lo == "" && hi != "":
		// Suffix range: "bytes=-N" means the last N bytes.
		n, perr := strconv.ParseInt(hi, 10, 64)
		if perr != nil || n <= 0 {
			return byteRange{}, false, fmt.Errorf("server: malformed Range %q: %w", header, cacheerr.BadRequest)
		}
		start = size - n
		if start < 0 {
			start = 0
		}
		end = size

	case lo != "" && hi == "":
		n, perr := strconv.ParseInt(lo, 10, 64)
		if perr != nil || n < 0 {
			return byteRange{}, false, fmt.Errorf("server: malformed Range %q: %w", header, cacheerr.BadRequest)
		}
		start = n
		end = size

	case lo != "" && hi != "":
		a, perr1 := strconv.ParseInt(lo, 10, 64)
		b, perr2 := strconv.ParseInt(hi, 10, 64)
		if perr1 != nil || perr2 != nil || a < 0 || b < a {
			return byteRange{}, false, fmt.Errorf("server: malformed Range %q: %w", header, cacheerr.BadRequest)
		}
		start = a
		end = b + 1

	default:
		return byteRange{}, false, fmt.Errorf("server: malformed Range %q: %w", header, cacheerr.BadRequest)
	}

	if start >= size || end > size || start >= end {
		return byteRange{}, false, fmt.Errorf("server: range %q not satisfiable for a %d-byte resource: %w", header, size, cacheerr.RangeNotSatisfiable)
	}

	return byteRange{start: start, end: end}, true, nil
}
