// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"fmt"

	"github.com/nixcache/storecache/lib/cacheerr"
	"github.com/nixcache/storecache/lib/narhash"
)

// BackendUnavailable wraps a transport-level error (daemon dial
// failure, read/write error, malformed response) as cacheerr's
// BackendUnavailable sentinel, so the HTTP router can map it to 502
// without every call site repeating the wrap.
func BackendUnavailable(err error) error {
	return fmt.Errorf("%w: %w", cacheerr.BackendUnavailable, err)
}

func parseNarHash(s string) ([32]byte, error) {
	digest, err := narhash.ParseBase32(s)
	if err != nil {
		return digest, fmt.Errorf("store: %w", err)
	}
	return digest, nil
}
