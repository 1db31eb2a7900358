// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package narhash

import (
	"fmt"

	"github.com/nixcache/storecache/lib/cacheerr"
)

func errBadHash(s string) error {
	return fmt.Errorf("narhash: %q is not a valid sha256 narHash: %w", s, cacheerr.BadRequest)
}
