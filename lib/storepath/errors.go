// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package storepath

import (
	"fmt"

	"github.com/nixcache/storecache/lib/cacheerr"
)

// errBadPath and errEscape wrap the shared cacheerr taxonomy so
// callers can use errors.Is against either this package's sentinels
// or the shared ones interchangeably.
var (
	errBadPath = fmt.Errorf("%w", cacheerr.BadRequest)
	errEscape  = fmt.Errorf("%w", cacheerr.Forbidden)
)
