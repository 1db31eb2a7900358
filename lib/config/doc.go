// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides TOML configuration loading for the cache
// server.
//
// Configuration is loaded from a single file named by the CONFIG_FILE
// environment variable (via [Load]) or an explicit path (via
// [LoadFile]). There are no fallbacks and no ~/.config discovery.
// SIGN_KEY_PATHS, if set, is merged onto the file's sign_key_paths.
//
// Key exports:
//
//   - [Config] -- bind, workers, max_connection_rate, priority,
//     virtual_nix_store, real_nix_store, sign_key_paths, TLS paths
//   - [Default] -- returns a zero-value-safe Config
//   - [Load] and [LoadFile] -- the two entry points for loading
//   - [Config.Validate] -- collects all configuration errors at once
//
// This package depends on no other package in this module.
package config
