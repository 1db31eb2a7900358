// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides TOML configuration loading for the cache
// server.
//
// Configuration is loaded from a single file specified by either the
// CONFIG_FILE environment variable (via [Load]) or an explicit path
// (via [LoadFile]). There are no fallbacks and no automatic file
// discovery — if neither is given, [Default] applies on its own.
//
// SIGN_KEY_PATHS, if set, is merged onto whatever sign_key_paths the
// config file names (config file entries first, then the environment
// variable's, duplicates removed).
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// knownConfigKeys are the top-level TOML keys Config understands.
// Anything else in a config file is ignored, with a warning.
var knownConfigKeys = map[string]bool{
	"bind":                true,
	"workers":             true,
	"max_connection_rate": true,
	"priority":            true,
	"virtual_nix_store":   true,
	"real_nix_store":      true,
	"daemon_socket":       true,
	"sign_key_paths":      true,
	"tls_cert_path":       true,
	"tls_key_path":        true,
}

// warnUnknownKeys prints a warning to stderr for each top-level TOML
// key in data that Config does not declare. Parse errors are ignored
// here — they would already have surfaced from the real Unmarshal.
func warnUnknownKeys(path string, data []byte) {
	raw := map[string]any{}
	if err := toml.Unmarshal(data, &raw); err != nil {
		return
	}
	for key := range raw {
		if !knownConfigKeys[key] {
			fmt.Fprintf(os.Stderr, "config: %s: ignoring unknown key %q\n", path, key)
		}
	}
}

// Config is the immutable, process-wide configuration for the cache
// server. It is loaded once at startup and threaded explicitly through
// the server and store packages — never a package-level global.
type Config struct {
	// Bind is the listen address: "ip:port" for TCP, or "unix:<path>"
	// for a Unix domain socket.
	Bind string `toml:"bind"`

	// Workers is the fixed worker-pool size (spec's W).
	Workers int `toml:"workers"`

	// MaxConnectionRate caps how many connections each worker holds in
	// flight at once (spec's M). Zero or less selects the server's
	// default of 256 per worker.
	MaxConnectionRate int `toml:"max_connection_rate"`

	// Priority is advertised in nix-cache-info's Priority field; lower
	// values are preferred by clients consulting multiple caches.
	Priority int `toml:"priority"`

	// VirtualNixStore is the store directory advertised in narinfo
	// StorePath fields and nix-cache-info's StoreDir. Defaults to
	// RealNixStore when empty.
	VirtualNixStore string `toml:"virtual_nix_store"`

	// RealNixStore is the on-disk directory file content is actually
	// read from.
	RealNixStore string `toml:"real_nix_store"`

	// DaemonSocket is the Unix domain socket path of the store daemon
	// queried for path metadata, hash-part resolution, and build logs.
	DaemonSocket string `toml:"daemon_socket"`

	// SignKeyPaths lists signing-key files, each a single line of the
	// form "<name>:<base64-secret>".
	SignKeyPaths []string `toml:"sign_key_paths"`

	// TLSCertPath and TLSKeyPath, if both set, serve HTTPS directly
	// instead of plain HTTP.
	TLSCertPath string `toml:"tls_cert_path"`
	TLSKeyPath  string `toml:"tls_key_path"`
}

// Default returns the configuration used when no config file is given.
// It exists to make every field zero-value-safe, not as a silent
// fallback for a missing required setting.
func Default() *Config {
	return &Config{
		Bind:              "127.0.0.1:8080",
		Workers:           4,
		MaxConnectionRate: 0,
		Priority:          30,
		RealNixStore:      "/nix/store",
		DaemonSocket:      "/var/run/nix-daemon.socket",
	}
}

// Load loads configuration from the path named by CONFIG_FILE, or
// returns [Default] with SIGN_KEY_PATHS merged in if CONFIG_FILE is
// unset.
func Load() (*Config, error) {
	path := os.Getenv("CONFIG_FILE")
	if path == "" {
		cfg := Default()
		cfg.mergeSignKeyPathsEnv()
		if cfg.VirtualNixStore == "" {
			cfg.VirtualNixStore = cfg.RealNixStore
		}
		return cfg, nil
	}
	return LoadFile(path)
}

// LoadFile loads configuration from a specific TOML file, merging
// SIGN_KEY_PATHS on top.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	warnUnknownKeys(path, data)

	cfg.mergeSignKeyPathsEnv()

	if cfg.VirtualNixStore == "" {
		cfg.VirtualNixStore = cfg.RealNixStore
	}

	return cfg, nil
}

// mergeSignKeyPathsEnv appends whitespace-separated paths from
// SIGN_KEY_PATHS onto c.SignKeyPaths, skipping duplicates.
func (c *Config) mergeSignKeyPathsEnv() {
	env := os.Getenv("SIGN_KEY_PATHS")
	if env == "" {
		return
	}

	seen := make(map[string]bool, len(c.SignKeyPaths))
	for _, p := range c.SignKeyPaths {
		seen[p] = true
	}
	for _, p := range strings.Fields(env) {
		if !seen[p] {
			c.SignKeyPaths = append(c.SignKeyPaths, p)
			seen[p] = true
		}
	}
}

// Validate checks the configuration for errors, collecting as many
// problems as it can find before returning.
func (c *Config) Validate() error {
	var errs []error

	if c.Bind == "" {
		errs = append(errs, fmt.Errorf("bind is required"))
	}
	if c.Workers <= 0 {
		errs = append(errs, fmt.Errorf("workers must be positive, got %d", c.Workers))
	}
	if c.MaxConnectionRate < 0 {
		errs = append(errs, fmt.Errorf("max_connection_rate must not be negative"))
	}
	if c.RealNixStore == "" {
		errs = append(errs, fmt.Errorf("real_nix_store is required"))
	}
	if c.DaemonSocket == "" {
		errs = append(errs, fmt.Errorf("daemon_socket is required"))
	}
	if (c.TLSCertPath == "") != (c.TLSKeyPath == "") {
		errs = append(errs, fmt.Errorf("tls_cert_path and tls_key_path must both be set or both be empty"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
