// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package store adapts a store daemon and the real on-disk store
// directory into the small capability set the rest of the cache
// server needs: resolving a hash part to a store path, reading a
// path's metadata, walking its filesystem subtree, and fetching a
// build log.
package store

import (
	"context"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/nixcache/storecache/lib/codec"
	"github.com/nixcache/storecache/lib/storepath"
)

// dialTimeout bounds the connect phase of a daemon RPC, separate
// from the read deadline below so a slow query doesn't also eat into
// connection setup time.
const dialTimeout = 5 * time.Second

// responseReadTimeout bounds how long a single daemon RPC waits for
// its response. Query RPCs are metadata-only and expected to be
// fast. The connection GetBuildLog hands back for streaming the log
// body carries no read deadline.
const responseReadTimeout = 30 * time.Second

// maxResponseSize caps a single metadata RPC response. Build-log
// streaming bodies are read separately and are not subject to this
// limit.
const maxResponseSize = 4 << 20

// daemonRequest and daemonResponse mirror the store daemon's
// CBOR wire protocol: one request, one response, per connection —
// modeled directly on lib/service's SocketServer/ServiceClient
// pattern, generalized from a single "action" dispatch map to the
// fixed small set of RPCs a Nix-style store daemon exposes.
type daemonRequest struct {
	Action string         `cbor:"action"`
	Fields map[string]any `cbor:"fields,omitempty"`
}

type daemonResponse struct {
	OK    bool            `cbor:"ok"`
	Error string          `cbor:"error,omitempty"`
	Data  codec.RawMessage `cbor:"data,omitempty"`
}

// DaemonError is returned by DaemonClient methods when the daemon
// itself reports a failure (as opposed to a transport error talking
// to the socket).
type DaemonError struct {
	Action  string
	Message string
}

func (e *DaemonError) Error() string {
	return fmt.Sprintf("store daemon error on %q: %s", e.Action, e.Message)
}

// DaemonClient talks to a local store daemon over a Unix domain
// socket, one connection per RPC, the same model lib/service's
// ServiceClient uses for Bureau's own service sockets. It implements
// Queryable and LogFetchable.
type DaemonClient struct {
	socketPath string
}

// NewDaemonClient returns a client bound to socketPath. It does not
// connect eagerly — every method dials fresh.
func NewDaemonClient(socketPath string) *DaemonClient {
	return &DaemonClient{socketPath: socketPath}
}

func (c *DaemonClient) call(ctx context.Context, action string, fields map[string]any, result any) error {
	resp, err := c.send(ctx, daemonRequest{Action: action, Fields: fields})
	if err != nil {
		return fmt.Errorf("store: calling %q on %s: %w", action, c.socketPath, BackendUnavailable(err))
	}
	if !resp.OK {
		return &DaemonError{Action: action, Message: resp.Error}
	}
	if result != nil && len(resp.Data) > 0 {
		if err := codec.Unmarshal(resp.Data, result); err != nil {
			return fmt.Errorf("store: decoding response for %q: %w", action, err)
		}
	}
	return nil
}

func (c *DaemonClient) send(ctx context.Context, request daemonRequest) (*daemonResponse, error) {
	dialer := net.Dialer{Timeout: dialTimeout}
	conn, err := dialer.DialContext(ctx, "unix", c.socketPath)
	if err != nil {
		return nil, fmt.Errorf("connecting: %w", err)
	}
	defer conn.Close()

	if err := codec.NewEncoder(conn).Encode(request); err != nil {
		return nil, fmt.Errorf("writing request: %w", err)
	}
	if unixConn, ok := conn.(*net.UnixConn); ok {
		unixConn.CloseWrite()
	}

	conn.SetReadDeadline(time.Now().Add(responseReadTimeout))
	var resp daemonResponse
	if err := codec.NewDecoder(io.LimitReader(conn, maxResponseSize)).Decode(&resp); err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	return &resp, nil
}

// wirePathInfo is the CBOR shape QueryPathInfo's result takes over
// the wire — plain strings/slices rather than storepath.Info's raw
// [32]byte, since that isn't something a daemon implementation would
// be expected to share Go types for.
type wirePathInfo struct {
	NarHashBase32    string   `cbor:"nar_hash"`
	NarSize          uint64   `cbor:"nar_size"`
	References       []string `cbor:"references"` // basenames
	Deriver          string   `cbor:"deriver,omitempty"`
	Sigs             []string `cbor:"sigs,omitempty"`
	CA               string   `cbor:"ca,omitempty"`
	RegistrationTime int64    `cbor:"registration_time"`
}

// QueryPathFromHashPart resolves a bare 32-character hash part to the
// full StorePath currently registered under it, if any.
func (c *DaemonClient) QueryPathFromHashPart(ctx context.Context, hashPart string) (storepath.StorePath, bool, error) {
	var result struct {
		Base string `cbor:"base"`
	}
	err := c.call(ctx, "QueryPathFromHashPart", map[string]any{"hash_part": hashPart}, &result)
	if err != nil {
		if isNotFound(err) {
			return storepath.StorePath{}, false, nil
		}
		return storepath.StorePath{}, false, err
	}
	if result.Base == "" {
		return storepath.StorePath{}, false, nil
	}
	p, err := storepath.Parse(result.Base)
	if err != nil {
		return storepath.StorePath{}, false, fmt.Errorf("store: daemon returned malformed store path %q: %w", result.Base, err)
	}
	return p, true, nil
}

// QueryPathInfo fetches registered metadata for path, if it is valid.
func (c *DaemonClient) QueryPathInfo(ctx context.Context, path storepath.StorePath) (storepath.Info, bool, error) {
	var wire wirePathInfo
	err := c.call(ctx, "QueryPathInfo", map[string]any{"base": path.Base()}, &wire)
	if err != nil {
		if isNotFound(err) {
			return storepath.Info{}, false, nil
		}
		return storepath.Info{}, false, err
	}

	info, err := decodeWirePathInfo(wire)
	if err != nil {
		return storepath.Info{}, false, err
	}
	return info, true, nil
}

// GetBuildLog fetches the build log for a derivation path, if the
// daemon has one. The returned ReadCloser streams the log body over
// a second, dedicated connection (build logs can be large and are
// not subject to maxResponseSize).
func (c *DaemonClient) GetBuildLog(ctx context.Context, drv storepath.StorePath) (io.ReadCloser, bool, error) {
	var result struct {
		Available bool `cbor:"available"`
	}
	if err := c.call(ctx, "HasBuildLog", map[string]any{"base": drv.Base()}, &result); err != nil {
		return nil, false, err
	}
	if !result.Available {
		return nil, false, nil
	}

	dialer := net.Dialer{Timeout: dialTimeout}
	conn, err := dialer.DialContext(ctx, "unix", c.socketPath)
	if err != nil {
		return nil, false, fmt.Errorf("store: opening build log stream: %w", BackendUnavailable(err))
	}
	if err := codec.NewEncoder(conn).Encode(daemonRequest{Action: "StreamBuildLog", Fields: map[string]any{"base": drv.Base()}}); err != nil {
		conn.Close()
		return nil, false, fmt.Errorf("store: requesting build log stream: %w", BackendUnavailable(err))
	}
	if unixConn, ok := conn.(*net.UnixConn); ok {
		unixConn.CloseWrite()
	}
	return conn, true, nil
}

func decodeWirePathInfo(wire wirePathInfo) (storepath.Info, error) {
	digest, err := parseNarHash(wire.NarHashBase32)
	if err != nil {
		return storepath.Info{}, err
	}

	refs := make([]storepath.StorePath, 0, len(wire.References))
	for _, base := range wire.References {
		p, err := storepath.Parse(base)
		if err != nil {
			return storepath.Info{}, fmt.Errorf("store: daemon returned malformed reference %q: %w", base, err)
		}
		refs = append(refs, p)
	}

	var deriver storepath.StorePath
	if wire.Deriver != "" {
		deriver, err = storepath.Parse(wire.Deriver)
		if err != nil {
			return storepath.Info{}, fmt.Errorf("store: daemon returned malformed deriver %q: %w", wire.Deriver, err)
		}
	}

	return storepath.Info{
		NarHash:          digest,
		NarSize:          wire.NarSize,
		References:       refs,
		Deriver:          deriver,
		Sigs:             wire.Sigs,
		CA:               wire.CA,
		RegistrationTime: wire.RegistrationTime,
	}, nil
}

func isNotFound(err error) bool {
	derr, ok := err.(*DaemonError)
	return ok && derr.Message == "not found"
}
