// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"net"
	"strings"
	"sync"
)

// listen binds address, which is either "ip:port" (TCP) or
// "unix:<path>" (Unix domain socket), per spec.md §6.
func listen(address string) (net.Listener, error) {
	if path, ok := strings.CutPrefix(address, "unix:"); ok {
		return net.Listen("unix", path)
	}
	return net.Listen("tcp", address)
}

// trackedConn wraps an accepted connection so its worker's in-flight
// count is released exactly once, whenever http.Server closes it —
// not when it is merely handed off to the shared accept channel.
type trackedConn struct {
	net.Conn
	release func()
	once    sync.Once
}

func (c *trackedConn) Close() error {
	c.once.Do(c.release)
	return c.Conn.Close()
}

// poolListener implements net.Listener by fanning out Accept across a
// fixed pool of worker goroutines, each of which bounds its own
// in-flight connection count to maxPerWorker before accepting another
// — the spec's "fixed-size pool of W workers... each multiplexes up
// to M in flight" (§4.8), built on top of a single underlying
// net.Listener. http.Server's own accept loop only ever calls this
// listener's single Accept method; the worker pool lives behind it.
type poolListener struct {
	net.Listener
	conns     chan net.Conn
	errs      chan error
	closed    chan struct{}
	closeOnce sync.Once
}

func newPoolListener(inner net.Listener, workers, maxPerWorker int) *poolListener {
	pl := &poolListener{
		Listener: inner,
		conns:    make(chan net.Conn),
		errs:     make(chan error, workers),
		closed:   make(chan struct{}),
	}
	for i := 0; i < workers; i++ {
		go pl.runWorker(maxPerWorker)
	}
	return pl
}

func (pl *poolListener) runWorker(maxPerWorker int) {
	sem := make(chan struct{}, maxPerWorker)
	for {
		conn, err := pl.Listener.Accept()
		if err != nil {
			select {
			case pl.errs <- err:
			case <-pl.closed:
			}
			return
		}

		select {
		case sem <- struct{}{}:
		case <-pl.closed:
			conn.Close()
			return
		}

		tc := &trackedConn{Conn: conn, release: func() { <-sem }}
		select {
		case pl.conns <- tc:
		case <-pl.closed:
			tc.Close()
			return
		}
	}
}

func (pl *poolListener) Accept() (net.Conn, error) {
	select {
	case conn := <-pl.conns:
		return conn, nil
	case err := <-pl.errs:
		return nil, err
	case <-pl.closed:
		return nil, net.ErrClosed
	}
}

func (pl *poolListener) Close() error {
	pl.closeOnce.Do(func() { close(pl.closed) })
	return pl.Listener.Close()
}
