// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/nixcache/storecache/lib/cacheerr"
)

// statusWriter records the status code an http.ResponseWriter ends
// up sending, the way a request-logging middleware needs to without
// every handler reporting it explicitly. writeError additionally
// threads the taxonomy kind through it, since the status code alone
// collapses distinct error kinds that map to the same HTTP status.
type statusWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
	kind        error
}

func (w *statusWriter) WriteHeader(status int) {
	if !w.wroteHeader {
		w.status = status
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(status)
}

func (w *statusWriter) Write(p []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	return w.ResponseWriter.Write(p)
}

// withLogging wraps handler so every non-2xx response is logged at
// Info (4xx) or Warn (5xx) with method, path, remote address, status,
// and error kind, per spec.md §7. 2xx responses are not logged — this
// server recomputes every response from scratch, so a request log
// line per success would dominate output without adding value.
func withLogging(logger *slog.Logger, handler http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		handler.ServeHTTP(sw, r)

		if sw.status < 300 {
			return
		}
		attrs := []any{
			"method", r.Method,
			"path", r.URL.Path,
			"remote_addr", r.RemoteAddr,
			"status", sw.status,
		}
		if sw.kind != nil {
			attrs = append(attrs, "kind", sw.kind.Error())
		}
		if sw.status >= 500 {
			logger.Warn("request failed", attrs...)
		} else {
			logger.Info("request failed", attrs...)
		}
	})
}

// writeError writes err's taxonomy-mapped status code and a short
// plaintext body, per spec.md §4.7/§7. It must be called before any
// other header or body write. When w is the statusWriter withLogging
// installs, it also records err's taxonomy kind so the request log
// line names it, per spec.md §7.
func writeError(w http.ResponseWriter, err error) {
	status := cacheerr.StatusCode(err)
	if sw, ok := w.(*statusWriter); ok {
		sw.kind = cacheerr.Kind(err)
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	fmt.Fprintln(w, http.StatusText(status))
}
