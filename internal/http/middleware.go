package http

import (
	"context"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"
)

// RequestLogger attaches a request-scoped logger to the context and records
// the request's start and completion.
func RequestLogger(base *slog.Logger) func(http.Handler) http.Handler {
	if base == nil {
		base = slog.Default()
	}
	var counter atomic.Uint64

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := counter.Add(1)
			logger := base.With(
				"request_id", id,
				"method", r.Method,
				"path", r.URL.Path,
			)

			ctx := ContextWithLogger(r.Context(), logger)
			start := time.Now()
			logger.InfoContext(ctx, "request started")
			next.ServeHTTP(w, r.WithContext(ctx))
			logger.InfoContext(ctx, "request completed", "duration", time.Since(start))
		})
	}
}

// UploadDeadline bounds each request with a deadline proportional to its
// announced body size, so a slow large upload gets more time than a small one
// without leaving the connection open forever.
func UploadDeadline(base time.Duration, perChunk time.Duration, chunkBytes int64, max time.Duration) func(http.Handler) http.Handler {
	if base <= 0 {
		base = 10 * time.Second
	}
	if perChunk <= 0 {
		perChunk = time.Second
	}
	if chunkBytes <= 0 {
		chunkBytes = 256 << 10
	}
	if max <= 0 {
		max = 2 * time.Minute
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			timeout := base
			if r.ContentLength > 0 {
				chunks := (r.ContentLength + chunkBytes - 1) / chunkBytes
				timeout += time.Duration(chunks) * perChunk
			}
			if timeout > max {
				timeout = max
			}

			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
