// ReviewForge - Customer Review Ingestion and Social Image Rendering
// Copyright 2026 ReviewForge Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/reviewforge/reviewforge

package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/reviewforge/reviewforge/internal/metrics"
)

// PrometheusMetrics records a request counter and duration histogram for
// every handled request, labeled by method, path, and status code.
func PrometheusMetrics(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		wrapper := &statusResponseWriter{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}
		next(wrapper, r)

		duration := time.Since(start)
		metrics.APIRequestsTotal.
			WithLabelValues(r.Method, r.URL.Path, strconv.Itoa(wrapper.statusCode)).
			Inc()
		metrics.APIRequestDuration.
			WithLabelValues(r.Method, r.URL.Path).
			Observe(duration.Seconds())
	}
}

// statusResponseWriter wraps http.ResponseWriter to capture the status code.
type statusResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

// WriteHeader captures the status code.
func (rw *statusResponseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
