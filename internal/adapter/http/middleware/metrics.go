package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sbms/trading/internal/infrastructure/metrics"
)

// Metrics creates a middleware that records request counts and latency.
func Metrics(m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			wrapped := &metricsRecorder{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(wrapped, r)

			duration := time.Since(start).Seconds()
			path := normalizePath(r.URL.Path)

			m.HTTPRequests.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.statusCode)).Inc()
			m.HTTPDuration.WithLabelValues(r.Method, path).Observe(duration)
		})
	}
}

type metricsRecorder struct {
	http.ResponseWriter

	statusCode int
}

func (r *metricsRecorder) WriteHeader(code int) {
	r.statusCode = code
	r.ResponseWriter.WriteHeader(code)
}

// normalizePath collapses path segments carrying ids so metric label
// cardinality stays bounded.
func normalizePath(path string) string {
	const prefix = "/api/trading/transactions/"
	if !strings.HasPrefix(path, prefix) {
		return path
	}

	rest := strings.TrimPrefix(path, prefix)
	switch {
	case rest == "search":
		return path
	case strings.HasPrefix(rest, "party/"):
		return prefix + "party/:id"
	default:
		return prefix + ":id"
	}
}
