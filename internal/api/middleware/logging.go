package middleware

import (
	"log/slog"
	"net/http"
	"time"
)

// responseTracker captures the status code and body size written by
// downstream handlers.
type responseTracker struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (w *responseTracker) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *responseTracker) Write(b []byte) (int, error) {
	n, err := w.ResponseWriter.Write(b)
	w.bytes += n
	return n, err
}

// Logger emits one structured line per request after it completes.
// Server errors log at error level so they surface in filtered views.
func Logger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		tracker := &responseTracker{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(tracker, r)

		attrs := []any{
			"method", r.Method,
			"path", r.URL.Path,
			"status", tracker.status,
			"bytes", tracker.bytes,
			"duration_ms", time.Since(start).Milliseconds(),
			"remote_addr", r.RemoteAddr,
		}
		if q := r.URL.RawQuery; q != "" {
			attrs = append(attrs, "query", q)
		}

		if tracker.status >= http.StatusInternalServerError {
			slog.Error("request", attrs...)
			return
		}
		slog.Info("request", attrs...)
	})
}
