// Package logging holds HTTP-facing log helpers. Structured logging
// itself lives in pkg/logger; this package only decides what of a
// request is safe to record.
package logging

import (
	"net/http"
	"time"

	"leadsync/pkg/logger"
)

// sensitiveHeaders never reach the log stream.
var sensitiveHeaders = map[string]struct{}{
	"Authorization": {},
	"Cookie":        {},
	"Set-Cookie":    {},
	"X-Api-Key":     {},
}

// RedactHeader returns the loggable form of a header value.
func RedactHeader(name, value string) string {
	if _, ok := sensitiveHeaders[http.CanonicalHeaderKey(name)]; ok {
		return "[redacted]"
	}
	return value
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// AccessLog wraps a handler with one structured line per request.
func AccessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		logger.Info("http_request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"remote", r.RemoteAddr,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}
