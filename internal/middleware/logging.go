package middleware

import (
	"log"
	"net/http"
	"time"
)

// Logging logs one line per request in the service's component register,
// tagged with the request id when one is present.
func Logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		requestID := GetRequestID(r.Context())
		if requestID == "" {
			requestID = "-"
		}

		log.Printf("[HTTP] %s %s %d %s id=%s remote=%s",
			r.Method,
			r.URL.Path,
			wrapped.statusCode,
			time.Since(start).Round(time.Microsecond),
			requestID,
			r.RemoteAddr,
		)
	})
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
