package middleware

import (
	"net/http"
	"time"

	"github.com/BerylCAtieno/checkup-digitizer-api/internal/utils"
)

// statusRecorder captures the response status. It forwards Flush so
// event streams keep working behind the logger.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// Logger returns a middleware that logs every request once it completes.
func Logger(logger *utils.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(rec, r)

			args := []any{
				"method", r.Method,
				"path", r.URL.Path,
				"status", rec.status,
				"duration", time.Since(start),
				"client_ip", r.RemoteAddr,
			}
			switch {
			case rec.status >= 500:
				logger.Error("Server error", args...)
			case rec.status >= 400:
				logger.Warn("Client error", args...)
			default:
				logger.Info("Request processed", args...)
			}
		})
	}
}
