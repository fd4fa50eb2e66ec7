package v1

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/seriarr/seriarr/internal/reqid"
)

// rwLogger captures the status code written by the downstream handler.
type rwLogger struct {
	http.ResponseWriter
	status int
}

func (w *rwLogger) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// AccessLog emits one structured line per request after the handler returns.
func AccessLog(log *slog.Logger) func(http.Handler) http.Handler {
	if log == nil {
		log = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := &rwLogger{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rw, r)

			attrs := []any{
				"method", r.Method,
				"path", r.URL.Path,
				"status", rw.status,
				"duration", time.Since(start),
			}
			if id, ok := reqid.From(r.Context()); ok {
				attrs = append(attrs, "request_id", id)
			}
			log.Info("http request", attrs...)
		})
	}
}
