package v1

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/seriarr/seriarr/internal/reqid"
)

const headerRequestID = "X-Request-ID"

// RequestID ensures every request carries a correlation ID in context and
// headers. An incoming X-Request-ID is honored, otherwise a UUIDv4 is
// generated; the value is echoed in the response header either way.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(headerRequestID)
		if id == "" {
			id = uuid.NewString()
		}
		ctx := reqid.With(r.Context(), id)
		w.Header().Set(headerRequestID, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
