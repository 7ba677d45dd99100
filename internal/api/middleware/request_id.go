package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"phishguard/pkg/errors"
)

// HeaderRequestID carries the request id in both directions
const HeaderRequestID = "X-Request-ID"

const maxRequestIDLength = 128

// RequestID propagates the caller's X-Request-ID or generates one, and stores
// it in the request context for logs, the audit log and the error tracker
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(HeaderRequestID)
		if id == "" || len(id) > maxRequestIDLength {
			id = uuid.NewString()
		}

		w.Header().Set(HeaderRequestID, id)
		next.ServeHTTP(w, r.WithContext(errors.WithRequestID(r.Context(), id)))
	})
}
