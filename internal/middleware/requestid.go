// Package middleware provides HTTP middleware for the wikirelay ingest API.
package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/wikirelay/wikirelay/internal/logger"
)

// RequestIDHeader carries the caller-supplied request correlation ID.
const RequestIDHeader = "X-Request-ID"

// RequestID is HTTP middleware that extracts X-Request-ID from the request
// header or generates a new one. The ID is stored in the context and set
// on the response header.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}

		ctx := logger.WithRequestID(r.Context(), id)
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
