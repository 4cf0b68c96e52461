// Package middleware provides HTTP middleware for Exec.
package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/Strob0t/Exec/internal/logger"
)

// HeaderRequestID carries the request id on requests, responses and bus
// messages.
const HeaderRequestID = "X-Request-ID"

// maxRequestIDLen caps caller-supplied ids before they reach the logs.
const maxRequestIDLen = 128

// RequestID takes X-Request-ID from the request or generates one, stores it
// in the context for logging and echoes it on the response.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(HeaderRequestID)
		if id == "" || len(id) > maxRequestIDLen {
			id = uuid.NewString()
		}

		ctx := logger.WithRequestID(r.Context(), id)
		w.Header().Set(HeaderRequestID, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
