package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/ledenev737/BuhWise/pkg/logger"
)

// RequestIDHeader carries the correlation id in both directions
const RequestIDHeader = "X-Request-Id"

// maxRequestIDLength bounds ids accepted from clients
const maxRequestIDLength = 64

// RequestID assigns every request a correlation id. A well-formed id sent by
// the client is kept, otherwise a new UUID is generated. The id is echoed in
// the response header and stored under logger.RequestIDKey.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(RequestIDHeader))
		if id == "" || len(id) > maxRequestIDLength {
			id = uuid.NewString()
		}

		w.Header().Set(RequestIDHeader, id)
		ctx := context.WithValue(r.Context(), logger.RequestIDKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetRequestID returns the correlation id of the request context, if any
func GetRequestID(ctx context.Context) string {
	id, _ := ctx.Value(logger.RequestIDKey).(string)
	return id
}
