// Package middleware provides HTTP middleware for the service layer.
package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/edgecache/edgecache/infrastructure/logging"
)

// RequestIDHeader is the header carrying the request's trace ID, both
// incoming (caller-supplied) and outgoing (echoed on the response).
const RequestIDHeader = "X-Trace-ID"

// RequestIDMiddleware stamps every request with a trace ID, reusing one the
// caller already supplied so trace IDs survive a call chain across services.
type RequestIDMiddleware struct{}

// NewRequestIDMiddleware creates a request-id middleware.
func NewRequestIDMiddleware() *RequestIDMiddleware {
	return &RequestIDMiddleware{}
}

// Handler returns the request-id middleware handler.
func (m *RequestIDMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceID := r.Header.Get(RequestIDHeader)
		if traceID == "" {
			traceID = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, traceID)
		ctx := logging.WithTraceID(r.Context(), traceID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
