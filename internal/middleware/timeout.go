package middleware

import (
	"context"
	"errors"
	"net/http"
	"time"
)

// Timeout bounds the request context. Handlers run on the request goroutine;
// if the deadline passes before anything was written, a 504 is sent once the
// handler returns.
func Timeout(timeout time.Duration) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if timeout <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()

			tw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(tw, r.WithContext(ctx))

			if !tw.written && errors.Is(ctx.Err(), context.DeadlineExceeded) {
				writeError(w, r, http.StatusGatewayTimeout, ErrorCodeRequestTimeout, ErrorMessageRequestTimeout)
			}
		})
	}
}
