// Package requesttime pins one "now" per request so pending records and the
// audit events they produce carry the same timestamp.
package requesttime

import (
	"net/http"
	"time"

	"microbonds/pkg/requestcontext"
)

// Middleware stamps the request with the wall clock.
func Middleware(next http.Handler) http.Handler {
	return WithClock(time.Now)(next)
}

// WithClock stamps requests from clock. Tests use it to freeze time across a
// whole handler chain.
func WithClock(clock func() time.Time) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := requestcontext.WithTime(r.Context(), clock().UTC())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
