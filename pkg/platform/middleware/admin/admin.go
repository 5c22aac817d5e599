// Package admin guards operator routes with a shared secret.
package admin

import (
	"crypto/sha256"
	"crypto/subtle"
	"log/slog"
	"net/http"

	dErrors "microbonds/pkg/domain-errors"
	"microbonds/pkg/platform/httputil"
	"microbonds/pkg/requestcontext"
)

// HeaderName carries the operator secret.
const HeaderName = "X-Admin-Token"

// RequireAdminToken admits requests whose X-Admin-Token equals expected.
// Both sides are hashed first so the comparison does not leak the secret's
// length. An empty expected token rejects everything.
func RequireAdminToken(expected string, logger *slog.Logger) func(http.Handler) http.Handler {
	want := sha256.Sum256([]byte(expected))
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := sha256.Sum256([]byte(r.Header.Get(HeaderName)))
			if expected == "" || subtle.ConstantTimeCompare(got[:], want[:]) != 1 {
				ctx := r.Context()
				logger.WarnContext(ctx, "admin request rejected",
					"request_id", requestcontext.RequestID(ctx),
					"client_ip", requestcontext.ClientIP(ctx),
					"path", r.URL.Path,
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "admin token required"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
