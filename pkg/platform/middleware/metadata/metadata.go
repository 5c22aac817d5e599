// Package metadata resolves client details once per request.
package metadata

import (
	"net"
	"net/http"
	"strings"

	"microbonds/pkg/requestcontext"
)

const unknownIP = "unknown"

// ClientMetadata stores the client IP in the request context. Mount it ahead
// of request.Logger and the rate limiter, which both read it.
func ClientMetadata(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := requestcontext.WithClientIP(r.Context(), ClientIPFromRequest(r))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ClientIPFromRequest trusts the proxy headers in order: the left-most
// X-Forwarded-For entry, X-Real-IP, then the socket peer.
func ClientIPFromRequest(r *http.Request) string {
	for _, candidate := range []string{firstHop(r.Header.Get("X-Forwarded-For")), r.Header.Get("X-Real-IP")} {
		if ip := strings.TrimSpace(candidate); ip != "" {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	switch {
	case err == nil:
		return host
	case r.RemoteAddr != "":
		return r.RemoteAddr
	default:
		return unknownIP
	}
}

func firstHop(forwarded string) string {
	hop, _, _ := strings.Cut(forwarded, ",")
	return hop
}
