package metadata

import (
	"net"
	"net/http"
	"strings"

	"findthem/pkg/requestcontext"
)

// ClientMetadata extracts client IP address and User-Agent from the request
// and adds them to the context. Apply it before rate limiting, and after
// chi's middleware.RealIP when the service runs behind a trusted proxy.
func ClientMetadata(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := requestcontext.WithClientMetadata(r.Context(), ClientIPFromRequest(r), r.Header.Get("User-Agent"))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ClientIPFromRequest returns the host part of RemoteAddr. Proxy headers are
// never read here; RealIP rewrites RemoteAddr when they are trusted.
func ClientIPFromRequest(r *http.Request) string {
	addr := strings.TrimSpace(r.RemoteAddr)
	if addr == "" {
		return "unknown"
	}
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	// RealIP stores a bare address without a port
	return strings.Trim(addr, "[]")
}
