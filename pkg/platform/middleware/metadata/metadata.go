package metadata

import (
	"context"
	"net/http"
	"strings"

	"github.com/mssola/useragent"

	"docverify/pkg/requestcontext"
)

// Client is the caller description recorded alongside lifecycle audit entries.
type Client struct {
	IP      string `json:"ip,omitempty"`
	Browser string `json:"browser,omitempty"`
	OS      string `json:"os,omitempty"`
}

// ClientMetadata extracts client IP address and User-Agent from the request
// and adds them to the context. Apply it early in the chain.
func ClientMetadata(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := requestcontext.WithClientMetadata(r.Context(), ClientIPFromRequest(r), r.Header.Get("User-Agent"))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ClientFromContext describes the caller from the metadata stored by ClientMetadata.
// The zero Client is returned for non-HTTP contexts.
func ClientFromContext(ctx context.Context) Client {
	c := Client{IP: requestcontext.ClientIP(ctx)}
	raw := requestcontext.UserAgent(ctx)
	if raw == "" {
		return c
	}
	ua := useragent.New(raw)
	name, version := ua.Browser()
	if name != "" {
		c.Browser = strings.TrimSpace(name + " " + version)
	}
	c.OS = ua.OS()
	return c
}

// ClientIPFromRequest extracts the real client IP, handling proxies and load balancers.
func ClientIPFromRequest(r *http.Request) string {
	// X-Forwarded-For can contain multiple IPs (client, proxy1, proxy2, ...)
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if idx := strings.Index(xff, ","); idx != -1 {
			return strings.TrimSpace(xff[:idx])
		}
		return strings.TrimSpace(xff)
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}

	// RemoteAddr is "ip:port"; IPv6 is "[::1]:port"
	if addr := r.RemoteAddr; addr != "" {
		if idx := strings.LastIndex(addr, ":"); idx != -1 {
			return strings.Trim(addr[:idx], "[]")
		}
		return addr
	}

	return "unknown"
}
