// Package requesttime pins a single "now" per HTTP request so that the stored
// request timestamps and the audit entry written in the same unit agree.
package requesttime

import (
	"net/http"
	"time"

	"docverify/pkg/requestcontext"
)

// Middleware captures the current time at the start of the request.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := requestcontext.WithTime(r.Context(), time.Now().UTC())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
