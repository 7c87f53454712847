package ratelimit

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"docverify/pkg/platform/httputil"
	"docverify/pkg/requestcontext"
)

// Checker is satisfied by *Limiter.
type Checker interface {
	Check(ctx context.Context, caller string, class Class) (*Result, error)
}

type exceededResponse struct {
	Error          string    `json:"error"`
	Message        string    `json:"error_description"`
	QuotaLimit     int       `json:"quota_limit"`
	QuotaRemaining int       `json:"quota_remaining"`
	QuotaReset     time.Time `json:"quota_reset"`
	RetryAfter     int       `json:"retry_after"`
}

// Middleware limits callers by user id, or by client IP when the request is
// anonymous. Store failures let the request through.
func Middleware(checker Checker, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			caller := "ip:" + requestcontext.ClientIP(ctx)
			if uid := requestcontext.UserID(ctx); !uid.IsNil() {
				caller = "user:" + uid.String()
			}
			class := ClassFor(r)

			res, err := checker.Check(ctx, caller, class)
			if err != nil {
				logger.WarnContext(ctx, "rate limit check failed",
					"class", class,
					"request_id", requestcontext.RequestID(ctx),
					"error", err,
				)
				next.ServeHTTP(w, r)
				return
			}
			if res == nil {
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(res.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(res.ResetAt.Unix(), 10))

			if !res.Allowed {
				logger.InfoContext(ctx, "rate limit exceeded",
					"class", class,
					"caller", caller,
					"request_id", requestcontext.RequestID(ctx),
				)
				w.Header().Set("Retry-After", strconv.Itoa(res.RetryAfter))
				httputil.WriteJSON(w, http.StatusTooManyRequests, exceededResponse{
					Error:          "rate_limit_exceeded",
					Message:        "You have exceeded your request quota for this operation.",
					QuotaLimit:     res.Limit,
					QuotaRemaining: res.Remaining,
					QuotaReset:     res.ResetAt,
					RetryAfter:     res.RetryAfter,
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
