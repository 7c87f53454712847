package testutil

import (
	"context"
	"net/http"

	id "docverify/pkg/domain"
	"docverify/pkg/requestcontext"
)

// WithCaller adds a user ID and role to the request context.
// This simulates what the auth middleware would do for authenticated requests.
func WithCaller(req *http.Request, userID id.UserID, role string) *http.Request {
	ctx := requestcontext.WithCaller(req.Context(), userID, role)
	return req.WithContext(ctx)
}

// WithUserID adds a caller from a string user ID.
// If the userID is not a valid UUID, it will not be added to the context.
func WithUserID(req *http.Request, userID, role string) *http.Request {
	if parsedUserID, err := id.ParseUserID(userID); err == nil {
		return WithCaller(req, parsedUserID, role)
	}
	return req
}

// WithContextValue adds an arbitrary key-value pair to the request context.
func WithContextValue(req *http.Request, key, value any) *http.Request {
	ctx := context.WithValue(req.Context(), key, value)
	return req.WithContext(ctx)
}
