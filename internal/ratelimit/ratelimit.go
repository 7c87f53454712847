// Package ratelimit throttles authenticated callers with a sliding window
// per caller and endpoint class.
package ratelimit

import (
	"context"
	"net/http"
	"time"
)

// Class groups endpoints that share a budget.
type Class string

const (
	ClassSubmit Class = "submit"
	ClassDecide Class = "decide"
	ClassRead   Class = "read"
)

// ClassFor maps a request onto its budget: uploads, decisions, everything else.
func ClassFor(r *http.Request) Class {
	switch r.Method {
	case http.MethodPost:
		return ClassSubmit
	case http.MethodPut, http.MethodPatch, http.MethodDelete:
		return ClassDecide
	default:
		return ClassRead
	}
}

// Limit is a budget of Requests per Window.
type Limit struct {
	Requests int
	Window   time.Duration
}

// Limits holds one budget per class. A zero Requests disables the class.
type Limits map[Class]Limit

func DefaultLimits() Limits {
	return Limits{
		ClassSubmit: {Requests: 20, Window: time.Minute},
		ClassDecide: {Requests: 120, Window: time.Minute},
		ClassRead:   {Requests: 600, Window: time.Minute},
	}
}

type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
	// RetryAfter is whole seconds and only set when the call was refused.
	RetryAfter int
}

// Store records hits in a sliding window keyed by caller and class.
type Store interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration, now time.Time) (*Result, error)
}

type Limiter struct {
	store  Store
	limits Limits
	now    func() time.Time
}

type Option func(*Limiter)

func WithLimits(l Limits) Option            { return func(lim *Limiter) { lim.limits = l } }
func WithClock(now func() time.Time) Option { return func(lim *Limiter) { lim.now = now } }

func NewLimiter(store Store, opts ...Option) *Limiter {
	l := &Limiter{store: store, limits: DefaultLimits(), now: time.Now}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Check consumes one request from caller's budget for class. It returns nil
// when the class is unlimited.
func (l *Limiter) Check(ctx context.Context, caller string, class Class) (*Result, error) {
	lim, ok := l.limits[class]
	if !ok || lim.Requests <= 0 {
		return nil, nil
	}
	return l.store.Allow(ctx, key(caller, class), lim.Requests, lim.Window, l.now())
}

func key(caller string, class Class) string {
	return "docverify:ratelimit:" + string(class) + ":" + caller
}

func retryAfter(resetAt, now time.Time) int {
	secs := int(resetAt.Sub(now).Round(time.Second) / time.Second)
	if secs < 1 {
		return 1
	}
	return secs
}
