// Package audit is the append-only ledger of verification lifecycle events.
//
// The Ledger is fail-closed: Record blocks until the entry is persisted and
// returns an error otherwise. Callers run it inside the same unit of work as
// the mutation it describes, so a failed append rolls the mutation back.
package audit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	id "docverify/pkg/domain"
	"docverify/pkg/platform/middleware/metadata"
	"docverify/pkg/requestcontext"
)

// Store persists entries. Implementations must honour a transaction carried in ctx.
type Store interface {
	Append(ctx context.Context, entry Entry) error
	List(ctx context.Context, filter ListFilter) ([]Entry, error)
}

// Ledger writes audit entries with fail-closed semantics.
type Ledger struct {
	store   Store
	logger  *slog.Logger
	metrics *Metrics
}

// Option configures the Ledger.
type Option func(*Ledger)

// WithLogger sets a logger for error reporting.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Ledger) {
		l.logger = logger
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *Metrics) Option {
	return func(l *Ledger) {
		l.metrics = m
	}
}

func NewLedger(store Store, opts ...Option) *Ledger {
	l := &Ledger{store: store}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Record validates and appends one entry, stamping it with the request-scoped
// time and the caller's client metadata.
func (l *Ledger) Record(ctx context.Context, rec Record) (Entry, error) {
	start := time.Now()

	if rec.ActorID.IsNil() {
		return Entry{}, fmt.Errorf("audit entry requires an actor")
	}
	if rec.RequestID.IsNil() {
		return Entry{}, fmt.Errorf("audit entry requires a request")
	}
	if !rec.Action.IsValid() {
		return Entry{}, fmt.Errorf("audit entry has invalid action %q", rec.Action)
	}

	md := rec.Metadata
	if md.Client == nil {
		if client := metadata.ClientFromContext(ctx); client != (metadata.Client{}) {
			md.Client = &client
		}
	}

	requestID := rec.RequestID
	entry := Entry{
		ID:        id.NewAuditEntryID(),
		RequestID: &requestID,
		ActorID:   rec.ActorID,
		Action:    rec.Action,
		Metadata:  md,
		Timestamp: requestcontext.Now(ctx),
	}

	if err := l.store.Append(ctx, entry); err != nil {
		l.metrics.IncAppendFailures(rec.Action)
		if l.logger != nil {
			l.logger.ErrorContext(ctx, "CRITICAL: audit append failed",
				"request_id", requestcontext.RequestID(ctx),
				"verification_request_id", rec.RequestID,
				"action", rec.Action,
				"actor_id", rec.ActorID,
				"error", err,
			)
		}
		return Entry{}, fmt.Errorf("audit append failed: %w", err)
	}

	l.metrics.ObserveAppend(rec.Action, time.Since(start))
	return entry, nil
}
