// Package service runs the verification request lifecycle: submission,
// owner reads, the review queue and the one-shot review decision.
//
// Every state change and its audit entry are written in one unit of work.
// A failed audit append fails the operation and leaves no trace of the change.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"docverify/internal/audit"
	"docverify/internal/authz"
	"docverify/internal/verification/metrics"
	"docverify/internal/verification/models"
	id "docverify/pkg/domain"
	dErrors "docverify/pkg/domain-errors"
	"docverify/pkg/platform/sentinel"
	"docverify/pkg/platform/tx"
	"docverify/pkg/requestcontext"
)

// RequestStore persists verification requests. ApplyDecision must apply the
// decision only while the stored request is pending and report
// sentinel.ErrNotFound otherwise.
type RequestStore interface {
	Create(ctx context.Context, req *models.VerificationRequest) error
	FindByID(ctx context.Context, requestID id.RequestID) (*models.VerificationRequest, error)
	ApplyDecision(ctx context.Context, d models.DecisionRecord) (*models.VerificationRequest, error)
	ListPending(ctx context.Context) ([]*models.VerificationRequest, error)
	ListByApplicant(ctx context.Context, applicantID id.UserID) ([]*models.VerificationRequest, error)
}

// AuditLedger appends lifecycle events; it must honour the unit of work in ctx.
type AuditLedger interface {
	Record(ctx context.Context, rec audit.Record) (audit.Entry, error)
}

type Service struct {
	store     RequestStore
	ledger    AuditLedger
	tx        tx.Runner
	policy    authz.Policy
	countries models.CountrySet
	logger    *slog.Logger
	metrics   *metrics.Metrics
	tracer    trace.Tracer
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithTx sets the unit-of-work runner. Without one, mutations and audit
// appends are not atomic and a failed append is reported as an inconsistency.
func WithTx(runner tx.Runner) Option {
	return func(s *Service) { s.tx = runner }
}

func WithPolicy(p authz.Policy) Option {
	return func(s *Service) { s.policy = p }
}

func WithCountries(cs models.CountrySet) Option {
	return func(s *Service) { s.countries = cs }
}

func WithTracer(t trace.Tracer) Option {
	return func(s *Service) { s.tracer = t }
}

func New(store RequestStore, ledger AuditLedger, opts ...Option) *Service {
	s := &Service{
		store:     store,
		ledger:    ledger,
		policy:    authz.DefaultPolicy(),
		countries: models.DefaultCountrySet(),
		logger:    slog.Default(),
		tracer:    otel.Tracer("docverify/verification"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// errAuditAppend marks failures of the ledger inside a unit of work.
type errAuditAppend struct{ err error }

func (e errAuditAppend) Error() string { return "audit append: " + e.err.Error() }
func (e errAuditAppend) Unwrap() error { return e.err }

// runUnit executes fn atomically when a runner is configured.
func (s *Service) runUnit(ctx context.Context, fn func(ctx context.Context) error) error {
	if s.tx == nil {
		return fn(ctx)
	}
	return s.tx.RunInTx(ctx, fn)
}

func (s *Service) record(ctx context.Context, rec audit.Record) error {
	if _, err := s.ledger.Record(ctx, rec); err != nil {
		return errAuditAppend{err: err}
	}
	return nil
}

func (s *Service) startSpan(ctx context.Context, op string, principal authz.Principal) (context.Context, trace.Span, time.Time) {
	ctx, span := s.tracer.Start(ctx, "verification."+op, trace.WithAttributes(
		attribute.String("principal.role", principal.Role.String()),
	))
	return ctx, span, time.Now()
}

func (s *Service) endSpan(span trace.Span, op string, start time.Time, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, dErrors.MessageOf(err))
	}
	span.End()
	s.metrics.ObserveLatency(op, time.Since(start))
}

// translate turns model and store errors into transport-ready coded errors.
func translate(err error, msg string) error {
	if err == nil {
		return nil
	}
	var auditErr errAuditAppend
	if errors.As(err, &auditErr) {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record audit entry")
	}
	var de *dErrors.Error
	if errors.As(err, &de) {
		if de.Code == dErrors.CodeInvariantViolation {
			return dErrors.Wrap(err, dErrors.CodeValidation, de.Message)
		}
		return err
	}
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.Wrap(err, dErrors.CodeNotFound, "verification request not found")
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "operation timed out")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, msg)
}

func (s *Service) now(ctx context.Context) time.Time {
	return requestcontext.Now(ctx).UTC()
}
