package scan

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"docverify/internal/authz"
	"docverify/internal/verification/models"
	id "docverify/pkg/domain"
	dErrors "docverify/pkg/domain-errors"
	"docverify/pkg/platform/sentinel"
	"docverify/pkg/requestcontext"
)

// RequestStore is the slice of the request store the scanner needs.
type RequestStore interface {
	FindByID(ctx context.Context, requestID id.RequestID) (*models.VerificationRequest, error)
	UpdateScan(ctx context.Context, requestID id.RequestID, scan models.ScanSummary, now time.Time) error
}

type Service struct {
	store    RequestStore
	scanners map[Mode]Scanner
	cache    Cache
	policy   authz.Policy
	logger   *slog.Logger
}

type Option func(*Service)

func WithCache(c Cache) Option              { return func(s *Service) { s.cache = c } }
func WithPolicy(p authz.Policy) Option      { return func(s *Service) { s.policy = p } }
func WithLogger(l *slog.Logger) Option      { return func(s *Service) { s.logger = l } }
func WithScanner(m Mode, sc Scanner) Option { return func(s *Service) { s.scanners[m] = sc } }

func NewService(store RequestStore, opts ...Option) *Service {
	s := &Service{
		store: store,
		scanners: map[Mode]Scanner{
			ModeMock: MockScanner{},
			ModeLive: LiveScanner{},
		},
		policy: authz.DefaultPolicy(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Scan returns the advisory result for a request the caller may view.
// The summary is written back to the request; cache and write-back failures
// are logged and never fail the call.
func (s *Service) Scan(ctx context.Context, principal authz.Principal, requestID id.RequestID, mode Mode) (*Result, error) {
	if err := authz.RequireAuthenticated(principal); err != nil {
		return nil, err
	}
	scanner, ok := s.scanners[mode]
	if !ok {
		return nil, dErrors.New(dErrors.CodeValidation, "mode must be mock or live")
	}

	req, err := s.store.FindByID(ctx, requestID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.New(dErrors.CodeNotFound, "verification request not found")
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load verification request")
	}
	if !s.policy.CanViewRequest(principal, req.ApplicantID) {
		return nil, dErrors.New(dErrors.CodeNotFound, "verification request not found")
	}
	if req.File == nil {
		return nil, dErrors.New(dErrors.CodeValidation, "request has no document to scan")
	}

	if s.cache != nil {
		cached, err := s.cache.Get(ctx, requestID, mode)
		if err != nil {
			s.logger.WarnContext(ctx, "scan cache read failed", "error", err)
		} else if cached != nil {
			return cached, nil
		}
	}

	res, err := scanner.Scan(ctx, req)
	if err != nil {
		s.writeBack(ctx, requestID, models.ScanSummary{Status: models.ScanFailed})
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "document scan unavailable")
	}

	confidence := res.Confidence
	tampered := res.Tampered
	s.writeBack(ctx, requestID, models.ScanSummary{
		Status:     models.ScanDone,
		Confidence: &confidence,
		Tampered:   &tampered,
	})

	if s.cache != nil {
		if err := s.cache.Set(ctx, res); err != nil {
			s.logger.WarnContext(ctx, "scan cache write failed", "error", err)
		}
	}
	return &res, nil
}

func (s *Service) writeBack(ctx context.Context, requestID id.RequestID, summary models.ScanSummary) {
	if err := s.store.UpdateScan(ctx, requestID, summary, requestcontext.Now(ctx)); err != nil {
		s.logger.WarnContext(ctx, "scan summary write-back failed",
			"verification_request_id", requestID,
			"error", err,
		)
	}
}
