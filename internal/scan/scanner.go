package scan

import (
	"context"
	"log/slog"

	"github.com/spaolacci/murmur3"

	"docverify/internal/verification/models"
	"docverify/pkg/platform/circuit"
	"docverify/pkg/requestcontext"
)

// Scanner inspects a stored request's document.
type Scanner interface {
	Scan(ctx context.Context, req *models.VerificationRequest) (Result, error)
}

// MockScanner derives a stable result from the request id so the same
// request always scans the same way.
type MockScanner struct{}

func (MockScanner) Scan(ctx context.Context, req *models.VerificationRequest) (Result, error) {
	h := murmur3.Sum32(req.ID[:]) % 97

	verdict := VerdictValid
	if h%3 == 0 {
		verdict = VerdictInvalid
	}
	ecm := float64(h%7) / 10
	faceSwap := float64(h%5) / 10
	exifMissing := h%2 == 0

	return Result{
		RequestID:  req.ID,
		Verdict:    verdict,
		Confidence: 80 + int(h%21),
		Tampered:   verdict == VerdictInvalid,
		Mode:       ModeMock,
		Signals: Signals{
			ECMNoise:      &ecm,
			FaceSwapScore: &faceSwap,
			ExifMissing:   &exifMissing,
		},
		ScannedAt: requestcontext.Now(ctx).UTC(),
	}, nil
}

// LiveScanner stands in for the forensic pipeline until one is connected.
type LiveScanner struct{}

func (LiveScanner) Scan(ctx context.Context, req *models.VerificationRequest) (Result, error) {
	return Result{
		RequestID:  req.ID,
		Verdict:    VerdictValid,
		Confidence: 95,
		Mode:       ModeLive,
		ScannedAt:  requestcontext.Now(ctx).UTC(),
	}, nil
}

// FallbackScanner calls primary and serves fallback results while the
// breaker is open.
type FallbackScanner struct {
	primary  Scanner
	fallback Scanner
	breaker  *circuit.Breaker
	logger   *slog.Logger
}

func NewFallbackScanner(primary, fallback Scanner, breaker *circuit.Breaker, logger *slog.Logger) *FallbackScanner {
	if logger == nil {
		logger = slog.Default()
	}
	return &FallbackScanner{primary: primary, fallback: fallback, breaker: breaker, logger: logger}
}

func (f *FallbackScanner) Scan(ctx context.Context, req *models.VerificationRequest) (Result, error) {
	res, err := f.primary.Scan(ctx, req)
	if err != nil {
		useFallback, change := f.breaker.RecordFailure()
		if change.Opened {
			f.logger.WarnContext(ctx, "scan circuit opened", "breaker", f.breaker.Name(), "error", err)
		}
		if !useFallback {
			return Result{}, err
		}
		return f.fallback.Scan(ctx, req)
	}

	usePrimary, change := f.breaker.RecordSuccess()
	if change.Closed {
		f.logger.InfoContext(ctx, "scan circuit closed", "breaker", f.breaker.Name())
	}
	if !usePrimary {
		return f.fallback.Scan(ctx, req)
	}
	return res, nil
}
