package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"docverify/internal/authz"
	"docverify/internal/scan"
	id "docverify/pkg/domain"
	dErrors "docverify/pkg/domain-errors"
	"docverify/pkg/platform/httputil"
	request "docverify/pkg/platform/middleware/request"
)

// Service runs advisory document scans.
type Service interface {
	Scan(ctx context.Context, principal authz.Principal, requestID id.RequestID, mode scan.Mode) (*scan.Result, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the scan route. Callers apply authentication.
func (h *Handler) Register(r chi.Router) {
	r.Get("/api/verification-requests/{id}/scan", h.HandleScan)
}

type signalsResponse struct {
	ECMNoise      *float64 `json:"ecmNoise,omitempty"`
	FaceSwapScore *float64 `json:"faceSwapScore,omitempty"`
	ExifMissing   *bool    `json:"exifMissing,omitempty"`
}

type scanResponse struct {
	RequestID  string          `json:"request_id"`
	Verdict    string          `json:"verdict"`
	Confidence int             `json:"confidence"`
	IsTampered bool            `json:"isTampered"`
	Mode       string          `json:"mode"`
	Signals    signalsResponse `json:"signals"`
	ScannedAt  time.Time       `json:"scanned_at"`
}

// HandleScan returns the advisory scan for one request: GET ?mode=mock|live.
func (h *Handler) HandleScan(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := request.GetRequestID(ctx)

	principal, err := authz.PrincipalFromContext(ctx)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	verificationID, err := id.ParseRequestID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "invalid verification request id"))
		return
	}
	mode, err := scan.ParseMode(r.URL.Query().Get("mode"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	res, err := h.service.Scan(ctx, principal, verificationID, mode)
	if err != nil {
		if dErrors.CodeOf(err) == dErrors.CodeInternal || dErrors.CodeOf(err) == dErrors.CodeUnavailable {
			h.logger.ErrorContext(ctx, "document scan failed",
				"request_id", requestID,
				"verification_request_id", verificationID,
				"error", err,
			)
		}
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, scanResponse{
		RequestID:  res.RequestID.String(),
		Verdict:    string(res.Verdict),
		Confidence: res.Confidence,
		IsTampered: res.Tampered,
		Mode:       string(res.Mode),
		Signals: signalsResponse{
			ECMNoise:      res.Signals.ECMNoise,
			FaceSwapScore: res.Signals.FaceSwapScore,
			ExifMissing:   res.Signals.ExifMissing,
		},
		ScannedAt: res.ScannedAt,
	})
}
