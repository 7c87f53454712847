package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"docverify/internal/authz"
	"docverify/internal/dashboard"
	"docverify/internal/verification/models"
	dErrors "docverify/pkg/domain-errors"
	"docverify/pkg/platform/httputil"
	"docverify/pkg/requestcontext"
)

type Service interface {
	Summary(ctx context.Context, principal authz.Principal) (*dashboard.Summary, error)
	AdminMetrics(ctx context.Context, principal authz.Principal) (*dashboard.AdminMetrics, error)
}

type CountryOption struct {
	Code  string `json:"code"`
	Label string `json:"label"`
}

// ConfigResponse is what clients need to build the submission form.
type ConfigResponse struct {
	SupportedCountries   []CountryOption `json:"supportedCountries"`
	VerificationTypes    []string        `json:"verificationTypes"`
	DocumentTypes        []string        `json:"documentTypes"`
	AcceptedContentTypes []string        `json:"acceptedContentTypes"`
	MaxUploadBytes       int64           `json:"maxUploadBytes"`
}

type Handler struct {
	service Service
	logger  *slog.Logger
	config  ConfigResponse
}

func New(service Service, logger *slog.Logger, countries models.CountrySet, maxUploadBytes int64) *Handler {
	return &Handler{service: service, logger: logger, config: buildConfig(countries, maxUploadBytes)}
}

// Register mounts the dashboard routes. Callers apply authentication.
func (h *Handler) Register(r chi.Router) {
	r.Get("/api/dashboard", h.HandleSummary)
	r.Get("/api/admin/metrics", h.HandleAdminMetrics)
	r.Get("/api/config", h.HandleConfig)
}

func (h *Handler) HandleSummary(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	principal, err := authz.PrincipalFromContext(ctx)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	summary, err := h.service.Summary(ctx, principal)
	if err != nil {
		h.fail(ctx, w, "dashboard summary failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, summary)
}

func (h *Handler) HandleAdminMetrics(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	principal, err := authz.PrincipalFromContext(ctx)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	metrics, err := h.service.AdminMetrics(ctx, principal)
	if err != nil {
		h.fail(ctx, w, "admin metrics failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, metrics)
}

func (h *Handler) HandleConfig(w http.ResponseWriter, r *http.Request) {
	if _, err := authz.PrincipalFromContext(r.Context()); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, h.config)
}

func (h *Handler) fail(ctx context.Context, w http.ResponseWriter, msg string, err error) {
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		h.logger.ErrorContext(ctx, msg,
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
	}
	httputil.WriteError(w, err)
}

func buildConfig(countries models.CountrySet, maxUploadBytes int64) ConfigResponse {
	cfg := ConfigResponse{
		AcceptedContentTypes: []string{"image/jpeg", "image/png", "application/pdf"},
		MaxUploadBytes:       maxUploadBytes,
	}
	for _, c := range countries.Codes() {
		cfg.SupportedCountries = append(cfg.SupportedCountries, CountryOption{
			Code:  c.String(),
			Label: dashboard.CountryLabel(c.String()),
		})
	}
	for _, v := range models.VerificationTypes() {
		cfg.VerificationTypes = append(cfg.VerificationTypes, v.String())
	}
	for _, d := range models.DocumentTypes() {
		cfg.DocumentTypes = append(cfg.DocumentTypes, d.String())
	}
	return cfg
}
