package handler

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"docverify/internal/audit"
	"docverify/internal/authz"
	id "docverify/pkg/domain"
	dErrors "docverify/pkg/domain-errors"
	"docverify/pkg/platform/httputil"
	"docverify/pkg/requestcontext"
)

const defaultPageSize = 100

// Service lists audit entries for administrators.
type Service interface {
	List(ctx context.Context, principal authz.Principal, filter audit.ListFilter) ([]audit.Entry, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts GET /api/audit-logs. Callers apply authentication.
func (h *Handler) Register(r chi.Router) {
	r.Get("/api/audit-logs", h.HandleList)
}

// HandleList returns ledger entries newest first.
// Query: request_id, actor_id, action, limit (default 100), offset.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	principal, err := authz.PrincipalFromContext(ctx)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	filter, err := parseFilter(r.URL.Query())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	entries, err := h.service.List(ctx, principal, filter)
	if err != nil {
		if dErrors.CodeOf(err) == dErrors.CodeInternal {
			h.logger.ErrorContext(ctx, "failed to list audit entries",
				"request_id", requestcontext.RequestID(ctx),
				"error", err,
			)
		}
		httputil.WriteError(w, err)
		return
	}
	if entries == nil {
		entries = []audit.Entry{}
	}
	httputil.WriteJSON(w, http.StatusOK, entries)
}

func parseFilter(q url.Values) (audit.ListFilter, error) {
	filter := audit.ListFilter{Limit: defaultPageSize}

	if raw := strings.TrimSpace(q.Get("request_id")); raw != "" {
		requestID, err := id.ParseRequestID(raw)
		if err != nil {
			return filter, dErrors.New(dErrors.CodeValidation, "invalid request_id")
		}
		filter.RequestID = &requestID
	}
	if raw := strings.TrimSpace(q.Get("actor_id")); raw != "" {
		actorID, err := id.ParseUserID(raw)
		if err != nil {
			return filter, dErrors.New(dErrors.CodeValidation, "invalid actor_id")
		}
		filter.ActorID = &actorID
	}
	if raw := strings.TrimSpace(q.Get("action")); raw != "" {
		action, err := audit.ParseAction(strings.ToLower(raw))
		if err != nil {
			return filter, err
		}
		filter.Action = action
	}
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return filter, dErrors.New(dErrors.CodeValidation, "limit must be a positive integer")
		}
		filter.Limit = n
	}
	if raw := q.Get("offset"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return filter, dErrors.New(dErrors.CodeValidation, "offset must be a non-negative integer")
		}
		filter.Offset = n
	}
	return filter, nil
}
