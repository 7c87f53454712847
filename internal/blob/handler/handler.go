package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"docverify/internal/authz"
	"docverify/internal/blob"
	dErrors "docverify/pkg/domain-errors"
	"docverify/pkg/platform/httputil"
	request "docverify/pkg/platform/middleware/request"
)

// Opener resolves a stored document by key.
type Opener interface {
	Open(ctx context.Context, key string) (io.ReadCloser, string, error)
}

type Handler struct {
	files  Opener
	policy authz.Policy
	logger *slog.Logger
}

func New(files Opener, policy authz.Policy, logger *slog.Logger) *Handler {
	return &Handler{files: files, policy: policy, logger: logger}
}

// Register mounts GET /files/{name}. Callers apply authentication.
func (h *Handler) Register(r chi.Router) {
	r.Get("/files/{name}", h.HandleFile)
}

// HandleFile streams a stored document by key for reviewer previews. Only
// callers who may view every request can address blobs directly; applicants
// download through their request.
func (h *Handler) HandleFile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	name := chi.URLParam(r, "name")

	principal, err := authz.PrincipalFromContext(ctx)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if !h.policy.CanViewAll(principal) {
		httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "file not found"))
		return
	}

	rc, contentType, err := h.files.Open(ctx, name)
	if blob.IsNotFound(err) {
		httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "file not found"))
		return
	}
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to open stored file",
			"request_id", request.GetRequestID(ctx),
			"file", name,
			"error", err,
		)
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read file"))
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "private, max-age=300")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, rc); err != nil {
		h.logger.WarnContext(ctx, "file stream interrupted", "file", name, "error", err)
	}
}
