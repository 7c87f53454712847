package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"docverify/internal/authz"
	"docverify/internal/blob"
	"docverify/internal/verification/models"
	id "docverify/pkg/domain"
	dErrors "docverify/pkg/domain-errors"
	"docverify/pkg/platform/httputil"
	"docverify/pkg/requestcontext"
)

// multipartOverhead covers form fields and boundaries on top of the file cap.
const multipartOverhead = 1 << 20

// Service defines the lifecycle operations exposed over HTTP.
type Service interface {
	Submit(ctx context.Context, principal authz.Principal, cmd models.SubmitCommand) (*models.SubmitResult, error)
	ListOwn(ctx context.Context, principal authz.Principal) ([]*models.VerificationRequest, error)
	GetOwn(ctx context.Context, principal authz.Principal, requestID id.RequestID) (*models.VerificationRequest, error)
	ListPendingForReview(ctx context.Context, principal authz.Principal) ([]*models.VerificationRequest, error)
	GetRequest(ctx context.Context, principal authz.Principal, requestID id.RequestID) (*models.VerificationRequest, error)
	Decide(ctx context.Context, principal authz.Principal, requestID id.RequestID, decision models.Decision, reason string) (*models.VerificationRequest, error)
}

// FileStore stores multipart uploads and streams them back for download.
type FileStore interface {
	Put(ctx context.Context, originalName string, r io.Reader) (blob.FileDescriptor, error)
	Open(ctx context.Context, key string) (io.ReadCloser, string, error)
	MaxBytes() int64
}

// Config carries the settings the handler checks before calling the service.
type Config struct {
	// PublicFileBase prefixes absolute document URLs.
	PublicFileBase string
	Countries      models.CountrySet
	Policy         authz.Policy
}

// Handler wires verification endpoints to the lifecycle service.
type Handler struct {
	service   Service
	files     FileStore
	logger    *slog.Logger
	resp      responder
	countries models.CountrySet
	policy    authz.Policy
}

func New(service Service, files FileStore, logger *slog.Logger, cfg Config) *Handler {
	return &Handler{
		service:   service,
		files:     files,
		logger:    logger,
		resp:      responder{publicBase: cfg.PublicFileBase},
		countries: cfg.Countries,
		policy:    cfg.Policy,
	}
}

// Register mounts applicant and reviewer endpoints. Callers apply authentication.
func (h *Handler) Register(r chi.Router) {
	r.Post("/api/verify", h.HandleSubmit)
	r.Get("/api/verify", h.HandleListOwn)
	r.Get("/api/verify/{id}", h.HandleGetOwn)

	r.Get("/api/verification-requests", h.HandleListPending)
	r.Get("/api/verification-requests/{id}", h.HandleGetRequest)
	r.Get("/api/verification-requests/{id}/document", h.HandleDownload)
	r.Put("/api/verification-requests/{id}/{decision:approve|reject}", h.HandleDecide)
}

// HandleSubmit accepts either a multipart upload or a JSON body that points
// at an already stored file.
func (h *Handler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	principal, err := authz.PrincipalFromContext(ctx)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := authz.RequireSubmitter(principal); err != nil {
		httputil.WriteError(w, err)
		return
	}

	var cmd models.SubmitCommand
	if isMultipart(r) {
		c, err := h.readMultipart(w, r)
		if err != nil {
			h.logger.WarnContext(ctx, "rejected verification upload",
				"request_id", requestID,
				"error", err,
			)
			httputil.WriteError(w, err)
			return
		}
		cmd = c
	} else {
		req, ok := httputil.DecodeAndPrepare[SubmitRequest](w, r, h.logger, ctx, requestID)
		if !ok {
			return
		}
		cmd = req.Command()
	}

	res, err := h.service.Submit(ctx, principal, cmd)
	if err != nil {
		h.logFailure(ctx, "verification submit failed", err)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, SubmitResponse{
		ID:        res.ID.String(),
		Status:    res.Status.String(),
		CreatedAt: res.CreatedAt,
		Message:   submittedMessage,
	})
}

func isMultipart(r *http.Request) bool {
	mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mt == "multipart/form-data"
}

// readMultipart parses the form and checks country and the type fields
// before the file is stored, so rejected classifications leave no blob behind.
func (h *Handler) readMultipart(w http.ResponseWriter, r *http.Request) (models.SubmitCommand, error) {
	ctx := r.Context()
	r.Body = http.MaxBytesReader(w, r.Body, h.files.MaxBytes()+multipartOverhead)
	if err := r.ParseMultipartForm(h.files.MaxBytes()); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			return models.SubmitCommand{}, dErrors.New(dErrors.CodePayloadTooBig, "upload exceeds the size limit")
		}
		return models.SubmitCommand{}, dErrors.New(dErrors.CodeBadRequest, "invalid multipart form")
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	cmd := models.SubmitCommand{
		Country:          r.FormValue("country"),
		VerificationType: r.FormValue("verificationType"),
		DocumentType:     r.FormValue("documentType"),
	}
	if _, err := h.countries.Parse(cmd.Country); err != nil {
		return cmd, err
	}
	if _, err := models.ParseVerificationType(cmd.VerificationType); err != nil {
		return cmd, err
	}
	if _, err := models.ParseDocumentType(cmd.DocumentType); err != nil {
		return cmd, err
	}

	loc, err := formLocation(r)
	if err != nil {
		return cmd, err
	}
	cmd.Location = loc

	file, header, err := r.FormFile("file")
	if errors.Is(err, http.ErrMissingFile) {
		return cmd, nil
	}
	if err != nil {
		return cmd, dErrors.New(dErrors.CodeBadRequest, "invalid file part")
	}
	defer file.Close()

	desc, err := h.files.Put(ctx, header.Filename, file)
	if err != nil {
		return cmd, err
	}
	cmd.File = desc.Ref()
	return cmd, nil
}

func formLocation(r *http.Request) (*models.GeoPoint, error) {
	latRaw := strings.TrimSpace(r.FormValue("latitude"))
	longRaw := strings.TrimSpace(r.FormValue("longitude"))
	if latRaw == "" && longRaw == "" {
		return nil, nil
	}
	var lat, long *float64
	if latRaw != "" {
		v, err := strconv.ParseFloat(latRaw, 64)
		if err != nil {
			return nil, dErrors.New(dErrors.CodeValidation, "latitude must be a number")
		}
		lat = &v
	}
	if longRaw != "" {
		v, err := strconv.ParseFloat(longRaw, 64)
		if err != nil {
			return nil, dErrors.New(dErrors.CodeValidation, "longitude must be a number")
		}
		long = &v
	}
	return parseLocation(lat, long)
}

// HandleListOwn returns the caller's requests, newest first, with decision reasons.
func (h *Handler) HandleListOwn(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	principal, err := authz.PrincipalFromContext(ctx)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	reqs, err := h.service.ListOwn(ctx, principal)
	if err != nil {
		h.logFailure(ctx, "list own verification requests failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, h.resp.ownList(reqs))
}

func (h *Handler) HandleGetOwn(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	principal, requestID, ok := h.callerAndID(w, r)
	if !ok {
		return
	}
	req, err := h.service.GetOwn(ctx, principal, requestID)
	if err != nil {
		h.logFailure(ctx, "get own verification request failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, h.resp.own(req))
}

// HandleListPending returns the FIFO review queue.
func (h *Handler) HandleListPending(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	principal, err := authz.PrincipalFromContext(ctx)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	reqs, err := h.service.ListPendingForReview(ctx, principal)
	if err != nil {
		h.logFailure(ctx, "list pending verification requests failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, h.resp.queue(reqs))
}

func (h *Handler) HandleGetRequest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	principal, requestID, ok := h.callerAndID(w, r)
	if !ok {
		return
	}
	req, err := h.service.GetRequest(ctx, principal, requestID)
	if err != nil {
		h.logFailure(ctx, "get verification request failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, h.resp.queueItem(req))
}

// HandleDownload streams the request's document under its original file
// name to callers who may view the request.
func (h *Handler) HandleDownload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	principal, requestID, ok := h.callerAndID(w, r)
	if !ok {
		return
	}
	req, err := h.service.GetRequest(ctx, principal, requestID)
	if err != nil {
		h.logFailure(ctx, "document download refused", err, "verification_request_id", requestID)
		httputil.WriteError(w, err)
		return
	}
	if req.File == nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "request has no document"))
		return
	}

	rc, contentType, err := h.files.Open(ctx, req.File.StoragePath)
	if blob.IsNotFound(err) {
		httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "file not found"))
		return
	}
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to open stored document",
			"request_id", requestcontext.RequestID(ctx),
			"verification_request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read file"))
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": req.File.Name}))
	w.Header().Set("Cache-Control", "private, no-store")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, rc); err != nil {
		h.logger.WarnContext(ctx, "document stream interrupted",
			"request_id", requestcontext.RequestID(ctx),
			"verification_request_id", requestID,
			"error", err,
		)
	}
}

// HandleDecide approves or rejects. Callers who are not reviewers and ids
// that do not parse get the same 404 as a missing or decided request.
func (h *Handler) HandleDecide(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	principal, err := authz.PrincipalFromContext(ctx)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if !h.policy.IsReviewer(principal) {
		httputil.WriteError(w, notAvailableForReview())
		return
	}
	verificationID, err := id.ParseRequestID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, notAvailableForReview())
		return
	}
	decision, err := models.ParseDecision(chi.URLParam(r, "decision"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	body, ok := httputil.DecodeAndPrepare[DecisionRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	req, err := h.service.Decide(ctx, principal, verificationID, decision, body.Reason)
	if err != nil {
		h.logFailure(ctx, "verification decision failed", err,
			"verification_request_id", verificationID,
			"decision", decision,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "verification request decided",
		"request_id", requestID,
		"verification_request_id", verificationID,
		"status", req.Status,
		"reviewer_id", principal.ID,
	)
	httputil.WriteJSON(w, http.StatusOK, decisionResponse(req))
}

func notAvailableForReview() error {
	return dErrors.New(dErrors.CodeNotFoundOrNotPending, "request not found or not pending")
}

func (h *Handler) callerAndID(w http.ResponseWriter, r *http.Request) (authz.Principal, id.RequestID, bool) {
	principal, err := authz.PrincipalFromContext(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return authz.Principal{}, id.RequestID{}, false
	}
	requestID, err := id.ParseRequestID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "invalid verification request id"))
		return authz.Principal{}, id.RequestID{}, false
	}
	return principal, requestID, true
}

// logFailure logs server-side failures at error level and client errors at warn.
func (h *Handler) logFailure(ctx context.Context, msg string, err error, attrs ...any) {
	attrs = append(attrs, "request_id", requestcontext.RequestID(ctx), "error", err)
	switch dErrors.CodeOf(err) {
	case dErrors.CodeInternal, dErrors.CodeUnavailable, dErrors.CodeTimeout:
		h.logger.ErrorContext(ctx, msg, attrs...)
	default:
		h.logger.WarnContext(ctx, msg, attrs...)
	}
}
