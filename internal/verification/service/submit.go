package service

import (
	"context"

	"docverify/internal/audit"
	"docverify/internal/authz"
	"docverify/internal/verification/models"
	id "docverify/pkg/domain"
	dErrors "docverify/pkg/domain-errors"
	"docverify/pkg/requestcontext"
)

// Submit validates an applicant's submission and stores it as pending
// together with its "created" audit entry.
func (s *Service) Submit(ctx context.Context, principal authz.Principal, cmd models.SubmitCommand) (res *models.SubmitResult, err error) {
	ctx, span, start := s.startSpan(ctx, "submit", principal)
	defer func() { s.endSpan(span, "submit", start, err) }()

	if err := authz.RequireSubmitter(principal); err != nil {
		return nil, err
	}

	req, err := s.buildRequest(ctx, principal, cmd)
	if err != nil {
		return nil, translate(err, "invalid submission")
	}

	err = s.runUnit(ctx, func(txCtx context.Context) error {
		if err := s.store.Create(txCtx, req); err != nil {
			return err
		}
		return s.record(txCtx, audit.Record{
			RequestID: req.ID,
			ActorID:   principal.ID,
			Action:    audit.ActionCreated,
			Metadata:  createdMetadata(req),
		})
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "verification submit failed",
			"request_id", requestcontext.RequestID(ctx),
			"applicant_id", principal.ID,
			"error", err,
		)
		return nil, translate(err, "failed to submit verification request")
	}

	s.metrics.IncSubmission(req.VerificationType.String())
	s.logger.InfoContext(ctx, "verification request submitted",
		"request_id", requestcontext.RequestID(ctx),
		"verification_request_id", req.ID,
		"applicant_id", principal.ID,
		"verification_type", req.VerificationType,
		"country", req.Country,
	)

	return &models.SubmitResult{ID: req.ID, Status: req.Status, CreatedAt: req.CreatedAt}, nil
}

func (s *Service) buildRequest(ctx context.Context, principal authz.Principal, cmd models.SubmitCommand) (*models.VerificationRequest, error) {
	country, err := s.countries.Parse(cmd.Country)
	if err != nil {
		return nil, err
	}
	vType, err := models.ParseVerificationType(cmd.VerificationType)
	if err != nil {
		return nil, err
	}
	docType, err := models.ParseDocumentType(cmd.DocumentType)
	if err != nil {
		return nil, err
	}
	if cmd.Location != nil {
		if _, err := models.NewGeoPoint(cmd.Location.Latitude, cmd.Location.Longitude); err != nil {
			return nil, err
		}
	}
	if cmd.File == nil && !(vType.AcceptsLocation() && cmd.Location != nil) {
		return nil, dErrors.New(dErrors.CodeValidation, "a document file is required")
	}
	if cmd.Location != nil && !vType.AcceptsLocation() {
		return nil, dErrors.New(dErrors.CodeValidation, "location is only accepted for address verification")
	}

	return models.NewVerificationRequest(models.NewRequestParams{
		ID:               id.NewRequestID(),
		ApplicantID:      principal.ID,
		Country:          country,
		VerificationType: vType,
		DocumentType:     docType,
		File:             cmd.File,
		Location:         cmd.Location,
	}, s.now(ctx))
}

func createdMetadata(req *models.VerificationRequest) audit.Metadata {
	md := audit.Metadata{
		Country:          req.Country.String(),
		VerificationType: req.VerificationType.String(),
		DocumentType:     req.DocumentType.String(),
		HasLocation:      req.Location != nil,
	}
	if req.File != nil {
		md.File = &audit.FileMetadata{Name: req.File.Name, ContentType: req.File.ContentType}
	}
	return md
}
