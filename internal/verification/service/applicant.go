package service

import (
	"context"

	"docverify/internal/authz"
	"docverify/internal/verification/models"
	id "docverify/pkg/domain"
	dErrors "docverify/pkg/domain-errors"
)

// ListOwn returns the caller's own requests, newest first, with decision reasons.
func (s *Service) ListOwn(ctx context.Context, principal authz.Principal) ([]*models.VerificationRequest, error) {
	if err := authz.RequireAuthenticated(principal); err != nil {
		return nil, err
	}
	reqs, err := s.store.ListByApplicant(ctx, principal.ID)
	if err != nil {
		return nil, translate(err, "failed to list verification requests")
	}
	return reqs, nil
}

// GetOwn returns one of the caller's requests. Requests owned by someone
// else are reported as not found.
func (s *Service) GetOwn(ctx context.Context, principal authz.Principal, requestID id.RequestID) (*models.VerificationRequest, error) {
	if err := authz.RequireAuthenticated(principal); err != nil {
		return nil, err
	}
	req, err := s.store.FindByID(ctx, requestID)
	if err != nil {
		return nil, translate(err, "failed to load verification request")
	}
	if !authz.IsOwner(principal, req.ApplicantID) {
		return nil, dErrors.New(dErrors.CodeNotFound, "verification request not found")
	}
	return req, nil
}
