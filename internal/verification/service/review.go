package service

import (
	"context"
	"errors"

	"docverify/internal/audit"
	"docverify/internal/authz"
	"docverify/internal/verification/models"
	id "docverify/pkg/domain"
	dErrors "docverify/pkg/domain-errors"
	"docverify/pkg/platform/sentinel"
	"docverify/pkg/requestcontext"
)

// ListPendingForReview returns every pending request, oldest first.
// Decision reasons are never part of the reviewer projection.
func (s *Service) ListPendingForReview(ctx context.Context, principal authz.Principal) (out []*models.VerificationRequest, err error) {
	ctx, span, start := s.startSpan(ctx, "list_pending", principal)
	defer func() { s.endSpan(span, "list_pending", start, err) }()

	if err := s.policy.RequireReviewer(principal); err != nil {
		return nil, err
	}
	pending, err := s.store.ListPending(ctx)
	if err != nil {
		return nil, translate(err, "failed to list pending requests")
	}
	out = make([]*models.VerificationRequest, len(pending))
	for i, req := range pending {
		out[i] = req.WithoutDecisionReason()
	}
	return out, nil
}

// GetRequest returns a single request to its owner, to reviewers and to
// administrators. Only the owner sees the decision reason. Callers who may
// not see the request get the same not-found error as for a missing one.
func (s *Service) GetRequest(ctx context.Context, principal authz.Principal, requestID id.RequestID) (*models.VerificationRequest, error) {
	if err := authz.RequireAuthenticated(principal); err != nil {
		return nil, err
	}
	req, err := s.store.FindByID(ctx, requestID)
	if err != nil {
		return nil, translate(err, "failed to load verification request")
	}
	if !s.policy.CanViewRequest(principal, req.ApplicantID) {
		return nil, dErrors.New(dErrors.CodeNotFound, "verification request not found")
	}
	if authz.IsOwner(principal, req.ApplicantID) {
		return req, nil
	}
	return req.WithoutDecisionReason(), nil
}

// Decide approves or rejects a pending request exactly once. Missing
// requests, decided requests and callers without the reviewer role all get
// CodeNotFoundOrNotPending.
func (s *Service) Decide(ctx context.Context, principal authz.Principal, requestID id.RequestID, decision models.Decision, reason string) (out *models.VerificationRequest, err error) {
	ctx, span, start := s.startSpan(ctx, "decide", principal)
	defer func() { s.endSpan(span, "decide", start, err) }()

	if err := authz.RequireAuthenticated(principal); err != nil {
		return nil, err
	}
	if !s.policy.IsReviewer(principal) {
		return nil, notAvailableForReview()
	}

	rec, err := models.NewDecisionRecord(requestID, decision, principal.ID, reason, s.now(ctx))
	if err != nil {
		return nil, translate(err, "invalid decision")
	}

	var updated *models.VerificationRequest
	err = s.runUnit(ctx, func(txCtx context.Context) error {
		var err error
		updated, err = s.store.ApplyDecision(txCtx, rec)
		if err != nil {
			return err
		}
		return s.record(txCtx, audit.Record{
			RequestID: updated.ID,
			ActorID:   principal.ID,
			Action:    decisionAction(rec.Decision),
			Metadata: audit.Metadata{
				Country:          updated.Country.String(),
				VerificationType: updated.VerificationType.String(),
				DocumentType:     updated.DocumentType.String(),
				Reason:           rec.Reason,
			},
		})
	})
	if err != nil {
		return nil, s.decideFailure(ctx, principal, requestID, err)
	}

	s.metrics.IncDecision(updated.Status.String())
	s.logger.InfoContext(ctx, "verification request decided",
		"request_id", requestcontext.RequestID(ctx),
		"verification_request_id", updated.ID,
		"reviewer_id", principal.ID,
		"status", updated.Status,
	)
	return updated.WithoutDecisionReason(), nil
}

func (s *Service) decideFailure(ctx context.Context, principal authz.Principal, requestID id.RequestID, err error) error {
	var auditErr errAuditAppend
	switch {
	case errors.As(err, &auditErr):
		if s.tx == nil {
			// The decision is already stored; nothing can take it back.
			s.metrics.IncAuditInconsistency()
			s.logger.ErrorContext(ctx, "decision_audit_inconsistency",
				"request_id", requestcontext.RequestID(ctx),
				"verification_request_id", requestID,
				"reviewer_id", principal.ID,
				"error", err,
			)
		}
		return translate(err, "failed to record decision")
	case errors.Is(err, sentinel.ErrNotFound):
		s.metrics.IncGuardMiss()
		return notAvailableForReview()
	default:
		s.logger.ErrorContext(ctx, "verification decide failed",
			"request_id", requestcontext.RequestID(ctx),
			"verification_request_id", requestID,
			"error", err,
		)
		return translate(err, "failed to record decision")
	}
}

func notAvailableForReview() error {
	return dErrors.New(dErrors.CodeNotFoundOrNotPending, "request not found or not pending")
}

func decisionAction(d models.Decision) audit.Action {
	if d == models.DecisionApprove {
		return audit.ActionApproved
	}
	return audit.ActionRejected
}
