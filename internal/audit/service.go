package audit

import (
	"context"

	"docverify/internal/authz"
	dErrors "docverify/pkg/domain-errors"
)

const maxListLimit = 1000

// Service exposes the ledger to administrators.
type Service struct {
	store Store
}

func NewService(store Store) *Service {
	return &Service{store: store}
}

// List returns entries newest first. Only administrators may read the ledger.
func (s *Service) List(ctx context.Context, principal authz.Principal, filter ListFilter) ([]Entry, error) {
	if err := authz.RequireAdministrator(principal); err != nil {
		return nil, err
	}
	if filter.Limit < 0 || filter.Offset < 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "limit and offset must not be negative")
	}
	if filter.Limit > maxListLimit {
		filter.Limit = maxListLimit
	}
	if filter.Action != "" && !filter.Action.IsValid() {
		return nil, dErrors.New(dErrors.CodeValidation, "invalid audit action")
	}

	entries, err := s.store.List(ctx, filter)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list audit entries")
	}
	return entries, nil
}
