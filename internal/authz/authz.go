// Package authz decides which principal may perform which lifecycle operation.
//
// Principals arrive already authenticated; this package only looks at the role
// and, for owner-scoped reads, at the applicant identity.
package authz

import (
	"context"
	"strings"

	id "docverify/pkg/domain"
	dErrors "docverify/pkg/domain-errors"
	"docverify/pkg/requestcontext"
)

// Role is the coarse permission class of a principal.
type Role string

const (
	RoleApplicant     Role = "applicant"
	RoleReviewer      Role = "reviewer"
	RoleAdministrator Role = "administrator"
)

// roleAliases accepts the role names issued by the legacy identity provider.
var roleAliases = map[string]Role{
	"applicant":     RoleApplicant,
	"user":          RoleApplicant,
	"reviewer":      RoleReviewer,
	"inspector":     RoleReviewer,
	"administrator": RoleAdministrator,
	"admin":         RoleAdministrator,
}

// ParseRole normalises a role claim. Matching is case-insensitive.
func ParseRole(s string) (Role, error) {
	role, ok := roleAliases[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return "", dErrors.New(dErrors.CodeInvalidInput, "unknown role")
	}
	return role, nil
}

func (r Role) String() string { return string(r) }

// Principal is an authenticated caller.
type Principal struct {
	ID   id.UserID
	Role Role
}

// PrincipalFromContext rebuilds the principal stored by the auth middleware.
func PrincipalFromContext(ctx context.Context) (Principal, error) {
	userID := requestcontext.UserID(ctx)
	if userID.IsNil() {
		return Principal{}, dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	role, err := ParseRole(requestcontext.Role(ctx))
	if err != nil {
		return Principal{}, dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	return Principal{ID: userID, Role: role}, nil
}

// Policy carries the configurable parts of the authorization rules.
type Policy struct {
	// AdminsMayReview lets administrators list and decide pending requests.
	AdminsMayReview bool
}

// DefaultPolicy matches the role table in the product documentation.
func DefaultPolicy() Policy {
	return Policy{AdminsMayReview: true}
}

// RequireAuthenticated rejects the zero principal.
func RequireAuthenticated(p Principal) error {
	if p.ID.IsNil() || p.Role == "" {
		return dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	return nil
}

// RequireSubmitter allows only applicants to create verification requests.
func RequireSubmitter(p Principal) error {
	if err := RequireAuthenticated(p); err != nil {
		return err
	}
	if p.Role != RoleApplicant {
		return dErrors.New(dErrors.CodeForbidden, "only applicants may submit verification requests")
	}
	return nil
}

// IsReviewer reports whether p may act on the review queue under this policy.
func (pol Policy) IsReviewer(p Principal) bool {
	switch p.Role {
	case RoleReviewer:
		return true
	case RoleAdministrator:
		return pol.AdminsMayReview
	default:
		return false
	}
}

// RequireReviewer allows reviewers, and administrators when the policy allows it.
func (pol Policy) RequireReviewer(p Principal) error {
	if err := RequireAuthenticated(p); err != nil {
		return err
	}
	if !pol.IsReviewer(p) {
		return dErrors.New(dErrors.CodeForbidden, "reviewer role required")
	}
	return nil
}

// RequireAdministrator allows only administrators.
func RequireAdministrator(p Principal) error {
	if err := RequireAuthenticated(p); err != nil {
		return err
	}
	if p.Role != RoleAdministrator {
		return dErrors.New(dErrors.CodeForbidden, "administrator role required")
	}
	return nil
}

// IsOwner reports whether p is the applicant who created the request.
func IsOwner(p Principal, applicantID id.UserID) bool {
	return !p.ID.IsNil() && p.ID == applicantID
}

// CanViewRequest reports whether p may see a request owned by applicantID.
// Reviewers and administrators see every request; applicants see their own.
func (pol Policy) CanViewRequest(p Principal, applicantID id.UserID) bool {
	if IsOwner(p, applicantID) {
		return true
	}
	return pol.CanViewAll(p)
}

// CanViewAll reports whether p may see requests regardless of owner.
func (pol Policy) CanViewAll(p Principal) bool {
	return pol.IsReviewer(p) || p.Role == RoleAdministrator
}
