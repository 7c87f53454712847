package authz

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "docverify/pkg/domain"
	dErrors "docverify/pkg/domain-errors"
	"docverify/pkg/requestcontext"
)

func principal(role Role) Principal {
	return Principal{ID: id.UserID(uuid.New()), Role: role}
}

func TestParseRole(t *testing.T) {
	cases := map[string]Role{
		"applicant":     RoleApplicant,
		"User":          RoleApplicant,
		"Inspector":     RoleReviewer,
		" reviewer ":    RoleReviewer,
		"ADMIN":         RoleAdministrator,
		"administrator": RoleAdministrator,
	}
	for in, want := range cases {
		got, err := ParseRole(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseRole("superuser")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
}

func TestRoleGuards(t *testing.T) {
	applicant := principal(RoleApplicant)
	reviewer := principal(RoleReviewer)
	admin := principal(RoleAdministrator)

	t.Run("only applicants submit", func(t *testing.T) {
		assert.NoError(t, RequireSubmitter(applicant))
		assert.True(t, dErrors.HasCode(RequireSubmitter(reviewer), dErrors.CodeForbidden))
		assert.True(t, dErrors.HasCode(RequireSubmitter(admin), dErrors.CodeForbidden))
	})

	t.Run("administrators review when the policy allows", func(t *testing.T) {
		assert.NoError(t, DefaultPolicy().RequireReviewer(reviewer))
		assert.NoError(t, DefaultPolicy().RequireReviewer(admin))
		assert.True(t, dErrors.HasCode(Policy{}.RequireReviewer(admin), dErrors.CodeForbidden))
		assert.True(t, dErrors.HasCode(DefaultPolicy().RequireReviewer(applicant), dErrors.CodeForbidden))
	})

	t.Run("audit access is administrator only", func(t *testing.T) {
		assert.NoError(t, RequireAdministrator(admin))
		assert.True(t, dErrors.HasCode(RequireAdministrator(reviewer), dErrors.CodeForbidden))
	})

	t.Run("zero principal is unauthenticated", func(t *testing.T) {
		assert.True(t, dErrors.HasCode(RequireSubmitter(Principal{}), dErrors.CodeUnauthorized))
		assert.True(t, dErrors.HasCode(DefaultPolicy().RequireReviewer(Principal{}), dErrors.CodeUnauthorized))
	})
}

func TestCanViewRequest(t *testing.T) {
	owner := principal(RoleApplicant)
	other := principal(RoleApplicant)
	pol := Policy{AdminsMayReview: false}

	assert.True(t, pol.CanViewRequest(owner, owner.ID))
	assert.False(t, pol.CanViewRequest(other, owner.ID))
	assert.True(t, pol.CanViewRequest(principal(RoleReviewer), owner.ID))
	assert.True(t, pol.CanViewRequest(principal(RoleAdministrator), owner.ID))

	assert.False(t, pol.CanViewAll(owner))
	assert.True(t, pol.CanViewAll(principal(RoleReviewer)))
	assert.True(t, pol.CanViewAll(principal(RoleAdministrator)))
	assert.False(t, pol.CanViewAll(Principal{}))
}

func TestPrincipalFromContext(t *testing.T) {
	userID := id.UserID(uuid.New())
	ctx := requestcontext.WithCaller(context.Background(), userID, "Inspector")

	p, err := PrincipalFromContext(ctx)
	require.NoError(t, err)
	assert.Equal(t, userID, p.ID)
	assert.Equal(t, RoleReviewer, p.Role)

	_, err = PrincipalFromContext(context.Background())
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
}
