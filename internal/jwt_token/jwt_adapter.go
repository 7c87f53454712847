package jwttoken

import (
	"docverify/internal/authz"
	dErrors "docverify/pkg/domain-errors"
	authmw "docverify/pkg/platform/middleware/auth"
)

// JWTServiceAdapter exposes JWTService to the auth middleware, normalising the
// role claim on the way through.
type JWTServiceAdapter struct {
	service *JWTService
}

func NewJWTServiceAdapter(service *JWTService) *JWTServiceAdapter {
	return &JWTServiceAdapter{service: service}
}

func (a *JWTServiceAdapter) ValidateToken(tokenString string) (*authmw.JWTClaims, error) {
	claims, err := a.service.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}
	role, err := authz.ParseRole(claims.Role)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnauthorized, "invalid role claim")
	}
	return &authmw.JWTClaims{UserID: claims.UserID, Role: role.String()}, nil
}
