package auth

import (
	"tunedeck/internal/apperr"
	"tunedeck/pkg/models"
)

// Identity is the authenticated caller of an operation
type Identity struct {
	UserID string
	Role   models.Role
}

// IsAdmin reports whether the identity carries the admin role
func (id Identity) IsAdmin() bool {
	return id.Role == models.RoleAdmin
}

// RequireRole fails with apperr.ErrUnauthorized unless the identity holds role
func RequireRole(id Identity, role models.Role) error {
	if id.UserID == "" || id.Role != role {
		return apperr.New(apperr.ErrUnauthorized, "Not authorized")
	}
	return nil
}

// RequireOwnership fails with apperr.ErrUnauthorized unless the identity is ownerID
func RequireOwnership(id Identity, ownerID string) error {
	if id.UserID == "" || id.UserID != ownerID {
		return apperr.New(apperr.ErrUnauthorized, "Not authorized")
	}
	return nil
}
