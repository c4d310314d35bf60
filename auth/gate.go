package auth

import (
	"github.com/google/uuid"
)

// Policies below run after Authenticate has resolved an active account.
// A nil account means the caller is anonymous.

// RequireAuthenticated fails with ErrUnauthenticated for anonymous callers
func RequireAuthenticated(user *User) error {
	if user == nil {
		return ErrUnauthenticated
	}
	return nil
}

// RequireRole allows the account when its role is in allowed
func RequireRole(user *User, allowed RoleSet) error {
	if err := RequireAuthenticated(user); err != nil {
		return err
	}
	if !user.HasRole(allowed) {
		return Derive(ErrForbidden).WithMetadata(map[string]any{
			"role":    string(user.Role),
			"allowed": allowed.String(),
		})
	}
	return nil
}

// RequireOwnerOrRole allows the resource owner or any role in allowed
func RequireOwnerOrRole(user *User, ownerID uuid.UUID, allowed RoleSet) error {
	if err := RequireAuthenticated(user); err != nil {
		return err
	}
	if user.Owns(ownerID) || user.HasRole(allowed) {
		return nil
	}
	return Derive(ErrForbidden).WithMetadata(map[string]any{
		"role":    string(user.Role),
		"allowed": allowed.String(),
	})
}

// CanSee reports whether user may read a resource with the given owner
// and publication state
func CanSee(user *User, ownerID uuid.UUID, published bool, allowed RoleSet) bool {
	if published {
		return true
	}
	return RequireOwnerOrRole(user, ownerID, allowed) == nil
}

// RequireVisible applies owner-or-role to reads of unpublished resources.
// Any failure, anonymous callers included, is reported as ErrNotFound so
// the existence of the resource is not confirmed.
func RequireVisible(user *User, ownerID uuid.UUID, published bool, allowed RoleSet, resource string) error {
	if CanSee(user, ownerID, published, allowed) {
		return nil
	}
	return NotFound(resource)
}
