package auth

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// User is the account model. It is the credential store record read by
// the auth core.
type User struct {
	bun.BaseModel `bun:"table:users,alias:usr"`
	ID            uuid.UUID  `bun:"id,pk,type:uuid" json:"id"`
	Username      string     `bun:"username,notnull,unique" json:"username"`
	Email         string     `bun:"email,notnull,unique" json:"email"`
	FullName      string     `bun:"full_name" json:"full_name,omitempty"`
	Phone         string     `bun:"phone_number" json:"phone_number,omitempty"`
	PasswordHash  string     `bun:"password_hash,notnull" json:"-"`
	Role          UserRole   `bun:"user_role,notnull" json:"user_role"`
	IsActive      bool       `bun:"is_active,notnull" json:"is_active"`
	LoggedInAt    *time.Time `bun:"loggedin_at,nullzero" json:"loggedin_at,omitempty"`
	CreatedAt     time.Time  `bun:"created_at,notnull" json:"created_at"`
	UpdatedAt     time.Time  `bun:"updated_at,notnull" json:"updated_at"`
}

// HasRole checks the account role against an allowed set
func (u *User) HasRole(allowed RoleSet) bool {
	if u == nil {
		return false
	}
	return allowed.Contains(u.Role)
}

// Owns reports whether the account is the owner referenced by ownerID
func (u *User) Owns(ownerID uuid.UUID) bool {
	if u == nil || ownerID == uuid.Nil {
		return false
	}
	return u.ID == ownerID
}

// UserStatus is the lifecycle state derived from the active flag
type UserStatus string

const (
	UserStatusActive   UserStatus = "active"
	UserStatusInactive UserStatus = "inactive"
)

// Status maps the active flag to a lifecycle status
func (u *User) Status() UserStatus {
	if u != nil && u.IsActive {
		return UserStatusActive
	}
	return UserStatusInactive
}
