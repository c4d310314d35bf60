package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// JWTClaims is the token payload. Only the subject is trusted by the
// gate; the role claim is informational and always re-read from the
// credential store.
type JWTClaims struct {
	jwt.RegisteredClaims
	UserRole string `json:"role,omitempty"`
}

// SubjectID parses the subject claim as an account id
func (c *JWTClaims) SubjectID() (uuid.UUID, error) {
	return uuid.Parse(c.RegisteredClaims.Subject)
}

func (c *JWTClaims) Role() string {
	return c.UserRole
}

// Expires returns the expiration time
func (c *JWTClaims) Expires() time.Time {
	if c.RegisteredClaims.ExpiresAt != nil {
		return c.RegisteredClaims.ExpiresAt.Time
	}
	return time.Time{}
}

// IssuedAt returns the issued at time
func (c *JWTClaims) IssuedAt() time.Time {
	if c.RegisteredClaims.IssuedAt != nil {
		return c.RegisteredClaims.IssuedAt.Time
	}
	return time.Time{}
}

func ensureTokenID(claims *jwt.RegisteredClaims) {
	if claims.ID == "" {
		claims.ID = uuid.NewString()
	}
}
