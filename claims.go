package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// AuthClaims is the verified claim set of a session token
type AuthClaims interface {
	Subject() string
	ActorID() string
	Role() ActorRole
	Expires() time.Time
	IssuedAt() time.Time
}

// JWTClaims is the concrete implementation of AuthClaims
type JWTClaims struct {
	jwt.RegisteredClaims
	UID      string `json:"uid,omitempty"`
	UserRole string `json:"role,omitempty"`
}

// Verify interface compliance
var _ AuthClaims = (*JWTClaims)(nil)

// Subject returns the subject claim
func (c *JWTClaims) Subject() string {
	return c.RegisteredClaims.Subject
}

// ActorID returns the actor id, falling back to the subject
func (c *JWTClaims) ActorID() string {
	if c.UID != "" {
		return c.UID
	}
	return c.Subject()
}

// Role returns the role the token was issued for
func (c *JWTClaims) Role() ActorRole {
	return ActorRole(c.UserRole)
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
	if claims == nil || claims.ID != "" {
		return
	}
	claims.ID = uuid.NewString()
}

// roleAudience namespaces tokens per role so a token issued for one role
// never validates as another.
func roleAudience(issuer string, role ActorRole) string {
	if issuer == "" {
		return string(role)
	}
	return issuer + ":" + string(role)
}
