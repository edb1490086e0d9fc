package auth

import (
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/goliatone/go-errors"
)

const (
	// DefaultSessionTTL is the validity window of buyer and supplier tokens
	DefaultSessionTTL = 7 * 24 * time.Hour
	// DefaultAdminSessionTTL is the validity window of admin tokens
	DefaultAdminSessionTTL = 12 * time.Hour
)

// TokenService issues and verifies role scoped session tokens
type TokenService interface {
	Issue(actorID string, role ActorRole) (string, time.Time, error)
	Validate(tokenString string, role ActorRole) (AuthClaims, error)
	Verify(tokenString string, role ActorRole) (AuthClaims, bool)
}

// TokenTTLs holds the validity window per role. Zero values use defaults.
type TokenTTLs struct {
	Buyer    time.Duration
	Supplier time.Duration
	Admin    time.Duration
}

func (t TokenTTLs) forRole(role ActorRole) time.Duration {
	var ttl time.Duration
	switch role {
	case RoleAdmin:
		ttl = t.Admin
		if ttl <= 0 {
			ttl = DefaultAdminSessionTTL
		}
	case RoleSupplier:
		ttl = t.Supplier
	case RoleBuyer:
		ttl = t.Buyer
	}
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return ttl
}

// TokenServiceImpl implements the TokenService interface with HS256 JWTs
type TokenServiceImpl struct {
	signingKey []byte
	issuer     string
	ttls       TokenTTLs
	logger     Logger
	now        Clock
}

// TokenServiceOption customizes the token service
type TokenServiceOption func(*TokenServiceImpl)

// WithTokenClock injects a custom clock (useful for tests).
func WithTokenClock(clock Clock) TokenServiceOption {
	return func(ts *TokenServiceImpl) {
		if clock != nil {
			ts.now = clock
		}
	}
}

// WithTokenLogger overrides the logger
func WithTokenLogger(logger Logger) TokenServiceOption {
	return func(ts *TokenServiceImpl) {
		ts.logger = normalizeLogger(logger)
	}
}

// NewTokenService creates a new TokenService instance. The signing key is
// mandatory, there is no fallback secret.
func NewTokenService(signingKey []byte, issuer string, ttls TokenTTLs, opts ...TokenServiceOption) (*TokenServiceImpl, error) {
	if len(strings.TrimSpace(string(signingKey))) == 0 {
		return nil, ErrMissingSigningKey
	}

	ts := &TokenServiceImpl{
		signingKey: signingKey,
		issuer:     issuer,
		ttls:       ttls,
		logger:     defLogger{},
		now:        time.Now,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(ts)
		}
	}

	return ts, nil
}

// Issue creates a signed token for the actor scoped to role
func (ts *TokenServiceImpl) Issue(actorID string, role ActorRole) (string, time.Time, error) {
	if !role.IsValid() {
		return "", time.Time{}, errors.New("unknown actor role", errors.CategoryBadInput).
			WithMetadata(map[string]any{"role": role})
	}
	if actorID == "" {
		return "", time.Time{}, errors.New("actor id is required", errors.CategoryBadInput)
	}

	now := ts.now.now()
	expiresAt := now.Add(ts.ttls.forRole(role))

	claims := &JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    ts.issuer,
			Subject:   actorID,
			Audience:  jwt.ClaimStrings{roleAudience(ts.issuer, role)},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		UID:      actorID,
		UserRole: string(role),
	}

	ensureTokenID(&claims.RegisteredClaims)

	token, err := ts.SignClaims(claims)
	if err != nil {
		return "", time.Time{}, err
	}
	return token, expiresAt, nil
}

// SignClaims signs arbitrary JWT claims using the configured signing key.
func (ts *TokenServiceImpl) SignClaims(claims *JWTClaims) (string, error) {
	if claims == nil {
		return "", errors.New("claims must not be nil", errors.CategoryInternal)
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signedString, err := token.SignedString(ts.signingKey)
	if err != nil {
		return "", errors.Wrap(err, errors.CategoryInternal, "failed to sign JWT")
	}

	return signedString, nil
}

// Validate parses and validates a token string for the expected role
func (ts *TokenServiceImpl) Validate(tokenString string, role ActorRole) (AuthClaims, error) {
	if strings.TrimSpace(tokenString) == "" {
		return nil, ErrTokenMalformed
	}

	parserOptions := []jwt.ParserOption{
		jwt.WithAudience(roleAudience(ts.issuer, role)),
		jwt.WithTimeFunc(ts.now.now),
		jwt.WithExpirationRequired(),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	}
	if ts.issuer != "" {
		parserOptions = append(parserOptions, jwt.WithIssuer(ts.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return ts.signingKey, nil
	}, parserOptions...)

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, errors.Wrap(err, ErrTokenMalformed.Category, ErrTokenMalformed.Message).
			WithTextCode(ErrTokenMalformed.TextCode).
			WithCode(ErrTokenMalformed.Code)
	}

	claims, ok := token.Claims.(*JWTClaims)
	if !ok || !token.Valid {
		return nil, ErrTokenMalformed
	}

	if claims.Role() != role || claims.ActorID() == "" {
		return nil, ErrTokenMalformed.Clone().WithMetadata(map[string]any{
			"expected_role": role,
			"token_role":    claims.UserRole,
		})
	}

	return claims, nil
}

// Verify is Validate without the error: any failure reports ok=false so
// callers can move on to the next credential.
func (ts *TokenServiceImpl) Verify(tokenString string, role ActorRole) (AuthClaims, bool) {
	claims, err := ts.Validate(tokenString, role)
	if err != nil {
		ts.logger.Debug("token verification failed", "role", role, "error", err)
		return nil, false
	}
	return claims, true
}
