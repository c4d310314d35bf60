package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// DefaultTokenTTL is one week
const DefaultTokenTTL = 7 * 24 * time.Hour

// TokenConfig is the immutable signing configuration for a TokenService.
type TokenConfig struct {
	SigningKey    []byte
	SigningMethod string
	TTL           time.Duration
	Issuer        string
	// Now is the clock used for issued-at, expiry and validation
	Now func() time.Time
}

var signingMethods = map[string]*jwt.SigningMethodHMAC{
	jwt.SigningMethodHS256.Alg(): jwt.SigningMethodHS256,
	jwt.SigningMethodHS384.Alg(): jwt.SigningMethodHS384,
	jwt.SigningMethodHS512.Alg(): jwt.SigningMethodHS512,
}

// Validate checks the configuration and fills defaults
func (c TokenConfig) Validate() (TokenConfig, error) {
	if len(c.SigningKey) == 0 {
		return c, fmt.Errorf("token signing key must not be empty")
	}
	if c.SigningMethod == "" {
		c.SigningMethod = jwt.SigningMethodHS256.Alg()
	}
	if _, ok := signingMethods[c.SigningMethod]; !ok {
		return c, fmt.Errorf("unsupported token signing method %q", c.SigningMethod)
	}
	if c.TTL < 0 {
		return c, fmt.Errorf("token TTL must not be negative")
	}
	if c.TTL == 0 {
		c.TTL = DefaultTokenTTL
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	key := make([]byte, len(c.SigningKey))
	copy(key, c.SigningKey)
	c.SigningKey = key
	return c, nil
}

// TokenService issues and verifies signed bearer tokens
type TokenService struct {
	cfg    TokenConfig
	method *jwt.SigningMethodHMAC
	logger Logger
}

var _ TokenValidator = (*TokenService)(nil)

// NewTokenService creates a new TokenService instance
func NewTokenService(cfg TokenConfig, logger Logger) (*TokenService, error) {
	cfg, err := cfg.Validate()
	if err != nil {
		return nil, err
	}
	return &TokenService{
		cfg:    cfg,
		method: signingMethods[cfg.SigningMethod],
		logger: normalizeLogger(logger),
	}, nil
}

// TTL returns the default token lifetime
func (ts *TokenService) TTL() time.Duration {
	return ts.cfg.TTL
}

// Issue signs a token for subject that expires after expiresIn.
// A non positive expiresIn uses the configured TTL.
func (ts *TokenService) Issue(subject uuid.UUID, expiresIn time.Duration) (string, error) {
	return ts.issue(subject.String(), "", expiresIn)
}

// Generate signs a token for identity with the default TTL
func (ts *TokenService) Generate(identity Identity) (string, error) {
	if identity == nil || identity.ID() == "" {
		return "", Derivef(ErrInternal, "identity must not be empty")
	}
	return ts.issue(identity.ID(), identity.Role(), 0)
}

func (ts *TokenService) issue(subject, role string, expiresIn time.Duration) (string, error) {
	if expiresIn <= 0 {
		expiresIn = ts.cfg.TTL
	}
	now := ts.cfg.Now()
	claims := &JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    ts.cfg.Issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(expiresIn)),
		},
		UserRole: role,
	}
	ensureTokenID(&claims.RegisteredClaims)

	return ts.SignClaims(claims)
}

// SignClaims signs arbitrary claims with the configured key
func (ts *TokenService) SignClaims(claims *JWTClaims) (string, error) {
	if claims == nil {
		return "", Derivef(ErrInternal, "claims must not be nil")
	}

	token := jwt.NewWithClaims(ts.method, claims)
	signed, err := token.SignedString(ts.cfg.SigningKey)
	if err != nil {
		return "", Internal(err, "failed to sign JWT")
	}
	return signed, nil
}

// Validate parses and validates a token string. Expired tokens fail with
// ErrTokenExpired, anything else that does not parse or verify with
// ErrTokenMalformed.
func (ts *TokenService) Validate(tokenString string) (*JWTClaims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{ts.method.Alg()}),
		jwt.WithTimeFunc(ts.cfg.Now),
		jwt.WithExpirationRequired(),
	}
	if ts.cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(ts.cfg.Issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			ts.logger.Warn("token validate encountered unexpected signing method", "alg", t.Header["alg"])
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return ts.cfg.SigningKey, nil
	}, opts...)

	if err != nil {
		// signature is checked before claims, so a foreign key never
		// reaches the expiry check
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, WithCause(ErrTokenMalformed, err)
	}

	claims, ok := token.Claims.(*JWTClaims)
	if !ok || !token.Valid {
		return nil, ErrTokenMalformed
	}
	if _, err := claims.SubjectID(); err != nil {
		return nil, WithCause(ErrTokenMalformed, err)
	}
	return claims, nil
}
