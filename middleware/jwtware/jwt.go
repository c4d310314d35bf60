package jwtware

import (
	"context"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/kalinanews/newsroom/auth"
)

var (
	defaultTokenLookup = "header:" + fiber.HeaderAuthorization
	// ErrJWTMissing is returned by extractors when no token was sent
	ErrJWTMissing = errors.New("missing JWT")
	// ErrJWTMalformed is returned when a credential was sent in the wrong shape
	ErrJWTMalformed = errors.New("malformed JWT")
)

// Authenticator resolves a raw bearer token into an active account
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*auth.User, error)
}

// ClaimsAuthenticator is an Authenticator that also hands back the
// validated claims. The middleware stores them with auth.WithClaimsContext.
type ClaimsAuthenticator interface {
	AuthenticateWithClaims(ctx context.Context, token string) (*auth.User, *auth.JWTClaims, error)
}

// ValidationListener is invoked after the account is resolved but before
// role checks.
type ValidationListener func(c *fiber.Ctx, user *auth.User) error

type Config struct {
	Filter         func(*fiber.Ctx) bool
	SuccessHandler fiber.Handler
	// ErrorHandler defaults to returning the error so the app error
	// handler renders it.
	ErrorHandler  fiber.ErrorHandler
	Authenticator Authenticator
	ContextKey    string
	TokenLookup   string
	AuthScheme    string

	// Optional lets requests without any credential through as anonymous.
	// A credential that is present but invalid is still rejected.
	Optional bool

	// AllowedRoles restricts the route to a role set. The zero value
	// applies no role check.
	AllowedRoles auth.RoleSet

	ValidationListeners []ValidationListener
}

func New(config ...Config) fiber.Handler {
	cfg := GetDefaultConfig(config...)
	extractors := cfg.getExtractors()

	return func(c *fiber.Ctx) error {
		if cfg.Filter != nil && cfg.Filter(c) {
			return c.Next()
		}

		raw, err := ExtractRawTokenFromContext(c, extractors)
		if err != nil {
			if cfg.Optional && errors.Is(err, ErrJWTMissing) {
				return cfg.SuccessHandler(c)
			}
			return cfg.ErrorHandler(c, auth.WithCause(auth.Derivef(auth.ErrUnauthenticated, "%s", err.Error()), err))
		}

		user, claims, err := authenticate(c.UserContext(), cfg.Authenticator, raw)
		if err != nil {
			return cfg.ErrorHandler(c, err)
		}

		for _, listener := range cfg.ValidationListeners {
			if listener == nil {
				continue
			}
			if err := listener(c, user); err != nil {
				return cfg.ErrorHandler(c, err)
			}
		}

		if !cfg.AllowedRoles.IsEmpty() {
			if err := auth.RequireRole(user, cfg.AllowedRoles); err != nil {
				return cfg.ErrorHandler(c, err)
			}
		}

		c.Locals(cfg.ContextKey, user)
		ctx := auth.WithContext(c.UserContext(), user)
		if claims != nil {
			ctx = auth.WithClaimsContext(ctx, claims)
		}
		c.SetUserContext(ctx)

		return cfg.SuccessHandler(c)
	}
}

func authenticate(ctx context.Context, a Authenticator, raw string) (*auth.User, *auth.JWTClaims, error) {
	if ca, ok := a.(ClaimsAuthenticator); ok {
		return ca.AuthenticateWithClaims(ctx, raw)
	}
	user, err := a.Authenticate(ctx, raw)
	return user, nil, err
}

// UserFromCtx returns the account stored by the middleware, or nil for
// anonymous requests.
func UserFromCtx(c *fiber.Ctx, key ...string) *auth.User {
	k := "user"
	if len(key) > 0 && key[0] != "" {
		k = key[0]
	}
	if u, ok := c.Locals(k).(*auth.User); ok {
		return u
	}
	if u, ok := auth.FromContext(c.UserContext()); ok {
		return u
	}
	return nil
}

func ExtractRawTokenFromContext(c *fiber.Ctx, extractors []JWTExtractor) (string, error) {
	err := ErrJWTMissing
	for _, extractor := range extractors {
		raw, e := extractor(c)
		if raw != "" && e == nil {
			return raw, nil
		}
		// a malformed credential wins over a missing one
		if errors.Is(e, ErrJWTMalformed) {
			err = e
		}
	}
	return "", err
}

func GetDefaultConfig(config ...Config) (cfg Config) {
	if len(config) > 0 {
		cfg = config[0]
	}

	if cfg.SuccessHandler == nil {
		cfg.SuccessHandler = func(c *fiber.Ctx) error {
			return c.Next()
		}
	}

	if cfg.ErrorHandler == nil {
		cfg.ErrorHandler = func(_ *fiber.Ctx, err error) error {
			return err
		}
	}

	if cfg.Authenticator == nil {
		panic("AUTH: JWT middleware configuration: Authenticator is required.")
	}

	if cfg.ContextKey == "" {
		cfg.ContextKey = "user"
	}

	if cfg.TokenLookup == "" {
		cfg.TokenLookup = defaultTokenLookup
	}

	if cfg.AuthScheme == "" {
		cfg.AuthScheme = "Bearer"
	}

	return cfg
}

func (cfg *Config) getExtractors() []JWTExtractor {
	return GetExtractors(cfg.TokenLookup, cfg.AuthScheme)
}

func GetExtractors(tokenLookup string, authSchemes ...string) []JWTExtractor {
	extractors := make([]JWTExtractor, 0)

	authScheme := "Bearer"
	if len(authSchemes) > 0 {
		authScheme = strings.TrimSpace(authSchemes[0])
	}

	// header:Authorization,cookie:jwt,query:auth_token,param:token
	for _, rootPart := range strings.Split(tokenLookup, ",") {
		parts := strings.Split(strings.TrimSpace(rootPart), ":")
		if len(parts) != 2 {
			continue
		}
		for i, el := range parts {
			parts[i] = strings.TrimSpace(el)
		}

		switch parts[0] {
		case "header":
			extractors = append(extractors, jwtFromHeader(parts[1], authScheme))
		case "query":
			extractors = append(extractors, jwtFromQuery(parts[1]))
		case "param":
			extractors = append(extractors, jwtFromParam(parts[1]))
		case "cookie":
			extractors = append(extractors, jwtFromCookie(parts[1]))
		}
	}

	return extractors
}

type JWTExtractor func(c *fiber.Ctx) (string, error)

// jwtFromHeader extracts "<scheme> <token>" from a request header.
func jwtFromHeader(header string, authScheme string) JWTExtractor {
	return func(c *fiber.Ctx) (string, error) {
		a := strings.TrimSpace(c.Get(header))
		if a == "" {
			return "", ErrJWTMissing
		}
		l := len(authScheme)
		if len(a) > l+1 && strings.EqualFold(a[:l], authScheme) && a[l] == ' ' {
			if token := strings.TrimSpace(a[l:]); token != "" {
				return token, nil
			}
		}
		return "", ErrJWTMalformed
	}
}

// jwtFromQuery extracts the token from the query string.
func jwtFromQuery(param string) JWTExtractor {
	return func(c *fiber.Ctx) (string, error) {
		if token := c.Query(param); token != "" {
			return token, nil
		}
		return "", ErrJWTMissing
	}
}

// jwtFromParam extracts the token from a route param.
func jwtFromParam(param string) JWTExtractor {
	return func(c *fiber.Ctx) (string, error) {
		if token := c.Params(param); token != "" {
			return token, nil
		}
		return "", ErrJWTMissing
	}
}

// jwtFromCookie extracts the token from the named cookie.
func jwtFromCookie(name string) JWTExtractor {
	return func(c *fiber.Ctx) (string, error) {
		if token := c.Cookies(name); token != "" {
			return token, nil
		}
		return "", ErrJWTMissing
	}
}
