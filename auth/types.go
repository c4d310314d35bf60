package auth

import (
	"context"

	"github.com/goliatone/go-repository-bun"
	"go.uber.org/zap"
)

// Logger is the logging contract used across the auth core.
// Arguments after msg are key/value pairs.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Identity holds the attributes of an authenticated account
type Identity interface {
	ID() string
	Username() string
	Email() string
	Role() string
}

// Authenticator resolves credentials and bearer tokens into accounts
type Authenticator interface {
	Login(ctx context.Context, identifier, password string) (string, error)
	Authenticate(ctx context.Context, token string) (*User, error)
}

// PasswordAuthenticator hashes and verifies passwords
type PasswordAuthenticator interface {
	HashPassword(password string) (string, error)
	ComparePasswordAndHash(password, hash string) error
}

// TokenValidator parses bearer tokens into their claims
type TokenValidator interface {
	Validate(token string) (*JWTClaims, error)
}

// AccountStore is the slice of the credential store the auth core reads.
type AccountStore interface {
	GetByID(ctx context.Context, id string, criteria ...repository.SelectCriteria) (*User, error)
	GetByUsernameOrEmail(ctx context.Context, identifier string) (*User, error)
	TrackSuccessfulLogin(ctx context.Context, user *User) error
}

// defLogger forwards to the process wide zap logger, which is a no-op
// until the application installs one with zap.ReplaceGlobals.
type defLogger struct {
	name string
}

// NamedLogger returns a Logger that writes to the global zap logger
// under the given name.
func NamedLogger(name string) Logger {
	return defLogger{name: name}
}

func (l defLogger) sugar() *zap.SugaredLogger {
	if l.name == "" {
		return zap.S().Named("auth")
	}
	return zap.S().Named(l.name)
}

func (l defLogger) Debug(msg string, args ...any) { l.sugar().Debugw(msg, args...) }
func (l defLogger) Info(msg string, args ...any)  { l.sugar().Infow(msg, args...) }
func (l defLogger) Warn(msg string, args ...any)  { l.sugar().Warnw(msg, args...) }
func (l defLogger) Error(msg string, args ...any) { l.sugar().Errorw(msg, args...) }

func normalizeLogger(l Logger) Logger {
	if l == nil {
		return defLogger{}
	}
	return l
}
