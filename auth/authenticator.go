package auth

import (
	"context"
	"strings"
)

// Auther implements login and gate steps 1 to 4 over an AccountStore.
type Auther struct {
	store        AccountStore
	hasher       PasswordAuthenticator
	tokens       *TokenService
	logger       Logger
	activitySink ActivitySink
}

var _ Authenticator = (*Auther)(nil)

// timingEqualizer is implemented by hashers that can spend a comparison
// when there is no stored hash to compare against
type timingEqualizer interface {
	burn(password string)
}

// NewAuthenticator returns a new Authenticator
func NewAuthenticator(store AccountStore, hasher PasswordAuthenticator, tokens *TokenService) *Auther {
	return &Auther{
		store:        store,
		hasher:       hasher,
		tokens:       tokens,
		logger:       defLogger{},
		activitySink: noopActivitySink{},
	}
}

func (s *Auther) WithLogger(logger Logger) *Auther {
	s.logger = normalizeLogger(logger)
	return s
}

// WithActivitySink configures an ActivitySink for emitting auth events.
func (s *Auther) WithActivitySink(sink ActivitySink) *Auther {
	s.activitySink = normalizeActivitySink(sink)
	return s
}

// TokenService returns the TokenService used to issue tokens
func (s *Auther) TokenService() *TokenService {
	return s.tokens
}

// Login resolves identifier against both username and email, verifies the
// password and issues a token. Unknown identifiers and wrong passwords
// both fail with ErrInvalidCredentials; a correct password on a
// deactivated account fails with ErrAccountInactive.
func (s *Auther) Login(ctx context.Context, identifier, password string) (string, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" || password == "" {
		s.loginFailed(ctx, identifier, "", "empty credentials")
		return "", ErrInvalidCredentials
	}

	user, err := s.store.GetByUsernameOrEmail(ctx, identifier)
	if err != nil {
		if !IsRecordNotFound(err) {
			s.logger.Error("login lookup failed", "error", err)
			return "", Internal(err, "login lookup failed")
		}
		if eq, ok := s.hasher.(timingEqualizer); ok {
			eq.burn(password)
		}
		s.loginFailed(ctx, identifier, "", "unknown identifier")
		return "", ErrInvalidCredentials
	}

	if err := s.hasher.ComparePasswordAndHash(password, user.PasswordHash); err != nil {
		s.loginFailed(ctx, identifier, user.ID.String(), "password mismatch")
		return "", ErrInvalidCredentials
	}

	if !user.IsActive {
		s.logger.Warn("login blocked for inactive account", "user_id", user.ID.String())
		s.loginFailed(ctx, identifier, user.ID.String(), "account inactive")
		return "", ErrAccountInactive
	}

	token, err := s.tokens.Generate(NewIdentityFromUser(user))
	if err != nil {
		s.logger.Error("login token generation failed", "error", err)
		return "", err
	}

	if err := s.store.TrackSuccessfulLogin(ctx, user); err != nil {
		s.logger.Warn("failed to track login", "user_id", user.ID.String(), "error", err)
	}

	recordActivity(ctx, s.activitySink, s.logger, ActivityEvent{
		EventType: ActivityEventLoginSuccess,
		Actor:     ActorRef{ID: user.ID.String(), Type: string(user.Role)},
		UserID:    user.ID.String(),
	})

	return token, nil
}

func (s *Auther) loginFailed(ctx context.Context, identifier, userID, reason string) {
	s.logger.Info("login failed", "code", TextCodeInvalidCreds, "reason", reason)
	recordActivity(ctx, s.activitySink, s.logger, ActivityEvent{
		EventType: ActivityEventLoginFailure,
		Actor:     ActorRef{Type: "unknown"},
		UserID:    userID,
		Metadata: map[string]any{
			"identifier": identifier,
			"reason":     reason,
		},
	})
}

// Authenticate runs the gate from token to active account: the token must
// be present and valid, the subject must exist and the account must be
// active. Every token and lookup failure is ErrUnauthenticated so callers
// cannot tell a forged token from a deleted account.
func (s *Auther) Authenticate(ctx context.Context, token string) (*User, error) {
	user, _, err := s.AuthenticateWithClaims(ctx, token)
	return user, err
}

// AuthenticateWithClaims is Authenticate that also returns the validated
// token claims.
func (s *Auther) AuthenticateWithClaims(ctx context.Context, token string) (*User, *JWTClaims, error) {
	if strings.TrimSpace(token) == "" {
		return nil, nil, Derivef(ErrUnauthenticated, "missing bearer token")
	}

	claims, err := s.tokens.Validate(token)
	if err != nil {
		s.logger.Debug("token rejected", "error", err)
		return nil, nil, WithCause(ErrUnauthenticated, err)
	}
	// Validate rejects subjects that are not account ids
	subject, _ := claims.SubjectID()

	user, err := s.store.GetByID(ctx, subject.String())
	if err != nil {
		if IsRecordNotFound(err) {
			return nil, nil, ErrUnauthenticated
		}
		s.logger.Error("authenticate lookup failed", "error", err)
		return nil, nil, Internal(err, "account lookup failed")
	}

	if !user.IsActive {
		return nil, nil, ErrAccountInactive
	}

	return user, claims, nil
}

// AuthenticateOptional is Authenticate for routes that allow anonymous
// callers: an empty token yields a nil account and no error.
func (s *Auther) AuthenticateOptional(ctx context.Context, token string) (*User, error) {
	if strings.TrimSpace(token) == "" {
		return nil, nil
	}
	return s.Authenticate(ctx, token)
}
