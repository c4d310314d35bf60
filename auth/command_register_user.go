package auth

import (
	"context"
	"regexp"
	"sort"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
)

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)

// MinPasswordLength is the shortest accepted password
const MinPasswordLength = 8

// MaxPasswordLength bounds passwords in characters. Secrets longer than
// the bcrypt byte limit are pre-hashed, see BcryptHasher.
const MaxPasswordLength = 128

// RegisterUserMessage is the open registration payload. It carries no
// role: new accounts always start as RoleUser.
type RegisterUserMessage struct {
	Username string `json:"username" form:"username"`
	Email    string `json:"email" form:"email"`
	FullName string `json:"full_name" form:"full_name"`
	Password string `json:"password" form:"password"`
}

func (e RegisterUserMessage) Type() string { return "user.register" }

func (e RegisterUserMessage) Validate() error {
	return validation.ValidateStruct(&e,
		validation.Field(&e.Username,
			validation.Required,
			validation.Length(3, 64),
			validation.Match(usernamePattern),
		),
		validation.Field(&e.Email, validation.Required, validation.Length(3, 254), is.Email),
		validation.Field(&e.FullName, validation.Length(0, 200)),
		validation.Field(&e.Password, validation.Required, validation.Length(MinPasswordLength, MaxPasswordLength)),
	)
}

// RegisterUserHandler creates accounts
type RegisterUserHandler struct {
	users        Users
	hasher       PasswordAuthenticator
	logger       Logger
	activitySink ActivitySink
}

func NewRegisterUserHandler(users Users, hasher PasswordAuthenticator) *RegisterUserHandler {
	return &RegisterUserHandler{
		users:        users,
		hasher:       hasher,
		logger:       defLogger{},
		activitySink: noopActivitySink{},
	}
}

func (h *RegisterUserHandler) WithLogger(l Logger) *RegisterUserHandler {
	h.logger = normalizeLogger(l)
	return h
}

func (h *RegisterUserHandler) WithActivitySink(s ActivitySink) *RegisterUserHandler {
	h.activitySink = normalizeActivitySink(s)
	return h
}

// Execute registers a RoleUser account
func (h *RegisterUserHandler) Execute(ctx context.Context, event RegisterUserMessage) (*User, error) {
	return h.create(ctx, event, RoleUser, ActorFromContext(ctx))
}

// CreateWithRole registers an account with an explicit role. It is only
// reachable from trusted callers such as the bootstrap CLI.
func (h *RegisterUserHandler) CreateWithRole(ctx context.Context, event RegisterUserMessage, role UserRole) (*User, error) {
	if !role.IsValid() {
		return nil, Derivef(ErrValidation, "unknown role %q", role)
	}
	return h.create(ctx, event, role, ActorRef{Type: "system"})
}

func (h *RegisterUserHandler) create(ctx context.Context, event RegisterUserMessage, role UserRole, actor ActorRef) (*User, error) {
	select {
	case <-ctx.Done():
		return nil, Internal(ctx.Err(), "context cancelled during user registration")
	default:
	}

	event.Username = strings.TrimSpace(event.Username)
	event.Email = NormalizeEmail(event.Email)
	event.FullName = strings.TrimSpace(event.FullName)

	if err := event.Validate(); err != nil {
		return nil, ValidationError(err)
	}

	user := &User{
		Username: event.Username,
		Email:    event.Email,
		FullName: event.FullName,
		Role:     role,
		IsActive: true,
	}

	err := h.users.RunInTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		if err := h.users.EnsureUnique(ctx, tx, user.Username, user.Email, user.ID); err != nil {
			return err
		}

		hash, err := h.hasher.HashPassword(event.Password)
		if err != nil {
			return err
		}
		user.PasswordHash = hash

		_, err = h.users.CreateTx(ctx, tx, user)
		return err
	})
	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return nil, err
		}
		return nil, Internal(err, "user registration transaction failed")
	}

	h.logger.Info("user registered", "user_id", user.ID.String(), "role", string(role))
	recordActivity(ctx, h.activitySink, h.logger, ActivityEvent{
		EventType: ActivityEventUserRegistered,
		Actor:     actor,
		UserID:    user.ID.String(),
		Metadata:  map[string]any{"role": string(role)},
	})

	return user, nil
}

// ValidationError converts ozzo validation errors into ErrValidation with
// per field messages in the metadata.
func ValidationError(err error) error {
	if err == nil {
		return nil
	}
	var fields validation.Errors
	if ve, ok := err.(validation.Errors); ok {
		fields = ve
	}
	if len(fields) == 0 {
		return Derivef(ErrValidation, "%s", err.Error())
	}
	meta := make(map[string]any, len(fields))
	names := make([]string, 0, len(fields))
	for k, v := range fields {
		meta[k] = v.Error()
		names = append(names, k)
	}
	sort.Strings(names)

	out := Derivef(ErrValidation, "%s", err.Error()).WithMetadata(meta)
	for _, name := range names {
		out.ValidationErrors = append(out.ValidationErrors, goerrors.FieldError{
			Field:   name,
			Message: fields[name].Error(),
		})
	}
	return out
}
