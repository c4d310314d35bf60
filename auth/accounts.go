package auth

import (
	"context"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/kalinanews/newsroom/persistence"
	"github.com/nyaruka/phonenumbers"
	"github.com/uptrace/bun"
)

// DefaultPhoneRegion is used to parse numbers given without a country code
const DefaultPhoneRegion = "US"

// UpdateProfileMessage is a partial self service profile update. Nil
// fields are left untouched.
type UpdateProfileMessage struct {
	Username *string `json:"username"`
	Email    *string `json:"email"`
	FullName *string `json:"full_name"`
	Phone    *string `json:"phone_number"`
	Password *string `json:"password"`
}

func (m UpdateProfileMessage) Validate() error {
	return validation.ValidateStruct(&m,
		validation.Field(&m.Username,
			validation.NilOrNotEmpty,
			validation.Length(3, 64),
			validation.Match(usernamePattern),
		),
		validation.Field(&m.Email, validation.NilOrNotEmpty, validation.Length(3, 254), is.Email),
		validation.Field(&m.FullName, validation.Length(0, 200)),
		validation.Field(&m.Phone, validation.Length(0, 32)),
		validation.Field(&m.Password, validation.NilOrNotEmpty, validation.Length(MinPasswordLength, MaxPasswordLength)),
	)
}

// AccountService implements account management on top of the
// credential store.
type AccountService struct {
	users        Users
	hasher       PasswordAuthenticator
	lifecycle    UserStateMachine
	phoneRegion  string
	logger       Logger
	activitySink ActivitySink
}

type AccountServiceOption func(*AccountService)

func WithAccountLogger(l Logger) AccountServiceOption {
	return func(s *AccountService) {
		s.logger = normalizeLogger(l)
	}
}

func WithAccountActivitySink(sink ActivitySink) AccountServiceOption {
	return func(s *AccountService) {
		s.activitySink = normalizeActivitySink(sink)
	}
}

// WithPhoneRegion sets the default region for phone parsing
func WithPhoneRegion(region string) AccountServiceOption {
	return func(s *AccountService) {
		if region != "" {
			s.phoneRegion = strings.ToUpper(region)
		}
	}
}

func NewAccountService(users Users, hasher PasswordAuthenticator, opts ...AccountServiceOption) *AccountService {
	s := &AccountService{
		users:        users,
		hasher:       hasher,
		phoneRegion:  DefaultPhoneRegion,
		logger:       defLogger{},
		activitySink: noopActivitySink{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	s.lifecycle = NewUserStateMachine(users,
		WithStateMachineActivitySink(s.activitySink),
		WithStateMachineLogger(s.logger),
	)
	return s
}

// Get returns an account by id. Admin only unless it is the caller.
func (s *AccountService) Get(ctx context.Context, caller *User, id uuid.UUID) (*User, error) {
	if caller != nil && caller.ID == id {
		return caller, nil
	}
	if err := RequireRole(caller, AdminRoles); err != nil {
		return nil, err
	}
	return s.users.GetByID(ctx, id.String())
}

// List returns a page of accounts. Admin only.
func (s *AccountService) List(ctx context.Context, caller *User, skip, limit int) ([]*User, int, error) {
	if err := RequireRole(caller, AdminRoles); err != nil {
		return nil, 0, err
	}
	return s.users.List(ctx,
		repository.OrderBy("created_at ASC", "id ASC"),
		repository.Paginate(limit, skip),
	)
}

// UpdateProfile applies a self service update to the caller's account
func (s *AccountService) UpdateProfile(ctx context.Context, caller *User, msg UpdateProfileMessage) (*User, error) {
	if err := RequireAuthenticated(caller); err != nil {
		return nil, err
	}
	if err := msg.Validate(); err != nil {
		return nil, ValidationError(err)
	}

	user := *caller
	columns := persistence.Columns{}

	if msg.Username != nil {
		user.Username = strings.TrimSpace(*msg.Username)
		columns["username"] = user.Username
	}
	if msg.Email != nil {
		user.Email = NormalizeEmail(*msg.Email)
		columns["email"] = user.Email
	}
	if msg.FullName != nil {
		user.FullName = strings.TrimSpace(*msg.FullName)
		columns["full_name"] = user.FullName
	}
	if msg.Phone != nil {
		phone, err := NormalizePhone(*msg.Phone, s.phoneRegion)
		if err != nil {
			return nil, err
		}
		user.Phone = phone
		columns["phone_number"] = user.Phone
	}
	if msg.Password != nil {
		hash, err := s.hasher.HashPassword(*msg.Password)
		if err != nil {
			return nil, err
		}
		user.PasswordHash = hash
		columns["password_hash"] = user.PasswordHash
	}

	if len(columns) == 0 {
		return caller, nil
	}

	err := s.users.RunInTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		if msg.Username != nil || msg.Email != nil {
			if err := s.users.EnsureUnique(ctx, tx, user.Username, user.Email, user.ID); err != nil {
				return err
			}
		}
		_, err := s.users.UpdateTx(ctx, tx, &user, columns.Set()...)
		return err
	})
	if err != nil {
		return nil, err
	}

	*caller = user
	return caller, nil
}

// SetRole changes an account role. Admin only; an admin cannot demote
// themselves.
func (s *AccountService) SetRole(ctx context.Context, caller *User, id uuid.UUID, role UserRole) (*User, error) {
	if err := RequireRole(caller, AdminRoles); err != nil {
		return nil, err
	}
	if !role.IsValid() {
		return nil, Derivef(ErrValidation, "unknown role %q", role).
			WithMetadata(map[string]any{"user_role": "must be one of user, author, editor, admin"})
	}
	if caller.ID == id && role != caller.Role {
		return nil, Derivef(ErrForbidden, "admins cannot change their own role")
	}

	user, err := s.users.GetByID(ctx, id.String())
	if err != nil {
		return nil, err
	}
	if user.Role == role {
		return user, nil
	}

	from := user.Role
	user.Role = role
	if _, err := s.users.Update(ctx, user, persistence.Columns{"user_role": role}.Set()...); err != nil {
		return nil, err
	}

	s.logger.Info("user role changed", "user_id", user.ID.String(), "from", string(from), "to", string(role))
	recordActivity(ctx, s.activitySink, s.logger, ActivityEvent{
		EventType: ActivityEventUserRoleChanged,
		Actor:     ActorRef{ID: caller.ID.String(), Type: string(caller.Role)},
		UserID:    user.ID.String(),
		Metadata: map[string]any{
			"from": string(from),
			"to":   string(role),
		},
	})
	return user, nil
}

// Deactivate soft deletes an account. Admin only; not allowed on self.
func (s *AccountService) Deactivate(ctx context.Context, caller *User, id uuid.UUID, reason string) (*User, error) {
	return s.transition(ctx, caller, id, UserStatusInactive, reason)
}

// Activate restores a deactivated account. Admin only.
func (s *AccountService) Activate(ctx context.Context, caller *User, id uuid.UUID, reason string) (*User, error) {
	return s.transition(ctx, caller, id, UserStatusActive, reason)
}

func (s *AccountService) transition(ctx context.Context, caller *User, id uuid.UUID, target UserStatus, reason string) (*User, error) {
	if err := RequireRole(caller, AdminRoles); err != nil {
		return nil, err
	}
	if caller.ID == id {
		return nil, Derivef(ErrForbidden, "admins cannot change their own status")
	}

	user, err := s.users.GetByID(ctx, id.String())
	if err != nil {
		return nil, err
	}

	actor := ActorRef{ID: caller.ID.String(), Type: string(caller.Role)}
	return s.lifecycle.Transition(ctx, actor, user, target, WithTransitionReason(reason))
}

// NormalizePhone parses a phone number and formats it as E.164. An
// empty input clears the number.
func NormalizePhone(raw, region string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", nil
	}
	if region == "" {
		region = DefaultPhoneRegion
	}

	num, err := phonenumbers.Parse(raw, region)
	if err != nil {
		return "", WithCause(Derivef(ErrValidation, "invalid phone number"), err).
			WithMetadata(map[string]any{"phone_number": err.Error()})
	}
	if !phonenumbers.IsValidNumber(num) {
		return "", Derivef(ErrValidation, "invalid phone number").
			WithMetadata(map[string]any{"phone_number": "number is not valid for its region"})
	}
	return phonenumbers.Format(num, phonenumbers.E164), nil
}
