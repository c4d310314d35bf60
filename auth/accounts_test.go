package auth_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/kalinanews/newsroom/auth"
	"github.com/kalinanews/newsroom/persistence/persistencetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type accountsFixture struct {
	users    auth.Users
	hasher   *auth.BcryptHasher
	register *auth.RegisterUserHandler
	accounts *auth.AccountService
	sink     *recordingSink
}

func newAccountsFixture(t *testing.T) *accountsFixture {
	t.Helper()
	db := persistencetest.New(t)
	f := &accountsFixture{
		users:  auth.NewUsersRepository(db),
		hasher: newTestHasher(t),
		sink:   &recordingSink{},
	}
	f.register = auth.NewRegisterUserHandler(f.users, f.hasher).WithActivitySink(f.sink)
	f.accounts = auth.NewAccountService(f.users, f.hasher,
		auth.WithAccountActivitySink(f.sink),
		auth.WithPhoneRegion("US"),
	)
	return f
}

func (f *accountsFixture) mustRegister(t *testing.T, username string, role auth.UserRole) *auth.User {
	t.Helper()
	u, err := f.register.CreateWithRole(context.Background(), auth.RegisterUserMessage{
		Username: username,
		Email:    username + "@example.com",
		Password: "password123",
	}, role)
	require.NoError(t, err)
	return u
}

func strPtr(s string) *string { return &s }

func TestRegisterUser(t *testing.T) {
	ctx := context.Background()

	t.Run("always starts as user", func(t *testing.T) {
		f := newAccountsFixture(t)
		u, err := f.register.Execute(ctx, auth.RegisterUserMessage{
			Username: "alice_w",
			Email:    "Alice@Example.com ",
			FullName: "Alice W",
			Password: "password123",
		})
		require.NoError(t, err)

		assert.Equal(t, auth.RoleUser, u.Role)
		assert.True(t, u.IsActive)
		assert.Equal(t, "alice@example.com", u.Email)
		assert.NotEqual(t, "password123", u.PasswordHash)
		assert.True(t, f.hasher.VerifyPassword("password123", u.PasswordHash))
		assert.Equal(t, []auth.ActivityEventType{auth.ActivityEventUserRegistered}, f.sink.types())

		stored, err := f.users.GetByID(ctx, u.ID.String())
		require.NoError(t, err)
		assert.Equal(t, "alice_w", stored.Username)
		assert.Equal(t, auth.RoleUser, stored.Role)
		assert.True(t, stored.IsActive)
	})

	t.Run("duplicate username or email conflicts", func(t *testing.T) {
		f := newAccountsFixture(t)
		f.mustRegister(t, "alice", auth.RoleUser)

		_, err := f.register.Execute(ctx, auth.RegisterUserMessage{
			Username: "alice", Email: "other@example.com", Password: "password123",
		})
		assert.True(t, errors.Is(err, auth.ErrConflict), "got %v", err)

		_, err = f.register.Execute(ctx, auth.RegisterUserMessage{
			Username: "other", Email: "ALICE@example.com", Password: "password123",
		})
		assert.True(t, errors.Is(err, auth.ErrConflict), "got %v", err)
	})

	t.Run("validation", func(t *testing.T) {
		f := newAccountsFixture(t)
		tests := map[string]auth.RegisterUserMessage{
			"short username": {Username: "al", Email: "a@example.com", Password: "password123"},
			"bad username":   {Username: "al ice", Email: "a@example.com", Password: "password123"},
			"bad email":      {Username: "alice", Email: "not-an-email", Password: "password123"},
			"short password": {Username: "alice", Email: "a@example.com", Password: "short"},
		}
		for name, msg := range tests {
			t.Run(name, func(t *testing.T) {
				_, err := f.register.Execute(ctx, msg)
				assert.True(t, errors.Is(err, auth.ErrValidation), "got %v", err)
			})
		}
	})

	t.Run("create with role rejects unknown roles", func(t *testing.T) {
		f := newAccountsFixture(t)
		_, err := f.register.CreateWithRole(ctx, auth.RegisterUserMessage{
			Username: "root", Email: "root@example.com", Password: "password123",
		}, "root")
		assert.True(t, errors.Is(err, auth.ErrValidation))
	})
}

func TestUsersRepository(t *testing.T) {
	ctx := context.Background()
	f := newAccountsFixture(t)
	alice := f.mustRegister(t, "alice_w", auth.RoleAuthor)

	t.Run("lookup by username or email with one identifier", func(t *testing.T) {
		byEmail, err := f.users.GetByUsernameOrEmail(ctx, "alice_w@example.com")
		require.NoError(t, err)
		assert.Equal(t, alice.ID, byEmail.ID)

		byName, err := f.users.GetByUsernameOrEmail(ctx, "alice_w")
		require.NoError(t, err)
		assert.Equal(t, alice.ID, byName.ID)

		_, err = f.users.GetByUsernameOrEmail(ctx, "bob")
		assert.True(t, auth.IsRecordNotFound(err))
	})

	t.Run("track login", func(t *testing.T) {
		require.NoError(t, f.users.TrackSuccessfulLogin(ctx, alice))
		stored, err := f.users.GetByID(ctx, alice.ID.String())
		require.NoError(t, err)
		require.NotNil(t, stored.LoggedInAt)
		assert.WithinDuration(t, time.Now(), *stored.LoggedInAt, time.Minute)
	})

	t.Run("list and count", func(t *testing.T) {
		f.mustRegister(t, "bob", auth.RoleUser)
		list, total, err := f.users.List(ctx, repository.Paginate(10, 0))
		require.NoError(t, err)
		assert.Equal(t, 2, total)
		assert.Len(t, list, 2)

		n, err := f.users.CountByRole(ctx, auth.RoleAuthor)
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	})

	t.Run("missing id", func(t *testing.T) {
		_, err := f.users.GetByID(ctx, uuid.NewString())
		assert.True(t, errors.Is(err, auth.ErrNotFound))
	})
}

func TestLoginAgainstStore(t *testing.T) {
	ctx := context.Background()
	f := newAccountsFixture(t)
	_, err := f.register.CreateWithRole(ctx, auth.RegisterUserMessage{
		Username: "alice_w",
		Email:    "alice@example.com",
		Password: "password123",
	}, auth.RoleAuthor)
	require.NoError(t, err)

	tokens := newTokenService(t, "integration-key", &fakeClock{now: time.Now()})
	auther := auth.NewAuthenticator(f.users, f.hasher, tokens)

	token, err := auther.Login(ctx, "alice@example.com", "password123")
	require.NoError(t, err, "email must match even though the username differs")

	user, err := auther.Authenticate(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, "alice_w", user.Username)
	assert.NotNil(t, user.LoggedInAt)
}

func TestUpdateProfile(t *testing.T) {
	ctx := context.Background()

	t.Run("partial update with phone normalization", func(t *testing.T) {
		f := newAccountsFixture(t)
		alice := f.mustRegister(t, "alice", auth.RoleUser)

		updated, err := f.accounts.UpdateProfile(ctx, alice, auth.UpdateProfileMessage{
			FullName: strPtr("Alice Wonder"),
			Phone:    strPtr("(650) 253-0000"),
		})
		require.NoError(t, err)
		assert.Equal(t, "Alice Wonder", updated.FullName)
		assert.Equal(t, "+16502530000", updated.Phone)

		stored, err := f.users.GetByID(ctx, alice.ID.String())
		require.NoError(t, err)
		assert.Equal(t, "+16502530000", stored.Phone)
		assert.Equal(t, "alice", stored.Username)
	})

	t.Run("empty values clear stored fields", func(t *testing.T) {
		f := newAccountsFixture(t)
		alice := f.mustRegister(t, "alice", auth.RoleUser)
		_, err := f.accounts.UpdateProfile(ctx, alice, auth.UpdateProfileMessage{
			FullName: strPtr("Alice Wonder"),
			Phone:    strPtr("(650) 253-0000"),
		})
		require.NoError(t, err)

		_, err = f.accounts.UpdateProfile(ctx, alice, auth.UpdateProfileMessage{
			FullName: strPtr(""),
			Phone:    strPtr(""),
		})
		require.NoError(t, err)

		stored, err := f.users.GetByID(ctx, alice.ID.String())
		require.NoError(t, err)
		assert.Empty(t, stored.FullName)
		assert.Empty(t, stored.Phone)
	})

	t.Run("invalid phone", func(t *testing.T) {
		f := newAccountsFixture(t)
		alice := f.mustRegister(t, "alice", auth.RoleUser)
		_, err := f.accounts.UpdateProfile(ctx, alice, auth.UpdateProfileMessage{Phone: strPtr("12")})
		assert.True(t, errors.Is(err, auth.ErrValidation))
	})

	t.Run("password change re-hashes", func(t *testing.T) {
		f := newAccountsFixture(t)
		alice := f.mustRegister(t, "alice", auth.RoleUser)
		_, err := f.accounts.UpdateProfile(ctx, alice, auth.UpdateProfileMessage{Password: strPtr("new-password-1")})
		require.NoError(t, err)

		stored, err := f.users.GetByID(ctx, alice.ID.String())
		require.NoError(t, err)
		assert.True(t, f.hasher.VerifyPassword("new-password-1", stored.PasswordHash))
		assert.False(t, f.hasher.VerifyPassword("password123", stored.PasswordHash))
	})

	t.Run("username taken", func(t *testing.T) {
		f := newAccountsFixture(t)
		alice := f.mustRegister(t, "alice", auth.RoleUser)
		f.mustRegister(t, "bob", auth.RoleUser)

		_, err := f.accounts.UpdateProfile(ctx, alice, auth.UpdateProfileMessage{Username: strPtr("bob")})
		assert.True(t, errors.Is(err, auth.ErrConflict))
		assert.Equal(t, "alice", alice.Username, "caller is untouched on failure")
	})

	t.Run("anonymous", func(t *testing.T) {
		f := newAccountsFixture(t)
		_, err := f.accounts.UpdateProfile(ctx, nil, auth.UpdateProfileMessage{})
		assert.True(t, errors.Is(err, auth.ErrUnauthenticated))
	})
}

func TestAdminAccountManagement(t *testing.T) {
	ctx := context.Background()
	f := newAccountsFixture(t)
	admin := f.mustRegister(t, "root_admin", auth.RoleAdmin)
	editor := f.mustRegister(t, "ed", auth.RoleEditor)
	reader := f.mustRegister(t, "reader", auth.RoleUser)

	t.Run("non admins are forbidden", func(t *testing.T) {
		_, _, err := f.accounts.List(ctx, editor, 0, 10)
		assert.True(t, errors.Is(err, auth.ErrForbidden))

		_, err = f.accounts.SetRole(ctx, editor, reader.ID, auth.RoleAuthor)
		assert.True(t, errors.Is(err, auth.ErrForbidden))

		_, err = f.accounts.Deactivate(ctx, editor, reader.ID, "")
		assert.True(t, errors.Is(err, auth.ErrForbidden))

		_, err = f.accounts.Get(ctx, editor, reader.ID)
		assert.True(t, errors.Is(err, auth.ErrForbidden))
	})

	t.Run("set role", func(t *testing.T) {
		u, err := f.accounts.SetRole(ctx, admin, reader.ID, auth.RoleAuthor)
		require.NoError(t, err)
		assert.Equal(t, auth.RoleAuthor, u.Role)

		_, err = f.accounts.SetRole(ctx, admin, reader.ID, "chief")
		assert.True(t, errors.Is(err, auth.ErrValidation))

		_, err = f.accounts.SetRole(ctx, admin, admin.ID, auth.RoleUser)
		assert.True(t, errors.Is(err, auth.ErrForbidden))
	})

	t.Run("deactivate and activate", func(t *testing.T) {
		u, err := f.accounts.Deactivate(ctx, admin, reader.ID, "spam")
		require.NoError(t, err)
		assert.False(t, u.IsActive)

		stored, err := f.users.GetByID(ctx, reader.ID.String())
		require.NoError(t, err)
		assert.False(t, stored.IsActive)

		u, err = f.accounts.Activate(ctx, admin, reader.ID, "")
		require.NoError(t, err)
		assert.True(t, u.IsActive)

		_, err = f.accounts.Deactivate(ctx, admin, admin.ID, "")
		assert.True(t, errors.Is(err, auth.ErrForbidden))

		_, err = f.accounts.Deactivate(ctx, admin, uuid.New(), "")
		assert.True(t, errors.Is(err, auth.ErrNotFound))
	})

	t.Run("events", func(t *testing.T) {
		types := f.sink.types()
		assert.Contains(t, types, auth.ActivityEventUserRoleChanged)
		assert.Contains(t, types, auth.ActivityEventUserStatusChanged)
	})

	t.Run("self get allowed", func(t *testing.T) {
		got, err := f.accounts.Get(ctx, reader, reader.ID)
		require.NoError(t, err)
		assert.Equal(t, reader.ID, got.ID)
	})
}
