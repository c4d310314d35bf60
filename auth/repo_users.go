package auth

import (
	"context"
	"strings"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/kalinanews/newsroom/persistence"
	"github.com/uptrace/bun"
)

// Users is the credential store repository
type Users interface {
	repository.Repository[*User]

	GetByUsernameOrEmail(ctx context.Context, identifier string) (*User, error)
	GetByUsernameOrEmailTx(ctx context.Context, tx bun.IDB, identifier string) (*User, error)
	TrackSuccessfulLogin(ctx context.Context, user *User) error
	TrackSuccessfulLoginTx(ctx context.Context, tx bun.IDB, user *User) error

	EnsureUnique(ctx context.Context, tx bun.IDB, username, email string, exclude uuid.UUID) error
	CountByRole(ctx context.Context, role UserRole) (int, error)

	RunInTx(ctx context.Context, fn func(ctx context.Context, tx bun.Tx) error) error
}

type users struct {
	repository.Repository[*User]
	db  *bun.DB
	now func() time.Time
}

var (
	_ Users                        = (*users)(nil)
	_ AccountStore                 = (*users)(nil)
	_ repository.Repository[*User] = (*users)(nil)
)

type UsersOption func(*users)

// WithUsersClock injects the clock used for audit timestamps
func WithUsersClock(now func() time.Time) UsersOption {
	return func(u *users) {
		if now != nil {
			u.now = now
		}
	}
}

func NewUsersRepository(db *bun.DB, opts ...UsersOption) Users {
	repo := repository.NewRepository[*User](db, repository.ModelHandlers[*User]{
		NewRecord: func() *User { return &User{} },
		GetID: func(u *User) uuid.UUID {
			if u == nil {
				return uuid.Nil
			}
			return u.ID
		},
		SetID: func(u *User, id uuid.UUID) {
			if u != nil {
				u.ID = id
			}
		},
		GetIdentifier: func() string {
			return "username"
		},
	})

	repoUsers := &users{
		Repository: repo,
		db:         db,
		now:        time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(repoUsers)
		}
	}
	return repoUsers
}

func (a *users) RunInTx(ctx context.Context, fn func(ctx context.Context, tx bun.Tx) error) error {
	return a.db.RunInTx(ctx, nil, fn)
}

func (a *users) GetByID(ctx context.Context, id string, criteria ...repository.SelectCriteria) (*User, error) {
	return a.GetByIDTx(ctx, a.db, id, criteria...)
}

func (a *users) GetByIDTx(ctx context.Context, tx bun.IDB, id string, criteria ...repository.SelectCriteria) (*User, error) {
	record, err := a.Repository.GetByIDTx(ctx, tx, id, criteria...)
	if err != nil {
		return nil, wrapNotFound(err, "user")
	}
	return record, nil
}

func (a *users) GetByUsernameOrEmail(ctx context.Context, identifier string) (*User, error) {
	return a.GetByUsernameOrEmailTx(ctx, a.db, identifier)
}

// GetByUsernameOrEmailTx checks the same literal input against both the
// username and the email column in one query.
func (a *users) GetByUsernameOrEmailTx(ctx context.Context, tx bun.IDB, identifier string) (*User, error) {
	trimmed := strings.TrimSpace(identifier)
	if trimmed == "" {
		return nil, NotFound("user")
	}

	record, err := a.Repository.GetTx(ctx, tx,
		repository.SelectRawProcessor(func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
				return q.
					Where("?TableAlias.username = ?", trimmed).
					WhereOr("?TableAlias.email = ?", NormalizeEmail(trimmed))
			})
		}),
	)
	if err != nil {
		return nil, wrapNotFound(err, "user")
	}
	return record, nil
}

func (a *users) Create(ctx context.Context, record *User) (*User, error) {
	return a.CreateTx(ctx, a.db, record)
}

func (a *users) CreateTx(ctx context.Context, tx bun.IDB, record *User) (*User, error) {
	a.prepareUserDefaults(record)
	if _, err := a.Repository.CreateTx(ctx, tx, record); err != nil {
		return nil, wrapConflict(err)
	}
	return record, nil
}

func (a *users) Update(ctx context.Context, record *User, criteria ...repository.UpdateCriteria) (*User, error) {
	return a.UpdateTx(ctx, a.db, record, criteria...)
}

// UpdateTx refreshes updated_at on every update. Pass persistence.Columns
// criteria to write zero values; without criteria only non zero fields
// are written.
func (a *users) UpdateTx(ctx context.Context, tx bun.IDB, record *User, criteria ...repository.UpdateCriteria) (*User, error) {
	record.UpdatedAt = a.now().UTC()
	if len(criteria) > 0 {
		criteria = append(criteria, persistence.Columns{"updated_at": record.UpdatedAt}.Set()...)
	}

	if _, err := a.Repository.UpdateTx(ctx, tx, record, criteria...); err != nil {
		if repository.IsSQLExpectedCountViolation(err) {
			return nil, WithCause(NotFound("user"), err)
		}
		return nil, wrapConflict(err)
	}
	return record, nil
}

func (a *users) CountByRole(ctx context.Context, role UserRole) (int, error) {
	return a.db.NewSelect().
		Model((*User)(nil)).
		Where("?TableAlias.user_role = ?", role).
		Count(ctx)
}

// EnsureUnique fails with ErrConflict when another account holds the
// username or email. exclude skips the account being updated.
func (a *users) EnsureUnique(ctx context.Context, tx bun.IDB, username, email string, exclude uuid.UUID) error {
	criteria := []repository.SelectCriteria{
		repository.SelectColumns("id", "username", "email"),
		repository.SelectRawProcessor(func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
				return q.
					Where("?TableAlias.username = ?", username).
					WhereOr("?TableAlias.email = ?", email)
			})
		}),
	}
	if exclude != uuid.Nil {
		criteria = append(criteria, repository.SelectBy("id", "!=", exclude.String()))
	}

	taken, _, err := a.Repository.ListTx(ctx, tx, criteria...)
	if err != nil && !repository.IsNoRowError(err) {
		return err
	}

	for _, u := range taken {
		if u.Username == username {
			return Conflict("username %q is already registered", username).
				WithMetadata(map[string]any{"field": "username"})
		}
		if u.Email == email {
			return Conflict("email %q is already registered", email).
				WithMetadata(map[string]any{"field": "email"})
		}
	}
	return nil
}

func (a *users) TrackSuccessfulLogin(ctx context.Context, user *User) error {
	return a.TrackSuccessfulLoginTx(ctx, a.db, user)
}

func (a *users) TrackSuccessfulLoginTx(ctx context.Context, tx bun.IDB, user *User) error {
	loggedInAt := a.now().UTC()
	_, err := a.Repository.UpdateTx(ctx, tx, &User{ID: user.ID},
		persistence.Columns{"loggedin_at": loggedInAt}.Set()...,
	)
	if err != nil {
		return err
	}
	user.LoggedInAt = &loggedInAt
	return nil
}

func (a *users) prepareUserDefaults(record *User) {
	if record == nil {
		return
	}
	if record.Role == "" {
		record.Role = RoleUser
	}
	now := a.now().UTC()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	record.UpdatedAt = now
}

// NormalizeEmail lower cases and trims an email address
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func wrapNotFound(err error, resource string) error {
	if repository.IsRecordNotFound(err) {
		return WithCause(NotFound(resource), err)
	}
	return err
}

func wrapConflict(err error) error {
	if IsUniqueViolation(err) {
		return WithCause(Conflict("username or email already registered"), err)
	}
	return err
}
