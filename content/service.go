// Package content stores articles, their taxonomy and comments, and routes
// every operation through the auth gate policies.
package content

import (
	"context"
	"time"

	"github.com/kalinanews/newsroom/auth"
	"github.com/uptrace/bun"
)

// Service implements the content operations. Each method takes the
// resolved caller, nil for anonymous requests.
type Service struct {
	db         *bun.DB
	articles   *Repository[Article, *Article]
	categories *Repository[Category, *Category]
	tags       *Repository[Tag, *Tag]
	comments   *Repository[Comment, *Comment]

	// elevated may edit, delete and read any article or comment
	elevated auth.RoleSet
	authors  auth.RoleSet
	admins   auth.RoleSet

	maxLimit int
	now      func() time.Time
	logger   auth.Logger
}

type ServiceOption func(*Service)

func WithLogger(l auth.Logger) ServiceOption {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMaxPageLimit caps the limit accepted by listings
func WithMaxPageLimit(max int) ServiceOption {
	return func(s *Service) {
		if max > 0 {
			s.maxLimit = max
		}
	}
}

func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

func NewService(db *bun.DB, opts ...ServiceOption) *Service {
	RegisterModels(db)

	s := &Service{
		db:       db,
		elevated: auth.ElevatedRoles,
		authors:  auth.AuthorRoles,
		admins:   auth.AdminRoles,
		maxLimit: DefaultMaxPageLimit,
		now:      time.Now,
		logger:   auth.NamedLogger("content"),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	clock := func() time.Time { return s.now() }
	s.articles = NewRepository[Article](db, "article", clock)
	s.categories = NewRepository[Category](db, "category", clock)
	s.tags = NewRepository[Tag](db, "tag", clock)
	s.comments = NewRepository[Comment](db, "comment", clock)
	return s
}

func (s *Service) page(p Page) (Page, error) {
	return p.Normalize(s.maxLimit)
}

func (s *Service) runInTx(ctx context.Context, fn func(ctx context.Context, tx bun.Tx) error) error {
	return s.db.RunInTx(ctx, nil, fn)
}
