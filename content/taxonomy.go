package content

import (
	"context"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/google/uuid"
	"github.com/kalinanews/newsroom/auth"
	"github.com/uptrace/bun"
)

type CategoryMessage struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (m CategoryMessage) Validate() error {
	return validation.ValidateStruct(&m,
		validation.Field(&m.Name, validation.Required, validation.Length(1, 100)),
		validation.Field(&m.Description, validation.Length(0, 1000)),
	)
}

// UpdateCategoryMessage leaves nil fields unchanged
type UpdateCategoryMessage struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
}

func (m UpdateCategoryMessage) Validate() error {
	return validation.ValidateStruct(&m,
		validation.Field(&m.Name, validation.NilOrNotEmpty, validation.Length(1, 100)),
		validation.Field(&m.Description, validation.Length(0, 1000)),
	)
}

type TagMessage struct {
	Name string `json:"name"`
}

func (m TagMessage) Validate() error {
	return validation.ValidateStruct(&m,
		validation.Field(&m.Name, validation.Required, validation.Length(1, 100)),
	)
}

func byName(q *bun.SelectQuery) *bun.SelectQuery {
	return q.OrderExpr("?TableAlias.name ASC")
}

func (s *Service) ListCategories(ctx context.Context, p Page) (List[*Category], error) {
	page, err := s.page(p)
	if err != nil {
		return List[*Category]{}, err
	}
	items, total, err := s.categories.List(ctx, page, byName)
	if err != nil {
		return List[*Category]{}, err
	}
	return newList(items, total, page), nil
}

func (s *Service) GetCategory(ctx context.Context, id uuid.UUID) (*Category, error) {
	return s.categories.GetByID(ctx, id)
}

func (s *Service) CreateCategory(ctx context.Context, caller *auth.User, msg CategoryMessage) (*Category, error) {
	if err := auth.RequireRole(caller, s.admins); err != nil {
		return nil, err
	}
	if err := msg.Validate(); err != nil {
		return nil, auth.ValidationError(err)
	}
	return s.categories.Create(ctx, &Category{
		Name:        strings.TrimSpace(msg.Name),
		Description: msg.Description,
	})
}

func (s *Service) UpdateCategory(ctx context.Context, caller *auth.User, id uuid.UUID, msg UpdateCategoryMessage) (*Category, error) {
	if err := auth.RequireRole(caller, s.admins); err != nil {
		return nil, err
	}
	if err := msg.Validate(); err != nil {
		return nil, auth.ValidationError(err)
	}

	category, err := s.categories.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if msg.Name != nil {
		category.Name = strings.TrimSpace(*msg.Name)
	}
	if msg.Description != nil {
		category.Description = *msg.Description
	}
	return s.categories.Update(ctx, category)
}

// DeleteCategory detaches the category from every article first
func (s *Service) DeleteCategory(ctx context.Context, caller *auth.User, id uuid.UUID) error {
	if err := auth.RequireRole(caller, s.admins); err != nil {
		return err
	}
	return s.runInTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewDelete().Model((*ArticleCategory)(nil)).Where("category_id = ?", id).Exec(ctx); err != nil {
			return err
		}
		return s.categories.DeleteTx(ctx, tx, id)
	})
}

func (s *Service) ListTags(ctx context.Context, p Page) (List[*Tag], error) {
	page, err := s.page(p)
	if err != nil {
		return List[*Tag]{}, err
	}
	items, total, err := s.tags.List(ctx, page, byName)
	if err != nil {
		return List[*Tag]{}, err
	}
	return newList(items, total, page), nil
}

func (s *Service) GetTag(ctx context.Context, id uuid.UUID) (*Tag, error) {
	return s.tags.GetByID(ctx, id)
}

func (s *Service) CreateTag(ctx context.Context, caller *auth.User, msg TagMessage) (*Tag, error) {
	if err := auth.RequireRole(caller, s.admins); err != nil {
		return nil, err
	}
	if err := msg.Validate(); err != nil {
		return nil, auth.ValidationError(err)
	}
	return s.tags.Create(ctx, &Tag{Name: strings.TrimSpace(msg.Name)})
}

func (s *Service) UpdateTag(ctx context.Context, caller *auth.User, id uuid.UUID, msg TagMessage) (*Tag, error) {
	if err := auth.RequireRole(caller, s.admins); err != nil {
		return nil, err
	}
	if err := msg.Validate(); err != nil {
		return nil, auth.ValidationError(err)
	}

	tag, err := s.tags.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	tag.Name = strings.TrimSpace(msg.Name)
	return s.tags.Update(ctx, tag)
}

func (s *Service) DeleteTag(ctx context.Context, caller *auth.User, id uuid.UUID) error {
	if err := auth.RequireRole(caller, s.admins); err != nil {
		return err
	}
	return s.runInTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewDelete().Model((*ArticleTag)(nil)).Where("tag_id = ?", id).Exec(ctx); err != nil {
			return err
		}
		return s.tags.DeleteTx(ctx, tx, id)
	})
}
