package content

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/google/uuid"
	"github.com/kalinanews/newsroom/auth"
	"github.com/uptrace/bun"
)

var articleRelations = []string{"Author", "Categories", "Tags"}

// CreateArticleMessage is the payload to create an article. Unknown
// category and tag ids are ignored.
type CreateArticleMessage struct {
	Title       string      `json:"title"`
	Description string      `json:"description"`
	Body        string      `json:"body"`
	IsPublished bool        `json:"is_published"`
	CategoryIDs []uuid.UUID `json:"category_ids"`
	TagIDs      []uuid.UUID `json:"tag_ids"`
}

func (m CreateArticleMessage) Validate() error {
	return validation.ValidateStruct(&m,
		validation.Field(&m.Title, validation.Required, validation.Length(1, 255)),
		validation.Field(&m.Description, validation.Length(0, 1000)),
		validation.Field(&m.Body, validation.Required),
	)
}

// UpdateArticleMessage is a partial update. Nil fields are left as they
// are; a non nil id list replaces the current links.
type UpdateArticleMessage struct {
	Title       *string      `json:"title"`
	Description *string      `json:"description"`
	Body        *string      `json:"body"`
	IsPublished *bool        `json:"is_published"`
	CategoryIDs *[]uuid.UUID `json:"category_ids"`
	TagIDs      *[]uuid.UUID `json:"tag_ids"`
}

func (m UpdateArticleMessage) Validate() error {
	return validation.ValidateStruct(&m,
		validation.Field(&m.Title, validation.NilOrNotEmpty, validation.Length(1, 255)),
		validation.Field(&m.Description, validation.Length(0, 1000)),
		validation.Field(&m.Body, validation.NilOrNotEmpty),
	)
}

// ListArticles lists published articles to anyone. Drafts need an
// account: elevated roles see every draft, others only their own.
func (s *Service) ListArticles(ctx context.Context, caller *auth.User, published bool, p Page) (List[*Article], error) {
	page, err := s.page(p)
	if err != nil {
		return List[*Article]{}, err
	}

	sel := func(q *bun.SelectQuery) *bun.SelectQuery {
		q = withRelations(q, articleRelations...).
			Where("?TableAlias.is_published = ?", published)
		if published {
			return q.OrderExpr("?TableAlias.publication_date DESC, ?TableAlias.created_at DESC")
		}
		if !caller.HasRole(s.elevated) {
			q = q.Where("?TableAlias.owner_id = ?", caller.ID)
		}
		return q.OrderExpr("?TableAlias.created_at DESC")
	}

	if !published {
		if err := auth.RequireAuthenticated(caller); err != nil {
			return List[*Article]{}, err
		}
	}

	items, total, err := s.articles.List(ctx, page, sel)
	if err != nil {
		return List[*Article]{}, err
	}
	return newList(items, total, page), nil
}

// GetArticle returns published articles to anyone. Unpublished articles
// are reported as not found unless the caller owns them or is elevated.
func (s *Service) GetArticle(ctx context.Context, caller *auth.User, id uuid.UUID) (*Article, error) {
	article, err := s.articles.GetByID(ctx, id, articleRelations...)
	if err != nil {
		return nil, err
	}
	if err := auth.RequireVisible(caller, article.OwnerID, article.IsPublished, s.elevated, "article"); err != nil {
		return nil, err
	}
	return article, nil
}

func (s *Service) CreateArticle(ctx context.Context, caller *auth.User, msg CreateArticleMessage) (*Article, error) {
	if err := auth.RequireRole(caller, s.authors); err != nil {
		return nil, err
	}
	msg.Title = strings.TrimSpace(msg.Title)
	if err := msg.Validate(); err != nil {
		return nil, auth.ValidationError(err)
	}

	var out *Article
	err := s.runInTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		article := &Article{
			Title:       msg.Title,
			Description: msg.Description,
			Body:        msg.Body,
			OwnerID:     caller.ID,
			IsPublished: msg.IsPublished,
		}
		if _, err := s.articles.CreateTx(ctx, tx, article); err != nil {
			return err
		}
		if err := linkCategories(ctx, tx, article.ID, msg.CategoryIDs, false); err != nil {
			return err
		}
		if err := linkTags(ctx, tx, article.ID, msg.TagIDs, false); err != nil {
			return err
		}
		created, err := s.articles.GetByIDTx(ctx, tx, article.ID, articleRelations...)
		if err != nil {
			return err
		}
		out = created
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("article created", "article_id", out.ID, "owner_id", out.OwnerID, "published", out.IsPublished)
	return out, nil
}

// UpdateArticle is allowed to the owner and to elevated roles
func (s *Service) UpdateArticle(ctx context.Context, caller *auth.User, id uuid.UUID, msg UpdateArticleMessage) (*Article, error) {
	if err := auth.RequireAuthenticated(caller); err != nil {
		return nil, err
	}
	if msg.Title != nil {
		title := strings.TrimSpace(*msg.Title)
		msg.Title = &title
	}
	if err := msg.Validate(); err != nil {
		return nil, auth.ValidationError(err)
	}

	var out *Article
	err := s.runInTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		article, err := s.articles.GetByIDTx(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := auth.RequireOwnerOrRole(caller, article.OwnerID, s.elevated); err != nil {
			return err
		}

		if msg.Title != nil {
			article.Title = *msg.Title
		}
		if msg.Description != nil {
			article.Description = *msg.Description
		}
		if msg.Body != nil {
			article.Body = *msg.Body
		}
		if msg.IsPublished != nil {
			article.IsPublished = *msg.IsPublished
		}
		if _, err := s.articles.UpdateTx(ctx, tx, article); err != nil {
			return err
		}

		if msg.CategoryIDs != nil {
			if err := linkCategories(ctx, tx, article.ID, *msg.CategoryIDs, true); err != nil {
				return err
			}
		}
		if msg.TagIDs != nil {
			if err := linkTags(ctx, tx, article.ID, *msg.TagIDs, true); err != nil {
				return err
			}
		}

		updated, err := s.articles.GetByIDTx(ctx, tx, article.ID, articleRelations...)
		if err != nil {
			return err
		}
		out = updated
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteArticle removes the article with its comments and links
func (s *Service) DeleteArticle(ctx context.Context, caller *auth.User, id uuid.UUID) error {
	if err := auth.RequireAuthenticated(caller); err != nil {
		return err
	}

	return s.runInTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		article, err := s.articles.GetByIDTx(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := auth.RequireOwnerOrRole(caller, article.OwnerID, s.elevated); err != nil {
			return err
		}

		if _, err := tx.NewDelete().Model((*Comment)(nil)).Where("article_id = ?", id).Exec(ctx); err != nil {
			return err
		}
		if _, err := tx.NewDelete().Model((*ArticleCategory)(nil)).Where("article_id = ?", id).Exec(ctx); err != nil {
			return err
		}
		if _, err := tx.NewDelete().Model((*ArticleTag)(nil)).Where("article_id = ?", id).Exec(ctx); err != nil {
			return err
		}
		if err := s.articles.DeleteTx(ctx, tx, id); err != nil {
			return err
		}

		s.logger.Info("article deleted", "article_id", id, "actor_id", caller.ID)
		return nil
	})
}

// linkCategories attaches the existing categories among ids. With replace
// the current links are dropped first.
func linkCategories(ctx context.Context, tx bun.IDB, articleID uuid.UUID, ids []uuid.UUID, replace bool) error {
	if replace {
		if _, err := tx.NewDelete().Model((*ArticleCategory)(nil)).Where("article_id = ?", articleID).Exec(ctx); err != nil {
			return err
		}
	}
	existing, err := existingIDs(ctx, tx, (*Category)(nil), ids)
	if err != nil || len(existing) == 0 {
		return err
	}
	links := make([]*ArticleCategory, 0, len(existing))
	for _, id := range existing {
		links = append(links, &ArticleCategory{ArticleID: articleID, CategoryID: id})
	}
	_, err = tx.NewInsert().Model(&links).Exec(ctx)
	return err
}

func linkTags(ctx context.Context, tx bun.IDB, articleID uuid.UUID, ids []uuid.UUID, replace bool) error {
	if replace {
		if _, err := tx.NewDelete().Model((*ArticleTag)(nil)).Where("article_id = ?", articleID).Exec(ctx); err != nil {
			return err
		}
	}
	existing, err := existingIDs(ctx, tx, (*Tag)(nil), ids)
	if err != nil || len(existing) == 0 {
		return err
	}
	links := make([]*ArticleTag, 0, len(existing))
	for _, id := range existing {
		links = append(links, &ArticleTag{ArticleID: articleID, TagID: id})
	}
	_, err = tx.NewInsert().Model(&links).Exec(ctx)
	return err
}

// existingIDs filters ids down to the distinct ones present in model's table
func existingIDs(ctx context.Context, tx bun.IDB, model any, ids []uuid.UUID) ([]uuid.UUID, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var found []uuid.UUID
	err := tx.NewSelect().
		Model(model).
		Column("id").
		Where("?TableAlias.id IN (?)", bun.In(ids)).
		Scan(ctx, &found)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	return found, nil
}

func withRelations(q *bun.SelectQuery, relations ...string) *bun.SelectQuery {
	for _, rel := range relations {
		q = q.Relation(rel)
	}
	return q
}
