package content

import (
	"context"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/google/uuid"
	"github.com/kalinanews/newsroom/auth"
	"github.com/uptrace/bun"
)

type CommentMessage struct {
	Content string `json:"content"`
}

func (m CommentMessage) Validate() error {
	return validation.ValidateStruct(&m,
		validation.Field(&m.Content, validation.Required, validation.Length(1, 5000)),
	)
}

// visibleArticle loads the article and applies the read visibility rule
func (s *Service) visibleArticle(ctx context.Context, tx bun.IDB, caller *auth.User, articleID uuid.UUID) (*Article, error) {
	article, err := s.articles.GetByIDTx(ctx, tx, articleID)
	if err != nil {
		return nil, err
	}
	if err := auth.RequireVisible(caller, article.OwnerID, article.IsPublished, s.elevated, "article"); err != nil {
		return nil, err
	}
	return article, nil
}

// ListComments lists the comments of an article the caller can see,
// newest first.
func (s *Service) ListComments(ctx context.Context, caller *auth.User, articleID uuid.UUID, p Page) (List[*Comment], error) {
	page, err := s.page(p)
	if err != nil {
		return List[*Comment]{}, err
	}
	if _, err := s.visibleArticle(ctx, s.db, caller, articleID); err != nil {
		return List[*Comment]{}, err
	}

	items, total, err := s.comments.List(ctx, page, func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Relation("Author").
			Where("?TableAlias.article_id = ?", articleID).
			OrderExpr("?TableAlias.created_at DESC")
	})
	if err != nil {
		return List[*Comment]{}, err
	}
	return newList(items, total, page), nil
}

// CreateComment needs an account that can see the article
func (s *Service) CreateComment(ctx context.Context, caller *auth.User, articleID uuid.UUID, msg CommentMessage) (*Comment, error) {
	if err := auth.RequireAuthenticated(caller); err != nil {
		return nil, err
	}
	msg.Content = strings.TrimSpace(msg.Content)
	if err := msg.Validate(); err != nil {
		return nil, auth.ValidationError(err)
	}
	if _, err := s.visibleArticle(ctx, s.db, caller, articleID); err != nil {
		return nil, err
	}

	comment := &Comment{
		Content:   msg.Content,
		ArticleID: articleID,
		UserID:    caller.ID,
	}
	if _, err := s.comments.Create(ctx, comment); err != nil {
		return nil, err
	}
	comment.Author = caller
	return comment, nil
}

// UpdateComment is allowed to the comment owner and to elevated roles
func (s *Service) UpdateComment(ctx context.Context, caller *auth.User, id uuid.UUID, msg CommentMessage) (*Comment, error) {
	if err := auth.RequireAuthenticated(caller); err != nil {
		return nil, err
	}
	msg.Content = strings.TrimSpace(msg.Content)
	if err := msg.Validate(); err != nil {
		return nil, auth.ValidationError(err)
	}

	comment, err := s.comments.GetByID(ctx, id, "Author")
	if err != nil {
		return nil, err
	}
	if err := auth.RequireOwnerOrRole(caller, comment.UserID, s.elevated); err != nil {
		return nil, err
	}

	comment.Content = msg.Content
	return s.comments.Update(ctx, comment)
}

func (s *Service) DeleteComment(ctx context.Context, caller *auth.User, id uuid.UUID) error {
	if err := auth.RequireAuthenticated(caller); err != nil {
		return err
	}

	comment, err := s.comments.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := auth.RequireOwnerOrRole(caller, comment.UserID, s.elevated); err != nil {
		return err
	}
	return s.comments.DeleteTx(ctx, s.db, id)
}
