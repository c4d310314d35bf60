package content

import (
	"context"
	"strings"

	"github.com/kalinanews/newsroom/auth"
	"github.com/uptrace/bun"
)

var likeEscaper = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")

// likePattern builds a case folded substring pattern for LIKE ... ESCAPE '!'
func likePattern(term string) string {
	return "%" + likeEscaper.Replace(strings.ToLower(term)) + "%"
}

// Search matches published articles whose title, body or author username
// contains q, ignoring case.
func (s *Service) Search(ctx context.Context, q string, p Page) (List[*Article], error) {
	term := strings.TrimSpace(q)
	if term == "" {
		return List[*Article]{}, auth.Derivef(auth.ErrValidation, "search query must not be empty").
			WithMetadata(map[string]any{"q": "cannot be blank"})
	}
	page, err := s.page(p)
	if err != nil {
		return List[*Article]{}, err
	}

	pattern := likePattern(term)
	items, total, err := s.articles.List(ctx, page, func(q *bun.SelectQuery) *bun.SelectQuery {
		return withRelations(q, articleRelations...).
			Join("JOIN users AS au ON au.id = art.owner_id").
			Where("?TableAlias.is_published = ?", true).
			WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
				return q.
					Where("LOWER(?TableAlias.title) LIKE ? ESCAPE '!'", pattern).
					WhereOr("LOWER(?TableAlias.body) LIKE ? ESCAPE '!'", pattern).
					WhereOr("LOWER(au.username) LIKE ? ESCAPE '!'", pattern)
			}).
			OrderExpr("?TableAlias.publication_date DESC, ?TableAlias.created_at DESC")
	})
	if err != nil {
		return List[*Article]{}, err
	}
	return newList(items, total, page), nil
}
