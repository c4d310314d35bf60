package content_test

import (
	"context"
	"errors"
	"testing"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/kalinanews/newsroom/auth"
	"github.com/kalinanews/newsroom/content"
	"github.com/kalinanews/newsroom/persistence/persistencetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type tickClock struct {
	now time.Time
}

func (c *tickClock) Now() time.Time {
	c.now = c.now.Add(time.Second)
	return c.now
}

type fixture struct {
	svc   *content.Service
	users auth.Users

	admin  *auth.User
	editor *auth.User
	author *auth.User
	peer   *auth.User
	reader *auth.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := persistencetest.New(t)
	clock := &tickClock{now: time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)}

	f := &fixture{
		svc:   content.NewService(db, content.WithClock(clock.Now), content.WithMaxPageLimit(50)),
		users: auth.NewUsersRepository(db, auth.WithUsersClock(clock.Now)),
	}
	f.admin = f.account(t, "root", auth.RoleAdmin)
	f.editor = f.account(t, "ed", auth.RoleEditor)
	f.author = f.account(t, "alice_w", auth.RoleAuthor)
	f.peer = f.account(t, "mallory", auth.RoleAuthor)
	f.reader = f.account(t, "rita", auth.RoleUser)
	return f
}

func (f *fixture) account(t *testing.T, username string, role auth.UserRole) *auth.User {
	t.Helper()
	u, err := f.users.Create(context.Background(), &auth.User{
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: "not-a-real-hash",
		Role:         role,
		IsActive:     true,
	})
	require.NoError(t, err)
	return u
}

func (f *fixture) article(t *testing.T, owner *auth.User, title string, published bool) *content.Article {
	t.Helper()
	a, err := f.svc.CreateArticle(context.Background(), owner, content.CreateArticleMessage{
		Title:       title,
		Body:        "body of " + title,
		IsPublished: published,
	})
	require.NoError(t, err)
	return a
}

func boolPtr(b bool) *bool { return &b }

func strPtr(s string) *string { return &s }

func idsPtr(ids ...uuid.UUID) *[]uuid.UUID { return &ids }

func TestCreateArticle(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	t.Run("requires at least author", func(t *testing.T) {
		_, err := f.svc.CreateArticle(ctx, f.reader, content.CreateArticleMessage{Title: "t", Body: "b"})
		assert.True(t, errors.Is(err, auth.ErrForbidden))

		_, err = f.svc.CreateArticle(ctx, nil, content.CreateArticleMessage{Title: "t", Body: "b"})
		assert.True(t, errors.Is(err, auth.ErrUnauthenticated))
	})

	t.Run("validates payload", func(t *testing.T) {
		_, err := f.svc.CreateArticle(ctx, f.author, content.CreateArticleMessage{Title: "", Body: "b"})
		require.True(t, errors.Is(err, auth.ErrValidation))
		var ae *goerrors.Error
		require.True(t, goerrors.As(err, &ae))
		assert.Contains(t, ae.Metadata, "title")
		assert.NotEmpty(t, ae.ValidationErrors)
	})

	t.Run("owner is the caller and publishing stamps the date", func(t *testing.T) {
		cat, err := f.svc.CreateCategory(ctx, f.admin, content.CategoryMessage{Name: "Politics"})
		require.NoError(t, err)
		tag, err := f.svc.CreateTag(ctx, f.admin, content.TagMessage{Name: "elections"})
		require.NoError(t, err)

		a, err := f.svc.CreateArticle(ctx, f.author, content.CreateArticleMessage{
			Title:       "  Vote count ",
			Body:        "text",
			IsPublished: true,
			CategoryIDs: []uuid.UUID{cat.ID, uuid.New(), cat.ID},
			TagIDs:      []uuid.UUID{tag.ID},
		})
		require.NoError(t, err)

		assert.Equal(t, "Vote count", a.Title)
		assert.Equal(t, f.author.ID, a.OwnerID)
		require.NotNil(t, a.Author)
		assert.Equal(t, "alice_w", a.Author.Username)
		require.NotNil(t, a.PublicationDate)
		require.Len(t, a.Categories, 1, "unknown ids are ignored and duplicates collapse")
		assert.Equal(t, "Politics", a.Categories[0].Name)
		require.Len(t, a.Tags, 1)
	})

	t.Run("draft has no publication date", func(t *testing.T) {
		a := f.article(t, f.author, "draft", false)
		assert.Nil(t, a.PublicationDate)
		assert.Empty(t, a.Categories)
	})
}

func TestArticleUpdatePolicy(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a42 := f.article(t, f.author, "A42", true)
	msg := content.UpdateArticleMessage{Title: strPtr("A42 revised")}

	_, err := f.svc.UpdateArticle(ctx, f.reader, a42.ID, msg)
	assert.True(t, errors.Is(err, auth.ErrForbidden))

	_, err = f.svc.UpdateArticle(ctx, f.peer, a42.ID, msg)
	assert.True(t, errors.Is(err, auth.ErrForbidden), "peer authors cannot edit each other")

	_, err = f.svc.UpdateArticle(ctx, nil, a42.ID, msg)
	assert.True(t, errors.Is(err, auth.ErrUnauthenticated))

	updated, err := f.svc.UpdateArticle(ctx, f.editor, a42.ID, msg)
	require.NoError(t, err)
	assert.Equal(t, "A42 revised", updated.Title)
	assert.Equal(t, f.author.ID, updated.OwnerID, "editing does not transfer ownership")

	updated, err = f.svc.UpdateArticle(ctx, f.author, a42.ID, content.UpdateArticleMessage{Body: strPtr("new body")})
	require.NoError(t, err)
	assert.Equal(t, "A42 revised", updated.Title)
	assert.Equal(t, "new body", updated.Body)

	_, err = f.svc.UpdateArticle(ctx, f.editor, uuid.New(), msg)
	assert.True(t, errors.Is(err, auth.ErrNotFound))
}

func TestUpdateArticleTitleIsTrimmed(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := f.article(t, f.author, "story", true)

	_, err := f.svc.UpdateArticle(ctx, f.author, a.ID, content.UpdateArticleMessage{Title: strPtr("   ")})
	assert.True(t, errors.Is(err, auth.ErrValidation), "a blank title is rejected after trimming")

	stored, err := f.svc.GetArticle(ctx, f.author, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "story", stored.Title)

	updated, err := f.svc.UpdateArticle(ctx, f.author, a.ID, content.UpdateArticleMessage{Title: strPtr("  revised  ")})
	require.NoError(t, err)
	assert.Equal(t, "revised", updated.Title)
}

func TestDraftMutationByStrangerIsForbidden(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	draft := f.article(t, f.author, "secret", false)

	_, err := f.svc.GetArticle(ctx, f.peer, draft.ID)
	assert.True(t, errors.Is(err, auth.ErrNotFound))

	_, err = f.svc.UpdateArticle(ctx, f.peer, draft.ID, content.UpdateArticleMessage{Title: strPtr("x")})
	assert.True(t, errors.Is(err, auth.ErrForbidden))

	err = f.svc.DeleteArticle(ctx, f.peer, draft.ID)
	assert.True(t, errors.Is(err, auth.ErrForbidden))
}

func TestPublicationDateIsKept(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := f.article(t, f.author, "story", false)

	published, err := f.svc.UpdateArticle(ctx, f.author, a.ID, content.UpdateArticleMessage{IsPublished: boolPtr(true)})
	require.NoError(t, err)
	require.NotNil(t, published.PublicationDate)
	first := *published.PublicationDate

	unpublished, err := f.svc.UpdateArticle(ctx, f.author, a.ID, content.UpdateArticleMessage{IsPublished: boolPtr(false)})
	require.NoError(t, err)
	assert.False(t, unpublished.IsPublished)
	require.NotNil(t, unpublished.PublicationDate)
	assert.True(t, first.Equal(*unpublished.PublicationDate))

	again, err := f.svc.UpdateArticle(ctx, f.author, a.ID, content.UpdateArticleMessage{IsPublished: boolPtr(true)})
	require.NoError(t, err)
	assert.True(t, first.Equal(*again.PublicationDate), "republishing keeps the first date")
}

func TestArticleLinksReplace(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	c1, err := f.svc.CreateCategory(ctx, f.admin, content.CategoryMessage{Name: "One"})
	require.NoError(t, err)
	c2, err := f.svc.CreateCategory(ctx, f.admin, content.CategoryMessage{Name: "Two"})
	require.NoError(t, err)

	a, err := f.svc.CreateArticle(ctx, f.author, content.CreateArticleMessage{
		Title: "t", Body: "b", CategoryIDs: []uuid.UUID{c1.ID},
	})
	require.NoError(t, err)

	updated, err := f.svc.UpdateArticle(ctx, f.author, a.ID, content.UpdateArticleMessage{CategoryIDs: idsPtr(c2.ID)})
	require.NoError(t, err)
	require.Len(t, updated.Categories, 1)
	assert.Equal(t, c2.ID, updated.Categories[0].ID)

	untouched, err := f.svc.UpdateArticle(ctx, f.author, a.ID, content.UpdateArticleMessage{Title: strPtr("t2")})
	require.NoError(t, err)
	assert.Len(t, untouched.Categories, 1, "nil id list leaves links alone")

	cleared, err := f.svc.UpdateArticle(ctx, f.author, a.ID, content.UpdateArticleMessage{CategoryIDs: idsPtr()})
	require.NoError(t, err)
	assert.Empty(t, cleared.Categories)
}

func TestUnpublishedReadIsNotFound(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	draft := f.article(t, f.author, "secret", false)

	for name, caller := range map[string]*auth.User{"anonymous": nil, "reader": f.reader, "peer author": f.peer} {
		t.Run(name, func(t *testing.T) {
			_, err := f.svc.GetArticle(ctx, caller, draft.ID)
			assert.True(t, errors.Is(err, auth.ErrNotFound))
			assert.False(t, errors.Is(err, auth.ErrForbidden))

			_, err = f.svc.ListComments(ctx, caller, draft.ID, content.Page{})
			assert.True(t, errors.Is(err, auth.ErrNotFound))
		})
	}

	for name, caller := range map[string]*auth.User{"owner": f.author, "editor": f.editor, "admin": f.admin} {
		t.Run(name, func(t *testing.T) {
			got, err := f.svc.GetArticle(ctx, caller, draft.ID)
			require.NoError(t, err)
			assert.Equal(t, draft.ID, got.ID)
		})
	}

	_, err := f.svc.GetArticle(ctx, nil, uuid.New())
	assert.True(t, errors.Is(err, auth.ErrNotFound))
}

func TestListArticles(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	first := f.article(t, f.author, "first", true)
	second := f.article(t, f.peer, "second", true)
	f.article(t, f.author, "alice draft", false)
	f.article(t, f.peer, "mallory draft", false)

	t.Run("published is open and newest first", func(t *testing.T) {
		list, err := f.svc.ListArticles(ctx, nil, true, content.Page{})
		require.NoError(t, err)
		require.Len(t, list.Items, 2)
		assert.Equal(t, 2, list.Total)
		assert.Equal(t, second.ID, list.Items[0].ID)
		assert.Equal(t, first.ID, list.Items[1].ID)
		assert.Equal(t, 50, list.Limit)
	})

	t.Run("drafts need an account", func(t *testing.T) {
		_, err := f.svc.ListArticles(ctx, nil, false, content.Page{})
		assert.True(t, errors.Is(err, auth.ErrUnauthenticated))
	})

	t.Run("authors see only their drafts", func(t *testing.T) {
		list, err := f.svc.ListArticles(ctx, f.author, false, content.Page{})
		require.NoError(t, err)
		require.Len(t, list.Items, 1)
		assert.Equal(t, "alice draft", list.Items[0].Title)
	})

	t.Run("editors see every draft", func(t *testing.T) {
		list, err := f.svc.ListArticles(ctx, f.editor, false, content.Page{})
		require.NoError(t, err)
		assert.Len(t, list.Items, 2)
	})

	t.Run("pagination bounds", func(t *testing.T) {
		list, err := f.svc.ListArticles(ctx, nil, true, content.Page{Skip: 1, Limit: 1})
		require.NoError(t, err)
		require.Len(t, list.Items, 1)
		assert.Equal(t, first.ID, list.Items[0].ID)
		assert.Equal(t, 2, list.Total)

		_, err = f.svc.ListArticles(ctx, nil, true, content.Page{Limit: 51})
		assert.True(t, errors.Is(err, auth.ErrValidation))
		_, err = f.svc.ListArticles(ctx, nil, true, content.Page{Skip: -1})
		assert.True(t, errors.Is(err, auth.ErrValidation))
	})
}

func TestDeleteArticle(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	tag, err := f.svc.CreateTag(ctx, f.admin, content.TagMessage{Name: "gone"})
	require.NoError(t, err)
	a, err := f.svc.CreateArticle(ctx, f.author, content.CreateArticleMessage{
		Title: "t", Body: "b", IsPublished: true, TagIDs: []uuid.UUID{tag.ID},
	})
	require.NoError(t, err)
	_, err = f.svc.CreateComment(ctx, f.reader, a.ID, content.CommentMessage{Content: "nice"})
	require.NoError(t, err)

	assert.True(t, errors.Is(f.svc.DeleteArticle(ctx, f.peer, a.ID), auth.ErrForbidden))
	assert.True(t, errors.Is(f.svc.DeleteArticle(ctx, nil, a.ID), auth.ErrUnauthenticated))

	require.NoError(t, f.svc.DeleteArticle(ctx, f.author, a.ID))
	_, err = f.svc.GetArticle(ctx, f.admin, a.ID)
	assert.True(t, errors.Is(err, auth.ErrNotFound))

	_, err = f.svc.GetTag(ctx, tag.ID)
	assert.NoError(t, err, "tags survive article deletion")

	assert.True(t, errors.Is(f.svc.DeleteArticle(ctx, f.admin, a.ID), auth.ErrNotFound))
}

func TestComments(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := f.article(t, f.author, "open", true)
	draft := f.article(t, f.author, "hidden", false)

	t.Run("create needs an account and a visible article", func(t *testing.T) {
		_, err := f.svc.CreateComment(ctx, nil, a.ID, content.CommentMessage{Content: "hi"})
		assert.True(t, errors.Is(err, auth.ErrUnauthenticated))

		_, err = f.svc.CreateComment(ctx, f.reader, draft.ID, content.CommentMessage{Content: "hi"})
		assert.True(t, errors.Is(err, auth.ErrNotFound))

		_, err = f.svc.CreateComment(ctx, f.reader, a.ID, content.CommentMessage{Content: "  "})
		assert.True(t, errors.Is(err, auth.ErrValidation))

		c, err := f.svc.CreateComment(ctx, f.author, draft.ID, content.CommentMessage{Content: "note to self"})
		require.NoError(t, err)
		assert.Equal(t, f.author.ID, c.UserID)
	})

	t.Run("owner or elevated may edit and delete", func(t *testing.T) {
		c, err := f.svc.CreateComment(ctx, f.reader, a.ID, content.CommentMessage{Content: "first"})
		require.NoError(t, err)

		_, err = f.svc.UpdateComment(ctx, f.peer, c.ID, content.CommentMessage{Content: "hijack"})
		assert.True(t, errors.Is(err, auth.ErrForbidden))
		assert.True(t, errors.Is(f.svc.DeleteComment(ctx, f.author, c.ID), auth.ErrForbidden),
			"owning the article does not grant rights over its comments")

		updated, err := f.svc.UpdateComment(ctx, f.reader, c.ID, content.CommentMessage{Content: "edited"})
		require.NoError(t, err)
		assert.Equal(t, "edited", updated.Content)

		_, err = f.svc.UpdateComment(ctx, f.editor, c.ID, content.CommentMessage{Content: "moderated"})
		require.NoError(t, err)

		require.NoError(t, f.svc.DeleteComment(ctx, f.admin, c.ID))
		assert.True(t, errors.Is(f.svc.DeleteComment(ctx, f.admin, c.ID), auth.ErrNotFound))
	})

	t.Run("listing is newest first", func(t *testing.T) {
		_, err := f.svc.CreateComment(ctx, f.reader, a.ID, content.CommentMessage{Content: "older"})
		require.NoError(t, err)
		_, err = f.svc.CreateComment(ctx, f.editor, a.ID, content.CommentMessage{Content: "newer"})
		require.NoError(t, err)

		list, err := f.svc.ListComments(ctx, nil, a.ID, content.Page{})
		require.NoError(t, err)
		require.Len(t, list.Items, 2)
		assert.Equal(t, "newer", list.Items[0].Content)
		require.NotNil(t, list.Items[0].Author)
		assert.Equal(t, "ed", list.Items[0].Author.Username)
	})
}

func TestTaxonomyAdminOnly(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.svc.CreateCategory(ctx, f.editor, content.CategoryMessage{Name: "World"})
	assert.True(t, errors.Is(err, auth.ErrForbidden))
	_, err = f.svc.CreateTag(ctx, nil, content.TagMessage{Name: "x"})
	assert.True(t, errors.Is(err, auth.ErrUnauthenticated))

	cat, err := f.svc.CreateCategory(ctx, f.admin, content.CategoryMessage{Name: "World", Description: "intl"})
	require.NoError(t, err)

	_, err = f.svc.CreateCategory(ctx, f.admin, content.CategoryMessage{Name: "World"})
	assert.True(t, errors.Is(err, auth.ErrConflict))

	updated, err := f.svc.UpdateCategory(ctx, f.admin, cat.ID, content.UpdateCategoryMessage{Name: strPtr("Globe")})
	require.NoError(t, err)
	assert.Equal(t, "Globe", updated.Name)
	assert.Equal(t, "intl", updated.Description)

	a, err := f.svc.CreateArticle(ctx, f.author, content.CreateArticleMessage{
		Title: "t", Body: "b", IsPublished: true, CategoryIDs: []uuid.UUID{cat.ID},
	})
	require.NoError(t, err)

	assert.True(t, errors.Is(f.svc.DeleteCategory(ctx, f.editor, cat.ID), auth.ErrForbidden))
	require.NoError(t, f.svc.DeleteCategory(ctx, f.admin, cat.ID))

	got, err := f.svc.GetArticle(ctx, nil, a.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Categories)

	list, err := f.svc.ListCategories(ctx, content.Page{})
	require.NoError(t, err)
	assert.Empty(t, list.Items)

	tag, err := f.svc.CreateTag(ctx, f.admin, content.TagMessage{Name: "b"})
	require.NoError(t, err)
	_, err = f.svc.CreateTag(ctx, f.admin, content.TagMessage{Name: "a"})
	require.NoError(t, err)
	tags, err := f.svc.ListTags(ctx, content.Page{})
	require.NoError(t, err)
	require.Len(t, tags.Items, 2)
	assert.Equal(t, "a", tags.Items[0].Name)

	renamed, err := f.svc.UpdateTag(ctx, f.admin, tag.ID, content.TagMessage{Name: "c"})
	require.NoError(t, err)
	assert.Equal(t, "c", renamed.Name)
	require.NoError(t, f.svc.DeleteTag(ctx, f.admin, tag.ID))
	_, err = f.svc.GetTag(ctx, tag.ID)
	assert.True(t, errors.Is(err, auth.ErrNotFound))
}

func TestSearch(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.article(t, f.author, "Budget debate", true)
	f.article(t, f.peer, "Weather report", true)
	f.article(t, f.author, "Budget leak", false)
	f.article(t, f.peer, "100% turnout", true)

	tests := []struct {
		name  string
		q     string
		count int
	}{
		{"title case insensitive", "budget", 1},
		{"body match", "BODY OF WEATHER", 1},
		{"author username", "alice_w", 1},
		{"percent is literal", "100%", 1},
		{"underscore is literal", "r_r", 0},
		{"no match", "zzz", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			list, err := f.svc.Search(ctx, tt.q, content.Page{})
			require.NoError(t, err)
			assert.Len(t, list.Items, tt.count)
			assert.Equal(t, tt.count, list.Total)
			for _, a := range list.Items {
				assert.True(t, a.IsPublished, "search only returns published articles")
			}
		})
	}

	_, err := f.svc.Search(ctx, "   ", content.Page{})
	assert.True(t, errors.Is(err, auth.ErrValidation))
}
