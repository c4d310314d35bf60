package api

import (
	"bytes"
	"fmt"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/google/uuid"
	"github.com/kalinanews/newsroom/auth"
	"github.com/kalinanews/newsroom/content"
)

// Flag decodes a JSON boolean, or 0 and 1 as older clients send them
type Flag bool

func (f *Flag) UnmarshalJSON(data []byte) error {
	switch string(bytes.TrimSpace(data)) {
	case "true", "1":
		*f = true
	case "false", "0", "null":
		*f = false
	default:
		return fmt.Errorf("invalid boolean flag %s", data)
	}
	return nil
}

// LoginRequest accepts identifier, or username as OAuth2 password form
// clients send it. Either field is checked against username and email.
type LoginRequest struct {
	Identifier string `json:"identifier" form:"identifier"`
	Username   string `json:"username" form:"username"`
	Password   string `json:"password" form:"password"`
}

func (r LoginRequest) GetIdentifier() string {
	if r.Identifier != "" {
		return r.Identifier
	}
	return r.Username
}

func (r LoginRequest) Validate() error {
	id := r.GetIdentifier()
	return validation.Errors{
		"identifier": validation.Validate(id, validation.Required, validation.Length(1, 254)),
		"password":   validation.Validate(r.Password, validation.Required),
	}.Filter()
}

type TokenResponse struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
}

type SetRoleRequest struct {
	Role string `json:"role"`
}

func (r SetRoleRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Role, validation.Required),
	)
}

type StatusChangeRequest struct {
	Reason string `json:"reason"`
}

type CreateArticleRequest struct {
	Title       string      `json:"title"`
	Description string      `json:"description"`
	Body        string      `json:"body"`
	IsPublished Flag        `json:"is_published"`
	CategoryIDs []uuid.UUID `json:"category_ids"`
	TagIDs      []uuid.UUID `json:"tag_ids"`
}

func (r CreateArticleRequest) Message() content.CreateArticleMessage {
	return content.CreateArticleMessage{
		Title:       r.Title,
		Description: r.Description,
		Body:        r.Body,
		IsPublished: bool(r.IsPublished),
		CategoryIDs: r.CategoryIDs,
		TagIDs:      r.TagIDs,
	}
}

type UpdateArticleRequest struct {
	Title       *string      `json:"title"`
	Description *string      `json:"description"`
	Body        *string      `json:"body"`
	IsPublished *Flag        `json:"is_published"`
	CategoryIDs *[]uuid.UUID `json:"category_ids"`
	TagIDs      *[]uuid.UUID `json:"tag_ids"`
}

func (r UpdateArticleRequest) Message() content.UpdateArticleMessage {
	msg := content.UpdateArticleMessage{
		Title:       r.Title,
		Description: r.Description,
		Body:        r.Body,
		CategoryIDs: r.CategoryIDs,
		TagIDs:      r.TagIDs,
	}
	if r.IsPublished != nil {
		published := bool(*r.IsPublished)
		msg.IsPublished = &published
	}
	return msg
}

// AuthorSummary is the public view of an account attached to content
type AuthorSummary struct {
	ID       uuid.UUID `json:"id"`
	Username string    `json:"username"`
	FullName string    `json:"full_name,omitempty"`
}

func newAuthorSummary(u *auth.User) *AuthorSummary {
	if u == nil {
		return nil
	}
	return &AuthorSummary{ID: u.ID, Username: u.Username, FullName: u.FullName}
}

type ArticleResponse struct {
	ID              uuid.UUID           `json:"id"`
	Title           string              `json:"title"`
	Description     string              `json:"description"`
	Body            string              `json:"body"`
	IsPublished     bool                `json:"is_published"`
	PublicationDate *time.Time          `json:"publication_date"`
	OwnerID         uuid.UUID           `json:"owner_id"`
	Author          *AuthorSummary      `json:"author,omitempty"`
	Categories      []*content.Category `json:"categories"`
	Tags            []*content.Tag      `json:"tags"`
	CreatedAt       time.Time           `json:"created_at"`
	UpdatedAt       time.Time           `json:"updated_at"`
}

func newArticleResponse(a *content.Article) ArticleResponse {
	res := ArticleResponse{
		ID:              a.ID,
		Title:           a.Title,
		Description:     a.Description,
		Body:            a.Body,
		IsPublished:     a.IsPublished,
		PublicationDate: a.PublicationDate,
		OwnerID:         a.OwnerID,
		Author:          newAuthorSummary(a.Author),
		Categories:      a.Categories,
		Tags:            a.Tags,
		CreatedAt:       a.CreatedAt,
		UpdatedAt:       a.UpdatedAt,
	}
	if res.Categories == nil {
		res.Categories = []*content.Category{}
	}
	if res.Tags == nil {
		res.Tags = []*content.Tag{}
	}
	return res
}

type CommentResponse struct {
	ID        uuid.UUID      `json:"id"`
	Content   string         `json:"content"`
	ArticleID uuid.UUID      `json:"article_id"`
	UserID    uuid.UUID      `json:"user_id"`
	Author    *AuthorSummary `json:"author,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

func newCommentResponse(c *content.Comment) CommentResponse {
	return CommentResponse{
		ID:        c.ID,
		Content:   c.Content,
		ArticleID: c.ArticleID,
		UserID:    c.UserID,
		Author:    newAuthorSummary(c.Author),
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}

func mapList[T, R any](l content.List[T], fn func(T) R) content.List[R] {
	items := make([]R, 0, len(l.Items))
	for _, it := range l.Items {
		items = append(items, fn(it))
	}
	return content.List[R]{Items: items, Total: l.Total, Skip: l.Skip, Limit: l.Limit}
}
