package content

import (
	"time"

	"github.com/google/uuid"
	"github.com/kalinanews/newsroom/auth"
	"github.com/kalinanews/newsroom/persistence"
	"github.com/uptrace/bun"
)

// Record is implemented by every content model the generic repository
// persists. columns lists what an update writes.
type Record interface {
	GetID() uuid.UUID
	SetID(id uuid.UUID)
	prepare(now time.Time)
	columns() persistence.Columns
}

type Article struct {
	bun.BaseModel   `bun:"table:articles,alias:art"`
	ID              uuid.UUID   `bun:"id,pk,type:uuid" json:"id"`
	Title           string      `bun:"title,notnull" json:"title"`
	Description     string      `bun:"description,notnull" json:"description"`
	Body            string      `bun:"body,notnull" json:"body"`
	OwnerID         uuid.UUID   `bun:"owner_id,type:uuid,notnull" json:"owner_id"`
	Author          *auth.User  `bun:"rel:belongs-to,join:owner_id=id" json:"-"`
	IsPublished     bool        `bun:"is_published,notnull" json:"is_published"`
	PublicationDate *time.Time  `bun:"publication_date,nullzero" json:"publication_date,omitempty"`
	Categories      []*Category `bun:"m2m:article_categories,join:Article=Category" json:"categories"`
	Tags            []*Tag      `bun:"m2m:article_tags,join:Article=Tag" json:"tags"`
	CreatedAt       time.Time   `bun:"created_at,notnull" json:"created_at"`
	UpdatedAt       time.Time   `bun:"updated_at,notnull" json:"updated_at"`
}

func (a *Article) GetID() uuid.UUID   { return a.ID }
func (a *Article) SetID(id uuid.UUID) { a.ID = id }

func (a *Article) columns() persistence.Columns {
	return persistence.Columns{
		"title":            a.Title,
		"description":      a.Description,
		"body":             a.Body,
		"is_published":     a.IsPublished,
		"publication_date": a.PublicationDate,
		"updated_at":       a.UpdatedAt,
	}
}

func (a *Article) prepare(now time.Time) {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	a.UpdatedAt = now
	a.markPublished(now)
}

// markPublished stamps the publication date the first time the article
// goes public. The date is kept if the article is later unpublished.
func (a *Article) markPublished(now time.Time) {
	if a.IsPublished && a.PublicationDate == nil {
		t := now
		a.PublicationDate = &t
	}
}

type Category struct {
	bun.BaseModel `bun:"table:categories,alias:cat"`
	ID            uuid.UUID `bun:"id,pk,type:uuid" json:"id"`
	Name          string    `bun:"name,notnull,unique" json:"name"`
	Description   string    `bun:"description,notnull" json:"description"`
	CreatedAt     time.Time `bun:"created_at,notnull" json:"created_at"`
	UpdatedAt     time.Time `bun:"updated_at,notnull" json:"updated_at"`
}

func (c *Category) GetID() uuid.UUID   { return c.ID }
func (c *Category) SetID(id uuid.UUID) { c.ID = id }

func (c *Category) columns() persistence.Columns {
	return persistence.Columns{
		"name":        c.Name,
		"description": c.Description,
		"updated_at":  c.UpdatedAt,
	}
}

func (c *Category) prepare(now time.Time) {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now
}

type Tag struct {
	bun.BaseModel `bun:"table:tags,alias:tag"`
	ID            uuid.UUID `bun:"id,pk,type:uuid" json:"id"`
	Name          string    `bun:"name,notnull,unique" json:"name"`
	CreatedAt     time.Time `bun:"created_at,notnull" json:"created_at"`
	UpdatedAt     time.Time `bun:"updated_at,notnull" json:"updated_at"`
}

func (t *Tag) GetID() uuid.UUID   { return t.ID }
func (t *Tag) SetID(id uuid.UUID) { t.ID = id }

func (t *Tag) columns() persistence.Columns {
	return persistence.Columns{
		"name":       t.Name,
		"updated_at": t.UpdatedAt,
	}
}

func (t *Tag) prepare(now time.Time) {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	t.UpdatedAt = now
}

type ArticleCategory struct {
	bun.BaseModel `bun:"table:article_categories,alias:ac"`
	ArticleID     uuid.UUID `bun:"article_id,pk,type:uuid"`
	Article       *Article  `bun:"rel:belongs-to,join:article_id=id"`
	CategoryID    uuid.UUID `bun:"category_id,pk,type:uuid"`
	Category      *Category `bun:"rel:belongs-to,join:category_id=id"`
}

type ArticleTag struct {
	bun.BaseModel `bun:"table:article_tags,alias:at"`
	ArticleID     uuid.UUID `bun:"article_id,pk,type:uuid"`
	Article       *Article  `bun:"rel:belongs-to,join:article_id=id"`
	TagID         uuid.UUID `bun:"tag_id,pk,type:uuid"`
	Tag           *Tag      `bun:"rel:belongs-to,join:tag_id=id"`
}

// Comment is owned by the account in UserID
type Comment struct {
	bun.BaseModel `bun:"table:comments,alias:cmt"`
	ID            uuid.UUID  `bun:"id,pk,type:uuid" json:"id"`
	Content       string     `bun:"content,notnull" json:"content"`
	ArticleID     uuid.UUID  `bun:"article_id,type:uuid,notnull" json:"article_id"`
	UserID        uuid.UUID  `bun:"user_id,type:uuid,notnull" json:"user_id"`
	Author        *auth.User `bun:"rel:belongs-to,join:user_id=id" json:"-"`
	CreatedAt     time.Time  `bun:"created_at,notnull" json:"created_at"`
	UpdatedAt     time.Time  `bun:"updated_at,notnull" json:"updated_at"`
}

func (c *Comment) GetID() uuid.UUID   { return c.ID }
func (c *Comment) SetID(id uuid.UUID) { c.ID = id }

func (c *Comment) columns() persistence.Columns {
	return persistence.Columns{
		"content":    c.Content,
		"updated_at": c.UpdatedAt,
	}
}

func (c *Comment) prepare(now time.Time) {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now
}

// RegisterModels registers the m2m join models. It must run before the
// first query that loads article categories or tags.
func RegisterModels(db *bun.DB) {
	db.RegisterModel((*ArticleCategory)(nil), (*ArticleTag)(nil))
}
