package content

import (
	"github.com/kalinanews/newsroom/auth"
)

const (
	// DefaultPageLimit is used when a request does not name a limit
	DefaultPageLimit = 100
	// DefaultMaxPageLimit caps limit when no service option overrides it
	DefaultMaxPageLimit = 100
)

// Page is an offset window over a listing
type Page struct {
	Skip  int `json:"skip" query:"skip"`
	Limit int `json:"limit" query:"limit"`
}

// Normalize applies the default limit and rejects windows outside
// 0 <= skip and 1 <= limit <= max.
func (p Page) Normalize(max int) (Page, error) {
	if max <= 0 {
		max = DefaultMaxPageLimit
	}
	if p.Limit == 0 {
		p.Limit = min(DefaultPageLimit, max)
	}
	if p.Skip < 0 {
		return p, auth.Derivef(auth.ErrValidation, "skip must be zero or greater").
			WithMetadata(map[string]any{"skip": p.Skip})
	}
	if p.Limit < 1 || p.Limit > max {
		return p, auth.Derivef(auth.ErrValidation, "limit must be between 1 and %d", max).
			WithMetadata(map[string]any{"limit": p.Limit})
	}
	return p, nil
}

// List is a page of results with the total matching count
type List[T any] struct {
	Items []T `json:"items"`
	Total int `json:"total"`
	Skip  int `json:"skip"`
	Limit int `json:"limit"`
}

func newList[T any](items []T, total int, p Page) List[T] {
	return List[T]{Items: items, Total: total, Skip: p.Skip, Limit: p.Limit}
}
