package api

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/kalinanews/newsroom/auth"
	"github.com/kalinanews/newsroom/middleware/jwtware"
)

// Guards bundles the three token middlewares routes pick from
type Guards struct {
	// Required rejects anonymous requests
	Required fiber.Handler
	// Optional resolves the caller when a token is sent and otherwise
	// continues as anonymous
	Optional fiber.Handler
	// Admin requires an active admin account
	Admin fiber.Handler
}

// NewGuards builds the token middlewares over an authenticator.
//
// On open routes a token of a deactivated account is treated as no token
// at all, so an unpublished article stays indistinguishable from a
// missing one.
func NewGuards(authenticator jwtware.Authenticator) Guards {
	return Guards{
		Required: jwtware.New(jwtware.Config{
			Authenticator: authenticator,
		}),
		Optional: jwtware.New(jwtware.Config{
			Authenticator: authenticator,
			Optional:      true,
			ErrorHandler: func(c *fiber.Ctx, err error) error {
				if errors.Is(err, auth.ErrAccountInactive) {
					return c.Next()
				}
				return err
			},
		}),
		Admin: jwtware.New(jwtware.Config{
			Authenticator: authenticator,
			AllowedRoles:  auth.AdminRoles,
		}),
	}
}

// RegisterRoutes mounts the API under router. Guards are attached per
// route so param based token lookups see the route params.
func RegisterRoutes(router fiber.Router, h *Controller, g Guards) {
	router.Post("/login", h.Login)

	users := router.Group("/users")
	users.Post("/", h.Register)
	users.Get("/me", g.Required, h.Me)
	users.Put("/me", g.Required, h.UpdateMe)
	users.Get("/", g.Admin, h.ListUsers)
	users.Get("/:id", g.Required, h.GetUser)
	users.Put("/:id/role", g.Admin, h.SetUserRole)
	users.Post("/:id/deactivate", g.Admin, h.DeactivateUser)
	users.Post("/:id/activate", g.Admin, h.ActivateUser)

	articles := router.Group("/articles")
	articles.Get("/", g.Optional, h.ListArticles)
	articles.Post("/", g.Required, h.CreateArticle)
	articles.Get("/:id", g.Optional, h.GetArticle)
	articles.Put("/:id", g.Required, h.UpdateArticle)
	articles.Delete("/:id", g.Required, h.DeleteArticle)
	articles.Get("/:id/comments", g.Optional, h.ListComments)
	articles.Post("/:id/comments", g.Required, h.CreateComment)

	comments := router.Group("/comments")
	comments.Put("/:id", g.Required, h.UpdateComment)
	comments.Delete("/:id", g.Required, h.DeleteComment)

	categories := router.Group("/categories")
	categories.Get("/", h.ListCategories)
	categories.Get("/:id", h.GetCategory)
	categories.Post("/", g.Admin, h.CreateCategory)
	categories.Put("/:id", g.Admin, h.UpdateCategory)
	categories.Delete("/:id", g.Admin, h.DeleteCategory)

	tags := router.Group("/tags")
	tags.Get("/", h.ListTags)
	tags.Get("/:id", h.GetTag)
	tags.Post("/", g.Admin, h.CreateTag)
	tags.Put("/:id", g.Admin, h.UpdateTag)
	tags.Delete("/:id", g.Admin, h.DeleteTag)

	router.Get("/search", h.Search)
}
