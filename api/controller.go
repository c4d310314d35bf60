// Package api exposes the newsroom over HTTP with fiber.
package api

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/kalinanews/newsroom/auth"
	"github.com/kalinanews/newsroom/content"
	"github.com/kalinanews/newsroom/middleware/jwtware"
	"github.com/uptrace/bun"
)

// Controller holds the HTTP handlers. Handlers only decode requests and
// encode responses: every policy decision is made by the services.
type Controller struct {
	auther   *auth.Auther
	register *auth.RegisterUserHandler
	accounts *auth.AccountService
	content  *content.Service
	db       *bun.DB

	logger       auth.Logger
	maxPageLimit int
}

type ControllerOption func(*Controller)

func WithAuthenticator(a *auth.Auther) ControllerOption {
	return func(c *Controller) { c.auther = a }
}

func WithRegistration(h *auth.RegisterUserHandler) ControllerOption {
	return func(c *Controller) { c.register = h }
}

func WithAccounts(s *auth.AccountService) ControllerOption {
	return func(c *Controller) { c.accounts = s }
}

func WithContent(s *content.Service) ControllerOption {
	return func(c *Controller) { c.content = s }
}

// WithDB enables the database ping in the health check
func WithDB(db *bun.DB) ControllerOption {
	return func(c *Controller) { c.db = db }
}

func WithLogger(l auth.Logger) ControllerOption {
	return func(c *Controller) {
		if l != nil {
			c.logger = l
		}
	}
}

func WithMaxPageLimit(max int) ControllerOption {
	return func(c *Controller) {
		if max > 0 {
			c.maxPageLimit = max
		}
	}
}

func NewController(opts ...ControllerOption) *Controller {
	c := &Controller{
		logger:       auth.NamedLogger("api"),
		maxPageLimit: content.DefaultMaxPageLimit,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}

	if c.auther == nil {
		panic("api: controller requires an authenticator")
	}
	if c.register == nil || c.accounts == nil {
		panic("api: controller requires account services")
	}
	if c.content == nil {
		panic("api: controller requires the content service")
	}
	return c
}

// Login issues a bearer token. Lookup and password failures are
// reported the same way.
func (h *Controller) Login(c *fiber.Ctx) error {
	req := new(LoginRequest)
	if err := c.BodyParser(req); err != nil {
		return badRequest(err)
	}
	if err := req.Validate(); err != nil {
		return auth.ValidationError(err)
	}

	issued := time.Now()
	token, err := h.auther.Login(c.UserContext(), req.GetIdentifier(), req.Password)
	if err != nil {
		return err
	}

	return c.JSON(TokenResponse{
		AccessToken: token,
		TokenType:   "bearer",
		// exp is stored with second precision
		ExpiresAt: issued.Add(h.auther.TokenService().TTL()).Truncate(time.Second).UTC(),
	})
}

func (h *Controller) Register(c *fiber.Ctx) error {
	req := new(auth.RegisterUserMessage)
	if err := c.BodyParser(req); err != nil {
		return badRequest(err)
	}
	user, err := h.register.Execute(c.UserContext(), *req)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(user)
}

func (h *Controller) Me(c *fiber.Ctx) error {
	user := jwtware.UserFromCtx(c)
	if err := auth.RequireAuthenticated(user); err != nil {
		return err
	}
	return c.JSON(user)
}

func (h *Controller) UpdateMe(c *fiber.Ctx) error {
	req := new(auth.UpdateProfileMessage)
	if err := c.BodyParser(req); err != nil {
		return badRequest(err)
	}
	user, err := h.accounts.UpdateProfile(c.UserContext(), jwtware.UserFromCtx(c), *req)
	if err != nil {
		return err
	}
	return c.JSON(user)
}

func (h *Controller) ListUsers(c *fiber.Ctx) error {
	page, err := h.page(c)
	if err != nil {
		return err
	}
	users, total, err := h.accounts.List(c.UserContext(), jwtware.UserFromCtx(c), page.Skip, page.Limit)
	if err != nil {
		return err
	}
	if users == nil {
		users = []*auth.User{}
	}
	return c.JSON(content.List[*auth.User]{Items: users, Total: total, Skip: page.Skip, Limit: page.Limit})
}

func (h *Controller) GetUser(c *fiber.Ctx) error {
	id, err := paramID(c, "id", "user")
	if err != nil {
		return err
	}
	user, err := h.accounts.Get(c.UserContext(), jwtware.UserFromCtx(c), id)
	if err != nil {
		return err
	}
	return c.JSON(user)
}

func (h *Controller) SetUserRole(c *fiber.Ctx) error {
	id, err := paramID(c, "id", "user")
	if err != nil {
		return err
	}
	req := new(SetRoleRequest)
	if err := c.BodyParser(req); err != nil {
		return badRequest(err)
	}
	if err := req.Validate(); err != nil {
		return auth.ValidationError(err)
	}

	role, ok := auth.ParseRole(req.Role)
	if !ok {
		role = auth.UserRole(req.Role)
	}
	user, err := h.accounts.SetRole(c.UserContext(), jwtware.UserFromCtx(c), id, role)
	if err != nil {
		return err
	}
	return c.JSON(user)
}

func (h *Controller) DeactivateUser(c *fiber.Ctx) error {
	return h.changeStatus(c, h.accounts.Deactivate)
}

func (h *Controller) ActivateUser(c *fiber.Ctx) error {
	return h.changeStatus(c, h.accounts.Activate)
}

type statusFunc func(ctx context.Context, caller *auth.User, id uuid.UUID, reason string) (*auth.User, error)

func (h *Controller) changeStatus(c *fiber.Ctx, fn statusFunc) error {
	id, err := paramID(c, "id", "user")
	if err != nil {
		return err
	}
	req := new(StatusChangeRequest)
	if len(c.Body()) > 0 {
		if err := c.BodyParser(req); err != nil {
			return badRequest(err)
		}
	}
	user, err := fn(c.UserContext(), jwtware.UserFromCtx(c), id, req.Reason)
	if err != nil {
		return err
	}
	return c.JSON(user)
}

// ListArticles defaults to published articles; is_published=0 lists drafts
func (h *Controller) ListArticles(c *fiber.Ctx) error {
	page, err := h.page(c)
	if err != nil {
		return err
	}
	published, err := queryFlag(c, "is_published", true)
	if err != nil {
		return err
	}
	list, err := h.content.ListArticles(c.UserContext(), jwtware.UserFromCtx(c), published, page)
	if err != nil {
		return err
	}
	return c.JSON(mapList(list, newArticleResponse))
}

func (h *Controller) CreateArticle(c *fiber.Ctx) error {
	req := new(CreateArticleRequest)
	if err := c.BodyParser(req); err != nil {
		return badRequest(err)
	}
	article, err := h.content.CreateArticle(c.UserContext(), jwtware.UserFromCtx(c), req.Message())
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(newArticleResponse(article))
}

func (h *Controller) GetArticle(c *fiber.Ctx) error {
	id, err := paramID(c, "id", "article")
	if err != nil {
		return err
	}
	article, err := h.content.GetArticle(c.UserContext(), jwtware.UserFromCtx(c), id)
	if err != nil {
		return err
	}
	return c.JSON(newArticleResponse(article))
}

func (h *Controller) UpdateArticle(c *fiber.Ctx) error {
	id, err := paramID(c, "id", "article")
	if err != nil {
		return err
	}
	req := new(UpdateArticleRequest)
	if err := c.BodyParser(req); err != nil {
		return badRequest(err)
	}
	article, err := h.content.UpdateArticle(c.UserContext(), jwtware.UserFromCtx(c), id, req.Message())
	if err != nil {
		return err
	}
	return c.JSON(newArticleResponse(article))
}

func (h *Controller) DeleteArticle(c *fiber.Ctx) error {
	id, err := paramID(c, "id", "article")
	if err != nil {
		return err
	}
	if err := h.content.DeleteArticle(c.UserContext(), jwtware.UserFromCtx(c), id); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *Controller) ListComments(c *fiber.Ctx) error {
	id, err := paramID(c, "id", "article")
	if err != nil {
		return err
	}
	page, err := h.page(c)
	if err != nil {
		return err
	}
	list, err := h.content.ListComments(c.UserContext(), jwtware.UserFromCtx(c), id, page)
	if err != nil {
		return err
	}
	return c.JSON(mapList(list, newCommentResponse))
}

func (h *Controller) CreateComment(c *fiber.Ctx) error {
	id, err := paramID(c, "id", "article")
	if err != nil {
		return err
	}
	req := new(content.CommentMessage)
	if err := c.BodyParser(req); err != nil {
		return badRequest(err)
	}
	comment, err := h.content.CreateComment(c.UserContext(), jwtware.UserFromCtx(c), id, *req)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(newCommentResponse(comment))
}

func (h *Controller) UpdateComment(c *fiber.Ctx) error {
	id, err := paramID(c, "id", "comment")
	if err != nil {
		return err
	}
	req := new(content.CommentMessage)
	if err := c.BodyParser(req); err != nil {
		return badRequest(err)
	}
	comment, err := h.content.UpdateComment(c.UserContext(), jwtware.UserFromCtx(c), id, *req)
	if err != nil {
		return err
	}
	return c.JSON(newCommentResponse(comment))
}

func (h *Controller) DeleteComment(c *fiber.Ctx) error {
	id, err := paramID(c, "id", "comment")
	if err != nil {
		return err
	}
	if err := h.content.DeleteComment(c.UserContext(), jwtware.UserFromCtx(c), id); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *Controller) ListCategories(c *fiber.Ctx) error {
	page, err := h.page(c)
	if err != nil {
		return err
	}
	list, err := h.content.ListCategories(c.UserContext(), page)
	if err != nil {
		return err
	}
	return c.JSON(list)
}

func (h *Controller) GetCategory(c *fiber.Ctx) error {
	id, err := paramID(c, "id", "category")
	if err != nil {
		return err
	}
	category, err := h.content.GetCategory(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(category)
}

func (h *Controller) CreateCategory(c *fiber.Ctx) error {
	req := new(content.CategoryMessage)
	if err := c.BodyParser(req); err != nil {
		return badRequest(err)
	}
	category, err := h.content.CreateCategory(c.UserContext(), jwtware.UserFromCtx(c), *req)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(category)
}

func (h *Controller) UpdateCategory(c *fiber.Ctx) error {
	id, err := paramID(c, "id", "category")
	if err != nil {
		return err
	}
	req := new(content.UpdateCategoryMessage)
	if err := c.BodyParser(req); err != nil {
		return badRequest(err)
	}
	category, err := h.content.UpdateCategory(c.UserContext(), jwtware.UserFromCtx(c), id, *req)
	if err != nil {
		return err
	}
	return c.JSON(category)
}

func (h *Controller) DeleteCategory(c *fiber.Ctx) error {
	id, err := paramID(c, "id", "category")
	if err != nil {
		return err
	}
	if err := h.content.DeleteCategory(c.UserContext(), jwtware.UserFromCtx(c), id); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *Controller) ListTags(c *fiber.Ctx) error {
	page, err := h.page(c)
	if err != nil {
		return err
	}
	list, err := h.content.ListTags(c.UserContext(), page)
	if err != nil {
		return err
	}
	return c.JSON(list)
}

func (h *Controller) GetTag(c *fiber.Ctx) error {
	id, err := paramID(c, "id", "tag")
	if err != nil {
		return err
	}
	tag, err := h.content.GetTag(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(tag)
}

func (h *Controller) CreateTag(c *fiber.Ctx) error {
	req := new(content.TagMessage)
	if err := c.BodyParser(req); err != nil {
		return badRequest(err)
	}
	tag, err := h.content.CreateTag(c.UserContext(), jwtware.UserFromCtx(c), *req)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(tag)
}

func (h *Controller) UpdateTag(c *fiber.Ctx) error {
	id, err := paramID(c, "id", "tag")
	if err != nil {
		return err
	}
	req := new(content.TagMessage)
	if err := c.BodyParser(req); err != nil {
		return badRequest(err)
	}
	tag, err := h.content.UpdateTag(c.UserContext(), jwtware.UserFromCtx(c), id, *req)
	if err != nil {
		return err
	}
	return c.JSON(tag)
}

func (h *Controller) DeleteTag(c *fiber.Ctx) error {
	id, err := paramID(c, "id", "tag")
	if err != nil {
		return err
	}
	if err := h.content.DeleteTag(c.UserContext(), jwtware.UserFromCtx(c), id); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *Controller) Search(c *fiber.Ctx) error {
	page, err := h.page(c)
	if err != nil {
		return err
	}
	list, err := h.content.Search(c.UserContext(), c.Query("q"), page)
	if err != nil {
		return err
	}
	return c.JSON(mapList(list, newArticleResponse))
}

// Health reports ok when the database answers a ping
func (h *Controller) Health(c *fiber.Ctx) error {
	if h.db != nil {
		ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
		defer cancel()
		if err := h.db.PingContext(ctx); err != nil {
			h.logger.Error("health check failed", "error", err)
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "unavailable"})
		}
	}
	return c.JSON(fiber.Map{"status": "ok"})
}

func (h *Controller) page(c *fiber.Ctx) (content.Page, error) {
	skip, err := queryInt(c, "skip")
	if err != nil {
		return content.Page{}, err
	}
	limit, err := queryInt(c, "limit")
	if err != nil {
		return content.Page{}, err
	}
	return content.Page{Skip: skip, Limit: limit}.Normalize(h.maxPageLimit)
}

func queryInt(c *fiber.Ctx, key string) (int, error) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, auth.Derivef(auth.ErrValidation, "%s must be an integer", key).
			WithMetadata(map[string]any{key: "must be an integer"})
	}
	return n, nil
}

func queryFlag(c *fiber.Ctx, key string, def bool) (bool, error) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return def, auth.Derivef(auth.ErrValidation, "%s must be 0 or 1", key).
			WithMetadata(map[string]any{key: "must be 0 or 1"})
	}
	return v, nil
}

// paramID parses a uuid route param. A malformed id cannot name an
// existing record, so it is reported as not found.
func paramID(c *fiber.Ctx, key, resource string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Params(key))
	if err != nil {
		return uuid.Nil, auth.NotFound(resource)
	}
	return id, nil
}

func badRequest(err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return fe
	}
	return fiber.NewError(fiber.StatusBadRequest, "malformed request body")
}
