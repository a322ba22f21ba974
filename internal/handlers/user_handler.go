package handlers

import (
	"strings"

	"tiendatec/internal/middleware"
	"tiendatec/internal/models"
	"tiendatec/internal/permissions"
	"tiendatec/internal/repositories"
	"tiendatec/internal/services"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	log "github.com/sirupsen/logrus"
)

// UserHandler handles HTTP requests for user accounts.
type UserHandler struct {
	userService *services.UserService
	validate    *validator.Validate
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(userService *services.UserService) *UserHandler {
	return &UserHandler{
		userService: userService,
		validate:    newValidator(),
	}
}

// Routes is the user route table. Every route needs a caller; me and
// cambiar_password come before /:id.
func (h *UserHandler) Routes() []Route {
	authenticated := []permissions.Predicate{permissions.IsAuthenticated}
	adminOnly := []permissions.Predicate{permissions.IsAuthenticated, permissions.IsAdmin}
	owner := []fiber.Handler{objectGate(permissions.IsOwnerOrAdmin, "id")}
	return []Route{
		{Method: fiber.MethodGet, Path: "/usuarios", Handler: h.HandleList, Permissions: authenticated},
		{Method: fiber.MethodPost, Path: "/usuarios", Handler: h.HandleCreate, Permissions: adminOnly},
		{Method: fiber.MethodGet, Path: "/usuarios/me", Handler: h.HandleMe, Permissions: authenticated},
		{Method: fiber.MethodPut, Path: "/usuarios/me", Handler: h.HandleUpdateMe, Permissions: authenticated},
		{Method: fiber.MethodPatch, Path: "/usuarios/me", Handler: h.HandleUpdateMe, Permissions: authenticated},
		{Method: fiber.MethodPost, Path: "/usuarios/cambiar_password", Handler: h.HandleChangePassword, Permissions: authenticated},
		{Method: fiber.MethodGet, Path: "/usuarios/:id", Handler: h.HandleGet, Permissions: authenticated},
		{Method: fiber.MethodPut, Path: "/usuarios/:id", Handler: h.HandleUpdate, Permissions: authenticated, Middleware: owner},
		{Method: fiber.MethodPatch, Path: "/usuarios/:id", Handler: h.HandleUpdate, Permissions: authenticated, Middleware: owner},
		{Method: fiber.MethodDelete, Path: "/usuarios/:id", Handler: h.HandleDeactivate, Permissions: authenticated, Middleware: owner},
	}
}

// RegisterRoutes registers the user routes with the Fiber app.
func (h *UserHandler) RegisterRoutes(router fiber.Router) {
	Mount(router, h.Routes())
}

// HandleList lists every user for admins and only the caller for everyone else.
func (h *UserHandler) HandleList(c *fiber.Ctx) error {
	page, err := pageFromQuery(c)
	if err != nil {
		return respondError(c, err)
	}
	filter := repositories.UserFilter{
		Role:   models.Role(c.Query("roles")),
		Search: strings.TrimSpace(c.Query("search")),
	}
	users, total, err := h.userService.List(middleware.CurrentUser(c), filter, page)
	if err != nil {
		return respondError(c, err)
	}
	return paginated(c, page, total, users)
}

// HandleCreate lets an admin create an account with any role.
func (h *UserHandler) HandleCreate(c *fiber.Ctx) error {
	var in services.UserInput
	if err := bind(c, h.validate, &in); err != nil {
		return respondError(c, err)
	}
	user, err := h.userService.Create(in)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(user)
}

// HandleGet returns one user.
func (h *UserHandler) HandleGet(c *fiber.Ctx) error {
	user, err := h.userService.Get(middleware.CurrentUser(c), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(user)
}

// HandleUpdate handles PUT and PATCH on an account.
func (h *UserHandler) HandleUpdate(c *fiber.Ctx) error {
	var in services.UserInput
	if err := bind(c, h.validate, &in); err != nil {
		return respondError(c, err)
	}
	caller := middleware.CurrentUser(c)
	user, changed, err := h.userService.Update(caller, c.Params("id"), in, c.Method() == fiber.MethodPatch)
	if err != nil {
		return respondError(c, err)
	}
	log.WithFields(log.Fields{"user_id": user.ID, "by": caller.ID, "changed": changed}).Debug("user updated")
	return c.JSON(user)
}

// HandleDeactivate disables an account.
func (h *UserHandler) HandleDeactivate(c *fiber.Ctx) error {
	if err := h.userService.Deactivate(middleware.CurrentUser(c), c.Params("id")); err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// HandleMe returns the caller's own account.
func (h *UserHandler) HandleMe(c *fiber.Ctx) error {
	return c.JSON(middleware.CurrentUser(c))
}

// HandleUpdateMe edits the caller's own name.
func (h *UserHandler) HandleUpdateMe(c *fiber.Ctx) error {
	var in services.UserInput
	if err := bind(c, h.validate, &in); err != nil {
		return respondError(c, err)
	}
	user, _, err := h.userService.UpdateMe(middleware.CurrentUser(c), in, c.Method() == fiber.MethodPatch)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(user)
}

// HandleChangePassword replaces the caller's password.
func (h *UserHandler) HandleChangePassword(c *fiber.Ctx) error {
	var in services.ChangePasswordInput
	if err := bind(c, h.validate, &in); err != nil {
		return respondError(c, err)
	}
	if err := h.userService.ChangePassword(middleware.CurrentUser(c), in); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"message": "Password updated successfully",
	})
}
