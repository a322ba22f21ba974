package handlers

import (
	"errors"

	"tiendatec/internal/middleware"
	"tiendatec/internal/permissions"
	"tiendatec/internal/services"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	log "github.com/sirupsen/logrus"
)

// AuthHandler handles HTTP requests for authentication.
type AuthHandler struct {
	authService *services.AuthService
	throttle    fiber.Handler
	validate    *validator.Validate
}

// NewAuthHandler creates a new AuthHandler. throttle, when not nil, runs in
// front of registration and login.
func NewAuthHandler(authService *services.AuthService, throttle fiber.Handler) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		throttle:    throttle,
		validate:    newValidator(),
	}
}

// Routes is the authentication route table.
func (h *AuthHandler) Routes() []Route {
	var throttled []fiber.Handler
	if h.throttle != nil {
		throttled = []fiber.Handler{h.throttle}
	}
	return []Route{
		{Method: fiber.MethodPost, Path: "/registro", Handler: h.HandleRegister, Middleware: throttled},
		{Method: fiber.MethodPost, Path: "/login", Handler: h.HandleLogin, Middleware: throttled},
		{Method: fiber.MethodPost, Path: "/logout", Handler: h.HandleLogout, Permissions: []permissions.Predicate{permissions.IsAuthenticated}},
		{Method: fiber.MethodPost, Path: "/token/refresh", Handler: h.HandleRefresh},
		{Method: fiber.MethodGet, Path: "/perfil", Handler: h.HandleProfile, Permissions: []permissions.Predicate{permissions.IsAuthenticated}},
	}
}

// RegisterRoutes registers the authentication routes with the Fiber app.
func (h *AuthHandler) RegisterRoutes(router fiber.Router) {
	Mount(router, h.Routes())
}

// HandleRegister handles new user registration.
func (h *AuthHandler) HandleRegister(c *fiber.Ctx) error {
	var in services.RegisterInput
	if err := bind(c, h.validate, &in); err != nil {
		return respondError(c, err)
	}

	user, tokens, err := h.authService.Register(in)
	if err != nil {
		return respondError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "User registered successfully",
		"user":    user,
		"access":  tokens.Access,
		"refresh": tokens.Refresh,
	})
}

// LoginRequest represents the request body for login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// HandleLogin checks the credentials and issues a token pair.
func (h *AuthHandler) HandleLogin(c *fiber.Ctx) error {
	var req LoginRequest
	if err := bind(c, h.validate, &req); err != nil {
		return respondError(c, err)
	}

	user, tokens, err := h.authService.Login(req.Email, req.Password)
	if err != nil {
		log.WithField("email", req.Email).Info("login failed")
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{
		"message": "Login successful",
		"user":    user,
		"access":  tokens.Access,
		"refresh": tokens.Refresh,
	})
}

// RefreshRequest carries a refresh token.
type RefreshRequest struct {
	Refresh string `json:"refresh" validate:"required"`
}

// HandleLogout revokes the presented refresh token.
func (h *AuthHandler) HandleLogout(c *fiber.Ctx) error {
	var req RefreshRequest
	if err := bind(c, h.validate, &req); err != nil {
		return respondError(c, err)
	}

	if err := h.authService.Logout(c.UserContext(), req.Refresh); err != nil {
		if errors.Is(err, services.ErrInvalidToken) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"message": "Invalid token",
				"error":   err.Error(),
			})
		}
		return respondError(c, err)
	}

	log.WithField("user_id", middleware.CurrentUser(c).ID).Info("user logged out")
	return c.JSON(fiber.Map{
		"message": "Logout successful",
	})
}

// HandleRefresh exchanges a refresh token for a new access token.
func (h *AuthHandler) HandleRefresh(c *fiber.Ctx) error {
	var req RefreshRequest
	if err := bind(c, h.validate, &req); err != nil {
		return respondError(c, err)
	}

	access, err := h.authService.Refresh(c.UserContext(), req.Refresh)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"access": access,
	})
}

// HandleProfile returns the caller's public profile.
func (h *AuthHandler) HandleProfile(c *fiber.Ctx) error {
	return c.JSON(middleware.CurrentUser(c))
}
