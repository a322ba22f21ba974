package handlers

import (
	"tiendatec/internal/middleware"
	"tiendatec/internal/services"

	"github.com/gofiber/fiber/v2"
)

// AdminHandler serves the admin dashboard.
type AdminHandler struct {
	users      *services.UserService
	categories *services.CategoryService
	products   *services.ProductService
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(users *services.UserService, categories *services.CategoryService, products *services.ProductService) *AdminHandler {
	return &AdminHandler{users: users, categories: categories, products: products}
}

// RegisterRoutes mounts the dashboard behind RestrictAdmin. router is
// expected to be the /admin group.
func (h *AdminHandler) RegisterRoutes(router fiber.Router) {
	router.Use(middleware.RestrictAdmin())
	router.Get("/", h.HandleDashboard)
}

// HandleDashboard returns the headline catalog numbers.
func (h *AdminHandler) HandleDashboard(c *fiber.Ctx) error {
	stats, err := services.Dashboard(h.users, h.categories, h.products)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(stats)
}
