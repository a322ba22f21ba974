package handlers

import (
	"strings"

	"tiendatec/internal/permissions"
	"tiendatec/internal/services"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

// CategoryHandler handles HTTP requests for categories.
type CategoryHandler struct {
	categoryService *services.CategoryService
	productService  *services.ProductService
	validate        *validator.Validate
}

// NewCategoryHandler creates a new CategoryHandler.
func NewCategoryHandler(categoryService *services.CategoryService, productService *services.ProductService) *CategoryHandler {
	return &CategoryHandler{
		categoryService: categoryService,
		productService:  productService,
		validate:        newValidator(),
	}
}

// Routes is the category route table.
func (h *CategoryHandler) Routes() []Route {
	catalog := []permissions.Predicate{permissions.ReadOnlyOrAdmin}
	return []Route{
		{Method: fiber.MethodGet, Path: "/categorias", Handler: h.HandleList, Permissions: catalog},
		{Method: fiber.MethodPost, Path: "/categorias", Handler: h.HandleCreate, Permissions: catalog},
		{Method: fiber.MethodGet, Path: "/categorias/:id", Handler: h.HandleGet, Permissions: catalog},
		{Method: fiber.MethodPut, Path: "/categorias/:id", Handler: h.HandleUpdate, Permissions: catalog},
		{Method: fiber.MethodPatch, Path: "/categorias/:id", Handler: h.HandleUpdate, Permissions: catalog},
		{Method: fiber.MethodDelete, Path: "/categorias/:id", Handler: h.HandleDelete, Permissions: catalog},
		{Method: fiber.MethodGet, Path: "/categorias/:id/productos", Handler: h.HandleProducts, Permissions: catalog},
	}
}

// RegisterRoutes registers the category routes with the Fiber app.
func (h *CategoryHandler) RegisterRoutes(router fiber.Router) {
	Mount(router, h.Routes())
}

// HandleList lists categories by name.
func (h *CategoryHandler) HandleList(c *fiber.Ctx) error {
	page, err := pageFromQuery(c)
	if err != nil {
		return respondError(c, err)
	}
	categories, total, err := h.categoryService.List(strings.TrimSpace(c.Query("search")), page)
	if err != nil {
		return respondError(c, err)
	}
	return paginated(c, page, total, categories)
}

// HandleGet returns one category.
func (h *CategoryHandler) HandleGet(c *fiber.Ctx) error {
	category, err := h.categoryService.Get(c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(category)
}

// HandleCreate handles category creation.
func (h *CategoryHandler) HandleCreate(c *fiber.Ctx) error {
	var in services.CategoryInput
	if err := bind(c, h.validate, &in); err != nil {
		return respondError(c, err)
	}
	category, err := h.categoryService.Create(in)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(category)
}

// HandleUpdate handles PUT and PATCH.
func (h *CategoryHandler) HandleUpdate(c *fiber.Ctx) error {
	var in services.CategoryInput
	if err := bind(c, h.validate, &in); err != nil {
		return respondError(c, err)
	}
	category, err := h.categoryService.Update(c.Params("id"), in, c.Method() == fiber.MethodPatch)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(category)
}

// HandleDelete removes a category that no product uses.
func (h *CategoryHandler) HandleDelete(c *fiber.Ctx) error {
	if err := h.categoryService.Delete(c.Params("id")); err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// HandleProducts lists the products of one category, with the usual product filters.
func (h *CategoryHandler) HandleProducts(c *fiber.Ctx) error {
	category, err := h.categoryService.Get(c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	page, err := pageFromQuery(c)
	if err != nil {
		return respondError(c, err)
	}
	filter, err := productFilterFromQuery(c)
	if err != nil {
		return respondError(c, err)
	}
	filter.CategoriaID = category.ID

	products, total, err := h.productService.List(filter, page)
	if err != nil {
		return respondError(c, err)
	}
	return paginated(c, page, total, products)
}
