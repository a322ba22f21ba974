package handlers

import (
	"strconv"

	"tiendatec/internal/middleware"
	"tiendatec/internal/models"
	"tiendatec/internal/permissions"
	"tiendatec/internal/repositories"
	"tiendatec/internal/services"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	log "github.com/sirupsen/logrus"
)

type productLister func(filter repositories.ProductFilter, page repositories.Page) ([]models.Product, int64, error)

// ProductHandler handles HTTP requests for products and their images.
type ProductHandler struct {
	productService *services.ProductService
	imageService   *services.ImageService
	validate       *validator.Validate
}

// NewProductHandler creates a new ProductHandler.
func NewProductHandler(productService *services.ProductService, imageService *services.ImageService) *ProductHandler {
	return &ProductHandler{
		productService: productService,
		imageService:   imageService,
		validate:       newValidator(),
	}
}

// Routes is the product route table. Named listings come before /:id.
func (h *ProductHandler) Routes() []Route {
	adminWrite := []permissions.Predicate{permissions.IsAdminOrReadOnly}
	return []Route{
		{Method: fiber.MethodGet, Path: "/productos", Handler: h.list(h.productService.List)},
		{Method: fiber.MethodPost, Path: "/productos", Handler: h.HandleCreate, Permissions: adminWrite},
		{Method: fiber.MethodGet, Path: "/productos/nuevos", Handler: h.list(h.productService.ListNew)},
		{Method: fiber.MethodGet, Path: "/productos/mas_vendidos", Handler: h.list(h.productService.ListBestSellers)},
		{Method: fiber.MethodGet, Path: "/productos/por_tipo", Handler: h.HandleByType},
		{Method: fiber.MethodGet, Path: "/productos/agotados", Handler: h.list(h.productService.ListSoldOut)},
		{Method: fiber.MethodGet, Path: "/productos/stock_bajo", Handler: h.list(h.productService.ListLowStock)},
		{Method: fiber.MethodGet, Path: "/productos/:id", Handler: h.detail(h.productService.Get)},
		{Method: fiber.MethodPut, Path: "/productos/:id", Handler: h.HandleUpdate, Permissions: adminWrite},
		{Method: fiber.MethodPatch, Path: "/productos/:id", Handler: h.HandleUpdate, Permissions: adminWrite},
		{Method: fiber.MethodDelete, Path: "/productos/:id", Handler: h.HandleDelete, Permissions: adminWrite},
		{Method: fiber.MethodGet, Path: "/productos/:id/imagenes", Handler: h.HandleListImages},
		{Method: fiber.MethodPost, Path: "/productos/:id/imagenes", Handler: h.HandleUploadImage, Permissions: adminWrite},
		{Method: fiber.MethodDelete, Path: "/productos/:id/imagenes/:imageId", Handler: h.HandleDeleteImage, Permissions: adminWrite},

		// Older read-only routes kept for existing clients.
		{Method: fiber.MethodGet, Path: "/productos-nuevos", Handler: h.list(h.productService.ListNew)},
		{Method: fiber.MethodGet, Path: "/productos-nuevos/:id", Handler: h.detail(h.productService.GetNew)},
		{Method: fiber.MethodGet, Path: "/mas-vendidos", Handler: h.list(h.productService.ListBestSellers)},
		{Method: fiber.MethodGet, Path: "/mas-vendidos/:id", Handler: h.detail(h.productService.GetBestSeller)},
		{Method: fiber.MethodGet, Path: "/productos-tipo/:tipo", Handler: h.HandleByType},
	}
}

// RegisterRoutes registers the product routes with the Fiber app.
func (h *ProductHandler) RegisterRoutes(router fiber.Router) {
	Mount(router, h.Routes())
}

func (h *ProductHandler) list(lister productLister) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return h.respondList(c, lister)
	}
}

func (h *ProductHandler) respondList(c *fiber.Ctx, lister productLister) error {
	page, err := pageFromQuery(c)
	if err != nil {
		return respondError(c, err)
	}
	filter, err := productFilterFromQuery(c)
	if err != nil {
		return respondError(c, err)
	}
	products, total, err := lister(filter, page)
	if err != nil {
		return respondError(c, err)
	}
	return paginated(c, page, total, products)
}

func (h *ProductHandler) detail(get func(id string) (*models.Product, error)) fiber.Handler {
	return func(c *fiber.Ctx) error {
		product, err := get(c.Params("id"))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(product)
	}
}

// HandleByType lists one product type, taken from the path or the tipo query parameter.
func (h *ProductHandler) HandleByType(c *fiber.Ctx) error {
	tipo := c.Params("tipo", c.Query("tipo"))
	return h.respondList(c, func(filter repositories.ProductFilter, page repositories.Page) ([]models.Product, int64, error) {
		return h.productService.ListByType(tipo, filter, page)
	})
}

// HandleCreate handles product creation.
func (h *ProductHandler) HandleCreate(c *fiber.Ctx) error {
	var in services.ProductInput
	if err := bind(c, h.validate, &in); err != nil {
		return respondError(c, err)
	}

	product, err := h.productService.Create(middleware.CurrentUser(c), in)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(product)
}

// HandleUpdate handles PUT (every field) and PATCH (any subset).
func (h *ProductHandler) HandleUpdate(c *fiber.Ctx) error {
	var in services.ProductInput
	if err := bind(c, h.validate, &in); err != nil {
		return respondError(c, err)
	}

	partial := c.Method() == fiber.MethodPatch
	product, changed, err := h.productService.Update(middleware.CurrentUser(c), c.Params("id"), in, partial)
	if err != nil {
		return respondError(c, err)
	}
	log.WithFields(log.Fields{"product_id": product.ID, "changed": changed}).Debug("product updated")
	return c.JSON(product)
}

// HandleDelete removes a product together with its images.
func (h *ProductHandler) HandleDelete(c *fiber.Ctx) error {
	if err := h.productService.Delete(c.UserContext(), c.Params("id")); err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// HandleListImages lists the additional images of a product.
func (h *ProductHandler) HandleListImages(c *fiber.Ctx) error {
	images, err := h.imageService.List(c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	if images == nil {
		images = []models.ProductImage{}
	}
	return c.JSON(images)
}

// HandleUploadImage stores a multipart "imagen" file as an additional image.
func (h *ProductHandler) HandleUploadImage(c *fiber.Ctx) error {
	verr := services.NewValidationError()
	header, err := c.FormFile("imagen")
	if err != nil {
		verr.Add("imagen", "No file was submitted.")
	}
	var orden uint64
	if raw := c.FormValue("orden"); raw != "" {
		if orden, err = strconv.ParseUint(raw, 10, 32); err != nil {
			verr.Add("orden", "A valid integer is required.")
		}
	}
	var principal bool
	if raw := c.FormValue("es_principal"); raw != "" {
		if principal, err = strconv.ParseBool(raw); err != nil {
			verr.Add("es_principal", "Must be a valid boolean.")
		}
	}
	if verr.Has() {
		return respondError(c, verr)
	}

	file, err := header.Open()
	if err != nil {
		return respondError(c, err)
	}
	defer file.Close()

	image, err := h.imageService.Upload(c.UserContext(), services.ImageUpload{
		ProductID:   c.Params("id"),
		Filename:    header.Filename,
		Body:        file,
		Orden:       uint(orden),
		EsPrincipal: principal,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(image)
}

// HandleDeleteImage removes one additional image.
func (h *ProductHandler) HandleDeleteImage(c *fiber.Ctx) error {
	if err := h.imageService.Delete(c.UserContext(), c.Params("id"), c.Params("imageId")); err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
