package handlers

import (
	"strconv"
	"strings"

	"tiendatec/internal/models"
	"tiendatec/internal/repositories"
	"tiendatec/internal/services"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
)

// productFilterFromQuery reads the product listing query parameters.
// Malformed numbers and unknown types are rejected; malformed booleans are
// ignored.
func productFilterFromQuery(c *fiber.Ctx) (repositories.ProductFilter, error) {
	verr := services.NewValidationError()
	f := repositories.ProductFilter{
		CategoriaID: c.Query("categoria"),
		Tipo:        models.ProductType(c.Query("tipo")),
		Search:      strings.TrimSpace(c.Query("search")),
		Ordering:    c.Query("ordering"),
	}
	if f.Tipo != "" && !f.Tipo.Valid() {
		verr.Add("tipo", "Select a valid choice. "+string(f.Tipo)+" is not one of the available choices.")
	}
	f.PrecioMin = decimalParam(c, "precio_min", verr)
	f.PrecioMax = decimalParam(c, "precio_max", verr)
	f.StockMin = intParam(c, "stock_min", verr)
	f.StockMax = intParam(c, "stock_max", verr)
	f.EsNuevo = boolParam(c, "es_nuevo")
	f.EsMasVendido = boolParam(c, "es_mas_vendido")
	return f, verr.OrNil()
}

func decimalParam(c *fiber.Ctx, name string, verr *services.ValidationError) *decimal.Decimal {
	raw := c.Query(name)
	if raw == "" {
		return nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		verr.Add(name, "Enter a number.")
		return nil
	}
	return &d
}

func intParam(c *fiber.Ctx, name string, verr *services.ValidationError) *int {
	raw := c.Query(name)
	if raw == "" {
		return nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		verr.Add(name, "Enter a number.")
		return nil
	}
	return &n
}

func boolParam(c *fiber.Ctx, name string) *bool {
	b, err := strconv.ParseBool(c.Query(name))
	if err != nil {
		return nil
	}
	return &b
}
