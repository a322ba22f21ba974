package repositories

import (
	"time"

	"tiendatec/internal/models"

	"github.com/shopspring/decimal"
)

// ProductFilter narrows a product listing. Nil pointers and empty strings do not filter.
type ProductFilter struct {
	CategoriaID  string
	Tipo         models.ProductType
	PrecioMin    *decimal.Decimal
	PrecioMax    *decimal.Decimal
	StockMin     *int
	StockMax     *int
	EsNuevo      *bool
	EsMasVendido *bool
	CreatedSince *time.Time
	MinSold      *int
	Search       string
	// Ordering is a comma separated list of sortable fields, each optionally
	// prefixed with "-". Unknown fields are ignored.
	Ordering string
}

// ProductRepository defines the interface for product data access.
type ProductRepository interface {
	List(filter ProductFilter, page Page) ([]models.Product, int64, error)
	Count(filter ProductFilter) (int64, error)
	GetByID(id string) (*models.Product, error)
	Create(product *models.Product) error
	Update(product *models.Product) error
	Delete(id string) error
	CountByCategory(categoryID string) (int64, error)
	RefreshNewFlags(cutoff time.Time) (int64, error)
}
