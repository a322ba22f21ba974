package repositories

import (
	"fmt"
	"strings"
	"time"

	"tiendatec/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var productOrderColumns = map[string]string{
	"precio":           "precio",
	"fecha_creacion":   "fecha_creacion",
	"nombre":           "nombre",
	"cantidad_vendida": "cantidad_vendida",
}

// GORMProductRepository is a GORM implementation of ProductRepository.
type GORMProductRepository struct {
	db *gorm.DB
}

// NewGORMProductRepository creates a new instance of GORMProductRepository.
func NewGORMProductRepository(db *gorm.DB) *GORMProductRepository {
	return &GORMProductRepository{
		db: db,
	}
}

func (r *GORMProductRepository) filtered(f ProductFilter) *gorm.DB {
	query := r.db.Model(&models.Product{})
	if f.CategoriaID != "" {
		query = query.Where("categoria_id = ?", f.CategoriaID)
	}
	if f.Tipo != "" {
		query = query.Where("tipo = ?", f.Tipo)
	}
	if f.PrecioMin != nil {
		query = query.Where("precio >= ?", *f.PrecioMin)
	}
	if f.PrecioMax != nil {
		query = query.Where("precio <= ?", *f.PrecioMax)
	}
	if f.StockMin != nil {
		query = query.Where("stock >= ?", *f.StockMin)
	}
	if f.StockMax != nil {
		query = query.Where("stock <= ?", *f.StockMax)
	}
	if f.EsNuevo != nil {
		query = query.Where("es_nuevo = ?", *f.EsNuevo)
	}
	if f.EsMasVendido != nil {
		if *f.EsMasVendido {
			query = query.Where("cantidad_vendida >= ?", models.BestSellerThreshold)
		} else {
			query = query.Where("cantidad_vendida < ?", models.BestSellerThreshold)
		}
	}
	if f.CreatedSince != nil {
		query = query.Where("fecha_creacion >= ?", *f.CreatedSince)
	}
	if f.MinSold != nil {
		query = query.Where("cantidad_vendida >= ?", *f.MinSold)
	}
	if term := strings.TrimSpace(f.Search); term != "" {
		like := "%" + strings.ToLower(term) + "%"
		query = query.Where("LOWER(nombre) LIKE ? OR LOWER(descripcion) LIKE ?", like, like)
	}
	return query
}

// OrderClause turns an ordering parameter into an SQL ORDER BY list. The
// product id is always appended so pages are stable.
func OrderClause(ordering string) string {
	var parts []string
	seen := map[string]bool{}
	for _, key := range strings.Split(ordering, ",") {
		key = strings.TrimSpace(key)
		desc := strings.HasPrefix(key, "-")
		column, ok := productOrderColumns[strings.TrimPrefix(key, "-")]
		if !ok || seen[column] {
			continue
		}
		seen[column] = true
		if desc {
			parts = append(parts, column+" DESC")
		} else {
			parts = append(parts, column)
		}
	}
	if len(parts) == 0 {
		return "fecha_creacion DESC, id"
	}
	return strings.Join(append(parts, "id"), ", ")
}

// List returns one page of products matching the filter, with category and
// images loaded.
func (r *GORMProductRepository) List(f ProductFilter, page Page) ([]models.Product, int64, error) {
	query := r.filtered(f).Session(&gorm.Session{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count products: %w", err)
	}

	products := []models.Product{}
	err := query.
		Preload("Categoria").
		Preload("Imagenes", func(db *gorm.DB) *gorm.DB { return db.Order("orden") }).
		Order(OrderClause(f.Ordering)).
		Scopes(Paging(page)).
		Find(&products).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list products: %w", err)
	}
	return products, total, nil
}

// Count returns the number of products matching the filter.
func (r *GORMProductRepository) Count(f ProductFilter) (int64, error) {
	var total int64
	if err := r.filtered(f).Count(&total).Error; err != nil {
		return 0, fmt.Errorf("failed to count products: %w", err)
	}
	return total, nil
}

// GetByID retrieves a single product by its ID from the database.
func (r *GORMProductRepository) GetByID(id string) (*models.Product, error) {
	var product models.Product
	err := r.db.
		Preload("Categoria").
		Preload("Imagenes", func(db *gorm.DB) *gorm.DB { return db.Order("orden") }).
		First(&product, "id = ?", id).Error
	if err != nil {
		return nil, fmt.Errorf("product with ID %s: %w", id, translate(err))
	}
	return &product, nil
}

// Create creates a new product in the database.
func (r *GORMProductRepository) Create(product *models.Product) error {
	if product.ID == "" {
		product.ID = uuid.New().String()
	}
	if err := r.db.Omit(clause.Associations).Create(product).Error; err != nil {
		return fmt.Errorf("failed to create product: %w", translate(err))
	}
	return nil
}

// Update updates an existing product in the database. Associations are left
// alone; images have their own repository.
func (r *GORMProductRepository) Update(product *models.Product) error {
	res := r.db.Omit(clause.Associations).Save(product)
	if res.Error != nil {
		return fmt.Errorf("failed to update product: %w", translate(res.Error))
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("product with ID %s not found for update: %w", product.ID, ErrNotFound)
	}
	return nil
}

// Delete deletes a product by its ID from the database. Its image rows go with it.
func (r *GORMProductRepository) Delete(id string) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		// SQLite connections opened without the foreign key pragma would not cascade.
		if err := tx.Where("producto_id = ?", id).Delete(&models.ProductImage{}).Error; err != nil {
			return fmt.Errorf("failed to delete product images: %w", err)
		}
		res := tx.Delete(&models.Product{}, "id = ?", id)
		if res.Error != nil {
			return fmt.Errorf("failed to delete product: %w", translate(res.Error))
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("product with ID %s not found for deletion: %w", id, ErrNotFound)
		}
		return nil
	})
}

// CountByCategory returns how many products reference the category.
func (r *GORMProductRepository) CountByCategory(categoryID string) (int64, error) {
	return r.Count(ProductFilter{CategoriaID: categoryID})
}

// RefreshNewFlags realigns the stored es_nuevo column with the creation date:
// products created at or after cutoff are new, the rest are not. It returns
// the number of rows changed.
func (r *GORMProductRepository) RefreshNewFlags(cutoff time.Time) (int64, error) {
	var changed int64
	err := r.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Product{}).
			Where("fecha_creacion >= ? AND es_nuevo = ?", cutoff, false).
			UpdateColumn("es_nuevo", true)
		if res.Error != nil {
			return res.Error
		}
		changed += res.RowsAffected

		res = tx.Model(&models.Product{}).
			Where("fecha_creacion < ? AND es_nuevo = ?", cutoff, true).
			UpdateColumn("es_nuevo", false)
		if res.Error != nil {
			return res.Error
		}
		changed += res.RowsAffected
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to refresh new flags: %w", err)
	}
	return changed, nil
}
